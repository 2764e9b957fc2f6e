package types

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// FeedbackCategory selects the form fields and the attestation schema.
type FeedbackCategory string

const (
	FeedbackPositive  FeedbackCategory = "positive"
	FeedbackNegative  FeedbackCategory = "negative"
	FeedbackNotUseful FeedbackCategory = "notUseful"
)

// IsValid reports whether c is one of the known categories.
func (c FeedbackCategory) IsValid() bool {
	switch c {
	case FeedbackPositive, FeedbackNegative, FeedbackNotUseful:
		return true
	}
	return false
}

// ParseFeedbackCategory validates a raw category string.
func ParseFeedbackCategory(s string) (FeedbackCategory, error) {
	c := FeedbackCategory(s)
	if !c.IsValid() {
		return "", fmt.Errorf("unknown feedback category %q", s)
	}
	return c, nil
}

// Form field names accepted by UpdateField.
const (
	FieldID         = "id"
	FieldButtonName = "buttonName"
	FieldAmount     = "amount"
	FieldNotUseful  = "notUseful"
)

// FormState holds the free-text values typed by the user.
type FormState struct {
	ID         string `json:"id"`
	ButtonName string `json:"buttonName"`
	Amount     string `json:"amount"`
	NotUseful  string `json:"notUseful"`
}

// RequiredFields lists the fields that must be non-empty for a category.
func RequiredFields(c FeedbackCategory) []string {
	if c == FeedbackNotUseful {
		return []string{FieldID, FieldNotUseful}
	}
	return []string{FieldID, FieldButtonName, FieldAmount}
}

// Value returns the named field.
func (f FormState) Value(name string) (string, bool) {
	switch name {
	case FieldID:
		return f.ID, true
	case FieldButtonName:
		return f.ButtonName, true
	case FieldAmount:
		return f.Amount, true
	case FieldNotUseful:
		return f.NotUseful, true
	}
	return "", false
}

// EncodedPayload is the schema-conformant attestation data for one submission.
type EncodedPayload struct {
	SchemaUID common.Hash      `json:"schemaUid"`
	Schema    string           `json:"schema"`
	Category  FeedbackCategory `json:"category"`
	Data      []byte           `json:"-"`
}

// SubmissionOutcome distinguishes the two SubmissionResult variants.
type SubmissionOutcome string

const (
	SubmissionSucceeded SubmissionOutcome = "success"
	SubmissionFailed    SubmissionOutcome = "failure"
)

// SubmissionResult is the outcome of one attestation attempt.
type SubmissionResult struct {
	Outcome       SubmissionOutcome `json:"outcome"`
	AttestationID string            `json:"attestationId,omitempty"`
	TxHash        string            `json:"txHash,omitempty"`
	Message       string            `json:"message,omitempty"`
	// Kind is the error type of a failure, used for logs and metrics only.
	Kind string `json:"-"`
}

// Succeeded reports whether the attempt produced an attestation.
func (r SubmissionResult) Succeeded() bool {
	return r.Outcome == SubmissionSucceeded
}

// StatusText renders the single user-visible status line.
func (r SubmissionResult) StatusText() string {
	if r.Succeeded() {
		return "Attestation created successfully. UID: " + r.AttestationID
	}
	return "Error creating attestation: " + r.Message
}

// FormSnapshot is a copy of a form controller's display state.
type FormSnapshot struct {
	Category   FeedbackCategory  `json:"category"`
	Form       FormState         `json:"form"`
	Visible    bool              `json:"visible"`
	Submitting bool              `json:"submitting"`
	Status     string            `json:"status,omitempty"`
	Result     *SubmissionResult `json:"result,omitempty"`
}

// FormSession is a persisted form controller state keyed by session id.
type FormSession struct {
	ID        string       `json:"id"`
	Snapshot  FormSnapshot `json:"snapshot"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// CreateFormRequest opens a form for a category.
type CreateFormRequest struct {
	Category string `json:"category" binding:"required"`
}

// SelectCategoryRequest switches the active category of a form.
type SelectCategoryRequest struct {
	Category string `json:"category" binding:"required"`
}

// UpdateFieldRequest sets one form field.
type UpdateFieldRequest struct {
	Name  string `json:"name" binding:"required"`
	Value string `json:"value"`
}

// AttestFeedbackRequest is the one-shot submission body.
type AttestFeedbackRequest struct {
	Category   string `json:"category" binding:"required"`
	ID         string `json:"id"`
	ButtonName string `json:"buttonName"`
	Amount     string `json:"amount"`
	NotUseful  string `json:"notUseful"`
}

// SchemaDescriptor describes one of the fixed attestation schemas.
type SchemaDescriptor struct {
	UID        string             `json:"uid"`
	Schema     string             `json:"schema"`
	Categories []FeedbackCategory `json:"categories"`
}

// AttestationRecord is the on-chain attestation as returned by the registry.
type AttestationRecord struct {
	UID            string `json:"uid"`
	Schema         string `json:"schema"`
	Time           uint64 `json:"time"`
	ExpirationTime uint64 `json:"expirationTime"`
	RevocationTime uint64 `json:"revocationTime"`
	RefUID         string `json:"refUid"`
	Recipient      string `json:"recipient"`
	Attester       string `json:"attester"`
	Revocable      bool   `json:"revocable"`
	Data           string `json:"data"`
	// Fields holds the decoded payload when the schema is one of the feedback schemas.
	Fields map[string]string `json:"fields,omitempty"`
}

// AttestFeedbackResponse reports a one-shot submission.
type AttestFeedbackResponse struct {
	Result SubmissionResult `json:"result"`
	Status string           `json:"status"`
}
