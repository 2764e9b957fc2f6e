package handlers

import (
	"context"

	"github.com/NomadCrew/feedback-attestation/types"
)

// FeedbackServiceInterface is the form session and attestation surface used by FeedbackHandler.
type FeedbackServiceInterface interface {
	CreateForm(ctx context.Context, category string) (*types.FormSession, error)
	GetForm(ctx context.Context, id string) (*types.FormSession, error)
	SelectCategory(ctx context.Context, id, category string) (*types.FormSession, error)
	UpdateField(ctx context.Context, id, name, value string) (*types.FormSession, error)
	SubmitForm(ctx context.Context, id string) (*types.FormSession, error)
	DiscardForm(ctx context.Context, id string) error
	Attest(ctx context.Context, req types.AttestFeedbackRequest) (types.SubmissionResult, error)
	Schemas() []types.SchemaDescriptor
	GetAttestation(ctx context.Context, uid string) (*types.AttestationRecord, error)
}

// HealthServiceInterface reports component health.
type HealthServiceInterface interface {
	CheckHealth(ctx context.Context) types.HealthCheck
}
