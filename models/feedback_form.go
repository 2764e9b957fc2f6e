package models

import (
	"context"
	"strings"
	"sync"

	"github.com/NomadCrew/feedback-attestation/errors"
	"github.com/NomadCrew/feedback-attestation/types"
)

// Submitter sends an encoded payload and reports the single outcome.
type Submitter interface {
	Submit(ctx context.Context, payload types.EncodedPayload) types.SubmissionResult
}

// FormController tracks the active category, the typed field values and the
// last submission outcome of one feedback form.
type FormController struct {
	mu        sync.Mutex
	state     types.FormSnapshot
	submitter Submitter
	opts      EncodeOptions
	observers []func(types.FormSnapshot)
}

// NewFormController returns a controller with no category selected and the form hidden.
func NewFormController(submitter Submitter, opts EncodeOptions) *FormController {
	return &FormController{submitter: submitter, opts: opts}
}

// RestoreFormController resumes a controller from a stored snapshot. An
// in-flight flag is not carried over.
func RestoreFormController(snapshot types.FormSnapshot, submitter Submitter, opts EncodeOptions) *FormController {
	fc := NewFormController(submitter, opts)
	fc.state = snapshot
	fc.state.Submitting = false
	if snapshot.Result != nil {
		r := *snapshot.Result
		fc.state.Result = &r
	}
	return fc
}

// OnChange registers fn to be called synchronously after every state change.
func (fc *FormController) OnChange(fn func(types.FormSnapshot)) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.observers = append(fc.observers, fn)
}

// Snapshot returns a copy of the current state.
func (fc *FormController) Snapshot() types.FormSnapshot {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.copyState()
}

// SelectCategory activates category, clears every field and shows the form.
func (fc *FormController) SelectCategory(category types.FeedbackCategory) error {
	if !category.IsValid() {
		return errors.ValidationFailed("Invalid feedback category", string(category))
	}

	fc.mu.Lock()
	if fc.state.Submitting {
		fc.mu.Unlock()
		return SubmissionInProgress()
	}
	fc.state.Category = category
	fc.state.Form = types.FormState{}
	fc.state.Visible = true
	snap := fc.copyState()
	observers := fc.observers
	fc.mu.Unlock()

	notify(observers, snap)
	return nil
}

// UpdateField sets one named field and leaves the others untouched.
func (fc *FormController) UpdateField(name, value string) error {
	fc.mu.Lock()
	if fc.state.Submitting {
		fc.mu.Unlock()
		return SubmissionInProgress()
	}
	switch name {
	case types.FieldID:
		fc.state.Form.ID = value
	case types.FieldButtonName:
		fc.state.Form.ButtonName = value
	case types.FieldAmount:
		fc.state.Form.Amount = value
	case types.FieldNotUseful:
		fc.state.Form.NotUseful = value
	default:
		fc.mu.Unlock()
		return errors.ValidationFailed("Unknown form field", name)
	}
	snap := fc.copyState()
	observers := fc.observers
	fc.mu.Unlock()

	notify(observers, snap)
	return nil
}

// Submit validates the form, encodes it and hands it to the submitter. A
// validation error leaves the form untouched and visible. Once validation
// passes the form is hidden whatever the outcome, and the status line shows
// the result.
func (fc *FormController) Submit(ctx context.Context) (types.SubmissionResult, error) {
	fc.mu.Lock()
	if fc.state.Submitting {
		fc.mu.Unlock()
		return types.SubmissionResult{}, SubmissionInProgress()
	}
	if err := validateForm(fc.state); err != nil {
		fc.mu.Unlock()
		return types.SubmissionResult{}, err
	}
	category, form := fc.state.Category, fc.state.Form
	fc.state.Submitting = true
	snap := fc.copyState()
	observers := fc.observers
	fc.mu.Unlock()

	notify(observers, snap)

	var result types.SubmissionResult
	payload, err := EncodePayload(category, form, fc.opts)
	if err != nil {
		result = FailureResult(err)
	} else {
		result = fc.submitter.Submit(ctx, payload)
	}

	fc.mu.Lock()
	fc.state.Submitting = false
	fc.state.Visible = false
	fc.state.Status = result.StatusText()
	fc.state.Result = &result
	snap = fc.copyState()
	observers = fc.observers
	fc.mu.Unlock()

	notify(observers, snap)
	return result, nil
}

func (fc *FormController) copyState() types.FormSnapshot {
	snap := fc.state
	if fc.state.Result != nil {
		r := *fc.state.Result
		snap.Result = &r
	}
	return snap
}

func notify(observers []func(types.FormSnapshot), snap types.FormSnapshot) {
	for _, fn := range observers {
		fn(snap)
	}
}

func validateForm(state types.FormSnapshot) error {
	if state.Category == "" {
		return errors.ValidationFailed("No feedback category selected", "")
	}
	var missing []string
	for _, name := range types.RequiredFields(state.Category) {
		if v, _ := state.Form.Value(name); strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return errors.ValidationFailed("Required fields are empty", strings.Join(missing, ", "))
	}
	return nil
}

// SubmissionInProgress is returned when a form is changed or submitted while
// an earlier submission has not finished.
func SubmissionInProgress() error {
	appErr := errors.ValidationFailed("A submission is already in progress", "")
	appErr.Code = "submission_in_progress"
	return appErr
}

// FailureResult converts err into the failure variant of a SubmissionResult.
func FailureResult(err error) types.SubmissionResult {
	result := types.SubmissionResult{Outcome: types.SubmissionFailed, Message: err.Error()}
	if appErr, ok := errors.As(err); ok {
		result.Kind = string(appErr.Type)
		result.Message = appErr.Message
		if appErr.Detail != "" {
			result.Message += ": " + appErr.Detail
		}
	}
	return result
}
