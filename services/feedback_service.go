package services

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/NomadCrew/feedback-attestation/errors"
	"github.com/NomadCrew/feedback-attestation/internal/store"
	"github.com/NomadCrew/feedback-attestation/logger"
	"github.com/NomadCrew/feedback-attestation/models"
	"github.com/NomadCrew/feedback-attestation/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AttestationReader looks up attestations already on chain.
type AttestationReader interface {
	GetAttestation(ctx context.Context, uid string) (*types.AttestationRecord, error)
}

// FeedbackService drives form controllers whose state lives in a FormStore
// between requests.
type FeedbackService struct {
	store     store.FormStore
	submitter models.Submitter
	reader    AttestationReader
	opts      models.EncodeOptions
	claimTTL  time.Duration
	now       func() time.Time
	log       *zap.SugaredLogger
}

// defaultSubmitClaimTTL bounds how long a crashed submit can lock its session
// when no confirmation timeout is configured.
const defaultSubmitClaimTTL = 10 * time.Minute

func NewFeedbackService(formStore store.FormStore, submitter models.Submitter, reader AttestationReader, opts models.EncodeOptions) *FeedbackService {
	return &FeedbackService{
		store:     formStore,
		submitter: submitter,
		reader:    reader,
		opts:      opts,
		claimTTL:  defaultSubmitClaimTTL,
		now:       time.Now,
		log:       logger.GetLogger(),
	}
}

// SetSubmitClaimTTL sets how long a submit claim lives. It should outlast the
// longest confirmation wait.
func (s *FeedbackService) SetSubmitClaimTTL(ttl time.Duration) {
	if ttl > 0 {
		s.claimTTL = ttl
	}
}

// CreateForm opens a new session with category selected.
func (s *FeedbackService) CreateForm(ctx context.Context, category string) (*types.FormSession, error) {
	fc := models.NewFormController(s.submitter, s.opts)
	if err := fc.SelectCategory(types.FeedbackCategory(category)); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	session := &types.FormSession{
		ID:        uuid.NewString(),
		Snapshot:  fc.Snapshot(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Save(ctx, session); err != nil {
		return nil, errors.NewStoreError(err)
	}

	s.log.Debugw("Feedback form created", "session_id", session.ID, "category", category)
	return session, nil
}

// GetForm returns the stored session.
func (s *FeedbackService) GetForm(ctx context.Context, id string) (*types.FormSession, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFound("Feedback form", id)
		}
		return nil, errors.NewStoreError(err)
	}
	return session, nil
}

// SelectCategory switches the session's category and clears its fields.
func (s *FeedbackService) SelectCategory(ctx context.Context, id, category string) (*types.FormSession, error) {
	return s.mutate(ctx, id, func(fc *models.FormController) error {
		return fc.SelectCategory(types.FeedbackCategory(category))
	})
}

// UpdateField sets one field of the session's form.
func (s *FeedbackService) UpdateField(ctx context.Context, id, name, value string) (*types.FormSession, error) {
	return s.mutate(ctx, id, func(fc *models.FormController) error {
		return fc.UpdateField(name, value)
	})
}

// SubmitForm validates, encodes and attests the session's form. Attestation
// failures are reported in the session status, not as errors. Only one submit
// per session runs at a time across every replica sharing the store.
func (s *FeedbackService) SubmitForm(ctx context.Context, id string) (*types.FormSession, error) {
	if err := s.claimSubmit(ctx, id); err != nil {
		return nil, err
	}
	defer s.releaseSubmit(ctx, id)

	session, err := s.GetForm(ctx, id)
	if err != nil {
		return nil, err
	}
	fc := models.RestoreFormController(session.Snapshot, s.submitter, s.opts)

	// Persist the in-flight flag so readers see the form as submitting.
	fc.OnChange(func(snap types.FormSnapshot) {
		if !snap.Submitting {
			return
		}
		inflight := *session
		inflight.Snapshot = snap
		inflight.UpdatedAt = s.now().UTC()
		if err := s.store.Save(ctx, &inflight); err != nil {
			s.log.Warnw("Failed to persist in-flight form state", "session_id", id, "error", err)
		}
	})

	result, err := fc.Submit(ctx)
	if err != nil {
		return nil, err
	}

	// The request context may already be done after a long confirmation wait.
	saveCtx := context.WithoutCancel(ctx)
	session.Snapshot = fc.Snapshot()
	session.UpdatedAt = s.now().UTC()
	if err := s.store.Save(saveCtx, session); err != nil {
		return nil, errors.NewStoreError(err)
	}

	s.log.Infow("Feedback form submitted",
		"session_id", id,
		"category", session.Snapshot.Category,
		"outcome", result.Outcome,
	)
	return session, nil
}

// DiscardForm deletes a session. A form with a submission in flight cannot be discarded.
func (s *FeedbackService) DiscardForm(ctx context.Context, id string) error {
	if _, err := s.GetForm(ctx, id); err != nil {
		return err
	}
	if err := s.claimSubmit(ctx, id); err != nil {
		return err
	}
	defer s.releaseSubmit(ctx, id)

	if err := s.store.Delete(ctx, id); err != nil {
		return errors.NewStoreError(err)
	}
	s.log.Debugw("Feedback form discarded", "session_id", id)
	return nil
}

// Attest encodes and submits a complete form in one call. Amount may be left
// empty and is then attested as 0.
func (s *FeedbackService) Attest(ctx context.Context, req types.AttestFeedbackRequest) (types.SubmissionResult, error) {
	category, err := types.ParseFeedbackCategory(req.Category)
	if err != nil {
		return types.SubmissionResult{}, errors.ValidationFailed("Invalid feedback category", req.Category)
	}

	form := types.FormState{
		ID:         req.ID,
		ButtonName: req.ButtonName,
		Amount:     req.Amount,
		NotUseful:  req.NotUseful,
	}
	var missing []string
	for _, name := range types.RequiredFields(category) {
		if name == types.FieldAmount {
			continue
		}
		if v, _ := form.Value(name); strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return types.SubmissionResult{}, errors.ValidationFailed("Required fields are empty", strings.Join(missing, ", "))
	}

	payload, err := models.EncodePayload(category, form, s.opts)
	if err != nil {
		return models.FailureResult(err), nil
	}
	return s.submitter.Submit(ctx, payload), nil
}

// Schemas describes the two attestation schemas and the categories using them.
func (s *FeedbackService) Schemas() []types.SchemaDescriptor {
	feedbackSchema, feedbackUID := s.opts.SchemaFor(types.FeedbackPositive)
	notUsefulSchema, notUsefulUID := s.opts.SchemaFor(types.FeedbackNotUseful)
	return []types.SchemaDescriptor{
		{
			UID:        feedbackUID.Hex(),
			Schema:     feedbackSchema,
			Categories: []types.FeedbackCategory{types.FeedbackPositive, types.FeedbackNegative},
		},
		{
			UID:        notUsefulUID.Hex(),
			Schema:     notUsefulSchema,
			Categories: []types.FeedbackCategory{types.FeedbackNotUseful},
		},
	}
}

// GetAttestation reads an attestation and decodes its data when it uses a
// feedback schema.
func (s *FeedbackService) GetAttestation(ctx context.Context, uid string) (*types.AttestationRecord, error) {
	rec, err := s.reader.GetAttestation(ctx, uid)
	if err != nil {
		return nil, err
	}

	for _, d := range s.Schemas() {
		if !strings.EqualFold(d.UID, rec.Schema) {
			continue
		}
		data, err := hexutil.Decode(rec.Data)
		if err != nil {
			break
		}
		fields, err := models.DecodePayload(d.Schema, data)
		if err != nil {
			s.log.Warnw("Attestation data does not match its schema", "uid", uid, "error", err)
			break
		}
		rec.Fields = fields
		break
	}
	return rec, nil
}

func (s *FeedbackService) load(ctx context.Context, id string) (*types.FormSession, *models.FormController, error) {
	session, err := s.GetForm(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if session.Snapshot.Submitting {
		// The stored flag outlives its claim when a submit dies before the
		// final save. A free claim means nobody is submitting any more.
		if err := s.claimSubmit(ctx, id); err != nil {
			return nil, nil, err
		}
		s.releaseSubmit(ctx, id)
		s.log.Warnw("Clearing stale in-flight flag", "session_id", id)
	}
	return session, models.RestoreFormController(session.Snapshot, s.submitter, s.opts), nil
}

func (s *FeedbackService) claimSubmit(ctx context.Context, id string) error {
	ok, err := s.store.ClaimSubmit(ctx, id, s.claimTTL)
	if err != nil {
		return errors.NewStoreError(err)
	}
	if !ok {
		return models.SubmissionInProgress()
	}
	return nil
}

func (s *FeedbackService) releaseSubmit(ctx context.Context, id string) {
	if err := s.store.ReleaseSubmit(context.WithoutCancel(ctx), id); err != nil {
		s.log.Warnw("Failed to release submit claim", "session_id", id, "error", err)
	}
}

func (s *FeedbackService) mutate(ctx context.Context, id string, fn func(*models.FormController) error) (*types.FormSession, error) {
	session, fc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(fc); err != nil {
		return nil, err
	}

	session.Snapshot = fc.Snapshot()
	session.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, session); err != nil {
		return nil, errors.NewStoreError(err)
	}
	return session, nil
}
