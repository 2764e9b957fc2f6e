package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/NomadCrew/feedback-attestation/config"
	"github.com/NomadCrew/feedback-attestation/errors"
	"github.com/NomadCrew/feedback-attestation/internal/store"
	"github.com/NomadCrew/feedback-attestation/models"
	"github.com/NomadCrew/feedback-attestation/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Submit(ctx context.Context, payload types.EncodedPayload) types.SubmissionResult {
	args := m.Called(ctx, payload)
	return args.Get(0).(types.SubmissionResult)
}

type MockAttestationReader struct {
	mock.Mock
}

func (m *MockAttestationReader) GetAttestation(ctx context.Context, uid string) (*types.AttestationRecord, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.AttestationRecord), args.Error(1)
}

var testEncodeOpts = models.EncodeOptions{
	FeedbackSchemaUID:  common.HexToHash(config.DefaultFeedbackSchemaUID),
	NotUsefulSchemaUID: common.HexToHash(config.DefaultNotUsefulSchemaUID),
}

func newTestFeedbackService(submitter *MockSubmitter, reader *MockAttestationReader) (*FeedbackService, *store.MemoryFormStore) {
	formStore := store.NewMemoryFormStore(time.Hour)
	return NewFeedbackService(formStore, submitter, reader, testEncodeOpts), formStore
}

func TestFeedbackService_FormLifecycle(t *testing.T) {
	submitter := &MockSubmitter{}
	submitter.On("Submit", mock.Anything, mock.Anything).Return(types.SubmissionResult{
		Outcome:       types.SubmissionSucceeded,
		AttestationID: "0xabc",
		TxHash:        "0xdef",
	}).Once()
	svc, _ := newTestFeedbackService(submitter, nil)
	ctx := context.Background()

	session, err := svc.CreateForm(ctx, "positive")
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.True(t, session.Snapshot.Visible)

	for name, value := range map[string]string{"id": "1", "buttonName": "Dashboard", "amount": "50"} {
		_, err = svc.UpdateField(ctx, session.ID, name, value)
		require.NoError(t, err)
	}

	got, err := svc.GetForm(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, types.FormState{ID: "1", ButtonName: "Dashboard", Amount: "50"}, got.Snapshot.Form)

	submitted, err := svc.SubmitForm(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, submitted.Snapshot.Visible)
	assert.False(t, submitted.Snapshot.Submitting)
	assert.Equal(t, "Attestation created successfully. UID: 0xabc", submitted.Snapshot.Status)

	stored, err := svc.GetForm(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, submitted.Snapshot.Status, stored.Snapshot.Status)
	submitter.AssertExpectations(t)
}

func TestFeedbackService_SelectCategoryResets(t *testing.T) {
	svc, _ := newTestFeedbackService(&MockSubmitter{}, nil)
	ctx := context.Background()

	session, err := svc.CreateForm(ctx, "negative")
	require.NoError(t, err)
	_, err = svc.UpdateField(ctx, session.ID, "id", "7")
	require.NoError(t, err)

	updated, err := svc.SelectCategory(ctx, session.ID, "notUseful")
	require.NoError(t, err)
	assert.Equal(t, types.FeedbackNotUseful, updated.Snapshot.Category)
	assert.Equal(t, types.FormState{}, updated.Snapshot.Form)
}

func TestFeedbackService_Errors(t *testing.T) {
	svc, formStore := newTestFeedbackService(&MockSubmitter{}, nil)
	ctx := context.Background()

	_, err := svc.CreateForm(ctx, "meh")
	assert.True(t, errors.IsType(err, errors.ValidationError))

	_, err = svc.GetForm(ctx, "missing")
	assert.True(t, errors.IsType(err, errors.NotFoundError))

	session, err := svc.CreateForm(ctx, "positive")
	require.NoError(t, err)

	_, err = svc.UpdateField(ctx, session.ID, "colour", "red")
	assert.True(t, errors.IsType(err, errors.ValidationError))

	_, err = svc.SubmitForm(ctx, session.ID)
	assert.True(t, errors.IsType(err, errors.ValidationError))

	// another replica holds the submit claim
	session.Snapshot.Submitting = true
	require.NoError(t, formStore.Save(ctx, session))
	claimed, err := formStore.ClaimSubmit(ctx, session.ID, time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	for _, err := range []error{
		func() error { _, err := svc.UpdateField(ctx, session.ID, "id", "1"); return err }(),
		func() error { _, err := svc.SubmitForm(ctx, session.ID); return err }(),
		svc.DiscardForm(ctx, session.ID),
	} {
		appErr, ok := errors.As(err)
		require.True(t, ok)
		assert.Equal(t, "submission_in_progress", appErr.Code)
	}
}

func TestFeedbackService_SubmitPersistsInFlightState(t *testing.T) {
	submitter := &MockSubmitter{}
	svc, formStore := newTestFeedbackService(submitter, nil)
	ctx := context.Background()

	session, err := svc.CreateForm(ctx, "notUseful")
	require.NoError(t, err)
	_, err = svc.UpdateField(ctx, session.ID, "id", "2")
	require.NoError(t, err)
	_, err = svc.UpdateField(ctx, session.ID, "notUseful", "Settings page")
	require.NoError(t, err)

	submitter.On("Submit", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		inflight, err := formStore.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.True(t, inflight.Snapshot.Submitting)
	}).Return(models.FailureResult(errors.ProviderUnavailable("no wallet provider configured"))).Once()

	submitted, err := svc.SubmitForm(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Error creating attestation: Wallet provider is not available: no wallet provider configured", submitted.Snapshot.Status)
	assert.False(t, submitted.Snapshot.Visible)
}

func newCompleteForm(t *testing.T, svc *FeedbackService) *types.FormSession {
	t.Helper()
	ctx := context.Background()
	session, err := svc.CreateForm(ctx, "positive")
	require.NoError(t, err)
	for name, value := range map[string]string{"id": "4", "buttonName": "Checkout", "amount": "12"} {
		session, err = svc.UpdateField(ctx, session.ID, name, value)
		require.NoError(t, err)
	}
	return session
}

func TestFeedbackService_ConcurrentSubmitAttestsOnce(t *testing.T) {
	submitter := &MockSubmitter{}
	svc, _ := newTestFeedbackService(submitter, nil)
	session := newCompleteForm(t, svc)

	entered := make(chan struct{})
	release := make(chan struct{})
	submitter.On("Submit", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		close(entered)
		<-release
	}).Return(types.SubmissionResult{Outcome: types.SubmissionSucceeded, AttestationID: "0x4"}).Once()

	start := make(chan struct{})
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			<-start
			_, err := svc.SubmitForm(context.Background(), session.ID)
			results <- err
		}()
	}
	close(start)

	// The winner is parked in the submitter, so the first result is the loser's.
	err := <-results
	appErr, ok := errors.As(err)
	require.True(t, ok, "expected submission_in_progress, got %v", err)
	assert.Equal(t, "submission_in_progress", appErr.Code)

	<-entered
	close(release)
	assert.NoError(t, <-results)
	submitter.AssertNumberOfCalls(t, "Submit", 1)
}

// resultSaveFailingStore fails the save that records a submission outcome.
type resultSaveFailingStore struct {
	*store.MemoryFormStore
}

func (s *resultSaveFailingStore) Save(ctx context.Context, session *types.FormSession) error {
	if session.Snapshot.Result != nil {
		return fmt.Errorf("connection reset by peer")
	}
	return s.MemoryFormStore.Save(ctx, session)
}

func TestFeedbackService_FailedFinalSaveDoesNotLockSession(t *testing.T) {
	submitter := &MockSubmitter{}
	submitter.On("Submit", mock.Anything, mock.Anything).
		Return(types.SubmissionResult{Outcome: types.SubmissionSucceeded, AttestationID: "0x5"}).Once()

	memory := store.NewMemoryFormStore(time.Hour)
	svc := NewFeedbackService(&resultSaveFailingStore{memory}, submitter, nil, testEncodeOpts)
	session := newCompleteForm(t, svc)
	ctx := context.Background()

	_, err := svc.SubmitForm(ctx, session.ID)
	assert.True(t, errors.IsType(err, errors.StoreError))

	stored, err := memory.Get(ctx, session.ID)
	require.NoError(t, err)
	require.True(t, stored.Snapshot.Submitting, "in-flight flag was persisted before the failure")

	// The claim was released, so the stale flag does not block the user.
	updated, err := svc.SelectCategory(ctx, session.ID, "notUseful")
	require.NoError(t, err)
	assert.False(t, updated.Snapshot.Submitting)
	assert.Equal(t, types.FeedbackNotUseful, updated.Snapshot.Category)

	claimed, err := memory.ClaimSubmit(ctx, session.ID, time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestFeedbackService_SubmitReleasesClaim(t *testing.T) {
	submitter := &MockSubmitter{}
	submitter.On("Submit", mock.Anything, mock.Anything).
		Return(models.FailureResult(errors.ProviderUnavailable("no wallet provider configured"))).Twice()
	svc, _ := newTestFeedbackService(submitter, nil)
	ctx := context.Background()
	session := newCompleteForm(t, svc)

	_, err := svc.SubmitForm(ctx, session.ID)
	require.NoError(t, err)

	// a validation failure releases the claim too
	_, err = svc.SelectCategory(ctx, session.ID, "positive")
	require.NoError(t, err)
	_, err = svc.SubmitForm(ctx, session.ID)
	assert.True(t, errors.IsType(err, errors.ValidationError))

	session = newCompleteForm(t, svc)
	_, err = svc.SubmitForm(ctx, session.ID)
	require.NoError(t, err)
	submitter.AssertExpectations(t)
}

func TestFeedbackService_DiscardForm(t *testing.T) {
	svc, _ := newTestFeedbackService(&MockSubmitter{}, nil)
	ctx := context.Background()

	session, err := svc.CreateForm(ctx, "negative")
	require.NoError(t, err)
	require.NoError(t, svc.DiscardForm(ctx, session.ID))

	_, err = svc.GetForm(ctx, session.ID)
	assert.True(t, errors.IsType(err, errors.NotFoundError))
	assert.True(t, errors.IsType(svc.DiscardForm(ctx, session.ID), errors.NotFoundError))
}

func TestFeedbackService_Attest(t *testing.T) {
	submitter := &MockSubmitter{}
	svc, _ := newTestFeedbackService(submitter, nil)
	ctx := context.Background()

	submitter.On("Submit", mock.Anything, mock.MatchedBy(func(p types.EncodedPayload) bool {
		fields, err := models.DecodePayload(p.Schema, p.Data)
		return err == nil && fields["amount"] == "0" && fields["buttonName"] == "Home"
	})).Return(types.SubmissionResult{Outcome: types.SubmissionSucceeded, AttestationID: "0x3"}).Once()

	result, err := svc.Attest(ctx, types.AttestFeedbackRequest{Category: "positive", ID: "3", ButtonName: "Home"})
	require.NoError(t, err)
	assert.True(t, result.Succeeded())

	_, err = svc.Attest(ctx, types.AttestFeedbackRequest{Category: "notUseful", ID: "3"})
	assert.True(t, errors.IsType(err, errors.ValidationError))

	_, err = svc.Attest(ctx, types.AttestFeedbackRequest{Category: "bogus", ID: "3"})
	assert.True(t, errors.IsType(err, errors.ValidationError))

	result, err = svc.Attest(ctx, types.AttestFeedbackRequest{Category: "notUseful", ID: "x", NotUseful: "Settings"})
	require.NoError(t, err)
	assert.Equal(t, string(errors.EncodingFaultError), result.Kind)

	submitter.AssertExpectations(t)
}

func TestFeedbackService_Schemas(t *testing.T) {
	svc, _ := newTestFeedbackService(&MockSubmitter{}, nil)
	schemas := svc.Schemas()
	require.Len(t, schemas, 2)
	assert.Equal(t, config.DefaultFeedbackSchemaUID, schemas[0].UID)
	assert.Equal(t, "uint256 id, string buttonName, uint256 amount", schemas[0].Schema)
	assert.Equal(t, config.DefaultNotUsefulSchemaUID, schemas[1].UID)
	assert.Equal(t, "uint256 id, string notUseful", schemas[1].Schema)
}

func TestFeedbackService_GetAttestationDecodesFields(t *testing.T) {
	payload, err := models.EncodePayload(types.FeedbackNotUseful, types.FormState{ID: "2", NotUseful: "Settings page"}, testEncodeOpts)
	require.NoError(t, err)

	reader := &MockAttestationReader{}
	reader.On("GetAttestation", mock.Anything, "0x01").Return(&types.AttestationRecord{
		UID:    "0x01",
		Schema: config.DefaultNotUsefulSchemaUID,
		Data:   hexutil.Encode(payload.Data),
	}, nil)
	reader.On("GetAttestation", mock.Anything, "0x02").Return(&types.AttestationRecord{
		UID:    "0x02",
		Schema: common.HexToHash("0x99").Hex(),
		Data:   "0x00",
	}, nil)
	reader.On("GetAttestation", mock.Anything, "0x03").Return(nil, errors.NotFound("Attestation", "0x03"))

	svc, _ := newTestFeedbackService(&MockSubmitter{}, reader)

	rec, err := svc.GetAttestation(context.Background(), "0x01")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"id": "2", "notUseful": "Settings page"}, rec.Fields)

	rec, err = svc.GetAttestation(context.Background(), "0x02")
	require.NoError(t, err)
	assert.Nil(t, rec.Fields)

	_, err = svc.GetAttestation(context.Background(), "0x03")
	assert.True(t, errors.IsType(err, errors.NotFoundError))
}
