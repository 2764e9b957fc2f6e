package handlers

import (
	"context"

	"github.com/NomadCrew/feedback-attestation/types"
	"github.com/stretchr/testify/mock"
)

// MockSubmitter stands in for the attestation service behind a real FeedbackService.
type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Submit(ctx context.Context, payload types.EncodedPayload) types.SubmissionResult {
	args := m.Called(ctx, payload)
	return args.Get(0).(types.SubmissionResult)
}

// MockAttestationReader stands in for on-chain attestation lookups.
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

type MockHealthService struct {
	mock.Mock
}

func (m *MockHealthService) CheckHealth(ctx context.Context) types.HealthCheck {
	args := m.Called(ctx)
	return args.Get(0).(types.HealthCheck)
}
