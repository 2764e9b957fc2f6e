package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/NomadCrew/feedback-attestation/config"
	"github.com/NomadCrew/feedback-attestation/errors"
	"github.com/NomadCrew/feedback-attestation/logger"
	"github.com/NomadCrew/feedback-attestation/models"
	"github.com/NomadCrew/feedback-attestation/pkg/eas"
	"github.com/NomadCrew/feedback-attestation/pkg/wallet"
	"github.com/NomadCrew/feedback-attestation/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

// AttestationService submits encoded feedback to the EAS registry using the
// configured wallet. Each call is one attempt with one outcome.
type AttestationService struct {
	provider       wallet.Provider
	registry       eas.Registry
	gasLimit       uint64
	confirmTimeout time.Duration
	log            *zap.SugaredLogger
	metrics        *attestationMetrics
}

var _ models.Submitter = (*AttestationService)(nil)

// NewAttestationService wires a submitter. A nil provider is allowed: every
// submission then fails as provider-unavailable.
func NewAttestationService(provider wallet.Provider, registry eas.Registry, cfg config.AttestationConfig) *AttestationService {
	return &AttestationService{
		provider:       provider,
		registry:       registry,
		gasLimit:       cfg.GasLimit,
		confirmTimeout: cfg.ConfirmationTimeout(),
		log:            logger.GetLogger(),
		metrics:        getAttestationMetrics(),
	}
}

// Submit requests an account, signs and sends attest(), then waits for the
// receipt. Any error ends the attempt and is returned as a failure result.
func (s *AttestationService) Submit(ctx context.Context, payload types.EncodedPayload) types.SubmissionResult {
	start := time.Now()

	result, err := s.submit(ctx, payload)
	if err != nil {
		result = models.FailureResult(err)
		s.log.Warnw("Attestation failed",
			"category", payload.Category,
			"schema_uid", payload.SchemaUID.Hex(),
			"kind", result.Kind,
			"error", err,
		)
	} else {
		s.log.Infow("Attestation created",
			"category", payload.Category,
			"uid", result.AttestationID,
			"tx_hash", result.TxHash,
		)
	}

	s.metrics.submissions.WithLabelValues(string(payload.Category), string(result.Outcome)).Inc()
	s.metrics.duration.WithLabelValues(string(result.Outcome)).Observe(time.Since(start).Seconds())
	return result
}

func (s *AttestationService) submit(ctx context.Context, payload types.EncodedPayload) (types.SubmissionResult, error) {
	if s.provider == nil {
		return types.SubmissionResult{}, errors.ProviderUnavailable("no wallet provider configured")
	}

	accounts, err := s.provider.RequestAccounts(ctx)
	if err != nil {
		return types.SubmissionResult{}, errors.AccountRequestDenied(err)
	}
	if len(accounts) == 0 {
		return types.SubmissionResult{}, errors.AccountRequestDenied(wallet.ErrNoAccounts)
	}
	account := accounts[0]

	signer, err := s.provider.Signer(ctx, account)
	if err != nil {
		return types.SubmissionResult{}, errors.AccountRequestDenied(err)
	}
	signer.GasLimit = s.gasLimit

	pending, err := s.registry.Connect(signer).Attest(ctx, eas.AttestationRequest{
		Schema: payload.SchemaUID,
		Data: eas.AttestationRequestData{
			Recipient:      account,
			ExpirationTime: 0,
			Revocable:      false,
			Data:           payload.Data,
		},
	})
	if err != nil {
		return types.SubmissionResult{}, errors.SubmissionRejected(err)
	}

	waitCtx := ctx
	if s.confirmTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.confirmTimeout)
		defer cancel()
	}

	uid, err := pending.Wait(waitCtx)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
			return types.SubmissionResult{}, errors.ConfirmationTimeout(fmt.Errorf("tx %s: %w", pending.TxHash().Hex(), err))
		}
		return types.SubmissionResult{}, errors.SubmissionRejected(err)
	}

	return types.SubmissionResult{
		Outcome:       types.SubmissionSucceeded,
		AttestationID: uid.Hex(),
		TxHash:        pending.TxHash().Hex(),
	}, nil
}

// GetAttestation reads an attestation back from the registry.
func (s *AttestationService) GetAttestation(ctx context.Context, uid string) (*types.AttestationRecord, error) {
	if !isHexHash(uid) {
		return nil, errors.ValidationFailed("Invalid attestation UID", uid)
	}

	att, err := s.registry.GetAttestation(ctx, common.HexToHash(uid))
	if err != nil {
		return nil, errors.Wrap(err, errors.ServerError, "Failed to read attestation")
	}
	if att.Uid == ([32]byte{}) {
		return nil, errors.NotFound("Attestation", uid)
	}

	return &types.AttestationRecord{
		UID:            common.Hash(att.Uid).Hex(),
		Schema:         common.Hash(att.Schema).Hex(),
		Time:           att.Time,
		ExpirationTime: att.ExpirationTime,
		RevocationTime: att.RevocationTime,
		RefUID:         common.Hash(att.RefUID).Hex(),
		Recipient:      att.Recipient.Hex(),
		Attester:       att.Attester.Hex(),
		Revocable:      att.Revocable,
		Data:           hexutil.Encode(att.Data),
	}, nil
}

func isHexHash(s string) bool {
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == common.HashLength
}
