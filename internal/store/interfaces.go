// Package store keeps form sessions between HTTP requests.
package store

import (
	"context"
	"time"

	"github.com/NomadCrew/feedback-attestation/types"
)

// FormStore persists form sessions for a limited time.
type FormStore interface {
	Save(ctx context.Context, session *types.FormSession) error
	// Get returns ErrNotFound for unknown or expired sessions.
	Get(ctx context.Context, id string) (*types.FormSession, error)
	Delete(ctx context.Context, id string) error
	// ClaimSubmit atomically marks a session as having a submission in flight.
	// It returns false when another claim on the session has not been released
	// or expired. The claim lapses after ttl so a crashed holder cannot lock
	// the session forever.
	ClaimSubmit(ctx context.Context, id string, ttl time.Duration) (bool, error)
	// ReleaseSubmit drops the claim. Releasing an unclaimed session is a no-op.
	ReleaseSubmit(ctx context.Context, id string) error
}
