// Package challenges persists ephemeral challenge sessions.
package challenges

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/server/models"
)

type Repository interface {
	// Create stores a new session under its client-chosen id. An id that
	// is already present yields common.ErrDuplicate; the stored session
	// is never overwritten.
	Create(ctx context.Context, session *models.ChallengeSession) error

	// Consume atomically marks the session consumed and returns it, but
	// only if it was unconsumed and unexpired at now. Concurrent Consume
	// calls on the same id cannot both succeed; losers get
	// common.ErrNotAuthenticated.
	Consume(ctx context.Context, id uuid.UUID, now time.Time) (*models.ChallengeSession, error)

	// DeleteExpired garbage-collects sessions past their expiry. Purely
	// memory hygiene; correctness relies on Consume's expiry check.
	DeleteExpired(ctx context.Context, now time.Time) error

	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}
