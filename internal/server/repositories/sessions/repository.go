// Package sessions persists authenticated-session records. A session row is
// the revocation anchor for its bearer token: no row, no access.
package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) error
}
