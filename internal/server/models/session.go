package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is the server-side record behind an authenticated bearer token.
// The token itself is a signed JWT whose jti is the session ID; deleting the
// row revokes the token regardless of its remaining JWT lifetime.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
