package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/suite"
)

// ChallengeSession is one ephemeral challenge attempt. A session satisfies
// at most one fulfill call: consumption is recorded atomically whether the
// signature verifies or not, so there are no retries on the same challenge.
//
// A session with a nil UserID is a decoy issued for an unknown address; it
// looks identical to a real one from outside and can never verify.
type ChallengeSession struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Challenge []byte
	DigestAlg suite.DigestAlgorithm
	IssuedAt  time.Time
	ExpiresAt time.Time
	Consumed  bool
}

// Expired reports whether the session is past its expiry at the given time.
func (c *ChallengeSession) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
