package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/common"
	"github.com/passman-project/passman/internal/logging"
	"github.com/passman-project/passman/internal/server/auth"
	"github.com/passman-project/passman/internal/server/config"
	"github.com/passman-project/passman/internal/server/models"
	"github.com/passman-project/passman/internal/server/repositories/repomanager"
	"github.com/passman-project/passman/internal/suite"
)

// decoyDigest is the digest advertised on challenges for unknown users, so
// the response shape never reveals whether the user exists.
const decoyDigest = suite.Sha256

// Challenge is what BeginChallenge hands back to the client.
type Challenge struct {
	SessionID uuid.UUID
	DigestAlg suite.DigestAlgorithm
	Challenge []byte
}

// AuthService implements the challenge-response protocol and the lifecycle
// of authenticated sessions.
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	registry    *suite.Registry
	logger      logging.Logger

	jwtSecret         []byte
	challengeValidity time.Duration
	sessionValidity   time.Duration

	now func() time.Time
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, reg *suite.Registry, cfg *config.Config, logger logging.Logger) *AuthService {
	return &AuthService{
		db:                db,
		repomanager:       m,
		registry:          reg,
		logger:            logger.With("module", "authn"),
		jwtSecret:         []byte(cfg.SecretKey),
		challengeValidity: cfg.ChallengeValidityDuration,
		sessionValidity:   cfg.SessionValidityDuration,
		now:               time.Now,
	}
}

// BeginChallenge issues a single-use challenge bound to the user's
// registered key pair, under the client-chosen session id. For an unknown
// user it issues a decoy session that is indistinguishable from the outside
// and can never verify, so the endpoint does not act as a user-enumeration
// oracle.
func (s *AuthService) BeginChallenge(ctx context.Context, userID, sessionID uuid.UUID) (*Challenge, error) {
	if sessionID == uuid.Nil {
		return nil, common.ErrValidation.WithMessage("empty challenge session id")
	}

	digestAlg := decoyDigest
	subject := uuid.Nil

	user, err := s.repomanager.Users(s.db).Get(ctx, userID)
	switch {
	case err == nil:
		digestAlg = user.KDFBaseDigestAlg
		subject = user.ID
	case errors.Is(err, common.ErrNotFound):
		// Fall through with the decoy subject.
	default:
		return nil, err
	}

	digest, err := s.registry.Digest(digestAlg)
	if err != nil {
		// The registered digest disappeared from the registry; keep the
		// response shape anyway.
		digestAlg = decoyDigest
		if digest, err = s.registry.Digest(digestAlg); err != nil {
			return nil, err
		}
	}

	now := s.now()
	session := &models.ChallengeSession{
		ID:        sessionID,
		UserID:    subject,
		Challenge: common.GenerateRandByteArray(digest.Size()),
		DigestAlg: digestAlg,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.challengeValidity),
	}
	if err := s.repomanager.Challenges(s.db).Create(ctx, session); err != nil {
		return nil, err
	}

	return &Challenge{SessionID: session.ID, DigestAlg: session.DigestAlg, Challenge: session.Challenge}, nil
}

// FulfillChallenge verifies a signed challenge response and mints an
// authenticated session. The challenge session is consumed atomically before
// verification, success or failure: a consumed or expired session fails
// every subsequent call, including concurrent racing ones.
func (s *AuthService) FulfillChallenge(ctx context.Context, sessionID uuid.UUID, signature []byte) (string, *models.Session, error) {
	challenge, err := s.repomanager.Challenges(s.db).Consume(ctx, sessionID, s.now())
	if err != nil {
		if errors.Is(err, common.ErrNotAuthenticated) {
			return "", nil, common.ErrNotAuthenticated
		}
		return "", nil, err
	}

	if challenge.UserID == uuid.Nil {
		// Decoy session for an unknown user.
		return "", nil, common.ErrNotAuthenticated
	}

	user, err := s.repomanager.Users(s.db).Get(ctx, challenge.UserID)
	if err != nil {
		return "", nil, common.ErrNotAuthenticated
	}

	cipher, err := s.registry.Asymmetric(user.KeyPairAlg)
	if err != nil {
		return "", nil, err
	}
	if err := cipher.Verify(user.PubKey, challenge.Challenge, signature); err != nil {
		s.logger.Warn(ctx, "challenge verification failed", "user", user.ID)
		return "", nil, common.ErrNotAuthenticated
	}

	now := s.now()
	session := &models.Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.sessionValidity),
	}
	if err := s.repomanager.Sessions(s.db).Create(ctx, session); err != nil {
		return "", nil, err
	}

	token, err := auth.GenerateSessionToken(session.ID, session.UserID, s.jwtSecret, s.sessionValidity)
	if err != nil {
		return "", nil, common.ErrInternal
	}
	return token, session, nil
}

// ResolveSession validates a bearer token and returns the authenticated
// user. Expiry is checked lazily here; an expired row is removed on sight.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (uuid.UUID, error) {
	sessionID, userID, err := auth.ParseSessionToken(token, s.jwtSecret)
	if err != nil {
		return uuid.Nil, common.ErrNotAuthenticated
	}

	repo := s.repomanager.Sessions(s.db)
	session, err := repo.Get(ctx, sessionID)
	if err != nil {
		return uuid.Nil, common.ErrNotAuthenticated
	}
	if session.UserID != userID {
		return uuid.Nil, common.ErrNotAuthenticated
	}
	if session.Expired(s.now()) {
		_ = repo.Delete(ctx, sessionID)
		return uuid.Nil, common.ErrNotAuthenticated
	}
	return session.UserID, nil
}

// Logout revokes the session behind the token. Revoking an already-revoked
// token is not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	sessionID, _, err := auth.ParseSessionToken(token, s.jwtSecret)
	if err != nil {
		return common.ErrNotAuthenticated
	}
	return s.repomanager.Sessions(s.db).Delete(ctx, sessionID)
}

// RevokeUserSessions drops every live session of the user. Called on
// auth-material updates and account deletion.
func (s *AuthService) RevokeUserSessions(ctx context.Context, userID uuid.UUID) error {
	return s.repomanager.Sessions(s.db).DeleteByUser(ctx, userID)
}

// Sweep garbage-collects expired challenge and session rows. Correctness
// does not depend on it; it is memory hygiene.
func (s *AuthService) Sweep(ctx context.Context) error {
	now := s.now()
	if err := s.repomanager.Challenges(s.db).DeleteExpired(ctx, now); err != nil {
		return err
	}
	return s.repomanager.Sessions(s.db).DeleteExpired(ctx, now)
}
