package challenges

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/common"
	"github.com/passman-project/passman/internal/dbx"
	"github.com/passman-project/passman/internal/server/models"
	"github.com/passman-project/passman/internal/suite"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create stores a new challenge session. The id is chosen by the client, so
// a colliding id is a conflict, never an overwrite of the existing session.
func (r *PostgresRepository) Create(ctx context.Context, session *models.ChallengeSession) error {
	query := `INSERT INTO challenge_sessions (id, user_id, challenge, digest_alg, issued_at, expires_at, consumed)
	          VALUES ($1, $2, $3, $4, $5, $6, false)
	          ON CONFLICT (id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query,
		session.ID, session.UserID, session.Challenge, string(session.DigestAlg),
		session.IssuedAt, session.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrDuplicate.WithMessage("challenge session %s already exists", session.ID)
	}
	return nil
}

// Consume relies on a conditional UPDATE for linearizability: the row
// transitions to consumed exactly once, so racing callers cannot both see an
// unconsumed session.
func (r *PostgresRepository) Consume(ctx context.Context, id uuid.UUID, now time.Time) (*models.ChallengeSession, error) {
	query := `UPDATE challenge_sessions
	          SET consumed = true
	          WHERE id = $1 AND consumed = false AND expires_at > $2
	          RETURNING user_id, challenge, digest_alg, issued_at, expires_at`

	session := &models.ChallengeSession{ID: id, Consumed: true}
	var digestAlg string
	err := r.db.QueryRowContext(ctx, query, id, now).Scan(
		&session.UserID, &session.Challenge, &digestAlg, &session.IssuedAt, &session.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotAuthenticated
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	session.DigestAlg = suite.DigestAlgorithm(digestAlg)
	return session, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM challenge_sessions WHERE expires_at <= $1 OR consumed`, now)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM challenge_sessions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
