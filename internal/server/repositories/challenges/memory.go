package challenges

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/common"
	"github.com/passman-project/passman/internal/server/models"
)

// MemoryRepository is an in-memory Repository for tests. Consume is guarded
// by the repository mutex, giving the same linearizable consumption the
// Postgres conditional update provides.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]models.ChallengeSession
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[uuid.UUID]models.ChallengeSession)}
}

func (r *MemoryRepository) Create(ctx context.Context, session *models.ChallengeSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[session.ID]; exists {
		return common.ErrDuplicate.WithMessage("challenge session %s already exists", session.ID)
	}
	r.sessions[session.ID] = *session
	return nil
}

func (r *MemoryRepository) Consume(ctx context.Context, id uuid.UUID, now time.Time) (*models.ChallengeSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok || session.Consumed || session.Expired(now) {
		return nil, common.ErrNotAuthenticated
	}
	session.Consumed = true
	r.sessions[id] = session
	return &session, nil
}

func (r *MemoryRepository) DeleteExpired(ctx context.Context, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, session := range r.sessions {
		if session.Expired(now) || session.Consumed {
			delete(r.sessions, id)
		}
	}
	return nil
}

func (r *MemoryRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, session := range r.sessions {
		if session.UserID == userID {
			delete(r.sessions, id)
		}
	}
	return nil
}
