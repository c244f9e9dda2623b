package users

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/common"
	"github.com/passman-project/passman/internal/server/models"
	"github.com/passman-project/passman/internal/suite"
)

// MemoryRepository is an in-memory Repository used by tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]models.UserRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[uuid.UUID]models.UserRecord)}
}

func (r *MemoryRepository) Create(ctx context.Context, user *models.UserRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.CreatedAt = time.Now()
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (*models.UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &user, nil
}

func (r *MemoryRepository) GetByAddressHash(ctx context.Context, alg suite.DigestAlgorithm, hash []byte) (*models.UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.AddressDigestAlg == alg && bytes.Equal(user.AddressHash, hash) {
			u := user
			return &u, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *MemoryRepository) UpdateAuth(ctx context.Context, id uuid.UUID, auth *models.AuthMaterial) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return common.ErrNotFound
	}
	user.KDFBaseDigestAlg = auth.KDFBaseDigestAlg
	user.KeyPairAlg = auth.AuthKeyAlg
	user.PubKey = auth.PubKey
	user.PrivKeyIV = auth.PrivKeyIV
	user.SealedPrivKey = auth.SecuredPrivateKey
	r.users[id] = user
	return nil
}

func (r *MemoryRepository) UpdateRootInfo(ctx context.Context, id uuid.UUID, rootObject, rootKey uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return common.ErrNotFound
	}
	user.RootObjectID = rootObject
	user.RootKeyID = rootKey
	r.users[id] = user
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.users, id)
	return nil
}
