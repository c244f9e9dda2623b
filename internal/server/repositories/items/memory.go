package items

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/common"
	"github.com/passman-project/passman/internal/envelope"
	"github.com/passman-project/passman/internal/server/models"
)

// MemoryRepository is an in-memory Repository for tests. Key sets are stored
// as immutable snapshots, so concurrent readers never observe a half-written
// rewrap; PutKeys does a mutex-guarded compare-and-set on the version.
type MemoryRepository struct {
	mu    sync.RWMutex
	metas map[uuid.UUID]models.Item
	keys  map[uuid.UUID]*KeySet
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		metas: make(map[uuid.UUID]models.Item),
		keys:  make(map[uuid.UUID]*KeySet),
	}
}

func (r *MemoryRepository) GetMeta(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.metas[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &item, nil
}

func (r *MemoryRepository) UpsertMeta(ctx context.Context, item *models.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metas[item.ID] = *item
	return nil
}

func (r *MemoryRepository) TouchAccessed(ctx context.Context, id uuid.UUID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.metas[id]
	if !ok {
		return nil
	}
	item.AccessedAt = now
	r.metas[id] = item
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.metas, id)
	delete(r.keys, id)
	return nil
}

// GetKeys returns a copy of the stored set so a caller mutating the result
// (or abandoning a rejected rewrite) never alters the stored snapshot.
func (r *MemoryRepository) GetKeys(ctx context.Context, itemID uuid.UUID) (*KeySet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.keys[itemID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return cloneKeySet(set), nil
}

func (r *MemoryRepository) PutKeys(ctx context.Context, itemID uuid.UUID, set *KeySet, expectedVersion int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, exists := r.keys[itemID]
	switch {
	case expectedVersion == 0 && exists:
		return 0, common.ErrVersionConflict
	case expectedVersion != 0 && (!exists || current.Version != expectedVersion):
		return 0, common.ErrVersionConflict
	}

	snapshot := cloneKeySet(set)
	snapshot.Version = expectedVersion + 1
	r.keys[itemID] = snapshot
	return snapshot.Version, nil
}

func cloneKeySet(set *KeySet) *KeySet {
	out := &KeySet{
		Keys:    set.Keys,
		Infos:   make(map[uuid.UUID]envelope.ItemKeyInfo, len(set.Infos)),
		Version: set.Version,
	}
	out.Keys.KeyRefs = append([]uuid.UUID(nil), set.Keys.KeyRefs...)
	for id, info := range set.Infos {
		out.Infos[id] = info
	}
	return out
}

func (r *MemoryRepository) DeleteKeys(ctx context.Context, itemID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.keys, itemID)
	return nil
}
