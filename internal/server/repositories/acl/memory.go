package acl

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/server/models"
)

type rowKey struct {
	subject uuid.UUID
	action  models.Action
}

// MemoryRepository keeps rules in per-object maps behind a copy-on-write
// swap: Replace builds the new rule set aside and installs it under the
// lock, so a reader racing a Replace observes either the fully old or the
// fully new set.
type MemoryRepository struct {
	mu      sync.RWMutex
	objects map[uuid.UUID]map[rowKey]models.AclMode
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{objects: make(map[uuid.UUID]map[rowKey]models.AclMode)}
}

func (r *MemoryRepository) Rows(ctx context.Context, object, subject uuid.UUID) ([]models.AclRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []models.AclRow
	for key, mode := range r.objects[object] {
		if key.subject == subject {
			result = append(result, models.AclRow{Object: object, Subject: subject, Action: key.action, Mode: mode})
		}
	}
	return result, nil
}

func (r *MemoryRepository) ObjectRows(ctx context.Context, object uuid.UUID) ([]models.AclRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []models.AclRow
	for key, mode := range r.objects[object] {
		result = append(result, models.AclRow{Object: object, Subject: key.subject, Action: key.action, Mode: mode})
	}
	return result, nil
}

func (r *MemoryRepository) Upsert(ctx context.Context, row models.AclRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rules, ok := r.objects[row.Object]
	if !ok {
		rules = make(map[rowKey]models.AclMode)
		r.objects[row.Object] = rules
	}
	rules[rowKey{subject: row.Subject, action: row.Action}] = row.Mode
	return nil
}

func (r *MemoryRepository) Replace(ctx context.Context, object uuid.UUID, rows []models.AclRow) error {
	rules := make(map[rowKey]models.AclMode, len(rows))
	for _, row := range rows {
		rules[rowKey{subject: row.Subject, action: row.Action}] = row.Mode
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[object] = rules
	return nil
}

func (r *MemoryRepository) DeleteByObject(ctx context.Context, object uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.objects, object)
	return nil
}

func (r *MemoryRepository) DeleteBySubject(ctx context.Context, subject uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for object, rules := range r.objects {
		for key := range rules {
			if key.subject == subject {
				delete(rules, key)
			}
		}
		if len(rules) == 0 {
			delete(r.objects, object)
		}
	}
	return nil
}
