// Package items persists item metadata and envelope key records.
package items

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/envelope"
	"github.com/passman-project/passman/internal/server/models"
)

// KeySet is an item's envelope record: the key list plus its wrapping
// entries, tagged with a version for optimistic concurrency. A rewrap racing
// an unwrap can therefore never produce a mismatched pairing: writers must
// present the version they read, readers always get one consistent version.
type KeySet struct {
	Keys    envelope.ItemKeys
	Infos   map[uuid.UUID]envelope.ItemKeyInfo
	Version int64
}

type Repository interface {
	GetMeta(ctx context.Context, id uuid.UUID) (*models.Item, error)
	UpsertMeta(ctx context.Context, item *models.Item) error
	TouchAccessed(ctx context.Context, id uuid.UUID, now time.Time) error

	// Delete removes the item's metadata and key records.
	Delete(ctx context.Context, id uuid.UUID) error

	GetKeys(ctx context.Context, itemID uuid.UUID) (*KeySet, error)

	// PutKeys writes the key set if expectedVersion matches the stored
	// version (0 means "create"). On mismatch it fails with
	// common.ErrVersionConflict and changes nothing. Returns the new
	// version.
	PutKeys(ctx context.Context, itemID uuid.UUID, set *KeySet, expectedVersion int64) (int64, error)

	DeleteKeys(ctx context.Context, itemID uuid.UUID) error
}
