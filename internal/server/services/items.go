package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/common"
	"github.com/passman-project/passman/internal/dbx"
	"github.com/passman-project/passman/internal/envelope"
	"github.com/passman-project/passman/internal/logging"
	"github.com/passman-project/passman/internal/server/blob"
	"github.com/passman-project/passman/internal/server/models"
	"github.com/passman-project/passman/internal/server/repositories/items"
	"github.com/passman-project/passman/internal/server/repositories/repomanager"
	"github.com/passman-project/passman/internal/suite"
)

// ItemService handles encrypted item content and its envelope key records.
// Every method authorizes the actor before any key material or blob is
// touched; a denied actor gets the same answer as a missing item.
type ItemService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	registry    *suite.Registry
	acl         *AclService
	blobs       blob.Store
	logger      logging.Logger
	now         func() time.Time
}

func NewItemService(db *sql.DB, m repomanager.RepositoryManager, reg *suite.Registry, acl *AclService, blobs blob.Store, logger logging.Logger) *ItemService {
	return &ItemService{
		db:          db,
		repomanager: m,
		registry:    reg,
		acl:         acl,
		blobs:       blobs,
		logger:      logger.With("module", "items"),
		now:         time.Now,
	}
}

// require authorizes the actor for action on the item and hides denials
// behind ErrNotFound so an unauthorized caller cannot probe which ids exist.
func (s *ItemService) require(ctx context.Context, actor uuid.UUID, action models.Action, itemID uuid.UUID) error {
	ok, err := s.acl.Authorize(ctx, actor, action, itemID)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrNotFound
	}
	return nil
}

// GetKeys returns the item's versioned envelope record.
func (s *ItemService) GetKeys(ctx context.Context, actor, itemID uuid.UUID) (*items.KeySet, error) {
	if err := s.require(ctx, actor, models.ActionReadKeys, itemID); err != nil {
		return nil, err
	}
	return s.repomanager.Items(s.db).GetKeys(ctx, itemID)
}

// PutKeys replaces the item's envelope record. The set must be structurally
// valid and expectedVersion must match the stored record (0 creates).
// Returns the new version.
func (s *ItemService) PutKeys(ctx context.Context, actor, itemID uuid.UUID, set *items.KeySet, expectedVersion int64) (int64, error) {
	if err := s.require(ctx, actor, models.ActionWriteKeys, itemID); err != nil {
		return 0, err
	}
	if set == nil {
		return 0, common.ErrValidation.WithMessage("missing key set")
	}
	if err := envelope.Validate(s.registry, set.Keys, set.Infos); err != nil {
		return 0, err
	}
	var version int64
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		v, err := s.repomanager.Items(tx).PutKeys(ctx, itemID, set, expectedVersion)
		if err != nil {
			return err
		}
		version = v
		return nil
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// DeleteKeys removes the item's envelope record.
func (s *ItemService) DeleteKeys(ctx context.Context, actor, itemID uuid.UUID) error {
	if err := s.require(ctx, actor, models.ActionDeleteKeys, itemID); err != nil {
		return err
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Items(tx).DeleteKeys(ctx, itemID)
	})
}

// GetKeyInfo returns the single wrapping entry for keyID.
func (s *ItemService) GetKeyInfo(ctx context.Context, actor, itemID, keyID uuid.UUID) (*envelope.ItemKeyInfo, error) {
	if err := s.require(ctx, actor, models.ActionReadKeys, itemID); err != nil {
		return nil, err
	}
	set, err := s.repomanager.Items(s.db).GetKeys(ctx, itemID)
	if err != nil {
		return nil, err
	}
	info, ok := set.Infos[keyID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &info, nil
}

// PutKeyInfo adds or replaces one wrapping entry, appending keyID to the ref
// list if absent. The content IV and ciphertext are untouched: this is the
// grant/rewrap path.
func (s *ItemService) PutKeyInfo(ctx context.Context, actor, itemID, keyID uuid.UUID, info *envelope.ItemKeyInfo) error {
	if err := s.require(ctx, actor, models.ActionWriteKeys, itemID); err != nil {
		return err
	}
	if info == nil {
		return common.ErrValidation.WithMessage("missing key info")
	}
	return s.withKeySet(ctx, itemID, func(set *items.KeySet) error {
		set.Keys = envelope.AddKeyRef(set.Keys, keyID)
		infos := make(map[uuid.UUID]envelope.ItemKeyInfo, len(set.Infos)+1)
		for id, existing := range set.Infos {
			infos[id] = existing
		}
		infos[keyID] = *info
		set.Infos = infos
		return envelope.Validate(s.registry, set.Keys, set.Infos)
	})
}

// DeleteKeyInfo revokes one wrapping entry and drops its ref. Removing the
// last entry is rejected: an item with no usable key is unrecoverable, the
// caller must delete the item instead.
func (s *ItemService) DeleteKeyInfo(ctx context.Context, actor, itemID, keyID uuid.UUID) error {
	if err := s.require(ctx, actor, models.ActionDeleteKeys, itemID); err != nil {
		return err
	}
	return s.withKeySet(ctx, itemID, func(set *items.KeySet) error {
		if _, ok := set.Infos[keyID]; !ok {
			return common.ErrNotFound
		}
		if len(set.Keys.KeyRefs) == 1 {
			return common.ErrValidation.WithMessage("cannot remove the last wrapping key")
		}
		set.Keys = envelope.RemoveKeyRef(set.Keys, keyID)
		infos := make(map[uuid.UUID]envelope.ItemKeyInfo, len(set.Infos))
		for id, existing := range set.Infos {
			if id != keyID {
				infos[id] = existing
			}
		}
		set.Infos = infos
		return nil
	})
}

// withKeySet applies mutate to the current key set and writes it back under
// the version it was read at, retrying once on a conflicting concurrent
// writer. Each attempt runs read-mutate-write inside one transaction so the
// version bump and the entry rewrite land atomically.
func (s *ItemService) withKeySet(ctx context.Context, itemID uuid.UUID, mutate func(*items.KeySet) error) error {
	for attempt := 0; ; attempt++ {
		err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			repo := s.repomanager.Items(tx)
			set, err := repo.GetKeys(ctx, itemID)
			if err != nil {
				return err
			}
			if err := mutate(set); err != nil {
				return err
			}
			_, err = repo.PutKeys(ctx, itemID, set, set.Version)
			return err
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, common.ErrVersionConflict) || attempt > 0 {
			return err
		}
	}
}

// GetContent returns the item's ciphertext and content type.
func (s *ItemService) GetContent(ctx context.Context, actor, itemID uuid.UUID) ([]byte, string, error) {
	if err := s.require(ctx, actor, models.ActionRead, itemID); err != nil {
		return nil, "", err
	}
	repo := s.repomanager.Items(s.db)
	meta, err := repo.GetMeta(ctx, itemID)
	if err != nil {
		return nil, "", err
	}
	content, err := s.blobs.Get(ctx, meta.StorageKey)
	if err != nil {
		return nil, "", err
	}
	if err := repo.TouchAccessed(ctx, itemID, s.now()); err != nil {
		s.logger.Warn(ctx, "failed to touch item access time", "item", itemID, "error", err)
	}
	return content, meta.ContentType, nil
}

// PutContent stores the item's ciphertext. Writing to an unused id creates
// the item and seeds the actor as its owner; overwriting an existing item
// requires Write on it.
func (s *ItemService) PutContent(ctx context.Context, actor, itemID uuid.UUID, content []byte, contentType string) error {
	repo := s.repomanager.Items(s.db)
	meta, err := repo.GetMeta(ctx, itemID)
	switch {
	case err == nil:
		if err := s.require(ctx, actor, models.ActionWrite, itemID); err != nil {
			return err
		}
		now := s.now()
		meta.ContentType = contentType
		meta.ModifiedAt = now
		meta.AccessedAt = now
		if err := s.blobs.Put(ctx, meta.StorageKey, content); err != nil {
			return err
		}
		return repo.UpsertMeta(ctx, meta)
	case errors.Is(err, common.ErrNotFound):
		return s.createItem(ctx, actor, itemID, content, contentType)
	default:
		return err
	}
}

func (s *ItemService) createItem(ctx context.Context, actor, itemID uuid.UUID, content []byte, contentType string) error {
	now := s.now()
	item := &models.Item{
		ID:          itemID,
		ContentType: contentType,
		StorageKey:  fmt.Sprintf("items/%s", itemID),
		CreatedAt:   now,
		ModifiedAt:  now,
		AccessedAt:  now,
	}
	if err := s.blobs.Put(ctx, item.StorageKey, content); err != nil {
		return err
	}
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Items(tx).UpsertMeta(ctx, item); err != nil {
			return err
		}
		return s.acl.SeedOwner(ctx, tx, itemID, actor)
	})
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "created item", "item", itemID, "owner", actor)
	return nil
}

// DeleteContent removes the item entirely: blob, envelope record, metadata
// row, and the ACL rows attached to it.
func (s *ItemService) DeleteContent(ctx context.Context, actor, itemID uuid.UUID) error {
	if err := s.require(ctx, actor, models.ActionDelete, itemID); err != nil {
		return err
	}
	meta, err := s.repomanager.Items(s.db).GetMeta(ctx, itemID)
	if err != nil {
		return err
	}
	// Records first: a failed transaction must never leave metadata
	// pointing at already-deleted ciphertext.
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Items(tx).DeleteKeys(ctx, itemID); err != nil {
			return err
		}
		if err := s.repomanager.Items(tx).Delete(ctx, itemID); err != nil {
			return err
		}
		return s.repomanager.Acl(tx).DeleteByObject(ctx, itemID)
	})
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, meta.StorageKey); err != nil && !errors.Is(err, common.ErrNotFound) {
		s.logger.Warn(ctx, "failed to delete item blob", "item", itemID, "key", meta.StorageKey, "error", err)
	}
	return nil
}

// GetMetadata returns the item's metadata row.
func (s *ItemService) GetMetadata(ctx context.Context, actor, itemID uuid.UUID) (*models.Item, error) {
	if err := s.require(ctx, actor, models.ActionRead, itemID); err != nil {
		return nil, err
	}
	return s.repomanager.Items(s.db).GetMeta(ctx, itemID)
}
