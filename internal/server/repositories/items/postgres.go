package items

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
	"github.com/passman-project/passman/internal/server/models"
	"github.com/passman-project/passman/internal/suite"
)

// PostgresRepository stores the key list in item_keys and the per-ref
// wrapping entries in item_key_infos; ref order is the entry position.
// PutKeys must run inside a transaction (dbx.WithTx) so the version bump and
// the entry rewrite land atomically.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetMeta(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	query := `SELECT id, content_type, storage_key, created_at, modified_at, accessed_at
	          FROM items WHERE id = $1`

	item := &models.Item{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID, &item.ContentType, &item.StorageKey,
		&item.CreatedAt, &item.ModifiedAt, &item.AccessedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return item, nil
}

func (r *PostgresRepository) UpsertMeta(ctx context.Context, item *models.Item) error {
	query := `INSERT INTO items (id, content_type, storage_key, created_at, modified_at, accessed_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          ON CONFLICT (id) DO UPDATE
	          SET content_type = EXCLUDED.content_type,
	              storage_key = EXCLUDED.storage_key,
	              modified_at = EXCLUDED.modified_at`

	_, err := r.db.ExecContext(ctx, query, item.ID, item.ContentType, item.StorageKey,
		item.CreatedAt, item.ModifiedAt, item.AccessedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) TouchAccessed(ctx context.Context, id uuid.UUID, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE items SET accessed_at = $2 WHERE id = $1`, id, now)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.DeleteKeys(ctx, id); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetKeys(ctx context.Context, itemID uuid.UUID) (*KeySet, error) {
	query := `SELECT base_cipher, item_iv, item_auth_tag, version FROM item_keys WHERE item_id = $1`

	set := &KeySet{Infos: make(map[uuid.UUID]envelope.ItemKeyInfo)}
	var baseCipher string
	var authTag []byte
	err := r.db.QueryRowContext(ctx, query, itemID).Scan(
		&baseCipher, (*[]byte)(&set.Keys.ItemIV), &authTag, &set.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	set.Keys.BaseCipher = suite.SymmetricAlgorithm(baseCipher)
	set.Keys.ItemAuthTag = authTag

	infoQuery := `SELECT key_id, secured_item_key, item_key_iv, item_auth_tag
	              FROM item_key_infos WHERE item_id = $1 ORDER BY position`

	rows, err := r.db.QueryContext(ctx, infoQuery, itemID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var keyID uuid.UUID
		var info envelope.ItemKeyInfo
		var infoTag []byte
		if err := rows.Scan(&keyID, (*[]byte)(&info.SecuredItemKey), (*[]byte)(&info.ItemKeyIV), &infoTag); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		info.ItemAuthTag = infoTag
		set.Keys.KeyRefs = append(set.Keys.KeyRefs, keyID)
		set.Infos[keyID] = info
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return set, nil
}

func (r *PostgresRepository) PutKeys(ctx context.Context, itemID uuid.UUID, set *KeySet, expectedVersion int64) (int64, error) {
	var newVersion int64
	if expectedVersion == 0 {
		query := `INSERT INTO item_keys (item_id, base_cipher, item_iv, item_auth_tag, version)
		          VALUES ($1, $2, $3, $4, 1)
		          ON CONFLICT (item_id) DO NOTHING
		          RETURNING version`
		err := r.db.QueryRowContext(ctx, query, itemID,
			string(set.Keys.BaseCipher), []byte(set.Keys.ItemIV), nullableBytes(set.Keys.ItemAuthTag)).Scan(&newVersion)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, common.ErrVersionConflict
			}
			return 0, fmt.Errorf("db error: %w", err)
		}
	} else {
		query := `UPDATE item_keys
		          SET base_cipher = $2, item_iv = $3, item_auth_tag = $4, version = version + 1
		          WHERE item_id = $1 AND version = $5
		          RETURNING version`
		err := r.db.QueryRowContext(ctx, query, itemID,
			string(set.Keys.BaseCipher), []byte(set.Keys.ItemIV), nullableBytes(set.Keys.ItemAuthTag),
			expectedVersion).Scan(&newVersion)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, common.ErrVersionConflict
			}
			return 0, fmt.Errorf("db error: %w", err)
		}
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM item_key_infos WHERE item_id = $1`, itemID); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	infoQuery := `INSERT INTO item_key_infos (item_id, key_id, position, secured_item_key, item_key_iv, item_auth_tag)
	              VALUES ($1, $2, $3, $4, $5, $6)`
	for position, keyID := range set.Keys.KeyRefs {
		info := set.Infos[keyID]
		_, err := r.db.ExecContext(ctx, infoQuery, itemID, keyID, position,
			[]byte(info.SecuredItemKey), []byte(info.ItemKeyIV), nullableBytes(info.ItemAuthTag))
		if err != nil {
			return 0, fmt.Errorf("db error: %w", err)
		}
	}
	return newVersion, nil
}

func (r *PostgresRepository) DeleteKeys(ctx context.Context, itemID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM item_key_infos WHERE item_id = $1`, itemID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM item_keys WHERE item_id = $1`, itemID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// nullableBytes maps an absent auth tag to SQL NULL so presence survives the
// round trip exactly.
func nullableBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}
