package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

const userColumns = `id, address_digest_alg, address_hash, kdf_base_digest_alg,
	key_pair_alg, pubkey, priv_key_iv, sealed_priv_key, root_key_id, root_object_id, created_at`

func (r *PostgresRepository) Create(ctx context.Context, user *models.UserRecord) error {
	query := `INSERT INTO users (id, address_digest_alg, address_hash, kdf_base_digest_alg,
	            key_pair_alg, pubkey, priv_key_iv, sealed_priv_key, root_key_id, root_object_id)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		user.ID, string(user.AddressDigestAlg), user.AddressHash, string(user.KDFBaseDigestAlg),
		string(user.KeyPairAlg), user.PubKey, user.PrivKeyIV, user.SealedPrivKey,
		user.RootKeyID, user.RootObjectID).Scan(&user.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) scanUser(row *sql.Row) (*models.UserRecord, error) {
	user := &models.UserRecord{}
	var addressAlg, kdfAlg, keyPairAlg string
	err := row.Scan(&user.ID, &addressAlg, &user.AddressHash, &kdfAlg,
		&keyPairAlg, &user.PubKey, &user.PrivKeyIV, &user.SealedPrivKey,
		&user.RootKeyID, &user.RootObjectID, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	user.AddressDigestAlg = suite.DigestAlgorithm(addressAlg)
	user.KDFBaseDigestAlg = suite.DigestAlgorithm(kdfAlg)
	user.KeyPairAlg = suite.AsymmetricAlgorithm(keyPairAlg)
	return user, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*models.UserRecord, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByAddressHash(ctx context.Context, alg suite.DigestAlgorithm, hash []byte) (*models.UserRecord, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE address_digest_alg = $1 AND address_hash = $2`
	return r.scanUser(r.db.QueryRowContext(ctx, query, string(alg), hash))
}

func (r *PostgresRepository) UpdateAuth(ctx context.Context, id uuid.UUID, auth *models.AuthMaterial) error {
	query := `UPDATE users
	          SET kdf_base_digest_alg = $2, key_pair_alg = $3, pubkey = $4,
	              priv_key_iv = $5, sealed_priv_key = $6
	          WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id,
		string(auth.KDFBaseDigestAlg), string(auth.AuthKeyAlg),
		auth.PubKey, auth.PrivKeyIV, auth.SecuredPrivateKey)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return noRowsAsNotFound(res)
}

func (r *PostgresRepository) UpdateRootInfo(ctx context.Context, id uuid.UUID, rootObject, rootKey uuid.UUID) error {
	query := `UPDATE users SET root_object_id = $2, root_key_id = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, rootObject, rootKey)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return noRowsAsNotFound(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return noRowsAsNotFound(res)
}

func noRowsAsNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
