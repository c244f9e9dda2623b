package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/common"
	"github.com/passman-project/passman/internal/server/models"
	"github.com/passman-project/passman/internal/suite"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func testUser() *models.UserRecord {
	return &models.UserRecord{
		ID:               uuid.New(),
		AddressDigestAlg: suite.Sha256,
		AddressHash:      []byte("address-hash"),
		KDFBaseDigestAlg: suite.Sha512,
		KeyPairAlg:       suite.Ec25519,
		PubKey:           []byte("pubkey"),
		PrivKeyIV:        []byte("iv"),
		SealedPrivKey:    []byte("sealed"),
		RootKeyID:        uuid.New(),
		RootObjectID:     uuid.New(),
	}
}

func userRows(u *models.UserRecord, createdAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "address_digest_alg", "address_hash", "kdf_base_digest_alg",
		"key_pair_alg", "pubkey", "priv_key_iv", "sealed_priv_key",
		"root_key_id", "root_object_id", "created_at",
	}).AddRow(u.ID.String(), string(u.AddressDigestAlg), u.AddressHash, string(u.KDFBaseDigestAlg),
		string(u.KeyPairAlg), u.PubKey, u.PrivKeyIV, u.SealedPrivKey,
		u.RootKeyID.String(), u.RootObjectID.String(), createdAt)
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	user := testUser()
	createdAt := time.Now()

	q := `(?s)^INSERT\s+INTO\s+users\s*\(id,\s*address_digest_alg,\s*address_hash,\s*kdf_base_digest_alg,.*RETURNING\s+created_at`
	mock.ExpectQuery(q).
		WithArgs(user.ID, "sha256", user.AddressHash, "sha512",
			"ec25519", user.PubKey, user.PrivKeyIV, user.SealedPrivKey,
			user.RootKeyID, user.RootObjectID).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if !user.CreatedAt.Equal(createdAt) {
		t.Fatalf("CreatedAt not populated: got %v want %v", user.CreatedAt, createdAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users`).
		WillReturnError(errors.New("duplicate key"))

	err := repo.Create(context.Background(), testUser())
	if err == nil || !regexp.MustCompile(`db error: .*duplicate key`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGet_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	user := testUser()
	mock.ExpectQuery(`(?s)^SELECT\s+.*FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(user.ID).
		WillReturnRows(userRows(user, time.Now()))

	got, err := repo.Get(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.ID != user.ID || got.KeyPairAlg != suite.Ec25519 || got.KDFBaseDigestAlg != suite.Sha512 {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+.*FROM\s+users\s+WHERE\s+id`).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), uuid.New())
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetByAddressHash_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	user := testUser()
	mock.ExpectQuery(`(?s)^SELECT\s+.*FROM\s+users\s+WHERE\s+address_digest_alg\s*=\s*\$1\s+AND\s+address_hash\s*=\s*\$2`).
		WithArgs("sha256", user.AddressHash).
		WillReturnRows(userRows(user, time.Now()))

	got, err := repo.GetByAddressHash(context.Background(), suite.Sha256, user.AddressHash)
	if err != nil {
		t.Fatalf("GetByAddressHash error: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("unexpected user id: %v", got.ID)
	}
}

func TestUpdateAuth_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	id := uuid.New()
	auth := &models.AuthMaterial{
		KDFBaseDigestAlg:  suite.Sha256,
		AuthKeyAlg:        suite.Ec25519,
		PubKey:            []byte("new-pub"),
		PrivKeyIV:         []byte("new-iv"),
		SecuredPrivateKey: []byte("new-sealed"),
	}
	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+kdf_base_digest_alg\s*=\s*\$2,\s*key_pair_alg\s*=\s*\$3`).
		WithArgs(id, "sha256", "ec25519", auth.PubKey, auth.PrivKeyIV, auth.SecuredPrivateKey).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateAuth(context.Background(), id, auth); err != nil {
		t.Fatalf("UpdateAuth error: %v", err)
	}
}

func TestUpdateAuth_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+kdf_base_digest_alg`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateAuth(context.Background(), uuid.New(), &models.AuthMaterial{
		KDFBaseDigestAlg: suite.Sha256,
		AuthKeyAlg:       suite.Ec25519,
	})
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateRootInfo_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	id, object, key := uuid.New(), uuid.New(), uuid.New()
	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+root_object_id\s*=\s*\$2,\s*root_key_id\s*=\s*\$3\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(id, object, key).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateRootInfo(context.Background(), id, object, key); err != nil {
		t.Fatalf("UpdateRootInfo error: %v", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), uuid.New())
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
