package items

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/common"
	"github.com/passman-project/passman/internal/envelope"
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

func testSet(keyIDs ...uuid.UUID) *KeySet {
	set := &KeySet{
		Keys: envelope.ItemKeys{
			BaseCipher:  suite.Aes256Gcm,
			KeyRefs:     keyIDs,
			ItemIV:      []byte("iv-content"),
			ItemAuthTag: []byte("tag-content"),
		},
		Infos: make(map[uuid.UUID]envelope.ItemKeyInfo),
	}
	for _, id := range keyIDs {
		set.Infos[id] = envelope.ItemKeyInfo{
			SecuredItemKey: []byte("wrapped-" + id.String()),
			ItemKeyIV:      []byte("iv-" + id.String()),
			ItemAuthTag:    []byte("tag-" + id.String()),
		}
	}
	return set
}

func TestPutKeys_Create(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	itemID := uuid.New()
	keyA, keyB := uuid.New(), uuid.New()
	set := testSet(keyA, keyB)

	insertQ := `(?s)^INSERT\s+INTO\s+item_keys\s*\(item_id,\s*base_cipher,\s*item_iv,\s*item_auth_tag,\s*version\)\s+VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*1\)\s+ON\s+CONFLICT\s*\(item_id\)\s+DO\s+NOTHING\s+RETURNING\s+version`
	mock.ExpectQuery(insertQ).
		WithArgs(itemID, "aes256-gcm", []byte("iv-content"), []byte("tag-content")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(1)))

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+item_key_infos\s+WHERE\s+item_id\s*=\s*\$1`).
		WithArgs(itemID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	infoQ := `(?s)^INSERT\s+INTO\s+item_key_infos\s*\(item_id,\s*key_id,\s*position,\s*secured_item_key,\s*item_key_iv,\s*item_auth_tag\)`
	for position, keyID := range []uuid.UUID{keyA, keyB} {
		info := set.Infos[keyID]
		mock.ExpectExec(infoQ).
			WithArgs(itemID, keyID, position, []byte(info.SecuredItemKey), []byte(info.ItemKeyIV), []byte(info.ItemAuthTag)).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	version, err := repo.PutKeys(context.Background(), itemID, set, 0)
	if err != nil {
		t.Fatalf("PutKeys error: %v", err)
	}
	if version != 1 {
		t.Fatalf("expected version 1, got %d", version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPutKeys_CreateConflict(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	// ON CONFLICT DO NOTHING yields no row when the record already exists.
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+item_keys`).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.PutKeys(context.Background(), uuid.New(), testSet(uuid.New()), 0)
	if !errors.Is(err, common.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPutKeys_Update(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	itemID := uuid.New()
	keyID := uuid.New()
	set := testSet(keyID)

	updateQ := `(?s)^UPDATE\s+item_keys\s+SET\s+base_cipher\s*=\s*\$2,\s*item_iv\s*=\s*\$3,\s*item_auth_tag\s*=\s*\$4,\s*version\s*=\s*version\s*\+\s*1\s+WHERE\s+item_id\s*=\s*\$1\s+AND\s+version\s*=\s*\$5\s+RETURNING\s+version`
	mock.ExpectQuery(updateQ).
		WithArgs(itemID, "aes256-gcm", []byte("iv-content"), []byte("tag-content"), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(4)))

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+item_key_infos`).
		WithArgs(itemID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+item_key_infos`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	version, err := repo.PutKeys(context.Background(), itemID, set, 3)
	if err != nil {
		t.Fatalf("PutKeys error: %v", err)
	}
	if version != 4 {
		t.Fatalf("expected version 4, got %d", version)
	}
}

func TestPutKeys_StaleVersion(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^UPDATE\s+item_keys`).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.PutKeys(context.Background(), uuid.New(), testSet(uuid.New()), 7)
	if !errors.Is(err, common.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	// No entry rewrite happens on a conflict.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetKeys_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	itemID := uuid.New()
	keyA, keyB := uuid.New(), uuid.New()

	mock.ExpectQuery(`(?s)^SELECT\s+base_cipher,\s*item_iv,\s*item_auth_tag,\s*version\s+FROM\s+item_keys`).
		WithArgs(itemID).
		WillReturnRows(sqlmock.NewRows([]string{"base_cipher", "item_iv", "item_auth_tag", "version"}).
			AddRow("aes256-cbc", []byte("iv"), nil, int64(2)))

	mock.ExpectQuery(`(?s)^SELECT\s+key_id,\s*secured_item_key,\s*item_key_iv,\s*item_auth_tag\s+FROM\s+item_key_infos.*ORDER\s+BY\s+position`).
		WithArgs(itemID).
		WillReturnRows(sqlmock.NewRows([]string{"key_id", "secured_item_key", "item_key_iv", "item_auth_tag"}).
			AddRow(keyA.String(), []byte("wrapped-a"), []byte("iv-a"), nil).
			AddRow(keyB.String(), []byte("wrapped-b"), []byte("iv-b"), nil))

	set, err := repo.GetKeys(context.Background(), itemID)
	if err != nil {
		t.Fatalf("GetKeys error: %v", err)
	}
	if set.Version != 2 || set.Keys.BaseCipher != suite.Aes256Cbc {
		t.Fatalf("unexpected set: %+v", set)
	}
	if set.Keys.ItemAuthTag != nil {
		t.Fatalf("expected nil auth tag for CBC, got %v", set.Keys.ItemAuthTag)
	}
	if len(set.Keys.KeyRefs) != 2 || set.Keys.KeyRefs[0] != keyA || set.Keys.KeyRefs[1] != keyB {
		t.Fatalf("unexpected key refs: %v", set.Keys.KeyRefs)
	}
	if len(set.Infos) != 2 {
		t.Fatalf("unexpected infos: %v", set.Infos)
	}
}

func TestGetKeys_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+base_cipher`).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetKeys(context.Background(), uuid.New())
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetMeta_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*content_type`).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetMeta(context.Background(), uuid.New())
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
