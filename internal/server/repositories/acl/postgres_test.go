package acl

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestRows_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	object, subject := uuid.New(), uuid.New()
	q := `(?s)^SELECT\s+object_id,\s*subject_id,\s*action,\s*mode\s+FROM\s+acl_rows\s+WHERE\s+object_id\s*=\s*\$1\s+AND\s+subject_id\s*=\s*\$2`

	mock.ExpectQuery(q).
		WithArgs(object, subject).
		WillReturnRows(sqlmock.NewRows([]string{"object_id", "subject_id", "action", "mode"}).
			AddRow(object.String(), subject.String(), "Read", "allow").
			AddRow(object.String(), subject.String(), "Write", "forbid"))

	rows, err := repo.Rows(context.Background(), object, subject)
	if err != nil {
		t.Fatalf("Rows error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Action != models.ActionRead || rows[0].Mode != models.AclAllow {
		t.Fatalf("unexpected row: %+v", rows[0])
	}
	if rows[1].Action != models.ActionWrite || rows[1].Mode != models.AclForbid {
		t.Fatalf("unexpected row: %+v", rows[1])
	}
}

func TestRows_Empty(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+object_id`).
		WillReturnRows(sqlmock.NewRows([]string{"object_id", "subject_id", "action", "mode"}))

	rows, err := repo.Rows(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("Rows error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(rows))
	}
}

func TestUpsert_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	row := models.AclRow{Object: uuid.New(), Subject: uuid.New(), Action: models.ActionReadAcl, Mode: models.AclDeny}
	q := `(?s)^INSERT\s+INTO\s+acl_rows\s*\(object_id,\s*subject_id,\s*action,\s*mode\)\s+VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s+ON\s+CONFLICT\s*\(object_id,\s*subject_id,\s*action\)\s+DO\s+UPDATE\s+SET\s+mode\s*=\s*EXCLUDED\.mode`

	mock.ExpectExec(q).
		WithArgs(row.Object, row.Subject, "ReadAcl", "deny").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Upsert(context.Background(), row); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
}

func TestUpsert_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+acl_rows`).
		WillReturnError(errors.New("db down"))

	row := models.AclRow{Object: uuid.New(), Subject: uuid.New(), Action: models.ActionRead, Mode: models.AclAllow}
	err := repo.Upsert(context.Background(), row)
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestReplace_DeletesThenInserts(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	object := uuid.New()
	subject := uuid.New()
	rows := []models.AclRow{
		{Subject: subject, Action: models.ActionRead, Mode: models.AclAllow},
		{Subject: subject, Action: models.ActionWrite, Mode: models.AclInherit},
	}

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+acl_rows\s+WHERE\s+object_id\s*=\s*\$1`).
		WithArgs(object).
		WillReturnResult(sqlmock.NewResult(0, 5))

	// Every inserted row is rekeyed to the target object.
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+acl_rows`).
		WithArgs(object, subject, "Read", "allow").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+acl_rows`).
		WithArgs(object, subject, "Write", "inherit").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Replace(context.Background(), object, rows); err != nil {
		t.Fatalf("Replace error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteBySubject(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	subject := uuid.New()
	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+acl_rows\s+WHERE\s+subject_id\s*=\s*\$1`).
		WithArgs(subject).
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := repo.DeleteBySubject(context.Background(), subject); err != nil {
		t.Fatalf("DeleteBySubject error: %v", err)
	}
}
