package acl

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/dbx"
	"github.com/passman-project/passman/internal/server/models"
)

// PostgresRepository stores ACL rows in a single table keyed by
// (object_id, subject_id, action). Replace runs as one transaction when
// handed a *sql.Tx via dbx.WithTx; a plain SELECT sees a consistent snapshot
// either way.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) queryRows(ctx context.Context, query string, args ...any) ([]models.AclRow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.AclRow
	for rows.Next() {
		var row models.AclRow
		var action, mode string
		if err := rows.Scan(&row.Object, &row.Subject, &action, &mode); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		row.Action = models.Action(action)
		row.Mode = models.AclMode(mode)
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Rows(ctx context.Context, object, subject uuid.UUID) ([]models.AclRow, error) {
	query := `SELECT object_id, subject_id, action, mode FROM acl_rows
	          WHERE object_id = $1 AND subject_id = $2`
	return r.queryRows(ctx, query, object, subject)
}

func (r *PostgresRepository) ObjectRows(ctx context.Context, object uuid.UUID) ([]models.AclRow, error) {
	query := `SELECT object_id, subject_id, action, mode FROM acl_rows WHERE object_id = $1`
	return r.queryRows(ctx, query, object)
}

func (r *PostgresRepository) Upsert(ctx context.Context, row models.AclRow) error {
	query := `INSERT INTO acl_rows (object_id, subject_id, action, mode)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (object_id, subject_id, action) DO UPDATE SET mode = EXCLUDED.mode`

	_, err := r.db.ExecContext(ctx, query, row.Object, row.Subject, string(row.Action), string(row.Mode))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Replace(ctx context.Context, object uuid.UUID, rows []models.AclRow) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM acl_rows WHERE object_id = $1`, object); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	for _, row := range rows {
		row.Object = object
		if err := r.Upsert(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) DeleteByObject(ctx context.Context, object uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM acl_rows WHERE object_id = $1`, object); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteBySubject(ctx context.Context, subject uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM acl_rows WHERE subject_id = $1`, subject); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
