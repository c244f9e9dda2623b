// Package acl persists ACL rows. The global permission set lives under
// models.GlobalScope like any other object's rows.
package acl

import (
	"context"

	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/server/models"
)

type Repository interface {
	// Rows returns the rows attached to object for one subject.
	Rows(ctx context.Context, object, subject uuid.UUID) ([]models.AclRow, error)

	// ObjectRows returns every row attached to object.
	ObjectRows(ctx context.Context, object uuid.UUID) ([]models.AclRow, error)

	// Upsert writes one row; an existing (object, subject, action) key is
	// replaced.
	Upsert(ctx context.Context, row models.AclRow) error

	// Replace atomically swaps the entire rule set of object. Readers
	// racing a Replace observe either the old or the new set, never a mix.
	Replace(ctx context.Context, object uuid.UUID, rows []models.AclRow) error

	DeleteByObject(ctx context.Context, object uuid.UUID) error
	DeleteBySubject(ctx context.Context, subject uuid.UUID) error
}
