// Package repomanager vends repository implementations bound to a database
// handle, so services can run the same code against *sql.DB or *sql.Tx.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/passman-project/passman/internal/dbx"
	"github.com/passman-project/passman/internal/server/repositories/acl"
	"github.com/passman-project/passman/internal/server/repositories/challenges"
	"github.com/passman-project/passman/internal/server/repositories/items"
	"github.com/passman-project/passman/internal/server/repositories/sessions"
	"github.com/passman-project/passman/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Challenges(db dbx.DBTX) challenges.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Acl(db dbx.DBTX) acl.Repository
	Items(db dbx.DBTX) items.Repository
}
