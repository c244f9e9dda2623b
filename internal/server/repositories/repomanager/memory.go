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

// MemoryRepositoryManager vends shared in-memory repositories regardless of
// the database handle. Used by tests.
type MemoryRepositoryManager struct {
	users      *users.MemoryRepository
	challenges *challenges.MemoryRepository
	sessions   *sessions.MemoryRepository
	acl        *acl.MemoryRepository
	items      *items.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		users:      users.NewMemoryRepository(),
		challenges: challenges.NewMemoryRepository(),
		sessions:   sessions.NewMemoryRepository(),
		acl:        acl.NewMemoryRepository(),
		items:      items.NewMemoryRepository(),
	}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *MemoryRepositoryManager) Users(dbx.DBTX) users.Repository             { return m.users }
func (m *MemoryRepositoryManager) Challenges(dbx.DBTX) challenges.Repository   { return m.challenges }
func (m *MemoryRepositoryManager) Sessions(dbx.DBTX) sessions.Repository       { return m.sessions }
func (m *MemoryRepositoryManager) Acl(dbx.DBTX) acl.Repository                 { return m.acl }
func (m *MemoryRepositoryManager) Items(dbx.DBTX) items.Repository             { return m.items }
