// Package services contains server-side business logic: user registration,
// the challenge-response authentication protocol, the ACL resolution engine,
// and the item key/content operations they gate.
package services

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/common"
	"github.com/passman-project/passman/internal/dbx"
	"github.com/passman-project/passman/internal/logging"
	"github.com/passman-project/passman/internal/server/models"
	"github.com/passman-project/passman/internal/server/repositories/repomanager"
)

// globalActions are the actions that fall back to the global permission set
// when an object carries no matching row at all.
var globalActions = map[models.Action]bool{
	models.ActionReadAcl:       true,
	models.ActionWriteAcl:      true,
	models.ActionOwner:         true,
	models.ActionTakeOwnership: true,
}

// AclService resolves effective permissions and applies authorized ACL
// mutations.
type AclService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewAclService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *AclService {
	return &AclService{db: db, repomanager: m, logger: logger.With("module", "acl")}
}

// Authorize resolves the effective permission for (subject, action, object).
//
// The inheritance chain is object -> global scope. A Forbid anywhere in the
// chain is an absolute veto and is never overridden by a more specific
// Allow. Absent a Forbid, the most specific non-Inherit mode wins; Inherit
// defers to the parent scope. Non-global actions consult the global set only
// through an explicit Inherit row. An exhausted chain denies.
func (s *AclService) Authorize(ctx context.Context, subject uuid.UUID, action models.Action, object uuid.UUID) (bool, error) {
	repo := s.repomanager.Acl(s.db)

	chain := [][]models.AclRow{}
	objectRows, err := repo.Rows(ctx, object, subject)
	if err != nil {
		return false, err
	}
	chain = append(chain, objectRows)

	if object != models.GlobalScope {
		globalRows, err := repo.Rows(ctx, models.GlobalScope, subject)
		if err != nil {
			return false, err
		}
		chain = append(chain, globalRows)
	}

	// Forbid wins regardless of depth and of what else is present.
	for _, rows := range chain {
		if modeAt(rows, action) == models.AclForbid {
			return false, nil
		}
	}

	for depth, rows := range chain {
		mode := modeAt(rows, action)
		switch mode {
		case models.AclAllow:
			return true, nil
		case models.AclDeny:
			return false, nil
		case models.AclInherit:
			continue
		}
		// No row at this depth: only global-capable actions fall through
		// to the parent scope implicitly.
		if depth == 0 && !globalActions[action] {
			return false, nil
		}
	}
	return false, nil
}

func modeAt(rows []models.AclRow, action models.Action) models.AclMode {
	for _, row := range rows {
		if row.Action == action {
			return row.Mode
		}
	}
	return ""
}

// ObjectRows lists the rows attached to object, optionally filtered down to
// one subject. Requires ReadAcl on the object.
func (s *AclService) ObjectRows(ctx context.Context, actor uuid.UUID, object uuid.UUID, subject *uuid.UUID) ([]models.AclRow, error) {
	if err := s.require(ctx, actor, models.ActionReadAcl, object); err != nil {
		return nil, err
	}
	rows, err := s.repomanager.Acl(s.db).ObjectRows(ctx, object)
	if err != nil {
		return nil, err
	}
	if subject == nil {
		return rows, nil
	}
	filtered := rows[:0]
	for _, row := range rows {
		if row.Subject == *subject {
			filtered = append(filtered, row)
		}
	}
	return filtered, nil
}

// WriteRows creates or replaces rows on object. Rows for the Owner action
// require the actor to already hold Owner on the object or the global
// TakeOwnership permission; all other rows require WriteAcl.
func (s *AclService) WriteRows(ctx context.Context, actor uuid.UUID, object uuid.UUID, rows []models.AclRow) error {
	if err := s.checkRowWrites(ctx, actor, object, rows); err != nil {
		return err
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Acl(tx)
		for _, row := range rows {
			row.Object = object
			if err := repo.Upsert(ctx, row); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceAll atomically replaces the entire rule set of object. Requires
// Owner. Concurrent readers observe either the old or the new set.
func (s *AclService) ReplaceAll(ctx context.Context, actor uuid.UUID, object uuid.UUID, rows []models.AclRow) error {
	if err := validateRows(rows); err != nil {
		return err
	}
	if err := s.require(ctx, actor, models.ActionOwner, object); err != nil {
		return err
	}
	for i := range rows {
		rows[i].Object = object
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Acl(tx).Replace(ctx, object, rows)
	})
}

func (s *AclService) checkRowWrites(ctx context.Context, actor uuid.UUID, object uuid.UUID, rows []models.AclRow) error {
	if err := validateRows(rows); err != nil {
		return err
	}
	needsWriteAcl := false
	needsOwner := false
	for _, row := range rows {
		if row.Action == models.ActionOwner {
			needsOwner = true
		} else {
			needsWriteAcl = true
		}
	}
	if needsWriteAcl {
		if err := s.require(ctx, actor, models.ActionWriteAcl, object); err != nil {
			return err
		}
	}
	if needsOwner {
		ok, err := s.Authorize(ctx, actor, models.ActionOwner, object)
		if err != nil {
			return err
		}
		if !ok {
			ok, err = s.Authorize(ctx, actor, models.ActionTakeOwnership, models.GlobalScope)
			if err != nil {
				return err
			}
		}
		if !ok {
			return common.ErrDenied.WithMessage("writing Owner rows requires Owner or TakeOwnership")
		}
	}
	return nil
}

func (s *AclService) require(ctx context.Context, actor uuid.UUID, action models.Action, object uuid.UUID) error {
	ok, err := s.Authorize(ctx, actor, action, object)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrDenied.WithMessage("requires %s", action)
	}
	return nil
}

func validateRows(rows []models.AclRow) error {
	for _, row := range rows {
		if !row.Mode.Valid() {
			return common.ErrValidation.WithMessage("invalid acl mode %q", row.Mode)
		}
		if row.Action == "" {
			return common.ErrValidation.WithMessage("acl row has empty action")
		}
	}
	return nil
}

// SeedOwner installs the full owner row set for subject on object. Used when
// objects come into existence; not exposed over the API.
func (s *AclService) SeedOwner(ctx context.Context, tx dbx.DBTX, object, subject uuid.UUID) error {
	repo := s.repomanager.Acl(tx)
	ownerActions := []models.Action{
		models.ActionOwner, models.ActionRead, models.ActionWrite, models.ActionDelete,
		models.ActionReadAcl, models.ActionWriteAcl,
		models.ActionReadKeys, models.ActionWriteKeys, models.ActionDeleteKeys,
	}
	for _, action := range ownerActions {
		row := models.AclRow{Object: object, Subject: subject, Action: action, Mode: models.AclAllow}
		if err := repo.Upsert(ctx, row); err != nil {
			return err
		}
	}
	return nil
}
