package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/passman-project/passman/internal/common"
	"github.com/passman-project/passman/internal/server/models"
	"github.com/passman-project/passman/internal/server/repositories/repomanager"
)

func newAclEnv(t *testing.T) (*AclService, *repomanager.MemoryRepositoryManager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	manager := repomanager.NewMemoryRepositoryManager()
	svc := NewAclService(db, manager, testLogger())
	return svc, manager, mock
}

func seedRow(t *testing.T, manager repomanager.RepositoryManager, object, subject uuid.UUID, action models.Action, mode models.AclMode) {
	t.Helper()
	row := models.AclRow{Object: object, Subject: subject, Action: action, Mode: mode}
	require.NoError(t, manager.Acl(nil).Upsert(context.Background(), row))
}

func authorized(t *testing.T, svc *AclService, subject uuid.UUID, action models.Action, object uuid.UUID) bool {
	t.Helper()
	ok, err := svc.Authorize(context.Background(), subject, action, object)
	require.NoError(t, err)
	return ok
}

func TestAuthorizeDefaultDeny(t *testing.T) {
	svc, _, _ := newAclEnv(t)
	assert.False(t, authorized(t, svc, uuid.New(), models.ActionRead, uuid.New()))
}

func TestAuthorizeObjectRows(t *testing.T) {
	svc, manager, _ := newAclEnv(t)
	subject, object := uuid.New(), uuid.New()

	seedRow(t, manager, object, subject, models.ActionRead, models.AclAllow)
	seedRow(t, manager, object, subject, models.ActionWrite, models.AclDeny)

	assert.True(t, authorized(t, svc, subject, models.ActionRead, object))
	assert.False(t, authorized(t, svc, subject, models.ActionWrite, object))
	assert.False(t, authorized(t, svc, subject, models.ActionDelete, object))

	// Another subject's rows never apply.
	assert.False(t, authorized(t, svc, uuid.New(), models.ActionRead, object))
}

func TestAuthorizeForbidVetoes(t *testing.T) {
	svc, manager, _ := newAclEnv(t)
	subject, object := uuid.New(), uuid.New()

	// A global Forbid overrides an object-level Allow.
	seedRow(t, manager, object, subject, models.ActionRead, models.AclAllow)
	seedRow(t, manager, models.GlobalScope, subject, models.ActionRead, models.AclForbid)
	assert.False(t, authorized(t, svc, subject, models.ActionRead, object))

	// An object-level Forbid overrides a global Allow.
	seedRow(t, manager, object, subject, models.ActionReadAcl, models.AclForbid)
	seedRow(t, manager, models.GlobalScope, subject, models.ActionReadAcl, models.AclAllow)
	assert.False(t, authorized(t, svc, subject, models.ActionReadAcl, object))
}

func TestAuthorizeGlobalFallthrough(t *testing.T) {
	svc, manager, _ := newAclEnv(t)
	subject, object := uuid.New(), uuid.New()

	seedRow(t, manager, models.GlobalScope, subject, models.ActionReadAcl, models.AclAllow)
	seedRow(t, manager, models.GlobalScope, subject, models.ActionRead, models.AclAllow)

	// Administrative actions fall through to the global set implicitly.
	assert.True(t, authorized(t, svc, subject, models.ActionReadAcl, object))

	// Data actions do not; they need an explicit Inherit row on the object.
	assert.False(t, authorized(t, svc, subject, models.ActionRead, object))
	seedRow(t, manager, object, subject, models.ActionRead, models.AclInherit)
	assert.True(t, authorized(t, svc, subject, models.ActionRead, object))
}

func TestAuthorizeInheritWithoutParentDenies(t *testing.T) {
	svc, manager, _ := newAclEnv(t)
	subject, object := uuid.New(), uuid.New()

	seedRow(t, manager, object, subject, models.ActionWrite, models.AclInherit)
	assert.False(t, authorized(t, svc, subject, models.ActionWrite, object))
}

func TestAuthorizeOnGlobalScope(t *testing.T) {
	svc, manager, _ := newAclEnv(t)
	subject := uuid.New()

	seedRow(t, manager, models.GlobalScope, subject, models.ActionTakeOwnership, models.AclAllow)
	assert.True(t, authorized(t, svc, subject, models.ActionTakeOwnership, models.GlobalScope))
	assert.False(t, authorized(t, svc, subject, models.ActionOwner, models.GlobalScope))
}

func TestSeedOwner(t *testing.T) {
	svc, _, _ := newAclEnv(t)
	subject, object := uuid.New(), uuid.New()

	require.NoError(t, svc.SeedOwner(context.Background(), nil, object, subject))

	for _, action := range []models.Action{
		models.ActionOwner, models.ActionRead, models.ActionWrite, models.ActionDelete,
		models.ActionReadAcl, models.ActionWriteAcl,
		models.ActionReadKeys, models.ActionWriteKeys, models.ActionDeleteKeys,
	} {
		assert.True(t, authorized(t, svc, subject, action, object), "action %s", action)
	}
	assert.False(t, authorized(t, svc, subject, models.ActionTakeOwnership, object))
}

func TestObjectRowsRequiresReadAcl(t *testing.T) {
	svc, manager, _ := newAclEnv(t)
	actor, object := uuid.New(), uuid.New()
	ctx := context.Background()

	_, err := svc.ObjectRows(ctx, actor, object, nil)
	assert.ErrorIs(t, err, common.ErrDenied)

	seedRow(t, manager, object, actor, models.ActionReadAcl, models.AclAllow)
	rows, err := svc.ObjectRows(ctx, actor, object, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestObjectRowsSubjectFilter(t *testing.T) {
	svc, manager, _ := newAclEnv(t)
	actor, other, object := uuid.New(), uuid.New(), uuid.New()
	ctx := context.Background()

	seedRow(t, manager, object, actor, models.ActionReadAcl, models.AclAllow)
	seedRow(t, manager, object, other, models.ActionRead, models.AclAllow)
	seedRow(t, manager, object, other, models.ActionWrite, models.AclDeny)

	rows, err := svc.ObjectRows(ctx, actor, object, &other)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, other, row.Subject)
	}
}

func TestWriteRows(t *testing.T) {
	svc, manager, mock := newAclEnv(t)
	actor, grantee, object := uuid.New(), uuid.New(), uuid.New()
	ctx := context.Background()

	seedRow(t, manager, object, actor, models.ActionWriteAcl, models.AclAllow)

	expectTx(mock)
	err := svc.WriteRows(ctx, actor, object, []models.AclRow{
		{Subject: grantee, Action: models.ActionRead, Mode: models.AclAllow},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.True(t, authorized(t, svc, grantee, models.ActionRead, object))
}

func TestWriteRowsRequiresWriteAcl(t *testing.T) {
	svc, _, _ := newAclEnv(t)
	actor, object := uuid.New(), uuid.New()

	err := svc.WriteRows(context.Background(), actor, object, []models.AclRow{
		{Subject: uuid.New(), Action: models.ActionRead, Mode: models.AclAllow},
	})
	assert.ErrorIs(t, err, common.ErrDenied)
}

func TestWriteRowsOwnerNeedsOwnerOrTakeOwnership(t *testing.T) {
	svc, manager, mock := newAclEnv(t)
	actor, grantee, object := uuid.New(), uuid.New(), uuid.New()
	ctx := context.Background()

	ownerRows := []models.AclRow{{Subject: grantee, Action: models.ActionOwner, Mode: models.AclAllow}}

	// WriteAcl alone is not enough for Owner rows.
	seedRow(t, manager, object, actor, models.ActionWriteAcl, models.AclAllow)
	err := svc.WriteRows(ctx, actor, object, ownerRows)
	assert.ErrorIs(t, err, common.ErrDenied)

	// Global TakeOwnership unlocks them.
	seedRow(t, manager, models.GlobalScope, actor, models.ActionTakeOwnership, models.AclAllow)
	expectTx(mock)
	require.NoError(t, svc.WriteRows(ctx, actor, object, ownerRows))
	require.NoError(t, mock.ExpectationsWereMet())

	assert.True(t, authorized(t, svc, grantee, models.ActionOwner, object))
}

func TestWriteRowsValidation(t *testing.T) {
	svc, _, _ := newAclEnv(t)
	actor, object := uuid.New(), uuid.New()
	ctx := context.Background()

	err := svc.WriteRows(ctx, actor, object, []models.AclRow{
		{Subject: uuid.New(), Action: models.ActionRead, Mode: "maybe"},
	})
	assert.ErrorIs(t, err, common.ErrValidation)

	err = svc.WriteRows(ctx, actor, object, []models.AclRow{
		{Subject: uuid.New(), Action: "", Mode: models.AclAllow},
	})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestReplaceAll(t *testing.T) {
	svc, _, mock := newAclEnv(t)
	owner, grantee, object := uuid.New(), uuid.New(), uuid.New()
	ctx := context.Background()

	require.NoError(t, svc.SeedOwner(ctx, nil, object, owner))
	readRow := models.AclRow{Subject: grantee, Action: models.ActionRead, Mode: models.AclAllow}

	expectTx(mock)
	require.NoError(t, svc.ReplaceAll(ctx, owner, object, []models.AclRow{readRow}))
	require.NoError(t, mock.ExpectationsWereMet())

	// The replacement is total: the owner's own rows are gone too.
	assert.True(t, authorized(t, svc, grantee, models.ActionRead, object))
	assert.False(t, authorized(t, svc, owner, models.ActionRead, object))
}

func TestReplaceAllAtomicUnderConcurrentReads(t *testing.T) {
	svc, manager, mock := newAclEnv(t)
	owner, reader, object := uuid.New(), uuid.New(), uuid.New()
	ctx := context.Background()

	// The replacer's Owner and the reader's ReadAcl live at the global
	// scope so replacing the object's rows never locks either of them out.
	seedRow(t, manager, models.GlobalScope, owner, models.ActionOwner, models.AclAllow)
	seedRow(t, manager, models.GlobalScope, reader, models.ActionReadAcl, models.AclAllow)

	groupA := []models.AclRow{
		{Subject: uuid.New(), Action: models.ActionRead, Mode: models.AclAllow},
		{Subject: uuid.New(), Action: models.ActionWrite, Mode: models.AclAllow},
	}
	groupB := []models.AclRow{
		{Subject: uuid.New(), Action: models.ActionRead, Mode: models.AclAllow},
		{Subject: uuid.New(), Action: models.ActionWrite, Mode: models.AclForbid},
	}
	inGroupA := map[uuid.UUID]bool{groupA[0].Subject: true, groupA[1].Subject: true}

	const replaces = 100
	mock.MatchExpectationsInOrder(false)
	for range replaces + 1 {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}

	require.NoError(t, svc.ReplaceAll(ctx, owner, object, groupA))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < replaces; i++ {
			set := groupA
			if i%2 == 1 {
				set = groupB
			}
			if err := svc.ReplaceAll(ctx, owner, object, set); err != nil {
				t.Errorf("ReplaceAll error: %v", err)
				return
			}
		}
	}()

	// A reader racing the replaces must see a whole rule set, never a mix
	// of the two groups or a partial one.
	for {
		select {
		case <-done:
			return
		default:
		}

		rows, err := svc.ObjectRows(ctx, reader, object, nil)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		first := inGroupA[rows[0].Subject]
		for _, row := range rows {
			require.Equal(t, first, inGroupA[row.Subject], "observed rows from both rule sets")
		}

		_, err = svc.Authorize(ctx, rows[0].Subject, models.ActionRead, object)
		require.NoError(t, err)
	}
}

func TestReplaceAllRequiresOwner(t *testing.T) {
	svc, manager, _ := newAclEnv(t)
	actor, object := uuid.New(), uuid.New()
	ctx := context.Background()

	seedRow(t, manager, object, actor, models.ActionWriteAcl, models.AclAllow)
	err := svc.ReplaceAll(ctx, actor, object, nil)
	assert.ErrorIs(t, err, common.ErrDenied)
}
