// Package users persists UserRecord rows.
package users

import (
	"context"

	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/server/models"
	"github.com/passman-project/passman/internal/suite"
)

type Repository interface {
	Create(ctx context.Context, user *models.UserRecord) error
	Get(ctx context.Context, id uuid.UUID) (*models.UserRecord, error)
	GetByAddressHash(ctx context.Context, alg suite.DigestAlgorithm, hash []byte) (*models.UserRecord, error)
	UpdateAuth(ctx context.Context, id uuid.UUID, auth *models.AuthMaterial) error
	UpdateRootInfo(ctx context.Context, id uuid.UUID, rootObject, rootKey uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}
