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
	"github.com/passman-project/passman/internal/suite"
)

// addressDigest is the digest used to hash user addresses for lookup. The
// address itself is never stored.
const addressDigest = suite.Sha256

// RootInfo points at the user's root object and the key that wraps its keys.
type RootInfo struct {
	RootObject uuid.UUID
	RootKey    uuid.UUID
}

// UserService handles registration and the user-owned records: auth
// material, root info, and account deletion.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	registry    *suite.Registry
	acl         *AclService
	logger      logging.Logger
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, reg *suite.Registry, acl *AclService, logger logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		registry:    reg,
		acl:         acl,
		logger:      logger.With("module", "users"),
	}
}

// Register creates a new user from an address and the client-prepared auth
// material, wiring up fresh root object/key ids and seeding the owner ACL
// rows on the user object and the root object.
func (s *UserService) Register(ctx context.Context, address string, initial *models.AuthMaterial) (uuid.UUID, error) {
	if err := s.validateAuthMaterial(initial); err != nil {
		return uuid.Nil, err
	}
	if address == "" {
		return uuid.Nil, common.ErrValidation.WithMessage("empty user address")
	}

	digest, err := s.registry.Digest(addressDigest)
	if err != nil {
		return uuid.Nil, err
	}

	user := &models.UserRecord{
		ID:               uuid.New(),
		AddressDigestAlg: addressDigest,
		AddressHash:      suite.Sum(digest, []byte(address)),
		KDFBaseDigestAlg: initial.KDFBaseDigestAlg,
		KeyPairAlg:       initial.AuthKeyAlg,
		PubKey:           initial.PubKey,
		PrivKeyIV:        initial.PrivKeyIV,
		SealedPrivKey:    initial.SecuredPrivateKey,
		RootKeyID:        uuid.New(),
		RootObjectID:     uuid.New(),
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).Create(ctx, user); err != nil {
			return err
		}
		if err := s.acl.SeedOwner(ctx, tx, user.ID, user.ID); err != nil {
			return err
		}
		return s.acl.SeedOwner(ctx, tx, user.RootObjectID, user.ID)
	})
	if err != nil {
		return uuid.Nil, err
	}

	s.logger.Info(ctx, "registered user", "user", user.ID)
	return user.ID, nil
}

// GetAuth returns the user's auth material. Self-only.
func (s *UserService) GetAuth(ctx context.Context, actor, userID uuid.UUID) (*models.AuthMaterial, error) {
	if actor != userID {
		return nil, common.ErrNotFound
	}
	user, err := s.repomanager.Users(s.db).Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.AuthMaterial{
		KDFBaseDigestAlg:  user.KDFBaseDigestAlg,
		AuthKeyAlg:        user.KeyPairAlg,
		PubKey:            user.PubKey,
		PrivKeyIV:         user.PrivKeyIV,
		SecuredPrivateKey: user.SealedPrivKey,
	}, nil
}

// UpdateAuth replaces the user's auth material and revokes every live
// session, forcing re-authentication against the new key pair. Self-only.
func (s *UserService) UpdateAuth(ctx context.Context, actor, userID uuid.UUID, material *models.AuthMaterial) error {
	if actor != userID {
		return common.ErrNotFound
	}
	if err := s.validateAuthMaterial(material); err != nil {
		return err
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).UpdateAuth(ctx, userID, material); err != nil {
			return err
		}
		return s.repomanager.Sessions(tx).DeleteByUser(ctx, userID)
	})
}

// GetRootInfo returns the user's root object/key pointers. Allowed for the
// user themselves or subjects holding ReadRootInfo on the user object.
func (s *UserService) GetRootInfo(ctx context.Context, actor, userID uuid.UUID) (*RootInfo, error) {
	if actor != userID {
		ok, err := s.acl.Authorize(ctx, actor, models.ActionReadRootInfo, userID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, common.ErrNotFound
		}
	}
	user, err := s.repomanager.Users(s.db).Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &RootInfo{RootObject: user.RootObjectID, RootKey: user.RootKeyID}, nil
}

// UpdateRootInfo repoints the user's root object/key. Allowed for the user
// themselves or subjects holding WriteRootInfo on the user object.
func (s *UserService) UpdateRootInfo(ctx context.Context, actor, userID uuid.UUID, info *RootInfo) error {
	if actor != userID {
		ok, err := s.acl.Authorize(ctx, actor, models.ActionWriteRootInfo, userID)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrNotFound
		}
	}
	return s.repomanager.Users(s.db).UpdateRootInfo(ctx, userID, info.RootObject, info.RootKey)
}

// GetPublicKey returns the user's registered public key and algorithm. Any
// authenticated caller may ask.
func (s *UserService) GetPublicKey(ctx context.Context, userID uuid.UUID) (suite.AsymmetricAlgorithm, []byte, error) {
	user, err := s.repomanager.Users(s.db).Get(ctx, userID)
	if err != nil {
		return "", nil, err
	}
	return user.KeyPairAlg, user.PubKey, nil
}

// DeleteAccount removes the user and cascades: live sessions and pending
// challenges are revoked, and every ACL row naming the user as subject or
// attached to the user object is removed. Self-only (or global Owner).
func (s *UserService) DeleteAccount(ctx context.Context, actor, userID uuid.UUID) error {
	if actor != userID {
		ok, err := s.acl.Authorize(ctx, actor, models.ActionOwner, models.GlobalScope)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrNotFound
		}
	}
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Sessions(tx).DeleteByUser(ctx, userID); err != nil {
			return err
		}
		if err := s.repomanager.Challenges(tx).DeleteByUser(ctx, userID); err != nil {
			return err
		}
		if err := s.repomanager.Acl(tx).DeleteBySubject(ctx, userID); err != nil {
			return err
		}
		if err := s.repomanager.Acl(tx).DeleteByObject(ctx, userID); err != nil {
			return err
		}
		return s.repomanager.Users(tx).Delete(ctx, userID)
	})
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "deleted account", "user", userID)
	return nil
}

func (s *UserService) validateAuthMaterial(material *models.AuthMaterial) error {
	if material == nil {
		return common.ErrValidation.WithMessage("missing auth material")
	}
	if len(material.PubKey) == 0 {
		return common.ErrValidation.WithMessage("empty public key")
	}
	if _, err := s.registry.Asymmetric(material.AuthKeyAlg); err != nil {
		return err
	}
	if _, err := s.registry.Digest(material.KDFBaseDigestAlg); err != nil {
		return err
	}
	return nil
}
