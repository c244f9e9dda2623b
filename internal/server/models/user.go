// Package models defines the server-side record types persisted by the
// repositories. The server never sees plaintext secrets: sealed private keys
// and item content keys are opaque ciphertext here.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/suite"
)

// UserRecord is the identity anchor. The address itself is never stored;
// only a one-way hash used for lookup survives registration.
type UserRecord struct {
	ID                 uuid.UUID
	AddressDigestAlg   suite.DigestAlgorithm
	AddressHash        []byte
	KDFBaseDigestAlg   suite.DigestAlgorithm
	KeyPairAlg         suite.AsymmetricAlgorithm
	PubKey             []byte
	PrivKeyIV          []byte
	SealedPrivKey      []byte
	RootKeyID          uuid.UUID
	RootObjectID       uuid.UUID
	CreatedAt          time.Time
}

// AuthMaterial is the client-managed authentication bundle: the key-pair
// algorithm, the public key, and the private key sealed under a key derived
// on the client. Mutated only by the owning user.
type AuthMaterial struct {
	KDFBaseDigestAlg  suite.DigestAlgorithm
	AuthKeyAlg        suite.AsymmetricAlgorithm
	PubKey            []byte
	PrivKeyIV         []byte
	SecuredPrivateKey []byte
}
