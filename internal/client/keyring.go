package client

import (
	"context"
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/api"
	"github.com/passman-project/passman/internal/common"
	"github.com/passman-project/passman/internal/data"
	"github.com/passman-project/passman/internal/suite"
)

// privKeyCipher seals the private key under the master key. The auth tag is
// appended to the sealed blob so the wire shape stays a single byte field.
const privKeyCipher = suite.Aes256Gcm

// Keyring holds the client-side secrets for one user: the master key derived
// from the password and the unsealed signing key. It never leaves the
// process.
type Keyring struct {
	registry *suite.Registry
	auth     api.UserAuth
	priv     []byte
}

// deriveMasterKey stretches the password with argon2id. The salt is the
// digest of the user address under the registered KDF base digest, so the
// same password yields different keys for different addresses.
func deriveMasterKey(reg *suite.Registry, alg suite.DigestAlgorithm, address string, password []byte) ([]byte, error) {
	digest, err := reg.Digest(alg)
	if err != nil {
		return nil, err
	}
	salt := suite.Sum(digest, []byte(address))
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32), nil
}

// NewKeyring generates a fresh key pair and seals the private key under the
// password-derived master key, producing the auth material to register with.
func NewKeyring(reg *suite.Registry, kdfDigest suite.DigestAlgorithm, keyAlg suite.AsymmetricAlgorithm, address string, password []byte) (*Keyring, error) {
	asym, err := reg.Asymmetric(keyAlg)
	if err != nil {
		return nil, err
	}
	pub, priv, err := asym.GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	masterKey, err := deriveMasterKey(reg, kdfDigest, address, password)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(masterKey)

	sym, err := reg.Symmetric(privKeyCipher)
	if err != nil {
		return nil, err
	}
	sealed, iv, tag, err := sym.Seal(masterKey, priv)
	if err != nil {
		return nil, err
	}

	kr := &Keyring{
		registry: reg,
		auth: api.UserAuth{
			KDFBaseDigestAlg:  kdfDigest,
			AuthKeyAlg:        keyAlg,
			PubKey:            data.Bytes(pub),
			PrivKeyIV:         data.Bytes(iv),
			SecuredPrivateKey: data.Bytes(append(sealed, tag...)),
		},
		priv: priv,
	}
	return kr, nil
}

// Unlock decrypts the sealed private key fetched from the server. A wrong
// password surfaces as ErrNotAuthenticated.
func Unlock(reg *suite.Registry, auth api.UserAuth, address string, password []byte) (*Keyring, error) {
	masterKey, err := deriveMasterKey(reg, auth.KDFBaseDigestAlg, address, password)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(masterKey)

	sym, err := reg.Symmetric(privKeyCipher)
	if err != nil {
		return nil, err
	}
	sealed := []byte(auth.SecuredPrivateKey)
	tagSize := 16
	if len(sealed) < tagSize {
		return nil, common.ErrValidation.WithMessage("sealed private key too short")
	}
	priv, err := sym.Open(masterKey, sealed[:len(sealed)-tagSize], auth.PrivKeyIV, sealed[len(sealed)-tagSize:])
	if err != nil {
		return nil, common.ErrNotAuthenticated.WithMessage("cannot unlock private key")
	}
	return &Keyring{registry: reg, auth: auth, priv: priv}, nil
}

// Auth returns the sealed auth material suitable for registration or an auth
// update.
func (k *Keyring) Auth() api.UserAuth {
	return k.auth
}

// Sign signs the challenge bytes with the unsealed private key.
func (k *Keyring) Sign(challenge []byte) ([]byte, error) {
	asym, err := k.registry.Asymmetric(k.auth.AuthKeyAlg)
	if err != nil {
		return nil, err
	}
	return asym.Sign(k.priv, challenge)
}

// Wipe clears the unsealed private key.
func (k *Keyring) Wipe() {
	common.WipeByteArray(k.priv)
	k.priv = nil
}

// Login runs the full challenge-response exchange: fetch a challenge for
// userID, sign it, and present the signature.
func Login(ctx context.Context, c *Client, kr *Keyring, userID uuid.UUID) error {
	sessionID, challenge, err := c.BeginChallenge(ctx, userID)
	if err != nil {
		return err
	}
	signature, err := kr.Sign(challenge.ChallengeBytes)
	if err != nil {
		return fmt.Errorf("signing challenge: %w", err)
	}
	return c.FulfillChallenge(ctx, sessionID, signature)
}
