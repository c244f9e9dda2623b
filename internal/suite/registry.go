package suite

import (
	"errors"
	"hash"

	"github.com/passman-project/passman/internal/common"
)

// ErrCipher is the single external signal for every cryptographic failure.
// It deliberately does not distinguish a wrong key from corrupt ciphertext.
var ErrCipher = errors.New("cipher operation failed")

// SymmetricCipher is the capability interface for one symmetric algorithm.
type SymmetricCipher interface {
	Algorithm() SymmetricAlgorithm

	// Authenticated reports whether the cipher is an AEAD mode. AEAD
	// ciphers produce and require an auth tag; others must not carry one.
	Authenticated() bool

	KeySize() int

	// Seal encrypts plaintext under key with a freshly generated IV.
	// tag is non-nil exactly when Authenticated() is true.
	Seal(key, plaintext []byte) (ciphertext, iv, tag []byte, err error)

	// Open decrypts ciphertext. For AEAD modes the tag is verified before
	// any plaintext is returned. All failures yield ErrCipher.
	Open(key, ciphertext, iv, tag []byte) ([]byte, error)
}

// AsymmetricCipher is the capability interface for one signature algorithm.
// Keys are handled as raw byte encodings; the capability owns their format.
type AsymmetricCipher interface {
	Algorithm() AsymmetricAlgorithm
	GenerateKeyPair() (pub, priv []byte, err error)
	Sign(priv, message []byte) ([]byte, error)

	// Verify checks sig over message. Any failure yields ErrCipher.
	Verify(pub, message, sig []byte) error
}

// Digest is the capability interface for one hash algorithm.
type Digest interface {
	Algorithm() DigestAlgorithm
	New() hash.Hash
	Size() int
}

// Registry maps algorithm tags to available capabilities. Lookups on unknown
// tags report common.ErrUnsupported; they never panic.
type Registry struct {
	symmetric  map[SymmetricAlgorithm]SymmetricCipher
	asymmetric map[AsymmetricAlgorithm]AsymmetricCipher
	digests    map[DigestAlgorithm]Digest
}

// NewRegistry returns a Registry populated with the standard capability set.
func NewRegistry() *Registry {
	r := &Registry{
		symmetric:  make(map[SymmetricAlgorithm]SymmetricCipher),
		asymmetric: make(map[AsymmetricAlgorithm]AsymmetricCipher),
		digests:    make(map[DigestAlgorithm]Digest),
	}
	for _, c := range standardSymmetric() {
		r.RegisterSymmetric(c)
	}
	for _, c := range standardAsymmetric() {
		r.RegisterAsymmetric(c)
	}
	for _, d := range standardDigests() {
		r.RegisterDigest(d)
	}
	return r
}

func (r *Registry) RegisterSymmetric(c SymmetricCipher) {
	r.symmetric[c.Algorithm()] = c
}

func (r *Registry) RegisterAsymmetric(c AsymmetricCipher) {
	r.asymmetric[c.Algorithm()] = c
}

func (r *Registry) RegisterDigest(d Digest) {
	r.digests[d.Algorithm()] = d
}

func (r *Registry) Symmetric(alg SymmetricAlgorithm) (SymmetricCipher, error) {
	c, ok := r.symmetric[alg]
	if !ok {
		return nil, common.ErrUnsupported.WithMessage("no symmetric cipher for tag %q", alg)
	}
	return c, nil
}

func (r *Registry) Asymmetric(alg AsymmetricAlgorithm) (AsymmetricCipher, error) {
	c, ok := r.asymmetric[alg]
	if !ok {
		return nil, common.ErrUnsupported.WithMessage("no asymmetric cipher for tag %q", alg)
	}
	return c, nil
}

func (r *Registry) Digest(alg DigestAlgorithm) (Digest, error) {
	d, ok := r.digests[alg]
	if !ok {
		return nil, common.ErrUnsupported.WithMessage("no digest for tag %q", alg)
	}
	return d, nil
}
