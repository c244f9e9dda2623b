package suite

import (
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"golang.org/x/crypto/sha3"
)

func standardDigests() []Digest {
	return []Digest{
		&digest{alg: Sha256, size: sha256.Size, factory: sha256.New},
		&digest{alg: Sha224, size: sha256.Size224, factory: sha256.New224},
		&digest{alg: Sha384, size: sha512.Size384, factory: sha512.New384},
		&digest{alg: Sha512, size: sha512.Size, factory: sha512.New},
		&digest{alg: Sha512_256, size: sha512.Size256, factory: sha512.New512_256},
		&digest{alg: Sha512_224, size: sha512.Size224, factory: sha512.New512_224},
		&digest{alg: Sha3_256, size: 32, factory: sha3.New256},
		&digest{alg: Sha3_512, size: 64, factory: sha3.New512},
	}
}

type digest struct {
	alg     DigestAlgorithm
	size    int
	factory func() hash.Hash
}

func (d *digest) Algorithm() DigestAlgorithm { return d.alg }
func (d *digest) New() hash.Hash             { return d.factory() }
func (d *digest) Size() int                  { return d.size }

// Sum hashes data with the capability in one call.
func Sum(d Digest, in []byte) []byte {
	h := d.New()
	h.Write(in)
	return h.Sum(nil)
}
