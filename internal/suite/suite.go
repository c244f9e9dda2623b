// Package suite defines the algorithm tags understood by the protocol and a
// capability registry mapping each tag to an available implementation.
//
// Tags form open sets: unknown values survive decoding and only fail when a
// capability is looked up, so new algorithms can be introduced without
// breaking existing deployments.
package suite

// SymmetricAlgorithm tags a symmetric cipher. The kebab-case string is the
// wire form.
type SymmetricAlgorithm string

const (
	Aes128Gcm SymmetricAlgorithm = "aes128-gcm"
	Aes128Cbc SymmetricAlgorithm = "aes128-cbc"
	Aes256Gcm SymmetricAlgorithm = "aes256-gcm"
	Aes256Cbc SymmetricAlgorithm = "aes256-cbc"
	Chacha20  SymmetricAlgorithm = "chacha20"
)

// AsymmetricAlgorithm tags a signature key-pair algorithm.
type AsymmetricAlgorithm string

const (
	Rsa2048 AsymmetricAlgorithm = "rsa2048"
	Rsa4096 AsymmetricAlgorithm = "rsa4096"
	Ec25519 AsymmetricAlgorithm = "ec25519"
)

// DigestAlgorithm tags a cryptographic hash function.
type DigestAlgorithm string

const (
	Sha256     DigestAlgorithm = "sha256"
	Sha224     DigestAlgorithm = "sha224"
	Sha384     DigestAlgorithm = "sha384"
	Sha512     DigestAlgorithm = "sha512"
	Sha512_256 DigestAlgorithm = "sha512/256"
	Sha512_224 DigestAlgorithm = "sha512/224"
	Sha3_256   DigestAlgorithm = "sha3-256"
	Sha3_512   DigestAlgorithm = "sha3-512"
)
