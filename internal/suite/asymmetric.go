package suite

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
)

func standardAsymmetric() []AsymmetricCipher {
	return []AsymmetricCipher{
		&rsaCipher{alg: Rsa2048, bits: 2048},
		&rsaCipher{alg: Rsa4096, bits: 4096},
		&ed25519Cipher{},
	}
}

// rsaCipher signs with RSA-PSS over SHA-256. Public keys are PKIX DER,
// private keys PKCS#8 DER.
type rsaCipher struct {
	alg  AsymmetricAlgorithm
	bits int
}

func (c *rsaCipher) Algorithm() AsymmetricAlgorithm { return c.alg }

func (c *rsaCipher) GenerateKeyPair() ([]byte, []byte, error) {
	key, err := rsa.GenerateKey(rand.Reader, c.bits)
	if err != nil {
		return nil, nil, err
	}
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, err
	}
	priv, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, err
	}
	return pub, priv, nil
}

func (c *rsaCipher) Sign(priv, message []byte) ([]byte, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(priv)
	if err != nil {
		return nil, ErrCipher
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok || key.Size()*8 != c.bits {
		return nil, ErrCipher
	}
	digest := sha256.Sum256(message)
	sig, err := rsa.SignPSS(rand.Reader, key, crypto.SHA256, digest[:], nil)
	if err != nil {
		return nil, ErrCipher
	}
	return sig, nil
}

func (c *rsaCipher) Verify(pub, message, sig []byte) error {
	parsed, err := x509.ParsePKIXPublicKey(pub)
	if err != nil {
		return ErrCipher
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok || key.Size()*8 != c.bits {
		return ErrCipher
	}
	digest := sha256.Sum256(message)
	if err := rsa.VerifyPSS(key, crypto.SHA256, digest[:], sig, nil); err != nil {
		return ErrCipher
	}
	return nil
}

// ed25519Cipher uses raw 32/64-byte key encodings.
type ed25519Cipher struct{}

func (c *ed25519Cipher) Algorithm() AsymmetricAlgorithm { return Ec25519 }

func (c *ed25519Cipher) GenerateKeyPair() ([]byte, []byte, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return pub, priv, nil
}

func (c *ed25519Cipher) Sign(priv, message []byte) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, ErrCipher
	}
	return ed25519.Sign(ed25519.PrivateKey(priv), message), nil
}

func (c *ed25519Cipher) Verify(pub, message, sig []byte) error {
	if len(pub) != ed25519.PublicKeySize {
		return ErrCipher
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), message, sig) {
		return ErrCipher
	}
	return nil
}
