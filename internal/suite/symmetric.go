package suite

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"

	"github.com/passman-project/passman/internal/common"
	"golang.org/x/crypto/chacha20poly1305"
)

func standardSymmetric() []SymmetricCipher {
	return []SymmetricCipher{
		&aeadCipher{alg: Aes128Gcm, keySize: 16, newAEAD: newGCM},
		&aeadCipher{alg: Aes256Gcm, keySize: 32, newAEAD: newGCM},
		&aeadCipher{alg: Chacha20, keySize: chacha20poly1305.KeySize, newAEAD: chacha20poly1305.New},
		&cbcCipher{alg: Aes128Cbc, keySize: 16},
		&cbcCipher{alg: Aes256Cbc, keySize: 32},
	}
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// aeadCipher covers the AEAD modes (AES-GCM, ChaCha20-Poly1305). The tag is
// split off the sealed output so it travels as a separate field.
type aeadCipher struct {
	alg     SymmetricAlgorithm
	keySize int
	newAEAD func(key []byte) (cipher.AEAD, error)
}

func (c *aeadCipher) Algorithm() SymmetricAlgorithm { return c.alg }
func (c *aeadCipher) Authenticated() bool           { return true }
func (c *aeadCipher) KeySize() int                  { return c.keySize }

func (c *aeadCipher) Seal(key, plaintext []byte) ([]byte, []byte, []byte, error) {
	if len(key) != c.keySize {
		return nil, nil, nil, ErrCipher
	}
	aead, err := c.newAEAD(key)
	if err != nil {
		return nil, nil, nil, ErrCipher
	}
	iv := common.GenerateRandByteArray(aead.NonceSize())
	sealed := aead.Seal(nil, iv, plaintext, nil)
	split := len(sealed) - aead.Overhead()
	return sealed[:split], iv, sealed[split:], nil
}

func (c *aeadCipher) Open(key, ciphertext, iv, tag []byte) ([]byte, error) {
	if len(key) != c.keySize || tag == nil {
		return nil, ErrCipher
	}
	aead, err := c.newAEAD(key)
	if err != nil {
		return nil, ErrCipher
	}
	if len(iv) != aead.NonceSize() || len(tag) != aead.Overhead() {
		return nil, ErrCipher
	}
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrCipher
	}
	return plaintext, nil
}

// cbcCipher covers the unauthenticated AES-CBC modes with PKCS#7 padding.
// It produces no tag and rejects one on Open.
type cbcCipher struct {
	alg     SymmetricAlgorithm
	keySize int
}

func (c *cbcCipher) Algorithm() SymmetricAlgorithm { return c.alg }
func (c *cbcCipher) Authenticated() bool           { return false }
func (c *cbcCipher) KeySize() int                  { return c.keySize }

func (c *cbcCipher) Seal(key, plaintext []byte) ([]byte, []byte, []byte, error) {
	if len(key) != c.keySize {
		return nil, nil, nil, ErrCipher
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, nil, ErrCipher
	}
	iv := common.GenerateRandByteArray(aes.BlockSize)
	padded := padPKCS7(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return ciphertext, iv, nil, nil
}

func (c *cbcCipher) Open(key, ciphertext, iv, tag []byte) ([]byte, error) {
	if len(key) != c.keySize || tag != nil {
		return nil, ErrCipher
	}
	if len(iv) != aes.BlockSize || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrCipher
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrCipher
	}
	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)
	plaintext, ok := unpadPKCS7(padded, aes.BlockSize)
	if !ok {
		return nil, ErrCipher
	}
	return plaintext, nil
}

func padPKCS7(in []byte, blockSize int) []byte {
	pad := blockSize - len(in)%blockSize
	out := make([]byte, len(in)+pad)
	copy(out, in)
	for i := len(in); i < len(out); i++ {
		out[i] = byte(pad)
	}
	return out
}

func unpadPKCS7(in []byte, blockSize int) ([]byte, bool) {
	if len(in) == 0 || len(in)%blockSize != 0 {
		return nil, false
	}
	pad := int(in[len(in)-1])
	if pad == 0 || pad > blockSize || pad > len(in) {
		return nil, false
	}
	ok := 1
	for _, b := range in[len(in)-pad:] {
		ok &= subtle.ConstantTimeByteEq(b, byte(pad))
	}
	if ok != 1 {
		return nil, false
	}
	return in[:len(in)-pad], true
}
