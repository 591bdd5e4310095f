package cipher

import (
	stdcipher "crypto/cipher"

	"golang.org/x/crypto/chacha20poly1305"
)

// chacha20Poly1305Cipher adapts golang.org/x/crypto/chacha20poly1305 to
// SymmetricCipher. cmd/nalixd configures its connections with this
// algorithm.
type chacha20Poly1305Cipher struct {
	aead stdcipher.AEAD
}

// NewChaCha20Poly1305 is a cipher.Factory for AlgorithmChaCha20Poly1305.
func NewChaCha20Poly1305(key []byte) (SymmetricCipher, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return &chacha20Poly1305Cipher{aead: aead}, nil
}

func (c *chacha20Poly1305Cipher) Algorithm() Algorithm { return AlgorithmChaCha20Poly1305 }
func (c *chacha20Poly1305Cipher) NonceSize() int       { return c.aead.NonceSize() }
func (c *chacha20Poly1305Cipher) Overhead() int        { return c.aead.Overhead() }

func (c *chacha20Poly1305Cipher) Seal(dst, nonce, plaintext, aad []byte) []byte {
	return c.aead.Seal(dst, nonce, plaintext, aad)
}

func (c *chacha20Poly1305Cipher) Open(dst, nonce, ciphertext, aad []byte) ([]byte, error) {
	out, err := c.aead.Open(dst, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return out, nil
}
