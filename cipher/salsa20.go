package cipher

import "golang.org/x/crypto/salsa20"

const salsa20NonceSize = 8

// salsa20Cipher adapts golang.org/x/crypto/salsa20 to SymmetricCipher. It is
// a pure stream cipher: Overhead is 0 and Open never fails on tampered
// input, so the packet's own checksum (not this cipher) is the only
// integrity signal for non-AEAD algorithms.
type salsa20Cipher struct {
	key [32]byte
}

// NewSalsa20 is a cipher.Factory for AlgorithmSalsa20. key must be exactly
// 32 bytes.
func NewSalsa20(key []byte) (SymmetricCipher, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKeySize
	}
	c := &salsa20Cipher{}
	copy(c.key[:], key)
	return c, nil
}

func (c *salsa20Cipher) Algorithm() Algorithm { return AlgorithmSalsa20 }
func (c *salsa20Cipher) NonceSize() int       { return salsa20NonceSize }
func (c *salsa20Cipher) Overhead() int        { return 0 }

func (c *salsa20Cipher) Seal(dst, nonce, plaintext, _ []byte) []byte {
	out := make([]byte, len(plaintext))
	salsa20.XORKeyStream(out, plaintext, nonce, &c.key)
	return append(dst, out...)
}

func (c *salsa20Cipher) Open(dst, nonce, ciphertext, _ []byte) ([]byte, error) {
	out := make([]byte, len(ciphertext))
	salsa20.XORKeyStream(out, ciphertext, nonce, &c.key)
	return append(dst, out...), nil
}
