package cipher

import (
	stdcipher "crypto/cipher"

	"golang.org/x/crypto/xtea"
)

// xteaCipher runs XTEA (golang.org/x/crypto/xtea) in CTR mode via the
// standard library's generic cipher.Stream machinery. XTEA is itself a
// plain block cipher with no authentication, so like Salsa20 this adapter
// reports Overhead()==0.
type xteaCipher struct {
	block stdcipher.Block
}

// NewXTEA is a cipher.Factory for AlgorithmXTEA. key must be exactly 16
// bytes.
func NewXTEA(key []byte) (SymmetricCipher, error) {
	block, err := xtea.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &xteaCipher{block: block}, nil
}

func (c *xteaCipher) Algorithm() Algorithm { return AlgorithmXTEA }
func (c *xteaCipher) NonceSize() int       { return xtea.BlockSize }
func (c *xteaCipher) Overhead() int        { return 0 }

func (c *xteaCipher) Seal(dst, nonce, plaintext, _ []byte) []byte {
	stream := stdcipher.NewCTR(c.block, nonce)
	out := make([]byte, len(plaintext))
	stream.XORKeyStream(out, plaintext)
	return append(dst, out...)
}

func (c *xteaCipher) Open(dst, nonce, ciphertext, _ []byte) ([]byte, error) {
	stream := stdcipher.NewCTR(c.block, nonce)
	out := make([]byte, len(ciphertext))
	stream.XORKeyStream(out, ciphertext)
	return append(dst, out...), nil
}
