package cipher

import (
	stdcipher "crypto/cipher"
	"encoding/binary"
)

// Speck64/128 block cipher. Hand-written because no suitable third-party
// implementation exists (documented in DESIGN.md); everything around it
// (the SymmetricCipher adapter, CTR mode via stdlib, the Factory wiring)
// stays on the same ecosystem/stdlib path the other four algorithms use.
const (
	speckWords  = 4  // 128-bit key as four 32-bit words
	speckRounds = 27 // rounds for Speck64/128
	speckAlpha  = 8
	speckBeta   = 3
)

func rotr32(x uint32, r uint) uint32 { return (x >> r) | (x << (32 - r)) }
func rotl32(x uint32, r uint) uint32 { return (x << r) | (x >> (32 - r)) }

// speckBlock implements crypto/cipher.Block for Speck64/128 (8-byte
// blocks, 16-byte keys), so it can be driven by stdlib's generic CTR
// machinery exactly like the XTEA adapter.
type speckBlock struct {
	roundKeys [speckRounds]uint32
}

func newSpeckBlock(key []byte) (*speckBlock, error) {
	if len(key) != 16 {
		return nil, ErrInvalidKeySize
	}
	var l [speckRounds + speckWords - 1]uint32
	var k [speckRounds]uint32

	k[0] = binary.LittleEndian.Uint32(key[0:4])
	l[0] = binary.LittleEndian.Uint32(key[4:8])
	l[1] = binary.LittleEndian.Uint32(key[8:12])
	l[2] = binary.LittleEndian.Uint32(key[12:16])

	for i := 0; i < speckRounds-1; i++ {
		l[i+speckWords-1] = (k[i] + rotr32(l[i], speckAlpha)) ^ uint32(i)
		k[i+1] = rotl32(k[i], speckBeta) ^ l[i+speckWords-1]
	}
	b := &speckBlock{}
	copy(b.roundKeys[:], k[:])
	return b, nil
}

func (b *speckBlock) BlockSize() int { return 8 }

func (b *speckBlock) Encrypt(dst, src []byte) {
	x := binary.LittleEndian.Uint32(src[0:4])
	y := binary.LittleEndian.Uint32(src[4:8])
	for i := 0; i < speckRounds; i++ {
		x = (rotr32(x, speckAlpha) + y) ^ b.roundKeys[i]
		y = rotl32(y, speckBeta) ^ x
	}
	binary.LittleEndian.PutUint32(dst[0:4], x)
	binary.LittleEndian.PutUint32(dst[4:8], y)
}

func (b *speckBlock) Decrypt(dst, src []byte) {
	x := binary.LittleEndian.Uint32(src[0:4])
	y := binary.LittleEndian.Uint32(src[4:8])
	for i := speckRounds - 1; i >= 0; i-- {
		y = rotr32(y^x, speckBeta)
		x = rotl32((x^b.roundKeys[i])-y, speckAlpha)
	}
	binary.LittleEndian.PutUint32(dst[0:4], x)
	binary.LittleEndian.PutUint32(dst[4:8], y)
}

// speckCipher adapts speckBlock (run in CTR mode) to SymmetricCipher.
// Like Salsa20 and XTEA, this is a non-AEAD algorithm: Overhead()==0.
type speckCipher struct {
	block stdcipher.Block
}

// NewSpeck is a cipher.Factory for AlgorithmSpeck. key must be exactly 16
// bytes.
func NewSpeck(key []byte) (SymmetricCipher, error) {
	block, err := newSpeckBlock(key)
	if err != nil {
		return nil, err
	}
	return &speckCipher{block: block}, nil
}

func (c *speckCipher) Algorithm() Algorithm { return AlgorithmSpeck }
func (c *speckCipher) NonceSize() int       { return c.block.BlockSize() }
func (c *speckCipher) Overhead() int        { return 0 }

func (c *speckCipher) Seal(dst, nonce, plaintext, _ []byte) []byte {
	stream := stdcipher.NewCTR(c.block, nonce)
	out := make([]byte, len(plaintext))
	stream.XORKeyStream(out, plaintext)
	return append(dst, out...)
}

func (c *speckCipher) Open(dst, nonce, ciphertext, _ []byte) ([]byte, error) {
	stream := stdcipher.NewCTR(c.block, nonce)
	out := make([]byte, len(ciphertext))
	stream.XORKeyStream(out, ciphertext)
	return append(dst, out...), nil
}
