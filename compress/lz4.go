// Package compress implements the payload compression step the transform
// registry and Wrap/Unwrap middlewares call into. It uses
// github.com/pierrec/lz4/v3, block mode, the same dependency aistore (also
// in the retrieval pack) carries for its own object transfer pipeline —
// block-mode LZ4 suits packet-sized payloads far better than a streaming
// format, since there is no long-lived stream to amortize framing over.
package compress

import (
	"encoding/binary"

	"github.com/pierrec/lz4/v3"
)

// Compress returns an LZ4 block-compressed copy of src, prefixed with a
// 4-byte little-endian original length (lz4.UncompressBlock needs to know
// the decompressed size up front).
func Compress(src []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(src))
	dst := make([]byte, 4+bound)
	binary.LittleEndian.PutUint32(dst[:4], uint32(len(src)))

	var ht [1 << 16]int
	n, err := lz4.CompressBlock(src, dst[4:], ht[:])
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// incompressible input: lz4 declines to compress; store raw and
		// set incompressibleBit in the length prefix for Decompress.
		dst = dst[:4]
		dst = append(dst, src...)
		binary.LittleEndian.PutUint32(dst[:4], uint32(len(src))|incompressibleBit)
		return dst, nil
	}
	return dst[:4+n], nil
}

// incompressibleBit flags the length prefix when the payload was stored
// raw because LZ4 could not shrink it; it is cleared before reading the
// true length.
const incompressibleBit = 1 << 31

// Decompress reverses Compress.
func Decompress(src []byte) ([]byte, error) {
	if len(src) < 4 {
		return nil, ErrMalformed
	}
	rawLen := binary.LittleEndian.Uint32(src[:4])
	if rawLen&incompressibleBit != 0 {
		return append([]byte(nil), src[4:]...), nil
	}
	dst := make([]byte, rawLen)
	n, err := lz4.UncompressBlock(src[4:], dst)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}
