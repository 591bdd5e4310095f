// Package wire implements the framed byte-level codec: the exact header
// layout, length framing, and CRC validation packets use on the wire.
// Framing follows a length-prefix-then-body discipline with buffers
// rented from a pool; a plain CRC32 checksum covers the payload at this
// layer (encryption, where present, is a payload transform applied by
// middleware.Unwrap/Wrap, not a codec concern).
package wire

import (
	"encoding/binary"

	"github.com/nalix-systems/nalixcore/packet"
)

// Header mirrors the fixed 24-byte wire header. It exists as a distinct
// type so Encode/Decode can be tested independently of packet.Packet
// construction.
type Header struct {
	Length    uint16
	Magic     uint32
	Opcode    uint16
	Flags     packet.Flags
	Priority  packet.Priority
	Transport packet.Transport
	ID        uint8
	Timestamp uint64
	Checksum  uint32
}

// Size is the encoded header width in bytes.
const Size = packet.HeaderSize

// PutHeader writes h into the first Size bytes of dst, little-endian.
func PutHeader(dst []byte, h Header) {
	_ = dst[:Size] // bounds check hint
	binary.LittleEndian.PutUint16(dst[0:2], h.Length)
	binary.LittleEndian.PutUint32(dst[2:6], h.Magic)
	binary.LittleEndian.PutUint16(dst[6:8], h.Opcode)
	dst[8] = byte(h.Flags)
	dst[9] = byte(h.Priority)
	dst[10] = byte(h.Transport)
	dst[11] = h.ID
	binary.LittleEndian.PutUint64(dst[12:20], h.Timestamp)
	binary.LittleEndian.PutUint32(dst[20:24], h.Checksum)
}

// ParseHeader reads a Header from the first Size bytes of src. The caller
// must ensure len(src) >= Size.
func ParseHeader(src []byte) Header {
	_ = src[:Size]
	return Header{
		Length:    binary.LittleEndian.Uint16(src[0:2]),
		Magic:     binary.LittleEndian.Uint32(src[2:6]),
		Opcode:    binary.LittleEndian.Uint16(src[6:8]),
		Flags:     packet.Flags(src[8]),
		Priority:  packet.Priority(src[9]),
		Transport: packet.Transport(src[10]),
		ID:        src[11],
		Timestamp: binary.LittleEndian.Uint64(src[12:20]),
		Checksum:  binary.LittleEndian.Uint32(src[20:24]),
	}
}
