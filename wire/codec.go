package wire

import (
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/nalix-systems/nalixcore/nalixerr"
	"github.com/nalix-systems/nalixcore/packet"
)

// Encode writes p's header and payload into dst, which must be at least
// p.Length bytes. Encode performs no allocation on its own; callers that
// want to avoid allocating dst themselves should rent it from a pool.
func Encode(dst []byte, p *packet.Packet) error {
	if len(dst) < int(p.Length) {
		return nalixerr.ErrBufferTooSmall
	}
	PutHeader(dst, Header{
		Length:    p.Length,
		Magic:     p.Magic,
		Opcode:    p.Opcode,
		Flags:     p.Flags,
		Priority:  p.Priority,
		Transport: p.Transport,
		ID:        p.ID,
		Timestamp: p.Timestamp,
		Checksum:  p.Checksum,
	})
	copy(dst[Size:p.Length], p.Payload)
	return nil
}

// EncodedLen reports how many bytes Encode needs to write p.
func EncodedLen(p *packet.Packet) int { return int(p.Length) }

// Decode parses a framed packet out of data. data may contain trailing
// bytes beyond the packet (they are ignored); it must contain at least
// Size bytes or ErrTruncated is returned.
//
// validateCRC controls whether the payload checksum is verified: the hot
// path typically runs with validation disabled (the checksum is advisory
// there) while tests and any Signed-flagged traffic should pass true.
func Decode(data []byte, validateCRC bool, pool packet.BufferReturner) (*packet.Packet, error) {
	if len(data) < Size {
		return nil, nalixerr.ErrTruncated
	}
	h := ParseHeader(data)
	if h.Length < packet.HeaderSize || int(h.Length) > packet.MaxLength {
		return nil, nalixerr.ErrInvalidLength
	}
	if len(data) < int(h.Length) {
		return nil, nalixerr.ErrTruncated
	}
	payloadSrc := data[Size:h.Length]
	if validateCRC && crc32.ChecksumIEEE(payloadSrc) != h.Checksum {
		return nil, nalixerr.ErrInvalidChecksum
	}
	buf, pooled := packet.AllocPayload(payloadSrc, pool)
	dh := packet.DecodedHeader{
		Magic: h.Magic, Opcode: h.Opcode, Flags: h.Flags, Priority: h.Priority,
		Transport: h.Transport, Length: h.Length, Checksum: h.Checksum,
		Timestamp: h.Timestamp, ID: h.ID,
	}
	return packet.FromDecoded(dh, buf, pooled, pool), nil
}

// ReadFromStream reads exactly one framed packet from r: first the 2-byte
// length prefix (never more — the size is read before deciding how much
// more to pull), then the remainder of the header and the payload. The
// caller must not retain the returned packet's buffer beyond releasing it
// via Packet.Release when pool is non-nil.
func ReadFromStream(r io.Reader, validateCRC bool, pool packet.BufferReturner) (*packet.Packet, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint16(lenBuf[:])
	if int(length) < packet.HeaderSize {
		return nil, nalixerr.ErrInvalidLength
	}
	rest := make([]byte, int(length)-2)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}
	full := make([]byte, length)
	copy(full[:2], lenBuf[:])
	copy(full[2:], rest)
	return Decode(full, validateCRC, pool)
}

// WriteToStream renders p into a rented buffer and writes it to w in one
// call: the buffer is sized once and handed to a single Write.
func WriteToStream(w io.Writer, p *packet.Packet, rent func(n int) []byte) error {
	var buf []byte
	if rent != nil {
		buf = rent(int(p.Length))[:p.Length]
	} else {
		buf = make([]byte, p.Length)
	}
	if err := Encode(buf, p); err != nil {
		return err
	}
	_, err := w.Write(buf)
	return err
}
