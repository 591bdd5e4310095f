// Package packet defines the wire packet value type and its invariants.
// A Packet is a plain value: construction computes derived fields
// (timestamp, id, checksum), and the only mutators are UpdatePayload and
// UpdateFlags, both of which keep those derived fields consistent.
package packet

import (
	"hash/crc32"
	"time"
)

// HeaderSize is the fixed wire header width in bytes: see wire.Header for
// the exact field layout this size corresponds to.
const HeaderSize = 24

// MaxLength is the largest value Length may take; it is also the largest
// value a u16 length field can represent.
const MaxLength = 65535

// MaxPayload is the largest payload a packet may carry.
const MaxPayload = MaxLength - HeaderSize

// Buffer tiering thresholds for payload storage, per the three-tier
// strategy: stack-copy small payloads, exact heap allocation for medium
// ones, and pool rental for the rest.
const (
	stackThreshold = 128
	heapThreshold  = 256
)

// bufKind records which allocation strategy produced a packet's payload
// buffer, so Release knows whether to return it to a pool.
type bufKind uint8

const (
	bufStack bufKind = iota
	bufHeap
	bufPooled
)

// BufferReturner is satisfied by a pool that can reclaim a payload buffer.
// Packet.Release calls back into it when the payload was pool-rented.
type BufferReturner interface {
	Put([]byte)
}

// Packet is the core wire value. All fields are exported so transformer
// and middleware code can read them directly; mutation is restricted to
// the methods below to keep checksum and length consistent.
type Packet struct {
	Magic     uint32
	Opcode    uint16
	Flags     Flags
	Priority  Priority
	Transport Transport
	Length    uint16
	Checksum  uint32
	Timestamp uint64
	ID        uint8
	Payload   []byte

	kind  bufKind
	owner BufferReturner
}

// nowMillis returns the current Unix time in milliseconds.
func nowMillis() uint64 { return uint64(time.Now().UnixMilli()) }

// New constructs a Packet from raw fields, computing Timestamp, ID, Length
// and Checksum. The payload is copied using the three-tier allocation
// strategy; pass a non-nil pool to allow tier three to rent from it.
func New(magic uint32, opcode uint16, flags Flags, pri Priority, tr Transport, payload []byte, pool BufferReturner) (*Packet, error) {
	if len(payload) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	buf, kind := allocPayload(payload, pool)
	p := &Packet{
		Magic:     magic,
		Opcode:    opcode,
		Flags:     flags,
		Priority:  pri,
		Transport: tr,
		Timestamp: nowMillis(),
		Payload:   buf,
		kind:      kind,
		owner:     pool,
	}
	p.ID = uint8(p.Timestamp % 256)
	p.Length = uint16(HeaderSize + len(buf))
	p.Checksum = crc32.ChecksumIEEE(buf)
	return p, nil
}

// DecodedHeader carries the fields wire.ParseHeader extracts, so
// FromDecoded doesn't need to depend on the wire package (which itself
// depends on packet).
type DecodedHeader struct {
	Magic     uint32
	Opcode    uint16
	Flags     Flags
	Priority  Priority
	Transport Transport
	Length    uint16
	Checksum  uint32
	Timestamp uint64
	ID        uint8
}

// FromDecoded constructs a Packet from an already-decoded header and a
// payload buffer obtained via AllocPayload, trusting the wire checksum
// rather than recomputing it. wire.Decode is the only intended caller.
func FromDecoded(h DecodedHeader, payload []byte, pooled bool, pool BufferReturner) *Packet {
	kind := bufHeap
	if pooled {
		kind = bufPooled
	}
	return &Packet{
		Magic:     h.Magic,
		Opcode:    h.Opcode,
		Flags:     h.Flags,
		Priority:  h.Priority,
		Transport: h.Transport,
		Length:    h.Length,
		Checksum:  h.Checksum,
		Timestamp: h.Timestamp,
		ID:        h.ID,
		Payload:   payload,
		kind:      kind,
		owner:     pool,
	}
}

// AllocPayload copies src using the three-tier strategy described in
// SPEC_FULL.md §4.2: small payloads get a small fixed-capacity copy
// (conceptually "stack", Go cannot force stack allocation but the intent is
// a short-lived, capacity-exact slice that never gets pooled), medium
// payloads get an exact heap allocation, and large payloads are rented
// from pool when one is supplied. It reports whether the returned buffer
// was pool-rented, for use with FromDecoded.
func AllocPayload(src []byte, pool BufferReturner) (buf []byte, pooled bool) {
	buf, kind := allocPayload(src, pool)
	return buf, kind == bufPooled
}

func allocPayload(src []byte, pool BufferReturner) ([]byte, bufKind) {
	n := len(src)
	switch {
	case n <= stackThreshold:
		buf := make([]byte, n)
		copy(buf, src)
		return buf, bufStack
	case n <= heapThreshold || pool == nil:
		buf := make([]byte, n)
		copy(buf, src)
		return buf, bufHeap
	default:
		if renter, ok := pool.(interface{ Get(int) []byte }); ok {
			buf := renter.Get(n)[:n]
			copy(buf, src)
			return buf, bufPooled
		}
		buf := make([]byte, n)
		copy(buf, src)
		return buf, bufHeap
	}
}

// IsPooled reports whether this packet's payload was rented from a pool,
// i.e. whether Release must return it.
func (p *Packet) IsPooled() bool { return p.kind == bufPooled }

// Release returns the payload buffer to its owning pool if it was pooled;
// it is a no-op otherwise. Callers must not touch Payload after calling
// Release.
func (p *Packet) Release() {
	if p.kind == bufPooled && p.owner != nil {
		p.owner.Put(p.Payload)
	}
	p.Payload = nil
}

// UpdatePayload replaces the payload and recomputes Length and Checksum.
// The buffer tier is NOT changed; callers needing a different tier should
// construct a new Packet.
func (p *Packet) UpdatePayload(payload []byte) {
	p.Payload = payload
	p.Length = uint16(HeaderSize + len(payload))
	p.Checksum = crc32.ChecksumIEEE(payload)
}

// UpdateFlags replaces the flags bitset in place.
func (p *Packet) UpdateFlags(f Flags) { p.Flags = f }

// IsValid reports whether Checksum matches crc32(Payload).
func (p *Packet) IsValid() bool { return p.Checksum == crc32.ChecksumIEEE(p.Payload) }

// IsExpired reports whether more than d has elapsed since Timestamp.
func (p *Packet) IsExpired(d time.Duration) bool {
	age := nowMillis() - p.Timestamp
	return age > uint64(d.Milliseconds())
}

// Equal compares (Opcode, Flags, Priority, Payload); Magic, Transport,
// Length, Checksum, Timestamp and ID are derived/transport concerns and
// are intentionally excluded.
func (p *Packet) Equal(o *Packet) bool {
	if p == o {
		return true
	}
	if p == nil || o == nil {
		return false
	}
	if p.Opcode != o.Opcode || p.Flags != o.Flags || p.Priority != o.Priority {
		return false
	}
	if len(p.Payload) != len(o.Payload) {
		return false
	}
	for i := range p.Payload {
		if p.Payload[i] != o.Payload[i] {
			return false
		}
	}
	return true
}

// Hash folds (Opcode, Flags, Priority, Payload) into a stable 64-bit
// FNV-1a digest. The queue package's Coalesce key does not use it; that
// key is built from the opcode and connection id alone.
func (p *Packet) Hash() uint64 {
	h := uint64(14695981039346656037) // FNV-1a offset basis
	const prime = 1099511628211
	mix := func(b byte) {
		h ^= uint64(b)
		h *= prime
	}
	mix(byte(p.Opcode))
	mix(byte(p.Opcode >> 8))
	mix(byte(p.Flags))
	mix(byte(p.Priority))
	for _, b := range p.Payload {
		mix(b)
	}
	return h
}
