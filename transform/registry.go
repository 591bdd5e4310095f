// Package transform implements the packet-type transformer registry:
// the binding of each concrete packet type to its decode/encrypt/
// decrypt/compress/decompress operations and its pipeline-managed
// policy.
package transform

import (
	"fmt"
	"sync"

	"github.com/nalix-systems/nalixcore/cipher"
	"github.com/nalix-systems/nalixcore/nalixerr"
	"github.com/nalix-systems/nalixcore/packet"
)

// DecodeFunc turns a raw payload into a fully-typed packet of the
// registered type. Most registrations use wire.Decode directly; custom
// packet types needing extra validation can supply their own.
type DecodeFunc func(payload []byte) (*packet.Packet, error)

// CryptoFunc performs one direction of encryption/decryption on p using
// key/alg, returning a new packet with the transformed payload.
type CryptoFunc func(p *packet.Packet, key []byte, alg cipher.Algorithm, suite *cipher.Suite) (*packet.Packet, error)

// CompressFunc performs one direction of compression on p.
type CompressFunc func(p *packet.Packet) (*packet.Packet, error)

// Entry is everything the registry knows about one packet type.
type Entry struct {
	Decode          DecodeFunc
	Encrypt         CryptoFunc
	Decrypt         CryptoFunc
	Compress        CompressFunc
	Decompress      CompressFunc
	PipelineManaged bool
}

// Registry maps a packet type id (its Magic) to an Entry. It is mutable
// only until Freeze is called; after that, Register returns an error and
// Lookup requires no locking.
type Registry struct {
	mu      sync.Mutex
	entries map[uint32]Entry
	frozen  bool
}

// NewRegistry creates an empty, unfrozen Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uint32]Entry)}
}

// Register binds typeID to e. It returns an error if typeID is already
// registered or the registry has been frozen.
func (r *Registry) Register(typeID uint32, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("transform: registry frozen, cannot register %#x", typeID)
	}
	if _, exists := r.entries[typeID]; exists {
		return fmt.Errorf("transform: duplicate registration for type %#x", typeID)
	}
	r.entries[typeID] = e
	return nil
}

// Freeze makes the registry read-only. Subsequent Lookup calls need no
// synchronization.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Lookup returns the Entry for typeID, if registered. Safe to call
// concurrently once Freeze has been called; also safe (but mutex-guarded)
// before that.
func (r *Registry) Lookup(typeID uint32) (Entry, bool) {
	if r.frozen {
		e, ok := r.entries[typeID]
		return e, ok
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[typeID]
	return e, ok
}

// Decrypt looks up typeID's Entry and invokes Decrypt, surfacing
// UnsupportedOperation as ErrCryptoUnsupported when the type has no
// decryption capability.
func (r *Registry) Decrypt(typeID uint32, p *packet.Packet, key []byte, alg cipher.Algorithm, suite *cipher.Suite) (*packet.Packet, error) {
	e, ok := r.Lookup(typeID)
	if !ok || e.Decrypt == nil {
		return nil, nalixerr.ErrCryptoUnsupported
	}
	return e.Decrypt(p, key, alg, suite)
}

// Encrypt mirrors Decrypt for the outbound direction.
func (r *Registry) Encrypt(typeID uint32, p *packet.Packet, key []byte, alg cipher.Algorithm, suite *cipher.Suite) (*packet.Packet, error) {
	e, ok := r.Lookup(typeID)
	if !ok || e.Encrypt == nil {
		return nil, nalixerr.ErrCryptoUnsupported
	}
	return e.Encrypt(p, key, alg, suite)
}

// Decompress mirrors Decrypt for compression.
func (r *Registry) Decompress(typeID uint32, p *packet.Packet) (*packet.Packet, error) {
	e, ok := r.Lookup(typeID)
	if !ok || e.Decompress == nil {
		return nil, nalixerr.ErrCompressionUnsupported
	}
	return e.Decompress(p)
}

// Compress mirrors Encrypt for compression.
func (r *Registry) Compress(typeID uint32, p *packet.Packet) (*packet.Packet, error) {
	e, ok := r.Lookup(typeID)
	if !ok || e.Compress == nil {
		return nil, nalixerr.ErrCompressionUnsupported
	}
	return e.Compress(p)
}

// IsPipelineManaged reports whether typeID's crypto/compression should be
// performed by the Wrap/Unwrap middlewares rather than inline by the
// packet's own code path. Unregistered types default to true so the
// pipeline still attempts the standard transforms rather than silently
// skipping them.
func (r *Registry) IsPipelineManaged(typeID uint32) bool {
	e, ok := r.Lookup(typeID)
	if !ok {
		return true
	}
	return e.PipelineManaged
}

// Decode looks up typeID's decoder and applies it.
func (r *Registry) Decode(typeID uint32, payload []byte) (*packet.Packet, error) {
	e, ok := r.Lookup(typeID)
	if !ok || e.Decode == nil {
		return nil, nalixerr.ErrUnsupportedPacket
	}
	return e.Decode(payload)
}
