package transform

import (
	"github.com/nalix-systems/nalixcore/cipher"
	"github.com/nalix-systems/nalixcore/compress"
	"github.com/nalix-systems/nalixcore/nalixerr"
	"github.com/nalix-systems/nalixcore/packet"
	"github.com/nalix-systems/nalixcore/wire"
)

// StandardDecode decodes a raw framed payload through the shared wire
// codec, validating the checksum. It is the Decode most registrations use
// unless a packet type needs bespoke parsing.
func StandardDecode(payload []byte) (*packet.Packet, error) {
	return wire.Decode(payload, true, nil)
}

// deriveNonce builds a size-byte nonce from the packet itself: the first
// 8 bytes are Timestamp (little-endian), byte 8 is ID when size > 8, and
// the rest are zero. No connection-level counter is mixed in, so two
// packets with the same Timestamp and ID get the same nonce.
func deriveNonce(p *packet.Packet, size int) []byte {
	nonce := make([]byte, size)
	for i := 0; i < 8 && i < size; i++ {
		nonce[i] = byte(p.Timestamp >> (8 * i))
	}
	if size > 8 {
		nonce[8] = p.ID
	}
	return nonce
}

// StandardEncrypt seals p's payload into a copy of p using the cipher alg
// selects from suite, keyed by key, deriving the nonce from the packet's
// own timestamp/id; p itself is left unchanged. It sets FlagEncrypted on
// the result.
func StandardEncrypt(p *packet.Packet, key []byte, alg cipher.Algorithm, suite *cipher.Suite) (*packet.Packet, error) {
	c, err := suite.Select(alg, key)
	if err != nil {
		return nil, err
	}
	nonce := deriveNonce(p, c.NonceSize())
	sealed := c.Seal(nil, nonce, p.Payload, nil)
	out := *p
	out.UpdatePayload(sealed)
	out.Flags = out.Flags.Set(packet.FlagEncrypted)
	return &out, nil
}

// StandardDecrypt reverses StandardEncrypt, surfacing AEAD tag failures as
// nalixerr.ErrAuthFailed.
func StandardDecrypt(p *packet.Packet, key []byte, alg cipher.Algorithm, suite *cipher.Suite) (*packet.Packet, error) {
	c, err := suite.Select(alg, key)
	if err != nil {
		return nil, err
	}
	nonce := deriveNonce(p, c.NonceSize())
	plain, err := c.Open(nil, nonce, p.Payload, nil)
	if err != nil {
		return nil, nalixerr.ErrAuthFailed
	}
	out := *p
	out.UpdatePayload(plain)
	out.Flags = out.Flags.Clear(packet.FlagEncrypted)
	return &out, nil
}

// StandardCompress replaces p's payload with its LZ4-compressed form and
// sets FlagCompressed.
func StandardCompress(p *packet.Packet) (*packet.Packet, error) {
	c, err := compress.Compress(p.Payload)
	if err != nil {
		return nil, err
	}
	out := *p
	out.UpdatePayload(c)
	out.Flags = out.Flags.Set(packet.FlagCompressed)
	return &out, nil
}

// StandardDecompress reverses StandardCompress.
func StandardDecompress(p *packet.Packet) (*packet.Packet, error) {
	d, err := compress.Decompress(p.Payload)
	if err != nil {
		return nil, err
	}
	out := *p
	out.UpdatePayload(d)
	out.Flags = out.Flags.Clear(packet.FlagCompressed)
	return &out, nil
}

// StandardEntry returns an Entry wired to the Standard* functions above,
// the shape most application packet types want: wire decode, AEAD/stream
// cipher crypto, and LZ4 compression, all pipeline-managed so the
// Wrap/Unwrap middlewares drive them rather than handler code.
func StandardEntry() Entry {
	return Entry{
		Decode:          StandardDecode,
		Encrypt:         StandardEncrypt,
		Decrypt:         StandardDecrypt,
		Compress:        StandardCompress,
		Decompress:      StandardDecompress,
		PipelineManaged: true,
	}
}
