package transform

import (
	"bytes"
	"testing"

	"github.com/nalix-systems/nalixcore/cipher"
	"github.com/nalix-systems/nalixcore/nalixerr"
	"github.com/nalix-systems/nalixcore/packet"
)

const testType uint32 = packet.AppMagicFloor + 1

func newTestPacket(t *testing.T, payload []byte) *packet.Packet {
	t.Helper()
	p, err := packet.New(testType, 7, 0, packet.PriorityNormal, packet.TransportTCP, payload, nil)
	if err != nil {
		t.Fatalf("packet.New: %v", err)
	}
	return p
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(testType, StandardEntry()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, ok := r.Lookup(testType); !ok {
		t.Fatal("expected lookup to find registered type")
	}
	if err := r.Register(testType, StandardEntry()); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestFreezeRejectsRegister(t *testing.T) {
	r := NewRegistry()
	r.Freeze()
	if err := r.Register(testType, StandardEntry()); err == nil {
		t.Fatal("expected register on frozen registry to fail")
	}
}

func TestUnregisteredTypeIsUnsupported(t *testing.T) {
	r := NewRegistry()
	r.Freeze()
	if _, err := r.Decrypt(testType, nil, nil, cipher.AlgorithmAESGCM, cipher.NewSuite()); err != nalixerr.ErrCryptoUnsupported {
		t.Fatalf("got %v, want ErrCryptoUnsupported", err)
	}
	if _, err := r.Compress(testType, nil); err != nalixerr.ErrCompressionUnsupported {
		t.Fatalf("got %v, want ErrCompressionUnsupported", err)
	}
	if !r.IsPipelineManaged(testType) {
		t.Fatal("unregistered type should default to pipeline-managed")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(testType, StandardEntry()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	r.Freeze()

	suite := cipher.NewSuite()
	key := bytes.Repeat([]byte{0x42}, 32)
	p := newTestPacket(t, []byte("hello, dispatcher"))

	enc, err := r.Encrypt(testType, p, key, cipher.AlgorithmChaCha20Poly1305, suite)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if !enc.Flags.Has(packet.FlagEncrypted) {
		t.Fatal("expected FlagEncrypted to be set")
	}

	dec, err := r.Decrypt(testType, enc, key, cipher.AlgorithmChaCha20Poly1305, suite)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(dec.Payload, p.Payload) {
		t.Fatalf("round trip mismatch: got %q want %q", dec.Payload, p.Payload)
	}
}

func TestDecryptTamperedCiphertextFails(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(testType, StandardEntry()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	r.Freeze()

	suite := cipher.NewSuite()
	key := bytes.Repeat([]byte{0x7}, 32)
	p := newTestPacket(t, []byte("do not tamper"))

	enc, err := r.Encrypt(testType, p, key, cipher.AlgorithmAESGCM, suite)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	tampered := append([]byte(nil), enc.Payload...)
	tampered[0] ^= 0xFF
	enc.UpdatePayload(tampered)

	if _, err := r.Decrypt(testType, enc, key, cipher.AlgorithmAESGCM, suite); err != nalixerr.ErrAuthFailed {
		t.Fatalf("got %v, want ErrAuthFailed", err)
	}
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(testType, StandardEntry()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	r.Freeze()

	p := newTestPacket(t, bytes.Repeat([]byte("repeat-me "), 100))
	c, err := r.Compress(testType, p)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if !c.Flags.Has(packet.FlagCompressed) {
		t.Fatal("expected FlagCompressed to be set")
	}
	d, err := r.Decompress(testType, c)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(d.Payload, p.Payload) {
		t.Fatalf("round trip mismatch: got %q want %q", d.Payload, p.Payload)
	}
}
