package wire

import (
	"bytes"
	"testing"

	"github.com/nalix-systems/nalixcore/packet"
	"github.com/nalix-systems/nalixcore/pool"
)

func mustPacket(t *testing.T, payload []byte) *packet.Packet {
	t.Helper()
	p, err := packet.New(packet.AppMagicFloor+1, 0x1000, packet.FlagAcknowledged, packet.PriorityHigh, packet.TransportTCP, payload, nil)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := mustPacket(t, []byte("ping"))
	buf := make([]byte, EncodedLen(p))
	if err := Encode(buf, p); err != nil {
		t.Fatal(err)
	}
	got, err := Decode(buf, true, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(p) {
		t.Fatalf("decoded packet does not match original: %+v vs %+v", got, p)
	}
	if got.Timestamp != p.Timestamp || got.ID != p.ID {
		t.Fatal("timestamp/id should survive the round trip verbatim")
	}
}

func TestEncodeBufferTooSmall(t *testing.T) {
	p := mustPacket(t, []byte("ping"))
	buf := make([]byte, EncodedLen(p)-1)
	if err := Encode(buf, p); err == nil {
		t.Fatal("expected error for undersized buffer")
	}
}

func TestDecodeTruncated(t *testing.T) {
	for n := 0; n < Size; n++ {
		if _, err := Decode(make([]byte, n), false, nil); err == nil {
			t.Fatalf("expected Truncated error for %d-byte input", n)
		}
	}
}

func TestDecodeInvalidChecksum(t *testing.T) {
	p := mustPacket(t, []byte("ping"))
	buf := make([]byte, EncodedLen(p))
	_ = Encode(buf, p)
	buf[Size] ^= 0xFF // corrupt first payload byte
	if _, err := Decode(buf, true, nil); err == nil {
		t.Fatal("expected checksum validation failure")
	}
	// with validation disabled, the corrupted packet still decodes
	if _, err := Decode(buf, false, nil); err != nil {
		t.Fatalf("expected decode to succeed with validateCRC=false, got %v", err)
	}
}

func TestDecodeUsesPoolForLargePayloads(t *testing.T) {
	bp := pool.NewBytePool(4)
	payload := bytes.Repeat([]byte{0x42}, 1000)
	p := mustPacket(t, payload)
	buf := make([]byte, EncodedLen(p))
	_ = Encode(buf, p)
	got, err := Decode(buf, true, bp)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsPooled() {
		t.Fatal("expected a 1000-byte payload to be pool-rented")
	}
	got.Release()
}

func TestStreamRoundTrip(t *testing.T) {
	p := mustPacket(t, []byte("stream payload"))
	var buf bytes.Buffer
	if err := WriteToStream(&buf, p, nil); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFromStream(&buf, true, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(p) {
		t.Fatal("stream round trip mismatch")
	}
}
