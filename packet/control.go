package packet

import (
	"encoding/binary"
	"hash/crc32"
)

// ControlType enumerates the kinds of control packets the dispatcher emits
// on internal failures. User handlers never construct these directly.
type ControlType uint8

const (
	ControlFail ControlType = iota
	ControlAck
	ControlRedirect
	ControlPing
	ControlPong
)

// Advice hints at what the recipient should do in response to a control
// packet; it is informational only.
type Advice uint8

const (
	AdviceNone Advice = iota
	AdviceRetry
	AdviceReconnect
	AdviceAbort
)

// controlPayloadSize is the fixed encoded size of a Control value:
// control_type:u8 | reason_code:u16 | advice:u8 | sequence_id:u32 |
// flags:u16 | arg0:u16 | arg1:u32 | arg2:u32
const controlPayloadSize = 1 + 2 + 1 + 4 + 2 + 2 + 4 + 4

// Control is the fixed-shape payload carried by MagicControl packets.
//
// ControlRedirect carries a packed IPv4 address + port in Arg1/Arg2 and
// leaves Arg0 as a family discriminant (0 = IPv4), so no variable-length
// payload is needed for the common case. Callers needing IPv6 should use a
// DIRECTIVE packet instead, which has an unconstrained payload.
type Control struct {
	Type       ControlType
	Reason     uint16
	Advice     Advice
	SequenceID uint32
	Flags      uint16
	Arg0       uint16
	Arg1       uint32
	Arg2       uint32
}

// Encode renders c into its fixed-width wire form.
func (c Control) Encode() []byte {
	buf := make([]byte, controlPayloadSize)
	buf[0] = byte(c.Type)
	binary.LittleEndian.PutUint16(buf[1:3], c.Reason)
	buf[3] = byte(c.Advice)
	binary.LittleEndian.PutUint32(buf[4:8], c.SequenceID)
	binary.LittleEndian.PutUint16(buf[8:10], c.Flags)
	binary.LittleEndian.PutUint16(buf[10:12], c.Arg0)
	binary.LittleEndian.PutUint32(buf[12:16], c.Arg1)
	binary.LittleEndian.PutUint32(buf[16:20], c.Arg2)
	return buf
}

// DecodeControl parses a Control from its fixed-width wire form.
func DecodeControl(buf []byte) (Control, bool) {
	if len(buf) < controlPayloadSize {
		return Control{}, false
	}
	return Control{
		Type:       ControlType(buf[0]),
		Reason:     binary.LittleEndian.Uint16(buf[1:3]),
		Advice:     Advice(buf[3]),
		SequenceID: binary.LittleEndian.Uint32(buf[4:8]),
		Flags:      binary.LittleEndian.Uint16(buf[8:10]),
		Arg0:       binary.LittleEndian.Uint16(buf[10:12]),
		Arg1:       binary.LittleEndian.Uint32(buf[12:16]),
		Arg2:       binary.LittleEndian.Uint32(buf[16:20]),
	}, true
}

// NewFail builds a MagicControl/ControlFail packet carrying reason, with
// sequenceID echoed when available (0 when not).
func NewFail(reason uint16, transient bool, sequenceID uint32) *Packet {
	advice := AdviceAbort
	if transient {
		advice = AdviceRetry
	}
	c := Control{Type: ControlFail, Reason: reason, Advice: advice, SequenceID: sequenceID}
	payload := c.Encode()
	p := &Packet{
		Magic:     MagicControl,
		Flags:     FlagIsResponse,
		Priority:  PriorityHigh,
		Timestamp: nowMillis(),
		Payload:   payload,
		kind:      bufStack,
	}
	p.ID = uint8(p.Timestamp % 256)
	p.Length = uint16(HeaderSize + len(payload))
	p.Checksum = crc32.ChecksumIEEE(payload)
	return p
}
