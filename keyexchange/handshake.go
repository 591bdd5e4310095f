// Package keyexchange derives a per-connection session key for the cipher
// capability: an ephemeral X25519 exchange, bound to a long-term Ed25519
// identity by a signature over both ephemeral public keys, with the
// shared secret folded through BLAKE2b into a session key.
//
// Signature verification uses github.com/hdevalence/ed25519consensus, the
// stricter batch/malleability-hardened verifier, rather than stdlib
// ed25519.Verify, since a network-facing handshake benefits from the
// harder guarantee.
package keyexchange

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"io"

	"github.com/hdevalence/ed25519consensus"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/curve25519"
	"lukechampine.com/frand"

	"github.com/nalix-systems/nalixcore/cipher"
)

// ErrNoOverlap is returned when the two sides share no cipher algorithm.
var ErrNoOverlap = errors.New("keyexchange: no overlapping cipher algorithm")

// ErrBadSignature is returned when the peer's handshake signature does not
// verify against its claimed identity key.
var ErrBadSignature = errors.New("keyexchange: invalid handshake signature")

// Result is what a completed handshake yields: a session key ready to hand
// to cipher.Suite.Select, the negotiated algorithm, and the peer's verified
// identity key. Only InitiateHandshake sets PeerPublicKey; the responding
// side does not authenticate the initiator and leaves it nil.
type Result struct {
	SessionKey    []byte
	Algorithm     cipher.Algorithm
	PeerPublicKey ed25519.PublicKey
}

func generateEphemeral() (priv []byte, pub [32]byte) {
	priv = frand.Bytes(32)
	p, _ := curve25519.X25519(priv, curve25519.Basepoint)
	copy(pub[:], p)
	return
}

func deriveSharedSecret(priv []byte, peerPub [32]byte) ([]byte, error) {
	secret, err := curve25519.X25519(priv, peerPub[:])
	if err != nil {
		return nil, err
	}
	key := blake2b.Sum256(secret)
	return key[:], nil
}

func transcriptHash(a, b [32]byte) [32]byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, a[:]...)
	buf = append(buf, b[:]...)
	return blake2b.Sum256(buf)
}

// writeMsg writes a length-prefixed message: a u16 length followed by the
// bytes, matching the framing discipline wire.ReadFromStream/WriteToStream
// use for packets. Handshake messages are small and fixed-shape, so a
// simple length prefix (rather than the full packet header) is enough.
func writeMsg(w io.Writer, b []byte) error {
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readMsg(r io.Reader, max int) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := int(binary.LittleEndian.Uint16(lenBuf[:]))
	if n > max {
		return nil, errors.New("keyexchange: handshake message too large")
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// encodeRequest: pubkey[32] || count[1] || algorithm[count]
func encodeRequest(pub [32]byte, algs []cipher.Algorithm) []byte {
	buf := make([]byte, 32+1+len(algs))
	copy(buf, pub[:])
	buf[32] = byte(len(algs))
	for i, a := range algs {
		buf[33+i] = byte(a)
	}
	return buf
}

func decodeRequest(b []byte) (pub [32]byte, algs []cipher.Algorithm, err error) {
	if len(b) < 33 {
		return pub, nil, errors.New("keyexchange: malformed request")
	}
	copy(pub[:], b[:32])
	count := int(b[32])
	if len(b) < 33+count {
		return pub, nil, errors.New("keyexchange: malformed request")
	}
	algs = make([]cipher.Algorithm, count)
	for i := range algs {
		algs[i] = cipher.Algorithm(b[33+i])
	}
	return pub, algs, nil
}

// encodeResponse: pubkey[32] || signature[64] || algorithm[1]
func encodeResponse(pub [32]byte, sig []byte, alg cipher.Algorithm) []byte {
	buf := make([]byte, 32+64+1)
	copy(buf[:32], pub[:])
	copy(buf[32:96], sig)
	buf[96] = byte(alg)
	return buf
}

func decodeResponse(b []byte) (pub [32]byte, sig []byte, alg cipher.Algorithm, err error) {
	if len(b) != 97 {
		return pub, nil, 0, errors.New("keyexchange: malformed response")
	}
	copy(pub[:], b[:32])
	sig = append([]byte(nil), b[32:96]...)
	alg = cipher.Algorithm(b[96])
	return pub, sig, alg, nil
}

// RespondHandshake performs the host side of the handshake: read the
// peer's ephemeral key and proposed algorithms, pick the first one this
// side also supports, sign the transcript, and derive the session key.
func RespondHandshake(rw io.ReadWriter, identity ed25519.PrivateKey, supported []cipher.Algorithm) (*Result, error) {
	reqBytes, err := readMsg(rw, 1024)
	if err != nil {
		return nil, err
	}
	peerEphemeral, proposed, err := decodeRequest(reqBytes)
	if err != nil {
		return nil, err
	}
	chosen, ok := pickOverlap(proposed, supported)
	if !ok {
		return nil, ErrNoOverlap
	}

	priv, pub := generateEphemeral()
	h := transcriptHash(peerEphemeral, pub)
	sig := ed25519.Sign(identity, h[:])

	if err := writeMsg(rw, encodeResponse(pub, sig, chosen)); err != nil {
		return nil, err
	}

	secret, err := deriveSharedSecret(priv, peerEphemeral)
	if err != nil {
		return nil, err
	}
	return &Result{SessionKey: secret, Algorithm: chosen}, nil
}

// InitiateHandshake performs the renter/client side: propose ephemeral key
// and supported algorithms, verify the host's signature against its known
// identity key, and derive the session key.
func InitiateHandshake(rw io.ReadWriter, hostIdentity ed25519.PublicKey, supported []cipher.Algorithm) (*Result, error) {
	priv, pub := generateEphemeral()
	if err := writeMsg(rw, encodeRequest(pub, supported)); err != nil {
		return nil, err
	}

	respBytes, err := readMsg(rw, 256)
	if err != nil {
		return nil, err
	}
	peerEphemeral, sig, alg, err := decodeResponse(respBytes)
	if err != nil {
		return nil, err
	}

	h := transcriptHash(pub, peerEphemeral)
	if !ed25519consensus.Verify(hostIdentity, h[:], sig) {
		return nil, ErrBadSignature
	}

	secret, err := deriveSharedSecret(priv, peerEphemeral)
	if err != nil {
		return nil, err
	}
	return &Result{SessionKey: secret, Algorithm: alg, PeerPublicKey: hostIdentity}, nil
}

func pickOverlap(proposed, supported []cipher.Algorithm) (cipher.Algorithm, bool) {
	for _, p := range proposed {
		for _, s := range supported {
			if p == s {
				return p, true
			}
		}
	}
	return 0, false
}
