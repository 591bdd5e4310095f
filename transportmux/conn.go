// Package transportmux adapts go.sia.tech/mux over a net.Conn into a
// middleware.Connection, giving each logical request its own multiplexed
// stream. It is the one place in the repository that touches raw
// sockets: a small mutex-guarded struct wrapping conn/cipher state,
// routing frames through the shared wire codec over each mux stream.
package transportmux

import (
	"context"
	"crypto/ed25519"
	"net"
	"sync"
	"sync/atomic"

	"go.sia.tech/mux"

	"github.com/nalix-systems/nalixcore/packet"
	"github.com/nalix-systems/nalixcore/wire"
)

// Conn adapts one mux.Mux (itself layered over one net.Conn) into the
// Connection interface the dispatch core and middlewares consume. Each
// call to Send opens (or reuses) a stream; inbound packets are read by
// the caller via Listen.
type Conn struct {
	m                   *mux.Mux
	remote              string
	permissionLevel     int
	encryptionKey       []byte
	encryptionAlgorithm uint8

	mu     sync.Mutex
	stream *mux.Stream
	closed int32
}

// Dial establishes a mux session as the client side of nc, authenticating
// the server against its expected identity key theirKey (obtained out of
// band, e.g. from a directory listing). The application-level session key
// used for Send/SendControl framing is separate and comes from the
// keyexchange package; mux's own handshake only protects stream framing.
func Dial(nc net.Conn, theirKey ed25519.PublicKey, permissionLevel int, sessionKey []byte, alg uint8) (*Conn, error) {
	m, err := mux.Dial(nc, theirKey)
	if err != nil {
		return nil, err
	}
	return &Conn{m: m, remote: nc.RemoteAddr().String(), permissionLevel: permissionLevel, encryptionKey: sessionKey, encryptionAlgorithm: alg}, nil
}

// Accept establishes a mux session as the server side of nc, authenticating
// to the dialer with ourKey (its public half is what callers of Dial must
// be given out of band). A nil ourKey generates a fresh ephemeral identity
// for the session, treating the server's identity as connection-scoped
// when no persistent identity is supplied.
func Accept(nc net.Conn, ourKey ed25519.PrivateKey, permissionLevel int, sessionKey []byte, alg uint8) (*Conn, error) {
	if ourKey == nil {
		_, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			return nil, err
		}
		ourKey = priv
	}
	m, err := mux.Accept(nc, ourKey)
	if err != nil {
		return nil, err
	}
	return &Conn{m: m, remote: nc.RemoteAddr().String(), permissionLevel: permissionLevel, encryptionKey: sessionKey, encryptionAlgorithm: alg}, nil
}

// stableStream returns the one long-lived stream this Conn uses for
// ordinary packet traffic, opening it on first use. DialStream is a local
// allocation (no handshake round trip), so it cannot itself fail.
func (c *Conn) stableStream() (*mux.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		return c.stream, nil
	}
	c.stream = c.m.DialStream()
	return c.stream, nil
}

// Send frames p through the wire codec and writes it to the session's
// stable stream, opening one on first use.
func (c *Conn) Send(ctx context.Context, p *packet.Packet) error {
	s, err := c.stableStream()
	if err != nil {
		return err
	}
	return wire.WriteToStream(s, p, nil)
}

// SendControl frames a control packet and sends it the same way as any
// other packet: control packets are ordinary MagicControl packets on the
// wire, nothing mux-specific about them.
func (c *Conn) SendControl(ctx context.Context, ctrl packet.Control) error {
	payload := ctrl.Encode()
	p, err := packet.New(packet.MagicControl, 0, packet.FlagIsResponse, packet.PriorityHigh, packet.TransportTCP, payload, nil)
	if err != nil {
		return err
	}
	return c.Send(ctx, p)
}

// Listen accepts incoming mux streams and decodes packets from each one
// until that stream errors or closes, invoking handle for each packet. It
// blocks until the mux session errors or closes.
func (c *Conn) Listen(handle func(*packet.Packet)) error {
	for {
		s, err := c.m.AcceptStream()
		if err != nil {
			return err
		}
		go func(s *mux.Stream) {
			defer s.Close()
			for {
				p, err := wire.ReadFromStream(s, false, nil)
				if err != nil {
					return
				}
				handle(p)
			}
		}(s)
	}
}

// Disconnect closes the underlying mux session; reason is logged by the
// caller, not transmitted over the wire.
func (c *Conn) Disconnect(reason string) {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		c.m.Close()
	}
}

func (c *Conn) RemoteEndpoint() string     { return c.remote }
func (c *Conn) PermissionLevel() int       { return c.permissionLevel }
func (c *Conn) EncryptionKey() []byte      { return c.encryptionKey }
func (c *Conn) EncryptionAlgorithm() uint8 { return c.encryptionAlgorithm }
func (c *Conn) IsDisposed() bool           { return atomic.LoadInt32(&c.closed) == 1 }
