package transportmux

import (
	"net"

	"github.com/nalix-systems/nalixcore/nlog"
)

// Server accepts raw net.Conns on a listener and wraps each one in a mux
// Conn, handing it off to OnAccept. It is the thin glue cmd/nalixd uses to
// turn a net.Listener into a stream of dispatch-ready connections.
type Server struct {
	Listener        net.Listener
	PermissionLevel int
	SessionKey      []byte
	Algorithm       uint8
	Log             *nlog.Logger
	OnAccept        func(*Conn)
}

// Serve loops accepting connections until the listener closes or returns
// an error, logging and skipping individual accept/handshake failures
// rather than treating them as fatal.
func (s *Server) Serve() error {
	log := s.Log
	if log == nil {
		log = nlog.Nop()
	}
	for {
		nc, err := s.Listener.Accept()
		if err != nil {
			return err
		}
		go func(nc net.Conn) {
			c, err := Accept(nc, nil, s.PermissionLevel, s.SessionKey, s.Algorithm)
			if err != nil {
				log.Warn("mux accept failed", "remote", nc.RemoteAddr().String(), "error", err.Error())
				nc.Close()
				return
			}
			s.OnAccept(c)
		}(nc)
	}
}
