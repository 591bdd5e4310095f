// Package middleware implements the ordered inbound/outbound pipeline and
// its five built-in stages: Timeout, Permission, RateLimit, Unwrap, and
// Wrap.
package middleware

import (
	"context"

	"github.com/nalix-systems/nalixcore/packet"
)

// Connection is what the dispatcher and built-in middlewares consume from
// a live transport: sending packets and control frames, disconnecting,
// and exposing the policy and crypto state those stages need.
type Connection interface {
	Send(ctx context.Context, p *packet.Packet) error
	SendControl(ctx context.Context, c packet.Control) error
	Disconnect(reason string)
	RemoteEndpoint() string
	PermissionLevel() int
	EncryptionKey() []byte
	EncryptionAlgorithm() uint8
	IsDisposed() bool
}

// Metadata is the per-handler configuration the catalog extracts from a
// registered method: timeout, rate limiting, permission, and whether
// encryption is mandatory for this opcode.
type Metadata struct {
	TimeoutMS           uint32
	RateLimitMax         uint32
	RateLimitWindowMS    uint32
	RateGroup            string
	PermissionLevel      int
	EncryptionRequired   bool
}

// Context is constructed for every dequeued packet and carries it through
// the pipeline to its handler. Properties is a free-form bag middlewares
// can use to pass data to later stages; none of the built-in stages
// writes to it.
type Context struct {
	Packet       *packet.Packet
	Connection   Connection
	Metadata     Metadata
	TypeID       uint32
	SkipOutbound bool
	Properties   map[string]any

	// Reply is set by the handler invoker (via return projection) or by a
	// built-in middleware that short-circuits with its own reply. It is
	// what the outbound chain and Wrap operate on.
	Reply *packet.Packet

	// err records the first Faulted cause, if any; Faulted reports
	// whether it is set.
	err error
}

// NewContext builds a fresh Context for an inbound packet.
func NewContext(p *packet.Packet, conn Connection, typeID uint32, md Metadata) *Context {
	return &Context{
		Packet:     p,
		Connection: conn,
		Metadata:   md,
		TypeID:     typeID,
		Properties: make(map[string]any),
	}
}

// Fault records err as this context's fault cause; only the first call
// takes effect. Stages that fault a context send their own FAIL reply; the
// dispatcher emits a FAIL only for an error the pipeline returns.
func (c *Context) Fault(err error) {
	if c.err == nil {
		c.err = err
	}
}

// Faulted reports whether Fault has been called.
func (c *Context) Faulted() (error, bool) { return c.err, c.err != nil }

// fork returns a private copy of c for a downstream chain that may be
// abandoned (its goroutine left running past a deadline). The copy shares
// no mutable state with c, so a chain that keeps writing to it after being
// abandoned can never be observed through c.
func (c *Context) fork() *Context {
	props := make(map[string]any, len(c.Properties))
	for k, v := range c.Properties {
		props[k] = v
	}
	return &Context{
		Packet:     c.Packet,
		Connection: c.Connection,
		Metadata:   c.Metadata,
		TypeID:     c.TypeID,
		Properties: props,
	}
}

// absorb copies a finished fork's results back into c. Callers must only
// call this for a fork whose chain has already returned, so there is no
// concurrent writer left to race with.
func (c *Context) absorb(sub *Context) {
	c.Packet = sub.Packet
	c.SkipOutbound = sub.SkipOutbound
	c.Properties = sub.Properties
	c.Reply = sub.Reply
	c.err = sub.err
}
