// Package catalog implements the opcode catalog: a frozen opcode ->
// HandlerDescriptor map built by one-time registration, with
// reflection-free invocation realized through Go generics rather than
// attribute scanning.
package catalog

import (
	"context"
	"fmt"

	"github.com/nalix-systems/nalixcore/middleware"
	"github.com/nalix-systems/nalixcore/nalixerr"
)

// Invoker is the erased, monomorphized form every Handle[T] registration
// compiles down to: given a context, call the underlying handler and
// project its return onto pc.Reply.
type Invoker func(ctx context.Context, pc *middleware.Context) error

// HandlerDescriptor is everything the catalog knows about one opcode: its
// compiled invoker plus the metadata the catalog extracted at
// registration time for the middleware pipeline to consume.
type HandlerDescriptor struct {
	Opcode   uint16
	Name     string
	Invoke   Invoker
	Metadata middleware.Metadata
}

// Catalog is the frozen opcode -> HandlerDescriptor map. The zero value is
// not usable; build one with a Builder.
type Catalog struct {
	handlers map[uint16]HandlerDescriptor
}

// Lookup returns the descriptor registered for opcode, if any. O(1), safe
// for concurrent use by any number of workers once Build has returned.
func (c *Catalog) Lookup(opcode uint16) (HandlerDescriptor, bool) {
	d, ok := c.handlers[opcode]
	return d, ok
}

// Len reports how many opcodes are registered.
func (c *Catalog) Len() int { return len(c.handlers) }

// Builder accumulates HandlerDescriptors from one or more Controllers and
// produces a frozen Catalog. It rejects duplicate opcodes; it does not
// check handler return types (see Handle).
type Builder struct {
	handlers map[uint16]HandlerDescriptor
	err      error
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{handlers: make(map[uint16]HandlerDescriptor)}
}

// Register adds d to the builder, failing the eventual Build if opcode is
// already registered. Handle[T] is the usual way to construct d; Register
// itself stays untyped so Controller.Routes can call it uniformly.
func (b *Builder) Register(d HandlerDescriptor) {
	if _, exists := b.handlers[d.Opcode]; exists {
		if b.err == nil {
			b.err = fmt.Errorf("%w: opcode %d (%s)", nalixerr.ErrDuplicateOpcode, d.Opcode, d.Name)
		}
		return
	}
	b.handlers[d.Opcode] = d
}

// Controller is implemented by any type that wants to register its
// opcodes with a Builder, replacing attribute scanning with explicit
// self-registration.
type Controller interface {
	Routes(b *Builder)
}

// Mount calls c.Routes(b) for each controller, in order, surfacing the
// first ErrControllerRejected-wrapped failure at Build time instead of
// panicking mid-scan.
func (b *Builder) Mount(controllers ...Controller) *Builder {
	for _, c := range controllers {
		c.Routes(b)
	}
	return b
}

// Build freezes the accumulated registrations into a Catalog. It fails if
// any Register call detected a duplicate opcode.
func (b *Builder) Build() (*Catalog, error) {
	if b.err != nil {
		return nil, fmt.Errorf("%w: %v", nalixerr.ErrControllerRejected, b.err)
	}
	frozen := make(map[uint16]HandlerDescriptor, len(b.handlers))
	for k, v := range b.handlers {
		frozen[k] = v
	}
	return &Catalog{handlers: frozen}, nil
}
