package catalog

import (
	"context"
	"fmt"

	"github.com/nalix-systems/nalixcore/middleware"
	"github.com/nalix-systems/nalixcore/nalixerr"
	"github.com/nalix-systems/nalixcore/packet"
)

// HandlerFunc is the shape a controller method takes: given the inbound
// PacketContext, produce a value of a permitted return type T (see
// project). A non-nil error is recorded as the context's fault and, once
// the outbound stages have run, returned by the pipeline; the dispatcher
// converts it to a FAIL control packet unless it is nalixerr.ErrCanceled.
type HandlerFunc[T any] func(ctx context.Context, pc *middleware.Context) (T, error)

// VoidFunc is the "no reply" handler shape: a handler that acts but
// produces no response payload.
type VoidFunc func(ctx context.Context, pc *middleware.Context) error

// Handle wraps fn into an Invoker at registration time: the type switch
// inside project runs once per call, never via reflect. Handle accepts any
// T. Only string, []byte and *packet.Packet produce a reply; any other T
// compiles and registers, and each invocation then fails with
// nalixerr.ErrUnsupportedReturn. Neither the compiler nor Build rejects an
// unsupported return type.
func Handle[T any](opcode uint16, name string, md middleware.Metadata, fn HandlerFunc[T]) HandlerDescriptor {
	return HandlerDescriptor{
		Opcode:   opcode,
		Name:     name,
		Metadata: md,
		Invoke: func(ctx context.Context, pc *middleware.Context) error {
			v, err := fn(ctx, pc)
			if err != nil {
				return err
			}
			return project(pc, v)
		},
	}
}

// HandleVoid registers a handler with no reply.
func HandleVoid(opcode uint16, name string, md middleware.Metadata, fn VoidFunc) HandlerDescriptor {
	return HandlerDescriptor{
		Opcode:   opcode,
		Name:     name,
		Metadata: md,
		Invoke: func(ctx context.Context, pc *middleware.Context) error {
			return fn(ctx, pc)
		},
	}
}

// project turns a handler's return value into pc.Reply for every T Handle
// supports: bytes, string, and *packet.Packet. Projections copy into a
// freshly sized packet rather than mutating the handler's own buffer.
func project[T any](pc *middleware.Context, v T) error {
	switch val := any(v).(type) {
	case nil:
		return nil
	case []byte:
		magic, _ := packet.BinaryTierMagic(len(val))
		p, err := packet.New(magic, pc.Packet.Opcode, packet.FlagIsResponse, pc.Packet.Priority, pc.Packet.Transport, val, nil)
		if err != nil {
			return err
		}
		pc.Reply = p
		return nil
	case string:
		magic, _ := packet.TextTierMagic(len(val))
		p, err := packet.New(magic, pc.Packet.Opcode, packet.FlagIsResponse, pc.Packet.Priority, pc.Packet.Transport, []byte(val), nil)
		if err != nil {
			return err
		}
		pc.Reply = p
		return nil
	case *packet.Packet:
		pc.Reply = val
		return nil
	default:
		return fmt.Errorf("%w: %T", nalixerr.ErrUnsupportedReturn, v)
	}
}
