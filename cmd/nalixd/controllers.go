package main

import (
	"context"

	"github.com/nalix-systems/nalixcore/catalog"
	"github.com/nalix-systems/nalixcore/middleware"
)

// builtinController registers the handful of opcodes nalixd answers out of
// the box: an echo used for liveness checks and a ping/pong pair. Real
// deployments mount their own Controller implementations alongside these
// via catalog.Builder.Mount.
type builtinController struct{}

const (
	opcodeEcho uint16 = 0x0001
	opcodePing uint16 = 0x0002
)

func (builtinController) Routes(b *catalog.Builder) {
	b.Register(catalog.Handle(opcodeEcho, "Echo", middleware.Metadata{}, func(ctx context.Context, pc *middleware.Context) ([]byte, error) {
		return pc.Packet.Payload, nil
	}))
	b.Register(catalog.Handle(opcodePing, "Ping", middleware.Metadata{}, func(ctx context.Context, pc *middleware.Context) (string, error) {
		return "pong", nil
	}))
}
