package catalog

import (
	"context"
	"testing"

	"github.com/nalix-systems/nalixcore/middleware"
	"github.com/nalix-systems/nalixcore/packet"
)

type echoController struct{}

func (echoController) Routes(b *Builder) {
	b.Register(Handle(1, "Echo", middleware.Metadata{}, func(ctx context.Context, pc *middleware.Context) ([]byte, error) {
		return pc.Packet.Payload, nil
	}))
	b.Register(HandleVoid(2, "Noop", middleware.Metadata{}, func(ctx context.Context, pc *middleware.Context) error {
		return nil
	}))
}

func newPC(opcode uint16, payload []byte) *middleware.Context {
	p, _ := packet.New(packet.AppMagicFloor+1, opcode, 0, packet.PriorityNormal, packet.TransportTCP, payload, nil)
	return middleware.NewContext(p, nil, packet.AppMagicFloor+1, middleware.Metadata{})
}

func TestBuildAndLookup(t *testing.T) {
	cat, err := NewBuilder().Mount(echoController{}).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if cat.Len() != 2 {
		t.Fatalf("got %d handlers, want 2", cat.Len())
	}
	d, ok := cat.Lookup(1)
	if !ok {
		t.Fatal("expected opcode 1 to be registered")
	}
	pc := newPC(1, []byte("hello"))
	if err := d.Invoke(context.Background(), pc); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if pc.Reply == nil || string(pc.Reply.Payload) != "hello" {
		t.Fatalf("got reply %v, want echoed payload", pc.Reply)
	}
}

func TestDuplicateOpcodeRejectedAtBuild(t *testing.T) {
	b := NewBuilder()
	b.Register(HandleVoid(9, "A", middleware.Metadata{}, func(ctx context.Context, pc *middleware.Context) error { return nil }))
	b.Register(HandleVoid(9, "B", middleware.Metadata{}, func(ctx context.Context, pc *middleware.Context) error { return nil }))
	if _, err := b.Build(); err == nil {
		t.Fatal("expected duplicate opcode registration to fail Build")
	}
}

func TestVoidHandlerProducesNoReply(t *testing.T) {
	cat, err := NewBuilder().Mount(echoController{}).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	d, _ := cat.Lookup(2)
	pc := newPC(2, nil)
	if err := d.Invoke(context.Background(), pc); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if pc.Reply != nil {
		t.Fatal("expected no reply from a void handler")
	}
}

func TestLookupMissingOpcode(t *testing.T) {
	cat, _ := NewBuilder().Build()
	if _, ok := cat.Lookup(99); ok {
		t.Fatal("expected lookup of unregistered opcode to fail")
	}
}
