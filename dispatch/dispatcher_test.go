package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/nalix-systems/nalixcore/catalog"
	"github.com/nalix-systems/nalixcore/middleware"
	"github.com/nalix-systems/nalixcore/nalixerr"
	"github.com/nalix-systems/nalixcore/packet"
	"github.com/nalix-systems/nalixcore/queue"
	"github.com/nalix-systems/nalixcore/transform"
)

const echoOpcode uint16 = 1
const testTypeID = packet.AppMagicFloor + 1

type recordingConn struct {
	sent []*packet.Packet
}

func (c *recordingConn) Send(ctx context.Context, p *packet.Packet) error {
	c.sent = append(c.sent, p)
	return nil
}
func (c *recordingConn) SendControl(ctx context.Context, ctrl packet.Control) error { return nil }
func (c *recordingConn) Disconnect(reason string)   {}
func (c *recordingConn) RemoteEndpoint() string      { return "10.0.0.1:1" }
func (c *recordingConn) PermissionLevel() int        { return 10 }
func (c *recordingConn) EncryptionKey() []byte       { return nil }
func (c *recordingConn) EncryptionAlgorithm() uint8  { return 0 }
func (c *recordingConn) IsDisposed() bool            { return false }

func buildTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	cat, err := catalog.NewBuilder().Mount(echoRoutes{}).Build()
	if err != nil {
		t.Fatalf("catalog.Build: %v", err)
	}
	reg := transform.NewRegistry()
	if err := reg.Register(testTypeID, transform.StandardEntry()); err != nil {
		t.Fatalf("transform.Register: %v", err)
	}
	reg.Freeze()

	ch := queue.NewChannel(queue.Config{DropPolicy: queue.DropNewest})
	d, err := NewDispatcherBuilder().
		WithChannel(ch).
		WithCatalog(cat).
		WithTransforms(reg).
		Build()
	if err != nil {
		t.Fatalf("DispatcherBuilder.Build: %v", err)
	}
	return d
}

type echoRoutes struct{}

func (echoRoutes) Routes(b *catalog.Builder) {
	b.Register(catalog.Handle(echoOpcode, "Echo", middleware.Metadata{}, func(ctx context.Context, pc *middleware.Context) ([]byte, error) {
		return pc.Packet.Payload, nil
	}))
	b.Register(catalog.HandleVoid(2, "Panics", middleware.Metadata{}, func(ctx context.Context, pc *middleware.Context) error {
		panic("boom")
	}))
}

func mustPacket(t *testing.T, opcode uint16, payload []byte) *packet.Packet {
	t.Helper()
	p, err := packet.New(testTypeID, opcode, 0, packet.PriorityNormal, packet.TransportTCP, payload, nil)
	if err != nil {
		t.Fatalf("packet.New: %v", err)
	}
	return p
}

func TestHappyEchoScenario(t *testing.T) {
	d := buildTestDispatcher(t)
	conn := &recordingConn{}
	item := queue.Item{Packet: mustPacket(t, echoOpcode, []byte("ping")), ConnID: 1}

	d.HandleWithConnection(context.Background(), item, conn)

	if len(conn.sent) != 1 {
		t.Fatalf("got %d replies, want 1", len(conn.sent))
	}
	if string(conn.sent[0].Payload) != "ping" {
		t.Fatalf("got payload %q, want %q", conn.sent[0].Payload, "ping")
	}
}

func TestUnsupportedPacketScenario(t *testing.T) {
	d := buildTestDispatcher(t)
	d.resolver = func(magic uint32) (uint32, bool) { return 0, false }
	conn := &recordingConn{}
	item := queue.Item{Packet: mustPacket(t, echoOpcode, []byte("x")), ConnID: 1}

	d.HandleWithConnection(context.Background(), item, conn)

	if len(conn.sent) != 1 {
		t.Fatalf("got %d replies, want 1", len(conn.sent))
	}
	ctrl, ok := packet.DecodeControl(conn.sent[0].Payload)
	if !ok || ctrl.Reason != uint16(nalixerr.CodeUnsupportedPacket) {
		t.Fatalf("got control %+v ok=%v, want UNSUPPORTED_PACKET", ctrl, ok)
	}
}

func TestNoHandlerScenario(t *testing.T) {
	d := buildTestDispatcher(t)
	conn := &recordingConn{}
	item := queue.Item{Packet: mustPacket(t, 999, []byte("x")), ConnID: 1}

	d.HandleWithConnection(context.Background(), item, conn)

	if len(conn.sent) != 1 {
		t.Fatalf("got %d replies, want 1", len(conn.sent))
	}
	ctrl, ok := packet.DecodeControl(conn.sent[0].Payload)
	if !ok || ctrl.Reason != uint16(nalixerr.CodeNoHandler) {
		t.Fatalf("got control %+v ok=%v, want NO_HANDLER", ctrl, ok)
	}
}

func TestHandlerPanicBecomesInternalError(t *testing.T) {
	d := buildTestDispatcher(t)
	conn := &recordingConn{}
	item := queue.Item{Packet: mustPacket(t, 2, []byte("x")), ConnID: 1}

	d.HandleWithConnection(context.Background(), item, conn)

	if len(conn.sent) != 1 {
		t.Fatalf("got %d replies, want 1", len(conn.sent))
	}
	ctrl, ok := packet.DecodeControl(conn.sent[0].Payload)
	if !ok || ctrl.Reason != uint16(nalixerr.CodeInternalError) {
		t.Fatalf("got control %+v ok=%v, want INTERNAL_ERROR", ctrl, ok)
	}
}

func TestStartStopDrainsWorkers(t *testing.T) {
	d := buildTestDispatcher(t)
	d.workers = 2
	d.Start(context.Background())
	time.Sleep(10 * time.Millisecond)
	d.Stop()
}
