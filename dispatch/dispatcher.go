// Package dispatch implements the dispatch core: the per-worker loop
// that pulls packets off the priority channel, resolves their type and
// opcode, runs the middleware pipeline, and projects the handler's
// return as a reply.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/nalix-systems/nalixcore/catalog"
	"github.com/nalix-systems/nalixcore/middleware"
	"github.com/nalix-systems/nalixcore/nalixerr"
	"github.com/nalix-systems/nalixcore/nlog"
	"github.com/nalix-systems/nalixcore/packet"
	"github.com/nalix-systems/nalixcore/queue"
	"github.com/nalix-systems/nalixcore/transform"
)

// TypeResolver maps a decoded packet's Magic to the transformer-registry
// type id used for Lookup; for most deployments this is the identity
// function, but it's left pluggable so a Connection-scoped alias table
// can redirect built-in magics if ever needed.
type TypeResolver func(magic uint32) (typeID uint32, ok bool)

// IdentityResolver is the default TypeResolver: magic is the type id.
func IdentityResolver(magic uint32) (uint32, bool) { return magic, true }

// Dispatcher owns the worker pool, the priority channel, the frozen
// catalog and transformer registry, and the compiled middleware pipeline.
// It takes an explicit typed dependency set at construction — no
// ambient package-level state.
type Dispatcher struct {
	channel    *queue.Channel
	catalog    *catalog.Catalog
	transforms *transform.Registry
	pipeline   *middleware.Pipeline
	resolver   TypeResolver
	connLookup ConnectionLookup
	log        *nlog.Logger

	workers int
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// ConnectionLookup resolves the live Connection a queued Item arrived on.
// Dispatcher doesn't track connections itself — that's the transport
// adapter's job (see transportmux) — it only needs a way to turn the
// connection id it stored at enqueue time back into something it can call
// Send on.
type ConnectionLookup func(connID uint64) middleware.Connection

// DispatcherBuilder assembles a Dispatcher from its dependencies via a
// fluent With* API, compiling the middleware pipeline once at Build.
type DispatcherBuilder struct {
	channel    *queue.Channel
	catalog    *catalog.Catalog
	transforms *transform.Registry
	inbound    []middleware.Stage
	outbound   []middleware.Stage
	resolver   TypeResolver
	connLookup ConnectionLookup
	log        *nlog.Logger
	workers    int
}

// NewDispatcherBuilder starts an empty builder with IdentityResolver and
// one worker; call the With* methods to override.
func NewDispatcherBuilder() *DispatcherBuilder {
	return &DispatcherBuilder{resolver: IdentityResolver, workers: 1, log: nlog.Nop()}
}

func (b *DispatcherBuilder) WithChannel(c *queue.Channel) *DispatcherBuilder {
	b.channel = c
	return b
}

func (b *DispatcherBuilder) WithCatalog(c *catalog.Catalog) *DispatcherBuilder {
	b.catalog = c
	return b
}

func (b *DispatcherBuilder) WithTransforms(r *transform.Registry) *DispatcherBuilder {
	b.transforms = r
	return b
}

func (b *DispatcherBuilder) WithMiddleware(inbound, outbound []middleware.Stage) *DispatcherBuilder {
	b.inbound = inbound
	b.outbound = outbound
	return b
}

func (b *DispatcherBuilder) WithResolver(r TypeResolver) *DispatcherBuilder {
	b.resolver = r
	return b
}

func (b *DispatcherBuilder) WithConnectionLookup(l ConnectionLookup) *DispatcherBuilder {
	b.connLookup = l
	return b
}

func (b *DispatcherBuilder) WithLogger(l *nlog.Logger) *DispatcherBuilder {
	b.log = l
	return b
}

func (b *DispatcherBuilder) WithWorkers(n int) *DispatcherBuilder {
	if n > 0 {
		b.workers = n
	}
	return b
}

// Build validates dependencies and compiles the pipeline once.
func (b *DispatcherBuilder) Build() (*Dispatcher, error) {
	if b.channel == nil || b.catalog == nil || b.transforms == nil {
		return nil, errMissingDependency
	}
	return &Dispatcher{
		channel:    b.channel,
		catalog:    b.catalog,
		transforms: b.transforms,
		pipeline:   middleware.NewPipeline(b.inbound, b.outbound),
		resolver:   b.resolver,
		connLookup: b.connLookup,
		log:        b.log,
		workers:    b.workers,
	}, nil
}

// Start launches the configured number of workers, each running loop
// until ctx is canceled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			d.loop(ctx, id)
		}(i)
	}
}

// Stop cancels every worker's context and waits for them to exit.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

func (d *Dispatcher) loop(ctx context.Context, workerID int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		item, err := d.channel.Dequeue(ctx)
		if err != nil {
			if err == queue.ErrClosed || ctx.Err() != nil {
				return
			}
			d.log.Warn("dequeue error", "worker", workerID, "err", err)
			continue
		}
		var conn middleware.Connection
		if d.connLookup != nil {
			conn = d.connLookup(item.ConnID)
		}
		d.HandleWithConnection(ctx, item, conn)
	}
}

// HandleWithConnection is Dispatcher's core per-packet algorithm. The
// worker loop calls it for each dequeued item; it is exported so callers
// that already hold a Connection, such as tests, can skip the queue.
func (d *Dispatcher) HandleWithConnection(ctx context.Context, item queue.Item, conn middleware.Connection) {
	p := item.Packet
	typeID, ok := d.resolver(p.Magic)
	if !ok {
		d.reply(ctx, conn, packet.NewFail(uint16(nalixerr.CodeUnsupportedPacket), false, 0))
		return
	}
	descriptor, ok := d.catalog.Lookup(p.Opcode)
	if !ok {
		d.reply(ctx, conn, packet.NewFail(uint16(nalixerr.CodeNoHandler), false, 0))
		return
	}

	pc := middleware.NewContext(p, conn, typeID, descriptor.Metadata)
	err := d.safeRun(ctx, pc, descriptor.Invoke)
	if err != nil && err != nalixerr.ErrCanceled {
		d.reply(ctx, conn, packet.NewFail(uint16(nalixerr.CodeInternalError), true, 0))
		d.log.Error("handler fault", "opcode", p.Opcode, "err", err)
		return
	}
	if pc.Reply != nil {
		d.reply(ctx, conn, pc.Reply)
	}
}

// safeRun guarantees no panic escapes the worker loop, converting it into
// an error the caller turns into FAIL(INTERNAL_ERROR).
func (d *Dispatcher) safeRun(ctx context.Context, pc *middleware.Context, handler catalog.Invoker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = nalixerr.NewFailure(nalixerr.CodeInternalError, true, panicError{r})
		}
	}()
	return d.pipeline.Run(ctx, pc, middleware.Next(handler))
}

func (d *Dispatcher) reply(ctx context.Context, conn middleware.Connection, p *packet.Packet) {
	if conn == nil || conn.IsDisposed() {
		return
	}
	if err := conn.Send(ctx, p); err != nil {
		d.log.Warn("send failed", "err", err)
	}
}

type panicError struct{ v any }

func (p panicError) Error() string {
	if err, ok := p.v.(error); ok {
		return "panic: " + err.Error()
	}
	return fmt.Sprintf("panic: %v", p.v)
}
