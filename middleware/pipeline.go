package middleware

import (
	"context"
	"sort"
)

// Next is what a Stage calls to continue the chain. Passing a derived
// context lets a stage (e.g. Timeout) bound how long everything downstream
// may run.
type Next func(ctx context.Context, pc *Context) error

// Stage is one middleware: Order determines its position (lower runs
// earlier inbound / later outbound — see Pipeline doc), Always marks an
// outbound stage that must run even when the handler set SkipOutbound.
type Stage struct {
	Name   string
	Order  int
	Always bool
	Fn     func(ctx context.Context, pc *Context, next Next) error
}

// Pipeline holds the ordered inbound and outbound stage lists. Outbound
// stages with Always=true run unconditionally; the rest are skipped when
// pc.SkipOutbound is true.
type Pipeline struct {
	inbound  []Stage
	outbound []Stage
}

// NewPipeline sorts inbound by Order ascending and outbound by Order
// descending once, at build time, so Run never re-sorts. Stages with equal
// Order keep their registration sequence.
func NewPipeline(inbound, outbound []Stage) *Pipeline {
	in := append([]Stage(nil), inbound...)
	out := append([]Stage(nil), outbound...)
	sort.SliceStable(in, func(i, j int) bool { return in[i].Order < in[j].Order })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order > out[j].Order })
	return &Pipeline{inbound: in, outbound: out}
}

// compile right-folds stages into a single Next, terminating in terminal.
func compile(stages []Stage, terminal Next) Next {
	next := terminal
	for i := len(stages) - 1; i >= 0; i-- {
		stage := stages[i]
		upstream := next
		next = func(ctx context.Context, pc *Context) error {
			return stage.Fn(ctx, pc, upstream)
		}
	}
	return next
}

// Run executes the full state machine: inbound chain, handler, the
// always-outbound stages, then (unless SkipOutbound) the rest of the
// outbound chain. handler is the compiled catalog invoker for pc's opcode.
// A handler error is recorded with pc.Fault and, after the outbound stages
// have run, returned (an outbound stage's own error takes precedence).
func (p *Pipeline) Run(ctx context.Context, pc *Context, handler Next) error {
	always, rest := p.splitOutbound()

	terminal := func(ctx context.Context, pc *Context) error {
		herr := handler(ctx, pc)
		if herr != nil {
			pc.Fault(herr)
		}
		if err := compile(always, noop)(ctx, pc); err != nil {
			return err
		}
		if !pc.SkipOutbound {
			if err := compile(rest, noop)(ctx, pc); err != nil {
				return err
			}
		}
		return herr
	}

	return compile(p.inbound, terminal)(ctx, pc)
}

func (p *Pipeline) splitOutbound() (always, rest []Stage) {
	for _, s := range p.outbound {
		if s.Always {
			always = append(always, s)
		} else {
			rest = append(rest, s)
		}
	}
	return always, rest
}

func noop(context.Context, *Context) error { return nil }
