package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nalix-systems/nalixcore/cipher"
	"github.com/nalix-systems/nalixcore/nalixerr"
	"github.com/nalix-systems/nalixcore/packet"
	"github.com/nalix-systems/nalixcore/transform"
)

// Order constants for the built-in middlewares. Negative values run first
// inbound and last outbound; positive values run last inbound and first
// outbound. These are part of the wire-compatible contract and must not
// change across releases.
const (
	OrderTimeout    = -50
	OrderPermission = -25
	OrderRateLimit  = -10
	OrderUnwrap     = 100
	OrderWrap       = 100
)

func textReply(s string) *packet.Packet {
	magic, _ := packet.TextTierMagic(len(s))
	p, _ := packet.New(magic, 0, packet.FlagIsResponse, packet.PriorityHigh, packet.TransportNone, []byte(s), nil)
	return p
}

func sendReply(ctx context.Context, conn Connection, p *packet.Packet) {
	if conn == nil || conn.IsDisposed() {
		return
	}
	_ = conn.Send(ctx, p)
}

// Timeout races the downstream chain against metadata.timeout_ms, reusing
// context.WithTimeout for the derived cancellation token. A timeout_ms of
// 0 disables the stage entirely.
//
// The downstream chain runs against a forked Context (see Context.fork),
// never pc itself. If the deadline wins the race, this stage returns
// without ever touching pc again; the losing goroutine keeps running
// against the fork in the background and its eventual writes land only on
// that abandoned copy, never on pc, so a late-completing handler can't
// mutate a reply that has already been decided and can't race the worker
// that reads pc.Reply once the pipeline returns.
func Timeout() Stage {
	return Stage{
		Name:  "Timeout",
		Order: OrderTimeout,
		Fn: func(ctx context.Context, pc *Context, next Next) error {
			if pc.Metadata.TimeoutMS == 0 {
				return next(ctx, pc)
			}
			child, cancel := context.WithTimeout(ctx, time.Duration(pc.Metadata.TimeoutMS)*time.Millisecond)
			defer cancel()

			sub := pc.fork()
			done := make(chan error, 1)
			go func() { done <- next(child, sub) }()

			select {
			case err := <-done:
				pc.absorb(sub)
				return err
			case <-child.Done():
				if child.Err() == context.DeadlineExceeded {
					sendReply(ctx, pc.Connection, textReply(fmt.Sprintf("Request timeout (%dms)", pc.Metadata.TimeoutMS)))
					pc.SkipOutbound = true
					return nil
				}
				return child.Err()
			}
		},
	}
}

// Permission short-circuits when the connection's permission level is
// below the handler's required level.
func Permission() Stage {
	return Stage{
		Name:  "Permission",
		Order: OrderPermission,
		Fn: func(ctx context.Context, pc *Context, next Next) error {
			if pc.Connection != nil && pc.Connection.PermissionLevel() < pc.Metadata.PermissionLevel {
				sendReply(ctx, pc.Connection, textReply("Permission denied"))
				return nil
			}
			return next(ctx, pc)
		},
	}
}

// RateLimiter is a sliding-window limiter keyed by (remote endpoint, rate
// group), shared by every RateLimit stage instance built from it.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// NewRateLimiter constructs an empty limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{windows: make(map[string][]time.Time)}
}

// Allow reports whether one more event is permitted for key within
// window, given max events per window, recording the event if so.
func (rl *RateLimiter) Allow(key string, max uint32, window time.Duration) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-window)
	events := rl.windows[key]
	kept := events[:0]
	for _, t := range events {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if uint32(len(kept)) >= max {
		rl.windows[key] = kept
		return false
	}
	rl.windows[key] = append(kept, now)
	return true
}

// RateLimit consults limiter for (connection.RemoteEndpoint, metadata.RateGroup).
func RateLimit(limiter *RateLimiter) Stage {
	return Stage{
		Name:  "RateLimit",
		Order: OrderRateLimit,
		Fn: func(ctx context.Context, pc *Context, next Next) error {
			if pc.Metadata.RateLimitMax == 0 {
				return next(ctx, pc)
			}
			endpoint := ""
			if pc.Connection != nil {
				endpoint = pc.Connection.RemoteEndpoint()
			}
			key := endpoint + "|" + pc.Metadata.RateGroup
			window := time.Duration(pc.Metadata.RateLimitWindowMS) * time.Millisecond
			if !limiter.Allow(key, pc.Metadata.RateLimitMax, window) {
				sendReply(ctx, pc.Connection, textReply("Rate limited"))
				return nil
			}
			return next(ctx, pc)
		},
	}
}

// Unwrap decrypts then decompresses an inbound packet when its type is
// pipeline-managed and its flags indicate either transform was applied.
func Unwrap(registry *transform.Registry, suite *cipher.Suite) Stage {
	return Stage{
		Name:  "Unwrap",
		Order: OrderUnwrap,
		Fn: func(ctx context.Context, pc *Context, next Next) error {
			if !registry.IsPipelineManaged(pc.TypeID) {
				return next(ctx, pc)
			}
			p := pc.Packet
			if p.Flags.Has(packet.FlagEncrypted) {
				alg := cipher.Algorithm(pc.Connection.EncryptionAlgorithm())
				decrypted, err := registry.Decrypt(pc.TypeID, p, pc.Connection.EncryptionKey(), alg, suite)
				if err != nil {
					pc.Fault(nalixerr.NewFailure(nalixerr.CodeTransformFailed, false, err))
					sendReply(ctx, pc.Connection, packet.NewFail(uint16(nalixerr.CodeTransformFailed), false, 0))
					return nil
				}
				p = decrypted
			}
			if p.Flags.Has(packet.FlagCompressed) {
				decompressed, err := registry.Decompress(pc.TypeID, p)
				if err != nil {
					pc.Fault(nalixerr.NewFailure(nalixerr.CodeTransformFailed, false, err))
					sendReply(ctx, pc.Connection, packet.NewFail(uint16(nalixerr.CodeTransformFailed), false, 0))
					return nil
				}
				p = decompressed
			}
			pc.Packet = p
			return next(ctx, pc)
		},
	}
}

// WrapConfig parameterizes the Wrap stage's compression decision: TCP
// compresses above 2x threshold, UDP only within a band that won't risk
// fragmentation.
type WrapConfig struct {
	CompressionThreshold uint32
}

// Wrap compresses (if the outgoing packet qualifies by size and
// transport) then encrypts (if the handler's metadata requires it) the
// reply set on pc.Reply.
func Wrap(registry *transform.Registry, suite *cipher.Suite, cfg WrapConfig) Stage {
	return Stage{
		Name:  "Wrap",
		Order: OrderWrap,
		Fn: func(ctx context.Context, pc *Context, next Next) error {
			if err := next(ctx, pc); err != nil {
				return err
			}
			if pc.Reply == nil || !registry.IsPipelineManaged(pc.TypeID) {
				return nil
			}
			p := pc.Reply
			if shouldCompress(p, cfg.CompressionThreshold) {
				compressed, err := registry.Compress(pc.TypeID, p)
				if err != nil {
					pc.Fault(nalixerr.NewFailure(nalixerr.CodeCompressionUnsupported, false, err))
					sendReply(ctx, pc.Connection, packet.NewFail(uint16(nalixerr.CodeCompressionUnsupported), false, 0))
					pc.Reply = nil
					return nil
				}
				p = compressed
			}
			if pc.Metadata.EncryptionRequired {
				alg := cipher.Algorithm(pc.Connection.EncryptionAlgorithm())
				encrypted, err := registry.Encrypt(pc.TypeID, p, pc.Connection.EncryptionKey(), alg, suite)
				if err != nil {
					pc.Fault(nalixerr.NewFailure(nalixerr.CodeCryptoUnsupported, false, err))
					sendReply(ctx, pc.Connection, packet.NewFail(uint16(nalixerr.CodeCryptoUnsupported), false, 0))
					// Clear the reply: encryption was mandatory for this
					// opcode and failed, so the un-encrypted p must never
					// reach dispatch's own pc.Reply send — only the FAIL
					// above goes out.
					pc.Reply = nil
					return nil
				}
				p = encrypted
			}
			pc.Reply = p
			return nil
		},
	}
}

func shouldCompress(p *packet.Packet, threshold uint32) bool {
	n := uint32(len(p.Payload))
	switch p.Transport {
	case packet.TransportUDP:
		return n >= 600 && n <= 1200
	default:
		return n > 2*threshold
	}
}
