package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"runtime"
	"sync"

	"github.com/spf13/cobra"

	"github.com/nalix-systems/nalixcore/capabilities"
	"github.com/nalix-systems/nalixcore/catalog"
	"github.com/nalix-systems/nalixcore/cipher"
	"github.com/nalix-systems/nalixcore/config"
	"github.com/nalix-systems/nalixcore/dispatch"
	"github.com/nalix-systems/nalixcore/middleware"
	"github.com/nalix-systems/nalixcore/nlog"
	"github.com/nalix-systems/nalixcore/packet"
	"github.com/nalix-systems/nalixcore/queue"
	"github.com/nalix-systems/nalixcore/transform"
	"github.com/nalix-systems/nalixcore/transportmux"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dispatch daemon",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a nalixd.yaml configuration file")
	serveCmd.SilenceErrors = true
	serveCmd.SilenceUsage = true
}

var serveCancel context.CancelFunc
var serveCancelMu sync.Mutex

func cancelServe() {
	serveCancelMu.Lock()
	defer serveCancelMu.Unlock()
	if serveCancel != nil {
		serveCancel()
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := nlog.New(cmd.OutOrStdout(), nlog.ParseLevel(cfg.LogLevel), nlog.ParseFormat(cfg.LogFormat))

	report := capabilities.Probe()
	log.Info("cpu capabilities probed", "recommended_algorithm", report.RecommendedAlgorithmName(), "aes_ni", report.HasAESNI, "avx2", report.HasAVX2)

	var sessionKey []byte
	if cfg.EncryptionKeyHex != "" {
		sessionKey, err = hex.DecodeString(cfg.EncryptionKeyHex)
		if err != nil {
			return fmt.Errorf("decoding NALIXD_ENCRYPTION_KEY: %w", err)
		}
	}

	transforms := transform.NewRegistry()
	if err := transforms.Register(packet.AppMagicFloor, transform.StandardEntry()); err != nil {
		return fmt.Errorf("registering default transform: %w", err)
	}
	transforms.Freeze()

	cat, err := catalog.NewBuilder().Mount(builtinController{}).Build()
	if err != nil {
		return fmt.Errorf("building catalog: %w", err)
	}

	channel := queue.NewChannel(cfg.ChannelConfig())
	suite := cipher.NewSuite()
	limiter := middleware.NewRateLimiter()

	inbound := []middleware.Stage{
		middleware.Timeout(),
		middleware.Permission(),
		middleware.RateLimit(limiter),
		middleware.Unwrap(transforms, suite),
	}
	outbound := []middleware.Stage{
		middleware.Wrap(transforms, suite, middleware.WrapConfig{CompressionThreshold: cfg.CompressionThreshold}),
	}

	var connsMu sync.Mutex
	conns := make(map[uint64]middleware.Connection)
	var nextConnID uint64

	workers := int(cfg.Workers)
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	d, err := dispatch.NewDispatcherBuilder().
		WithChannel(channel).
		WithCatalog(cat).
		WithTransforms(transforms).
		WithMiddleware(inbound, outbound).
		WithConnectionLookup(func(id uint64) middleware.Connection {
			connsMu.Lock()
			defer connsMu.Unlock()
			return conns[id]
		}).
		WithLogger(log).
		WithWorkers(workers).
		Build()
	if err != nil {
		return fmt.Errorf("building dispatcher: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	serveCancelMu.Lock()
	serveCancel = cancel
	serveCancelMu.Unlock()
	defer cancel()

	d.Start(ctx)
	defer d.Stop()

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.ListenAddr, err)
	}
	defer ln.Close()
	log.Info("nalixd listening", "addr", cfg.ListenAddr, "workers", workers)

	server := &transportmux.Server{
		Listener:        ln,
		PermissionLevel: 0,
		SessionKey:      sessionKey,
		Algorithm:       uint8(cipher.AlgorithmChaCha20Poly1305),
		Log:             log,
		OnAccept: func(c *transportmux.Conn) {
			connsMu.Lock()
			nextConnID++
			id := nextConnID
			conns[id] = c
			connsMu.Unlock()

			defer func() {
				connsMu.Lock()
				delete(conns, id)
				connsMu.Unlock()
			}()

			if err := c.Listen(func(p *packet.Packet) {
				channel.Enqueue(ctx, queue.Item{Packet: p, ConnID: id})
			}); err != nil {
				log.Debug("connection closed", "remote", c.RemoteEndpoint(), "error", err.Error())
			}
		},
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve() }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serveErr:
		return err
	}
}
