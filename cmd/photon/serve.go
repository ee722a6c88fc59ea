package main

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/photon/internal/config"
	"github.com/vango-dev/photon/internal/errors"
	"github.com/vango-dev/photon/pkg/blobstore"
	"github.com/vango-dev/photon/pkg/rmi"
	"github.com/vango-dev/photon/pkg/server"
)

type serveOptions struct {
	addr     string
	httpAddr string
	logLevel string
	noHTTP   bool
	noBlob   bool
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a photon server",
		Long: `Run a photon server.

The server accepts protocol connections over TCP and, unless disabled,
WebSocket connections on the HTTP address. The HTTP address also serves
/metrics and /healthz.

Methods:
  echo, echo.bytes                      Return their argument
  blob.put, blob.get, blob.delete,      Blob storage (memory or S3)
  blob.list
  rmi.methods                           List registered methods

Examples:
  photon serve
  photon serve --addr=:7000 --http=""
  photon serve --config=deploy/photon.json --log-level=debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.noHTTP = cmd.Flags().Changed("http") && opts.httpAddr == ""
			return runServe(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.addr, "addr", "a", "", "TCP listen address (default from photon.json)")
	cmd.Flags().StringVar(&opts.httpAddr, "http", "", "HTTP listen address; empty disables WebSocket and metrics")
	cmd.Flags().StringVarP(&opts.logLevel, "log-level", "l", "", "Log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&opts.noBlob, "no-blob", false, "Do not register the blob methods")

	return cmd
}

func runServe(opts serveOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyServeOptions(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := newServer(ctx, cfg, logger)
	if err != nil {
		return err
	}

	printBanner()
	info("tcp:  %s", cfg.Server.Address)
	if cfg.Server.HTTPAddress != "" {
		info("ws:   %s%s", cfg.Server.HTTPAddress, cfg.Server.WebSocketPath)
		if cfg.Metrics.Enabled {
			info("metrics: %s%s", cfg.Server.HTTPAddress, cfg.Metrics.Path)
		}
	}

	if err := srv.Run(); err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return errors.New(errors.ServerShutdownFailed).Wrap(err)
		}
		return errors.New(errors.ServerListenFailed).Wrap(err)
	}
	return nil
}

func applyServeOptions(cfg *config.Config, opts serveOptions) {
	if opts.addr != "" {
		cfg.Server.Address = opts.addr
	}
	if opts.noHTTP {
		cfg.Server.HTTPAddress = ""
	} else if opts.httpAddr != "" {
		cfg.Server.HTTPAddress = opts.httpAddr
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.noBlob {
		cfg.Blob.Enabled = false
	}
}

// newServer wires the registry, blob store and metrics into a server.
// Calls in flight see ctx canceled when it ends.
func newServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*server.Server, error) {
	var metrics *server.Metrics
	regOpts := []rmi.Option{
		rmi.WithLogger(logger.With("component", "rmi")),
		rmi.WithBaseContext(ctx),
	}
	if cfg.Metrics.Enabled {
		metrics = server.NewMetrics(server.WithNamespace(cfg.Metrics.Namespace))
		regOpts = append(regOpts, rmi.WithObserver(metrics))
	}

	reg := rmi.NewRegistry(regOpts...)
	if err := registerBuiltins(reg); err != nil {
		return nil, err
	}

	store, err := cfg.BlobStore()
	if err != nil {
		return nil, errors.New(errors.ServerStorageFailed).Wrap(err)
	}
	if store != nil {
		svc := blobstore.NewService(store, logger.With("component", "blobstore"))
		if err := svc.Register(reg); err != nil {
			return nil, err
		}
		logger.Debug("blob methods registered", "backend", cfg.Blob.Backend)
	}

	sc := cfg.ServerConfig()
	sc.Metrics = metrics
	sc.Logger = logger.With("component", "server")
	return server.New(reg, sc), nil
}
