// Specragd serves retrieval and question answering over HTTP.
//
// It loads the live index generation at startup and watches the index
// directory, swapping in each new generation as soon as a build completes.
// In-flight requests finish on the generation they started with.
//
// Usage:
//
//	# Start with ~/.config/specrag/config.yaml
//	specragd
//
//	# Explicit config, environment override
//	SPECRAG_SERVER_PORT=8080 specragd -config ./specrag.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/specrag/internal/config"
	"github.com/fyrsmithlabs/specrag/internal/http"
	"github.com/fyrsmithlabs/specrag/internal/services"
	"github.com/fyrsmithlabs/specrag/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "config file (default ~/.config/specrag/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  specragd [-config file]   Start the daemon\n")
			fmt.Fprintf(os.Stderr, "  specragd version          Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWithFile(*configPath)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func printVersion() {
	fmt.Printf("specragd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until ctx is cancelled, then shuts down
// within server.shutdown_timeout.
func run(ctx context.Context, cfg *config.Config) error {
	appLogger, err := services.NewLogger(cfg, map[string]string{"service": "specragd"})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger := appLogger.Underlying()
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	tel, err := services.NewTelemetry(ctx, cfg, version, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if appLogger, err = appLogger.WithOTEL(tel.LoggerProvider()); err != nil {
		return fmt.Errorf("failed to bridge logs to telemetry: %w", err)
	}
	logger = appLogger.Underlying()

	reg, err := services.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer reg.Close()

	srv, err := http.NewServer(http.Deps{
		Retriever: reg.Retriever(),
		Asker:     reg.Answers(),
		Gate:      reg.Gate(),
		Index:     reg.Index(),
		Telemetry: tel,
	}, logger, &http.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		RateLimit:   cfg.Server.RateLimit,
		DefaultTopK: cfg.Retrieval.TopK,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	var watcher *vectorstore.Watcher
	if !cfg.Server.DisableWatch {
		watcher, err = vectorstore.NewWatcher(cfg.Index.Path, func() { reload(reg, logger) }, logger)
		if err != nil {
			return err
		}
		defer watcher.Close()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if watcher != nil {
		g.Go(func() error {
			if err := watcher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	logger.Info("specragd started",
		zap.String("addr", cfg.ServerAddr()),
		zap.String("index_path", cfg.Index.Path),
		zap.Bool("watch", !cfg.Server.DisableWatch),
		zap.String("version", version),
	)

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", zap.Error(err))
		}
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}

// reload swaps in the generation CURRENT now names. A failed reload keeps
// serving the previous generation.
func reload(reg services.Registry, logger *zap.Logger) {
	if _, err := reg.Reload(); err != nil {
		logger.Error("index reload failed, keeping previous generation", zap.Error(err))
	}
}
