package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dshills/smolvec/api"
	"github.com/dshills/smolvec/config"
	"github.com/dshills/smolvec/core"
	"github.com/dshills/smolvec/observability"
	"github.com/dshills/smolvec/persistence"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// flusher is implemented by key-value stores that buffer writes
type flusher interface {
	Flush(ctx context.Context) error
}

func main() {
	// Parse command line flags
	var (
		configPath = flag.String("config", "", "Path to YAML configuration file (default ~/.smolvec.yml)")
		host       = flag.String("host", "", "Host to listen on (overrides config)")
		port       = flag.Int("port", 0, "Port to listen on (overrides config)")
		dbType     = flag.String("db", "", "Backend: memory, bolt, badger, sqlite, postgres, object (overrides config)")
		dbPath     = flag.String("path", "", "Backend location (overrides config)")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbType != "" {
		cfg.Persistence.Type = persistence.PersistenceType(*dbType)
	}
	if *dbPath != "" {
		cfg.Persistence.Path = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger, logCloser, err := cfg.Logging.NewLogger()
	if err != nil {
		slog.Error("failed to create logger", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		logCloser.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting smolvec",
		"backend", cfg.Persistence.Type,
		"path", cfg.Persistence.Path,
		"codec", cfg.VectorStore.Codec)

	// Create persistence layer
	kv, err := persistence.Open(ctx, cfg.Persistence)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	opts, err := cfg.StoreOptions()
	if err != nil {
		kv.Close()
		return err
	}
	opts = append(opts, core.WithLogger(logger), core.WithRecorder(metrics))
	store := core.NewVectorStore(kv, opts...)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	if f, ok := kv.(flusher); ok && cfg.Persistence.Object.FlushInterval > 0 {
		go flushLoop(ctx, f, cfg.Persistence.Object.FlushInterval, logger)
	}

	server := api.NewServer(store, cfg.ToServerConfig(),
		api.WithLogger(logger),
		api.WithMetrics(metrics, reg))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for interrupt signal
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

// flushLoop periodically persists buffered writes until ctx is done
func flushLoop(ctx context.Context, f flusher, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.Flush(ctx); err != nil {
				logger.Error("snapshot flush failed", "error", err)
			}
		}
	}
}
