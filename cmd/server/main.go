package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iudanet/estisync/internal/config"
	"github.com/iudanet/estisync/internal/logging"
	"github.com/iudanet/estisync/internal/server"
	"github.com/iudanet/estisync/internal/server/documents"
	"github.com/iudanet/estisync/internal/server/storage/sqldb"
	"github.com/iudanet/estisync/internal/tracing"
	"github.com/iudanet/estisync/internal/transport/memory"
	"github.com/iudanet/estisync/internal/validation"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Parse flags
	showVersion := flag.Bool("version", false, "Show version information")
	configPath := flag.String("config", "", "Path to YAML config file")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	dbDriver := flag.String("db-driver", "", "Database driver: sqlite or postgres (overrides config)")
	dbDSN := flag.String("db-dsn", "", "Database DSN (overrides config)")
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbDriver != "" {
		cfg.Server.Database.Driver = *dbDriver
	}
	if *dbDSN != "" {
		cfg.Server.Database.DSN = *dbDSN
	}

	logger, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	tp, err := tracing.New(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to flush traces", "error", err)
		}
	}()

	db, err := sqldb.New(ctx, cfg.Server.Database.Driver, cfg.Server.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	hub := memory.NewHub(logger)

	opts := []documents.Option{
		documents.WithBroadcaster(hub),
		documents.WithTracer(tp.Tracer()),
	}
	if cfg.Server.Validate {
		v, err := validation.Default()
		if err != nil {
			return fmt.Errorf("failed to load validation schemas: %w", err)
		}
		opts = append(opts, documents.WithValidator(v))
	}
	svc := documents.NewService(db, logger, opts...)

	srv := server.New(cfg.Server, svc, hub, db, Version, logger)
	defer srv.Close()

	logger.Info("Estisync server starting",
		"version", Version,
		"addr", cfg.Server.Addr,
		"driver", cfg.Server.Database.Driver,
		"validate", cfg.Server.Validate)

	return srv.Run(ctx)
}

func printVersion() {
	fmt.Printf("Estisync Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
