/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the POS deployment tracker server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Open the persistence backend (sqlite, postgres or memory)
  3. Open the attachment blob store (fs, s3 or memory)
  4. Load the collection; seed it when empty
  5. Configure HTTP router and backup scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS (override environment):
  -port         HTTP server port (PORT, default: 8080)
  -db           SQLite database path (SQLITE_PATH, default: postracker.db)
                Use ":memory:" for in-memory database
  -persistence  sqlite | postgres | memory (PERSISTENCE_DRIVER)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler, retry a pending save
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/postracker.db"

  # Run against Postgres with S3 attachments
  DATABASE_URL=postgres://... BLOB_DRIVER=s3 BLOB_S3_BUCKET=pos-docs \
    ./server -persistence=postgres

SEE ALSO:
  - config/config.go: Environment keys and defaults
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/pos-tracker/api"
	"github.com/warp/pos-tracker/attachments"
	"github.com/warp/pos-tracker/config"
	"github.com/warp/pos-tracker/seed"
	"github.com/warp/pos-tracker/store/postgres"
	"github.com/warp/pos-tracker/store/sqlite"
	"github.com/warp/pos-tracker/tracker"
	"github.com/warp/pos-tracker/tracker/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Flags
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.Persistence.SQLitePath, "SQLite database path")
	driver := flag.String("persistence", cfg.Persistence.Driver, "Persistence driver: sqlite, postgres or memory")
	flag.Parse()
	cfg.Port = *port
	cfg.Persistence.SQLitePath = *dbPath
	cfg.Persistence.Driver = *driver
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// backend bundles what a persistence driver provides.
type backend struct {
	persistence tracker.Persistence
	activity    tracker.ActivityLog
	health      api.Pinger
	closer      io.Closer
}

func openBackend(ctx context.Context, cfg config.PersistenceConfig) (backend, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return backend{}, err
		}
		return backend{persistence: db, activity: db, health: db, closer: db}, nil
	case config.DriverMemory:
		return backend{persistence: store.NewMemory(), activity: store.NewMemoryActivity()}, nil
	default:
		db, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return backend{}, err
		}
		return backend{persistence: db, activity: db, health: db, closer: db}, nil
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// Initialize persistence
	be, err := openBackend(ctx, cfg.Persistence)
	if err != nil {
		return fmt.Errorf("failed to initialize %s persistence: %w", cfg.Persistence.Driver, err)
	}
	if be.closer != nil {
		defer be.closer.Close()
	}

	// Initialize attachments
	blobs, err := attachments.Open(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("failed to initialize blob store: %w", err)
	}
	att := attachments.NewService(blobs, cfg.MaxUploadBytes, logger)

	// Load the collection, seeding an empty one
	records := tracker.NewRecordStore(be.persistence, cfg.Persistence.StorageKey, logger)
	if loaded := records.Load(ctx); len(loaded) == 0 {
		sample, err := seed.Load(cfg.SeedPath)
		if err != nil {
			logger.Warn("seed data unavailable, starting empty", slog.Any("error", err))
		} else {
			records.SeedIfEmpty(ctx, sample)
		}
	}

	// Initialize handler
	handler := api.NewHandler(records, att, be.activity, logger)
	handler.Health = be.health
	handler.MaxUploadBytes = cfg.MaxUploadBytes

	// Create router
	router := api.NewRouter(handler, cfg.CORSOrigins...)

	// Start the backup scheduler
	scheduler := api.NewBackupScheduler(records, att, be.activity, logger)
	scheduler.Interval = cfg.BackupInterval
	scheduler.Start()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.String("addr", server.Addr),
			slog.String("persistence", cfg.Persistence.Driver),
			slog.String("blobs", string(blobs.Driver())),
			slog.Int("records", records.Len()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		scheduler.Stop()
		return err
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("error", err))
	}
	scheduler.Stop()
	if err := records.SaveIfDirty(shutdownCtx); err != nil {
		logger.Warn("unsaved changes lost on shutdown", slog.Any("error", err))
	}

	logger.Info("server stopped")
	return nil
}
