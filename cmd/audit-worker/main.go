// Command audit-worker consumes upload status events from NATS and records them
// in the Postgres upload audit table.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"uploader/internal/database/postgresql"
	"uploader/internal/envcfg"
	"uploader/internal/events"
	"uploader/internal/json"
	"uploader/internal/telemetry"
)

type config struct {
	Port         string `env:"AUDIT_WORKER_PORT" default:"8081" validate:"numeric"`
	DatabaseDSN  string `env:"DB_DSN" validate:"required"`
	NATSEndpoint string `env:"NATS_ENDPOINT" validate:"required"`
	LogLevel     string `env:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Events       events.EventConfig
}

func main() {
	_ = godotenv.Load()

	var cfg config
	if err := envcfg.Load(os.Getenv, &cfg); err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		slog.Error("Application terminated with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Starting audit worker", "subject", cfg.Events.UploadStatus)

	pool, err := postgresql.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to db: %w", err)
	}
	defer pool.Close()

	audit := postgresql.NewAuditLog(pool, logger)
	if err := audit.EnsureSchema(ctx); err != nil {
		return err
	}

	bus, err := events.NewNATSBus(cfg.NATSEndpoint, "uploader-audit-worker", logger)
	if err != nil {
		return fmt.Errorf("failed to connect to nats: %w", err)
	}

	reader := events.NewEventReader(bus, &cfg.Events, logger)
	if _, err := reader.SubscribeToUploadStatusEvents(recordEvent(audit)); err != nil {
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}

	logger.Info("Worker is running and listening for events...")

	mux := http.NewServeMux()
	mux.Handle("GET /health", healthHandler(pool))
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("Shutting down worker...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Health server shutdown error", "error", err)
	}

	// Finish in-flight inserts before the pool closes
	if err := bus.Drain(); err != nil {
		logger.Error("NATS drain error", "error", err)
	}

	logger.Info("Shutdown complete.")
	return nil
}

type recorder interface {
	Record(ctx context.Context, e postgresql.Entry) error
}

// recordEvent stores each event; a failed insert is returned so NATS redelivers it.
func recordEvent(audit recorder) func(ctx context.Context, evt events.UploadStatusEvent) error {
	return func(ctx context.Context, evt events.UploadStatusEvent) error {
		return audit.Record(ctx, entryFromEvent(evt))
	}
}

func entryFromEvent(evt events.UploadStatusEvent) postgresql.Entry {
	return postgresql.Entry{
		SessionID: evt.SessionID,
		UserID:    evt.UserID,
		FileName:  evt.File,
		Key:       evt.Key,
		Bucket:    evt.Bucket,
		Size:      evt.Size,
		Status:    evt.Status,
		Reason:    evt.Reason,
		CreatedAt: evt.At,
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

func healthHandler(db pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "Database unavailable", "error", err)
			json.Write(w, http.StatusServiceUnavailable, map[string]string{"status": "database unavailable"})
			return
		}
		json.Write(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
