package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"uploader/internal/auth"
	"uploader/internal/cache"
	"uploader/internal/catalog"
	"uploader/internal/database/postgresql"
	"uploader/internal/events"
	"uploader/internal/session"
	"uploader/internal/storage"
	"uploader/internal/telemetry"
	"uploader/internal/upload"
)

func main() {
	// A missing .env is fine outside local development
	_ = godotenv.Load()

	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Use JSON traced logging
	logger := telemetry.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx := context.Background()
	app := &application{config: cfg, logger: logger}

	if cfg.OtelCollectorURL != "" {
		slog.Info("Exporting traces", "collector", cfg.OtelCollectorURL)
		shutdown, err := telemetry.InitTracer(ctx, "uploader", cfg.OtelCollectorURL)
		if err != nil {
			fail("Failed to initialize tracer", err)
		}
		app.shutdownTracer = shutdown
	}

	app.catalog = catalog.Default()
	if cfg.CatalogPath != "" {
		slog.Info("Loading catalog", "path", cfg.CatalogPath)
		if app.catalog, err = catalog.LoadFile(cfg.CatalogPath); err != nil {
			fail("Failed to load catalog", err)
		}
	}

	if app.storage, err = newStorage(ctx, cfg.Storage); err != nil {
		fail("Failed to initialize object storage", err)
	}

	if cfg.Redis.Addr != "" {
		slog.Info("Connecting to Redis cache", "addr", cfg.Redis.Addr)
		app.cache, err = cache.NewRedisClient(ctx, cache.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
		if err != nil {
			fail("Failed to connect to Redis", err)
		}
		app.sessions = session.NewRedisStore(app.cache, cfg.sessionTTL())
	} else {
		slog.Warn("REDIS_ADDR not set, sessions are kept in memory")
		app.sessions = session.NewMemoryStore(cfg.sessionTTL())
	}

	if cfg.DatabaseDSN != "" {
		slog.Info("Connecting to database")
		if app.conn, err = postgresql.NewPool(ctx, cfg.DatabaseDSN); err != nil {
			fail("Failed to connect to database", err)
		}
		app.audit = postgresql.NewAuditLog(app.conn, logger)
		if err := app.audit.EnsureSchema(ctx); err != nil {
			fail("Failed to prepare audit table", err)
		}
	}

	if cfg.NATSEndpoint != "" {
		slog.Info("Connecting to event bus", "endpoint", cfg.NATSEndpoint)
		bus, err := events.NewNATSBus(cfg.NATSEndpoint, "uploader-gateway", logger)
		if err != nil {
			fail("Failed to initialize event bus", err)
		}
		app.eventBus = bus
	}

	if cfg.AuditViaEvents && app.eventBus == nil {
		slog.Warn("AUDIT_VIA_EVENTS is set without NATS_ENDPOINT, uploads will not be audited")
	}

	if cfg.Auth.URL != "" {
		slog.Info("Connecting to authorization service", "url", cfg.Auth.URL)
		if app.authenticator, err = auth.NewAuthenticator(ctx, cfg.Auth.URL, cfg.Auth.ClientID); err != nil {
			fail("Failed to initialize authenticator", err)
		}
	}

	policy, err := upload.ParseResetPolicy(cfg.Upload.ResetPolicy)
	if err != nil {
		fail("Invalid reset policy", err)
	}
	app.orchestrator = upload.NewOrchestrator(app.storage, storage.Bucket(cfg.Storage.Bucket), nil, policy, logger)

	if err := app.run(app.mount()); err != nil {
		fail("Failed to start server", err)
	}
}

func newStorage(ctx context.Context, cfg storageConfig) (storage.Provider, error) {
	switch cfg.Driver {
	case "s3":
		slog.Info("Connecting to S3", "region", cfg.Region, "endpoint", cfg.Endpoint)
		return storage.NewS3Provider(ctx, storage.S3Config{
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			ForcePathStyle:  cfg.ForcePathStyle,
		})
	case "memory":
		slog.Warn("Using in-memory object storage, uploads are not persisted")
		return storage.NewMemoryProvider(), nil
	default:
		slog.Info("Connecting to object storage", "endpoint", cfg.Endpoint)
		return storage.NewMinioProvider(cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey, cfg.Region, cfg.UseSSL)
	}
}

func fail(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
