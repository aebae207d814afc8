package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"uploader/internal/auth"
	"uploader/internal/cache"
	"uploader/internal/catalog"
	"uploader/internal/database/postgresql"
	"uploader/internal/errors"
	"uploader/internal/events"
	catalogh "uploader/internal/handlers/catalog"
	"uploader/internal/handlers/files"
	"uploader/internal/handlers/sessions"
	"uploader/internal/idempotency"
	"uploader/internal/json"
	"uploader/internal/session"
	"uploader/internal/storage"
	"uploader/internal/upload"
)

// Submits block until every file has settled, so handlers get more room than
// a typical API call.
const requestTimeout = 5 * time.Minute

const megabyte = 1024 * 1024

type application struct {
	config       config
	catalog      *catalog.Catalog
	storage      storage.Provider
	sessions     session.Store
	orchestrator *upload.Orchestrator
	logger       *slog.Logger

	// Optional backends, nil when not configured
	cache          *cache.RedisClient
	conn           *pgxpool.Pool
	audit          *postgresql.AuditLog
	eventBus       events.Bus
	authenticator  *auth.Authenticator
	shutdownTracer func(context.Context) error
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{app.config.Frontend},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", idempotency.HeaderKey},
		ExposedHeaders:   []string{"Link", "X-Idempotency-Hit"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))
	slog.Info("Allowed origins", "origin", app.config.Frontend)

	r.Use(middleware.Timeout(requestTimeout))

	var notifiers []sessions.NotifierFactory
	var history sessions.HistoryReader
	if app.eventBus != nil {
		notifiers = append(notifiers, events.NewEventHandler(app.eventBus, &app.config.Events, app.logger))
	}
	if app.audit != nil {
		if !app.config.AuditViaEvents {
			notifiers = append(notifiers, app.audit)
		}
		history = app.audit
	}

	sessionsService := sessions.NewSessionsService(app.sessions, app.catalog, app.orchestrator, history, app.logger, notifiers...)
	sessionsHandler := sessions.NewSessionsHandler(sessionsService)

	filesService := files.NewFileService(app.sessions, files.FileConstraint{
		MaxSize:          app.config.Upload.MaxFileSizeMB * megabyte,
		MaxRequestSize:   app.config.Upload.MaxRequestSizeMB * megabyte,
		MaxSessionSize:   app.config.Upload.MaxSessionSizeMB * megabyte,
		AllowedMimeTypes: app.config.Upload.AllowedMimeTypes,
	}, app.logger)
	filesHandler := files.NewFileHandler(filesService)

	catalogHandler := catalogh.NewCatalogHandler(app.catalog)

	r.Group(func(r chi.Router) {
		// Public routes
		r.Use(middleware.Recoverer)

		r.Get("/health", app.health)
		r.Get("/catalog", catalogHandler.GetCatalog)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Recoverer)

		if app.authenticator != nil {
			r.Use(app.authenticator.Middleware)
			if app.config.Auth.RequiredRole != "" {
				r.Use(auth.RequireRole(app.config.Auth.RequiredRole))
			}
		}

		r.Post("/sessions", sessionsHandler.CreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", sessionsHandler.GetSession)
			r.Delete("/", sessionsHandler.DeleteSession)

			r.Put("/region", sessionsHandler.SelectRegion)
			r.Delete("/region", sessionsHandler.SelectRegion)
			r.Put("/business", sessionsHandler.SelectBusiness)
			r.Delete("/business", sessionsHandler.SelectBusiness)
			r.Put("/branch", sessionsHandler.SelectBranch)
			r.Delete("/branch", sessionsHandler.SelectBranch)

			r.Post("/files", filesHandler.AddFiles)
			r.Delete("/files/{index}", filesHandler.RemoveFile)

			r.Post("/reset", sessionsHandler.Reset)
			r.Get("/uploads", sessionsHandler.History)

			r.Group(func(r chi.Router) {
				if app.cache != nil {
					r.Use(idempotency.Idempotency(idempotency.NewStore(app.cache)))
				}
				r.Post("/submit", sessionsHandler.Submit)
			})
		})
	})

	return r
}

func (app *application) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := app.storage.Ping(ctx, storage.Bucket(app.config.Storage.Bucket)); err != nil {
		errors.RespondError(w, r, errors.New(errors.ErrUnavailable, "Object storage unreachable", err))
		return
	}
	if app.cache != nil {
		if err := app.cache.Ping(ctx); err != nil {
			errors.RespondError(w, r, errors.New(errors.ErrUnavailable, "Session cache unreachable", err))
			return
		}
	}
	json.Write(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (app *application) run(h http.Handler) error {
	svr := &http.Server{
		Addr:         app.config.addr(),
		Handler:      h,
		WriteTimeout: requestTimeout + 30*time.Second,
		ReadTimeout:  time.Minute * 2,
		IdleTimeout:  time.Minute * 1,
	}

	serveErr := make(chan error, 1)
	slog.Info("Starting server on " + app.config.addr())
	go func() {
		if err := svr.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	// Wait for Interrupt Signal (Ctrl+C or Docker Stop)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return err
	case <-quit:
	}

	slog.Info("Shutting down server...")

	// Let in-flight submits settle before closing their backends
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := svr.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	app.close(ctx)

	slog.Info("Server exited properly")
	return nil
}

// close releases every optional backend, logging rather than stopping on failure.
func (app *application) close(ctx context.Context) {
	// Drain allows in-flight messages to finish processing
	if app.eventBus != nil {
		if err := app.eventBus.Drain(); err != nil {
			slog.Error("NATS drain failed", "error", err)
		}
	}
	if app.conn != nil {
		app.conn.Close()
	}
	if app.cache != nil {
		if err := app.cache.Close(); err != nil {
			slog.Error("Redis close failed", "error", err)
		}
	}
	if app.shutdownTracer != nil {
		if err := app.shutdownTracer(ctx); err != nil {
			slog.Error("Tracer shutdown failed", "error", err)
		}
	}
}
