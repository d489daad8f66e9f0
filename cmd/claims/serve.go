package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/claimflow/claims/internal/adapters/his"
	"github.com/claimflow/claims/internal/audit"
	"github.com/claimflow/claims/internal/claim/domain"
	"github.com/claimflow/claims/internal/claim/infrastructure"
	"github.com/claimflow/claims/internal/claim/reconcile"
	"github.com/claimflow/claims/internal/claim/service"
	"github.com/claimflow/claims/internal/shared/auth"
	"github.com/claimflow/claims/internal/shared/config"
	"github.com/claimflow/claims/internal/shared/database"
	"github.com/claimflow/claims/internal/shared/events"
	"github.com/claimflow/claims/internal/shared/metrics"
	secmiddleware "github.com/claimflow/claims/internal/shared/middleware"
)

// App holds all application dependencies
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	DB      *database.DB
	Bus     events.EventBus
	HIS     *his.SQLServerDirectory
	History reconcile.HistoryStore
	Claims  *service.Service

	transport string
	closers   []func()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the audit consumer, deductible release and the ops API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

// newApp connects every backing service. Postgres, KurrentDB and the HIS are
// optional; the in-memory stand-ins keep a single instance working without them.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Warn().Err(err).Msg("database not available, running with in-memory audit trail and deductible ledger")
	} else {
		app.DB = db
		app.closers = append(app.closers, db.Close)

		if err := database.Migrate(ctx, db.Pool, logger); err != nil {
			app.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}

	bus, transport, err := events.NewEventBus(ctx, cfg.KurrentDB, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("KurrentDB not available, running with in-process event bus")
		bus, transport = events.NewMemoryBus(logger), "memory"
	}
	app.Bus, app.transport = bus, transport
	app.closers = append(app.closers, bus.Close)

	var hospitals domain.HospitalDirectory
	if cfg.HIS.Enabled {
		directory, err := his.Open(ctx, cfg.HIS)
		if err != nil {
			logger.Warn().Err(err).Msg("HIS not available, hospital grades taken as recorded")
		} else {
			app.HIS = directory
			hospitals = directory
			app.closers = append(app.closers, func() { directory.Close() })
		}
	}

	if app.DB != nil {
		app.History = infrastructure.NewPostgresHistoryStore(app.DB.Pool)
	} else {
		app.History = reconcile.NewMemoryHistoryStore()
	}
	reconciler := reconcile.NewReconciler(app.History, logger)
	app.Claims = service.New(bus, hospitals, reconciler, cfg.Claims, logger)

	return app, nil
}

// Close releases connections in reverse order of opening
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func serve(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	var trail domain.EventRepository = audit.NewMemoryRepository()
	if app.DB != nil {
		trail = audit.NewRepository(app.DB.Pool)
	}
	if err := audit.NewSubscriber(trail, app.Bus, logger).Start(ctx); err != nil {
		return fmt.Errorf("failed to start audit subscriber: %w", err)
	}
	if err := app.Claims.WatchReleases(ctx); err != nil {
		return fmt.Errorf("failed to start deductible release: %w", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router(app, trail),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("env", cfg.Server.Env).
			Int("port", cfg.Server.Port).
			Str("event_bus", app.transport).
			Bool("database", app.DB != nil).
			Bool("his", app.HIS != nil).
			Msg("claims service listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func router(app *App, trail domain.EventRepository) http.Handler {
	cfg := app.Config
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(secmiddleware.RequestLogger(app.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(metrics.Middleware)

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	limiter := secmiddleware.NewIPRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	r.Route("/api/v1/claims", func(r chi.Router) {
		r.Use(limiter.Middleware)
		if !cfg.IsDev() {
			r.Use(auth.Middleware(cfg.Auth))
		}
		r.Mount("/", audit.NewHandler(trail, cfg.IsDev()).Routes())
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if app.DB != nil {
			checks["database"] = readiness(app.DB.Health(r.Context()))
		} else {
			checks["database"] = "not configured"
		}

		checks["event_bus"] = readiness(app.Bus.Health())

		if app.HIS != nil {
			checks["his"] = readiness(app.HIS.Health(r.Context()))
		} else {
			checks["his"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}

func readiness(err error) string {
	if err != nil {
		return "not ready: " + err.Error()
	}
	return "ready"
}
