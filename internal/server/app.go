// Package server initializes and runs the hazard platform backend. It opens
// the database, applies migrations, builds the services, and serves the HTTP
// API until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/coastwatch/hazardplatform/internal/logging"
	"github.com/coastwatch/hazardplatform/internal/server/config"
	"github.com/coastwatch/hazardplatform/internal/server/httpapi"
	"github.com/coastwatch/hazardplatform/internal/server/ratelimit"
	"github.com/coastwatch/hazardplatform/internal/server/repositories/repomanager"
	"github.com/coastwatch/hazardplatform/internal/server/services"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *http.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	accountService := services.NewAccountService(db, rm, cfg)
	uploadService := services.NewUploadService(cfg)

	authLimiter, generalLimiter := buildLimiters(cfg)

	srv := httpapi.NewServer(cfg, logger, db, accountService, uploadService, authLimiter, generalLimiter)

	return &App{
		config: cfg,
		logger: logger,
		db:     db,
		server: &http.Server{
			Addr:    cfg.EndpointAddrHTTP,
			Handler: srv.Handler(),
		},
	}, nil
}

// buildLimiters selects the rate limiter backend. With a redis address
// configured the budget is shared across instances; otherwise counters live
// in process memory.
func buildLimiters(cfg *config.Config) (ratelimit.Limiter, ratelimit.Limiter) {
	if cfg.RedisAddr != "" {
		pool := ratelimit.NewRedisPool(cfg.RedisAddr)
		return ratelimit.NewRedisLimiter(pool, "rl:auth", cfg.AuthRateLimit, cfg.RateLimitWindow),
			ratelimit.NewRedisLimiter(pool, "rl:general", cfg.GeneralRateLimit, cfg.RateLimitWindow)
	}
	return ratelimit.NewMemoryLimiter(cfg.AuthRateLimit, cfg.RateLimitWindow),
		ratelimit.NewMemoryLimiter(cfg.GeneralRateLimit, cfg.RateLimitWindow)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "Starting HTTP server", "address", app.config.EndpointAddrHTTP)
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "Shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
	defer cancel()

	if err := app.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close error", "error", err)
	}

	app.logger.Info(ctx, "Server stopped")
	return nil
}
