package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ferrite-ai/ferrite/db"
	"github.com/ferrite-ai/ferrite/internal/api"
	"github.com/ferrite-ai/ferrite/internal/chatlog"
	"github.com/ferrite-ai/ferrite/internal/config"
	"github.com/ferrite-ai/ferrite/internal/engine"
	"github.com/ferrite-ai/ferrite/internal/log"
	"github.com/ferrite-ai/ferrite/internal/observability"
	"github.com/ferrite-ai/ferrite/internal/session"
	"github.com/ferrite-ai/ferrite/internal/turn"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 10 * time.Minute // SSE turns stay open for the whole stream
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

// parseRateBurst reads FERRITE_RATE_BURST from the environment.
// Returns 0 (use default) if unset or invalid.
func parseRateBurst() int {
	v := os.Getenv("FERRITE_RATE_BURST")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// runServe initializes and starts the HTTP backend.
func runServe(logger log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	addr, err := parseServeAddr()
	if err != nil {
		return fmt.Errorf("parsing address: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting ferrite", "version", Version, "provider", cfg.Provider, "model", cfg.ModelName)

	traceShutdown, err := observability.Setup(ctx, cfg.Telemetry, logger)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		if err := traceShutdown(context.Background()); err != nil {
			logger.Warn("trace shutdown error", "error", err)
		}
	}()

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging postgres: %w", err)
	}

	store := session.New(session.NewQueries(pool), pool, logger)

	audit, err := chatlog.NewWriter(cfg.ChatLogDir)
	if err != nil {
		return fmt.Errorf("opening chat log: %w", err)
	}

	build := func(ctx context.Context) (engine.Engine, error) {
		return engine.NewGenkit(ctx, engine.GenkitConfig{
			Config:   cfg,
			Sessions: store,
			Logger:   logger,
		})
	}
	engines, err := engine.NewManager(ctx, build, cfg.UpstreamAddr, logger)
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}

	registry, err := turn.NewRegistry(turn.Config{
		Engines: engines,
		Audit:   audit,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("creating turn registry: %w", err)
	}

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:      logger,
		Registry:    registry,
		Engines:     engines,
		Sessions:    store,
		Pool:        pool,
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  cfg.TrustProxy,
		RateBurst:   parseRateBurst(),
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", addr,
		"api", "/api/v1/*",
		"health", "/health, /ready",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
