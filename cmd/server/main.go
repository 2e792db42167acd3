package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neverl0se/forgeModsConflictMediator/internal/api"
	"github.com/neverl0se/forgeModsConflictMediator/internal/buildconfig"
	"github.com/neverl0se/forgeModsConflictMediator/internal/config"
	"github.com/neverl0se/forgeModsConflictMediator/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}

	logger := newLogger(config.LogLevel())
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if dbURL := config.DatabaseURL(); dbURL != "" {
		var err error
		pool, err = pgxpool.New(ctx, dbURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			logger.Fatal("failed to ping database", zap.Error(err))
		}
		applied, err := store.Migrate(ctx, pool, config.MigrationsPath())
		if err != nil {
			logger.Fatal("failed to apply migrations", zap.Error(err))
		}
		logger.Info("connected to database", zap.Strings("migrations", applied))
	} else {
		logger.Info("DATABASE_URL not set, mediation journal kept in memory")
	}

	app := api.NewApp(pool, logger)
	app.Reporter.Start()

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", zap.String("addr", addr), zap.String("version", buildconfig.Version()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		app.Limiter.Run(gctx, 10*time.Minute)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		// Waiting sessions end as skipped; queued reports drain before exit.
		app.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
