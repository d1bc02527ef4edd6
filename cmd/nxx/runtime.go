package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nxx-sync/nxx/internal/config"
	dbRedis "github.com/nxx-sync/nxx/internal/db/redis"
	logpkg "github.com/nxx-sync/nxx/internal/logger"
	"github.com/nxx-sync/nxx/internal/metrics"
	applicationrepo "github.com/nxx-sync/nxx/internal/repository/application"
	"github.com/nxx-sync/nxx/internal/transport/queue"
	schemauc "github.com/nxx-sync/nxx/internal/usecase/schema"
	"github.com/nxx-sync/nxx/internal/version"
)

// runtime holds what every process role shares: config, logger, store and queue.
type runtime struct {
	env    string
	cfg    config.Config
	logger *zap.Logger
	store  *dbRedis.Store
	queue  *queue.Queue
}

// bootstrap loads config by ENV, builds the component logger and connects the store.
func bootstrap(ctx context.Context, component string) (*runtime, error) {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, component, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	logger.Info("Starting nxx",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("create database store: %w", err)
	}

	timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, timeout); err != nil {
		store.Close()
		_ = logger.Sync()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database")

	q := queue.New(store, logger).
		WithBlock(cfg.Queue.Block()).
		WithRetryDelay(cfg.Queue.RetryDelay()).
		WithHeartbeat(cfg.Queue.Heartbeat())

	return &runtime{env: env, cfg: cfg, logger: logger, store: store, queue: q}, nil
}

func (rt *runtime) close() {
	rt.store.Close()
	_ = rt.logger.Sync()
}

// schemaRegistry builds the cached application schema registry.
func (rt *runtime) schemaRegistry() *schemauc.Registry {
	return schemauc.New(applicationrepo.New(rt.store), rt.cfg.Schemas.CacheTTL()).
		WithCacheMetrics(metrics.SchemaCacheTotal)
}

// serveHTTP runs srv until ctx is cancelled, then shuts it down gracefully.
func serveHTTP(ctx context.Context, logger *zap.Logger, srv *http.Server, shutdown time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdown)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server stopped gracefully")
	return nil
}
