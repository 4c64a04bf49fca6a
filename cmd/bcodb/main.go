package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/biocompute/bcodb/pkg/api"
	"github.com/biocompute/bcodb/pkg/auth"
	"github.com/biocompute/bcodb/pkg/bootstrap"
	"github.com/biocompute/bcodb/pkg/bulk"
	"github.com/biocompute/bcodb/pkg/config"
	"github.com/biocompute/bcodb/pkg/groups"
	"github.com/biocompute/bcodb/pkg/objects"
	"github.com/biocompute/bcodb/pkg/observability"
	"github.com/biocompute/bcodb/pkg/permissions"
	"github.com/biocompute/bcodb/pkg/prefixes"
	"github.com/biocompute/bcodb/pkg/schema"
	"github.com/biocompute/bcodb/pkg/storage"
)

// newSweeperLogger builds the logrus logger the cron sweeper reports through
func newSweeperLogger(level observability.LogLevel) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	switch level {
	case observability.DebugLevel:
		logger.SetLevel(logrus.DebugLevel)
	case observability.WarnLevel:
		logger.SetLevel(logrus.WarnLevel)
	case observability.ErrorLevel:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bcodb: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := storage.RunMigrations(ctx, db); err != nil {
		return err
	}

	var redisClient *redis.Client
	var cache *permissions.DecisionCache
	if cfg.Redis.Enabled {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid redis URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		cache = permissions.NewDecisionCache(redisClient, cfg.Redis.DecisionTTL)
	}

	tokenSvc := auth.NewTokenService(db)
	groupSvc := groups.NewService(db)
	prefixSvc := prefixes.NewService(db)
	grants := permissions.NewGrantStore(db, cache)
	gate := permissions.NewStoreGate(grants, prefixSvc)
	objStore := objects.NewStore(db)

	if err := bootstrap.Initialize(ctx, bootstrap.Services{
		Tokens:   tokenSvc,
		Groups:   groupSvc,
		Prefixes: prefixSvc,
		Grants:   grants,
	}, logger); err != nil {
		return err
	}

	schemaStore, err := schema.NewStore(cfg.Schemas.Workdir, schema.DefaultFolders(), nil)
	if err != nil {
		return err
	}
	if err := schemaStore.Load(); err != nil {
		return err
	}
	logger.WithField("documents", schemaStore.Count()).Info("schema tree loaded")

	metrics := observability.NewMetrics()
	if cfg.MetricsEnabled {
		metrics.MustRegister(prometheus.DefaultRegisterer)
	}
	metrics.SchemaDocumentsLoaded.Set(float64(schemaStore.Count()))

	server := api.NewServer(api.Deps{
		Processor: bulk.NewProcessor(gate, schema.NewValidator(schemaStore),
			objects.NewAllocator(prefixSvc), objStore, metrics, logger),
		Objects:  objStore,
		Schemas:  schemaStore,
		Prefixes: prefixSvc,
		Groups:   groupSvc,
		Grants:   grants,
		Gate:     gate,
		Tokens:   tokenSvc,
		Logger:   logger,
		Metrics:  metrics,
	})

	health := observability.NewHealthChecker(db, redisClient)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", health.Liveness)
	healthMux.HandleFunc("/readyz", health.Readiness)
	if cfg.MetricsEnabled {
		healthMux.Handle("/metrics", metrics.Handler())
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	var sweeper *prefixes.Sweeper
	if cfg.Sweeper.Enabled {
		sweeper = prefixes.NewSweeper(prefixSvc, grants, newSweeperLogger(cfg.LogLevel))
		if err := sweeper.Start(cfg.Sweeper.Schedule); err != nil {
			return fmt.Errorf("failed to start prefix sweeper: %w", err)
		}
	}

	var watcher *schema.Watcher
	if cfg.Schemas.Watch {
		watcher = schema.NewWatcher(schemaStore, logger)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("api server listening")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if sweeper != nil {
			sweeper.Stop()
		}
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return healthServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
