// Package main is the entry point for the formsmith server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/formsmith/formsmith/internal/builder"
	"github.com/formsmith/formsmith/internal/catalog"
	"github.com/formsmith/formsmith/internal/config"
	"github.com/formsmith/formsmith/internal/export"
	"github.com/formsmith/formsmith/internal/observability"
	"github.com/formsmith/formsmith/internal/options"
	"github.com/formsmith/formsmith/internal/store"
	"github.com/formsmith/formsmith/internal/template"
	"github.com/formsmith/formsmith/internal/transport"
	"github.com/formsmith/formsmith/internal/validation"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "formsmith", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	st, storeCloser, err := buildStore(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("store initialization failed", zap.Error(err))
		return 1
	}
	if storeCloser != nil {
		defer storeCloser()
	}

	// Seed the template catalog from YAML packs on disk.
	seeded := !cfg.Catalog.SeedOnStart
	if cfg.Catalog.SeedOnStart {
		packs, err := catalog.NewLoader().LoadAll(cfg.Catalog.Directories)
		if err != nil {
			logger.Error("catalog load failed", zap.Error(err))
			metrics.RecordCatalogSeed("failure")
			return 1
		}
		if err := catalog.NewSeeder(st, logger).Seed(ctx, packs); err != nil {
			logger.Error("catalog seed failed", zap.Error(err))
			metrics.RecordCatalogSeed("failure")
			return 1
		}
		metrics.RecordCatalogSeed("success")
		templateCount := 0
		for _, p := range packs {
			templateCount += len(p.Templates)
		}
		metrics.SetTemplatesLoaded(float64(templateCount))
		logger.Info("catalog seeded",
			zap.Int("packs", len(packs)),
			zap.Int("templates", templateCount),
		)
		seeded = true
	}

	builderSvc := builder.NewService(st, logger)
	templateSvc := template.NewService(st, logger)
	engine := validation.NewEngine(logger)
	exporter := export.NewExporter()

	provider := options.NewProvider(options.ProviderConfig{
		RequestTimeout:   cfg.Options.RequestTimeout,
		CacheTTL:         cfg.Options.Cache.TTL,
		MaxCacheEntries:  cfg.Options.Cache.MaxEntries,
		BreakerThreshold: cfg.Options.CircuitBreaker.FailureThreshold,
		BreakerCooldown:  cfg.Options.CircuitBreaker.Cooldown,
	}, logger)
	tester := options.NewTester(cfg.Options.TestTimeout, logger)

	jwks := transport.NewJWKSClient(cfg.Identity.JWKSURL, cfg.Identity.JWKSCacheTTL)

	readiness := observability.ReadinessChecks{
		CatalogSeeded: func() bool { return seeded },
	}
	if hc, ok := st.(observability.HealthChecker); ok {
		readiness.Store = hc
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:       cfg,
		Authenticate: transport.JWTAuthenticator(cfg.Identity, jwks),
		Builder:      builderSvc,
		Templates:    templateSvc,
		Options:      provider,
		Tester:       tester,
		Validator:    engine,
		Exporter:     exporter,
		Metrics:      metrics,
		Ready:        readiness,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("store", cfg.Store.Driver),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// buildStore creates the form store based on config. The closer is nil for
// the in-memory driver.
func buildStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (store.Store, func(), error) {
	switch cfg.Driver {
	case "memory", "":
		logger.Info("using in-memory form store")
		return store.NewMemoryStore(), nil, nil
	case "postgres":
		dsn := os.Getenv(cfg.DSNEnv)
		if dsn == "" {
			return nil, nil, fmt.Errorf("form store: %s environment variable not set", cfg.DSNEnv)
		}

		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("form store: parse DSN: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("form store: connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("form store: ping: %w", err)
		}

		pg := store.NewPgStore(pool)
		return pg, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver: %q", cfg.Driver)
	}
}
