// Package app wires together every kubarr subsystem: config, database,
// Redis, Kubernetes connectivity, the auth gate, the bootstrap sequence,
// the app reverse proxy, Helm-driven lifecycle management and network
// telemetry, then serves them over a single HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kubarr/kubarr/internal/auth"
	"github.com/kubarr/kubarr/internal/config"
	"github.com/kubarr/kubarr/internal/db"
	"github.com/kubarr/kubarr/internal/httpserver"
	"github.com/kubarr/kubarr/internal/platform"
	"github.com/kubarr/kubarr/internal/telemetry"
	"github.com/kubarr/kubarr/pkg/bootstrap"
	"github.com/kubarr/kubarr/pkg/helm"
	"github.com/kubarr/kubarr/pkg/nettelemetry"
	"github.com/kubarr/kubarr/pkg/proxy"
)

// signingKeySetting is the system_settings row holding the RSA private key
// sessions are signed with. Generated once on first boot and reused across
// restarts so existing sessions keep validating.
const signingKeySetting = "session_signing_key"

// Run reads config, connects to infrastructure, runs the bootstrap
// sequence and network telemetry loop in the background, and serves the
// HTTP API until ctx is canceled.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting kubarr", "listen", cfg.ListenAddr())

	pool, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	queries := db.New(pool)

	signingKey, err := loadOrGenerateSigningKey(ctx, queries)
	if err != nil {
		return fmt.Errorf("loading session signing key: %w", err)
	}
	sessionMgr, err := auth.NewSessionManager(signingKey)
	if err != nil {
		return fmt.Errorf("creating session manager: %w", err)
	}

	k8s := platform.NewK8sConnector(cfg.KubeconfigPath)

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)
	metricsReg.MustRegister(httpserver.MetricsCollector())

	gate := auth.NewGate(sessionMgr, queries, logger)
	rateLimiter := auth.NewRateLimiter(rdb, cfg.LoginMaxAttempts, 15*time.Minute)
	loginHandler := auth.NewLoginHandler(sessionMgr, queries, logger, rateLimiter)

	helmDriver := helm.NewDriver(cfg.ChartsDir, k8s.Get)
	helmHandler := helm.NewHandler(helmDriver, logger)

	resolver := proxy.NewResolver(k8s.Get)
	proxyHandler := proxy.NewHandler(resolver, logger)

	orchestrator := bootstrap.NewOrchestrator(queries, logger, helmDriver, bootstrap.DefaultComponents())
	go func() {
		if err := orchestrator.Start(ctx); err != nil {
			logger.Error("bootstrap: sequence failed to start", "error", err)
		}
	}()
	bootstrapHandler := bootstrap.NewHandler(orchestrator, logger)

	sampler := nettelemetry.NewSampler(k8s.Get)
	discoverer := nettelemetry.NewDiscoverer(k8s.Get)
	broadcaster := nettelemetry.NewBroadcaster(sampler, discoverer, logger)
	go broadcaster.Run(ctx)
	nettelemetryHandler := nettelemetry.NewHandler(broadcaster, logger)

	srv := httpserver.NewServer(cfg, logger, pool, rdb, metricsReg, gate)

	srv.Router.Mount("/bootstrap", bootstrapHandler.Routes())

	srv.APIRouter.Route("/auth", func(r chi.Router) {
		r.Post("/login", loginHandler.HandleLogin)
		r.Get("/config", loginHandler.HandleAuthConfig)
		r.Post("/logout", loginHandler.HandleLogout)
		r.With(auth.RequireAuth).Get("/me", loginHandler.HandleMe)
	})

	srv.APIRouter.Mount("/apps", helmHandler.Routes())

	srv.APIRouter.Route("/proxy/{app_name}", func(r chi.Router) {
		r.Use(auth.RequireAppAccess(proxy.AppName))
		r.Handle("/*", proxyHandler)
	})

	srv.APIRouter.Route("/network", func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Use(auth.RequirePermission(auth.PermMonitoringView))
		r.Mount("/", nettelemetryHandler.Routes())
	})

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// loadOrGenerateSigningKey returns the persisted RSA private key, or
// generates and persists a fresh one on first boot. SettingSetIfAbsent is
// used instead of a plain insert so two replicas racing to boot the first
// time still converge on a single key.
func loadOrGenerateSigningKey(ctx context.Context, queries *db.Queries) (string, error) {
	key, err := queries.SettingGet(ctx, signingKeySetting)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return "", err
	}

	fresh, err := auth.GenerateSigningKeyPEM()
	if err != nil {
		return "", fmt.Errorf("generating signing key: %w", err)
	}
	return queries.SettingSetIfAbsent(ctx, signingKeySetting, fresh)
}
