package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nulzo/prism-relay/internal/analytics"
	"github.com/nulzo/prism-relay/internal/buildinfo"
	"github.com/nulzo/prism-relay/internal/cli"
	"github.com/nulzo/prism-relay/internal/config"
	"github.com/nulzo/prism-relay/internal/gateway"
	"github.com/nulzo/prism-relay/internal/llm"
	"github.com/nulzo/prism-relay/internal/platform/logger"
	"github.com/nulzo/prism-relay/internal/platform/otel"
	"github.com/nulzo/prism-relay/internal/server"
	"github.com/nulzo/prism-relay/internal/server/middleware"
	"github.com/nulzo/prism-relay/internal/store/sqlite"
	"github.com/nulzo/prism-relay/internal/transport"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	if err := logger.Initialize(logCfg); err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := otel.InitTracer(cfg.Tracing.Enabled, cfg.Tracing.ServiceName, buildinfo.Version, log, os.Stdout)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}

	httpClient := &http.Client{}
	catalog := cfg.Catalog()
	if gateway.ReportCredentials(catalog, log.Named("credentials")) == 0 {
		log.Warn("Relay calls will fail until a provider key is configured")
	}

	llmClient := llm.NewClient(httpClient, log.Named("llm"))

	var observers []gateway.Option
	deps := server.Dependencies{
		Completer: llmClient,
		Catalog:   catalog,
		Policy:    cfg.Policy(),
		Version:   buildinfo.Version,
	}

	var ingestor analytics.Ingestor
	if cfg.Store.Enabled {
		repo, err := sqlite.NewSQLiteStorage(cfg.Store.DSN, log)
		if err != nil {
			return err
		}
		defer func() { _ = repo.Close() }()

		ingestor = analytics.NewIngestor(log.Named("analytics"), repo)
		// not tied to the signal context: calls finishing during shutdown still get recorded
		ingestor.Start(context.Background())

		recorder := analytics.NewRecorder(ingestor)
		deps.Recorder = recorder
		deps.Analytics = analytics.NewService(repo)
		observers = append(observers, gateway.WithObserver(recorder))
	}

	// with relay.base_url set, /v1/generate probes that relay host before calling directly
	relayClient := &http.Client{Timeout: cfg.Relay.Timeout}
	strategies := transport.Chain(cfg.Relay.BaseURL, cfg.Relay.Endpoints, relayClient, llmClient)
	resolver := transport.NewResolver(log.Named("transport"), strategies...)
	log.Info("Transport chain", zap.Strings("strategies", resolver.Names()))
	engineOpts := append([]gateway.Option{
		gateway.WithAttemptTimeout(cfg.Engine.AttemptTimeout),
		gateway.WithDefaultSystemRole(cfg.Engine.DefaultSystemRole),
	}, observers...)
	deps.Engine = gateway.NewEngine(log.Named("gateway"), resolver, catalog, deps.Policy, engineOpts...)

	if cfg.RateLimit.Enabled {
		deps.Limiter = newLimiter(ctx, cfg, log)
	}

	if cfg.Server.CheckUpdates && cfg.Server.ReleaseURL != "" {
		go checkForUpdates(ctx, httpClient, cfg.Server.ReleaseURL, log)
	}

	if cfg.Server.DebugAddr != "" {
		go serveDebug(cfg.Server.DebugAddr, log)
	}

	srv := server.New(cfg, log.Named("http"), deps)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Println(cli.Banner("prism-relay", buildinfo.Version, "localhost:"+cfg.Server.Port))
		log.Info("Server starting", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Server.Env))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if ingestor != nil {
		ingestor.Stop()
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error("Tracer shutdown failed", zap.Error(err))
	}

	log.Info("Server stopped")
	return nil
}

// newLimiter prefers the shared redis window and falls back to per-process buckets
// when redis is disabled or unreachable.
func newLimiter(ctx context.Context, cfg *config.Config, log *zap.Logger) middleware.Limiter {
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err := client.Ping(pingCtx).Err()
		if err == nil {
			log.Info("Rate limiting through redis", zap.String("addr", cfg.Redis.Addr))
			return middleware.NewRedisLimiter(client, cfg.RateLimit.Burst, time.Second)
		}
		log.Warn("Redis unreachable, rate limiting in memory", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		_ = client.Close()
	}
	return middleware.NewMemoryLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
}

func checkForUpdates(ctx context.Context, client *http.Client, releaseURL string, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	status, err := buildinfo.CheckForUpdates(ctx, client, releaseURL)
	if err != nil {
		log.Debug("Update check failed", zap.Error(err))
		return
	}
	if status.Outdated {
		log.Warn(cli.WarningSign()+" Running an outdated version",
			zap.String("current", status.Current),
			zap.String("latest", status.Latest),
		)
	}
}

// serveDebug exposes expvar (memstats, cmdline) for the load test monitor.
func serveDebug(addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/debug/vars", expvar.Handler())
	log.Info("Debug server listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("Debug server stopped", zap.Error(err))
	}
}
