package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentebl/multibanco-agent-go/internal/config"
	"github.com/agentebl/multibanco-agent-go/internal/handler"
	"github.com/agentebl/multibanco-agent-go/internal/infra/cache"
	"github.com/agentebl/multibanco-agent-go/internal/infra/observability"
	"github.com/agentebl/multibanco-agent-go/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "listen port (overrides PORT)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("mock_mode", cfg.MockMode),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Bool("dev_auth", cfg.DevAuth),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(ctx, "multibanco-agent", cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Storage ---
	store, storeProbe, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("storage backend unavailable", zap.Error(err))
		return err
	}
	defer closeStore()
	probes := []handler.Probe{storeProbe}

	// --- Identity cache ---
	var rdb redis.UniversalClient
	if cfg.RedisAddr != "" && !cfg.MockMode {
		rdb = cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
		defer rdb.Close()
		probes = append(probes, handler.Probe{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}

	// --- Services ---
	resolver, err := buildResolver(cfg, metrics, logger, rdb)
	if err != nil {
		return err
	}
	receipts := service.NewReceiptService(store, resolver, metrics, logger, cfg.BaseCurrency)

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Receipts:   receipts,
		Identities: resolver,
		Metrics:    metrics,
		Mode:       resolver.Mode(),
		Auth: handler.AuthConfig{
			Secret:      cfg.JWTSecret,
			DevAuth:     cfg.DevAuth,
			DevOperator: cfg.DevOperator,
		},
		CORSOrigins: cfg.CORSOrigins,
		Probes:      probes,
	}, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// --- Graceful shutdown ---
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", zap.Error(err))
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
		return err
	}

	logger.Info("server stopped")
	return nil
}
