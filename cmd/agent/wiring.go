package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/agentebl/multibanco-agent-go/internal/config"
	"github.com/agentebl/multibanco-agent-go/internal/domain"
	"github.com/agentebl/multibanco-agent-go/internal/handler"
	"github.com/agentebl/multibanco-agent-go/internal/infra/cache"
	"github.com/agentebl/multibanco-agent-go/internal/infra/client"
	"github.com/agentebl/multibanco-agent-go/internal/infra/memstore"
	"github.com/agentebl/multibanco-agent-go/internal/infra/observability"
	"github.com/agentebl/multibanco-agent-go/internal/infra/postgres"
	"github.com/agentebl/multibanco-agent-go/internal/infra/resilience"
	"github.com/agentebl/multibanco-agent-go/internal/infra/supabase"
	"github.com/agentebl/multibanco-agent-go/internal/port"
	"github.com/agentebl/multibanco-agent-go/internal/service"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// buildResolver returns the mock or live identity resolver. rdb, when set,
// backs the identity cache; otherwise an in-memory cache is used.
func buildResolver(cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger, rdb redis.UniversalClient) (*service.IdentityResolver, error) {
	if cfg.MockMode {
		book, err := service.LoadMockBook(cfg.MockBookPath)
		if err != nil {
			return nil, err
		}
		logger.Info("identity resolver in mock mode",
			zap.Int("people", len(book.People)),
			zap.Int("businesses", len(book.Businesses)),
		)
		return service.NewMockIdentityResolver(book, metrics, logger), nil
	}

	// Without a token lookups fail with a configuration error; receipts
	// still work.
	var provider port.IdentityProvider
	if cfg.LookupToken == "" {
		logger.Warn("DECOLECTA_TOKEN not set, identity lookups will fail")
	} else {
		provider = client.NewDecolectaClient(&http.Client{Timeout: cfg.LookupTimeout}, client.DecolectaConfig{
			DNIURL:  cfg.DNILookupURL,
			RUCURL:  cfg.RUCLookupURL,
			Token:   cfg.LookupToken,
			Timeout: cfg.LookupTimeout,
		}, nil)
	}

	var opts []service.ResolverOption
	switch {
	case cfg.IdentityCacheTTL <= 0:
	case rdb != nil:
		opts = append(opts, service.WithIdentityCache(
			cache.NewRedis[domain.Identity](rdb, "agent:dni", cfg.IdentityCacheTTL, logger),
			cache.NewRedis[domain.BusinessIdentity](rdb, "agent:ruc", cfg.IdentityCacheTTL, logger),
		))
	default:
		opts = append(opts, service.WithIdentityCache(
			cache.New[domain.Identity](cfg.IdentityCacheTTL),
			cache.New[domain.BusinessIdentity](cfg.IdentityCacheTTL),
		))
	}

	logger.Info("identity resolver in live mode",
		zap.String("dni_url", cfg.DNILookupURL),
		zap.Duration("timeout", cfg.LookupTimeout),
		zap.Duration("cache_ttl", cfg.IdentityCacheTTL),
	)
	return service.NewLiveIdentityResolver(provider, metrics, logger, opts...), nil
}

// buildStore opens the configured storage backend. The returned func
// releases its resources.
func buildStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (port.Store, handler.Probe, func(), error) {
	switch cfg.StoreBackend {
	case "", "memory":
		s := memstore.New(cfg.ReceiptPrefix, cfg.OperatorSeed())
		logger.Warn("using in-memory store, receipts are lost on restart")
		return s, handler.Probe{Name: "memory", Check: s.Ping}, func() {}, nil

	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, handler.Probe{}, nil, &domain.ErrConfiguration{Setting: "DATABASE_URL", Message: "required for STORE_BACKEND=postgres"}
		}
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return nil, handler.Probe{}, nil, err
		}
		s := postgres.NewStore(pool, cfg.ReceiptPrefix, cfg.MaxConcurrency)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, handler.Probe{}, nil, err
		}
		if err := s.SeedOperators(ctx, cfg.OperatorSeed()); err != nil {
			pool.Close()
			return nil, handler.Probe{}, nil, err
		}
		logger.Info("using Postgres as receipt store", zap.Int("max_conns", cfg.DBMaxConns))
		return s, handler.Probe{Name: "postgres", Check: s.Ping}, pool.Close, nil

	case "supabase":
		if cfg.SupabaseURL == "" {
			return nil, handler.Probe{}, nil, &domain.ErrConfiguration{Setting: "SUPABASE_URL", Message: "required for STORE_BACKEND=supabase"}
		}
		c := supabase.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			nil,
			resilience.Config{
				MaxRetries:     cfg.MaxRetries,
				InitialBackoff: cfg.InitialBackoff,
				MaxConcurrency: cfg.MaxConcurrency,
			},
			logger,
		)
		s := supabase.NewStore(c, cfg.ReceiptPrefix)
		logger.Info("using Supabase as receipt store", zap.String("supabase_url", cfg.SupabaseURL))
		return s, handler.Probe{Name: "supabase", Check: s.Ping}, func() {}, nil

	default:
		return nil, handler.Probe{}, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}
