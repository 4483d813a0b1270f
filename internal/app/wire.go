// Package app wires the portfolio core to its infrastructure. Both binaries build through Build.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/app/provider"
	"portfolio_aggregator/internal/app/service"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/cache/memory"
	rediscache "portfolio_aggregator/internal/infrastructure/cache/redis"
	"portfolio_aggregator/internal/infrastructure/configloader"
	"portfolio_aggregator/internal/infrastructure/httpclient"
	"portfolio_aggregator/internal/infrastructure/metrics"
	networkdefinition "portfolio_aggregator/internal/infrastructure/network/definition"
	"portfolio_aggregator/internal/infrastructure/walletloader"
	"portfolio_aggregator/internal/pkg/logger"
	"portfolio_aggregator/internal/pkg/ratelimit"
	"portfolio_aggregator/internal/pkg/retry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Application holds the wired components.
type Application struct {
	Config    *configloader.Config
	Portfolio *service.PortfolioServiceImpl
	Networks  *networkdefinition.NetworkDefinitionProvider
	Wallets   port.WalletProvider
	Budget    *ratelimit.Limiter
	// Health reports the cache backend's reachability; nil for the in-memory backend.
	Health func(ctx context.Context) error

	registry *prometheus.Registry
	closers  []func() error
}

// Build constructs every component from cfg. Call Close when done.
func Build(ctx context.Context, cfg *configloader.Config, zl *zap.Logger) (*Application, error) {
	log := logger.NewZapAdapter(zl)

	a := &Application{
		Config:   cfg,
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(a.registry)

	networks, err := networkdefinition.NewNetworkDefinitionProvider(log, cfg.Networks)
	if err != nil {
		return nil, fmt.Errorf("network definitions: %w", err)
	}
	a.Networks = networks

	backend, err := a.cacheBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	policy, err := ratelimit.ParsePolicy(cfg.RateLimit.Policy)
	if err != nil {
		return nil, err
	}
	a.Budget = ratelimit.New(ratelimit.Config{
		PerMinute: cfg.RateLimit.PerMinute,
		PerDay:    cfg.RateLimit.PerDay,
		Policy:    policy,
	}, log, ratelimit.WithMetrics(recorder))

	backoff, err := retry.ParseBackoff(cfg.Retry.Backoff)
	if err != nil {
		return nil, err
	}
	retryCfg := retry.Config{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Backoff:     backoff,
		BaseDelay:   time.Duration(cfg.Retry.BaseDelayMillis) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Retry.MaxDelayMillis) * time.Millisecond,
	}

	positions := httpclient.NewPositionsClient(httpclient.PositionsClientConfig{
		BaseURL:  cfg.PrimaryProvider.BaseURL,
		APIKey:   cfg.PrimaryProvider.APIKey,
		Timeout:  time.Duration(cfg.PrimaryProvider.RequestTimeoutMillis) * time.Millisecond,
		PageSize: cfg.PrimaryProvider.PageSize,
		MaxPages: cfg.PrimaryProvider.MaxPages,
		Currency: cfg.PrimaryProvider.Currency,
	}, networks, a.Budget, retry.New(retryCfg, "positions", log), recorder, zl)

	dexClient := httpclient.NewDEXScreenerClient(
		cfg.DEXScreener.BaseURL,
		time.Duration(cfg.DEXScreener.RequestTimeoutMillis)*time.Millisecond,
		zl,
		cfg.DEXScreener.MaxTokensPerRequest,
	)
	metadata := provider.NewMetadataProvider(
		"dexscreener",
		httpclient.NewDEXScreenerMetadataProvider(dexClient, networks, zl),
		rate.NewLimiter(rate.Limit(cfg.DEXScreener.RequestsPerSecond), cfg.DEXScreener.Burst),
		retry.New(retryCfg, "dexscreener", log),
		recorder,
		log,
	)

	enricher := service.NewEnrichmentPipeline(metadata, service.EnrichmentConfig{
		Width:      cfg.Enrichment.Width,
		Timeout:    time.Duration(cfg.Enrichment.TimeoutSeconds) * time.Second,
		DrainGrace: time.Duration(cfg.Enrichment.DrainGraceMillis) * time.Millisecond,
	}, log, recorder)

	cache := service.NewTieredCache(backend, service.TieredCacheConfig{
		StructureTTL:   cfg.Cache.StructureTTL(),
		PriceTTL:       cfg.Cache.PriceTTL(),
		RefreshTimeout: time.Duration(cfg.Cache.RefreshTimeoutSeconds) * time.Second,
	}, log, recorder)

	filter, err := entity.ParsePositionFilter(cfg.PrimaryProvider.Filter)
	if err != nil {
		return nil, err
	}
	a.Portfolio = service.NewPortfolioService(
		positions,
		networks,
		service.NewPositionAggregator(log),
		cache,
		enricher,
		log,
		service.PortfolioConfig{
			TrackedNetworks:      cfg.Portfolio.TrackedNetworks,
			Filter:               filter,
			MaxConcurrentWallets: cfg.Portfolio.MaxConcurrentWallets,
		},
	)
	a.Wallets = walletloader.NewWalletFileLoader(cfg.Portfolio.WalletsFile, log)

	zl.Info("Application wired",
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Strings("tracked_networks", cfg.Portfolio.TrackedNetworks),
		zap.Int("enrichment_width", cfg.Enrichment.Width))
	return a, nil
}

func (a *Application) cacheBackend(ctx context.Context, cfg *configloader.Config) (port.CacheBackend, error) {
	switch strings.ToLower(cfg.Cache.Backend) {
	case "redis":
		client, err := rediscache.New(ctx, rediscache.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return nil, err
		}
		a.Health = client.Ping
		a.closers = append(a.closers, client.Close)
		return rediscache.NewBackend(client, cfg.Cache.KeyPrefix), nil
	default:
		return memory.New(cfg.Cache.StructureTTL(), time.Duration(cfg.Cache.CleanupIntervalSeconds)*time.Second), nil
	}
}

// MetricsHandler serves the application's registry.
func (a *Application) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
}

// Close releases the cache backend connection, if any.
func (a *Application) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
