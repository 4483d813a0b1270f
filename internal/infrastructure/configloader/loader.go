package configloader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/pkg/ratelimit"
	"portfolio_aggregator/internal/pkg/retry"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const envPrefix = "PORTFOLIO_"

// maxProviderPageSize is the discovery provider's page size cap.
const maxProviderPageSize = 100

// ServerConfig holds the HTTP adapter configuration.
type ServerConfig struct {
	Port                   string   `yaml:"port"`
	ReadTimeoutSeconds     int      `yaml:"readTimeoutSeconds"`
	WriteTimeoutSeconds    int      `yaml:"writeTimeoutSeconds"`
	IdleTimeoutSeconds     int      `yaml:"idleTimeoutSeconds"`
	ShutdownTimeoutSeconds int      `yaml:"shutdownTimeoutSeconds"`
	CORSAllowedOrigins     []string `yaml:"corsAllowedOrigins"`
}

// LoggingConfig holds the configuration for logging.
type LoggingConfig struct {
	Level      string `yaml:"level"` // e.g., "debug", "info", "warn", "error"
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// PrimaryProviderConfig configures the position discovery provider.
type PrimaryProviderConfig struct {
	BaseURL              string `yaml:"baseURL"`
	APIKey               string `yaml:"apiKey"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis"`
	PageSize             int    `yaml:"pageSize"`
	MaxPages             int    `yaml:"maxPages"`
	Currency             string `yaml:"currency"`
	Filter               string `yaml:"filter"`
}

// DEXScreenerConfig holds the configuration for the DEX Screener client.
type DEXScreenerConfig struct {
	BaseURL              string  `yaml:"baseURL"`
	RequestTimeoutMillis int64   `yaml:"requestTimeoutMillis"`
	MaxTokensPerRequest  int     `yaml:"maxTokensPerRequest"`
	RequestsPerSecond    float64 `yaml:"requestsPerSecond"`
	Burst                int     `yaml:"burst"`
}

// RateLimitConfig holds the request budgets of the primary provider.
type RateLimitConfig struct {
	PerMinute int    `yaml:"perMinute"`
	PerDay    int    `yaml:"perDay"`
	Policy    string `yaml:"policy"` // reject | warn
}

// RetryConfig holds the retry policy shared by both providers.
type RetryConfig struct {
	MaxAttempts     int    `yaml:"maxAttempts"`
	Backoff         string `yaml:"backoff"` // fixed | exponential
	BaseDelayMillis int64  `yaml:"baseDelayMillis"`
	MaxDelayMillis  int64  `yaml:"maxDelayMillis"`
}

// CacheConfig holds the two-tier cache configuration.
type CacheConfig struct {
	Backend                string `yaml:"backend"` // memory | redis
	KeyPrefix              string `yaml:"keyPrefix"`
	StructureTTLSeconds    int    `yaml:"structureTTLSeconds"`
	PriceTTLSeconds        int    `yaml:"priceTTLSeconds"`
	RefreshTimeoutSeconds  int    `yaml:"refreshTimeoutSeconds"`
	CleanupIntervalSeconds int    `yaml:"cleanupIntervalSeconds"`
}

// RedisConfig is used when cache.backend is redis.
type RedisConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	PoolSize   int    `yaml:"poolSize"`
	MaxRetries int    `yaml:"maxRetries"`
	TLSEnabled bool   `yaml:"tlsEnabled"`
}

// EnrichmentConfig bounds the metadata enrichment bulkhead.
type EnrichmentConfig struct {
	Width            int `yaml:"width"`
	TimeoutSeconds   int `yaml:"timeoutSeconds"`
	DrainGraceMillis int `yaml:"drainGraceMillis"`
}

// PortfolioConfig holds portfolio service options.
type PortfolioConfig struct {
	TrackedNetworks      []string `yaml:"trackedNetworks"`
	MaxConcurrentWallets int      `yaml:"maxConcurrentWallets"`
	WalletsFile          string   `yaml:"walletsFile"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server          ServerConfig               `yaml:"server"`
	Logging         LoggingConfig              `yaml:"logging"`
	PrimaryProvider PrimaryProviderConfig      `yaml:"primaryProvider"`
	DEXScreener     DEXScreenerConfig          `yaml:"dexScreener"`
	RateLimit       RateLimitConfig            `yaml:"rateLimit"`
	Retry           RetryConfig                `yaml:"retry"`
	Cache           CacheConfig                `yaml:"cache"`
	Redis           RedisConfig                `yaml:"redis"`
	Enrichment      EnrichmentConfig           `yaml:"enrichment"`
	Portfolio       PortfolioConfig            `yaml:"portfolio"`
	Networks        []entity.NetworkDefinition `yaml:"networks"`
}

// Load reads the YAML configuration file, applies PORTFOLIO_* environment overrides (a .env file in
// the working directory is honoured) and fills defaults. An empty path yields defaults plus environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.Warnf("Failed to load .env file: %v", err)
	}

	var cfg Config
	if path != "" {
		logrus.Infof("Loading configuration from path: %s", path)
		data, err := os.ReadFile(path)
		if err != nil {
			logrus.Errorf("Failed to read config file %s: %v", path, err)
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			logrus.Errorf("Failed to unmarshal config data from %s: %v", path, err)
			return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logrus.Info("Configuration loaded successfully.")
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	overrides := []struct {
		name   string
		target *string
	}{
		{"API_KEY", &cfg.PrimaryProvider.APIKey},
		{"PRIMARY_BASE_URL", &cfg.PrimaryProvider.BaseURL},
		{"DEXSCREENER_BASE_URL", &cfg.DEXScreener.BaseURL},
		{"REDIS_ADDR", &cfg.Redis.Addr},
		{"REDIS_PASSWORD", &cfg.Redis.Password},
		{"LOG_LEVEL", &cfg.Logging.Level},
		{"SERVER_PORT", &cfg.Server.Port},
		{"CACHE_BACKEND", &cfg.Cache.Backend},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(envPrefix + o.name); ok && v != "" {
			*o.target = v
			logrus.Debugf("%s%s overrides configuration", envPrefix, o.name)
		}
	}
}

func applyDefaults(cfg *Config) {
	defaultString(&cfg.Server.Port, "8080", "Server.Port")
	defaultInt(&cfg.Server.ReadTimeoutSeconds, 15, "Server.ReadTimeoutSeconds")
	defaultInt(&cfg.Server.WriteTimeoutSeconds, 60, "Server.WriteTimeoutSeconds")
	defaultInt(&cfg.Server.IdleTimeoutSeconds, 120, "Server.IdleTimeoutSeconds")
	defaultInt(&cfg.Server.ShutdownTimeoutSeconds, 10, "Server.ShutdownTimeoutSeconds")
	if len(cfg.Server.CORSAllowedOrigins) == 0 {
		cfg.Server.CORSAllowedOrigins = []string{"*"}
	}

	defaultString(&cfg.Logging.Level, "info", "Logging.Level")
	defaultInt(&cfg.Logging.MaxSizeMB, 100, "Logging.MaxSizeMB")
	defaultInt(&cfg.Logging.MaxBackups, 5, "Logging.MaxBackups")
	defaultInt(&cfg.Logging.MaxAgeDays, 28, "Logging.MaxAgeDays")

	defaultString(&cfg.PrimaryProvider.BaseURL, "https://api.zerion.io/v1", "PrimaryProvider.BaseURL")
	defaultInt64(&cfg.PrimaryProvider.RequestTimeoutMillis, 15000, "PrimaryProvider.RequestTimeoutMillis")
	defaultInt(&cfg.PrimaryProvider.PageSize, maxProviderPageSize, "PrimaryProvider.PageSize")
	if cfg.PrimaryProvider.PageSize > maxProviderPageSize {
		logrus.Warnf("PrimaryProvider.PageSize %d exceeds the provider cap, clamping to %d", cfg.PrimaryProvider.PageSize, maxProviderPageSize)
		cfg.PrimaryProvider.PageSize = maxProviderPageSize
	}
	defaultInt(&cfg.PrimaryProvider.MaxPages, 50, "PrimaryProvider.MaxPages")
	defaultString(&cfg.PrimaryProvider.Currency, "usd", "PrimaryProvider.Currency")
	defaultString(&cfg.PrimaryProvider.Filter, string(entity.FilterNoFilter), "PrimaryProvider.Filter")

	defaultString(&cfg.DEXScreener.BaseURL, "https://api.dexscreener.com", "DEXScreener.BaseURL")
	defaultInt64(&cfg.DEXScreener.RequestTimeoutMillis, 10000, "DEXScreener.RequestTimeoutMillis")
	defaultInt(&cfg.DEXScreener.MaxTokensPerRequest, 30, "DEXScreener.MaxTokensPerRequest")
	if cfg.DEXScreener.RequestsPerSecond <= 0 {
		cfg.DEXScreener.RequestsPerSecond = 5 // 300 requests per minute
		logrus.Infof("DEXScreener.RequestsPerSecond not set, defaulting to %v", cfg.DEXScreener.RequestsPerSecond)
	}
	defaultInt(&cfg.DEXScreener.Burst, 5, "DEXScreener.Burst")

	defaultInt(&cfg.RateLimit.PerMinute, 60, "RateLimit.PerMinute")
	defaultInt(&cfg.RateLimit.PerDay, 10000, "RateLimit.PerDay")
	defaultString(&cfg.RateLimit.Policy, "reject", "RateLimit.Policy")

	defaultInt(&cfg.Retry.MaxAttempts, 3, "Retry.MaxAttempts")
	defaultString(&cfg.Retry.Backoff, "exponential", "Retry.Backoff")
	defaultInt64(&cfg.Retry.BaseDelayMillis, 500, "Retry.BaseDelayMillis")
	defaultInt64(&cfg.Retry.MaxDelayMillis, 8000, "Retry.MaxDelayMillis")

	defaultString(&cfg.Cache.Backend, "memory", "Cache.Backend")
	defaultString(&cfg.Cache.KeyPrefix, "portfolio", "Cache.KeyPrefix")
	defaultInt(&cfg.Cache.StructureTTLSeconds, 300, "Cache.StructureTTLSeconds")
	defaultInt(&cfg.Cache.PriceTTLSeconds, 60, "Cache.PriceTTLSeconds")
	defaultInt(&cfg.Cache.RefreshTimeoutSeconds, 45, "Cache.RefreshTimeoutSeconds")
	defaultInt(&cfg.Cache.CleanupIntervalSeconds, 600, "Cache.CleanupIntervalSeconds")

	if cfg.Cache.Backend == "redis" {
		defaultString(&cfg.Redis.Addr, "localhost:6379", "Redis.Addr")
		defaultInt(&cfg.Redis.PoolSize, 10, "Redis.PoolSize")
		defaultInt(&cfg.Redis.MaxRetries, 3, "Redis.MaxRetries")
	}

	defaultInt(&cfg.Enrichment.Width, 10, "Enrichment.Width")
	defaultInt(&cfg.Enrichment.TimeoutSeconds, 30, "Enrichment.TimeoutSeconds")
	defaultInt(&cfg.Enrichment.DrainGraceMillis, 250, "Enrichment.DrainGraceMillis")

	defaultInt(&cfg.Portfolio.MaxConcurrentWallets, 4, "Portfolio.MaxConcurrentWallets")
	defaultString(&cfg.Portfolio.WalletsFile, "data/wallets.txt", "Portfolio.WalletsFile")
}

// Validate rejects values that have no sensible default.
func (c *Config) Validate() error {
	if _, err := ratelimit.ParsePolicy(c.RateLimit.Policy); err != nil {
		return fmt.Errorf("rateLimit.policy: %w", err)
	}
	if _, err := retry.ParseBackoff(c.Retry.Backoff); err != nil {
		return fmt.Errorf("retry.backoff: %w", err)
	}
	if _, err := entity.ParsePositionFilter(c.PrimaryProvider.Filter); err != nil {
		return fmt.Errorf("primaryProvider.filter: %w", err)
	}
	switch strings.ToLower(c.Cache.Backend) {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend)
	}
	if c.PrimaryProvider.APIKey == "" {
		logrus.Warnf("PrimaryProvider.APIKey is empty, set it in the config file or %sAPI_KEY", envPrefix)
	}
	return nil
}

// StructureTTL returns the structure cache TTL.
func (c CacheConfig) StructureTTL() time.Duration {
	return time.Duration(c.StructureTTLSeconds) * time.Second
}

// PriceTTL returns the price cache TTL.
func (c CacheConfig) PriceTTL() time.Duration {
	return time.Duration(c.PriceTTLSeconds) * time.Second
}

func defaultString(field *string, value, name string) {
	if *field == "" {
		*field = value
		logrus.Infof("%s not set, defaulting to %s", name, value)
	}
}

func defaultInt(field *int, value int, name string) {
	if *field <= 0 {
		*field = value
		logrus.Infof("%s not set, defaulting to %d", name, value)
	}
}

func defaultInt64(field *int64, value int64, name string) {
	if *field <= 0 {
		*field = value
		logrus.Infof("%s not set, defaulting to %d", name, value)
	}
}
