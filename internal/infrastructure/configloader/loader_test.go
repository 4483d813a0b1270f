package configloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "primaryProvider:\n  apiKey: zk_dev\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.StructureTTL() != 5*time.Minute || cfg.Cache.PriceTTL() != time.Minute {
		t.Fatalf("unexpected TTLs %s %s", cfg.Cache.StructureTTL(), cfg.Cache.PriceTTL())
	}
	if cfg.Enrichment.Width != 10 || cfg.Enrichment.TimeoutSeconds != 30 {
		t.Fatalf("unexpected enrichment defaults %+v", cfg.Enrichment)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.Backoff != "exponential" || cfg.Retry.BaseDelayMillis != 500 || cfg.Retry.MaxDelayMillis != 8000 {
		t.Fatalf("unexpected retry defaults %+v", cfg.Retry)
	}
	if cfg.RateLimit.PerMinute != 60 || cfg.RateLimit.PerDay != 10000 || cfg.RateLimit.Policy != "reject" {
		t.Fatalf("unexpected rate limit defaults %+v", cfg.RateLimit)
	}
	if cfg.Cache.Backend != "memory" || cfg.PrimaryProvider.PageSize != 100 || cfg.Server.Port != "8080" {
		t.Fatalf("unexpected defaults %+v %+v", cfg.Cache, cfg.PrimaryProvider)
	}
	if cfg.Redis.Addr != "" {
		t.Fatal("redis defaults only apply to the redis backend")
	}
}

func TestLoadClampsPageSizeAndReadsSections(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
primaryProvider:
  pageSize: 500
cache:
  backend: redis
  structureTTLSeconds: 900
portfolio:
  trackedNetworks: [ethereum, base]
networks:
  - identifier: sonic
    chainId: 146
    primaryChainId: sonic
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PrimaryProvider.PageSize != 100 {
		t.Fatalf("page size should be clamped, got %d", cfg.PrimaryProvider.PageSize)
	}
	if cfg.Cache.StructureTTL() != 15*time.Minute || cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("unexpected cache config %+v %+v", cfg.Cache, cfg.Redis)
	}
	if len(cfg.Portfolio.TrackedNetworks) != 2 || len(cfg.Networks) != 1 || cfg.Networks[0].ChainID != 146 {
		t.Fatalf("unexpected portfolio/network sections %+v %+v", cfg.Portfolio, cfg.Networks)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORTFOLIO_API_KEY", "zk_from_env")
	t.Setenv("PORTFOLIO_CACHE_BACKEND", "redis")
	t.Setenv("PORTFOLIO_REDIS_ADDR", "cache:6380")

	cfg, err := Load(writeConfig(t, "primaryProvider:\n  apiKey: from_file\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PrimaryProvider.APIKey != "zk_from_env" || cfg.Cache.Backend != "redis" || cfg.Redis.Addr != "cache:6380" {
		t.Fatalf("environment should win over the file, got %+v %+v", cfg.PrimaryProvider, cfg.Redis)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"policy":  "rateLimit:\n  policy: maybe\n",
		"backoff": "retry:\n  backoff: random\n",
		"filter":  "primaryProvider:\n  filter: everything\n",
		"backend": "cache:\n  backend: memcached\n",
		"yaml":    "server: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatal("missing file must fail")
	}
}
