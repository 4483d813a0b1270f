package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.CacheLookup("structure", "hit")
	r.CacheLookup("structure", "hit")
	r.CacheLookup("price", "miss")
	r.BudgetRejected("minute")
	r.EnrichmentItems("failed", 3)
	r.EnrichmentItems("succeeded", 0)
	r.EnrichmentInFlight(2)
	r.EnrichmentInFlight(-1)
	r.CacheRefresh("price", 20*time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(r.cacheLookups.WithLabelValues("structure", "hit")); got != 2 {
		t.Fatalf("expected 2 structure hits, got %v", got)
	}
	if got := testutil.ToFloat64(r.budgetRejections.WithLabelValues("minute")); got != 1 {
		t.Fatalf("expected 1 rejection, got %v", got)
	}
	if got := testutil.ToFloat64(r.enrichmentItems.WithLabelValues("failed")); got != 3 {
		t.Fatalf("expected 3 failed items, got %v", got)
	}
	if got := testutil.ToFloat64(r.enrichmentInFlight); got != 1 {
		t.Fatalf("expected in-flight gauge at 1, got %v", got)
	}
	if n := testutil.CollectAndCount(r.cacheRefreshes); n != 1 {
		t.Fatalf("expected one refresh series, got %d", n)
	}
}
