// Package metrics exposes the core's operational signals as Prometheus collectors.
package metrics

import (
	"time"

	"portfolio_aggregator/internal/app/port"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "portfolio"

// Recorder implements port.MetricsRecorder with Prometheus collectors.
type Recorder struct {
	cacheLookups       *prometheus.CounterVec
	cacheRefreshes     *prometheus.HistogramVec
	providerRequests   *prometheus.CounterVec
	budgetRejections   *prometheus.CounterVec
	enrichmentInFlight prometheus.Gauge
	enrichmentItems    *prometheus.CounterVec
}

// NewRecorder creates the collectors and registers them on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Tiered cache lookups by namespace and result (hit, miss, error).",
		}, []string{"namespace", "result"}),
		cacheRefreshes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cache_refresh_duration_seconds",
			Help:      "Duration of miss-driven refreshes by namespace and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"namespace", "outcome"}),
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Outbound provider requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		budgetRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budget_rejections_total",
			Help:      "Requests refused by the local request budget.",
		}, []string{"budget"}),
		enrichmentInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "enrichment_in_flight",
			Help:      "Metadata enrichment calls currently holding a bulkhead slot.",
		}),
		enrichmentItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_items_total",
			Help:      "Enrichment items by terminal status.",
		}, []string{"status"}),
	}
	reg.MustRegister(
		r.cacheLookups,
		r.cacheRefreshes,
		r.providerRequests,
		r.budgetRejections,
		r.enrichmentInFlight,
		r.enrichmentItems,
	)
	return r
}

var _ port.MetricsRecorder = (*Recorder)(nil)

func (r *Recorder) CacheLookup(ns, result string) {
	r.cacheLookups.WithLabelValues(ns, result).Inc()
}

func (r *Recorder) CacheRefresh(ns string, took time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.cacheRefreshes.WithLabelValues(ns, outcome).Observe(took.Seconds())
}

func (r *Recorder) ProviderRequest(provider, outcome string) {
	r.providerRequests.WithLabelValues(provider, outcome).Inc()
}

func (r *Recorder) BudgetRejected(budget string) {
	r.budgetRejections.WithLabelValues(budget).Inc()
}

func (r *Recorder) EnrichmentInFlight(delta int) {
	r.enrichmentInFlight.Add(float64(delta))
}

func (r *Recorder) EnrichmentItems(status string, n int) {
	if n > 0 {
		r.enrichmentItems.WithLabelValues(status).Add(float64(n))
	}
}

// Nop discards every signal.
type Nop struct{}

var _ port.MetricsRecorder = Nop{}

func (Nop) CacheLookup(string, string)                {}
func (Nop) CacheRefresh(string, time.Duration, error) {}
func (Nop) ProviderRequest(string, string)            {}
func (Nop) BudgetRejected(string)                     {}
func (Nop) EnrichmentInFlight(int)                    {}
func (Nop) EnrichmentItems(string, int)               {}
