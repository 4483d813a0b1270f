package port

import "time"

// MetricsRecorder receives the operational signals of the core.
type MetricsRecorder interface {
	CacheLookup(namespace, result string)
	CacheRefresh(namespace string, took time.Duration, err error)
	ProviderRequest(provider, outcome string)
	BudgetRejected(budget string)
	EnrichmentInFlight(delta int)
	EnrichmentItems(status string, n int)
}
