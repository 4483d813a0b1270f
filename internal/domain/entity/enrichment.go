package entity

// EnrichmentStatus is the terminal state of one enrichment item.
type EnrichmentStatus string

const (
	EnrichmentSucceeded EnrichmentStatus = "succeeded"
	EnrichmentFailed    EnrichmentStatus = "failed"
	// EnrichmentCancelled covers items never dispatched and items cut off by the deadline.
	EnrichmentCancelled EnrichmentStatus = "cancelled"
)

// EnrichmentResult is the per-token outcome.
type EnrichmentResult struct {
	Status   EnrichmentStatus
	Metadata *TokenMetadata
	Err      error
}

// EnrichmentReport is the partial-tolerant outcome of a batch.
type EnrichmentReport struct {
	Results map[TokenReference]EnrichmentResult
	EnrichmentSummary
}

// EnrichmentSummary carries the batch counters.
type EnrichmentSummary struct {
	Requested  int `json:"requested"`
	Dispatched int `json:"dispatched"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
}

// Completed is the number of items that reached a result, successful or not.
func (s EnrichmentSummary) Completed() int {
	return s.Succeeded + s.Failed
}
