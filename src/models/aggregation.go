package models

// -----------------------------------------------------------------------------
// Aggregation request and response (consumer-facing payload)
// -----------------------------------------------------------------------------

// MTimeRange is one half-open correlation window [Start, End).
type MTimeRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// -----------------------------------------------------------------------------

// MAggregationRequest describes one fused dashboard query. Zero-valued
// fields fall back to configured defaults.
type MAggregationRequest struct {
	Areas            []string     `json:"areas"`
	Coins            []string     `json:"coins"`
	Days             int          `json:"days"`
	BucketSeconds    int64        `json:"bucket_seconds"`
	ToleranceSeconds int64        `json:"tolerance_seconds"`
	Windows          []MTimeRange `json:"windows"`
}

// MAggregationMetadata describes how the response was produced.
type MAggregationMetadata struct {
	BucketSeconds          int64 `json:"bucket_seconds"`
	ToleranceSeconds       int64 `json:"tolerance_seconds"`
	PairedBuckets          int   `json:"paired_buckets"`
	InsufficientPairedData bool  `json:"insufficient_paired_data"`
	PigeonDownsampled      bool  `json:"pigeon_downsampled"`
	CryptoDownsampled      bool  `json:"crypto_downsampled"`
	GeneratedAt            int64 `json:"generated_at"`
}

// -----------------------------------------------------------------------------

// MAggregationResponse is the complete fused view. The aggregation entry
// point either returns all of it or errors once; it never partially fails.
type MAggregationResponse struct {
	PigeonData   []MTimedSample       `json:"pigeon_data"`
	CryptoData   []MTimedSample       `json:"crypto_data"`
	Correlations []MCorrelationResult `json:"correlations"`
	Metadata     MAggregationMetadata `json:"metadata"`
}
