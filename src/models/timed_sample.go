package models

import "sort"

// -----------------------------------------------------------------------------
// Normalized analysis unit shared by both data families
// -----------------------------------------------------------------------------

// MTimedSample is a single observation on a time axis. Produced by the
// fetchers (one per parsed upstream record) or by the downsampler when
// merging samples; never mutated afterwards.
type MTimedSample struct {
	Timestamp int64              `json:"timestamp"`
	Value     float64            `json:"value"`
	SeriesKey string             `json:"series_key"`
	Metadata  map[string]float64 `json:"metadata,omitempty"`
}

// -----------------------------------------------------------------------------

// SortSamples orders a series by timestamp ascending, in place.
// Returned series must always be non-decreasing in time.
func SortSamples(samples []MTimedSample) {
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Timestamp < samples[j].Timestamp
	})
}
