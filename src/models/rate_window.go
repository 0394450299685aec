package models

import "time"

// MRateWindow tracks one upstream source's call budget inside the current
// rolling window. Owned by the rate limiter; mutated only under its
// per-source critical section. Count never exceeds Limit.
type MRateWindow struct {
	SourceID    string    `json:"source_id"`
	WindowStart time.Time `json:"window_start"`
	Count       int       `json:"count"`
	Limit       int       `json:"limit"`
}
