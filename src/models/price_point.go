package models

import "sort"

// MPricePoint represents one crypto price observation.
type MPricePoint struct {
	ID        string  `json:"id"`     // upstream identifier, e.g. "bitcoin"
	Symbol    string  `json:"symbol"` // display symbol, e.g. "BTC"
	Price     float64 `json:"price"`
	MarketCap float64 `json:"market_cap,omitempty"`
	Volume24h float64 `json:"volume_24h,omitempty"`
	Timestamp int64   `json:"timestamp"`
	FetchedAt int64   `json:"fetched_at"`
}

// -----------------------------------------------------------------------------

// ToSample converts the price point into the normalized analysis form.
func (p MPricePoint) ToSample() MTimedSample {
	meta := map[string]float64{}
	if p.MarketCap > 0 {
		meta["market_cap"] = p.MarketCap
	}
	if p.Volume24h > 0 {
		meta["volume_24h"] = p.Volume24h
	}
	return MTimedSample{
		Timestamp: p.Timestamp,
		Value:     p.Price,
		SeriesKey: "crypto:" + p.Symbol,
		Metadata:  meta,
	}
}

// -----------------------------------------------------------------------------

// SortPricePoints orders a series chronologically.
func SortPricePoints(points []MPricePoint) {
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp < points[j].Timestamp
	})
}

// -----------------------------------------------------------------------------

// PricesToSamples converts a price series to sorted samples.
func PricesToSamples(points []MPricePoint) []MTimedSample {
	samples := make([]MTimedSample, 0, len(points))
	for _, p := range points {
		samples = append(samples, p.ToSample())
	}
	SortSamples(samples)
	return samples
}
