package models

import "sort"

// MSighting represents one pigeon sighting record for an urban area.
type MSighting struct {
	Location  string  `json:"location"`
	Count     int     `json:"count"` // always >= 0
	Timestamp int64   `json:"timestamp"`
	Lat       float64 `json:"lat,omitempty"`
	Lon       float64 `json:"lon,omitempty"`
	FetchedAt int64   `json:"fetched_at"`
}

// -----------------------------------------------------------------------------

// ToSample converts the sighting into the normalized analysis form.
func (s MSighting) ToSample() MTimedSample {
	meta := map[string]float64{}
	if s.Lat != 0 || s.Lon != 0 {
		meta["lat"] = s.Lat
		meta["lon"] = s.Lon
	}
	return MTimedSample{
		Timestamp: s.Timestamp,
		Value:     float64(s.Count),
		SeriesKey: "pigeon:" + s.Location,
		Metadata:  meta,
	}
}

// -----------------------------------------------------------------------------

// SortSightings orders a series chronologically.
func SortSightings(sightings []MSighting) {
	sort.Slice(sightings, func(i, j int) bool {
		return sightings[i].Timestamp < sightings[j].Timestamp
	})
}

// -----------------------------------------------------------------------------

// SightingsToSamples converts a sighting series to sorted samples.
func SightingsToSamples(sightings []MSighting) []MTimedSample {
	samples := make([]MTimedSample, 0, len(sightings))
	for _, s := range sightings {
		samples = append(samples, s.ToSample())
	}
	SortSamples(samples)
	return samples
}
