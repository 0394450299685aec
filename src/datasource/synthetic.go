package datasource

import (
	"context"
	"hash/fnv"
	"math"
	"time"

	"pigeon-observer/src/logger"
	"pigeon-observer/src/models"
)

const SourceSyntheticSightings = "synthetic-sightings"

// SyntheticSightingSource is the fallback pigeon-count provider. It derives
// plausible counts deterministically from the area name and the hour, so it
// never fails and two calls for the same hour agree. Counts follow a daily
// activity curve peaking around midday.
type SyntheticSightingSource struct {
	Logger *logger.Logger
	now    func() time.Time // swappable clock for tests
}

// -----------------------------------------------------------------------------

func NewSyntheticSightingSource(logLevel string) *SyntheticSightingSource {
	return &SyntheticSightingSource{
		Logger: logger.NewLogger(logLevel, "SyntheticSightingSource"),
		now:    time.Now,
	}
}

// -----------------------------------------------------------------------------

func (s *SyntheticSightingSource) Name() string {
	return SourceSyntheticSightings
}

// -----------------------------------------------------------------------------

func (s *SyntheticSightingSource) FetchCurrent(_ context.Context, areas []string) ([]models.MSighting, error) {
	now := s.now().Unix()
	hour := now - now%3600

	result := make([]models.MSighting, 0, len(areas))
	for _, area := range areas {
		result = append(result, models.MSighting{
			Location:  area,
			Count:     syntheticCount(area, hour),
			Timestamp: hour,
			FetchedAt: now,
		})
	}

	s.Logger.Debug("Generated current counts for %d areas", len(result))
	return result, nil
}

// -----------------------------------------------------------------------------

// FetchHistorical generates one count per hour over the requested window.
func (s *SyntheticSightingSource) FetchHistorical(_ context.Context, area string, days int) ([]models.MSighting, error) {
	now := s.now().Unix()
	end := now - now%3600
	start := end - int64(days)*86400

	result := make([]models.MSighting, 0, days*24)
	for ts := start; ts <= end; ts += 3600 {
		result = append(result, models.MSighting{
			Location:  area,
			Count:     syntheticCount(area, ts),
			Timestamp: ts,
			FetchedAt: now,
		})
	}

	s.Logger.Debug("Generated %d historical counts for %s (%dd)", len(result), area, days)
	return result, nil
}

// -----------------------------------------------------------------------------

// syntheticCount maps (area, hour) to a stable non-negative count: a
// per-area base population, a daily activity curve, and hash jitter.
func syntheticCount(area string, hourTs int64) int {
	h := fnv.New64a()
	h.Write([]byte(area))
	base := 20 + int(h.Sum64()%80) // 20..99 birds per area

	hourOfDay := float64((hourTs % 86400) / 3600)
	activity := 0.5 + 0.5*math.Sin((hourOfDay-6)*math.Pi/12) // trough at night, peak midday

	h.Write([]byte{byte(hourTs), byte(hourTs >> 8), byte(hourTs >> 16), byte(hourTs >> 24)})
	jitter := int(h.Sum64()%11) - 5

	count := int(float64(base)*activity) + jitter
	if count < 0 {
		count = 0
	}
	return count
}
