package analysis

import (
	"math"
	"sort"

	"pigeon-observer/src/analysis/core"
	"pigeon-observer/src/logger"
	"pigeon-observer/src/models"
)

// Correlator computes Pearson correlations over aligned buckets and grades
// each result against the configured significance policy table.
type Correlator struct {
	Levels []models.MSignificanceLevel
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewCorrelator(levels []models.MSignificanceLevel, log *logger.Logger) *Correlator {
	if len(levels) == 0 {
		levels = models.DefaultSignificanceLevels()
	}
	return &Correlator{Levels: levels, Logger: log}
}

// -----------------------------------------------------------------------------

// Correlate produces one result per requested window, in chronological
// order. Windows with fewer than two paired buckets are omitted entirely:
// a coefficient over one point is noise dressed as insight.
func (c *Correlator) Correlate(buckets []models.MAlignedBucket, windows []models.MTimeRange) []models.MCorrelationResult {
	ordered := make([]models.MTimeRange, len(windows))
	copy(ordered, windows)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Start < ordered[j].Start
	})

	results := make([]models.MCorrelationResult, 0, len(ordered))
	for _, w := range ordered {
		pigeon := make([]float64, 0, len(buckets))
		crypto := make([]float64, 0, len(buckets))
		for _, b := range buckets {
			if b.BucketStart >= w.Start && b.BucketStart < w.End {
				pigeon = append(pigeon, b.PigeonAvg)
				crypto = append(crypto, b.CryptoAvg)
			}
		}

		if len(pigeon) < 2 {
			c.Logger.Debug("Window [%d, %d) has %d paired buckets, skipping", w.Start, w.End, len(pigeon))
			continue
		}

		r := core.CalculateCorrelation(pigeon, crypto)
		p := core.CorrelationPValue(r, len(pigeon))

		results = append(results, models.MCorrelationResult{
			Coefficient:  r,
			PValue:       p,
			Significance: c.grade(r, p),
			Commentary:   Commentary(r, p, c.grade(r, p)),
			WindowStart:  w.Start,
			WindowEnd:    w.End,
			SampleCount:  len(pigeon),
		})
	}

	return results
}

// -----------------------------------------------------------------------------

// grade walks the policy table in order; first matching row wins.
func (c *Correlator) grade(r, p float64) models.MSignificance {
	absR := math.Abs(r)
	for _, level := range c.Levels {
		if absR >= level.MinAbsCoefficient && p < level.MaxPValue {
			return level.Name
		}
	}
	return models.SignificanceNone
}
