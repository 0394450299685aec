package analysis

import (
	"pigeon-observer/src/logger"
	"pigeon-observer/src/models"
)

// -----------------------------------------------------------------------------
// Downsampling.
//
// Series above the threshold are reduced before they reach a client. All
// strategies preserve chronological order and keep the first and last
// original samples, so a reduced chart still spans the same time range. The
// reduced length never exceeds the target by more than one.
// -----------------------------------------------------------------------------

const (
	StrategyStride   = "stride"
	StrategyAverage  = "average"
	StrategyAdaptive = "adaptive"

	// Above this input-to-target ratio, striding discards too much shape;
	// adaptive switches to window averaging.
	adaptiveRatio = 10
)

type Downsampler struct {
	Threshold    int
	TargetPoints int
	Strategy     string
	Logger       *logger.Logger
}

// -----------------------------------------------------------------------------

func NewDownsampler(cfg models.MDownsampleConfig, log *logger.Logger) *Downsampler {
	return &Downsampler{
		Threshold:    cfg.Threshold,
		TargetPoints: cfg.TargetPoints,
		Strategy:     cfg.Strategy,
		Logger:       log,
	}
}

// -----------------------------------------------------------------------------

// Reduce shrinks the series when it exceeds the threshold. The returned
// bool reports whether any reduction happened.
func (d *Downsampler) Reduce(samples []models.MTimedSample) ([]models.MTimedSample, bool) {
	if len(samples) <= d.Threshold || d.TargetPoints < 2 || len(samples) <= d.TargetPoints {
		return samples, false
	}

	strategy := d.Strategy
	if strategy == StrategyAdaptive {
		if len(samples) < adaptiveRatio*d.TargetPoints {
			strategy = StrategyStride
		} else {
			strategy = StrategyAverage
		}
	}

	var reduced []models.MTimedSample
	switch strategy {
	case StrategyAverage:
		reduced = d.reduceAverage(samples)
	default:
		reduced = d.reduceStride(samples)
	}

	// The final original sample anchors the series end
	last := samples[len(samples)-1]
	if reduced[len(reduced)-1].Timestamp != last.Timestamp {
		reduced = append(reduced, last)
	}

	d.Logger.Debug("Reduced series from %d to %d points (%s)", len(samples), len(reduced), strategy)
	return reduced, true
}

// -----------------------------------------------------------------------------

// reduceStride keeps every k-th sample starting from the first.
func (d *Downsampler) reduceStride(samples []models.MTimedSample) []models.MTimedSample {
	k := (len(samples) + d.TargetPoints - 1) / d.TargetPoints

	reduced := make([]models.MTimedSample, 0, d.TargetPoints)
	for i := 0; i < len(samples); i += k {
		reduced = append(reduced, samples[i])
	}
	return reduced
}

// -----------------------------------------------------------------------------

// reduceAverage replaces each window with one sample carrying the window
// mean, stamped at the window's first timestamp. The first window degenerates
// to the original first sample so the series start is preserved exactly.
func (d *Downsampler) reduceAverage(samples []models.MTimedSample) []models.MTimedSample {
	// Window over the n-1 samples after the preserved head, sized so the
	// total stays within the target even after the end anchor is appended
	w := (len(samples) - 1 + d.TargetPoints - 2) / (d.TargetPoints - 1)

	reduced := make([]models.MTimedSample, 0, d.TargetPoints)
	reduced = append(reduced, samples[0])

	for start := 1; start < len(samples); start += w {
		end := start + w
		if end > len(samples) {
			end = len(samples)
		}

		sum := 0.0
		for i := start; i < end; i++ {
			sum += samples[i].Value
		}

		reduced = append(reduced, models.MTimedSample{
			Timestamp: samples[start].Timestamp,
			Value:     sum / float64(end-start),
			SeriesKey: samples[start].SeriesKey,
		})
	}
	return reduced
}
