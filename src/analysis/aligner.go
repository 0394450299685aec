package analysis

import (
	"sort"

	"pigeon-observer/src/models"
)

// TemporalAligner folds two irregular sample series onto one shared time
// grid. Each sample lands in the bucket flooring its timestamp; a sample
// counts only if it sits within the tolerance of its bucket start. Buckets
// missing either series are dropped, never zero-filled: an absent count is
// unknown, not zero.
type TemporalAligner struct {
	BucketSeconds    int64
	ToleranceSeconds int64
}

// -----------------------------------------------------------------------------

func NewTemporalAligner(bucketSeconds, toleranceSeconds int64) *TemporalAligner {
	if toleranceSeconds <= 0 {
		toleranceSeconds = bucketSeconds
	}
	return &TemporalAligner{
		BucketSeconds:    bucketSeconds,
		ToleranceSeconds: toleranceSeconds,
	}
}

// -----------------------------------------------------------------------------

type bucketAccumulator struct {
	pigeonSum   float64
	pigeonCount int
	cryptoSum   float64
	cryptoCount int
}

// -----------------------------------------------------------------------------

// Align pairs the two series into chronological buckets.
func (a *TemporalAligner) Align(pigeon, crypto []models.MTimedSample) []models.MAlignedBucket {
	accumulators := make(map[int64]*bucketAccumulator)

	for _, s := range pigeon {
		if acc, ok := a.accumulatorFor(accumulators, s.Timestamp); ok {
			acc.pigeonSum += s.Value
			acc.pigeonCount++
		}
	}
	for _, s := range crypto {
		if acc, ok := a.accumulatorFor(accumulators, s.Timestamp); ok {
			acc.cryptoSum += s.Value
			acc.cryptoCount++
		}
	}

	buckets := make([]models.MAlignedBucket, 0, len(accumulators))
	for start, acc := range accumulators {
		if acc.pigeonCount == 0 || acc.cryptoCount == 0 {
			continue
		}
		buckets = append(buckets, models.MAlignedBucket{
			BucketStart: start,
			BucketEnd:   start + a.BucketSeconds,
			PigeonAvg:   acc.pigeonSum / float64(acc.pigeonCount),
			CryptoAvg:   acc.cryptoSum / float64(acc.cryptoCount),
			PigeonCount: acc.pigeonCount,
			CryptoCount: acc.cryptoCount,
		})
	}

	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].BucketStart < buckets[j].BucketStart
	})
	return buckets
}

// -----------------------------------------------------------------------------

func (a *TemporalAligner) accumulatorFor(accumulators map[int64]*bucketAccumulator, ts int64) (*bucketAccumulator, bool) {
	start := ts - (ts % a.BucketSeconds)
	if ts-start > a.ToleranceSeconds {
		return nil, false
	}

	acc, ok := accumulators[start]
	if !ok {
		acc = &bucketAccumulator{}
		accumulators[start] = acc
	}
	return acc, true
}
