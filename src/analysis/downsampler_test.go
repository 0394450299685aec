package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pigeon-observer/src/logger"
	"pigeon-observer/src/models"
)

func testDownsampler(threshold, target int, strategy string) *Downsampler {
	return NewDownsampler(models.MDownsampleConfig{
		Threshold:    threshold,
		TargetPoints: target,
		Strategy:     strategy,
	}, logger.NewLogger("error", "test-downsampler"))
}

func makeSeries(n int) []models.MTimedSample {
	samples := make([]models.MTimedSample, n)
	for i := range samples {
		samples[i] = models.MTimedSample{
			Timestamp: int64(i) * 60,
			Value:     float64(i),
			SeriesKey: "crypto:BTC",
		}
	}
	return samples
}

func assertReductionInvariants(t *testing.T, original, reduced []models.MTimedSample, target int) {
	t.Helper()

	assert.LessOrEqual(t, len(reduced), target+1)
	assert.Equal(t, original[0].Timestamp, reduced[0].Timestamp, "first timestamp preserved")
	assert.Equal(t, original[len(original)-1].Timestamp, reduced[len(reduced)-1].Timestamp, "last timestamp preserved")
	for i := 1; i < len(reduced); i++ {
		assert.Less(t, reduced[i-1].Timestamp, reduced[i].Timestamp, "order preserved")
	}
}

// -----------------------------------------------------------------------------

func TestReduceBelowThresholdIsUntouched(t *testing.T) {
	d := testDownsampler(500, 200, StrategyStride)

	samples := makeSeries(100)
	reduced, changed := d.Reduce(samples)
	assert.False(t, changed)
	assert.Len(t, reduced, 100)
}

// -----------------------------------------------------------------------------

func TestReduceStride(t *testing.T) {
	d := testDownsampler(5, 4, StrategyStride)

	samples := makeSeries(10)
	reduced, changed := d.Reduce(samples)
	require.True(t, changed)
	assertReductionInvariants(t, samples, reduced, 4)

	// k = ceil(10/4) = 3 keeps indices 0, 3, 6, 9
	assert.Equal(t, []float64{0, 3, 6, 9}, []float64{reduced[0].Value, reduced[1].Value, reduced[2].Value, reduced[3].Value})
}

// -----------------------------------------------------------------------------

func TestReduceAverage(t *testing.T) {
	d := testDownsampler(10, 5, StrategyAverage)

	samples := makeSeries(100)
	reduced, changed := d.Reduce(samples)
	require.True(t, changed)
	assertReductionInvariants(t, samples, reduced, 5)

	// Head is the untouched original sample
	assert.Equal(t, 0.0, reduced[0].Value)
	assert.Equal(t, "crypto:BTC", reduced[1].SeriesKey)
}

// -----------------------------------------------------------------------------

func TestReduceAdaptivePicksStrategyByRatio(t *testing.T) {
	d := testDownsampler(10, 20, StrategyAdaptive)

	// 100 < 10*20: stride keeps original sample values
	small := makeSeries(100)
	reduced, changed := d.Reduce(small)
	require.True(t, changed)
	assertReductionInvariants(t, small, reduced, 20)
	for _, s := range reduced {
		assert.Equal(t, float64(s.Timestamp/60), s.Value, "stride keeps originals")
	}

	// 1000 >= 10*20: averaging produces synthetic means
	large := makeSeries(1000)
	reduced, changed = d.Reduce(large)
	require.True(t, changed)
	assertReductionInvariants(t, large, reduced, 20)
}

// -----------------------------------------------------------------------------

func TestReduceInvariantsAcrossSizes(t *testing.T) {
	for _, strategy := range []string{StrategyStride, StrategyAverage, StrategyAdaptive} {
		for _, n := range []int{11, 50, 137, 1000, 4999} {
			d := testDownsampler(10, 10, strategy)
			samples := makeSeries(n)
			reduced, changed := d.Reduce(samples)
			require.True(t, changed, "strategy=%s n=%d", strategy, n)
			assertReductionInvariants(t, samples, reduced, 10)
		}
	}
}
