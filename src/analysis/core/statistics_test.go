package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// -----------------------------------------------------------------------------

func TestCalculateMeanStd(t *testing.T) {
	mean, std := CalculateMeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, mean, 1e-9)
	assert.InDelta(t, 2.0, std, 1e-9)

	mean, std = CalculateMeanStd([]float64{42})
	assert.Equal(t, 42.0, mean)
	assert.Equal(t, 0.0, std)

	mean, std = CalculateMeanStd(nil)
	assert.Equal(t, 0.0, mean)
	assert.Equal(t, 0.0, std)
}

// -----------------------------------------------------------------------------

func TestCalculateCorrelationPerfect(t *testing.T) {
	r := CalculateCorrelation([]float64{1, 2, 3}, []float64{2, 4, 6})
	assert.InDelta(t, 1.0, r, 1e-9)

	r = CalculateCorrelation([]float64{1, 2, 3}, []float64{6, 4, 2})
	assert.InDelta(t, -1.0, r, 1e-9)
}

// -----------------------------------------------------------------------------

func TestCalculateCorrelationDegenerateInputs(t *testing.T) {
	assert.Equal(t, 0.0, CalculateCorrelation([]float64{1, 2}, []float64{1}))
	assert.Equal(t, 0.0, CalculateCorrelation([]float64{1}, []float64{2}))
	assert.Equal(t, 0.0, CalculateCorrelation([]float64{5, 5, 5}, []float64{1, 2, 3}), "zero variance yields 0")
}

// -----------------------------------------------------------------------------

func TestCorrelationPValueBounds(t *testing.T) {
	assert.Equal(t, 1.0, CorrelationPValue(0.9, 2), "too few points")
	assert.Equal(t, 0.0, CorrelationPValue(1.0, 10), "perfect correlation")

	p := CorrelationPValue(0.0, 10)
	assert.InDelta(t, 1.0, p, 1e-6, "no correlation is maximally unsurprising")
}

// -----------------------------------------------------------------------------

func TestCorrelationPValueKnownValue(t *testing.T) {
	// r=0.9, n=5 -> t ~ 3.576 with 3 degrees of freedom -> p ~ 0.037
	p := CorrelationPValue(0.9, 5)
	assert.InDelta(t, 0.037, p, 0.005)
}

// -----------------------------------------------------------------------------

func TestCorrelationPValueMonotonicInStrength(t *testing.T) {
	weak := CorrelationPValue(0.2, 20)
	moderate := CorrelationPValue(0.5, 20)
	strong := CorrelationPValue(0.8, 20)

	assert.Greater(t, weak, moderate)
	assert.Greater(t, moderate, strong)
}

// -----------------------------------------------------------------------------

func TestRegularizedIncompleteBeta(t *testing.T) {
	// I_x(1,1) is the uniform CDF
	assert.InDelta(t, 0.25, RegularizedIncompleteBeta(1, 1, 0.25), 1e-9)
	assert.InDelta(t, 0.75, RegularizedIncompleteBeta(1, 1, 0.75), 1e-9)

	// Symmetric case
	assert.InDelta(t, 0.5, RegularizedIncompleteBeta(2, 2, 0.5), 1e-9)

	assert.Equal(t, 0.0, RegularizedIncompleteBeta(2, 3, 0))
	assert.Equal(t, 1.0, RegularizedIncompleteBeta(2, 3, 1))
}
