package estimation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSmoother_FirstUpdateReturnsRaw(t *testing.T) {
	s := NewArrivalRateSmoother(0.3)

	_, ok := s.Current()
	assert.False(t, ok)

	assert.Equal(t, 4.2, s.Update(4.2))
	got, ok := s.Current()
	assert.True(t, ok)
	assert.Equal(t, 4.2, got)
}

func TestSmoother_SecondUpdateWeightsNewest(t *testing.T) {
	alpha, x1, x2 := 0.3, 2.0, 5.0
	s := NewArrivalRateSmoother(alpha)
	s.Update(x1)
	assert.Equal(t, alpha*x2+(1-alpha)*x1, s.Update(x2))
	got, _ := s.Current()
	assert.InDelta(t, 2.9, got, 1e-12)
}

func TestSmoother_ZeroDecaysGradually(t *testing.T) {
	s := NewArrivalRateSmoother(0.3)
	s.Update(10)

	prev := 10.0
	for i := 0; i < 5; i++ {
		next := s.Update(0)
		assert.Greater(t, next, 0.0)
		assert.Less(t, next, prev)
		prev = next
	}

	passthrough := NewArrivalRateSmoother(1)
	passthrough.Update(10)
	assert.Equal(t, 0.0, passthrough.Update(0))
}

func TestSmoother_CurrentDoesNotMutate(t *testing.T) {
	s := NewArrivalRateSmoother(0.5)
	s.Update(1)
	s.Current()
	s.Current()
	assert.Equal(t, 2.0, s.Update(3))
}

func TestSmoother_InvalidAlphaFallsBack(t *testing.T) {
	for _, alpha := range []float64{0, -0.2, 1.5} {
		assert.Equal(t, DefaultAlpha, NewArrivalRateSmoother(alpha).Alpha())
	}
	assert.Equal(t, 1.0, NewArrivalRateSmoother(1).Alpha())
}
