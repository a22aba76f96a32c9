package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolatilityZeroUntilTwoReturns(t *testing.T) {
	tr := NewVolatilityTracker(100, 525600)

	assert.Equal(t, 0.0, tr.Current().LongTerm)

	tr.Update(100) // no prior, no return yet
	assert.Equal(t, 0.0, tr.Current().LongTerm)

	tr.Update(101) // first return
	assert.Equal(t, 0.0, tr.Current().LongTerm)

	tr.Update(102) // second return
	v := tr.Current()
	assert.Greater(t, v.LongTerm, 0.0)
	assert.Greater(t, v.ShortTerm, 0.0)
}

func TestVolatilityInstantaneousIsLastAbsReturn(t *testing.T) {
	tr := NewVolatilityTracker(100, 1)
	tr.Update(100)
	tr.Update(110)
	tr.Update(99)

	want := math.Abs(math.Log(99.0 / 110.0))
	assert.InDelta(t, want, tr.Current().Instantaneous, 1e-12)
}

func TestVolatilityConstantPriceIsZero(t *testing.T) {
	tr := NewVolatilityTracker(100, 525600)
	for i := 0; i < 20; i++ {
		tr.Update(100)
	}

	v := tr.Current()
	assert.Equal(t, 0.0, v.ShortTerm)
	assert.Equal(t, 0.0, v.LongTerm)
}

func TestVolatilityShortTermUsesRecentReturns(t *testing.T) {
	tr := NewVolatilityTracker(100, 1)
	// A noisy stretch followed by a long calm stretch: the short-term
	// measure settles while the long-term one remembers the noise.
	prices := []float64{100, 120, 90, 130, 80}
	for _, p := range prices {
		tr.Update(p)
	}
	for i := 0; i < 30; i++ {
		tr.Update(100)
	}

	v := tr.Current()
	assert.Less(t, v.ShortTerm, v.LongTerm)
}

func TestVolatilityIgnoresNonPositivePrices(t *testing.T) {
	tr := NewVolatilityTracker(100, 1)
	tr.Update(100)
	tr.Update(0)
	tr.Update(-5)

	require.Equal(t, 0.0, tr.Current().LongTerm)
	assert.Equal(t, -5.0, tr.LastPrice())
}

func TestVolatilityAnnualization(t *testing.T) {
	a := NewVolatilityTracker(100, 1)
	b := NewVolatilityTracker(100, 4)
	for _, p := range []float64{100, 105, 98, 103, 99} {
		a.Update(p)
		b.Update(p)
	}

	assert.InDelta(t, a.Current().LongTerm*2, b.Current().LongTerm, 1e-12)
}
