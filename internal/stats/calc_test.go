package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tapmeter/internal/interval"
)

func deltas(ms ...uint64) []interval.Delta {
	out := make([]interval.Delta, len(ms))
	for i, m := range ms {
		out[i] = interval.Delta{Millis: m, Z: i%2 == 1}
	}
	return out
}

func TestCalc_AlternatingSteady(t *testing.T) {
	d := []interval.Delta{
		{Millis: 600, Z: false},
		{Millis: 600, Z: true},
		{Millis: 600, Z: false},
		{Millis: 600, Z: true},
	}
	s, err := Calc(d, interval.Sum(d))
	require.NoError(t, err)

	assert.Equal(t, 25.0, s.BPM)
	assert.Equal(t, 0.0, s.UR)
	assert.Equal(t, 0.0, s.ZX)
}

func TestCalc_IdenticalIntervalsHaveZeroUR(t *testing.T) {
	for _, n := range []int{2, 3, 20, 500} {
		d := make([]interval.Delta, n)
		for i := range d {
			d[i] = interval.Delta{Millis: 137, Z: i%3 == 0}
		}
		s, err := Calc(d, interval.Sum(d))
		require.NoError(t, err)
		assert.Zero(t, s.UR, "n=%d", n)
	}
}

func TestCalc_SampleDeviation(t *testing.T) {
	// mean 150, deviations 50 each, variance 4*2500/3
	d := deltas(100, 200, 100, 200)
	s, err := Calc(d, interval.Sum(d))
	require.NoError(t, err)

	want := math.Sqrt(10000.0/3.0) * 10
	assert.InDelta(t, want, s.UR, 1e-9)
	assert.Equal(t, 100.0, s.BPM)
}

func TestCalc_TruncatedMean(t *testing.T) {
	// sum 301, n 2, avg truncates to 150
	d := deltas(150, 151)
	s, err := Calc(d, 301)
	require.NoError(t, err)

	assert.Equal(t, 100.0, s.BPM)
	// deviations 0 and 1 against the truncated mean
	assert.InDelta(t, 10.0, s.UR, 1e-9)
}

func TestCalc_HugeDeviationDoesNotWrap(t *testing.T) {
	// each squared deviation is 2.5e19, past the uint64 range
	d := deltas(0, 10_000_000_000)
	s, err := Calc(d, 10_000_000_000)
	require.NoError(t, err)

	want := math.Sqrt(5e19) * 10
	assert.InEpsilon(t, want, s.UR, 1e-12)
	assert.False(t, s.HasNaN())
}

func TestCalc_Balance(t *testing.T) {
	t.Run("equal channel time", func(t *testing.T) {
		d := []interval.Delta{{Millis: 100, Z: true}, {Millis: 300, Z: false}, {Millis: 300, Z: true}, {Millis: 100, Z: false}}
		s, err := Calc(d, interval.Sum(d))
		require.NoError(t, err)
		assert.Equal(t, 0.0, s.ZX)
	})

	t.Run("all Z", func(t *testing.T) {
		d := []interval.Delta{{Millis: 100, Z: true}, {Millis: 120, Z: true}}
		s, err := Calc(d, interval.Sum(d))
		require.NoError(t, err)
		assert.Equal(t, -0.5, s.ZX)
	})

	t.Run("all X", func(t *testing.T) {
		d := []interval.Delta{{Millis: 100}, {Millis: 120}}
		s, err := Calc(d, interval.Sum(d))
		require.NoError(t, err)
		assert.Equal(t, 0.5, s.ZX)
	})

	t.Run("bounded", func(t *testing.T) {
		d := []interval.Delta{{Millis: 10, Z: true}, {Millis: 990}, {Millis: 45, Z: true}, {Millis: 7}}
		s, err := Calc(d, interval.Sum(d))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, s.ZX, -0.5)
		assert.LessOrEqual(t, s.ZX, 0.5)
	})
}

func TestCalc_ZeroSum(t *testing.T) {
	d := deltas(0, 0, 0)
	s, err := Calc(d, 0)
	require.NoError(t, err)

	assert.Equal(t, 0.0, s.BPM)
	assert.Equal(t, 0.0, s.UR)
	assert.Equal(t, 0.0, s.ZX)
	assert.False(t, s.HasNaN())
}

func TestCalc_Errors(t *testing.T) {
	_, err := Calc(nil, 0)
	assert.ErrorIs(t, err, ErrWindowTooShort)

	_, err = Calc(deltas(100), 100)
	assert.ErrorIs(t, err, ErrWindowTooShort)

	d := []interval.Delta{{Millis: 100, Z: true}, {Millis: 100, Z: true}}
	_, err = Calc(d, 50)
	assert.ErrorIs(t, err, ErrSumMismatch)
}

func TestStats_String(t *testing.T) {
	s := Stats{BPM: 180.4, UR: 95.6, ZX: -0.031}
	assert.Equal(t, "(BPM: 180, UR: 96, ZX: -3%)", s.String())
}
