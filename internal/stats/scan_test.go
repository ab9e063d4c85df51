package stats

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tapmeter/internal/interval"
)

func randomDeltas(r *rand.Rand, n int) []interval.Delta {
	out := make([]interval.Delta, n)
	for i := range out {
		out[i] = interval.Delta{Millis: uint64(50 + r.Intn(400)), Z: r.Intn(2) == 0}
	}
	return out
}

func TestWindowSums_MatchNaive(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	d := randomDeltas(r, 257)

	for _, window := range []int{1, 2, 3, 8, 20, 100, 257} {
		for _, step := range []int{1, 2, 3, 7, 10, 50, 300} {
			sums, err := WindowSums(d, window, step)
			require.NoError(t, err)
			require.Len(t, sums, Positions(len(d), window, step), "window=%d step=%d", window, step)

			for i, got := range sums {
				off := i * step
				want := interval.Sum(d[off : off+window])
				if got != want {
					t.Fatalf("window=%d step=%d offset=%d: incremental %d, naive %d", window, step, off, got, want)
				}
			}
		}
	}
}

func TestScan_Positions(t *testing.T) {
	d := deltas(100, 110, 120, 130, 140, 150, 160, 170, 180, 190)

	tests := []struct {
		window, step, want int
	}{
		{2, 1, 9},
		{10, 1, 1},
		{4, 3, 3}, // offsets 0, 3, 6
		{4, 2, 4}, // offsets 0, 2, 4, 6
		{5, 10, 1},
		{11, 1, 0},
	}
	for _, tt := range tests {
		got, err := Scan(d, tt.window, tt.step)
		require.NoError(t, err)
		assert.Len(t, got, tt.want, "window=%d step=%d", tt.window, tt.step)
	}
}

func TestScan_MatchesCalcAtEveryOffset(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	d := randomDeltas(r, 120)

	got, err := Scan(d, 20, 3)
	require.NoError(t, err)

	for i, s := range got {
		w := d[i*3 : i*3+20]
		want, err := Calc(w, interval.Sum(w))
		require.NoError(t, err)
		assert.Equal(t, want, s, "offset %d", i*3)
	}
}

func TestScan_ShortInputIsEmpty(t *testing.T) {
	got, err := Scan(deltas(100, 100, 100), 4, 1)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Scan(nil, 20, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScan_Errors(t *testing.T) {
	d := deltas(100, 100, 100)

	_, err := Scan(d, 1, 1)
	assert.ErrorIs(t, err, ErrWindowTooShort)

	_, err = Scan(d, 2, 0)
	assert.ErrorIs(t, err, ErrInvalidStep)

	_, err = WindowSums(d, 0, 1)
	assert.ErrorIs(t, err, ErrWindowTooShort)
}

func TestPositions(t *testing.T) {
	assert.Equal(t, 0, Positions(3, 4, 1))
	assert.Equal(t, 1, Positions(4, 4, 1))
	assert.Equal(t, 3, Positions(2100, 2000, 50))
	assert.Equal(t, 0, Positions(10, 2, 0))
}

func BenchmarkScan(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	d := randomDeltas(r, interval.DefaultCapacity)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Scan(d, 500, 10); err != nil {
			b.Fatal(err)
		}
	}
}
