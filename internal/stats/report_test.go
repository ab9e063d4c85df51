package stats

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tapmeter/internal/interval"
)

func TestSummarize_TooShort(t *testing.T) {
	_, err := Summarize(deltas(100), MonitorWindows, ScheduledStep, 20)
	assert.ErrorIs(t, err, ErrWindowTooShort)
}

func TestSummarize_SmallCapture(t *testing.T) {
	d := deltas(100, 120, 110, 130, 100)
	r, err := Summarize(d, MonitorWindows, ScheduledStep, 20)
	require.NoError(t, err)

	assert.Equal(t, 5, r.Count)
	require.Len(t, r.Windows, 1)
	assert.Equal(t, 4, r.Windows[0].Window)
	assert.Nil(t, r.Recent)

	lines := r.Lines()
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Total 5: (BPM: "))
	assert.True(t, strings.HasPrefix(lines[1], "4: Best BPM (BPM: "))
}

func TestSummarize_Recent(t *testing.T) {
	r := rand.New(rand.NewSource(9))
	d := randomDeltas(r, 30)
	for i := 10; i < 30; i++ {
		d[i].Millis = 150
	}

	rep, err := Summarize(d, MonitorWindows, ScheduledStep, 20)
	require.NoError(t, err)

	require.NotNil(t, rep.Recent)
	assert.Equal(t, 100.0, rep.Recent.BPM)
	assert.Zero(t, rep.Recent.UR)
	require.Len(t, rep.Windows, 2)
	assert.Equal(t, 20, rep.Windows[1].Window)
	// the steady tail is the steadiest 20-window
	assert.Zero(t, rep.Windows[1].UR.UR)
	assert.Contains(t, rep.String(), "Cur 20: (BPM: 100, UR: 0,")
}

func TestTrailing(t *testing.T) {
	d := make([]interval.Delta, 10)
	for i := range d {
		d[i] = interval.Delta{Millis: uint64(100 + 10*i), Z: i%2 == 0}
	}

	rows, err := Trailing(d, 8)
	require.NoError(t, err)
	require.Len(t, rows, 10)

	for i, row := range rows {
		assert.Equal(t, i+1, row.Press)
		assert.Equal(t, d[i].Millis, row.Millis)
		if i < 7 {
			assert.Nil(t, row.Stats, "press %d", row.Press)
			continue
		}
		require.NotNil(t, row.Stats, "press %d", row.Press)
		w := d[i-7 : i+1]
		want, err := Calc(w, interval.Sum(w))
		require.NoError(t, err)
		assert.Equal(t, want, *row.Stats)
	}
}

func TestTrailing_ShortCapture(t *testing.T) {
	rows, err := Trailing(deltas(100, 100, 100), 8)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Nil(t, row.Stats)
	}

	_, err = Trailing(deltas(100, 100), 1)
	assert.ErrorIs(t, err, ErrWindowTooShort)
}
