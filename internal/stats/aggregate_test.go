package stats

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_StringAndParse(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	k, err := ParseKind(" ur ")
	require.NoError(t, err)
	assert.Equal(t, KindUR, k)

	_, err = ParseKind("accuracy")
	assert.Error(t, err)
	assert.Equal(t, "Kind(9)", Kind(9).String())
}

func TestSelect(t *testing.T) {
	results := []Stats{
		{BPM: 150, UR: 90, ZX: 0.10},
		{BPM: 180, UR: 120, ZX: -0.02},
		{BPM: 180, UR: 70, ZX: 0.02},
		{BPM: 160, UR: 70, ZX: 0.30},
	}

	best, ok := Select(results, KindBPM)
	require.True(t, ok)
	assert.Equal(t, results[1], best, "tie keeps the first window")

	best, ok = Select(results, KindUR)
	require.True(t, ok)
	assert.Equal(t, results[2], best)

	best, ok = Select(results, KindZX)
	require.True(t, ok)
	assert.Equal(t, results[1], best)
}

func TestSelect_SkipsNaN(t *testing.T) {
	results := []Stats{
		{BPM: math.NaN(), UR: 1, ZX: 0},
		{BPM: 100, UR: math.NaN(), ZX: 0},
		{BPM: 90, UR: 80, ZX: 0.1},
	}
	for _, k := range Kinds {
		best, ok := Select(results, k)
		require.True(t, ok, k.String())
		assert.Equal(t, results[2], best, k.String())
	}

	_, ok := Select(results[:2], KindBPM)
	assert.False(t, ok)

	_, ok = Select(nil, KindUR)
	assert.False(t, ok)
}

func TestScheduledStep(t *testing.T) {
	assert.Equal(t, 1, ScheduledStep(4))
	assert.Equal(t, 1, ScheduledStep(450))
	assert.Equal(t, 10, ScheduledStep(500))
	assert.Equal(t, 10, ScheduledStep(1500))
	assert.Equal(t, 50, ScheduledStep(2000))
	assert.Equal(t, 1, UnitStep(2000))
}

func TestExportWindows(t *testing.T) {
	assert.Len(t, ExportWindows, 23)
	for i := 1; i < len(ExportWindows); i++ {
		assert.Less(t, ExportWindows[i-1], ExportWindows[i])
	}
	assert.Equal(t, 20, ExportWindows[0])
	assert.Equal(t, 2000, ExportWindows[len(ExportWindows)-1])
}

func TestAggregate_SkipsLongWindows(t *testing.T) {
	d := deltas(make20()...)
	rows, err := Aggregate(d, ExportWindows, ScheduledStep)
	require.NoError(t, err)

	require.Len(t, rows, 3)
	for i, k := range Kinds {
		assert.Equal(t, 20, rows[i].Window)
		assert.Equal(t, k, rows[i].Kind)
	}

	rows, err = Aggregate(d[:19], ExportWindows, ScheduledStep)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAggregate_RowOrder(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	d := randomDeltas(r, 600)

	rows, err := Aggregate(d, ExportWindows, ScheduledStep)
	require.NoError(t, err)

	// 20..500 fit, 600 and up do not
	var sizes []int
	for _, w := range ExportWindows {
		if w <= 600 {
			sizes = append(sizes, w)
		}
	}
	require.Len(t, rows, len(sizes)*len(Kinds))
	for i, row := range rows {
		assert.Equal(t, sizes[i/3], row.Window)
		assert.Equal(t, Kinds[i%3], row.Kind)
	}
}

func TestAggregate_BestMatchesScan(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	d := randomDeltas(r, 700)

	rows, err := Aggregate(d, []int{40, 500}, ScheduledStep)
	require.NoError(t, err)

	for _, row := range rows {
		results, err := Scan(d, row.Window, ScheduledStep(row.Window))
		require.NoError(t, err)
		for _, s := range results {
			assert.False(t, row.Kind.Better(s, row.Stats), "window %d %s", row.Window, row.Kind)
		}
	}
}

func TestAggregate_NilStepScansEveryOffset(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	d := randomDeltas(r, 520)

	unit, err := Aggregate(d, []int{500}, nil)
	require.NoError(t, err)
	sched, err := Aggregate(d, []int{500}, ScheduledStep)
	require.NoError(t, err)

	require.Len(t, unit, 3)
	require.Len(t, sched, 3)
	// the unit scan sees a superset of offsets, so it can only do better
	assert.GreaterOrEqual(t, unit[0].Stats.BPM, sched[0].Stats.BPM)
	assert.LessOrEqual(t, unit[1].Stats.UR, sched[1].Stats.UR)
}

func make20() []uint64 {
	ms := make([]uint64, 20)
	for i := range ms {
		ms[i] = uint64(140 + i%5)
	}
	return ms
}

