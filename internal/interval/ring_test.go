package interval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(ticks uint64) Record {
	return Record{Ticks: ticks, Z: ticks%2 == 0}
}

func TestRing_OverwritesOldest(t *testing.T) {
	r := NewRing(3)
	a, b, c, d := rec(1), rec(2), rec(3), rec(4)
	for _, x := range []Record{a, b, c, d} {
		r.Push(x)
	}

	assert.Equal(t, []Record{b, c, d}, r.Snapshot())
	assert.Equal(t, 3, r.Len())
}

func TestRing_CapacityPlusK(t *testing.T) {
	const capacity = 50
	for _, k := range []int{1, 7, capacity, 3*capacity + 11} {
		r := NewRing(capacity)
		var all []Record
		for i := 0; i < capacity+k; i++ {
			x := rec(uint64(i))
			all = append(all, x)
			r.Push(x)
		}

		snap := r.Snapshot()
		require.Len(t, snap, capacity, "k=%d", k)
		assert.Equal(t, all[len(all)-capacity:], snap, "k=%d", k)
	}
}

func TestRing_PartialFill(t *testing.T) {
	r := NewRing(10)
	r.Push(rec(5))
	r.Push(rec(6))

	assert.Equal(t, []Record{rec(5), rec(6)}, r.Snapshot())
	assert.Equal(t, 10, r.Cap())
}

func TestRing_ClearAfterWrap(t *testing.T) {
	r := NewRing(4)
	for i := 0; i < 9; i++ {
		r.Push(rec(uint64(i)))
	}
	r.Clear()
	assert.Empty(t, r.Snapshot())

	r.Push(rec(100))
	assert.Equal(t, []Record{rec(100)}, r.Snapshot())
}

func TestRing_SnapshotIsCopy(t *testing.T) {
	r := NewRing(2)
	r.Push(rec(1))
	snap := r.Snapshot()
	snap[0].Ticks = 99

	assert.Equal(t, uint64(1), r.Snapshot()[0].Ticks)
}

func TestRing_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewRing(0).Cap())
}
