package interval

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistory_ConcurrentAppendAndSnapshot(t *testing.T) {
	h := NewHistory(100)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 10_000; i++ {
			h.Append(Record{Ticks: uint64(i)})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			snap := h.Snapshot()
			// Records are appended in increasing order, so any snapshot is sorted.
			for j := 1; j < len(snap); j++ {
				if snap[j].Ticks <= snap[j-1].Ticks {
					t.Errorf("snapshot out of order at %d", j)
					return
				}
			}
		}
	}()
	wg.Wait()

	assert.Equal(t, 100, h.Len())
}

func TestHistory_Drain(t *testing.T) {
	h := NewHistory(10)
	h.Append(Record{Ticks: 1, Z: true})
	h.Append(Record{Ticks: 2})

	got := h.Drain()
	assert.Equal(t, []Record{{Ticks: 1, Z: true}, {Ticks: 2}}, got)
	assert.Zero(t, h.Len())
	assert.Empty(t, h.Drain())
}

func TestHistory_Clear(t *testing.T) {
	h := NewHistory(10)
	h.Append(Record{Ticks: 1})
	h.Clear()
	assert.Zero(t, h.Len())
	assert.Equal(t, 10, h.Cap())
}
