// Package interval holds the captured press intervals: the raw Record produced
// by the input path, the fixed-capacity Ring that stores them, the
// lock-guarded History shared between the capture and reporting goroutines,
// and the conversion of raw ticks into millisecond Deltas.
package interval

// DefaultCapacity is the number of intervals retained before the oldest are
// overwritten.
const DefaultCapacity = 10_000

// Record is the time elapsed since the previous accepted press, in raw clock
// ticks, and whether the press came from the Z key (false means X).
type Record struct {
	Ticks uint64
	Z     bool
}

// Delta is a Record converted to whole milliseconds.
type Delta struct {
	Millis uint64
	Z      bool
}

// Sum returns the total milliseconds of ds.
func Sum(ds []Delta) uint64 {
	var s uint64
	for _, d := range ds {
		s += d.Millis
	}
	return s
}
