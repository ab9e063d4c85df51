package stats

import "tapmeter/internal/interval"

// rollingSum walks window offsets 0, step, 2*step, ... keeping the window sum
// up to date by subtracting the intervals that leave and adding the ones that
// enter, instead of summing every window from scratch.
type rollingSum struct {
	deltas  []interval.Delta
	window  int
	step    int
	offset  int
	sum     uint64
	started bool
}

func (r *rollingSum) next() (int, uint64, bool) {
	if !r.started {
		if r.window > len(r.deltas) {
			return 0, 0, false
		}
		r.started = true
		r.sum = interval.Sum(r.deltas[:r.window])
		return 0, r.sum, true
	}

	next := r.offset + r.step
	if next+r.window > len(r.deltas) {
		return 0, 0, false
	}
	// Unsigned wrap-around keeps this exact even when step > window.
	for i := 0; i < r.step; i++ {
		r.sum -= r.deltas[r.offset+i].Millis
		r.sum += r.deltas[r.offset+r.window+i].Millis
	}
	r.offset = next
	return r.offset, r.sum, true
}

// Positions returns how many windows Scan produces for the given sizes.
func Positions(n, window, step int) int {
	if window < 1 || step < 1 || n < window {
		return 0
	}
	return (n-window)/step + 1
}

// WindowSums returns the window sum at every scan offset.
func WindowSums(deltas []interval.Delta, window, step int) ([]uint64, error) {
	if window < 1 {
		return nil, ErrWindowTooShort
	}
	if step < 1 {
		return nil, ErrInvalidStep
	}
	sums := make([]uint64, 0, Positions(len(deltas), window, step))
	rs := rollingSum{deltas: deltas, window: window, step: step}
	for {
		_, sum, ok := rs.next()
		if !ok {
			return sums, nil
		}
		sums = append(sums, sum)
	}
}

// Scan returns the Stats of every window of the given size starting at
// offsets 0, step, 2*step, ... while the window fits. The window sum is
// maintained incrementally; the deviation term is recomputed over the full
// window each time. A sequence shorter than window yields no results.
func Scan(deltas []interval.Delta, window, step int) ([]Stats, error) {
	if window < 2 {
		return nil, ErrWindowTooShort
	}
	if step < 1 {
		return nil, ErrInvalidStep
	}

	out := make([]Stats, 0, Positions(len(deltas), window, step))
	rs := rollingSum{deltas: deltas, window: window, step: step}
	for {
		offset, sum, ok := rs.next()
		if !ok {
			return out, nil
		}
		s, err := Calc(deltas[offset:offset+window], sum)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
}
