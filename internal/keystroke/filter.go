package keystroke

import (
	"math"
	"math/bits"
	"time"

	"tapmeter/internal/clock"
	"tapmeter/internal/interval"
)

// DefaultReleaseThreshold is the minimum time between releasing a key and
// pressing it again for the press to count.
const DefaultReleaseThreshold = 30 * time.Millisecond

// Outcome tells the caller what to do with a filtered event.
type Outcome int

const (
	Ignore Outcome = iota
	Record         // append the returned record
	Reset          // export and clear the capture
	Quit           // end the session
	Other          // a key tapmeter doesn't use was pressed
)

func (o Outcome) String() string {
	switch o {
	case Ignore:
		return "ignore"
	case Record:
		return "record"
	case Reset:
		return "reset"
	case Quit:
		return "quit"
	case Other:
		return "other"
	}
	return "unknown"
}

// Filter turns raw key events into interval records.
//
// Auto-repeat is ignored. Every Z or X press becomes the new previous press;
// it also yields a record of the time since the previous press, provided
// there was one and the same key was released longer than the threshold
// ago. The threshold rejects contact chatter on the switch.
type Filter struct {
	threshold uint64 // ticks

	prev     uint64
	havePrev bool

	released     [2]uint64 // last release of Z, X
	haveReleased [2]bool
}

// NewFilter creates a filter for ticks at rate. A zero threshold uses
// DefaultReleaseThreshold; a negative one accepts any release gap.
func NewFilter(rate clock.Rate, threshold time.Duration) *Filter {
	if threshold == 0 {
		threshold = DefaultReleaseThreshold
	}
	var ticks uint64
	if threshold > 0 {
		hi, lo := bits.Mul64(uint64(rate), uint64(threshold))
		if hi < uint64(time.Second) {
			ticks, _ = bits.Div64(hi, lo, uint64(time.Second))
		} else {
			ticks = math.MaxUint64
		}
	}
	return &Filter{threshold: ticks}
}

// Apply feeds one event through the filter.
func (f *Filter) Apply(ev Event) (interval.Record, Outcome) {
	if ev.Action == Repeat {
		return interval.Record{}, Ignore
	}

	switch ev.Key {
	case KeyZ, KeyX:
		slot := keySlot(ev.Key)
		if ev.Action == Release {
			f.released[slot] = ev.Ticks
			f.haveReleased[slot] = true
			return interval.Record{}, Ignore
		}

		rec, ok := interval.Record{}, false
		if f.havePrev && f.settled(slot, ev.Ticks) {
			rec = interval.Record{Ticks: ev.Ticks - f.prev, Z: ev.Key == KeyZ}
			ok = ev.Ticks >= f.prev
		}
		f.prev, f.havePrev = ev.Ticks, true
		if ok {
			return rec, Record
		}
		return interval.Record{}, Ignore

	case KeyReset:
		if ev.Action != Press {
			return interval.Record{}, Ignore
		}
		f.Clear()
		return interval.Record{}, Reset

	case KeyQuit:
		if ev.Action != Press {
			return interval.Record{}, Ignore
		}
		return interval.Record{}, Quit
	}

	if ev.Action == Press {
		return interval.Record{}, Other
	}
	return interval.Record{}, Ignore
}

// Clear forgets the previous press, so the next press starts a new run.
func (f *Filter) Clear() {
	f.prev, f.havePrev = 0, false
}

// settled reports whether the key in slot was released long enough ago.
func (f *Filter) settled(slot int, now uint64) bool {
	if !f.haveReleased[slot] || now < f.released[slot] {
		return true
	}
	return now-f.released[slot] > f.threshold
}

func keySlot(k Key) int {
	if k == KeyZ {
		return 0
	}
	return 1
}
