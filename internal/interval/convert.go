package interval

import (
	"errors"
	"fmt"
	"math/bits"

	"tapmeter/internal/clock"
)

// ErrOverflow is returned when a converted interval does not fit in 64 bits.
var ErrOverflow = errors.New("interval: converted value overflows uint64")

// ToMillis converts raw ticks to whole milliseconds, truncating.
func ToMillis(ticks uint64, rate clock.Rate) (uint64, error) {
	if err := rate.Validate(); err != nil {
		return 0, err
	}
	hi, lo := bits.Mul64(ticks, 1000)
	if hi >= uint64(rate) {
		return 0, ErrOverflow
	}
	ms, _ := bits.Div64(hi, lo, uint64(rate))
	return ms, nil
}

// Convert turns a snapshot of Records into millisecond Deltas using rate.
// A zero rate is rejected with clock.ErrUncalibrated.
func Convert(records []Record, rate clock.Rate) ([]Delta, error) {
	if err := rate.Validate(); err != nil {
		return nil, err
	}
	out := make([]Delta, len(records))
	for i, r := range records {
		ms, err := ToMillis(r.Ticks, rate)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out[i] = Delta{Millis: ms, Z: r.Z}
	}
	return out, nil
}
