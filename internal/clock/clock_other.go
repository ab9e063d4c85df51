//go:build !linux && !darwin && !freebsd

package clock

import "time"

var epoch = time.Now()

func now() uint64 {
	return uint64(time.Since(epoch))
}
