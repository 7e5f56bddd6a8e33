package reactor

import "time"

// tscNow stands in for a hardware TSC read: a monotonic nanosecond counter.
// Every busy/idle accumulator in this package is expressed in these units.
func tscNow() uint64 {
	return uint64(time.Now().UnixNano())
}
