package layout

import "time"

// processStart anchors the monotonic clock used for slot header timestamps.
// Reading nanoseconds since this fixed point (rather than time.Now().UnixNano,
// which is wall-clock and can jump on NTP correction) keeps publishers on a
// CLOCK_MONOTONIC-equivalent timestamp; monotonic and wall-clock readings
// are never mixed within a region.
var processStart = time.Now()

// Clock is a reusable monotonic time source. The zero value is ready to use.
type Clock struct{}

// NowNanos returns nanoseconds elapsed since the package was loaded. It never
// goes backwards within a process and is cheap enough for the publish hot
// path (time.Since is a single subtraction once the runtime monotonic reading
// is taken).
func (Clock) NowNanos() uint64 {
	return uint64(time.Since(processStart).Nanoseconds())
}
