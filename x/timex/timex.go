package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// Ms converts a millisecond count from configuration into a Duration.
func Ms(ms uint32) time.Duration { return time.Duration(ms) * time.Millisecond }

// SinceMs returns the milliseconds elapsed since a NowMs timestamp; never negative.
func SinceMs(tsMs int64) int64 {
	if d := NowMs() - tsMs; d > 0 {
		return d
	}
	return 0
}
