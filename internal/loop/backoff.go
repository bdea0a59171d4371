package loop

import "time"

// backoffDelay computes the next cycle delay from the duplicate-run count:
// the base interval while frames keep changing, doubling per consecutive
// duplicate, clamped at max. Doubling step by step avoids shift overflow for
// large runs.
func backoffDelay(base, max time.Duration, dupRun int) time.Duration {
	if base >= max {
		return max
	}
	d := base
	for i := 0; i < dupRun; i++ {
		d <<= 1
		if d >= max || d <= 0 {
			return max
		}
	}
	return d
}

// saturated reports whether the delay has reached the configured maximum,
// which marks the segment as backoff-complete.
func saturated(delay, max time.Duration) bool {
	return delay >= max
}
