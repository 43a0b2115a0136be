package demo

import (
	"math/rand"
	"time"
)

const (
	DefaultJitter     = 200 * time.Millisecond
	DefaultMinRestart = 500 * time.Millisecond
)

// DrawJitter returns a whole-millisecond offset uniform in [-bound, +bound].
func DrawJitter(r *rand.Rand, bound time.Duration) time.Duration {
	ms := int64(bound / time.Millisecond)
	if ms <= 0 {
		return 0
	}
	return time.Duration(r.Int63n(2*ms+1)-ms) * time.Millisecond
}

// RestartDelay is max(floor, base+jitter).
func RestartDelay(base, jitter, floor time.Duration) time.Duration {
	if d := base + jitter; d > floor {
		return d
	}
	return floor
}
