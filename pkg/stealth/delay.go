package stealth

import (
	"math"
	"math/rand"
	"time"
)

// HumanDelay returns clamp(uniform(min,max) + triangular(±jitter), min, +inf),
// the jitter formula from spec.md §4.7.
func HumanDelay(min, max, jitter time.Duration) time.Duration {
	if max < min {
		max = min
	}
	base := min
	if max > min {
		base += time.Duration(rand.Int63n(int64(max - min)))
	}
	delay := base + triangular(jitter)
	if delay < min {
		delay = min
	}
	return delay
}

// triangular samples a triangular distribution over [-jitter, +jitter]
// peaked at 0, approximated as the average of two uniform draws.
func triangular(jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return 0
	}
	a := rand.Float64()*2 - 1
	b := rand.Float64()*2 - 1
	avg := (a + b) / 2
	return time.Duration(avg * float64(jitter))
}

// ErrorStreakMultiplier implements spec.md §4.2 step 3: multiply the
// delay by 2^e, clamping the result to 5 minutes. The anti-periodicity
// factor the engine applies afterwards can still scale it up to 1.3x.
func ErrorStreakMultiplier(delay time.Duration, errorStreak int) time.Duration {
	if errorStreak <= 0 {
		return delay
	}
	multiplier := math.Pow(2, float64(errorStreak))
	scaled := time.Duration(float64(delay) * multiplier)
	const cap = 5 * time.Minute
	if scaled > cap {
		return cap
	}
	return scaled
}

// AntiPeriodicityFactor returns a random multiplier in [0.7, 1.3] applied
// to defeat periodicity detection (spec.md §4.2 step 4).
func AntiPeriodicityFactor() float64 {
	return 0.7 + rand.Float64()*0.6
}
