package progress

import "math"

// Round2 rounds to two decimal places with half-to-even ties so independent
// recomputes of the same average always agree, and `== 100` completion
// checks are stable across runs.
func Round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

func Clamp100(v float64) float64 {
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return v
}

// Monotonic is the single point where a stored progress value may change
// from a leaf-driven recompute: it returns new when old < new <= 100, 100
// when new overshoots, otherwise old.
func Monotonic(old, proposed float64) float64 {
	proposed = Clamp100(proposed)
	if proposed > old {
		return proposed
	}
	return old
}

// Average returns the rounded mean of values over n slots; slots without a
// value contribute zero. n <= 0 yields 0.
func Average(sum float64, n int) float64 {
	if n <= 0 {
		return 0
	}
	return Round2(sum / float64(n))
}
