package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AtLeast returns v, or lo when v is below it.
func AtLeast[T constraints.Ordered](v, lo T) T {
	if v < lo {
		return lo
	}
	return v
}

// Backoff returns base + n*step, capped at max. n counts consecutive failures.
func Backoff[T constraints.Integer](base, step T, n int, max T) T {
	d := base
	for i := 0; i < n; i++ {
		d += step
		if d >= max {
			return max
		}
	}
	return Clamp(d, base, max)
}
