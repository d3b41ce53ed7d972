package vmath

import "math"

// Clamp limits v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Lerp interpolates from a to b by t, unclamped
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Wrap folds v into [0, period); non-positive period returns 0
func Wrap(v, period float64) float64 {
	if period <= 0 {
		return 0
	}
	v = math.Mod(v, period)
	if v < 0 {
		v += period
	}
	return v
}

// EaseInOutSine maps t in [0,1] onto a smooth 0..1 curve
func EaseInOutSine(t float64) float64 {
	t = Clamp(t, 0, 1)
	return -(math.Cos(math.Pi*t) - 1) / 2
}

// Pulse returns a 0..1..0 triangle over period, eased, for marker breathing
func Pulse(elapsed, period float64) float64 {
	if period <= 0 {
		return 1
	}
	phase := Wrap(elapsed, period) / period
	if phase > 0.5 {
		phase = 1 - phase
	}
	return EaseInOutSine(phase * 2)
}
