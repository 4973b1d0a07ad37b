package logmath

import "math"

// LogZero represents ln(0) in float log-domain arithmetic.
const LogZero = -1e30

// AddLn returns ln(exp(a) + exp(b)) in a numerically stable way.
// Differences below -36 are dropped since exp(-36) is under float64 precision.
func AddLn(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	if b <= LogZero {
		return a
	}
	d := b - a
	if d < -36.0 {
		return a
	}
	return a + math.Log1p(math.Exp(d))
}

// SubLn returns ln(exp(a) - exp(b)), assuming a > b.
func SubLn(a, b float64) float64 {
	if b <= LogZero {
		return a
	}
	if a <= b {
		return LogZero
	}
	return a + math.Log1p(-math.Exp(b-a))
}
