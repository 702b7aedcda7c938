// Package numeric provides small pure helpers for the sync pipeline's
// derivations: safe float coercion, CAGR, clamping and averaging.
package numeric

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Finite reports whether v is a usable number (not NaN, not ±Inf).
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// FinitePtr reports whether p points at a usable number.
func FinitePtr(p *float64) bool {
	return p != nil && Finite(*p)
}

// Ptr returns a pointer to v.
func Ptr(v float64) *float64 {
	return &v
}

// Value dereferences p, returning 0 for nil.
func Value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// CAGR computes the compound annual growth rate between start and end over
// the given number of years, expressed in percent. Returns 0 when the inputs
// cannot produce a meaningful rate (non-finite, non-positive, zero years).
func CAGR(start, end float64, years int) float64 {
	if years <= 0 || !Finite(start) || !Finite(end) {
		return 0
	}
	if start <= 0 || end <= 0 {
		return 0
	}
	return (math.Pow(end/start, 1/float64(years)) - 1) * 100
}

// Clamp restricts v to the inclusive range [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Mean averages the finite values in vs. Returns 0 for an empty or
// all-non-finite input.
func Mean(vs []float64) float64 {
	finite := make([]float64, 0, len(vs))
	for _, v := range vs {
		if Finite(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return 0
	}
	return stat.Mean(finite, nil)
}
