package evo

import "golang.org/x/exp/constraints"

// Beats reports whether candidate should replace incumbent under the
// partial order used for every score comparison: a NaN never beats a number,
// a number always beats a NaN and two NaNs never beat each other.
func Beats[F constraints.Float](candidate, incumbent F) bool {
	if candidate != candidate {
		return false
	}
	if incumbent != incumbent {
		return true
	}
	return candidate > incumbent
}

// ArgMax returns the index of the best value, the first one on ties. When
// every value is NaN the first index wins. It returns -1 for an empty slice.
func ArgMax[F constraints.Float](values []F) int {
	if len(values) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(values); i++ {
		if Beats(values[i], values[best]) {
			best = i
		}
	}
	return best
}
