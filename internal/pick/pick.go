// Package pick implements weighted discrete choice.
package pick

import (
	"errors"
	"fmt"
	"math/rand"
)

var ErrNoWeight = errors.New("weights must sum to a positive value")

// Index draws a uniform integer in [0, sum(weights)) and returns the index of
// the first weight whose cumulative range contains it. Zero weights are never
// picked; negative weights are rejected.
func Index(rng *rand.Rand, weights []int) (int, error) {
	if rng == nil {
		return 0, fmt.Errorf("random source is required")
	}
	total := 0
	for i, w := range weights {
		if w < 0 {
			return 0, fmt.Errorf("weight %d is negative: %d", i, w)
		}
		total += w
	}
	if total <= 0 {
		return 0, ErrNoWeight
	}
	draw := rng.Intn(total)
	bound := 0
	for i, w := range weights {
		bound += w
		if draw < bound {
			return i, nil
		}
	}
	// unreachable: draw < total
	return len(weights) - 1, nil
}

// Choice pairs a weight with the value it selects.
type Choice[T any] struct {
	Weight int
	Value  T
}

// Choose returns the value of a weighted pick among choices.
func Choose[T any](rng *rand.Rand, choices []Choice[T]) (T, error) {
	weights := make([]int, len(choices))
	for i, c := range choices {
		weights[i] = c.Weight
	}
	i, err := Index(rng, weights)
	if err != nil {
		var zero T
		return zero, err
	}
	return choices[i].Value, nil
}

// Uniform returns a uniformly chosen element of items.
func Uniform[T any](rng *rand.Rand, items []T) (T, error) {
	if len(items) == 0 {
		var zero T
		return zero, fmt.Errorf("cannot choose from an empty set")
	}
	return items[rng.Intn(len(items))], nil
}
