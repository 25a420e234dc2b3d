package evo

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"lunargp/internal/ast"
	"lunargp/internal/model"
)

// Component is one labeled part of a score.
type Component = model.ScoreComponent

// ScoreFunc scores a single tree. It is called concurrently for different
// trees and must only use the rng it is handed.
type ScoreFunc func(ctx context.Context, tree *ast.Node, rng *rand.Rand) (ScoreCard, error)

// ScoreCard is a labeled decomposition of a fitness value. The total is
// always the sum of the component values.
type ScoreCard struct {
	components []Component
	total      float64
	trace      *model.Trace
}

func NewScoreCard(components ...Component) ScoreCard {
	return ScoreCard{}.Add(components...)
}

// WithTrace returns a copy of c carrying trace.
func (c ScoreCard) WithTrace(trace *model.Trace) ScoreCard {
	c.trace = trace
	return c
}

// Add returns a new card with more components appended. The receiver is
// left unchanged.
func (c ScoreCard) Add(more ...Component) ScoreCard {
	out := ScoreCard{
		components: make([]Component, 0, len(c.components)+len(more)),
		total:      c.total,
		trace:      c.trace,
	}
	out.components = append(out.components, c.components...)
	for _, m := range more {
		out.components = append(out.components, m)
		out.total += m.Value
	}
	return out
}

func (c ScoreCard) Total() float64 { return c.total }

func (c ScoreCard) Trace() *model.Trace { return c.trace }

// Components returns a copy of the labeled parts.
func (c ScoreCard) Components() []Component {
	return append([]Component(nil), c.components...)
}

// Better reports whether c strictly beats other.
func (c ScoreCard) Better(other ScoreCard) bool {
	return Beats(c.total, other.total)
}

func (c ScoreCard) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%.4f", c.total)
	if len(c.components) == 0 {
		return b.String()
	}
	b.WriteString(" [")
	for i, comp := range c.components {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%.4f", comp.Label, comp.Value)
	}
	b.WriteString("]")
	return b.String()
}
