package scape

import (
	"context"
	"math/rand"

	"lunargp/internal/ast"
	"lunargp/internal/evo"
)

// Scape scores controller trees in a simulated environment.
type Scape interface {
	Name() string
	Score(ctx context.Context, tree *ast.Node, rng *rand.Rand) (evo.ScoreCard, error)
}

// ModeAwareScape optionally exposes evaluation mode routing for training and
// benchmark flows.
type ModeAwareScape interface {
	Scape
	ScoreMode(ctx context.Context, tree *ast.Node, rng *rand.Rand, mode string) (evo.ScoreCard, error)
}

const (
	ModeTraining  = "gt"
	ModeBenchmark = "benchmark"
)
