package evo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"lunargp/internal/ast"
	"lunargp/internal/genotype"
	"lunargp/internal/pick"
)

var (
	ErrEmptyPopulation = errors.New("population is empty")
	ErrUnscored        = errors.New("population has not been scored")
)

// maxPairDraws bounds the rejection sampling of distinct crossover parents.
const maxPairDraws = 64

// Individual is one tree and its score.
type Individual struct {
	Tree  *ast.Node
	Score ScoreCard
}

// Population is one generation of trees of a single kind. Scores are only
// valid after Score and are dropped by Add.
type Population struct {
	kind       ast.Kind
	size       int
	generation int
	trees      []*ast.Node
	scores     []ScoreCard
}

// New returns an empty population of capacity n.
func New(n, generation int, kind ast.Kind) *Population {
	return &Population{
		kind:       kind,
		size:       n,
		generation: generation,
		trees:      make([]*ast.Node, 0, n),
	}
}

// Seed returns a generation 0 population filled with n random trees.
func Seed(n int, kind ast.Kind, gen *genotype.Generator, rng *rand.Rand) *Population {
	p := New(n, 0, kind)
	for i := 0; i < n; i++ {
		p.trees = append(p.trees, gen.Random(kind, rng))
	}
	return p
}

func (p *Population) Kind() ast.Kind       { return p.kind }
func (p *Population) Capacity() int        { return p.size }
func (p *Population) Len() int             { return len(p.trees) }
func (p *Population) Generation() int      { return p.generation }
func (p *Population) Full() bool           { return len(p.trees) >= p.size }
func (p *Population) Scored() bool         { return len(p.trees) > 0 && len(p.scores) == len(p.trees) }
func (p *Population) Tree(i int) *ast.Node { return p.trees[i] }

// Scores returns a copy of the score vector, or nil before Score.
func (p *Population) Scores() []ScoreCard {
	if !p.Scored() {
		return nil
	}
	return append([]ScoreCard(nil), p.scores...)
}

// Add appends a tree. It fails when the population is full or the tree has
// the wrong kind.
func (p *Population) Add(tree *ast.Node) error {
	if tree == nil {
		return fmt.Errorf("add: tree is nil")
	}
	if tree.Kind() != p.kind {
		return fmt.Errorf("add %s to %s population", tree.Kind(), p.kind)
	}
	if p.Full() {
		return fmt.Errorf("add: population is full (%d)", p.size)
	}
	p.trees = append(p.trees, tree)
	p.scores = nil
	return nil
}

// Score replaces the score vector by scoring every tree with fn on up to
// workers goroutines. Each task gets its own rng, seeded from rng in index
// order, so results do not depend on scheduling.
func (p *Population) Score(ctx context.Context, fn ScoreFunc, rng *rand.Rand, workers int) error {
	if len(p.trees) == 0 {
		return ErrEmptyPopulation
	}
	if fn == nil {
		return fmt.Errorf("score function is required")
	}
	if workers <= 0 {
		workers = 1
	}
	seeds := make([]int64, len(p.trees))
	for i := range seeds {
		seeds[i] = rng.Int63()
	}

	scores := make([]ScoreCard, len(p.trees))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, tree := range p.trees {
		i, tree := i, tree
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			card, err := fn(gctx, tree, rand.New(rand.NewSource(seeds[i])))
			if err != nil {
				return fmt.Errorf("score individual %d: %w", i, err)
			}
			scores[i] = card
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	p.scores = scores
	return nil
}

func (p *Population) totals() []float64 {
	out := make([]float64, len(p.scores))
	for i, s := range p.scores {
		out[i] = s.Total()
	}
	return out
}

// TournamentIndex draws size indices uniformly with replacement and returns
// the best of them, the first drawn on ties. A size of at least the
// population size holds the tournament over the whole population.
func (p *Population) TournamentIndex(size int, rng *rand.Rand) (int, error) {
	return p.tournament(size, false, rng)
}

// TournamentIndexDistinct is TournamentIndex drawing distinct indices, so
// the size-1 worst individuals never win.
func (p *Population) TournamentIndexDistinct(size int, rng *rand.Rand) (int, error) {
	return p.tournament(size, true, rng)
}

func (p *Population) tournament(size int, distinct bool, rng *rand.Rand) (int, error) {
	if !p.Scored() {
		return 0, ErrUnscored
	}
	if size <= 0 {
		return 0, fmt.Errorf("tournament size must be > 0: %d", size)
	}
	n := len(p.trees)
	if size >= n {
		return ArgMax(p.totals()), nil
	}
	var draws []int
	if distinct {
		draws = sample(n, size, rng)
	} else {
		draws = make([]int, size)
		for i := range draws {
			draws[i] = rng.Intn(n)
		}
	}
	best := -1
	for _, candidate := range draws {
		if best < 0 || p.scores[candidate].Better(p.scores[best]) {
			best = candidate
		}
	}
	return best, nil
}

// sample returns k distinct indices from [0, n) in draw order using Floyd's
// algorithm.
func sample(n, k int, rng *rand.Rand) []int {
	seen := make(map[int]struct{}, k)
	out := make([]int, 0, k)
	for j := n - k; j < n; j++ {
		t := rng.Intn(j + 1)
		if _, dup := seen[t]; dup {
			t = j
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// TournamentWinner is TournamentIndex resolved to its individual.
func (p *Population) TournamentWinner(size int, rng *rand.Rand) (Individual, error) {
	i, err := p.TournamentIndex(size, rng)
	if err != nil {
		return Individual{}, err
	}
	return Individual{Tree: p.trees[i], Score: p.scores[i]}, nil
}

// Winner returns the best scored individual, the lowest index on ties.
func (p *Population) Winner() (Individual, error) {
	if !p.Scored() {
		return Individual{}, ErrUnscored
	}
	i := ArgMax(p.totals())
	return Individual{Tree: p.trees[i], Score: p.scores[i]}, nil
}

// pickTwo returns two distinct tournament winners. After maxPairDraws equal
// draws the second index is taken uniformly from the others.
func (p *Population) pickTwo(size int, distinct bool, rng *rand.Rand) (int, int, error) {
	if len(p.trees) < 2 {
		return 0, 0, fmt.Errorf("crossover needs two individuals, have %d", len(p.trees))
	}
	a, err := p.tournament(size, distinct, rng)
	if err != nil {
		return 0, 0, err
	}
	for i := 0; i < maxPairDraws; i++ {
		b, err := p.tournament(size, distinct, rng)
		if err != nil {
			return 0, 0, err
		}
		if b != a {
			return a, b, nil
		}
	}
	b := rng.Intn(len(p.trees) - 1)
	if b >= a {
		b++
	}
	return a, b, nil
}

// Operation is one way of producing offspring.
type Operation string

const (
	OpReproduce Operation = "reproduce"
	OpMutate    Operation = "mutate"
	OpCrossover Operation = "crossover"
)

// EvolveWeights are the relative frequencies of the three operations.
type EvolveWeights struct {
	Reproduce int `yaml:"reproduce"`
	Mutate    int `yaml:"mutate"`
	Crossover int `yaml:"crossover"`
}

func DefaultEvolveWeights() EvolveWeights {
	return EvolveWeights{Reproduce: 10, Mutate: 10, Crossover: 10}
}

func (w EvolveWeights) choices() []pick.Choice[Operation] {
	return []pick.Choice[Operation]{
		{Weight: w.Reproduce, Value: OpReproduce},
		{Weight: w.Mutate, Value: OpMutate},
		{Weight: w.Crossover, Value: OpCrossover},
	}
}

// EvolveConfig controls one call to Evolve.
type EvolveConfig struct {
	TournamentSize int
	Weights        EvolveWeights
	Mutator        *Mutator
	// Distinct draws tournament entrants without replacement.
	Distinct bool
	// Logger receives one debug record per operation when set.
	Logger  *slog.Logger
	Metrics *Metrics
}

// Evolve builds the next generation from tournament winners of the scored
// population. The result has as many trees as p, the same capacity and kind,
// generation+1 and no scores.
func (p *Population) Evolve(ctx context.Context, cfg EvolveConfig, rng *rand.Rand) (*Population, error) {
	if !p.Scored() {
		return nil, ErrUnscored
	}
	if cfg.Mutator == nil {
		return nil, fmt.Errorf("mutator is required")
	}
	choices := cfg.Weights.choices()
	if len(p.trees) < 2 {
		choices[2].Weight = 0
	}
	debug := cfg.Logger != nil && cfg.Logger.Enabled(ctx, slog.LevelDebug)

	target := len(p.trees)
	next := New(p.size, p.generation+1, p.kind)
	for next.Len() < target {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		op, err := pick.Choose(rng, choices)
		if err != nil {
			return nil, fmt.Errorf("choose operation: %w", err)
		}
		switch op {
		case OpReproduce:
			i, err := p.tournament(cfg.TournamentSize, cfg.Distinct, rng)
			if err != nil {
				return nil, err
			}
			next.trees = append(next.trees, p.trees[i].Clone())
			if debug {
				cfg.Logger.Debug("reproduce", "generation", next.generation, "parent", i, "tree", p.trees[i].String())
			}
		case OpMutate:
			i, err := p.tournament(cfg.TournamentSize, cfg.Distinct, rng)
			if err != nil {
				return nil, err
			}
			child, err := cfg.Mutator.Mutate(p.trees[i], rng)
			if err != nil {
				return nil, err
			}
			next.trees = append(next.trees, child)
			if debug {
				cfg.Logger.Debug("mutate", "generation", next.generation, "parent", i, "before", p.trees[i].String(), "after", child.String())
			}
		case OpCrossover:
			a, b, err := p.pickTwo(cfg.TournamentSize, cfg.Distinct, rng)
			if err != nil {
				return nil, err
			}
			childA, childB, err := CrossOver(p.trees[a], p.trees[b], rng)
			if err != nil {
				return nil, err
			}
			next.trees = append(next.trees, childA)
			if next.Len() < target {
				next.trees = append(next.trees, childB)
			}
			if debug {
				cfg.Logger.Debug("crossover", "generation", next.generation, "parents", []int{a, b}, "child_a", childA.String(), "child_b", childB.String())
			}
		}
		cfg.Metrics.observeOperation(op)
	}
	return next, nil
}
