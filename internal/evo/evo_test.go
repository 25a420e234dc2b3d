package evo

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lunargp/internal/ast"
	"lunargp/internal/genotype"
)

func commandPopulation(t *testing.T) *Population {
	t.Helper()
	p := New(4, 1, ast.KindProgram)
	for _, c := range []ast.Command{ast.Skip, ast.Left, ast.Right, ast.Thrust} {
		require.NoError(t, p.Add(ast.Do(c)))
	}
	return p
}

// byOrdinal scores a Command program by its command's ordinal.
func byOrdinal(_ context.Context, tree *ast.Node, _ *rand.Rand) (ScoreCard, error) {
	return NewScoreCard(Component{Label: "ordinal", Value: float64(tree.Child(0).Command())}), nil
}

func TestScorePopulation(t *testing.T) {
	p := commandPopulation(t)
	require.NoError(t, p.Score(context.Background(), byOrdinal, rand.New(rand.NewSource(1)), 3))

	totals := make([]float64, 0, 4)
	for _, s := range p.Scores() {
		totals = append(totals, s.Total())
	}
	assert.Equal(t, []float64{0, 1, 2, 3}, totals)
}

func TestTournamentWinner(t *testing.T) {
	p := commandPopulation(t)
	rng := rand.New(rand.NewSource(11))
	require.NoError(t, p.Score(context.Background(), byOrdinal, rng, 1))

	wins := make(map[int]int)
	for i := 0; i < 4000; i++ {
		w, err := p.TournamentIndex(4, rng)
		require.NoError(t, err)
		assert.Equal(t, 3, w, "full tournament must return the best")

		w, err = p.TournamentIndex(3, rng)
		require.NoError(t, err)
		wins[w]++
	}
	// With replacement Skip wins a size 3 tournament 1/64 of the time and
	// Left 7/64; Right and Thrust share the rest.
	assert.Greater(t, wins[0], 0)
	assert.Less(t, wins[0], wins[1])
	assert.Less(t, wins[1], wins[2])
	assert.Less(t, wins[2], wins[3])
	assert.InDelta(t, 56.0/64, float64(wins[2]+wins[3])/4000, 0.03)

	winner, err := p.TournamentWinner(10, rng)
	require.NoError(t, err)
	assert.Equal(t, ast.Thrust, winner.Tree.Child(0).Command())
}

func TestTournamentSizeTwoCanPickTheWorst(t *testing.T) {
	p := commandPopulation(t)
	rng := rand.New(rand.NewSource(3))
	require.NoError(t, p.Score(context.Background(), byOrdinal, rng, 1))

	skips := 0
	for i := 0; i < 4000; i++ {
		w, err := p.TournamentIndex(2, rng)
		require.NoError(t, err)
		if w == 0 {
			skips++
		}
	}
	assert.InDelta(t, 1.0/16, float64(skips)/4000, 0.02)
}

func TestDistinctTournamentNeverPicksTheWorst(t *testing.T) {
	p := commandPopulation(t)
	rng := rand.New(rand.NewSource(11))
	require.NoError(t, p.Score(context.Background(), byOrdinal, rng, 1))

	for i := 0; i < 200; i++ {
		w, err := p.TournamentIndexDistinct(4, rng)
		require.NoError(t, err)
		assert.Equal(t, 3, w)

		w, err = p.TournamentIndexDistinct(3, rng)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, w, 2, "size 3 tournament must return Right or Thrust")

		w, err = p.TournamentIndexDistinct(2, rng)
		require.NoError(t, err)
		assert.NotEqual(t, 0, w)
	}
}

func TestTournamentRequiresScores(t *testing.T) {
	p := commandPopulation(t)
	_, err := p.TournamentIndex(2, rand.New(rand.NewSource(1)))
	require.ErrorIs(t, err, ErrUnscored)

	_, err = p.Winner()
	require.ErrorIs(t, err, ErrUnscored)
}

func TestWinnerTieBreaksOnFirstIndex(t *testing.T) {
	p := commandPopulation(t)
	flat := func(context.Context, *ast.Node, *rand.Rand) (ScoreCard, error) {
		return NewScoreCard(Component{Label: "flat", Value: 1}), nil
	}
	require.NoError(t, p.Score(context.Background(), flat, rand.New(rand.NewSource(1)), 2))
	w, err := p.Winner()
	require.NoError(t, err)
	assert.Equal(t, ast.Skip, w.Tree.Child(0).Command())
}

func TestNaNNeverWins(t *testing.T) {
	p := commandPopulation(t)
	nanForOdd := func(_ context.Context, tree *ast.Node, _ *rand.Rand) (ScoreCard, error) {
		c := tree.Child(0).Command()
		if c%2 == 1 {
			return NewScoreCard(Component{Label: "broken", Value: math.NaN()}), nil
		}
		return NewScoreCard(Component{Label: "ordinal", Value: float64(c)}), nil
	}
	rng := rand.New(rand.NewSource(5))
	require.NoError(t, p.Score(context.Background(), nanForOdd, rng, 4))

	w, err := p.Winner()
	require.NoError(t, err)
	assert.Equal(t, ast.Right, w.Tree.Child(0).Command())

	for i := 0; i < 100; i++ {
		idx, err := p.TournamentIndexDistinct(3, rng)
		require.NoError(t, err)
		assert.False(t, math.IsNaN(p.Scores()[idx].Total()))
	}
}

func TestAllNaNDoesNotPanic(t *testing.T) {
	p := commandPopulation(t)
	allNaN := func(context.Context, *ast.Node, *rand.Rand) (ScoreCard, error) {
		return NewScoreCard(Component{Label: "nan", Value: math.NaN()}), nil
	}
	rng := rand.New(rand.NewSource(5))
	require.NoError(t, p.Score(context.Background(), allNaN, rng, 2))

	w, err := p.Winner()
	require.NoError(t, err)
	assert.Equal(t, ast.Skip, w.Tree.Child(0).Command())
	_, err = p.TournamentIndex(2, rng)
	require.NoError(t, err)
}

func TestScoreCardAdditivity(t *testing.T) {
	card := NewScoreCard(
		Component{Label: "a", Value: 1.5},
		Component{Label: "b", Value: -0.5},
		Component{Label: "c", Value: 4},
	)
	assert.Equal(t, 5.0, card.Total())

	more := card.Add(Component{Label: "d", Value: 2}, Component{Label: "e", Value: -1})
	assert.Equal(t, 6.0, more.Total())
	assert.Len(t, more.Components(), 5)
	assert.Len(t, card.Components(), 3, "Add must not modify the receiver")
	assert.Equal(t, 0.0, NewScoreCard().Total())
}

func TestBeats(t *testing.T) {
	nan := math.NaN()
	assert.True(t, Beats(2.0, 1.0))
	assert.False(t, Beats(1.0, 1.0))
	assert.False(t, Beats(nan, 1.0))
	assert.True(t, Beats(1.0, nan))
	assert.False(t, Beats(nan, nan))
	assert.Equal(t, 2, ArgMax([]float64{nan, 1, 3, 3}))
	assert.Equal(t, 0, ArgMax([]float64{nan, nan}))
	assert.Equal(t, -1, ArgMax[float64](nil))
}

func TestOptimumKeeper(t *testing.T) {
	k := NewOptimumKeeper()
	_, _, _, ok := k.Best()
	require.False(t, ok)

	tree := ast.If(ast.True(), ast.Do(ast.Skip), ast.Do(ast.Thrust))
	require.True(t, k.Improved(tree, NewScoreCard(Component{Label: "s", Value: math.NaN()}), 0))
	require.True(t, k.Improved(tree, NewScoreCard(Component{Label: "s", Value: 1}), 1), "a number beats a NaN")
	require.False(t, k.Improved(tree, NewScoreCard(Component{Label: "s", Value: 1}), 2), "ties are not improvements")
	require.False(t, k.Improved(tree, NewScoreCard(Component{Label: "s", Value: math.NaN()}), 3))
	require.True(t, k.Improved(tree, NewScoreCard(Component{Label: "s", Value: 2}), 4))

	best, score, gen, ok := k.Best()
	require.True(t, ok)
	assert.Equal(t, 4, gen)
	assert.Equal(t, 2.0, score.Total())
	assert.True(t, best.Equal(ast.Do(ast.Skip)), "kept tree is simplified, got %s", best)
}

func TestMutationChangesTree(t *testing.T) {
	gen := genotype.MustGenerator(genotype.DefaultWeights(), 8)
	m, err := NewMutator(gen, DefaultMutationConfig())
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(42))

	tree := ast.If(ast.Less(ast.Read(ast.Y), ast.Constant(20)), ast.Do(ast.Thrust), ast.Do(ast.Skip))
	before := tree.Clone()
	changed, same := 0, 0
	for i := 0; i < 300; i++ {
		out, err := m.Mutate(tree, rng)
		require.NoError(t, err)
		require.Equal(t, ast.KindProgram, out.Kind())
		if out.Equal(tree) {
			same++
		} else {
			changed++
		}
	}
	assert.True(t, tree.Equal(before), "input must not be modified")
	assert.Greater(t, changed, same)
	assert.Positive(t, changed)
}

func TestMutateSingleNodeProgram(t *testing.T) {
	gen := genotype.MustGenerator(genotype.DefaultWeights(), 0)
	m, err := NewMutator(gen, DefaultMutationConfig())
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		out, err := m.Mutate(ast.Do(ast.Left), rng)
		require.NoError(t, err)
		assert.Equal(t, ast.KindProgram, out.Kind())
	}
}

func TestControlledMutationKeepsChildren(t *testing.T) {
	gen := genotype.MustGenerator(genotype.DefaultWeights(), 0)
	cfg := DefaultMutationConfig()
	cfg.JumpWeight = 0
	cfg.ControlledWeight = 1
	cfg.KeepOrderProbability = 1
	m, err := NewMutator(gen, cfg)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(9))

	cmp := ast.Less(ast.Read(ast.X), ast.Read(ast.Vy))
	for i := 0; i < 20; i++ {
		out := m.controlled(cmp, rng)
		assert.True(t, out.Op().Comparison())
		assert.NotEqual(t, ast.OpLess, out.Op())
		assert.True(t, out.Child(0).Equal(cmp.Child(0)))
		assert.True(t, out.Child(1).Equal(cmp.Child(1)))
	}

	sum := ast.Plus(ast.Constant(1), ast.Read(ast.W))
	out := m.controlled(sum, rng)
	assert.True(t, out.Op().Arithmetic())
	assert.NotEqual(t, ast.OpPlus, out.Op())

	assert.Equal(t, ast.OpFalse, m.controlled(ast.True(), rng).Op())
	assert.Equal(t, ast.OpAnd, m.controlled(ast.Or(ast.True(), ast.False()), rng).Op())

	cfg.RerollProbability, cfg.NudgeProbability, cfg.JitterRange = 0, 0, 0.5
	m, err = NewMutator(gen, cfg)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		v := m.controlled(ast.Constant(10), rng).Value()
		assert.GreaterOrEqual(t, v, 5.0)
		assert.LessOrEqual(t, v, 15.0)
	}
}

func TestMutationConfigValidate(t *testing.T) {
	require.NoError(t, DefaultMutationConfig().Validate())
	cfg := DefaultMutationConfig()
	cfg.JumpWeight, cfg.ControlledWeight = 0, 0
	cfg.KeepOrderProbability = 1.5
	require.Error(t, cfg.Validate())
}

func TestCrossOverConservesNodes(t *testing.T) {
	gen := genotype.MustGenerator(genotype.DefaultWeights(), 6)
	rng := rand.New(rand.NewSource(17))
	for i := 0; i < 200; i++ {
		a, b := gen.Program(rng), gen.Program(rng)
		a2, b2, err := CrossOver(a, b, rng)
		require.NoError(t, err)
		assert.Equal(t, a.Size()+b.Size(), a2.Size()+b2.Size())

		ca, cb := ast.Collect(a), ast.Collect(b)
		ca2, cb2 := ast.Collect(a2), ast.Collect(b2)
		for _, k := range ast.Kinds() {
			assert.Equal(t, ca.Count(k)+cb.Count(k), ca2.Count(k)+cb2.Count(k), "kind %s", k)
		}
	}
}

func TestCrossOverRejectsSelf(t *testing.T) {
	tree := ast.Do(ast.Skip)
	_, _, err := CrossOver(tree, tree, rand.New(rand.NewSource(1)))
	require.ErrorIs(t, err, ErrSelfCrossover)
}

func TestCrossOverNoCommonKind(t *testing.T) {
	_, _, err := CrossOver(ast.Do(ast.Skip), ast.True(), rand.New(rand.NewSource(1)))
	require.ErrorIs(t, err, ErrNoCommonKind)
}

func TestEvolveKeepsSizeAndAdvancesGeneration(t *testing.T) {
	gen := genotype.MustGenerator(genotype.DefaultWeights(), 6)
	m, err := NewMutator(gen, DefaultMutationConfig())
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(23))

	p := Seed(25, ast.KindProgram, gen, rng)
	size := func(_ context.Context, tree *ast.Node, _ *rand.Rand) (ScoreCard, error) {
		return NewScoreCard(Component{Label: "size", Value: -float64(tree.Size())}), nil
	}
	for g := 0; g < 5; g++ {
		require.NoError(t, p.Score(context.Background(), size, rng, 4))
		next, err := p.Evolve(context.Background(), EvolveConfig{
			TournamentSize: 3,
			Weights:        DefaultEvolveWeights(),
			Mutator:        m,
		}, rng)
		require.NoError(t, err)
		assert.Equal(t, 25, next.Len())
		assert.Equal(t, p.Generation()+1, next.Generation())
		assert.False(t, next.Scored())
		p = next
	}
}

func TestEvolvePartlyFilledPopulationKeepsItsLength(t *testing.T) {
	gen := genotype.MustGenerator(genotype.DefaultWeights(), 4)
	m, err := NewMutator(gen, DefaultMutationConfig())
	require.NoError(t, err)
	p := New(10, 1, ast.KindProgram)
	for _, c := range []ast.Command{ast.Skip, ast.Left, ast.Right, ast.Thrust} {
		require.NoError(t, p.Add(ast.Do(c)))
	}
	rng := rand.New(rand.NewSource(4))
	require.NoError(t, p.Score(context.Background(), byOrdinal, rng, 2))

	for _, distinct := range []bool{false, true} {
		next, err := p.Evolve(context.Background(), EvolveConfig{
			TournamentSize: 2,
			Distinct:       distinct,
			Weights:        DefaultEvolveWeights(),
			Mutator:        m,
		}, rng)
		require.NoError(t, err)
		assert.Equal(t, 4, next.Len())
		assert.Equal(t, 10, next.Capacity())
		assert.False(t, next.Full())
	}
}

func TestEvolveDominantIndividualDoesNotLoop(t *testing.T) {
	gen := genotype.MustGenerator(genotype.DefaultWeights(), 4)
	m, err := NewMutator(gen, DefaultMutationConfig())
	require.NoError(t, err)
	p := commandPopulation(t)
	rng := rand.New(rand.NewSource(2))
	require.NoError(t, p.Score(context.Background(), byOrdinal, rng, 1))

	next, err := p.Evolve(context.Background(), EvolveConfig{
		TournamentSize: 4,
		Weights:        EvolveWeights{Crossover: 1},
		Mutator:        m,
	}, rng)
	require.NoError(t, err)
	assert.Equal(t, 4, next.Len())
}

func TestEvolveHonorsCancellation(t *testing.T) {
	gen := genotype.MustGenerator(genotype.DefaultWeights(), 4)
	m, err := NewMutator(gen, DefaultMutationConfig())
	require.NoError(t, err)
	p := commandPopulation(t)
	rng := rand.New(rand.NewSource(2))
	require.NoError(t, p.Score(context.Background(), byOrdinal, rng, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Evolve(ctx, EvolveConfig{TournamentSize: 2, Weights: DefaultEvolveWeights(), Mutator: m}, rng)
	require.ErrorIs(t, err, context.Canceled)
}

func TestAddRejectsWrongKindAndOverflow(t *testing.T) {
	p := New(1, 0, ast.KindProgram)
	require.Error(t, p.Add(ast.True()))
	require.NoError(t, p.Add(ast.Do(ast.Skip)))
	require.Error(t, p.Add(ast.Do(ast.Left)))
}

func TestScoreIsDeterministicAcrossWorkers(t *testing.T) {
	gen := genotype.MustGenerator(genotype.DefaultWeights(), 5)
	seeded := Seed(12, ast.KindProgram, gen, rand.New(rand.NewSource(8)))
	noisy := func(_ context.Context, _ *ast.Node, rng *rand.Rand) (ScoreCard, error) {
		return NewScoreCard(Component{Label: "noise", Value: rng.Float64()}), nil
	}

	run := func(workers int) []float64 {
		p := New(12, 0, ast.KindProgram)
		for i := 0; i < seeded.Len(); i++ {
			require.NoError(t, p.Add(seeded.Tree(i)))
		}
		require.NoError(t, p.Score(context.Background(), noisy, rand.New(rand.NewSource(99)), workers))
		out := make([]float64, 0, p.Len())
		for _, s := range p.Scores() {
			out = append(out, s.Total())
		}
		return out
	}
	assert.Equal(t, run(1), run(6))
}
