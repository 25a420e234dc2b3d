package scape

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lunargp/internal/ast"
	"lunargp/internal/model"
)

func TestStep(t *testing.T) {
	w := DefaultWorld()
	cases := []struct {
		name  string
		start func(*model.State)
		cmd   ast.Command
		check func(t *testing.T, s model.State)
	}{
		{"lands when motion stops near ground", func(s *model.State) { s.Vy = 0.5 }, ast.Skip, func(t *testing.T, s model.State) {
			assert.True(t, s.Landed)
			assert.False(t, s.Crashed)
		}},
		{"thrust pushes along orientation", func(s *model.State) { s.O = math.Pi / 2; s.Y = 100 }, ast.Thrust, func(t *testing.T, s model.State) {
			assert.Less(t, s.Vx, 0.0)
		}},
		{"position follows velocity", func(s *model.State) { s.Vx, s.Vy = 1, 1 }, ast.Skip, func(t *testing.T, s model.State) {
			assert.Greater(t, s.X, 0.0)
			assert.Greater(t, s.Y, 0.0)
		}},
		{"orientation follows angular velocity", func(s *model.State) { s.W = 1; s.Y = 100 }, ast.Skip, func(t *testing.T, s model.State) {
			assert.Greater(t, s.O, 0.0)
		}},
		{"left spins up", func(s *model.State) { s.Y = 100 }, ast.Left, func(t *testing.T, s model.State) {
			assert.Greater(t, s.W, 0.0)
		}},
		{"right spins down", func(s *model.State) { s.Y = 100 }, ast.Right, func(t *testing.T, s model.State) {
			assert.Less(t, s.W, 0.0)
		}},
		{"thrust is signalled", func(s *model.State) { s.Y = 100 }, ast.Thrust, func(t *testing.T, s model.State) {
			assert.True(t, s.Thrusting)
			assert.Less(t, s.Fuel, 1.0)
		}},
		{"skip is not thrust", func(s *model.State) { s.Y = 100 }, ast.Skip, func(t *testing.T, s model.State) {
			assert.False(t, s.Thrusting)
		}},
		{"empty tank stays empty", func(s *model.State) { s.Fuel = 0; s.Y = 100 }, ast.Thrust, func(t *testing.T, s model.State) {
			assert.Equal(t, 0.0, s.Fuel)
		}},
		{"no thrust without fuel", func(s *model.State) { s.Fuel = 0; s.O = math.Pi / 2; s.Y = 100 }, ast.Thrust, func(t *testing.T, s model.State) {
			assert.Equal(t, 0.0, s.Vx)
		}},
		{"fast impact crashes", func(s *model.State) { s.Y = 5; s.Vy = -20 }, ast.Skip, func(t *testing.T, s model.State) {
			assert.True(t, s.Crashed)
			assert.False(t, s.Landed)
			assert.InDelta(t, 20.5, s.CrashSpeed, 1e-9)
		}},
		{"tilted touchdown crashes", func(s *model.State) { s.O = 1; s.Vy = 0.5 }, ast.Skip, func(t *testing.T, s model.State) {
			assert.True(t, s.Crashed)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := model.NewState()
			tc.start(&s)
			tc.check(t, Step(s, tc.cmd, w))
		})
	}
}

func TestStepFreezesFinishedLander(t *testing.T) {
	s := model.NewState()
	s.Landed = true
	s.Y = 3
	assert.Equal(t, s, Step(s, ast.Thrust, DefaultWorld()))
}

func TestNextCondition(t *testing.T) {
	s := model.NewState()
	s.Y = 100
	assert.True(t, NextCondition(s, ast.True(), DefaultWorld()).Thrusting)
	assert.False(t, NextCondition(s, ast.False(), DefaultWorld()).Thrusting)
}

func TestControllerRejectsExpressions(t *testing.T) {
	_, err := Controller(ast.Constant(1))
	require.Error(t, err)
}

func newLander(t *testing.T, scoring Scoring) *Lander {
	t.Helper()
	l, err := NewLander(DefaultWorld(), scoring)
	require.NoError(t, err)
	return l
}

func TestFreeFallFlight(t *testing.T) {
	l := newLander(t, DefaultScoring())
	start := model.NewState()
	start.Y = 150
	f, err := l.Replay(context.Background(), ast.Do(ast.Skip), start)
	require.NoError(t, err)
	assert.True(t, f.Final.Crashed)
	assert.Equal(t, f.Frames+1, f.Trace.Len())
	assert.Equal(t, start, f.Trace.States[0])
	assert.Less(t, f.MaxHeight, 150.0)
}

func TestMaxFramesEndsFlight(t *testing.T) {
	scoring := DefaultScoring()
	scoring.MaxFrames = 5
	l := newLander(t, scoring)
	start := model.NewState()
	start.Y = 1000
	f, err := l.Fly(context.Background(), ast.Do(ast.Skip), start, false)
	require.NoError(t, err)
	assert.Equal(t, 5, f.Frames)
	assert.False(t, f.Final.Done())
	assert.Nil(t, f.Trace)
}

func TestScoreComponentsAndDepthPenalty(t *testing.T) {
	l := newLander(t, DefaultScoring())
	tree := ast.If(ast.Less(ast.Read(ast.Vy), ast.Constant(-2)), ast.Do(ast.Thrust), ast.Do(ast.Skip))
	card, err := l.Score(context.Background(), tree, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	labels := make([]string, 0)
	sum := 0.0
	for _, c := range card.Components() {
		labels = append(labels, c.Label)
		sum += c.Value
	}
	assert.Equal(t, []string{"frames", "max_height", "landed", "depth"}, labels)
	assert.InDelta(t, sum, card.Total(), 1e-9)
	assert.Equal(t, -float64(ast.Depth(tree)), card.Components()[3].Value)
	assert.Nil(t, card.Trace())
}

func TestBenchmarkModeIsDeterministic(t *testing.T) {
	l := newLander(t, DefaultScoring())
	tree := ast.If(ast.Less(ast.Read(ast.Vy), ast.Constant(-1)), ast.Do(ast.Thrust), ast.Do(ast.Skip))
	a, err := l.ScoreMode(context.Background(), tree, rand.New(rand.NewSource(1)), ModeBenchmark)
	require.NoError(t, err)
	b, err := l.ScoreMode(context.Background(), tree, rand.New(rand.NewSource(2)), ModeBenchmark)
	require.NoError(t, err)
	assert.Equal(t, a.Total(), b.Total())

	_, err = l.ScoreMode(context.Background(), tree, rand.New(rand.NewSource(1)), "validation")
	require.Error(t, err)
}

func TestSoftLandingScoresConditions(t *testing.T) {
	l := newLander(t, SoftLandingScoring()).Traced()
	card, err := l.Score(context.Background(), ast.Less(ast.Read(ast.Vy), ast.Constant(-0.4)), rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	assert.Len(t, card.Components(), 7)
	require.NotNil(t, card.Trace())
	assert.Positive(t, card.Trace().Len())
}

func TestScoreHonorsCancellation(t *testing.T) {
	l := newLander(t, DefaultScoring())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Score(ctx, ast.Do(ast.Skip), rand.New(rand.NewSource(1)))
	require.ErrorIs(t, err, context.Canceled)
}

func TestScoringValidate(t *testing.T) {
	require.NoError(t, DefaultScoring().Validate())
	require.NoError(t, SoftLandingScoring().Validate())
	bad := DefaultScoring()
	bad.Profile = "orbit"
	bad.Trials = 0
	bad.MinHeight = 0
	require.Error(t, bad.Validate())

	w := DefaultWorld()
	w.Tolerance = 0
	_, err := NewLander(w, DefaultScoring())
	require.Error(t, err)
}
