package scape

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"lunargp/internal/ast"
	"lunargp/internal/evo"
	"lunargp/internal/model"
)

const (
	ProfileLanding     = "landing"
	ProfileSoftLanding = "soft_landing"

	AggregateMean = "mean"
	AggregateBest = "best"
)

// ScoreWeights scale the score components. The landing profile uses
// Frames, MaxHeight and Landed; the soft landing profile uses every weight
// but MaxHeight.
type ScoreWeights struct {
	Frames     float64 `yaml:"frames"`
	MaxHeight  float64 `yaml:"max_height"`
	Landed     float64 `yaml:"landed"`
	MeanHeight float64 `yaml:"mean_height"`
	Fuel       float64 `yaml:"fuel"`
	Ground     float64 `yaml:"ground"`
	CrashSpeed float64 `yaml:"crash_speed"`
}

// Scoring configures how flights are turned into a ScoreCard.
type Scoring struct {
	Profile   string `yaml:"profile"`
	Aggregate string `yaml:"aggregate"`
	Trials    int    `yaml:"trials"`
	// MaxFrames ends a flight that has neither landed nor crashed.
	MaxFrames         int          `yaml:"max_frames"`
	MinHeight         float64      `yaml:"min_height"`
	MaxHeight         float64      `yaml:"max_height"`
	RandomOrientation bool         `yaml:"random_orientation"`
	DepthPenalty      float64      `yaml:"depth_penalty"`
	Weights           ScoreWeights `yaml:"weights"`
}

// DefaultScoring rewards long flights that stay low and land.
func DefaultScoring() Scoring {
	return Scoring{
		Profile:           ProfileLanding,
		Aggregate:         AggregateMean,
		Trials:            10,
		MaxFrames:         2000,
		MinHeight:         50,
		MaxHeight:         150,
		RandomOrientation: true,
		DepthPenalty:      1,
		Weights: ScoreWeights{
			Frames:     2,
			MaxHeight:  1,
			Landed:     500,
			MeanHeight: 0.01,
			Fuel:       100,
			Ground:     10,
			CrashSpeed: 1,
		},
	}
}

// SoftLandingScoring scores the best of a few upright drops, rewarding fuel
// left and penalizing impact speed. It suits Condition populations flying
// with a low max landing speed.
func SoftLandingScoring() Scoring {
	s := DefaultScoring()
	s.Profile = ProfileSoftLanding
	s.Aggregate = AggregateBest
	s.Trials = 3
	s.MaxHeight = 650
	s.RandomOrientation = false
	s.DepthPenalty = 5
	s.Weights.Frames = 3
	s.Weights.Landed = 10000
	return s
}

func (s Scoring) Validate() error {
	var errs []error
	switch s.Profile {
	case ProfileLanding, ProfileSoftLanding:
	default:
		errs = append(errs, fmt.Errorf("unsupported scoring profile: %q", s.Profile))
	}
	switch s.Aggregate {
	case AggregateMean, AggregateBest:
	default:
		errs = append(errs, fmt.Errorf("unsupported scoring aggregate: %q", s.Aggregate))
	}
	if s.Trials <= 0 {
		errs = append(errs, fmt.Errorf("trials must be > 0: %d", s.Trials))
	}
	if s.MaxFrames <= 0 {
		errs = append(errs, fmt.Errorf("max_frames must be > 0: %d", s.MaxFrames))
	}
	if s.MinHeight <= 0 || s.MaxHeight < s.MinHeight {
		errs = append(errs, fmt.Errorf("start heights must satisfy 0 < min_height <= max_height: %g..%g", s.MinHeight, s.MaxHeight))
	}
	return errors.Join(errs...)
}

// Flight is the outcome of flying one controller from one start state.
type Flight struct {
	Final            model.State
	Frames           int
	MaxHeight        float64
	SumSquaredHeight float64
	SumSquaredFuel   float64
	Trace            *model.Trace
}

var _ ModeAwareScape = (*Lander)(nil)

// Lander scores Program and Condition trees by flying them.
type Lander struct {
	world   World
	scoring Scoring
	trace   bool
}

func NewLander(world World, scoring Scoring) (*Lander, error) {
	if err := world.Validate(); err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	if err := scoring.Validate(); err != nil {
		return nil, fmt.Errorf("scoring: %w", err)
	}
	return &Lander{world: world, scoring: scoring}, nil
}

func (*Lander) Name() string {
	return "lander"
}

func (l *Lander) World() World { return l.world }

// Traced returns a Lander whose score cards carry the trace of the flight
// they were taken from.
func (l *Lander) Traced() *Lander {
	out := *l
	out.trace = true
	return &out
}

// Score implements evo.ScoreFunc in training mode.
func (l *Lander) Score(ctx context.Context, tree *ast.Node, rng *rand.Rand) (evo.ScoreCard, error) {
	return l.ScoreMode(ctx, tree, rng, ModeTraining)
}

// ScoreMode flies tree once per trial. Training starts are random;
// benchmark starts are upright at evenly spaced heights, so benchmark
// scores of the same tree are comparable across runs.
func (l *Lander) ScoreMode(ctx context.Context, tree *ast.Node, rng *rand.Rand, mode string) (evo.ScoreCard, error) {
	starts, err := l.starts(rng, mode)
	if err != nil {
		return evo.ScoreCard{}, err
	}
	cards := make([]evo.ScoreCard, 0, len(starts))
	for _, start := range starts {
		f, err := l.Fly(ctx, tree, start, l.trace)
		if err != nil {
			return evo.ScoreCard{}, err
		}
		cards = append(cards, evo.NewScoreCard(l.components(f)...).WithTrace(f.Trace))
	}

	var card evo.ScoreCard
	switch l.scoring.Aggregate {
	case AggregateBest:
		totals := make([]float64, len(cards))
		for i, c := range cards {
			totals[i] = c.Total()
		}
		card = cards[evo.ArgMax(totals)]
	default:
		card = mean(cards)
	}
	return card.Add(evo.Component{Label: "depth", Value: -l.scoring.DepthPenalty * float64(ast.Depth(tree))}), nil
}

func (l *Lander) starts(rng *rand.Rand, mode string) ([]model.State, error) {
	n := l.scoring.Trials
	lo, hi := l.scoring.MinHeight, l.scoring.MaxHeight
	out := make([]model.State, n)
	switch strings.TrimSpace(strings.ToLower(mode)) {
	case "", ModeTraining:
		for i := range out {
			s := model.NewState()
			s.Y = lo + rng.Float64()*(hi-lo)
			if l.scoring.RandomOrientation {
				s.O = rng.Float64() * 2 * math.Pi
			}
			out[i] = s
		}
	case ModeBenchmark:
		for i := range out {
			s := model.NewState()
			s.Y = (lo + hi) / 2
			if n > 1 {
				s.Y = lo + float64(i)*(hi-lo)/float64(n-1)
			}
			out[i] = s
		}
	default:
		return nil, fmt.Errorf("unsupported lander mode: %s", mode)
	}
	return out, nil
}

// Fly runs tree from start until the lander lands, crashes or runs out of
// frames. With trace set the flight records every state including start.
func (l *Lander) Fly(ctx context.Context, tree *ast.Node, start model.State, trace bool) (Flight, error) {
	next, err := Controller(tree)
	if err != nil {
		return Flight{}, err
	}
	f := Flight{Final: start}
	if trace {
		f.Trace = model.NewTrace()
		f.Trace.Add(start)
	}
	for !f.Final.Done() && f.Frames < l.scoring.MaxFrames {
		if err := ctx.Err(); err != nil {
			return Flight{}, err
		}
		f.SumSquaredHeight += f.Final.Y * f.Final.Y
		f.SumSquaredFuel += f.Final.Fuel * f.Final.Fuel
		f.Final = next(f.Final, l.world)
		f.Frames++
		f.MaxHeight = math.Max(f.MaxHeight, f.Final.Y)
		if trace {
			f.Trace.Add(f.Final)
		}
	}
	return f, nil
}

func (l *Lander) components(f Flight) []evo.Component {
	w := l.scoring.Weights
	landed := 0.0
	if f.Final.Landed {
		landed = w.Landed
	}
	frames := float64(f.Frames)
	if l.scoring.Profile != ProfileSoftLanding {
		return []evo.Component{
			{Label: "frames", Value: w.Frames * frames},
			{Label: "max_height", Value: -w.MaxHeight * f.MaxHeight},
			{Label: "landed", Value: landed},
		}
	}

	ground := 0.0
	if f.Final.Done() {
		ground = w.Ground
	}
	perFrame := math.Max(frames, 1)
	return []evo.Component{
		{Label: "survival", Value: w.Frames * frames},
		{Label: "height", Value: -w.MeanHeight * f.SumSquaredHeight / perFrame},
		{Label: "fuel", Value: w.Fuel * f.SumSquaredFuel / perFrame},
		{Label: "ground", Value: ground},
		{Label: "crash_speed", Value: -w.CrashSpeed * f.Final.CrashSpeed},
		{Label: "landed", Value: landed},
	}
}

// mean averages cards component by component. Every card must carry the
// same labels in the same order. The result keeps the last card's trace.
func mean(cards []evo.ScoreCard) evo.ScoreCard {
	first := cards[0].Components()
	sums := make([]float64, len(first))
	for _, c := range cards {
		for i, comp := range c.Components() {
			sums[i] += comp.Value
		}
	}
	out := make([]evo.Component, len(first))
	for i, comp := range first {
		out[i] = evo.Component{Label: comp.Label, Value: sums[i] / float64(len(cards))}
	}
	return evo.NewScoreCard(out...).WithTrace(cards[len(cards)-1].Trace())
}

// Replay flies tree once from start and returns the traced flight.
func (l *Lander) Replay(ctx context.Context, tree *ast.Node, start model.State) (Flight, error) {
	return l.Fly(ctx, tree, start, true)
}
