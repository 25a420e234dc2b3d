package evo

import (
	"errors"
	"fmt"
	"math/rand"

	"lunargp/internal/ast"
	"lunargp/internal/genotype"
	"lunargp/internal/pick"
)

// MutationConfig tunes how a mutated node is replaced.
type MutationConfig struct {
	// JumpWeight and ControlledWeight choose between a fresh random subtree
	// and a local edit of the node. Controlled edits only exist for
	// Condition and Expression nodes.
	JumpWeight       int `yaml:"jump_weight"`
	ControlledWeight int `yaml:"controlled_weight"`

	// KeepOrderProbability is the chance that a binary node keeps its
	// children in order when its operator changes.
	KeepOrderProbability float64 `yaml:"keep_order_probability"`

	// A constant is scaled by a factor drawn from [1-JitterRange, 1+JitterRange],
	// nudged by up to ±NudgeScale with NudgeProbability, or redrawn from
	// scratch with RerollProbability.
	JitterRange       float64 `yaml:"jitter_range"`
	NudgeProbability  float64 `yaml:"nudge_probability"`
	NudgeScale        float64 `yaml:"nudge_scale"`
	RerollProbability float64 `yaml:"reroll_probability"`
}

func DefaultMutationConfig() MutationConfig {
	return MutationConfig{
		JumpWeight:           1,
		ControlledWeight:     3,
		KeepOrderProbability: 0.8,
		JitterRange:          0.25,
		NudgeProbability:     0.1,
		NudgeScale:           0.1,
		RerollProbability:    0.05,
	}
}

func (c MutationConfig) Validate() error {
	var errs []error
	if c.JumpWeight < 0 || c.ControlledWeight < 0 || c.JumpWeight+c.ControlledWeight <= 0 {
		errs = append(errs, fmt.Errorf("mutation weights must be >= 0 with a positive sum: jump=%d controlled=%d", c.JumpWeight, c.ControlledWeight))
	}
	probs := []struct {
		name  string
		value float64
	}{
		{"keep_order_probability", c.KeepOrderProbability},
		{"nudge_probability", c.NudgeProbability},
		{"reroll_probability", c.RerollProbability},
	}
	for _, p := range probs {
		if p.value < 0 || p.value > 1 {
			errs = append(errs, fmt.Errorf("%s must be in [0, 1]: %g", p.name, p.value))
		}
	}
	if c.NudgeProbability+c.RerollProbability > 1 {
		errs = append(errs, fmt.Errorf("nudge_probability + reroll_probability must be <= 1"))
	}
	if c.JitterRange < 0 {
		errs = append(errs, fmt.Errorf("jitter_range must be >= 0: %g", c.JitterRange))
	}
	if c.NudgeScale < 0 {
		errs = append(errs, fmt.Errorf("nudge_scale must be >= 0: %g", c.NudgeScale))
	}
	return errors.Join(errs...)
}

// Mutator replaces one random node of a tree.
type Mutator struct {
	gen *genotype.Generator
	cfg MutationConfig
}

func NewMutator(gen *genotype.Generator, cfg MutationConfig) (*Mutator, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Mutator{gen: gen, cfg: cfg}, nil
}

// Mutate returns a new tree in which one node of tree has been replaced. A
// kind is chosen uniformly among the kinds present in the tree, then a node
// uniformly among the nodes of that kind. tree is not modified.
func (m *Mutator) Mutate(tree *ast.Node, rng *rand.Rand) (*ast.Node, error) {
	snap := ast.Collect(tree)
	kind, err := pick.Uniform(rng, snap.Present())
	if err != nil {
		return nil, fmt.Errorf("mutate: %w", err)
	}
	h, err := pick.Uniform(rng, snap.Handles(kind))
	if err != nil {
		return nil, fmt.Errorf("mutate: %w", err)
	}
	replacement, err := m.replacement(snap.Node(h), rng)
	if err != nil {
		return nil, fmt.Errorf("mutate %s: %w", kind, err)
	}
	return ast.Replace(tree, h, replacement)
}

func (m *Mutator) replacement(n *ast.Node, rng *rand.Rand) (*ast.Node, error) {
	switch n.Kind() {
	case ast.KindCondition, ast.KindExpression:
	default:
		return m.gen.Random(n.Kind(), rng), nil
	}
	controlled, err := pick.Choose(rng, []pick.Choice[bool]{
		{Weight: m.cfg.JumpWeight, Value: false},
		{Weight: m.cfg.ControlledWeight, Value: true},
	})
	if err != nil {
		return nil, err
	}
	if !controlled {
		return m.gen.Random(n.Kind(), rng), nil
	}
	return m.controlled(n, rng), nil
}

// controlled changes the variant of n while keeping its children, or
// perturbs a constant. Variants without a local edit fall back to a jump.
func (m *Mutator) controlled(n *ast.Node, rng *rand.Rand) *ast.Node {
	switch op := n.Op(); {
	case op == ast.OpTrue:
		return ast.False()
	case op == ast.OpFalse:
		return ast.True()
	case op == ast.OpOr:
		return m.binary(ast.OpAnd, n, rng)
	case op == ast.OpAnd:
		return m.binary(ast.OpOr, n, rng)
	case op.Comparison():
		return m.binary(otherOp(op, comparisons, rng), n, rng)
	case op.Arithmetic():
		return m.binary(otherOp(op, arithmetic, rng), n, rng)
	case op == ast.OpConstant:
		return ast.Constant(m.perturb(n.Value(), rng))
	}
	return m.gen.Random(n.Kind(), rng)
}

var (
	comparisons = []ast.Op{ast.OpLess, ast.OpLessEqual, ast.OpEqual, ast.OpGreaterEqual, ast.OpGreater}
	arithmetic  = []ast.Op{ast.OpPlus, ast.OpMinus, ast.OpMultiply, ast.OpDivide}
)

// otherOp draws uniformly among family without op.
func otherOp(op ast.Op, family []ast.Op, rng *rand.Rand) ast.Op {
	others := make([]ast.Op, 0, len(family)-1)
	for _, o := range family {
		if o != op {
			others = append(others, o)
		}
	}
	return others[rng.Intn(len(others))]
}

func (m *Mutator) binary(op ast.Op, n *ast.Node, rng *rand.Rand) *ast.Node {
	l, r := n.Child(0).Clone(), n.Child(1).Clone()
	if rng.Float64() >= m.cfg.KeepOrderProbability {
		l, r = r, l
	}
	return ast.New(op, l, r)
}

func (m *Mutator) perturb(v float64, rng *rand.Rand) float64 {
	u := rng.Float64()
	switch {
	case u < m.cfg.RerollProbability:
		return rng.Float64()
	case u < m.cfg.RerollProbability+m.cfg.NudgeProbability:
		return v + (2*rng.Float64()-1)*m.cfg.NudgeScale
	}
	return v * (1 + (2*rng.Float64()-1)*m.cfg.JitterRange)
}
