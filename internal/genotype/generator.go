// Package genotype constructs random control programs.
package genotype

import (
	"errors"
	"fmt"
	"math/rand"

	"lunargp/internal/ast"
	"lunargp/internal/pick"
)

var ErrWeights = errors.New("invalid generation weights")

// Weights holds the relative frequency of every composite variant. Sensor
// and Command leaves are drawn uniformly.
//
// Generation has no depth bound of its own: it terminates because every kind
// is expected to produce fewer than one child of its own kind. Validate
// enforces that bias.
type Weights struct {
	If      int `yaml:"if"`
	Command int `yaml:"command"`

	True         int `yaml:"true"`
	False        int `yaml:"false"`
	Not          int `yaml:"not"`
	Or           int `yaml:"or"`
	And          int `yaml:"and"`
	Less         int `yaml:"less"`
	LessEqual    int `yaml:"less_equal"`
	Equal        int `yaml:"equal"`
	GreaterEqual int `yaml:"greater_equal"`
	Greater      int `yaml:"greater"`

	Constant int `yaml:"constant"`
	Sensor   int `yaml:"sensor"`
	Plus     int `yaml:"plus"`
	Minus    int `yaml:"minus"`
	Multiply int `yaml:"multiply"`
	Divide   int `yaml:"divide"`
}

func DefaultWeights() Weights {
	return Weights{
		If:      1,
		Command: 2,

		True:         8,
		False:        8,
		Not:          2,
		Or:           1,
		And:          1,
		Less:         1,
		LessEqual:    1,
		Equal:        1,
		GreaterEqual: 1,
		Greater:      1,

		Constant: 5,
		Sensor:   5,
		Plus:     1,
		Minus:    1,
		Multiply: 1,
		Divide:   1,
	}
}

func (w Weights) program() []pick.Choice[ast.Op] {
	return []pick.Choice[ast.Op]{
		{Weight: w.If, Value: ast.OpIf},
		{Weight: w.Command, Value: ast.OpCommand},
	}
}

func (w Weights) condition() []pick.Choice[ast.Op] {
	return []pick.Choice[ast.Op]{
		{Weight: w.True, Value: ast.OpTrue},
		{Weight: w.False, Value: ast.OpFalse},
		{Weight: w.Not, Value: ast.OpNot},
		{Weight: w.Or, Value: ast.OpOr},
		{Weight: w.And, Value: ast.OpAnd},
		{Weight: w.Less, Value: ast.OpLess},
		{Weight: w.LessEqual, Value: ast.OpLessEqual},
		{Weight: w.Equal, Value: ast.OpEqual},
		{Weight: w.GreaterEqual, Value: ast.OpGreaterEqual},
		{Weight: w.Greater, Value: ast.OpGreater},
	}
}

func (w Weights) expression() []pick.Choice[ast.Op] {
	return []pick.Choice[ast.Op]{
		{Weight: w.Constant, Value: ast.OpConstant},
		{Weight: w.Sensor, Value: ast.OpSensor},
		{Weight: w.Plus, Value: ast.OpPlus},
		{Weight: w.Minus, Value: ast.OpMinus},
		{Weight: w.Multiply, Value: ast.OpMultiply},
		{Weight: w.Divide, Value: ast.OpDivide},
	}
}

// sameKindChildren counts the children of op that share its kind.
func sameKindChildren(op ast.Op) int {
	switch op {
	case ast.OpIf, ast.OpOr, ast.OpAnd, ast.OpPlus, ast.OpMinus, ast.OpMultiply, ast.OpDivide:
		return 2
	case ast.OpNot:
		return 1
	}
	return 0
}

// Validate rejects negative weights, kinds without any weight and kinds whose
// expected number of same-kind children is not below one.
func (w Weights) Validate() error {
	var errs []error
	groups := []struct {
		kind    ast.Kind
		choices []pick.Choice[ast.Op]
	}{
		{ast.KindProgram, w.program()},
		{ast.KindCondition, w.condition()},
		{ast.KindExpression, w.expression()},
	}
	for _, g := range groups {
		total, offspring := 0, 0
		for _, c := range g.choices {
			if c.Weight < 0 {
				errs = append(errs, fmt.Errorf("%w: %s weight is negative", ErrWeights, c.Value))
				continue
			}
			total += c.Weight
			offspring += c.Weight * sameKindChildren(c.Value)
		}
		if total <= 0 {
			errs = append(errs, fmt.Errorf("%w: no %s variant has weight", ErrWeights, g.kind))
			continue
		}
		if offspring >= total {
			errs = append(errs, fmt.Errorf("%w: %s weights are not biased toward termination (%d recursive of %d)", ErrWeights, g.kind, offspring, total))
		}
	}
	return errors.Join(errs...)
}

// Generator draws random trees. A positive maxDepth restricts every draw at
// or below that nesting level to variants without composite children.
type Generator struct {
	weights  Weights
	maxDepth int
}

func NewGenerator(weights Weights, maxDepth int) (*Generator, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if maxDepth < 0 {
		return nil, fmt.Errorf("%w: max depth must be >= 0", ErrWeights)
	}
	return &Generator{weights: weights, maxDepth: maxDepth}, nil
}

// MustGenerator is NewGenerator for known-good weights.
func MustGenerator(weights Weights, maxDepth int) *Generator {
	g, err := NewGenerator(weights, maxDepth)
	if err != nil {
		panic(err)
	}
	return g
}

// Random returns a random tree of kind k.
func (g *Generator) Random(k ast.Kind, rng *rand.Rand) *ast.Node {
	return g.random(k, rng, 1)
}

func (g *Generator) Program(rng *rand.Rand) *ast.Node    { return g.random(ast.KindProgram, rng, 1) }
func (g *Generator) Condition(rng *rand.Rand) *ast.Node  { return g.random(ast.KindCondition, rng, 1) }
func (g *Generator) Expression(rng *rand.Rand) *ast.Node { return g.random(ast.KindExpression, rng, 1) }

func (g *Generator) random(k ast.Kind, rng *rand.Rand, level int) *ast.Node {
	switch k {
	case ast.KindSensor:
		return ast.Reading(ast.Sensor(rng.Intn(ast.NumSensors)))
	case ast.KindCommand:
		return ast.Action(ast.Command(rng.Intn(ast.NumCommands)))
	}

	var choices []pick.Choice[ast.Op]
	switch k {
	case ast.KindProgram:
		choices = g.weights.program()
	case ast.KindCondition:
		choices = g.weights.condition()
	default:
		choices = g.weights.expression()
	}
	if g.maxDepth > 0 && level >= g.maxDepth {
		choices = terminal(choices)
	}

	op, err := pick.Choose(rng, choices)
	if err != nil {
		// Validate guarantees a positive total; only the ceiling can empty it.
		op = fallbackTerminal(k)
	}
	return g.build(op, rng, level)
}

func (g *Generator) build(op ast.Op, rng *rand.Rand, level int) *ast.Node {
	switch op {
	case ast.OpTrue:
		return ast.True()
	case ast.OpFalse:
		return ast.False()
	case ast.OpConstant:
		return ast.Constant(rng.Float64())
	}
	children := make([]*ast.Node, op.Arity())
	for i := range children {
		children[i] = g.random(ast.ChildKind(op, i), rng, level+1)
	}
	return ast.New(op, children...)
}

// terminal keeps the variants whose children are all leaves.
func terminal(choices []pick.Choice[ast.Op]) []pick.Choice[ast.Op] {
	out := make([]pick.Choice[ast.Op], 0, len(choices))
	for _, c := range choices {
		switch c.Value {
		case ast.OpCommand, ast.OpTrue, ast.OpFalse, ast.OpConstant, ast.OpSensor:
			out = append(out, c)
		}
	}
	return out
}

func fallbackTerminal(k ast.Kind) ast.Op {
	switch k {
	case ast.KindProgram:
		return ast.OpCommand
	case ast.KindCondition:
		return ast.OpTrue
	}
	return ast.OpConstant
}
