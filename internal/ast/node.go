// Package ast holds the lander control program tree and the generic
// machinery that walks, rebuilds, measures and simplifies it.
//
// A tree is built from immutable *Node values. Every node belongs to one of
// five kinds (Program, Condition, Expression, Sensor, Command) and carries an
// Op naming its variant. Constructors check child kinds and panic on
// ill-typed input; nodes are never modified after construction.
package ast

import (
	"fmt"
	"math"
)

type Kind uint8

const (
	KindProgram Kind = iota
	KindCondition
	KindExpression
	KindSensor
	KindCommand
)

// NumKinds is the number of node kinds.
const NumKinds = 5

var kindNames = [NumKinds]string{"program", "condition", "expression", "sensor", "command"}

func (k Kind) String() string {
	if int(k) < NumKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Kinds lists every node kind in declaration order.
func Kinds() []Kind {
	return []Kind{KindProgram, KindCondition, KindExpression, KindSensor, KindCommand}
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(name string) (Kind, error) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown node kind: %q", name)
}

type Op uint8

const (
	// Program
	OpIf Op = iota
	OpCommand

	// Condition
	OpTrue
	OpFalse
	OpNot
	OpOr
	OpAnd
	OpLess
	OpLessEqual
	OpEqual
	OpGreaterEqual
	OpGreater

	// Expression
	OpConstant
	OpSensor
	OpPlus
	OpMinus
	OpMultiply
	OpDivide

	// Leaves of kind Sensor and Command.
	OpReading
	OpAction

	numOps
)

var opInfo = [numOps]struct {
	name  string
	kind  Kind
	arity int
}{
	OpIf:           {"if", KindProgram, 3},
	OpCommand:      {"command", KindProgram, 1},
	OpTrue:         {"true", KindCondition, 0},
	OpFalse:        {"false", KindCondition, 0},
	OpNot:          {"not", KindCondition, 1},
	OpOr:           {"or", KindCondition, 2},
	OpAnd:          {"and", KindCondition, 2},
	OpLess:         {"less", KindCondition, 2},
	OpLessEqual:    {"less_equal", KindCondition, 2},
	OpEqual:        {"equal", KindCondition, 2},
	OpGreaterEqual: {"greater_equal", KindCondition, 2},
	OpGreater:      {"greater", KindCondition, 2},
	OpConstant:     {"constant", KindExpression, 0},
	OpSensor:       {"sensor", KindExpression, 1},
	OpPlus:         {"plus", KindExpression, 2},
	OpMinus:        {"minus", KindExpression, 2},
	OpMultiply:     {"multiply", KindExpression, 2},
	OpDivide:       {"divide", KindExpression, 2},
	OpReading:      {"reading", KindSensor, 0},
	OpAction:       {"action", KindCommand, 0},
}

func (o Op) String() string {
	if o < numOps {
		return opInfo[o].name
	}
	return fmt.Sprintf("op(%d)", o)
}

// Kind reports the node kind produced by the op.
func (o Op) Kind() Kind { return opInfo[o].kind }

// Arity is the fixed number of children a node with this op owns.
func (o Op) Arity() int { return opInfo[o].arity }

func parseOp(name string) (Op, error) {
	for i := Op(0); i < numOps; i++ {
		if opInfo[i].name == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown op: %q", name)
}

// Comparison reports whether the op compares two expressions.
func (o Op) Comparison() bool { return o >= OpLess && o <= OpGreater }

// Arithmetic reports whether the op is a binary arithmetic operator.
func (o Op) Arithmetic() bool { return o >= OpPlus && o <= OpDivide }

type Sensor uint8

const (
	X Sensor = iota
	Y
	Vx
	Vy
	O
	W
	Fuel
)

// NumSensors is the number of sensor readings a program can consult.
const NumSensors = 7

var sensorNames = [NumSensors]string{"x", "y", "vx", "vy", "o", "w", "fuel"}

func (s Sensor) String() string {
	if int(s) < NumSensors {
		return sensorNames[s]
	}
	return fmt.Sprintf("sensor(%d)", s)
}

func ParseSensor(name string) (Sensor, error) {
	for i, n := range sensorNames {
		if n == name {
			return Sensor(i), nil
		}
	}
	return 0, fmt.Errorf("unknown sensor: %q", name)
}

type Command uint8

const (
	Skip Command = iota
	Left
	Right
	Thrust
)

// NumCommands is the number of lander commands.
const NumCommands = 4

var commandNames = [NumCommands]string{"skip", "left", "right", "thrust"}

func (c Command) String() string {
	if int(c) < NumCommands {
		return commandNames[c]
	}
	return fmt.Sprintf("command(%d)", c)
}

func ParseCommand(name string) (Command, error) {
	for i, n := range commandNames {
		if n == name {
			return Command(i), nil
		}
	}
	return 0, fmt.Errorf("unknown command: %q", name)
}

// Node is one immutable tree node.
type Node struct {
	op       Op
	value    float64
	sensor   Sensor
	command  Command
	children []*Node
}

func (n *Node) Op() Op { return n.op }

func (n *Node) Kind() Kind { return n.op.Kind() }

// Value is the number carried by a Constant expression.
func (n *Node) Value() float64 { return n.value }

// Sensor is the reading named by a Sensor leaf.
func (n *Node) Sensor() Sensor { return n.sensor }

// Command is the command named by a Command leaf.
func (n *Node) Command() Command { return n.command }

// Child returns the i-th child.
func (n *Node) Child(i int) *Node { return n.children[i] }

// NumChildren reports how many children the node owns.
func (n *Node) NumChildren() int { return len(n.children) }

// Leaf reports whether the node has no children.
func (n *Node) Leaf() bool { return len(n.children) == 0 }

func mustKind(op Op, i int, child *Node, want Kind) {
	if child == nil {
		panic(fmt.Sprintf("ast: %s child %d is nil", op, i))
	}
	if child.Kind() != want {
		panic(fmt.Sprintf("ast: %s child %d must be %s, got %s", op, i, want, child.Kind()))
	}
}

// ChildKind is the kind required at position i of op.
func ChildKind(op Op, i int) Kind {
	switch op {
	case OpIf:
		if i == 0 {
			return KindCondition
		}
		return KindProgram
	case OpCommand:
		return KindCommand
	case OpNot, OpOr, OpAnd:
		return KindCondition
	case OpSensor:
		return KindSensor
	}
	// comparisons and arithmetic take expressions
	return KindExpression
}

// New builds an interior node of op from its children. It panics when the
// child count or a child kind does not match op.
func New(op Op, children ...*Node) *Node {
	if op >= numOps {
		panic(fmt.Sprintf("ast: unknown op %d", op))
	}
	if len(children) != op.Arity() {
		panic(fmt.Sprintf("ast: %s takes %d children, got %d", op, op.Arity(), len(children)))
	}
	for i, c := range children {
		mustKind(op, i, c, ChildKind(op, i))
	}
	n := &Node{op: op}
	if len(children) > 0 {
		n.children = append([]*Node(nil), children...)
	}
	return n
}

func If(cond, then, otherwise *Node) *Node { return New(OpIf, cond, then, otherwise) }

// Do wraps a Command leaf into a Program.
func Do(c Command) *Node { return New(OpCommand, Action(c)) }

func True() *Node  { return &Node{op: OpTrue} }
func False() *Node { return &Node{op: OpFalse} }

func Not(c *Node) *Node             { return New(OpNot, c) }
func Or(l, r *Node) *Node           { return New(OpOr, l, r) }
func And(l, r *Node) *Node          { return New(OpAnd, l, r) }
func Less(l, r *Node) *Node         { return New(OpLess, l, r) }
func LessEqual(l, r *Node) *Node    { return New(OpLessEqual, l, r) }
func Equal(l, r *Node) *Node        { return New(OpEqual, l, r) }
func GreaterEqual(l, r *Node) *Node { return New(OpGreaterEqual, l, r) }
func Greater(l, r *Node) *Node      { return New(OpGreater, l, r) }
func Constant(v float64) *Node      { return &Node{op: OpConstant, value: v} }
func Read(s Sensor) *Node           { return New(OpSensor, Reading(s)) }
func Plus(l, r *Node) *Node         { return New(OpPlus, l, r) }
func Minus(l, r *Node) *Node        { return New(OpMinus, l, r) }
func Multiply(l, r *Node) *Node     { return New(OpMultiply, l, r) }
func Divide(l, r *Node) *Node       { return New(OpDivide, l, r) }
func Reading(s Sensor) *Node        { return &Node{op: OpReading, sensor: s} }
func Action(c Command) *Node        { return &Node{op: OpAction, command: c} }

func (n *Node) withChildren(cs []*Node) *Node {
	return &Node{op: n.op, value: n.value, sensor: n.sensor, command: n.command, children: cs}
}

// Equal reports structural equality: same ops, payloads and children.
// Constants compare by value, and a NaN constant equals any other NaN
// constant.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.op != other.op || len(n.children) != len(other.children) {
		return false
	}
	switch n.op {
	case OpConstant:
		if n.value != other.value && !(math.IsNaN(n.value) && math.IsNaN(other.value)) {
			return false
		}
	case OpReading:
		if n.sensor != other.sensor {
			return false
		}
	case OpAction:
		if n.command != other.command {
			return false
		}
	}
	for i := range n.children {
		if !n.children[i].Equal(other.children[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy sharing no nodes with n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	var cs []*Node
	if len(n.children) > 0 {
		cs = make([]*Node, len(n.children))
		for i, c := range n.children {
			cs[i] = c.Clone()
		}
	}
	return n.withChildren(cs)
}

// Size counts the nodes in the tree rooted at n.
func (n *Node) Size() int {
	total := 1
	for _, c := range n.children {
		total += c.Size()
	}
	return total
}
