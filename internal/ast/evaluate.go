package ast

import "fmt"

// Readings supplies the sensor values a program is evaluated against.
type Readings interface {
	Reading(s Sensor) float64
}

// Evaluate runs a Program against readings and returns the command of the
// leaf it reaches.
func Evaluate(program *Node, r Readings) Command {
	for program.op == OpIf {
		if Truth(program.children[0], r) {
			program = program.children[1]
		} else {
			program = program.children[2]
		}
	}
	if program.op != OpCommand {
		panic(fmt.Sprintf("ast: evaluate %s node as program", program.Kind()))
	}
	return program.children[0].command
}

// Truth is the boolean value of a Condition.
func Truth(cond *Node, r Readings) bool {
	switch cond.op {
	case OpTrue:
		return true
	case OpFalse:
		return false
	case OpNot:
		return !Truth(cond.children[0], r)
	case OpOr:
		return Truth(cond.children[0], r) || Truth(cond.children[1], r)
	case OpAnd:
		return Truth(cond.children[0], r) && Truth(cond.children[1], r)
	}
	if !cond.op.Comparison() {
		panic(fmt.Sprintf("ast: truth of %s node", cond.Kind()))
	}
	l, rv := Value(cond.children[0], r), Value(cond.children[1], r)
	switch cond.op {
	case OpLess:
		return l < rv
	case OpLessEqual:
		return l <= rv
	case OpEqual:
		return l == rv
	case OpGreaterEqual:
		return l >= rv
	}
	return l > rv
}

// Value is the numeric value of an Expression. Division by zero follows
// IEEE-754 and never panics.
func Value(expr *Node, r Readings) float64 {
	switch expr.op {
	case OpConstant:
		return expr.value
	case OpSensor:
		return r.Reading(expr.children[0].sensor)
	case OpPlus, OpMinus, OpMultiply, OpDivide:
		return fold(expr.op, Value(expr.children[0], r), Value(expr.children[1], r))
	}
	panic(fmt.Sprintf("ast: value of %s node", expr.Kind()))
}
