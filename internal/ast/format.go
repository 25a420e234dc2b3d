package ast

import (
	"strconv"
	"strings"
)

var displaySensors = [NumSensors]string{"X", "Y", "Vx", "Vy", "O", "W", "Fuel"}
var displayCommands = [NumCommands]string{"Skip", "Left", "Right", "Thrust"}

var infix = map[Op]string{
	OpOr:           "||",
	OpAnd:          "&&",
	OpLess:         "<",
	OpLessEqual:    "<=",
	OpEqual:        "==",
	OpGreaterEqual: ">=",
	OpGreater:      ">",
	OpPlus:         "+",
	OpMinus:        "-",
	OpMultiply:     "*",
	OpDivide:       "/",
}

// String renders the tree in infix notation, e.g. "(True then Skip else Left)".
func (n *Node) String() string {
	var b strings.Builder
	n.writeInfix(&b)
	return b.String()
}

func (n *Node) writeInfix(b *strings.Builder) {
	switch n.op {
	case OpIf:
		b.WriteByte('(')
		n.children[0].writeInfix(b)
		b.WriteString(" then ")
		n.children[1].writeInfix(b)
		b.WriteString(" else ")
		n.children[2].writeInfix(b)
		b.WriteByte(')')
	case OpCommand, OpSensor:
		n.children[0].writeInfix(b)
	case OpTrue:
		b.WriteString("True")
	case OpFalse:
		b.WriteString("False")
	case OpNot:
		b.WriteByte('!')
		n.children[0].writeInfix(b)
	case OpConstant:
		b.WriteString(strconv.FormatFloat(n.value, 'g', -1, 64))
	case OpReading:
		b.WriteString(displaySensors[n.sensor])
	case OpAction:
		b.WriteString(displayCommands[n.command])
	default:
		b.WriteByte('(')
		n.children[0].writeInfix(b)
		b.WriteString(" " + infix[n.op] + " ")
		n.children[1].writeInfix(b)
		b.WriteByte(')')
	}
}

var macroNames = map[Op]string{
	OpIf:           "iff",
	OpNot:          "not",
	OpOr:           "or",
	OpAnd:          "and",
	OpLess:         "less",
	OpLessEqual:    "less_equal",
	OpEqual:        "equal",
	OpGreaterEqual: "greater_equal",
	OpGreater:      "greater",
	OpPlus:         "plus",
	OpMinus:        "minus",
	OpMultiply:     "multiply",
	OpDivide:       "divide",
}

// Source renders the tree as nested macro calls, e.g.
// "iff!(T!(),skip!(),left!())". Constants carry four decimals.
func Source(n *Node) string {
	var b strings.Builder
	writeSource(&b, n)
	return b.String()
}

func writeSource(b *strings.Builder, n *Node) {
	switch n.op {
	case OpCommand, OpSensor:
		writeSource(b, n.children[0])
		return
	case OpTrue:
		b.WriteString("T!()")
		return
	case OpFalse:
		b.WriteString("F!()")
		return
	case OpConstant:
		b.WriteString("constant!(")
		b.WriteString(strconv.FormatFloat(n.value, 'f', 4, 64))
		b.WriteByte(')')
		return
	case OpReading:
		b.WriteString(n.sensor.String())
		b.WriteString("!()")
		return
	case OpAction:
		b.WriteString(n.command.String())
		b.WriteString("!()")
		return
	}
	b.WriteString(macroNames[n.op])
	b.WriteString("!(")
	for i, c := range n.children {
		if i > 0 {
			b.WriteByte(',')
		}
		writeSource(b, c)
	}
	b.WriteByte(')')
}
