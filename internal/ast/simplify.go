package ast

// Simplify returns an equivalent, usually smaller tree. Rules are applied
// bottom-up:
//
//   - If(c, l, r) with a literal condition collapses to the taken branch.
//   - Not folds literals and removes double negation.
//   - Or drops a False operand, And drops a True operand.
//   - Arithmetic on two constants folds into one constant with IEEE-754
//     semantics, so a division by zero yields Inf or NaN.
//
// Comparisons and leaves are copied unchanged. The result shares no nodes
// with n.
func Simplify(n *Node) *Node {
	switch n.op {
	case OpIf:
		c := Simplify(n.children[0])
		switch c.op {
		case OpTrue:
			return Simplify(n.children[1])
		case OpFalse:
			return Simplify(n.children[2])
		}
		return If(c, Simplify(n.children[1]), Simplify(n.children[2]))

	case OpNot:
		inner := Simplify(n.children[0])
		switch inner.op {
		case OpTrue:
			return False()
		case OpFalse:
			return True()
		case OpNot:
			return inner.children[0]
		}
		return Not(inner)

	case OpOr:
		l, r := Simplify(n.children[0]), Simplify(n.children[1])
		if l.op == OpFalse {
			return r
		}
		if r.op == OpFalse {
			return l
		}
		return Or(l, r)

	case OpAnd:
		l, r := Simplify(n.children[0]), Simplify(n.children[1])
		if l.op == OpTrue {
			return r
		}
		if r.op == OpTrue {
			return l
		}
		return And(l, r)

	case OpPlus, OpMinus, OpMultiply, OpDivide:
		l, r := Simplify(n.children[0]), Simplify(n.children[1])
		if l.op == OpConstant && r.op == OpConstant {
			return Constant(fold(n.op, l.value, r.value))
		}
		return New(n.op, l, r)
	}
	return n.Clone()
}

func fold(op Op, l, r float64) float64 {
	switch op {
	case OpPlus:
		return l + r
	case OpMinus:
		return l - r
	case OpMultiply:
		return l * r
	}
	return l / r
}
