package ast

import (
	"encoding/json"
	"fmt"

	"lunargp/internal/num"
)

type wireNode struct {
	Op      string     `json:"op"`
	Value   *num.Float `json:"value,omitempty"`
	Sensor  string     `json:"sensor,omitempty"`
	Command string     `json:"command,omitempty"`
	Args    []wireNode `json:"args,omitempty"`
}

func toWire(n *Node) wireNode {
	w := wireNode{Op: n.op.String()}
	switch n.op {
	case OpConstant:
		v := num.Float(n.value)
		w.Value = &v
	case OpReading:
		w.Sensor = n.sensor.String()
	case OpAction:
		w.Command = n.command.String()
	}
	if len(n.children) > 0 {
		w.Args = make([]wireNode, len(n.children))
		for i, c := range n.children {
			w.Args[i] = toWire(c)
		}
	}
	return w
}

func fromWire(w wireNode) (*Node, error) {
	op, err := parseOp(w.Op)
	if err != nil {
		return nil, err
	}
	if len(w.Args) != op.Arity() {
		return nil, fmt.Errorf("%s takes %d args, got %d", op, op.Arity(), len(w.Args))
	}
	switch op {
	case OpConstant:
		if w.Value == nil {
			return nil, fmt.Errorf("constant without value")
		}
		return Constant(float64(*w.Value)), nil
	case OpReading:
		s, err := ParseSensor(w.Sensor)
		if err != nil {
			return nil, err
		}
		return Reading(s), nil
	case OpAction:
		c, err := ParseCommand(w.Command)
		if err != nil {
			return nil, err
		}
		return Action(c), nil
	}
	children := make([]*Node, len(w.Args))
	for i, a := range w.Args {
		c, err := fromWire(a)
		if err != nil {
			return nil, fmt.Errorf("%s arg %d: %w", op, i, err)
		}
		if want := ChildKind(op, i); c.Kind() != want {
			return nil, fmt.Errorf("%s arg %d must be %s, got %s", op, i, want, c.Kind())
		}
		children[i] = c
	}
	return New(op, children...), nil
}

// Marshal encodes a tree as JSON.
func Marshal(n *Node) ([]byte, error) {
	return json.Marshal(toWire(n))
}

// Unmarshal decodes a tree produced by Marshal, validating every node.
func Unmarshal(data []byte) (*Node, error) {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	n, err := fromWire(w)
	if err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	return n, nil
}

func (n *Node) MarshalJSON() ([]byte, error) { return Marshal(n) }

func (n *Node) UnmarshalJSON(data []byte) error {
	decoded, err := Unmarshal(data)
	if err != nil {
		return err
	}
	*n = *decoded
	return nil
}
