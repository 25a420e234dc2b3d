package ast

import (
	"errors"
	"fmt"
)

var (
	ErrHandleOutOfRange = errors.New("handle out of range")
	ErrKindMismatch     = errors.New("replacement kind mismatch")
)

// Replace rebuilds root as a deep copy in which the node at pre-order handle
// target is substituted by replacement. The replacement subtree is grafted
// as is; every other node is freshly allocated. The replacement must have
// the same kind as the node it replaces so the result stays well-formed.
func Replace(root *Node, target Handle, replacement *Node) (*Node, error) {
	if replacement == nil {
		return nil, fmt.Errorf("replace handle %d: replacement is nil", target)
	}
	if target < 0 {
		return nil, fmt.Errorf("replace handle %d: %w", target, ErrHandleOutOfRange)
	}

	next := Handle(0)
	var failed error
	var rebuild func(n *Node) *Node
	rebuild = func(n *Node) *Node {
		h := next
		next++
		if h == target {
			if n.Kind() != replacement.Kind() {
				failed = fmt.Errorf("replace %s at handle %d with %s: %w", n.Kind(), h, replacement.Kind(), ErrKindMismatch)
				return n
			}
			// skip the handles of the subtree being dropped
			next += Handle(n.Size() - 1)
			return replacement
		}
		var cs []*Node
		if len(n.children) > 0 {
			cs = make([]*Node, len(n.children))
			for i, c := range n.children {
				cs[i] = rebuild(c)
			}
		}
		return n.withChildren(cs)
	}

	out := rebuild(root)
	if failed != nil {
		return nil, failed
	}
	if target >= next {
		return nil, fmt.Errorf("replace handle %d in tree of %d nodes: %w", target, next, ErrHandleOutOfRange)
	}
	return out, nil
}
