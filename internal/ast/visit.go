package ast

// Handle addresses one node of a tree snapshot by its pre-order position.
// Handles are only meaningful for the tree they were collected from.
type Handle int

// Visitor receives every node of a tree in pre-order, one callback per kind.
type Visitor interface {
	VisitProgram(h Handle, n *Node)
	VisitCondition(h Handle, n *Node)
	VisitExpression(h Handle, n *Node)
	VisitSensor(h Handle, n *Node)
	VisitCommand(h Handle, n *Node)
}

// Visit walks root in pre-order: a node is reported before its children,
// children left to right. Every node is reported exactly once.
func Visit(root *Node, v Visitor) {
	next := Handle(0)
	var walk func(n *Node)
	walk = func(n *Node) {
		h := next
		next++
		switch n.Kind() {
		case KindProgram:
			v.VisitProgram(h, n)
		case KindCondition:
			v.VisitCondition(h, n)
		case KindExpression:
			v.VisitExpression(h, n)
		case KindSensor:
			v.VisitSensor(h, n)
		case KindCommand:
			v.VisitCommand(h, n)
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(root)
}

// BucketCollector records every visited node, grouped by kind in visitation
// order. Together with the node table it forms a snapshot of one tree that
// Replace can address by handle.
type BucketCollector struct {
	nodes   []*Node
	buckets [NumKinds][]Handle
}

// Collect visits root with a fresh BucketCollector.
func Collect(root *Node) *BucketCollector {
	c := &BucketCollector{}
	Visit(root, c)
	return c
}

func (c *BucketCollector) add(k Kind, h Handle, n *Node) {
	c.nodes = append(c.nodes, n)
	c.buckets[k] = append(c.buckets[k], h)
}

func (c *BucketCollector) VisitProgram(h Handle, n *Node)    { c.add(KindProgram, h, n) }
func (c *BucketCollector) VisitCondition(h Handle, n *Node)  { c.add(KindCondition, h, n) }
func (c *BucketCollector) VisitExpression(h Handle, n *Node) { c.add(KindExpression, h, n) }
func (c *BucketCollector) VisitSensor(h Handle, n *Node)     { c.add(KindSensor, h, n) }
func (c *BucketCollector) VisitCommand(h Handle, n *Node)    { c.add(KindCommand, h, n) }

// Handles returns the handles of every collected node of kind k.
func (c *BucketCollector) Handles(k Kind) []Handle { return c.buckets[k] }

// Count is the number of collected nodes of kind k.
func (c *BucketCollector) Count(k Kind) int { return len(c.buckets[k]) }

// Counts returns the per-kind node counts indexed by Kind.
func (c *BucketCollector) Counts() [NumKinds]int {
	var out [NumKinds]int
	for k := range c.buckets {
		out[k] = len(c.buckets[k])
	}
	return out
}

// Total is the number of collected nodes.
func (c *BucketCollector) Total() int { return len(c.nodes) }

// Node resolves a handle, or returns nil when it is out of range.
func (c *BucketCollector) Node(h Handle) *Node {
	if h < 0 || int(h) >= len(c.nodes) {
		return nil
	}
	return c.nodes[h]
}

// Present lists the kinds with at least one collected node.
func (c *BucketCollector) Present() []Kind {
	out := make([]Kind, 0, NumKinds)
	for _, k := range Kinds() {
		if len(c.buckets[k]) > 0 {
			out = append(out, k)
		}
	}
	return out
}
