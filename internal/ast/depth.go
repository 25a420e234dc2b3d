package ast

// Depth is the maximum nesting depth of the tree: 1 for a leaf, otherwise one
// more than the deepest child.
func Depth(n *Node) int {
	deepest := 0
	for _, c := range n.children {
		if d := Depth(c); d > deepest {
			deepest = d
		}
	}
	return 1 + deepest
}
