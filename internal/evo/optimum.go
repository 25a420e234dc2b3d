package evo

import "lunargp/internal/ast"

// OptimumKeeper remembers the best tree seen across generations.
type OptimumKeeper struct {
	tree       *ast.Node
	score      ScoreCard
	generation int
	set        bool
}

func NewOptimumKeeper() *OptimumKeeper {
	return &OptimumKeeper{}
}

// Improved records tree when nothing is kept yet or score strictly beats
// the kept score, and reports whether it did. The kept tree is the
// simplified form of tree.
func (k *OptimumKeeper) Improved(tree *ast.Node, score ScoreCard, generation int) bool {
	if k.set && !score.Better(k.score) {
		return false
	}
	k.tree = ast.Simplify(tree)
	k.score = score
	k.generation = generation
	k.set = true
	return true
}

// Best returns the kept tree, its score and the generation it was found in.
// ok is false until the first call to Improved.
func (k *OptimumKeeper) Best() (tree *ast.Node, score ScoreCard, generation int, ok bool) {
	return k.tree, k.score, k.generation, k.set
}
