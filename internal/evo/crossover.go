package evo

import (
	"errors"
	"fmt"
	"math/rand"

	"lunargp/internal/ast"
	"lunargp/internal/pick"
)

var (
	ErrNoCommonKind  = errors.New("trees share no node kind")
	ErrSelfCrossover = errors.New("cannot cross a tree with itself")
)

// CrossOver swaps one node of a with one node of b of the same kind. The kind
// is chosen uniformly among the kinds present in both trees and each node
// uniformly among that kind's nodes in its tree. The children share no
// nodes with each other or with the parents.
func CrossOver(a, b *ast.Node, rng *rand.Rand) (*ast.Node, *ast.Node, error) {
	if a == b {
		return nil, nil, ErrSelfCrossover
	}
	sa, sb := ast.Collect(a), ast.Collect(b)
	common := make([]ast.Kind, 0, ast.NumKinds)
	for _, k := range ast.Kinds() {
		if sa.Count(k) > 0 && sb.Count(k) > 0 {
			common = append(common, k)
		}
	}
	kind, err := pick.Uniform(rng, common)
	if err != nil {
		return nil, nil, ErrNoCommonKind
	}
	ha, _ := pick.Uniform(rng, sa.Handles(kind))
	hb, _ := pick.Uniform(rng, sb.Handles(kind))

	childA, err := ast.Replace(a, ha, sb.Node(hb).Clone())
	if err != nil {
		return nil, nil, fmt.Errorf("crossover %s: %w", kind, err)
	}
	childB, err := ast.Replace(b, hb, sa.Node(ha).Clone())
	if err != nil {
		return nil, nil, fmt.Errorf("crossover %s: %w", kind, err)
	}
	return childA, childB, nil
}
