package resolve

import (
	"fmt"

	"github.com/UdeM-LBIT/profileNJ/pkg/cluster"
	"github.com/UdeM-LBIT/profileNJ/pkg/phylo"
	"github.com/UdeM-LBIT/profileNJ/pkg/reconcile"
)

// DefaultMaxExhaustive bounds the fan-out the exhaustive resolver accepts.
// The number of rooted binary topologies over k children is (2k-3)!!, which
// is already 135135 at k = 9.
const DefaultMaxExhaustive = 8

// ExhaustiveResolver enumerates every rooted binary topology over a
// polytomy's children and scores them all. It needs no distances, making it
// both a fallback when no distance source exists and an independent check on
// the clustering-based resolver's scoring.
type ExhaustiveResolver struct {
	// MaxChildren rejects polytomies wider than this bound
	// (DefaultMaxExhaustive when zero).
	MaxChildren int

	// PathLimit trims the ranked output like the clustering engine's limit;
	// -1 keeps every topology.
	PathLimit int
}

// ResolvePolytomy scores all (2k-3)!! topologies over node's k children and
// returns them ranked ascending by cost delta.
func (r ExhaustiveResolver) ResolvePolytomy(gene *phylo.Tree, node int, m *reconcile.LCAMap, w reconcile.Weights) ([]Candidate, error) {
	k := len(gene.Node(node).Children)
	if k < 3 {
		return nil, ErrNotPolytomy
	}
	maxK := r.MaxChildren
	if maxK == 0 {
		maxK = DefaultMaxExhaustive
	}
	if k > maxK {
		return nil, fmt.Errorf("resolve: exhaustive enumeration over %d children exceeds bound %d", k, maxK)
	}

	items := make([]int, k)
	for i := range items {
		items[i] = i
	}

	var cands []Candidate
	for i, shape := range enumerate(items) {
		order := shape.joinOrder(k)
		cands = append(cands, score(gene, node, m, w, order, fmt.Sprintf("exhaustive#%d", i)))
	}
	return rank(cands, r.PathLimit), nil
}

// shape is a rooted binary topology over unit labels.
type shape struct {
	leaf        int // valid when left == nil
	left, right *shape
}

// enumerate generates every rooted binary topology over items exactly once.
// Unordered splits are deduplicated by always keeping items[0] on the left
// side.
func enumerate(items []int) []*shape {
	if len(items) == 1 {
		return []*shape{{leaf: items[0]}}
	}
	var out []*shape
	rest := items[1:]
	// Bitmask over rest selects the companions of items[0]; the complement
	// must be non-empty.
	for mask := 0; mask < 1<<len(rest)-1; mask++ {
		left := []int{items[0]}
		var right []int
		for i, it := range rest {
			if mask&(1<<i) != 0 {
				left = append(left, it)
			} else {
				right = append(right, it)
			}
		}
		for _, l := range enumerate(left) {
			for _, r := range enumerate(right) {
				out = append(out, &shape{left: l, right: r})
			}
		}
	}
	return out
}

// joinOrder linearizes the shape into merge steps via an explicit post-order
// walk, assigning fresh labels in visit order.
func (s *shape) joinOrder(k int) cluster.JoinOrder {
	var order cluster.JoinOrder
	label := make(map[*shape]int)

	type frame struct {
		s    *shape
		done bool
	}
	stack := []frame{{s: s}}
	for len(stack) > 0 {
		top := len(stack) - 1
		f := stack[top]
		if f.s.left == nil {
			label[f.s] = f.s.leaf
			stack = stack[:top]
			continue
		}
		if !f.done {
			stack[top].done = true
			stack = append(stack, frame{s: f.s.right}, frame{s: f.s.left})
			continue
		}
		a, b := label[f.s.left], label[f.s.right]
		if a > b {
			a, b = b, a
		}
		order = append(order, cluster.JoinStep{A: a, B: b})
		label[f.s] = k + len(order) - 1
		stack = stack[:top]
	}
	return order
}
