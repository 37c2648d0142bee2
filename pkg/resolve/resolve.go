// Package resolve turns polytomies into ranked binary refinements and
// assembles per-polytomy choices into whole-tree solutions.
//
// A polytomy - a gene-tree node with more than two children - stands for an
// unresolved branching order. Each child is treated as one cluster unit; a
// clustering engine proposes join orders over the units, and every candidate
// is scored by the duplication/loss cost of the edges it introduces. Because
// a refinement never changes the species image of the polytomy node itself,
// scoring is strictly local and independent per polytomy.
package resolve

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/UdeM-LBIT/profileNJ/pkg/cluster"
	"github.com/UdeM-LBIT/profileNJ/pkg/distance"
	"github.com/UdeM-LBIT/profileNJ/pkg/phylo"
	"github.com/UdeM-LBIT/profileNJ/pkg/reconcile"
)

var (
	// ErrNotPolytomy is returned when a resolver is invoked on a node with
	// fewer than three children. This is a contract violation by the caller,
	// not a recoverable input condition.
	ErrNotPolytomy = errors.New("resolve: node is not a polytomy")
)

// Candidate is one binary refinement of a single polytomy.
type Candidate struct {
	// Order is the join order over the polytomy's children (unit i is the
	// i-th child in tree order).
	Order cluster.JoinOrder

	// Local is the duplication/loss account of the refined local structure:
	// the new internal nodes and every edge they carry.
	Local reconcile.DLCost

	// Delta is Local.Cost minus the unresolved node's own local cost; the
	// quantity candidates are ranked by. Negative means the refinement is
	// cheaper than leaving the polytomy in place.
	Delta float64

	// Provenance records which clustering method and alternative produced
	// the candidate.
	Provenance string
}

// Resolver produces ranked candidate refinements for one polytomy node.
// The clustering-based resolver is the workhorse; the exhaustive resolver
// enumerates every topology and exists for small fan-outs and verification.
type Resolver interface {
	ResolvePolytomy(gene *phylo.Tree, node int, m *reconcile.LCAMap, w reconcile.Weights) ([]Candidate, error)
}

// ClusterResolver refines polytomies with distance-guided clustering.
type ClusterResolver struct {
	// Dist supplies leaf distances; inter-unit distances are averages over
	// cross leaf pairs.
	Dist distance.Provider

	// Engine is the clustering configuration (method, path limit, epsilon,
	// seed).
	Engine cluster.Engine
}

// ResolvePolytomy clusters the children of node and returns candidates
// ranked ascending by cost delta, at most Engine.PathLimit of them (all when
// the limit is -1).
func (r ClusterResolver) ResolvePolytomy(gene *phylo.Tree, node int, m *reconcile.LCAMap, w reconcile.Weights) ([]Candidate, error) {
	children := gene.Node(node).Children
	k := len(children)
	if k < 3 {
		return nil, ErrNotPolytomy
	}

	// Random joining never consults distances, so the matrix stays zero and
	// no distance source is required.
	d := mat.NewSymDense(k, nil)
	if r.Engine.Method != cluster.Rand {
		// One leaf-name group per child unit; the provider is narrowed to
		// the union so stray lookups fail loudly.
		groups := make([][]string, k)
		var all []string
		for i, c := range children {
			groups[i] = gene.LeafNames(c)
			all = append(all, groups[i]...)
		}
		prov := r.Dist.Restrict(all)

		for i := 0; i < k; i++ {
			for j := i + 1; j < k; j++ {
				v, err := distance.Average(prov, groups[i], groups[j])
				if err != nil {
					return nil, err
				}
				d.SetSym(i, j, v)
			}
		}
	}

	orders, err := r.Engine.Run(k, d)
	if err != nil {
		return nil, err
	}

	cands := make([]Candidate, 0, len(orders))
	for i, o := range orders {
		cands = append(cands, score(gene, node, m, w, o,
			fmt.Sprintf("%s#%d", r.Engine.Method, i)))
	}
	return rank(cands, r.Engine.PathLimit), nil
}

// rank sorts candidates ascending by delta (stable, so ties keep generation
// order) and trims to limit when it is positive.
func rank(cands []Candidate, limit int) []Candidate {
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].Delta < cands[j].Delta })
	if limit > 0 && len(cands) > limit {
		cands = cands[:limit]
	}
	return cands
}

// score computes the local DL account of a join order over the children of
// node, and its delta against the unresolved node.
//
// Images of the merged units are folded bottom-up with species-tree LCAs;
// the rest of the tree is untouched because the final merged image equals
// the polytomy's own image by construction.
func score(gene *phylo.Tree, node int, m *reconcile.LCAMap, w reconcile.Weights, order cluster.JoinOrder, provenance string) Candidate {
	children := gene.Node(node).Children
	k := len(children)

	img := make([]int, k+len(order))
	for i, c := range children {
		img[i] = m.Image[c]
	}

	var local reconcile.DLCost
	for s, step := range order {
		parent := m.LCA(img[step.A], img[step.B])
		img[k+s] = parent
		dup := img[step.A] == parent || img[step.B] == parent
		if dup {
			local.Duplications++
			local.Cost += w.Dup[parent]
		}
		for _, child := range [2]int{step.A, step.B} {
			for _, at := range m.LossPath(parent, img[child], dup) {
				local.Losses++
				local.Cost += w.Loss[at]
			}
		}
	}

	return Candidate{
		Order:      order,
		Local:      local,
		Delta:      local.Cost - unresolvedLocalCost(gene, node, m, w),
		Provenance: provenance,
	}
}

// unresolvedLocalCost is the DL cost the polytomy node contributes as-is:
// its own (multifurcating) duplication status and the losses on its child
// edges.
func unresolvedLocalCost(gene *phylo.Tree, node int, m *reconcile.LCAMap, w reconcile.Weights) float64 {
	img := m.Image[node]
	dup := reconcile.IsDuplication(gene, m, node)
	var cost float64
	if dup {
		cost += w.Dup[img]
	}
	for _, c := range gene.Node(node).Children {
		for _, at := range m.LossPath(img, m.Image[c], dup) {
			cost += w.Loss[at]
		}
	}
	return cost
}

// Apply materializes a candidate join order into an independent copy of the
// gene tree: the polytomy's children are rewired under k-2 fresh internal
// nodes, and the polytomy node itself becomes the root of the refined
// subtree. Node indices of the original tree remain valid in the copy.
func Apply(gene *phylo.Tree, node int, order cluster.JoinOrder) *phylo.Tree {
	t := gene.Clone()
	applyInPlace(t, node, order)
	return t
}

// applyInPlace rewires node's children according to order. The caller owns t.
func applyInPlace(t *phylo.Tree, node int, order cluster.JoinOrder) {
	children := append([]int(nil), t.Node(node).Children...)
	k := len(children)

	// Unit label -> node index. Labels 0..k-1 are the original children;
	// labels k.. are created by merge steps, the last of which is the
	// polytomy node itself.
	unit := make([]int, k+len(order))
	copy(unit, children)

	t.Node(node).Children = nil
	for _, c := range children {
		t.Node(c).Parent = phylo.NilID
	}

	for s, step := range order {
		parent := node
		if s < len(order)-1 {
			parent = t.NewNode()
		}
		t.Attach(parent, unit[step.A])
		t.Attach(parent, unit[step.B])
		unit[k+s] = parent
	}
}
