// Package reroot enumerates alternative rootings of a gene tree and selects
// among them by reconciliation cost.
//
// An unrooted gene topology admits one rooting per edge. Mis-rooted gene
// trees inflate the duplication/loss account, so callers can ask for every
// rooting, only the cheapest ones, or no rerooting at all.
package reroot

import (
	"fmt"

	"github.com/UdeM-LBIT/profileNJ/pkg/phylo"
	"github.com/UdeM-LBIT/profileNJ/pkg/reconcile"
)

// Policy selects how rootings are searched.
type Policy int

const (
	// PolicyNone keeps the input rooting untouched.
	PolicyNone Policy = iota
	// PolicyAll evaluates and returns every rooting.
	PolicyAll
	// PolicyBest evaluates every rooting and keeps only those whose cost
	// matches the global minimum.
	PolicyBest
)

// String returns the lowercase policy name used on the command line.
func (p Policy) String() string {
	switch p {
	case PolicyNone:
		return "none"
	case PolicyAll:
		return "all"
	case PolicyBest:
		return "best"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParsePolicy parses a command-line policy name.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "none":
		return PolicyNone, nil
	case "all":
		return PolicyAll, nil
	case "best":
		return PolicyBest, nil
	}
	return 0, fmt.Errorf("reroot: unknown policy %q (must be one of: none, all, best)", s)
}

// CostTolerance absorbs floating error accumulated in the weighted scalar
// cost when comparing rootings under PolicyBest. The integer dup/loss counts
// themselves are exact; the tolerance only matters when externally supplied
// float weights are in play.
const CostTolerance = 1e-7

// Rooted is one evaluated rooting: the tree, its LCA map, and its cost.
type Rooted struct {
	Tree *phylo.Tree
	Map  *reconcile.LCAMap
	DL   reconcile.DLCost
}

// AllRoots returns one rerooted copy of t per non-root node: the new root is
// placed on the edge above that node. A tree with N nodes yields N-1
// candidates. Topology away from the root, leaf labels, species labels and
// path distances are preserved; the old root is spliced out when rerooting
// leaves it with a single child.
func AllRoots(t *phylo.Tree) []*phylo.Tree {
	var out []*phylo.Tree
	for _, v := range t.PostOrder() {
		if v == t.Root() {
			continue
		}
		out = append(out, RerootAt(t, v))
	}
	return out
}

// RerootAt returns a copy of t rooted on the edge between v and its parent.
// The edge's branch length, when present, is split evenly across the two
// halves so leaf-to-leaf path distances are unchanged.
func RerootAt(t *phylo.Tree, v int) *phylo.Tree {
	out := phylo.New()
	newRoot := out.Root()

	vn := t.Node(v)
	halfLen, hasLen := vn.Length/2, vn.HasLength

	vCopy := copySubtree(out, newRoot, t, v)
	if hasLen {
		out.Node(vCopy).Length = halfLen
	}

	// Flip the root path: each former ancestor of v becomes a descendant of
	// the new root, carrying the length of the edge it used to hang below.
	prevLen, prevHas := halfLen, hasLen
	attachTo := newRoot
	pathChild := v
	for x := vn.Parent; x != phylo.NilID; x = t.Node(x).Parent {
		xn := t.Node(x)
		others := make([]int, 0, len(xn.Children))
		for _, c := range xn.Children {
			if c != pathChild {
				others = append(others, c)
			}
		}

		if xn.Parent == phylo.NilID && len(others) == 1 {
			// The old root would be left unary: splice it out, merging the
			// two incident edges.
			c := others[0]
			cCopy := copySubtree(out, attachTo, t, c)
			cn := t.Node(c)
			out.Node(cCopy).HasLength = cn.HasLength && prevHas
			out.Node(cCopy).Length = cn.Length + prevLen
			break
		}

		nx := out.NewNode()
		out.Node(nx).Name = xn.Name
		out.Node(nx).Species = xn.Species
		out.Node(nx).Length = prevLen
		out.Node(nx).HasLength = prevHas
		out.Attach(attachTo, nx)
		for _, c := range others {
			copySubtree(out, nx, t, c)
		}

		prevLen, prevHas = xn.Length, xn.HasLength
		attachTo = nx
		pathChild = x
	}
	return out
}

// copySubtree appends a deep copy of src's subtree at srcRoot under
// dstParent and returns the index of the copied root. Iterative; child order
// is preserved.
func copySubtree(dst *phylo.Tree, dstParent int, src *phylo.Tree, srcRoot int) int {
	type frame struct {
		src    int
		parent int
	}
	rootCopy := phylo.NilID
	stack := []frame{{src: srcRoot, parent: dstParent}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		id := dst.NewNode()
		sn := src.Node(f.src)
		n := dst.Node(id)
		n.Name = sn.Name
		n.Species = sn.Species
		n.Length = sn.Length
		n.HasLength = sn.HasLength
		dst.Attach(f.parent, id)
		if rootCopy == phylo.NilID {
			rootCopy = id
		}

		kids := sn.Children
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{src: kids[i], parent: id})
		}
	}
	return rootCopy
}

// Search evaluates rootings of gene under the policy and returns them with
// their reconciliation costs, in enumeration order (input tree first).
//
// PolicyBest keeps every candidate whose weighted cost is within
// CostTolerance of the minimum; with uniform unit weights this reduces to an
// exact comparison of the integer dup/loss totals.
func Search(gene, species *phylo.Tree, cfg reconcile.Config, policy Policy) ([]Rooted, error) {
	evaluate := func(t *phylo.Tree) (Rooted, error) {
		m, dl, err := reconcile.Reconcile(t, species, cfg)
		if err != nil {
			return Rooted{}, err
		}
		return Rooted{Tree: t, Map: m, DL: dl}, nil
	}

	base, err := evaluate(gene)
	if err != nil {
		return nil, err
	}
	if policy == PolicyNone {
		return []Rooted{base}, nil
	}

	all := []Rooted{base}
	for _, t := range AllRoots(gene) {
		r, err := evaluate(t)
		if err != nil {
			return nil, err
		}
		all = append(all, r)
	}
	if policy == PolicyAll {
		return all, nil
	}

	min := all[0].DL
	for _, r := range all[1:] {
		if r.DL.Less(min) {
			min = r.DL
		}
	}
	var best []Rooted
	for _, r := range all {
		if r.DL.Cost <= min.Cost+CostTolerance {
			best = append(best, r)
		}
	}
	return best, nil
}
