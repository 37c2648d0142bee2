// Package reconcile maps gene trees onto species trees and accounts for the
// duplication and loss events the mapping implies.
//
// The two entry points are MapLCA, which computes the least-common-ancestor
// image of every gene node in one post-order pass, and ComputeDL, which turns
// an LCA map into duplication/loss counts and a weighted scalar cost. Every
// candidate topology produced elsewhere in the module is compared using this
// one scoring function, so both passes are strictly deterministic.
package reconcile

import "github.com/UdeM-LBIT/profileNJ/pkg/phylo"

// UnmappedSpeciesError reports a gene leaf whose species label has no
// matching node in the species tree. It is fatal for the gene tree being
// processed but must not abort sibling trees in a batch.
type UnmappedSpeciesError struct {
	Leaf    string // gene leaf name
	Species string // species label that failed to map
}

func (e *UnmappedSpeciesError) Error() string {
	return "reconcile: species " + e.Species + " of leaf " + e.Leaf + " not in species tree"
}

// LCAMap is the total mapping from gene-tree nodes to species-tree nodes.
// It retains the species tree and its depth table so that duplication/loss
// accounting and local rescoring can be done without recomputation.
//
// Invariant: for gene nodes u ancestor of v, Image[u] is an ancestor of (or
// equal to) Image[v] in the species tree.
type LCAMap struct {
	Image   []int // gene node index -> species node index
	Species *phylo.Tree
	depth   []int
}

// MapLCA computes the LCA map of gene against species. Leaves map to the
// species node carrying their species label; internal nodes map to the
// species-tree LCA of their children's images, computed bottom-up.
//
// Gene leaves must have Node.Species set (see the species package). Returns
// an *UnmappedSpeciesError when a label is absent from the species tree.
func MapLCA(gene, species *phylo.Tree) (*LCAMap, error) {
	byLabel := make(map[string]int)
	for _, v := range species.PostOrder() {
		n := species.Node(v)
		if !n.IsLeaf() && n.Name != "" {
			byLabel[n.Name] = v
		}
	}
	// Leaves win over identically named internal nodes.
	for _, v := range species.Leaves() {
		byLabel[species.Node(v).Name] = v
	}

	m := &LCAMap{
		Image:   make([]int, gene.Len()),
		Species: species,
		depth:   species.Depths(),
	}
	for i := range m.Image {
		m.Image[i] = phylo.NilID
	}

	for _, v := range gene.PostOrder() {
		n := gene.Node(v)
		if n.IsLeaf() {
			img, ok := byLabel[n.Species]
			if !ok {
				return nil, &UnmappedSpeciesError{Leaf: n.Name, Species: n.Species}
			}
			m.Image[v] = img
			continue
		}
		img := phylo.NilID
		for _, c := range n.Children {
			if img == phylo.NilID {
				img = m.Image[c]
			} else {
				img = m.LCA(img, m.Image[c])
			}
		}
		m.Image[v] = img
	}
	return m, nil
}

// Depth returns the root distance of a species node.
func (m *LCAMap) Depth(speciesNode int) int { return m.depth[speciesNode] }

// LCA returns the lowest common ancestor of two species nodes, found by
// walking the deeper node up until the paths meet.
func (m *LCAMap) LCA(a, b int) int {
	for a != b {
		if m.depth[a] < m.depth[b] {
			b = m.Species.Node(b).Parent
		} else {
			a = m.Species.Node(a).Parent
		}
	}
	return a
}

// LossPath returns the species nodes at which loss events occur along a gene
// edge whose parent maps to parentImg and whose child maps to childImg.
//
// Walking down from parentImg to childImg, the gene lineage passes through
// every species node on the path; at each branching it fails to appear in
// the lineage off the path. A speciation parent already accounts for both
// children of parentImg, so its own branching is skipped; a duplication
// parent's copy must additionally survive parentImg's branching, so the path
// starts one node higher. The returned length equals the loss count of the
// edge.
func (m *LCAMap) LossPath(parentImg, childImg int, parentDup bool) []int {
	var path []int
	for v := childImg; v != parentImg; v = m.Species.Node(v).Parent {
		path = append(path, m.Species.Node(v).Parent)
	}
	// path holds parentImg..just-above-childImg from the child side up; the
	// events sit strictly between the images unless the parent duplicated.
	if len(path) == 0 {
		return nil
	}
	if !parentDup {
		path = path[:len(path)-1] // drop the event at parentImg itself
	}
	return path
}
