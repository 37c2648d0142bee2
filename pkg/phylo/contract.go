package phylo

// Contract collapses internal edges shorter than minLength into their parent,
// turning weakly supported bipartitions into polytomies. Leaf edges and the
// root are never collapsed, and edges without a branch length are kept.
//
// The input tree is not modified; Contract returns a rebuilt tree and the
// number of edges collapsed. Node indices are not preserved across the
// rebuild.
func (t *Tree) Contract(minLength float64) (*Tree, int) {
	collapse := make(map[int]bool)
	for _, v := range t.PostOrder() {
		n := t.Node(v)
		if v == t.root || n.IsLeaf() {
			continue
		}
		if n.HasLength && n.Length < minLength {
			collapse[v] = true
		}
	}

	out := New()
	*out.Node(out.Root()) = t.nodes[t.root]
	out.Node(out.Root()).Parent = NilID
	out.Node(out.Root()).Children = nil

	// DFS with an explicit stack; children are pushed in reverse so the
	// rebuilt tree preserves child order. Collapsed nodes contribute their
	// children directly to the nearest kept ancestor.
	type frame struct {
		old       int
		newParent int
	}
	var stack []frame
	push := func(parent int, kids []int) {
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{old: kids[i], newParent: parent})
		}
	}
	push(out.Root(), t.nodes[t.root].Children)

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if collapse[f.old] {
			push(f.newParent, t.nodes[f.old].Children)
			continue
		}
		id := out.NewNode()
		n := t.nodes[f.old]
		n.Children = nil
		n.Parent = NilID
		*out.Node(id) = n
		out.Attach(f.newParent, id)
		push(id, t.nodes[f.old].Children)
	}
	return out, len(collapse)
}
