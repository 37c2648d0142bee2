// Package phylo provides the rooted multi-child tree model shared by the
// gene-tree and species-tree sides of reconciliation.
//
// Trees are stored as arenas of index-addressed nodes rather than as linked
// structures. All traversals are explicit-stack iterations, so deep or highly
// multifurcating trees never hit goroutine stack limits, and cloning a tree is
// a flat copy of the arena.
package phylo

import (
	"errors"
	"sort"
	"strings"
)

// NilID marks the absence of a node reference (e.g. the root's parent).
const NilID = -1

var (
	// ErrNodeOutOfRange is returned when a node index does not address a node
	// in the tree's arena.
	ErrNodeOutOfRange = errors.New("node index out of range")

	// ErrUnnamedLeaf is returned by Validate when a leaf has an empty name.
	// Every leaf must carry a non-empty label.
	ErrUnnamedLeaf = errors.New("leaf has no name")

	// ErrBrokenParentLink is returned by Validate when a child's Parent field
	// does not point back at the node listing it. This indicates arena
	// corruption from direct node manipulation.
	ErrBrokenParentLink = errors.New("child parent link does not match")
)

// Node is a single vertex in the arena. Fields are exported so algorithms can
// restructure trees in place (the polytomy resolver rewires Children and
// Parent directly); callers doing so are responsible for keeping the links
// consistent - use Validate after bulk edits.
type Node struct {
	Name      string  // leaf label, or optional internal label
	Species   string  // species assignment (gene-tree leaves only)
	Parent    int     // parent index, NilID for the root
	Children  []int   // child indices in order
	Length    float64 // branch length of the edge above this node
	HasLength bool    // whether Length is meaningful
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// Tree is a rooted multi-child tree backed by a flat node arena.
// The zero value is not usable - use New.
type Tree struct {
	nodes []Node
	root  int
}

// New creates a tree containing only a root node and returns it.
// The root has index 0.
func New() *Tree {
	return &Tree{nodes: []Node{{Parent: NilID}}}
}

// Root returns the index of the root node.
func (t *Tree) Root() int { return t.root }

// Len returns the number of nodes in the arena, including any nodes that have
// been detached from the root by restructuring.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns a pointer to the node at index id. The pointer addresses the
// arena directly, so mutations are visible to the tree. Node panics on an
// out-of-range index; use Len to bound iteration.
func (t *Tree) Node(id int) *Node { return &t.nodes[id] }

// NewNode appends a detached node to the arena and returns its index.
// The node has no parent and no children until wired with Attach or by
// setting links directly.
func (t *Tree) NewNode() int {
	t.nodes = append(t.nodes, Node{Parent: NilID})
	return len(t.nodes) - 1
}

// AddChild appends a new node as the last child of parent and returns its
// index.
func (t *Tree) AddChild(parent int) int {
	id := t.NewNode()
	t.Attach(parent, id)
	return id
}

// Attach makes child the last child of parent, updating both links.
// The child must currently be detached (Parent == NilID).
func (t *Tree) Attach(parent, child int) {
	t.nodes[child].Parent = parent
	t.nodes[parent].Children = append(t.nodes[parent].Children, child)
}

// Detach removes child from its parent's child list and clears its parent
// link. The node stays in the arena; it is simply unreachable from the root.
func (t *Tree) Detach(child int) {
	p := t.nodes[child].Parent
	if p == NilID {
		return
	}
	kids := t.nodes[p].Children
	for i, c := range kids {
		if c == child {
			t.nodes[p].Children = append(kids[:i], kids[i+1:]...)
			break
		}
	}
	t.nodes[child].Parent = NilID
}

// Clone returns a fully independent copy of the tree. No slice or node is
// shared, so restructuring the copy never perturbs the original.
func (t *Tree) Clone() *Tree {
	c := &Tree{nodes: make([]Node, len(t.nodes)), root: t.root}
	for i, n := range t.nodes {
		cp := n
		cp.Children = append([]int(nil), n.Children...)
		c.nodes[i] = cp
	}
	return c
}

// PostOrder returns the indices of all nodes reachable from the root in
// post-order (children before parents).
func (t *Tree) PostOrder() []int { return t.PostOrderFrom(t.root) }

// PostOrderFrom returns the post-order of the subtree rooted at id.
func (t *Tree) PostOrderFrom(id int) []int {
	order := make([]int, 0, len(t.nodes))
	type frame struct {
		id   int
		next int
	}
	stack := []frame{{id: id}}
	for len(stack) > 0 {
		top := len(stack) - 1
		f := stack[top]
		kids := t.nodes[f.id].Children
		if f.next < len(kids) {
			stack[top].next++
			stack = append(stack, frame{id: kids[f.next]})
			continue
		}
		order = append(order, f.id)
		stack = stack[:top]
	}
	return order
}

// Leaves returns the indices of all leaves reachable from the root, in
// post-order (left to right).
func (t *Tree) Leaves() []int { return t.LeavesUnder(t.root) }

// LeavesUnder returns the leaf indices of the subtree rooted at id.
func (t *Tree) LeavesUnder(id int) []int {
	var leaves []int
	for _, v := range t.PostOrderFrom(id) {
		if t.nodes[v].IsLeaf() {
			leaves = append(leaves, v)
		}
	}
	return leaves
}

// LeafNames returns the sorted leaf names of the subtree rooted at id.
func (t *Tree) LeafNames(id int) []string {
	var names []string
	for _, v := range t.LeavesUnder(id) {
		names = append(names, t.nodes[v].Name)
	}
	sort.Strings(names)
	return names
}

// Depths returns, for every node index, its edge distance from the root.
// Nodes detached from the root keep depth 0.
func (t *Tree) Depths() []int {
	depth := make([]int, len(t.nodes))
	// Pre-order assignment: parents are visited before children.
	stack := []int{t.root}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range t.nodes[v].Children {
			depth[c] = depth[v] + 1
			stack = append(stack, c)
		}
	}
	return depth
}

// Polytomies returns the indices of all reachable nodes with more than two
// children, in post-order.
func (t *Tree) Polytomies() []int {
	var poly []int
	for _, v := range t.PostOrder() {
		if len(t.nodes[v].Children) > 2 {
			poly = append(poly, v)
		}
	}
	return poly
}

// IsBinary reports whether every reachable internal node has exactly two
// children.
func (t *Tree) IsBinary() bool {
	for _, v := range t.PostOrder() {
		if k := len(t.nodes[v].Children); k != 0 && k != 2 {
			return false
		}
	}
	return true
}

// Signature returns a canonical topology string for the subtree rooted at id:
// leaves map to their names and internal nodes to the sorted signatures of
// their children. Two subtrees have equal signatures iff they are the same
// topology over the same leaf labels, regardless of child order.
func (t *Tree) Signature(id int) string {
	sig := make(map[int]string)
	for _, v := range t.PostOrderFrom(id) {
		n := &t.nodes[v]
		if n.IsLeaf() {
			sig[v] = n.Name
			continue
		}
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			parts[i] = sig[c]
		}
		sort.Strings(parts)
		sig[v] = "(" + strings.Join(parts, ",") + ")"
	}
	return sig[id]
}

// Validate checks arena integrity for all reachable nodes: parent/child links
// must be mutually consistent and every leaf must be named.
func (t *Tree) Validate() error {
	for _, v := range t.PostOrder() {
		n := &t.nodes[v]
		if n.IsLeaf() && n.Name == "" {
			return ErrUnnamedLeaf
		}
		for _, c := range n.Children {
			if c < 0 || c >= len(t.nodes) {
				return ErrNodeOutOfRange
			}
			if t.nodes[c].Parent != v {
				return ErrBrokenParentLink
			}
		}
	}
	return nil
}
