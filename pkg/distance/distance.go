// Package distance supplies pairwise leaf-to-leaf distances to the
// clustering engine.
//
// Distances come from one of two sources: a precomputed symmetric matrix
// (parsed from a leaf-by-leaf numeric file) or the branch lengths of the gene
// tree itself. Both sources implement Provider and can be restricted to an
// arbitrary leaf subset - the children of one polytomy - without recomputing
// anything.
package distance

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/UdeM-LBIT/profileNJ/pkg/phylo"
)

// Provider yields the symmetric distance between two leaves by name.
type Provider interface {
	// Distance returns d(a, b). The pair must be two distinct leaves known
	// to the provider.
	Distance(a, b string) (float64, error)

	// Restrict narrows the provider to the given leaf names. Lookups outside
	// the subset fail. The receiver is unchanged.
	Restrict(names []string) Provider
}

// UnknownLeafError reports a distance lookup for a leaf the provider does not
// know (or that was excluded by Restrict).
type UnknownLeafError struct{ Name string }

func (e *UnknownLeafError) Error() string {
	return fmt.Sprintf("distance: unknown leaf %q", e.Name)
}

// MissingBranchLengthError reports a path-length lookup over an edge that
// carries no branch length. It is fatal for the gene tree being processed:
// without lengths and without a matrix there is no distance source.
type MissingBranchLengthError struct{ Node string }

func (e *MissingBranchLengthError) Error() string {
	return fmt.Sprintf("distance: no branch length on edge above %q", e.Node)
}

// NegativeDistanceError reports a matrix entry that is negative (or a
// self-distance lookup) while large-distance substitution is disabled.
type NegativeDistanceError struct{ A, B string }

func (e *NegativeDistanceError) Error() string {
	return fmt.Sprintf("distance: undefined distance between %q and %q", e.A, e.B)
}

// Matrix is a Provider backed by a symmetric matrix of leaf distances.
type Matrix struct {
	index   map[string]int
	d       *mat.SymDense
	allowed map[string]bool // nil means every indexed leaf
	large   float64         // substitution for undefined entries; 0 disables
}

// NewMatrix wraps a name list and a symmetric matrix. names[i] labels row and
// column i of d.
func NewMatrix(names []string, d *mat.SymDense) *Matrix {
	idx := make(map[string]int, len(names))
	for i, n := range names {
		idx[n] = i
	}
	return &Matrix{index: idx, d: d}
}

// WithLargeDistance returns a copy of the matrix that substitutes large for
// negative or diagonal entries instead of failing. This mirrors matrices
// produced by alignment tools that mark unalignable pairs with -1.
func (m *Matrix) WithLargeDistance(large float64) *Matrix {
	cp := *m
	cp.large = large
	return &cp
}

// Distance looks up d(a, b), applying large-distance substitution when
// configured.
func (m *Matrix) Distance(a, b string) (float64, error) {
	i, err := m.lookup(a)
	if err != nil {
		return 0, err
	}
	j, err := m.lookup(b)
	if err != nil {
		return 0, err
	}
	if i == j {
		if m.large > 0 {
			return m.large, nil
		}
		return 0, &NegativeDistanceError{A: a, B: b}
	}
	v := m.d.At(i, j)
	if v < 0 {
		if m.large > 0 {
			return m.large, nil
		}
		return 0, &NegativeDistanceError{A: a, B: b}
	}
	return v, nil
}

// Restrict limits lookups to names. The underlying matrix is shared, not
// copied.
func (m *Matrix) Restrict(names []string) Provider {
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}
	cp := *m
	cp.allowed = allowed
	return &cp
}

func (m *Matrix) lookup(name string) (int, error) {
	if m.allowed != nil && !m.allowed[name] {
		return 0, &UnknownLeafError{Name: name}
	}
	i, ok := m.index[name]
	if !ok {
		return 0, &UnknownLeafError{Name: name}
	}
	return i, nil
}

// ParseMatrix reads the leaf-by-leaf numeric format: a first line with the
// leaf count, then one row per leaf of "name v1 v2 ... vn" separated by
// whitespace. The matrix must be square; symmetry is taken from the lower
// triangle.
func ParseMatrix(r io.Reader) (*Matrix, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !sc.Scan() {
		return nil, fmt.Errorf("distance: empty matrix file")
	}
	n, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
	if err != nil || n < 2 {
		return nil, fmt.Errorf("distance: bad leaf count %q", strings.TrimSpace(sc.Text()))
	}

	names := make([]string, 0, n)
	d := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		if !sc.Scan() {
			return nil, fmt.Errorf("distance: expected %d rows, got %d", n, i)
		}
		fields := strings.Fields(sc.Text())
		if len(fields) != n+1 {
			return nil, fmt.Errorf("distance: row %d has %d values, want %d", i+1, len(fields)-1, n)
		}
		names = append(names, fields[0])
		for j := 0; j <= i; j++ {
			v, err := strconv.ParseFloat(fields[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("distance: row %d column %d: %w", i+1, j+1, err)
			}
			d.SetSym(i, j, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return NewMatrix(names, d), nil
}

// PathLength derives distances from branch lengths: d(a, b) is the sum of
// lengths along the unique path between the two leaves.
type PathLength struct {
	t       *phylo.Tree
	leaf    map[string]int
	depth   []int
	allowed map[string]bool
}

// NewPathLength builds a provider over the leaves of t. Lengths are read
// lazily per lookup, so trees with partial lengths only fail for pairs whose
// path actually crosses an unlengthed edge.
func NewPathLength(t *phylo.Tree) *PathLength {
	leaf := make(map[string]int)
	for _, v := range t.Leaves() {
		leaf[t.Node(v).Name] = v
	}
	return &PathLength{t: t, leaf: leaf, depth: t.Depths()}
}

// Distance sums branch lengths along the a-b path.
func (p *PathLength) Distance(a, b string) (float64, error) {
	u, err := p.lookup(a)
	if err != nil {
		return 0, err
	}
	v, err := p.lookup(b)
	if err != nil {
		return 0, err
	}
	var sum float64
	step := func(id int) (int, error) {
		n := p.t.Node(id)
		if !n.HasLength {
			return 0, &MissingBranchLengthError{Node: n.Name}
		}
		sum += n.Length
		return n.Parent, nil
	}
	for u != v {
		if p.depth[u] < p.depth[v] {
			if v, err = step(v); err != nil {
				return 0, err
			}
		} else {
			if u, err = step(u); err != nil {
				return 0, err
			}
		}
	}
	return sum, nil
}

// Restrict limits lookups to names; the tree is shared.
func (p *PathLength) Restrict(names []string) Provider {
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}
	cp := *p
	cp.allowed = allowed
	return &cp
}

func (p *PathLength) lookup(name string) (int, error) {
	if p.allowed != nil && !p.allowed[name] {
		return 0, &UnknownLeafError{Name: name}
	}
	id, ok := p.leaf[name]
	if !ok {
		return 0, &UnknownLeafError{Name: name}
	}
	return id, nil
}

// Average returns the mean distance over all cross pairs of two leaf groups.
// This is how the polytomy resolver seeds inter-subtree distances: each child
// of a polytomy is one cluster unit, even when it is itself a subtree.
func Average(p Provider, group1, group2 []string) (float64, error) {
	var sum float64
	for _, a := range group1 {
		for _, b := range group2 {
			d, err := p.Distance(a, b)
			if err != nil {
				return 0, err
			}
			sum += d
		}
	}
	return sum / float64(len(group1)*len(group2)), nil
}
