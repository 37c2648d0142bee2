// Package cluster turns a flat set of items with pairwise distances into
// binary join orders (dendrograms).
//
// Three criteria are available: UPGMA (average linkage), neighbor joining
// (the Q-criterion with the standard distance update), and seeded random
// joining. The engine can explore near-tied merge choices as branching
// alternatives, producing several distinct topologies without enumerating
// the factorial space of all bifurcations.
package cluster

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrTooFewItems is returned by Engine.Run when fewer than two items are
	// given; there is nothing to join.
	ErrTooFewItems = errors.New("cluster: need at least two items")
)

// Method selects the merge criterion.
type Method int

const (
	// NJ picks the pair minimizing the neighbor-joining Q-criterion.
	NJ Method = iota
	// UPGMA picks the pair with minimum average inter-cluster distance.
	UPGMA
	// Rand picks a uniformly random pair at every step (seeded).
	Rand
)

// String returns the lowercase method name used on the command line.
func (m Method) String() string {
	switch m {
	case NJ:
		return "nj"
	case UPGMA:
		return "upgma"
	case Rand:
		return "rand"
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// ParseMethod parses a command-line method name.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "nj":
		return NJ, nil
	case "upgma":
		return UPGMA, nil
	case "rand":
		return Rand, nil
	}
	return 0, fmt.Errorf("cluster: unknown method %q (must be one of: nj, upgma, rand)", s)
}

// JoinStep merges the clusters labeled A and B. Input items are labeled
// 0..n-1; step k of a join order creates the cluster labeled n+k.
type JoinStep struct {
	A, B int
}

// JoinOrder is a complete sequence of n-1 merge steps, fully specifying one
// binary dendrogram over n items.
type JoinOrder []JoinStep

// Signature returns a canonical topology string for the join order over n
// items, independent of merge sequence and of the A/B orientation of each
// step. Two join orders with equal signatures build the same tree shape.
func (o JoinOrder) Signature(n int) string {
	sig := make([]string, n+len(o))
	for i := 0; i < n; i++ {
		sig[i] = fmt.Sprintf("%d", i)
	}
	for k, s := range o {
		a, b := sig[s.A], sig[s.B]
		if a > b {
			a, b = b, a
		}
		sig[n+k] = "(" + a + "," + b + ")"
	}
	return sig[len(sig)-1]
}

// Engine produces join orders over items with a given distance matrix.
type Engine struct {
	// Method is the merge criterion.
	Method Method

	// PathLimit caps the number of join orders returned. 1 gives the single
	// deterministic result; values above 1 make NJ/UPGMA branch on near-tied
	// choices and make Rand resample; -1 removes the bound entirely for
	// NJ/UPGMA (exponential in the worst case). Rand treats values < 1 as 1.
	PathLimit int

	// Epsilon is the near-tie window: at each step, any pair whose criterion
	// is within Epsilon of the step minimum is a branching alternative.
	Epsilon float64

	// Seed makes the Rand method reproducible.
	Seed int64
}

// Run clusters n items whose pairwise distances are d (an n×n symmetric
// matrix indexed by item label). It returns at least one join order;
// duplicates by topology signature are removed.
func (e Engine) Run(n int, d *mat.SymDense) ([]JoinOrder, error) {
	if n < 2 {
		return nil, ErrTooFewItems
	}
	if r, c := d.Dims(); r != n || c != n {
		return nil, fmt.Errorf("cluster: distance matrix is %dx%d, want %dx%d", r, c, n, n)
	}

	if e.Method == Rand {
		return e.runRandom(n, d), nil
	}

	limit := e.PathLimit
	if limit == 0 {
		limit = 1
	}

	x := &exploration{
		engine: e,
		n:      n,
		limit:  limit,
		seen:   make(map[string]bool),
	}
	x.explore(newState(n, d))
	return x.out, nil
}

// state is one point in the exploration of merge choices. Branching copies
// the whole state so siblings never perturb each other.
type state struct {
	d      *mat.SymDense // working distances, indexed by cluster label
	active []int         // live cluster labels, ascending
	size   []int         // leaf count per label (UPGMA updates)
	steps  JoinOrder
}

// newState sizes the working matrix for all 2n-1 labels a full clustering
// can create, so merges never reallocate.
func newState(n int, d *mat.SymDense) *state {
	total := 2*n - 1
	work := mat.NewSymDense(total, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			work.SetSym(i, j, d.At(i, j))
		}
	}
	s := &state{d: work, active: make([]int, n), size: make([]int, total)}
	for i := 0; i < n; i++ {
		s.active[i] = i
		s.size[i] = 1
	}
	return s
}

func (s *state) clone() *state {
	cp := &state{
		d:      mat.NewSymDense(s.d.SymmetricDim(), nil),
		active: append([]int(nil), s.active...),
		size:   append([]int(nil), s.size...),
		steps:  append(JoinOrder(nil), s.steps...),
	}
	cp.d.CopySym(s.d)
	return cp
}

// merge joins labels a and b under the given method, activating the next
// fresh label. Labels grow monotonically, so active stays sorted.
func (s *state) merge(a, b int, m Method, n int) {
	next := n + len(s.steps)
	dab := s.d.At(a, b)
	for _, k := range s.active {
		if k == a || k == b {
			continue
		}
		var v float64
		switch m {
		case UPGMA:
			sa, sb := float64(s.size[a]), float64(s.size[b])
			v = (sa*s.d.At(a, k) + sb*s.d.At(b, k)) / (sa + sb)
		default: // NJ update; also used for Rand
			v = 0.5 * (s.d.At(a, k) + s.d.At(b, k) - dab)
		}
		s.d.SetSym(next, k, v)
	}
	s.size[next] = s.size[a] + s.size[b]

	keep := s.active[:0]
	for _, k := range s.active {
		if k != a && k != b {
			keep = append(keep, k)
		}
	}
	s.active = append(keep, next)
	s.steps = append(s.steps, JoinStep{A: a, B: b})
}

// criterion returns the merge score of the pair (a, b); lower is better.
func (s *state) criterion(a, b int, m Method) float64 {
	switch m {
	case UPGMA:
		return s.d.At(a, b)
	default:
		// NJ Q-criterion. With two clusters left any pair is final; the
		// formula still orders candidates consistently.
		r := float64(len(s.active))
		return (r-2)*s.d.At(a, b) - s.rowSum(a) - s.rowSum(b)
	}
}

// rowSum sums distances from label a to every other active cluster.
func (s *state) rowSum(a int) float64 {
	row := make([]float64, 0, len(s.active))
	for _, k := range s.active {
		if k != a {
			row = append(row, s.d.At(a, k))
		}
	}
	return floats.Sum(row)
}

// candidatePairs returns, in deterministic tie-break order (smallest label
// pair first), every pair whose criterion is within eps of the step minimum.
func (s *state) candidatePairs(m Method, eps float64) []JoinStep {
	type scored struct {
		pair JoinStep
		crit float64
	}
	var all []scored
	best := 0.0
	for i := 0; i < len(s.active); i++ {
		for j := i + 1; j < len(s.active); j++ {
			c := s.criterion(s.active[i], s.active[j], m)
			if len(all) == 0 || c < best {
				best = c
			}
			all = append(all, scored{pair: JoinStep{A: s.active[i], B: s.active[j]}, crit: c})
		}
	}
	var out []JoinStep
	for _, sc := range all {
		if sc.crit <= best+eps {
			out = append(out, sc.pair)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// exploration is a depth-first walk over near-tied merge choices, bounded by
// limit completed join orders. Recursion depth equals the number of merge
// steps (one polytomy's fan-in), never the size of a whole tree.
type exploration struct {
	engine Engine
	n      int
	limit  int // -1 = unbounded
	seen   map[string]bool
	out    []JoinOrder
}

func (x *exploration) full() bool {
	return x.limit > 0 && len(x.out) >= x.limit
}

func (x *exploration) explore(s *state) {
	if x.full() {
		return
	}
	if len(s.active) == 1 {
		order := append(JoinOrder(nil), s.steps...)
		sig := order.Signature(x.n)
		if !x.seen[sig] {
			x.seen[sig] = true
			x.out = append(x.out, order)
		}
		return
	}

	eps := 0.0
	if x.limit != 1 {
		eps = x.engine.Epsilon
	}
	pairs := s.candidatePairs(x.engine.Method, eps)
	for i, p := range pairs {
		if x.full() {
			return
		}
		next := s
		if i < len(pairs)-1 {
			next = s.clone()
		}
		next.merge(p.A, p.B, x.engine.Method, x.n)
		x.explore(next)
	}
}

// runRandom draws up to PathLimit distinct random join orders. Draw attempts
// are capped so near-degenerate inputs (few distinct topologies) terminate.
func (e Engine) runRandom(n int, d *mat.SymDense) []JoinOrder {
	limit := e.PathLimit
	if limit < 1 {
		limit = 1
	}
	rng := rand.New(rand.NewSource(e.Seed))
	seen := make(map[string]bool)
	var out []JoinOrder

	maxAttempts := 16 * limit
	for attempt := 0; attempt < maxAttempts && len(out) < limit; attempt++ {
		s := newState(n, d)
		for len(s.active) > 1 {
			i := rng.Intn(len(s.active))
			j := rng.Intn(len(s.active) - 1)
			if j >= i {
				j++
			}
			a, b := s.active[i], s.active[j]
			if a > b {
				a, b = b, a
			}
			s.merge(a, b, Rand, n)
		}
		order := append(JoinOrder(nil), s.steps...)
		sig := order.Signature(n)
		if !seen[sig] {
			seen[sig] = true
			out = append(out, order)
		}
	}
	return out
}

// Describe renders a join order for logs and provenance tags, e.g.
// "nj[0+1=3 2+3=4]".
func Describe(m Method, o JoinOrder) string {
	var sb strings.Builder
	sb.WriteString(m.String())
	sb.WriteByte('[')
	for i, s := range o {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d+%d", s.A, s.B)
	}
	sb.WriteByte(']')
	return sb.String()
}
