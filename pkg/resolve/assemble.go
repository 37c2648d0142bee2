package resolve

import (
	"container/heap"
	"sort"
	"strconv"
	"strings"

	"github.com/UdeM-LBIT/profileNJ/pkg/phylo"
	"github.com/UdeM-LBIT/profileNJ/pkg/reconcile"
)

// Solution is one fully binary refinement of a whole gene tree together with
// its total duplication/loss account. The tree is an independent copy of the
// input - scoring or restructuring one solution never perturbs another.
type Solution struct {
	Tree *phylo.Tree
	DL   reconcile.DLCost
}

// Assemble composes independent per-polytomy candidates into whole-tree
// solutions, cheapest first.
//
// The raw combination space is the product of candidate counts, so Assemble
// runs a best-first search over partial choice vectors ordered by cumulative
// cost delta, emitting complete solutions until solLimit is reached
// (-1 enumerates everything). Emitted trees are deduplicated by canonical
// topology signature before counting toward the limit.
//
// Each candidate list must be ranked ascending by Delta, which is what the
// resolvers return. A gene tree with no polytomies yields exactly one
// Solution: a copy of the input with its own reconciliation cost.
func Assemble(gene, species *phylo.Tree, cfg reconcile.Config, perNode map[int][]Candidate, solLimit int) ([]Solution, error) {
	if solLimit == 0 {
		solLimit = 1
	}

	nodes := make([]int, 0, len(perNode))
	for n, cands := range perNode {
		if len(cands) > 0 {
			nodes = append(nodes, n)
		}
	}
	sort.Ints(nodes)

	w := cfg.Resolve(species)

	emit := func(choices []int) (Solution, error) {
		t := gene.Clone()
		for i, n := range nodes {
			applyInPlace(t, n, perNode[n][choices[i]].Order)
		}
		m, err := reconcile.MapLCA(t, species)
		if err != nil {
			return Solution{}, err
		}
		return Solution{Tree: t, DL: reconcile.ComputeDL(t, m, w)}, nil
	}

	if len(nodes) == 0 {
		s, err := emit(nil)
		if err != nil {
			return nil, err
		}
		return []Solution{s}, nil
	}

	pq := &partialQueue{}
	heap.Init(pq)
	first := &partial{choices: make([]int, len(nodes))}
	for _, n := range nodes {
		first.cost += perNode[n][0].Delta
	}
	heap.Push(pq, first)

	seenState := map[string]bool{key(first.choices): true}
	seenTopo := make(map[string]bool)
	var out []Solution

	for pq.Len() > 0 {
		p := heap.Pop(pq).(*partial)

		s, err := emit(p.choices)
		if err != nil {
			return nil, err
		}
		sig := s.Tree.Signature(s.Tree.Root())
		if !seenTopo[sig] {
			seenTopo[sig] = true
			out = append(out, s)
			if solLimit > 0 && len(out) >= solLimit {
				break
			}
		}

		// Successors bump one coordinate. Starting at the last bumped
		// coordinate would be enough to avoid revisits; the seenState set
		// keeps the simpler full expansion from re-queueing states.
		for i, n := range nodes {
			cands := perNode[n]
			if p.choices[i]+1 >= len(cands) {
				continue
			}
			next := &partial{choices: append([]int(nil), p.choices...)}
			next.choices[i]++
			if seenState[key(next.choices)] {
				continue
			}
			seenState[key(next.choices)] = true
			next.cost = p.cost - cands[p.choices[i]].Delta + cands[p.choices[i]+1].Delta
			heap.Push(pq, next)
		}
	}
	return out, nil
}

// key encodes a choice vector for the visited-state set.
func key(choices []int) string {
	var sb strings.Builder
	for _, c := range choices {
		sb.WriteString(strconv.Itoa(c))
		sb.WriteByte(',')
	}
	return sb.String()
}

// partial is a (possibly complete) assignment of one candidate per polytomy.
type partial struct {
	choices []int
	cost    float64 // cumulative delta over all chosen candidates
}

// partialQueue is a min-heap of partials by cumulative cost.
type partialQueue []*partial

func (q partialQueue) Len() int           { return len(q) }
func (q partialQueue) Less(i, j int) bool { return q[i].cost < q[j].cost }
func (q partialQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *partialQueue) Push(x any)        { *q = append(*q, x.(*partial)) }
func (q *partialQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}
