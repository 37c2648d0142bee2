package resolve

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/UdeM-LBIT/profileNJ/pkg/cluster"
	"github.com/UdeM-LBIT/profileNJ/pkg/distance"
	"github.com/UdeM-LBIT/profileNJ/pkg/newick"
	"github.com/UdeM-LBIT/profileNJ/pkg/phylo"
	"github.com/UdeM-LBIT/profileNJ/pkg/reconcile"
)

func parse(t *testing.T, s string) *phylo.Tree {
	t.Helper()
	tr, err := newick.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", s, err)
	}
	return tr
}

func stamp(t *testing.T, tr *phylo.Tree, m map[string]string) {
	t.Helper()
	for _, id := range tr.Leaves() {
		n := tr.Node(id)
		sp, ok := m[n.Name]
		if !ok {
			t.Fatalf("no species for leaf %q", n.Name)
		}
		n.Species = sp
	}
}

// fixture returns the stamped gene tree, its polytomy node, the LCA map and
// resolved unit weights against the ((A,B),C) species tree.
func fixture(t *testing.T, gene string, species map[string]string) (*phylo.Tree, int, *reconcile.LCAMap, reconcile.Weights) {
	t.Helper()
	sp := parse(t, "((A,B),C);")
	g := parse(t, gene)
	stamp(t, g, species)
	m, err := reconcile.MapLCA(g, sp)
	if err != nil {
		t.Fatalf("MapLCA() error: %v", err)
	}
	polys := g.Polytomies()
	node := -1
	if len(polys) > 0 {
		node = polys[0]
	}
	return g, node, m, reconcile.DefaultConfig().Resolve(sp)
}

var abcMap = map[string]string{"a": "A", "b": "B", "c": "C"}

func abMatrix(t *testing.T) *distance.Matrix {
	t.Helper()
	m, err := distance.ParseMatrix(strings.NewReader("3\na 0 1 5\nb 1 0 5\nc 5 5 0\n"))
	if err != nil {
		t.Fatalf("ParseMatrix() error: %v", err)
	}
	return m
}

func TestClusterResolver_BestRefinement(t *testing.T) {
	g, node, m, w := fixture(t, "(a,b,c);", abcMap)

	r := ClusterResolver{
		Dist:   abMatrix(t),
		Engine: cluster.Engine{Method: cluster.UPGMA, PathLimit: 1},
	}
	cands, err := r.ResolvePolytomy(g, node, m, w)
	if err != nil {
		t.Fatalf("ResolvePolytomy() error: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want 1", len(cands))
	}
	best := cands[0]
	want := cluster.JoinOrder{{A: 0, B: 1}, {A: 2, B: 3}}
	if !reflect.DeepEqual(best.Order, want) {
		t.Errorf("best order = %v, want %v", best.Order, want)
	}
	// ((a,b),c) matches the species tree, so the refinement removes both
	// losses of the unresolved node.
	if best.Delta != -2 {
		t.Errorf("best delta = %g, want -2", best.Delta)
	}
	if best.Local.Duplications != 0 || best.Local.Losses != 0 {
		t.Errorf("best local = %d dup %d loss, want 0/0",
			best.Local.Duplications, best.Local.Losses)
	}
}

func TestClusterResolver_NotPolytomy(t *testing.T) {
	g, _, m, w := fixture(t, "((a,b),c);", abcMap)

	r := ClusterResolver{
		Dist:   abMatrix(t),
		Engine: cluster.Engine{Method: cluster.UPGMA, PathLimit: 1},
	}
	_, err := r.ResolvePolytomy(g, g.Root(), m, w)
	if !errors.Is(err, ErrNotPolytomy) {
		t.Errorf("ResolvePolytomy(binary) error = %v, want ErrNotPolytomy", err)
	}
}

func TestClusterResolver_RandNeedsNoDistances(t *testing.T) {
	g, node, m, w := fixture(t, "(a,b,c);", abcMap)

	r := ClusterResolver{
		Engine: cluster.Engine{Method: cluster.Rand, PathLimit: 3, Seed: 7},
	}
	cands, err := r.ResolvePolytomy(g, node, m, w)
	if err != nil {
		t.Fatalf("ResolvePolytomy() error: %v", err)
	}
	if len(cands) == 0 || len(cands) > 3 {
		t.Fatalf("got %d candidates, want 1..3", len(cands))
	}
	for _, c := range cands {
		out := Apply(g, node, c.Order)
		if err := out.Validate(); err != nil {
			t.Errorf("Apply(%v) produced invalid tree: %v", c.Order, err)
		}
		if got, want := out.LeafNames(out.Root()), []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
			t.Errorf("Apply(%v) leaves = %v, want %v", c.Order, got, want)
		}
	}
}

func TestExhaustiveResolver_AllTopologies(t *testing.T) {
	g, node, m, w := fixture(t, "(a,b,c);", abcMap)

	r := ExhaustiveResolver{PathLimit: -1}
	cands, err := r.ResolvePolytomy(g, node, m, w)
	if err != nil {
		t.Fatalf("ResolvePolytomy() error: %v", err)
	}
	if len(cands) != 3 {
		t.Fatalf("got %d candidates, want 3", len(cands))
	}
	deltas := []float64{cands[0].Delta, cands[1].Delta, cands[2].Delta}
	if !reflect.DeepEqual(deltas, []float64{-2, 2, 2}) {
		t.Errorf("ranked deltas = %v, want [-2 2 2]", deltas)
	}
	if got := cands[0].Order.Signature(3); got != "((0,1),2)" {
		t.Errorf("best topology = %q, want ((0,1),2)", got)
	}
}

func TestExhaustiveResolver_AgreesWithCluster(t *testing.T) {
	g, node, m, w := fixture(t, "(a,b,c);", abcMap)

	ex, err := ExhaustiveResolver{PathLimit: 1}.ResolvePolytomy(g, node, m, w)
	if err != nil {
		t.Fatalf("exhaustive ResolvePolytomy() error: %v", err)
	}
	cl, err := ClusterResolver{
		Dist:   abMatrix(t),
		Engine: cluster.Engine{Method: cluster.UPGMA, PathLimit: 1},
	}.ResolvePolytomy(g, node, m, w)
	if err != nil {
		t.Fatalf("cluster ResolvePolytomy() error: %v", err)
	}
	if ex[0].Delta != cl[0].Delta {
		t.Errorf("best deltas disagree: exhaustive %g, cluster %g", ex[0].Delta, cl[0].Delta)
	}
	if ex[0].Order.Signature(3) != cl[0].Order.Signature(3) {
		t.Errorf("best topologies disagree: %q vs %q",
			ex[0].Order.Signature(3), cl[0].Order.Signature(3))
	}
}

func TestExhaustiveResolver_CountAndBound(t *testing.T) {
	species := map[string]string{"a": "A", "b": "B", "c": "C", "c2": "C"}
	g, node, m, w := fixture(t, "(a,b,c,c2);", species)

	cands, err := ExhaustiveResolver{PathLimit: -1}.ResolvePolytomy(g, node, m, w)
	if err != nil {
		t.Fatalf("ResolvePolytomy() error: %v", err)
	}
	// (2k-3)!! topologies over k = 4 children.
	if len(cands) != 15 {
		t.Errorf("got %d candidates, want 15", len(cands))
	}

	_, err = ExhaustiveResolver{MaxChildren: 3}.ResolvePolytomy(g, node, m, w)
	if err == nil {
		t.Error("ResolvePolytomy() = nil error above MaxChildren bound")
	}
}

func TestApply(t *testing.T) {
	g, node, _, _ := fixture(t, "(a,b,c);", abcMap)

	out := Apply(g, node, cluster.JoinOrder{{A: 0, B: 1}, {A: 2, B: 3}})
	if err := out.Validate(); err != nil {
		t.Fatalf("Validate() after Apply = %v", err)
	}
	if !out.IsBinary() {
		t.Error("IsBinary() = false after Apply")
	}
	want := parse(t, "((a,b),c);")
	if out.Signature(out.Root()) != want.Signature(want.Root()) {
		t.Errorf("Apply() topology = %q, want %q",
			out.Signature(out.Root()), want.Signature(want.Root()))
	}

	// The input tree is untouched.
	if g.IsBinary() {
		t.Error("original tree was modified by Apply")
	}
}
