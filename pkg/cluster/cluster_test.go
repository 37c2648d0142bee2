package cluster

import (
	"errors"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// symMatrix builds an n×n symmetric matrix from the upper-triangle entries
// given row by row: {d01, d02, ..., d12, ...}.
func symMatrix(n int, upper ...float64) *mat.SymDense {
	d := mat.NewSymDense(n, nil)
	k := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d.SetSym(i, j, upper[k])
			k++
		}
	}
	return d
}

func TestRun_UPGMA_JoinsClosestPairFirst(t *testing.T) {
	d := symMatrix(3, 1, 5, 5) // d(0,1)=1, the rest 5

	orders, err := Engine{Method: UPGMA}.Run(3, d)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("Run() returned %d orders, want 1", len(orders))
	}
	want := JoinOrder{{A: 0, B: 1}, {A: 2, B: 3}}
	if !reflect.DeepEqual(orders[0], want) {
		t.Errorf("join order = %v, want %v", orders[0], want)
	}
}

func TestRun_NJ_FourTaxa(t *testing.T) {
	// Additive distances for the tree ((0,1),(2,3)): the Q-criterion must
	// pair 0 with 1 even though 0 and 1 are not the closest pair overall
	// once rows are corrected for divergence.
	d := symMatrix(4,
		5, 9, 9, // d(0,1) d(0,2) d(0,3)
		10, 10, // d(1,2) d(1,3)
		8, // d(2,3)
	)

	orders, err := Engine{Method: NJ}.Run(4, d)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("Run() returned %d orders, want 1", len(orders))
	}
	want := JoinOrder{{A: 0, B: 1}, {A: 2, B: 3}, {A: 4, B: 5}}
	if !reflect.DeepEqual(orders[0], want) {
		t.Errorf("join order = %v, want %v", orders[0], want)
	}
}

func TestRun_ExploresTies(t *testing.T) {
	// All distances equal: every first merge is tied, so unbounded
	// exploration yields all three rooted shapes on three items.
	d := symMatrix(3, 1, 1, 1)

	orders, err := Engine{Method: UPGMA, PathLimit: -1, Epsilon: 1e-9}.Run(3, d)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("Run() returned %d orders, want 3", len(orders))
	}
	sigs := make(map[string]bool)
	for _, o := range orders {
		sigs[o.Signature(3)] = true
	}
	if len(sigs) != 3 {
		t.Errorf("got %d distinct signatures, want 3", len(sigs))
	}
}

func TestRun_PathLimitCapsExploration(t *testing.T) {
	d := symMatrix(3, 1, 1, 1)

	orders, err := Engine{Method: UPGMA, PathLimit: 2, Epsilon: 1e-9}.Run(3, d)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(orders) != 2 {
		t.Errorf("Run() returned %d orders, want 2", len(orders))
	}
}

func TestRun_Rand_Reproducible(t *testing.T) {
	d := symMatrix(4, 1, 1, 1, 1, 1, 1)
	e := Engine{Method: Rand, PathLimit: 5, Seed: 42}

	first, err := e.Run(4, d)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	second, err := e.Run(4, d)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("same seed produced different join orders")
	}
	if len(first) == 0 || len(first) > 5 {
		t.Errorf("Run() returned %d orders, want 1..5", len(first))
	}

	seen := make(map[string]bool)
	for _, o := range first {
		sig := o.Signature(4)
		if seen[sig] {
			t.Errorf("duplicate topology %s in random draws", sig)
		}
		seen[sig] = true
	}
}

func TestRun_TooFewItems(t *testing.T) {
	_, err := Engine{Method: NJ}.Run(1, mat.NewSymDense(1, nil))
	if !errors.Is(err, ErrTooFewItems) {
		t.Errorf("Run(1) error = %v, want ErrTooFewItems", err)
	}
}

func TestRun_DimensionMismatch(t *testing.T) {
	if _, err := (Engine{Method: NJ}).Run(3, mat.NewSymDense(2, nil)); err == nil {
		t.Error("Run() = nil error for mismatched matrix size")
	}
}

func TestSignature_OrientationIndependent(t *testing.T) {
	a := JoinOrder{{A: 0, B: 1}, {A: 2, B: 3}}
	b := JoinOrder{{A: 0, B: 1}, {A: 3, B: 2}}
	if a.Signature(3) != b.Signature(3) {
		t.Errorf("Signature() differs on flipped step: %q vs %q",
			a.Signature(3), b.Signature(3))
	}

	c := JoinOrder{{A: 0, B: 2}, {A: 1, B: 3}}
	if a.Signature(3) == c.Signature(3) {
		t.Error("Signature() equal for distinct topologies")
	}
}

func TestParseMethod(t *testing.T) {
	cases := []struct {
		in      string
		want    Method
		wantErr bool
	}{
		{"nj", NJ, false},
		{"upgma", UPGMA, false},
		{"rand", Rand, false},
		{"ward", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseMethod(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseMethod(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if err == nil && got != tc.want {
			t.Errorf("ParseMethod(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestDescribe(t *testing.T) {
	got := Describe(NJ, JoinOrder{{A: 0, B: 1}, {A: 2, B: 3}})
	if got != "nj[0+1 2+3]" {
		t.Errorf("Describe() = %q, want %q", got, "nj[0+1 2+3]")
	}
}
