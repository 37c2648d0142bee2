package species

import (
	"regexp"
	"testing"

	"github.com/UdeM-LBIT/profileNJ/pkg/newick"
)

func TestSeparator(t *testing.T) {
	cases := []struct {
		name string
		sep  Separator
		leaf string
		want string
	}{
		{"suffix", Separator{Sep: "_"}, "gene1_HUMAN", "HUMAN"},
		{"suffix last", Separator{Sep: "_"}, "gene_1_HUMAN", "HUMAN"},
		{"prefix", Separator{Sep: "_", SpeciesFirst: true}, "HUMAN_gene1", "HUMAN"},
		{"prefix first", Separator{Sep: "_", SpeciesFirst: true}, "HUMAN_gene_1", "HUMAN"},
		{"missing", Separator{Sep: "_"}, "gene1", ""},
		{"pipe", Separator{Sep: "|"}, "YDR210W|yeast", "yeast"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.sep.Species(tc.leaf); got != tc.want {
				t.Errorf("Species(%q) = %q, want %q", tc.leaf, got, tc.want)
			}
		})
	}
}

func TestMap(t *testing.T) {
	m := Map{
		Exact: map[string]string{"g1": "HUMAN"},
		Patterns: []Pattern{
			{Re: regexp.MustCompile(`^ENSMUS`), Species: "MOUSE"},
		},
	}

	if got := m.Species("g1"); got != "HUMAN" {
		t.Errorf("exact lookup = %q, want HUMAN", got)
	}
	if got := m.Species("ENSMUSG0001"); got != "MOUSE" {
		t.Errorf("pattern lookup = %q, want MOUSE", got)
	}
	if got := m.Species("unknown"); got != "" {
		t.Errorf("miss = %q, want empty", got)
	}
}

func TestApply(t *testing.T) {
	tr, err := newick.Parse("(g1_HUMAN,g2_MOUSE);")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if err := Apply(tr, Separator{Sep: "_"}); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	for _, id := range tr.Leaves() {
		n := tr.Node(id)
		if n.Species == "" {
			t.Errorf("leaf %q has no species", n.Name)
		}
	}
	if got := tr.Node(tr.Leaves()[0]).Species; got != "HUMAN" {
		t.Errorf("first leaf species = %q, want HUMAN", got)
	}
}

func TestApply_FailsOnUnplaceableLeaf(t *testing.T) {
	tr, err := newick.Parse("(g1_HUMAN,nodelimiter);")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if err := Apply(tr, Separator{Sep: "_"}); err == nil {
		t.Error("Apply() = nil error, want failure for leaf without separator")
	}
}
