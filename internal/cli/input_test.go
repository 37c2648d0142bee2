package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/UdeM-LBIT/profileNJ/pkg/species"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadSpeciesMap(t *testing.T) {
	path := writeFile(t, "map.txt", `
# leaf -> species
g1  HUMAN
g2	MOUSE
`)
	a, err := loadSpeciesMap(path)
	if err != nil {
		t.Fatalf("loadSpeciesMap() error: %v", err)
	}
	if got := a.Species("g1"); got != "HUMAN" {
		t.Errorf("Species(g1) = %q, want HUMAN", got)
	}
	if got := a.Species("g2"); got != "MOUSE" {
		t.Errorf("Species(g2) = %q, want MOUSE", got)
	}
	if got := a.Species("g3"); got != "" {
		t.Errorf("Species(g3) = %q, want empty", got)
	}
}

func TestLoadSpeciesMap_BadLine(t *testing.T) {
	path := writeFile(t, "map.txt", "g1 HUMAN extra\n")
	if _, err := loadSpeciesMap(path); err == nil {
		t.Error("loadSpeciesMap() = nil error for three-column line")
	}
}

func TestAssigner_Precedence(t *testing.T) {
	mapPath := writeFile(t, "map.txt", "g1 HUMAN\n")

	o := inputOpts{mapFile: mapPath, sep: "_"}
	a, err := o.assigner()
	if err != nil {
		t.Fatalf("assigner() error: %v", err)
	}
	if _, ok := a.(species.Map); !ok {
		t.Errorf("assigner with map file = %T, want species.Map", a)
	}

	o = inputOpts{sep: "_", speciesFirst: true}
	a, err = o.assigner()
	if err != nil {
		t.Fatalf("assigner() error: %v", err)
	}
	sep, ok := a.(species.Separator)
	if !ok {
		t.Fatalf("assigner with separator = %T, want species.Separator", a)
	}
	if sep.Sep != "_" || !sep.SpeciesFirst {
		t.Errorf("separator = %+v, want _ with species first", sep)
	}

	o = inputOpts{}
	a, err = o.assigner()
	if err != nil {
		t.Fatalf("assigner() error: %v", err)
	}
	if _, ok := a.(species.Identity); !ok {
		t.Errorf("default assigner = %T, want species.Identity", a)
	}
}

func TestLoadTrees(t *testing.T) {
	o := inputOpts{
		geneFile:    writeFile(t, "genes.nw", "(g1_HUMAN,(g2_MOUSE,g3_RAT));\n(x_HUMAN,y_RAT);\n"),
		speciesFile: writeFile(t, "species.nw", "(HUMAN,(MOUSE,RAT));\n"),
		sep:         "_",
	}
	genes, sp, cfg, err := o.loadTrees()
	if err != nil {
		t.Fatalf("loadTrees() error: %v", err)
	}
	if len(genes) != 2 {
		t.Fatalf("loaded %d gene trees, want 2", len(genes))
	}
	if got := len(sp.LeafNames(sp.Root())); got != 3 {
		t.Errorf("species tree has %d leaves, want 3", got)
	}
	if cfg.DupWeight != 1 || cfg.LossWeight != 1 {
		t.Errorf("cfg = %+v, want unit defaults", cfg)
	}
	for _, id := range genes[0].Leaves() {
		if genes[0].Node(id).Species == "" {
			t.Errorf("leaf %q has no species", genes[0].Node(id).Name)
		}
	}
}

func TestLoadTrees_BadCostFileFailsEarly(t *testing.T) {
	o := inputOpts{
		geneFile:    writeFile(t, "genes.nw", "(a,b);\n"),
		speciesFile: writeFile(t, "species.nw", "(A,B);\n"),
		costFile:    writeFile(t, "cost.toml", "dup = -1.0\n"),
	}
	if _, _, _, err := o.loadTrees(); err == nil {
		t.Error("loadTrees() = nil error for negative cost weight")
	}
}

func TestLoadDistances_NoneGiven(t *testing.T) {
	var o inputOpts
	p, err := o.loadDistances()
	if err != nil {
		t.Fatalf("loadDistances() error: %v", err)
	}
	if p != nil {
		t.Error("loadDistances() without a file should return nil provider")
	}
}

func TestLoadDistances(t *testing.T) {
	o := inputOpts{distFile: writeFile(t, "dist.txt", "2\na 0 1\nb 1 0\n")}
	p, err := o.loadDistances()
	if err != nil {
		t.Fatalf("loadDistances() error: %v", err)
	}
	d, err := p.Distance("a", "b")
	if err != nil {
		t.Fatalf("Distance(a, b) error: %v", err)
	}
	if d != 1 {
		t.Errorf("Distance(a, b) = %g, want 1", d)
	}
}
