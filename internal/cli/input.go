package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/UdeM-LBIT/profileNJ/pkg/distance"
	"github.com/UdeM-LBIT/profileNJ/pkg/newick"
	"github.com/UdeM-LBIT/profileNJ/pkg/phylo"
	"github.com/UdeM-LBIT/profileNJ/pkg/reconcile"
	"github.com/UdeM-LBIT/profileNJ/pkg/species"
)

// inputOpts holds the flags shared by every command that loads trees:
// input files, species-name extraction, and cost overrides.
type inputOpts struct {
	geneFile     string // newick gene trees, one per line
	speciesFile  string // newick species tree
	distFile     string // optional leaf-by-leaf distance matrix
	costFile     string // optional TOML cost overrides
	sep          string // species separator inside gene names ("" = identity)
	speciesFirst bool   // species before the separator instead of after
	mapFile      string // optional explicit "leaf species" map file
}

// registerFlags adds the shared input flags to a cobra command.
// -g and -s are required by every command that calls this.
func (o *inputOpts) registerFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.geneFile, "genetree", "g", "", "gene tree file, one newick tree per line (required)")
	cmd.Flags().StringVarP(&o.speciesFile, "speciestree", "s", "", "species tree file in newick (required)")
	cmd.Flags().StringVarP(&o.distFile, "dist", "d", "", "pairwise leaf distance matrix file")
	cmd.Flags().StringVar(&o.costFile, "cost", "", "TOML file with duplication/loss weight overrides")
	cmd.Flags().StringVar(&o.sep, "sep", "", "separator between gene and species inside leaf names")
	cmd.Flags().BoolVar(&o.speciesFirst, "species-first", false, "species precedes the separator in leaf names")
	cmd.Flags().StringVar(&o.mapFile, "map", "", "explicit \"leaf species\" mapping file")
	_ = cmd.MarkFlagRequired("genetree")
	_ = cmd.MarkFlagRequired("speciestree")
}

// loadTrees reads the gene trees and the species tree, applies the species
// assignment to every gene leaf, and parses cost overrides when given.
func (o *inputOpts) loadTrees() (genes []*phylo.Tree, sp *phylo.Tree, cfg reconcile.Config, err error) {
	cfg = reconcile.DefaultConfig()
	if o.costFile != "" {
		// Cost-file problems surface before any tree is touched.
		cfg, err = reconcile.LoadConfig(o.costFile)
		if err != nil {
			return nil, nil, reconcile.Config{}, err
		}
	}

	geneData, err := os.ReadFile(o.geneFile)
	if err != nil {
		return nil, nil, reconcile.Config{}, err
	}
	genes, err = newick.ParseAll(string(geneData))
	if err != nil {
		return nil, nil, reconcile.Config{}, fmt.Errorf("gene trees %s: %w", o.geneFile, err)
	}

	spData, err := os.ReadFile(o.speciesFile)
	if err != nil {
		return nil, nil, reconcile.Config{}, err
	}
	sp, err = newick.Parse(string(spData))
	if err != nil {
		return nil, nil, reconcile.Config{}, fmt.Errorf("species tree %s: %w", o.speciesFile, err)
	}

	assigner, err := o.assigner()
	if err != nil {
		return nil, nil, reconcile.Config{}, err
	}
	for i, g := range genes {
		if err := species.Apply(g, assigner); err != nil {
			return nil, nil, reconcile.Config{}, fmt.Errorf("gene tree %d: %w", i+1, err)
		}
	}
	return genes, sp, cfg, nil
}

// assigner builds the species assigner from the mapping flags: an explicit
// map file wins, then the separator, then identity.
func (o *inputOpts) assigner() (species.Assigner, error) {
	if o.mapFile != "" {
		return loadSpeciesMap(o.mapFile)
	}
	if o.sep != "" {
		return species.Separator{Sep: o.sep, SpeciesFirst: o.speciesFirst}, nil
	}
	return species.Identity{}, nil
}

// loadDistances parses the optional distance matrix file. Returns nil when
// no file was given; the pipeline then falls back to branch lengths.
func (o *inputOpts) loadDistances() (distance.Provider, error) {
	if o.distFile == "" {
		return nil, nil
	}
	f, err := os.Open(o.distFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := distance.ParseMatrix(f)
	if err != nil {
		return nil, fmt.Errorf("distance matrix %s: %w", o.distFile, err)
	}
	return m, nil
}

// loadSpeciesMap reads a two-column "leaf species" file into a map assigner.
func loadSpeciesMap(path string) (species.Assigner, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	exact := make(map[string]string)
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("species map %s line %d: want \"leaf species\"", path, line)
		}
		exact[fields[0]] = fields[1]
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return species.Map{Exact: exact}, nil
}
