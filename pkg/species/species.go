// Package species assigns species labels to gene-tree leaves.
//
// Reconciliation needs every gene leaf stamped with the species it was
// sampled from. Gene names usually encode the species ("ENSG0001_HUMAN",
// "yeast|YDR210W", ...), so the package offers separator-based extraction,
// explicit or pattern-based maps, and an identity fallback for inputs whose
// leaf names already are species names.
package species

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/UdeM-LBIT/profileNJ/pkg/phylo"
)

// Assigner derives a species label from a gene leaf name.
// An empty result means the assigner could not place the leaf.
type Assigner interface {
	Species(leafName string) string
}

// Identity treats the leaf name itself as the species label.
type Identity struct{}

// Species returns leafName unchanged.
func (Identity) Species(leafName string) string { return leafName }

// Separator extracts the species from a delimited gene name.
// With SpeciesFirst, the species is the prefix before the first separator;
// otherwise it is the suffix after the last one.
type Separator struct {
	Sep          string
	SpeciesFirst bool
}

// Species splits leafName on s.Sep. A name without the separator yields "".
func (s Separator) Species(leafName string) string {
	idx := strings.LastIndex(leafName, s.Sep)
	if s.SpeciesFirst {
		idx = strings.Index(leafName, s.Sep)
	}
	if idx < 0 {
		return ""
	}
	if s.SpeciesFirst {
		return leafName[:idx]
	}
	return leafName[idx+len(s.Sep):]
}

// Map assigns species by exact leaf name first, then by regular-expression
// patterns in declaration order. Useful when gene names carry no usable
// separator structure.
type Map struct {
	Exact    map[string]string
	Patterns []Pattern
}

// Pattern pairs a compiled expression with the species it selects.
type Pattern struct {
	Re      *regexp.Regexp
	Species string
}

// Species returns the mapped species for leafName, or "" when nothing
// matches.
func (m Map) Species(leafName string) string {
	if sp, ok := m.Exact[leafName]; ok {
		return sp
	}
	for _, p := range m.Patterns {
		if p.Re.MatchString(leafName) {
			return p.Species
		}
	}
	return ""
}

// Apply stamps Node.Species on every leaf of the gene tree using a.
// It fails on the first leaf the assigner cannot place.
func Apply(t *phylo.Tree, a Assigner) error {
	for _, id := range t.Leaves() {
		n := t.Node(id)
		sp := a.Species(n.Name)
		if sp == "" {
			return fmt.Errorf("species: no species for leaf %q", n.Name)
		}
		n.Species = sp
	}
	return nil
}
