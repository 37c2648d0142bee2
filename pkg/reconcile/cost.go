package reconcile

import "github.com/UdeM-LBIT/profileNJ/pkg/phylo"

// WeightPolicy controls how duplication/loss weights are derived for internal
// species nodes, which have no species label of their own.
type WeightPolicy int

const (
	// WeightDefault gives every internal species node the default weight.
	WeightDefault WeightPolicy = iota
	// WeightMean gives an internal node the mean weight of its descendant
	// leaves, so events deep in a cheap clade stay cheap.
	WeightMean
)

// Config carries the cost parameters for one reconciliation run. It replaces
// any notion of process-wide weight state: callers construct one Config and
// pass it down explicitly.
type Config struct {
	// DupWeight and LossWeight are the default per-event weights.
	DupWeight  float64
	LossWeight float64

	// SpeciesDup and SpeciesLoss override the defaults for named species
	// (keyed by species-tree leaf label). Nil means no overrides.
	SpeciesDup  map[string]float64
	SpeciesLoss map[string]float64

	// Internal selects the weighting of unlabeled internal species nodes.
	Internal WeightPolicy
}

// DefaultConfig returns uniform unit weights with the default internal-node
// policy.
func DefaultConfig() Config {
	return Config{DupWeight: 1, LossWeight: 1, Internal: WeightDefault}
}

// Weights holds per-species-node duplication and loss weights resolved from
// a Config against a concrete species tree. Resolve once per species tree
// and share across gene trees; Weights is read-only after construction.
type Weights struct {
	Dup  []float64
	Loss []float64
}

// Resolve materializes per-node weights for every node of the species tree.
// Leaves take their override (or the default); internal nodes follow the
// Internal policy.
func (c Config) Resolve(species *phylo.Tree) Weights {
	n := species.Len()
	w := Weights{Dup: make([]float64, n), Loss: make([]float64, n)}

	leafCount := make([]int, n)
	dupSum := make([]float64, n)
	lossSum := make([]float64, n)

	for _, v := range species.PostOrder() {
		node := species.Node(v)
		if node.IsLeaf() {
			d, l := c.DupWeight, c.LossWeight
			if ov, ok := c.SpeciesDup[node.Name]; ok {
				d = ov
			}
			if ov, ok := c.SpeciesLoss[node.Name]; ok {
				l = ov
			}
			w.Dup[v], w.Loss[v] = d, l
			leafCount[v], dupSum[v], lossSum[v] = 1, d, l
			continue
		}
		for _, ch := range node.Children {
			leafCount[v] += leafCount[ch]
			dupSum[v] += dupSum[ch]
			lossSum[v] += lossSum[ch]
		}
		switch c.Internal {
		case WeightMean:
			w.Dup[v] = dupSum[v] / float64(leafCount[v])
			w.Loss[v] = lossSum[v] / float64(leafCount[v])
		default:
			w.Dup[v] = c.DupWeight
			w.Loss[v] = c.LossWeight
		}
	}
	return w
}

// DLCost is a duplication/loss account: raw integer event counts plus the
// weighted scalar used for ranking. With unit weights Cost equals
// Duplications + Losses exactly.
type DLCost struct {
	Duplications int
	Losses       int
	Cost         float64
}

// Add accumulates another account into this one.
func (c *DLCost) Add(o DLCost) {
	c.Duplications += o.Duplications
	c.Losses += o.Losses
	c.Cost += o.Cost
}

// Less orders costs ascending: by integer (dup, loss) pairs when the weighted
// scalars are equal, otherwise by the scalar.
func (c DLCost) Less(o DLCost) bool {
	if c.Cost != o.Cost {
		return c.Cost < o.Cost
	}
	if c.Duplications != o.Duplications {
		return c.Duplications < o.Duplications
	}
	return c.Losses < o.Losses
}

// IsDuplication reports whether gene node v is a duplication under m: its
// species image equals the image of at least one child, meaning the species
// lineage did not branch at this point.
func IsDuplication(gene *phylo.Tree, m *LCAMap, v int) bool {
	img := m.Image[v]
	for _, c := range gene.Node(v).Children {
		if m.Image[c] == img {
			return true
		}
	}
	return false
}

// ComputeDL accounts duplications and losses over every edge of the gene
// tree. The result is independent of child order and of how the tree was
// produced; it is the single scoring function used to compare candidate
// topologies.
func ComputeDL(gene *phylo.Tree, m *LCAMap, w Weights) DLCost {
	var out DLCost
	for _, v := range gene.PostOrder() {
		n := gene.Node(v)
		if n.IsLeaf() {
			continue
		}
		dup := IsDuplication(gene, m, v)
		if dup {
			out.Duplications++
			out.Cost += w.Dup[m.Image[v]]
		}
		for _, c := range n.Children {
			for _, at := range m.LossPath(m.Image[v], m.Image[c], dup) {
				out.Losses++
				out.Cost += w.Loss[at]
			}
		}
	}
	return out
}

// Reconcile is the convenience composition of MapLCA, Config.Resolve and
// ComputeDL for a single gene tree.
func Reconcile(gene, species *phylo.Tree, cfg Config) (*LCAMap, DLCost, error) {
	m, err := MapLCA(gene, species)
	if err != nil {
		return nil, DLCost{}, err
	}
	return m, ComputeDL(gene, m, cfg.Resolve(species)), nil
}
