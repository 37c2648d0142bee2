// Package pipeline orchestrates the full resolution run for one or more gene
// trees: reconciliation, rerooting search, per-polytomy resolution, and
// solution assembly.
//
// A Runner executes one batch. Each gene tree is an independent task over
// its own private copies of tree and cost data; tasks share nothing mutable
// and one task's failure never aborts its siblings. Within a tree, each
// candidate rooting is likewise resolved as an independent task.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/UdeM-LBIT/profileNJ/pkg/cluster"
	"github.com/UdeM-LBIT/profileNJ/pkg/distance"
	"github.com/UdeM-LBIT/profileNJ/pkg/phylo"
	"github.com/UdeM-LBIT/profileNJ/pkg/reconcile"
	"github.com/UdeM-LBIT/profileNJ/pkg/reroot"
	"github.com/UdeM-LBIT/profileNJ/pkg/resolve"
)

// Default values shared by the CLI and library callers.
const (
	// DefaultMethod is the clustering criterion used when none is given.
	DefaultMethod = "nj"

	// DefaultPathLimit keeps only the single best candidate per polytomy.
	DefaultPathLimit = 1

	// DefaultSolLimit emits one solution per rooting.
	DefaultSolLimit = 1

	// DefaultReroot leaves the input rooting untouched.
	DefaultReroot = "none"

	// DefaultEpsilon is the near-tie window for branching alternatives on
	// the NJ/UPGMA criteria.
	DefaultEpsilon = 1e-8

	// DefaultSeed makes the rand method reproducible by default.
	DefaultSeed = 42
)

// Options configures one pipeline run.
type Options struct {
	// Method is the clustering criterion: nj, upgma, or rand.
	Method string

	// PathLimit caps candidate resolutions per polytomy (-1 = all).
	PathLimit int

	// SolLimit caps assembled solutions per rooting (-1 = all).
	SolLimit int

	// Reroot is the rooting policy: none, all, or best.
	Reroot string

	// Seed drives the rand clustering method.
	Seed int64

	// Epsilon is the near-tie window for alternative exploration.
	Epsilon float64

	// LargeDistance, when positive, substitutes this value for negative or
	// diagonal matrix entries instead of failing.
	LargeDistance float64

	// ContractLength, when positive, collapses internal gene-tree edges
	// shorter than this into polytomies before resolution.
	ContractLength float64

	// Workers bounds batch parallelism; defaults to runtime.NumCPU().
	Workers int

	// Cost carries the duplication/loss weights.
	Cost reconcile.Config

	// Logger receives progress output; defaults to a discarding logger.
	Logger *log.Logger

	method    cluster.Method
	policy    reroot.Policy
	validated bool
}

// ValidateAndSetDefaults checks option values and fills in defaults.
// Idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Method == "" {
		o.Method = DefaultMethod
	}
	m, err := cluster.ParseMethod(o.Method)
	if err != nil {
		return err
	}
	o.method = m

	if o.Reroot == "" {
		o.Reroot = DefaultReroot
	}
	p, err := reroot.ParsePolicy(o.Reroot)
	if err != nil {
		return err
	}
	o.policy = p

	if o.PathLimit == 0 {
		o.PathLimit = DefaultPathLimit
	}
	if o.SolLimit == 0 {
		o.SolLimit = DefaultSolLimit
	}
	if o.PathLimit < -1 {
		return fmt.Errorf("pipeline: path limit %d out of range", o.PathLimit)
	}
	if o.SolLimit < -1 {
		return fmt.Errorf("pipeline: solution limit %d out of range", o.SolLimit)
	}
	if o.Epsilon == 0 {
		o.Epsilon = DefaultEpsilon
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.Cost.DupWeight == 0 && o.Cost.LossWeight == 0 &&
		o.Cost.SpeciesDup == nil && o.Cost.SpeciesLoss == nil {
		o.Cost = reconcile.DefaultConfig()
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// RootResult groups the solutions obtained under one candidate rooting, so
// callers can report one output block per root.
type RootResult struct {
	Root      reroot.Rooted
	Solutions []resolve.Solution
}

// TreeResult is the outcome for one gene tree of the batch. Err is set when
// the tree failed (for example an unmapped species); the failure is isolated
// to this entry.
type TreeResult struct {
	Index int
	Roots []RootResult
	Err   error
}

// Stats summarizes a batch run.
type Stats struct {
	TreeCount     int
	FailedCount   int
	SolutionCount int
	Elapsed       time.Duration
}

// Result is the output of Runner.Execute. Trees preserves input order.
type Result struct {
	RunID uuid.UUID
	Trees []TreeResult
	Stats Stats
}

// Runner executes resolution batches.
type Runner struct {
	logger *log.Logger
}

// NewRunner creates a Runner. A nil logger discards output.
func NewRunner(logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Runner{logger: logger}
}

// Execute resolves every gene tree against species. dist supplies pairwise
// leaf distances; when nil, distances are derived from branch lengths of the
// (possibly rerooted) gene tree.
//
// One goroutine per gene tree, bounded by opts.Workers. Per-tree failures
// land in the corresponding TreeResult; Execute itself only fails on invalid
// options or a canceled context.
func (r *Runner) Execute(ctx context.Context, opts Options, genes []*phylo.Tree, species *phylo.Tree, dist distance.Provider) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	start := time.Now()
	res := &Result{RunID: uuid.New(), Trees: make([]TreeResult, len(genes))}

	sem := make(chan struct{}, opts.Workers)
	var wg sync.WaitGroup
	for i, g := range genes {
		wg.Add(1)
		go func(i int, g *phylo.Tree) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res.Trees[i] = TreeResult{Index: i}
			if err := ctx.Err(); err != nil {
				res.Trees[i].Err = err
				return
			}
			roots, err := r.solveTree(opts, g, species, dist)
			res.Trees[i].Roots = roots
			res.Trees[i].Err = err
		}(i, g)
	}
	wg.Wait()

	res.Stats.TreeCount = len(genes)
	for _, tr := range res.Trees {
		if tr.Err != nil {
			res.Stats.FailedCount++
			continue
		}
		for _, rr := range tr.Roots {
			res.Stats.SolutionCount += len(rr.Solutions)
		}
	}
	res.Stats.Elapsed = time.Since(start)
	if err := ctx.Err(); err != nil {
		return res, err
	}
	r.logger.Infof("Resolved %d/%d trees, %d solutions (%s)",
		res.Stats.TreeCount-res.Stats.FailedCount, res.Stats.TreeCount,
		res.Stats.SolutionCount, res.Stats.Elapsed.Round(time.Millisecond))
	return res, nil
}

// solveTree runs the full chain for a single gene tree: optional contraction,
// rooting search, per-polytomy resolution, and assembly. Pure with respect to
// its inputs; every returned tree is an independent copy.
func (r *Runner) solveTree(opts Options, gene, species *phylo.Tree, dist distance.Provider) ([]RootResult, error) {
	if opts.ContractLength > 0 {
		contracted, n := gene.Contract(opts.ContractLength)
		if n > 0 {
			r.logger.Debugf("contracted %d short edges", n)
		}
		gene = contracted
	}

	rootings, err := reroot.Search(gene, species, opts.Cost, opts.policy)
	if err != nil {
		return nil, err
	}

	weights := opts.Cost.Resolve(species)
	out := make([]RootResult, len(rootings))
	errs := make([]error, len(rootings))

	// Independent task per candidate rooting; each goroutine owns its slot,
	// so only the WaitGroup synchronizes.
	sem := make(chan struct{}, opts.Workers)
	var wg sync.WaitGroup
	for i, rooted := range rootings {
		wg.Add(1)
		go func(i int, rooted reroot.Rooted) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			sols, err := r.solveRoot(opts, rooted, species, weights, dist)
			out[i] = RootResult{Root: rooted, Solutions: sols}
			errs[i] = err
		}(i, rooted)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// solveRoot resolves every polytomy of one rooted candidate and assembles
// the bounded solution set.
func (r *Runner) solveRoot(opts Options, rooted reroot.Rooted, species *phylo.Tree, w reconcile.Weights, dist distance.Provider) ([]resolve.Solution, error) {
	prov := dist
	if prov == nil {
		prov = distance.NewPathLength(rooted.Tree)
	}
	if opts.LargeDistance > 0 {
		if m, ok := prov.(*distance.Matrix); ok {
			prov = m.WithLargeDistance(opts.LargeDistance)
		}
	}

	resolver := resolve.ClusterResolver{
		Dist: prov,
		Engine: cluster.Engine{
			Method:    opts.method,
			PathLimit: opts.PathLimit,
			Epsilon:   opts.Epsilon,
			Seed:      opts.Seed,
		},
	}

	perNode := make(map[int][]resolve.Candidate)
	for _, p := range rooted.Tree.Polytomies() {
		cands, err := resolver.ResolvePolytomy(rooted.Tree, p, rooted.Map, w)
		if err != nil {
			return nil, err
		}
		perNode[p] = cands
	}
	return resolve.Assemble(rooted.Tree, species, opts.Cost, perNode, opts.SolLimit)
}
