package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/UdeM-LBIT/profileNJ/pkg/newick"
	"github.com/UdeM-LBIT/profileNJ/pkg/pipeline"
)

// resolveOpts holds the command-line flags for the resolve command.
type resolveOpts struct {
	input    inputOpts
	method   string  // clustering criterion
	plimit   int     // candidate resolutions per polytomy (-1 = all)
	slimit   int     // solutions per rooting (-1 = all)
	reroot   string  // rooting policy
	seed     int64   // seed for the rand method
	eps      float64 // near-tie window for alternative exploration
	largeD   float64 // substitution for undefined matrix entries
	contract float64 // collapse internal edges shorter than this first
	workers  int     // parallel tasks (0 = number of CPUs)
	output   string  // output file path (stdout if empty)
}

// newResolveCmd creates the resolve command.
//
// Defaults mirror pipeline defaults: neighbor joining, one candidate per
// polytomy, one solution per rooting, no rerooting.
func newResolveCmd() *cobra.Command {
	opts := resolveOpts{}

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Refine gene-tree polytomies into duplication/loss-minimal binary trees",
		Long: `Refine every polytomy of the input gene trees into a binary subtree that
minimizes the number of gene duplication and loss events implied by
reconciliation against the species tree.

Distances guide which subtrees are joined first: supply a matrix with -d, or
rely on the branch lengths of the gene tree. The rand method needs neither.

Examples:
  profilenj resolve -g genes.nw -s species.nw --sep _
  profilenj resolve -g genes.nw -s species.nw -d dist.txt --method upgma
  profilenj resolve -g genes.nw -s species.nw --reroot best --slimit 3`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return runResolve(c.Context(), &opts)
		},
	}

	opts.input.registerFlags(cmd)
	cmd.Flags().StringVar(&opts.method, "method", pipeline.DefaultMethod, "clustering method: nj, upgma, or rand")
	cmd.Flags().IntVar(&opts.plimit, "plimit", pipeline.DefaultPathLimit, "candidate resolutions per polytomy (-1 = all)")
	cmd.Flags().IntVar(&opts.slimit, "slimit", pipeline.DefaultSolLimit, "solutions per rooting (-1 = all)")
	cmd.Flags().StringVar(&opts.reroot, "reroot", pipeline.DefaultReroot, "rooting policy: none, all, or best")
	cmd.Flags().Int64Var(&opts.seed, "seed", pipeline.DefaultSeed, "random seed for the rand method")
	cmd.Flags().Float64Var(&opts.eps, "eps", pipeline.DefaultEpsilon, "near-tie window when exploring alternatives")
	cmd.Flags().Float64Var(&opts.largeD, "large-dist", 0, "substitute this value for negative matrix entries")
	cmd.Flags().Float64Var(&opts.contract, "contract", 0, "collapse internal edges shorter than this before resolving")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "parallel tasks (0 = number of CPUs)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if empty)")

	return cmd
}

// runResolve loads the inputs, executes the pipeline, and writes one block
// per gene tree and rooting: a header with the cost account, then the
// solution trees in newick.
func runResolve(ctx context.Context, opts *resolveOpts) error {
	logger := loggerFromContext(ctx)

	genes, sp, cost, err := opts.input.loadTrees()
	if err != nil {
		return err
	}
	dist, err := opts.input.loadDistances()
	if err != nil {
		return err
	}
	logger.Debugf("loaded %d gene trees", len(genes))

	popts := pipeline.Options{
		Method:         opts.method,
		PathLimit:      opts.plimit,
		SolLimit:       opts.slimit,
		Reroot:         opts.reroot,
		Seed:           opts.seed,
		Epsilon:        opts.eps,
		LargeDistance:  opts.largeD,
		ContractLength: opts.contract,
		Workers:        opts.workers,
		Cost:           cost,
		Logger:         logger,
	}

	prog := newProgress(logger)
	res, err := pipeline.NewRunner(logger).Execute(ctx, popts, genes, sp, dist)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Resolved %d trees", len(genes)))

	out := io.Writer(os.Stdout)
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return writeResult(out, res)
}

// writeResult renders the batch result. Failed trees are reported against
// their input index without suppressing the successful ones.
func writeResult(w io.Writer, res *pipeline.Result) error {
	var firstErr error
	for _, tr := range res.Trees {
		if tr.Err != nil {
			fmt.Fprintf(w, ">tree %d error: %v\n", tr.Index+1, tr.Err)
			if firstErr == nil {
				firstErr = fmt.Errorf("tree %d: %w", tr.Index+1, tr.Err)
			}
			continue
		}
		for ri, rr := range tr.Roots {
			fmt.Fprintf(w, ">tree %d root %d dup=%d loss=%d cost=%g\n",
				tr.Index+1, ri, rr.Root.DL.Duplications, rr.Root.DL.Losses, rr.Root.DL.Cost)
			for _, sol := range rr.Solutions {
				fmt.Fprintf(w, "; dup=%d loss=%d cost=%g\n%s\n",
					sol.DL.Duplications, sol.DL.Losses, sol.DL.Cost, newick.Write(sol.Tree))
			}
		}
	}
	return firstErr
}
