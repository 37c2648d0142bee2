package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/UdeM-LBIT/profileNJ/pkg/newick"
	"github.com/UdeM-LBIT/profileNJ/pkg/reroot"
)

// reconcileOpts holds the command-line flags for the reconcile command.
type reconcileOpts struct {
	input  inputOpts
	policy string // rooting policy: none, all, best
	output string // output file path (stdout if empty)
}

// newReconcileCmd creates the reconcile command, which reports the
// duplication/loss account of each gene tree as given (or per rooting)
// without resolving any polytomy.
func newReconcileCmd() *cobra.Command {
	opts := reconcileOpts{}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Report duplication/loss costs without resolving polytomies",
		Long: `Reconcile each gene tree against the species tree and report the implied
duplication and loss counts. With --reroot all or best, every alternative
rooting is evaluated and reported as its own block.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return runReconcile(c.Context(), &opts)
		},
	}

	opts.input.registerFlags(cmd)
	cmd.Flags().StringVar(&opts.policy, "reroot", "none", "rooting policy: none, all, or best")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if empty)")

	return cmd
}

func runReconcile(ctx context.Context, opts *reconcileOpts) error {
	logger := loggerFromContext(ctx)

	genes, sp, cost, err := opts.input.loadTrees()
	if err != nil {
		return err
	}
	policy, err := reroot.ParsePolicy(opts.policy)
	if err != nil {
		return err
	}

	out := io.Writer(os.Stdout)
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	prog := newProgress(logger)
	var firstErr error
	for i, g := range genes {
		rootings, err := reroot.Search(g, sp, cost, policy)
		if err != nil {
			// Isolated per tree: report and keep going.
			fmt.Fprintf(out, ">tree %d error: %v\n", i+1, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("tree %d: %w", i+1, err)
			}
			continue
		}
		for ri, r := range rootings {
			fmt.Fprintf(out, ">tree %d root %d dup=%d loss=%d cost=%g\n%s\n",
				i+1, ri, r.DL.Duplications, r.DL.Losses, r.DL.Cost, newick.Write(r.Tree))
		}
	}
	prog.done(fmt.Sprintf("Reconciled %d trees", len(genes)))
	return firstErr
}
