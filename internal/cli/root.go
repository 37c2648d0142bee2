package cli

import (
	"context"
	"fmt"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	version string // semantic version (e.g., "v1.2.3")
	commit  string // git commit SHA
	date    string // build timestamp
)

// SetVersion sets the version information displayed by --version.
// Typically called by the main package with values injected via ldflags.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the profilenj CLI and returns an error if any command fails.
//
// The function sets up the root command with the resolve and reconcile
// subcommands, configures logging based on the --verbose flag, and executes
// the command tree.
func Execute() error {
	var verbose bool

	root := &cobra.Command{
		Use:          "profilenj",
		Short:        "profilenj resolves gene-tree polytomies against a species tree",
		Long:         `profilenj refines multifurcating gene trees into binary trees that minimize the implied number of gene duplication and loss events when reconciled with a species tree, optionally guided by pairwise genetic distances.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			ctx := withLogger(cmd.Context(), newLogger(os.Stderr, level))
			cmd.SetContext(ctx)
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("profilenj %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newResolveCmd())
	root.AddCommand(newReconcileCmd())

	return root.ExecuteContext(context.Background())
}
