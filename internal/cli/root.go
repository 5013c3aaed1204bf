// Package cli implements approvalctl, an offline tool for checking workflow
// definition files before they are seeded or uploaded.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version is overridden at build time with -ldflags
var Version = "dev"

type options struct {
	json    bool
	noColor bool
}

// NewRootCommand builds the approvalctl command tree writing to out
func NewRootCommand(out io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "approvalctl",
		Short: "Check approval workflow definitions offline",
		Long: `approvalctl validates workflow definition files and previews how a
request would be routed, without a running server.

Examples:
  # Validate every definition in a seed file
  approvalctl validate seeds/org-1.yaml

  # Show which step and approvers a request would get
  approvalctl resolve seeds/org-1.yaml -d "Expense approval" -u alice --set amount=1200`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}
	root.SetOut(out)
	root.SetErr(out)

	root.PersistentFlags().BoolVarP(&opts.json, "json", "j", false, "print results as JSON")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(newValidateCommand(opts))
	root.AddCommand(newResolveCommand(opts))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the approvalctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "approvalctl", Version)
		},
	})

	return root
}

// Execute runs approvalctl against os.Args and exits non-zero on failure
func Execute() {
	root := NewRootCommand(os.Stdout)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
		os.Exit(1)
	}
}

func newPrinter(cmd *cobra.Command, opts *options) *printer {
	return &printer{out: cmd.OutOrStdout(), asJSON: opts.json}
}
