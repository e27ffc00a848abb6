// Package cli is the efakture command-line adapter. Offline commands (totals,
// validate) work on draft JSON without a backend; the others sign in to the
// backend with --email/--password or EFAKTURE_EMAIL/EFAKTURE_PASSWORD.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// errValidationFailed makes the process exit 1 after the field errors were printed.
var errValidationFailed = errors.New("draft is not valid")

type options struct {
	configPath string
	jsonOut    bool
	email      string
	password   string
	stdin      io.Reader
}

// NewRootCmd builds the efakture command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{stdin: os.Stdin}

	root := &cobra.Command{
		Use:   "efakture",
		Short: "e-Fakture invoicing front-end",
		Long: `efakture serves the e-Fakture web front-end and gives command-line access
to the same operations.

Example Usage:
  efakture serve --config ./efakture.yaml
  efakture totals < draft.json
  efakture validate --as company < draft.json
  efakture dashboard --email acme@example.com
  efakture export --out invoices.xlsx`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.stdin = cmd.InOrStdin()
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML configuration file")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print JSON instead of text")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newTotalsCmd(opts),
		newValidateCmd(opts),
		newDashboardCmd(opts),
		newInvoicesCmd(opts),
		newProductsCmd(opts),
		newExportCmd(opts),
	)
	return root
}

// Execute runs the command tree with ctx and exits non-zero on failure.
func Execute(ctx context.Context) {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
