package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"efakture/internal/app"
	"efakture/internal/core"

	"github.com/spf13/cobra"
)

// readDraft decodes a draft from file, or from stdin when file is empty or "-".
func (o *options) readDraft(file string) (core.InvoiceDraft, error) {
	in := o.stdin
	if file != "" && file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return core.InvoiceDraft{}, err
		}
		defer f.Close()
		in = f
	}
	var d core.InvoiceDraft
	if err := json.NewDecoder(in).Decode(&d); err != nil {
		return core.InvoiceDraft{}, fmt.Errorf("invalid draft JSON: %w", err)
	}
	return d, nil
}

func newTotalsCmd(opts *options) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Compute line and invoice totals of a draft",
		Long: `Reads an invoice draft as JSON (from --file or stdin) and prints each line's
unit price with VAT, line totals and the invoice totals. Nothing is sent to the backend.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := opts.readDraft(file)
			if err != nil {
				return err
			}
			preview := app.Preview(core.AdminActor{}, d)
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), struct {
					Lines     []app.LineTotals `json:"lines"`
					Exclusive string           `json:"exclusive_total"`
					Tax       string           `json:"tax_total"`
					Inclusive string           `json:"inclusive_total"`
				}{preview.Lines, preview.Exclusive, preview.Tax, preview.Inclusive})
			}
			printTotals(cmd.OutOrStdout(), preview)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "draft JSON file (default stdin)")
	return cmd
}

func newValidateCmd(opts *options) *cobra.Command {
	var (
		file string
		as   string
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a draft as an admin or company user",
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := core.ParseRole(as)
			if err != nil {
				return fmt.Errorf("--as must be admin or company, got %q", as)
			}
			d, err := opts.readDraft(file)
			if err != nil {
				return err
			}
			preview := app.Preview(core.ActorFor(&core.User{Role: role}), d)
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				errs := preview.Errors.Fields()
				if err := printJSON(out, struct {
					Valid  bool              `json:"valid"`
					Fields map[string]string `json:"fields"`
				}{preview.Valid(), errs}); err != nil {
					return err
				}
			} else if preview.Valid() {
				fmt.Fprintln(out, "Draft is valid.")
			} else {
				for _, fe := range preview.Errors {
					fmt.Fprintf(out, "  %-24s %s\n", fe.Field, fe.Message)
				}
			}
			if !preview.Valid() {
				return errValidationFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "draft JSON file (default stdin)")
	cmd.Flags().StringVar(&as, "as", string(core.RoleCompany), "validate with the permissions of admin or company")
	return cmd
}
