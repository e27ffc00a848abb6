package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"efakture/internal/app"
	"efakture/internal/config"
	"efakture/internal/core"
	"efakture/internal/export"
	"efakture/internal/server"
	"efakture/internal/session"

	"github.com/spf13/cobra"
)

// remote is a signed-in backend session for one command invocation.
type remote struct {
	svc  app.ApplicationService
	sess *session.Session
}

// close ends the backend session opened by signIn.
func (r *remote) close(ctx context.Context) {
	_ = r.svc.Logout(ctx, r.sess)
}

func addCredentialFlags(cmd *cobra.Command, opts *options) {
	cmd.PersistentFlags().StringVar(&opts.email, "email", "", "account email (default $EFAKTURE_EMAIL)")
	cmd.PersistentFlags().StringVar(&opts.password, "password", "", "account password (default $EFAKTURE_PASSWORD)")
}

// signIn logs in to the backend named by the configuration.
func (o *options) signIn(ctx context.Context) (*remote, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	email := firstNonEmpty(o.email, os.Getenv("EFAKTURE_EMAIL"))
	password := firstNonEmpty(o.password, os.Getenv("EFAKTURE_PASSWORD"))
	if email == "" || password == "" {
		return nil, errors.New("credentials required: use --email/--password or EFAKTURE_EMAIL/EFAKTURE_PASSWORD")
	}

	svc := app.NewAppService(server.NewBackend(cfg), session.NewMemoryStore(cfg.Session.TTL), nil)
	sess, err := svc.Login(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("sign in: %s", app.Message(err))
	}
	return &remote{svc: svc, sess: sess}, nil
}

// withRemote runs fn with a signed-in session and signs out afterwards.
func withRemote(opts *options, fn func(cmd *cobra.Command, args []string, r *remote) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		r, err := opts.signIn(cmd.Context())
		if err != nil {
			return err
		}
		defer r.close(cmd.Context())
		return fn(cmd, args, r)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

// ── dashboard ─────────────────────────────────────────────────────────────────

func newDashboardCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print the dashboard figures",
		RunE: withRemote(opts, func(cmd *cobra.Command, args []string, r *remote) error {
			res, err := r.svc.Dashboard(cmd.Context(), r.sess)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), res.Dashboard)
			}
			printDashboard(cmd.OutOrStdout(), res)
			return nil
		}),
	}
	addCredentialFlags(cmd, opts)
	return cmd
}

// ── invoices ──────────────────────────────────────────────────────────────────

func newInvoicesCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "invoices",
		Aliases: []string{"inv"},
		Short:   "List, show, create and delete invoices",
	}
	addCredentialFlags(cmd, opts)

	var direction string
	list := &cobra.Command{
		Use:   "list",
		Short: "List visible invoices",
		RunE: withRemote(opts, func(cmd *cobra.Command, args []string, r *remote) error {
			res, err := r.svc.ListInvoices(cmd.Context(), r.sess)
			if err != nil {
				return err
			}
			d := core.Direction(direction)
			if res.Admin {
				d = core.All
			} else if d != core.Outbound && d != core.Inbound {
				return fmt.Errorf("--direction must be outbound or inbound, got %q", direction)
			}
			invoices := res.List.Direction(d)
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), invoices)
			}
			printInvoices(cmd.OutOrStdout(), invoices)
			return nil
		}),
	}
	list.Flags().StringVar(&direction, "direction", string(core.Outbound), "outbound or inbound (company accounts)")

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show one invoice with its lines",
		Args:  cobra.ExactArgs(1),
		RunE: withRemote(opts, func(cmd *cobra.Command, args []string, r *remote) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			inv, err := r.svc.GetInvoice(cmd.Context(), r.sess, id)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), inv)
			}
			printInvoice(cmd.OutOrStdout(), inv)
			return nil
		}),
	}

	var file string
	create := &cobra.Command{
		Use:   "create",
		Short: "Validate a draft (JSON from --file or stdin) and create it",
		RunE: withRemote(opts, func(cmd *cobra.Command, args []string, r *remote) error {
			d, err := opts.readDraft(file)
			if err != nil {
				return err
			}
			inv, err := r.svc.CreateInvoice(cmd.Context(), r.sess, d)
			var verrs core.ValidationErrors
			if errors.As(err, &verrs) {
				for _, fe := range verrs {
					fmt.Fprintf(cmd.OutOrStdout(), "  %-24s %s\n", fe.Field, fe.Message)
				}
				return errValidationFailed
			}
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), inv)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Invoice %s created (id %d).\n", inv.Number, inv.ID)
			return nil
		}),
	}
	create.Flags().StringVar(&file, "file", "", "draft JSON file (default stdin)")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: withRemote(opts, func(cmd *cobra.Command, args []string, r *remote) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := r.svc.DeleteInvoice(cmd.Context(), r.sess, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Invoice %d deleted.\n", id)
			return nil
		}),
	}

	next := &cobra.Command{
		Use:   "next-number RECIPIENT_PIB",
		Short: "Ask the backend for the next invoice number towards a recipient",
		Args:  cobra.ExactArgs(1),
		RunE: withRemote(opts, func(cmd *cobra.Command, args []string, r *remote) error {
			n, err := r.svc.NextInvoiceNumber(cmd.Context(), r.sess, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		}),
	}

	var pdfOut string
	pdf := &cobra.Command{
		Use:   "pdf ID",
		Short: "Download the backend-rendered PDF",
		Args:  cobra.ExactArgs(1),
		RunE: withRemote(opts, func(cmd *cobra.Command, args []string, r *remote) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			res, err := r.svc.InvoicePDF(cmd.Context(), r.sess, id)
			if err != nil {
				return err
			}
			defer res.Body.Close()
			path := firstNonEmpty(pdfOut, res.Filename)
			if err := writeFile(path, res.Body); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s.\n", path)
			return nil
		}),
	}
	pdf.Flags().StringVar(&pdfOut, "out", "", "output file (default invoice-ID.pdf)")

	cmd.AddCommand(list, show, create, del, next, pdf)
	return cmd
}

// ── products ──────────────────────────────────────────────────────────────────

func newProductsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Work with the product catalog",
	}
	addCredentialFlags(cmd, opts)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List catalog products",
		RunE: withRemote(opts, func(cmd *cobra.Command, args []string, r *remote) error {
			products, err := r.svc.ListProducts(cmd.Context(), r.sess)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), products)
			}
			printProducts(cmd.OutOrStdout(), products)
			return nil
		}),
	})
	return cmd
}

// ── export ────────────────────────────────────────────────────────────────────

func newExportCmd(opts *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export visible invoices and dashboard figures to XLSX",
		RunE: withRemote(opts, func(cmd *cobra.Command, args []string, r *remote) error {
			path := firstNonEmpty(out, export.Filename(time.Now()))
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := r.svc.ExportInvoices(cmd.Context(), r.sess, f); err != nil {
				f.Close()
				_ = os.Remove(path)
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s.\n", path)
			return nil
		}),
	}
	addCredentialFlags(cmd, opts)
	cmd.Flags().StringVar(&out, "out", "", "output file (default invoices_YYYY-MM-DD.xlsx)")
	return cmd
}

func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
