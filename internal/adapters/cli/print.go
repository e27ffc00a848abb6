package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"efakture/internal/app"
	"efakture/internal/core"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func amount(a core.Amount) string {
	if !a.Valid {
		return "-"
	}
	return a.Decimal().StringFixed(2)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func printTotals(w io.Writer, p *app.DraftPreview) {
	fmt.Fprintf(w, "  %-4s %-10s %12s %4s %14s %14s %14s\n", "#", "PRODUCT", "QTY × PRICE", "VAT", "UNIT+VAT", "TOTAL", "TOTAL+VAT")
	fmt.Fprintln(w, strings.Repeat("-", 82))
	for i, l := range p.Lines {
		fmt.Fprintf(w, "  %-4d %-10d %12s %3d%% %14s %14s %14s\n",
			i+1, l.Item.ProductID, l.Item.Quantity.String()+" × "+l.Item.UnitPrice.String(),
			l.Item.TaxRate, l.UnitPriceWithTax, l.Exclusive, l.Inclusive)
	}
	fmt.Fprintln(w, strings.Repeat("=", 82))
	cur := p.Draft.Currency
	if cur == "" {
		cur = core.DefaultCurrency
	}
	fmt.Fprintf(w, "  %-30s %20s %s\n", "Total excl. VAT", p.Exclusive, cur)
	fmt.Fprintf(w, "  %-30s %20s %s\n", "VAT", p.Tax, cur)
	fmt.Fprintf(w, "  %-30s %20s %s\n", "Total incl. VAT", p.Inclusive, cur)
}

func printDashboard(w io.Writer, res *app.DashboardResult) {
	d := res.Dashboard
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 62))
	fmt.Fprintf(w, "  DASHBOARD  %s <%s>\n", res.User.Name, res.User.Email)
	fmt.Fprintln(w, strings.Repeat("=", 62))
	switch {
	case d.PendingVerification:
		fmt.Fprintln(w, "  Account is waiting for verification by an administrator.")
	case d.Admin:
		row(w, "Invoices", fmt.Sprint(d.All.Count))
		row(w, "Open invoices", fmt.Sprint(d.All.OpenCount))
		row(w, "Total", d.All.Total.Label())
		row(w, "Open total", d.All.Open.Label())
		row(w, "Products", fmt.Sprint(d.ProductCount))
	default:
		row(w, "Issued invoices", fmt.Sprint(d.Outbound.Count))
		row(w, "Receivable (open issued)", d.Outbound.Open.Label())
		row(w, "Received invoices", fmt.Sprint(d.Inbound.Count))
		row(w, "Payable (open received)", d.Inbound.Open.Label())
		row(w, "Products", fmt.Sprint(d.ProductCount))
	}
	fmt.Fprintln(w, strings.Repeat("=", 62))
}

func row(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %-30s %29s\n", label, value)
}

func printInvoices(w io.Writer, invoices []core.Invoice) {
	fmt.Fprintf(w, "  %-5s %-14s %-10s %-10s %-10s %-10s %16s\n", "ID", "NUMBER", "ISSUED", "ISSUER", "RECIPIENT", "STATUS", "TOTAL")
	fmt.Fprintln(w, strings.Repeat("-", 84))
	for _, inv := range invoices {
		fmt.Fprintf(w, "  %-5d %-14s %-10s %-10s %-10s %-10s %12s %s\n",
			inv.ID, inv.Number, inv.IssueDate, inv.IssuerPIB, inv.RecipientPIB, inv.Status,
			amount(inv.TotalAmount), inv.CurrencyCode())
	}
	if len(invoices) == 0 {
		fmt.Fprintln(w, "  No invoices.")
	}
}

func printInvoice(w io.Writer, inv *core.Invoice) {
	fmt.Fprintf(w, "Invoice %s (id %d)\n", inv.Number, inv.ID)
	fmt.Fprintf(w, "  Status     %s\n", inv.Status)
	fmt.Fprintf(w, "  Issued     %s\n", inv.IssueDate)
	if due := deref(inv.DueDate); due != "" {
		fmt.Fprintf(w, "  Due        %s\n", due)
	}
	fmt.Fprintf(w, "  Issuer     %s\n", inv.IssuerPIB)
	fmt.Fprintf(w, "  Recipient  %s\n", inv.RecipientPIB)
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for _, it := range inv.Items {
		fmt.Fprintf(w, "  %-28s %8s × %10s  %3d%%  %14s\n",
			it.Name, amount(it.Qty), amount(it.UnitPrice), it.TaxRate, amount(it.LineTotalWithTax))
	}
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintf(w, "  %-52s %14s %s\n", "Total", amount(inv.TotalAmount), inv.CurrencyCode())
	if note := deref(inv.Note); note != "" {
		fmt.Fprintf(w, "  Note: %s\n", note)
	}
}

func printProducts(w io.Writer, products []core.Product) {
	fmt.Fprintf(w, "  %-5s %-12s %-30s %s\n", "ID", "CODE", "NAME", "MATERIAL")
	fmt.Fprintln(w, strings.Repeat("-", 62))
	for _, p := range products {
		fmt.Fprintf(w, "  %-5d %-12s %-30s %s\n", p.ID, p.Code, p.Name, deref(p.MaterialType))
	}
}
