package app

import (
	"io"

	"efakture/internal/core"
)

// DashboardResult is returned by Dashboard.
type DashboardResult struct {
	User      core.User
	Dashboard core.Dashboard
}

// InvoiceListResult is returned by ListInvoices. Admin is true when the list
// is the full Items list rather than Outbound/Inbound.
type InvoiceListResult struct {
	Admin bool
	List  core.InvoiceList
}

// LineTotals pairs a draft row with its computed figures.
type LineTotals struct {
	Item             core.LineItem `json:"item"`
	UnitPriceWithTax string        `json:"unit_price_with_tax"`
	Exclusive        string        `json:"line_total"`
	Inclusive        string        `json:"line_total_with_tax"`
}

// DraftPreview is the live state of the invoice form: the draft as entered,
// its totals, and any validation errors.
type DraftPreview struct {
	Draft     core.InvoiceDraft     `json:"draft"`
	Lines     []LineTotals          `json:"lines"`
	Exclusive string                `json:"exclusive_total"`
	Tax       string                `json:"tax_total"`
	Inclusive string                `json:"inclusive_total"`
	Errors    core.ValidationErrors `json:"errors,omitempty"`
	Statuses  []string              `json:"allowed_statuses"`
	Reasoning string                `json:"reasoning,omitempty"`
}

// Valid reports whether the draft passed validation.
func (p *DraftPreview) Valid() bool {
	return len(p.Errors) == 0
}

// PDFResult is returned by InvoicePDF. Body must be closed by the caller.
type PDFResult struct {
	Body        io.ReadCloser
	ContentType string
	Filename    string
}
