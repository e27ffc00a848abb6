package core

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

var decimalOne = decimal.NewFromInt(1)

// CreateInvoicePayload is the body of the backend's invoice creation endpoint.
type CreateInvoicePayload struct {
	Number       string        `json:"number"`
	IssueDate    string        `json:"issue_date"`
	DueDate      *string       `json:"due_date"`
	Currency     Currency      `json:"currency"`
	RecipientPIB string        `json:"recipient_pib"`
	Status       InvoiceStatus `json:"status"`
	Items        []PayloadItem `json:"items"`
	Note         *string       `json:"note"`
}

// PayloadItem is a line item as the backend expects it. Quantities and prices
// are sent as JSON numbers; unit_price excludes VAT.
type PayloadItem struct {
	ProductID int         `json:"product_id"`
	Qty       json.Number `json:"qty"`
	UnitPrice json.Number `json:"unit_price"`
	TaxRate   int         `json:"tax_rate"`
}

// Payload converts the draft into the submission body: text fields trimmed,
// empty optional fields sent as null and numbers coerced. Call ValidateDraft first.
func (d InvoiceDraft) Payload() CreateInvoicePayload {
	items := make([]PayloadItem, len(d.Items))
	for i, it := range d.Items {
		items[i] = PayloadItem{
			ProductID: it.ProductID,
			Qty:       json.Number(it.Quantity.String()),
			UnitPrice: json.Number(it.UnitPrice.String()),
			TaxRate:   int(it.TaxRate),
		}
	}
	return CreateInvoicePayload{
		Number:       strings.TrimSpace(d.Number),
		IssueDate:    strings.TrimSpace(d.IssueDate),
		DueDate:      optional(d.DueDate),
		Currency:     Currency(strings.ToUpper(strings.TrimSpace(string(d.Currency)))),
		RecipientPIB: strings.TrimSpace(d.RecipientPIB),
		Status:       d.Status,
		Items:        items,
		Note:         optional(d.Note),
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
