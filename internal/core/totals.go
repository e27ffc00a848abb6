package core

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// LineItem is one row of an invoice being composed.
// Name, Code and MaterialType are copied from the catalog for display only;
// prices are always taken as entered.
type LineItem struct {
	ProductID    int             `json:"product_id"`
	Name         string          `json:"name,omitempty"`
	Code         string          `json:"code,omitempty"`
	MaterialType string          `json:"material_type,omitempty"`
	Quantity     decimal.Decimal `json:"qty"`
	UnitPrice    decimal.Decimal `json:"unit_price"` // excluding VAT
	TaxRate      TaxRate         `json:"tax_rate"`
}

// Totals holds a tax-exclusive and a tax-inclusive amount.
// Values are kept at full precision; call Rounded before display or submission.
type Totals struct {
	Exclusive decimal.Decimal `json:"exclusive_total"`
	Inclusive decimal.Decimal `json:"inclusive_total"`
}

// Tax is the VAT portion of the totals.
func (t Totals) Tax() decimal.Decimal {
	return t.Inclusive.Sub(t.Exclusive)
}

func (t Totals) Add(o Totals) Totals {
	return Totals{
		Exclusive: t.Exclusive.Add(o.Exclusive),
		Inclusive: t.Inclusive.Add(o.Inclusive),
	}
}

// Rounded returns the totals at currency precision (2 decimal places, half away from zero).
func (t Totals) Rounded() Totals {
	return Totals{
		Exclusive: t.Exclusive.Round(2),
		Inclusive: t.Inclusive.Round(2),
	}
}

// taxMultiplier is 1 + rate/100.
func taxMultiplier(rate TaxRate) decimal.Decimal {
	return decimal.NewFromInt(1).Add(decimal.NewFromInt(int64(rate)).Div(hundred))
}

// UnitPriceWithTax is the per-unit price including VAT. An out-of-range
// price yields zero.
func UnitPriceWithTax(item LineItem) decimal.Decimal {
	if !InRange(item.UnitPrice) {
		return decimal.Zero
	}
	return item.UnitPrice.Mul(taxMultiplier(item.TaxRate))
}

// ComputeLineTotals returns quantity × unit price, without and with VAT.
// Zero and negative values are computed as given; a quantity or price
// outside InRange counts as zero so the totals always stay displayable.
func ComputeLineTotals(item LineItem) Totals {
	if !InRange(item.Quantity) || !InRange(item.UnitPrice) {
		return Totals{Exclusive: decimal.Zero, Inclusive: decimal.Zero}
	}
	exclusive := item.Quantity.Mul(item.UnitPrice)
	return Totals{
		Exclusive: exclusive,
		Inclusive: exclusive.Mul(taxMultiplier(item.TaxRate)),
	}
}

// ComputeInvoiceTotals sums the line totals of items at full precision.
func ComputeInvoiceTotals(items []LineItem) Totals {
	total := Totals{Exclusive: decimal.Zero, Inclusive: decimal.Zero}
	for _, it := range items {
		total = total.Add(ComputeLineTotals(it))
	}
	return total
}
