package core

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// SumBy adds selector(x) over items. Values that are missing, non-numeric or
// non-finite contribute zero, so the result is always a displayable number.
func SumBy[T any](items []T, selector func(T) any) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		if d, ok := toDecimal(selector(it)); ok {
			sum = sum.Add(d)
		}
	}
	return sum
}

// PartitionOpen returns the invoices that are neither paid nor cancelled, in input order.
func PartitionOpen(invoices []Invoice) []Invoice {
	open := make([]Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if inv.Status.IsOpen() {
			open = append(open, inv)
		}
	}
	return open
}

// CurrencyTotals maps an upper-case currency code to a summed amount.
type CurrencyTotals map[string]decimal.Decimal

// GroupByCurrency sums amount(x) per currency(x). Empty currency codes fall
// back to DefaultCurrency.
func GroupByCurrency[T any](items []T, currency func(T) string, amount func(T) any) CurrencyTotals {
	out := CurrencyTotals{}
	for _, it := range items {
		code := strings.ToUpper(strings.TrimSpace(currency(it)))
		if code == "" {
			code = string(DefaultCurrency)
		}
		d, _ := toDecimal(amount(it))
		out[code] = out[code].Add(d)
	}
	return out
}

// Currencies returns the codes present, sorted.
func (c CurrencyTotals) Currencies() []string {
	codes := make([]string, 0, len(c))
	for code := range c {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Entries returns one Money per currency, sorted by code.
func (c CurrencyTotals) Entries() []Money {
	out := make([]Money, 0, len(c))
	for _, code := range c.Currencies() {
		out = append(out, Money{Amount: c[code], Currency: code})
	}
	return out
}

// Label renders the totals for display: "250.00 RSD" for a single currency,
// "10.00 EUR · 250.00 RSD" for several, and "0.00 RSD" when empty.
func (c CurrencyTotals) Label() string {
	if len(c) == 0 {
		return Money{Amount: decimal.Zero, Currency: string(DefaultCurrency)}.String()
	}
	entries := c.Entries()
	parts := make([]string, len(entries))
	for i, m := range entries {
		parts[i] = m.String()
	}
	return strings.Join(parts, " · ")
}

// MultiCurrency reports whether more than one currency is present.
func (c CurrencyTotals) MultiCurrency() bool {
	return len(c) > 1
}

func invoiceCurrency(inv Invoice) string { return inv.CurrencyCode() }
func invoiceTotal(inv Invoice) any       { return inv.TotalAmount }

// DirectionSummary aggregates one invoice collection.
type DirectionSummary struct {
	Count     int            `json:"count"`
	OpenCount int            `json:"open_count"`
	Total     CurrencyTotals `json:"total"`
	Open      CurrencyTotals `json:"open"`
}

// Summarize computes counts and per-currency sums of invoices and of their open subset.
func Summarize(invoices []Invoice) DirectionSummary {
	open := PartitionOpen(invoices)
	return DirectionSummary{
		Count:     len(invoices),
		OpenCount: len(open),
		Total:     GroupByCurrency(invoices, invoiceCurrency, invoiceTotal),
		Open:      GroupByCurrency(open, invoiceCurrency, invoiceTotal),
	}
}

// Dashboard holds the figures on the home page. It is rebuilt from the fetched
// lists on every load. Admins get All; companies get Outbound and Inbound.
type Dashboard struct {
	Admin               bool                  `json:"admin"`
	PendingVerification bool                  `json:"pending_verification"`
	ProductCount        int                   `json:"product_count"`
	Outbound            DirectionSummary      `json:"outbound"`
	Inbound             DirectionSummary      `json:"inbound"`
	All                 DirectionSummary      `json:"all"`
	StatusCounts        map[InvoiceStatus]int `json:"status_counts"`
}

// BuildDashboard reduces the fetched products and invoices for actor.
// Unverified companies get an empty dashboard flagged PendingVerification.
func BuildDashboard(actor Actor, products []Product, list InvoiceList) Dashboard {
	return MatchActor(actor,
		func(AdminActor) Dashboard {
			return Dashboard{
				Admin:        true,
				ProductCount: len(products),
				All:          Summarize(list.Items),
				StatusCounts: countStatuses(list.Items),
			}
		},
		func(c CompanyActor) Dashboard {
			if !c.User.Verified {
				return Dashboard{PendingVerification: true, StatusCounts: map[InvoiceStatus]int{}}
			}
			return Dashboard{
				ProductCount: len(products),
				Outbound:     Summarize(list.Outbound),
				Inbound:      Summarize(list.Inbound),
				StatusCounts: countStatuses(list.Outbound, list.Inbound),
			}
		},
		func(AnonymousActor) Dashboard {
			return Dashboard{StatusCounts: map[InvoiceStatus]int{}}
		},
	)
}

func countStatuses(lists ...[]Invoice) map[InvoiceStatus]int {
	counts := map[InvoiceStatus]int{}
	seen := map[int]bool{}
	for _, l := range lists {
		for _, inv := range l {
			// a company invoicing its own PIB shows up in both lists
			if inv.ID > 0 {
				if seen[inv.ID] {
					continue
				}
				seen[inv.ID] = true
			}
			counts[InvoiceStatus(strings.ToLower(strings.TrimSpace(string(inv.Status))))]++
		}
	}
	return counts
}
