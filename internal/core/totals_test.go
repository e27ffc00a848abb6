package core_test

import (
	"math/rand"
	"testing"

	"efakture/internal/core"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func item(qty, price string, rate core.TaxRate) core.LineItem {
	return core.LineItem{ProductID: 1, Quantity: dec(qty), UnitPrice: dec(price), TaxRate: rate}
}

func TestComputeLineTotals(t *testing.T) {
	tests := []struct {
		name          string
		item          core.LineItem
		wantExclusive string
		wantInclusive string
	}{
		{"20% VAT", item("2", "100", 20), "200", "240"},
		{"10% VAT", item("3", "9.99", 10), "29.97", "32.967"},
		{"zero VAT", item("1", "50", 0), "50", "50"},
		{"zero quantity", item("0", "100", 20), "0", "0"},
		{"zero price", item("5", "0", 10), "0", "0"},
		{"negative quantity is computed as given", item("-1", "10", 20), "-10", "-12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := core.ComputeLineTotals(tt.item)
			if !got.Exclusive.Equal(dec(tt.wantExclusive)) {
				t.Errorf("exclusive: want %s, got %s", tt.wantExclusive, got.Exclusive)
			}
			if !got.Inclusive.Equal(dec(tt.wantInclusive)) {
				t.Errorf("inclusive: want %s, got %s", tt.wantInclusive, got.Inclusive)
			}
		})
	}
}

func TestComputeInvoiceTotals_Scenario(t *testing.T) {
	items := []core.LineItem{
		item("2", "100", 20),
		item("1", "50", 0),
	}

	got := core.ComputeInvoiceTotals(items).Rounded()
	if got.Exclusive.StringFixed(2) != "250.00" {
		t.Errorf("exclusive: want 250.00, got %s", got.Exclusive.StringFixed(2))
	}
	if got.Inclusive.StringFixed(2) != "290.00" {
		t.Errorf("inclusive: want 290.00, got %s", got.Inclusive.StringFixed(2))
	}
	if got.Tax().StringFixed(2) != "40.00" {
		t.Errorf("tax: want 40.00, got %s", got.Tax().StringFixed(2))
	}
}

func TestComputeInvoiceTotals_Empty(t *testing.T) {
	got := core.ComputeInvoiceTotals(nil)
	if !got.Exclusive.IsZero() || !got.Inclusive.IsZero() {
		t.Errorf("expected zero totals, got %+v", got)
	}
}

func TestComputeInvoiceTotals_RoundsOnlyAtTheEnd(t *testing.T) {
	// Each line is 0.333 exclusive; rounding per line would give 0.99.
	items := []core.LineItem{
		item("1", "0.333", 0),
		item("1", "0.333", 0),
		item("1", "0.333", 0),
	}
	got := core.ComputeInvoiceTotals(items)
	if !got.Exclusive.Equal(dec("0.999")) {
		t.Errorf("full precision sum: want 0.999, got %s", got.Exclusive)
	}
	if got.Rounded().Exclusive.StringFixed(2) != "1.00" {
		t.Errorf("rounded: want 1.00, got %s", got.Rounded().Exclusive.StringFixed(2))
	}
}

func TestLineTotals_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		q := decimal.NewFromInt(rng.Int63n(1000))
		p := decimal.New(rng.Int63n(1_000_000), -2)
		rate := core.AllowedTaxRates[rng.Intn(len(core.AllowedTaxRates))]

		got := core.ComputeLineTotals(core.LineItem{Quantity: q, UnitPrice: p, TaxRate: rate})

		wantExcl := q.Mul(p)
		wantIncl := q.Mul(p).Mul(decimal.NewFromInt(100 + int64(rate))).Div(decimal.NewFromInt(100))
		if !got.Exclusive.Equal(wantExcl) {
			t.Fatalf("q=%s p=%s t=%d: exclusive want %s, got %s", q, p, rate, wantExcl, got.Exclusive)
		}
		if !got.Inclusive.Equal(wantIncl) {
			t.Fatalf("q=%s p=%s t=%d: inclusive want %s, got %s", q, p, rate, wantIncl, got.Inclusive)
		}
		if got.Inclusive.LessThan(got.Exclusive) {
			t.Fatalf("q=%s p=%s t=%d: inclusive %s < exclusive %s", q, p, rate, got.Inclusive, got.Exclusive)
		}
	}
}

func TestComputeInvoiceTotals_OrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	items := make([]core.LineItem, 12)
	for i := range items {
		items[i] = core.LineItem{
			Quantity:  decimal.New(rng.Int63n(10_000), -2),
			UnitPrice: decimal.New(rng.Int63n(100_000), -2),
			TaxRate:   core.AllowedTaxRates[rng.Intn(3)],
		}
	}
	want := core.ComputeInvoiceTotals(items)

	for round := 0; round < 20; round++ {
		shuffled := append([]core.LineItem(nil), items...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got := core.ComputeInvoiceTotals(shuffled)
		if !got.Exclusive.Equal(want.Exclusive) || !got.Inclusive.Equal(want.Inclusive) {
			t.Fatalf("permutation changed totals: want %+v, got %+v", want, got)
		}
	}
}

func TestUnitPriceWithTax(t *testing.T) {
	got := core.UnitPriceWithTax(item("7", "100", 10))
	if !got.Equal(dec("110")) {
		t.Errorf("want 110, got %s", got)
	}
}
