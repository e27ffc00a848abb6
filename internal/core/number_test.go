package core_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"efakture/internal/core"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"100.50", "100.5", nil},
		{" 2 ", "2", nil},
		{"-3", "-3", nil},
		{"1e20", "100000000000000000000", nil},
		{"0.00000000000000000001", "0.00000000000000000001", nil},
		{"", "", core.ErrNotANumber},
		{"two", "", core.ErrNotANumber},
		{"1e21", "", core.ErrOutOfRange},
		{"1e30000000", "", core.ErrOutOfRange},
		{"1e2000000000", "", core.ErrOutOfRange},
		{"1e99999999999", "", core.ErrOutOfRange},
		{"0e999999", "", core.ErrOutOfRange},
		{"0.000000000000000000001", "", core.ErrOutOfRange},
		{"1234567890123456789012345678901", "", core.ErrOutOfRange},
		{strings.Repeat("9", 100), "", core.ErrOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := core.ParseNumber(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want %v, got %v (%s)", tt.wantErr, err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLineItem_DecodeRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"numbers", `{"product_id":1,"qty":2,"unit_price":100.5,"tax_rate":20}`, ""},
		{"strings", `{"product_id":1,"qty":"2","unit_price":"100.5","tax_rate":20}`, ""},
		{"null price", `{"product_id":1,"qty":"2","unit_price":null,"tax_rate":20}`, ""},
		{"huge qty", `{"product_id":1,"qty":1e30000000,"unit_price":"1","tax_rate":20}`, "qty: number out of range"},
		{"huge price string", `{"product_id":1,"qty":"1","unit_price":"1e2000000000","tax_rate":20}`, "unit_price: number out of range"},
		{"word", `{"product_id":1,"qty":"many","unit_price":"1","tax_rate":20}`, "qty: not a number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var it core.LineItem
			err := json.Unmarshal([]byte(tt.body), &it)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if it.ProductID != 1 || it.TaxRate != 20 {
					t.Errorf("other fields lost: %+v", it)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("want error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestAmount_OutOfRangeIsInvalid(t *testing.T) {
	var inv core.Invoice
	if err := json.Unmarshal([]byte(`{"id":1,"total_amount":"1e30000000"}`), &inv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if inv.TotalAmount.Valid {
		t.Errorf("huge amount should decode as invalid, got %s", inv.TotalAmount.Value)
	}
	if got := core.SumBy([]core.Invoice{inv}, func(i core.Invoice) any { return i.TotalAmount }); !got.IsZero() {
		t.Errorf("sum: got %s", got)
	}
}

func TestOutOfRangeLine_TotalsAndValidation(t *testing.T) {
	d := validDraft()
	d.Items = []core.LineItem{item("1e30000000", "1", 20), item("1", "50", 0)}

	start := time.Now()
	totals := core.ComputeInvoiceTotals(d.Items).Rounded()
	if got := totals.Exclusive.StringFixed(2); got != "50.00" {
		t.Errorf("exclusive: got %s, want 50.00", got)
	}
	if got := core.UnitPriceWithTax(item("1", "1e30000000", 20)).StringFixed(2); got != "0.00" {
		t.Errorf("unit price with tax: got %s", got)
	}

	errs := core.ValidateDraft(d, companyStatuses)
	if msg, ok := errs.Get(core.ItemField(0, "qty")); !ok || msg != "quantity is out of range" {
		t.Errorf("qty error: %q %v", msg, errs)
	}
	if time.Since(start) > time.Second {
		t.Errorf("out-of-range input took %s", time.Since(start))
	}
}
