package core_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"efakture/internal/core"
)

func validDraft() core.InvoiceDraft {
	return core.InvoiceDraft{
		Number:       "2025-001",
		IssueDate:    "2025-02-01",
		DueDate:      "2025-03-01",
		Currency:     core.CurrencyRSD,
		Status:       core.StatusDraft,
		RecipientPIB: "123456789",
		Items:        []core.LineItem{item("2", "100", 20)},
	}
}

var companyStatuses = core.StatusSet{core.StatusDraft, core.StatusSent}

func TestValidateDraft_Valid(t *testing.T) {
	if errs := core.ValidateDraft(validDraft(), companyStatuses); errs != nil {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateDraft_FieldErrors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*core.InvoiceDraft)
		permitted core.StatusSet
		wantField string
	}{
		{"blank number", func(d *core.InvoiceDraft) { d.Number = "   " }, companyStatuses, "number"},
		{"short PIB", func(d *core.InvoiceDraft) { d.RecipientPIB = "12345" }, companyStatuses, "recipient_pib"},
		{"PIB with letters", func(d *core.InvoiceDraft) { d.RecipientPIB = "12345678a" }, companyStatuses, "recipient_pib"},
		{"missing issue date", func(d *core.InvoiceDraft) { d.IssueDate = "" }, companyStatuses, "issue_date"},
		{"malformed issue date", func(d *core.InvoiceDraft) { d.IssueDate = "01.02.2025" }, companyStatuses, "issue_date"},
		{"malformed due date", func(d *core.InvoiceDraft) { d.DueDate = "tomorrow" }, companyStatuses, "due_date"},
		{"unsupported currency", func(d *core.InvoiceDraft) { d.Currency = "GBP" }, companyStatuses, "currency"},
		{"company cannot mark paid", func(d *core.InvoiceDraft) { d.Status = core.StatusPaid }, companyStatuses, "status"},
		{"anonymous has no statuses", func(d *core.InvoiceDraft) {}, nil, "status"},
		{"no items", func(d *core.InvoiceDraft) { d.Items = nil }, companyStatuses, "items"},
		{"no product", func(d *core.InvoiceDraft) { d.Items[0].ProductID = 0 }, companyStatuses, "items[0].product_id"},
		{"zero quantity", func(d *core.InvoiceDraft) { d.Items[0].Quantity = dec("0") }, companyStatuses, "items[0].qty"},
		{"negative price", func(d *core.InvoiceDraft) { d.Items[0].UnitPrice = dec("-0.01") }, companyStatuses, "items[0].unit_price"},
		{"VAT 15", func(d *core.InvoiceDraft) { d.Items[0].TaxRate = 15 }, companyStatuses, "items[0].tax_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := validDraft()
			tt.mutate(&draft)
			errs := core.ValidateDraft(draft, tt.permitted)
			if _, ok := errs.Get(tt.wantField); !ok {
				t.Errorf("expected error on %s, got %v", tt.wantField, errs)
			}
			if len(errs) != 1 {
				t.Errorf("expected exactly one error, got %d: %v", len(errs), errs)
			}
		})
	}
}

func TestValidateDraft_DueDateBeforeIssueDate(t *testing.T) {
	draft := validDraft()
	draft.IssueDate = "2025-02-01"
	draft.DueDate = "2025-01-01"

	errs := core.ValidateDraft(draft, companyStatuses)
	msg, ok := errs.Get("due_date")
	if !ok {
		t.Fatalf("expected due_date error, got %v", errs)
	}
	if msg != "due date cannot precede issue date" {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestValidateDraft_SameDayDueDateIsValid(t *testing.T) {
	draft := validDraft()
	draft.DueDate = draft.IssueDate
	if errs := core.ValidateDraft(draft, companyStatuses); errs != nil {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestValidateDraft_PIB(t *testing.T) {
	draft := validDraft()
	draft.RecipientPIB = "12345"
	if _, ok := core.ValidateDraft(draft, companyStatuses).Get("recipient_pib"); !ok {
		t.Error("expected pattern error for 5-digit PIB")
	}

	draft.RecipientPIB = "123456789"
	if _, ok := core.ValidateDraft(draft, companyStatuses).Get("recipient_pib"); ok {
		t.Error("expected no error for 9-digit PIB")
	}
}

func TestValidateDraft_AdminMaySetAnyStatus(t *testing.T) {
	draft := validDraft()
	draft.Status = core.StatusPaid
	admin := core.PermittedStatuses(core.AdminActor{})
	if errs := core.ValidateDraft(draft, admin); errs != nil {
		t.Errorf("expected no errors for admin, got %v", errs)
	}
}

func TestValidateDraft_IdempotentAndNonMutating(t *testing.T) {
	draft := validDraft()
	draft.Number = ""
	draft.DueDate = "2025-01-01"
	draft.Items = append(draft.Items, core.LineItem{TaxRate: 7})

	before, _ := json.Marshal(draft)
	first := core.ValidateDraft(draft, companyStatuses)
	second := core.ValidateDraft(draft, companyStatuses)
	after, _ := json.Marshal(draft)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("validation not idempotent:\n first  %v\n second %v", first, second)
	}
	if string(before) != string(after) {
		t.Errorf("draft was modified by validation")
	}
	// number, due_date, items[1].product_id, items[1].qty, items[1].tax_rate
	if len(first) != 5 {
		t.Errorf("expected 5 errors, got %d: %v", len(first), first)
	}
}
