package core

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format used by the backend.
const DateLayout = "2006-01-02"

var pibPattern = regexp.MustCompile(`^\d{9}$`)

// InvoiceDraft is an invoice being composed, before it is sent to the backend.
// Dates are ISO strings as entered; an empty DueDate or Note means "not set".
type InvoiceDraft struct {
	Number       string        `json:"number"`
	IssueDate    string        `json:"issue_date"`
	DueDate      string        `json:"due_date,omitempty"`
	Currency     Currency      `json:"currency"`
	Status       InvoiceStatus `json:"status"`
	RecipientPIB string        `json:"recipient_pib"`
	Items        []LineItem    `json:"items"`
	Note         string        `json:"note,omitempty"`
}

// NewDraft returns the form defaults: RSD, draft status and one empty line.
func NewDraft() InvoiceDraft {
	return InvoiceDraft{
		Currency: DefaultCurrency,
		Status:   StatusDraft,
		Items:    []LineItem{NewLineItem()},
	}
}

// NewLineItem returns an empty row with quantity 1.
func NewLineItem() LineItem {
	return LineItem{Quantity: decimalOne}
}

// ValidPIB reports whether s is a 9-digit tax identification number.
func ValidPIB(s string) bool {
	return pibPattern.MatchString(strings.TrimSpace(s))
}

// FieldError is a validation message attached to a form field.
// Line item fields are addressed as "items[i].field".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is the ordered list of problems found in a draft.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, fe := range v {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "invalid invoice: " + strings.Join(parts, "; ")
}

// Fields returns the errors keyed by field name.
func (v ValidationErrors) Fields() map[string]string {
	out := make(map[string]string, len(v))
	for _, fe := range v {
		out[fe.Field] = fe.Message
	}
	return out
}

// Get returns the message for field, if any.
func (v ValidationErrors) Get(field string) (string, bool) {
	for _, fe := range v {
		if fe.Field == field {
			return fe.Message, true
		}
	}
	return "", false
}

// ItemField is the error key for field of the i-th line item.
func ItemField(i int, field string) string {
	return fmt.Sprintf("items[%d].%s", i, field)
}

// ValidateDraft checks d before submission and returns nil when it is valid.
// permitted is the set of statuses the current actor may assign (see PermittedStatuses).
// The draft is not modified, and the result depends only on the arguments.
func ValidateDraft(d InvoiceDraft, permitted StatusSet) ValidationErrors {
	var errs ValidationErrors
	add := func(field, msg string) {
		errs = append(errs, FieldError{Field: field, Message: msg})
	}

	if strings.TrimSpace(d.Number) == "" {
		add("number", "invoice number is required")
	}
	if !ValidPIB(d.RecipientPIB) {
		add("recipient_pib", "recipient PIB must be exactly 9 digits")
	}

	var issue time.Time
	issueOK := false
	if strings.TrimSpace(d.IssueDate) == "" {
		add("issue_date", "issue date is required")
	} else if t, err := time.Parse(DateLayout, strings.TrimSpace(d.IssueDate)); err != nil {
		add("issue_date", "issue date must be in YYYY-MM-DD format")
	} else {
		issue, issueOK = t, true
	}

	if due := strings.TrimSpace(d.DueDate); due != "" {
		t, err := time.Parse(DateLayout, due)
		switch {
		case err != nil:
			add("due_date", "due date must be in YYYY-MM-DD format")
		case issueOK && t.Before(issue):
			add("due_date", "due date cannot precede issue date")
		}
	}

	if !d.Currency.Valid() {
		add("currency", "currency must be one of "+joinCurrencies(AllowedCurrencies))
	}
	if !permitted.Contains(d.Status) {
		if len(permitted) == 0 {
			add("status", "you are not allowed to create invoices")
		} else {
			add("status", "status must be one of "+strings.Join(permitted.Strings(), ", "))
		}
	}

	if len(d.Items) == 0 {
		add("items", "at least one line item is required")
	}
	for i, it := range d.Items {
		if it.ProductID <= 0 {
			add(ItemField(i, "product_id"), "select a product")
		}
		switch {
		case !InRange(it.Quantity):
			add(ItemField(i, "qty"), "quantity is out of range")
		case !it.Quantity.IsPositive():
			add(ItemField(i, "qty"), "quantity must be greater than 0")
		}
		switch {
		case !InRange(it.UnitPrice):
			add(ItemField(i, "unit_price"), "unit price is out of range")
		case it.UnitPrice.IsNegative():
			add(ItemField(i, "unit_price"), "unit price cannot be negative")
		}
		if !it.TaxRate.Valid() {
			add(ItemField(i, "tax_rate"), "VAT rate must be 0, 10 or 20")
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func joinCurrencies(cs []Currency) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}
