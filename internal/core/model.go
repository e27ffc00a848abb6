package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyRSD Currency = "RSD"
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
)

// DefaultCurrency is used when a record or form carries no currency code.
const DefaultCurrency = CurrencyRSD

// AllowedCurrencies lists the currencies an invoice may be issued in, in display order.
var AllowedCurrencies = []Currency{CurrencyRSD, CurrencyEUR, CurrencyUSD}

func (c Currency) Valid() bool {
	for _, a := range AllowedCurrencies {
		if c == a {
			return true
		}
	}
	return false
}

// TaxRate is a VAT rate in whole percent.
type TaxRate int

// AllowedTaxRates is the closed set of VAT rates a line item may use.
var AllowedTaxRates = []TaxRate{0, 10, 20}

func (t TaxRate) Valid() bool {
	for _, a := range AllowedTaxRates {
		if t == a {
			return true
		}
	}
	return false
}

// InvoiceStatus is the lifecycle state of an invoice as reported by the backend.
type InvoiceStatus string

const (
	StatusDraft     InvoiceStatus = "draft"
	StatusSent      InvoiceStatus = "sent"
	StatusPaid      InvoiceStatus = "paid"
	StatusCancelled InvoiceStatus = "cancelled"
)

// AllStatuses lists every status the backend knows about.
var AllStatuses = StatusSet{StatusDraft, StatusSent, StatusPaid, StatusCancelled}

// IsOpen reports whether the invoice still awaits settlement: any status other
// than the terminal "paid" and "cancelled", compared case-insensitively.
func (s InvoiceStatus) IsOpen() bool {
	switch InvoiceStatus(strings.ToLower(strings.TrimSpace(string(s)))) {
	case StatusPaid, StatusCancelled:
		return false
	default:
		return true
	}
}

// Valid reports whether s is one of the known statuses (exact, lower-case match).
func (s InvoiceStatus) Valid() bool {
	return AllStatuses.Contains(s)
}

// ParseInvoiceStatus normalizes s and returns an error for unknown values.
func ParseInvoiceStatus(s string) (InvoiceStatus, error) {
	st := InvoiceStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", &UnknownStatusError{Value: s}
	}
	return st, nil
}

// UnknownStatusError is returned by ParseInvoiceStatus.
type UnknownStatusError struct {
	Value string
}

func (e *UnknownStatusError) Error() string {
	return "unknown invoice status " + strings.TrimSpace(e.Value)
}

// StatusSet is an ordered set of statuses, e.g. the statuses an actor may assign.
type StatusSet []InvoiceStatus

func (s StatusSet) Contains(st InvoiceStatus) bool {
	for _, v := range s {
		if v == st {
			return true
		}
	}
	return false
}

func (s StatusSet) Strings() []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[i] = string(v)
	}
	return out
}

// User is the profile returned by the backend for the signed-in account.
type User struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	PIB       *string   `json:"pib"`
	Role      Role      `json:"role"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

// IsCompany reports whether the account acts for a company and so can be verified.
func (u User) IsCompany() bool {
	return IsCompany(ActorFor(&u))
}

// Product is a catalog entry owned by a company user.
type Product struct {
	ID           int       `json:"id"`
	OwnerUserID  int       `json:"owner_user_id"`
	Name         string    `json:"name"`
	Code         string    `json:"code"`
	MaterialType *string   `json:"material_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// Label is the catalog entry as shown in product pickers: "CODE — Name".
func (p Product) Label() string {
	if p.Code == "" {
		return p.Name
	}
	return p.Code + " — " + p.Name
}

// Invoice is an invoice record as returned by the backend read endpoints.
// Amount fields are decoded leniently; see Amount.
type Invoice struct {
	ID           int           `json:"id"`
	IssuerUserID int           `json:"issuer_user_id"`
	IssuerPIB    string        `json:"issuer_pib"`
	RecipientPIB string        `json:"recipient_pib"`
	Number       string        `json:"number"`
	IssueDate    string        `json:"issue_date"`
	DueDate      *string       `json:"due_date"`
	Currency     string        `json:"currency"`
	TotalAmount  Amount        `json:"total_amount"`
	Status       InvoiceStatus `json:"status"`
	Items        []InvoiceItem `json:"items"`
	Note         *string       `json:"note"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// CurrencyCode returns the upper-cased currency, falling back to DefaultCurrency.
func (inv Invoice) CurrencyCode() string {
	c := strings.ToUpper(strings.TrimSpace(inv.Currency))
	if c == "" {
		return string(DefaultCurrency)
	}
	return c
}

// InvoiceItem is a persisted line with the backend's own computed figures.
type InvoiceItem struct {
	ID               int     `json:"id"`
	InvoiceID        int     `json:"invoice_id"`
	ProductID        int     `json:"product_id"`
	Name             string  `json:"name"`
	Code             *string `json:"code"`
	MaterialType     *string `json:"material_type"`
	Qty              Amount  `json:"qty"`
	UnitPrice        Amount  `json:"unit_price"`
	TaxRate          int     `json:"tax_rate"`
	UnitPriceWithTax Amount  `json:"unit_price_with_tax"`
	LineTotal        Amount  `json:"line_total"`
	LineTotalWithTax Amount  `json:"line_total_with_tax"`
}

// Direction names one of the invoice collections a dashboard is built from.
type Direction string

const (
	Outbound Direction = "outbound"
	Inbound  Direction = "inbound"
	All      Direction = "all"
)

// InvoiceList is the backend's list response. Admins receive Items; companies
// receive Outbound (issued by them) and Inbound (addressed to their PIB).
type InvoiceList struct {
	Items    []Invoice `json:"items,omitempty"`
	Outbound []Invoice `json:"outbound,omitempty"`
	Inbound  []Invoice `json:"inbound,omitempty"`
}

// Direction returns the collection for d.
func (l InvoiceList) Direction(d Direction) []Invoice {
	switch d {
	case Outbound:
		return l.Outbound
	case Inbound:
		return l.Inbound
	default:
		return l.Items
	}
}

// Money is an amount tagged with its currency code.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// String renders the amount at currency precision, e.g. "50.00 RSD".
func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + m.Currency
}
