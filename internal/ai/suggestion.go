package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"efakture/internal/core"

	"github.com/shopspring/decimal"
)

// DraftSuggestion is the structured output of the assistant.
type DraftSuggestion struct {
	Currency  string          `json:"currency" jsonschema:"enum=RSD,enum=EUR,enum=USD"`
	Items     []SuggestedItem `json:"items"`
	Note      string          `json:"note"`
	Reasoning string          `json:"reasoning" jsonschema:"description=Short explanation of how the items were chosen"`
}

// SuggestedItem is one proposed line. Amounts are decimal strings.
type SuggestedItem struct {
	ProductID int    `json:"product_id"`
	Qty       string `json:"qty"`
	UnitPrice string `json:"unit_price"`
	TaxRate   int    `json:"tax_rate" jsonschema:"enum=0,enum=10,enum=20"`
}

// ParseSuggestion decodes model output. Items that reference unknown products
// or carry unusable numbers are dropped, and the reason is appended to Reasoning
// so the user sees why a row is missing.
func ParseSuggestion(content []byte, catalog []core.Product) (*DraftSuggestion, error) {
	var s DraftSuggestion
	if err := json.Unmarshal(content, &s); err != nil {
		return nil, fmt.Errorf("failed to parse completion: %w", err)
	}
	known := make(map[int]bool, len(catalog))
	for _, p := range catalog {
		known[p.ID] = true
	}

	kept := s.Items[:0]
	var skipped []string
	for i, it := range s.Items {
		if reason := checkItem(it, known); reason != "" {
			skipped = append(skipped, fmt.Sprintf("item %d: %s", i+1, reason))
			continue
		}
		kept = append(kept, it)
	}
	s.Items = kept
	if len(skipped) > 0 {
		note := "Skipped " + strings.Join(skipped, "; ") + "."
		s.Reasoning = strings.TrimSpace(s.Reasoning + " " + note)
	}
	return &s, nil
}

func checkItem(it SuggestedItem, known map[int]bool) string {
	if !known[it.ProductID] {
		return fmt.Sprintf("product %d is not in the catalog", it.ProductID)
	}
	if _, err := core.ParseNumber(it.Qty); err != nil {
		return fmt.Sprintf("invalid qty %q", it.Qty)
	}
	if _, err := core.ParseNumber(it.UnitPrice); err != nil {
		return fmt.Sprintf("invalid unit_price %q", it.UnitPrice)
	}
	if !core.TaxRate(it.TaxRate).Valid() {
		return fmt.Sprintf("invalid tax_rate %d", it.TaxRate)
	}
	return ""
}

// Apply copies the suggestion onto draft: items replace the existing rows,
// currency and note are set only when the suggestion carries them. Header
// fields the user owns (number, dates, recipient, status) are left untouched.
func (s *DraftSuggestion) Apply(draft core.InvoiceDraft, catalog []core.Product) core.InvoiceDraft {
	byID := make(map[int]core.Product, len(catalog))
	for _, p := range catalog {
		byID[p.ID] = p
	}

	if c := core.Currency(strings.ToUpper(strings.TrimSpace(s.Currency))); c.Valid() {
		draft.Currency = c
	}
	if note := strings.TrimSpace(s.Note); note != "" {
		draft.Note = note
	}
	if len(s.Items) == 0 {
		return draft
	}

	items := make([]core.LineItem, 0, len(s.Items))
	for _, it := range s.Items {
		line := core.LineItem{
			ProductID: it.ProductID,
			Quantity:  parseAmount(it.Qty),
			UnitPrice: parseAmount(it.UnitPrice),
			TaxRate:   core.TaxRate(it.TaxRate),
		}
		if p, ok := byID[it.ProductID]; ok {
			line.Name, line.Code = p.Name, p.Code
			if p.MaterialType != nil {
				line.MaterialType = *p.MaterialType
			}
		}
		items = append(items, line)
	}
	draft.Items = items
	return draft
}

func parseAmount(s string) decimal.Decimal {
	d, err := core.ParseNumber(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
