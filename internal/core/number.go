package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Bounds on numbers accepted from users and the backend. Anything larger
// would make rounding for display allocate without limit.
const (
	maxNumberInput  = 64
	maxNumberDigits = 30
	maxNumberExp    = 20
)

var (
	ErrNotANumber  = errors.New("not a number")
	ErrOutOfRange  = errors.New("number out of range")
	maxCoefficient = new(big.Int).Exp(big.NewInt(10), big.NewInt(maxNumberDigits), nil)
)

// InRange reports whether d has at most 30 significant digits and an
// exponent within ±20.
func InRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	if exp < -maxNumberExp || exp > maxNumberExp {
		return false
	}
	return new(big.Int).Abs(d.Coefficient()).Cmp(maxCoefficient) < 0
}

// ParseNumber parses a decimal typed by a user or sent by the backend.
// Oversized or out-of-range input is rejected with ErrOutOfRange before any
// arithmetic happens.
func ParseNumber(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrNotANumber
	}
	if len(s) > maxNumberInput {
		return decimal.Zero, ErrOutOfRange
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		if strings.ContainsAny(s, "eE") && looksNumeric(s) {
			return decimal.Zero, ErrOutOfRange
		}
		return decimal.Zero, ErrNotANumber
	}
	if !InRange(d) {
		return decimal.Zero, ErrOutOfRange
	}
	return d, nil
}

// looksNumeric reports whether s only holds characters of a number literal.
func looksNumeric(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune("0123456789+-.eE", r) {
			return false
		}
	}
	return true
}

// parseJSONNumber reads a JSON number, numeric string or null.
func parseJSONNumber(b []byte) (decimal.Decimal, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return decimal.Zero, nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return decimal.Zero, ErrNotANumber
		}
	}
	return ParseNumber(s)
}

func (li *LineItem) UnmarshalJSON(b []byte) error {
	type plain LineItem
	aux := struct {
		*plain
		Quantity  json.RawMessage `json:"qty"`
		UnitPrice json.RawMessage `json:"unit_price"`
	}{plain: (*plain)(li)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	q, err := parseJSONNumber(aux.Quantity)
	if err != nil {
		return fmt.Errorf("qty: %w", err)
	}
	p, err := parseJSONNumber(aux.UnitPrice)
	if err != nil {
		return fmt.Errorf("unit_price: %w", err)
	}
	li.Quantity, li.UnitPrice = q, p
	return nil
}
