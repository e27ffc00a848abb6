package core

import (
	"bytes"
	"encoding/json"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// Amount is a numeric field read from the backend. It accepts a JSON number,
// a numeric string, or null. Anything else decodes to an invalid Amount
// instead of failing the whole response, and invalid amounts count as zero
// in every sum.
type Amount struct {
	Value decimal.Decimal
	Valid bool
}

// NewAmount returns a valid Amount holding d.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Value: d, Valid: true}
}

// Decimal returns the value, or zero when the amount is missing.
func (a Amount) Decimal() decimal.Decimal {
	if !a.Valid {
		return decimal.Zero
	}
	return a.Value
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = Amount{}
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			*a = Amount{}
			return nil
		}
		s = str
	}
	d, ok := parseDecimal(s)
	*a = Amount{Value: d, Valid: ok}
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return []byte(a.Value.String()), nil
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	d, err := ParseNumber(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func bounded(d decimal.Decimal) (decimal.Decimal, bool) {
	if !InRange(d) {
		return decimal.Zero, false
	}
	return d, true
}

// toDecimal coerces a selected value to a decimal. Missing, non-numeric,
// non-finite and out-of-range values report ok=false and yield zero.
func toDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return bounded(x)
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero, false
		}
		return bounded(*x)
	case Amount:
		if !x.Valid {
			return decimal.Zero, false
		}
		return bounded(x.Value)
	case *Amount:
		if x == nil || !x.Valid {
			return decimal.Zero, false
		}
		return bounded(x.Value)
	case float64:
		return fromFloat(x)
	case float32:
		return fromFloat(float64(x))
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int32:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return bounded(decimal.NewFromInt(x))
	case uint:
		return bounded(decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(x)), 0))
	case uint64:
		return bounded(decimal.NewFromBigInt(new(big.Int).SetUint64(x), 0))
	case json.Number:
		return parseDecimal(string(x))
	case string:
		return parseDecimal(x)
	case *string:
		if x == nil {
			return decimal.Zero, false
		}
		return parseDecimal(*x)
	default:
		return decimal.Zero, false
	}
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return bounded(decimal.NewFromFloat(f))
}
