package db

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Numeric renders d for a NUMERIC(18,2) parameter.
func Numeric(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ParseNumeric reads a NUMERIC column selected as ::text.
func ParseNumeric(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("platform/db: numeric %q: %w", raw, err)
	}
	return d, nil
}

// NumericSet parses several ::text columns in one call.
func NumericSet(raws ...*string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(raws))
	for i, raw := range raws {
		if raw == nil {
			continue
		}
		d, err := ParseNumeric(*raw)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}
