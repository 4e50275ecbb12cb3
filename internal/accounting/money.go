package accounting

import "github.com/shopspring/decimal"

// MoneyScale is the number of fractional digits kept for monetary amounts.
const MoneyScale int32 = 2

// BalanceTolerance is the largest difference still treated as balanced.
var BalanceTolerance = decimal.New(1, -MoneyScale)

// Money rounds d to the monetary scale.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// ParseMoney parses a decimal string and rounds it to the monetary scale.
func ParseMoney(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, Invalid("accounting: invalid amount %q: %v", raw, err)
	}
	return Money(d), nil
}

// MustMoney parses raw and panics on failure. Intended for constants and tests.
func MustMoney(raw string) decimal.Decimal {
	d, err := ParseMoney(raw)
	if err != nil {
		panic(err)
	}
	return d
}

// FormatMoney renders d with exactly two fractional digits.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}

// WithinTolerance reports whether |a-b| is below BalanceTolerance.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(BalanceTolerance)
}
