package util

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimal parses a cell or form value as a decimal, accepting "," as the
// decimal separator. The bool is false when the input is empty or not a
// number.
func ParseDecimal(raw string) (decimal.Decimal, bool) {
	token := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if token == "" {
		return decimal.Zero, false
	}
	parsed, err := decimal.NewFromString(token)
	if err != nil {
		return decimal.Zero, false
	}
	return parsed, true
}

// ParseDecimalOr parses like ParseDecimal but falls back to def instead of
// reporting failure. Upstream form and row data is frequently incomplete, so
// coercion to a default is the normal path, not an error.
func ParseDecimalOr(raw string, def decimal.Decimal) decimal.Decimal {
	if parsed, ok := ParseDecimal(raw); ok {
		return parsed
	}
	return def
}
