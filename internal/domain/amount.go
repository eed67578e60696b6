package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a decimal string coming from a transport.
// Empty strings, NaN and Infinity are rejected as ErrValidation.
func ParseAmount(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, Validationf("%s is required", field)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, Validationf("invalid %s %q: must be a finite number", field, raw)
	}
	return d, nil
}

// ParseOptionalAmount is ParseAmount for optional fields: an empty string
// yields an invalid (absent) NullDecimal.
func ParseOptionalAmount(field, raw string) (decimal.NullDecimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := ParseAmount(field, raw)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
