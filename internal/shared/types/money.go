package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Sum adds all amounts exactly
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// NonNegative clamps a negative amount to zero
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// MinDecimal returns the smaller of two amounts
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Round2 rounds a currency amount to cents using banker's rounding
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

// MustDecimal parses a decimal literal, panicking on malformed input.
// Intended for constants and test fixtures.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(fmt.Sprintf("invalid decimal %q: %v", s, err))
	}
	return d
}
