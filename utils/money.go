package utils

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MinorToDecimal converts minor units (cents) into a two-place decimal amount
func MinorToDecimal(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// FormatMinor renders minor units as a fixed two-decimal string
func FormatMinor(minor int64) string {
	return MinorToDecimal(minor).StringFixed(2)
}

// DecimalToMinor converts a currency amount into minor units; more than two decimal places is an error
func DecimalToMinor(amount decimal.Decimal) (int64, error) {
	scaled := amount.Shift(2)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than 2 decimal places", amount.String())
	}
	return scaled.IntPart(), nil
}
