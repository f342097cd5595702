package engine

import (
	"math"
)

// PricePrecision returns the decimal precision used when displaying or
// sizing amounts for a market: 4 places for low-value assets, 2
// otherwise. Truncation is applied only at output and order-sizing
// time, never inside comparisons, so rounding can't produce false
// triggers.
func PricePrecision(price float64) int {
	if price < 10 {
		return 4
	}
	return 2
}

// Truncate cuts v to the given number of decimal places without rounding.
func Truncate(v float64, places int) float64 {
	if places < 0 {
		return v
	}
	pow := math.Pow(10, float64(places))
	return math.Trunc(v*pow) / pow
}
