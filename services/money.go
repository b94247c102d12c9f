package services

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	usdPlaces = 6
	winPlaces = 6
)

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func usdFloat(d decimal.Decimal) float64 {
	f, _ := d.Round(usdPlaces).Float64()
	return f
}

func winFloat(d decimal.Decimal) float64 {
	f, _ := d.Round(winPlaces).Float64()
	return f
}

// Display rounding for API responses.
func roundUSD(f float64) float64 {
	return usdFloat(dec(f))
}

func roundWin(f float64) float64 {
	f, _ = dec(f).Round(2).Float64()
	return f
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
