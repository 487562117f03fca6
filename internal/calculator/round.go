package calculator

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	pctPlaces    = 10
	amountPlaces = 2
)

// RoundPct rounds a percentage to the working-sheet precision.
func RoundPct(v float64) float64 { return round(v, pctPlaces) }

// RoundAmount rounds a money amount to cents.
func RoundAmount(v float64) float64 { return round(v, amountPlaces) }

func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
