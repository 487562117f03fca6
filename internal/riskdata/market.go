package riskdata

import (
	"context"
	"math"
	"math/rand/v2"

	"golang.org/x/text/cases"
)

// MarketRates quotes the competitor premium rate (per mille) for an industry.
type MarketRates interface {
	CompetitorRate(ctx context.Context, industry string) (float64, error)
}

// Band is a per-mille rate range.
type Band struct {
	Low  float64
	High float64
}

// DefaultBands are the observed competitor rate ranges by industry.
var DefaultBands = map[string]Band{
	"Cold Storage":      {2.0, 3.5},
	"Manufacturing":     {1.5, 3.0},
	"Healthcare":        {1.0, 2.5},
	"Power Generation":  {2.5, 4.5},
	"Shipping Services": {1.8, 3.2},
}

// DefaultCompetitorRate applies to industries without a band.
const DefaultCompetitorRate = 2.0

// BandRates quotes from a band table. Without Rand every quote is the band
// midpoint; with Rand it is a uniform draw inside the band.
type BandRates struct {
	Bands map[string]Band
	Rand  *rand.Rand
}

// NewBandRates builds a quoter over bands (DefaultBands when nil).
func NewBandRates(bands map[string]Band, rng *rand.Rand) *BandRates {
	if bands == nil {
		bands = DefaultBands
	}
	return &BandRates{Bands: bands, Rand: rng}
}

func (b *BandRates) CompetitorRate(_ context.Context, industry string) (float64, error) {
	// Casers carry state and are not shared across goroutines.
	fold := cases.Fold()
	key := fold.String(industry)
	for name, band := range b.Bands {
		if fold.String(name) != key {
			continue
		}
		v := (band.Low + band.High) / 2
		if b.Rand != nil {
			v = band.Low + b.Rand.Float64()*(band.High-band.Low)
		}
		return math.Round(v*100) / 100, nil
	}
	return DefaultCompetitorRate, nil
}
