// Package calculator derives the currency-normalized actuarial figures of a
// risk.
package calculator

import (
	"context"
	"fmt"
	"math"

	"RiskSentinel/internal/fx"
	"RiskSentinel/internal/model"
)

// Calculator adds financials to an enriched record. A non-nil error means
// the FX lookup degraded to fallback rates; the record is still complete.
type Calculator interface {
	Calculate(ctx context.Context, rec model.EnrichedRecord) (model.CalculatedRecord, error)
}

// Stage is the Calculator backed by an FX converter.
type Stage struct {
	FX   fx.Converter
	Base string
}

// NewStage creates a calculation stage normalizing into base.
func NewStage(conv fx.Converter, base string) *Stage {
	if base == "" {
		base = fx.DefaultBase
	}
	return &Stage{FX: conv, Base: base}
}

func (s *Stage) Calculate(ctx context.Context, rec model.EnrichedRecord) (model.CalculatedRecord, error) {
	f := rec.Fields
	currency := f.String(model.FieldCurrency)
	if currency == "" {
		currency = s.Base
	}

	tsi, tsiErr := s.normalize(ctx, f.Float(model.FieldTSI), currency)
	premium, premErr := s.normalize(ctx, f.Float(model.FieldPremium), currency)

	fin := Compute(Inputs{
		SumInsured:      tsi,
		Premium:         premium,
		ShareOfferedPct: f.Float(model.FieldShareOfferedPct),
		PMLPct:          f.Float(model.FieldPMLPct),
		RetentionPct:    f.Float(model.FieldRetentionPct),
		PaidLosses:      f.Float(model.FieldPaidLosses),
		Outstanding:     f.Float(model.FieldOutstanding),
		Recoveries:      f.Float(model.FieldRecoveries),
		EarnedPremium:   f.Float(model.FieldEarnedPremium),
	})
	fin.Currency = s.Base

	out := model.CalculatedRecord{EnrichedRecord: rec, Financials: &fin}

	err := tsiErr
	if err == nil {
		err = premErr
	}
	if err != nil {
		return out, fmt.Errorf("normalize %s amounts: %w", currency, err)
	}
	return out, nil
}

// CalculateRaw runs the stage on a record that skipped enrichment.
func (s *Stage) CalculateRaw(ctx context.Context, rec model.RiskRecord) (model.CalculatedRecord, error) {
	return s.Calculate(ctx, model.EnrichedRecord{RiskRecord: rec})
}

func (s *Stage) normalize(ctx context.Context, amount float64, currency string) (float64, error) {
	if s.FX == nil {
		return nonNegative(amount), nil
	}
	v, err := s.FX.Convert(ctx, amount, currency, s.Base)
	return nonNegative(v), err
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// Inputs are the figures Compute needs. Amounts are already normalized.
type Inputs struct {
	SumInsured      float64
	Premium         float64
	ShareOfferedPct float64
	PMLPct          float64
	RetentionPct    float64
	PaidLosses      float64
	Outstanding     float64
	Recoveries      float64
	EarnedPremium   float64
}

// Compute applies the working-sheet formulas. Ratios are 0 when their
// divisor is 0.
func Compute(in Inputs) model.Financials {
	tsi := nonNegative(in.SumInsured)
	premium := nonNegative(in.Premium)

	ratePct := PremiumRatePct(premium, tsi)
	return model.Financials{
		SumInsured:          RoundAmount(tsi),
		Premium:             RoundAmount(premium),
		PremiumRatePct:      ratePct,
		PremiumRatePermille: RoundPct(ratePct * 10),
		LossRatioPct:        model.FloatPtr(LossRatioPct(in.PaidLosses, in.Outstanding, in.Recoveries, in.EarnedPremium)),
		AcceptedPremium:     RoundAmount(premium * in.ShareOfferedPct / 100),
		AcceptedLiability:   RoundAmount(tsi * in.ShareOfferedPct / 100),
		PMLAmount:           RoundAmount(tsi * in.PMLPct / 100),
		RetentionAmount:     RoundAmount(tsi * in.RetentionPct / 100),
	}
}

// PremiumRatePct is premium as a percentage of sum insured.
func PremiumRatePct(premium, tsi float64) float64 {
	if tsi == 0 {
		return 0
	}
	return RoundPct(premium / tsi * 100)
}

// LossRatioPct is incurred losses over earned premium, as a percentage.
func LossRatioPct(paid, outstanding, recoveries, earned float64) float64 {
	if earned == 0 {
		return 0
	}
	return RoundPct((paid + outstanding - recoveries) / earned * 100)
}
