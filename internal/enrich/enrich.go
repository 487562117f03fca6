// Package enrich adds catastrophe, climate, market and portfolio context to
// raw risk records.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/text/cases"

	"RiskSentinel/internal/model"
	"RiskSentinel/internal/riskdata"
)

const (
	// DefaultIndustry is assumed when a submission names neither an
	// occupation nor main activities.
	DefaultIndustry = "Manufacturing"

	// LargeExposureTSI is the sum insured above which ESG risk is Low.
	LargeExposureTSI = 500e6

	lowConcentration    = 0.10
	mediumConcentration = 0.30
)

// ClimateSensitiveIndustries are graded High for climate-change risk.
var ClimateSensitiveIndustries = []string{"Cold Storage", "Agriculture", "Power Generation"}

// Enricher turns a raw record into an enriched one. A non-nil error means a
// collaborator was unavailable and defaults were used; the record is still
// complete.
type Enricher interface {
	Enrich(ctx context.Context, rec model.RiskRecord, portfolio []float64) (model.EnrichedRecord, error)
}

// Stage is the Enricher backed by the risk-data collaborators.
type Stage struct {
	Hazard riskdata.HazardLookup
	Market riskdata.MarketRates
}

// NewStage creates an enrichment stage. Nil collaborators fall back to the
// default hazard profile and band midpoints.
func NewStage(hazard riskdata.HazardLookup, market riskdata.MarketRates) *Stage {
	if hazard == nil {
		hazard = riskdata.StaticHazard{Profile: model.DefaultHazardProfile()}
	}
	if market == nil {
		market = riskdata.NewBandRates(nil, nil)
	}
	return &Stage{Hazard: hazard, Market: market}
}

func (s *Stage) Enrich(ctx context.Context, rec model.RiskRecord, portfolio []float64) (model.EnrichedRecord, error) {
	var errs []error

	tsi := rec.Fields.Float(model.FieldTSI)
	industry := Industry(rec.Fields)

	exposure, err := s.exposure(ctx, rec.Fields)
	if err != nil {
		errs = append(errs, err)
	}

	rate, err := s.Market.CompetitorRate(ctx, industry)
	if err != nil {
		errs = append(errs, fmt.Errorf("market rate %q: %w", industry, err))
		rate = riskdata.DefaultCompetitorRate
	}

	impact := PortfolioImpact(tsi, portfolio)

	out := model.EnrichedRecord{
		RiskRecord:  rec,
		CATExposure: exposure,
		ClimateESG:  ClimateESG(industry, tsi),
		Market: model.MarketConditions{
			Industry:               industry,
			CompetitorRatePermille: rate,
		},
		Portfolio: impact,
		ProposedSharePct: ProposedShare(
			rec.Fields.Float(model.FieldPMLPct),
			rec.Fields.Float(model.FieldRetentionPct),
			exposure,
			impact.Impact,
		),
	}
	return out, errors.Join(errs...)
}

func (s *Stage) exposure(ctx context.Context, f model.Fields) (model.HazardProfile, error) {
	lat, okLat := f.OptionalFloat(model.FieldLatitude)
	lon, okLon := f.OptionalFloat(model.FieldLongitude)
	if !okLat || !okLon {
		return model.DefaultHazardProfile(), nil
	}
	profile, err := s.Hazard.Exposure(ctx, lat, lon)
	if err != nil {
		return model.DefaultHazardProfile(), fmt.Errorf("hazard lookup %s (%.4f,%.4f): %w", s.Hazard.Name(), lat, lon, err)
	}
	if len(profile) == 0 {
		return model.DefaultHazardProfile(), nil
	}
	return profile, nil
}

// Industry is the occupation of the insured, else its main activities, else
// DefaultIndustry.
func Industry(f model.Fields) string {
	if v := f.String(model.FieldOccupation); v != "" {
		return v
	}
	if v := f.String(model.FieldMainActivities); v != "" {
		return v
	}
	return DefaultIndustry
}

// ClimateESG grades climate risk by industry and ESG risk by size.
func ClimateESG(industry string, tsi float64) model.ClimateESG {
	out := model.ClimateESG{ClimateRisk: model.LevelMedium, ESGRisk: model.LevelMedium}

	fold := cases.Fold()
	key := fold.String(industry)
	for _, name := range ClimateSensitiveIndustries {
		if fold.String(name) == key {
			out.ClimateRisk = model.LevelHigh
			break
		}
	}
	if tsi > LargeExposureTSI {
		out.ESGRisk = model.LevelLow
	}
	return out
}

// PortfolioImpact is the share of the combined book the new exposure would
// represent.
func PortfolioImpact(tsi float64, existing []float64) model.PortfolioImpact {
	if tsi < 0 {
		tsi = 0
	}
	total := tsi
	for _, e := range existing {
		total += e
	}

	var conc float64
	if total > 0 {
		conc = tsi / total
	}

	impact := model.LevelHigh
	switch {
	case conc < lowConcentration:
		impact = model.LevelLow
	case conc < mediumConcentration:
		impact = model.LevelMedium
	}
	return model.PortfolioImpact{Impact: impact, Concentration: conc}
}

// ProposedShare is the share the reinsurer should take given the cedant's
// retention and a risk score built from PML and the risk flags.
func ProposedShare(pmlPct, retentionPct float64, exposure model.HazardProfile, impact model.Level) float64 {
	score := pmlPct
	for _, level := range exposure {
		score += levelPoints(level)
	}
	score += levelPoints(impact)

	share := math.Min(100-retentionPct, 100-score)
	share = math.Max(0, math.Min(100, share))
	return math.Round(share*100) / 100
}

func levelPoints(l model.Level) float64 {
	switch l {
	case model.LevelHigh:
		return 10
	case model.LevelModerate:
		return 5
	default:
		return 0
	}
}
