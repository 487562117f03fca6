package model

// Level is a qualitative risk grade.
type Level string

const (
	LevelLow      Level = "Low"
	LevelModerate Level = "Moderate"
	LevelMedium   Level = "Medium"
	LevelHigh     Level = "High"
)

// Peril names a catastrophe hazard.
type Peril string

const (
	PerilEarthquake Peril = "Earthquake"
	PerilFlood      Peril = "Flood"
	PerilTyphoon    Peril = "Typhoon"
)

// HazardProfile grades each peril at a location.
type HazardProfile map[Peril]Level

// DefaultHazardProfile is the conservative profile used when coordinates are
// missing or the hazard lookup is unavailable.
func DefaultHazardProfile() HazardProfile {
	return HazardProfile{
		PerilEarthquake: LevelLow,
		PerilFlood:      LevelModerate,
		PerilTyphoon:    LevelLow,
	}
}

// ClimateESG holds the climate and ESG grades of a risk.
type ClimateESG struct {
	ClimateRisk Level `json:"climate_risk"`
	ESGRisk     Level `json:"esg_risk"`
}

// MarketConditions holds the competitor view for the insured's industry.
type MarketConditions struct {
	Industry               string  `json:"industry"`
	CompetitorRatePermille float64 `json:"competitor_rate_permille"`
}

// PortfolioImpact measures how much a new risk concentrates the book.
type PortfolioImpact struct {
	Impact        Level   `json:"impact"`
	Concentration float64 `json:"concentration"`
}

// EnrichedRecord is a raw record plus exposure, market and portfolio context.
type EnrichedRecord struct {
	RiskRecord
	CATExposure      HazardProfile    `json:"cat_exposure"`
	ClimateESG       ClimateESG       `json:"climate_esg"`
	Market           MarketConditions `json:"market"`
	Portfolio        PortfolioImpact  `json:"portfolio"`
	ProposedSharePct float64          `json:"proposed_share_pct"`
}
