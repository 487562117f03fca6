package model

import "strings"

// Field names produced by the structured-fields extractor.
const (
	FieldInsured         = "Insured"
	FieldCedant          = "Cedant"
	FieldBroker          = "Broker"
	FieldPerils          = "Perils_Covered"
	FieldGeoLimit        = "Geographical_Limit"
	FieldSituation       = "Situation_of_Risk"
	FieldOccupation      = "Occupation_of_Insured"
	FieldMainActivities  = "Main_Activities"
	FieldTSI             = "TSI_Original_Currency"
	FieldCurrency        = "Original_Currency"
	FieldPremium         = "Premium_Original_Currency"
	FieldExcess          = "Excess_Deductible"
	FieldRetentionPct    = "Retention_of_Cedant_Pct"
	FieldShareOfferedPct = "Share_Offered_Pct"
	FieldPMLPct          = "PML_Pct"
	FieldPaidLosses      = "Paid_Losses_3_Years"
	FieldOutstanding     = "Outstanding_Reserves_3_Years"
	FieldRecoveries      = "Recoveries_3_Years"
	FieldEarnedPremium   = "Earned_Premium_3_Years"
	FieldClimateRisk     = "Climate_Change_Risk"
	FieldESGRisk         = "ESG_Risk_Level"
	FieldPeriodStart     = "Period_Start"
	FieldPeriodEnd       = "Period_End"
	FieldPremiumRatePct  = "Premium_Rate_Pct"
	FieldPremiumKES      = "Premium_KES"
	FieldTerms           = "Proposed_Terms_Conditions"
	FieldLatitude        = "latitude"
	FieldLongitude       = "longitude"
)

// ExtractedFields lists the keys every structured-fields artifact carries.
var ExtractedFields = []string{
	FieldInsured, FieldCedant, FieldBroker, FieldPerils,
	FieldGeoLimit, FieldSituation,
	FieldOccupation, FieldMainActivities,
	FieldTSI, FieldCurrency,
	FieldPremium, FieldExcess,
	FieldRetentionPct, FieldShareOfferedPct, FieldPMLPct,
	FieldPaidLosses, FieldOutstanding,
	FieldRecoveries, FieldEarnedPremium,
	FieldClimateRisk, FieldESGRisk,
	FieldPeriodStart, FieldPeriodEnd, FieldPremiumRatePct,
	FieldPremiumKES, FieldTerms,
}

// Fields is the attribute mapping of a raw risk record.
type Fields map[string]any

// Float returns the named attribute coerced to a number; missing or
// non-numeric values are 0.
func (f Fields) Float(key string) float64 {
	return ToFloat(f[key])
}

// OptionalFloat reports the named attribute as a number only when it is
// present and parseable.
func (f Fields) OptionalFloat(key string) (float64, bool) {
	v, ok := f[key]
	if !ok || v == nil {
		return 0, false
	}
	return ParseFloat(v)
}

// String returns the named attribute as trimmed text, or "" when absent.
func (f Fields) String(key string) string {
	switch v := f[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(formatAny(v))
	}
}

// Clone returns a shallow copy so merged records cannot be mutated through
// the caller's map.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// RiskRecord is one structured risk submission as merged from the
// extraction feed. Source is the identity of the originating artifact.
type RiskRecord struct {
	Source string `json:"source"`
	Fields Fields `json:"fields"`
}

// Insured is a display name for logs and digests.
func (r RiskRecord) Insured() string {
	if name := r.Fields.String(FieldInsured); name != "" {
		return name
	}
	return r.Source
}
