package model

// Financials are the currency-normalized actuarial figures of a risk.
// All amounts are in Currency. LossRatioPct is nil when the figure is absent.
type Financials struct {
	Currency            string   `json:"currency"`
	SumInsured          float64  `json:"sum_insured"`
	Premium             float64  `json:"premium"`
	PremiumRatePct      float64  `json:"premium_rate_pct"`
	PremiumRatePermille float64  `json:"premium_rate_permille"`
	LossRatioPct        *float64 `json:"loss_ratio_pct"`
	AcceptedPremium     float64  `json:"accepted_premium"`
	AcceptedLiability   float64  `json:"accepted_liability"`
	PMLAmount           float64  `json:"pml_amount"`
	RetentionAmount     float64  `json:"retention_amount"`
}

// CalculatedRecord is an enriched record plus its actuarial figures.
// Financials is nil when the record was never calculated.
type CalculatedRecord struct {
	EnrichedRecord
	Financials *Financials `json:"financials,omitempty"`
}

// Verdict is the underwriting outcome.
type Verdict string

const (
	VerdictAccept  Verdict = "Accept"
	VerdictDecline Verdict = "Decline"
)

// DecisionRecord is a calculated record plus the underwriting verdict.
type DecisionRecord struct {
	CalculatedRecord
	Verdict                    Verdict  `json:"decision"`
	AcceptedSharePct           float64  `json:"accepted_share_pct"`
	Reasons                    []string `json:"decision_reasons"`
	Rationale                  string   `json:"decision_rationale"`
	EvaluatedLossRatioPct      *float64 `json:"evaluated_loss_ratio_pct"`
	EvaluatedAcceptedLiability float64  `json:"evaluated_accepted_liability"`
}

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 { return &v }
