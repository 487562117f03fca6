// Package decision applies the underwriting rules to calculated risks.
package decision

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"RiskSentinel/internal/model"
)

const (
	// MaxLossRatioPct is the highest acceptable 3-year loss ratio.
	MaxLossRatioPct = 80.0
	// LiabilityCeiling is the accepted liability at which a risk is declined.
	LiabilityCeiling = 1_000_000_000.0
)

// Decider turns a calculated record into a verdict. It never fails.
type Decider interface {
	Decide(rec model.CalculatedRecord) model.DecisionRecord
}

// Engine evaluates the loss-ratio gate then the liability gate.
type Engine struct {
	MaxLossRatioPct  float64
	LiabilityCeiling float64
	Currency         string
}

// NewEngine returns an engine with the standard thresholds.
func NewEngine(currency string) *Engine {
	if currency == "" {
		currency = "KES"
	}
	return &Engine{
		MaxLossRatioPct:  MaxLossRatioPct,
		LiabilityCeiling: LiabilityCeiling,
		Currency:         currency,
	}
}

// Evaluate decides with the standard engine.
func Evaluate(rec model.CalculatedRecord) model.DecisionRecord {
	return NewEngine("").Decide(rec)
}

func (e *Engine) Decide(rec model.CalculatedRecord) model.DecisionRecord {
	out := model.DecisionRecord{CalculatedRecord: rec}

	lrOK, lrReason, lr := e.lossRatioGate(rec)
	liabOK, liabReason, liab := e.liabilityGate(rec)

	out.Reasons = []string{lrReason, liabReason}
	out.Rationale = strings.Join(out.Reasons, "; ")
	out.EvaluatedLossRatioPct = lr
	out.EvaluatedAcceptedLiability = liab

	if lrOK && liabOK {
		out.Verdict = model.VerdictAccept
		out.AcceptedSharePct = offeredShare(rec)
	} else {
		out.Verdict = model.VerdictDecline
		out.AcceptedSharePct = 0
	}
	return out
}

func (e *Engine) lossRatioGate(rec model.CalculatedRecord) (bool, string, *float64) {
	if rec.Financials == nil || rec.Financials.LossRatioPct == nil || math.IsNaN(*rec.Financials.LossRatioPct) {
		return true, "Loss ratio not available (insufficient data)", nil
	}
	lr := *rec.Financials.LossRatioPct
	shown := decimal.NewFromFloat(lr).Round(2).String()
	limit := decimal.NewFromFloat(e.MaxLossRatioPct).String()
	if lr <= e.MaxLossRatioPct {
		return true, fmt.Sprintf("Loss ratio %s%% is <= %s%% (acceptable)", shown, limit), &lr
	}
	return false, fmt.Sprintf("Loss ratio %s%% is > %s%% (reject)", shown, limit), &lr
}

// liabilityGate uses the calculated accepted liability, else approximates it
// from the submitted sum insured and offered share.
func (e *Engine) liabilityGate(rec model.CalculatedRecord) (bool, string, float64) {
	var liab float64
	if rec.Financials != nil {
		liab = rec.Financials.AcceptedLiability
	} else {
		liab = rec.Fields.Float(model.FieldTSI) * rec.Fields.Float(model.FieldShareOfferedPct) / 100
	}
	if math.IsNaN(liab) || math.IsInf(liab, 0) {
		liab = 0
	}

	p := message.NewPrinter(language.English)
	shown := p.Sprintf("%.0f", math.Trunc(liab))
	ceiling := p.Sprintf("%.0f", e.LiabilityCeiling)
	if liab < e.LiabilityCeiling {
		return true, fmt.Sprintf("Accepted liability %s %s is < %s %s (acceptable)", shown, e.Currency, ceiling, e.Currency), liab
	}
	return false, fmt.Sprintf("Accepted liability %s %s is >= %s %s (reject)", shown, e.Currency, ceiling, e.Currency), liab
}

func offeredShare(rec model.CalculatedRecord) float64 {
	v := rec.Fields.Float(model.FieldShareOfferedPct)
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}
