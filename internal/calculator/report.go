package calculator

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"RiskSentinel/internal/model"
)

const rule = "================================================================================"

// FormatReport renders the per-risk calculation summary printed by
// `sentinel pipeline --report`.
func FormatReport(recs []model.CalculatedRecord) string {
	p := message.NewPrinter(language.English)
	var b strings.Builder

	b.WriteString(rule + "\n")
	b.WriteString("FACULTATIVE REINSURANCE CALCULATION SUMMARY\n")
	b.WriteString(rule + "\n")

	for i, r := range recs {
		f := r.Fields
		b.WriteString(p.Sprintf("\nRISK #%d: %s\n", i+1, r.Insured()))
		b.WriteString(strings.Repeat("-", 50) + "\n")
		b.WriteString(p.Sprintf("Cedant: %s\n", f.String(model.FieldCedant)))
		b.WriteString(p.Sprintf("Broker: %s\n", f.String(model.FieldBroker)))
		b.WriteString(p.Sprintf("Occupation: %s\n", f.String(model.FieldOccupation)))
		b.WriteString(p.Sprintf("Location: %s\n", f.String(model.FieldSituation)))

		if r.Financials == nil {
			b.WriteString("\n  (not calculated)\n")
			continue
		}
		fin := r.Financials
		cur := f.String(model.FieldCurrency)

		b.WriteString("\nFINANCIAL SUMMARY:\n")
		b.WriteString(p.Sprintf("  TSI (Original): %s %.2f\n", cur, f.Float(model.FieldTSI)))
		b.WriteString(p.Sprintf("  TSI (%s): %.2f\n", fin.Currency, fin.SumInsured))
		b.WriteString(p.Sprintf("  Premium (Original): %s %.2f\n", cur, f.Float(model.FieldPremium)))
		b.WriteString(p.Sprintf("  Premium (%s): %.2f\n", fin.Currency, fin.Premium))
		b.WriteString(p.Sprintf("  Premium Rate: %.4f%% | %.2f‰\n", fin.PremiumRatePct, fin.PremiumRatePermille))

		b.WriteString("\nRISK SHARING:\n")
		b.WriteString(p.Sprintf("  Cedant Retention: %v%% (%s %.2f)\n", f.Float(model.FieldRetentionPct), fin.Currency, fin.RetentionAmount))
		b.WriteString(p.Sprintf("  Share Offered: %v%%\n", f.Float(model.FieldShareOfferedPct)))
		b.WriteString(p.Sprintf("  Accepted Premium: %s %.2f\n", fin.Currency, fin.AcceptedPremium))
		b.WriteString(p.Sprintf("  Accepted Liability: %s %.2f\n", fin.Currency, fin.AcceptedLiability))

		b.WriteString("\nRISK ASSESSMENT:\n")
		b.WriteString(p.Sprintf("  PML: %v%% (%s %.2f)\n", f.Float(model.FieldPMLPct), fin.Currency, fin.PMLAmount))
		if fin.LossRatioPct != nil {
			b.WriteString(p.Sprintf("  Loss Ratio (3 years): %.2f%%\n", *fin.LossRatioPct))
		} else {
			b.WriteString("  Loss Ratio (3 years): n/a\n")
		}
		b.WriteString(p.Sprintf("  Climate Risk: %s\n", r.ClimateESG.ClimateRisk))
		b.WriteString(p.Sprintf("  ESG Risk: %s\n", r.ClimateESG.ESGRisk))
	}

	b.WriteString("\n" + rule + "\n")
	b.WriteString("END OF REPORT\n")
	b.WriteString(rule + "\n")
	return b.String()
}
