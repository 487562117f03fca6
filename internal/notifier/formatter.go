package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"RiskSentinel/internal/decision"
	"RiskSentinel/internal/model"
	"RiskSentinel/internal/pipeline"
)

// maxListed caps the per-risk lines in a digest.
const maxListed = 10

// FormatRunDigest formats the outcome of a pipeline run for Telegram.
func FormatRunDigest(res pipeline.Result, decided []model.DecisionRecord, currency string) string {
	p := message.NewPrinter(language.English)
	var b strings.Builder

	b.WriteString(fmt.Sprintf("🛡 <b>RiskSentinel run</b> | %s\n\n", res.StartedAt.Format("2006-01-02 15:04")))
	b.WriteString(p.Sprintf("Risks: %d | ✅ %d | ❌ %d", res.Records, res.Accepted, res.Declined))
	if res.Degraded > 0 {
		b.WriteString(p.Sprintf(" | ⚠️ %d degraded", res.Degraded))
	}
	b.WriteString("\n\n")

	for i, d := range decided {
		if i == maxListed {
			b.WriteString(fmt.Sprintf("… and %d more\n", len(decided)-maxListed))
			break
		}
		b.WriteString(FormatDecisionLine(d, currency))
	}
	b.WriteString("\n")
	b.WriteString(FormatSummary(decision.Summarize(decided), currency))
	return b.String()
}

// FormatDecisionLine renders one decided risk.
func FormatDecisionLine(d model.DecisionRecord, currency string) string {
	p := message.NewPrinter(language.English)
	icon := "❌"
	if d.Verdict == model.VerdictAccept {
		icon = "✅"
	}
	line := p.Sprintf("%s %s: %s %.2f%%", icon, html.EscapeString(d.Insured()), d.Verdict, d.AcceptedSharePct)
	if d.Verdict == model.VerdictAccept {
		line += p.Sprintf(" (%s %.0f)", currency, d.EvaluatedAcceptedLiability)
	}
	return line + "\n"
}

// FormatSummary formats the portfolio summary of the decided artifact.
func FormatSummary(s decision.Summary, currency string) string {
	p := message.NewPrinter(language.English)
	var b strings.Builder

	b.WriteString("📦 <b>Decision summary</b>\n\n")
	b.WriteString(p.Sprintf("Total: %d | Accepted: %d | Declined: %d (%d%% acceptance)\n",
		s.Total, s.Accepted, s.Declined, s.AcceptanceRatePct))
	b.WriteString(p.Sprintf("Accepted premium: %s %.2f\n", currency, s.AcceptedPremium))
	b.WriteString(p.Sprintf("Accepted liability: %s %.2f\n", currency, s.AcceptedLiability))
	b.WriteString(p.Sprintf("Average accepted share: %.2f%%\n", s.AverageAcceptedSharePct))

	if len(s.Cedants) > 0 {
		b.WriteString("\n<b>By cedant:</b>\n")
		for _, c := range s.Cedants {
			b.WriteString(p.Sprintf("  %s: %d/%d accepted\n", html.EscapeString(c.Cedant), c.Accepted, c.Cases))
		}
	}
	return b.String()
}

// FormatNotReady is the reply when no decisions exist yet.
func FormatNotReady() string {
	return fmt.Sprintf("⏳ No decisions yet (%s)", time.Now().Format("2006-01-02 15:04"))
}
