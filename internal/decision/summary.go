package decision

import (
	"math"
	"sort"
	"strings"

	"RiskSentinel/internal/model"
)

// Summary is the portfolio view of a decided artifact.
type Summary struct {
	Total                   int           `json:"total"`
	Accepted                int           `json:"accepted"`
	Declined                int           `json:"declined"`
	AcceptanceRatePct       int           `json:"acceptance_rate_pct"`
	AcceptedPremium         float64       `json:"accepted_premium"`
	AcceptedLiability       float64       `json:"accepted_liability"`
	AverageAcceptedSharePct float64       `json:"average_accepted_share_pct"`
	Cedants                 []CedantTally `json:"cedants"`
	Perils                  []PerilTally  `json:"perils"`
}

// CedantTally counts the cases of one cedant.
type CedantTally struct {
	Cedant          string  `json:"cedant"`
	Cases           int     `json:"cases"`
	Accepted        int     `json:"accepted"`
	AcceptedPremium float64 `json:"accepted_premium"`
}

// PerilTally is the accepted liability exposed to one covered peril.
type PerilTally struct {
	Peril    string  `json:"peril"`
	Cases    int     `json:"cases"`
	Exposure float64 `json:"exposure"`
}

// Summarize aggregates decided records. Premium, liability and share figures
// only count accepted risks.
func Summarize(recs []model.DecisionRecord) Summary {
	s := Summary{Total: len(recs)}
	cedants := map[string]*CedantTally{}
	perils := map[string]*PerilTally{}
	var shareSum float64

	for _, r := range recs {
		accepted := r.Verdict == model.VerdictAccept

		name := r.Fields.String(model.FieldCedant)
		if name == "" {
			name = "Unknown"
		}
		c := cedants[name]
		if c == nil {
			c = &CedantTally{Cedant: name}
			cedants[name] = c
		}
		c.Cases++

		if !accepted {
			s.Declined++
			continue
		}
		s.Accepted++
		c.Accepted++
		shareSum += r.AcceptedSharePct

		var premium, liability float64
		if r.Financials != nil {
			premium = r.Financials.AcceptedPremium
			liability = r.Financials.AcceptedLiability
		} else {
			liability = r.EvaluatedAcceptedLiability
		}
		s.AcceptedPremium += premium
		s.AcceptedLiability += liability
		c.AcceptedPremium += premium

		for _, p := range splitPerils(r.Fields.String(model.FieldPerils)) {
			t := perils[p]
			if t == nil {
				t = &PerilTally{Peril: p}
				perils[p] = t
			}
			t.Cases++
			t.Exposure += liability
		}
	}

	if s.Total > 0 {
		s.AcceptanceRatePct = int(math.Round(float64(s.Accepted) / float64(s.Total) * 100))
	}
	if s.Accepted > 0 {
		s.AverageAcceptedSharePct = math.Round(shareSum/float64(s.Accepted)*100) / 100
	}

	for _, c := range cedants {
		s.Cedants = append(s.Cedants, *c)
	}
	sort.Slice(s.Cedants, func(i, j int) bool {
		if s.Cedants[i].Cases != s.Cedants[j].Cases {
			return s.Cedants[i].Cases > s.Cedants[j].Cases
		}
		return s.Cedants[i].Cedant < s.Cedants[j].Cedant
	})
	for _, p := range perils {
		s.Perils = append(s.Perils, *p)
	}
	sort.Slice(s.Perils, func(i, j int) bool {
		if s.Perils[i].Exposure != s.Perils[j].Exposure {
			return s.Perils[i].Exposure > s.Perils[j].Exposure
		}
		return s.Perils[i].Peril < s.Perils[j].Peril
	})
	return s
}

func splitPerils(v string) []string {
	if v == "" {
		return []string{"Unknown"}
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"Unknown"}
	}
	return out
}
