package analytics

import (
	"math"
	"sort"

	"github.com/sgerhart/shadowhunter/internal/model"
)

// RiskScores implements spec.md §4.8's per-source risk percentage:
// `risk_pct = min(100, 5*alerts_high + 2*alerts_medium + alerts_low +
// 0.05*edge_count)`. edgeCounts supplies each IP's outbound edge count
// from the graph (the API handler counts graphstore.ListEdges results
// by source); a missing
// entry is treated as zero. Results are sorted by risk_pct descending.
func RiskScores(alerts []model.Alert, edgeCounts map[string]int) []RiskScoreEntry {
	type tally struct {
		high, medium, low int
		total             int
	}
	bySource := make(map[string]*tally)
	var order []string
	for _, a := range alerts {
		t, ok := bySource[a.Source]
		if !ok {
			t = &tally{}
			bySource[a.Source] = t
			order = append(order, a.Source)
		}
		t.total++
		switch a.Severity {
		case model.SeverityHigh:
			t.high++
		case model.SeverityMedium:
			t.medium++
		case model.SeverityLow:
			t.low++
		}
	}

	out := make([]RiskScoreEntry, 0, len(order))
	for _, ip := range order {
		t := bySource[ip]
		risk := 5*float64(t.high) + 2*float64(t.medium) + float64(t.low) + 0.05*float64(edgeCounts[ip])
		out = append(out, RiskScoreEntry{IP: ip, RiskPct: math.Min(100, risk), TotalAlerts: t.total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RiskPct != out[j].RiskPct {
			return out[i].RiskPct > out[j].RiskPct
		}
		return out[i].IP < out[j].IP
	})
	return out
}
