package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/sgerhart/shadowhunter/internal/model"
)

// reportTopN caps the top-sources/top-targets lists.
const reportTopN = 10

// Report aggregates a static summary snapshot for the /policy/report
// view, supplementing spec.md §4.8's named analytics with a single
// consolidated export (original_source's generate_report(), which the
// distilled spec dropped but does not exclude).
func Report(alerts []model.Alert, now time.Time) ReportPayload {
	sevCounts := map[string]int{}
	sources := map[string]int{}
	targets := map[string]int{}
	shadowAI := 0
	for _, a := range alerts {
		sevCounts[string(a.Severity)]++
		sources[a.Source]++
		targets[a.Target]++
		if strings.Contains(strings.ToLower(a.Description), "shadow ai") {
			shadowAI++
		}
	}

	return ReportPayload{
		GeneratedAt:       now,
		TotalAlerts:       len(alerts),
		ShadowAIAlerts:    shadowAI,
		UniqueSources:     len(sources),
		UniqueTargets:     len(targets),
		SeverityBreakdown: sevCounts,
		TopSources:        topCountEntries(sources, reportTopN),
		TopTargets:        topCountEntries(targets, reportTopN),
		Recommendations: []string{
			"Review high-severity alerts for unauthorized AI service usage",
			"Update firewall rules to block or monitor flagged AI domains",
			"Investigate top offender IPs for policy compliance",
			"Consider implementing endpoint DLP for AI data exfiltration prevention",
		},
	}
}

func topCountEntries(counts map[string]int, limit int) []CountEntry {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sort.SliceStable(keys, func(i, j int) bool { return counts[keys[i]] > counts[keys[j]] })
	if len(keys) > limit {
		keys = keys[:limit]
	}
	out := make([]CountEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, CountEntry{IP: k, Count: counts[k]})
	}
	return out
}
