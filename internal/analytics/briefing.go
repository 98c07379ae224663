package analytics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sgerhart/shadowhunter/internal/model"
)

// Briefing generates a deterministic executive threat briefing from the
// alert history (spec.md §4.8). Thresholds combine spec.md's explicit
// "thresholded on chain_completion and Shadow AI count" instruction
// with original_source's severity-count thresholds, since spec.md does
// not give closed numeric bounds (DESIGN.md open question resolution).
func Briefing(alerts []model.Alert, now time.Time) BriefingPayload {
	if len(alerts) == 0 {
		return BriefingPayload{
			Paragraphs: []BriefingParagraph{
				{Type: "status", Text: "No security events have been recorded yet. The monitoring system is active and scanning for Shadow AI activity, unauthorized data transfers, and policy violations."},
			},
			GeneratedAt: now,
			Period:      "Current Session",
			ThreatLevel: ThreatLevelLow,
		}
	}

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
	high, medium, low := sevCounts[string(model.SeverityHigh)], sevCounts[string(model.SeverityMedium)], sevCounts[string(model.SeverityLow)]

	chainCompletion := KillChain(alerts).ChainCompletion

	var threat ThreatLevel
	switch {
	case chainCompletion >= 80 || high > 5 || shadowAI > 10:
		threat = ThreatLevelCritical
	case chainCompletion >= 60 || high > 2 || shadowAI > 5:
		threat = ThreatLevelHigh
	case chainCompletion >= 40 || high > 0 || medium > 3:
		threat = ThreatLevelElevated
	default:
		threat = ThreatLevelLow
	}

	topSource, topSourceCount := topCount(sources)
	topTarget, topTargetCount := topCount(targets)

	paragraphs := []BriefingParagraph{
		{
			Type: "overview", Title: "Situation Overview",
			Text: fmt.Sprintf("During the current monitoring session, Shadow Hunter has analyzed and classified %d security events. The system has identified %d high-severity incidents, %d medium-severity events, and %d low-severity observations. The current threat level is assessed as %s.", len(alerts), high, medium, low, threat),
		},
	}

	if shadowAI > 0 {
		detail := "these events are being monitored and correlated for pattern analysis."
		if shadowAI > 5 {
			detail = "this represents a significant compliance risk requiring immediate investigation."
		}
		paragraphs = append(paragraphs, BriefingParagraph{
			Type: "shadow_ai", Title: "Shadow AI Activity",
			Text: fmt.Sprintf("%d instances of unauthorized AI service usage have been detected across the network. %s", shadowAI, detail),
		})
	}

	actorDetail := "activity levels are within normal parameters but warrant continued monitoring."
	if topSourceCount > 5 {
		actorDetail = "this concentrated activity pattern suggests targeted data exfiltration."
	}
	paragraphs = append(paragraphs, BriefingParagraph{
		Type: "actor", Title: "Primary Threat Actor",
		Text: fmt.Sprintf("The most active source IP is %s with %d associated events. The primary target destination is %s, receiving traffic from %d connections. %s", topSource, topSourceCount, topTarget, topTargetCount, actorDetail),
	})

	var recs []string
	if high > 0 {
		recs = append(recs, "Immediately investigate all HIGH-severity alerts and isolate compromised endpoints")
	}
	if shadowAI > 0 {
		recs = append(recs, "Review and enforce Shadow AI usage policies across all departments")
	}
	if len(sources) > 3 {
		recs = append(recs, "Audit the "+strconv.Itoa(len(sources))+" unique source IPs for unauthorized access patterns")
	}
	recs = append(recs, "Continue real-time monitoring and ensure DLP policies are enabled")
	paragraphs = append(paragraphs, BriefingParagraph{Type: "recommendations", Title: "Recommended Actions", Items: recs})

	return BriefingPayload{
		Paragraphs:  paragraphs,
		GeneratedAt: now,
		Period:      "Current Session",
		ThreatLevel: threat,
		Stats: &BriefingStats{
			TotalEvents: len(alerts), HighSeverity: high, ShadowAI: shadowAI,
			UniqueSources: len(sources), UniqueTargets: len(targets),
		},
	}
}

func topCount(counts map[string]int) (string, int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var best string
	var bestCount int
	for _, k := range keys {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	if best == "" {
		best = "unknown"
	}
	return best, bestCount
}
