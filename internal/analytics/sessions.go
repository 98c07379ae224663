package analytics

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sgerhart/shadowhunter/internal/model"
)

// sessionGap is spec.md §4.8's session-boundary gap: consecutive
// alerts from the same source more than this far apart start a new
// session.
const sessionGap = 5 * time.Minute

// Sessions groups a source's alerts into maximal runs no more than
// sessionGap apart, per spec.md §4.8 and its S6 scenario. Single-alert
// runs are excluded (a session requires at least 2 alerts). Results are
// sorted by risk_score descending and capped at 30, matching the
// original per-endpoint page size.
func Sessions(alerts []model.Alert) []Session {
	sorted := make([]model.Alert, len(alerts))
	copy(sorted, alerts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	bySource := make(map[string][]model.Alert)
	var order []string
	for _, a := range sorted {
		if _, ok := bySource[a.Source]; !ok {
			order = append(order, a.Source)
		}
		bySource[a.Source] = append(bySource[a.Source], a)
	}

	var out []Session
	id := 0
	for _, source := range order {
		var run []model.Alert
		flush := func() {
			if len(run) >= 2 {
				out = append(out, buildSession(id, source, run))
				id++
			}
			run = nil
		}
		for _, a := range bySource[source] {
			if len(run) > 0 && a.Timestamp.Sub(run[len(run)-1].Timestamp) > sessionGap {
				flush()
			}
			run = append(run, a)
		}
		flush()
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].RiskScore > out[j].RiskScore })
	if len(out) > 30 {
		out = out[:30]
	}
	return out
}

func buildSession(id int, source string, events []model.Alert) Session {
	severity := map[string]int{}
	destSet := map[string]bool{}
	protoSet := map[model.Protocol]bool{}
	risk := 0.0
	label := "Network Activity"
	timeline := make([]SessionEvent, 0, len(events))

	for _, e := range events {
		severity[string(e.Severity)]++
		destSet[e.Target] = true
		protoSet[e.Protocol] = true
		switch e.Severity {
		case model.SeverityHigh:
			risk += 3
		case model.SeverityMedium:
			risk += 2
		case model.SeverityLow:
			risk += 1
		}
		lower := strings.ToLower(e.Description)
		if strings.Contains(lower, "shadow ai") || strings.Contains(lower, "shadow_ai") {
			label = "Shadow AI Activity"
		} else if label == "Network Activity" && strings.Contains(lower, "anomalous") {
			label = "Anomalous Traffic"
		}
		timeline = append(timeline, SessionEvent{Timestamp: e.Timestamp, Description: e.Description, Severity: e.Severity, Target: e.Target})
	}

	maxSev := model.SeverityLow
	for _, e := range events {
		maxSev = model.MaxSeverity(maxSev, e.Severity)
	}

	return Session{
		ID:                "session-" + strconv.Itoa(id),
		Source:            source,
		Label:             label,
		AlertCount:        len(events),
		RiskScore:         risk,
		MaxSeverity:       maxSev,
		StartTime:         events[0].Timestamp,
		EndTime:           events[len(events)-1].Timestamp,
		DurationSeconds:   int(events[len(events)-1].Timestamp.Sub(events[0].Timestamp).Seconds()),
		Destinations:      setKeys(destSet),
		Protocols:         protoKeys(protoSet),
		Timeline:          timeline,
		SeverityBreakdown: severity,
	}
}

func setKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func protoKeys(m map[model.Protocol]bool) []model.Protocol {
	out := make([]model.Protocol, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
