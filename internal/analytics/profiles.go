package analytics

import (
	"sort"
	"strconv"

	"github.com/sgerhart/shadowhunter/internal/model"
)

// businessHourStart/End bound the "normal" activity window used by the
// unusual_hours behavioral flag (spec.md §4.8: "08:00-20:00 local").
const (
	businessHourStart = 8
	businessHourEnd   = 20
)

// Profiles builds a behavioral UserProfile per source IP from an alert
// history, sorted by risk_score descending, per spec.md §4.8.
func Profiles(alerts []model.Alert) []UserProfile {
	type accum struct {
		alerts       []model.Alert
		destinations map[string]int
		hours        map[int]int
	}
	byIP := make(map[string]*accum)
	var order []string
	for _, a := range alerts {
		acc, ok := byIP[a.Source]
		if !ok {
			acc = &accum{destinations: map[string]int{}, hours: map[int]int{}}
			byIP[a.Source] = acc
			order = append(order, a.Source)
		}
		acc.alerts = append(acc.alerts, a)
		acc.destinations[a.Target]++
		acc.hours[a.Timestamp.Hour()]++
	}

	out := make([]UserProfile, 0, len(order))
	for _, ip := range order {
		acc := byIP[ip]
		total := len(acc.alerts)

		severity := map[string]int{}
		first, last := acc.alerts[0].Timestamp, acc.alerts[0].Timestamp
		for _, a := range acc.alerts {
			severity[string(a.Severity)]++
			if a.Timestamp.Before(first) {
				first = a.Timestamp
			}
			if a.Timestamp.After(last) {
				last = a.Timestamp
			}
		}

		var typicalHours []int
		for h, c := range acc.hours {
			if float64(c)/float64(total) > 0.15 {
				typicalHours = append(typicalHours, h)
			}
		}
		sort.Ints(typicalHours)

		var anomalies []ProfileAnomaly
		offHours := 0
		for h, c := range acc.hours {
			if h < businessHourStart || h >= businessHourEnd {
				offHours += c
			}
		}
		if float64(offHours)/float64(total) >= 0.30 {
			anomalies = append(anomalies, ProfileAnomaly{Type: "unusual_hours", Detail: strconv.Itoa(offHours) + " alerts outside business hours"})
		}

		topDest, topCount := topDestination(acc.destinations)
		if topCount > 0 && float64(topCount)/float64(total) >= 0.70 {
			anomalies = append(anomalies, ProfileAnomaly{Type: "single_target_focus", Detail: strconv.Itoa(topCount) + " alerts targeting " + topDest})
		}

		if float64(severity[string(model.SeverityHigh)])/float64(total) >= 0.30 {
			anomalies = append(anomalies, ProfileAnomaly{Type: "high_severity_ratio", Detail: strconv.Itoa(severity[string(model.SeverityHigh)]) + "/" + strconv.Itoa(total) + " alerts are HIGH severity"})
		}

		risk := float64(severity[string(model.SeverityHigh)])*3 + float64(severity[string(model.SeverityMedium)])*2 + float64(severity[string(model.SeverityLow)])

		out = append(out, UserProfile{
			IP:                ip,
			AlertCount:        total,
			RiskScore:         risk,
			FirstSeen:         first,
			LastSeen:          last,
			TypicalHours:      typicalHours,
			TopDestinations:   topDestinations(acc.destinations, 5),
			SeverityBreakdown: severity,
			Anomalies:         anomalies,
			HourDistribution:  acc.hours,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].RiskScore > out[j].RiskScore })
	if len(out) > 20 {
		out = out[:20]
	}
	return out
}

func topDestination(counts map[string]int) (string, int) {
	var best string
	var bestCount int
	// Deterministic over Go's randomized map order.
	for _, d := range sortedKeys(counts) {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best, bestCount
}

func topDestinations(counts map[string]int, limit int) []TopDestination {
	keys := sortedKeys(counts)
	sort.SliceStable(keys, func(i, j int) bool { return counts[keys[i]] > counts[keys[j]] })
	if len(keys) > limit {
		keys = keys[:limit]
	}
	out := make([]TopDestination, 0, len(keys))
	for _, k := range keys {
		out = append(out, TopDestination{Target: k, Count: counts[k]})
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

