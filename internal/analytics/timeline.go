package analytics

import (
	"sort"
	"time"

	"github.com/sgerhart/shadowhunter/internal/model"
)

// timelineWindow is spec.md §4.8's "last 60 minutes" bucketing window.
const timelineWindow = 60 * time.Minute

// Timeline buckets alerts within the last 60 minutes of now into
// 1-minute buckets split by severity (spec.md §4.8).
func Timeline(alerts []model.Alert, now time.Time) TimelineResponse {
	cutoff := now.Add(-timelineWindow)
	type bucket struct{ high, medium, low int }
	buckets := make(map[string]*bucket)
	protocols := map[string]bool{}
	sources := map[string]bool{}
	inWindow := 0

	for _, a := range alerts {
		if a.Timestamp.Before(cutoff) || a.Timestamp.After(now) {
			continue
		}
		inWindow++
		key := a.Timestamp.Format("15:04")
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		switch a.Severity {
		case model.SeverityHigh:
			b.high++
		case model.SeverityMedium:
			b.medium++
		case model.SeverityLow:
			b.low++
		}
		if a.Protocol != "" {
			protocols[string(a.Protocol)] = true
		}
		if a.Source != "" {
			sources[a.Source] = true
		}
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]TimelineBucket, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		out = append(out, TimelineBucket{Time: k, High: b.high, Medium: b.medium, Low: b.low, Total: b.high + b.medium + b.low})
	}

	return TimelineResponse{
		Buckets:     out,
		Filters:     TimelineFilters{Protocols: setKeys(protocols), Sources: setKeys(sources)},
		TotalAlerts: inWindow,
	}
}
