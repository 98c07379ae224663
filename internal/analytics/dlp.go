package analytics

import (
	"sort"
	"strings"

	"github.com/sgerhart/shadowhunter/internal/model"
)

// dlpBytesThreshold is spec.md §4.8's "bytes_sent > 1 MB" DLP trigger.
const dlpBytesThreshold = 1_000_000

type dlpPattern struct {
	id, label, description string
	severity                model.Severity
	keywords                []string
}

// dlpPatterns is the keyword table classifying an alert into a DLP
// incident type, grounded on original_source's dlp_patterns table
// (services/api/routers/policy.py get_dlp_incidents()).
var dlpPatterns = []dlpPattern{
	{"pii_exposure", "PII Exposure Risk", "outbound traffic to AI service may contain personally identifiable information", model.SeverityHigh, []string{"shadow ai", "chatgpt", "claude", "gemini", "perplexity"}},
	{"api_key_leak", "API Key Leak Risk", "large outbound payload to AI coding assistant may contain API keys or credentials", model.SeverityHigh, []string{"copilot", "cursor", "replit", "code ai"}},
	{"data_exfiltration", "Data Exfiltration", "significant data volume transferred to external AI service", model.SeverityHigh, nil},
	{"code_snippet", "Code Snippet Upload", "source code may have been uploaded to AI coding tool", model.SeverityMedium, []string{"copilot", "cursor", "replit", "code"}},
	{"document_upload", "Document Upload Risk", "document content may have been shared with external AI service", model.SeverityMedium, []string{"chatgpt", "claude", "gemini", "anthropic"}},
}

// DLP reclassifies alerts as data-loss-prevention incidents per
// spec.md §4.8: bytes_sent over the threshold, or a description/target
// match against a known exfiltration-risk pattern.
func DLP(alerts []model.Alert) DLPResponse {
	var incidents []DLPIncident
	for _, a := range alerts {
		desc := strings.ToLower(a.Description)
		target := strings.ToLower(a.Target)

		var matched []string
		for _, p := range dlpPatterns {
			hit := false
			for _, kw := range p.keywords {
				if strings.Contains(desc, kw) || strings.Contains(target, kw) {
					hit = true
					break
				}
			}
			if p.id == "data_exfiltration" && a.BytesSent > dlpBytesThreshold {
				hit = true
			}
			if hit {
				matched = append(matched, p.id)
			}
		}
		if len(matched) == 0 {
			continue
		}

		primary := patternByID(matched[0])
		incidents = append(incidents, DLPIncident{
			ID: "dlp-" + a.ID, AlertID: a.ID, Type: primary.id, Label: primary.label,
			Description: primary.description, Severity: primary.severity,
			Source: a.Source, Target: a.Target, BytesSent: a.BytesSent,
			Timestamp: a.Timestamp, MatchedPatterns: matched, OriginalAlert: a.Description,
		})
	}

	sort.SliceStable(incidents, func(i, j int) bool { return incidents[i].Timestamp.After(incidents[j].Timestamp) })

	summary := DLPSummary{Types: map[string]int{}}
	for _, inc := range incidents {
		summary.TotalIncidents++
		if inc.Severity == model.SeverityHigh {
			summary.HighSeverity++
		}
		summary.Types[inc.Type]++
	}

	if len(incidents) > 50 {
		incidents = incidents[:50]
	}
	return DLPResponse{Incidents: incidents, Summary: summary}
}

func patternByID(id string) dlpPattern {
	for _, p := range dlpPatterns {
		if p.id == id {
			return p
		}
	}
	return dlpPattern{}
}
