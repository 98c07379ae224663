package analyzer

import (
	"strings"

	"github.com/sgerhart/shadowhunter/internal/model"
)

// killChainKeywords maps each stage to its keyword set, evaluated in
// priority order (highest-impact stage first) so an alert whose
// description matches more than one stage's keywords is attributed to
// the more severe stage. Grounded on
// original_source/services/api/routers/policy.py's get_killchain().
var killChainKeywords = []struct {
	stage    model.KillChainStage
	keywords []string
}{
	{model.StageImpact, []string{"violation", "breach", "critical", "block", "policy"}},
	{model.StageExfiltration, []string{"exfiltration", "upload", "large transfer", "data leak", "pii", "api key", "sensitive"}},
	{model.StageExecution, []string{"chatgpt", "claude", "copilot", "gemini", "midjourney", "ai service", "query", "prompt"}},
	{model.StageInitialAccess, []string{"shadow ai", "unauthorized", "first seen", "new connection", "unknown service"}},
	{model.StageReconnaissance, []string{"scan", "probe", "discover", "dns", "lookup", "resolve"}},
}

// KillChainStageFor classifies an alert's description (and, as a
// fallback, its severity) into one of the five kill-chain stages
// (spec.md §4.6/§4.8).
func KillChainStageFor(description string, severity model.Severity) model.KillChainStage {
	desc := strings.ToLower(description)
	for _, s := range killChainKeywords {
		for _, kw := range s.keywords {
			if strings.Contains(desc, kw) {
				return s.stage
			}
		}
	}
	switch severity {
	case model.SeverityHigh:
		return model.StageImpact
	case model.SeverityMedium:
		return model.StageExecution
	default:
		return model.StageReconnaissance
	}
}
