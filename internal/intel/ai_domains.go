// Package intel holds curated threat-intelligence tables: known AI
// service domains, AI-provider CIDR blocks, and JA3 client fingerprints.
// These tables ground the rule-based detector (internal/rules) and the
// alert-enrichment step of the analyzer (internal/analyzer).
package intel

import "strings"

// aiDomainCategories maps a base AI-service domain to its category.
// Grounded on original_source/pkg/data/ai_domains.py; trimmed to a
// representative cross-section of each category rather than the full
// 120+ entry table, since the matching algorithm — not table size — is
// what spec.md §4.4 specifies.
var aiDomainCategories = map[string]string{
	"openai.com":       "LLM",
	"chatgpt.com":      "LLM",
	"oaiusercontent.com": "LLM",
	"anthropic.com":    "LLM",
	"claude.ai":        "LLM",
	"cohere.ai":        "LLM",
	"mistral.ai":       "LLM",
	"perplexity.ai":    "LLM",
	"character.ai":     "LLM",
	"poe.com":          "LLM",
	"x.ai":             "LLM",
	"gemini.google.com": "LLM",
	"generativelanguage.googleapis.com": "LLM",
	"githubcopilot.com": "Code AI",
	"copilot.microsoft.com": "LLM",
	"midjourney.com":   "Image Gen",
	"stability.ai":     "Image Gen",
	"runwayml.com":     "Video Gen",
	"leonardo.ai":      "Image Gen",
	"cursor.sh":        "Code AI",
	"codeium.com":      "Code AI",
	"sourcegraph.com":  "Code AI",
	"replit.com":       "Code AI",
	"elevenlabs.io":    "Voice AI",
	"suno.ai":          "Voice AI",
	"jasper.ai":        "Writing AI",
	"copy.ai":          "Writing AI",
	"grammarly.com":    "Writing AI",
	"langchain.com":    "Agent/Tool",
	"zapier.com":       "Agent/Tool",
	"huggingface.co":   "ML Infra",
	"replicate.com":    "ML Infra",
	"together.xyz":     "ML Infra",
	"groq.com":         "ML Infra",
	"deepinfra.com":    "ML Infra",
}

// AIDomainTable is a lookup for known AI-service domains, matching on
// exact hostname or a dot-boundary suffix (e.g. "api.openai.com"
// matches the "openai.com" entry, but "evilopenai.com" does not).
type AIDomainTable struct {
	byDomain map[string]string
}

// NewAIDomainTable builds the default curated table.
func NewAIDomainTable() *AIDomainTable {
	return &AIDomainTable{byDomain: aiDomainCategories}
}

// NewAIDomainTableFrom builds a table from a caller-supplied domain to
// category map, for tests or YAML-loaded overrides.
func NewAIDomainTableFrom(entries map[string]string) *AIDomainTable {
	return &AIDomainTable{byDomain: entries}
}

// Category returns the AI category for host, or "" if host does not
// match any known AI domain or a subdomain of one. Matching is
// case-insensitive and honors dot boundaries: "sub.openai.com" matches
// "openai.com", but "notopenai.com" does not.
func (t *AIDomainTable) Category(host string) string {
	if host == "" || t == nil {
		return ""
	}
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(host, ".")

	if cat, ok := t.byDomain[host]; ok {
		return cat
	}
	for base, cat := range t.byDomain {
		if strings.HasSuffix(host, "."+base) {
			return cat
		}
	}
	return ""
}

// IsAIDomain reports whether host matches a known AI domain.
func (t *AIDomainTable) IsAIDomain(host string) bool {
	return t.Category(host) != ""
}

// MatchedBase returns the base domain that matched host (for
// matched_rule reporting), or "" if there is no match.
func (t *AIDomainTable) MatchedBase(host string) string {
	if host == "" || t == nil {
		return ""
	}
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(host, ".")
	if _, ok := t.byDomain[host]; ok {
		return host
	}
	for base := range t.byDomain {
		if strings.HasSuffix(host, "."+base) {
			return base
		}
	}
	return ""
}
