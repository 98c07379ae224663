package intel

import (
	"net"

	"github.com/sgerhart/shadowhunter/internal/model"
)

// CIDREntry is one row of the AI-provider CIDR threat-intel table.
// Grounded on original_source/pkg/data/cidr_threat_intel.py.
type CIDREntry struct {
	CIDR           string
	Provider       string
	Service        string
	RiskLevel      model.Severity
	Category       string
	DataRisk       string
	ComplianceTags []string
}

// defaultCIDRDatabase is a representative cross-section of known AI
// provider ranges. CRITICAL risk levels in the original are normalized
// to HIGH, since spec.md §3 defines only {HIGH, MEDIUM, LOW}.
var defaultCIDRDatabase = []CIDREntry{
	{
		CIDR: "13.107.42.0/24", Provider: "OpenAI", Service: "ChatGPT / GPT-4 API",
		RiskLevel: model.SeverityHigh, Category: "LLM",
		DataRisk:       "Prompts may contain PII, proprietary code, or trade secrets",
		ComplianceTags: []string{"SOC2", "GDPR", "HIPAA"},
	},
	{
		CIDR: "40.119.0.0/16", Provider: "OpenAI (Azure)", Service: "Azure OpenAI Service",
		RiskLevel: model.SeverityHigh, Category: "LLM",
		DataRisk:       "Enterprise AI access via Azure — may bypass network controls",
		ComplianceTags: []string{"SOC2", "GDPR"},
	},
	{
		CIDR: "34.102.136.0/24", Provider: "Anthropic", Service: "Claude API",
		RiskLevel: model.SeverityHigh, Category: "LLM",
		DataRisk:       "Large context window enables massive data ingestion",
		ComplianceTags: []string{"SOC2", "GDPR", "HIPAA"},
	},
	{
		CIDR: "142.250.0.0/16", Provider: "Google", Service: "Gemini / Vertex AI",
		RiskLevel: model.SeverityHigh, Category: "LLM",
		DataRisk:       "Data may be used for model improvement without explicit consent",
		ComplianceTags: []string{"SOC2", "GDPR"},
	},
	{
		CIDR: "104.18.32.0/20", Provider: "Cloudflare (fronted)", Service: "Generic AI API fronting",
		RiskLevel: model.SeverityMedium, Category: "ML Infra",
		DataRisk:       "Provider identity obscured behind CDN; treat as unknown-risk AI traffic",
		ComplianceTags: []string{"SOC2"},
	},
	{
		CIDR: "198.51.100.0/24", Provider: "Unregistered", Service: "Suspected Shadow AI relay",
		RiskLevel: model.SeverityHigh, Category: "Unknown",
		DataRisk:       "Documentation/test range used to model unconfirmed Shadow AI infrastructure",
		ComplianceTags: []string{"SOC2"},
	},
}

// CIDRTable matches destination IPs against known AI-provider ranges.
type CIDRTable struct {
	entries []cidrEntryParsed
}

type cidrEntryParsed struct {
	net   *net.IPNet
	entry CIDREntry
}

// NewCIDRTable builds the default curated table.
func NewCIDRTable() *CIDRTable {
	return NewCIDRTableFrom(defaultCIDRDatabase)
}

// NewCIDRTableFrom builds a table from caller-supplied entries, skipping
// any entry whose CIDR fails to parse.
func NewCIDRTableFrom(entries []CIDREntry) *CIDRTable {
	t := &CIDRTable{}
	for _, e := range entries {
		_, ipnet, err := net.ParseCIDR(e.CIDR)
		if err != nil {
			continue
		}
		t.entries = append(t.entries, cidrEntryParsed{net: ipnet, entry: e})
	}
	return t
}

// Lookup returns the matching CIDR entry for ip, or nil if none match.
// The first matching entry wins; entries are evaluated in table order.
func (t *CIDRTable) Lookup(ip string) *CIDREntry {
	if t == nil {
		return nil
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil
	}
	for _, e := range t.entries {
		if e.net.Contains(parsed) {
			out := e.entry
			return &out
		}
	}
	return nil
}
