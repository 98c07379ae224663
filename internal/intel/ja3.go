package intel

import (
	"strings"

	"github.com/sgerhart/shadowhunter/internal/model"
)

// JA3Category buckets a fingerprint by client kind.
type JA3Category string

const (
	JA3Browser    JA3Category = "browser"
	JA3Scripting  JA3Category = "scripting"
	JA3AttackTool JA3Category = "attack_tool"
	JA3Bot        JA3Category = "bot"
	JA3Proxy      JA3Category = "proxy"
)

// JA3Entry is one row of the JA3 fingerprint database. Grounded on
// original_source/pkg/data/ja3_intel.py.
type JA3Entry struct {
	Hash               string
	ClientName         string
	Category           JA3Category
	RiskLevel          model.Severity
	Description        string
	ExpectedUAPatterns []string
	Tags               []string
}

// canonicalPythonRequestsHash is the well-known JA3 fingerprint for the
// Python requests/urllib3 HTTP client, used by S4 in spec.md §8.
const canonicalPythonRequestsHash = "e7d705a3286e19ea42f587b344ee6865"

var defaultJA3Database = []JA3Entry{
	{
		Hash: canonicalPythonRequestsHash, ClientName: "Python requests 2.x (urllib3)",
		Category: JA3Scripting, RiskLevel: model.SeverityHigh,
		Description:        "Standard Python HTTP client — commonly used for API automation and data exfiltration scripts",
		ExpectedUAPatterns: []string{"python-requests", "python-urllib3"},
		Tags:               []string{"spoofing_risk", "automation"},
	},
	{
		Hash: "b32309a26951912be7dba376398abc3b", ClientName: "Python aiohttp",
		Category: JA3Scripting, RiskLevel: model.SeverityHigh,
		Description:        "Async Python HTTP client — used in high-throughput scraping and C2 frameworks",
		ExpectedUAPatterns: []string{"aiohttp", "python"},
		Tags:               []string{"spoofing_risk", "automation", "async"},
	},
	{
		Hash: "d7a7a67e6a706ba3a3b8ce2e36c2a8e3", ClientName: "Go net/http",
		Category: JA3Scripting, RiskLevel: model.SeverityMedium,
		Description:        "Go standard HTTP client — common in microservices and cloud-native tooling",
		ExpectedUAPatterns: []string{"Go-http-client", "go"},
		Tags:               []string{"spoofing_risk"},
	},
	{
		Hash: "51c64c77e60f3980eea90869b68c58a8", ClientName: "Cobalt Strike Beacon",
		Category: JA3AttackTool, RiskLevel: model.SeverityHigh,
		Description: "Post-exploitation C2 framework — immediate incident response required",
		Tags:        []string{"known_malware", "c2", "apt"},
	},
	{
		Hash: "72a589da586844d7f0818ce684948eea", ClientName: "Metasploit Framework",
		Category: JA3AttackTool, RiskLevel: model.SeverityHigh,
		Description: "Penetration testing framework — may indicate active exploitation",
		Tags:        []string{"known_malware", "exploit"},
	},
}

var browserUAIndicators = []string{"chrome", "firefox", "safari", "edge", "mozilla"}

// JA3Matcher indexes the JA3 database for O(1) lookup and provides
// spoofing detection (User-Agent claims a browser but the fingerprint
// says otherwise).
type JA3Matcher struct {
	byHash map[string]JA3Entry
}

// NewJA3Matcher builds the default curated matcher.
func NewJA3Matcher() *JA3Matcher {
	return NewJA3MatcherFrom(defaultJA3Database)
}

// NewJA3MatcherFrom builds a matcher from caller-supplied entries.
func NewJA3MatcherFrom(entries []JA3Entry) *JA3Matcher {
	idx := make(map[string]JA3Entry, len(entries))
	for _, e := range entries {
		idx[e.Hash] = e
	}
	return &JA3Matcher{byHash: idx}
}

// Lookup returns the entry for hash, or nil if unknown. Hashes must be
// 32 hex characters to be considered.
func (m *JA3Matcher) Lookup(hash string) *JA3Entry {
	if m == nil || len(hash) != 32 {
		return nil
	}
	if e, ok := m.byHash[hash]; ok {
		return &e
	}
	return nil
}

// IsKnownBad reports whether hash belongs to a known attack tool.
func (m *JA3Matcher) IsKnownBad(hash string) bool {
	e := m.Lookup(hash)
	return e != nil && e.Category == JA3AttackTool
}

// DetectSpoofing reports whether userAgent claims a browser while hash
// identifies a non-browser client. Browsers are excluded (their UA is
// expected to match). Returns nil if no mismatch is detected.
func (m *JA3Matcher) DetectSpoofing(hash, userAgent string) *JA3Entry {
	e := m.Lookup(hash)
	if e == nil || userAgent == "" || e.Category == JA3Browser {
		return nil
	}
	ua := strings.ToLower(userAgent)
	claimsBrowser := false
	for _, ind := range browserUAIndicators {
		if strings.Contains(ua, ind) {
			claimsBrowser = true
			break
		}
	}
	isNotBrowser := e.Category == JA3Scripting || e.Category == JA3AttackTool || e.Category == JA3Bot || e.Category == JA3Proxy
	if claimsBrowser && isNotBrowser {
		return e
	}
	return nil
}
