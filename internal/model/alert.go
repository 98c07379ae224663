package model

import "time"

// KillChainStage is one stage of the attacker kill chain used to
// contextualize an alert.
type KillChainStage string

const (
	StageReconnaissance KillChainStage = "reconnaissance"
	StageInitialAccess  KillChainStage = "initial_access"
	StageExecution      KillChainStage = "execution"
	StageExfiltration   KillChainStage = "exfiltration"
	StageImpact         KillChainStage = "impact"
)

// AllKillChainStages lists the stages in canonical order.
var AllKillChainStages = []KillChainStage{
	StageReconnaissance, StageInitialAccess, StageExecution, StageExfiltration, StageImpact,
}

// MLClassification is the intelligence engine's traffic classification.
type MLClassification string

const (
	ClassificationNormal     MLClassification = "normal"
	ClassificationSuspicious MLClassification = "suspicious"
	ClassificationShadowAI   MLClassification = "shadow_ai"
)

// CIDRMatch is threat-intel enrichment attached to an alert when the
// destination IP falls within a known-provider CIDR block.
type CIDRMatch struct {
	Provider       string   `json:"provider"`
	Service        string   `json:"service"`
	RiskLevel      Severity `json:"risk_level"`
	Category       string   `json:"category"`
	DataRisk       string   `json:"data_risk"`
	ComplianceTags []string `json:"compliance_tags,omitempty"`
	CIDR           string   `json:"cidr"`
}

// JA3Match is JA3 fingerprint enrichment attached to an alert.
type JA3Match struct {
	JA3Hash    string   `json:"ja3_hash"`
	ClientName string   `json:"client_name,omitempty"`
	Category   string   `json:"category,omitempty"`
	RiskLevel  Severity `json:"risk_level,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Spoofing   bool      `json:"spoofing,omitempty"`
}

// ProbeResult is the outcome of an active-defense interrogation attached
// to an alert once a probe completes.
type ProbeResult struct {
	Attempted    bool     `json:"attempted"`
	Confirmed    bool     `json:"confirmed"`
	Indicators   []string `json:"indicators,omitempty"`
	SkippedReason string  `json:"skipped_reason,omitempty"`
}

// Enrichment holds optional threat-intel and active-defense detail
// attached to an Alert. Not part of the minimal Alert contract in
// spec.md §3, but the original implementation demonstrably produces
// this data for downstream consumers and spec.md does not forbid
// additional Alert fields.
type Enrichment struct {
	CIDR  *CIDRMatch   `json:"cidr_match,omitempty"`
	JA3   *JA3Match    `json:"ja3_intel,omitempty"`
	Probe *ProbeResult `json:"active_probe,omitempty"`
}

// Alert is an immutable security finding emitted by the analyzer.
type Alert struct {
	ID                string           `json:"id"`
	Timestamp         time.Time        `json:"timestamp"`
	Severity          Severity         `json:"severity"`
	Source            string           `json:"source"`
	Target            string           `json:"target"`
	Protocol          Protocol         `json:"protocol"`
	DestinationPort   int              `json:"destination_port"`
	SourcePort        int              `json:"source_port"`
	DestinationIP     string           `json:"destination_ip"`
	BytesSent         int64            `json:"bytes_sent"`
	BytesReceived     int64            `json:"bytes_received"`
	Description       string           `json:"description"`
	MatchedRule       string           `json:"matched_rule,omitempty"`
	Category          string           `json:"category,omitempty"`
	MLClassification  MLClassification `json:"ml_classification,omitempty"`
	MLConfidence      float64          `json:"ml_confidence,omitempty"`
	MLRiskScore       float64          `json:"ml_risk_score,omitempty"`
	KillChainStage    KillChainStage   `json:"killchain_stage,omitempty"`
	Enrichment        *Enrichment      `json:"enrichment,omitempty"`
}

// PolicyAction is the effect a PolicyRule requests.
type PolicyAction string

const (
	ActionBlock   PolicyAction = "block"
	ActionAllow   PolicyAction = "allow"
	ActionMonitor PolicyAction = "monitor"
)

// PolicyRule is a runtime-editable policy statement matched against
// destination service and source department.
type PolicyRule struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Action      PolicyAction `json:"action"`
	Service     string       `json:"service"`
	Department  string       `json:"department"`
	Severity    Severity     `json:"severity"`
	Enabled     bool         `json:"enabled"`
	Description string       `json:"description"`
}

// BlocklistEntry is a single quarantine record in the response manager.
type BlocklistEntry struct {
	IP            string    `json:"ip"`
	InsertedAt    time.Time `json:"inserted_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	Reason        string    `json:"reason"`
	SourceAlertID string    `json:"source_alert_id,omitempty"`
}

// Expired reports whether the entry should be treated as evicted at now.
func (b BlocklistEntry) Expired(now time.Time) bool {
	return !now.Before(b.ExpiresAt)
}
