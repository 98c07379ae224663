// Package analytics implements the derived-analytics views (spec.md
// §4.8): pure functions over a snapshot of the graph, the alert ring
// buffer, and the policy rule table. Nothing here holds its own state;
// every function takes its inputs and returns a value, so results can
// be cached or recomputed by the caller (C10) as cheaply as it likes.
//
// Grounded on original_source/services/api/routers/policy.py's
// killchain/compliance/briefing/dlp/timeline/sessions/profiles
// endpoints, translated from ad hoc dict-building into typed Go values.
package analytics

import (
	"time"

	"github.com/sgerhart/shadowhunter/internal/model"
)

// RiskScoreEntry is one row of the /discovery/risk-scores view.
type RiskScoreEntry struct {
	IP          string  `json:"ip"`
	RiskPct     float64 `json:"risk_pct"`
	TotalAlerts int     `json:"total_alerts"`
}

// TopDestination is a (target, count) pair used by UserProfile.
type TopDestination struct {
	Target string `json:"target"`
	Count  int    `json:"count"`
}

// ProfileAnomaly is a single behavioral flag raised for a UserProfile.
type ProfileAnomaly struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

// UserProfile summarizes one source IP's alert history.
type UserProfile struct {
	IP                string             `json:"ip"`
	AlertCount        int                `json:"alert_count"`
	RiskScore         float64            `json:"risk_score"`
	FirstSeen         time.Time          `json:"first_seen"`
	LastSeen          time.Time          `json:"last_seen"`
	TypicalHours      []int              `json:"typical_hours"`
	TopDestinations   []TopDestination   `json:"top_destinations"`
	SeverityBreakdown map[string]int     `json:"severity_breakdown"`
	Anomalies         []ProfileAnomaly   `json:"anomalies"`
	HourDistribution  map[int]int        `json:"hour_distribution"`
}

// SessionEvent is one alert's projection into a Session's timeline.
type SessionEvent struct {
	Timestamp   time.Time     `json:"timestamp"`
	Description string        `json:"description"`
	Severity    model.Severity `json:"severity"`
	Target      string        `json:"target"`
}

// Session is a maximal run of one source's alerts with no gap longer
// than sessionGap between consecutive alerts (spec.md §4.8).
type Session struct {
	ID                string          `json:"id"`
	Source            string          `json:"source"`
	Label             string          `json:"label"`
	AlertCount        int             `json:"alert_count"`
	RiskScore         float64         `json:"risk_score"`
	MaxSeverity       model.Severity  `json:"max_severity"`
	StartTime         time.Time       `json:"start_time"`
	EndTime           time.Time       `json:"end_time"`
	DurationSeconds   int             `json:"duration_seconds"`
	Destinations      []string        `json:"destinations"`
	Protocols         []model.Protocol `json:"protocols"`
	Timeline          []SessionEvent  `json:"timeline"`
	SeverityBreakdown map[string]int  `json:"severity_breakdown"`
}

// KillChainStageSummary is one stage's rollup for the /policy/killchain view.
type KillChainStageSummary struct {
	ID          model.KillChainStage `json:"id"`
	Label       string               `json:"label"`
	Description string               `json:"description"`
	Count       int                  `json:"count"`
	Alerts      []model.Alert        `json:"alerts"`
	Active      bool                 `json:"active"`
}

// KillChainResponse is the full /policy/killchain payload.
type KillChainResponse struct {
	Stages          []KillChainStageSummary `json:"stages"`
	TotalAlerts     int                     `json:"total_alerts"`
	ActiveStages    int                     `json:"active_stages"`
	ChainCompletion float64                 `json:"chain_completion"`
}

// DLPIncident is one alert reclassified as a data-loss-prevention event.
type DLPIncident struct {
	ID              string         `json:"id"`
	AlertID         string         `json:"alert_id"`
	Type            string         `json:"type"`
	Label           string         `json:"label"`
	Description     string         `json:"description"`
	Severity        model.Severity `json:"severity"`
	Source          string         `json:"source"`
	Target          string         `json:"target"`
	BytesSent       int64          `json:"bytes_sent"`
	Timestamp       time.Time      `json:"timestamp"`
	MatchedPatterns []string       `json:"matched_patterns"`
	OriginalAlert   string         `json:"original_alert"`
}

// DLPSummary is the /policy/dlp view's aggregate counters.
type DLPSummary struct {
	TotalIncidents int            `json:"total_incidents"`
	HighSeverity   int            `json:"high_severity"`
	Types          map[string]int `json:"types"`
}

// DLPResponse is the full /policy/dlp payload.
type DLPResponse struct {
	Incidents []DLPIncident `json:"incidents"`
	Summary   DLPSummary    `json:"summary"`
}

// ComplianceStatus is one check's pass/warn/fail verdict.
type ComplianceStatus string

const (
	ComplianceStatusPass ComplianceStatus = "pass"
	ComplianceStatusWarn ComplianceStatus = "warn"
	ComplianceStatusFail ComplianceStatus = "fail"
)

// ComplianceCheck is a single named control evaluated for one framework.
type ComplianceCheck struct {
	Name   string           `json:"name"`
	Status ComplianceStatus `json:"status"`
	Detail string           `json:"detail"`
}

// ComplianceFramework is one framework's checks and rollup score.
type ComplianceFramework struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Checks      []ComplianceCheck `json:"checks"`
	Score       float64           `json:"score"`
	PassCount   int               `json:"pass_count"`
	WarnCount   int               `json:"warn_count"`
	FailCount   int               `json:"fail_count"`
}

// ComplianceResponse is the full /policy/compliance payload.
type ComplianceResponse struct {
	Frameworks   []ComplianceFramework `json:"frameworks"`
	OverallScore float64               `json:"overall_score"`
	TotalChecks  int                   `json:"total_checks"`
	Violations   int                   `json:"violations"`
}

// TimelineBucket is one minute's alert counts by severity.
type TimelineBucket struct {
	Time   string `json:"time"`
	High   int    `json:"HIGH"`
	Medium int    `json:"MEDIUM"`
	Low    int    `json:"LOW"`
	Total  int    `json:"total"`
}

// TimelineFilters lists the distinct facet values present in the
// bucketed window, for client-side filter dropdowns.
type TimelineFilters struct {
	Protocols []string `json:"protocols"`
	Sources   []string `json:"sources"`
}

// TimelineResponse is the full /policy/timeline payload.
type TimelineResponse struct {
	Buckets     []TimelineBucket `json:"buckets"`
	Filters     TimelineFilters  `json:"filters"`
	TotalAlerts int              `json:"total_alerts"`
}

// ThreatLevel is the briefing's headline severity assessment.
type ThreatLevel string

const (
	ThreatLevelLow      ThreatLevel = "LOW"
	ThreatLevelElevated ThreatLevel = "ELEVATED"
	ThreatLevelHigh     ThreatLevel = "HIGH"
	ThreatLevelCritical ThreatLevel = "CRITICAL"
)

// BriefingParagraph is one section of the executive briefing.
type BriefingParagraph struct {
	Type  string   `json:"type"`
	Title string   `json:"title,omitempty"`
	Text  string   `json:"text,omitempty"`
	Items []string `json:"items,omitempty"`
}

// BriefingStats is the numeric appendix attached to a non-empty briefing.
type BriefingStats struct {
	TotalEvents    int `json:"total_events"`
	HighSeverity   int `json:"high_severity"`
	ShadowAI       int `json:"shadow_ai"`
	UniqueSources  int `json:"unique_sources"`
	UniqueTargets  int `json:"unique_targets"`
}

// BriefingPayload is the full /policy/briefing payload.
type BriefingPayload struct {
	Paragraphs  []BriefingParagraph `json:"paragraphs"`
	GeneratedAt time.Time           `json:"generated_at"`
	Period      string              `json:"period"`
	ThreatLevel ThreatLevel         `json:"threat_level"`
	Stats       *BriefingStats      `json:"stats,omitempty"`
}

// CountEntry is a (key, count) pair used by Report's top-N lists.
type CountEntry struct {
	IP    string `json:"ip"`
	Count int    `json:"alert_count"`
}

// ProtocolCount is one row of the traffic-stats protocol breakdown.
type ProtocolCount struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// NodeTypeCounts is the traffic-stats node-type breakdown.
type NodeTypeCounts struct {
	Internal int `json:"internal"`
	External int `json:"external"`
	ShadowAI int `json:"shadow_ai"`
}

// SeverityDistribution is the traffic-stats alert severity breakdown.
type SeverityDistribution struct {
	High   int `json:"HIGH"`
	Medium int `json:"MEDIUM"`
	Low    int `json:"LOW"`
}

// TrafficDestination is one row of the traffic-stats top-destinations
// list, ranked by cumulative byte count rather than alert count.
type TrafficDestination struct {
	Destination string `json:"destination"`
	Bytes       int64  `json:"bytes"`
}

// TrafficTotals is the traffic-stats headline counters.
type TrafficTotals struct {
	TotalNodes       int `json:"total_nodes"`
	TotalConnections int `json:"total_connections"`
	TotalAlerts      int `json:"total_alerts"`
}

// TrafficStats is the full /discovery/traffic-stats payload.
type TrafficStats struct {
	Totals               TrafficTotals         `json:"totals"`
	NodeTypes            NodeTypeCounts        `json:"node_types"`
	ProtocolDistribution []ProtocolCount       `json:"protocol_distribution"`
	SeverityDistribution SeverityDistribution  `json:"severity_distribution"`
	TopDestinations      []TrafficDestination  `json:"top_destinations"`
}

// ReportPayload is the full /policy/report payload, a static summary snapshot
// suitable for downstream export (PDF/CSV generation is out of scope,
// per spec.md §1's non-goals; this is the JSON it would render from).
type ReportPayload struct {
	GeneratedAt       time.Time      `json:"generated_at"`
	TotalAlerts       int            `json:"total_alerts"`
	ShadowAIAlerts    int            `json:"shadow_ai_alerts"`
	UniqueSources     int            `json:"unique_sources"`
	UniqueTargets     int            `json:"unique_targets"`
	SeverityBreakdown map[string]int `json:"severity_breakdown"`
	TopSources        []CountEntry   `json:"top_sources"`
	TopTargets        []CountEntry   `json:"top_targets"`
	Recommendations   []string       `json:"recommendations"`
}
