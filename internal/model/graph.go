package model

import "time"

// NodeType classifies a graph vertex.
type NodeType string

const (
	NodeInternal NodeType = "internal"
	NodeExternal NodeType = "external"
	NodeShadow   NodeType = "shadow"
)

// NodeState is a source node's position in the analyzer's lifecycle
// state machine (spec.md §4.6).
type NodeState string

const (
	NodeStateObserved   NodeState = "OBSERVED"
	NodeStateFlagged    NodeState = "FLAGGED"
	NodeStateQuarantined NodeState = "QUARANTINED"
)

// Node is a graph vertex — an internal host or an external service,
// identified by a case-folded IP literal or domain name.
type Node struct {
	ID         string    `json:"id"`
	Type       NodeType  `json:"type"`
	Label      string    `json:"label"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
	RiskScore  float64   `json:"risk_score"`
	AlertCount int       `json:"alert_count"`
	Department string    `json:"department,omitempty"`
	State      NodeState `json:"state,omitempty"`
	FlaggedAt  time.Time `json:"flagged_at,omitempty"`
}

// Edge is a directed, aggregated relationship between two nodes.
type Edge struct {
	Source     string    `json:"source"`
	Target     string    `json:"target"`
	Protocol   Protocol  `json:"protocol"`
	DstPort    int       `json:"dst_port"`
	ByteCount  int64     `json:"byte_count"`
	FlowCount  int64     `json:"flow_count"`
	LastSeen   time.Time `json:"last_seen"`
}

// EdgeKey identifies an edge by its ordered endpoint pair.
type EdgeKey struct {
	Source string
	Target string
}
