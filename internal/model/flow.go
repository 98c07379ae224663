// Package model defines the canonical data types shared across the
// Shadow Hunter pipeline: flow events, graph entities, alerts, policy
// rules and blocklist entries.
package model

import "time"

// Protocol is the transport/application protocol observed for a flow.
type Protocol string

const (
	ProtocolTCP   Protocol = "TCP"
	ProtocolUDP   Protocol = "UDP"
	ProtocolICMP  Protocol = "ICMP"
	ProtocolHTTP  Protocol = "HTTP"
	ProtocolHTTPS Protocol = "HTTPS"
	ProtocolDNS   Protocol = "DNS"
	ProtocolOther Protocol = "OTHER"
)

// IsValid reports whether p is one of the recognized protocol values.
func (p Protocol) IsValid() bool {
	switch p {
	case ProtocolTCP, ProtocolUDP, ProtocolICMP, ProtocolHTTP, ProtocolHTTPS, ProtocolDNS, ProtocolOther:
		return true
	}
	return false
}

// Severity ranks an alert or rule hit.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// IsValid reports whether s is one of the recognized severities.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Rank returns a numeric ordering for max() comparisons; higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// MaxSeverity returns the more severe of a and b.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// FlowEvent is a normalized, immutable record of one directional network
// flow, produced by a flow source adapter (C4) and consumed by the
// analyzer orchestrator (C7).
type FlowEvent struct {
	Timestamp      time.Time         `json:"timestamp"`
	SourceIP       string            `json:"source_ip"`
	DestinationIP  string            `json:"destination_ip"`
	SourcePort     int               `json:"source_port"`
	DestinationPort int              `json:"destination_port"`
	Protocol       Protocol          `json:"protocol"`
	BytesSent      int64             `json:"bytes_sent"`
	BytesReceived  int64             `json:"bytes_received"`
	JA3Hash        string            `json:"ja3_hash,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Meta returns the value for key, or "" if the event has no metadata map
// or the key is absent. Recognized keys: host, sni, dns_query, user_agent, persona.
func (e FlowEvent) Meta(key string) string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[key]
}

// Host returns the best available display hostname for the destination:
// metadata "host", else "sni", else "dns_query", else "".
func (e FlowEvent) Host() string {
	if h := e.Meta("host"); h != "" {
		return h
	}
	if s := e.Meta("sni"); s != "" {
		return s
	}
	if q := e.Meta("dns_query"); q != "" {
		return q
	}
	return ""
}

// TotalBytes is BytesSent + BytesReceived.
func (e FlowEvent) TotalBytes() int64 {
	return e.BytesSent + e.BytesReceived
}
