// Package rules implements the stateless rule-based detector (spec.md
// §4.4): a pure detect(event, context) function backed by a fixed,
// deterministic evaluation order over a pluggable registry of
// Detectors.
//
// Grounded on correlator/internal/rules/matcher.go's selector-matching
// style and original_source's plugin_base.py + the individual
// core_heuristics/ja3_plugin/cidr_intel plugin modules, which this
// package folds into a single ordered pipeline rather than dynamic
// plugin discovery — spec.md's design notes call for "a registry of
// Detector capability implementers... no runtime code loading required".
package rules

import (
	"net"

	"github.com/sgerhart/shadowhunter/internal/intel"
	"github.com/sgerhart/shadowhunter/internal/model"
)

// RuleHit is one detector's finding for a single event.
type RuleHit struct {
	Severity    model.Severity
	Category    string
	MatchedRule string
	Description string
	// Block is set when the hit's origin (a policy rule with
	// action=block) requests C8 active-response action.
	Block bool
}

// SourceNode carries the minimal per-source context a detector needs
// about the event's origin node — its department, for policy matching.
type SourceNode struct {
	Department string
}

// DestLabel is the best available display label for the destination
// side of an event: node label if graph-known, else host/sni.
type DestLabel string

// Context is the read-only snapshot a Detector evaluates against:
// loaded threat-intel tables, enabled policy rules, and per-call
// context about the event's endpoints. It never mutates and carries no
// side channel back to the caller — every finding is a returned
// RuleHit.
type Context struct {
	AIDomains   *intel.AIDomainTable
	CIDRs       *intel.CIDRTable
	JA3         *intel.JA3Matcher
	PolicyRules []model.PolicyRule
	Source      SourceNode
	DestLabel   DestLabel
	// InterestingInternalIPs is the "interesting internal services" set
	// from spec.md §4.4 rule 1 — internal endpoints exempt from the
	// whitelist short-circuit even when both sides are RFC1918.
	InterestingInternalIPs map[string]bool
}

// Detector is one pluggable rule implementer (spec.md design notes:
// "registering an implementer" rather than dynamic loading).
type Detector interface {
	Name() string
	Detect(event model.FlowEvent, ctx Context) []RuleHit
}

// Registry runs a fixed ordered set of Detectors and accumulates hits.
// The whitelist short-circuit is evaluated first and, unlike the other
// detectors, can suppress the rest of the pipeline entirely.
type Registry struct {
	detectors []Detector
}

// DefaultRegistry builds the seven-rule pipeline in spec.md §4.4's
// mandated order.
func DefaultRegistry() *Registry {
	return &Registry{detectors: []Detector{
		aiDomainDetector{},
		cidrDetector{},
		ja3Detector{},
		abnormalPortDetector{},
		dnsTunnelingDetector{},
		policyRuleDetector{},
	}}
}

// New builds a registry from an explicit detector list, for tests that
// want to exercise a subset in isolation.
func New(detectors ...Detector) *Registry {
	return &Registry{detectors: detectors}
}

// Detect runs the whitelist short-circuit, then every registered
// detector in order, accumulating hits. It never panics: a panicking
// detector is recovered by the caller (the analyzer orchestrator), not
// here, since recovery is a per-event concurrency concern (spec.md §7)
// rather than a pure-function concern.
func (r *Registry) Detect(event model.FlowEvent, ctx Context) []RuleHit {
	if whitelisted(event, ctx) {
		return nil
	}
	var hits []RuleHit
	for _, d := range r.detectors {
		hits = append(hits, d.Detect(event, ctx)...)
	}
	return hits
}

var broadcastIP = net.ParseIP("255.255.255.255")

func isMulticast(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip4 := ip.To4(); ip4 != nil {
		return ip4[0] >= 224 && ip4[0] <= 239
	}
	return ip.IsMulticast()
}

func isPrivateOrLoopback(ip net.IP) bool {
	if ip == nil {
		return false
	}
	return ip.IsPrivate() || ip.IsLoopback()
}

// whitelisted implements spec.md §4.4 rule 1.
func whitelisted(event model.FlowEvent, ctx Context) bool {
	dst := net.ParseIP(event.DestinationIP)
	if dst == nil {
		return false
	}
	if isMulticast(dst) || dst.Equal(broadcastIP) {
		return true
	}
	src := net.ParseIP(event.SourceIP)
	if isPrivateOrLoopback(src) && isPrivateOrLoopback(dst) {
		if ctx.InterestingInternalIPs[event.SourceIP] || ctx.InterestingInternalIPs[event.DestinationIP] {
			return false
		}
		return true
	}
	return false
}

