package rules

import (
	"fmt"
	"net"
	"strings"

	"github.com/sgerhart/shadowhunter/internal/model"
)

func destHosts(event model.FlowEvent) []string {
	var out []string
	if h := event.Meta("host"); h != "" {
		out = append(out, h)
	}
	if s := event.Meta("sni"); s != "" {
		out = append(out, s)
	}
	return out
}

// aiDomainDetector implements spec.md §4.4 rule 2.
type aiDomainDetector struct{}

func (aiDomainDetector) Name() string { return "ai_domain" }

func (aiDomainDetector) Detect(event model.FlowEvent, ctx Context) []RuleHit {
	if ctx.AIDomains == nil {
		return nil
	}
	for _, host := range destHosts(event) {
		category := ctx.AIDomains.Category(host)
		if category == "" {
			continue
		}
		matched := ctx.AIDomains.MatchedBase(host)
		return []RuleHit{{
			Severity:    model.SeverityHigh,
			Category:    category,
			MatchedRule: "ai_domain:" + matched,
			Description: fmt.Sprintf("destination %s matches known AI service domain %s (%s)", host, matched, category),
		}}
	}
	return nil
}

// cidrDetector implements spec.md §4.4 rule 3.
type cidrDetector struct{}

func (cidrDetector) Name() string { return "malicious_cidr" }

func (cidrDetector) Detect(event model.FlowEvent, ctx Context) []RuleHit {
	if ctx.CIDRs == nil {
		return nil
	}
	entry := ctx.CIDRs.Lookup(event.DestinationIP)
	if entry == nil {
		return nil
	}
	return []RuleHit{{
		Severity:    entry.RiskLevel,
		Category:    entry.Category,
		MatchedRule: "cidr:" + entry.CIDR,
		Description: fmt.Sprintf("destination %s falls within %s range (%s)", event.DestinationIP, entry.Provider, entry.Service),
	}}
}

// ja3Detector implements spec.md §4.4 rule 4.
type ja3Detector struct{}

func (ja3Detector) Name() string { return "ja3_intel" }

func (ja3Detector) Detect(event model.FlowEvent, ctx Context) []RuleHit {
	if ctx.JA3 == nil || event.JA3Hash == "" {
		return nil
	}
	var hits []RuleHit
	if entry := ctx.JA3.Lookup(event.JA3Hash); entry != nil && ctx.JA3.IsKnownBad(event.JA3Hash) {
		hits = append(hits, RuleHit{
			Severity:    model.SeverityHigh,
			Category:    string(entry.Category),
			MatchedRule: "ja3:" + entry.Hash,
			Description: fmt.Sprintf("JA3 fingerprint matches known %s (%s)", entry.ClientName, entry.Description),
		})
	}
	if spoofed := ctx.JA3.DetectSpoofing(event.JA3Hash, event.Meta("user_agent")); spoofed != nil {
		hits = append(hits, RuleHit{
			Severity:    model.SeverityHigh,
			Category:    "identity_spoofing",
			MatchedRule: "identity_spoofing",
			Description: fmt.Sprintf("user-agent claims a browser but JA3 fingerprint identifies %s", spoofed.ClientName),
		})
	}
	return hits
}

// standardPorts is the set of destination ports exempt from
// abnormal-port flagging, spec.md §4.4 rule 5.
var standardPorts = map[int]bool{53: true, 80: true, 443: true, 8080: true, 22: true}

// abnormalPortDetector implements spec.md §4.4 rule 5.
type abnormalPortDetector struct{}

func (abnormalPortDetector) Name() string { return "abnormal_port" }

func (abnormalPortDetector) Detect(event model.FlowEvent, ctx Context) []RuleHit {
	src := net.ParseIP(event.SourceIP)
	dst := net.ParseIP(event.DestinationIP)
	if src == nil || dst == nil {
		return nil
	}
	if !isPrivateOrLoopback(src) || isPrivateOrLoopback(dst) {
		return nil
	}
	if event.Protocol != model.ProtocolTCP && event.Protocol != model.ProtocolUDP {
		return nil
	}
	if standardPorts[event.DestinationPort] {
		return nil
	}
	return []RuleHit{{
		Severity:    model.SeverityMedium,
		Category:    "abnormal_port",
		MatchedRule: "abnormal_outbound_port",
		Description: fmt.Sprintf("outbound connection to non-standard port %d", event.DestinationPort),
	}}
}

// dnsTunnelingThreshold is the combined byte-count boundary from
// spec.md §4.4 rule 6 (and its S3 scenario: 500 passes, 501 flags).
const dnsTunnelingThreshold = 500

// dnsTunnelingDetector implements spec.md §4.4 rule 6.
type dnsTunnelingDetector struct{}

func (dnsTunnelingDetector) Name() string { return "dns_tunneling" }

func (dnsTunnelingDetector) Detect(event model.FlowEvent, ctx Context) []RuleHit {
	if event.Protocol != model.ProtocolDNS {
		return nil
	}
	if event.TotalBytes() <= dnsTunnelingThreshold {
		return nil
	}
	return []RuleHit{{
		Severity:    model.SeverityMedium,
		Category:    "dns_tunneling",
		MatchedRule: "dns_tunneling",
		Description: fmt.Sprintf("DNS query/response volume %d bytes exceeds tunneling threshold", event.TotalBytes()),
	}}
}

// policyRuleDetector implements spec.md §4.4 rule 7.
type policyRuleDetector struct{}

func (policyRuleDetector) Name() string { return "policy_rule" }

func (policyRuleDetector) Detect(event model.FlowEvent, ctx Context) []RuleHit {
	haystack := strings.ToLower(strings.Join([]string{
		string(ctx.DestLabel), event.Meta("host"), event.Meta("sni"),
	}, "|"))

	var hits []RuleHit
	for _, rule := range ctx.PolicyRules {
		if !rule.Enabled {
			continue
		}
		if rule.Service == "" {
			continue
		}
		if !strings.Contains(haystack, strings.ToLower(rule.Service)) {
			continue
		}
		if rule.Department != "All" && rule.Department != ctx.Source.Department {
			continue
		}
		hits = append(hits, RuleHit{
			Severity:    rule.Severity,
			Category:    "policy_rule",
			MatchedRule: "policy:" + rule.ID,
			Description: rule.Description,
			Block:       rule.Action == model.ActionBlock,
		})
	}
	return hits
}
