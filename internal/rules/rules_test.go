package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgerhart/shadowhunter/internal/intel"
	"github.com/sgerhart/shadowhunter/internal/model"
)

func baseCtx() Context {
	return Context{
		AIDomains: intel.NewAIDomainTable(),
		CIDRs:     intel.NewCIDRTable(),
		JA3:       intel.NewJA3Matcher(),
	}
}

// S1 from spec.md §8.
func TestScenarioS1ShadowAIDomainMatch(t *testing.T) {
	event := model.FlowEvent{
		SourceIP: "10.0.0.5", DestinationIP: "104.18.32.7",
		DestinationPort: 443, Protocol: model.ProtocolHTTPS,
		BytesSent: 2048,
		Metadata:  map[string]string{"sni": "api.openai.com"},
	}
	reg := DefaultRegistry()
	hits := reg.Detect(event, baseCtx())
	require.NotEmpty(t, hits)
	assert.Equal(t, model.SeverityHigh, hits[0].Severity)
	assert.Equal(t, "LLM", hits[0].Category)
	assert.Equal(t, "ai_domain:openai.com", hits[0].MatchedRule)
}

func TestWhitelistShortCircuitDropsInternalToInternal(t *testing.T) {
	event := model.FlowEvent{SourceIP: "10.0.0.1", DestinationIP: "10.0.0.2", DestinationPort: 9999, Protocol: model.ProtocolTCP}
	reg := DefaultRegistry()
	hits := reg.Detect(event, baseCtx())
	assert.Empty(t, hits)
}

func TestWhitelistExemptsInterestingInternalServices(t *testing.T) {
	event := model.FlowEvent{SourceIP: "10.0.0.1", DestinationIP: "10.0.0.2", DestinationPort: 9999, Protocol: model.ProtocolTCP}

	plain := baseCtx()
	assert.True(t, whitelisted(event, plain))

	withException := baseCtx()
	withException.InterestingInternalIPs = map[string]bool{"10.0.0.2": true}
	assert.False(t, whitelisted(event, withException))
}

func TestWhitelistDropsMulticastAndBroadcast(t *testing.T) {
	reg := DefaultRegistry()
	for _, dst := range []string{"224.0.0.5", "255.255.255.255", "239.255.255.250"} {
		event := model.FlowEvent{SourceIP: "10.0.0.5", DestinationIP: dst}
		hits := reg.Detect(event, baseCtx())
		assert.Empty(t, hits, "expected no hits for %s", dst)
	}
}

func TestAbnormalOutboundPort(t *testing.T) {
	event := model.FlowEvent{SourceIP: "10.0.0.5", DestinationIP: "8.8.8.8", DestinationPort: 31337, Protocol: model.ProtocolTCP}
	hits := New(abnormalPortDetector{}).Detect(event, baseCtx())
	require.Len(t, hits, 1)
	assert.Equal(t, model.SeverityMedium, hits[0].Severity)
	assert.Equal(t, "abnormal_outbound_port", hits[0].MatchedRule)
}

func TestAbnormalOutboundPortIgnoresStandardPorts(t *testing.T) {
	for _, port := range []int{53, 80, 443, 8080, 22} {
		event := model.FlowEvent{SourceIP: "10.0.0.5", DestinationIP: "8.8.8.8", DestinationPort: port, Protocol: model.ProtocolTCP}
		hits := New(abnormalPortDetector{}).Detect(event, baseCtx())
		assert.Empty(t, hits, "port %d should not trigger", port)
	}
}

// S3 from spec.md §8: 500 bytes passes, 501 bytes flags.
func TestDNSTunnelingBoundary(t *testing.T) {
	at500 := model.FlowEvent{Protocol: model.ProtocolDNS, BytesSent: 300, BytesReceived: 200}
	hits := New(dnsTunnelingDetector{}).Detect(at500, baseCtx())
	assert.Empty(t, hits)

	at501 := model.FlowEvent{Protocol: model.ProtocolDNS, BytesSent: 300, BytesReceived: 201}
	hits = New(dnsTunnelingDetector{}).Detect(at501, baseCtx())
	require.Len(t, hits, 1)
	assert.Equal(t, model.SeverityMedium, hits[0].Severity)
}

func TestJA3SpoofingDetection(t *testing.T) {
	event := model.FlowEvent{
		SourceIP: "10.0.0.5", DestinationIP: "1.2.3.4",
		JA3Hash:  "e7d705a3286e19ea42f587b344ee6865",
		Metadata: map[string]string{"user_agent": "Mozilla/5.0 Chrome/120.0"},
	}
	hits := New(ja3Detector{}).Detect(event, baseCtx())
	require.Len(t, hits, 1)
	assert.Equal(t, "identity_spoofing", hits[0].Category)
	assert.Equal(t, "identity_spoofing", hits[0].MatchedRule)
}

func TestPolicyRuleMatchesServiceAndDepartment(t *testing.T) {
	ctx := baseCtx()
	ctx.DestLabel = "notion.so"
	ctx.Source.Department = "Engineering"
	ctx.PolicyRules = []model.PolicyRule{
		{ID: "r1", Enabled: true, Service: "notion", Department: "All", Severity: model.SeverityLow, Action: model.ActionMonitor},
		{ID: "r2", Enabled: true, Service: "notion", Department: "Sales", Severity: model.SeverityHigh, Action: model.ActionBlock},
		{ID: "r3", Enabled: false, Service: "notion", Department: "All", Severity: model.SeverityHigh, Action: model.ActionBlock},
	}
	hits := New(policyRuleDetector{}).Detect(model.FlowEvent{}, ctx)
	require.Len(t, hits, 1)
	assert.Equal(t, "policy:r1", hits[0].MatchedRule)
	assert.False(t, hits[0].Block)
}

func TestPolicyRuleBlockSetsFlag(t *testing.T) {
	ctx := baseCtx()
	ctx.DestLabel = "shadyai.example"
	ctx.Source.Department = "Sales"
	ctx.PolicyRules = []model.PolicyRule{
		{ID: "r1", Enabled: true, Service: "shadyai", Department: "All", Severity: model.SeverityHigh, Action: model.ActionBlock},
	}
	hits := New(policyRuleDetector{}).Detect(model.FlowEvent{}, ctx)
	require.Len(t, hits, 1)
	assert.True(t, hits[0].Block)
}

// TestPolicyRuleEmptyServiceMatchesNothing covers spec.md's explicit
// choice that a policy rule with service = "" matches no traffic
// rather than all traffic.
func TestPolicyRuleEmptyServiceMatchesNothing(t *testing.T) {
	ctx := baseCtx()
	ctx.DestLabel = "notion.so"
	ctx.Source.Department = "All"
	ctx.PolicyRules = []model.PolicyRule{
		{ID: "r1", Enabled: true, Service: "", Department: "All", Severity: model.SeverityHigh, Action: model.ActionBlock},
	}
	hits := New(policyRuleDetector{}).Detect(model.FlowEvent{}, ctx)
	assert.Empty(t, hits)
}
