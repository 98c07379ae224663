package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgerhart/shadowhunter/internal/mlengine"
	"github.com/sgerhart/shadowhunter/internal/model"
	"github.com/sgerhart/shadowhunter/internal/rules"
)

func TestShouldAlertOnAnyRuleHit(t *testing.T) {
	hits := []rules.RuleHit{{Severity: model.SeverityLow}}
	assert.True(t, shouldAlert(hits, mlengine.Verdict{Classification: model.ClassificationNormal}))
}

func TestShouldAlertOnHighConfidenceMLClassification(t *testing.T) {
	v := mlengine.Verdict{Classification: model.ClassificationShadowAI, Confidence: 0.71}
	assert.True(t, shouldAlert(nil, v))
}

func TestShouldNotAlertOnLowConfidenceML(t *testing.T) {
	v := mlengine.Verdict{Classification: model.ClassificationSuspicious, Confidence: 0.5}
	assert.False(t, shouldAlert(nil, v))
}

func TestCombinedSeverityTakesMax(t *testing.T) {
	hits := []rules.RuleHit{{Severity: model.SeverityMedium}}
	v := mlengine.Verdict{Risk: 80} // buckets to HIGH
	assert.Equal(t, model.SeverityHigh, combinedSeverity(hits, v))
}

func TestBuildAlertMergesDescriptionsAndFlags(t *testing.T) {
	event := model.FlowEvent{
		Timestamp: time.Now(), SourceIP: "192.168.1.10", DestinationIP: "203.0.113.9",
		SourcePort: 51000, DestinationPort: 443, Protocol: model.ProtocolHTTPS,
		BytesSent: 1000, BytesReceived: 2000,
		Metadata: map[string]string{"host": "chatgpt.com"},
	}
	hits := []rules.RuleHit{
		{Severity: model.SeverityHigh, Category: "LLM", MatchedRule: "ai_domain:chatgpt.com", Description: "destination matches shadow ai domain", Block: true},
	}
	verdict := mlengine.Verdict{Classification: model.ClassificationShadowAI, Confidence: 0.9, Risk: 88}

	alert, blocked := buildAlert(event, hits, verdict, func() string { return "fixed-id" })

	require.True(t, blocked)
	assert.Equal(t, "fixed-id", alert.ID)
	assert.Equal(t, model.SeverityHigh, alert.Severity)
	assert.Equal(t, "chatgpt.com", alert.Target)
	assert.Equal(t, "ai_domain:chatgpt.com", alert.MatchedRule)
	assert.Contains(t, alert.Description, "shadow ai domain")
	assert.Equal(t, model.ClassificationShadowAI, alert.MLClassification)
	assert.Equal(t, model.StageInitialAccess, alert.KillChainStage)
}

func TestBuildAlertMLOnlyGetsSyntheticDescription(t *testing.T) {
	event := model.FlowEvent{SourceIP: "192.168.1.10", DestinationIP: "203.0.113.9"}
	verdict := mlengine.Verdict{Classification: model.ClassificationShadowAI, Confidence: 0.95, Risk: 90}
	alert, blocked := buildAlert(event, nil, verdict, newAlertID)
	assert.False(t, blocked)
	assert.NotEmpty(t, alert.Description)
	assert.NotEmpty(t, alert.ID)
}
