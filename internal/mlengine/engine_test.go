package mlengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgerhart/shadowhunter/internal/intel"
	"github.com/sgerhart/shadowhunter/internal/model"
)

func TestColdStartReturnsNeutralVerdict(t *testing.T) {
	e := New(Config{}, nil)
	defer e.Close()

	v := e.Analyze(model.FlowEvent{SourceIP: "10.0.0.5", DestinationIP: "1.2.3.4", Timestamp: time.Now()}, 0, false)
	assert.Equal(t, model.ClassificationNormal, v.Classification)
	assert.Zero(t, v.Confidence)
	assert.Zero(t, v.Anomaly)
	assert.Zero(t, v.Risk)
}

func TestHeuristicEngineClassifiesKnownAIDomainAsShadowAI(t *testing.T) {
	e := NewHeuristic(intel.NewAIDomainTable(), nil)
	defer e.Close()

	event := model.FlowEvent{
		SourceIP: "10.0.0.5", DestinationIP: "104.18.32.7",
		BytesSent: 6000, BytesReceived: 30000,
		Protocol:  model.ProtocolHTTPS,
		Timestamp: time.Now(),
		Metadata:  map[string]string{"sni": "api.openai.com"},
	}
	v := e.Analyze(event, 100, false)
	assert.Equal(t, model.ClassificationShadowAI, v.Classification)
	assert.Greater(t, v.Confidence, 0.0)
	assert.Greater(t, v.Risk, 0.0)
	assert.LessOrEqual(t, v.Risk, 100.0)
}

func TestFuseClampsToHundred(t *testing.T) {
	risk := Fuse(1.0, model.ClassificationShadowAI, 1.0, 1.0)
	assert.Equal(t, 100.0, risk)
}

func TestFuseIgnoresShadowConfidenceWhenNotClassifiedShadow(t *testing.T) {
	risk := Fuse(0.5, model.ClassificationSuspicious, 0.9, 0.0)
	assert.Equal(t, 20.0, risk) // only the 40*anomaly term contributes
}

func TestSessionTrackerScoreGrowsWithVolumeAndFanout(t *testing.T) {
	tracker := NewSessionTracker()
	defer tracker.Close()

	now := time.Now()
	require.Zero(t, tracker.Score("10.0.0.9", now))

	for i := 0; i < 5; i++ {
		tracker.Record("10.0.0.9", "target"+string(rune('a'+i)), 200_000, now, true)
	}
	score := tracker.Score("10.0.0.9", now)
	assert.Greater(t, score, 0.5)
	assert.LessOrEqual(t, score, 1.0)
}

func TestSessionScoreDecaysOverTime(t *testing.T) {
	tracker := NewSessionTracker()
	defer tracker.Close()

	now := time.Now()
	tracker.Record("10.0.0.9", "target", 500_000, now, false)
	immediate := tracker.Score("10.0.0.9", now)

	later := now.Add(20 * time.Minute)
	decayed := tracker.Score("10.0.0.9", later)
	assert.Less(t, decayed, immediate)
}

func TestFeatureExtractionOneHotsProtocol(t *testing.T) {
	event := model.FlowEvent{Protocol: model.ProtocolDNS, Metadata: map[string]string{"dns_query": "abc.example.com"}}
	f := Extract(event, 50)
	assert.Equal(t, 1.0, f.ProtocolOneHot[5]) // DNS is index 5 in protocolOrder
	assert.Greater(t, f.SNIEntropy, 0.0)
}
