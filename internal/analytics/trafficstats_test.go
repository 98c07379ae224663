package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sgerhart/shadowhunter/internal/model"
)

func TestTrafficStatsViewAggregatesBreakdowns(t *testing.T) {
	nodes := []model.Node{
		{ID: "10.0.0.5", Type: model.NodeInternal},
		{ID: "chatgpt.com", Type: model.NodeShadow},
		{ID: "example.com", Type: model.NodeExternal},
	}
	edges := []model.Edge{
		{Source: "10.0.0.5", Target: "chatgpt.com", Protocol: model.ProtocolHTTPS, ByteCount: 5000},
		{Source: "10.0.0.5", Target: "example.com", Protocol: model.ProtocolHTTPS, ByteCount: 1000},
		{Source: "10.0.0.6", Target: "chatgpt.com", Protocol: model.ProtocolTCP, ByteCount: 200},
	}
	alerts := []model.Alert{
		{Severity: model.SeverityHigh},
		{Severity: model.SeverityHigh},
		{Severity: model.SeverityLow},
	}

	got := TrafficStatsView(nodes, edges, alerts)

	assert.Equal(t, TrafficTotals{TotalNodes: 3, TotalConnections: 3, TotalAlerts: 3}, got.Totals)
	assert.Equal(t, NodeTypeCounts{Internal: 1, External: 1, ShadowAI: 1}, got.NodeTypes)
	assert.Equal(t, SeverityDistribution{High: 2, Medium: 0, Low: 1}, got.SeverityDistribution)
	require := assert.New(t)
	require.Len(got.TopDestinations, 2)
	require.Equal("chatgpt.com", got.TopDestinations[0].Destination)
	require.Equal(int64(5200), got.TopDestinations[0].Bytes)
	require.Equal("example.com", got.TopDestinations[1].Destination)
}
