package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgerhart/shadowhunter/internal/model"
)

func TestReportSummarizesSeverityAndTopOffenders(t *testing.T) {
	now := time.Now()
	alerts := []model.Alert{
		{Source: "10.0.0.5", Target: "chatgpt.com", Severity: model.SeverityHigh, Description: "shadow ai usage"},
		{Source: "10.0.0.5", Target: "chatgpt.com", Severity: model.SeverityHigh, Description: "shadow ai usage"},
		{Source: "10.0.0.6", Target: "claude.ai", Severity: model.SeverityLow, Description: "normal traffic"},
	}
	got := Report(alerts, now)
	assert.Equal(t, 3, got.TotalAlerts)
	assert.Equal(t, 2, got.ShadowAIAlerts)
	assert.Equal(t, 2, got.SeverityBreakdown["HIGH"])
	require.NotEmpty(t, got.TopSources)
	assert.Equal(t, "10.0.0.5", got.TopSources[0].IP)
	assert.Equal(t, 2, got.TopSources[0].Count)
	assert.NotEmpty(t, got.Recommendations)
}
