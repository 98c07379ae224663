package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgerhart/shadowhunter/internal/model"
)

func TestRiskScoresFormulaAndClamp(t *testing.T) {
	alerts := []model.Alert{
		{Source: "10.0.0.1", Severity: model.SeverityHigh},
		{Source: "10.0.0.1", Severity: model.SeverityHigh},
		{Source: "10.0.0.1", Severity: model.SeverityMedium},
		{Source: "10.0.0.1", Severity: model.SeverityLow},
	}
	scores := RiskScores(alerts, map[string]int{"10.0.0.1": 20})
	require.Len(t, scores, 1)
	// 5*2 + 2*1 + 1*1 + 0.05*20 = 10+2+1+1 = 14
	assert.Equal(t, 14.0, scores[0].RiskPct)
	assert.Equal(t, 4, scores[0].TotalAlerts)
}

func TestRiskScoresClampsAtHundred(t *testing.T) {
	var alerts []model.Alert
	for i := 0; i < 25; i++ {
		alerts = append(alerts, model.Alert{Source: "10.0.0.2", Severity: model.SeverityHigh})
	}
	scores := RiskScores(alerts, nil)
	require.Len(t, scores, 1)
	assert.Equal(t, 100.0, scores[0].RiskPct)
}

func TestRiskScoresSortedDescending(t *testing.T) {
	alerts := []model.Alert{
		{Source: "10.0.0.1", Severity: model.SeverityLow},
		{Source: "10.0.0.2", Severity: model.SeverityHigh},
	}
	scores := RiskScores(alerts, nil)
	require.Len(t, scores, 2)
	assert.Equal(t, "10.0.0.2", scores[0].IP)
}
