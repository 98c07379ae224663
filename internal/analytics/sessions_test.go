package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgerhart/shadowhunter/internal/model"
)

func alertAt(source string, offset time.Duration, base time.Time) model.Alert {
	return model.Alert{ID: source + offset.String(), Source: source, Target: "198.51.100.9", Severity: model.SeverityMedium, Timestamp: base.Add(offset)}
}

// TestSessionsMatchesReconstructionScenario is spec.md §8's S6: 6 alerts
// at t, t+30s, t+60s, t+7m, t+7m30s, t+20m split into two sessions of 3
// and 2 alerts; the lone alert at t+20m is excluded (minimum 2).
func TestSessionsMatchesReconstructionScenario(t *testing.T) {
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	alerts := []model.Alert{
		alertAt("10.0.0.5", 0, base),
		alertAt("10.0.0.5", 30*time.Second, base),
		alertAt("10.0.0.5", 60*time.Second, base),
		alertAt("10.0.0.5", 7*time.Minute, base),
		alertAt("10.0.0.5", 7*time.Minute+30*time.Second, base),
		alertAt("10.0.0.5", 20*time.Minute, base),
	}

	sessions := Sessions(alerts)
	require.Len(t, sessions, 2)

	byCount := map[int]bool{}
	for _, s := range sessions {
		byCount[s.AlertCount] = true
		assert.Equal(t, "10.0.0.5", s.Source)
	}
	assert.True(t, byCount[3])
	assert.True(t, byCount[2])
}

func TestSessionsExcludeSingleAlertRuns(t *testing.T) {
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	alerts := []model.Alert{alertAt("10.0.0.9", 0, base)}
	assert.Empty(t, Sessions(alerts))
}
