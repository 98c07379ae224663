package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgerhart/shadowhunter/internal/model"
)

func TestTimelineBucketsWithinWindowBySeverity(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	alerts := []model.Alert{
		{Timestamp: now.Add(-1 * time.Minute), Severity: model.SeverityHigh, Protocol: model.ProtocolTCP, Source: "10.0.0.1"},
		{Timestamp: now.Add(-1 * time.Minute), Severity: model.SeverityLow, Protocol: model.ProtocolTCP, Source: "10.0.0.2"},
		{Timestamp: now.Add(-90 * time.Minute), Severity: model.SeverityHigh}, // outside window
	}
	got := Timeline(alerts, now)
	require.Len(t, got.Buckets, 1)
	assert.Equal(t, 1, got.Buckets[0].High)
	assert.Equal(t, 1, got.Buckets[0].Low)
	assert.Equal(t, 2, got.Buckets[0].Total)
	assert.Equal(t, 2, got.TotalAlerts)
	assert.ElementsMatch(t, []string{"10.0.0.1", "10.0.0.2"}, got.Filters.Sources)
}

func TestTimelineExcludesFutureAlerts(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	alerts := []model.Alert{{Timestamp: now.Add(5 * time.Minute), Severity: model.SeverityLow}}
	got := Timeline(alerts, now)
	assert.Empty(t, got.Buckets)
}
