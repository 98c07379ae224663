package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sgerhart/shadowhunter/internal/model"
)

func TestUpdateNodeRiskClampsToHundred(t *testing.T) {
	risk := 95.0
	for i := 0; i < 20; i++ {
		risk = updateNodeRisk(risk, model.SeverityHigh)
	}
	assert.Equal(t, 100.0, risk)
}

func TestUpdateNodeRiskNeverNegative(t *testing.T) {
	assert.GreaterOrEqual(t, updateNodeRisk(0, model.SeverityLow), 0.0)
}

func TestUpdateNodeRiskSustainedHighConverges(t *testing.T) {
	risk := 0.0
	for i := 0; i < 12; i++ {
		risk = updateNodeRisk(risk, model.SeverityHigh)
	}
	assert.Greater(t, risk, 90.0)
}

func TestBucketMLRisk(t *testing.T) {
	assert.Equal(t, model.SeverityLow, bucketMLRisk(0))
	assert.Equal(t, model.SeverityLow, bucketMLRisk(29.9))
	assert.Equal(t, model.SeverityMedium, bucketMLRisk(30))
	assert.Equal(t, model.SeverityMedium, bucketMLRisk(69.9))
	assert.Equal(t, model.SeverityHigh, bucketMLRisk(70))
	assert.Equal(t, model.SeverityHigh, bucketMLRisk(100))
}
