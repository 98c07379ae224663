package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sgerhart/shadowhunter/internal/model"
)

func TestKillChainStageKeywordMapping(t *testing.T) {
	cases := []struct {
		description string
		want        model.KillChainStage
	}{
		{"port scan detected against internal host", model.StageReconnaissance},
		{"first seen connection to unknown service", model.StageInitialAccess},
		{"traffic matches chatgpt query pattern", model.StageExecution},
		{"large transfer flagged as possible data leak", model.StageExfiltration},
		{"policy violation: block action triggered", model.StageImpact},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, KillChainStageFor(c.description, model.SeverityLow), c.description)
	}
}

func TestKillChainStagePriorityOrderPrefersImpact(t *testing.T) {
	desc := "dns lookup preceded a policy violation and block"
	assert.Equal(t, model.StageImpact, KillChainStageFor(desc, model.SeverityLow))
}

func TestKillChainStageFallsBackToSeverity(t *testing.T) {
	assert.Equal(t, model.StageImpact, KillChainStageFor("no keyword here", model.SeverityHigh))
	assert.Equal(t, model.StageExecution, KillChainStageFor("no keyword here", model.SeverityMedium))
	assert.Equal(t, model.StageReconnaissance, KillChainStageFor("no keyword here", model.SeverityLow))
}
