package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sgerhart/shadowhunter/internal/model"
)

func TestAdvanceNodeStateFirstFlowSetsObserved(t *testing.T) {
	n := advanceNodeState(model.Node{}, time.Now(), false)
	assert.Equal(t, model.NodeStateObserved, n.State)
}

func TestAdvanceNodeStateAlertSetsFlagged(t *testing.T) {
	now := time.Now()
	n := advanceNodeState(model.Node{State: model.NodeStateObserved}, now, true)
	assert.Equal(t, model.NodeStateFlagged, n.State)
	assert.Equal(t, now, n.FlaggedAt)
}

func TestAdvanceNodeStateDecaysAfterTTL(t *testing.T) {
	flaggedAt := time.Now().Add(-flaggedStateTTL - time.Minute)
	n := model.Node{State: model.NodeStateFlagged, FlaggedAt: flaggedAt}
	n = advanceNodeState(n, time.Now(), false)
	assert.Equal(t, model.NodeStateObserved, n.State)
}

func TestAdvanceNodeStateStaysFlaggedWithinTTL(t *testing.T) {
	flaggedAt := time.Now().Add(-time.Minute)
	n := model.Node{State: model.NodeStateFlagged, FlaggedAt: flaggedAt}
	n = advanceNodeState(n, time.Now(), false)
	assert.Equal(t, model.NodeStateFlagged, n.State)
}

func TestQuarantineLifecycle(t *testing.T) {
	n := model.Node{State: model.NodeStateFlagged}
	n = setQuarantined(n)
	assert.Equal(t, model.NodeStateQuarantined, n.State)

	// Quarantine is sticky against ordinary event-driven transitions.
	n = advanceNodeState(n, time.Now(), false)
	assert.Equal(t, model.NodeStateQuarantined, n.State)

	n = clearQuarantined(n)
	assert.Equal(t, model.NodeStateFlagged, n.State)
}
