package analyzer

import (
	"time"

	"github.com/sgerhart/shadowhunter/internal/model"
)

// flaggedStateTTL is how long a FLAGGED source node with no further
// alerts decays back to OBSERVED. Reused from mlengine's session
// inactivity window (see DESIGN.md Open Question resolution #5) rather
// than a second, unrelated constant.
const flaggedStateTTL = 30 * time.Minute

// advanceNodeState applies the source-node lifecycle transitions from
// spec.md §4.6: first upsert -> OBSERVED, an alert naming this node as
// source -> FLAGGED, and FLAGGED decaying back to OBSERVED after
// flaggedStateTTL of inactivity. QUARANTINED is driven separately by C8
// (see setQuarantined/clearQuarantined) since it originates from the
// response manager, not the per-event pipeline.
func advanceNodeState(n model.Node, now time.Time, hadAlert bool) model.Node {
	if n.State == model.NodeStateQuarantined {
		return n
	}
	if n.State == "" {
		n.State = model.NodeStateObserved
	}
	if hadAlert {
		n.State = model.NodeStateFlagged
		n.FlaggedAt = now
		return n
	}
	if n.State == model.NodeStateFlagged && now.Sub(n.FlaggedAt) >= flaggedStateTTL {
		n.State = model.NodeStateObserved
	}
	return n
}

// setQuarantined marks a node QUARANTINED when C8 installs a blocklist
// entry against it.
func setQuarantined(n model.Node) model.Node {
	n.State = model.NodeStateQuarantined
	return n
}

// clearQuarantined reverts a QUARANTINED node to FLAGGED. No caller in
// the pipeline invokes it, so a node stays QUARANTINED after its
// blocklist entry expires or is removed.
func clearQuarantined(n model.Node) model.Node {
	if n.State == model.NodeStateQuarantined {
		n.State = model.NodeStateFlagged
	}
	return n
}
