package analyzer

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/sgerhart/shadowhunter/internal/broker"
	"github.com/sgerhart/shadowhunter/internal/defense"
	"github.com/sgerhart/shadowhunter/internal/mlengine"
	"github.com/sgerhart/shadowhunter/internal/model"
	"github.com/sgerhart/shadowhunter/internal/rules"
)

// processEvent runs the full analyzer pipeline for one flow event
// (spec.md §4.6 points 1-6).
func (o *Orchestrator) processEvent(ctx context.Context, event model.FlowEvent) {
	settings := o.cfg.Settings.Current()
	local := newLocalPrefixes(settings.LocalPrefixes)

	srcType := classifyEndpoint(event.SourceIP, "", local, o.cfg.AIDomains)
	destDisplay := destinationDisplay(event)
	destType := classifyEndpoint(event.DestinationIP, event.Host(), local, o.cfg.AIDomains)

	department := event.Meta("department")
	if department == "" {
		if existing, err := o.cfg.Store.GetNode(event.SourceIP); err == nil {
			department = existing.Department
		}
	}

	// Step 2: upsert graph (source, destination, edge).
	now := event.Timestamp
	if now.IsZero() {
		now = time.Now()
	}
	o.upsertNode(event.SourceIP, srcType, event.SourceIP, department, now)
	o.upsertNode(event.DestinationIP, destType, destDisplay, "", now)
	o.upsertEdge(event, now)
	if err := broker.PublishJSON(o.cfg.Broker, broker.TopicGraphChanges, struct{}{}); err != nil {
		o.logger.Debug("graph change notification publish failed", "error", err)
	}

	// Step 3: run C5 and C6 concurrently.
	interesting := make(map[string]bool, len(settings.InterestingInternal))
	for _, ip := range settings.InterestingInternal {
		interesting[ip] = true
	}
	ruleCtx := rules.Context{
		AIDomains:              o.cfg.AIDomains,
		CIDRs:                  o.cfg.CIDRs,
		JA3:                    o.cfg.JA3,
		PolicyRules:            o.currentPolicyRules(),
		Source:                 rules.SourceNode{Department: department},
		DestLabel:              rules.DestLabel(destDisplay),
		InterestingInternalIPs: interesting,
	}

	hits, verdict := o.runDetectionConcurrently(event, ruleCtx)

	// Step 4: emit alert.
	var emittedAlert *model.Alert
	var blockRequested bool
	if shouldAlert(hits, verdict) {
		alert, block := buildAlert(event, hits, verdict, newAlertID)
		blockRequested = block
		if o.cfg.Interrogator != nil && settings.ProbingEnabled && alert.Severity == model.SeverityHigh && destType == model.NodeExternal {
			o.enrichWithProbe(ctx, &alert, event.DestinationIP)
		}
		o.ring.Add(alert)
		if err := broker.PublishJSON(o.cfg.Broker, broker.TopicAlerts, alert); err != nil {
			o.logger.Warn("alert publish failed, not retried", "error", err)
		}
		if o.cfg.Metrics != nil {
			o.cfg.Metrics.AlertsTotal.WithLabelValues(string(alert.Severity)).Inc()
		}
		emittedAlert = &alert
	}

	// Step 5: active defense gating.
	if emittedAlert != nil {
		o.gateActiveDefense(*emittedAlert, destType, blockRequested, settings.CriticalRiskThreshold)
	}

	// Step 6: update node risk and lifecycle state for the source.
	sev := combinedSeverity(hits, verdict)
	hadAlert := emittedAlert != nil
	o.updateSourceNode(event.SourceIP, sev, hadAlert, now)
}

func (o *Orchestrator) currentPolicyRules() []model.PolicyRule {
	if o.cfg.Policies == nil {
		return nil
	}
	return o.cfg.Policies.Snapshot().Rules
}

func (o *Orchestrator) upsertNode(id string, nodeType model.NodeType, label, department string, seenAt time.Time) {
	_, err := o.upsertNodeWithRetry(id, func(existing *model.Node) model.Node {
		n := model.Node{ID: id, Type: nodeType, Label: label, FirstSeen: seenAt, LastSeen: seenAt, Department: department}
		if existing != nil {
			n = *existing
			n.LastSeen = seenAt
			n.Label = label
			if nodeType == model.NodeShadow || n.Type != model.NodeShadow {
				n.Type = nodeType // shadow relabeling is one-way (DESIGN.md Open Question #2)
			}
			if department != "" {
				n.Department = department
			}
		}
		return advanceNodeState(n, seenAt, false)
	})
	if err != nil {
		o.logger.Error("node upsert failed after retries", "id", id, "error", err)
		if o.cfg.Metrics != nil {
			o.cfg.Metrics.StoreFailuresTotal.Inc()
			o.cfg.Metrics.EventsDroppedAnalysisTotal.Inc()
		}
	}
}

func (o *Orchestrator) upsertEdge(event model.FlowEvent, seenAt time.Time) {
	_, err := o.upsertEdgeWithRetry(event.SourceIP, event.DestinationIP, func(existing *model.Edge) model.Edge {
		e := model.Edge{Protocol: event.Protocol, DstPort: event.DestinationPort, ByteCount: event.TotalBytes(), FlowCount: 1, LastSeen: seenAt}
		if existing != nil {
			e.ByteCount += existing.ByteCount
			e.FlowCount += existing.FlowCount
		}
		return e
	})
	if err != nil {
		o.logger.Error("edge upsert failed after retries", "source", event.SourceIP, "target", event.DestinationIP, "error", err)
		if o.cfg.Metrics != nil {
			o.cfg.Metrics.StoreFailuresTotal.Inc()
		}
	}
}

// upsertNodeWithRetry and upsertEdgeWithRetry implement spec.md §4.6's
// store-retry policy (see DESIGN.md Open Question resolution #6).
func (o *Orchestrator) upsertNodeWithRetry(id string, mutate func(*model.Node) model.Node) (model.Node, error) {
	var last error
	for attempt := 0; ; attempt++ {
		n, err := o.cfg.Store.UpsertNode(id, mutate)
		if err == nil {
			return n, nil
		}
		last = err
		if attempt >= len(storeRetryDelays) {
			return model.Node{}, last
		}
		time.Sleep(storeRetryDelays[attempt])
	}
}

func (o *Orchestrator) upsertEdgeWithRetry(src, dst string, mutate func(*model.Edge) model.Edge) (model.Edge, error) {
	var last error
	for attempt := 0; ; attempt++ {
		e, err := o.cfg.Store.UpsertEdge(src, dst, mutate)
		if err == nil {
			return e, nil
		}
		last = err
		if attempt >= len(storeRetryDelays) {
			return model.Edge{}, last
		}
		time.Sleep(storeRetryDelays[attempt])
	}
}

// runDetectionConcurrently launches the rule detector and the
// intelligence engine as separate goroutines (spec.md §4.6 point 3). A
// panic in either is recovered and treated as an absent finding
// (spec.md §7 ErrDetectorPanic), never crashing the worker.
func (o *Orchestrator) runDetectionConcurrently(event model.FlowEvent, ruleCtx rules.Context) ([]rules.RuleHit, mlengine.Verdict) {
	hadHighCh := make(chan bool, 1)
	var hits []rules.RuleHit
	var verdict mlengine.Verdict

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("rule detector panicked, recovered", "panic", r)
				hadHighCh <- false
			}
		}()
		if o.cfg.Detectors != nil {
			hits = o.cfg.Detectors.Detect(event, ruleCtx)
		}
		hadHigh := false
		for _, h := range hits {
			if h.Severity == model.SeverityHigh {
				hadHigh = true
				break
			}
		}
		hadHighCh <- hadHigh
	}()

	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("intelligence engine panicked, recovered", "panic", r)
			}
		}()
		hadHigh := <-hadHighCh
		if o.cfg.Engine != nil {
			verdict = o.cfg.Engine.Analyze(event, flowDurationMs(event), hadHigh)
		}
	}()

	wg.Wait()
	return hits, verdict
}

// flowDurationMs estimates the flow's duration in milliseconds from
// its "duration_ms" metadata key, when a source adapter supplies one.
func flowDurationMs(event model.FlowEvent) float64 {
	raw := event.Meta("duration_ms")
	if raw == "" {
		return 0
	}
	ms, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return math.Max(ms, 0)
}

func (o *Orchestrator) enrichWithProbe(ctx context.Context, alert *model.Alert, target string) {
	result := o.cfg.Interrogator.Interrogate(ctx, target)
	if o.cfg.Metrics != nil {
		if result.Skipped {
			o.cfg.Metrics.ProbesSkippedTotal.Inc()
		} else {
			o.cfg.Metrics.ProbesAttemptedTotal.Inc()
			if result.Confirmed {
				o.cfg.Metrics.ProbesConfirmedTotal.Inc()
			}
		}
	}
	probe := &model.ProbeResult{Attempted: !result.Skipped, Confirmed: result.Confirmed, Indicators: result.Indicators, SkippedReason: result.SkipReason}
	if alert.Enrichment == nil {
		alert.Enrichment = &model.Enrichment{}
	}
	alert.Enrichment.Probe = probe
	if result.Skipped {
		alert.Description += " [unconfirmed]"
		return
	}
	if result.Confirmed {
		alert.Description += " [Active probe: confirmed AI service]"
		o.upsertNode(target, model.NodeShadow, target, "", time.Now())
	} else {
		alert.Description += " [unconfirmed]"
	}
}

// gateActiveDefense implements spec.md §4.6 point 5 / §4.7's auto-block
// trigger.
func (o *Orchestrator) gateActiveDefense(alert model.Alert, destType model.NodeType, blockRequested bool, criticalThreshold float64) {
	if o.cfg.Responses == nil {
		return
	}
	auto := defense.ShouldAutoBlock(alert.Severity, math.Max(alert.MLRiskScore, severityAsRisk(alert.Severity, criticalThreshold)), blockRequested)
	if !auto {
		return
	}
	target := alert.DestinationIP
	if destType == model.NodeInternal {
		target = alert.Source
	}
	if _, ok := o.cfg.Responses.Block(target, "auto-block: "+alert.Description, alert.ID, 0); ok {
		if o.cfg.Metrics != nil {
			o.cfg.Metrics.BlocksInstalledTotal.Inc()
		}
		// Graph quarantine feedback happens out-of-band via
		// handleResponseEvent, subscribed on TopicResponses, rather
		// than inline here (spec.md §9's cyclic-reference decoupling).
	}
}

// handleResponseEvent applies the graph-side effect of a block that
// the response manager published on TopicResponses. It does not force
// a NodeType: the blocked IP is whichever side of the flow the alert
// named (destination for an external-shadow block, source for an
// internal policy-rule block per DESIGN.md Open Question #3), and
// markQuarantined preserves that node's existing classification,
// only defaulting to NodeExternal when the node hasn't been seen yet.
func (o *Orchestrator) handleResponseEvent(entry model.BlocklistEntry) {
	o.markQuarantined(entry.IP)
}

func (o *Orchestrator) markQuarantined(id string) {
	_, err := o.cfg.Store.UpsertNode(id, func(existing *model.Node) model.Node {
		if existing == nil {
			return setQuarantined(model.Node{ID: id, Type: model.NodeExternal})
		}
		return setQuarantined(*existing)
	})
	if err != nil {
		o.logger.Error("quarantine state upsert failed", "id", id, "error", err)
	}
}

// severityAsRisk lets a policy-driven block (no ML risk score attached)
// still clear the auto-block risk gate when severity is HIGH.
func severityAsRisk(sev model.Severity, criticalThreshold float64) float64 {
	if sev == model.SeverityHigh {
		return criticalThreshold
	}
	return 0
}

// updateSourceNode implements spec.md §4.6 point 6.
func (o *Orchestrator) updateSourceNode(id string, sev model.Severity, hadAlert bool, now time.Time) {
	_, err := o.cfg.Store.UpsertNode(id, func(existing *model.Node) model.Node {
		var n model.Node
		if existing != nil {
			n = *existing
		} else {
			n = model.Node{ID: id, Type: model.NodeInternal, FirstSeen: now}
		}
		n.RiskScore = updateNodeRisk(n.RiskScore, sev)
		if hadAlert {
			n.AlertCount++
		}
		n.LastSeen = now
		return advanceNodeState(n, now, hadAlert)
	})
	if err != nil {
		o.logger.Error("risk update failed", "id", id, "error", err)
		if o.cfg.Metrics != nil {
			o.cfg.Metrics.StoreFailuresTotal.Inc()
		}
	}
}
