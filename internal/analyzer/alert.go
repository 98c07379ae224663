package analyzer

import (
	"strings"

	"github.com/google/uuid"

	"github.com/sgerhart/shadowhunter/internal/mlengine"
	"github.com/sgerhart/shadowhunter/internal/model"
	"github.com/sgerhart/shadowhunter/internal/rules"
)

// mlConfidenceAlertThreshold is spec.md §4.6 point 4's ML-only alert
// trigger: classification != normal at confidence >= this value emits
// an alert even with zero rule hits.
const mlConfidenceAlertThreshold = 0.7

// shouldAlert reports whether the combined findings for one event
// warrant an alert (spec.md §4.6 point 4).
func shouldAlert(hits []rules.RuleHit, verdict mlengine.Verdict) bool {
	if len(hits) > 0 {
		return true
	}
	return verdict.Classification != model.ClassificationNormal && verdict.Confidence >= mlConfidenceAlertThreshold
}

// combinedSeverity is the maximum over every rule hit's severity and
// the ML risk bucket (spec.md §4.6 point 3).
func combinedSeverity(hits []rules.RuleHit, verdict mlengine.Verdict) model.Severity {
	sev := bucketMLRisk(verdict.Risk)
	for _, h := range hits {
		sev = model.MaxSeverity(sev, h.Severity)
	}
	return sev
}

// buildAlert merges C5 and C6 findings into one Alert (spec.md §4.6
// point 4), deriving matched_rule, category, description and killchain
// stage. newID is injectable for tests. The second return value reports
// whether a policy rule with action=block matched, which feeds C8's
// auto-block gate independent of the alert's own fields.
func buildAlert(event model.FlowEvent, hits []rules.RuleHit, verdict mlengine.Verdict, newID func() string) (model.Alert, bool) {
	sev := combinedSeverity(hits, verdict)

	var descriptions []string
	var matchedRule, category string
	blockRequested := false
	for _, h := range hits {
		descriptions = append(descriptions, h.Description)
		if matchedRule == "" {
			matchedRule = h.MatchedRule
		}
		if category == "" {
			category = h.Category
		}
		if h.Block {
			blockRequested = true
		}
	}
	if verdict.Classification == model.ClassificationShadowAI && category == "" {
		category = "Shadow AI (ML-detected)"
	}
	if len(descriptions) == 0 {
		descriptions = append(descriptions, mlOnlyDescription(verdict))
	}
	description := strings.Join(descriptions, "; ")

	alert := model.Alert{
		ID:               newID(),
		Timestamp:        event.Timestamp,
		Severity:         sev,
		Source:           event.SourceIP,
		Target:           destinationDisplay(event),
		Protocol:         event.Protocol,
		DestinationPort:  event.DestinationPort,
		SourcePort:       event.SourcePort,
		DestinationIP:    event.DestinationIP,
		BytesSent:        event.BytesSent,
		BytesReceived:    event.BytesReceived,
		Description:      description,
		MatchedRule:      matchedRule,
		Category:         category,
		MLClassification: verdict.Classification,
		MLConfidence:     verdict.Confidence,
		MLRiskScore:      verdict.Risk,
		KillChainStage:   KillChainStageFor(description, sev),
	}
	return alert, blockRequested
}

func mlOnlyDescription(v mlengine.Verdict) string {
	switch v.Classification {
	case model.ClassificationShadowAI:
		return "ML classifier flagged traffic as shadow AI usage"
	case model.ClassificationSuspicious:
		return "ML anomaly model flagged suspicious traffic pattern"
	default:
		return "elevated ML risk score"
	}
}

func destinationDisplay(event model.FlowEvent) string {
	if h := event.Host(); h != "" {
		return h
	}
	return event.DestinationIP
}

// newAlertID is the default ID generator, swapped in tests for
// determinism.
func newAlertID() string {
	return uuid.NewString()
}
