package analyzer

import "github.com/sgerhart/shadowhunter/internal/model"

// severityWeight resolves spec.md §4.6 point 6's node risk-update
// formula. See DESIGN.md's Open Question resolution #4 for the
// numeric choice.
var severityWeight = map[model.Severity]float64{
	model.SeverityHigh:   15,
	model.SeverityMedium: 5,
	model.SeverityLow:    2,
}

// riskDecay is the retention factor applied to the previous risk_score
// before adding the new severity weight (spec.md §4.6 point 6).
const riskDecay = 0.9

// updateNodeRisk computes the source node's next risk_score.
func updateNodeRisk(current float64, sev model.Severity) float64 {
	next := riskDecay*current + severityWeight[sev]
	if next > 100 {
		return 100
	}
	if next < 0 {
		return 0
	}
	return next
}

// bucketMLRisk maps an ML risk score in [0,100] to a Severity per
// spec.md §4.6 point 3.
func bucketMLRisk(risk float64) model.Severity {
	switch {
	case risk < 30:
		return model.SeverityLow
	case risk < 70:
		return model.SeverityMedium
	default:
		return model.SeverityHigh
	}
}
