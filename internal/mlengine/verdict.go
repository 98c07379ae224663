package mlengine

import "github.com/sgerhart/shadowhunter/internal/model"

// Verdict is the intelligence engine's fused output for one event,
// spec.md §4.5.
type Verdict struct {
	Classification model.MLClassification
	Confidence     float64
	Anomaly        float64
	Risk           float64
}

// coldStartVerdict is returned whenever no models are loaded; the
// orchestrator falls back to rules alone.
var coldStartVerdict = Verdict{Classification: model.ClassificationNormal}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Fuse implements spec.md §4.5's deterministic fusion rule.
func Fuse(anomaly float64, classification model.MLClassification, shadowAIConfidence, sessionScore float64) float64 {
	shadowTerm := 0.0
	if classification == model.ClassificationShadowAI {
		shadowTerm = shadowAIConfidence
	}
	return clamp(40*anomaly+40*shadowTerm+20*sessionScore, 0, 100)
}
