package mlengine

import (
	"github.com/sgerhart/shadowhunter/internal/intel"
	"github.com/sgerhart/shadowhunter/internal/model"
)

// Classifier maps a Features vector to one of {normal, suspicious,
// shadow_ai} with a confidence. Grounded on
// original_source/services/intelligence/models/classifier.py's
// predict/predict_proba contract.
type Classifier interface {
	Loaded() bool
	Classify(f Features, host string) (model.MLClassification, float64)
}

// HeuristicClassifier is a deterministic stand-in for a trained
// classifier: known AI-domain hosts and disproportionately large
// outbound payloads drive the classification, matching the shape (not
// the trained weights) of the original gradient-boosted classifier.
type HeuristicClassifier struct {
	aiDomains *intel.AIDomainTable
}

// NewHeuristicClassifier builds a classifier keyed to aiDomains for
// domain-aware confidence boosting.
func NewHeuristicClassifier(aiDomains *intel.AIDomainTable) *HeuristicClassifier {
	return &HeuristicClassifier{aiDomains: aiDomains}
}

func (c *HeuristicClassifier) Loaded() bool { return true }

func (c *HeuristicClassifier) Classify(f Features, host string) (model.MLClassification, float64) {
	if c.aiDomains != nil && c.aiDomains.IsAIDomain(host) {
		confidence := 0.75
		if f.BytesSent > 5000 || f.BytesReceived > 20000 {
			confidence = 0.92
		}
		return model.ClassificationShadowAI, confidence
	}

	suspiciousScore := 0.0
	if f.BytesSent > 4000 {
		suspiciousScore += 0.3
	}
	if f.SNIEntropy > 4.0 {
		suspiciousScore += 0.3
	}
	if f.TLDRank >= 10 {
		suspiciousScore += 0.2
	}
	if suspiciousScore >= 0.5 {
		return model.ClassificationSuspicious, suspiciousScore
	}
	return model.ClassificationNormal, 1 - suspiciousScore
}

// coldStartClassifier always reports unloaded, classifying everything
// normal with zero confidence.
type coldStartClassifier struct{}

func (coldStartClassifier) Loaded() bool { return false }
func (coldStartClassifier) Classify(Features, string) (model.MLClassification, float64) {
	return model.ClassificationNormal, 0
}
