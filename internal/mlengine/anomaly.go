package mlengine

import "math"

// AnomalyModel scores a Features vector as an outlier in [0,1]; higher
// is more anomalous. Grounded on
// original_source/services/intelligence/models/anomaly.py's isolation
// forest contract — the interface, not the training procedure, which is
// out of scope (spec.md §1: "training of ML models... only their
// inference contract is specified").
type AnomalyModel interface {
	// Loaded reports whether a real model backs this instance. An
	// unloaded model must still satisfy the contract via cold-start
	// fallback (spec.md §4.5).
	Loaded() bool
	Score(f Features) float64
}

// baseline holds the population mean/stddev this heuristic model
// normalizes features against, standing in for a trained isolation
// forest's learned decision boundary.
type baseline struct {
	meanBytesSent, stdBytesSent         float64
	meanBytesReceived, stdBytesReceived float64
	meanEntropy, stdEntropy             float64
}

var defaultBaseline = baseline{
	meanBytesSent: 1500, stdBytesSent: 2500,
	meanBytesReceived: 8000, stdBytesReceived: 15000,
	meanEntropy: 3.2, stdEntropy: 1.0,
}

// HeuristicAnomalyModel is a deterministic stand-in for a trained
// isolation-forest model: it scores outlier-ness as a normalized
// distance from a fixed baseline over payload size and hostname
// entropy, folded through a logistic squashing function into [0,1].
type HeuristicAnomalyModel struct {
	b baseline
}

// NewHeuristicAnomalyModel builds the default heuristic model.
func NewHeuristicAnomalyModel() *HeuristicAnomalyModel {
	return &HeuristicAnomalyModel{b: defaultBaseline}
}

func (m *HeuristicAnomalyModel) Loaded() bool { return true }

func (m *HeuristicAnomalyModel) Score(f Features) float64 {
	zSent := zscore(f.BytesSent, m.b.meanBytesSent, m.b.stdBytesSent)
	zRecv := zscore(f.BytesReceived, m.b.meanBytesReceived, m.b.stdBytesReceived)
	zEntropy := zscore(f.SNIEntropy, m.b.meanEntropy, m.b.stdEntropy)

	// Combine as a Euclidean distance in standardized feature space,
	// then squash into [0,1] via a logistic curve centered at 2 sigma.
	distance := math.Sqrt(zSent*zSent + zRecv*zRecv + zEntropy*zEntropy)
	return 1 / (1 + math.Exp(-(distance-2)))
}

func zscore(v, mean, std float64) float64 {
	if std == 0 {
		return 0
	}
	return (v - mean) / std
}

// coldStartAnomalyModel always reports unloaded and scores 0, matching
// spec.md §4.5's "{normal, 0, 0, 0}" fallback.
type coldStartAnomalyModel struct{}

func (coldStartAnomalyModel) Loaded() bool        { return false }
func (coldStartAnomalyModel) Score(Features) float64 { return 0 }
