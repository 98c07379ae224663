// Package mlengine implements the intelligence engine (spec.md §4.5):
// feature extraction, anomaly scoring, classification, session
// behavior tracking, and their fusion into a single risk Verdict.
//
// Grounded on original_source/services/intelligence/engine.py's
// analyze() pipeline shape (session record → features → anomaly →
// classify → fuse), with the trained-model internals replaced by
// deterministic heuristic stand-ins since training is out of scope —
// only the inference contract is specified.
package mlengine

import (
	"log/slog"
	"time"

	"github.com/sgerhart/shadowhunter/internal/intel"
	"github.com/sgerhart/shadowhunter/internal/model"
)

// Engine is the intelligence engine described by spec.md §4.5. It
// exposes the same contract whether or not real models are loaded.
type Engine struct {
	anomaly    AnomalyModel
	classifier Classifier
	sessions   *SessionTracker
	logger     *slog.Logger
}

// Config selects the engine's scoring backends. Zero-value fields fall
// back to the cold-start models.
type Config struct {
	Anomaly    AnomalyModel
	Classifier Classifier
	AIDomains  *intel.AIDomainTable
}

// New builds an engine. Passing a zero Config yields a fully
// cold-started engine (every verdict is {normal, 0, 0, 0}).
func New(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	anomaly := cfg.Anomaly
	if anomaly == nil {
		anomaly = coldStartAnomalyModel{}
	}
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = coldStartClassifier{}
	}
	return &Engine{
		anomaly:    anomaly,
		classifier: classifier,
		sessions:   NewSessionTracker(),
		logger:     logger.With("component", "mlengine"),
	}
}

// NewHeuristic builds an engine backed by the package's default
// heuristic anomaly model and classifier — the "models loaded" path
// for demo/test use, since no trained artifact exists in-repo.
func NewHeuristic(aiDomains *intel.AIDomainTable, logger *slog.Logger) *Engine {
	return New(Config{
		Anomaly:    NewHeuristicAnomalyModel(),
		Classifier: NewHeuristicClassifier(aiDomains),
		AIDomains:  aiDomains,
	}, logger)
}

// Close releases the engine's background resources (the session
// tracker's eviction sweeper).
func (e *Engine) Close() {
	e.sessions.Close()
}

// Loaded reports whether both scoring backends are real models rather
// than the cold-start fallback.
func (e *Engine) Loaded() bool {
	return e.anomaly.Loaded() && e.classifier.Loaded()
}

// Analyze scores one event and folds it into the source IP's session
// state, returning the fused Verdict (spec.md §4.5).
func (e *Engine) Analyze(event model.FlowEvent, durationMs float64, hadHighSeverityRuleHit bool) Verdict {
	now := event.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	target := event.Host()
	if target == "" {
		target = event.DestinationIP
	}
	e.sessions.Record(event.SourceIP, target, event.BytesSent, now, hadHighSeverityRuleHit)

	if !e.Loaded() {
		return coldStartVerdict
	}

	features := Extract(event, durationMs)
	anomaly := e.anomaly.Score(features)
	classification, confidence := e.classifier.Classify(features, target)
	sessionScore := e.sessions.Score(event.SourceIP, now)

	risk := Fuse(anomaly, classification, confidence, sessionScore)

	return Verdict{
		Classification: classification,
		Confidence:     confidence,
		Anomaly:        anomaly,
		Risk:           risk,
	}
}

// SessionScore exposes the current session_score for sourceIP, used by
// derived analytics (C9) independent of the per-event Analyze call.
func (e *Engine) SessionScore(sourceIP string, now time.Time) float64 {
	return e.sessions.Score(sourceIP, now)
}
