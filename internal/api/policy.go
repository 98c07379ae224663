package api

import (
	"net/http"
	"time"

	"github.com/sgerhart/shadowhunter/internal/analytics"
	"github.com/sgerhart/shadowhunter/internal/model"
)

// alertHistoryLimit is spec.md §6.2's "last 1000 alerts" cap on
// GET /policy/alerts. The orchestrator's ring buffer already enforces
// this same capacity (spec.md §4.6), so this is a defensive re-slice
// rather than the primary limiter.
const alertHistoryLimit = 1000

func (s *Server) alertsNewestFirst() []model.Alert {
	alerts := s.cfg.Orchestrator.Alerts()
	out := make([]model.Alert, len(alerts))
	for i, a := range alerts {
		out[len(alerts)-1-i] = a
	}
	if len(out) > alertHistoryLimit {
		out = out[:alertHistoryLimit]
	}
	return out
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.alertsNewestFirst())
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, analytics.Timeline(s.cfg.Orchestrator.Alerts(), time.Now()))
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, analytics.Profiles(s.cfg.Orchestrator.Alerts()))
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, analytics.Sessions(s.cfg.Orchestrator.Alerts()))
}

func (s *Server) handleDLP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, analytics.DLP(s.cfg.Orchestrator.Alerts()))
}

func (s *Server) handleKillChain(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, analytics.KillChain(s.cfg.Orchestrator.Alerts()))
}

func (s *Server) handleCompliance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, analytics.Compliance(s.cfg.Orchestrator.Alerts(), s.currentPolicyRules()))
}

func (s *Server) handleBriefing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, analytics.Briefing(s.cfg.Orchestrator.Alerts(), time.Now()))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, analytics.Report(s.cfg.Orchestrator.Alerts(), time.Now()))
}

func (s *Server) currentPolicyRules() []model.PolicyRule {
	if s.cfg.Policies == nil {
		return nil
	}
	return s.cfg.Policies.Snapshot().Rules
}
