package api

import (
	"net/http"

	"github.com/sgerhart/shadowhunter/internal/analytics"
	"github.com/sgerhart/shadowhunter/internal/graphstore"
)

type statusResponse struct {
	Mode          Mode    `json:"mode"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Version       string  `json:"version"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Mode:          s.cfg.Mode,
		UptimeSeconds: s.uptimeSeconds(),
		Version:       s.cfg.Version,
	})
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.cfg.Store.ListNodes(graphstore.NodeFilter{})
	if err != nil {
		s.logger.Error("listing nodes failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list nodes")
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) handleEdges(w http.ResponseWriter, r *http.Request) {
	edges, err := s.cfg.Store.ListEdges(graphstore.EdgeFilter{})
	if err != nil {
		s.logger.Error("listing edges failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list edges")
		return
	}
	writeJSON(w, http.StatusOK, edges)
}

func (s *Server) handleRiskScores(w http.ResponseWriter, r *http.Request) {
	edges, err := s.cfg.Store.ListEdges(graphstore.EdgeFilter{})
	if err != nil {
		s.logger.Error("listing edges failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute risk scores")
		return
	}
	edgeCounts := make(map[string]int, len(edges))
	for _, e := range edges {
		edgeCounts[e.Source]++
	}
	writeJSON(w, http.StatusOK, analytics.RiskScores(s.cfg.Orchestrator.Alerts(), edgeCounts))
}

func (s *Server) handleTrafficStats(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.cfg.Store.ListNodes(graphstore.NodeFilter{})
	if err != nil {
		s.logger.Error("listing nodes failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute traffic stats")
		return
	}
	edges, err := s.cfg.Store.ListEdges(graphstore.EdgeFilter{})
	if err != nil {
		s.logger.Error("listing edges failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute traffic stats")
		return
	}
	writeJSON(w, http.StatusOK, analytics.TrafficStatsView(nodes, edges, s.cfg.Orchestrator.Alerts()))
}
