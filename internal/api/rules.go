package api

import (
	"errors"
	"net/http"

	"github.com/sgerhart/shadowhunter/internal/model"
)

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.currentPolicyRules())
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Policies == nil {
		writeError(w, http.StatusInternalServerError, "policy loader not configured")
		return
	}
	var rule model.PolicyRule
	if err := decodeJSON(w, r, &rule); err != nil {
		writeError(w, http.StatusBadRequest, "malformed rule body")
		return
	}
	if rule.Name == "" || rule.Service == "" {
		writeError(w, http.StatusBadRequest, "rule requires a name and a service")
		return
	}
	stored, err := s.cfg.Policies.CreateRule(rule)
	if err != nil {
		if errors.Is(err, model.ErrConflict) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("rule creation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create rule")
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleToggleRule(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Policies == nil {
		writeError(w, http.StatusInternalServerError, "policy loader not configured")
		return
	}
	id := pathVar(r, "id")
	stored, err := s.cfg.Policies.ToggleRule(id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, "rule not found")
			return
		}
		s.logger.Error("rule toggle failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to toggle rule")
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Policies == nil {
		writeError(w, http.StatusInternalServerError, "policy loader not configured")
		return
	}
	id := pathVar(r, "id")
	if err := s.cfg.Policies.DeleteRule(id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, "rule not found")
			return
		}
		s.logger.Error("rule deletion failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete rule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBlocked(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Responses == nil {
		writeJSON(w, http.StatusOK, []model.BlocklistEntry{})
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Responses.ListBlocked())
}

func (s *Server) handleUnblock(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Responses == nil {
		writeError(w, http.StatusInternalServerError, "response manager not configured")
		return
	}
	ip := pathVar(r, "ip")
	if err := s.cfg.Responses.Unblock(ip); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no active block for that address")
			return
		}
		s.logger.Error("unblock failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to unblock")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
