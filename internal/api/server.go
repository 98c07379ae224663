// Package api implements the HTTP/WebSocket read-and-control surface
// (spec.md §6.2-§6.3): discovery and policy views under /v1, runtime
// policy-rule CRUD, and a server-push alert/graph-change stream.
//
// Grounded on
// orchestrator/internal/rollout/api.go's mux.Router + writeJSONResponse
// / writeErrorResponse shape, extended with the correlator's JSON
// envelope convention (a top-level "error" key on failure).
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sgerhart/shadowhunter/internal/analyzer"
	"github.com/sgerhart/shadowhunter/internal/broker"
	"github.com/sgerhart/shadowhunter/internal/config"
	"github.com/sgerhart/shadowhunter/internal/defense"
	"github.com/sgerhart/shadowhunter/internal/graphstore"
)

// requestTimeout is spec.md §6.2's "no endpoint may take longer than 2
// seconds" ceiling for everything under /v1.
const requestTimeout = 2 * time.Second

// Mode is the process's data-source mode, reported by GET /status.
type Mode string

const (
	ModeLive Mode = "live"
	ModeDemo Mode = "demo"
)

// Config wires the API server's dependencies.
type Config struct {
	Store        *graphstore.Store
	Orchestrator *analyzer.Orchestrator
	Responses    *defense.ResponseManager
	Policies     *config.PolicyLoader
	Broker       *broker.Broker
	Mode         Mode
	Version      string
	Logger       *slog.Logger
}

// Server is the bound HTTP handler for the /v1 API and the /ws stream.
type Server struct {
	cfg       Config
	logger    *slog.Logger
	router    *mux.Router
	hub       *streamHub
	startedAt time.Time
}

// New builds a Server. Call Handler to obtain the http.Handler to bind.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeDemo
	}
	s := &Server{
		cfg:       cfg,
		logger:    cfg.Logger.With("component", "api"),
		startedAt: time.Now(),
	}
	s.hub = newStreamHub(cfg.Broker, s.logger)
	s.routes()
	return s
}

// Handler returns the http.Handler to bind to a listener.
func (s *Server) Handler() http.Handler { return s.router }

// Run starts the alert/graph-change stream fan-in and blocks until ctx
// is canceled.
func (s *Server) Run(ctx context.Context) error {
	return s.hub.run(ctx)
}

func (s *Server) routes() {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(timeoutMiddleware)

	v1.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	v1.HandleFunc("/discovery/nodes", s.handleNodes).Methods(http.MethodGet)
	v1.HandleFunc("/discovery/edges", s.handleEdges).Methods(http.MethodGet)
	v1.HandleFunc("/discovery/risk-scores", s.handleRiskScores).Methods(http.MethodGet)
	v1.HandleFunc("/discovery/traffic-stats", s.handleTrafficStats).Methods(http.MethodGet)

	v1.HandleFunc("/policy/alerts", s.handleAlerts).Methods(http.MethodGet)
	v1.HandleFunc("/policy/timeline", s.handleTimeline).Methods(http.MethodGet)
	v1.HandleFunc("/policy/profiles", s.handleProfiles).Methods(http.MethodGet)
	v1.HandleFunc("/policy/sessions", s.handleSessions).Methods(http.MethodGet)
	v1.HandleFunc("/policy/dlp", s.handleDLP).Methods(http.MethodGet)
	v1.HandleFunc("/policy/killchain", s.handleKillChain).Methods(http.MethodGet)
	v1.HandleFunc("/policy/compliance", s.handleCompliance).Methods(http.MethodGet)
	v1.HandleFunc("/policy/briefing", s.handleBriefing).Methods(http.MethodGet)
	v1.HandleFunc("/policy/report", s.handleReport).Methods(http.MethodGet)

	v1.HandleFunc("/policy/rules", s.handleListRules).Methods(http.MethodGet)
	v1.HandleFunc("/policy/rules", s.handleCreateRule).Methods(http.MethodPost)
	v1.HandleFunc("/policy/rules/{id}/toggle", s.handleToggleRule).Methods(http.MethodPut)
	v1.HandleFunc("/policy/rules/{id}", s.handleDeleteRule).Methods(http.MethodDelete)

	v1.HandleFunc("/policy/blocked", s.handleBlocked).Methods(http.MethodGet)
	v1.HandleFunc("/policy/unblock/{ip}", s.handleUnblock).Methods(http.MethodPost)

	r.HandleFunc("/ws", s.hub.serveWS)
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
}

func (s *Server) uptimeSeconds() float64 {
	return time.Since(s.startedAt).Seconds()
}
