// Command shadowhunter runs the Shadow Hunter analyzer: it wires the
// broker, graph store, detection engines, active defense, and the HTTP/
// WebSocket API into one process and drives either a live packet
// capture or a synthetic traffic generator (spec.md §6.1).
//
// Grounded on correlator/cmd/correlator/main.go's wiring order and
// getEnv/getEnvInt helpers, adapted from NATS-external to the
// in-process embedded broker and extended with the CLI flag surface
// spec.md §6.1 specifies.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sgerhart/shadowhunter/internal/analyzer"
	"github.com/sgerhart/shadowhunter/internal/api"
	"github.com/sgerhart/shadowhunter/internal/broker"
	"github.com/sgerhart/shadowhunter/internal/config"
	"github.com/sgerhart/shadowhunter/internal/defense"
	"github.com/sgerhart/shadowhunter/internal/graphstore"
	"github.com/sgerhart/shadowhunter/internal/intel"
	"github.com/sgerhart/shadowhunter/internal/metrics"
	"github.com/sgerhart/shadowhunter/internal/mlengine"
	"github.com/sgerhart/shadowhunter/internal/model"
	"github.com/sgerhart/shadowhunter/internal/rules"
	"github.com/sgerhart/shadowhunter/internal/source"
)

// Exit codes, spec.md §6.1.
const (
	exitOK             = 0
	exitConfigError    = 1
	exitCaptureFailure = 2
	exitBindFailure    = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		live      = flag.Bool("live", false, "activate the live packet-capture sniffer instead of the synthetic generator")
		iface     = flag.String("interface", "", "network interface for live capture (auto-detected if empty)")
		reset     = flag.Bool("reset", false, "delete the persistent graph before starting")
		inMemory  = flag.Bool("inmemory", false, "use a non-persistent graph store")
		port      = flag.Int("port", 8000, "HTTP/WS bind port")
		seed      = flag.Int64("seed", 0, "deterministic seed for the synthetic generator (0 picks a fresh seed)")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("starting shadow hunter")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := broker.New(broker.Config{Port: config.GetEnvInt("SH_BROKER_PORT", 0)}, logger)
	if err != nil {
		logger.Error("failed to start event broker", "error", err)
		return exitConfigError
	}
	defer b.Close()

	dbPath, cleanupDB, err := resolveGraphPath(*inMemory, *reset)
	if err != nil {
		logger.Error("failed to prepare graph store path", "error", err)
		return exitConfigError
	}
	defer cleanupDB()

	store, err := graphstore.Open(dbPath)
	if err != nil {
		logger.Error("failed to open graph store", "error", err, "path", dbPath)
		return exitConfigError
	}
	defer store.Close()

	aiDomains := intel.NewAIDomainTable()
	cidrs := intel.NewCIDRTable()
	ja3 := intel.NewJA3Matcher()
	detectors := rules.DefaultRegistry()
	engine := mlengine.New(mlengine.Config{AIDomains: aiDomains}, logger)

	responses := defense.NewResponseManager(logger)
	responses.SetBroker(b)
	defer responses.Close()
	interrogator := defense.NewInterrogator(responses, logger)

	policyDir := config.GetEnv("SH_POLICY_DIR", "policies")
	hotReload := config.GetEnvBool("SH_HOT_RELOAD", true)
	debounce := time.Duration(config.GetEnvInt("SH_DEBOUNCE_MS", 500)) * time.Millisecond
	policies := config.NewPolicyLoader(policyDir, hotReload, debounce, logger)
	if _, err := policies.LoadSnapshot(); err != nil {
		logger.Error("failed to load policy rules", "error", err, "dir", policyDir)
		return exitConfigError
	}
	stopPolicyWatch := make(chan struct{})
	defer close(stopPolicyWatch)
	policies.Watch(stopPolicyWatch)

	settings := config.NewManager(config.Snapshot{
		WorkerCount:           config.GetEnvInt("SH_WORKER_COUNT", 4),
		ProbingEnabled:        config.GetEnvBool("SH_PROBING_ENABLED", true),
		CriticalRiskThreshold: config.GetEnvFloat("SH_CRITICAL_RISK_THRESHOLD", 95),
		LocalPrefixes:         config.GetEnvStrings("SH_LOCAL_PREFIXES", []string{"10.0.0.0/8", "192.168.0.0/16", "172.16.0.0/16"}),
		InterestingInternal:   config.GetEnvStrings("SH_INTERESTING_INTERNAL", nil),
	}, logger)

	promMetrics := metrics.New()

	orc := analyzer.New(analyzer.Config{
		Broker:       b,
		Store:        store,
		AIDomains:    aiDomains,
		CIDRs:        cidrs,
		JA3:          ja3,
		Detectors:    detectors,
		Engine:       engine,
		Interrogator: interrogator,
		Responses:    responses,
		Policies:     policies,
		Settings:     settings,
		Metrics:      promMetrics,
		Logger:       logger,
	})

	mode := api.ModeDemo
	if *live {
		mode = api.ModeLive
	}
	apiServer := api.New(api.Config{
		Store:        store,
		Orchestrator: orc,
		Responses:    responses,
		Policies:     policies,
		Broker:       b,
		Mode:         mode,
		Version:      config.GetEnv("SH_VERSION", "dev"),
		Logger:       logger,
	})

	adapter, cleanupSource, err := buildSource(*live, *iface, *seed, logger)
	if err != nil {
		logger.Error("failed to initialize capture source", "error", err)
		return exitCaptureFailure
	}
	defer cleanupSource()

	errCh := make(chan namedErr, 3)
	go func() { errCh <- namedErr{"analyzer", orc.Run(ctx)} }()
	go func() { errCh <- namedErr{"api_hub", apiServer.Run(ctx)} }()
	go func() {
		err := adapter.Run(ctx, func(event model.FlowEvent) {
			if err := broker.PublishJSON(b, broker.TopicTraffic, event); err != nil {
				logger.Debug("failed to publish flow event", "error", err)
			}
		})
		errCh <- namedErr{"source", err}
	}()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: apiServer.Handler(),
	}
	bindErrCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "port", *port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			bindErrCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("shutdown signal received")
	case err := <-bindErrCh:
		logger.Error("http server failed to bind", "error", err, "port", *port)
		cancel()
		return exitBindFailure
	case e := <-errCh:
		if e.err != nil && !errors.Is(e.err, context.Canceled) {
			logger.Error("component exited unexpectedly", "component", e.name, "error", e.err)
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shadow hunter stopped")
	return exitOK
}

type namedErr struct {
	name string
	err  error
}

// resolveGraphPath decides the graph store's backing file. --inmemory
// gets a fresh temp file that cleanup deletes on shutdown, since
// go.etcd.io/bbolt has no separate in-memory mode; --reset deletes the
// persistent file (if any) before Open creates a clean one.
func resolveGraphPath(inMemory, reset bool) (path string, cleanup func(), err error) {
	if inMemory {
		f, err := os.CreateTemp("", "shadowhunter-inmemory-*.db")
		if err != nil {
			return "", func() {}, err
		}
		name := f.Name()
		f.Close()
		os.Remove(name)
		return name, func() { os.Remove(name) }, nil
	}

	path = config.GetEnv("SH_GRAPH_DB_PATH", "shadowhunter_graph.db")
	if reset {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return "", func() {}, fmt.Errorf("removing existing graph store: %w", err)
		}
	}
	return path, func() {}, nil
}

// buildSource constructs the C4 flow adapter: a live raw-socket capture
// when live is set, otherwise the seeded synthetic generator.
func buildSource(live bool, iface string, seed int64, logger *slog.Logger) (source.Adapter, func(), error) {
	if live {
		src, err := source.NewRawSocketSource(iface)
		if err != nil {
			return nil, func() {}, err
		}
		sniffer := source.NewSniffer(src, 0, logger)
		return sniffer, func() { src.Close() }, nil
	}

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gen := source.NewGenerator(source.GeneratorConfig{
		Personas: source.DefaultPersonas,
		Seed:     seed,
	}, logger)
	return gen, func() {}, nil
}
