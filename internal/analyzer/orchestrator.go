// Package analyzer implements the analyzer orchestrator (spec.md
// §4.6): the central pipeline that classifies endpoints, upserts the
// graph, runs the rule and intelligence engines, emits alerts, gates
// active defense, and advances node risk and lifecycle state.
//
// Grounded on
// correlator/internal/nats/subscriber.go's subscribe-classify-store-
// alert shape, adapted from NATS queue-group fan-out to an in-process
// hash-partitioned worker pool since spec.md requires per-5-tuple
// ordering stronger than a queue group gives for free.
package analyzer

import (
	"context"
	"hash/fnv"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/sgerhart/shadowhunter/internal/broker"
	"github.com/sgerhart/shadowhunter/internal/config"
	"github.com/sgerhart/shadowhunter/internal/defense"
	"github.com/sgerhart/shadowhunter/internal/graphstore"
	"github.com/sgerhart/shadowhunter/internal/intel"
	"github.com/sgerhart/shadowhunter/internal/metrics"
	"github.com/sgerhart/shadowhunter/internal/mlengine"
	"github.com/sgerhart/shadowhunter/internal/model"
	"github.com/sgerhart/shadowhunter/internal/rules"
)

// storeRetryDelays is spec.md §4.6's backoff schedule for a failed
// graph store upsert; see DESIGN.md Open Question resolution #6.
var storeRetryDelays = []time.Duration{50 * time.Millisecond, 200 * time.Millisecond, time.Second}

// workerQueueDepth is the per-worker buffered channel depth. A worker
// that falls behind drops incoming events rather than blocking the
// broker subscriber (spec.md §5's backpressure policy).
const workerQueueDepth = 256

// Config wires the orchestrator's dependencies.
type Config struct {
	Broker       *broker.Broker
	Store        *graphstore.Store
	AIDomains    *intel.AIDomainTable
	CIDRs        *intel.CIDRTable
	JA3          *intel.JA3Matcher
	Detectors    *rules.Registry
	Engine       *mlengine.Engine
	Interrogator *defense.Interrogator
	Responses    *defense.ResponseManager
	Policies     *config.PolicyLoader
	Settings     *config.Manager
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// Orchestrator is the running analyzer pipeline.
type Orchestrator struct {
	cfg    Config
	logger *slog.Logger
	ring   *alertRing

	workers []chan model.FlowEvent
	wg      sync.WaitGroup

	subToken     string
	responsesSub string
}

// New builds an Orchestrator. Call Run to start consuming.
func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Settings == nil {
		cfg.Settings = config.NewManager(config.DefaultSnapshot(), cfg.Logger)
	}
	return &Orchestrator{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "analyzer"),
		ring:   newAlertRing(alertRingCapacity),
	}
}

// Alerts returns a snapshot of the bounded in-memory alert history.
func (o *Orchestrator) Alerts() []model.Alert {
	return o.ring.Snapshot()
}

// Run subscribes to the telemetry topic, starts the worker pool, and
// blocks until ctx is canceled, then drains workers with a 5s grace
// period (spec.md §5).
func (o *Orchestrator) Run(ctx context.Context) error {
	n := o.cfg.Settings.Current().WorkerCount
	if n <= 0 {
		n = 4
	}
	o.workers = make([]chan model.FlowEvent, n)
	for i := range o.workers {
		o.workers[i] = make(chan model.FlowEvent, workerQueueDepth)
		o.wg.Add(1)
		go o.runWorker(ctx, i)
	}

	token, err := broker.SubscribeJSON(o.cfg.Broker, broker.TopicTraffic, o.dispatch)
	if err != nil {
		return err
	}
	o.subToken = token

	if o.cfg.Responses != nil {
		respToken, err := broker.SubscribeJSON(o.cfg.Broker, broker.TopicResponses, o.handleResponseEvent)
		if err != nil {
			_ = o.cfg.Broker.Unsubscribe(o.subToken)
			return err
		}
		o.responsesSub = respToken
	}

	o.logger.Info("analyzer started", "workers", n)
	<-ctx.Done()

	o.logger.Info("analyzer shutting down")
	_ = o.cfg.Broker.Unsubscribe(o.subToken)
	if o.responsesSub != "" {
		_ = o.cfg.Broker.Unsubscribe(o.responsesSub)
	}
	for _, ch := range o.workers {
		close(ch)
	}

	drained := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		o.logger.Warn("analyzer shutdown grace period exceeded, workers still draining")
	}
	return nil
}

// dispatch routes an event to its 5-tuple-hashed worker, dropping it
// (counted, logged) if that worker's queue is full.
func (o *Orchestrator) dispatch(event model.FlowEvent) {
	if !validEvent(event) {
		if o.cfg.Metrics != nil {
			o.cfg.Metrics.EventsInvalidTotal.Inc()
		}
		o.logger.Debug("dropping malformed event", "source_ip", event.SourceIP, "destination_ip", event.DestinationIP)
		return
	}
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.EventsTotal.Inc()
	}
	idx := partitionOf(event, len(o.workers))
	select {
	case o.workers[idx] <- event:
	default:
		if o.cfg.Metrics != nil {
			o.cfg.Metrics.EventsDroppedAnalysisTotal.Inc()
		}
		o.logger.Warn("worker queue full, dropping event", "worker", idx)
	}
}

func (o *Orchestrator) runWorker(ctx context.Context, id int) {
	defer o.wg.Done()
	logger := o.logger.With("worker", id)
	for event := range o.workers[id] {
		if o.cfg.Metrics != nil {
			o.cfg.Metrics.QueueDepth.WithLabelValues(strconv.Itoa(id)).Set(float64(len(o.workers[id])))
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("panic processing event, recovered", "panic", r)
				}
			}()
			o.processEvent(ctx, event)
		}()
	}
}

// validEvent rejects flow events failing basic schema validation
// (spec.md §7 ErrInputMalformed).
func validEvent(e model.FlowEvent) bool {
	if e.SourceIP == "" || e.DestinationIP == "" {
		return false
	}
	if e.Protocol != "" && !e.Protocol.IsValid() {
		return false
	}
	return true
}

// partitionOf computes the FNV-1a hash of the (source IP, destination
// IP, destination port, protocol) tuple modulo n (spec.md §5).
func partitionOf(e model.FlowEvent, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(e.SourceIP))
	h.Write([]byte(e.DestinationIP))
	h.Write([]byte(strconv.Itoa(e.DestinationPort)))
	h.Write([]byte(e.Protocol))
	return int(h.Sum32() % uint32(n))
}
