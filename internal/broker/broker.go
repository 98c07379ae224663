// Package broker implements the in-process publish/subscribe event bus
// (spec.md §4.1) on top of an embedded NATS core server. Publish never
// blocks the caller; each subscriber has a bounded FIFO queue and a slow
// subscriber only drops its own messages, never stalling others.
//
// Grounded on cutmob-1-SEC/internal/core/bus.go for the embedded-server
// bootstrap, adapted to core NATS pub/sub (no JetStream) because
// spec.md's alert delivery is explicitly best-effort, not durable.
package broker

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// Topics used by the core pipeline (spec.md §4.1).
const (
	TopicTraffic      = "sh.telemetry.traffic.v1"
	TopicAlerts       = "sh.alerts.v1"
	TopicGraphChanges = "sh.graph_changes.v1"
	TopicResponses    = "sh.responses.v1"
)

// DefaultQueueDepth is the default bounded FIFO depth per subscriber.
const DefaultQueueDepth = 4096

// Broker is a topic-based pub/sub bus with per-subscriber backpressure.
type Broker struct {
	logger *slog.Logger
	ns     *server.Server
	nc     *nats.Conn

	mu          sync.Mutex
	subs        map[string]*subscription // token -> subscription
	nextToken   int64
	queueDepth  int

	dropped  int64 // total messages dropped for slow subscribers
	dropMu   sync.Mutex
}

type subscription struct {
	topic string
	sub   *nats.Subscription
}

// Config controls how the broker starts its embedded transport.
type Config struct {
	// Host/Port bind the embedded NATS server. Port 0 lets the OS pick a
	// free port, which is what tests and single-node demo mode want.
	Host string
	Port int
	// DataDir is not passed to the embedded server (core NATS keeps no
	// state on disk); New only creates a temp dir for it when empty.
	DataDir string
	// QueueDepth overrides DefaultQueueDepth when > 0.
	QueueDepth int
}

// New starts an embedded NATS core server and connects a client to it.
func New(cfg Config, logger *slog.Logger) (*Broker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DataDir == "" {
		dir, err := os.MkdirTemp("", "shadowhunter-broker-*")
		if err != nil {
			return nil, fmt.Errorf("creating broker data dir: %w", err)
		}
		cfg.DataDir = dir
	}
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = DefaultQueueDepth
	}

	opts := &server.Options{
		Host:      cfg.Host,
		Port:      cfg.Port,
		NoLog:     true,
		NoSigs:    true,
		JetStream: false,
	}
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("creating embedded NATS server: %w", err)
	}
	ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		return nil, fmt.Errorf("embedded NATS server failed to start within timeout")
	}

	b := &Broker{
		logger:     logger.With("component", "broker"),
		ns:         ns,
		subs:       make(map[string]*subscription),
		queueDepth: depth,
	}

	nc, err := nats.Connect(ns.ClientURL(),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			if err == nats.ErrSlowConsumer {
				b.dropMu.Lock()
				b.dropped++
				b.dropMu.Unlock()
				subject := ""
				if sub != nil {
					subject = sub.Subject
				}
				b.logger.Warn("subscriber queue full, dropping message", "subject", subject)
			}
		}),
	)
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("connecting to embedded broker: %w", err)
	}
	b.nc = nc

	b.logger.Info("broker started", "url", ns.ClientURL())
	return b, nil
}

// Handler processes one message's raw payload.
type Handler func(data []byte)

// Subscribe registers handler on topic with a bounded per-subscriber
// queue. Returns a token usable with Unsubscribe.
func (b *Broker) Subscribe(topic string, handler Handler) (string, error) {
	sub, err := b.nc.Subscribe(topic, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return "", fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	if err := sub.SetPendingLimits(b.queueDepth, -1); err != nil {
		sub.Unsubscribe()
		return "", fmt.Errorf("setting pending limits for %s: %w", topic, err)
	}

	b.mu.Lock()
	b.nextToken++
	token := fmt.Sprintf("sub-%d", b.nextToken)
	b.subs[token] = &subscription{topic: topic, sub: sub}
	b.mu.Unlock()

	return token, nil
}

// Unsubscribe removes the subscription identified by token and drains
// its queue.
func (b *Broker) Unsubscribe(token string) error {
	b.mu.Lock()
	s, ok := b.subs[token]
	if ok {
		delete(b.subs, token)
	}
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown subscription token %q", token)
	}
	return s.sub.Unsubscribe()
}

// Publish enqueues data to every current subscriber of topic. It never
// blocks: NATS core publish is fire-and-forget, and a full subscriber
// queue drops the message for that subscriber only (surfaced via the
// error handler installed in New).
func (b *Broker) Publish(topic string, data []byte) error {
	if err := b.nc.Publish(topic, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// DroppedCount returns the total number of messages dropped across all
// subscribers due to a full queue.
func (b *Broker) DroppedCount() int64 {
	b.dropMu.Lock()
	defer b.dropMu.Unlock()
	return b.dropped
}

// Close drains subscriptions, closes the client connection, and shuts
// down the embedded server.
func (b *Broker) Close() error {
	b.mu.Lock()
	for token, s := range b.subs {
		s.sub.Unsubscribe()
		delete(b.subs, token)
	}
	b.mu.Unlock()

	if b.nc != nil {
		b.nc.Close()
	}
	if b.ns != nil {
		b.ns.Shutdown()
		b.ns.WaitForShutdown()
	}
	return nil
}
