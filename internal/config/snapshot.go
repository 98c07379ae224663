package config

import (
	"log/slog"
	"sync"
)

// Snapshot is the runtime-tunable settings the analyzer and defense
// packages consult per event. Everything here is safe to change while
// the pipeline is running; structural settings (broker port, store
// path) are plain startup flags instead, since spec.md's CLI surface
// treats them as fixed for the process lifetime.
type Snapshot struct {
	WorkerCount           int
	ProbingEnabled        bool
	CriticalRiskThreshold float64
	LocalPrefixes         []string
	InterestingInternal   []string
}

// DefaultSnapshot mirrors spec.md's stated defaults: 4 workers,
// risk >= 95 as the CRITICAL auto-block threshold.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		WorkerCount:           4,
		ProbingEnabled:        true,
		CriticalRiskThreshold: 95,
	}
}

// Manager holds the live Snapshot and notifies subscribers on change,
// copy-on-write, grounded on
// correlator/internal/config/manager.go's Manager/Subscribe pattern.
type Manager struct {
	mu          sync.RWMutex
	current     Snapshot
	subscribers []func(Snapshot)
	logger      *slog.Logger
}

// NewManager builds a manager seeded with initial.
func NewManager(initial Snapshot, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{current: initial, logger: logger.With("component", "config_manager")}
}

// Current returns a copy of the live snapshot.
func (m *Manager) Current() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Update replaces the live snapshot and notifies every subscriber.
// Subscriber panics are recovered and logged, never propagated.
func (m *Manager) Update(next Snapshot) {
	m.mu.Lock()
	m.current = next
	subs := make([]func(Snapshot), len(m.subscribers))
	copy(subs, m.subscribers)
	m.mu.Unlock()

	for _, cb := range subs {
		go func(cb func(Snapshot)) {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("panic in config subscriber", "panic", r)
				}
			}()
			cb(next)
		}(cb)
	}
}

// Subscribe registers callback to be invoked (in its own goroutine) on
// every Update.
func (m *Manager) Subscribe(callback func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, callback)
}
