package defense

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/sgerhart/shadowhunter/internal/broker"
	"github.com/sgerhart/shadowhunter/internal/model"
)

// DefaultBlockTTL is the response manager's default quarantine duration.
const DefaultBlockTTL = time.Hour

// AutoBlockRiskThreshold is spec.md §4.7's auto-block trigger: alerts
// with severity HIGH and risk at or above this value are quarantined
// automatically, as are matches on a policy rule with action=block.
const AutoBlockRiskThreshold = 95.0

// safeListIPs are addresses the response manager will never block,
// regardless of caller intent — DNS resolvers, common gateways,
// loopback and multicast. Grounded on
// original_source/services/response/manager.py's hardcoded safe list.
var safeListIPs = map[string]bool{
	"8.8.8.8": true, "8.8.4.4": true, "1.1.1.1": true, "1.0.0.1": true,
	"9.9.9.9": true,
}

func isSafeListed(ip string) bool {
	if safeListIPs[ip] {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	if parsed.IsLoopback() || parsed.IsMulticast() {
		return true
	}
	// Common default-gateway last octet across RFC1918 ranges.
	if parsed.IsPrivate() {
		v4 := parsed.To4()
		if v4 != nil && v4[3] == 1 {
			return true
		}
	}
	return false
}

// ResponseManager is an in-memory TTL map of ip -> BlocklistEntry, with
// a background sweeper. Grounded on
// original_source/services/response/manager.py.
type ResponseManager struct {
	mu      sync.RWMutex
	entries map[string]model.BlocklistEntry
	logger  *slog.Logger
	stop    chan struct{}
	publish func(model.BlocklistEntry)
}

// NewResponseManager builds a manager and starts its 30s sweeper. It
// publishes nothing until SetBroker is called.
func NewResponseManager(logger *slog.Logger) *ResponseManager {
	if logger == nil {
		logger = slog.Default()
	}
	rm := &ResponseManager{
		entries: make(map[string]model.BlocklistEntry),
		logger:  logger.With("component", "response_manager"),
		stop:    make(chan struct{}),
		publish: func(model.BlocklistEntry) {},
	}
	go rm.sweepLoop()
	return rm
}

// SetBroker wires the manager to publish each successful Block onto
// sh.responses.v1. spec.md §9 breaks the analyzer/response-manager
// cyclic reference this way: the analyzer subscribes to the topic to
// drive graph quarantine feedback instead of the response manager
// holding a direct reference back into the graph store.
func (rm *ResponseManager) SetBroker(b *broker.Broker) {
	rm.publish = func(entry model.BlocklistEntry) {
		if err := broker.PublishJSON(b, broker.TopicResponses, entry); err != nil {
			rm.logger.Debug("failed to publish response event", "error", err)
		}
	}
}

// Close stops the background sweeper.
func (rm *ResponseManager) Close() {
	close(rm.stop)
}

func (rm *ResponseManager) sweepLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rm.sweep(time.Now())
		case <-rm.stop:
			return
		}
	}
}

func (rm *ResponseManager) sweep(now time.Time) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	for ip, entry := range rm.entries {
		if entry.Expired(now) {
			delete(rm.entries, ip)
		}
	}
}

// Block inserts or refreshes a quarantine entry for ip. It refuses
// silently (returning false) if ip is on the hardcoded safe list. A
// zero ttl uses DefaultBlockTTL.
func (rm *ResponseManager) Block(ip, reason, sourceAlertID string, ttl time.Duration) (model.BlocklistEntry, bool) {
	if isSafeListed(ip) {
		rm.logger.Warn("refusing to block safe-listed address", "ip", ip)
		return model.BlocklistEntry{}, false
	}
	if ttl <= 0 {
		ttl = DefaultBlockTTL
	}
	now := time.Now()
	entry := model.BlocklistEntry{
		IP: ip, InsertedAt: now, ExpiresAt: now.Add(ttl),
		Reason: reason, SourceAlertID: sourceAlertID,
	}
	rm.mu.Lock()
	rm.entries[ip] = entry
	rm.mu.Unlock()
	rm.logger.Info("blocked", "ip", ip, "reason", reason, "expires_at", entry.ExpiresAt)
	rm.publish(entry)
	return entry, true
}

// IsBlocked reports whether ip has a live (non-expired) entry.
func (rm *ResponseManager) IsBlocked(ip string) bool {
	rm.mu.RLock()
	entry, ok := rm.entries[ip]
	rm.mu.RUnlock()
	return ok && !entry.Expired(time.Now())
}

// ListBlocked returns all currently live entries.
func (rm *ResponseManager) ListBlocked() []model.BlocklistEntry {
	now := time.Now()
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	out := make([]model.BlocklistEntry, 0, len(rm.entries))
	for _, e := range rm.entries {
		if !e.Expired(now) {
			out = append(out, e)
		}
	}
	return out
}

// Unblock removes ip's entry immediately, regardless of its expiry.
func (rm *ResponseManager) Unblock(ip string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if _, ok := rm.entries[ip]; !ok {
		return fmt.Errorf("unblock %s: %w", ip, model.ErrNotFound)
	}
	delete(rm.entries, ip)
	return nil
}

// ShouldAutoBlock implements spec.md §4.7's auto-block trigger.
func ShouldAutoBlock(severity model.Severity, risk float64, policyBlockMatched bool) bool {
	if policyBlockMatched {
		return true
	}
	return severity == model.SeverityHigh && risk >= AutoBlockRiskThreshold
}
