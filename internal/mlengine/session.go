package mlengine

import (
	"math"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// sessionHalfLife and sessionEviction implement spec.md §4.5's
// behavioral tracker: exponential decay with a 10-minute half-life,
// eviction after 30 minutes of inactivity.
const (
	sessionHalfLife  = 10 * time.Minute
	sessionEviction  = 30 * time.Minute
	sessionCacheSize = 100_000
)

type sessionState struct {
	mu            sync.Mutex
	bytesOutSum   float64
	uniqueTargets map[string]struct{}
	lastActivity  time.Time
	alertCount    int
}

// SessionTracker maintains per-source-IP rolling behavioral state.
// Grounded on original_source's SessionAnalyzer (per-IP history +
// baseline) and correlator/internal/rules/window.go's periodic-GC
// eviction pattern, adapted from a per-host event deque into decayed
// aggregate counters bounded by an LRU cache (spec.md doesn't ask for
// full event replay, only rolling aggregates).
type SessionTracker struct {
	cache *lru.Cache[string, *sessionState]

	stopGC chan struct{}
}

// NewSessionTracker builds a tracker and starts its eviction sweeper.
func NewSessionTracker() *SessionTracker {
	cache, err := lru.New[string, *sessionState](sessionCacheSize)
	if err != nil {
		// Only fails for a non-positive size, which sessionCacheSize
		// never is.
		panic(err)
	}
	t := &SessionTracker{cache: cache, stopGC: make(chan struct{})}
	go t.gcLoop()
	return t
}

// Close stops the background eviction sweeper.
func (t *SessionTracker) Close() {
	close(t.stopGC)
}

func (t *SessionTracker) gcLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			t.evictInactive(now)
		case <-t.stopGC:
			return
		}
	}
}

func (t *SessionTracker) evictInactive(now time.Time) {
	for _, key := range t.cache.Keys() {
		st, ok := t.cache.Peek(key)
		if !ok {
			continue
		}
		st.mu.Lock()
		inactive := now.Sub(st.lastActivity) > sessionEviction
		st.mu.Unlock()
		if inactive {
			t.cache.Remove(key)
		}
	}
}

func (t *SessionTracker) stateFor(sourceIP string) *sessionState {
	if st, ok := t.cache.Get(sourceIP); ok {
		return st
	}
	st := &sessionState{uniqueTargets: make(map[string]struct{})}
	t.cache.Add(sourceIP, st)
	return st
}

// Record folds one flow's outcome into sourceIP's session. hadHighSeverityHit
// marks whether the rule/ML pipeline flagged this event at HIGH severity,
// contributing to the session's alert_count term.
func (t *SessionTracker) Record(sourceIP, target string, bytesOut int64, now time.Time, hadHighSeverityHit bool) {
	st := t.stateFor(sourceIP)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.bytesOutSum = decay(st.bytesOutSum, st.lastActivity, now) + float64(bytesOut)
	st.uniqueTargets[target] = struct{}{}
	st.lastActivity = now
	if hadHighSeverityHit {
		st.alertCount++
	}
}

// decay applies exponential decay with a 10-minute half-life to value,
// as if it had been sitting untouched since last.
func decay(value float64, last, now time.Time) float64 {
	if last.IsZero() || value == 0 {
		return value
	}
	elapsed := now.Sub(last)
	if elapsed <= 0 {
		return value
	}
	halfLives := elapsed.Seconds() / sessionHalfLife.Seconds()
	return value * math.Pow(0.5, halfLives)
}

// Score computes session_score ∈ [0,1] for sourceIP: it grows with
// sustained outbound volume, target fan-out, and recent high-severity
// hits (spec.md §4.5). Unknown source IPs score 0 (cold start).
func (t *SessionTracker) Score(sourceIP string, now time.Time) float64 {
	st, ok := t.cache.Get(sourceIP)
	if !ok {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	volume := decay(st.bytesOutSum, st.lastActivity, now)
	volumeScore := clamp(volume/500_000, 0, 1) // 500KB sustained outbound saturates this term
	fanoutScore := clamp(float64(len(st.uniqueTargets))/10, 0, 1)
	alertScore := clamp(float64(st.alertCount)/5, 0, 1)

	return clamp(0.5*volumeScore+0.25*fanoutScore+0.25*alertScore, 0, 1)
}
