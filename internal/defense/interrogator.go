// Package defense implements active defense (spec.md §4.7): a
// safety-gated probe scheduler that interrogates suspicious
// destinations, and a TTL blocklist response manager.
//
// Grounded on original_source/services/active_defense/interrogator.py
// (probe sequence, safety guards, AI indicator heuristics) and
// services/response/manager.py (TTL blocklist semantics).
package defense

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Probe safety-guard and behavior constants, spec.md §4.7.
const (
	ProbeCooldown  = 300 * time.Second
	ProbeRateLimit = 10 // per rolling minute
	ProbeTimeout   = 5 * time.Second
)

// aiProbePaths are the OpenAI/Ollama/Anthropic-compatible endpoints
// probed for a JSON model listing, per original_source's AI_PROBE_PATHS.
var aiProbePaths = []string{
	"/v1/models", "/v1/chat/completions", "/api/generate", "/api/tags", "/v1/complete",
}

// aiHeaderIndicators are response headers/vendor markers that hint at
// an AI vendor backend.
var aiHeaderIndicators = []string{
	"openai", "anthropic", "x-request-id", "x-ratelimit-limit", "cf-ray",
}

// InterrogationResult is the outcome of a full probe sequence against
// one target.
type InterrogationResult struct {
	Target     string
	Confirmed  bool
	Indicators []string
	Skipped    bool
	SkipReason string
}

// Blocklist reports whether a target is currently blocked, so the
// interrogator's safety guard can refuse to probe a quarantined host.
type Blocklist interface {
	IsBlocked(ip string) bool
}

// Interrogator dispatches safety-gated HTTP probes against suspicious
// destinations. At most one interrogation runs per target at a time;
// concurrency across targets is bounded by the caller's worker pool
// (spec.md §5: "at most 2 in-flight probes").
type Interrogator struct {
	client    *http.Client
	blocklist Blocklist
	limiter   *rate.Limiter
	logger    *slog.Logger

	mu           sync.Mutex
	lastProbedAt map[string]time.Time

	skippedCount int64
}

// NewInterrogator builds an interrogator gated by blocklist, with a
// global token-bucket rate limit of ProbeRateLimit per minute.
func NewInterrogator(blocklist Blocklist, logger *slog.Logger) *Interrogator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interrogator{
		client:       &http.Client{Timeout: ProbeTimeout},
		blocklist:    blocklist,
		limiter:      rate.NewLimiter(rate.Every(time.Minute/ProbeRateLimit), ProbeRateLimit),
		logger:       logger.With("component", "interrogator"),
		lastProbedAt: make(map[string]time.Time),
	}
}

// SkippedCount returns the number of probes refused by a safety guard.
func (in *Interrogator) SkippedCount() int64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.skippedCount
}

func (in *Interrogator) recordSkip(reason string) {
	in.mu.Lock()
	in.skippedCount++
	in.mu.Unlock()
	in.logger.Debug("probe skipped", "reason", reason)
}

// canProbe evaluates every safety guard in spec.md §4.7. It does not
// consume the rate-limit token; callers must call limiter.Allow()
// themselves once past the other guards, since Allow() is itself a
// stateful check.
func (in *Interrogator) canProbe(target string) (bool, string) {
	ip := net.ParseIP(target)
	if ip != nil {
		if ip.IsPrivate() || ip.IsLoopback() || ip.IsMulticast() || ip.IsUnspecified() {
			return false, "target is internal, loopback, or multicast"
		}
	}
	if in.blocklist != nil && in.blocklist.IsBlocked(target) {
		return false, "target is currently blocked"
	}
	in.mu.Lock()
	last, seen := in.lastProbedAt[target]
	in.mu.Unlock()
	if seen && time.Since(last) < ProbeCooldown {
		return false, "target is on cooldown"
	}
	return true, ""
}

// Interrogate runs the full OPTIONS → AI-endpoint probe sequence
// against target, honoring the 5s per-call hard timeout and the
// safety guards. It returns model.ErrProbeSkipped-equivalent status via
// InterrogationResult.Skipped rather than an error, since a skip is an
// expected outcome, not a failure.
func (in *Interrogator) Interrogate(ctx context.Context, target string) InterrogationResult {
	if ok, reason := in.canProbe(target); !ok {
		in.recordSkip(reason)
		return InterrogationResult{Target: target, Skipped: true, SkipReason: reason}
	}
	if !in.limiter.Allow() {
		in.recordSkip("rate limit exceeded")
		return InterrogationResult{Target: target, Skipped: true, SkipReason: "rate limit exceeded"}
	}

	in.mu.Lock()
	in.lastProbedAt[target] = time.Now()
	in.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	indicators := in.probeOptions(ctx, target)
	confirmed := len(indicators) >= 2
	if !confirmed {
		more := in.probeAIEndpoints(ctx, target)
		indicators = append(indicators, more...)
		confirmed = len(indicators) >= 2
	}

	in.logger.Info("interrogation complete", "target", target, "confirmed", confirmed, "indicators", len(indicators))
	return InterrogationResult{Target: target, Confirmed: confirmed, Indicators: indicators}
}

func (in *Interrogator) probeOptions(ctx context.Context, target string) []string {
	url := fmt.Sprintf("https://%s", target)
	req, err := http.NewRequestWithContext(ctx, http.MethodOptions, url, nil)
	if err != nil {
		return nil
	}
	resp, err := in.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	var headerBlob strings.Builder
	for k, v := range resp.Header {
		headerBlob.WriteString(strings.ToLower(k))
		headerBlob.WriteString(":")
		headerBlob.WriteString(strings.ToLower(strings.Join(v, ",")))
		headerBlob.WriteString(" ")
	}
	blob := headerBlob.String()

	var indicators []string
	for _, ind := range aiHeaderIndicators {
		if strings.Contains(blob, ind) {
			indicators = append(indicators, ind)
		}
	}
	return indicators
}

var aiBodyKeywords = []string{"model", "gpt", "claude", "llama", "completion", "embedding", "token"}

func (in *Interrogator) probeAIEndpoints(ctx context.Context, target string) []string {
	var indicators []string
	for _, path := range aiProbePaths {
		url := fmt.Sprintf("https://%s%s", target, path)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			continue
		}
		resp, err := in.client.Do(req)
		if err != nil {
			continue
		}
		func() {
			defer resp.Body.Close()
			switch {
			case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
				indicators = append(indicators, "auth_required:"+path)
			case resp.StatusCode == http.StatusOK:
				ct := resp.Header.Get("Content-Type")
				if strings.Contains(ct, "json") {
					indicators = append(indicators, "json_api:"+path)
					body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
					lower := strings.ToLower(string(body))
					for _, kw := range aiBodyKeywords {
						if strings.Contains(lower, kw) {
							indicators = append(indicators, "keyword:"+kw)
						}
					}
					var probe struct {
						Data []struct {
							ID string `json:"id"`
						} `json:"data"`
					}
					if json.Unmarshal(body, &probe) == nil && len(probe.Data) > 0 {
						indicators = append(indicators, "model_list_schema:"+path)
					}
				}
			}
		}()
	}
	return indicators
}
