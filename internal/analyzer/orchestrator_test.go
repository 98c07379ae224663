package analyzer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgerhart/shadowhunter/internal/broker"
	"github.com/sgerhart/shadowhunter/internal/config"
	"github.com/sgerhart/shadowhunter/internal/defense"
	"github.com/sgerhart/shadowhunter/internal/graphstore"
	"github.com/sgerhart/shadowhunter/internal/intel"
	"github.com/sgerhart/shadowhunter/internal/mlengine"
	"github.com/sgerhart/shadowhunter/internal/model"
	"github.com/sgerhart/shadowhunter/internal/rules"
)

// newTestOrchestrator wires an in-process broker, a temp-file graph
// store, the default rule registry and a cold-start intelligence engine,
// mirroring correlator's evaluate_simple_test.go style of exercising the
// pipeline against real (not mocked) collaborators.
func newTestOrchestrator(t *testing.T) (*Orchestrator, *broker.Broker, *graphstore.Store) {
	t.Helper()

	b, err := broker.New(broker.Config{Port: 0}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	dbPath := filepath.Join(t.TempDir(), "graph.db")
	store, err := graphstore.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	aiDomains := intel.NewAIDomainTable()
	engine := mlengine.New(mlengine.Config{}, nil) // cold-start: never alerts on its own
	t.Cleanup(engine.Close)

	settings := config.NewManager(config.Snapshot{
		WorkerCount:           2,
		ProbingEnabled:        false,
		CriticalRiskThreshold: 95,
	}, nil)

	orc := New(Config{
		Broker:    b,
		Store:     store,
		AIDomains: aiDomains,
		CIDRs:     intel.NewCIDRTable(),
		JA3:       intel.NewJA3Matcher(),
		Detectors: rules.DefaultRegistry(),
		Engine:    engine,
		Settings:  settings,
	})
	return orc, b, store
}

func runOrchestrator(t *testing.T, orc *Orchestrator) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = orc.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(6 * time.Second):
			t.Fatal("orchestrator did not shut down in time")
		}
	})
	// Give the subscriber a moment to register before the test publishes.
	time.Sleep(50 * time.Millisecond)
	return cancel
}

func TestOrchestratorFlagsKnownAIDomainAndUpsertsGraph(t *testing.T) {
	orc, b, store := newTestOrchestrator(t)
	runOrchestrator(t, orc)

	event := model.FlowEvent{
		Timestamp:       time.Now(),
		SourceIP:        "10.1.2.3",
		DestinationIP:   "203.0.113.50",
		SourcePort:      55123,
		DestinationPort: 443,
		Protocol:        model.ProtocolHTTPS,
		BytesSent:       500,
		BytesReceived:   1200,
		Metadata:        map[string]string{"host": "chatgpt.com"},
	}
	require.NoError(t, broker.PublishJSON(b, broker.TopicTraffic, event))

	require.Eventually(t, func() bool {
		return len(orc.Alerts()) > 0
	}, 3*time.Second, 20*time.Millisecond)

	alerts := orc.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, model.SeverityHigh, alerts[0].Severity)
	assert.Contains(t, alerts[0].MatchedRule, "ai_domain")

	require.Eventually(t, func() bool {
		n, err := store.GetNode("10.1.2.3")
		return err == nil && n.State == model.NodeStateFlagged
	}, 2*time.Second, 20*time.Millisecond)

	destNode, err := store.GetNode("203.0.113.50")
	require.NoError(t, err)
	assert.Equal(t, model.NodeShadow, destNode.Type)

	edges, err := store.ListEdges(graphstore.EdgeFilter{Source: "10.1.2.3", Target: "203.0.113.50"})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.EqualValues(t, 1700, edges[0].ByteCount)
}

func TestOrchestratorDropsMalformedEvent(t *testing.T) {
	orc, b, _ := newTestOrchestrator(t)
	runOrchestrator(t, orc)

	require.NoError(t, broker.PublishJSON(b, broker.TopicTraffic, model.FlowEvent{SourceIP: "", DestinationIP: "203.0.113.50"}))
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, orc.Alerts())
}

func TestOrchestratorWhitelistsInternalToInternalTraffic(t *testing.T) {
	orc, b, store := newTestOrchestrator(t)
	runOrchestrator(t, orc)

	event := model.FlowEvent{
		Timestamp: time.Now(), SourceIP: "10.0.0.5", DestinationIP: "10.0.0.6",
		SourcePort: 5000, DestinationPort: 8080, Protocol: model.ProtocolTCP,
	}
	require.NoError(t, broker.PublishJSON(b, broker.TopicTraffic, event))

	require.Eventually(t, func() bool {
		_, err := store.GetNode("10.0.0.5")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	assert.Empty(t, orc.Alerts())
}

// TestOrchestratorAutoBlocksShadowAIDestinationOnCriticalAlert covers
// spec.md §8's S5: a HIGH-severity shadow-AI alert clears the
// auto-block risk gate on its own severity, so the first matching flow
// is enough to land the destination in the blocklist, well inside the
// "within 2 flows" bound.
func TestOrchestratorAutoBlocksShadowAIDestinationOnCriticalAlert(t *testing.T) {
	b, err := broker.New(broker.Config{Port: 0}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	dbPath := filepath.Join(t.TempDir(), "graph.db")
	store, err := graphstore.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	responses := defense.NewResponseManager(nil)
	responses.SetBroker(b)
	t.Cleanup(responses.Close)

	engine := mlengine.New(mlengine.Config{}, nil)
	t.Cleanup(engine.Close)

	settings := config.NewManager(config.Snapshot{
		WorkerCount:           2,
		CriticalRiskThreshold: 95,
	}, nil)

	orc := New(Config{
		Broker:    b,
		Store:     store,
		AIDomains: intel.NewAIDomainTable(),
		CIDRs:     intel.NewCIDRTable(),
		JA3:       intel.NewJA3Matcher(),
		Detectors: rules.DefaultRegistry(),
		Engine:    engine,
		Responses: responses,
		Settings:  settings,
	})
	runOrchestrator(t, orc)

	before := time.Now()
	event := model.FlowEvent{
		Timestamp: before, SourceIP: "10.0.0.5", DestinationIP: "198.51.100.9",
		SourcePort: 51000, DestinationPort: 443, Protocol: model.ProtocolHTTPS,
		Metadata: map[string]string{"host": "api.openai.com"},
	}
	require.NoError(t, broker.PublishJSON(b, broker.TopicTraffic, event))

	require.Eventually(t, func() bool {
		return responses.IsBlocked("198.51.100.9")
	}, 2*time.Second, 20*time.Millisecond)

	entries := responses.ListBlocked()
	require.Len(t, entries, 1)
	assert.Equal(t, "198.51.100.9", entries[0].IP)
	assert.WithinDuration(t, before.Add(defense.DefaultBlockTTL), entries[0].ExpiresAt, 5*time.Second)

	// The graph-side quarantine mark arrives asynchronously off the
	// TopicResponses event the response manager published.
	require.Eventually(t, func() bool {
		n, err := store.GetNode("198.51.100.9")
		return err == nil && n.State == model.NodeStateQuarantined
	}, 2*time.Second, 20*time.Millisecond)
}

// TestOrchestratorAutoBlockOnInternalSourcePreservesNodeType covers the
// internal-source block path: a policy-rule action=block match on
// internal-to-internal traffic (the destination is configured as an
// interesting internal service, so the whitelist does not drop the
// flow) quarantines the source IP, and the
// resulting graph feedback must not flip that node's Type from
// internal to external (spec.md §3's classification invariant).
func TestOrchestratorAutoBlockOnInternalSourcePreservesNodeType(t *testing.T) {
	b, err := broker.New(broker.Config{Port: 0}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	dbPath := filepath.Join(t.TempDir(), "graph.db")
	store, err := graphstore.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	responses := defense.NewResponseManager(nil)
	responses.SetBroker(b)
	t.Cleanup(responses.Close)

	engine := mlengine.New(mlengine.Config{}, nil)
	t.Cleanup(engine.Close)

	policies := config.NewPolicyLoader(t.TempDir(), false, 0, nil)
	_, err = policies.CreateRule(model.PolicyRule{
		Name: "block-notion", Service: "notion", Department: "All",
		Severity: model.SeverityLow, Action: model.ActionBlock, Enabled: true,
	})
	require.NoError(t, err)

	settings := config.NewManager(config.Snapshot{
		WorkerCount:           2,
		CriticalRiskThreshold: 95,
		InterestingInternal:   []string{"10.0.0.7"},
	}, nil)

	orc := New(Config{
		Broker:    b,
		Store:     store,
		AIDomains: intel.NewAIDomainTable(),
		CIDRs:     intel.NewCIDRTable(),
		JA3:       intel.NewJA3Matcher(),
		Detectors: rules.DefaultRegistry(),
		Engine:    engine,
		Responses: responses,
		Policies:  policies,
		Settings:  settings,
	})
	runOrchestrator(t, orc)

	event := model.FlowEvent{
		Timestamp: time.Now(), SourceIP: "10.0.0.5", DestinationIP: "10.0.0.7",
		SourcePort: 51000, DestinationPort: 443, Protocol: model.ProtocolTCP,
		Metadata: map[string]string{"host": "notion.so"},
	}
	require.NoError(t, broker.PublishJSON(b, broker.TopicTraffic, event))

	require.Eventually(t, func() bool {
		return responses.IsBlocked("10.0.0.5")
	}, 2*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		n, err := store.GetNode("10.0.0.5")
		return err == nil && n.State == model.NodeStateQuarantined
	}, 2*time.Second, 20*time.Millisecond)

	n, err := store.GetNode("10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, model.NodeInternal, n.Type)
}
