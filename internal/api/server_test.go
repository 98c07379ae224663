package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgerhart/shadowhunter/internal/analyzer"
	"github.com/sgerhart/shadowhunter/internal/broker"
	"github.com/sgerhart/shadowhunter/internal/config"
	"github.com/sgerhart/shadowhunter/internal/defense"
	"github.com/sgerhart/shadowhunter/internal/graphstore"
	"github.com/sgerhart/shadowhunter/internal/intel"
	"github.com/sgerhart/shadowhunter/internal/mlengine"
	"github.com/sgerhart/shadowhunter/internal/model"
	"github.com/sgerhart/shadowhunter/internal/rules"
)

func newTestServer(t *testing.T) (*Server, *broker.Broker, *config.PolicyLoader, *defense.ResponseManager) {
	t.Helper()

	b, err := broker.New(broker.Config{Port: 0}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	dbPath := filepath.Join(t.TempDir(), "graph.db")
	store, err := graphstore.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	policies := config.NewPolicyLoader(t.TempDir(), false, 0, nil)
	_, err = policies.LoadSnapshot()
	require.NoError(t, err)

	responses := defense.NewResponseManager(nil)
	t.Cleanup(responses.Close)

	settings := config.NewManager(config.Snapshot{WorkerCount: 2, CriticalRiskThreshold: 95}, nil)
	orc := analyzer.New(analyzer.Config{
		Broker:    b,
		Store:     store,
		AIDomains: intel.NewAIDomainTable(),
		CIDRs:     intel.NewCIDRTable(),
		JA3:       intel.NewJA3Matcher(),
		Detectors: rules.DefaultRegistry(),
		Engine:    mlengine.New(mlengine.Config{}, nil),
		Responses: responses,
		Policies:  policies,
		Settings:  settings,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = orc.Run(ctx) }()

	srv := New(Config{
		Store:        store,
		Orchestrator: orc,
		Responses:    responses,
		Policies:     policies,
		Broker:       b,
		Mode:         ModeDemo,
		Version:      "test",
	})

	hubCtx, hubCancel := context.WithCancel(context.Background())
	t.Cleanup(hubCancel)
	go func() { _ = srv.Run(hubCtx) }()

	time.Sleep(50 * time.Millisecond)
	return srv, b, policies, responses
}

func decodeBody(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func TestStatusReportsModeAndVersion(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/status")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got statusResponse
	decodeBody(t, resp, &got)
	assert.Equal(t, ModeDemo, got.Mode)
	assert.Equal(t, "test", got.Version)
}

func TestDiscoveryEndpointsReflectGraphState(t *testing.T) {
	srv, b, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	event := model.FlowEvent{
		SourceIP: "10.0.0.5", DestinationIP: "203.0.113.9",
		SourcePort: 51000, DestinationPort: 443, Protocol: model.ProtocolTCP,
		BytesSent: 4096, Timestamp: time.Now(),
	}
	require.NoError(t, broker.PublishJSON(b, broker.TopicTraffic, event))
	require.Eventually(t, func() bool {
		resp, err := http.Get(ts.URL + "/v1/discovery/nodes")
		if err != nil {
			return false
		}
		var nodes []model.Node
		decodeBody(t, resp, &nodes)
		return len(nodes) >= 2
	}, 3*time.Second, 20*time.Millisecond)

	resp, err := http.Get(ts.URL + "/v1/discovery/traffic-stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var stats map[string]interface{}
	decodeBody(t, resp, &stats)
	assert.Contains(t, stats, "totals")
	assert.Contains(t, stats, "node_types")
}

func TestRuleLifecycleCreateToggleDelete(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	body := []byte(`{"name":"block-openai","action":"block","service":"openai","department":"eng","severity":"HIGH","enabled":true}`)
	resp, err := http.Post(ts.URL+"/v1/policy/rules", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var created model.PolicyRule
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created.ID)
	assert.True(t, created.Enabled)

	dup, err := http.Post(ts.URL+"/v1/policy/rules", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, dup.StatusCode)

	toggleReq, err := http.NewRequest(http.MethodPut, ts.URL+"/v1/policy/rules/"+created.ID+"/toggle", nil)
	require.NoError(t, err)
	toggleResp, err := http.DefaultClient.Do(toggleReq)
	require.NoError(t, err)
	var toggled model.PolicyRule
	decodeBody(t, toggleResp, &toggled)
	assert.False(t, toggled.Enabled)

	delReq, err := http.NewRequest(http.MethodDelete, ts.URL+"/v1/policy/rules/"+created.ID, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(delReq)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	missingReq, err := http.NewRequest(http.MethodDelete, ts.URL+"/v1/policy/rules/"+created.ID, nil)
	require.NoError(t, err)
	missingResp, err := http.DefaultClient.Do(missingReq)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, missingResp.StatusCode)
}

func TestBlockedAndUnblock(t *testing.T) {
	srv, _, _, responses := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	_, ok := responses.Block("198.51.100.9", "test block", "", 0)
	require.True(t, ok)

	resp, err := http.Get(ts.URL + "/v1/policy/blocked")
	require.NoError(t, err)
	var entries []model.BlocklistEntry
	decodeBody(t, resp, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "198.51.100.9", entries[0].IP)

	unblockResp, err := http.Post(ts.URL+"/v1/policy/unblock/198.51.100.9", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, unblockResp.StatusCode)

	unblockAgain, err := http.Post(ts.URL+"/v1/policy/unblock/198.51.100.9", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, unblockAgain.StatusCode)
}

func TestAnalyticsEndpointsReturnValidEnvelopes(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	for _, path := range []string{
		"/v1/policy/alerts", "/v1/policy/timeline", "/v1/policy/profiles",
		"/v1/policy/sessions", "/v1/policy/dlp", "/v1/policy/killchain",
		"/v1/policy/compliance", "/v1/policy/briefing", "/v1/policy/report",
	} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err, path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		resp.Body.Close()
	}
}

func TestCreateRuleRejectsMalformedBody(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/policy/rules", "application/json", bytes.NewReader([]byte("not json")))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var envelope errorEnvelope
	decodeBody(t, resp, &envelope)
	assert.NotEmpty(t, envelope.Error)
}

