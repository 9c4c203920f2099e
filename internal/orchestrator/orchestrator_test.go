package orchestrator

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"NetSage/internal/config"
	"NetSage/internal/fallback"
	"NetSage/internal/model"
	"NetSage/internal/provider"
	"NetSage/internal/triage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testConfig() *config.Config {
	return &config.Config{
		Selection: config.SelectionConfig{Strategy: "rotation", Seed: 1},
		Chunking:  config.ChunkingConfig{MaxChunkBytes: 1 << 20, MaxChunkItems: 100},
		Retry: config.RetryConfig{
			MaxAttempts:         2,
			BackoffBaseDuration: time.Millisecond,
			BackoffMaxDuration:  5 * time.Millisecond,
		},
		Timeouts: config.TimeoutsConfig{
			PerUnitDuration: time.Second,
			OverallDuration: 5 * time.Second,
		},
		Triage: config.TriageConfig{
			FloodThreshold:   10,
			BlacklistedPorts: []uint16{0, 65535, 31337, 6667},
			TopN:             5,
			SampleSize:       5,
		},
		Audit: config.AuditConfig{Sink: "none"},
	}
}

// echoProvider answers every query with a fixed text, or fails every
// call with err when set.
type echoProvider struct {
	name string
	err  error

	mu    sync.Mutex
	calls int
}

func (p *echoProvider) Query(ctx context.Context, prompt, evidence string) (string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	return "answer from " + p.name, nil
}

func (p *echoProvider) TestConnection(context.Context) bool { return true }
func (p *echoProvider) Name() string                        { return p.name }
func (p *echoProvider) MaxContextSize() int                 { return 1 << 20 }

func (p *echoProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// memorySink collects recorded responses.
type memorySink struct {
	mu        sync.Mutex
	responses []*model.AggregateResponse
}

func (s *memorySink) Record(_ context.Context, resp *model.AggregateResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, resp)
	return nil
}

func (s *memorySink) Close() error { return nil }

func (s *memorySink) recorded() []*model.AggregateResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.AggregateResponse, len(s.responses))
	copy(out, s.responses)
	return out
}

// memoryNotifier collects published events.
type memoryNotifier struct {
	mu     sync.Mutex
	events []*model.AggregateResponse
}

func (n *memoryNotifier) Notify(resp *model.AggregateResponse) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, resp)
	return nil
}

func (n *memoryNotifier) Close() {}

func (n *memoryNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func synFlood(src string, count int) []*model.Record {
	records := make([]*model.Record, count)
	for i := range records {
		records[i] = &model.Record{
			Timestamp: time.Date(2025, 3, 10, 9, 0, i, 0, time.UTC),
			SrcIP:     net.ParseIP(src),
			DstIP:     net.ParseIP("192.168.1.50"),
			SrcPort:   uint16(40000 + i),
			DstPort:   22,
			Protocol:  "TCP",
			Flags:     model.FlagSYN,
			Length:    60,
		}
	}
	return records
}

func benignTraffic(n int) []*model.Record {
	records := make([]*model.Record, n)
	for i := range records {
		records[i] = &model.Record{
			Timestamp: time.Date(2025, 3, 10, 9, 0, i, 0, time.UTC),
			SrcIP:     net.ParseIP(fmt.Sprintf("10.1.0.%d", i%8+1)),
			DstIP:     net.ParseIP("10.1.0.100"),
			SrcPort:   uint16(50000 + i),
			DstPort:   443,
			Protocol:  "TCP",
			Flags:     model.FlagACK | model.FlagPSH,
			Length:    512,
		}
	}
	return records
}

func newTestOrchestrator(t *testing.T, cfg *config.Config, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := New(context.Background(), cfg, zaptest.NewLogger(t), opts...)
	require.NoError(t, err)
	return o
}

func TestQueryCombinesBackendAnswers(t *testing.T) {
	sink := &memorySink{}
	notifier := &memoryNotifier{}
	a := &echoProvider{name: "alpha"}
	b := &echoProvider{name: "beta"}

	o := newTestOrchestrator(t, testConfig(),
		WithProviders(a, b),
		WithAuditSink(sink),
		WithNotifier(notifier))

	resp := o.Query(context.Background(), synFlood("172.16.0.66", 25), "what is attacking us?")

	require.NotNil(t, resp)
	assert.False(t, resp.UsedFallback)
	assert.NotEmpty(t, resp.QueryID)
	assert.Equal(t, resp.TotalChunks, resp.Succeeded)
	assert.Zero(t, resp.Failed)
	assert.Contains(t, resp.CombinedText, "Multi-Chunk Analysis Summary")
	assert.Contains(t, resp.CombinedText, "answer from")

	require.Len(t, sink.recorded(), 1)
	assert.Equal(t, resp.QueryID, sink.recorded()[0].QueryID)
	assert.Equal(t, 1, notifier.count())
}

func TestQueryTotalFailureFallsBack(t *testing.T) {
	// Every provider rejects every call: the answer must be the local
	// statistical analysis, flagged as fallback, with no panic and a
	// full audit trail of the failed units.
	deadA := &echoProvider{name: "a", err: &provider.AuthenticationError{Provider: "a", Detail: "bad key"}}
	deadB := &echoProvider{name: "b", err: &provider.NetworkError{Provider: "b", Detail: "unreachable"}}

	cfg := testConfig()
	o := newTestOrchestrator(t, cfg, WithProviders(deadA, deadB))

	records := synFlood("172.16.0.66", 25)
	prompt := "is there suspicious activity?"
	resp := o.Query(context.Background(), records, prompt)

	require.NotNil(t, resp)
	assert.True(t, resp.UsedFallback)
	assert.Equal(t, resp.TotalChunks, resp.Failed)
	assert.Zero(t, resp.Succeeded)
	assert.Empty(t, resp.Providers)
	require.NotEmpty(t, resp.UnitResults)

	// The answer matches what the fallback analyzer says about the same
	// clusters.
	filter := triage.NewFilter(cfg.Triage)
	agg := triage.NewAggregator(cfg.Triage.SampleSize)
	clusters := agg.Cluster(filter.Flag(records))
	want := fallback.New().Analyze(prompt, clusters, triage.Statistics(records))
	assert.Equal(t, want, resp.CombinedText)
}

func TestQueryZeroRecords(t *testing.T) {
	sink := &memorySink{}
	o := newTestOrchestrator(t, testConfig(),
		WithProviders(&echoProvider{name: "a"}),
		WithAuditSink(sink))

	resp := o.Query(context.Background(), nil, "anything?")

	require.NotNil(t, resp)
	assert.False(t, resp.UsedFallback)
	assert.Zero(t, resp.TotalChunks)
	assert.Empty(t, resp.UnitResults)
	assert.Contains(t, resp.CombinedText, "nothing to analyze")
	assert.Len(t, sink.recorded(), 1, "no-data responses are still audited")
}

func TestQueryBenignCaptureAnalyzesFullSet(t *testing.T) {
	// Nothing in this capture trips the filter; the pipeline must fall
	// back to clustering every record rather than answering with an
	// empty analysis.
	p := &echoProvider{name: "solo"}
	o := newTestOrchestrator(t, testConfig(), WithProviders(p))

	resp := o.Query(context.Background(), benignTraffic(40), "summarize the traffic")

	require.NotNil(t, resp)
	assert.False(t, resp.UsedFallback)
	assert.GreaterOrEqual(t, resp.TotalChunks, 1)
	assert.Equal(t, resp.TotalChunks, resp.Succeeded)
	assert.Greater(t, p.callCount(), 0)
}

func TestQueryWithoutActiveProviders(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), WithProviders())

	resp := o.Query(context.Background(), synFlood("10.9.9.9", 30), "who is flooding?")

	require.NotNil(t, resp)
	assert.True(t, resp.UsedFallback)
	assert.NotEmpty(t, resp.CombinedText)
	for _, r := range resp.UnitResults {
		assert.False(t, r.Success)
		assert.Equal(t, "no_provider", r.ErrKind)
	}
}

func TestLocalAnalyzeSkipsBackends(t *testing.T) {
	p := &echoProvider{name: "idle"}
	o := newTestOrchestrator(t, testConfig(), WithProviders(p))

	resp := o.LocalAnalyze(context.Background(), benignTraffic(10), "top ips")

	require.NotNil(t, resp)
	assert.True(t, resp.UsedFallback)
	assert.Contains(t, resp.CombinedText, "Top IP Addresses Analysis")
	assert.Zero(t, p.callCount())
	assert.Empty(t, resp.UnitResults)
}

func TestProvidersReportUsage(t *testing.T) {
	cfg := testConfig()
	cfg.Providers = []config.ProviderConfig{
		{Name: "alpha", Type: config.TypeOpenAI, Weight: 40},
		{Name: "beta", Type: config.TypeGroq, Weight: 60},
	}
	a := &echoProvider{name: "alpha"}
	b := &echoProvider{name: "beta"}
	o := newTestOrchestrator(t, cfg, WithProviders(a, b))

	o.Query(context.Background(), synFlood("10.0.0.5", 20), "status?")

	descriptors := o.Providers()
	require.Len(t, descriptors, 2)

	var total uint64
	for _, d := range descriptors {
		assert.True(t, d.Alive)
		total += d.UsageCount
		switch d.Name {
		case "alpha":
			assert.Equal(t, 40, d.Weight)
		case "beta":
			assert.Equal(t, 60, d.Weight)
		default:
			t.Fatalf("unexpected descriptor %q", d.Name)
		}
	}
	assert.Greater(t, total, uint64(0))
}

func TestSuggestedQueriesIsStable(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), WithProviders())
	first := o.SuggestedQueries()
	assert.NotEmpty(t, first)
	assert.Equal(t, first, o.SuggestedQueries())
}
