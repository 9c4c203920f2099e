package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"NetSage/internal/model"
	"NetSage/internal/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeProvider counts calls and answers from a script indexed by call
// number. An optional delay simulates a slow backend and honors ctx.
type fakeProvider struct {
	name   string
	delay  time.Duration
	script func(call int) (string, error)

	mu    sync.Mutex
	calls int
}

func (p *fakeProvider) Query(ctx context.Context, prompt, evidence string) (string, error) {
	p.mu.Lock()
	call := p.calls
	p.calls++
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return p.script(call)
}

func (p *fakeProvider) TestConnection(context.Context) bool { return true }
func (p *fakeProvider) Name() string                        { return p.name }
func (p *fakeProvider) MaxContextSize() int                 { return 1 << 20 }

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func answering(text string) func(int) (string, error) {
	return func(int) (string, error) { return text, nil }
}

// queueSelector hands out providers in a fixed order, one per Pick.
type queueSelector struct {
	mu    sync.Mutex
	queue []model.Provider
	usage map[string]uint64
}

func newQueueSelector(providers ...model.Provider) *queueSelector {
	return &queueSelector{queue: providers, usage: make(map[string]uint64)}
}

func (s *queueSelector) Pick() (model.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, errors.New("selector exhausted")
	}
	p := s.queue[0]
	s.queue = s.queue[1:]
	s.usage[p.Name()]++
	return p, nil
}

func (s *queueSelector) Usage() map[string]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]uint64, len(s.usage))
	for k, v := range s.usage {
		out[k] = v
	}
	return out
}

func units(n int) []*model.WorkUnit {
	out := make([]*model.WorkUnit, n)
	for i := range out {
		out[i] = &model.WorkUnit{
			Index:     i,
			Total:     n,
			Summaries: []model.ClusterSummary{{Text: "evidence"}},
			ByteSize:  8,
		}
	}
	return out
}

func fastRetry(attempts int) *RetryPolicy {
	return NewRetryPolicy(
		WithMaxAttempts(attempts),
		WithBaseDelay(time.Millisecond),
		WithMaxDelay(5*time.Millisecond),
		WithJitter(false),
	)
}

func TestDispatchAllUnitsSucceed(t *testing.T) {
	a := &fakeProvider{name: "a", script: answering("from a")}
	b := &fakeProvider{name: "b", script: answering("from b")}
	d := NewDispatcher(newQueueSelector(a, b), fastRetry(3), time.Second, nil, zaptest.NewLogger(t))

	results := d.Dispatch(context.Background(), units(2), "what is happening?")

	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.Success)
		assert.Equal(t, 1, r.Attempts)
		assert.NotEmpty(t, r.Text)
	}
}

func TestDispatchAuthFailureIsNotRetried(t *testing.T) {
	// One provider rejects its credential; the dispatcher must not burn
	// retries on it, and the other units' answers must survive.
	bad := &fakeProvider{name: "bad", script: func(int) (string, error) {
		return "", &provider.AuthenticationError{Provider: "bad", Detail: "invalid key"}
	}}
	b := &fakeProvider{name: "b", script: answering("from b")}
	c := &fakeProvider{name: "c", script: answering("from c")}

	d := NewDispatcher(newQueueSelector(bad, b, c), fastRetry(3), time.Second, nil, zaptest.NewLogger(t))
	results := d.Dispatch(context.Background(), units(3), "prompt")

	require.Len(t, results, 3)
	var failed, succeeded int
	for _, r := range results {
		if r.Success {
			succeeded++
			continue
		}
		failed++
		assert.Equal(t, string(provider.KindAuth), r.ErrKind)
		assert.Equal(t, 1, r.Attempts, "authentication failures must not be retried")
		assert.Equal(t, "bad", r.Provider)
	}
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, bad.callCount())
}

func TestDispatchTimeoutExhaustsAttemptsWithoutBlockingOthers(t *testing.T) {
	slow := &fakeProvider{name: "slow", delay: 250 * time.Millisecond, script: answering("late")}
	fast := &fakeProvider{name: "fast", script: answering("quick")}

	d := NewDispatcher(newQueueSelector(slow, fast), fastRetry(3), 20*time.Millisecond, nil, zaptest.NewLogger(t))

	start := time.Now()
	results := d.Dispatch(context.Background(), units(2), "prompt")
	elapsed := time.Since(start)

	require.Len(t, results, 2)
	byProvider := make(map[string]model.UnitResult, 2)
	for _, r := range results {
		byProvider[r.Provider] = r
	}

	slowResult := byProvider["slow"]
	assert.False(t, slowResult.Success)
	assert.Equal(t, string(provider.KindTimeout), slowResult.ErrKind)
	assert.Equal(t, 3, slowResult.Attempts)

	assert.True(t, byProvider["fast"].Success)

	// Both units ran concurrently: total time tracks the slow unit's
	// three attempts, not the sum of both units.
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestDispatchRateLimitRetriesThenSucceeds(t *testing.T) {
	flaky := &fakeProvider{name: "flaky", script: func(call int) (string, error) {
		if call < 2 {
			return "", &provider.RateLimitedError{Provider: "flaky", Detail: "429"}
		}
		return "finally", nil
	}}

	d := NewDispatcher(newQueueSelector(flaky), fastRetry(3), time.Second, nil, zaptest.NewLogger(t))
	results := d.Dispatch(context.Background(), units(1), "prompt")

	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, "finally", results[0].Text)
	assert.Equal(t, 3, results[0].Attempts)
}

func TestDispatchOverallDeadlineMarksPendingUnitsFailed(t *testing.T) {
	slow := &fakeProvider{name: "slow", delay: time.Second, script: answering("late")}
	d := NewDispatcher(newQueueSelector(slow), fastRetry(3), time.Second, nil, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	results := d.Dispatch(ctx, units(1), "prompt")

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, string(provider.KindTimeout), results[0].ErrKind)
}

func TestDispatchSelectorFailureProducesFailedUnit(t *testing.T) {
	d := NewDispatcher(newQueueSelector(), fastRetry(3), time.Second, nil, zaptest.NewLogger(t))
	results := d.Dispatch(context.Background(), units(1), "prompt")

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, "no_provider", results[0].ErrKind)
}

func TestRetryPolicyStopsOnNotFound(t *testing.T) {
	p := fastRetry(5)
	calls := 0
	attempts, err := p.Execute(context.Background(), func(context.Context) error {
		calls++
		return &provider.EndpointNotFoundError{Provider: "x", Detail: "no such model"}
	}, nil)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, attempts)
	var notFound *provider.EndpointNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestRetryPolicyObservesRetries(t *testing.T) {
	p := fastRetry(4)
	var observed []string
	calls := 0
	attempts, err := p.Execute(context.Background(), func(context.Context) error {
		calls++
		return &provider.NetworkError{Provider: "x", Detail: "connection reset"}
	}, func(err error) {
		observed = append(observed, string(provider.KindOf(err)))
	})

	assert.Equal(t, 4, calls)
	assert.Equal(t, 4, attempts)
	require.Error(t, err)
	// The final failure is not a retry, so one fewer observation than
	// attempts.
	assert.Len(t, observed, 3)
	for _, kind := range observed {
		assert.Equal(t, string(provider.KindNetwork), kind)
	}
}

func TestRetryPolicyHonorsContext(t *testing.T) {
	p := NewRetryPolicy(WithMaxAttempts(5), WithBaseDelay(time.Hour), WithJitter(false))
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := p.Execute(ctx, func(context.Context) error {
			calls++
			return &provider.NetworkError{Provider: "x", Detail: "down"}
		}, nil)
		assert.Error(t, err)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Execute did not return after context cancellation")
	}
	assert.Equal(t, 1, calls, "cancellation during backoff must stop further attempts")
}

func TestRetryDelayGrowsAndCaps(t *testing.T) {
	p := NewRetryPolicy(
		WithMaxAttempts(10),
		WithBaseDelay(100*time.Millisecond),
		WithMaxDelay(time.Second),
		WithJitter(false),
	)

	assert.Equal(t, 100*time.Millisecond, p.delay(0))
	assert.Equal(t, 200*time.Millisecond, p.delay(1))
	assert.Equal(t, 400*time.Millisecond, p.delay(2))
	assert.Equal(t, 800*time.Millisecond, p.delay(3))
	assert.Equal(t, time.Second, p.delay(4), "delay must cap at max")
	assert.Equal(t, time.Second, p.delay(9))
}

func TestRetryDelayJitterStaysWithinBounds(t *testing.T) {
	p := NewRetryPolicy(
		WithMaxAttempts(3),
		WithBaseDelay(100*time.Millisecond),
		WithMaxDelay(time.Second),
		WithJitter(true),
	)

	for i := 0; i < 100; i++ {
		d := p.delay(1) // 200ms before jitter
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.Less(t, d, 300*time.Millisecond)
	}
}

// capturingProvider records the last prompt and evidence it was given.
type capturingProvider struct {
	fakeProvider
	mu       sync.Mutex
	prompt   string
	evidence string
}

func (p *capturingProvider) Query(ctx context.Context, prompt, evidence string) (string, error) {
	p.mu.Lock()
	p.prompt = prompt
	p.evidence = evidence
	p.mu.Unlock()
	return p.fakeProvider.Query(ctx, prompt, evidence)
}

func TestEvidenceReachesProvider(t *testing.T) {
	p := &capturingProvider{fakeProvider: fakeProvider{name: "p", script: answering("ok")}}
	d := NewDispatcher(newQueueSelector(p), fastRetry(1), time.Second, nil, zaptest.NewLogger(t))

	unit := &model.WorkUnit{
		Index:     0,
		Total:     1,
		Summaries: []model.ClusterSummary{{Text: "10.0.0.1 -> 10.0.0.2: 4 records"}},
	}
	d.Dispatch(context.Background(), []*model.WorkUnit{unit}, "who is scanning?")

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, "who is scanning?", p.prompt)
	assert.True(t, strings.Contains(p.evidence, "10.0.0.1 -> 10.0.0.2"))
}
