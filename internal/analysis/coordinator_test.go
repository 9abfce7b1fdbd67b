package analysis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-jaglan/CI-Code-Companion-sub001/internal/agent"
)

// stubHandle simulates an agent backend with configurable latency and
// outcome.
type stubHandle struct {
	delay    time.Duration
	findings []agent.Finding
	err      error
	calls    atomic.Int64
}

func (h *stubHandle) Analyze(ctx context.Context, filePath, content string, reqContext map[string]any) (*agent.Result, error) {
	h.calls.Add(1)
	if h.delay > 0 {
		select {
		case <-time.After(h.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if h.err != nil {
		return nil, h.err
	}
	return &agent.Result{Findings: h.findings, Confidence: 0.9}, nil
}

func (h *stubHandle) Capabilities() []agent.Capability {
	return []agent.Capability{agent.CapabilityAnalyze}
}

// stubRegistry builds a registry whose factory resolves handles by agent
// id from the given map.
func stubRegistry(t *testing.T, handles map[string]*stubHandle, timeout time.Duration) *agent.Registry {
	t.Helper()
	factory := func(d agent.Descriptor) (agent.Handle, error) {
		h, ok := handles[d.ID]
		if !ok {
			return nil, errors.New("no stub for " + d.ID)
		}
		return h, nil
	}
	r, err := agent.NewRegistry(factory)
	require.NoError(t, err)
	for id := range handles {
		require.NoError(t, r.Register(agent.Descriptor{ID: id, Enabled: true, Timeout: timeout}, false))
	}
	return r
}

func TestRunSingleSuccess(t *testing.T) {
	handles := map[string]*stubHandle{
		"python_code": {findings: []agent.Finding{{Kind: agent.KindIssue, Category: "style", Line: 1, Description: "x"}}},
	}
	c := NewCoordinator(stubRegistry(t, handles, time.Second), agent.NewStatsTracker(), 5)

	res, err := c.RunSingle(context.Background(), agent.Request{Content: "x = 1"}, "python_code")
	require.NoError(t, err)
	assert.Len(t, res.Findings, 1)
	assert.Greater(t, res.ExecutionTime, time.Duration(0))
}

func TestRunSingleTimeout(t *testing.T) {
	handles := map[string]*stubHandle{
		"slow": {delay: 500 * time.Millisecond},
	}
	stats := agent.NewStatsTracker()
	c := NewCoordinator(stubRegistry(t, handles, 50*time.Millisecond), stats, 5)

	start := time.Now()
	_, err := c.RunSingle(context.Background(), agent.Request{}, "slow")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, agent.ErrAgentTimeout))
	assert.Less(t, elapsed, 400*time.Millisecond, "the deadline must cut off the slow agent")

	s := stats.Get("slow")
	assert.Equal(t, int64(1), s.FailedRequests)
}

func TestRunSingleExecutionError(t *testing.T) {
	cause := errors.New("backend 500")
	handles := map[string]*stubHandle{
		"broken": {err: cause},
	}
	c := NewCoordinator(stubRegistry(t, handles, time.Second), agent.NewStatsTracker(), 5)

	_, err := c.RunSingle(context.Background(), agent.Request{}, "broken")
	require.Error(t, err)
	assert.True(t, errors.Is(err, agent.ErrAgentExecution))
	assert.True(t, errors.Is(err, cause))
}

func TestRunSingleUnknownAgent(t *testing.T) {
	c := NewCoordinator(stubRegistry(t, nil, time.Second), agent.NewStatsTracker(), 5)

	_, err := c.RunSingle(context.Background(), agent.Request{}, "missing")
	assert.True(t, errors.Is(err, agent.ErrAgentUnavailable))
}

func TestRunFanOutIsolatesFailures(t *testing.T) {
	handles := map[string]*stubHandle{
		"fast": {findings: []agent.Finding{{Kind: agent.KindIssue, Category: "style", Line: 1, Description: "a"}}},
		"slow": {delay: 500 * time.Millisecond},
		"ok":   {findings: []agent.Finding{{Kind: agent.KindSuggestion, Category: "perf", Description: "b"}}},
	}
	c := NewCoordinator(stubRegistry(t, handles, 50*time.Millisecond), agent.NewStatsTracker(), 5)

	results, failures := c.RunFanOut(context.Background(), agent.Request{}, []string{"fast", "slow", "ok"})

	assert.Len(t, results, 2)
	assert.Contains(t, results, "fast")
	assert.Contains(t, results, "ok")
	require.Len(t, failures, 1)
	assert.True(t, errors.Is(failures["slow"], agent.ErrAgentTimeout))
}

func TestRunFanOutIndependentDeadlines(t *testing.T) {
	// Each agent gets its own deadline from its descriptor, so a slow
	// sibling never eats into another agent's budget.
	handles := map[string]*stubHandle{
		"a": {delay: 30 * time.Millisecond},
		"b": {delay: 30 * time.Millisecond},
		"c": {delay: 30 * time.Millisecond},
	}
	c := NewCoordinator(stubRegistry(t, handles, 200*time.Millisecond), agent.NewStatsTracker(), 5)

	results, failures := c.RunFanOut(context.Background(), agent.Request{}, []string{"a", "b", "c"})
	assert.Len(t, results, 3)
	assert.Empty(t, failures)
}

func TestRunFanOutCancellationPreservesCompleted(t *testing.T) {
	handles := map[string]*stubHandle{
		"fast": {},
		"slow": {delay: 2 * time.Second},
	}
	c := NewCoordinator(stubRegistry(t, handles, 5*time.Second), agent.NewStatsTracker(), 5)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	results, failures := c.RunFanOut(ctx, agent.Request{}, []string{"fast", "slow"})

	assert.Contains(t, results, "fast", "completed results survive cancellation")
	require.Contains(t, failures, "slow")
	assert.True(t, errors.Is(failures["slow"], context.Canceled))
}

func TestConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int64
	handles := make(map[string]*stubHandle)
	ids := []string{"a", "b", "c", "d", "e", "f"}
	for _, id := range ids {
		handles[id] = &stubHandle{delay: 50 * time.Millisecond}
	}

	factory := func(d agent.Descriptor) (agent.Handle, error) {
		return trackedHandle{inner: handles[d.ID], inFlight: &inFlight, peak: &peak}, nil
	}
	r, err := agent.NewRegistry(factory)
	require.NoError(t, err)
	for _, id := range ids {
		require.NoError(t, r.Register(agent.Descriptor{ID: id, Enabled: true, Timeout: time.Second}, false))
	}

	c := NewCoordinator(r, agent.NewStatsTracker(), 2)
	results, failures := c.RunFanOut(context.Background(), agent.Request{}, ids)

	assert.Len(t, results, len(ids))
	assert.Empty(t, failures)
	assert.LessOrEqual(t, peak.Load(), int64(2), "no more than maxConcurrent agents may run at once")
}

// trackedHandle wraps a stubHandle and records concurrent execution depth.
type trackedHandle struct {
	inner    *stubHandle
	inFlight *atomic.Int64
	peak     *atomic.Int64
}

func (h trackedHandle) Analyze(ctx context.Context, filePath, content string, reqContext map[string]any) (*agent.Result, error) {
	depth := h.inFlight.Add(1)
	defer h.inFlight.Add(-1)
	for {
		current := h.peak.Load()
		if depth <= current || h.peak.CompareAndSwap(current, depth) {
			break
		}
	}
	return h.inner.Analyze(ctx, filePath, content, reqContext)
}

func (h trackedHandle) Capabilities() []agent.Capability {
	return h.inner.Capabilities()
}
