package analysis

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/aman-jaglan/CI-Code-Companion-sub001/internal/agent"
)

// Coordinator executes agents with per-agent deadlines and a global
// concurrency limit shared across all in-flight requests.
type Coordinator struct {
	registry *agent.Registry
	stats    *agent.StatsTracker
	sem      *semaphore.Weighted
}

// NewCoordinator creates a coordinator. maxConcurrent bounds concurrent
// agent invocations process-wide; requests beyond the limit queue until
// a slot frees.
func NewCoordinator(registry *agent.Registry, stats *agent.StatsTracker, maxConcurrent int) *Coordinator {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Coordinator{
		registry: registry,
		stats:    stats,
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// RunSingle invokes exactly one agent under its configured deadline.
// A deadline expiry surfaces as ErrAgentTimeout and an internal failure
// as ErrAgentExecution; both propagate directly to the caller.
func (c *Coordinator) RunSingle(ctx context.Context, req agent.Request, agentID string) (*agent.Result, error) {
	return c.invoke(ctx, req, agentID)
}

// RunFanOut invokes the given agents concurrently, each under its own
// independent deadline. One agent's timeout or failure is captured in
// the error map and neither cancels nor blocks its siblings.
//
// If the caller cancels ctx, cancellation propagates to all outstanding
// invocations; results that already completed are preserved.
func (c *Coordinator) RunFanOut(ctx context.Context, req agent.Request, agentIDs []string) (map[string]*agent.Result, map[string]error) {
	results := make(map[string]*agent.Result, len(agentIDs))
	failures := make(map[string]error)

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, agentID := range agentIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			res, err := c.invoke(ctx, req, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[id] = err
				return
			}
			results[id] = res
		}(agentID)
	}

	wg.Wait()
	return results, failures
}

// invoke runs one agent: acquire a concurrency slot, resolve the handle,
// apply the agent's deadline, execute, and record stats.
func (c *Coordinator) invoke(ctx context.Context, req agent.Request, agentID string) (*agent.Result, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		// Caller cancelled while queued; nothing was invoked.
		return nil, err
	}
	defer c.sem.Release(1)

	handle, err := c.registry.Get(agentID)
	if err != nil {
		return nil, err
	}

	desc, _ := c.registry.Descriptor(agentID)
	timeout := desc.Timeout

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	startTime := time.Now()
	result, err := handle.Analyze(callCtx, req.FilePath, req.Content, req.Context)
	latency := time.Since(startTime)

	if err != nil {
		c.stats.Record(agentID, latency, false)
		switch {
		case ctx.Err() != nil:
			// The overall request was cancelled; propagate the
			// cancellation rather than blaming the agent.
			return nil, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			return nil, agent.NewTimeoutError(agentID, timeout.Seconds())
		default:
			return nil, agent.NewExecutionError(agentID, err)
		}
	}

	c.stats.Record(agentID, latency, true)
	result.ExecutionTime = latency
	return result, nil
}
