// Package analysis contains the multi-agent analysis core: the execution
// coordinator, the result aggregator, and the orchestrator that composes
// routing, caching, execution, and aggregation behind one request/response
// contract.
package analysis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/aman-jaglan/CI-Code-Companion-sub001/internal/agent"
	"github.com/aman-jaglan/CI-Code-Companion-sub001/internal/cache"
	"github.com/aman-jaglan/CI-Code-Companion-sub001/internal/config"
	"github.com/aman-jaglan/CI-Code-Companion-sub001/internal/metrics"
)

// Response is the public result contract of the orchestrator.
type Response struct {
	OperationID          string            `json:"operation_id"`
	FilePath             string            `json:"file_path"`
	AgentsUsed           []string          `json:"agents_used"`
	Findings             []agent.Finding   `json:"findings"`
	ConfidenceScore      float64           `json:"confidence_score"`
	ExecutionTimeSeconds float64           `json:"execution_time_seconds"`
	AgentErrors          map[string]string `json:"agent_errors,omitempty"`
	Success              bool              `json:"success"`
}

// Orchestrator composes router, cache, coordinator, and aggregator into
// the public analysis API. It is explicitly constructed and owned by the
// caller; there is no process-wide instance.
type Orchestrator struct {
	cfg         *config.Config
	registry    *agent.Registry
	router      *agent.Router
	coordinator *Coordinator
	aggregator  Aggregator
	cache       *cache.Cache // nil when caching is disabled
	stats       *agent.StatsTracker
	sink        metrics.Sink
	ops         *operationTable
}

// Options carries the collaborators the orchestrator composes. Factory
// is required; everything else has a sensible default.
type Options struct {
	// Factory constructs agent handles from descriptors.
	Factory agent.Factory

	// Cache overrides the cache built from configuration. Mostly for
	// tests.
	Cache *cache.Cache

	// Sink receives fire-and-forget stats snapshots. Defaults to the
	// log sink.
	Sink metrics.Sink
}

// New builds an orchestrator from configuration: registers the enabled
// agent set, wires the router with the default agent, and sets up the
// cache when enabled. Construction fails fast on configuration errors.
func New(cfg *config.Config, opts Options) (*Orchestrator, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, agent.NewConfigurationError(err.Error(),
			"fix the configuration and restart")
	}

	registry, err := agent.NewRegistry(opts.Factory)
	if err != nil {
		return nil, err
	}
	for _, d := range cfg.Agents {
		if err := registry.Register(d, false); err != nil {
			return nil, fmt.Errorf("registering agent %s: %w", d.ID, err)
		}
	}

	router, err := agent.NewRouter(registry, cfg.DefaultAgentID)
	if err != nil {
		return nil, err
	}

	resultCache := opts.Cache
	if resultCache == nil && cfg.CacheEnabled {
		var cacheOpts []cache.Option
		if cfg.CachePath != "" {
			store, err := cache.NewSQLiteStore(cfg.CachePath)
			if err != nil {
				// A broken backing store downgrades to in-memory
				// caching; cache failures are never fatal.
				log.Printf("[ORCHESTRATOR] cache store unavailable, using in-memory cache: %v", err)
			} else {
				cacheOpts = append(cacheOpts, cache.WithStore(store))
			}
		}
		resultCache = cache.New(cfg.CacheTTL, cacheOpts...)
	}

	sink := opts.Sink
	if sink == nil {
		sink = metrics.LogSink{}
	}

	stats := agent.NewStatsTracker()
	return &Orchestrator{
		cfg:         cfg,
		registry:    registry,
		router:      router,
		coordinator: NewCoordinator(registry, stats, cfg.MaxConcurrentOperations),
		cache:       resultCache,
		stats:       stats,
		sink:        sink,
		ops:         newOperationTable(),
	}, nil
}

// Registry exposes the agent registry for runtime registration.
func (o *Orchestrator) Registry() *agent.Registry {
	return o.registry
}

// Stats returns a copy of the per-agent stats.
func (o *Orchestrator) Stats() map[string]agent.Stats {
	return o.stats.Snapshot()
}

// Operations lists tracked operations.
func (o *Orchestrator) Operations() []Operation {
	return o.ops.list()
}

// Cancel cancels the tracked operation by id, propagating best-effort
// cancellation to its outstanding agent invocations. Results that
// already completed are preserved by the coordinator.
func (o *Orchestrator) Cancel(operationID string) bool {
	return o.ops.cancelOp(operationID)
}

// Close tears the orchestrator down, releasing the cache store.
func (o *Orchestrator) Close() error {
	if o.cache != nil {
		return o.cache.Close()
	}
	return nil
}

// Analyze runs one analysis request: route to an agent set, serve
// cached per-agent results, execute the rest under the concurrency
// limit, merge, cache, and respond.
func (o *Orchestrator) Analyze(ctx context.Context, req agent.Request) (*Response, error) {
	operationID := uuid.New().String()
	opCtx, cancelOp := context.WithCancel(ctx)
	defer cancelOp()

	o.ops.begin(operationID, req.FilePath, cancelOp)
	defer o.ops.finish(operationID)
	defer o.pushMetrics()

	agentIDs := o.selectAgents(req)
	single := len(agentIDs) == 1 && req.Mode != agent.ModeFanOut

	results := make(map[string]*agent.Result, len(agentIDs))
	failures := make(map[string]error)

	// Serve cache hits per (content, agent, context) key; stats count
	// hits as invocations too.
	var missing []string
	for _, agentID := range agentIDs {
		if o.cache == nil {
			missing = append(missing, agentID)
			continue
		}
		start := time.Now()
		if cached, ok := o.cache.Get(cache.Key(req.Content, agentID, req.Context)); ok {
			results[agentID] = cached
			o.stats.Record(agentID, time.Since(start), true)
			continue
		}
		missing = append(missing, agentID)
	}

	if single && len(missing) > 0 {
		result, err := o.coordinator.RunSingle(opCtx, req, missing[0])
		if err != nil {
			// No partial-success concept in single mode: the one
			// agent's failure propagates directly.
			return nil, err
		}
		results[missing[0]] = result
	} else if len(missing) > 0 {
		fresh, freshFailures := o.coordinator.RunFanOut(opCtx, req, missing)
		for id, result := range fresh {
			results[id] = result
		}
		for id, err := range freshFailures {
			failures[id] = err
		}
	}

	o.storeResults(req, results, missing)

	aggregated, err := o.aggregator.Merge(results, failures)
	if err != nil {
		return nil, err
	}

	return &Response{
		OperationID:          operationID,
		FilePath:             req.FilePath,
		AgentsUsed:           aggregated.AgentsUsed,
		Findings:             aggregated.Findings,
		ConfidenceScore:      aggregated.Confidence,
		ExecutionTimeSeconds: aggregated.ExecutionTime.Seconds(),
		AgentErrors:          aggregated.AgentErrors,
		Success:              true,
	}, nil
}

// InvalidateContent evicts every cached entry, used when an external
// signal reports repository content has changed. Returns the number of
// entries removed.
func (o *Orchestrator) InvalidateContent() int {
	if o.cache == nil {
		return 0
	}
	return o.cache.Clear(0)
}

// selectAgents resolves the agent set for a request: an explicit agent
// id bypasses routing, fan-out asks the router for every applicable
// agent, and single mode routes to the best match.
func (o *Orchestrator) selectAgents(req agent.Request) []string {
	if req.AgentID != "" {
		return []string{req.AgentID}
	}
	if req.Mode == agent.ModeFanOut {
		return o.router.Applicable(req.FilePath, req.Content)
	}
	return []string{o.router.Detect(req.FilePath, req.Content)}
}

// storeResults caches freshly computed results. Only ids in missing were
// actually executed; cached entries are not re-stored.
func (o *Orchestrator) storeResults(req agent.Request, results map[string]*agent.Result, missing []string) {
	if o.cache == nil {
		return
	}
	for _, agentID := range missing {
		if result, ok := results[agentID]; ok {
			o.cache.Put(cache.Key(req.Content, agentID, req.Context), result)
		}
	}
}

// pushMetrics sends a stats snapshot to the sink without blocking the
// request path. Sink errors are logged and discarded.
func (o *Orchestrator) pushMetrics() {
	snapshot := metrics.Snapshot{
		TakenAt: time.Now(),
		Agents:  o.stats.Snapshot(),
	}
	go func() {
		if err := o.sink.Push(snapshot); err != nil {
			log.Printf("[ORCHESTRATOR] metrics push failed (ignored): %v", err)
		}
	}()
}
