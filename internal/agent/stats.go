package agent

import (
	"sync"
	"time"
)

// HealthState classifies an agent's recent reliability.
type HealthState string

const (
	HealthHealthy     HealthState = "healthy"
	HealthDegraded    HealthState = "degraded"
	HealthUnavailable HealthState = "unavailable"
)

// Stats tracks per-agent invocation counters for the process lifetime.
// AverageResponseTime is maintained as an incremental mean so no history
// needs to be retained.
type Stats struct {
	TotalRequests       int64         `json:"total_requests"`
	SuccessfulRequests  int64         `json:"successful_requests"`
	FailedRequests      int64         `json:"failed_requests"`
	AverageResponseTime time.Duration `json:"average_response_time"`
	LastUsed            time.Time     `json:"last_used,omitempty"`
}

// Health derives the agent's health from its failure ratio. An agent with
// no traffic is healthy; at 50% failures it is degraded, and at 90% it is
// considered unavailable.
func (s Stats) Health() HealthState {
	if s.TotalRequests == 0 {
		return HealthHealthy
	}
	ratio := float64(s.FailedRequests) / float64(s.TotalRequests)
	switch {
	case ratio >= 0.9:
		return HealthUnavailable
	case ratio >= 0.5:
		return HealthDegraded
	default:
		return HealthHealthy
	}
}

// StatsTracker records invocation outcomes per agent. Each agent has its
// own lock so hot agents never contend with each other; the outer lock
// only guards the map itself.
type StatsTracker struct {
	mu     sync.RWMutex
	agents map[string]*agentStats
}

type agentStats struct {
	mu    sync.Mutex
	stats Stats
}

// NewStatsTracker creates an empty tracker.
func NewStatsTracker() *StatsTracker {
	return &StatsTracker{agents: make(map[string]*agentStats)}
}

// Record updates counters for one invocation. Called after every
// invocation regardless of cache hit or miss.
func (t *StatsTracker) Record(agentID string, latency time.Duration, success bool) {
	entry := t.entry(agentID)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	s := &entry.stats
	s.TotalRequests++
	if success {
		s.SuccessfulRequests++
	} else {
		s.FailedRequests++
	}
	// Incremental mean: avg' = (avg·(n-1) + latest) / n
	n := s.TotalRequests
	s.AverageResponseTime = time.Duration(
		(int64(s.AverageResponseTime)*(n-1) + int64(latency)) / n,
	)
	s.LastUsed = time.Now()
}

// Get returns a copy of the stats for one agent.
func (t *StatsTracker) Get(agentID string) Stats {
	t.mu.RLock()
	entry, ok := t.agents[agentID]
	t.mu.RUnlock()
	if !ok {
		return Stats{}
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.stats
}

// Snapshot returns a copy of all per-agent stats.
func (t *StatsTracker) Snapshot() map[string]Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Stats, len(t.agents))
	for id, entry := range t.agents {
		entry.mu.Lock()
		out[id] = entry.stats
		entry.mu.Unlock()
	}
	return out
}

func (t *StatsTracker) entry(agentID string) *agentStats {
	t.mu.RLock()
	entry, ok := t.agents[agentID]
	t.mu.RUnlock()
	if ok {
		return entry
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if entry, ok = t.agents[agentID]; ok {
		return entry
	}
	entry = &agentStats{}
	t.agents[agentID] = entry
	return entry
}
