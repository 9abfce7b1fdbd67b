package analysis

import (
	"sort"
	"time"

	"github.com/aman-jaglan/CI-Code-Companion-sub001/internal/agent"
)

// Aggregator merges per-agent results into one deduplicated result.
//
// Successful results are iterated in sorted agent-id order, so the
// merged set is stable no matter which agent finished first. Because
// dedup keys ignore the reporting agent, merging is commutative:
// merging [A,B] and [B,A] yields the same finding set.
type Aggregator struct{}

// Merge combines results and failures from one fan-out (or single)
// execution. Confidence is the mean across agents that produced a
// result; execution time is the max across those agents, reflecting
// parallel wall-clock rather than summed cost.
//
// If every agent failed, Merge returns ErrAggregation carrying the full
// per-agent error detail instead of an empty success.
func (Aggregator) Merge(results map[string]*agent.Result, failures map[string]error) (*agent.AggregatedResult, error) {
	agentErrors := make(map[string]string, len(failures))
	for id, err := range failures {
		agentErrors[id] = err.Error()
	}

	if len(results) == 0 {
		if len(agentErrors) == 0 {
			return nil, agent.NewAggregationError("no applicable agent for request", nil)
		}
		return nil, agent.NewAggregationError("all agents failed", agentErrors)
	}

	successIDs := make([]string, 0, len(results))
	for id := range results {
		successIDs = append(successIDs, id)
	}
	sort.Strings(successIDs)

	var (
		merged        []agent.Finding
		seen          = make(map[string]bool)
		confidenceSum float64
		maxDuration   time.Duration
	)

	for _, id := range successIDs {
		result := results[id]
		for _, finding := range result.Findings {
			key := finding.DedupKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			finding.SourceAgent = id
			merged = append(merged, finding)
		}
		confidenceSum += result.Confidence
		if result.ExecutionTime > maxDuration {
			maxDuration = result.ExecutionTime
		}
	}

	agentsUsed := make([]string, 0, len(results)+len(failures))
	agentsUsed = append(agentsUsed, successIDs...)
	for id := range failures {
		agentsUsed = append(agentsUsed, id)
	}
	sort.Strings(agentsUsed)

	return &agent.AggregatedResult{
		Findings:      merged,
		Confidence:    confidenceSum / float64(len(results)),
		ExecutionTime: maxDuration,
		AgentsUsed:    agentsUsed,
		AgentErrors:   agentErrors,
	}, nil
}
