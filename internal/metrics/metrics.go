// Package metrics defines the optional sink that receives per-agent
// stats snapshots. Pushes are fire-and-forget: a slow or unavailable
// sink never fails an analysis request.
package metrics

import (
	"log"
	"time"

	"github.com/aman-jaglan/CI-Code-Companion-sub001/internal/agent"
)

// Snapshot is a point-in-time copy of all per-agent stats.
type Snapshot struct {
	TakenAt time.Time
	Agents  map[string]agent.Stats
}

// Sink receives stats snapshots. Implementations must not block for
// long; the orchestrator pushes from a detached goroutine and discards
// errors after logging them.
type Sink interface {
	Push(snapshot Snapshot) error
}

// LogSink writes snapshots to the process log. It is the default sink.
type LogSink struct{}

var _ Sink = LogSink{}

// Push implements Sink.
func (LogSink) Push(snapshot Snapshot) error {
	for id, s := range snapshot.Agents {
		log.Printf("[METRICS] agent=%s total=%d ok=%d failed=%d avg=%v health=%s",
			id, s.TotalRequests, s.SuccessfulRequests, s.FailedRequests,
			s.AverageResponseTime.Round(time.Millisecond), s.Health())
	}
	return nil
}
