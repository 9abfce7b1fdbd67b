package analysis

import (
	"context"
	"sort"
	"sync"
	"time"
)

// OperationState tracks the lifecycle of one orchestrated request.
type OperationState string

const (
	OperationRunning   OperationState = "running"
	OperationCompleted OperationState = "completed"
	OperationCancelled OperationState = "cancelled"
)

// Operation describes one tracked analysis request.
type Operation struct {
	ID        string
	FilePath  string
	StartedAt time.Time
	State     OperationState
}

// operationTable tracks in-flight operations so callers can cancel them
// by id. Finished operations are retained briefly in their terminal
// state and pruned on the next begin.
type operationTable struct {
	mu  sync.Mutex
	ops map[string]*trackedOperation
}

type trackedOperation struct {
	info   Operation
	cancel context.CancelFunc
}

func newOperationTable() *operationTable {
	return &operationTable{ops: make(map[string]*trackedOperation)}
}

func (t *operationTable) begin(id, filePath string, cancel context.CancelFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Prune terminal operations from earlier requests.
	for existingID, op := range t.ops {
		if op.info.State != OperationRunning {
			delete(t.ops, existingID)
		}
	}

	t.ops[id] = &trackedOperation{
		info: Operation{
			ID:        id,
			FilePath:  filePath,
			StartedAt: time.Now(),
			State:     OperationRunning,
		},
		cancel: cancel,
	}
}

// finish marks the operation completed unless it was already cancelled.
func (t *operationTable) finish(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if op, ok := t.ops[id]; ok && op.info.State == OperationRunning {
		op.info.State = OperationCompleted
	}
}

// cancelOp transitions the operation to cancelled and fires its cancel
// function. Returns false for unknown or already-finished operations.
func (t *operationTable) cancelOp(id string) bool {
	t.mu.Lock()
	op, ok := t.ops[id]
	if !ok || op.info.State != OperationRunning {
		t.mu.Unlock()
		return false
	}
	op.info.State = OperationCancelled
	cancel := op.cancel
	t.mu.Unlock()

	cancel()
	return true
}

func (t *operationTable) list() []Operation {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Operation, 0, len(t.ops))
	for _, op := range t.ops {
		out = append(out, op.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}
