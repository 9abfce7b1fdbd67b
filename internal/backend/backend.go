// Package backend provides analysis backends: the opaque asynchronous
// collaborators that perform the actual analysis computation for an
// agent. The coordinator wraps every Invoke call in a timeout and
// converts any failure into the analysis error taxonomy.
package backend

import (
	"context"
	"fmt"

	"github.com/aman-jaglan/CI-Code-Companion-sub001/internal/agent"
)

// Backend performs the analysis computation for one agent. It must honor
// ctx cancellation, since the caller enforces deadlines by cancelling it.
type Backend interface {
	Invoke(ctx context.Context, filePath, content string, reqContext map[string]any) (*agent.Result, error)
}

// AnalysisAgent adapts a Backend into an agent.Handle. Capabilities come
// from the descriptor; descriptors that declare none default to analyze
// only.
type AnalysisAgent struct {
	desc    agent.Descriptor
	backend Backend
}

var _ agent.Handle = (*AnalysisAgent)(nil)

// NewAnalysisAgent wires a descriptor to its backend.
func NewAnalysisAgent(desc agent.Descriptor, b Backend) (*AnalysisAgent, error) {
	if b == nil {
		return nil, fmt.Errorf("agent %s: backend is nil", desc.ID)
	}
	return &AnalysisAgent{desc: desc, backend: b}, nil
}

// Analyze implements agent.Handle.
func (a *AnalysisAgent) Analyze(ctx context.Context, filePath, content string, reqContext map[string]any) (*agent.Result, error) {
	return a.backend.Invoke(ctx, filePath, content, reqContext)
}

// Capabilities implements agent.Handle.
func (a *AnalysisAgent) Capabilities() []agent.Capability {
	if len(a.desc.Capabilities) == 0 {
		return []agent.Capability{agent.CapabilityAnalyze}
	}
	return a.desc.Capabilities
}
