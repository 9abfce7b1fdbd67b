package agent

import (
	"context"
	"sync"
	"time"
)

// Handle is an instantiated agent, ready to analyze content. Handles are
// constructed lazily by the registry on first access and reused for the
// process lifetime.
type Handle interface {
	// Analyze runs the agent against the given content. The caller is
	// responsible for wrapping the call in a timeout; implementations
	// must honor ctx cancellation at the backend boundary.
	Analyze(ctx context.Context, filePath, content string, reqContext map[string]any) (*Result, error)

	// Capabilities returns what this handle can do. CapabilityAnalyze
	// is required; the registry rejects handles without it.
	Capabilities() []Capability
}

// Factory constructs a Handle from its descriptor. It is invoked at most
// once per agent id. Returning an error marks the agent unavailable for
// this access; construction is retried on the next Get.
type Factory func(d Descriptor) (Handle, error)

// Registry holds agent descriptors and their lazily-instantiated handles.
// Descriptor registration order is preserved and used by the router as
// the deterministic tie-break.
type Registry struct {
	factory Factory

	mu          sync.RWMutex
	descriptors map[string]Descriptor
	order       []string
	handles     map[string]Handle

	// Per-id construction locks so concurrent Gets of the same agent
	// build at most one handle without serializing unrelated agents.
	buildMu sync.Mutex
	builds  map[string]*sync.Mutex
}

// NewRegistry creates an empty registry backed by the given handle factory.
func NewRegistry(factory Factory) (*Registry, error) {
	if factory == nil {
		return nil, NewConfigurationError("registry requires a handle factory",
			"pass a Factory that constructs agent handles from descriptors")
	}
	return &Registry{
		factory:     factory,
		descriptors: make(map[string]Descriptor),
		handles:     make(map[string]Handle),
		builds:      make(map[string]*sync.Mutex),
	}, nil
}

// Register adds an agent descriptor. Registering an id that already
// exists fails unless overwrite is set; overwriting keeps the original
// registration position and discards any previously built handle.
func (r *Registry) Register(d Descriptor, overwrite bool) error {
	if d.ID == "" {
		return NewConfigurationError("agent descriptor has no id",
			"set a unique id on every agent descriptor")
	}
	if d.Timeout <= 0 {
		d.Timeout = defaultAgentTimeout
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.descriptors[d.ID]; exists {
		if !overwrite {
			return NewConfigurationError("agent "+d.ID+" is already registered",
				"use overwrite to replace an existing agent",
				"or unregister it first")
		}
		delete(r.handles, d.ID)
	} else {
		r.order = append(r.order, d.ID)
	}
	r.descriptors[d.ID] = d
	return nil
}

// Unregister removes an agent and its handle. Removing an unknown id is
// a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.descriptors[id]; !exists {
		return
	}
	delete(r.descriptors, id)
	delete(r.handles, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// defaultAgentTimeout is applied when a descriptor carries no timeout.
const defaultAgentTimeout = 120 * time.Second

// Get returns the handle for id, constructing it on first access.
//
// Construction uses double-checked locking: a fast read-locked presence
// check, then a per-id exclusive lock, then a re-check before invoking
// the factory. This guarantees at most one handle per id under
// concurrent access without a global construction lock.
func (r *Registry) Get(id string) (Handle, error) {
	r.mu.RLock()
	d, registered := r.descriptors[id]
	h, built := r.handles[id]
	r.mu.RUnlock()

	if !registered {
		return nil, NewUnavailableError(id,
			"register the agent before requesting it",
			"check the agent id for typos")
	}
	if !d.Enabled {
		return nil, NewUnavailableError(id, "enable the agent in configuration")
	}
	if built {
		return h, nil
	}

	lock := r.buildLock(id)
	lock.Lock()
	defer lock.Unlock()

	// Re-check under the per-id lock: another goroutine may have built
	// (or unregistered) the agent while we waited.
	r.mu.RLock()
	d, registered = r.descriptors[id]
	h, built = r.handles[id]
	r.mu.RUnlock()
	if !registered {
		return nil, NewUnavailableError(id)
	}
	if built {
		return h, nil
	}

	h, err := r.factory(d)
	if err != nil {
		return nil, &Error{
			Kind:    ErrAgentUnavailable,
			Message: "constructing agent " + id,
			Err:     err,
			Remediation: []string{
				"verify the agent's backend dependencies are satisfied",
			},
		}
	}
	if err := validateHandle(id, h); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.handles[id] = h
	r.mu.Unlock()
	return h, nil
}

// validateHandle checks the capability contract on a freshly built handle.
func validateHandle(id string, h Handle) error {
	for _, c := range h.Capabilities() {
		if c == CapabilityAnalyze {
			return nil
		}
	}
	return NewConfigurationError("agent "+id+" does not expose the analyze capability",
		"every agent handle must support analysis",
		"declare capabilities: [analyze] on the agent")
}

func (r *Registry) buildLock(id string) *sync.Mutex {
	r.buildMu.Lock()
	defer r.buildMu.Unlock()
	lock, ok := r.builds[id]
	if !ok {
		lock = &sync.Mutex{}
		r.builds[id] = lock
	}
	return lock
}

// Descriptor returns the registered descriptor for id.
func (r *Registry) Descriptor(id string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[id]
	return d, ok
}

// IsAvailable reports whether id is registered and enabled.
func (r *Registry) IsAvailable(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[id]
	return ok && d.Enabled
}

// ListAvailable returns the ids of all enabled agents in registration
// order.
func (r *Registry) ListAvailable() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if r.descriptors[id].Enabled {
			ids = append(ids, id)
		}
	}
	return ids
}

// Descriptors returns every registered descriptor in registration order,
// including disabled agents.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.descriptors[id])
	}
	return out
}
