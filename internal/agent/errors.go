package agent

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for the analysis error taxonomy. Callers classify
// failures with errors.Is against these; the concrete *Error value
// carries the message and remediation suggestions.
var (
	// ErrConfiguration indicates invalid or missing agent/registry
	// configuration. Fatal at construction time.
	ErrConfiguration = errors.New("configuration error")

	// ErrAgentUnavailable indicates the requested agent is not
	// registered or is disabled.
	ErrAgentUnavailable = errors.New("agent unavailable")

	// ErrAgentTimeout indicates a single agent exceeded its deadline.
	ErrAgentTimeout = errors.New("agent timeout")

	// ErrAgentExecution indicates the agent failed during execution.
	ErrAgentExecution = errors.New("agent execution error")

	// ErrAggregation indicates fan-out found no applicable agent, or
	// every applicable agent failed.
	ErrAggregation = errors.New("aggregation error")

	// ErrCache indicates a cache failure. Never fatal: the caller
	// bypasses the cache and proceeds uncached.
	ErrCache = errors.New("cache error")
)

// Error is the structured error returned at every API boundary of the
// analysis core. It wraps one of the sentinel errors above so callers can
// use errors.Is, and carries zero or more remediation suggestions that
// callers surface in user-facing messaging.
type Error struct {
	Kind        error // one of the sentinels above
	Message     string
	Remediation []string
	Err         error // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is reports whether target matches this error's kind, so both the
// sentinel and any wrapped cause satisfy errors.Is.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Suggestions returns the remediation suggestions attached to err, if it
// is (or wraps) an *Error.
func Suggestions(err error) []string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Remediation
	}
	return nil
}

// Detail renders the error with its remediation suggestions, one per line.
func Detail(err error) string {
	var ae *Error
	if !errors.As(err, &ae) {
		return err.Error()
	}
	var b strings.Builder
	b.WriteString(ae.Error())
	for _, s := range ae.Remediation {
		b.WriteString("\n  - ")
		b.WriteString(s)
	}
	return b.String()
}

// NewConfigurationError creates a configuration error with remediation
// suggestions.
func NewConfigurationError(msg string, remediation ...string) *Error {
	return &Error{Kind: ErrConfiguration, Message: msg, Remediation: remediation}
}

// NewUnavailableError creates an agent-unavailable error.
func NewUnavailableError(agentID string, remediation ...string) *Error {
	return &Error{
		Kind:        ErrAgentUnavailable,
		Message:     fmt.Sprintf("agent %q is not available", agentID),
		Remediation: remediation,
	}
}

// NewTimeoutError creates an agent-timeout error.
func NewTimeoutError(agentID string, timeoutSeconds float64) *Error {
	return &Error{
		Kind:    ErrAgentTimeout,
		Message: fmt.Sprintf("agent %q exceeded its %.0fs deadline", agentID, timeoutSeconds),
		Remediation: []string{
			"increase the agent's timeout_seconds setting",
			"retry with a smaller file or narrower context",
		},
	}
}

// NewExecutionError wraps a failure raised by an agent during execution.
func NewExecutionError(agentID string, err error) *Error {
	return &Error{
		Kind:    ErrAgentExecution,
		Message: fmt.Sprintf("agent %q failed", agentID),
		Err:     err,
		Remediation: []string{
			"check backend connectivity and credentials",
			"retry the request; transient backend failures are common",
		},
	}
}

// NewAggregationError creates an aggregation error carrying the full
// per-agent failure detail in its message.
func NewAggregationError(msg string, agentErrors map[string]string) *Error {
	if len(agentErrors) > 0 {
		ids := make([]string, 0, len(agentErrors))
		for id := range agentErrors {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		parts := make([]string, 0, len(ids))
		for _, id := range ids {
			parts = append(parts, fmt.Sprintf("%s: %s", id, agentErrors[id]))
		}
		msg = msg + " [" + strings.Join(parts, "; ") + "]"
	}
	return &Error{
		Kind:    ErrAggregation,
		Message: msg,
		Remediation: []string{
			"inspect the per-agent errors above",
			"retry the request once the failing agents recover",
		},
	}
}

// NewCacheError wraps a cache failure. Cache errors are logged and
// swallowed at the cache boundary, never surfaced to the caller.
func NewCacheError(msg string, err error) *Error {
	return &Error{Kind: ErrCache, Message: msg, Err: err}
}
