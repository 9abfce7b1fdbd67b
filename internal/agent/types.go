package agent

import (
	"strconv"
	"time"
)

// Capability identifies an operation an instantiated agent can perform.
// Every agent must support analysis; the rest are optional extras that
// specialized agents may advertise.
type Capability string

const (
	CapabilityAnalyze        Capability = "analyze"
	CapabilityTestGeneration Capability = "test_generation"
	CapabilityOptimization   Capability = "optimization"
	CapabilityChat           Capability = "chat"
)

// DetectionPatterns describes how the router recognizes content that an
// agent knows how to analyze.
type DetectionPatterns struct {
	// Extensions are file extensions (with or without leading dot) that
	// this agent claims, e.g. ".py" or "tsx".
	Extensions []string `yaml:"extensions"`

	// ContentPatterns are regular expressions matched anywhere in the
	// file content, case-insensitively. Order is preserved from
	// registration; the match ratio feeds the detection score.
	ContentPatterns []string `yaml:"content_patterns"`

	// FrameworkKeywords are matched as case-insensitive substrings of
	// the content, e.g. "django" or "react".
	FrameworkKeywords []string `yaml:"framework_keywords"`
}

// Descriptor declares an agent: its identity, detection metadata, and
// runtime settings. Descriptors are registered at startup (from the
// config file or programmatically); there is no runtime code loading.
type Descriptor struct {
	ID           string            `yaml:"id"`
	Detection    DetectionPatterns `yaml:",inline"`
	Enabled      bool              `yaml:"enabled"`
	Timeout      time.Duration     `yaml:"-"`
	Capabilities []Capability      `yaml:"capabilities"`
	Config       map[string]any    `yaml:"config"`
}

// Mode selects between invoking one routed agent or fanning out to every
// applicable agent.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeFanOut Mode = "fan_out"
)

// Request is an analysis request as consumed by the orchestrator.
type Request struct {
	FilePath string
	Content  string

	// AgentID, when set, bypasses routing and invokes exactly this agent.
	AgentID string

	// Context carries request-scoped metadata (branch, MR id, user hints).
	// It participates in the cache key, canonicalized so map order never
	// affects the hash.
	Context map[string]any

	Mode Mode
}

// FindingKind discriminates the finding union.
type FindingKind string

const (
	KindIssue      FindingKind = "issue"
	KindSuggestion FindingKind = "suggestion"
)

// Finding is a single analysis result: either an issue (something wrong)
// or a suggestion (something that could be better). Issue-only fields are
// zero-valued on suggestions and vice versa.
type Finding struct {
	Kind FindingKind `json:"kind"`

	// Issue fields
	Severity string `json:"severity,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`

	// Suggestion fields
	Impact string `json:"impact,omitempty"`
	Effort string `json:"effort,omitempty"`

	// Shared fields
	Category    string  `json:"category"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Suggestion  string  `json:"suggestion,omitempty"`
	Confidence  float64 `json:"confidence"`

	// SourceAgent is the agent that produced this finding. Set by the
	// aggregator during merge.
	SourceAgent string `json:"source_agent,omitempty"`
}

// DedupKey returns the composite identity used to collapse duplicate
// findings reported by multiple agents. Issues dedup on
// (category, line, description); suggestions on (category, description).
// The key is independent of which agent reported the finding, so merge
// order never changes the merged set.
func (f Finding) DedupKey() string {
	if f.Kind == KindIssue {
		return string(KindIssue) + "\x00" + f.Category + "\x00" + strconv.Itoa(f.Line) + "\x00" + f.Description
	}
	return string(KindSuggestion) + "\x00" + f.Category + "\x00" + f.Description
}

// Result is the outcome of one agent invocation.
type Result struct {
	Findings      []Finding      `json:"findings"`
	Confidence    float64        `json:"confidence"`
	ExecutionTime time.Duration  `json:"execution_time"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// AggregatedResult is the merged outcome of one or more agent invocations.
//
// Confidence is the arithmetic mean across agents that produced a result;
// ExecutionTime is the maximum across those same agents, reflecting
// parallel wall-clock rather than summed cost.
type AggregatedResult struct {
	Findings      []Finding
	Confidence    float64
	ExecutionTime time.Duration
	AgentsUsed    []string
	AgentErrors   map[string]string
}
