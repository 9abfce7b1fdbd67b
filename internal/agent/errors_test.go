package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindMatching(t *testing.T) {
	timeout := NewTimeoutError("python_code", 120)
	assert.True(t, errors.Is(timeout, ErrAgentTimeout))
	assert.False(t, errors.Is(timeout, ErrAgentExecution))

	cause := errors.New("connection refused")
	exec := NewExecutionError("security", cause)
	assert.True(t, errors.Is(exec, ErrAgentExecution))
	assert.True(t, errors.Is(exec, cause))
	assert.Contains(t, exec.Error(), "connection refused")
}

func TestSuggestions(t *testing.T) {
	err := NewConfigurationError("bad config", "fix it", "or remove it")
	assert.Equal(t, []string{"fix it", "or remove it"}, Suggestions(err))

	assert.Nil(t, Suggestions(errors.New("plain")))
}

func TestDetail(t *testing.T) {
	err := NewUnavailableError("node_code", "enable the agent")
	detail := Detail(err)
	assert.Contains(t, detail, `agent "node_code" is not available`)
	assert.Contains(t, detail, "- enable the agent")

	plain := errors.New("plain")
	assert.Equal(t, "plain", Detail(plain))
}

func TestAggregationErrorMessage(t *testing.T) {
	err := NewAggregationError("all agents failed", map[string]string{
		"python_code": "deadline exceeded",
		"general":     "backend 500",
	})

	assert.True(t, errors.Is(err, ErrAggregation))
	// Per-agent detail is sorted by id for deterministic messages.
	assert.Contains(t, err.Error(),
		"all agents failed [general: backend 500; python_code: deadline exceeded]")
}

func TestCacheErrorKind(t *testing.T) {
	cause := errors.New("disk gone")
	err := NewCacheError("persisting entry failed", cause)

	assert.True(t, errors.Is(err, ErrCache))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "persisting entry failed: disk gone")
}

func TestFindingDedupKey(t *testing.T) {
	issue := Finding{Kind: KindIssue, Category: "security", Line: 42, Description: "hardcoded secret"}
	sameIssue := Finding{Kind: KindIssue, Category: "security", Line: 42, Description: "hardcoded secret", Severity: "high"}
	otherLine := Finding{Kind: KindIssue, Category: "security", Line: 43, Description: "hardcoded secret"}

	assert.Equal(t, issue.DedupKey(), sameIssue.DedupKey())
	assert.NotEqual(t, issue.DedupKey(), otherLine.DedupKey())

	suggestion := Finding{Kind: KindSuggestion, Category: "style", Description: "use f-strings"}
	sameSuggestion := Finding{Kind: KindSuggestion, Category: "style", Line: 7, Description: "use f-strings"}
	assert.Equal(t, suggestion.DedupKey(), sameSuggestion.DedupKey(),
		"suggestion keys must ignore line numbers")
}
