package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-jaglan/CI-Code-Companion-sub001/internal/agent"
)

const validPayload = `{
	"findings": [
		{"kind": "issue", "severity": "high", "category": "security", "title": "Hardcoded secret", "description": "API key in source", "line": 12, "confidence": 0.95},
		{"kind": "suggestion", "impact": "medium", "category": "style", "title": "Extract helper", "description": "Repeated block", "confidence": 0.6}
	],
	"confidence": 0.8
}`

func TestParsePayloadDirect(t *testing.T) {
	payload, err := parsePayload(validPayload)
	require.NoError(t, err)
	require.Len(t, payload.Findings, 2)
	assert.InDelta(t, 0.8, payload.Confidence, 0.001)
}

func TestParsePayloadCleanup(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{
			name: "fenced with language tag",
			text: "```json\n" + validPayload + "\n```",
		},
		{
			name: "fenced without language tag",
			text: "```\n" + validPayload + "\n```",
		},
		{
			name: "trailing comma",
			text: `{"findings": [{"kind": "issue", "category": "style", "title": "t", "description": "d", "line": 1, "confidence": 0.5},], "confidence": 0.5}`,
		},
		{
			name: "wrapped in prose",
			text: "Here is my analysis:\n" + validPayload + "\nLet me know if you need more detail.",
		},
		{
			name: "prose and fence",
			text: "Sure! The findings are:\n```json\n" + validPayload + "\n```\nHope this helps.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := parsePayload(tt.text)
			require.NoError(t, err)
			assert.NotEmpty(t, payload.Findings)
		})
	}
}

func TestParsePayloadErrors(t *testing.T) {
	_, err := parsePayload("")
	assert.Error(t, err)

	_, err = parsePayload("I could not analyze this file.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestToResult(t *testing.T) {
	payload, err := parsePayload(validPayload)
	require.NoError(t, err)

	result := payload.toResult()
	require.Len(t, result.Findings, 2)

	issue := result.Findings[0]
	assert.Equal(t, agent.KindIssue, issue.Kind)
	assert.Equal(t, "high", issue.Severity)
	assert.Equal(t, 12, issue.Line)

	suggestion := result.Findings[1]
	assert.Equal(t, agent.KindSuggestion, suggestion.Kind)
	assert.Equal(t, "medium", suggestion.Impact)
	assert.Zero(t, suggestion.Line)
}

func TestToResultUnknownKindDefaultsToIssue(t *testing.T) {
	payload := &resultPayload{Findings: []findingPayload{{Kind: "warning", Category: "style"}}}
	result := payload.toResult()
	require.Len(t, result.Findings, 1)
	assert.Equal(t, agent.KindIssue, result.Findings[0].Kind)
}
