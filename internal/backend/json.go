package backend

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aman-jaglan/CI-Code-Companion-sub001/internal/agent"
)

// Pre-compiled patterns for cleaning up model output. Models frequently
// wrap JSON in code fences or leave trailing commas.
var (
	codeFenceRegex     = regexp.MustCompile("(?s)```(?:json)?\\s*\n?([\\s\\S]*?)\n?```")
	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)
	objectRegex        = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
)

// resultPayload is the wire shape of a backend response.
type resultPayload struct {
	Findings   []findingPayload `json:"findings"`
	Confidence float64          `json:"confidence"`
	Metadata   map[string]any   `json:"metadata,omitempty"`
}

type findingPayload struct {
	Kind        string  `json:"kind"`
	Severity    string  `json:"severity,omitempty"`
	Impact      string  `json:"impact,omitempty"`
	Effort      string  `json:"effort,omitempty"`
	Category    string  `json:"category"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Line        int     `json:"line,omitempty"`
	Column      int     `json:"column,omitempty"`
	Suggestion  string  `json:"suggestion,omitempty"`
	Confidence  float64 `json:"confidence"`
}

func (p *resultPayload) toResult() *agent.Result {
	findings := make([]agent.Finding, 0, len(p.Findings))
	for _, f := range p.Findings {
		kind := agent.KindIssue
		if f.Kind == string(agent.KindSuggestion) {
			kind = agent.KindSuggestion
		}
		findings = append(findings, agent.Finding{
			Kind:        kind,
			Severity:    f.Severity,
			Impact:      f.Impact,
			Effort:      f.Effort,
			Category:    f.Category,
			Title:       f.Title,
			Description: f.Description,
			Line:        f.Line,
			Column:      f.Column,
			Suggestion:  f.Suggestion,
			Confidence:  f.Confidence,
		})
	}
	return &agent.Result{
		Findings:   findings,
		Confidence: p.Confidence,
		Metadata:   p.Metadata,
	}
}

// parsePayload parses a model response with fallback cleanup strategies:
// direct parse, code fence removal, trailing comma repair, and finally
// extracting the outermost JSON object from mixed prose.
func parsePayload(text string) (*resultPayload, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("empty response")
	}

	var payload resultPayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err == nil {
		return &payload, nil
	}

	slog.Debug("direct JSON parse failed, trying cleanup strategies",
		"length", len(trimmed))

	cleaned := trimmed
	if m := codeFenceRegex.FindStringSubmatch(cleaned); m != nil {
		cleaned = strings.TrimSpace(m[1])
	}
	cleaned = trailingCommaRegex.ReplaceAllString(cleaned, "$1")
	if err := json.Unmarshal([]byte(cleaned), &payload); err == nil {
		return &payload, nil
	}

	if m := objectRegex.FindString(cleaned); m != "" {
		m = trailingCommaRegex.ReplaceAllString(m, "$1")
		if err := json.Unmarshal([]byte(m), &payload); err == nil {
			return &payload, nil
		}
	}

	preview := trimmed
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	return nil, fmt.Errorf("response is not valid JSON: %s", preview)
}
