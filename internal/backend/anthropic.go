package backend

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"

	agentpkg "github.com/aman-jaglan/CI-Code-Companion-sub001/internal/agent"
)

// Model constants. Companion uses one model for all agents by default;
// COMPANION_MODEL overrides it without a rebuild.
const (
	// ModelDefault is the model used for analysis calls.
	ModelDefault = "claude-sonnet-4-5-20250929"

	maxResponseTokens = 4096
)

// GetModel returns the analysis model, checking COMPANION_MODEL first.
func GetModel() string {
	if model := os.Getenv("COMPANION_MODEL"); model != "" {
		return model
	}
	return ModelDefault
}

// AnthropicConfig configures the shared Anthropic client.
type AnthropicConfig struct {
	APIKey string // if empty, read from ANTHROPIC_API_KEY
	Model  string // if empty, GetModel()

	// RequestsPerSecond caps outbound API calls across all agents.
	// Zero disables rate limiting.
	RequestsPerSecond float64
}

// AnthropicBackend invokes Claude for one agent. The client and rate
// limiter are shared across all agents built from the same factory.
type AnthropicBackend struct {
	client  *anthropic.Client
	model   string
	limiter *rate.Limiter
	desc    agentpkg.Descriptor
}

var _ Backend = (*AnthropicBackend)(nil)

// NewFactory returns an agent.Factory that builds Anthropic-backed
// agents. All handles share one client and one rate limiter.
func NewFactory(cfg AnthropicConfig) (agentpkg.Factory, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = GetModel()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	return func(desc agentpkg.Descriptor) (agentpkg.Handle, error) {
		b := &AnthropicBackend{
			client:  &client,
			model:   model,
			limiter: limiter,
			desc:    desc,
		}
		return NewAnalysisAgent(desc, b)
	}, nil
}

// Invoke implements Backend. The per-call deadline is enforced by the
// caller through ctx; Invoke itself only applies rate limiting.
func (b *AnthropicBackend) Invoke(ctx context.Context, filePath, content string, reqContext map[string]any) (*agentpkg.Result, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	prompt := b.buildPrompt(filePath, content, reqContext)
	startTime := time.Now()

	response, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: maxResponseTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}

	var responseText string
	for _, block := range response.Content {
		if block.Type == "text" {
			responseText += block.Text
		}
	}

	payload, err := parsePayload(responseText)
	if err != nil {
		return nil, fmt.Errorf("parsing %s response: %w", b.desc.ID, err)
	}

	result := payload.toResult()
	result.ExecutionTime = time.Since(startTime)
	if result.Metadata == nil {
		result.Metadata = make(map[string]any)
	}
	result.Metadata["model"] = b.model
	result.Metadata["input_tokens"] = response.Usage.InputTokens
	result.Metadata["output_tokens"] = response.Usage.OutputTokens

	return result, nil
}

// buildPrompt renders the analysis prompt for this agent. The agent's
// role text comes from its descriptor config so prompts stay declarative.
func (b *AnthropicBackend) buildPrompt(filePath, content string, reqContext map[string]any) string {
	role := "You are a code analysis agent reviewing a file for correctness, quality, and maintainability."
	if r, ok := b.desc.Config["role"].(string); ok && r != "" {
		role = r
	}

	var sb strings.Builder
	sb.WriteString(role)
	sb.WriteString("\n\nAnalyze the following file and report findings as JSON with this shape:\n")
	sb.WriteString(`{"findings": [{"kind": "issue"|"suggestion", "severity": "...", "category": "...", "title": "...", "description": "...", "line": 0, "suggestion": "...", "impact": "...", "effort": "...", "confidence": 0.0}], "confidence": 0.0}`)
	sb.WriteString("\n\nFile: ")
	sb.WriteString(filePath)

	if len(reqContext) > 0 {
		keys := make([]string, 0, len(reqContext))
		for k := range reqContext {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("\nContext:")
		for _, k := range keys {
			fmt.Fprintf(&sb, "\n  %s: %v", k, reqContext[k])
		}
	}

	sb.WriteString("\n\n```\n")
	sb.WriteString(content)
	sb.WriteString("\n```\n\nRespond with JSON only.")
	return sb.String()
}
