package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aman-jaglan/CI-Code-Companion-sub001/internal/agent"
	"github.com/aman-jaglan/CI-Code-Companion-sub001/internal/analysis"
	"github.com/aman-jaglan/CI-Code-Companion-sub001/internal/backend"
	"github.com/aman-jaglan/CI-Code-Companion-sub001/internal/config"
)

var (
	analyzeAgent   string
	analyzeFanOut  bool
	analyzeNoCache bool
	analyzeContext []string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a source file with one or more agents",
	Long: `Analyze a source file.

By default the router picks the single best-matching agent. With
--fan-out, every applicable agent runs concurrently and the findings are
merged and deduplicated.

Examples:
  companion analyze main.py                      # Routed single agent
  companion analyze app.tsx --fan-out            # All applicable agents
  companion analyze api.js --agent=security      # Explicit agent
  companion analyze main.py --context branch=dev # Request context`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filePath := args[0]
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("reading %s: %w", filePath, err)
		}

		orch, err := buildOrchestrator()
		if err != nil {
			return err
		}
		defer orch.Close()

		req := agent.Request{
			FilePath: filePath,
			Content:  string(content),
			AgentID:  analyzeAgent,
			Context:  parseContext(analyzeContext),
			Mode:     agent.ModeSingle,
		}
		if analyzeFanOut {
			req.Mode = agent.ModeFanOut
		}

		resp, err := orch.Analyze(context.Background(), req)
		if err != nil {
			return fmt.Errorf("%s", agent.Detail(err))
		}

		printResponse(resp)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeAgent, "agent", "", "Invoke this agent, bypassing routing")
	analyzeCmd.Flags().BoolVar(&analyzeFanOut, "fan-out", false, "Run all applicable agents concurrently")
	analyzeCmd.Flags().BoolVar(&analyzeNoCache, "no-cache", false, "Bypass the result cache")
	analyzeCmd.Flags().StringArrayVar(&analyzeContext, "context", nil, "Request context entries as key=value (repeatable)")
}

// buildOrchestrator wires configuration and the Anthropic backend into
// an orchestrator instance owned by this command.
func buildOrchestrator() (*analysis.Orchestrator, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if analyzeNoCache {
		cfg.CacheEnabled = false
	}

	factory, err := backend.NewFactory(backend.AnthropicConfig{})
	if err != nil {
		return nil, err
	}

	return analysis.New(cfg, analysis.Options{Factory: factory})
}

func parseContext(entries []string) map[string]any {
	if len(entries) == 0 {
		return nil
	}
	ctx := make(map[string]any, len(entries))
	for _, entry := range entries {
		key, value, found := strings.Cut(entry, "=")
		if !found {
			ctx[entry] = ""
			continue
		}
		ctx[key] = value
	}
	return ctx
}

func printResponse(resp *analysis.Response) {
	green := color.New(color.FgGreen).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s Analysis complete (%s)\n\n", green("✓"), gray(resp.OperationID))
	fmt.Printf("  File: %s\n", cyan(resp.FilePath))
	fmt.Printf("  Agents: %s\n", cyan(strings.Join(resp.AgentsUsed, ", ")))
	fmt.Printf("  Confidence: %s\n", cyan(fmt.Sprintf("%.2f", resp.ConfidenceScore)))
	fmt.Printf("  Duration: %s\n", cyan(fmt.Sprintf("%.2fs", resp.ExecutionTimeSeconds)))

	if len(resp.AgentErrors) > 0 {
		fmt.Printf("\n%s Agent errors:\n", yellow("⚠"))
		for id, msg := range resp.AgentErrors {
			fmt.Printf("  - %s: %s\n", id, gray(msg))
		}
	}

	if len(resp.Findings) == 0 {
		fmt.Printf("\n%s No findings\n\n", green("✓"))
		return
	}

	fmt.Printf("\n  Findings (%d):\n\n", len(resp.Findings))
	for _, f := range resp.Findings {
		marker := yellow("→")
		if f.Kind == agent.KindIssue && (f.Severity == "high" || f.Severity == "critical") {
			marker = red("✗")
		}
		location := ""
		if f.Line > 0 {
			location = fmt.Sprintf(":%d", f.Line)
		}
		fmt.Printf("  %s [%s] %s%s %s\n", marker, f.Category, gray(string(f.Kind)), location, f.Title)
		fmt.Printf("    %s\n", f.Description)
		if f.Suggestion != "" {
			fmt.Printf("    %s %s\n", gray("suggestion:"), f.Suggestion)
		}
		fmt.Printf("    %s\n\n", gray(fmt.Sprintf("%s, confidence %.2f", f.SourceAgent, f.Confidence)))
	}
}
