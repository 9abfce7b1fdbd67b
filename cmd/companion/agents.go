package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aman-jaglan/CI-Code-Companion-sub001/internal/config"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List configured analysis agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()

		fmt.Printf("\n%s Configured agents:\n\n", cyan("Agents"))
		for _, d := range cfg.Agents {
			state := ""
			if !d.Enabled {
				state = yellow(" (disabled)")
			}
			marker := ""
			if d.ID == cfg.DefaultAgentID {
				marker = gray(" [default]")
			}
			fmt.Printf("  %s%s%s\n", cyan(d.ID), marker, state)
			if len(d.Detection.Extensions) > 0 {
				fmt.Printf("    Extensions: %s\n", gray(strings.Join(d.Detection.Extensions, ", ")))
			}
			if len(d.Detection.ContentPatterns) > 0 {
				fmt.Printf("    Patterns: %s\n", gray(fmt.Sprintf("%d content patterns", len(d.Detection.ContentPatterns))))
			}
			if len(d.Detection.FrameworkKeywords) > 0 {
				fmt.Printf("    Keywords: %s\n", gray(strings.Join(d.Detection.FrameworkKeywords, ", ")))
			}
			fmt.Printf("    Timeout: %s\n", gray(d.Timeout.String()))
			fmt.Println()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}
