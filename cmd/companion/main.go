// Command companion is the CI Code Companion CLI: it routes files to
// specialized analysis agents, fans out across them, and reports merged
// findings.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "companion",
	Short: "AI-powered code analysis with specialized agents",
	Long: `CI Code Companion analyzes source files with specialized AI agents.

A router scores every registered agent against the file's extension,
content patterns, and framework keywords, then either invokes the best
match or fans out across all applicable agents and merges their findings.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "companion.yaml", "Path to configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
