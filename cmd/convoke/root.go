package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	rootHeadless   bool
	rootMaxReplans int
	rootModel      string
)

var rootCmd = &cobra.Command{
	Use:   "convoke [query]",
	Short: "Dependency-aware multi-agent query orchestrator",
	Long: `Convoke answers a query by planning a graph of specialized agents,
executing them concurrently in dependency order, and synthesizing their
outputs into one final answer.

The planner decides how many agents to spawn, what each one does, and
which agents depend on which. Independent agents run in parallel waves;
an agent only starts once everything it relies on has finished. When an
agent's critical tool requirements cannot be met, the whole plan is
discarded and re-planned once around the limitation.

The query is taken from the arguments, or from stdin when piped:
  convoke "compare the pricing models of the top three CDN providers"
  echo "summarize this quarter's churn drivers" | convoke`,
	Args: cobra.ArbitraryArgs,
	RunE: runQuery,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&rootHeadless, "headless", false, "Run without TUI (plain output)")
	rootCmd.Flags().IntVar(&rootMaxReplans, "max-replans", -1, "Override the re-plan bound (-1 uses config)")
	rootCmd.Flags().StringVar(&rootModel, "model", "", "Override the default execution model")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// readQuery takes the query from the arguments, or stdin when piped.
func readQuery(args []string) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}

	info, err := os.Stdin.Stat()
	if err == nil && info.Mode()&os.ModeCharDevice == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading query from stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	return "", nil
}
