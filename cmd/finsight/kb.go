package main

import (
	"github.com/spf13/cobra"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Show knowledge base diagnostics",
	Long: `Load all registries and report what was found: entity counts,
registry files that were missing, and detection patterns that failed to
compile.

Examples:
  finsight kb`,
	Run: runKB,
}

func init() {
	rootCmd.AddCommand(kbCmd)
}

func runKB(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	logger := newLogger(cfg)
	k := mustLoadKB(cfg, logger)

	printOutput(k.Report)
}
