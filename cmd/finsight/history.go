package main

import (
	"github.com/spf13/cobra"

	"finsight/internal/storage"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent analysis runs",
	Long: `Show the most recent analyses recorded in the history store, newest
first.

Examples:
  finsight history
  finsight history --limit=50`,
	Run: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum records to return")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	logger := newLogger(cfg)

	store, err := storage.Open(historyPath(), logger)
	if err != nil {
		exitErr(err)
	}
	defer store.Close()

	records, err := store.ListAnalyses(cmdContext(), historyLimit)
	if err != nil {
		exitErr(err)
	}
	printOutput(records)
}
