package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"finsight/internal/config"
	"finsight/internal/logging"
	"finsight/internal/report"
	"finsight/internal/storage"
)

var (
	analyzeText      string
	analyzeFile      string
	analyzeNoHistory bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a problem text",
	Long: `Run the full analysis pipeline on one problem text: archetype
classification, deviation detection, similar examples and the suggested
solving workflow.

Examples:
  finsight analyze --text "The bond has a 5% hazard rate of default."
  finsight analyze --file problem.txt
  cat problem.txt | finsight analyze`,
	Run: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeText, "text", "", "Problem text to analyze")
	analyzeCmd.Flags().StringVar(&analyzeFile, "file", "", "File containing the problem text")
	analyzeCmd.Flags().BoolVar(&analyzeNoHistory, "no-history", false, "Skip recording this run in the history store")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) {
	start := time.Now()
	cfg := mustLoadConfig()
	logger := newLogger(cfg)

	text := analyzeText
	switch {
	case text != "":
	case analyzeFile != "":
		data, err := os.ReadFile(analyzeFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", analyzeFile, err)
			os.Exit(1)
		}
		text = string(data)
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
			os.Exit(1)
		}
		text = string(data)
	}

	if err := report.Validate(text); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	builder := mustGetBuilder(cfg, logger)
	r := builder.Analyze(text)

	printOutput(r)

	if cfg.History.Enable && !analyzeNoHistory {
		recordHistory(cfg, logger, text, r)
	}

	logger.Debug("Analyze completed", map[string]interface{}{
		"report":   r.ID,
		"duration": time.Since(start).Milliseconds(),
	})
}

// recordHistory persists the run to the history store. Failures are
// logged and otherwise ignored; history is convenience data.
func recordHistory(cfg *config.Config, logger *logging.Logger, text string, r *report.Report) {
	store, err := storage.Open(historyPath(), logger)
	if err != nil {
		logger.Warn("History store unavailable", map[string]interface{}{"error": err.Error()})
		return
	}
	defer store.Close()

	reportJSON, err := json.Marshal(r)
	if err != nil {
		logger.Warn("Cannot serialize report for history", map[string]interface{}{"error": err.Error()})
		return
	}

	topDeviation := ""
	if len(r.Deviations.Detections) > 0 {
		topDeviation = r.Deviations.Detections[0].Code
	}
	fingerprint := sha256.Sum256([]byte(text))

	rec := storage.AnalysisRecord{
		ID:           r.ID,
		Fingerprint:  hex.EncodeToString(fingerprint[:]),
		Archetype:    r.Archetypes.Primary.Code,
		TopDeviation: topDeviation,
		ReportJSON:   string(reportJSON),
		CreatedAt:    r.GeneratedAt,
	}
	if err := store.SaveAnalysis(cmdContext(), rec); err != nil {
		logger.Warn("Cannot record analysis history", map[string]interface{}{"error": err.Error()})
	}
}

func historyPath() string {
	return filepath.Join(rootFlag, ".finsight", "history.db")
}
