package main

import (
	"time"

	"github.com/spf13/cobra"

	"finsight/internal/similarity"
)

var similarCmd = &cobra.Command{
	Use:   "similar <problem-id>",
	Short: "Find the closest corpus problem with divergence analysis",
	Long: `Compare a stored problem against the rest of the corpus, report the
closest match, and explain how the target diverges from it.

Examples:
  finsight similar P-001`,
	Args: cobra.ExactArgs(1),
	Run:  runSimilar,
}

func init() {
	rootCmd.AddCommand(similarCmd)
}

func runSimilar(cmd *cobra.Command, args []string) {
	start := time.Now()
	cfg := mustLoadConfig()
	logger := newLogger(cfg)
	builder := mustGetBuilder(cfg, logger)

	res, err := builder.Divergence(args[0])
	if err != nil {
		exitErr(err)
	}
	dist, err := builder.Distribution(args[0])
	if err != nil {
		exitErr(err)
	}
	printOutput(struct {
		similarity.Result
		Distribution similarity.Distribution `json:"scoreDistribution"`
	}{res, dist})

	logger.Debug("Similarity query completed", map[string]interface{}{
		"problem":  args[0],
		"hasComp":  res.HasComp,
		"duration": time.Since(start).Milliseconds(),
	})
}
