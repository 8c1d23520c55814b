package main

import (
	"github.com/spf13/cobra"
)

var stepsCmd = &cobra.Command{
	Use:   "steps <problem-id>",
	Short: "Map detected deviations onto a problem's solution steps",
	Long: `Re-run deviation detection against each step of a stored problem's
worked solution and attach the highest-priority matching deviation as an
alert on that step.

Examples:
  finsight steps P-002`,
	Args: cobra.ExactArgs(1),
	Run:  runSteps,
}

func init() {
	rootCmd.AddCommand(stepsCmd)
}

func runSteps(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	logger := newLogger(cfg)
	builder := mustGetBuilder(cfg, logger)

	steps, err := builder.MapToSteps(args[0])
	if err != nil {
		exitErr(err)
	}
	printOutput(steps)
}
