package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"finsight/internal/config"
	"finsight/internal/errors"
	"finsight/internal/kb"
	"finsight/internal/logging"
	"finsight/internal/report"
	"finsight/internal/version"
)

var (
	// rootFlag is the workspace root holding .finsight/
	rootFlag string
)

var rootCmd = &cobra.Command{
	Use:   "finsight",
	Short: "finsight - exam problem analysis engine",
	Long: `finsight classifies corporate-finance exam problems into archetypes,
detects known deviations from the standard solving approach, and finds the
closest worked example in the problem corpus with adaptation guidance.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("finsight version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", ".",
		"Workspace root containing the .finsight directory")
}

// mustLoadConfig loads configuration for the workspace root, exiting on
// an invalid config file.
func mustLoadConfig() *config.Config {
	cfg, err := config.LoadConfig(rootFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// newLogger builds the command logger. Human-format output goes to
// stderr so JSON command output on stdout stays machine-readable.
func newLogger(cfg *config.Config) *logging.Logger {
	return logging.NewLogger(logging.Config{
		Format: logging.Format(cfg.Logging.Format),
		Level:  logging.Level(cfg.Logging.Level),
	})
}

// mustLoadKB loads all registries from the configured data directory.
func mustLoadKB(cfg *config.Config, logger *logging.Logger) *kb.KnowledgeBase {
	k, err := kb.Load(dataDir(cfg), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading knowledge base: %v\n", err)
		os.Exit(1)
	}
	return k
}

func dataDir(cfg *config.Config) string {
	if cfg.DataDir == "" {
		return rootFlag
	}
	if filepath.IsAbs(cfg.DataDir) {
		return cfg.DataDir
	}
	return filepath.Join(rootFlag, cfg.DataDir)
}

func mustGetBuilder(cfg *config.Config, logger *logging.Logger) *report.Builder {
	return report.NewBuilder(mustLoadKB(cfg, logger), cfg, logger)
}

// cmdContext is the context for command-scoped I/O such as history
// writes. Commands are short-lived; no timeout is imposed.
func cmdContext() context.Context {
	return context.Background()
}

// exitErr prints the error with any suggested fixes and exits.
func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	var fe *errors.Error
	if stderrors.As(err, &fe) {
		for _, fix := range fe.SuggestedFixes {
			if fix.Command != "" {
				fmt.Fprintf(os.Stderr, "  try: %s\n", fix.Command)
			} else if fix.Description != "" {
				fmt.Fprintf(os.Stderr, "  %s\n", fix.Description)
			}
		}
	}
	os.Exit(1)
}

// printOutput renders v as indented JSON on stdout. Human rendering is
// the caller's concern; every command supports at least JSON.
func printOutput(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
