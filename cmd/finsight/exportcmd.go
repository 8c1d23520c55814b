package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"finsight/internal/export"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the knowledge base to a compressed archive",
	Long: `Write every registry plus its load report to a zstd-compressed JSON
archive, suitable for sharing or backup.

Examples:
  finsight export --output kb.finsight.zst`,
	Run: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportOutput, "output", "kb.finsight.zst", "Archive path to write")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	logger := newLogger(cfg)
	k := mustLoadKB(cfg, logger)

	if err := export.WriteArchive(exportOutput, k, logger); err != nil {
		exitErr(err)
	}
	fmt.Println("Exported knowledge base to " + exportOutput)
}
