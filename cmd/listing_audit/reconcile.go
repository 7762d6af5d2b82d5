package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jonathan/listing-auditor/internal/audit"
	"github.com/jonathan/listing-auditor/internal/fetch"
	"github.com/jonathan/listing-auditor/internal/observability"
	"github.com/jonathan/listing-auditor/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile a saved scrape against the reference table, offline",
	Long:  "Reconciles listings saved by the scrape command against the reference table and writes the report. Nothing is fetched.",
	RunE:  runReconcile,
}

var (
	reconcileInput   string
	reconcileScraped string
	reconcileOut     string
	reconcileFormats []string
)

func init() {
	reconcileCmd.Flags().StringVarP(&reconcileInput, "input", "i", "", "Path to the reference CSV or JSON file")
	reconcileCmd.Flags().StringVarP(&reconcileScraped, "scraped", "s", "", "Path to the scraped listings JSON file (required)")
	reconcileCmd.Flags().StringVarP(&reconcileOut, "out", "o", "", "Output directory for the report (default \".\")")
	reconcileCmd.Flags().StringSliceVarP(&reconcileFormats, "format", "f", nil, "Report formats: xlsx, csv, json (default xlsx)")

	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("input") {
		cfg.Input = reconcileInput
	}
	if cmd.Flags().Changed("out") {
		cfg.Out = reconcileOut
	}
	if cmd.Flags().Changed("format") {
		cfg.Formats = reconcileFormats
	}

	cfg, err = finalizeSettings(cfg)
	if err != nil {
		return err
	}
	if reconcileScraped == "" {
		return fmt.Errorf("--scraped is required")
	}
	formats, err := report.ParseFormats(cfg.Formats)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	table, err := loadReference(cfg.Input, logger)
	if err != nil {
		return err
	}
	scraped, err := fetch.LoadRecordsFile(reconcileScraped)
	if err != nil {
		return err
	}
	if len(scraped) == 0 {
		logger.Warn("no company data was found", zap.String("scraped", reconcileScraped))
	}

	result := audit.Compare(table.Records, scraped)

	printer := observability.NewPrinter(os.Stdout)
	printer.PrintSummary(result.Summary, 0, 0)
	printer.PrintPreview(result.Report)

	paths, err := report.WriteFiles(context.Background(), result.Report, cfg.Out, formats...)
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	for _, path := range paths {
		_, _ = fmt.Fprintf(os.Stdout, "Report written to %s\n", path)
	}
	return nil
}
