package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonathan/listing-auditor/internal/audit"
	"github.com/jonathan/listing-auditor/internal/listing"
	"github.com/jonathan/listing-auditor/internal/observability"
	"github.com/jonathan/listing-auditor/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run the full audit: derive pages, fetch them, reconcile and export the report",
	Long: `Loads the reference table, derives the distinct category/metro listing pages from the
profile URLs, fetches them one at a time with a delay in between, reconciles the observed
listings against the reference and writes the discrepancy report in every requested format.

A page that fails to load contributes no listings; the audit goes on with the rest.`,
	RunE: runAudit,
}

var (
	auditInput   string
	auditOut     string
	auditFormats []string
	auditFetch   fetchFlags
)

func init() {
	auditCmd.Flags().StringVarP(&auditInput, "input", "i", "", "Path to the reference CSV or JSON file")
	auditCmd.Flags().StringVarP(&auditOut, "out", "o", "", "Output directory for the report (default \".\")")
	auditCmd.Flags().StringSliceVarP(&auditFormats, "format", "f", nil, "Report formats: xlsx, csv, json (default xlsx)")
	auditFetch.register(auditCmd)

	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	// Only override if the flag was explicitly set
	if cmd.Flags().Changed("input") {
		cfg.Input = auditInput
	}
	if cmd.Flags().Changed("out") {
		cfg.Out = auditOut
	}
	if cmd.Flags().Changed("format") {
		cfg.Formats = auditFormats
	}
	auditFetch.apply(cmd, &cfg)

	cfg, err = finalizeSettings(cfg)
	if err != nil {
		return err
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

	ctx, stop := signalContext()
	defer stop()

	database, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if database != nil {
		defer database.Close()
	}

	printer := observability.NewPrinter(os.Stdout)
	printer.PrintURLs(listing.DeriveURLs(table.Records))

	opts := audit.Options{
		Delay:    cfg.Delay,
		Observer: progressLogger(logger),
		Logger:   logger,
		Source:   filepath.Base(cfg.Input),
	}
	if database != nil {
		opts.Store = database
	}
	runner := audit.NewRunner(newListingFetcher(cfg, database, auditFetch.skipCache, logger), opts)

	result, err := runner.Run(ctx, table.Records)
	if err != nil {
		return fmt.Errorf("audit interrupted: %w", err)
	}

	printer.PrintSummary(result.Summary, result.PagesFetched, result.PagesFailed)
	printer.PrintPreview(result.Report)

	paths, err := report.WriteFiles(ctx, result.Report, cfg.Out, formats...)
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	for _, path := range paths {
		logger.Info("report written", zap.String("path", path))
		_, _ = fmt.Fprintf(os.Stdout, "Report written to %s\n", path)
	}
	return nil
}
