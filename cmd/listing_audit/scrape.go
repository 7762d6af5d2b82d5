package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jonathan/listing-auditor/internal/audit"
	"github.com/jonathan/listing-auditor/internal/fetch"
	"github.com/jonathan/listing-auditor/internal/listing"
	"github.com/jonathan/listing-auditor/internal/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Fetch the listing pages of a reference file and save the observed listings",
	Long: `Runs only the fetch phase of an audit and writes the scraped listings as JSON. The file
can be reconciled later, offline, with the reconcile command.`,
	RunE: runScrape,
}

var (
	scrapeInput string
	scrapeOut   string
	scrapeFetch fetchFlags
)

func init() {
	scrapeCmd.Flags().StringVarP(&scrapeInput, "input", "i", "", "Path to the reference CSV or JSON file")
	scrapeCmd.Flags().StringVarP(&scrapeOut, "out", "o", "scraped.json", "Output JSON file, or - for stdout")
	scrapeFetch.register(scrapeCmd)

	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("input") {
		cfg.Input = scrapeInput
	}
	scrapeFetch.apply(cmd, &cfg)

	cfg, err = finalizeSettings(cfg)
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

	runner := audit.NewRunner(newListingFetcher(cfg, database, scrapeFetch.skipCache, logger), audit.Options{
		Delay:    cfg.Delay,
		Observer: progressLogger(logger),
		Logger:   logger,
	})

	urls := listing.DeriveURLs(table.Records)
	result, err := runner.Scrape(ctx, urls)
	if err != nil {
		return fmt.Errorf("scrape interrupted: %w", err)
	}
	if len(result.Records) == 0 {
		logger.Warn("no company data was found", zap.Int("pages", len(urls)))
	}

	if err := writeScraped(scrapeOut, result.Records); err != nil {
		return err
	}
	logger.Info("scrape finished",
		zap.Int("pages", result.PagesFetched),
		zap.Int("pages_failed", result.PagesFailed),
		zap.Int("companies", len(result.Records)),
		zap.String("out", scrapeOut),
	)
	return nil
}

func writeScraped(path string, records []types.ScrapedRecord) (err error) {
	var w io.Writer = os.Stdout
	if path != "-" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		defer func() {
			if cerr := file.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to close %s: %w", path, cerr)
			}
		}()
		w = file
	}
	return fetch.WriteRecords(w, records)
}
