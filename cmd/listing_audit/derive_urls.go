package main

import (
	"fmt"
	"os"

	"github.com/jonathan/listing-auditor/internal/listing"
	"github.com/spf13/cobra"
)

var deriveURLsCmd = &cobra.Command{
	Use:   "derive-urls",
	Short: "Print the category/metro listing pages a reference file would fetch",
	Long:  "Reads the reference table and prints each distinct listing page URL, one per line, in first-seen order.",
	RunE:  runDeriveURLs,
}

var deriveInput string

func init() {
	deriveURLsCmd.Flags().StringVarP(&deriveInput, "input", "i", "", "Path to the reference CSV or JSON file")
	rootCmd.AddCommand(deriveURLsCmd)
}

func runDeriveURLs(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("input") {
		cfg.Input = deriveInput
	}
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

	urls := listing.DeriveURLs(table.Records)
	if len(urls) == 0 {
		logger.Warn("no listing pages could be derived; check the profile URL column")
	}
	for _, u := range urls {
		_, _ = fmt.Fprintln(os.Stdout, u)
	}
	return nil
}
