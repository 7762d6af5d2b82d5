// Package main provides the entry point for the listing auditor CLI and HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "listing_audit",
	Short: "Business directory listing auditor",
	Long: `listing_audit compares an authoritative reference table of companies against the live
category/metro listing pages of a business directory and reports every discrepancy:
companies missing from the website, companies missing from the reference, and rank mismatches.

Settings can come from a JSON or YAML file (--config), LISTING_AUDIT_* environment variables
and flags. Flags win over the environment, which wins over the file.`,
	SilenceUsage: true,
}

var (
	configPath  string
	verbose     bool
	logLevel    string
	logFormat   string
	databaseURL string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a JSON or YAML config file (values can be overridden by flags)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print detailed debug information")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: console or structured")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "db-url", "", "PostgreSQL connection URL for the page cache and run history (optional)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
