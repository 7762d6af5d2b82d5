package main

import (
	"context"
	"fmt"

	"github.com/jonathan/listing-auditor/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes the auditor over REST: reconcile uploaded data, derive
listing pages, and run full audits with the report as a download or streamed as Server-Sent Events.`,
	RunE: runServe,
}

var (
	servePort      int
	serveRateLimit float64
	serveRateBurst int
	serveFetch     fetchFlags
)

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default 8080)")
	serveCmd.Flags().Float64Var(&serveRateLimit, "rate-limit", 0, "Requests per second allowed per client IP, 0 disables (default 1)")
	serveCmd.Flags().IntVar(&serveRateBurst, "rate-burst", 0, "Burst of requests allowed per client IP (default 5)")
	serveFetch.register(serveCmd)

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}
	if cmd.Flags().Changed("rate-limit") {
		cfg.RateLimit = serveRateLimit
	}
	if cmd.Flags().Changed("rate-burst") {
		cfg.RateBurst = serveRateBurst
	}
	serveFetch.apply(cmd, &cfg)

	cfg, err = finalizeSettings(cfg)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	srv, err := server.New(context.Background(), server.Config{
		Port:         cfg.Port,
		DatabaseURL:  cfg.DatabaseURL,
		Delay:        cfg.Delay,
		FetchOptions: fetchOptions(cfg),
		CacheTTL:     cfg.CacheTTL,
		RateLimit:    cfg.RateLimit,
		RateBurst:    cfg.RateBurst,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}
