package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonathan/listing-auditor/internal/audit"
	"github.com/jonathan/listing-auditor/internal/config"
	"github.com/jonathan/listing-auditor/internal/db"
	"github.com/jonathan/listing-auditor/internal/fetch"
	"github.com/jonathan/listing-auditor/internal/observability"
	"github.com/jonathan/listing-auditor/internal/reference"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// fetchFlags are the fetching flags shared by audit, scrape and serve.
type fetchFlags struct {
	delay      time.Duration
	timeout    time.Duration
	useBrowser bool
	userAgent  string
	cacheTTL   time.Duration
	skipCache  bool
}

func (f *fetchFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.delay, "delay", 0, "Idle time between two page fetches (default 1s)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Per-page request timeout (default 10s)")
	cmd.Flags().BoolVar(&f.useBrowser, "use-browser", false, "Render pages in headless Chrome before parsing (requires Chrome)")
	cmd.Flags().StringVar(&f.userAgent, "user-agent", "", "User-Agent header sent with every request")
	cmd.Flags().DurationVar(&f.cacheTTL, "cache-ttl", 0, "How long cached pages stay fresh (requires --db-url; default 24h)")
	cmd.Flags().BoolVar(&f.skipCache, "skip-cache", false, "Always fetch live pages, still refreshing the cache")
}

// apply overrides cfg with the flags that were explicitly set.
func (f *fetchFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("delay") {
		cfg.Delay = f.delay
	}
	if flags.Changed("timeout") {
		cfg.Timeout = f.timeout
	}
	if flags.Changed("use-browser") {
		cfg.UseBrowser = f.useBrowser
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent = f.userAgent
	}
	if flags.Changed("cache-ttl") {
		cfg.CacheTTL = f.cacheTTL
	}
}

// loadSettings loads the config file and environment, then applies the explicitly set global flags.
func loadSettings(cmd *cobra.Command) (config.Config, error) {
	loaded, err := config.LoadConfig(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	cfg := *loaded

	flags := cmd.Flags()
	if flags.Changed("verbose") {
		cfg.Verbose = verbose
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if flags.Changed("db-url") {
		cfg.DatabaseURL = databaseURL
	}
	return cfg, nil
}

// finalizeSettings fills defaults and validates the merged configuration.
func finalizeSettings(cfg config.Config) (config.Config, error) {
	cfg = cfg.MergeWithDefaults(config.Defaults())
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	level := observability.LevelFor(cfg.LogLevel, cfg.Verbose)
	logger, err := observability.NewLoggerFactory().CreateLogger(level, observability.LogFormat(cfg.LogFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// signalContext is canceled on SIGINT or SIGTERM so that a running audit stops between pages.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openDatabase connects to the optional database. It returns nil when no URL is configured.
func openDatabase(ctx context.Context, cfg config.Config, logger *zap.Logger) (*db.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil
	}
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, err
	}
	logger.Debug("connected to database")
	return database, nil
}

func loadReference(path string, logger *zap.Logger) (*reference.Table, error) {
	if path == "" {
		return nil, fmt.Errorf("--input is required (via flag or config)")
	}
	table, err := reference.LoadFile(path)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded reference table", zap.String("path", path), zap.Int("records", len(table.Records)))
	if table.PositionsDerived {
		logger.Info("no FSR Position column; expected positions ranked by name within each category/metro")
	}
	return table, nil
}

func fetchOptions(cfg config.Config) *fetch.Options {
	opts := fetch.DefaultOptions()
	opts.Timeout = cfg.Timeout
	opts.UseBrowser = cfg.UseBrowser
	if cfg.UserAgent != "" {
		opts.UserAgent = cfg.UserAgent
	}
	return opts
}

func newListingFetcher(cfg config.Config, database *db.DB, skipCache bool, logger *zap.Logger) *fetch.Fetcher {
	var store fetch.PageStore
	if database != nil {
		store = database
	}
	return fetch.NewFetcher(&fetch.FetcherConfig{
		Options:   fetchOptions(cfg),
		Store:     store,
		CacheTTL:  cfg.CacheTTL,
		SkipCache: skipCache,
		Logger:    logger,
	})
}

// progressLogger reports each fetched page.
func progressLogger(logger *zap.Logger) audit.Observer {
	return audit.ObserverFunc(func(event audit.PageEvent) {
		if event.Failed() {
			return
		}
		logger.Info(fmt.Sprintf("[%d/%d] fetched listing page", event.Index, event.Total),
			zap.String("url", event.URL),
			zap.Int("companies", event.Records),
			zap.Duration("duration", event.Duration),
		)
	})
}
