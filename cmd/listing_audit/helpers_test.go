package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/jonathan/listing-auditor/internal/audit"
	"github.com/jonathan/listing-auditor/internal/config"
	"github.com/jonathan/listing-auditor/internal/fetch"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newFlagTestCommand(f *fetchFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	f.register(cmd)
	return cmd
}

func TestFetchFlags_ApplyOnlyChanged(t *testing.T) {
	var f fetchFlags
	cmd := newFlagTestCommand(&f)
	require.NoError(t, cmd.Flags().Set("delay", "0s"))
	require.NoError(t, cmd.Flags().Set("user-agent", "auditor-test"))

	cfg := config.Config{
		Delay:    3 * time.Second,
		Timeout:  7 * time.Second,
		CacheTTL: time.Hour,
	}
	f.apply(cmd, &cfg)

	assert.Equal(t, time.Duration(0), cfg.Delay, "explicit zero delay must win")
	assert.Equal(t, "auditor-test", cfg.UserAgent)
	assert.Equal(t, 7*time.Second, cfg.Timeout, "unset flag must not override")
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.False(t, cfg.UseBrowser)
}

func TestFetchFlags_ApplyAll(t *testing.T) {
	var f fetchFlags
	cmd := newFlagTestCommand(&f)
	require.NoError(t, cmd.Flags().Set("timeout", "3s"))
	require.NoError(t, cmd.Flags().Set("use-browser", "true"))
	require.NoError(t, cmd.Flags().Set("cache-ttl", "2h"))
	require.NoError(t, cmd.Flags().Set("skip-cache", "true"))

	var cfg config.Config
	f.apply(cmd, &cfg)

	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.True(t, cfg.UseBrowser)
	assert.Equal(t, 2*time.Hour, cfg.CacheTTL)
	assert.True(t, f.skipCache)
}

func TestLoadSettings_EnvironmentAndDefaults(t *testing.T) {
	t.Setenv("LISTING_AUDIT_DELAY", "250ms")
	t.Setenv("LISTING_AUDIT_OUT", t.TempDir())

	cfg, err := loadSettings(&cobra.Command{Use: "test"})
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Delay)

	cfg, err = finalizeSettings(cfg)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"xlsx"}, cfg.Formats)
}

func TestFinalizeSettings_InvalidFormat(t *testing.T) {
	_, err := finalizeSettings(config.Config{Formats: []string{"pdf"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config error")
}

func TestLoadReference_MissingPath(t *testing.T) {
	_, err := loadReference("", zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--input is required")
}

func TestFetchOptions(t *testing.T) {
	opts := fetchOptions(config.Config{Timeout: 4 * time.Second, UseBrowser: true})
	assert.Equal(t, 4*time.Second, opts.Timeout)
	assert.True(t, opts.UseBrowser)
	assert.NotEmpty(t, opts.UserAgent, "default user agent is kept when none is configured")

	opts = fetchOptions(config.Config{UserAgent: "custom"})
	assert.Equal(t, "custom", opts.UserAgent)
}

func TestProgressLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	obs := progressLogger(zap.New(core))

	obs.OnPage(audit.PageEvent{URL: "https://example.com/plumbers/austin", Index: 1, Total: 2, Records: 3})
	obs.OnPage(audit.PageEvent{URL: "https://example.com/roofers/austin", Index: 2, Total: 2, Err: assert.AnError})

	entries := logs.All()
	require.Len(t, entries, 1, "failed pages are logged by the runner, not the observer")
	assert.Equal(t, "[1/2] fetched listing page", entries[0].Message)
	assert.Equal(t, int64(3), entries[0].ContextMap()["companies"])
}

func TestWriteScraped_File(t *testing.T) {
	path := t.TempDir() + "/nested/scraped.json"
	require.NoError(t, writeScraped(path, nil))

	records, err := fetch.LoadRecordsFile(path)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestOpenDatabase_NoURL(t *testing.T) {
	database, err := openDatabase(t.Context(), config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, database)
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"audit", "scrape", "reconcile", "derive-urls", "serve", "cache"} {
		assert.Contains(t, names, want)
	}

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"--help"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "listing_audit")
}
