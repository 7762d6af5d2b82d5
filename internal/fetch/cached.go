package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/listing-auditor/internal/db"
	"go.uber.org/zap"
)

// PageStore is the persistence the cached fetcher needs. *db.DB implements it.
type PageStore interface {
	ShouldSkipURL(ctx context.Context, pageURL string) (bool, string, error)
	GetFreshListingPage(ctx context.Context, pageURL string, maxAge time.Duration) (*db.ListingPage, error)
	UpsertListingPage(ctx context.Context, page *db.ListingPage) error
	RecordFailedFetch(ctx context.Context, pageURL string, httpStatus int, errorMsg string, ttl time.Duration) error
}

var _ PageStore = (*db.DB)(nil)

// CachedFetcher wraps page fetching with database-backed caching.
type CachedFetcher struct {
	store     PageStore
	options   *Options
	cacheTTL  time.Duration
	skipCache bool // Forces fresh fetches; results are still stored
	logger    *zap.Logger
}

// CachedFetcherConfig holds configuration for the cached fetcher.
type CachedFetcherConfig struct {
	CacheTTL  time.Duration
	SkipCache bool
	Options   *Options
	Logger    *zap.Logger
}

// DefaultCachedFetcherConfig returns sensible defaults.
func DefaultCachedFetcherConfig() *CachedFetcherConfig {
	return &CachedFetcherConfig{
		CacheTTL:  db.DefaultPageCacheTTL,
		SkipCache: false,
		Options:   DefaultOptions(),
	}
}

// NewCachedFetcher creates a new cached fetcher. A nil store disables caching.
func NewCachedFetcher(store PageStore, config *CachedFetcherConfig) *CachedFetcher {
	if config == nil {
		config = DefaultCachedFetcherConfig()
	}
	options := config.Options
	if options == nil {
		options = DefaultOptions()
	}
	ttl := config.CacheTTL
	if ttl == 0 {
		ttl = db.DefaultPageCacheTTL
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedFetcher{
		store:     store,
		options:   options,
		cacheTTL:  ttl,
		skipCache: config.SkipCache,
		logger:    logger,
	}
}

// CachedResult extends Result with cache metadata.
type CachedResult struct {
	*Result
	FromCache bool      // Whether this result came from cache
	PageID    uuid.UUID // Database ID of the cached page
}

// Fetch retrieves a URL, using the cache if available and fresh.
// Otherwise it fetches fresh content, stores successes and records failures.
func (f *CachedFetcher) Fetch(ctx context.Context, urlStr string) (*CachedResult, error) {
	if !f.skipCache && f.store != nil {
		shouldSkip, reason, err := f.store.ShouldSkipURL(ctx, urlStr)
		if err != nil {
			return nil, fmt.Errorf("failed to check skip status: %w", err)
		}
		if shouldSkip {
			return nil, &Error{
				URL:     urlStr,
				Message: fmt.Sprintf("URL skipped: %s", reason),
				Skipped: true,
			}
		}

		cached, err := f.store.GetFreshListingPage(ctx, urlStr, f.cacheTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to check cache: %w", err)
		}
		if cached != nil {
			return &CachedResult{
				Result: &Result{
					URL:        cached.URL,
					HTML:       derefString(cached.RawHTML),
					StatusCode: derefInt(cached.HTTPStatus),
				},
				FromCache: true,
				PageID:    cached.ID,
			}, nil
		}
	}

	result, err := Page(ctx, urlStr, f.options)
	if err != nil {
		f.recordFailure(ctx, urlStr, result, err)
		return nil, err
	}

	cachedResult := &CachedResult{Result: result}
	if f.store == nil {
		return cachedResult, nil
	}

	expiresAt := time.Now().Add(f.cacheTTL)
	page := &db.ListingPage{
		URL:         urlStr,
		RawHTML:     &result.HTML,
		HTTPStatus:  &result.StatusCode,
		FetchStatus: db.FetchStatusSuccess,
		ExpiresAt:   &expiresAt,
	}
	if err := f.store.UpsertListingPage(ctx, page); err != nil {
		// The fetch itself succeeded
		f.logger.Warn("failed to cache listing page", zap.String("url", urlStr), zap.Error(err))
		return cachedResult, nil
	}
	cachedResult.PageID = page.ID
	return cachedResult, nil
}

func (f *CachedFetcher) recordFailure(ctx context.Context, urlStr string, result *Result, err error) {
	if f.store == nil {
		return
	}
	// Cancellation says nothing about the page
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return
	}
	statusCode := 0
	if result != nil {
		statusCode = result.StatusCode
	}
	if recErr := f.store.RecordFailedFetch(ctx, urlStr, statusCode, err.Error(), f.cacheTTL); recErr != nil {
		f.logger.Warn("failed to record failed fetch", zap.String("url", urlStr), zap.Error(recErr))
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
