package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonathan/listing-auditor/internal/listing"
	"github.com/jonathan/listing-auditor/internal/types"
	"go.uber.org/zap"
)

// Listing page markup
const (
	RowSelector  = "div.company-row"
	NameSelector = `meta[itemprop="name"]`
	// PlaceholderName marks a row whose name could not be read.
	PlaceholderName = "N/A"
)

// ParseError reports HTML that could not be parsed into listings.
type ParseError struct {
	URL   string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse listings from %s: %v", e.URL, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// ParseListings extracts the ordered listings of one category/metro page.
// Position is the 1-based index of the row among all rows, so rows without a
// usable name leave a gap instead of shifting the ones after them.
func ParseListings(html, pageURL string) ([]types.ScrapedRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ParseError{URL: pageURL, Cause: err}
	}

	category, metro := listing.CategoryAndMetro(pageURL)
	records := make([]types.ScrapedRecord, 0)

	doc.Find(RowSelector).Each(func(i int, row *goquery.Selection) {
		name := PlaceholderName
		if content, ok := row.Find(NameSelector).First().Attr("content"); ok {
			name = strings.TrimSpace(content)
		}
		if name == "" || name == PlaceholderName {
			return
		}
		records = append(records, types.ScrapedRecord{
			SourceURL: pageURL,
			Category:  category,
			Metro:     metro,
			Position:  i + 1,
			Name:      name,
		})
	})

	return records, nil
}

// Fetcher fetches listing pages through the optional page cache and parses them.
type Fetcher struct {
	pages  *CachedFetcher
	logger *zap.Logger
}

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	Options   *Options
	Store     PageStore // Optional page cache
	CacheTTL  time.Duration
	SkipCache bool
	Logger    *zap.Logger
}

// NewFetcher creates a Fetcher. A nil config fetches over plain HTTP without a cache.
func NewFetcher(config *FetcherConfig) *Fetcher {
	if config == nil {
		config = &FetcherConfig{}
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		pages: NewCachedFetcher(config.Store, &CachedFetcherConfig{
			CacheTTL:  config.CacheTTL,
			SkipCache: config.SkipCache,
			Options:   config.Options,
			Logger:    logger,
		}),
		logger: logger,
	}
}

// FetchListings fetches and parses one listing page. A non-200 answer yields no
// records and no error. A page vetoed by the cache after an earlier failure is
// returned as an error so the run counts it as failed.
func (f *Fetcher) FetchListings(ctx context.Context, pageURL string) ([]types.ScrapedRecord, error) {
	start := time.Now()
	result, err := f.pages.Fetch(ctx, pageURL)
	if err != nil {
		if IsNoData(err) {
			f.logger.Warn("listing page returned no data", zap.String("url", pageURL), zap.Error(err))
			return nil, nil
		}
		return nil, err
	}

	records, err := ParseListings(result.HTML, pageURL)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("fetched listing page",
		zap.String("url", pageURL),
		zap.Int("records", len(records)),
		zap.Bool("from_cache", result.FromCache),
		zap.Duration("duration", time.Since(start)),
	)
	return records, nil
}
