package audit

import (
	"context"
	"time"

	"github.com/jonathan/listing-auditor/internal/types"
	"go.uber.org/zap"
)

// PageEvent describes one fetched page.
type PageEvent struct {
	URL      string        `json:"url"`
	Index    int           `json:"index"` // 1-based position in the URL list
	Total    int           `json:"total"`
	Records  int           `json:"records"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// Failed reports whether the page fetch failed.
func (e PageEvent) Failed() bool {
	return e.Err != nil
}

// Observer is notified once per fetched page, in fetch order.
type Observer interface {
	OnPage(event PageEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(event PageEvent)

// OnPage implements Observer.
func (f ObserverFunc) OnPage(event PageEvent) {
	f(event)
}

// NopObserver ignores all events.
type NopObserver struct{}

// OnPage implements Observer.
func (NopObserver) OnPage(PageEvent) {}

// ScrapeResult accumulates the records of every fetched page.
type ScrapeResult struct {
	Records      []types.ScrapedRecord
	PagesFetched int
	PagesFailed  int
}

// Scrape fetches the pages one at a time, in order, waiting the configured delay
// between two fetches. A failed page contributes no records and the scrape goes on.
// On cancellation the partial result is returned together with ctx's error.
func (r *Runner) Scrape(ctx context.Context, urls []string) (*ScrapeResult, error) {
	result := &ScrapeResult{Records: make([]types.ScrapedRecord, 0)}

	for i, pageURL := range urls {
		if i > 0 {
			if err := r.wait(ctx); err != nil {
				return result, err
			}
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		start := time.Now()
		records, err := r.fetcher.FetchListings(ctx, pageURL)
		event := PageEvent{
			URL:      pageURL,
			Index:    i + 1,
			Total:    len(urls),
			Records:  len(records),
			Duration: time.Since(start),
		}
		result.PagesFetched++

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			r.logger.Warn("failed to fetch listing page", zap.String("url", pageURL), zap.Error(err))
			result.PagesFailed++
			event.Err = err
			event.Records = 0
		} else {
			r.logger.Debug("fetched listing page", zap.String("url", pageURL), zap.Int("companies", len(records)),
				zap.Int("page", i+1), zap.Int("of", len(urls)))
			result.Records = append(result.Records, records...)
		}

		r.observer.OnPage(event)
	}

	return result, nil
}

func (r *Runner) wait(ctx context.Context) error {
	if r.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(r.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
