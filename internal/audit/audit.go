// Package audit runs the listing audit pipeline: derive page URLs from the reference
// table, fetch each page in turn, then reconcile everything and assemble the report.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/listing-auditor/internal/db"
	"github.com/jonathan/listing-auditor/internal/listing"
	"github.com/jonathan/listing-auditor/internal/reconcile"
	"github.com/jonathan/listing-auditor/internal/report"
	"github.com/jonathan/listing-auditor/internal/types"
	"go.uber.org/zap"
)

// DefaultDelay is the idle time between two page fetches.
const DefaultDelay = time.Second

// ListingFetcher returns the ordered listings of one category/metro page.
// A page that answers without data yields (nil, nil); only transport and
// parse failures are errors.
type ListingFetcher interface {
	FetchListings(ctx context.Context, pageURL string) ([]types.ScrapedRecord, error)
}

// RunStore records audit run summaries. *db.DB implements it.
type RunStore interface {
	CreateAuditRun(ctx context.Context, id uuid.UUID, source string, urlCount int) error
	CompleteAuditRun(ctx context.Context, id uuid.UUID, outcome db.AuditRunOutcome) error
}

var _ RunStore = (*db.DB)(nil)

// Options configures a Runner.
type Options struct {
	Delay    time.Duration // Idle time between fetches; zero disables it
	Observer Observer      // Notified after every page; optional
	Logger   *zap.Logger   // Optional
	Store    RunStore      // Optional run history
	Source   string        // Label stored with the run, e.g. the input file name
}

// DefaultOptions returns options with the default fetch delay.
func DefaultOptions() Options {
	return Options{Delay: DefaultDelay}
}

// Runner executes audits with one ListingFetcher.
type Runner struct {
	fetcher  ListingFetcher
	delay    time.Duration
	observer Observer
	logger   *zap.Logger
	store    RunStore
	source   string
}

// NewRunner creates a Runner.
func NewRunner(fetcher ListingFetcher, opts Options) *Runner {
	r := &Runner{
		fetcher:  fetcher,
		delay:    opts.Delay,
		observer: opts.Observer,
		logger:   opts.Logger,
		store:    opts.Store,
		source:   opts.Source,
	}
	if r.delay < 0 {
		r.delay = 0
	}
	if r.observer == nil {
		r.observer = NopObserver{}
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Result is the outcome of one audit.
type Result struct {
	RunID        uuid.UUID                `json:"run_id"`
	URLs         []string                 `json:"urls"`
	Scraped      []types.ScrapedRecord    `json:"-"`
	Records      []types.ComparisonRecord `json:"-"`
	Report       *report.Report           `json:"report"`
	Summary      reconcile.Summary        `json:"summary"`
	PagesFetched int                      `json:"pages_fetched"`
	PagesFailed  int                      `json:"pages_failed"`
	StartedAt    time.Time                `json:"started_at"`
	FinishedAt   time.Time                `json:"finished_at"`
}

// Compare reconciles already-scraped records against the reference table.
// It does no I/O.
func Compare(refs []types.ReferenceRecord, scraped []types.ScrapedRecord) *Result {
	now := time.Now()
	records := reconcile.Reconcile(refs, scraped)
	return &Result{
		RunID:      uuid.New(),
		URLs:       listing.DeriveURLs(refs),
		Scraped:    scraped,
		Records:    records,
		Report:     report.Assemble(records),
		Summary:    reconcile.SummarizeRun(refs, records),
		StartedAt:  now,
		FinishedAt: now,
	}
}

// Run performs the full audit. Page failures are counted and skipped; only
// cancellation of ctx stops the run early, in which case the error is ctx's.
func (r *Runner) Run(ctx context.Context, refs []types.ReferenceRecord) (*Result, error) {
	started := time.Now()
	runID := uuid.New()
	urls := listing.DeriveURLs(refs)

	logger := r.logger.With(zap.String("run_id", runID.String()))
	logger.Info("starting audit", zap.Int("references", len(refs)), zap.Int("pages", len(urls)))

	if dups := reconcile.DuplicateReferenceKeys(refs); len(dups) > 0 {
		logger.Warn("reference table has duplicate keys; matching rows will be repeated",
			zap.Int("keys", len(dups)), zap.Strings("sample", dups[:min(len(dups), 5)]))
	}

	r.recordStart(ctx, logger, runID, len(urls))

	scrape, err := r.Scrape(ctx, urls)
	if err != nil {
		r.recordFinish(ctx, logger, runID, db.AuditRunOutcome{
			Status:       db.RunStatusCanceled,
			PagesFailed:  scrape.PagesFailed,
			ErrorMessage: err.Error(),
		})
		return nil, err
	}

	if len(scrape.Records) == 0 {
		logger.Warn("no company data was found", zap.Int("pages", len(urls)))
	}

	result := Compare(refs, scrape.Records)
	result.RunID = runID
	result.URLs = urls
	result.PagesFetched = scrape.PagesFetched
	result.PagesFailed = scrape.PagesFailed
	result.StartedAt = started
	result.FinishedAt = time.Now()

	r.recordFinish(ctx, logger, runID, db.AuditRunOutcome{
		Status:      db.RunStatusCompleted,
		PagesFailed: result.PagesFailed,
		RecordCount: result.Summary.Total,
		IssueCounts: issueCounts(result.Summary),
	})

	logger.Info("audit finished",
		zap.Int("rows", result.Summary.Total),
		zap.Int("discrepancies", result.Summary.Discrepancies()),
		zap.Int("pages_failed", result.PagesFailed),
		zap.Duration("elapsed", result.FinishedAt.Sub(started)),
	)
	return result, nil
}

func (r *Runner) recordStart(ctx context.Context, logger *zap.Logger, runID uuid.UUID, urlCount int) {
	if r.store == nil {
		return
	}
	if err := r.store.CreateAuditRun(ctx, runID, r.source, urlCount); err != nil {
		logger.Warn("failed to record audit run", zap.Error(err))
	}
}

func (r *Runner) recordFinish(ctx context.Context, logger *zap.Logger, runID uuid.UUID, outcome db.AuditRunOutcome) {
	if r.store == nil {
		return
	}
	// The run may have been canceled; its summary is still written
	if err := r.store.CompleteAuditRun(context.WithoutCancel(ctx), runID, outcome); err != nil {
		logger.Warn("failed to complete audit run", zap.Error(err))
	}
}

func issueCounts(s reconcile.Summary) map[string]int {
	counts := make(map[string]int, len(s.ByIssue))
	for issue, n := range s.ByIssue {
		counts[string(issue)] = n
	}
	return counts
}
