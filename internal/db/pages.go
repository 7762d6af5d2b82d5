package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const listingPageColumns = `id, url, raw_html, content_hash, http_status, fetch_status, error_message,
	is_permanent_failure, retry_count, retry_after, fetched_at, expires_at, last_accessed_at, created_at, updated_at`

func scanListingPage(row pgx.Row) (*ListingPage, error) {
	var p ListingPage
	err := row.Scan(&p.ID, &p.URL, &p.RawHTML, &p.ContentHash, &p.HTTPStatus, &p.FetchStatus, &p.ErrorMessage,
		&p.IsPermanentFailure, &p.RetryCount, &p.RetryAfter, &p.FetchedAt, &p.ExpiresAt, &p.LastAccessedAt,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetListingPageByURL retrieves a cached page by URL
func (db *DB) GetListingPageByURL(ctx context.Context, pageURL string) (*ListingPage, error) {
	page, err := scanListingPage(db.pool.QueryRow(ctx,
		`SELECT `+listingPageColumns+` FROM listing_pages WHERE url = $1`,
		pageURL,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get listing page: %w", err)
	}
	return page, nil
}

// GetFreshListingPage retrieves a page only if it's not stale and was successful
func (db *DB) GetFreshListingPage(ctx context.Context, pageURL string, maxAge time.Duration) (*ListingPage, error) {
	page, err := db.GetListingPageByURL(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, nil
	}

	if !page.IsFresh(maxAge) {
		return nil, nil // Stale, should re-fetch
	}

	// Only return successful pages from cache
	if page.FetchStatus != FetchStatusSuccess || page.RawHTML == nil {
		return nil, nil
	}

	_ = db.TouchListingPage(ctx, page.ID)

	return page, nil
}

// ShouldSkipURL checks if a URL should be skipped due to previous permanent failure or backoff
func (db *DB) ShouldSkipURL(ctx context.Context, pageURL string) (bool, string, error) {
	page, err := db.GetListingPageByURL(ctx, pageURL)
	if err != nil {
		return false, "", err
	}
	if page == nil {
		return false, "", nil // Never tried, don't skip
	}

	skip, reason := page.SkipReason(time.Now())
	return skip, reason, nil
}

// UpsertListingPage inserts or updates a successfully fetched page
func (db *DB) UpsertListingPage(ctx context.Context, page *ListingPage) error {
	var contentHash *string
	if page.RawHTML != nil {
		hash := HashContent(*page.RawHTML)
		contentHash = &hash
	}

	expiresAt := page.ExpiresAt
	if expiresAt == nil {
		t := time.Now().Add(DefaultPageCacheTTL)
		expiresAt = &t
	}

	fetchStatus := page.FetchStatus
	if fetchStatus == "" {
		fetchStatus = FetchStatusSuccess
	}

	err := db.pool.QueryRow(ctx,
		`INSERT INTO listing_pages (url, raw_html, content_hash, http_status, fetch_status, error_message,
		                            is_permanent_failure, retry_count, fetched_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 0, NOW(), $8)
		 ON CONFLICT (url) DO UPDATE SET
		     raw_html = $2,
		     content_hash = $3,
		     http_status = $4,
		     fetch_status = $5,
		     error_message = $6,
		     is_permanent_failure = $7,
		     retry_count = 0,
		     retry_after = NULL,
		     fetched_at = NOW(),
		     expires_at = $8,
		     updated_at = NOW()
		 RETURNING id, fetched_at, created_at, updated_at`,
		page.URL, page.RawHTML, contentHash, page.HTTPStatus, fetchStatus, page.ErrorMessage,
		page.IsPermanentFailure, expiresAt,
	).Scan(&page.ID, &page.FetchedAt, &page.CreatedAt, &page.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert listing page: %w", err)
	}
	page.ContentHash = contentHash
	page.FetchStatus = fetchStatus
	page.ExpiresAt = expiresAt
	return nil
}

// RecordFailedFetch records a failed fetch attempt with exponential backoff.
// Permanent failures are not retried until the row expires after ttl.
func (db *DB) RecordFailedFetch(ctx context.Context, pageURL string, httpStatus int, errorMsg string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultPageCacheTTL
	}
	fetchStatus := FetchStatusFromHTTP(httpStatus)
	isPermanent := IsPermanentHTTPStatus(httpStatus)

	var status *int
	if httpStatus != 0 {
		status = &httpStatus
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO listing_pages (url, http_status, fetch_status, error_message, is_permanent_failure, retry_count, retry_after,
		                            fetched_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, 1,
		         CASE WHEN $5 THEN NULL ELSE NOW() + make_interval(secs => $6::float8) END,
		         NOW(), NOW() + make_interval(secs => $9::float8))
		 ON CONFLICT (url) DO UPDATE SET
		     http_status = $2,
		     fetch_status = $3,
		     error_message = $4,
		     is_permanent_failure = $5 OR listing_pages.is_permanent_failure,
		     retry_count = listing_pages.retry_count + 1,
		     retry_after = CASE
		         WHEN $5 OR listing_pages.is_permanent_failure THEN NULL
		         ELSE NOW() + LEAST(
		             make_interval(secs => $6::float8) * POWER($7::float8, LEAST(listing_pages.retry_count, 3)),
		             make_interval(secs => $8::float8)
		         )
		     END,
		     fetched_at = NOW(),
		     expires_at = NOW() + make_interval(secs => $9::float8),
		     updated_at = NOW()`,
		pageURL, status, fetchStatus, errorMsg, isPermanent,
		RetryInitialBackoff.Seconds(), RetryBackoffFactor, RetryMaxBackoff.Seconds(), ttl.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record failed fetch: %w", err)
	}
	return nil
}

// TouchListingPage updates the last_accessed_at timestamp
func (db *DB) TouchListingPage(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE listing_pages SET last_accessed_at = NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to touch listing page: %w", err)
	}
	return nil
}

// DeleteExpiredPages removes pages that have passed their expires_at, plus failure
// rows written before failures carried an expiry.
func (db *DB) DeleteExpiredPages(ctx context.Context) (int64, error) {
	result, err := db.pool.Exec(ctx,
		`DELETE FROM listing_pages
		 WHERE expires_at < NOW()
		    OR (expires_at IS NULL AND fetch_status <> $1)`,
		FetchStatusSuccess,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired pages: %w", err)
	}
	return result.RowsAffected(), nil
}
