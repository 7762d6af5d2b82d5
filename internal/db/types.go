package db

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// ListingPage represents a cached category/metro listing page
type ListingPage struct {
	ID          uuid.UUID `json:"id"`
	URL         string    `json:"url"`
	RawHTML     *string   `json:"-"` // Don't serialize (large)
	ContentHash *string   `json:"content_hash,omitempty"`
	HTTPStatus  *int      `json:"http_status,omitempty"`
	// Error tracking
	FetchStatus        string     `json:"fetch_status"` // 'success', 'error', 'not_found', 'timeout', 'blocked'
	ErrorMessage       *string    `json:"error_message,omitempty"`
	IsPermanentFailure bool       `json:"is_permanent_failure"`
	RetryCount         int        `json:"retry_count"`
	RetryAfter         *time.Time `json:"retry_after,omitempty"`
	// Timestamps
	FetchedAt      time.Time  `json:"fetched_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	LastAccessedAt time.Time  `json:"last_accessed_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// AuditRun is the stored summary of one audit. Comparison rows are never stored.
type AuditRun struct {
	ID           uuid.UUID      `json:"id"`
	Source       string         `json:"source"`
	Status       string         `json:"status"`
	URLCount     int            `json:"url_count"`
	PagesFailed  int            `json:"pages_failed"`
	RecordCount  int            `json:"record_count"`
	IssueCounts  map[string]int `json:"issue_counts,omitempty"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// AuditRunOutcome carries the counts recorded when a run finishes.
type AuditRunOutcome struct {
	Status       string
	PagesFailed  int
	RecordCount  int
	IssueCounts  map[string]int
	ErrorMessage string
}

// Audit run status values
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusCanceled  = "canceled"
)

// FetchStatus constants for cached pages
const (
	FetchStatusSuccess  = "success"   // Page fetched successfully
	FetchStatusError    = "error"     // Generic error (may retry)
	FetchStatusNotFound = "not_found" // 404/410 - permanent failure
	FetchStatusTimeout  = "timeout"   // Request timed out (may retry)
	FetchStatusBlocked  = "blocked"   // 403/429 - blocked by server
)

// DefaultPageCacheTTL is the default time-to-live for cached listing pages.
// Directory rankings move daily, so pages are kept for a day.
const DefaultPageCacheTTL = 24 * time.Hour

// Retry backoff constants for transient failures
// Schedule: 1 min → 5 min → 25 min → 2 hours (capped)
const (
	RetryInitialBackoff = 1 * time.Minute
	RetryBackoffFactor  = 5
	RetryMaxBackoff     = 2 * time.Hour
)

// IsPermanentHTTPStatus returns true for status codes that indicate permanent failure
func IsPermanentHTTPStatus(status int) bool {
	switch status {
	case 404, 410, 451: // Not Found, Gone, Unavailable for Legal Reasons
		return true
	default:
		return false
	}
}

// FetchStatusFromHTTP determines fetch status from HTTP status code.
// A zero status means the request never got a response.
func FetchStatusFromHTTP(status int) string {
	switch {
	case status >= 200 && status < 300:
		return FetchStatusSuccess
	case status == 404 || status == 410:
		return FetchStatusNotFound
	case status == 403 || status == 429:
		return FetchStatusBlocked
	case status == 408 || status == 504:
		return FetchStatusTimeout
	default:
		return FetchStatusError
	}
}

// HashContent computes SHA-256 hash of content for change detection
func HashContent(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// IsExpired returns true if the page cache has expired
func (p *ListingPage) IsExpired() bool {
	if p.ExpiresAt == nil {
		return false // No expiry set, never expires
	}
	return time.Now().After(*p.ExpiresAt)
}

// IsFresh returns true if the page was fetched within maxAge and has not expired
func (p *ListingPage) IsFresh(maxAge time.Duration) bool {
	return time.Since(p.FetchedAt) < maxAge && !p.IsExpired()
}

// SkipReason reports whether a page should not be fetched at now because of an
// earlier failure. A permanent failure only vetoes fetches until the row expires,
// and a row without an expiry never vetoes.
func (p *ListingPage) SkipReason(now time.Time) (bool, string) {
	if p.IsPermanentFailure {
		if p.ExpiresAt == nil || !now.Before(*p.ExpiresAt) {
			return false, ""
		}
		reason := "permanent failure"
		if p.ErrorMessage != nil {
			reason = *p.ErrorMessage
		}
		return true, reason
	}

	if p.RetryAfter != nil && now.Before(*p.RetryAfter) {
		return true, "retry backoff"
	}
	return false, ""
}
