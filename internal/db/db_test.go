package db

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchStatusFromHTTP(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{200, FetchStatusSuccess},
		{204, FetchStatusSuccess},
		{404, FetchStatusNotFound},
		{410, FetchStatusNotFound},
		{403, FetchStatusBlocked},
		{429, FetchStatusBlocked},
		{408, FetchStatusTimeout},
		{504, FetchStatusTimeout},
		{500, FetchStatusError},
		{0, FetchStatusError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FetchStatusFromHTTP(tt.status), "status %d", tt.status)
	}
}

func TestIsPermanentHTTPStatus(t *testing.T) {
	assert.True(t, IsPermanentHTTPStatus(404))
	assert.True(t, IsPermanentHTTPStatus(410))
	assert.True(t, IsPermanentHTTPStatus(451))
	assert.False(t, IsPermanentHTTPStatus(500))
	assert.False(t, IsPermanentHTTPStatus(429))
	assert.False(t, IsPermanentHTTPStatus(0))
}

func TestHashContent(t *testing.T) {
	hash1 := HashContent("hello world")
	hash2 := HashContent("hello world")
	assert.Equal(t, hash1, hash2)
	assert.Len(t, hash1, 64)
	assert.NotEqual(t, hash1, HashContent("hello world!"))
}

func TestListingPage_IsExpired(t *testing.T) {
	page := &ListingPage{}
	assert.False(t, page.IsExpired(), "no expiry set")

	past := time.Now().Add(-time.Minute)
	page.ExpiresAt = &past
	assert.True(t, page.IsExpired())

	future := time.Now().Add(time.Hour)
	page.ExpiresAt = &future
	assert.False(t, page.IsExpired())
}

func TestListingPage_IsFresh(t *testing.T) {
	page := &ListingPage{FetchedAt: time.Now().Add(-time.Hour)}
	assert.True(t, page.IsFresh(2*time.Hour))
	assert.False(t, page.IsFresh(30*time.Minute))

	past := time.Now().Add(-time.Minute)
	page.ExpiresAt = &past
	assert.False(t, page.IsFresh(2*time.Hour), "expired pages are never fresh")
}

func TestListingPage_SkipReason(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	msg := "HTTP status 404"

	tests := []struct {
		name       string
		page       ListingPage
		wantSkip   bool
		wantReason string
	}{
		{name: "success", page: ListingPage{FetchStatus: FetchStatusSuccess, ExpiresAt: &future}},
		{name: "permanent failure before expiry", page: ListingPage{IsPermanentFailure: true, ErrorMessage: &msg, ExpiresAt: &future}, wantSkip: true, wantReason: msg},
		{name: "permanent failure without message", page: ListingPage{IsPermanentFailure: true, ExpiresAt: &future}, wantSkip: true, wantReason: "permanent failure"},
		{name: "permanent failure after expiry", page: ListingPage{IsPermanentFailure: true, ErrorMessage: &msg, ExpiresAt: &past}},
		{name: "permanent failure without expiry", page: ListingPage{IsPermanentFailure: true, ErrorMessage: &msg}},
		{name: "in backoff", page: ListingPage{RetryAfter: &future}, wantSkip: true, wantReason: "retry backoff"},
		{name: "backoff elapsed", page: ListingPage{RetryAfter: &past}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			skip, reason := tt.page.SkipReason(now)
			assert.Equal(t, tt.wantSkip, skip)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestListingPage_JSONOmitsHTML(t *testing.T) {
	html := "<html></html>"
	page := ListingPage{URL: "https://example.com/plumbers/austin", RawHTML: &html, FetchStatus: FetchStatusSuccess}

	data, err := json.Marshal(page)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "<html>")
	assert.Contains(t, string(data), `"fetch_status":"success"`)
}

func TestSchemaStatements(t *testing.T) {
	require.NotEmpty(t, schemaStatements)
	joined := ""
	for _, stmt := range schemaStatements {
		assert.Contains(t, stmt, "IF NOT EXISTS")
		joined += stmt
	}
	assert.Contains(t, joined, "listing_pages")
	assert.Contains(t, joined, "audit_runs")
}
