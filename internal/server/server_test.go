package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/listing-auditor/internal/db"
	"github.com/jonathan/listing-auditor/internal/server/ratelimit"
	"github.com/jonathan/listing-auditor/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	austinURL = "https://example.com/plumbers/austin"
	dallasURL = "https://example.com/plumbers/dallas"
)

const referenceCSV = `Company Web Profile URL,PublishedName,Category,Metro,FSR Position
https://example.com/plumbers/austin/ace-plumbing,Ace Plumbing,Plumbers,Austin,1
https://example.com/plumbers/austin/best-pipes,Best Pipes,Plumbers,Austin,2
https://example.com/plumbers/dallas/gone-plumbing,Gone Plumbing,Plumbers,Dallas,1
`

// stubFetcher serves canned listings per page URL.
type stubFetcher struct {
	pages map[string][]types.ScrapedRecord
}

func (f *stubFetcher) FetchListings(_ context.Context, pageURL string) ([]types.ScrapedRecord, error) {
	return f.pages[pageURL], nil
}

func austinListings() []types.ScrapedRecord {
	return []types.ScrapedRecord{
		{SourceURL: austinURL, Category: "plumbers", Metro: "austin", Position: 1, Name: "Ace Plumbing"},
		{SourceURL: austinURL, Category: "plumbers", Metro: "austin", Position: 2, Name: "Bob's Tires"},
		{SourceURL: austinURL, Category: "plumbers", Metro: "austin", Position: 3, Name: "Best Pipes"},
	}
}

// mockHistory is an in-memory RunHistory.
type mockHistory struct {
	runs map[uuid.UUID]*db.AuditRun
}

func (m *mockHistory) GetAuditRun(_ context.Context, id uuid.UUID) (*db.AuditRun, error) {
	run, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	return run, nil
}

func (m *mockHistory) ListAuditRuns(_ context.Context, limit int) ([]db.AuditRun, error) {
	runs := make([]db.AuditRun, 0, len(m.runs))
	for _, run := range m.runs {
		if len(runs) == limit {
			break
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

// newTestServer creates a server with a stub fetcher and rate limiting disabled.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		fetcher:     &stubFetcher{pages: map[string][]types.ScrapedRecord{austinURL: austinListings()}},
		rateLimiter: ratelimit.NewLimiter(&ratelimit.Config{Enabled: false}),
		logger:      zap.NewNop(),
	}
	t.Cleanup(s.rateLimiter.Stop)
	return s
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, target, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestReconcileEndpoint(t *testing.T) {
	s := newTestServer(t)

	body := `{
		"reference": [{"published_name": "Ace Plumbing", "category": "Plumbers", "metro": "Austin", "expected_position": 1}],
		"scraped": [
			{"category": "plumbers", "metro": "austin", "position": 2, "name": "ACE PLUMBING"},
			{"category": "plumbers", "metro": "austin", "position": 1, "name": "Bob's Tires"}
		]
	}`
	req := httptest.NewRequest(http.MethodPost, "/reconcile", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := serve(s, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp AuditResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, 2, resp.Summary.Total)
	assert.Equal(t, 1, resp.Summary.ByIssue[types.IssuePositionMismatch])
	assert.Equal(t, 1, resp.Summary.ByIssue[types.IssueMissingFromInput])
	assert.Equal(t, 0, resp.PagesFetched)
	require.NotNil(t, resp.Report)
	require.Len(t, resp.Report.Rows, 2)
	assert.Equal(t, []string{"Ace Plumbing", "ACE PLUMBING", "plumbers", "austin", "1", "2", "position_mismatch"}, resp.Report.Rows[0])
}

func TestReconcileEndpoint_EmptyScrape(t *testing.T) {
	s := newTestServer(t)

	body := `{"reference": [{"published_name": "Ace Plumbing", "category": "Plumbers", "metro": "Austin", "expected_position": 1}]}`
	w := serve(s, httptest.NewRequest(http.MethodPost, "/reconcile", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp AuditResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Summary.ByIssue[types.IssueMissingFromWebsite])
	assert.Equal(t, []string{"Ace Plumbing", "", "Plumbers", "Austin", "1", "", "missing_from_website"}, resp.Report.Rows[0])
}

func TestReconcileEndpoint_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"invalid JSON", `{not json`, "Invalid request body"},
		{"missing reference", `{"scraped": []}`, "reference - is required"},
		{"reference schema violation", `{"reference": [{"category": "Plumbers"}]}`, ""},
		{"scraped schema violation", `{"reference": [], "scraped": [{"category": "a", "metro": "b", "position": 0, "name": "x"}]}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			w := serve(s, httptest.NewRequest(http.MethodPost, "/reconcile", strings.NewReader(tt.body)))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			msg := decodeError(t, w)
			assert.NotEmpty(t, msg)
			if tt.wantErr != "" {
				assert.Contains(t, msg, tt.wantErr)
			}
		})
	}
}

func TestDeriveURLsEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, uploadRequest(t, "/derive-urls", "ref.csv", referenceCSV))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp DeriveURLsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{austinURL, dallasURL}, resp.URLs)
	assert.Equal(t, 2, resp.Count)
}

func TestDeriveURLsEndpoint_JSONUpload(t *testing.T) {
	s := newTestServer(t)

	content := `[{"profile_url": "https://example.com/roofers/boise/acme", "published_name": "Acme", "category": "Roofers", "metro": "Boise"}]`
	w := serve(s, uploadRequest(t, "/derive-urls", "ref.json", content))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp DeriveURLsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"https://example.com/roofers/boise"}, resp.URLs)
}

func TestDeriveURLsEndpoint_MissingColumns(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, uploadRequest(t, "/derive-urls", "ref.csv", "PublishedName,Category\nAce,Plumbers\n"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	msg := decodeError(t, w)
	assert.Contains(t, msg, "Company Web Profile URL")
	assert.Contains(t, msg, "Metro")
}

func TestDeriveURLsEndpoint_NoFile(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/derive-urls", strings.NewReader("plain body"))
	req.Header.Set("Content-Type", "text/plain")
	w := serve(s, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w), "file")
}

func TestAuditEndpoint_JSON(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, uploadRequest(t, "/audits", "ref.csv", referenceCSV))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp AuditResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, []string{austinURL, dallasURL}, resp.URLs)
	assert.Equal(t, 2, resp.PagesFetched)
	assert.Equal(t, 0, resp.PagesFailed)
	assert.False(t, resp.PositionsDerived)
	assert.Equal(t, 4, resp.Summary.Total)
	assert.Equal(t, 1, resp.Summary.ByIssue[types.IssueNone])
	assert.Equal(t, 1, resp.Summary.ByIssue[types.IssuePositionMismatch])
	assert.Equal(t, 1, resp.Summary.ByIssue[types.IssueMissingFromInput])
	assert.Equal(t, 1, resp.Summary.ByIssue[types.IssueMissingFromWebsite])
	_, err := uuid.Parse(resp.RunID)
	assert.NoError(t, err)
}

func TestAuditEndpoint_CSV(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, uploadRequest(t, "/audits?format=csv", "ref.csv", referenceCSV))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "listing_comparison_results.csv")
	assert.NotEmpty(t, w.Header().Get("X-Audit-Run-ID"))

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Expected Name,Observed Name,Category,Metro,Expected Position,Observed Position,Issue", strings.TrimSpace(lines[0]))
}

func TestAuditEndpoint_XLSX(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, uploadRequest(t, "/audits?format=xlsx", "ref.csv", referenceCSV))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")
}

func TestAuditEndpoint_InvalidFormat(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, uploadRequest(t, "/audits?format=pdf", "ref.csv", referenceCSV))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w), "format")
}

func TestAuditStreamEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, uploadRequest(t, "/audits/stream", "ref.csv", referenceCSV))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := parseSSE(t, w.Body.String())
	require.Len(t, events, 3)

	assert.Equal(t, "progress", events[0].name)
	var first ProgressEvent
	require.NoError(t, json.Unmarshal([]byte(events[0].data), &first))
	assert.Equal(t, ProgressEvent{URL: austinURL, Index: 1, Total: 2, Records: 3, DurationMs: first.DurationMs}, first)

	assert.Equal(t, "progress", events[1].name)

	assert.Equal(t, "complete", events[2].name)
	var complete AuditResponse
	require.NoError(t, json.Unmarshal([]byte(events[2].data), &complete))
	assert.Equal(t, 4, complete.Summary.Total)
	assert.Equal(t, 4, len(complete.Report.Rows))
}

func TestAuditStreamEndpoint_BadUpload(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, uploadRequest(t, "/audits/stream", "ref.csv", ""))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

type sseEvent struct {
	name string
	data string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.data = strings.TrimPrefix(line, "data: ")
			}
		}
		require.NotEmpty(t, ev.name, "malformed event block %q", block)
		events = append(events, ev)
	}
	return events
}

func TestAuditHistory_Unavailable(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/audits", nil))
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	w = serve(s, httptest.NewRequest(http.MethodGet, "/audits/"+uuid.New().String(), nil))
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestAuditHistory(t *testing.T) {
	runID := uuid.New()
	s := newTestServer(t)
	s.history = &mockHistory{runs: map[uuid.UUID]*db.AuditRun{
		runID: {ID: runID, Source: "ref.csv", Status: db.RunStatusCompleted, URLCount: 2, RecordCount: 4, CreatedAt: time.Now()},
	}}

	w := serve(s, httptest.NewRequest(http.MethodGet, "/audits?limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var runs []db.AuditRun
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)

	w = serve(s, httptest.NewRequest(http.MethodGet, "/audits/"+runID.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	var run db.AuditRun
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, "ref.csv", run.Source)

	w = serve(s, httptest.NewRequest(http.MethodGet, "/audits/"+uuid.New().String(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(s, httptest.NewRequest(http.MethodGet, "/audits/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(s, httptest.NewRequest(http.MethodGet, "/audits?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	s := newTestServer(t)
	s.rateLimiter = ratelimit.NewLimiter(&ratelimit.Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Hour,
		DefaultBurst:  1,
	})
	t.Cleanup(s.rateLimiter.Stop)

	body := `{"reference": []}`
	req := httptest.NewRequest(http.MethodPost, "/reconcile", strings.NewReader(body))
	req.RemoteAddr = "192.0.2.1:1234"
	w := serve(s, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	req = httptest.NewRequest(http.MethodPost, "/reconcile", strings.NewReader(body))
	req.RemoteAddr = "192.0.2.1:5678"
	w = serve(s, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limit_exceeded", decodeError(t, w))

	// Health checks are never limited
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "192.0.2.1:9999"
	assert.Equal(t, http.StatusOK, serve(s, req).Code)
}

func TestCORSMiddleware_OPTIONS(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, httptest.NewRequest(http.MethodOptions, "/reconcile", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestExtractClientID(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "203.0.113.7:4321"
	assert.Equal(t, "203.0.113.7", s.extractClientID(req))

	req.RemoteAddr = "no-port"
	assert.Equal(t, "no-port", s.extractClientID(req))
}

func TestSSEWriter(t *testing.T) {
	w := httptest.NewRecorder()
	sse, err := NewSSEWriter(w)
	require.NoError(t, err)

	require.NoError(t, sse.WriteEvent("progress", map[string]int{"index": 1}))
	sse.WriteError("boom")

	assert.Equal(t, "event: progress\ndata: {\"index\":1}\n\nevent: error\ndata: {\"error\":\"boom\"}\n\n", w.Body.String())
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
}

func TestNew_WithoutDatabase(t *testing.T) {
	s, err := New(context.Background(), Config{Port: 0, RateLimit: 1, RateBurst: 5})
	require.NoError(t, err)
	t.Cleanup(s.close)

	assert.Nil(t, s.db)
	assert.Nil(t, s.history)
	assert.NotNil(t, s.fetcher)
	assert.Equal(t, ":0", s.httpServer.Addr)
}
