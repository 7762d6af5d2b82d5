package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jonathan/listing-auditor/internal/audit"
	"github.com/jonathan/listing-auditor/internal/fetch"
	"github.com/jonathan/listing-auditor/internal/listing"
	"github.com/jonathan/listing-auditor/internal/reconcile"
	"github.com/jonathan/listing-auditor/internal/reference"
	"github.com/jonathan/listing-auditor/internal/report"
	"go.uber.org/zap"
)

// maxUploadBytes bounds request bodies and uploaded reference files.
const maxUploadBytes = 10 << 20

// ReconcileRequest is the body of POST /reconcile. Reference uses the JSON reference
// format; Scraped uses the scraped-records format and may be omitted for an empty scrape.
type ReconcileRequest struct {
	Reference json.RawMessage `json:"reference"`
	Scraped   json.RawMessage `json:"scraped,omitempty"`
}

// AuditResponse is returned by /reconcile, /audits and the stream's complete event.
type AuditResponse struct {
	RunID            string            `json:"run_id"`
	URLs             []string          `json:"urls"`
	PagesFetched     int               `json:"pages_fetched"`
	PagesFailed      int               `json:"pages_failed"`
	PositionsDerived bool              `json:"positions_derived"`
	Summary          reconcile.Summary `json:"summary"`
	Report           *report.Report    `json:"report"`
}

// DeriveURLsResponse is returned by /derive-urls.
type DeriveURLsResponse struct {
	URLs  []string `json:"urls"`
	Count int      `json:"count"`
}

// ProgressEvent is the payload of the stream's progress events.
type ProgressEvent struct {
	URL        string `json:"url"`
	Index      int    `json:"index"`
	Total      int    `json:"total"`
	Records    int    `json:"records"`
	Failed     bool   `json:"failed"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

func newAuditResponse(result *audit.Result, positionsDerived bool) *AuditResponse {
	return &AuditResponse{
		RunID:            result.RunID.String(),
		URLs:             result.URLs,
		PagesFetched:     result.PagesFetched,
		PagesFailed:      result.PagesFailed,
		PositionsDerived: positionsDerived,
		Summary:          result.Summary,
		Report:           result.Report,
	}
}

func newProgressEvent(event audit.PageEvent) ProgressEvent {
	p := ProgressEvent{
		URL:        event.URL,
		Index:      event.Index,
		Total:      event.Total,
		Records:    event.Records,
		Failed:     event.Failed(),
		DurationMs: event.Duration.Milliseconds(),
	}
	if event.Err != nil {
		p.Error = event.Err.Error()
	}
	return p
}

// handleReconcile reconciles already-scraped records against a reference table. Nothing is fetched.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var req ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			s.respondError(w, err)
			return
		}
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Reference) == 0 || string(req.Reference) == "null" {
		s.respondError(w, &ErrValidation{Field: "reference", Message: "is required"})
		return
	}

	table, err := reference.LoadJSON(req.Reference)
	if err != nil {
		s.respondError(w, err)
		return
	}

	scrapedDoc := []byte(req.Scraped)
	if len(scrapedDoc) == 0 || string(scrapedDoc) == "null" {
		scrapedDoc = []byte("[]")
	}
	scraped, err := fetch.DecodeRecords(scrapedDoc)
	if err != nil {
		s.respondError(w, err)
		return
	}

	result := audit.Compare(table.Records, scraped)
	s.jsonResponse(w, http.StatusOK, newAuditResponse(result, table.PositionsDerived))
}

// handleDeriveURLs returns the listing pages an uploaded reference file would fetch.
func (s *Server) handleDeriveURLs(w http.ResponseWriter, r *http.Request) {
	table, _, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	urls := listing.DeriveURLs(table.Records)
	s.jsonResponse(w, http.StatusOK, DeriveURLsResponse{URLs: urls, Count: len(urls)})
}

// handleAudit runs a full audit of an uploaded reference file and returns the report
// in the requested format.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	format, err := parseFormatParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	table, source, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	result, err := s.newRunner(source, nil).Run(r.Context(), table.Records)
	if err != nil {
		// Only cancellation stops a run; the client is gone
		s.logger.Warn("audit aborted", zap.String("source", source), zap.Error(err))
		return
	}

	if format == report.FormatJSON {
		s.jsonResponse(w, http.StatusOK, newAuditResponse(result, table.PositionsDerived))
		return
	}

	sink, err := report.SinkFor(format)
	if err != nil {
		s.respondError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := sink.Write(&buf, result.Report); err != nil {
		s.respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.DefaultFileStem+"."+string(format)+`"`)
	w.Header().Set("X-Audit-Run-ID", result.RunID.String())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Warn("failed to write report", zap.Error(err))
	}
}

// handleAuditStream runs a full audit and streams one progress event per fetched page,
// then a complete event with the report.
func (s *Server) handleAuditStream(w http.ResponseWriter, r *http.Request) {
	table, source, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	observer := audit.ObserverFunc(func(event audit.PageEvent) {
		if err := sse.WriteEvent("progress", newProgressEvent(event)); err != nil {
			s.logger.Warn("failed to write SSE event", zap.Error(err))
		}
	})

	result, err := s.newRunner(source, observer).Run(r.Context(), table.Records)
	if err != nil {
		s.logger.Warn("streaming audit aborted", zap.String("source", source), zap.Error(err))
		sse.WriteError(err.Error())
		return
	}

	sse.WriteComplete(newAuditResponse(result, table.PositionsDerived))
}

// handleListAudits returns the most recent stored audit runs.
func (s *Server) handleListAudits(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondError(w, &ErrHistoryUnavailable{})
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondError(w, &ErrValidation{Field: "limit", Message: "must be a positive integer"})
			return
		}
		limit = min(n, 200)
	}

	runs, err := s.history.ListAuditRuns(r.Context(), limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, runs)
}

// handleGetAudit returns one stored audit run.
func (s *Server) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondError(w, &ErrHistoryUnavailable{})
		return
	}

	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.respondError(w, &ErrValidation{Field: "id", Message: "invalid run ID format"})
		return
	}

	run, err := s.history.GetAuditRun(r.Context(), runID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if run == nil {
		s.respondError(w, &ErrRunNotFound{RunID: runID})
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

// newRunner builds an audit runner for one request.
func (s *Server) newRunner(source string, observer audit.Observer) *audit.Runner {
	return audit.NewRunner(s.fetcher, audit.Options{
		Delay:    s.delay,
		Observer: observer,
		Logger:   s.logger,
		Store:    s.runStore,
		Source:   source,
	})
}

// readUpload loads the reference table from the multipart "file" field. Files named
// *.json are read as JSON, everything else as CSV.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*reference.Table, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, "", maxBytesErr
		}
		return nil, "", &ErrValidation{Field: "file", Message: "expected a multipart/form-data upload"}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", &ErrValidation{Field: "file", Message: "is required"}
	}
	defer func() { _ = file.Close() }()

	table, err := loadUploadedTable(file, header)
	if err != nil {
		return nil, "", err
	}
	return table, header.Filename, nil
}

func loadUploadedTable(file multipart.File, header *multipart.FileHeader) (*reference.Table, error) {
	if strings.EqualFold(filepath.Ext(header.Filename), ".json") {
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, &reference.LoadError{Message: "failed to read upload", Cause: err}
		}
		return reference.LoadJSON(data)
	}
	return reference.LoadCSV(file)
}

// parseFormatParam reads ?format=, defaulting to JSON.
func parseFormatParam(r *http.Request) (report.Format, error) {
	value := r.URL.Query().Get("format")
	if value == "" {
		return report.FormatJSON, nil
	}
	format, err := report.ParseFormat(value)
	if err != nil {
		return "", &ErrValidation{Field: "format", Message: err.Error()}
	}
	return format, nil
}
