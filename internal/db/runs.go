package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateAuditRun records the start of an audit under a caller-chosen ID
func (db *DB) CreateAuditRun(ctx context.Context, id uuid.UUID, source string, urlCount int) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO audit_runs (id, source, status, url_count)
		 VALUES ($1, $2, $3, $4)`,
		id, source, RunStatusRunning, urlCount,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit run: %w", err)
	}
	return nil
}

// CompleteAuditRun stores the final counts of an audit
func (db *DB) CompleteAuditRun(ctx context.Context, id uuid.UUID, outcome AuditRunOutcome) error {
	counts, err := json.Marshal(outcome.IssueCounts)
	if err != nil {
		return fmt.Errorf("failed to marshal issue counts: %w", err)
	}

	status := outcome.Status
	if status == "" {
		status = RunStatusCompleted
	}
	var errMsg *string
	if outcome.ErrorMessage != "" {
		errMsg = &outcome.ErrorMessage
	}

	tag, err := db.pool.Exec(ctx,
		`UPDATE audit_runs
		 SET status = $2, pages_failed = $3, record_count = $4, issue_counts = $5,
		     error_message = $6, completed_at = NOW()
		 WHERE id = $1`,
		id, status, outcome.PagesFailed, outcome.RecordCount, counts, errMsg,
	)
	if err != nil {
		return fmt.Errorf("failed to complete audit run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to complete audit run: run %s not found", id)
	}
	return nil
}

const auditRunColumns = `id, source, status, url_count, pages_failed, record_count, issue_counts,
	error_message, created_at, completed_at`

func scanAuditRun(row pgx.Row) (*AuditRun, error) {
	var run AuditRun
	var counts []byte
	if err := row.Scan(&run.ID, &run.Source, &run.Status, &run.URLCount, &run.PagesFailed, &run.RecordCount,
		&counts, &run.ErrorMessage, &run.CreatedAt, &run.CompletedAt); err != nil {
		return nil, err
	}
	if len(counts) > 0 {
		if err := json.Unmarshal(counts, &run.IssueCounts); err != nil {
			return nil, fmt.Errorf("failed to decode issue counts: %w", err)
		}
	}
	return &run, nil
}

// GetAuditRun retrieves an audit run by ID
func (db *DB) GetAuditRun(ctx context.Context, id uuid.UUID) (*AuditRun, error) {
	run, err := scanAuditRun(db.pool.QueryRow(ctx,
		`SELECT `+auditRunColumns+` FROM audit_runs WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get audit run: %w", err)
	}
	return run, nil
}

// ListAuditRuns retrieves recent audit runs, newest first
func (db *DB) ListAuditRuns(ctx context.Context, limit int) ([]AuditRun, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+auditRunColumns+` FROM audit_runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit runs: %w", err)
	}
	defer rows.Close()

	runs := make([]AuditRun, 0)
	for rows.Next() {
		run, err := scanAuditRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list audit runs: %w", err)
	}
	return runs, nil
}
