// Package report turns comparison records into a tabular discrepancy report and writes it out.
package report

import (
	"strconv"

	"github.com/jonathan/listing-auditor/internal/types"
)

// Column headers in export order.
const (
	ColumnExpectedName     = "Expected Name"
	ColumnObservedName     = "Observed Name"
	ColumnCategory         = "Category"
	ColumnMetro            = "Metro"
	ColumnExpectedPosition = "Expected Position"
	ColumnObservedPosition = "Observed Position"
	ColumnIssue            = "Issue"
)

// Columns returns the report header row.
func Columns() []string {
	return []string{
		ColumnExpectedName,
		ColumnObservedName,
		ColumnCategory,
		ColumnMetro,
		ColumnExpectedPosition,
		ColumnObservedPosition,
		ColumnIssue,
	}
}

// Report is the assembled table. Missing values are empty strings.
type Report struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Assemble renders one row per record, in record order.
func Assemble(records []types.ComparisonRecord) *Report {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.ExpectedName(),
			rec.ObservedName(),
			rec.Category(),
			rec.Metro(),
			formatPosition(rec.ExpectedPosition()),
			formatPosition(rec.ObservedPosition()),
			string(rec.Issue),
		})
	}
	return &Report{
		Columns: Columns(),
		Rows:    rows,
	}
}

// Len is the number of data rows.
func (r *Report) Len() int {
	return len(r.Rows)
}

func formatPosition(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}
