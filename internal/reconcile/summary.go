package reconcile

import "github.com/jonathan/listing-auditor/internal/types"

// Summary counts comparison rows per issue.
type Summary struct {
	Total   int                 `json:"total"`
	ByIssue map[types.Issue]int `json:"by_issue"`
	// DuplicateReferenceKeys is the number of Match Keys shared by several
	// reference records. Each of them fans out into extra joined rows.
	DuplicateReferenceKeys int `json:"duplicate_reference_keys"`
}

// Summarize tallies records by issue. Every issue is present in ByIssue, even at zero.
func Summarize(records []types.ComparisonRecord) Summary {
	byIssue := make(map[types.Issue]int, len(types.AllIssues()))
	for _, issue := range types.AllIssues() {
		byIssue[issue] = 0
	}
	for _, rec := range records {
		byIssue[rec.Issue]++
	}
	return Summary{
		Total:   len(records),
		ByIssue: byIssue,
	}
}

// Discrepancies is the number of rows whose issue is not none.
func (s Summary) Discrepancies() int {
	return s.Total - s.ByIssue[types.IssueNone]
}

// SummarizeRun is Summarize plus the duplicate-key count of the reference table.
func SummarizeRun(refs []types.ReferenceRecord, records []types.ComparisonRecord) Summary {
	summary := Summarize(records)
	summary.DuplicateReferenceKeys = len(DuplicateReferenceKeys(refs))
	return summary
}
