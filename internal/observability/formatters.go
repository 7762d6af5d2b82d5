// Package observability provides logging and formatted terminal output for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/listing-auditor/internal/reconcile"
	"github.com/jonathan/listing-auditor/internal/report"
	"github.com/jonathan/listing-auditor/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 72
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 10
)

// Printer handles formatted output for the terminal
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to at most width runes.
func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-3]) + "..."
}

// PrintURLs outputs the derived category/metro page URLs.
func (p *Printer) PrintURLs(urls []string) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d unique category/metro URLs\n", len(urls)))

	count := min(len(urls), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("\n  • %s", urls[i]))
	}
	if len(urls) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n  ... and %d more", len(urls)-maxItemsToShow))
	}

	p.printBox("LISTING PAGES", sb.String())
}

// PrintSummary outputs the issue counts of a comparison run.
func (p *Printer) PrintSummary(summary reconcile.Summary, pagesFetched, pagesFailed int) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Pages fetched:  %d", pagesFetched))
	if pagesFailed > 0 {
		sb.WriteString(fmt.Sprintf(" (%d failed)", pagesFailed))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Rows:           %d\n", summary.Total))
	sb.WriteString(fmt.Sprintf("Discrepancies:  %d\n\n", summary.Discrepancies()))

	for _, issue := range types.AllIssues() {
		sb.WriteString(fmt.Sprintf("  %-22s %d\n", issue, summary.ByIssue[issue]))
	}

	if summary.DuplicateReferenceKeys > 0 {
		sb.WriteString(fmt.Sprintf("\n⚠ %d reference keys appear more than once; their rows are repeated",
			summary.DuplicateReferenceKeys))
	}

	p.printBox("COMPARISON RESULTS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintPreview outputs the first rows of a report.
func (p *Printer) PrintPreview(r *report.Report) {
	if r == nil || r.Len() == 0 {
		return
	}

	var sb strings.Builder
	count := min(r.Len(), maxItemsToShow)
	for i := 0; i < count; i++ {
		row := r.Rows[i]
		sb.WriteString(fmt.Sprintf("%-20s %-20s %3s %3s %s\n",
			truncate(orDash(row[0]), 20), truncate(orDash(row[1]), 20), orDash(row[4]), orDash(row[5]), row[6]))
	}
	if r.Len() > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more rows", r.Len()-maxItemsToShow))
	}

	p.printBox("PREVIEW (expected, observed, positions, issue)", strings.TrimSuffix(sb.String(), "\n"))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
