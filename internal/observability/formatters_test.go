package observability

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/jonathan/listing-auditor/internal/reconcile"
	"github.com/jonathan/listing-auditor/internal/report"
	"github.com/jonathan/listing-auditor/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestPrintURLs(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	urls := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		urls = append(urls, fmt.Sprintf("https://example.com/plumbers/metro-%d", i))
	}
	p.PrintURLs(urls)
	output := buf.String()

	assert.Contains(t, output, "LISTING PAGES")
	assert.Contains(t, output, "Found 12 unique category/metro URLs")
	assert.Contains(t, output, "metro-0")
	assert.NotContains(t, output, "metro-11")
	assert.Contains(t, output, "... and 2 more")
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	summary := reconcile.Summary{
		Total: 4,
		ByIssue: map[types.Issue]int{
			types.IssueNone:               1,
			types.IssuePositionMismatch:   2,
			types.IssueMissingFromWebsite: 1,
		},
		DuplicateReferenceKeys: 1,
	}
	p.PrintSummary(summary, 3, 1)
	output := buf.String()

	assert.Contains(t, output, "COMPARISON RESULTS")
	assert.Contains(t, output, "Pages fetched:  3 (1 failed)")
	assert.Contains(t, output, "Discrepancies:  3")
	assert.Contains(t, output, "position_mismatch")
	assert.Contains(t, output, "missing_from_input")
	assert.Contains(t, output, "1 reference keys appear more than once")
}

func TestPrintPreview(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	r := report.Assemble([]types.ComparisonRecord{
		{
			Reference: &types.ReferenceRecord{PublishedName: "Ace Plumbing", Category: "plumbers", Metro: "austin", ExpectedPosition: types.IntPtr(1)},
			Scraped:   &types.ScrapedRecord{Name: "Ace Plumbing", Category: "plumbers", Metro: "austin", Position: 2},
			Issue:     types.IssuePositionMismatch,
		},
		{
			Scraped: &types.ScrapedRecord{Name: "Bob's Tires", Category: "tires", Metro: "austin", Position: 1},
			Issue:   types.IssueMissingFromInput,
		},
	})
	p.PrintPreview(r)
	output := buf.String()

	assert.Contains(t, output, "Ace Plumbing")
	assert.Contains(t, output, "position_mismatch")
	assert.Contains(t, output, "Bob's Tires")
	assert.Contains(t, output, "missing_from_input")
}

func TestPrintPreview_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintPreview(nil)
	p.PrintPreview(report.Assemble(nil))

	assert.Empty(t, buf.String())
}

func TestPrintBox_TruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", strings.Repeat("x", 200))

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.Equal(t, boxWidth, len([]rune(line)))
	}
	assert.Contains(t, buf.String(), "...")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "Café Plu...", truncate("Café Plumbing Co", 11))
}
