// Package reconcile joins reference listings to scraped listings and classifies every pairing.
package reconcile

import (
	"github.com/jonathan/listing-auditor/internal/normalize"
	"github.com/jonathan/listing-auditor/internal/types"
)

// ReferenceKey returns the Match Key of a reference record.
func ReferenceKey(r types.ReferenceRecord) string {
	return normalize.MatchKey(r.PublishedName, r.Category, r.Metro)
}

// ScrapedKey returns the Match Key of a scraped record.
func ScrapedKey(s types.ScrapedRecord) string {
	return normalize.MatchKey(s.Name, s.Category, s.Metro)
}

// Reconcile produces the comparison rows for one run.
//
// Each scraped record yields one row per reference record sharing its Match Key, or a
// single missing_from_input row when none does. Duplicate reference keys therefore fan
// out: a scraped record matching two references yields two rows. Every reference whose
// key never appears on the scraped side then yields one missing_from_website row.
//
// Rows are ordered scraped-then-reference for the joined part, followed by the
// synthesized rows in reference order.
func Reconcile(refs []types.ReferenceRecord, scraped []types.ScrapedRecord) []types.ComparisonRecord {
	refIndex := make(map[string][]int, len(refs))
	refKeys := make([]string, len(refs))
	for i, r := range refs {
		key := ReferenceKey(r)
		refKeys[i] = key
		refIndex[key] = append(refIndex[key], i)
	}

	records := make([]types.ComparisonRecord, 0, len(scraped)+len(refs))
	scrapedKeys := make(map[string]bool, len(scraped))

	for _, s := range scraped {
		key := ScrapedKey(s)
		scrapedKeys[key] = true

		matches := refIndex[key]
		if len(matches) == 0 {
			records = append(records, types.ComparisonRecord{
				Scraped: copyScraped(s),
				Issue:   types.IssueMissingFromInput,
			})
			continue
		}

		for _, idx := range matches {
			ref := copyReference(refs[idx])
			records = append(records, types.ComparisonRecord{
				Reference: ref,
				Scraped:   copyScraped(s),
				Issue:     classify(ref.ExpectedPosition, s.Position),
			})
		}
	}

	for i, r := range refs {
		if scrapedKeys[refKeys[i]] {
			continue
		}
		records = append(records, types.ComparisonRecord{
			Reference: copyReference(r),
			Issue:     types.IssueMissingFromWebsite,
		})
	}

	return records
}

// classify labels a joined pair. An unknown expected position never mismatches.
func classify(expected *int, observed int) types.Issue {
	if expected != nil && *expected != observed {
		return types.IssuePositionMismatch
	}
	return types.IssueNone
}

// DuplicateReferenceKeys returns the Match Keys shared by more than one reference
// record, in first-seen order. These are the keys that fan out in Reconcile.
func DuplicateReferenceKeys(refs []types.ReferenceRecord) []string {
	counts := make(map[string]int, len(refs))
	order := make([]string, 0)
	for _, r := range refs {
		key := ReferenceKey(r)
		counts[key]++
		if counts[key] == 2 {
			order = append(order, key)
		}
	}
	return order
}

func copyReference(r types.ReferenceRecord) *types.ReferenceRecord {
	c := r
	if r.ExpectedPosition != nil {
		c.ExpectedPosition = types.IntPtr(*r.ExpectedPosition)
	}
	return &c
}

func copyScraped(s types.ScrapedRecord) *types.ScrapedRecord {
	c := s
	return &c
}
