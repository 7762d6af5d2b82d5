package types

// Issue classifies a single Comparison Record.
type Issue string

const (
	// IssueNone means both sides agree.
	IssueNone Issue = "none"
	// IssueMissingFromInput means the website lists a company the reference does not.
	IssueMissingFromInput Issue = "missing_from_input"
	// IssueMissingFromWebsite means a reference company was not found on any fetched page.
	IssueMissingFromWebsite Issue = "missing_from_website"
	// IssuePositionMismatch means both sides list the company at different ranks.
	IssuePositionMismatch Issue = "position_mismatch"
)

// AllIssues lists every classification in report order.
func AllIssues() []Issue {
	return []Issue{IssueNone, IssueMissingFromInput, IssueMissingFromWebsite, IssuePositionMismatch}
}

// ComparisonRecord is one row of the discrepancy report.
// Reference is nil for missing_from_input rows; Scraped is nil for missing_from_website rows.
// Both point at copies owned by the record, so the inputs are never aliased.
type ComparisonRecord struct {
	Reference *ReferenceRecord `json:"reference,omitempty"`
	Scraped   *ScrapedRecord   `json:"scraped,omitempty"`
	Issue     Issue            `json:"issue"`
}

// ExpectedName returns the reference name, or "" when there is no reference side.
func (c ComparisonRecord) ExpectedName() string {
	if c.Reference == nil {
		return ""
	}
	return c.Reference.PublishedName
}

// ObservedName returns the scraped name, or "" when there is no scraped side.
func (c ComparisonRecord) ObservedName() string {
	if c.Scraped == nil {
		return ""
	}
	return c.Scraped.Name
}

// Category prefers the URL-derived scraped label and falls back to the reference.
func (c ComparisonRecord) Category() string {
	if c.Scraped != nil {
		return c.Scraped.Category
	}
	if c.Reference != nil {
		return c.Reference.Category
	}
	return ""
}

// Metro prefers the URL-derived scraped label and falls back to the reference.
func (c ComparisonRecord) Metro() string {
	if c.Scraped != nil {
		return c.Scraped.Metro
	}
	if c.Reference != nil {
		return c.Reference.Metro
	}
	return ""
}

// ExpectedPosition returns the reference rank, or nil when unknown or absent.
func (c ComparisonRecord) ExpectedPosition() *int {
	if c.Reference == nil {
		return nil
	}
	return c.Reference.ExpectedPosition
}

// ObservedPosition returns the scraped rank, or nil when there is no scraped side.
func (c ComparisonRecord) ObservedPosition() *int {
	if c.Scraped == nil {
		return nil
	}
	p := c.Scraped.Position
	return &p
}
