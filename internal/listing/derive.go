// Package listing derives category/metro listing pages from reference profile URLs.
package listing

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jonathan/listing-auditor/internal/types"
)

// Unknown labels a category or metro that could not be read from a URL.
const Unknown = "unknown"

// BaseURL reduces a company profile URL to its category/metro page,
// scheme://host/<category>/<metro>. It reports false when the URL is unparseable,
// lacks a scheme or host, or has fewer than two path segments.
func BaseURL(profileURL string) (string, bool) {
	trimmed := strings.TrimSpace(profileURL)
	if trimmed == "" {
		return "", false
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}

	parts := segments(parsed.EscapedPath())
	if len(parts) < 2 {
		return "", false
	}

	return fmt.Sprintf("%s://%s/%s/%s", parsed.Scheme, parsed.Host, parts[0], parts[1]), true
}

// DeriveURLs returns the distinct category/metro pages referenced by records,
// in first-seen order. Records without a derivable URL contribute nothing.
func DeriveURLs(records []types.ReferenceRecord) []string {
	urlSet := make(map[string]bool)
	urls := make([]string, 0)

	for _, rec := range records {
		base, ok := BaseURL(rec.ProfileURL)
		if !ok {
			continue
		}
		if !urlSet[base] {
			urlSet[base] = true
			urls = append(urls, base)
		}
	}

	return urls
}

// CategoryAndMetro reads the category and metro labels from a page URL path.
// Hyphens become spaces; missing segments and malformed URLs yield Unknown.
func CategoryAndMetro(pageURL string) (category, metro string) {
	parsed, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return Unknown, Unknown
	}

	parts := segments(parsed.Path)
	category, metro = Unknown, Unknown
	if len(parts) > 0 {
		category = strings.ReplaceAll(parts[0], "-", " ")
	}
	if len(parts) > 1 {
		metro = strings.ReplaceAll(parts[1], "-", " ")
	}
	return category, metro
}

// segments splits a URL path on "/" and drops empty segments.
func segments(path string) []string {
	parts := make([]string, 0, 4)
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
