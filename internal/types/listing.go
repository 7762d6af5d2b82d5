// Package types provides type definitions for the records exchanged between the listing auditor's components.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"github.com/go-playground/validator/v10"
)

// ReferenceRecord is one expected listing from the authoritative input dataset.
type ReferenceRecord struct {
	ProfileURL       string `json:"profile_url"`
	PublishedName    string `json:"published_name"`
	Category         string `json:"category"`
	Metro            string `json:"metro"`
	ExpectedPosition *int   `json:"expected_position,omitempty" validate:"omitempty,gte=1"` // nil means position unknown
}

// ScrapedRecord is one listing observed on a live category/metro page.
// Category and Metro come from the page URL, never from the page content.
type ScrapedRecord struct {
	SourceURL string `json:"source_url"`
	Category  string `json:"category"`
	Metro     string `json:"metro"`
	Position  int    `json:"position" validate:"gte=1"`
	Name      string `json:"name" validate:"required"`
}

// Validate validates the ReferenceRecord using the validator.
func (r *ReferenceRecord) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the ScrapedRecord using the validator.
func (s *ScrapedRecord) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
