package fetch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jonathan/listing-auditor/internal/schemas"
	"github.com/jonathan/listing-auditor/internal/types"
)

// DecodeRecords reads scraped records saved by a previous scrape. The document is
// validated against the scraped schema before decoding.
func DecodeRecords(data []byte) ([]types.ScrapedRecord, error) {
	if err := schemas.ValidateScraped(data); err != nil {
		return nil, err
	}

	var records []types.ScrapedRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode scraped records: %w", err)
	}
	if records == nil {
		records = make([]types.ScrapedRecord, 0)
	}
	return records, nil
}

// LoadRecordsFile reads scraped records from a JSON file.
func LoadRecordsFile(path string) ([]types.ScrapedRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scraped records %s: %w", path, err)
	}
	return DecodeRecords(data)
}

// WriteRecords writes records as an indented JSON array that DecodeRecords accepts.
func WriteRecords(w io.Writer, records []types.ScrapedRecord) error {
	if records == nil {
		records = make([]types.ScrapedRecord, 0)
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(records); err != nil {
		return fmt.Errorf("failed to encode scraped records: %w", err)
	}
	return nil
}
