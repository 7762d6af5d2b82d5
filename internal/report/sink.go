package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format names an export format.
type Format string

const (
	// FormatCSV is comma-separated values.
	FormatCSV Format = "csv"
	// FormatXLSX is an Excel workbook.
	FormatXLSX Format = "xlsx"
	// FormatJSON is a {columns, rows} object.
	FormatJSON Format = "json"
)

// SheetName is the worksheet the XLSX sink writes to.
const SheetName = "Comparison"

// Sink writes a report to w.
type Sink interface {
	Write(w io.Writer, r *Report) error
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// ParseFormat accepts csv, xlsx or json, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported report format %q (want csv, xlsx or json)", s)
	}
}

// ParseFormats parses a list of formats, splitting comma-joined entries and dropping duplicates.
func ParseFormats(values []string) ([]Format, error) {
	seen := make(map[Format]bool)
	formats := make([]Format, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			f, err := ParseFormat(part)
			if err != nil {
				return nil, err
			}
			if !seen[f] {
				seen[f] = true
				formats = append(formats, f)
			}
		}
	}
	return formats, nil
}

// SinkFor returns the sink that writes format f.
func SinkFor(f Format) (Sink, error) {
	switch f {
	case FormatCSV:
		return CSVSink{}, nil
	case FormatXLSX:
		return XLSXSink{}, nil
	case FormatJSON:
		return JSONSink{}, nil
	default:
		return nil, fmt.Errorf("unsupported report format %q", f)
	}
}

// CSVSink writes the header row followed by the data rows.
type CSVSink struct{}

// Write implements Sink.
func (CSVSink) Write(w io.Writer, r *Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(r.Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := cw.WriteAll(r.Rows); err != nil {
		return fmt.Errorf("failed to write CSV rows: %w", err)
	}
	return nil
}

// XLSXSink writes a single-sheet workbook.
type XLSXSink struct{}

// Write implements Sink.
func (XLSXSink) Write(w io.Writer, r *Report) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := writeXLSXRow(f, 1, r.Columns); err != nil {
		return err
	}
	for i, row := range r.Rows {
		if err := writeXLSXRow(f, i+2, row); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeXLSXRow(f *excelize.File, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("failed to address row %d: %w", rowNum, err)
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(SheetName, cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d: %w", rowNum, err)
	}
	return nil
}

// JSONSink writes the report as indented JSON.
type JSONSink struct{}

// Write implements Sink.
func (JSONSink) Write(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode JSON report: %w", err)
	}
	return nil
}
