package reference

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonathan/listing-auditor/internal/schemas"
	"github.com/jonathan/listing-auditor/internal/types"
)

// Reference CSV column headers.
const (
	ColumnProfileURL    = "Company Web Profile URL"
	ColumnPublishedName = "PublishedName"
	ColumnCategory      = "Category"
	ColumnMetro         = "Metro"
	ColumnPosition      = "FSR Position"
)

// RequiredColumns lists the headers every CSV reference file must carry.
func RequiredColumns() []string {
	return []string{ColumnProfileURL, ColumnPublishedName, ColumnCategory, ColumnMetro}
}

// Table is a loaded reference dataset.
type Table struct {
	Records []types.ReferenceRecord
	// PositionsDerived is set when the input had no position column and
	// expected positions were ranked from the names instead.
	PositionsDerived bool
}

// LoadFile loads a reference table, choosing JSON for .json files and CSV otherwise.
func LoadFile(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Message: "failed to open " + path, Cause: err}
	}
	defer func() { _ = file.Close() }()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, &LoadError{Message: "failed to read " + path, Cause: err}
		}
		return LoadJSON(data)
	}
	return LoadCSV(file)
}

// LoadCSV reads a reference table with a header row. Columns are matched by name;
// extra columns are ignored. Without an FSR Position column, positions are derived.
func LoadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &LoadError{Message: "reference input is empty"}
		}
		return nil, &LoadError{Message: "failed to read CSV header", Cause: err}
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns() {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnError{Columns: missing}
	}

	positionIdx, hasPosition := index[ColumnPosition]
	field := func(row []string, col string) string {
		i := index[col]
		if i >= len(row) {
			return ""
		}
		return row[i]
	}

	records := make([]types.ReferenceRecord, 0)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &LoadError{Message: "failed to read CSV row", Cause: err}
		}
		if isBlank(row) {
			continue
		}

		rec := types.ReferenceRecord{
			ProfileURL:    strings.TrimSpace(field(row, ColumnProfileURL)),
			PublishedName: field(row, ColumnPublishedName),
			Category:      field(row, ColumnCategory),
			Metro:         field(row, ColumnMetro),
		}
		if hasPosition && positionIdx < len(row) {
			rec.ExpectedPosition = ParsePosition(row[positionIdx])
		}
		records = append(records, rec)
	}

	table := &Table{Records: records}
	if !hasPosition {
		AssignPositions(table.Records)
		table.PositionsDerived = true
	}
	return table, nil
}

// jsonRecord accepts expected_position as a number or a numeric string.
type jsonRecord struct {
	ProfileURL       string          `json:"profile_url"`
	PublishedName    string          `json:"published_name"`
	Category         string          `json:"category"`
	Metro            string          `json:"metro"`
	ExpectedPosition json.RawMessage `json:"expected_position"`
}

// LoadJSON reads a JSON array of reference objects after validating it against the
// reference schema. Positions are derived when no object carries one.
func LoadJSON(data []byte) (*Table, error) {
	if err := schemas.ValidateReference(data); err != nil {
		return nil, err
	}

	var raw []jsonRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &LoadError{Message: "failed to decode reference JSON", Cause: err}
	}

	records := make([]types.ReferenceRecord, 0, len(raw))
	anyPosition := false
	for _, r := range raw {
		rec := types.ReferenceRecord{
			ProfileURL:    strings.TrimSpace(r.ProfileURL),
			PublishedName: r.PublishedName,
			Category:      r.Category,
			Metro:         r.Metro,
		}
		if len(r.ExpectedPosition) > 0 && string(r.ExpectedPosition) != "null" {
			anyPosition = true
			rec.ExpectedPosition = parseRawPosition(r.ExpectedPosition)
		}
		records = append(records, rec)
	}

	table := &Table{Records: records}
	if !anyPosition {
		AssignPositions(table.Records)
		table.PositionsDerived = true
	}
	return table, nil
}

// ParsePosition reads an expected position cell. Blank, non-numeric, non-integral and
// non-positive values yield nil (position unknown). "3.0" is accepted as 3.
func ParsePosition(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return positive(n)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f > math.MaxInt32 {
		return nil
	}
	return positive(int(f))
}

func parseRawPosition(raw json.RawMessage) *int {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParsePosition(s)
	}
	return ParsePosition(string(raw))
}

func positive(n int) *int {
	if n < 1 {
		return nil
	}
	return &n
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
