// Package inventory loads ordered inventory sources and folds them into
// one merged catalog with explicit precedence.
//
// Sources deliver row-normalized tabular data (IPN, Category, Value,
// Package plus optional sourcing columns). Load order encodes precedence:
// on IPN collision the first-loaded source's definition wins and the
// collision is recorded for the conflict report. A single bad source is
// skipped; structural problems (missing required columns, malformed
// priorities) abort the whole load naming every offender.
package inventory

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"partlinker/internal/errors"
)

// Row is one normalized inventory row as consumed from a source.
type Row struct {
	IPN          string
	Category     string
	Value        string
	Package      string
	Distributor  string
	DPN          string
	Manufacturer string
	MFGPN        string
	Description  string
	// Priority is the raw cell text; validation happens in Load so every
	// offender across every source can be named at once.
	Priority string
	// HasPriority reports whether the source declared a Priority column
	// for this row. An absent column is not an error; a present column
	// that does not parse is.
	HasPriority bool
	// Extra holds pass-through columns for downstream writers.
	Extra map[string]string
	// Line is the 1-based source line for error reporting.
	Line int
}

// Source is one ordered inventory input.
type Source interface {
	// Identity names the source in reports and conflict records.
	Identity() string
	// Rows reads the full source. The underlying file is opened, read,
	// and closed within the call.
	Rows() ([]Row, error)
}

// requiredColumns must be present in every source.
var requiredColumns = []string{"ipn", "category", "value", "package"}

// knownColumns maps normalized header names to Row fields; anything else
// passes through in Extra.
var knownColumns = map[string]bool{
	"ipn": true, "category": true, "value": true, "package": true,
	"distributor": true, "dpn": true, "manufacturer": true,
	"mfgpn": true, "priority": true, "description": true,
}

// FileSource builds a source for path based on its extension. CSV and
// YAML catalogs are supported.
func FileSource(path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return &csvSource{path: path}, nil
	case ".yaml", ".yml":
		return &yamlSource{path: path}, nil
	default:
		return nil, errors.NewInventoryError("unknown_source_type",
			fmt.Sprintf("unsupported inventory source %q, expected .csv, .yaml, or .yml", path), true)
	}
}

// normalizeHeader canonicalizes a column name for matching.
func normalizeHeader(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// missingColumnsError builds the fatal error naming exactly which
// required columns a source lacks.
func missingColumnsError(identity string, missing []string) error {
	sort.Strings(missing)

	return errors.NewInventoryError("missing_columns",
		fmt.Sprintf("source %s: missing required columns: %s",
			identity, strings.Join(missing, ", ")), false)
}

// csvSource reads a comma-separated catalog with a header row.
type csvSource struct {
	path string
}

func (s *csvSource) Identity() string {
	return s.path
}

func (s *csvSource) Rows() ([]Row, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, errors.NewIOError("read_source",
			fmt.Sprintf("cannot open inventory source %s", s.path), err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewIOError("malformed_source",
			fmt.Sprintf("cannot parse inventory source %s", s.path), err)
	}
	if len(records) == 0 {
		return nil, errors.NewIOError("malformed_source",
			fmt.Sprintf("inventory source %s has no header row", s.path), nil)
	}

	header := records[0]
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[normalizeHeader(name)] = i
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, missingColumnsError(s.path, missing)
	}

	_, hasPriority := index["priority"]

	cell := func(record []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(record) {
			return ""
		}

		return strings.TrimSpace(record[i])
	}

	rows := make([]Row, 0, len(records)-1)
	for n, record := range records[1:] {
		row := Row{
			IPN:          cell(record, "ipn"),
			Category:     cell(record, "category"),
			Value:        cell(record, "value"),
			Package:      cell(record, "package"),
			Distributor:  cell(record, "distributor"),
			DPN:          cell(record, "dpn"),
			Manufacturer: cell(record, "manufacturer"),
			MFGPN:        cell(record, "mfgpn"),
			Description:  cell(record, "description"),
			Priority:     cell(record, "priority"),
			HasPriority:  hasPriority,
			Line:         n + 2,
		}

		for i, name := range header {
			norm := normalizeHeader(name)
			if knownColumns[norm] || i >= len(record) {
				continue
			}
			if row.Extra == nil {
				row.Extra = make(map[string]string)
			}
			row.Extra[name] = record[i]
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// yamlSource reads a catalog expressed as a YAML list of row maps.
type yamlSource struct {
	path string
}

func (s *yamlSource) Identity() string {
	return s.path
}

func (s *yamlSource) Rows() ([]Row, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.NewIOError("read_source",
			fmt.Sprintf("cannot open inventory source %s", s.path), err)
	}

	var raw []map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.NewIOError("malformed_source",
			fmt.Sprintf("cannot parse inventory source %s", s.path), err)
	}

	// Column presence is the union across rows; a required column absent
	// everywhere is a structural error, same as a missing CSV header.
	present := make(map[string]bool)
	for _, m := range raw {
		for k := range m {
			present[normalizeHeader(k)] = true
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(raw) > 0 && len(missing) > 0 {
		return nil, missingColumnsError(s.path, missing)
	}

	rows := make([]Row, 0, len(raw))
	for n, m := range raw {
		row := Row{Line: n + 1, HasPriority: present["priority"]}
		for k, v := range m {
			text := ""
			if v != nil {
				text = strings.TrimSpace(fmt.Sprint(v))
			}
			switch normalizeHeader(k) {
			case "ipn":
				row.IPN = text
			case "category":
				row.Category = text
			case "value":
				row.Value = text
			case "package":
				row.Package = text
			case "distributor":
				row.Distributor = text
			case "dpn":
				row.DPN = text
			case "manufacturer":
				row.Manufacturer = text
			case "mfgpn":
				row.MFGPN = text
			case "description":
				row.Description = text
			case "priority":
				row.Priority = text
			default:
				if row.Extra == nil {
					row.Extra = make(map[string]string)
				}
				row.Extra[k] = text
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}
