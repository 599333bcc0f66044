package table

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
)

// ReadCSV parses a headered CSV stream into a table. Cell types are
// inferred per column: int64, float64, bool, date (YYYY-MM-DD), then
// string. A column only gets a typed representation when every non-empty
// cell parses as that type.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "failed to parse CSV")
	}
	if len(records) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "CSV input has no header row")
	}

	headers := records[0]
	raw := make([][]string, len(headers))
	for _, record := range records[1:] {
		if len(record) != len(headers) {
			return nil, errors.Newf(errors.ErrorTypeValidation,
				"CSV row has %d fields, header has %d", len(record), len(headers))
		}
		for i, cell := range record {
			raw[i] = append(raw[i], cell)
		}
	}

	tbl := New()
	for i, header := range headers {
		if err := tbl.AddColumn(header, inferColumn(raw[i])); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}

// WriteCSV writes the table as headered CSV.
func (t *Table) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(t.names); err != nil {
		return errors.Wrap(err, errors.ErrorTypeStorage, "failed to write CSV header")
	}

	record := make([]string, len(t.names))
	for i := 0; i < t.rows; i++ {
		for j, name := range t.names {
			record[j] = formatCell(t.columns[name][i])
		}
		if err := writer.Write(record); err != nil {
			return errors.Wrap(err, errors.ErrorTypeStorage, "failed to write CSV row")
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatCell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		s, _ := AsString(x)
		return s
	}
}

func inferColumn(cells []string) []interface{} {
	parsers := []func(string) (interface{}, bool){
		func(s string) (interface{}, bool) {
			v, err := strconv.ParseInt(s, 10, 64)
			return v, err == nil
		},
		func(s string) (interface{}, bool) {
			v, err := strconv.ParseFloat(s, 64)
			return v, err == nil
		},
		func(s string) (interface{}, bool) {
			v, err := strconv.ParseBool(s)
			return v, err == nil && (s == "true" || s == "false")
		},
		func(s string) (interface{}, bool) {
			v, err := time.Parse("2006-01-02", s)
			return v, err == nil
		},
	}

	for _, parse := range parsers {
		matched := false
		values := make([]interface{}, len(cells))
		ok := true
		for i, cell := range cells {
			if cell == "" {
				values[i] = nil
				continue
			}
			v, parsed := parse(cell)
			if !parsed {
				ok = false
				break
			}
			values[i] = v
			matched = true
		}
		if ok && matched {
			return values
		}
	}

	// Fall back to strings, empty cells as nil.
	values := make([]interface{}, len(cells))
	for i, cell := range cells {
		if cell == "" {
			values[i] = nil
			continue
		}
		values[i] = cell
	}
	return values
}
