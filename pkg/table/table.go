// Package table provides the in-memory tabular data model shared by metrics
// adapters, transforms, and model adapters, together with CSV and Parquet
// codecs for artifact persistence.
//
// A Table is column-oriented with a stable column order. Cells hold one of
// string, int64, float64, bool, time.Time, or nil. Everything that crosses
// the adapter boundary is normalized to these portable types so no
// adapter-specific representation escapes.
package table

import (
	"fmt"
	"time"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
)

// Table is an ordered collection of named, equally sized columns.
type Table struct {
	names   []string
	columns map[string][]interface{}
	rows    int
}

// New creates an empty table.
func New() *Table {
	return &Table{
		columns: make(map[string][]interface{}),
	}
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return t.rows }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.names) }

// Columns returns the column names in order. The returned slice is a copy.
func (t *Table) Columns() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// HasColumn reports whether the column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Column returns the values of a column. The returned slice is shared; do
// not mutate it.
func (t *Table) Column(name string) ([]interface{}, error) {
	col, ok := t.columns[name]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeValidation, "table has no column %q, columns: %v", name, t.names)
	}
	return col, nil
}

// AddColumn appends a new column. The value count must match the current
// row count unless the table is empty.
func (t *Table) AddColumn(name string, values []interface{}) error {
	if _, exists := t.columns[name]; exists {
		return errors.Newf(errors.ErrorTypeValidation, "column %q already exists", name)
	}
	if len(t.names) > 0 && len(values) != t.rows {
		return errors.Newf(errors.ErrorTypeValidation,
			"column %q has %d values, table has %d rows", name, len(values), t.rows)
	}
	t.names = append(t.names, name)
	t.columns[name] = values
	if len(t.names) == 1 {
		t.rows = len(values)
	}
	return nil
}

// AddConstantColumn appends a column holding the same value in every row.
func (t *Table) AddConstantColumn(name string, value interface{}) error {
	values := make([]interface{}, t.rows)
	for i := range values {
		values[i] = value
	}
	return t.AddColumn(name, values)
}

// AppendRow appends one row. Missing columns become nil; unknown keys are
// an error so typos do not silently drop data.
func (t *Table) AppendRow(row map[string]interface{}) error {
	for key := range row {
		if _, ok := t.columns[key]; !ok {
			return errors.Newf(errors.ErrorTypeValidation, "row references unknown column %q", key)
		}
	}
	for _, name := range t.names {
		t.columns[name] = append(t.columns[name], row[name])
	}
	t.rows++
	return nil
}

// Row returns row i as a map.
func (t *Table) Row(i int) map[string]interface{} {
	row := make(map[string]interface{}, len(t.names))
	for _, name := range t.names {
		row[name] = t.columns[name][i]
	}
	return row
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := New()
	for _, name := range t.names {
		values := make([]interface{}, len(t.columns[name]))
		copy(values, t.columns[name])
		_ = out.AddColumn(name, values)
	}
	return out
}

// Rename returns a copy with columns renamed per the mapping. Names absent
// from the mapping are kept as-is; mapping entries for absent columns are
// ignored.
func (t *Table) Rename(mapping map[string]string) *Table {
	out := New()
	for _, name := range t.names {
		target := name
		if renamed, ok := mapping[name]; ok {
			target = renamed
		}
		values := make([]interface{}, len(t.columns[name]))
		copy(values, t.columns[name])
		_ = out.AddColumn(target, values)
	}
	return out
}

// Select returns a copy containing only the named columns, in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	out := New()
	for _, name := range names {
		col, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		values := make([]interface{}, len(col))
		copy(values, col)
		if err := out.AddColumn(name, values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Filter returns a copy containing only rows for which keep returns true.
func (t *Table) Filter(keep func(row map[string]interface{}) bool) *Table {
	out := New()
	for _, name := range t.names {
		_ = out.AddColumn(name, nil)
	}
	out.rows = 0
	for i := 0; i < t.rows; i++ {
		row := t.Row(i)
		if keep(row) {
			_ = out.AppendRow(row)
		}
	}
	return out
}

// Cell coercion helpers. Adapters and transforms use these instead of raw
// type assertions so int64/float64 columns interoperate.

// AsFloat coerces a cell to float64.
func AsFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// AsString coerces a cell to its string form.
func AsString(v interface{}) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case time.Time:
		return x.Format("2006-01-02"), true
	case nil:
		return "", false
	default:
		return fmt.Sprintf("%v", x), true
	}
}

// AsTime coerces a cell to time.Time, parsing YYYY-MM-DD strings.
func AsTime(v interface{}) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		if ts, err := time.Parse("2006-01-02", x); err == nil {
			return ts, true
		}
		if ts, err := time.Parse(time.RFC3339, x); err == nil {
			return ts, true
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}
