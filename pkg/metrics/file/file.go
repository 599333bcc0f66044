// Package file provides a metrics source backed by a local CSV file, for
// metrics exported from external systems. The file keeps its native column
// names; the schema contract maps them to the canonical schema.
package file

import (
	"context"
	"os"
	"time"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/metrics"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/table"
)

// Source reads business metrics from a CSV file.
type Source struct {
	path      string
	connected bool
}

// New creates an unconnected file source.
func New() metrics.Adapter {
	return &Source{}
}

// Connect validates that DATA.SOURCE.CONFIG.path names a readable file.
func (s *Source) Connect(cfg map[string]interface{}) error {
	path, _ := cfg["path"].(string)
	if path == "" {
		return errors.New(errors.ErrorTypeValidation, "file source requires DATA.SOURCE.CONFIG.path")
	}
	if _, err := os.Stat(path); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeConnection, "metrics file not readable: %s", path)
	}
	s.path = path
	s.connected = true
	return nil
}

// RetrieveBusinessMetrics loads the file and filters it to the requested
// products and date range. A zero start/end disables date filtering, and
// an empty products table disables product filtering (the whole file is
// the population).
func (s *Source) RetrieveBusinessMetrics(ctx context.Context, products *table.Table, start, end time.Time) (*table.Table, error) {
	if !s.connected {
		return nil, errors.New(errors.ErrorTypeConnection, "file source is not connected")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path) //nolint:gosec // G304: path comes from validated configuration
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeConnection, "failed to open metrics file %s", s.path)
	}
	defer f.Close()

	tbl, err := table.ReadCSV(f)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeValidation, "failed to parse metrics file %s", s.path)
	}

	wanted := productFilter(products)
	idColumn := findColumn(tbl, "product_id", "sku", "asin")
	dateColumn := findColumn(tbl, "date")

	return tbl.Filter(func(row map[string]interface{}) bool {
		if len(wanted) > 0 && idColumn != "" {
			id, _ := table.AsString(row[idColumn])
			if !wanted[id] {
				return false
			}
		}
		if dateColumn != "" && (!start.IsZero() || !end.IsZero()) {
			ts, ok := table.AsTime(row[dateColumn])
			if !ok {
				return false
			}
			if !start.IsZero() && ts.Before(start) {
				return false
			}
			if !end.IsZero() && ts.After(end) {
				return false
			}
		}
		return true
	}), nil
}

func productFilter(products *table.Table) map[string]bool {
	if products == nil || products.NumRows() == 0 {
		return nil
	}
	name := findColumn(products, "product_id", "sku", "asin")
	if name == "" {
		return nil
	}
	col, err := products.Column(name)
	if err != nil {
		return nil
	}
	wanted := make(map[string]bool, len(col))
	for _, v := range col {
		if s, ok := table.AsString(v); ok {
			wanted[s] = true
		}
	}
	return wanted
}

func findColumn(tbl *table.Table, names ...string) string {
	for _, name := range names {
		if tbl.HasColumn(name) {
			return name
		}
	}
	return ""
}

func init() {
	metrics.MustRegister("file", New)
}
