// Package transform provides the named reshaping functions applied between
// metrics retrieval and model fitting. Transforms register by name exactly
// like adapters; selection comes from DATA.TRANSFORM.FUNCTION with
// passthrough as the default, so omitting a transform is always valid.
package transform

import (
	"sort"
	"time"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/registry"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/table"
)

// Func reshapes a canonical table using the configured parameters.
type Func func(tbl *table.Table, params map[string]interface{}) (*table.Table, error)

var transforms = registry.New[Func]("transform")

// Register adds a transform to the package registry.
func Register(name string, fn Func) error {
	return transforms.Register(name, fn)
}

// MustRegister registers from init functions.
func MustRegister(name string, fn Func) {
	transforms.MustRegister(name, fn)
}

// DefaultRegistry returns the package-level transform registry.
func DefaultRegistry() *registry.Registry[Func] {
	return transforms
}

// Names lists the registered transforms.
func Names() []string {
	return transforms.Names()
}

// Apply looks up the named transform and runs it. An empty name means
// passthrough.
func Apply(tbl *table.Table, name string, params map[string]interface{}) (*table.Table, error) {
	return ApplyWithRegistry(transforms, tbl, name, params)
}

// ApplyWithRegistry is Apply with an injected registry.
func ApplyWithRegistry(reg *registry.Registry[Func], tbl *table.Table, name string, params map[string]interface{}) (*table.Table, error) {
	if name == "" {
		name = "passthrough"
	}
	fn, err := reg.Get(name)
	if err != nil {
		return nil, err
	}
	out, err := fn(tbl, params)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeValidation, "transform %q failed", name)
	}
	return out, nil
}

// Passthrough returns the input unchanged.
func Passthrough(tbl *table.Table, params map[string]interface{}) (*table.Table, error) {
	return tbl, nil
}

// AggregateByDate sums the numeric metric columns per date, collapsing the
// per-product dimension. Params: "metrics" (list of column names, default
// sales_volume and revenue).
func AggregateByDate(tbl *table.Table, params map[string]interface{}) (*table.Table, error) {
	if !tbl.HasColumn("date") {
		return nil, errors.Newf(errors.ErrorTypeValidation,
			"aggregate_by_date requires a date column, columns: %v", tbl.Columns())
	}

	metricNames := []string{"sales_volume", "revenue"}
	if raw, ok := params["metrics"].([]interface{}); ok {
		metricNames = metricNames[:0]
		for _, v := range raw {
			s, ok := table.AsString(v)
			if !ok {
				return nil, errors.Newf(errors.ErrorTypeValidation, "metric name %v is not a string", v)
			}
			metricNames = append(metricNames, s)
		}
	}
	for _, name := range metricNames {
		if !tbl.HasColumn(name) {
			return nil, errors.Newf(errors.ErrorTypeValidation,
				"aggregate_by_date: no column %q, columns: %v", name, tbl.Columns())
		}
	}

	sums := make(map[time.Time]map[string]float64)
	for i := 0; i < tbl.NumRows(); i++ {
		row := tbl.Row(i)
		day, ok := table.AsTime(row["date"])
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeValidation, "unparseable date %v in row %d", row["date"], i)
		}
		day = day.Truncate(24 * time.Hour)
		if sums[day] == nil {
			sums[day] = make(map[string]float64)
		}
		for _, name := range metricNames {
			v, ok := table.AsFloat(row[name])
			if !ok {
				continue
			}
			sums[day][name] += v
		}
	}

	days := make([]time.Time, 0, len(sums))
	for day := range sums {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	out := table.New()
	dateValues := make([]interface{}, len(days))
	for i, day := range days {
		dateValues[i] = day
	}
	if err := out.AddColumn("date", dateValues); err != nil {
		return nil, err
	}
	for _, name := range metricNames {
		values := make([]interface{}, len(days))
		for i, day := range days {
			values[i] = sums[day][name]
		}
		if err := out.AddColumn(name, values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// EnrichmentWindow adds a boolean "enriched" column marking rows on or
// after the enrichment start date. The enrichment_start parameter is
// injected by the configuration processor's derived-field stage, never
// re-derived here.
func EnrichmentWindow(tbl *table.Table, params map[string]interface{}) (*table.Table, error) {
	raw, ok := params["enrichment_start"].(string)
	if !ok || raw == "" {
		return nil, errors.New(errors.ErrorTypeValidation,
			"enrichment_window requires the enrichment_start parameter")
	}
	start, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeValidation, "enrichment_start %q", raw)
	}
	if !tbl.HasColumn("date") {
		return nil, errors.Newf(errors.ErrorTypeValidation,
			"enrichment_window requires a date column, columns: %v", tbl.Columns())
	}

	dates, err := tbl.Column("date")
	if err != nil {
		return nil, err
	}
	flags := make([]interface{}, len(dates))
	for i, v := range dates {
		ts, ok := table.AsTime(v)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeValidation, "unparseable date %v in row %d", v, i)
		}
		flags[i] = !ts.Before(start)
	}

	out := tbl.Clone()
	if err := out.AddColumn("enriched", flags); err != nil {
		return nil, err
	}
	return out, nil
}

func init() {
	MustRegister("passthrough", Passthrough)
	MustRegister("aggregate_by_date", AggregateByDate)
	MustRegister("enrichment_window", EnrichmentWindow)
}
