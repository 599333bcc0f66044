// Package simulator provides a deterministic synthetic metrics source for
// demos and tests. Given a seed it produces the same daily product metrics
// on every run: a per-product baseline, weekly seasonality, noise, and an
// optional step uplift after a configured event date.
package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/metrics"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/table"
)

const (
	defaultSeed          = 42
	defaultBaselineUnits = 100.0
	defaultUnitPrice     = 25.0
	defaultUplift        = 0.15
)

// Source generates synthetic business metrics.
type Source struct {
	seed          int64
	baselineUnits float64
	unitPrice     float64
	uplift        float64
	eventDate     time.Time
	connected     bool
}

// New creates an unconnected simulator source.
func New() metrics.Adapter {
	return &Source{}
}

// Connect reads simulator parameters from DATA.SOURCE.CONFIG. It fails,
// without retaining partial state, when a parameter is malformed.
func (s *Source) Connect(cfg map[string]interface{}) error {
	seed := int64(defaultSeed)
	if v, ok := cfg["seed"]; ok {
		f, ok := table.AsFloat(v)
		if !ok {
			return errors.Newf(errors.ErrorTypeValidation, "simulator seed must be numeric, got %T", v)
		}
		seed = int64(f)
	}

	baseline := defaultBaselineUnits
	if v, ok := cfg["baseline_units"]; ok {
		f, ok := table.AsFloat(v)
		if !ok {
			return errors.Newf(errors.ErrorTypeValidation, "simulator baseline_units must be numeric, got %T", v)
		}
		baseline = f
	}

	price := defaultUnitPrice
	if v, ok := cfg["unit_price"]; ok {
		f, ok := table.AsFloat(v)
		if !ok {
			return errors.Newf(errors.ErrorTypeValidation, "simulator unit_price must be numeric, got %T", v)
		}
		price = f
	}

	uplift := defaultUplift
	if v, ok := cfg["uplift"]; ok {
		f, ok := table.AsFloat(v)
		if !ok {
			return errors.Newf(errors.ErrorTypeValidation, "simulator uplift must be numeric, got %T", v)
		}
		uplift = f
	}

	var eventDate time.Time
	if v, ok := cfg["event_date"].(string); ok {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return errors.Wrapf(err, errors.ErrorTypeValidation, "simulator event_date %q", v)
		}
		eventDate = parsed
	}

	s.seed = seed
	s.baselineUnits = baseline
	s.unitPrice = price
	s.uplift = uplift
	s.eventDate = eventDate
	s.connected = true
	return nil
}

// RetrieveBusinessMetrics produces one row per product per day in
// [start, end]. Output uses the simulator's native column names (asin,
// ordered_units); the manager maps them to the canonical schema.
func (s *Source) RetrieveBusinessMetrics(ctx context.Context, products *table.Table, start, end time.Time) (*table.Table, error) {
	if !s.connected {
		return nil, errors.New(errors.ErrorTypeConnection, "simulator source is not connected")
	}
	if start.IsZero() || end.IsZero() || start.After(end) {
		return nil, errors.Newf(errors.ErrorTypeValidation,
			"simulator requires an ordered date range, got %s..%s", start, end)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, err := productIDs(products)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(s.seed)) //nolint:gosec // deterministic synthetic data, not crypto

	var (
		asins    []interface{}
		dates    []interface{}
		units    []interface{}
		revenues []interface{}
		prices   []interface{}
	)

	for pi, id := range ids {
		// Stable per-product level so products are distinguishable.
		productFactor := 0.75 + 0.5*rng.Float64()
		_ = pi

		for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
			weekday := 1.0
			switch day.Weekday() {
			case time.Saturday, time.Sunday:
				weekday = 1.25
			case time.Monday:
				weekday = 0.9
			}

			level := s.baselineUnits * productFactor * weekday
			noise := rng.NormFloat64() * s.baselineUnits * 0.05
			sold := level + noise
			if !s.eventDate.IsZero() && !day.Before(s.eventDate) {
				sold *= 1 + s.uplift
			}
			if sold < 0 {
				sold = 0
			}

			asins = append(asins, id)
			dates = append(dates, day)
			units = append(units, int64(sold+0.5))
			revenues = append(revenues, float64(int64(sold+0.5))*s.unitPrice)
			prices = append(prices, s.unitPrice)
		}
	}

	out := table.New()
	if err := out.AddColumn("asin", asins); err != nil {
		return nil, err
	}
	if err := out.AddColumn("date", dates); err != nil {
		return nil, err
	}
	if err := out.AddColumn("ordered_units", units); err != nil {
		return nil, err
	}
	if err := out.AddColumn("revenue", revenues); err != nil {
		return nil, err
	}
	if err := out.AddColumn("price", prices); err != nil {
		return nil, err
	}
	return out, nil
}

func productIDs(products *table.Table) ([]string, error) {
	for _, name := range []string{"product_id", "asin", "sku"} {
		if !products.HasColumn(name) {
			continue
		}
		col, err := products.Column(name)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(col))
		for _, v := range col {
			s, ok := table.AsString(v)
			if !ok {
				return nil, errors.Newf(errors.ErrorTypeValidation, "product identifier %v is not a string", v)
			}
			ids = append(ids, s)
		}
		return ids, nil
	}
	return nil, errors.Newf(errors.ErrorTypeValidation,
		"products table has no identifier column, columns: %v", products.Columns())
}

// Catalog synthesizes a product table with n products, for configs that do
// not point at a catalog file.
func Catalog(n int) *table.Table {
	if n <= 0 {
		n = 5
	}
	ids := make([]interface{}, n)
	names := make([]interface{}, n)
	for i := 0; i < n; i++ {
		ids[i] = fmt.Sprintf("P%04d", i+1)
		names[i] = fmt.Sprintf("Product %d", i+1)
	}
	tbl := table.New()
	_ = tbl.AddColumn("product_id", ids)
	_ = tbl.AddColumn("name", names)
	return tbl
}

func init() {
	metrics.MustRegister("simulator", New)
}
