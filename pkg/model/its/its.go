// Package its implements the interrupted time series model. The series
// is split at the intervention date; the impact estimate compares the
// post period against the pre-period level and trend.
package its

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/model"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/table"
)

const (
	defaultDependentVariable = "revenue"
	defaultMinPrePeriods     = 3
)

// fitParamKeys is the closed set of parameters this model consumes.
// Everything else in MEASUREMENT.PARAMS belongs to other models and is
// filtered out before Fit.
var fitParamKeys = []string{"intervention_date", "dependent_variable", "min_pre_periods"}

// Model estimates intervention impact on a single time series.
type Model struct {
	model.BaseAdapter
}

// New constructs an unconfigured model instance.
func New() model.Adapter { return &Model{} }

// ValidateParams requires a parseable intervention_date and sane
// optional parameters. Runs during the configuring stage, before any
// data retrieval.
func (m *Model) ValidateParams(full map[string]interface{}) error {
	raw, ok := full["intervention_date"].(string)
	if !ok || raw == "" {
		return errors.New(errors.ErrorTypeConfigParameter,
			"interrupted_time_series requires the intervention_date parameter")
	}
	if _, err := time.Parse("2006-01-02", raw); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeConfigParameter,
			"intervention_date %q must be YYYY-MM-DD", raw)
	}
	if v, present := full["dependent_variable"]; present {
		if s, ok := v.(string); !ok || s == "" {
			return errors.Newf(errors.ErrorTypeConfigParameter,
				"dependent_variable %v must be a non-empty string", v)
		}
	}
	if v, present := full["min_pre_periods"]; present {
		n, ok := asInt(v)
		if !ok || n < 1 {
			return errors.Newf(errors.ErrorTypeConfigParameter,
				"min_pre_periods %v must be a positive integer", v)
		}
	}
	return nil
}

// FitParams keeps only the parameters this model understands.
func (m *Model) FitParams(full map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fitParamKeys))
	for _, key := range fitParamKeys {
		if v, ok := full[key]; ok {
			out[key] = v
		}
	}
	return out
}

// RequiredColumns lists the columns the model reads unconditionally.
// The dependent variable column is checked at fit time because its name
// is itself a parameter.
func (m *Model) RequiredColumns() []string { return []string{"date"} }

// Fit splits the series at the intervention date and estimates level
// and trend-adjusted effects, with a Welch t statistic on the raw
// pre/post samples.
func (m *Model) Fit(ctx context.Context, data *table.Table, params map[string]interface{}) (*model.Result, error) {
	raw, ok := params["intervention_date"].(string)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfigParameter,
			"intervention_date %v must be a string", params["intervention_date"])
	}
	intervention, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfigParameter, "intervention_date")
	}
	depVar := defaultDependentVariable
	if s, ok := params["dependent_variable"].(string); ok && s != "" {
		depVar = s
	}
	minPre := defaultMinPrePeriods
	if n, ok := asInt(params["min_pre_periods"]); ok {
		minPre = n
	}
	if !data.HasColumn(depVar) {
		return nil, errors.Newf(errors.ErrorTypeValidation,
			"dependent variable column %q not present, columns: %v", depVar, data.Columns())
	}

	series, err := dailySeries(data, depVar)
	if err != nil {
		return nil, err
	}

	var pre, post []float64
	for _, pt := range series {
		if pt.day.Before(intervention) {
			pre = append(pre, pt.value)
		} else {
			post = append(post, pt.value)
		}
	}
	if len(pre) < minPre {
		return nil, errors.Newf(errors.ErrorTypeValidation,
			"only %d pre-intervention periods, need at least %d", len(pre), minPre)
	}
	if len(post) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation,
			"no observations on or after the intervention date")
	}

	preMean, preVar := meanVariance(pre)
	postMean, postVar := meanVariance(post)
	slope := trendSlope(pre)

	// Counterfactual extends the pre-period trend across the midpoint
	// of the post period.
	counterfactual := preMean + slope*(float64(len(pre)-1)/2+float64(len(post)+1)/2)
	absolute := postMean - preMean
	trendAdjusted := postMean - counterfactual
	relative := 0.0
	if preMean != 0 {
		relative = absolute / preMean
	}

	tStat, df := welchT(preMean, preVar, len(pre), postMean, postVar, len(post))

	result := &model.Result{
		Data: model.ResultData{
			ModelParams: map[string]interface{}{
				"intervention_date":  params["intervention_date"],
				"dependent_variable": depVar,
				"min_pre_periods":    int64(minPre),
				"pre_periods":        int64(len(pre)),
				"post_periods":       int64(len(post)),
			},
			ImpactEstimates: map[string]interface{}{
				"absolute_effect":       absolute,
				"relative_effect":       relative,
				"trend_adjusted_effect": trendAdjusted,
				"t_statistic":           tStat,
				"degrees_of_freedom":    df,
				"significant":           math.Abs(tStat) > 1.96,
			},
			ModelSummary: map[string]interface{}{
				"pre_mean":        preMean,
				"post_mean":       postMean,
				"pre_trend_slope": slope,
				"pre_std":         math.Sqrt(preVar),
				"post_std":        math.Sqrt(postVar),
			},
		},
		Artifacts: map[string]*table.Table{},
	}

	artifact, err := productImpact(data, depVar, intervention)
	if err != nil {
		return nil, err
	}
	if artifact != nil {
		result.Artifacts["product_impact"] = artifact
	}
	return result, nil
}

type seriesPoint struct {
	day   time.Time
	value float64
}

// dailySeries sums the dependent variable per day and returns the
// points in date order.
func dailySeries(data *table.Table, depVar string) ([]seriesPoint, error) {
	sums := make(map[time.Time]float64)
	for i := 0; i < data.NumRows(); i++ {
		row := data.Row(i)
		day, ok := table.AsTime(row["date"])
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeValidation, "unparseable date %v in row %d", row["date"], i)
		}
		day = day.Truncate(24 * time.Hour)
		v, ok := table.AsFloat(row[depVar])
		if !ok {
			continue
		}
		sums[day] += v
	}
	series := make([]seriesPoint, 0, len(sums))
	for day, v := range sums {
		series = append(series, seriesPoint{day: day, value: v})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].day.Before(series[j].day) })
	return series, nil
}

// productImpact builds the per-product pre/post comparison artifact.
// Returns nil when the input carries no product dimension.
func productImpact(data *table.Table, depVar string, intervention time.Time) (*table.Table, error) {
	if !data.HasColumn("product_id") {
		return nil, nil
	}

	type bucket struct {
		preSum, postSum float64
		preN, postN     int64
	}
	buckets := make(map[string]*bucket)
	var order []string
	for i := 0; i < data.NumRows(); i++ {
		row := data.Row(i)
		id, ok := table.AsString(row["product_id"])
		if !ok {
			continue
		}
		day, ok := table.AsTime(row["date"])
		if !ok {
			continue
		}
		v, ok := table.AsFloat(row[depVar])
		if !ok {
			continue
		}
		b := buckets[id]
		if b == nil {
			b = &bucket{}
			buckets[id] = b
			order = append(order, id)
		}
		if day.Before(intervention) {
			b.preSum += v
			b.preN++
		} else {
			b.postSum += v
			b.postN++
		}
	}
	sort.Strings(order)

	ids := make([]interface{}, len(order))
	preMeans := make([]interface{}, len(order))
	postMeans := make([]interface{}, len(order))
	lifts := make([]interface{}, len(order))
	for i, id := range order {
		b := buckets[id]
		var preMean, postMean float64
		if b.preN > 0 {
			preMean = b.preSum / float64(b.preN)
		}
		if b.postN > 0 {
			postMean = b.postSum / float64(b.postN)
		}
		ids[i] = id
		preMeans[i] = preMean
		postMeans[i] = postMean
		lifts[i] = postMean - preMean
	}

	out := table.New()
	for _, col := range []struct {
		name   string
		values []interface{}
	}{
		{"product_id", ids},
		{"pre_mean", preMeans},
		{"post_mean", postMeans},
		{"lift", lifts},
	} {
		if err := out.AddColumn(col.name, col.values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func meanVariance(xs []float64) (mean, variance float64) {
	n := float64(len(xs))
	if n == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= n
	if n < 2 {
		return mean, 0
	}
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= n - 1
	return mean, variance
}

// trendSlope fits ordinary least squares of value against period index.
func trendSlope(xs []float64) float64 {
	n := float64(len(xs))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range xs {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// welchT returns the Welch t statistic and Welch-Satterthwaite degrees
// of freedom for two independent samples.
func welchT(m1, v1 float64, n1 int, m2, v2 float64, n2 int) (t, df float64) {
	a := v1 / float64(n1)
	b := v2 / float64(n2)
	se := math.Sqrt(a + b)
	if se == 0 {
		return 0, float64(n1 + n2 - 2)
	}
	t = (m2 - m1) / se
	if n1 < 2 || n2 < 2 {
		return t, float64(n1 + n2 - 2)
	}
	denom := a*a/float64(n1-1) + b*b/float64(n2-1)
	if denom == 0 {
		return t, float64(n1 + n2 - 2)
	}
	df = (a + b) * (a + b) / denom
	return t, df
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
	}
	return 0, false
}

func init() {
	model.MustRegister("interrupted_time_series", New)
}
