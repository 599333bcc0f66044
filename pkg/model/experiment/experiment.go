// Package experiment implements a difference-in-means estimator over a
// treatment indicator column. Unlike interrupted time series it takes
// open-ended fit options, so it filters by denylist: every configured
// parameter passes through except those known to belong to other
// models.
package experiment

import (
	"context"
	"math"
	"sort"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/model"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/table"
)

const (
	defaultDependentVariable = "revenue"
	defaultTreatmentColumn   = "treatment"
)

// foreignParamKeys are parameters owned by other models. Passing them
// to an experiment fit would silently change its options surface, so
// the denylist strips them.
var foreignParamKeys = map[string]bool{
	"intervention_date": true,
	"min_pre_periods":   true,
}

// Model estimates average treatment effect by difference in group
// means.
type Model struct {
	model.BaseAdapter
}

// New constructs an unconfigured model instance.
func New() model.Adapter { return &Model{} }

// ValidateParams checks only optional typed parameters; the experiment
// model has no required ones.
func (m *Model) ValidateParams(full map[string]interface{}) error {
	for _, key := range []string{"dependent_variable", "treatment_column"} {
		if v, present := full[key]; present {
			if s, ok := v.(string); !ok || s == "" {
				return errors.Newf(errors.ErrorTypeConfigParameter,
					"%s %v must be a non-empty string", key, v)
			}
		}
	}
	return nil
}

// FitParams passes everything through except foreign keys.
func (m *Model) FitParams(full map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(full))
	for k, v := range full {
		if foreignParamKeys[k] {
			continue
		}
		out[k] = v
	}
	return out
}

// RequiredColumns: the treatment indicator is checked at fit time
// because its column name is a parameter.
func (m *Model) RequiredColumns() []string { return nil }

// Fit splits rows by the treatment indicator and compares means with a
// Welch t statistic. All surviving parameters are echoed into
// model_params so the persisted envelope records the full options
// surface.
func (m *Model) Fit(ctx context.Context, data *table.Table, params map[string]interface{}) (*model.Result, error) {
	depVar := defaultDependentVariable
	if s, ok := params["dependent_variable"].(string); ok && s != "" {
		depVar = s
	}
	treatCol := defaultTreatmentColumn
	if s, ok := params["treatment_column"].(string); ok && s != "" {
		treatCol = s
	}
	for _, col := range []string{depVar, treatCol} {
		if !data.HasColumn(col) {
			return nil, errors.Newf(errors.ErrorTypeValidation,
				"column %q not present, columns: %v", col, data.Columns())
		}
	}

	var control, treated []float64
	for i := 0; i < data.NumRows(); i++ {
		row := data.Row(i)
		v, ok := table.AsFloat(row[depVar])
		if !ok {
			continue
		}
		flag, err := asBool(row[treatCol])
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeValidation,
				"treatment indicator in row %d", i)
		}
		if flag {
			treated = append(treated, v)
		} else {
			control = append(control, v)
		}
	}
	if len(control) == 0 || len(treated) == 0 {
		return nil, errors.Newf(errors.ErrorTypeValidation,
			"need both groups, got %d control and %d treated rows", len(control), len(treated))
	}

	controlMean, controlVar := meanVariance(control)
	treatedMean, treatedVar := meanVariance(treated)
	effect := treatedMean - controlMean
	relative := 0.0
	if controlMean != 0 {
		relative = effect / controlMean
	}
	tStat, df := welchT(controlMean, controlVar, len(control), treatedMean, treatedVar, len(treated))

	modelParams := map[string]interface{}{
		"dependent_variable": depVar,
		"treatment_column":   treatCol,
	}
	for _, k := range sortedKeys(params) {
		if _, claimed := modelParams[k]; !claimed {
			modelParams[k] = params[k]
		}
	}

	return &model.Result{
		Data: model.ResultData{
			ModelParams: modelParams,
			ImpactEstimates: map[string]interface{}{
				"average_treatment_effect": effect,
				"relative_effect":          relative,
				"t_statistic":              tStat,
				"degrees_of_freedom":       df,
				"significant":              math.Abs(tStat) > 1.96,
			},
			ModelSummary: map[string]interface{}{
				"control_mean": controlMean,
				"treated_mean": treatedMean,
				"control_n":    int64(len(control)),
				"treated_n":    int64(len(treated)),
				"control_std":  math.Sqrt(controlVar),
				"treated_std":  math.Sqrt(treatedVar),
			},
		},
	}, nil
}

func asBool(v interface{}) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case int64:
		return b != 0, nil
	case float64:
		return b != 0, nil
	case string:
		switch b {
		case "true", "1", "treated":
			return true, nil
		case "false", "0", "control":
			return false, nil
		}
	}
	return false, errors.Newf(errors.ErrorTypeValidation, "value %v is not a treatment flag", v)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
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

func init() {
	model.MustRegister("experiment", New)
}
