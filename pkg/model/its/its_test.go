package its

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/table"
)

func seriesFixture(t *testing.T) *table.Table {
	t.Helper()
	// Five flat pre periods at 100, five post periods at 150.
	tbl := table.New()
	var dates, revenue, products []interface{}
	start := time.Date(2024, 2, 25, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		dates = append(dates, start.AddDate(0, 0, i))
		if i < 5 {
			revenue = append(revenue, 100.0)
		} else {
			revenue = append(revenue, 150.0)
		}
		products = append(products, "P1")
	}
	require.NoError(t, tbl.AddColumn("product_id", products))
	require.NoError(t, tbl.AddColumn("date", dates))
	require.NoError(t, tbl.AddColumn("revenue", revenue))
	return tbl
}

func TestValidateParamsRequiresInterventionDate(t *testing.T) {
	m := New()

	err := m.ValidateParams(map[string]interface{}{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfigParameter))
	assert.Contains(t, err.Error(), "intervention_date")

	err = m.ValidateParams(map[string]interface{}{"intervention_date": "03/01/2024"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYY-MM-DD")

	require.NoError(t, m.ValidateParams(map[string]interface{}{"intervention_date": "2024-03-01"}))
}

func TestFitParamsAllowlist(t *testing.T) {
	m := New()
	got := m.FitParams(map[string]interface{}{
		"intervention_date": "2024-03-01",
		"min_pre_periods":   int64(5),
		"bootstrap_samples": int64(500),
		"treatment_column":  "treated",
	})
	assert.Equal(t, map[string]interface{}{
		"intervention_date": "2024-03-01",
		"min_pre_periods":   int64(5),
	}, got)
}

func TestFitEstimatesStepChange(t *testing.T) {
	m := New()
	result, err := m.Fit(context.Background(), seriesFixture(t), map[string]interface{}{
		"intervention_date": "2024-03-01",
	})
	require.NoError(t, err)

	est := result.Data.ImpactEstimates
	assert.InDelta(t, 50.0, est["absolute_effect"], 1e-9)
	assert.InDelta(t, 0.5, est["relative_effect"], 1e-9)
	// Flat pre trend, so the trend-adjusted effect matches the level shift.
	assert.InDelta(t, 50.0, est["trend_adjusted_effect"], 1e-9)

	summary := result.Data.ModelSummary
	assert.InDelta(t, 100.0, summary["pre_mean"], 1e-9)
	assert.InDelta(t, 150.0, summary["post_mean"], 1e-9)
	assert.InDelta(t, 0.0, summary["pre_trend_slope"], 1e-9)

	assert.Equal(t, int64(5), result.Data.ModelParams["pre_periods"])
	assert.Equal(t, int64(5), result.Data.ModelParams["post_periods"])
}

func TestFitProducesProductImpactArtifact(t *testing.T) {
	m := New()
	result, err := m.Fit(context.Background(), seriesFixture(t), map[string]interface{}{
		"intervention_date": "2024-03-01",
	})
	require.NoError(t, err)

	artifact, ok := result.Artifacts["product_impact"]
	require.True(t, ok)
	require.Equal(t, 1, artifact.NumRows())
	row := artifact.Row(0)
	assert.Equal(t, "P1", row["product_id"])
	assert.InDelta(t, 50.0, row["lift"].(float64), 1e-9)
}

func TestFitEnforcesMinPrePeriods(t *testing.T) {
	m := New()
	_, err := m.Fit(context.Background(), seriesFixture(t), map[string]interface{}{
		"intervention_date": "2024-03-01",
		"min_pre_periods":   int64(30),
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "pre-intervention periods")
}

func TestFitNonStringInterventionDate(t *testing.T) {
	m := New()
	_, err := m.Fit(context.Background(), seriesFixture(t), map[string]interface{}{
		"intervention_date": 20240301,
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfigParameter))
	assert.Contains(t, err.Error(), "intervention_date")
}

func TestFitMissingDependentVariable(t *testing.T) {
	m := New()
	_, err := m.Fit(context.Background(), seriesFixture(t), map[string]interface{}{
		"intervention_date":  "2024-03-01",
		"dependent_variable": "conversions",
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "conversions")
}
