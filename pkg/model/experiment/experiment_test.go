package experiment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/table"
)

func groupsFixture(t *testing.T) *table.Table {
	t.Helper()
	tbl := table.New()
	require.NoError(t, tbl.AddColumn("revenue", []interface{}{
		100.0, 110.0, 90.0, 140.0, 150.0, 130.0,
	}))
	require.NoError(t, tbl.AddColumn("treatment", []interface{}{
		false, false, false, true, true, true,
	}))
	return tbl
}

func TestFitParamsDenylist(t *testing.T) {
	m := New()
	got := m.FitParams(map[string]interface{}{
		"intervention_date": "2024-03-01",
		"min_pre_periods":   int64(5),
		"bootstrap_samples": int64(500),
		"treatment_column":  "treatment",
	})
	// Foreign keys stripped, everything else flows through untouched.
	assert.Equal(t, map[string]interface{}{
		"bootstrap_samples": int64(500),
		"treatment_column":  "treatment",
	}, got)
}

func TestFitDifferenceInMeans(t *testing.T) {
	m := New()
	result, err := m.Fit(context.Background(), groupsFixture(t), nil)
	require.NoError(t, err)

	est := result.Data.ImpactEstimates
	assert.InDelta(t, 40.0, est["average_treatment_effect"], 1e-9)
	assert.InDelta(t, 0.4, est["relative_effect"], 1e-9)

	summary := result.Data.ModelSummary
	assert.InDelta(t, 100.0, summary["control_mean"], 1e-9)
	assert.InDelta(t, 140.0, summary["treated_mean"], 1e-9)
	assert.Equal(t, int64(3), summary["control_n"])
	assert.Equal(t, int64(3), summary["treated_n"])
}

func TestFitEchoesOpenEndedParams(t *testing.T) {
	m := New()
	params := m.FitParams(map[string]interface{}{
		"intervention_date": "2024-03-01",
		"bootstrap_samples": int64(500),
	})
	result, err := m.Fit(context.Background(), groupsFixture(t), params)
	require.NoError(t, err)

	assert.Equal(t, int64(500), result.Data.ModelParams["bootstrap_samples"])
	assert.NotContains(t, result.Data.ModelParams, "intervention_date")
}

func TestFitRequiresBothGroups(t *testing.T) {
	tbl := table.New()
	require.NoError(t, tbl.AddColumn("revenue", []interface{}{100.0, 110.0}))
	require.NoError(t, tbl.AddColumn("treatment", []interface{}{true, true}))

	m := New()
	_, err := m.Fit(context.Background(), tbl, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "control")
}

func TestFitMissingTreatmentColumn(t *testing.T) {
	tbl := table.New()
	require.NoError(t, tbl.AddColumn("revenue", []interface{}{100.0}))

	m := New()
	_, err := m.Fit(context.Background(), tbl, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "treatment")
}
