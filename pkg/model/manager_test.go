package model

import (
	"context"
	"fmt"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/registry"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/table"
)

// fakeModel records what the manager hands it.
type fakeModel struct {
	BaseAdapter
	name         string
	allowed      []string
	validateErr  error
	fitErr       error
	receivedFit  map[string]interface{}
	artifacts    map[string]*table.Table
	fitCallCount int
}

func (f *fakeModel) ValidateParams(full map[string]interface{}) error {
	return f.validateErr
}

func (f *fakeModel) FitParams(full map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	for _, key := range f.allowed {
		if v, ok := full[key]; ok {
			out[key] = v
		}
	}
	return out
}

func (f *fakeModel) Fit(ctx context.Context, data *table.Table, params map[string]interface{}) (*Result, error) {
	f.fitCallCount++
	f.receivedFit = params
	if f.fitErr != nil {
		return nil, f.fitErr
	}
	return &Result{
		Data: ResultData{
			ImpactEstimates: map[string]interface{}{"effect": 1.0},
		},
		Artifacts: f.artifacts,
	}, nil
}

// memoryStore captures writes in memory.
type memoryStore struct {
	json    map[string]interface{}
	parquet map[string]*table.Table
}

func newMemoryStore() *memoryStore {
	return &memoryStore{json: map[string]interface{}{}, parquet: map[string]*table.Table{}}
}

func (s *memoryStore) WriteJSON(ctx context.Context, name string, v interface{}) error {
	s.json[name] = v
	return nil
}

func (s *memoryStore) WriteParquet(ctx context.Context, name string, tbl *table.Table) error {
	s.parquet[name] = tbl
	return nil
}

func (s *memoryStore) FullPath(name string) string {
	return path.Join("/jobs/test", name)
}

func fitData(t *testing.T) *table.Table {
	t.Helper()
	tbl := table.New()
	require.NoError(t, tbl.AddColumn("revenue", []interface{}{100.0, 120.0}))
	return tbl
}

func testRegistry(t *testing.T, fakes ...*fakeModel) *registry.Registry[Factory] {
	t.Helper()
	reg := registry.New[Factory]("model")
	for _, f := range fakes {
		f := f
		require.NoError(t, reg.Register(f.name, func() Adapter { return f }))
	}
	return reg
}

func TestFitFiltersParamsPerModel(t *testing.T) {
	// Two models share one flat parameter map. Each must see only its
	// own subset, with no fabricated keys.
	shared := map[string]interface{}{
		"intervention_date":  "2024-03-01",
		"dependent_variable": "revenue",
		"bootstrap_samples":  int64(500),
	}

	tsModel := &fakeModel{name: "ts", allowed: []string{"intervention_date", "dependent_variable"}}
	expModel := &fakeModel{name: "exp", allowed: []string{"dependent_variable", "bootstrap_samples"}}
	reg := testRegistry(t, tsModel, expModel)

	for _, f := range []*fakeModel{tsModel, expModel} {
		mgr, err := NewManagerWithRegistry(reg, f.name, shared)
		require.NoError(t, err)
		_, err = mgr.Fit(context.Background(), fitData(t), newMemoryStore())
		require.NoError(t, err)
	}

	assert.Equal(t, map[string]interface{}{
		"intervention_date":  "2024-03-01",
		"dependent_variable": "revenue",
	}, tsModel.receivedFit)
	assert.Equal(t, map[string]interface{}{
		"dependent_variable": "revenue",
		"bootstrap_samples":  int64(500),
	}, expModel.receivedFit)
	assert.NotContains(t, tsModel.receivedFit, "bootstrap_samples")
	assert.NotContains(t, expModel.receivedFit, "intervention_date")
}

func TestFitUnknownModel(t *testing.T) {
	reg := testRegistry(t, &fakeModel{name: "ts"})

	_, err := NewManagerWithRegistry(reg, "nope", nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeLookup))
	assert.Contains(t, err.Error(), "nope")
	assert.Contains(t, err.Error(), "ts")
}

func TestValidateParamsFailsBeforeFit(t *testing.T) {
	f := &fakeModel{
		name:        "ts",
		validateErr: errors.New(errors.ErrorTypeConfigParameter, "intervention_date is required"),
	}
	mgr, err := NewManagerWithRegistry(testRegistry(t, f), "ts", map[string]interface{}{})
	require.NoError(t, err)

	err = mgr.ValidateParams()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfigParameter))

	_, err = mgr.Fit(context.Background(), fitData(t), newMemoryStore())
	require.Error(t, err)
	assert.Equal(t, 0, f.fitCallCount)
}

func TestFitErrorWrappedOnce(t *testing.T) {
	f := &fakeModel{name: "ts", fitErr: fmt.Errorf("singular matrix")}
	mgr, err := NewManagerWithRegistry(testRegistry(t, f), "ts", nil)
	require.NoError(t, err)

	_, err = mgr.Fit(context.Background(), fitData(t), newMemoryStore())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFit))
	assert.Contains(t, err.Error(), "singular matrix")
}

func TestFitPersistsEnvelopeAndArtifacts(t *testing.T) {
	artifact := table.New()
	require.NoError(t, artifact.AddColumn("product_id", []interface{}{"P1"}))

	f := &fakeModel{name: "ts", artifacts: map[string]*table.Table{"product_impact": artifact}}
	mgr, err := NewManagerWithRegistry(testRegistry(t, f), "ts", nil)
	require.NoError(t, err)

	store := newMemoryStore()
	out, err := mgr.Fit(context.Background(), fitData(t), store)
	require.NoError(t, err)

	assert.Equal(t, "ts", out.ModelType)
	assert.Equal(t, "/jobs/test/impact_results.json", out.ResultsPath)
	assert.Equal(t, map[string]string{
		"product_impact": "/jobs/test/ts__product_impact.parquet",
	}, out.ArtifactPaths)

	env, ok := store.json["impact_results.json"].(Envelope)
	require.True(t, ok)
	assert.Equal(t, SchemaVersion, env.SchemaVersion)
	assert.Equal(t, "ts", env.ModelType)
	assert.Contains(t, env.Metadata, "executed_at")
	// Empty sections still serialize as maps, never nil.
	assert.NotNil(t, env.Data.ModelParams)
	assert.NotNil(t, env.Data.ModelSummary)

	assert.Contains(t, store.parquet, "ts__product_impact.parquet")
}

func TestFitRequiresValidData(t *testing.T) {
	f := &fakeModel{name: "ts"}
	mgr, err := NewManagerWithRegistry(testRegistry(t, f), "ts", nil)
	require.NoError(t, err)

	_, err = mgr.Fit(context.Background(), table.New(), newMemoryStore())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Equal(t, 0, f.fitCallCount)
}
