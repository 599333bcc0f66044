package model

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/logger"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/registry"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/table"
)

// Manager binds one configured model to the fit lifecycle. Parameter
// filtering and persistence happen here so adapters stay pure
// estimation code.
type Manager struct {
	adapter   Adapter
	modelType string
	params    map[string]interface{}
	logger    *zap.Logger
}

// NewManager resolves the model from the package registry.
func NewManager(modelType string, params map[string]interface{}) (*Manager, error) {
	return NewManagerWithRegistry(models, modelType, params)
}

// NewManagerWithRegistry resolves the model from an injected registry.
func NewManagerWithRegistry(reg *registry.Registry[Factory], modelType string, params map[string]interface{}) (*Manager, error) {
	factory, err := reg.Get(modelType)
	if err != nil {
		return nil, err
	}
	adapter := factory()
	if err := adapter.Connect(params); err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeConnection, "connecting model %q", modelType)
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	return &Manager{
		adapter:   adapter,
		modelType: modelType,
		params:    params,
		logger:    logger.Get().With(zap.String("model", modelType)),
	}, nil
}

// ModelType returns the registered name of the bound model.
func (m *Manager) ModelType() string { return m.modelType }

// ValidateParams checks the full configured parameter map against the
// model's requirements. The engine calls this during the configuring
// stage so a bad configuration fails before any data is retrieved.
func (m *Manager) ValidateParams() error {
	if err := m.adapter.ValidateParams(m.params); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeConfigParameter,
			"invalid parameters for model %q", m.modelType)
	}
	return nil
}

// Fit validates, filters parameters, fits and persists. The adapter
// only ever sees its filtered parameter subset.
func (m *Manager) Fit(ctx context.Context, data *table.Table, store Store) (*FitOutput, error) {
	if err := m.ValidateParams(); err != nil {
		return nil, err
	}

	fitParams := m.adapter.FitParams(m.params)

	for _, col := range m.adapter.RequiredColumns() {
		if !data.HasColumn(col) {
			return nil, errors.Newf(errors.ErrorTypeValidation,
				"model %q requires column %q, columns: %v", m.modelType, col, data.Columns())
		}
	}
	if err := m.adapter.ValidateData(data); err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeValidation,
			"input data rejected by model %q", m.modelType)
	}

	m.logger.Info("fitting model",
		zap.Int("rows", data.NumRows()),
		zap.Int("params", len(fitParams)))
	started := time.Now()

	result, err := m.adapter.Fit(ctx, data, fitParams)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeFit, "fitting model %q", m.modelType)
	}
	if result == nil {
		return nil, errors.Newf(errors.ErrorTypeFit, "model %q returned no result", m.modelType)
	}
	result.ModelType = m.modelType

	if result.Metadata == nil {
		result.Metadata = map[string]interface{}{}
	}
	result.Metadata["executed_at"] = time.Now().UTC().Format(time.RFC3339)
	result.Metadata["fit_duration_seconds"] = time.Since(started).Seconds()

	return m.persist(ctx, result, store)
}

// persist writes the results envelope and every artifact table. Storage
// is entirely the manager's concern; models never receive a store.
func (m *Manager) persist(ctx context.Context, result *Result, store Store) (*FitOutput, error) {
	envelope := Envelope{
		SchemaVersion: SchemaVersion,
		ModelType:     result.ModelType,
		Data:          normalizeData(result.Data),
		Metadata:      result.Metadata,
	}
	if err := store.WriteJSON(ctx, "impact_results.json", envelope); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "writing results envelope")
	}

	output := &FitOutput{
		ModelType:     m.modelType,
		ResultsPath:   store.FullPath("impact_results.json"),
		ArtifactPaths: map[string]string{},
	}
	for name, tbl := range result.Artifacts {
		file := fmt.Sprintf("%s__%s.parquet", m.modelType, name)
		if err := store.WriteParquet(ctx, file, tbl); err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeStorage, "writing artifact %q", name)
		}
		output.ArtifactPaths[name] = store.FullPath(file)
	}

	m.logger.Info("fit persisted",
		zap.String("results", output.ResultsPath),
		zap.Int("artifacts", len(output.ArtifactPaths)))
	return output, nil
}

// normalizeData replaces nil sections with empty maps so the envelope
// always serializes all three keys.
func normalizeData(d ResultData) ResultData {
	if d.ModelParams == nil {
		d.ModelParams = map[string]interface{}{}
	}
	if d.ImpactEstimates == nil {
		d.ImpactEstimates = map[string]interface{}{}
	}
	if d.ModelSummary == nil {
		d.ModelSummary = map[string]interface{}{}
	}
	return d
}
