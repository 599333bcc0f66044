// Package model hosts the measurement model registry and the manager that
// drives validate, filter, fit and persist for every registered model.
// Adapters compute; the manager owns parameter filtering, result metadata
// and all storage writes.
package model

import (
	"context"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/registry"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/table"
)

// SchemaVersion is written into every results envelope and manifest.
// Loaders accept any envelope sharing the same major version.
const SchemaVersion = "2.0"

// Adapter is a measurement model. ValidateParams and FitParams both
// receive the full flat MEASUREMENT.PARAMS map; FitParams narrows it to
// the parameters this model consumes, so unrelated keys configured for
// other models never reach Fit.
type Adapter interface {
	Connect(cfg map[string]interface{}) error
	ValidateParams(full map[string]interface{}) error
	FitParams(full map[string]interface{}) map[string]interface{}
	Fit(ctx context.Context, data *table.Table, params map[string]interface{}) (*Result, error)
	ValidateData(data *table.Table) error
	RequiredColumns() []string
}

// Factory constructs a fresh adapter instance.
type Factory func() Adapter

// ResultData carries the three result sections. All three keys are
// serialized even when empty so consumers never check for presence.
type ResultData struct {
	ModelParams     map[string]interface{} `json:"model_params"`
	ImpactEstimates map[string]interface{} `json:"impact_estimates"`
	ModelSummary    map[string]interface{} `json:"model_summary"`
}

// Result is what an adapter's Fit returns. Artifacts are supplementary
// tables persisted alongside the envelope; adapters name them logically
// and the manager prefixes them with the model type on disk.
type Result struct {
	ModelType string
	Data      ResultData
	Metadata  map[string]interface{}
	Artifacts map[string]*table.Table
}

// Envelope is the serialized form of a Result.
type Envelope struct {
	SchemaVersion string                 `json:"schema_version"`
	ModelType     string                 `json:"model_type"`
	Data          ResultData             `json:"data"`
	Metadata      map[string]interface{} `json:"metadata"`
}

// FitOutput reports where the manager persisted a fit.
type FitOutput struct {
	ModelType     string
	ResultsPath   string
	ArtifactPaths map[string]string
}

// Store is the slice of job storage the manager needs. JobStore
// satisfies it.
type Store interface {
	WriteJSON(ctx context.Context, name string, v interface{}) error
	WriteParquet(ctx context.Context, name string, tbl *table.Table) error
	FullPath(name string) string
}

// BaseAdapter supplies the default parameter and data behavior. Models
// that filter by allowlist or denylist override FitParams.
type BaseAdapter struct{}

// Connect is a no-op; most models need no external resources.
func (BaseAdapter) Connect(cfg map[string]interface{}) error { return nil }

// FitParams passes the full parameter map through unchanged.
func (BaseAdapter) FitParams(full map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(full))
	for k, v := range full {
		out[k] = v
	}
	return out
}

// ValidateData rejects empty inputs.
func (BaseAdapter) ValidateData(data *table.Table) error {
	if data == nil || data.NumRows() == 0 {
		return errors.New(errors.ErrorTypeValidation, "model input table is empty")
	}
	return nil
}

// RequiredColumns defaults to no required columns.
func (BaseAdapter) RequiredColumns() []string { return nil }

var models = registry.New[Factory]("model")

// Register adds a model factory to the package registry.
func Register(name string, factory Factory) error {
	return models.Register(name, factory)
}

// MustRegister registers from init functions.
func MustRegister(name string, factory Factory) {
	models.MustRegister(name, factory)
}

// DefaultRegistry returns the package-level model registry.
func DefaultRegistry() *registry.Registry[Factory] {
	return models
}

// Names lists the registered models.
func Names() []string {
	return models.Names()
}
