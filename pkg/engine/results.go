package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/model"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/storage"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/table"
)

// JobResult is a completed job loaded back from storage.
type JobResult struct {
	JobID              string
	ModelType          string
	Manifest           *Manifest
	Config             map[string]interface{}
	Products           *table.Table
	BusinessMetrics    *table.Table
	TransformedMetrics *table.Table
	Results            *model.Envelope
	ModelArtifacts     map[string]*table.Table
}

// LoadResults reads a job back through its manifest. A missing manifest
// means the job never finished and is reported as a validation error;
// a manifest from a different schema major version is rejected before
// any data file is read.
func LoadResults(ctx context.Context, info *JobInfo, opts ...Option) (*JobResult, error) {
	o := newOptions(opts)

	backend := o.backend
	if backend == nil {
		var err error
		backend, err = storage.Open(ctx, info.StorageURL)
		if err != nil {
			return nil, err
		}
	}
	store := storage.NewJobStore(backend, info.JobID)

	ok, err := store.Exists(ctx, manifestName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeValidation,
			"job %s is incomplete: no manifest found", info.JobID)
	}

	var manifest Manifest
	if err := store.ReadJSON(ctx, manifestName, &manifest); err != nil {
		return nil, err
	}

	manifestMajor, err := majorVersion(manifest.SchemaVersion)
	if err != nil {
		return nil, err
	}
	loaderMajor, err := majorVersion(model.SchemaVersion)
	if err != nil {
		return nil, err
	}
	if manifestMajor != loaderMajor {
		return nil, errors.Newf(errors.ErrorTypeIncompatibleSchema,
			"job %s was written with schema version %s, loader supports %s",
			info.JobID, manifest.SchemaVersion, model.SchemaVersion)
	}

	result := &JobResult{
		JobID:          info.JobID,
		ModelType:      manifest.ModelType,
		Manifest:       &manifest,
		ModelArtifacts: map[string]*table.Table{},
	}

	// Load exactly the files the manifest names, nothing discovered.
	for _, key := range sortedFileKeys(manifest.Files) {
		file := manifest.Files[key]
		switch key {
		case "config":
			var cfg map[string]interface{}
			if err := store.ReadYAML(ctx, file.Path, &cfg); err != nil {
				return nil, err
			}
			result.Config = cfg
		case "products":
			if result.Products, err = store.ReadParquet(ctx, file.Path); err != nil {
				return nil, err
			}
		case "business_metrics":
			if result.BusinessMetrics, err = store.ReadParquet(ctx, file.Path); err != nil {
				return nil, err
			}
		case "transformed_metrics":
			if result.TransformedMetrics, err = store.ReadParquet(ctx, file.Path); err != nil {
				return nil, err
			}
		case "impact_results":
			var envelope model.Envelope
			if err := store.ReadJSON(ctx, file.Path, &envelope); err != nil {
				return nil, err
			}
			result.Results = &envelope
		default:
			// Model artifacts keep their logical name, with the
			// model-type prefix stripped.
			tbl, err := store.ReadParquet(ctx, file.Path)
			if err != nil {
				return nil, err
			}
			name := strings.TrimPrefix(key, manifest.ModelType+"__")
			result.ModelArtifacts[name] = tbl
		}
	}

	return result, nil
}

func sortedFileKeys(files map[string]ManifestFile) []string {
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
