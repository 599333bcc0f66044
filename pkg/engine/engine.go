// Package engine orchestrates impact measurement jobs: it drives one
// configuration through configuring, loading, transforming, fitting and
// persisting, and reads completed jobs back through their manifests.
package engine

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/config"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/logger"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/metrics"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/metrics/simulator"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/model"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/registry"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/schema"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/storage"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/table"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/telemetry"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/transform"
)

// Stage names the pipeline phases. Failures carry the stage they died
// in.
type Stage string

const (
	StageConfiguring  Stage = "configuring"
	StageLoading      Stage = "loading"
	StageTransforming Stage = "transforming"
	StageFitting      Stage = "fitting"
	StagePersisting   Stage = "persisting"
)

// Job statuses.
const (
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// JobInfo identifies a finished job and where its artifacts live.
type JobInfo struct {
	JobID         string
	StorageURL    string
	ModelType     string
	Status        string
	ResultsPath   string
	ArtifactPaths map[string]string
}

type options struct {
	storageURL        string
	jobID             string
	backend           storage.Backend
	sourceRegistry    *registry.Registry[metrics.Factory]
	modelRegistry     *registry.Registry[model.Factory]
	transformRegistry *registry.Registry[transform.Func]
}

// Option adjusts how a job runs.
type Option func(*options)

// WithStorageURL overrides the configured OUTPUT.PATH.
func WithStorageURL(url string) Option {
	return func(o *options) { o.storageURL = url }
}

// WithJobID fixes the job identifier instead of generating one.
func WithJobID(id string) Option {
	return func(o *options) { o.jobID = id }
}

// WithBackend injects an already-open backend, bypassing URL dispatch.
func WithBackend(b storage.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithSourceRegistry injects the metrics source registry.
func WithSourceRegistry(r *registry.Registry[metrics.Factory]) Option {
	return func(o *options) { o.sourceRegistry = r }
}

// WithModelRegistry injects the model registry.
func WithModelRegistry(r *registry.Registry[model.Factory]) Option {
	return func(o *options) { o.modelRegistry = r }
}

// WithTransformRegistry injects the transform registry.
func WithTransformRegistry(r *registry.Registry[transform.Func]) Option {
	return func(o *options) { o.transformRegistry = r }
}

func newOptions(opts []Option) *options {
	o := &options{
		sourceRegistry:    metrics.DefaultRegistry(),
		modelRegistry:     model.DefaultRegistry(),
		transformRegistry: transform.DefaultRegistry(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// EvaluateImpact runs one measurement job from a configuration file.
// Artifacts stream to storage as each stage produces them; the manifest
// is written strictly last, so its presence marks a complete job.
func EvaluateImpact(ctx context.Context, configPath string, opts ...Option) (*JobInfo, error) {
	o := newOptions(opts)

	stage := StageConfiguring
	modelType := "unknown"
	fail := func(err error) (*JobInfo, error) {
		telemetry.StageFailures.WithLabelValues(string(stage)).Inc()
		telemetry.JobsCompleted.WithLabelValues(modelType, StatusFailed).Inc()
		return nil, errors.Wrapf(err, errors.TypeOf(err), "job failed in %s stage", stage)
	}

	// Configuring: everything that can be rejected without touching
	// data is rejected here, including the model's own parameters.
	cfg, err := config.NewProcessor().Process(configPath)
	if err != nil {
		return fail(err)
	}
	modelType = cfg.Model()

	modelMgr, err := model.NewManagerWithRegistry(o.modelRegistry, modelType, cfg.ModelParams())
	if err != nil {
		return fail(err)
	}
	if err := modelMgr.ValidateParams(); err != nil {
		return fail(err)
	}

	metricsMgr, err := metrics.NewManagerWithRegistry(cfg, o.sourceRegistry)
	if err != nil {
		return fail(err)
	}

	transformName := cfg.TransformFunction()
	if transformName == "" {
		transformName = "passthrough"
	}
	if _, err := o.transformRegistry.Get(transformName); err != nil {
		return fail(err)
	}

	storageURL := o.storageURL
	if storageURL == "" {
		storageURL = cfg.OutputPath()
	}
	backend := o.backend
	if backend == nil {
		backend, err = storage.Open(ctx, storageURL)
		if err != nil {
			return fail(err)
		}
	}
	store := storage.NewJobStore(backend, o.jobID)

	log := logger.Get().With(
		zap.String("component", "engine"),
		zap.String("job_id", store.JobID()),
		zap.String("model", modelType))
	log.Info("job starting", zap.String("storage", storageURL))
	telemetry.JobsStarted.WithLabelValues(modelType).Inc()

	manifest := newManifest(modelType)

	// Loading.
	stage = StageLoading
	if err := store.WriteYAML(ctx, "config.yaml", cfg.Raw()); err != nil {
		return fail(err)
	}
	manifest.add("config", "config.yaml", "yaml")

	products, err := loadProducts(cfg)
	if err != nil {
		return fail(err)
	}
	if err := store.WriteParquet(ctx, "products.parquet", products); err != nil {
		return fail(err)
	}
	manifest.add("products", "products.parquet", "parquet")

	businessMetrics, err := metricsMgr.Retrieve(ctx, products)
	if err != nil {
		return fail(err)
	}
	telemetry.RowsRetrieved.WithLabelValues(metricsMgr.SourceType()).
		Add(float64(businessMetrics.NumRows()))
	if err := store.WriteParquet(ctx, "business_metrics.parquet", businessMetrics); err != nil {
		return fail(err)
	}
	manifest.add("business_metrics", "business_metrics.parquet", "parquet")

	// Transforming.
	stage = StageTransforming
	transformed, err := transform.ApplyWithRegistry(o.transformRegistry, businessMetrics, transformName, cfg.TransformParams())
	if err != nil {
		return fail(err)
	}
	if err := store.WriteParquet(ctx, "transformed_metrics.parquet", transformed); err != nil {
		return fail(err)
	}
	manifest.add("transformed_metrics", "transformed_metrics.parquet", "parquet")

	// Fitting. The model manager owns result persistence.
	stage = StageFitting
	started := time.Now()
	fit, err := modelMgr.Fit(ctx, transformed, store)
	if err != nil {
		return fail(err)
	}
	telemetry.ObserveFit(modelType, time.Since(started))
	manifest.add("impact_results", "impact_results.json", "json")
	for name := range fit.ArtifactPaths {
		file := modelType + "__" + name + ".parquet"
		manifest.add(modelType+"__"+name, file, "parquet")
	}

	// Persisting: the manifest goes last, after every file it names.
	stage = StagePersisting
	if err := manifest.write(ctx, store); err != nil {
		return fail(err)
	}

	telemetry.JobsCompleted.WithLabelValues(modelType, StatusComplete).Inc()
	log.Info("job complete",
		zap.String("results", fit.ResultsPath),
		zap.Int("artifacts", len(fit.ArtifactPaths)))

	return &JobInfo{
		JobID:         store.JobID(),
		StorageURL:    storageURL,
		ModelType:     modelType,
		Status:        StatusComplete,
		ResultsPath:   fit.ResultsPath,
		ArtifactPaths: fit.ArtifactPaths,
	}, nil
}

// loadProducts resolves the job's product catalog: an explicit
// products_path wins, the simulator synthesizes one, and file sources
// fall back to an empty catalog meaning "the whole file".
func loadProducts(cfg *config.Config) (*table.Table, error) {
	srcCfg := cfg.SourceConfig()
	if path, ok := srcCfg["products_path"].(string); ok && path != "" {
		f, err := os.Open(path) //nolint:gosec // G304: path comes from validated configuration
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeConfigFile, "opening products file %s", path)
		}
		defer f.Close()
		tbl, err := table.ReadCSV(f)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeValidation, "reading products file %s", path)
		}
		canonical := schema.Products.FromExternal(tbl, cfg.SourceType())
		if err := schema.Products.Validate(canonical); err != nil {
			return nil, err
		}
		return canonical, nil
	}

	if cfg.SourceType() == "simulator" {
		n := 0
		if v, ok := srcCfg["num_products"]; ok {
			f, ok := table.AsFloat(v)
			if !ok {
				return nil, errors.Newf(errors.ErrorTypeConfigParameter, "num_products %v is not a number", v)
			}
			n = int(f)
		}
		return simulator.Catalog(n), nil
	}

	empty := table.New()
	if err := empty.AddColumn("product_id", nil); err != nil {
		return nil, err
	}
	return empty, nil
}
