package metrics

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/config"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/logger"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/registry"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/schema"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/table"
)

// Manager coordinates one metrics source for one job. The adapter is
// selected from the registry by DATA.SOURCE.type and connected during
// construction, so a Manager that exists is ready to retrieve.
type Manager struct {
	adapter    Adapter
	sourceType string
	cfg        *config.Config
	contract   *schema.Contract
	logger     *zap.Logger
}

// NewManager selects, creates, and connects the adapter configured by
// DATA.SOURCE.type, using the package registry.
func NewManager(cfg *config.Config) (*Manager, error) {
	return NewManagerWithRegistry(cfg, adapters)
}

// NewManagerWithRegistry is NewManager with an injected registry.
func NewManagerWithRegistry(cfg *config.Config, reg *registry.Registry[Factory]) (*Manager, error) {
	sourceType := cfg.SourceType()

	factory, err := reg.Get(sourceType)
	if err != nil {
		return nil, err
	}
	adapter := factory()

	if err := adapter.Connect(cfg.SourceConfig()); err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeConnection,
			"failed to connect to metrics source %q", sourceType)
	}

	return &Manager{
		adapter:    adapter,
		sourceType: sourceType,
		cfg:        cfg,
		contract:   schema.Metrics,
		logger: logger.Get().With(
			zap.String("component", "metrics_manager"),
			zap.String("source_type", sourceType)),
	}, nil
}

// SourceType returns the configured source type.
func (m *Manager) SourceType() string {
	return m.sourceType
}

// Retrieve fetches business metrics for the given products over the
// configured date range, normalizes them into the canonical schema, and
// attaches run metadata. Metadata columns are attached here, once — never
// by adapters — so every source produces identically shaped output.
func (m *Manager) Retrieve(ctx context.Context, products *table.Table) (*table.Table, error) {
	if products == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "products table is required")
	}

	start, end := m.cfg.DateRange()

	native, err := m.adapter.RetrieveBusinessMetrics(ctx, products, start, end)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeConnection,
			"metrics retrieval failed for source %q", m.sourceType)
	}

	canonical := m.contract.FromExternal(native, m.sourceType)
	if err := m.contract.Validate(canonical); err != nil {
		return nil, err
	}

	if err := canonical.AddConstantColumn("metrics_source", m.sourceType); err != nil {
		return nil, err
	}
	if err := canonical.AddConstantColumn("retrieval_timestamp", time.Now().UTC()); err != nil {
		return nil, err
	}

	m.logger.Info("metrics retrieved",
		zap.Int("rows", canonical.NumRows()),
		zap.Time("start", start),
		zap.Time("end", end))

	return canonical, nil
}
