package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/config"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/registry"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	connectErr error
	columns    map[string][]interface{}
	order      []string
	connected  bool
	retrievals int
}

func (f *fakeSource) Connect(cfg map[string]interface{}) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeSource) RetrieveBusinessMetrics(ctx context.Context, products *table.Table, start, end time.Time) (*table.Table, error) {
	f.retrievals++
	tbl := table.New()
	for _, name := range f.order {
		if err := tbl.AddColumn(name, f.columns[name]); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}

func testConfig(t *testing.T, sourceType string) *config.Config {
	t.Helper()
	cfg, err := config.NewProcessor().ProcessMap(map[string]interface{}{
		"DATA": map[string]interface{}{
			"SOURCE": map[string]interface{}{
				"type": sourceType,
				"CONFIG": map[string]interface{}{
					"start_date": "2024-01-01",
					"end_date":   "2024-01-31",
				},
			},
		},
		"MEASUREMENT": map[string]interface{}{
			"MODEL":  "interrupted_time_series",
			"PARAMS": map[string]interface{}{},
		},
		"OUTPUT": map[string]interface{}{"PATH": t.TempDir()},
	})
	require.NoError(t, err)
	return cfg
}

func completeColumns() (map[string][]interface{}, []string) {
	return map[string][]interface{}{
		"product_id":   {"P1", "P2"},
		"date":         {time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		"sales_volume": {int64(3), int64(4)},
		"revenue":      {30.0, 40.0},
	}, []string{"product_id", "date", "sales_volume", "revenue"}
}

func TestManager_AttachesMetadataCentrally(t *testing.T) {
	reg := registry.New[Factory]("metrics adapter")
	src := &fakeSource{}
	src.columns, src.order = completeColumns()
	require.NoError(t, reg.Register("fake", func() Adapter { return src }))

	mgr, err := NewManagerWithRegistry(testConfig(t, "fake"), reg)
	require.NoError(t, err)
	assert.True(t, src.connected)

	products := table.New()
	require.NoError(t, products.AddColumn("product_id", []interface{}{"P1", "P2"}))

	out, err := mgr.Retrieve(context.Background(), products)
	require.NoError(t, err)

	// Metadata is attached by the manager, exactly once.
	sources, err := out.Column("metrics_source")
	require.NoError(t, err)
	assert.Equal(t, "fake", sources[0])
	assert.True(t, out.HasColumn("retrieval_timestamp"))
}

func TestManager_UnknownSourceType(t *testing.T) {
	reg := registry.New[Factory]("metrics adapter")

	_, err := NewManagerWithRegistry(testConfig(t, "warehouse"), reg)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeLookup))
	assert.Contains(t, err.Error(), "warehouse")
}

func TestManager_ConnectFailure(t *testing.T) {
	reg := registry.New[Factory]("metrics adapter")
	src := &fakeSource{connectErr: errors.New(errors.ErrorTypeConnection, "endpoint unreachable")}
	require.NoError(t, reg.Register("fake", func() Adapter { return src }))

	_, err := NewManagerWithRegistry(testConfig(t, "fake"), reg)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
}

func TestManager_SchemaViolation(t *testing.T) {
	reg := registry.New[Factory]("metrics adapter")
	src := &fakeSource{
		columns: map[string][]interface{}{
			"product_id": {"P1"},
			"date":       {"2024-01-01"},
		},
		order: []string{"product_id", "date"},
	}
	require.NoError(t, reg.Register("fake", func() Adapter { return src }))

	mgr, err := NewManagerWithRegistry(testConfig(t, "fake"), reg)
	require.NoError(t, err)

	products := table.New()
	require.NoError(t, products.AddColumn("product_id", []interface{}{"P1"}))

	_, err = mgr.Retrieve(context.Background(), products)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "revenue")
}

func TestManager_NilProducts(t *testing.T) {
	reg := registry.New[Factory]("metrics adapter")
	src := &fakeSource{}
	src.columns, src.order = completeColumns()
	require.NoError(t, reg.Register("fake", func() Adapter { return src }))

	mgr, err := NewManagerWithRegistry(testConfig(t, "fake"), reg)
	require.NoError(t, err)

	_, err = mgr.Retrieve(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, 0, src.retrievals)
}
