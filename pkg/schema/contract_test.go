package schema

import (
	"testing"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simulatorTable(t *testing.T) *table.Table {
	t.Helper()
	tbl := table.New()
	require.NoError(t, tbl.AddColumn("asin", []interface{}{"A1", "A2"}))
	require.NoError(t, tbl.AddColumn("date", []interface{}{"2024-01-01", "2024-01-02"}))
	require.NoError(t, tbl.AddColumn("ordered_units", []interface{}{int64(3), int64(7)}))
	require.NoError(t, tbl.AddColumn("revenue", []interface{}{30.0, 70.0}))
	return tbl
}

func TestContract_FromExternal(t *testing.T) {
	canonical := Metrics.FromExternal(simulatorTable(t), "simulator")

	assert.True(t, canonical.HasColumn("product_id"))
	assert.True(t, canonical.HasColumn("sales_volume"))
	assert.False(t, canonical.HasColumn("asin"))
	require.NoError(t, Metrics.Validate(canonical))
}

func TestContract_FromExternal_UnknownSourcePassthrough(t *testing.T) {
	tbl := simulatorTable(t)
	out := Metrics.FromExternal(tbl, "warehouse")
	assert.Equal(t, tbl.Columns(), out.Columns())
}

func TestContract_ValidateNamesBothColumnSets(t *testing.T) {
	tbl := table.New()
	require.NoError(t, tbl.AddColumn("product_id", []interface{}{"P1"}))
	require.NoError(t, tbl.AddColumn("date", []interface{}{"2024-01-01"}))

	err := Metrics.Validate(tbl)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "sales_volume")
	assert.Contains(t, err.Error(), "revenue")
	assert.Contains(t, err.Error(), "product_id") // actual set is named too
}

func TestContract_ToExternal(t *testing.T) {
	canonical := Metrics.FromExternal(simulatorTable(t), "simulator")
	back := Metrics.ToExternal(canonical, "simulator")
	assert.True(t, back.HasColumn("asin"))
	assert.True(t, back.HasColumn("ordered_units"))
}

func TestContract_ResolveColumn(t *testing.T) {
	tbl := simulatorTable(t)

	name, err := Metrics.ResolveColumn(tbl, "product_id", "simulator")
	require.NoError(t, err)
	assert.Equal(t, "asin", name)

	// Canonical name wins when present.
	canonical := Metrics.FromExternal(tbl, "simulator")
	name, err = Metrics.ResolveColumn(canonical, "product_id", "")
	require.NoError(t, err)
	assert.Equal(t, "product_id", name)

	_, err = Metrics.ResolveColumn(tbl, "inventory_level", "simulator")
	require.Error(t, err)
}
