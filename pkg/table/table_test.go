package table

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_AddColumnAndRows(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.AddColumn("product_id", []interface{}{"P1", "P2"}))
	require.NoError(t, tbl.AddColumn("revenue", []interface{}{float64(10), float64(20)}))

	assert.Equal(t, 2, tbl.NumRows())
	assert.Equal(t, []string{"product_id", "revenue"}, tbl.Columns())

	err := tbl.AddColumn("short", []interface{}{float64(1)})
	require.Error(t, err)

	require.NoError(t, tbl.AppendRow(map[string]interface{}{"product_id": "P3", "revenue": float64(30)}))
	assert.Equal(t, 3, tbl.NumRows())

	err = tbl.AppendRow(map[string]interface{}{"no_such": 1})
	require.Error(t, err)
}

func TestTable_Rename(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.AddColumn("asin", []interface{}{"A1"}))
	require.NoError(t, tbl.AddColumn("ordered_units", []interface{}{int64(5)}))

	renamed := tbl.Rename(map[string]string{"asin": "product_id", "ordered_units": "sales_volume"})
	assert.Equal(t, []string{"product_id", "sales_volume"}, renamed.Columns())
	// Original untouched.
	assert.Equal(t, []string{"asin", "ordered_units"}, tbl.Columns())
}

func TestTable_Filter(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.AddColumn("revenue", []interface{}{float64(5), float64(15), float64(25)}))

	kept := tbl.Filter(func(row map[string]interface{}) bool {
		v, _ := AsFloat(row["revenue"])
		return v > 10
	})
	assert.Equal(t, 2, kept.NumRows())
}

func TestReadCSV_TypeInference(t *testing.T) {
	input := strings.Join([]string{
		"product_id,date,sales_volume,revenue",
		"P1,2024-01-01,10,99.5",
		"P2,2024-01-02,20,150",
	}, "\n")

	tbl, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 2, tbl.NumRows())

	dates, err := tbl.Column("date")
	require.NoError(t, err)
	_, isTime := dates[0].(time.Time)
	assert.True(t, isTime, "date column should infer as time")

	units, err := tbl.Column("sales_volume")
	require.NoError(t, err)
	assert.Equal(t, int64(10), units[0])

	revenue, err := tbl.Column("revenue")
	require.NoError(t, err)
	assert.Equal(t, 99.5, revenue[0])
}

func TestCSV_RoundTrip(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.AddColumn("product_id", []interface{}{"P1", "P2"}))
	require.NoError(t, tbl.AddColumn("revenue", []interface{}{12.5, 20.0}))

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteCSV(&buf))

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, tbl.Columns(), back.Columns())
	assert.Equal(t, tbl.NumRows(), back.NumRows())

	revenue, err := back.Column("revenue")
	require.NoError(t, err)
	assert.InDelta(t, 12.5, revenue[0].(float64), 1e-9)
}

func TestParquet_RoundTrip(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.AddColumn("product_id", []interface{}{"P1", "P2", "P3"}))
	require.NoError(t, tbl.AddColumn("sales_volume", []interface{}{int64(10), int64(20), nil}))
	require.NoError(t, tbl.AddColumn("revenue", []interface{}{99.5, 150.0, 7.25}))
	require.NoError(t, tbl.AddColumn("enriched", []interface{}{true, false, true}))
	require.NoError(t, tbl.AddColumn("date", []interface{}{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	}))

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteParquet(&buf))

	back, err := ReadParquet(buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, tbl.Columns(), back.Columns())
	assert.Equal(t, tbl.NumRows(), back.NumRows())

	revenue, err := back.Column("revenue")
	require.NoError(t, err)
	assert.InDelta(t, 99.5, revenue[0].(float64), 1e-9)

	units, err := back.Column("sales_volume")
	require.NoError(t, err)
	assert.Equal(t, int64(10), units[0])
	assert.Nil(t, units[2])

	dates, err := back.Column("date")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), dates[1])
}

func TestColumnArrowType_MixedNumericWidens(t *testing.T) {
	dt, err := columnArrowType([]interface{}{int64(1), 2.5})
	require.NoError(t, err)
	assert.Equal(t, "float64", dt.Name())

	_, err = columnArrowType([]interface{}{"a", int64(1)})
	require.Error(t, err)
}
