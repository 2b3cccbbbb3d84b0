package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/cynos/schema"
	"github.com/kasuganosora/cynos/value"
)

func productsTable(t *testing.T) schema.Table {
	t.Helper()
	tbl, err := schema.NewBuilder("products").
		AddColumn("id", value.TypeInt64).
		AddColumn("name", value.TypeString).
		AddColumn("price", value.TypeFloat64).
		AddPrimaryKey([]string{"id"}, false).
		Build()
	require.NoError(t, err)
	return tbl
}

func TestJSONToValueRoundTrip(t *testing.T) {
	v, err := jsonToValue(value.TypeInt64, json.RawMessage("42"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.AsInt64())

	v, err = jsonToValue(value.TypeString, json.RawMessage(`"ada"`))
	require.NoError(t, err)
	assert.Equal(t, "ada", v.AsString())

	v, err = jsonToValue(value.TypeFloat64, json.RawMessage("null"))
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestValueToJSONRoundTrip(t *testing.T) {
	assert.Equal(t, int64(7), valueToJSON(value.Int64(7)))
	assert.Equal(t, "hi", valueToJSON(value.String("hi")))
	assert.Nil(t, valueToJSON(value.Null()))
}

func TestRowValuesDecodesInColumnOrder(t *testing.T) {
	tbl := productsTable(t)
	row, err := rowValues(tbl, `[1, "widget", 9.99]`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), row.Get(0).AsInt64())
	assert.Equal(t, "widget", row.Get(1).AsString())
	assert.InDelta(t, 9.99, row.Get(2).AsFloat64(), 0.0001)
}

func TestRowValuesRejectsWrongArity(t *testing.T) {
	tbl := productsTable(t)
	_, err := rowValues(tbl, `[1, "widget"]`)
	assert.Error(t, err)
}

func TestBuildScanPlanWithoutFilter(t *testing.T) {
	tbl := productsTable(t)
	plan, err := buildScanPlan(tbl, "", "")
	require.NoError(t, err)
	assert.NotNil(t, plan)
}

func TestBuildScanPlanWithFilter(t *testing.T) {
	tbl := productsTable(t)
	plan, err := buildScanPlan(tbl, "name", `"widget"`)
	require.NoError(t, err)
	assert.NotNil(t, plan)
}

func TestBuildScanPlanUnknownColumn(t *testing.T) {
	tbl := productsTable(t)
	_, err := buildScanPlan(tbl, "nope", `"x"`)
	assert.Error(t, err)
}

func TestRowToJSONIncludesRowID(t *testing.T) {
	tbl := productsTable(t)
	row := value.NewRow(5, []value.Value{value.Int64(1), value.String("widget"), value.Float64(9.99)})
	out := rowToJSON(tbl, row)
	assert.Equal(t, value.RowId(5), out["row_id"])
	assert.Equal(t, "widget", out["name"])
}
