package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/cynos/value"
)

func TestColumnDefaultValuePrecedence(t *testing.T) {
	dflt := value.Int32(42)
	withDefault := Column{DataType: value.TypeInt32, Default: &dflt}
	assert.Equal(t, value.Int32(42), withDefault.DefaultValue())

	nullable := Column{DataType: value.TypeInt32, Nullable: true}
	assert.True(t, nullable.DefaultValue().IsNull())

	zeroed := Column{DataType: value.TypeInt32}
	assert.Equal(t, value.Int32(0), zeroed.DefaultValue())
}

func TestBuilderRejectsEmptyName(t *testing.T) {
	_, err := NewBuilder("").Build()
	assert.Error(t, err)
}

func TestBuilderRejectsDuplicateColumn(t *testing.T) {
	_, err := NewBuilder("t").
		AddColumn("a", value.TypeInt32).
		AddColumn("a", value.TypeString).
		Build()
	assert.Error(t, err)
}

func TestBuilderBasicTable(t *testing.T) {
	tbl, err := NewBuilder("users").
		AddColumn("id", value.TypeInt64).
		AddColumn("email", value.TypeString).
		Unique().
		AddColumn("age", value.TypeInt32).
		Nullable(true).
		AddPrimaryKey([]string{"id"}, true).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "users", tbl.Name)
	assert.Len(t, tbl.Columns, 3)

	col, idx := tbl.GetColumn("email")
	require.NotNil(t, col)
	assert.Equal(t, 1, idx)
	assert.True(t, col.Unique)

	ageCol, _ := tbl.GetColumn("age")
	assert.True(t, ageCol.Nullable)

	assert.Equal(t, []string{"id"}, tbl.PrimaryKeyColumns())

	_, missing := tbl.GetColumn("nope")
	assert.Equal(t, -1, missing)
}

func TestBuilderAddNotNullAndForeignKey(t *testing.T) {
	tbl, err := NewBuilder("orders").
		AddColumn("id", value.TypeInt64).
		AddColumn("user_id", value.TypeInt64).
		AddNotNull("user_id").
		AddForeignKey("user_id", "users", "id", FKCascade, FKImmediate).
		Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"user_id"}, tbl.NotNullColumns())
	fks := tbl.ForeignKeys()
	require.Len(t, fks, 1)
	assert.Equal(t, "users", fks[0].RefTable)
	assert.Equal(t, FKCascade, fks[0].Action)
}

func TestBuilderAddForeignKeyUnknownColumnErrors(t *testing.T) {
	_, err := NewBuilder("orders").
		AddColumn("id", value.TypeInt64).
		AddForeignKey("missing", "users", "id", FKRestrict, FKImmediate).
		Build()
	assert.Error(t, err)
}

func TestBuilderAddIndexRejectsUniqueGin(t *testing.T) {
	_, err := NewBuilder("docs").
		AddColumn("payload", value.TypeJsonb).
		AddIndex("gin_payload", []IndexColumn{{Name: "payload"}}, true, IndexGin).
		Build()
	assert.Error(t, err)
}

func TestBuilderErrorShortCircuitsFurtherCalls(t *testing.T) {
	b := NewBuilder("t").AddColumn("a", value.TypeInt32).AddColumn("a", value.TypeInt32)
	before := len(b.table.Columns)
	b.AddColumn("b", value.TypeInt32)
	assert.Equal(t, before, len(b.table.Columns))
}
