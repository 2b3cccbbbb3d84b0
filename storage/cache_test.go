package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/cynos/schema"
	"github.com/kasuganosora/cynos/value"
)

func simpleTable(t *testing.T, name string) schema.Table {
	tbl, err := schema.NewBuilder(name).
		AddColumn("id", value.TypeInt64).
		AddColumn("name", value.TypeString).
		AddPrimaryKey([]string{"id"}, true).
		Build()
	require.NoError(t, err)
	return tbl
}

func TestCacheCreateAndDropTable(t *testing.T) {
	c := NewCache()
	require.NoError(t, c.CreateTable(simpleTable(t, "users")))

	_, err := c.GetTable("users")
	assert.NoError(t, err)

	assert.Error(t, c.CreateTable(simpleTable(t, "users")))

	require.NoError(t, c.DropTable("users"))
	_, err = c.GetTable("users")
	assert.Error(t, err)

	assert.Error(t, c.DropTable("users"))
}

func TestCacheTableNamesPreservesCreationOrder(t *testing.T) {
	c := NewCache()
	c.CreateTable(simpleTable(t, "b"))
	c.CreateTable(simpleTable(t, "a"))
	assert.Equal(t, []string{"b", "a"}, c.TableNames())
}

func TestCacheRowCountAndClear(t *testing.T) {
	c := NewCache()
	c.CreateTable(simpleTable(t, "users"))
	rs, _ := c.GetTable("users")
	rs.Insert([]value.Value{value.Int64(1), value.String("a")})
	rs.Insert([]value.Value{value.Int64(2), value.String("b")})

	assert.Equal(t, 2, c.RowCount())

	require.NoError(t, c.ClearTable("users"))
	assert.Equal(t, 0, c.RowCount())
}

func TestCacheClearAll(t *testing.T) {
	c := NewCache()
	c.CreateTable(simpleTable(t, "a"))
	c.CreateTable(simpleTable(t, "b"))
	rsA, _ := c.GetTable("a")
	rsA.Insert([]value.Value{value.Int64(1), value.String("x")})

	c.ClearAll()
	assert.Equal(t, 0, c.RowCount())
}

func TestCacheGetRowsGetSchemaDeleteRow(t *testing.T) {
	c := NewCache()
	c.CreateTable(simpleTable(t, "users"))
	rs, _ := c.GetTable("users")
	row, _ := rs.Insert([]value.Value{value.Int64(1), value.String("a")})

	rows, ok := c.GetRows("users")
	require.True(t, ok)
	assert.Len(t, rows, 1)

	_, ok = c.GetRows("ghost")
	assert.False(t, ok)

	s, ok := c.GetSchema("users")
	require.True(t, ok)
	assert.Equal(t, "users", s.Name)

	require.NoError(t, c.DeleteRow("users", row.ID))
	rows, _ = c.GetRows("users")
	assert.Empty(t, rows)

	assert.Error(t, c.DeleteRow("ghost", 1))
}
