package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/cynos/diff"
	"github.com/kasuganosora/cynos/schema"
	"github.com/kasuganosora/cynos/value"
)

type fakeSink struct {
	changes []TableDelta
}

func (s *fakeSink) OnTableChange(table string, batch diff.Batch[*value.Row]) {
	s.changes = append(s.changes, TableDelta{Table: table, Batch: batch})
}

func newTestCache(t *testing.T, tables ...schema.Table) *Cache {
	c := NewCache()
	for _, tbl := range tables {
		require.NoError(t, c.CreateTable(tbl))
	}
	return c
}

func TestTransactionInsertCommitFansOutDelta(t *testing.T) {
	tbl := simpleTable(t, "users")
	c := newTestCache(t, tbl)
	locks := NewLockManager()
	sink := &fakeSink{}

	tx := BeginTransaction(c, locks, sink)
	row, err := tx.Insert("users", []value.Value{value.Int64(1), value.String("a")})
	require.NoError(t, err)
	assert.NotNil(t, row)

	require.NoError(t, tx.Commit())
	require.Len(t, sink.changes, 1)
	assert.Equal(t, "users", sink.changes[0].Table)
	assert.Equal(t, Committed, tx.State())
}

func TestTransactionUpdateAndDelete(t *testing.T) {
	tbl := simpleTable(t, "users")
	c := newTestCache(t, tbl)
	locks := NewLockManager()
	tx := BeginTransaction(c, locks, nil)

	row, err := tx.Insert("users", []value.Value{value.Int64(1), value.String("a")})
	require.NoError(t, err)

	require.NoError(t, tx.Update("users", row.ID, []value.Value{value.Int64(1), value.String("b")}))
	require.NoError(t, tx.Delete("users", row.ID))
	require.NoError(t, tx.Commit())

	rs, _ := c.GetTable("users")
	assert.Equal(t, 0, rs.Len())
}

func TestTransactionRollbackReinsertsDeletedRow(t *testing.T) {
	tbl := simpleTable(t, "users")
	c := newTestCache(t, tbl)
	locks := NewLockManager()

	tx1 := BeginTransaction(c, locks, nil)
	row, err := tx1.Insert("users", []value.Value{value.Int64(1), value.String("a")})
	require.NoError(t, err)
	require.NoError(t, tx1.Commit())

	tx2 := BeginTransaction(c, locks, nil)
	require.NoError(t, tx2.Delete("users", row.ID))
	tx2.Rollback()

	rs, _ := c.GetTable("users")
	got, ok := rs.Get(row.ID)
	require.True(t, ok)
	assert.Equal(t, "a", got.Values[1].AsString())
	assert.Equal(t, RolledBack, tx2.State())
}

func TestTransactionOperationsAfterCommitFail(t *testing.T) {
	tbl := simpleTable(t, "users")
	c := newTestCache(t, tbl)
	locks := NewLockManager()
	tx := BeginTransaction(c, locks, nil)
	require.NoError(t, tx.Commit())

	_, err := tx.Insert("users", []value.Value{value.Int64(1), value.String("a")})
	assert.Error(t, err)
}

func TestTransactionDeleteCascadesToChildTable(t *testing.T) {
	users := simpleTable(t, "users")
	orders, err := schema.NewBuilder("orders").
		AddColumn("id", value.TypeInt64).
		AddColumn("user_id", value.TypeInt64).
		AddForeignKey("user_id", "users", "id", schema.FKCascade, schema.FKImmediate).
		Build()
	require.NoError(t, err)

	c := newTestCache(t, users, orders)
	locks := NewLockManager()
	tx := BeginTransaction(c, locks, nil)

	userRow, err := tx.Insert("users", []value.Value{value.Int64(1), value.String("a")})
	require.NoError(t, err)
	_, err = tx.Insert("orders", []value.Value{value.Int64(10), value.Int64(1)})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx2 := BeginTransaction(c, locks, nil)
	require.NoError(t, tx2.Delete("users", userRow.ID))
	require.NoError(t, tx2.Commit())

	ordersRS, _ := c.GetTable("orders")
	assert.Equal(t, 0, ordersRS.Len())
}

func TestTransactionInsertFailsForeignKeyViolation(t *testing.T) {
	users := simpleTable(t, "users")
	orders, err := schema.NewBuilder("orders").
		AddColumn("id", value.TypeInt64).
		AddColumn("user_id", value.TypeInt64).
		AddForeignKey("user_id", "users", "id", schema.FKRestrict, schema.FKImmediate).
		Build()
	require.NoError(t, err)

	c := newTestCache(t, users, orders)
	locks := NewLockManager()
	tx := BeginTransaction(c, locks, nil)

	_, err = tx.Insert("orders", []value.Value{value.Int64(10), value.Int64(999)})
	assert.Error(t, err)
}
