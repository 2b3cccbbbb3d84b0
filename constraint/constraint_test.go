package constraint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/cynos/schema"
	"github.com/kasuganosora/cynos/value"
)

type fakeDB struct {
	rows    map[string][]*value.Row
	schemas map[string]schema.Table
}

func newFakeDB() *fakeDB {
	return &fakeDB{rows: make(map[string][]*value.Row), schemas: make(map[string]schema.Table)}
}

func (f *fakeDB) GetRows(table string) ([]*value.Row, bool) {
	r, ok := f.rows[table]
	return r, ok
}

func (f *fakeDB) GetSchema(table string) (schema.Table, bool) {
	s, ok := f.schemas[table]
	return s, ok
}

func (f *fakeDB) DeleteRow(table string, id value.RowId) error {
	rows := f.rows[table]
	for i, r := range rows {
		if r.ID == id {
			f.rows[table] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func usersSchema(t *testing.T) schema.Table {
	tbl, err := schema.NewBuilder("users").
		AddColumn("id", value.TypeInt64).
		AddColumn("name", value.TypeString).
		AddNotNull("name").
		AddPrimaryKey([]string{"id"}, true).
		Build()
	require.NoError(t, err)
	return tbl
}

func ordersSchema(t *testing.T) schema.Table {
	tbl, err := schema.NewBuilder("orders").
		AddColumn("id", value.TypeInt64).
		AddColumn("user_id", value.TypeInt64).
		AddForeignKey("user_id", "users", "id", schema.FKCascade, schema.FKImmediate).
		Build()
	require.NoError(t, err)
	return tbl
}

func TestCheckNotNullDetectsNullColumn(t *testing.T) {
	db := newFakeDB()
	tbl := usersSchema(t)
	c := New(tbl, db)

	err := c.CheckNotNull([]value.Value{value.Int64(1), value.Null()})
	assert.Error(t, err)

	err = c.CheckNotNull([]value.Value{value.Int64(1), value.String("bob")})
	assert.NoError(t, err)
}

func TestCheckForeignKeysAllowsNull(t *testing.T) {
	db := newFakeDB()
	db.schemas["users"] = usersSchema(t)
	orders := ordersSchema(t)
	c := New(orders, db)

	err := c.CheckForeignKeys([]value.Value{value.Int64(1), value.Null()})
	assert.NoError(t, err)
}

func TestCheckForeignKeysViolationWhenParentMissing(t *testing.T) {
	db := newFakeDB()
	db.schemas["users"] = usersSchema(t)
	db.rows["users"] = nil
	orders := ordersSchema(t)
	c := New(orders, db)

	err := c.CheckForeignKeys([]value.Value{value.Int64(1), value.Int64(99)})
	assert.Error(t, err)
}

func TestCheckForeignKeysSatisfiedWhenParentExists(t *testing.T) {
	db := newFakeDB()
	db.schemas["users"] = usersSchema(t)
	db.rows["users"] = []*value.Row{value.NewRow(1, []value.Value{value.Int64(1), value.String("bob")})}
	orders := ordersSchema(t)
	c := New(orders, db)

	err := c.CheckForeignKeys([]value.Value{value.Int64(1), value.Int64(1)})
	assert.NoError(t, err)
}

func TestExpandCascadeFindsDependentChildRows(t *testing.T) {
	db := newFakeDB()
	orders := ordersSchema(t)
	db.rows["orders"] = []*value.Row{
		value.NewRow(10, []value.Value{value.Int64(10), value.Int64(1)}),
		value.NewRow(11, []value.Value{value.Int64(11), value.Int64(2)}),
	}
	users := usersSchema(t)

	deletes, err := ExpandCascade("users", []value.Value{value.Int64(1), value.String("bob")}, users,
		[]ChildTable{{Schema: orders}}, db)
	require.NoError(t, err)
	require.Len(t, deletes, 1)
	assert.Equal(t, "orders", deletes[0].Table)
	assert.Equal(t, value.RowId(10), deletes[0].ID)
}

func TestExpandCascadeSkipsNonCascadeAction(t *testing.T) {
	db := newFakeDB()
	restrictOrders, err := schema.NewBuilder("orders").
		AddColumn("id", value.TypeInt64).
		AddColumn("user_id", value.TypeInt64).
		AddForeignKey("user_id", "users", "id", schema.FKRestrict, schema.FKImmediate).
		Build()
	require.NoError(t, err)
	db.rows["orders"] = []*value.Row{value.NewRow(10, []value.Value{value.Int64(10), value.Int64(1)})}
	users := usersSchema(t)

	deletes, err := ExpandCascade("users", []value.Value{value.Int64(1), value.String("bob")}, users,
		[]ChildTable{{Schema: restrictOrders}}, db)
	require.NoError(t, err)
	assert.Empty(t, deletes)
}

func TestDeferredQueueValidatesInOrderAndStopsAtFirstError(t *testing.T) {
	var q DeferredQueue
	var ran []int
	q.Enqueue(Deferred{Check: func() error { ran = append(ran, 1); return nil }})
	q.Enqueue(Deferred{Check: func() error { ran = append(ran, 2); return assertErr }})
	q.Enqueue(Deferred{Check: func() error { ran = append(ran, 3); return nil }})

	err := q.Validate()
	assert.Error(t, err)
	assert.Equal(t, []int{1, 2}, ran)
	assert.Equal(t, 3, q.Len())
}

var assertErr = &stubError{"deferred check failed"}

type stubError struct{ msg string }

func (e *stubError) Error() string { return e.msg }
