package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/cynos/planner"
	"github.com/kasuganosora/cynos/rowstore"
	"github.com/kasuganosora/cynos/schema"
	"github.com/kasuganosora/cynos/value"
)

type fakeSource map[string]*rowstore.RowStore

func (f fakeSource) GetTable(name string) (*rowstore.RowStore, error) {
	rs, ok := f[name]
	if !ok {
		return nil, execErr("GetTable", "no such table: "+name)
	}
	return rs, nil
}

func usersStore(t *testing.T) *rowstore.RowStore {
	tbl, err := schema.NewBuilder("users").
		AddColumn("id", value.TypeInt64).
		AddColumn("name", value.TypeString).
		AddPrimaryKey([]string{"id"}, true).
		Build()
	require.NoError(t, err)
	rs := rowstore.New(tbl)
	_, err = rs.Insert([]value.Value{value.Int64(1), value.String("alice")})
	require.NoError(t, err)
	_, err = rs.Insert([]value.Value{value.Int64(2), value.String("bob")})
	require.NoError(t, err)
	return rs
}

func TestRunScan(t *testing.T) {
	src := fakeSource{"users": usersStore(t)}
	runner := NewRunner(src)
	rel, err := runner.Run(planner.Scan("users"))
	require.NoError(t, err)
	assert.Len(t, rel.Entries, 2)
	assert.Equal(t, 2, rel.Width())
}

func TestRunScanUnknownTableErrors(t *testing.T) {
	src := fakeSource{}
	runner := NewRunner(src)
	_, err := runner.Run(planner.Scan("ghost"))
	assert.Error(t, err)
}

func TestRunFilterKeepsMatchingRows(t *testing.T) {
	src := fakeSource{"users": usersStore(t)}
	runner := NewRunner(src)
	pred := planner.Binary(planner.OpEq, planner.ColumnAt(1), planner.Literal(value.String("bob")))
	plan := planner.NewFilter(planner.Scan("users"), pred)

	rel, err := runner.Run(plan)
	require.NoError(t, err)
	require.Len(t, rel.Entries, 1)
	assert.Equal(t, "bob", rel.Entries[0].Row.Values[1].AsString())
}

func TestRunProjectSelectsColumns(t *testing.T) {
	src := fakeSource{"users": usersStore(t)}
	runner := NewRunner(src)
	plan := planner.NewProject(planner.Scan("users"), []*planner.Expr{planner.ColumnAt(1)})

	rel, err := runner.Run(plan)
	require.NoError(t, err)
	require.Len(t, rel.Entries, 2)
	assert.Len(t, rel.Entries[0].Row.Values, 1)
}

func TestRunSortOrdersByColumnDesc(t *testing.T) {
	src := fakeSource{"users": usersStore(t)}
	runner := NewRunner(src)
	plan := planner.NewSort(planner.Scan("users"), []planner.SortKey{{Column: 1, Desc: true}})

	rel, err := runner.Run(plan)
	require.NoError(t, err)
	require.Len(t, rel.Entries, 2)
	assert.Equal(t, "bob", rel.Entries[0].Row.Values[1].AsString())
	assert.Equal(t, "alice", rel.Entries[1].Row.Values[1].AsString())
}

func TestRunLimitAppliesOffsetAndCount(t *testing.T) {
	src := fakeSource{"users": usersStore(t)}
	runner := NewRunner(src)
	plan := planner.NewLimit(planner.Scan("users"), 1, 1)

	rel, err := runner.Run(plan)
	require.NoError(t, err)
	require.Len(t, rel.Entries, 1)
	assert.Equal(t, "bob", rel.Entries[0].Row.Values[1].AsString())
}

func TestRunCrossProductCombinesAllPairs(t *testing.T) {
	src := fakeSource{"users": usersStore(t)}
	runner := NewRunner(src)
	plan := planner.NewCrossProduct(planner.Scan("users"), planner.Scan("users"))

	rel, err := runner.Run(plan)
	require.NoError(t, err)
	assert.Len(t, rel.Entries, 4)
	assert.Equal(t, 4, rel.Width())
}

func TestRunUnionDedupsByRowID(t *testing.T) {
	src := fakeSource{"users": usersStore(t)}
	runner := NewRunner(src)
	plan := planner.NewUnion(false, planner.Scan("users"), planner.Scan("users"))

	rel, err := runner.Run(plan)
	require.NoError(t, err)
	assert.Len(t, rel.Entries, 2)
}

func TestRunUnionAllKeepsDuplicates(t *testing.T) {
	src := fakeSource{"users": usersStore(t)}
	runner := NewRunner(src)
	plan := planner.NewUnion(true, planner.Scan("users"), planner.Scan("users"))

	rel, err := runner.Run(plan)
	require.NoError(t, err)
	assert.Len(t, rel.Entries, 4)
}

func TestRunEmptyPlanYieldsEmptyRelation(t *testing.T) {
	runner := NewRunner(fakeSource{})
	rel, err := runner.Run(planner.Empty())
	require.NoError(t, err)
	assert.Empty(t, rel.Entries)
}

func TestRunNilPlanYieldsEmptyRelation(t *testing.T) {
	runner := NewRunner(fakeSource{})
	rel, err := runner.Run(nil)
	require.NoError(t, err)
	assert.Empty(t, rel.Entries)
}

func TestRunAggregateSumAndCount(t *testing.T) {
	tbl, err := schema.NewBuilder("orders").
		AddColumn("user_id", value.TypeInt64).
		AddColumn("amount", value.TypeInt64).
		Build()
	require.NoError(t, err)
	rs := rowstore.New(tbl)
	rs.Insert([]value.Value{value.Int64(1), value.Int64(10)})
	rs.Insert([]value.Value{value.Int64(1), value.Int64(20)})
	rs.Insert([]value.Value{value.Int64(2), value.Int64(5)})

	src := fakeSource{"orders": rs}
	runner := NewRunner(src)
	plan := planner.NewAggregate(
		planner.Scan("orders"),
		[]*planner.Expr{planner.ColumnAt(0)},
		[]*planner.Expr{
			planner.AggFuncExpr(planner.AggCount, nil),
			planner.AggFuncExpr(planner.AggSum, planner.ColumnAt(1)),
		},
	)

	rel, err := runner.Run(plan)
	require.NoError(t, err)
	require.Len(t, rel.Entries, 2)

	totals := map[int64]float64{}
	counts := map[int64]int64{}
	for _, e := range rel.Entries {
		key := e.Row.Values[0].AsInt64()
		counts[key] = e.Row.Values[1].AsInt64()
		totals[key] = e.Row.Values[2].AsFloat64()
	}
	assert.Equal(t, int64(2), counts[1])
	assert.Equal(t, float64(30), totals[1])
	assert.Equal(t, int64(1), counts[2])
	assert.Equal(t, float64(5), totals[2])
}

func TestRunJoinHashJoinInner(t *testing.T) {
	users := usersStore(t)
	ordersTbl, err := schema.NewBuilder("orders").
		AddColumn("user_id", value.TypeInt64).
		AddColumn("amount", value.TypeInt64).
		Build()
	require.NoError(t, err)
	orders := rowstore.New(ordersTbl)
	orders.Insert([]value.Value{value.Int64(1), value.Int64(99)})
	orders.Insert([]value.Value{value.Int64(3), value.Int64(50)}) // no matching user

	src := fakeSource{"users": users, "orders": orders}
	runner := NewRunner(src)

	cond := planner.Binary(planner.OpEq, planner.ColumnAt(0), planner.ColumnAt(2))
	plan := planner.NewJoin(planner.Scan("users"), planner.Scan("orders"), cond, planner.JoinInner)

	rel, err := runner.Run(plan)
	require.NoError(t, err)
	require.Len(t, rel.Entries, 1)
	assert.Equal(t, "alice", rel.Entries[0].Row.Values[1].AsString())
	assert.Equal(t, int64(99), rel.Entries[0].Row.Values[3].AsInt64())
}

func TestRunJoinLeftOuterPadsUnmatched(t *testing.T) {
	users := usersStore(t)
	ordersTbl, err := schema.NewBuilder("orders").
		AddColumn("user_id", value.TypeInt64).
		AddColumn("amount", value.TypeInt64).
		Build()
	require.NoError(t, err)
	orders := rowstore.New(ordersTbl)
	orders.Insert([]value.Value{value.Int64(1), value.Int64(99)})

	src := fakeSource{"users": users, "orders": orders}
	runner := NewRunner(src)

	cond := planner.Binary(planner.OpEq, planner.ColumnAt(0), planner.ColumnAt(2))
	plan := planner.NewJoin(planner.Scan("users"), planner.Scan("orders"), cond, planner.JoinLeftOuter)

	rel, err := runner.Run(plan)
	require.NoError(t, err)
	require.Len(t, rel.Entries, 2)

	var sawBobNullAmount bool
	for _, e := range rel.Entries {
		if e.Row.Values[1].AsString() == "bob" && e.Row.Values[3].IsNull() {
			sawBobNullAmount = true
		}
	}
	assert.True(t, sawBobNullAmount)
}

func TestRunJoinNestedLoopForNonEqualityCondition(t *testing.T) {
	users := usersStore(t)
	src := fakeSource{"users": users}
	runner := NewRunner(src)

	cond := planner.Binary(planner.OpNe, planner.ColumnAt(0), planner.ColumnAt(2))
	plan := planner.NewJoin(planner.Scan("users"), planner.Scan("users"), cond, planner.JoinInner)

	rel, err := runner.Run(plan)
	require.NoError(t, err)
	assert.Len(t, rel.Entries, 2) // (alice,bob) and (bob,alice)
}
