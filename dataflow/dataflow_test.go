package dataflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/cynos/diff"
	"github.com/kasuganosora/cynos/value"
)

func row(id value.RowId, vals ...value.Value) *value.Row {
	return value.NewRow(id, vals)
}

func TestGraphAddSourceTracksSources(t *testing.T) {
	g := NewGraph()
	s := g.AddSource("users")
	assert.True(t, g.DependsOn("users"))
	assert.False(t, g.DependsOn("orders"))
	assert.Equal(t, map[TableID]bool{"users": true}, g.CollectSources(s))
}

func TestGraphFilterProjectTracksUpstreamSources(t *testing.T) {
	g := NewGraph()
	src := g.AddSource("users")
	f := g.AddFilter(src, func(r *value.Row) bool { return true })
	p := g.AddProject(f, []int{0})
	assert.Equal(t, map[TableID]bool{"users": true}, g.CollectSources(p))
}

func TestGraphJoinMergesBothSources(t *testing.T) {
	g := NewGraph()
	left := g.AddSource("users")
	right := g.AddSource("orders")
	j := g.AddJoin(left, right, nil, nil, JoinInner, 1, 1)
	assert.Equal(t, map[TableID]bool{"users": true, "orders": true}, g.CollectSources(j))
}

func TestMaterializedViewFilterSeedAndUpdate(t *testing.T) {
	g := NewGraph()
	src := g.AddSource("users")
	f := g.AddFilter(src, func(r *value.Row) bool { return r.Values[1].AsInt64() > 18 })
	g.SetRoot(f)

	v := NewMaterializedView(g)
	adult := row(1, value.String("alice"), value.Int64(30))
	child := row(2, value.String("bob"), value.Int64(10))
	v.Seed("users", []*value.Row{adult, child})

	result := v.Result()
	require.Len(t, result, 1)
	assert.Equal(t, "alice", result[0].Values[0].AsString())

	teen := row(3, value.String("carol"), value.Int64(19))
	v.OnTableChange("users", diff.Batch[*value.Row]{diff.Insert(teen)})
	result = v.Result()
	assert.Len(t, result, 2)
}

func TestMaterializedViewIgnoresUnrelatedTable(t *testing.T) {
	g := NewGraph()
	src := g.AddSource("users")
	g.SetRoot(src)
	v := NewMaterializedView(g)

	out := v.OnTableChange("orders", diff.Batch[*value.Row]{diff.Insert(row(1, value.Int64(1)))})
	assert.Nil(t, out)
	assert.Empty(t, v.Result())
}

func TestMaterializedViewProjectNarrowsColumns(t *testing.T) {
	g := NewGraph()
	src := g.AddSource("users")
	p := g.AddProject(src, []int{1})
	g.SetRoot(p)

	v := NewMaterializedView(g)
	v.Seed("users", []*value.Row{row(1, value.String("alice"), value.Int64(30))})

	result := v.Result()
	require.Len(t, result, 1)
	require.Len(t, result[0].Values, 1)
	assert.Equal(t, int64(30), result[0].Values[0].AsInt64())
}

func TestMaterializedViewDeleteRemovesFromResult(t *testing.T) {
	g := NewGraph()
	src := g.AddSource("users")
	g.SetRoot(src)
	v := NewMaterializedView(g)

	alice := row(1, value.String("alice"))
	v.Seed("users", []*value.Row{alice})
	require.Len(t, v.Result(), 1)

	v.OnTableChange("users", diff.Batch[*value.Row]{diff.Delete(alice)})
	assert.Empty(t, v.Result())
}

func TestMaterializedViewJoinCombinesRows(t *testing.T) {
	g := NewGraph()
	left := g.AddSource("users")
	right := g.AddSource("orders")
	j := g.AddJoin(left, right,
		func(r *value.Row) value.Value { return r.Values[0] },
		func(r *value.Row) value.Value { return r.Values[0] },
		JoinInner, 2, 2)
	g.SetRoot(j)

	v := NewMaterializedView(g)
	v.Seed("users", []*value.Row{row(1, value.Int64(1), value.String("alice"))})
	v.Seed("orders", []*value.Row{row(2, value.Int64(1), value.Int64(99))})

	result := v.Result()
	require.Len(t, result, 1)
	assert.Equal(t, "alice", result[0].Values[1].AsString())
	assert.Equal(t, int64(99), result[0].Values[3].AsInt64())
}

func TestMaterializedViewAggregateSumPerGroup(t *testing.T) {
	g := NewGraph()
	src := g.AddSource("orders")
	agg := g.AddAggregate(src, []int{0}, []AggSpec{
		{Func: AggCount},
		{Col: 1, Func: AggSum},
	})
	g.SetRoot(agg)

	v := NewMaterializedView(g)
	v.Seed("orders", []*value.Row{
		row(1, value.Int64(1), value.Int64(10)),
		row(2, value.Int64(1), value.Int64(20)),
		row(3, value.Int64(2), value.Int64(5)),
	})

	result := v.Result()
	require.Len(t, result, 2)

	totals := map[int64]float64{}
	for _, r := range result {
		totals[r.Values[0].AsInt64()] = r.Values[2].AsFloat64()
	}
	assert.Equal(t, float64(30), totals[1])
	assert.Equal(t, float64(5), totals[2])
}

func TestMaterializedViewAggregateGroupRemovedWhenEmptied(t *testing.T) {
	g := NewGraph()
	src := g.AddSource("orders")
	agg := g.AddAggregate(src, []int{0}, []AggSpec{{Func: AggCount}})
	g.SetRoot(agg)

	v := NewMaterializedView(g)
	r1 := row(1, value.Int64(1))
	v.Seed("orders", []*value.Row{r1})
	require.Len(t, v.Result(), 1)

	v.OnTableChange("orders", diff.Batch[*value.Row]{diff.Delete(r1)})
	assert.Empty(t, v.Result())
}

func TestMaterializedViewLeftOuterJoinPadsSeededUnmatchedRow(t *testing.T) {
	g := NewGraph()
	left := g.AddSource("users")
	right := g.AddSource("orders")
	j := g.AddJoin(left, right,
		func(r *value.Row) value.Value { return r.Values[0] },
		func(r *value.Row) value.Value { return r.Values[0] },
		JoinLeftOuter, 2, 2)
	g.SetRoot(j)

	v := NewMaterializedView(g)
	u1 := row(1, value.Int64(1), value.String("alice"))
	u2 := row(2, value.Int64(99), value.String("bob"))
	v.Seed("users", []*value.Row{u1, u2})
	v.Seed("orders", []*value.Row{row(3, value.Int64(1), value.Int64(10))})

	result := v.Result()
	require.Len(t, result, 2)

	byName := map[string][]value.Value{}
	for _, r := range result {
		byName[r.Values[1].AsString()] = r.Values
	}
	require.Contains(t, byName, "bob")
	assert.True(t, byName["bob"][2].IsNull())
	assert.True(t, byName["bob"][3].IsNull())
}

// TestMaterializedViewLeftOuterJoinRetractsPadWhenMatchArrives exercises
// spec scenario 5 directly: a left row seeded with no matching right row
// is padded with nulls; once a right row with a matching key arrives,
// the pad must be retracted (Removed) and the real joined row emitted
// (Added) rather than both rows coexisting in the result.
func TestMaterializedViewLeftOuterJoinRetractsPadWhenMatchArrives(t *testing.T) {
	g := NewGraph()
	left := g.AddSource("users")
	right := g.AddSource("orders")
	j := g.AddJoin(left, right,
		func(r *value.Row) value.Value { return r.Values[0] },
		func(r *value.Row) value.Value { return r.Values[0] },
		JoinLeftOuter, 2, 2)
	g.SetRoot(j)

	v := NewMaterializedView(g)
	u := row(2, value.Int64(99), value.String("bob"))
	v.Seed("users", []*value.Row{u})
	v.Seed("orders", nil)

	result := v.Result()
	require.Len(t, result, 1)
	assert.True(t, result[0].Values[2].IsNull())

	newOrder := row(3, value.Int64(99), value.String("X"))
	out := v.OnTableChange("orders", diff.Batch[*value.Row]{diff.Insert(newOrder)})

	var added, removed int
	for _, d := range out {
		if d.Diff > 0 {
			added++
		} else {
			removed++
		}
	}
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, removed)

	result = v.Result()
	require.Len(t, result, 1)
	assert.Equal(t, int64(99), result[0].Values[0].AsInt64())
	assert.Equal(t, "X", result[0].Values[3].AsString())
}

// TestMaterializedViewLeftOuterJoinReemitsPadWhenLastMatchRemoved is the
// inverse: deleting the only right-side row matching a key must re-pad
// every left row sharing that key.
func TestMaterializedViewLeftOuterJoinReemitsPadWhenLastMatchRemoved(t *testing.T) {
	g := NewGraph()
	left := g.AddSource("users")
	right := g.AddSource("orders")
	j := g.AddJoin(left, right,
		func(r *value.Row) value.Value { return r.Values[0] },
		func(r *value.Row) value.Value { return r.Values[0] },
		JoinLeftOuter, 2, 2)
	g.SetRoot(j)

	v := NewMaterializedView(g)
	u := row(1, value.Int64(1), value.String("alice"))
	o := row(2, value.Int64(1), value.Int64(10))
	v.Seed("users", []*value.Row{u})
	v.Seed("orders", []*value.Row{o})

	result := v.Result()
	require.Len(t, result, 1)
	assert.Equal(t, int64(10), result[0].Values[3].AsInt64())

	v.OnTableChange("orders", diff.Batch[*value.Row]{diff.Delete(o)})

	result = v.Result()
	require.Len(t, result, 1)
	assert.True(t, result[0].Values[2].IsNull())
	assert.True(t, result[0].Values[3].IsNull())
}

// TestMaterializedViewProjectDeleteMatchesByContentNotDummyID covers a
// multi-row projected view: every projected row shares value.DummyRowID,
// so a delete must be matched by content, not by identity, or the wrong
// row (or none) is removed.
func TestMaterializedViewProjectDeleteMatchesByContentNotDummyID(t *testing.T) {
	g := NewGraph()
	src := g.AddSource("users")
	p := g.AddProject(src, []int{1})
	g.SetRoot(p)

	v := NewMaterializedView(g)
	alice := row(1, value.Int64(1), value.String("alice"))
	bob := row(2, value.Int64(2), value.String("bob"))
	v.Seed("users", []*value.Row{alice, bob})
	require.Len(t, v.Result(), 2)

	// alice is first in insertion order; deleting bob must not remove
	// alice's projected row just because both share value.DummyRowID.
	v.OnTableChange("users", diff.Batch[*value.Row]{diff.Delete(bob)})

	result := v.Result()
	require.Len(t, result, 1)
	assert.Equal(t, "alice", result[0].Values[0].AsString())
}

func TestMaterializedViewAggregateMaxRecomputesAfterDeletingExtreme(t *testing.T) {
	g := NewGraph()
	src := g.AddSource("scores")
	agg := g.AddAggregate(src, nil, []AggSpec{{Col: 0, Func: AggMax}})
	g.SetRoot(agg)

	v := NewMaterializedView(g)
	high := row(1, value.Int64(100))
	low := row(2, value.Int64(5))
	v.Seed("scores", []*value.Row{high, low})
	require.Equal(t, int64(100), v.Result()[0].Values[0].AsInt64())

	v.OnTableChange("scores", diff.Batch[*value.Row]{diff.Delete(high)})
	assert.Equal(t, int64(5), v.Result()[0].Values[0].AsInt64())
}
