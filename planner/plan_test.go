package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kasuganosora/cynos/value"
)

func TestScanAndEmptyConstructors(t *testing.T) {
	s := Scan("users")
	assert.Equal(t, PlanScan, s.Kind)
	assert.Equal(t, "users", s.Table)

	e := Empty()
	assert.Equal(t, PlanEmpty, e.Kind)
}

func TestNewFilterProjectSortLimit(t *testing.T) {
	scan := Scan("users")
	pred := Literal(value.Int64(0))
	f := NewFilter(scan, pred)
	assert.Equal(t, PlanFilter, f.Kind)
	assert.Same(t, scan, f.Input)
	assert.Same(t, pred, f.Pred)

	proj := NewProject(f, []*Expr{ColumnAt(0)})
	assert.Equal(t, PlanProject, proj.Kind)
	assert.Len(t, proj.Exprs, 1)

	sorted := NewSort(proj, []SortKey{{Column: 0, Desc: true}})
	assert.Equal(t, PlanSort, sorted.Kind)
	assert.True(t, sorted.OrderBy[0].Desc)

	limited := NewLimit(sorted, 10, 5)
	assert.Equal(t, PlanLimit, limited.Kind)
	assert.Equal(t, 10, limited.LimitN)
	assert.Equal(t, 5, limited.Offset)
}

func TestNewJoinAndCrossProduct(t *testing.T) {
	left := Scan("a")
	right := Scan("b")
	cond := Binary(OpEq, ColumnAt(0), ColumnAt(1))
	j := NewJoin(left, right, cond, JoinLeftOuter)
	assert.Equal(t, PlanJoin, j.Kind)
	assert.Equal(t, JoinLeftOuter, j.JoinType)

	cp := NewCrossProduct(left, right)
	assert.Equal(t, PlanCrossProduct, cp.Kind)
}

func TestNewAggregateAndUnion(t *testing.T) {
	scan := Scan("orders")
	agg := NewAggregate(scan, []*Expr{ColumnAt(0)}, []*Expr{AggFuncExpr(AggSum, ColumnAt(1))})
	assert.Equal(t, PlanAggregate, agg.Kind)
	assert.Len(t, agg.GroupBy, 1)
	assert.Len(t, agg.Aggs, 1)

	u := NewUnion(true, Scan("a"), Scan("b"))
	assert.Equal(t, PlanUnion, u.Kind)
	assert.True(t, u.All)
	assert.Len(t, u.Inputs, 2)
}

func TestSourceTablesScan(t *testing.T) {
	p := Scan("users")
	assert.Equal(t, []string{"users"}, SourceTables(p))
}

func TestSourceTablesJoin(t *testing.T) {
	p := NewJoin(Scan("a"), Scan("b"), nil, JoinInner)
	assert.Equal(t, []string{"a", "b"}, SourceTables(p))
}

func TestSourceTablesThroughFilterProjectLimit(t *testing.T) {
	p := NewLimit(NewProject(NewFilter(Scan("t"), nil), nil), 1, 0)
	assert.Equal(t, []string{"t"}, SourceTables(p))
}

func TestSourceTablesUnion(t *testing.T) {
	p := NewUnion(false, Scan("a"), Scan("b"), Scan("c"))
	assert.Equal(t, []string{"a", "b", "c"}, SourceTables(p))
}

func TestSourceTablesEmptyPlanYieldsNil(t *testing.T) {
	assert.Nil(t, SourceTables(Empty()))
}
