package engine

import (
	"fmt"

	"github.com/kasuganosora/cynos/dataflow"
	"github.com/kasuganosora/cynos/exec"
	"github.com/kasuganosora/cynos/planner"
	"github.com/kasuganosora/cynos/value"
)

// compileDataflow translates a logical plan (already run through
// planner.OptimizeForDataflow) into a dataflow.Graph that an
// ObservableQuery can maintain incrementally, lifting plan nodes onto
// dataflow/graph.go's node arena. Index-access plan kinds are flattened
// back to a Source since the incremental graph always reacts off the
// full table, never an index lookup; Sort and Limit compile straight
// through to their input; a non-equi join becomes a constant-key Join
// followed by a Filter.
func compileDataflow(p *planner.LogicalPlan, cat planner.Catalog) (*dataflow.Graph, dataflow.NodeId, error) {
	g := dataflow.NewGraph()
	root, err := compileNode(g, p, cat)
	if err != nil {
		return nil, 0, err
	}
	return g, root, nil
}

func compileNode(g *dataflow.Graph, p *planner.LogicalPlan, cat planner.Catalog) (dataflow.NodeId, error) {
	switch p.Kind {
	case planner.PlanScan, planner.PlanIndexScan, planner.PlanIndexGet,
		planner.PlanIndexInGet, planner.PlanGinIndexScan, planner.PlanGinIndexScanMulti:
		return g.AddSource(p.Table), nil

	case planner.PlanFilter:
		input, err := compileNode(g, p.Input, cat)
		if err != nil {
			return 0, err
		}
		pred := p.Pred
		return g.AddFilter(input, func(row *value.Row) bool {
			return exec.Eval(pred, row).AsBool()
		}), nil

	case planner.PlanProject:
		input, err := compileNode(g, p.Input, cat)
		if err != nil {
			return 0, err
		}
		if cols, ok := allColumnPositions(p.Exprs); ok {
			return g.AddProject(input, cols), nil
		}
		exprs := p.Exprs
		return g.AddMap(input, func(row *value.Row) *value.Row {
			vals := make([]value.Value, len(exprs))
			for i, e := range exprs {
				vals[i] = exec.Eval(e, row)
			}
			return value.NewRow(row.ID, vals)
		}), nil

	case planner.PlanJoin, planner.PlanCrossProduct:
		left, err := compileNode(g, p.Left, cat)
		if err != nil {
			return 0, err
		}
		right, err := compileNode(g, p.Right, cat)
		if err != nil {
			return 0, err
		}
		leftWidth := planner.PlanWidth(p.Left, cat)
		rightWidth := planner.PlanWidth(p.Right, cat)
		jt := dataflowJoinType(p.JoinType)
		if p.Kind == planner.PlanCrossProduct || p.JoinCond == nil {
			same := value.Int32(0)
			keyFn := func(*value.Row) value.Value { return same }
			return g.AddJoin(left, right, keyFn, keyFn, jt, leftWidth, rightWidth), nil
		}
		lp, rp, ok := equalityPositions(p.JoinCond, leftWidth)
		if ok {
			leftKey := func(row *value.Row) value.Value { return row.Get(lp) }
			rightKey := func(row *value.Row) value.Value { return row.Get(rp) }
			return g.AddJoin(left, right, leftKey, rightKey, jt, leftWidth, rightWidth), nil
		}
		// Non-equi join condition: join on a constant key (a full
		// cross) and let a downstream Filter apply the real predicate
		// against the combined row.
		same := value.Int32(0)
		keyFn := func(*value.Row) value.Value { return same }
		joinNode := g.AddJoin(left, right, keyFn, keyFn, jt, leftWidth, rightWidth)
		cond := p.JoinCond
		return g.AddFilter(joinNode, func(row *value.Row) bool {
			return exec.Eval(cond, row).AsBool()
		}), nil

	case planner.PlanAggregate:
		input, err := compileNode(g, p.Input, cat)
		if err != nil {
			return 0, err
		}
		groupBy := make([]int, len(p.GroupBy))
		for i, e := range p.GroupBy {
			if e.Kind != planner.ExprColumn {
				return 0, fmt.Errorf("engine: aggregate group-by must resolve to a column position")
			}
			groupBy[i] = e.PositionHint
		}
		aggs := make([]dataflow.AggSpec, len(p.Aggs))
		for i, e := range p.Aggs {
			col := 0
			if e.Arg != nil {
				col = e.Arg.PositionHint
			}
			aggs[i] = dataflow.AggSpec{Col: col, Func: dataflowAggFunc(e.Agg)}
		}
		return g.AddAggregate(input, groupBy, aggs), nil

	case planner.PlanSort, planner.PlanLimit:
		// Ordering and pagination are presentation concerns over a
		// materialized view's full snapshot, not part of the
		// incremental graph; compile straight through.
		return compileNode(g, p.Input, cat)

	case planner.PlanEmpty:
		return g.AddSource("__empty__"), nil

	default:
		return 0, fmt.Errorf("engine: plan kind %v cannot be observed incrementally", p.Kind)
	}
}

func allColumnPositions(exprs []*planner.Expr) ([]int, bool) {
	cols := make([]int, len(exprs))
	for i, e := range exprs {
		if e.Kind != planner.ExprColumn {
			return nil, false
		}
		cols[i] = e.PositionHint
	}
	return cols, true
}

func equalityPositions(e *planner.Expr, leftWidth int) (leftPos, rightPos int, ok bool) {
	if e.Kind != planner.ExprBinaryOp || e.Op != planner.OpEq {
		return 0, 0, false
	}
	if e.Left.Kind != planner.ExprColumn || e.Right.Kind != planner.ExprColumn {
		return 0, 0, false
	}
	lp, rp := e.Left.PositionHint, e.Right.PositionHint
	if lp < leftWidth && rp >= leftWidth {
		return lp, rp - leftWidth, true
	}
	if rp < leftWidth && lp >= leftWidth {
		return rp, lp - leftWidth, true
	}
	return 0, 0, false
}

func dataflowJoinType(jt planner.JoinKind) dataflow.JoinType {
	switch jt {
	case planner.JoinLeftOuter:
		return dataflow.JoinLeftOuter
	case planner.JoinRightOuter:
		return dataflow.JoinRightOuter
	case planner.JoinFullOuter:
		return dataflow.JoinFullOuter
	default:
		return dataflow.JoinInner
	}
}

func dataflowAggFunc(f planner.AggFunc) dataflow.AggFunc {
	switch f {
	case planner.AggSum:
		return dataflow.AggSum
	case planner.AggAvg:
		return dataflow.AggAvg
	case planner.AggMin:
		return dataflow.AggMin
	case planner.AggMax:
		return dataflow.AggMax
	default:
		return dataflow.AggCount
	}
}
