package planner

import (
	"github.com/kasuganosora/cynos/index"
	"github.com/kasuganosora/cynos/value"
)

// PlanKind tags a LogicalPlan variant.
type PlanKind int

const (
	PlanScan PlanKind = iota
	PlanIndexScan
	PlanIndexGet
	PlanIndexInGet
	PlanGinIndexScan
	PlanGinIndexScanMulti
	PlanFilter
	PlanProject
	PlanJoin
	PlanAggregate
	PlanSort
	PlanLimit
	PlanCrossProduct
	PlanUnion
	PlanEmpty
)

// JoinKind mirrors dataflow.JoinType without importing dataflow.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeftOuter
	JoinRightOuter
	JoinFullOuter
)

// SortKey is one (column, direction) pair of a Sort operator.
type SortKey struct {
	Column int
	Desc   bool
}

// LogicalPlan is a node in the logical query plan tree. Only the fields
// relevant to Kind are meaningful; this favors a tagged-struct
// plan-node convention over a sum-type-via-interface hierarchy,
// keeping the optimizer's tree rewrites mechanical.
type LogicalPlan struct {
	Kind PlanKind

	// PlanScan / PlanIndexScan / PlanIndexGet / PlanIndexInGet /
	// PlanGinIndexScan / PlanGinIndexScanMulti
	Table     string
	IndexName string
	Range     index.Range
	Key       value.Value
	Keys      []value.Value
	GinTerm   value.Value
	GinTerms  []value.Value

	// PlanFilter
	Pred *Expr

	// PlanProject
	Exprs []*Expr

	// PlanJoin / PlanCrossProduct
	Left, Right *LogicalPlan
	JoinCond    *Expr
	JoinType    JoinKind

	// PlanAggregate
	GroupBy []*Expr
	Aggs    []*Expr

	// PlanSort
	OrderBy []SortKey

	// PlanLimit
	LimitN, Offset int

	// PlanUnion
	Inputs []*LogicalPlan
	All    bool

	// single-child operators (Filter/Project/Aggregate/Sort/Limit)
	Input *LogicalPlan
}

func Scan(table string) *LogicalPlan {
	return &LogicalPlan{Kind: PlanScan, Table: table}
}

func Empty() *LogicalPlan {
	return &LogicalPlan{Kind: PlanEmpty}
}

func NewFilter(input *LogicalPlan, pred *Expr) *LogicalPlan {
	return &LogicalPlan{Kind: PlanFilter, Input: input, Pred: pred}
}

func NewProject(input *LogicalPlan, exprs []*Expr) *LogicalPlan {
	return &LogicalPlan{Kind: PlanProject, Input: input, Exprs: exprs}
}

func NewJoin(left, right *LogicalPlan, cond *Expr, jt JoinKind) *LogicalPlan {
	return &LogicalPlan{Kind: PlanJoin, Left: left, Right: right, JoinCond: cond, JoinType: jt}
}

func NewCrossProduct(left, right *LogicalPlan) *LogicalPlan {
	return &LogicalPlan{Kind: PlanCrossProduct, Left: left, Right: right}
}

func NewAggregate(input *LogicalPlan, groupBy, aggs []*Expr) *LogicalPlan {
	return &LogicalPlan{Kind: PlanAggregate, Input: input, GroupBy: groupBy, Aggs: aggs}
}

func NewSort(input *LogicalPlan, order []SortKey) *LogicalPlan {
	return &LogicalPlan{Kind: PlanSort, Input: input, OrderBy: order}
}

func NewLimit(input *LogicalPlan, n, offset int) *LogicalPlan {
	return &LogicalPlan{Kind: PlanLimit, Input: input, LimitN: n, Offset: offset}
}

func NewUnion(all bool, inputs ...*LogicalPlan) *LogicalPlan {
	return &LogicalPlan{Kind: PlanUnion, All: all, Inputs: inputs}
}

// SourceTables returns every base table name a plan transitively scans,
// in left-to-right tree order. Used by the engine to decide which tables
// an ObservableQuery must subscribe to.
func SourceTables(p *LogicalPlan) []string {
	var out []string
	var walk func(*LogicalPlan)
	walk = func(n *LogicalPlan) {
		if n == nil {
			return
		}
		switch n.Kind {
		case PlanScan, PlanIndexScan, PlanIndexGet, PlanIndexInGet, PlanGinIndexScan, PlanGinIndexScanMulti:
			out = append(out, n.Table)
		case PlanJoin, PlanCrossProduct:
			walk(n.Left)
			walk(n.Right)
		case PlanUnion:
			for _, in := range n.Inputs {
				walk(in)
			}
		default:
			walk(n.Input)
		}
	}
	walk(p)
	return out
}
