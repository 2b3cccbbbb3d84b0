package planner

import (
	"github.com/kasuganosora/cynos/index"
	"github.com/kasuganosora/cynos/schema"
	"github.com/kasuganosora/cynos/value"
)

// Catalog resolves table schemas for the index-selection pass. Engine
// implements this over its live schema registry.
type Catalog interface {
	TableSchema(name string) (schema.Table, bool)
}

// Optimize runs the six optimization passes against p, in their fixed
// order, and returns the rewritten plan.
func Optimize(p *LogicalPlan, cat Catalog) *LogicalPlan {
	p = flattenCrossProducts(p)
	p = implicitJoin(p, cat)
	p = splitAndFilters(p)
	p = selectIndexes(p, cat)
	p = pushdownLimit(p)
	p = pruneProjections(p)
	return p
}

// flattenCrossProducts turns a left-leaning or right-leaning chain of
// CrossProduct nodes into a balanced binary tree, recursively.
func flattenCrossProducts(p *LogicalPlan) *LogicalPlan {
	if p == nil {
		return nil
	}
	switch p.Kind {
	case PlanCrossProduct:
		leaves := collectCrossLeaves(p)
		for i := range leaves {
			leaves[i] = flattenCrossProducts(leaves[i])
		}
		return balance(leaves)
	case PlanJoin:
		p.Left = flattenCrossProducts(p.Left)
		p.Right = flattenCrossProducts(p.Right)
		return p
	case PlanUnion:
		for i := range p.Inputs {
			p.Inputs[i] = flattenCrossProducts(p.Inputs[i])
		}
		return p
	default:
		if p.Input != nil {
			p.Input = flattenCrossProducts(p.Input)
		}
		return p
	}
}

func collectCrossLeaves(p *LogicalPlan) []*LogicalPlan {
	if p.Kind != PlanCrossProduct {
		return []*LogicalPlan{p}
	}
	return append(collectCrossLeaves(p.Left), collectCrossLeaves(p.Right)...)
}

func balance(leaves []*LogicalPlan) *LogicalPlan {
	if len(leaves) == 1 {
		return leaves[0]
	}
	mid := len(leaves) / 2
	return NewCrossProduct(balance(leaves[:mid]), balance(leaves[mid:]))
}

// implicitJoin looks upward from a CrossProduct for a Filter whose
// predicate contains an equality between a left-side and right-side
// column, and converts the pair into an Inner Join with that equality as
// condition, leaving residual conjuncts as a Filter above the join.
func implicitJoin(p *LogicalPlan, cat Catalog) *LogicalPlan {
	if p == nil {
		return nil
	}
	switch p.Kind {
	case PlanFilter:
		p.Input = implicitJoin(p.Input, cat)
		if p.Input.Kind != PlanCrossProduct {
			return p
		}
		leftWidth := PlanWidth(p.Input.Left, cat)
		conjuncts := splitAnd(p.Pred)
		var joinConds []*Expr
		var residual []*Expr
		for _, c := range conjuncts {
			if _, _, ok := columnEqCross(c, leftWidth); ok {
				joinConds = append(joinConds, c)
			} else {
				residual = append(residual, c)
			}
		}
		if len(joinConds) == 0 {
			return p
		}
		cond := joinAnd(joinConds)
		join := NewJoin(p.Input.Left, p.Input.Right, cond, JoinInner)
		if len(residual) == 0 {
			return join
		}
		return NewFilter(join, joinAnd(residual))
	case PlanJoin, PlanCrossProduct:
		p.Left = implicitJoin(p.Left, cat)
		p.Right = implicitJoin(p.Right, cat)
		return p
	case PlanUnion:
		for i := range p.Inputs {
			p.Inputs[i] = implicitJoin(p.Inputs[i], cat)
		}
		return p
	default:
		if p.Input != nil {
			p.Input = implicitJoin(p.Input, cat)
		}
		return p
	}
}

// splitAndFilters replaces Filter(a AND b AND c) with a chain of three
// single-conjunct Filters, recursively through the whole tree.
func splitAndFilters(p *LogicalPlan) *LogicalPlan {
	if p == nil {
		return nil
	}
	switch p.Kind {
	case PlanFilter:
		p.Input = splitAndFilters(p.Input)
		conjuncts := splitAnd(p.Pred)
		if len(conjuncts) <= 1 {
			return p
		}
		cur := p.Input
		for _, c := range conjuncts {
			cur = NewFilter(cur, c)
		}
		return cur
	case PlanJoin, PlanCrossProduct:
		p.Left = splitAndFilters(p.Left)
		p.Right = splitAndFilters(p.Right)
		return p
	case PlanUnion:
		for i := range p.Inputs {
			p.Inputs[i] = splitAndFilters(p.Inputs[i])
		}
		return p
	default:
		if p.Input != nil {
			p.Input = splitAndFilters(p.Input)
		}
		return p
	}
}

// selectIndexes rewrites Filter(Scan(t)) into an index-backed access
// path wherever a matching index exists, removing the predicate it
// consumed. A unique equality prefers IndexGet; a range prefers
// IndexScan; a JSONB containment predicate prefers GinIndexScan.
func selectIndexes(p *LogicalPlan, cat Catalog) *LogicalPlan {
	if p == nil {
		return nil
	}
	switch p.Kind {
	case PlanFilter:
		p.Input = selectIndexes(p.Input, cat)
		if p.Input.Kind != PlanScan {
			return p
		}
		t, ok := cat.TableSchema(p.Input.Table)
		if !ok {
			return p
		}
		rewritten, consumed := applyIndex(p.Input.Table, t, p.Pred)
		if rewritten == nil {
			return p
		}
		if consumed {
			return rewritten
		}
		return NewFilter(rewritten, p.Pred)
	case PlanJoin, PlanCrossProduct:
		p.Left = selectIndexes(p.Left, cat)
		p.Right = selectIndexes(p.Right, cat)
		return p
	case PlanUnion:
		for i := range p.Inputs {
			p.Inputs[i] = selectIndexes(p.Inputs[i], cat)
		}
		return p
	default:
		if p.Input != nil {
			p.Input = selectIndexes(p.Input, cat)
		}
		return p
	}
}

// applyIndex tries to rewrite a single-conjunct predicate over table t
// into an index access path, returning the rewritten plan and whether
// the predicate was fully consumed (no residual Filter needed).
func applyIndex(table string, t schema.Table, pred *Expr) (*LogicalPlan, bool) {
	switch pred.Kind {
	case ExprBinaryOp:
		switch pred.Op {
		case OpEq:
			if col, lit, ok := columnLiteral(pred); ok {
				if idx, ok := findIndex(t, col, schema.IndexHash); ok && idx.Unique {
					return &LogicalPlan{Kind: PlanIndexGet, Table: table, IndexName: idx.Name, Key: lit}, true
				}
				if idx, ok := findIndex(t, col, schema.IndexBTree); ok && idx.Unique {
					return &LogicalPlan{Kind: PlanIndexGet, Table: table, IndexName: idx.Name, Key: lit}, true
				}
				if idx, ok := findIndex(t, col, schema.IndexBTree); ok {
					return &LogicalPlan{Kind: PlanIndexScan, Table: table, IndexName: idx.Name, Range: index.Only(lit)}, true
				}
			}
		case OpLt, OpLe, OpGt, OpGe:
			if col, lit, ok := columnLiteral(pred); ok {
				if idx, ok := findIndex(t, col, schema.IndexBTree); ok {
					return &LogicalPlan{Kind: PlanIndexScan, Table: table, IndexName: idx.Name, Range: rangeFor(pred.Op, lit)}, true
				}
			}
		case OpJsonContains:
			if col, lit, ok := columnLiteral(pred); ok {
				if idx, ok := findIndex(t, col, schema.IndexGin); ok {
					return &LogicalPlan{Kind: PlanGinIndexScan, Table: table, IndexName: idx.Name, GinTerm: lit, Range: index.AllRange()}, false
				}
			}
		}
	}
	return nil, false
}

func columnLiteral(pred *Expr) (string, value.Value, bool) {
	if pred.Left.Kind == ExprColumn && pred.Right.Kind == ExprLiteral {
		return pred.Left.Name, pred.Right.Literal, true
	}
	if pred.Right.Kind == ExprColumn && pred.Left.Kind == ExprLiteral {
		return pred.Right.Name, pred.Left.Literal, true
	}
	return "", value.Value{}, false
}

func findIndex(t schema.Table, col string, kind schema.IndexType) (schema.IndexDef, bool) {
	for _, idx := range t.Indexes {
		if idx.IndexType != kind || len(idx.Columns) != 1 {
			continue
		}
		if idx.Columns[0].Name == col {
			return idx, true
		}
	}
	return schema.IndexDef{}, false
}

func rangeFor(op BinOp, v value.Value) index.Range {
	switch op {
	case OpLt:
		return index.UpperBound(v, false)
	case OpLe:
		return index.UpperBound(v, true)
	case OpGt:
		return index.LowerBound(v, false)
	case OpGe:
		return index.LowerBound(v, true)
	}
	return index.AllRange()
}

// pushdownLimit pushes a Limit below a Project, and below a Sort only
// when that Sort is guaranteed-ordered by an underlying index scan.
// Never pushes below Filter or Aggregate.
func pushdownLimit(p *LogicalPlan) *LogicalPlan {
	if p == nil {
		return nil
	}
	switch p.Kind {
	case PlanLimit:
		p.Input = pushdownLimit(p.Input)
		switch p.Input.Kind {
		case PlanProject:
			inner := p.Input.Input
			newLimit := NewLimit(inner, p.LimitN, p.Offset)
			p.Input.Input = newLimit
			return p.Input
		case PlanSort:
			if isOrderedScan(p.Input.Input) {
				inner := p.Input.Input
				newLimit := NewLimit(inner, p.LimitN, p.Offset)
				p.Input.Input = newLimit
				return p.Input
			}
		}
		return p
	case PlanJoin, PlanCrossProduct:
		p.Left = pushdownLimit(p.Left)
		p.Right = pushdownLimit(p.Right)
		return p
	case PlanUnion:
		for i := range p.Inputs {
			p.Inputs[i] = pushdownLimit(p.Inputs[i])
		}
		return p
	default:
		if p.Input != nil {
			p.Input = pushdownLimit(p.Input)
		}
		return p
	}
}

func isOrderedScan(p *LogicalPlan) bool {
	return p != nil && (p.Kind == PlanIndexScan || p.Kind == PlanIndexGet)
}

// pruneProjections calls prune with a nil used set, which keeps every
// column, so the pass leaves the plan unchanged; prune trims a Project
// only when it is handed an explicit set (see planner/prune.go).
func pruneProjections(p *LogicalPlan) *LogicalPlan {
	return prune(p, nil)
}

// OptimizeForDataflow runs the subset of Optimize's passes that a
// dataflow-graph compilation (a reactive Observe) can actually express.
// It skips selectIndexes: index access paths are a physical execution
// concern for one-shot Select, but a materialized view always seeds
// from and reacts to the full underlying table, so rewriting a Filter
// into an IndexGet/IndexScan here would silently drop the predicate the
// incremental graph needs to keep evaluating on every update. It also
// skips pushdownLimit, since dataflow has no Limit node: Observe returns
// the full maintained multiset and leaves pagination to the caller.
func OptimizeForDataflow(p *LogicalPlan, cat Catalog) *LogicalPlan {
	p = flattenCrossProducts(p)
	p = implicitJoin(p, cat)
	p = splitAndFilters(p)
	p = pruneProjections(p)
	return p
}
