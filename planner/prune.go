package planner

// PlanWidth returns the number of output columns a plan node produces,
// used by the implicit-join pass to split a cross-product predicate's
// column positions into left-side/right-side halves.
func PlanWidth(p *LogicalPlan, cat Catalog) int {
	if p == nil {
		return 0
	}
	switch p.Kind {
	case PlanScan, PlanIndexScan, PlanIndexGet, PlanIndexInGet, PlanGinIndexScan, PlanGinIndexScanMulti:
		if t, ok := cat.TableSchema(p.Table); ok {
			return len(t.Columns)
		}
		return 0
	case PlanJoin, PlanCrossProduct:
		return PlanWidth(p.Left, cat) + PlanWidth(p.Right, cat)
	case PlanProject:
		return len(p.Exprs)
	case PlanAggregate:
		return len(p.GroupBy) + len(p.Aggs)
	case PlanUnion:
		if len(p.Inputs) == 0 {
			return 0
		}
		return PlanWidth(p.Inputs[0], cat)
	case PlanEmpty:
		return 0
	default:
		return PlanWidth(p.Input, cat)
	}
}

// prune drops the Project columns whose positions are not in used. used
// is the set of column positions (in this node's output) the caller
// needs; nil means "the final output, keep everything this node already
// selects."
//
// This pass is conservative: it trims only the Project node it is called
// on, and only when used is non-nil; every recursive call passes nil, so
// nested Projects, Filters and Joins are left whole. It does not derive
// used from the operators above, and a trim that would keep no column
// leaves the column list unchanged.
func prune(p *LogicalPlan, used map[int]bool) *LogicalPlan {
	if p == nil {
		return nil
	}
	switch p.Kind {
	case PlanProject:
		p.Input = prune(p.Input, nil)
		if used == nil {
			return p
		}
		var kept []*Expr
		for i, e := range p.Exprs {
			if used[i] {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			return p
		}
		p.Exprs = kept
		return p
	case PlanJoin, PlanCrossProduct:
		p.Left = prune(p.Left, nil)
		p.Right = prune(p.Right, nil)
		return p
	case PlanUnion:
		for i := range p.Inputs {
			p.Inputs[i] = prune(p.Inputs[i], nil)
		}
		return p
	default:
		if p.Input != nil {
			p.Input = prune(p.Input, nil)
		}
		return p
	}
}
