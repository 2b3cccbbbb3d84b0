package exec

import (
	"sort"

	"github.com/kasuganosora/cynos/index"
	"github.com/kasuganosora/cynos/planner"
	"github.com/kasuganosora/cynos/value"
)

// PhysicalPlanRunner interprets a planner.LogicalPlan against a
// DataSource, producing a Relation or an ExecutionError.
type PhysicalPlanRunner struct {
	Source DataSource
}

func NewRunner(source DataSource) *PhysicalPlanRunner {
	return &PhysicalPlanRunner{Source: source}
}

func (r *PhysicalPlanRunner) Run(p *planner.LogicalPlan) (*Relation, error) {
	if p == nil {
		return emptyRelation(), nil
	}
	switch p.Kind {
	case planner.PlanEmpty:
		return emptyRelation(), nil
	case planner.PlanScan:
		return r.runScan(p)
	case planner.PlanIndexScan:
		return r.runIndexScan(p)
	case planner.PlanIndexGet:
		return r.runIndexGet(p)
	case planner.PlanIndexInGet:
		return r.runIndexInGet(p)
	case planner.PlanGinIndexScan:
		return r.runGinScan(p, []value.Value{p.GinTerm})
	case planner.PlanGinIndexScanMulti:
		return r.runGinScan(p, p.GinTerms)
	case planner.PlanFilter:
		return r.runFilter(p)
	case planner.PlanProject:
		return r.runProject(p)
	case planner.PlanJoin:
		return r.runJoin(p)
	case planner.PlanCrossProduct:
		return r.runCrossProduct(p)
	case planner.PlanAggregate:
		return r.runAggregate(p)
	case planner.PlanSort:
		return r.runSort(p)
	case planner.PlanLimit:
		return r.runLimit(p)
	case planner.PlanUnion:
		return r.runUnion(p)
	}
	return nil, execErr("Run", "unknown plan kind")
}

func (r *PhysicalPlanRunner) runScan(p *planner.LogicalPlan) (*Relation, error) {
	rs, err := r.Source.GetTable(p.Table)
	if err != nil {
		return nil, err
	}
	return single(p.Table, tableWidth(rs.Table()), rs.Scan()), nil
}

func (r *PhysicalPlanRunner) runIndexScan(p *planner.LogicalPlan) (*Relation, error) {
	rs, err := r.Source.GetTable(p.Table)
	if err != nil {
		return nil, err
	}
	ci, ok := rs.Index(p.IndexName)
	if !ok {
		return nil, execErr("IndexScan", "no such index: "+p.IndexName)
	}
	ri, ok := ci.Idx.(index.RangeIndex)
	if !ok {
		return nil, execErr("IndexScan", "index does not support range scans: "+p.IndexName)
	}
	ids := ri.GetRange(p.Range, false, 0, 0)
	return single(p.Table, tableWidth(rs.Table()), rs.GetMany(ids)), nil
}

func (r *PhysicalPlanRunner) runIndexGet(p *planner.LogicalPlan) (*Relation, error) {
	rs, err := r.Source.GetTable(p.Table)
	if err != nil {
		return nil, err
	}
	ci, ok := rs.Index(p.IndexName)
	if !ok {
		return nil, execErr("IndexGet", "no such index: "+p.IndexName)
	}
	ids := ci.Idx.Get(p.Key)
	return single(p.Table, tableWidth(rs.Table()), rs.GetMany(ids)), nil
}

func (r *PhysicalPlanRunner) runIndexInGet(p *planner.LogicalPlan) (*Relation, error) {
	rs, err := r.Source.GetTable(p.Table)
	if err != nil {
		return nil, err
	}
	ci, ok := rs.Index(p.IndexName)
	if !ok {
		return nil, execErr("IndexInGet", "no such index: "+p.IndexName)
	}
	var ids []value.RowId
	for _, k := range p.Keys {
		ids = append(ids, ci.Idx.Get(k)...)
	}
	return single(p.Table, tableWidth(rs.Table()), rs.GetMany(ids)), nil
}

func (r *PhysicalPlanRunner) runGinScan(p *planner.LogicalPlan, terms []value.Value) (*Relation, error) {
	rs, err := r.Source.GetTable(p.Table)
	if err != nil {
		return nil, err
	}
	ci, ok := rs.Index(p.IndexName)
	if !ok {
		return nil, execErr("GinIndexScan", "no such index: "+p.IndexName)
	}
	seen := make(map[value.RowId]bool)
	var ids []value.RowId
	for _, t := range terms {
		for _, id := range ci.Idx.Get(t) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return single(p.Table, tableWidth(rs.Table()), rs.GetMany(ids)), nil
}

// runFilter retains entries where the predicate evaluates to
// Boolean(true); Null counts as false.
func (r *PhysicalPlanRunner) runFilter(p *planner.LogicalPlan) (*Relation, error) {
	in, err := r.Run(p.Input)
	if err != nil {
		return nil, err
	}
	var kept []RelationEntry
	for _, e := range in.Entries {
		v := Eval(p.Pred, e.Row)
		if !v.IsNull() && v.AsBool() {
			kept = append(kept, e)
		}
	}
	return &Relation{Entries: kept, Tables: in.Tables, ColumnCount: in.ColumnCount}, nil
}

// runProject produces a dummy row (no RowId) per entry with the
// selected columns; the relation's table list collapses to a single
// combined pseudo-table.
func (r *PhysicalPlanRunner) runProject(p *planner.LogicalPlan) (*Relation, error) {
	in, err := r.Run(p.Input)
	if err != nil {
		return nil, err
	}
	out := make([]RelationEntry, len(in.Entries))
	for i, e := range in.Entries {
		vals := make([]value.Value, len(p.Exprs))
		for j, expr := range p.Exprs {
			vals[j] = Eval(expr, e.Row)
		}
		row := value.NewRow(value.DummyRowID, vals)
		row.Version = e.Row.Version
		out[i] = RelationEntry{Row: row}
	}
	return &Relation{Entries: out, Tables: []string{"<project>"}, ColumnCount: []int{len(p.Exprs)}}, nil
}

func (r *PhysicalPlanRunner) runCrossProduct(p *planner.LogicalPlan) (*Relation, error) {
	left, err := r.Run(p.Left)
	if err != nil {
		return nil, err
	}
	right, err := r.Run(p.Right)
	if err != nil {
		return nil, err
	}
	var out []RelationEntry
	for _, l := range left.Entries {
		for _, rr := range right.Entries {
			out = append(out, RelationEntry{Row: combine(l.Row, rr.Row)})
		}
	}
	return &Relation{
		Entries:     out,
		Tables:      append(append([]string{}, left.Tables...), right.Tables...),
		ColumnCount: append(append([]int{}, left.ColumnCount...), right.ColumnCount...),
	}, nil
}

func combine(l, rr *value.Row) *value.Row {
	vals := make([]value.Value, 0, len(l.Values)+len(rr.Values))
	vals = append(vals, l.Values...)
	vals = append(vals, rr.Values...)
	row := value.NewRow(value.DummyRowID, vals)
	row.Version = l.Version + rr.Version
	return row
}

// runSort stable-sorts entries by an ordered list of (column, Asc/Desc);
// Nulls sort less than any non-null regardless of direction.
func (r *PhysicalPlanRunner) runSort(p *planner.LogicalPlan) (*Relation, error) {
	in, err := r.Run(p.Input)
	if err != nil {
		return nil, err
	}
	entries := append([]RelationEntry{}, in.Entries...)
	sort.SliceStable(entries, func(i, j int) bool {
		for _, key := range p.OrderBy {
			a := entries[i].Row.Get(key.Column)
			b := entries[j].Row.Get(key.Column)
			c := compareNullsLow(a, b)
			if c == 0 {
				continue
			}
			if key.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return &Relation{Entries: entries, Tables: in.Tables, ColumnCount: in.ColumnCount}, nil
}

func compareNullsLow(a, b value.Value) int {
	if a.IsNull() && b.IsNull() {
		return 0
	}
	if a.IsNull() {
		return -1
	}
	if b.IsNull() {
		return 1
	}
	return value.Compare(a, b)
}

// runLimit drops the first Offset entries then truncates to LimitN.
func (r *PhysicalPlanRunner) runLimit(p *planner.LogicalPlan) (*Relation, error) {
	in, err := r.Run(p.Input)
	if err != nil {
		return nil, err
	}
	entries := in.Entries
	if p.Offset > 0 {
		if p.Offset >= len(entries) {
			entries = nil
		} else {
			entries = entries[p.Offset:]
		}
	}
	if p.LimitN >= 0 && p.LimitN < len(entries) {
		entries = entries[:p.LimitN]
	}
	return &Relation{Entries: entries, Tables: in.Tables, ColumnCount: in.ColumnCount}, nil
}

func (r *PhysicalPlanRunner) runUnion(p *planner.LogicalPlan) (*Relation, error) {
	var out *Relation
	seen := make(map[value.RowId]bool)
	for i, input := range p.Inputs {
		rel, err := r.Run(input)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = &Relation{Tables: rel.Tables, ColumnCount: rel.ColumnCount}
		}
		for _, e := range rel.Entries {
			if !p.All {
				if e.Row.ID != value.DummyRowID && seen[e.Row.ID] {
					continue
				}
				seen[e.Row.ID] = true
			}
			out.Entries = append(out.Entries, e)
		}
		_ = i
	}
	if out == nil {
		return emptyRelation(), nil
	}
	return out, nil
}
