package exec

import (
	"fmt"
	"strings"

	"github.com/kasuganosora/cynos/planner"
	"github.com/kasuganosora/cynos/value"
)

// runAggregate groups entries by a composite key built from GroupBy
// exprs (Null is a distinct group key value, not excluded), updates
// per-group running state one row at a time, and emits one row per
// group: the group-by columns followed by the aggregate results in
// declared order.
func (r *PhysicalPlanRunner) runAggregate(p *planner.LogicalPlan) (*Relation, error) {
	in, err := r.Run(p.Input)
	if err != nil {
		return nil, err
	}

	type groupAcc struct {
		groupVals []value.Value
		count     int64
		sum       []float64
		min, max  []value.Value
		haveMM    []bool
	}

	groups := make(map[string]*groupAcc)
	var order []string

	for _, e := range in.Entries {
		groupVals := make([]value.Value, len(p.GroupBy))
		for i, ge := range p.GroupBy {
			groupVals[i] = Eval(ge, e.Row)
		}
		key := aggGroupKey(groupVals)
		g, ok := groups[key]
		if !ok {
			g = &groupAcc{
				groupVals: groupVals,
				sum:       make([]float64, len(p.Aggs)),
				min:       make([]value.Value, len(p.Aggs)),
				max:       make([]value.Value, len(p.Aggs)),
				haveMM:    make([]bool, len(p.Aggs)),
			}
			groups[key] = g
			order = append(order, key)
		}
		g.count++
		for i, agg := range p.Aggs {
			if agg.Kind != planner.ExprAggFunc || agg.Agg == planner.AggCount || agg.Arg == nil {
				continue
			}
			v := Eval(agg.Arg, e.Row)
			if v.IsNull() {
				continue
			}
			switch agg.Agg {
			case planner.AggSum, planner.AggAvg:
				g.sum[i] += numericOf(v)
			case planner.AggMin:
				if !g.haveMM[i] || value.Compare(v, g.min[i]) < 0 {
					g.min[i], g.haveMM[i] = v, true
				}
			case planner.AggMax:
				if !g.haveMM[i] || value.Compare(v, g.max[i]) > 0 {
					g.max[i], g.haveMM[i] = v, true
				}
			}
		}
	}

	entries := make([]RelationEntry, 0, len(order))
	for _, key := range order {
		g := groups[key]
		vals := make([]value.Value, 0, len(g.groupVals)+len(p.Aggs))
		vals = append(vals, g.groupVals...)
		for i, agg := range p.Aggs {
			if agg.Kind != planner.ExprAggFunc {
				vals = append(vals, value.Null())
				continue
			}
			switch agg.Agg {
			case planner.AggCount:
				vals = append(vals, value.Int64(g.count))
			case planner.AggSum:
				vals = append(vals, value.Float64(g.sum[i]))
			case planner.AggAvg:
				if g.count == 0 {
					vals = append(vals, value.Null())
				} else {
					vals = append(vals, value.Float64(g.sum[i]/float64(g.count)))
				}
			case planner.AggMin:
				if g.haveMM[i] {
					vals = append(vals, g.min[i])
				} else {
					vals = append(vals, value.Null())
				}
			case planner.AggMax:
				if g.haveMM[i] {
					vals = append(vals, g.max[i])
				} else {
					vals = append(vals, value.Null())
				}
			}
		}
		entries = append(entries, RelationEntry{Row: value.NewRow(value.DummyRowID, vals)})
	}

	return &Relation{Entries: entries, Tables: []string{"<aggregate>"}, ColumnCount: []int{len(p.GroupBy) + len(p.Aggs)}}, nil
}

// aggGroupKey builds a discriminating string key from a composite
// group-by tuple, treating Null as a distinct group-key value rather
// than excluding it.
func aggGroupKey(vals []value.Value) string {
	var sb strings.Builder
	for _, v := range vals {
		sb.WriteByte(byte(v.Kind()))
		sb.WriteByte(0)
		if v.IsNull() {
			sb.WriteByte(1)
			continue
		}
		switch v.DataType() {
		case value.TypeInt32:
			fmt.Fprintf(&sb, "%d", v.AsInt32())
		case value.TypeInt64, value.TypeDateTime:
			fmt.Fprintf(&sb, "%d", v.AsInt64())
		case value.TypeFloat64:
			fmt.Fprintf(&sb, "%g", v.AsFloat64())
		case value.TypeBoolean:
			fmt.Fprintf(&sb, "%t", v.AsBool())
		case value.TypeString:
			sb.WriteString(v.AsString())
		default:
			sb.Write(v.AsBytes())
		}
		sb.WriteByte(1)
	}
	return sb.String()
}
