package dataflow

import (
	"fmt"
	"strings"

	"github.com/kasuganosora/cynos/diff"
	"github.com/kasuganosora/cynos/value"
)

// groupKeyString builds a discriminating string key from a composite
// group-by tuple. Kind is encoded alongside the value so that, e.g., an
// Int64 0 and a Float64 0.0 never collide into the same group.
func groupKeyString(vals []value.Value) string {
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

func (v *MaterializedView) aggregateState(id NodeId) *aggState {
	st, ok := v.aggs[id]
	if !ok {
		st = &aggState{groups: make(map[string]*groupState)}
		v.aggs[id] = st
	}
	return st
}

func groupByValues(row *value.Row, cols []int) []value.Value {
	vals := make([]value.Value, len(cols))
	for i, c := range cols {
		vals[i] = row.Get(c)
	}
	return vals
}

// pushAggregate updates per-group running state from an incremental
// delta batch and emits delete-old+insert-new deltas for every group row
// whose output changed. A group is created on first insert and removed
// when its count returns to zero.
func (v *MaterializedView) pushAggregate(id NodeId, n *node, batch diff.Batch[*value.Row]) diff.Batch[*value.Row] {
	st := v.aggregateState(id)
	var out diff.Batch[*value.Row]

	for _, d := range batch {
		groupVals := groupByValues(d.Data, n.groupBy)
		key := groupKeyString(groupVals)
		gs, ok := st.groups[key]
		if !ok {
			gs = &groupState{
				sum:            make(map[int]float64),
				min:            make(map[int]value.Value),
				max:            make(map[int]value.Value),
				needsRecompute: make(map[int]bool),
				groupValues:    groupVals,
			}
			st.groups[key] = gs
			st.order = append(st.order, key)
		}

		before := gs.count > 0
		oldRow := v.aggRowIfAny(gs, n, before)

		applyAggDelta(gs, n, d)

		if gs.count <= 0 {
			if oldRow != nil {
				out = append(out, diff.Delete(oldRow))
			}
			delete(st.groups, key)
			continue
		}
		if oldRow != nil {
			out = append(out, diff.Delete(oldRow))
		}
		out = append(out, diff.Insert(v.aggRow(gs, n)))
	}
	return diff.Compact(out)
}

func (v *MaterializedView) aggRowIfAny(gs *groupState, n *node, existed bool) *value.Row {
	if !existed {
		return nil
	}
	return v.aggRow(gs, n)
}

func applyAggDelta(gs *groupState, n *node, d diff.Delta[*value.Row]) {
	gs.count += int64(d.Diff)
	if d.Diff > 0 {
		gs.members = append(gs.members, d.Data)
	} else {
		for i, r := range gs.members {
			if r.ID == d.Data.ID {
				gs.members = append(gs.members[:i], gs.members[i+1:]...)
				break
			}
		}
	}

	for _, spec := range n.aggs {
		switch spec.Func {
		case AggSum, AggAvg:
			v := d.Data.Get(spec.Col)
			if !v.IsNull() {
				gs.sum[spec.Col] += numeric(v) * float64(d.Diff)
			}
		case AggMin:
			cv := d.Data.Get(spec.Col)
			if cv.IsNull() {
				continue
			}
			if d.Diff > 0 {
				cur, ok := gs.min[spec.Col]
				if !ok || value.Compare(cv, cur) < 0 {
					gs.min[spec.Col] = cv
				}
			} else {
				cur, ok := gs.min[spec.Col]
				if ok && value.Equal(cv, cur) {
					gs.needsRecompute[spec.Col] = true
				}
			}
		case AggMax:
			cv := d.Data.Get(spec.Col)
			if cv.IsNull() {
				continue
			}
			if d.Diff > 0 {
				cur, ok := gs.max[spec.Col]
				if !ok || value.Compare(cv, cur) > 0 {
					gs.max[spec.Col] = cv
				}
			} else {
				cur, ok := gs.max[spec.Col]
				if ok && value.Equal(cv, cur) {
					gs.needsRecompute[spec.Col] = true
				}
			}
		}
	}
}

func numeric(v value.Value) float64 {
	switch v.DataType() {
	case value.TypeInt32:
		return float64(v.AsInt32())
	case value.TypeInt64, value.TypeDateTime:
		return float64(v.AsInt64())
	case value.TypeFloat64:
		return v.AsFloat64()
	default:
		return 0
	}
}

func (v *MaterializedView) aggRow(gs *groupState, n *node) *value.Row {
	vals := make([]value.Value, 0, len(gs.groupValues)+len(n.aggs))
	vals = append(vals, gs.groupValues...)
	for _, spec := range n.aggs {
		switch spec.Func {
		case AggCount:
			vals = append(vals, value.Int64(gs.count))
		case AggSum:
			vals = append(vals, value.Float64(gs.sum[spec.Col]))
		case AggAvg:
			if gs.count == 0 {
				vals = append(vals, value.Null())
			} else {
				vals = append(vals, value.Float64(gs.sum[spec.Col]/float64(gs.count)))
			}
		case AggMin:
			if gs.needsRecompute[spec.Col] {
				vals = append(vals, value.Null())
			} else if m, ok := gs.min[spec.Col]; ok {
				vals = append(vals, m)
			} else {
				vals = append(vals, value.Null())
			}
		case AggMax:
			if gs.needsRecompute[spec.Col] {
				vals = append(vals, value.Null())
			} else if m, ok := gs.max[spec.Col]; ok {
				vals = append(vals, m)
			} else {
				vals = append(vals, value.Null())
			}
		}
	}
	r := value.NewRow(value.DummyRowID, vals)
	return r
}

// recomputeStaleExtremes re-seeds any Min/Max aggregate flagged
// needs_recompute by rescanning that group's retained member rows,
// rather than eagerly on every delta that could affect the extreme, and
// then folds a correcting delete-old/insert-new pair into v.result so
// the materialized output reflects the recomputed value immediately
// rather than the Null pushAggregate committed when the extreme went
// stale.
func (v *MaterializedView) recomputeStaleExtremes() {
	var corrections diff.Batch[*value.Row]
	for id, st := range v.aggs {
		n := v.graph.at(id)
		for _, gs := range st.groups {
			if !groupHasStaleExtreme(gs, n) {
				continue
			}
			oldRow := v.aggRow(gs, n)

			for _, spec := range n.aggs {
				if spec.Func != AggMin && spec.Func != AggMax {
					continue
				}
				if !gs.needsRecompute[spec.Col] {
					continue
				}
				var best value.Value
				found := false
				for _, m := range gs.members {
					cv := m.Get(spec.Col)
					if cv.IsNull() {
						continue
					}
					if !found {
						best, found = cv, true
						continue
					}
					c := value.Compare(cv, best)
					if (spec.Func == AggMin && c < 0) || (spec.Func == AggMax && c > 0) {
						best = cv
					}
				}
				if spec.Func == AggMin {
					if found {
						gs.min[spec.Col] = best
					} else {
						delete(gs.min, spec.Col)
					}
				} else {
					if found {
						gs.max[spec.Col] = best
					} else {
						delete(gs.max, spec.Col)
					}
				}
				gs.needsRecompute[spec.Col] = false
			}

			newRow := v.aggRow(gs, n)
			corrections = append(corrections, diff.Delete(oldRow), diff.Insert(newRow))
		}
	}
	if len(corrections) > 0 {
		v.result.StageBatch(corrections)
		v.result.Commit()
	}
}

func groupHasStaleExtreme(gs *groupState, n *node) bool {
	for _, spec := range n.aggs {
		if (spec.Func == AggMin || spec.Func == AggMax) && gs.needsRecompute[spec.Col] {
			return true
		}
	}
	return false
}
