package exec

import (
	"sort"

	"github.com/kasuganosora/cynos/planner"
	"github.com/kasuganosora/cynos/value"
)

// runJoin dispatches to one of the three join algorithms available.
// A pure-equality condition prefers HashJoin; any other condition
// (or a condition this planner couldn't decompose into a single column
// equality) falls back to NestedLoopJoin with Eval as the comparator.
func (r *PhysicalPlanRunner) runJoin(p *planner.LogicalPlan) (*Relation, error) {
	left, err := r.Run(p.Left)
	if err != nil {
		return nil, err
	}
	right, err := r.Run(p.Right)
	if err != nil {
		return nil, err
	}
	leftWidth := left.Width()
	if lp, rp, ok := equalityKey(p.JoinCond, leftWidth); ok {
		// Both are equijoin algorithms; prefer HashJoin in the common
		// case and SortMergeJoin once either side is large enough that
		// an O(n log n) merge beats building and probing a hash map
		// that large.
		if len(left.Entries) > sortMergeThreshold || len(right.Entries) > sortMergeThreshold {
			return sortMergeJoin(left, right, lp, rp, p.JoinType), nil
		}
		return hashJoin(left, right, lp, rp, p.JoinType), nil
	}
	return nestedLoopJoin(left, right, p.JoinCond), nil
}

const sortMergeThreshold = 10000

// equalityKey recognizes a single-column equality condition of the form
// col(left) = col(right) and returns the two local column positions.
func equalityKey(cond *planner.Expr, leftWidth int) (leftPos, rightPos int, ok bool) {
	if cond == nil || cond.Kind != planner.ExprBinaryOp || cond.Op != planner.OpEq {
		return 0, 0, false
	}
	if cond.Left.Kind != planner.ExprColumn || cond.Right.Kind != planner.ExprColumn {
		return 0, 0, false
	}
	lp, rp := cond.Left.PositionHint, cond.Right.PositionHint
	if lp < leftWidth && rp >= leftWidth {
		return lp, rp - leftWidth, true
	}
	if rp < leftWidth && lp >= leftWidth {
		return rp, lp - leftWidth, true
	}
	return 0, 0, false
}

func joinedRelation(left, right *Relation) ([]string, []int) {
	tables := append(append([]string{}, left.Tables...), right.Tables...)
	counts := append(append([]int{}, left.ColumnCount...), right.ColumnCount...)
	return tables, counts
}

// hashJoin builds a hash map on the smaller input keyed by the
// extracted join column, then probes from the other side. Null keys
// never match, by SQL's universal null-inequality rule. Outer-join
// misses are padded with Nulls of the opposite side's width.
func hashJoin(left, right *Relation, leftPos, rightPos int, jt planner.JoinKind) *Relation {
	buildOnRight := len(right.Entries) <= len(left.Entries)

	var build, probe *Relation
	var buildPos, probePos int
	if buildOnRight {
		build, probe = right, left
		buildPos, probePos = rightPos, leftPos
	} else {
		build, probe = left, right
		buildPos, probePos = leftPos, rightPos
	}

	index := make(map[rowKey][]*value.Row)
	for _, e := range build.Entries {
		k, ok := rowKeyOf(e.Row.Get(buildPos))
		if !ok {
			continue
		}
		index[k] = append(index[k], e.Row)
	}

	leftOuter := (buildOnRight && jt == planner.JoinLeftOuter) || (!buildOnRight && jt == planner.JoinRightOuter)
	rightOuter := (buildOnRight && jt == planner.JoinRightOuter) || (!buildOnRight && jt == planner.JoinLeftOuter)
	full := jt == planner.JoinFullOuter
	matchedBuild := make(map[*value.Row]bool)

	var out []RelationEntry
	for _, pe := range probe.Entries {
		k, ok := rowKeyOf(pe.Row.Get(probePos))
		var matches []*value.Row
		if ok {
			matches = index[k]
		}
		if len(matches) == 0 {
			if leftOuter || full {
				out = append(out, RelationEntry{Row: padCombine(probe == build, buildOnRight, pe.Row, build)})
			}
			continue
		}
		for _, b := range matches {
			matchedBuild[b] = true
			if buildOnRight {
				out = append(out, RelationEntry{Row: combine(pe.Row, b)})
			} else {
				out = append(out, RelationEntry{Row: combine(b, pe.Row)})
			}
		}
	}

	if rightOuter || full {
		for _, e := range build.Entries {
			if matchedBuild[e.Row] {
				continue
			}
			if buildOnRight {
				out = append(out, RelationEntry{Row: padCombine(true, buildOnRight, e.Row, probe)})
			} else {
				out = append(out, RelationEntry{Row: padCombine(true, buildOnRight, e.Row, probe)})
			}
		}
	}

	tables, counts := joinedRelation(left, right)
	return &Relation{Entries: out, Tables: tables, ColumnCount: counts}
}

// padCombine pads a lone row (from whichever side had no match) with
// Nulls for the opposite side's width, preserving left-then-right
// column order regardless of which side actually had the build index.
func padCombine(rowIsBuildSide, buildOnRight bool, row *value.Row, opposite *Relation) *value.Row {
	oppWidth := opposite.Width()
	if rowIsBuildSide {
		if buildOnRight {
			return padLeftRow(oppWidth, row)
		}
		return padRightRow(row, oppWidth)
	}
	if buildOnRight {
		return padRightRow(row, oppWidth)
	}
	return padLeftRow(oppWidth, row)
}

func padRightRow(left *value.Row, width int) *value.Row {
	vals := append([]value.Value{}, left.Values...)
	for i := 0; i < width; i++ {
		vals = append(vals, value.Null())
	}
	row := value.NewRow(value.DummyRowID, vals)
	row.Version = left.Version
	return row
}

func padLeftRow(width int, right *value.Row) *value.Row {
	vals := make([]value.Value, 0, width+len(right.Values))
	for i := 0; i < width; i++ {
		vals = append(vals, value.Null())
	}
	vals = append(vals, right.Values...)
	row := value.NewRow(value.DummyRowID, vals)
	row.Version = right.Version
	return row
}

type rowKey struct {
	kind value.Kind
	i    int64
	f    float64
	s    string
}

func rowKeyOf(v value.Value) (rowKey, bool) {
	if v.IsNull() {
		return rowKey{}, false
	}
	switch v.DataType() {
	case value.TypeInt32:
		return rowKey{kind: v.Kind(), i: int64(v.AsInt32())}, true
	case value.TypeInt64, value.TypeDateTime:
		return rowKey{kind: v.Kind(), i: v.AsInt64()}, true
	case value.TypeFloat64:
		return rowKey{kind: v.Kind(), f: v.AsFloat64()}, true
	case value.TypeString:
		return rowKey{kind: v.Kind(), s: v.AsString()}, true
	default:
		return rowKey{kind: v.Kind(), s: string(v.AsBytes())}, true
	}
}

// sortMergeJoin sorts both inputs by their join key and walks in
// lock-step, handling non-unique keys by running a nested loop over
// each equal-key run. Fastest when an input is already sorted.
func sortMergeJoin(left, right *Relation, leftPos, rightPos int, jt planner.JoinKind) *Relation {
	l := append([]RelationEntry{}, left.Entries...)
	rr := append([]RelationEntry{}, right.Entries...)
	sort.SliceStable(l, func(i, j int) bool { return value.Compare(l[i].Row.Get(leftPos), l[j].Row.Get(leftPos)) < 0 })
	sort.SliceStable(rr, func(i, j int) bool { return value.Compare(rr[i].Row.Get(rightPos), rr[j].Row.Get(rightPos)) < 0 })

	var out []RelationEntry
	i, j := 0, 0
	for i < len(l) && j < len(rr) {
		lk := l[i].Row.Get(leftPos)
		rk := rr[j].Row.Get(rightPos)
		if lk.IsNull() {
			if jt == planner.JoinLeftOuter || jt == planner.JoinFullOuter {
				out = append(out, RelationEntry{Row: padRightRow(l[i].Row, right.Width())})
			}
			i++
			continue
		}
		if rk.IsNull() {
			if jt == planner.JoinRightOuter || jt == planner.JoinFullOuter {
				out = append(out, RelationEntry{Row: padLeftRow(left.Width(), rr[j].Row)})
			}
			j++
			continue
		}
		c := value.Compare(lk, rk)
		switch {
		case c < 0:
			if jt == planner.JoinLeftOuter || jt == planner.JoinFullOuter {
				out = append(out, RelationEntry{Row: padRightRow(l[i].Row, right.Width())})
			}
			i++
		case c > 0:
			if jt == planner.JoinRightOuter || jt == planner.JoinFullOuter {
				out = append(out, RelationEntry{Row: padLeftRow(left.Width(), rr[j].Row)})
			}
			j++
		default:
			lEnd := i
			for lEnd < len(l) && value.Compare(l[lEnd].Row.Get(leftPos), lk) == 0 {
				lEnd++
			}
			rEnd := j
			for rEnd < len(rr) && value.Compare(rr[rEnd].Row.Get(rightPos), rk) == 0 {
				rEnd++
			}
			for a := i; a < lEnd; a++ {
				for b := j; b < rEnd; b++ {
					out = append(out, RelationEntry{Row: combine(l[a].Row, rr[b].Row)})
				}
			}
			i, j = lEnd, rEnd
		}
	}
	for ; i < len(l) && (jt == planner.JoinLeftOuter || jt == planner.JoinFullOuter); i++ {
		out = append(out, RelationEntry{Row: padRightRow(l[i].Row, right.Width())})
	}
	for ; j < len(rr) && (jt == planner.JoinRightOuter || jt == planner.JoinFullOuter); j++ {
		out = append(out, RelationEntry{Row: padLeftRow(left.Width(), rr[j].Row)})
	}

	tables, counts := joinedRelation(left, right)
	return &Relation{Entries: out, Tables: tables, ColumnCount: counts}
}

// nestedLoopJoin evaluates cond against every (outer, inner) pair in
// blocks of ~256 outer rows for cache locality, as required whenever
// the join predicate is not a pure equality.
const nestedLoopBlockSize = 256

func nestedLoopJoin(left, right *Relation, cond *planner.Expr) *Relation {
	var out []RelationEntry
	for start := 0; start < len(left.Entries); start += nestedLoopBlockSize {
		end := start + nestedLoopBlockSize
		if end > len(left.Entries) {
			end = len(left.Entries)
		}
		for _, le := range left.Entries[start:end] {
			for _, re := range right.Entries {
				combined := combine(le.Row, re.Row)
				v := Eval(cond, combined)
				if !v.IsNull() && v.AsBool() {
					out = append(out, RelationEntry{Row: combined})
				}
			}
		}
	}
	tables, counts := joinedRelation(left, right)
	return &Relation{Entries: out, Tables: tables, ColumnCount: counts}
}
