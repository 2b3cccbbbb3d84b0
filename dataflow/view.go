package dataflow

import (
	"github.com/kasuganosora/cynos/diff"
	"github.com/kasuganosora/cynos/value"
)

// joinKey canonicalizes a value.Value into a comparable map key for the
// incremental join's symmetric hash indexes.
type joinKey struct {
	kind value.Kind
	i    int64
	f    float64
	s    string
}

func toJoinKey(v value.Value) (joinKey, bool) {
	if v.IsNull() {
		return joinKey{}, false
	}
	switch v.DataType() {
	case value.TypeInt32:
		return joinKey{kind: v.Kind(), i: int64(v.AsInt32())}, true
	case value.TypeInt64, value.TypeDateTime:
		return joinKey{kind: v.Kind(), i: v.AsInt64()}, true
	case value.TypeFloat64:
		return joinKey{kind: v.Kind(), f: v.AsFloat64()}, true
	case value.TypeString:
		return joinKey{kind: v.Kind(), s: v.AsString()}, true
	default:
		return joinKey{kind: v.Kind(), s: string(v.AsBytes())}, true
	}
}

type joinState struct {
	leftByKey  map[joinKey][]*value.Row
	rightByKey map[joinKey][]*value.Row
	leftWidth  int
	rightWidth int
}

type groupState struct {
	count int64
	sum   map[int]float64
	min   map[int]value.Value
	max   map[int]value.Value
	// needsRecompute[col] marks that a deletion removed the current
	// Min/Max extreme for that aggregated column and the owning view
	// must re-seed from the full member set before the next read.
	needsRecompute map[int]bool
	members        []*value.Row // current members of this group, for Min/Max recompute
	groupValues    []value.Value
}

type aggState struct {
	groups map[string]*groupState
	order  []string // group keys in first-seen order; recorded, not read back
}

// MaterializedView owns a Graph subtree and caches its current result.
type MaterializedView struct {
	graph  *Graph
	joins  map[NodeId]*joinState
	aggs   map[NodeId]*aggState
	result *diff.Collection[*value.Row]
}

func NewMaterializedView(g *Graph) *MaterializedView {
	return &MaterializedView{
		graph:  g,
		joins:  make(map[NodeId]*joinState),
		aggs:   make(map[NodeId]*aggState),
		result: diff.New(rowsEqual),
	}
}

// rowsEqual is the identity test diff.Collection.Commit uses to locate
// the element a negative-multiplicity delta removes. Rows read straight
// from a table carry a real, unique RowId and are compared by it; every
// row synthesized by a join/project/map/aggregate carries
// value.DummyRowID instead; since those have no meaningful id, they're
// compared by their value content.
func rowsEqual(a, b *value.Row) bool {
	if a.ID != value.DummyRowID && b.ID != value.DummyRowID {
		return a.ID == b.ID
	}
	if len(a.Values) != len(b.Values) {
		return false
	}
	for i := range a.Values {
		if !value.Equal(a.Values[i], b.Values[i]) {
			return false
		}
	}
	return true
}

// Seed establishes the view's starting materialized result by replaying
// each source table's current full row set, in the table's declared
// dependency order, as an insert batch through OnTableChange. Call this
// once per table a view depends on before delivering it to subscribers.
func (v *MaterializedView) Seed(table TableID, rows []*value.Row) {
	batch := make(diff.Batch[*value.Row], len(rows))
	for i, r := range rows {
		batch[i] = diff.Insert(r)
	}
	v.OnTableChange(table, batch)
}

// Result returns the current materialized result snapshot, recomputing
// any Min/Max aggregate state flagged as stale first.
func (v *MaterializedView) Result() []*value.Row {
	v.recomputeStaleExtremes()
	return v.result.Snapshot()
}

// OnTableChange pushes a delta batch that originated on table through
// the graph, updating join/aggregate state and the materialized result,
// and returns the output batch (for the reactive layer's ChangeSet).
func (v *MaterializedView) OnTableChange(table TableID, batch diff.Batch[*value.Row]) diff.Batch[*value.Row] {
	if !v.graph.DependsOn(table) {
		return nil
	}
	out := v.push(v.graph.root, table, batch)
	v.result.StageBatch(out)
	v.result.Commit()
	return out
}

// push recursively propagates a delta batch known to originate from
// table, through the subtree rooted at id, applying each lifted
// operator in turn. Returns the batch this node would emit downstream,
// or nil if this subtree doesn't consume table at all.
func (v *MaterializedView) push(id NodeId, table TableID, batch diff.Batch[*value.Row]) diff.Batch[*value.Row] {
	n := v.graph.at(id)
	if !n.sources[table] {
		return nil
	}
	switch n.kind {
	case kindSource:
		return batch
	case kindFilter:
		in := v.push(n.input, table, batch)
		return liftFilter(in, n.pred)
	case kindProject:
		in := v.push(n.input, table, batch)
		return liftProject(in, n.cols)
	case kindMap:
		in := v.push(n.input, table, batch)
		return liftMap(in, n.mapFn)
	case kindJoin:
		return v.pushJoin(id, n, table, batch)
	case kindAggregate:
		in := v.push(n.input, table, batch)
		return v.pushAggregate(id, n, in)
	}
	return nil
}

// pushJoin determines which side the incoming batch's source table
// reaches and applies the incremental hash-join algorithm for that side.
// Because the graph is a tree, table can only appear under one of the
// two children.
func (v *MaterializedView) pushJoin(id NodeId, n *node, table TableID, batch diff.Batch[*value.Row]) diff.Batch[*value.Row] {
	st := v.joinState(id)

	if v.graph.at(n.left).sources[table] {
		leftBatch := v.push(n.left, table, batch)
		return v.joinProbe(st, n, leftBatch, true)
	}
	rightBatch := v.push(n.right, table, batch)
	return v.joinProbe(st, n, rightBatch, false)
}

func (v *MaterializedView) joinState(id NodeId) *joinState {
	st, ok := v.joins[id]
	if !ok {
		n := v.graph.at(id)
		st = &joinState{
			leftByKey:  make(map[joinKey][]*value.Row),
			rightByKey: make(map[joinKey][]*value.Row),
			leftWidth:  n.leftWidth,
			rightWidth: n.rightWidth,
		}
		v.joins[id] = st
	}
	return st
}

// joinProbe applies the incremental hash-join algorithm for one side's
// delta batch. Outer joins decompose as Inner ∪ AntiJoin (spec'd as
// LeftOuter = Inner ∪ AntiJoin, symmetric for RightOuter/FullOuter): an
// antijoin key is "crossed" when the opposite side's bag for a shared
// key count goes from zero to positive (every currently-padded row
// sharing that key must have its pad retracted) or from positive to
// zero (every row sharing that key must have its pad re-emitted), since
// all rows sharing a key have an identical matched/unmatched status.
func (v *MaterializedView) joinProbe(st *joinState, n *node, batch diff.Batch[*value.Row], fromLeft bool) diff.Batch[*value.Row] {
	var out diff.Batch[*value.Row]
	for _, d := range batch {
		var key value.Value
		if fromLeft {
			key = n.leftKey(d.Data)
		} else {
			key = n.rightKey(d.Data)
		}
		jk, ok := toJoinKey(key)

		var matches []*value.Row
		if ok {
			if fromLeft {
				matches = st.rightByKey[jk]
			} else {
				matches = st.leftByKey[jk]
			}
		}

		if ok {
			for _, m := range matches {
				var combined *value.Row
				if fromLeft {
					combined = combineRows(d.Data, m)
				} else {
					combined = combineRows(m, d.Data)
				}
				out = append(out, diff.Delta[*value.Row]{Data: combined, Diff: d.Diff})
			}
		}

		// This delta's own row is itself new or departing; it only
		// needs its own pad when it has zero matches right now (a
		// nonzero prior match count is impossible for an insert, since
		// the row didn't exist before, and a delete with matches>0 is
		// covered by the inner-product retraction above).
		if n.joinType != JoinInner && len(matches) == 0 {
			if fromLeft && (n.joinType == JoinLeftOuter || n.joinType == JoinFullOuter) {
				out = append(out, diff.Delta[*value.Row]{Data: padRight(d.Data, st.rightWidth), Diff: d.Diff})
			}
			if !fromLeft && (n.joinType == JoinRightOuter || n.joinType == JoinFullOuter) {
				out = append(out, diff.Delta[*value.Row]{Data: padLeft(st.leftWidth, d.Data), Diff: d.Diff})
			}
		}

		if ok {
			if fromLeft {
				before := len(st.leftByKey[jk])
				st.leftByKey[jk] = updateBag(st.leftByKey[jk], d)
				after := len(st.leftByKey[jk])
				if (n.joinType == JoinRightOuter || n.joinType == JoinFullOuter) && before != after {
					out = append(out, crossingDeltas(st.rightByKey[jk], before, after, func(r *value.Row) *value.Row {
						return padLeft(st.leftWidth, r)
					})...)
				}
			} else {
				before := len(st.rightByKey[jk])
				st.rightByKey[jk] = updateBag(st.rightByKey[jk], d)
				after := len(st.rightByKey[jk])
				if (n.joinType == JoinLeftOuter || n.joinType == JoinFullOuter) && before != after {
					out = append(out, crossingDeltas(st.leftByKey[jk], before, after, func(r *value.Row) *value.Row {
						return padRight(r, st.rightWidth)
					})...)
				}
			}
		}
	}
	return diff.Compact(out)
}

// crossingDeltas retracts (before==0, after>0) or re-emits (before>0,
// after==0) the pad row for every row in rows, the antijoin's reaction
// to its own side's bag crossing zero at a shared key. A no-op when
// before and after are both zero or both positive — rows only cross.
func crossingDeltas(rows []*value.Row, before, after int, pad func(*value.Row) *value.Row) diff.Batch[*value.Row] {
	var out diff.Batch[*value.Row]
	switch {
	case before == 0 && after > 0:
		for _, r := range rows {
			out = append(out, diff.Delete(pad(r)))
		}
	case before > 0 && after == 0:
		for _, r := range rows {
			out = append(out, diff.Insert(pad(r)))
		}
	}
	return out
}

func updateBag(bag []*value.Row, d diff.Delta[*value.Row]) []*value.Row {
	if d.Diff > 0 {
		return append(bag, d.Data)
	}
	for i, r := range bag {
		if r.ID == d.Data.ID {
			return append(bag[:i], bag[i+1:]...)
		}
	}
	return bag
}

func combineRows(left, right *value.Row) *value.Row {
	vals := make([]value.Value, 0, len(left.Values)+len(right.Values))
	vals = append(vals, left.Values...)
	vals = append(vals, right.Values...)
	r := value.NewRow(value.DummyRowID, vals)
	r.Version = left.Version + right.Version
	return r
}

func padRight(left *value.Row, rightWidth int) *value.Row {
	vals := make([]value.Value, 0, len(left.Values)+rightWidth)
	vals = append(vals, left.Values...)
	for i := 0; i < rightWidth; i++ {
		vals = append(vals, value.Null())
	}
	r := value.NewRow(value.DummyRowID, vals)
	r.Version = left.Version
	return r
}

func padLeft(leftWidth int, right *value.Row) *value.Row {
	vals := make([]value.Value, 0, leftWidth+len(right.Values))
	for i := 0; i < leftWidth; i++ {
		vals = append(vals, value.Null())
	}
	vals = append(vals, right.Values...)
	r := value.NewRow(value.DummyRowID, vals)
	r.Version = right.Version
	return r
}

func liftFilter(batch diff.Batch[*value.Row], pred func(*value.Row) bool) diff.Batch[*value.Row] {
	var out diff.Batch[*value.Row]
	for _, d := range batch {
		if pred(d.Data) {
			out = append(out, d)
		}
	}
	return out
}

func liftProject(batch diff.Batch[*value.Row], cols []int) diff.Batch[*value.Row] {
	out := make(diff.Batch[*value.Row], 0, len(batch))
	for _, d := range batch {
		vals := make([]value.Value, len(cols))
		for i, c := range cols {
			vals[i] = d.Data.Get(c)
		}
		r := value.NewRow(value.DummyRowID, vals)
		r.Version = d.Data.Version
		out = append(out, diff.Delta[*value.Row]{Data: r, Diff: d.Diff})
	}
	return out
}

func liftMap(batch diff.Batch[*value.Row], fn func(*value.Row) *value.Row) diff.Batch[*value.Row] {
	out := make(diff.Batch[*value.Row], 0, len(batch))
	for _, d := range batch {
		out = append(out, diff.Delta[*value.Row]{Data: fn(d.Data), Diff: d.Diff})
	}
	return out
}
