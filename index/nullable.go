package index

import "github.com/kasuganosora/cynos/value"

// Nullable wraps any Index (optionally a RangeIndex) and factors null keys
// out into a separate insertion-ordered vector, since B+Tree/Hash/Gin
// comparators are not defined over Value's Null variant: range iteration
// over the All range emits non-null entries first, then null entries in
// insertion order, following the
// original_source/crates/index/src/nullable.rs split-storage approach.
type Nullable struct {
	inner   Index
	nullIDs []value.RowId
	stats   Stats
}

func NewNullable(inner Index) *Nullable {
	return &Nullable{inner: inner}
}

func (n *Nullable) Stats() *Stats { return &n.stats }

func (n *Nullable) Len() int { return n.inner.Len() + len(n.nullIDs) }

func (n *Nullable) Clear() {
	n.inner.Clear()
	n.nullIDs = nil
}

func (n *Nullable) Add(key value.Value, id value.RowId) error {
	if key.IsNull() {
		n.nullIDs = append(n.nullIDs, id)
		n.stats.IncRows(1)
		return nil
	}
	if err := n.inner.Add(key, id); err != nil {
		return err
	}
	n.stats.IncRows(1)
	n.stats.ObserveKey(key)
	return nil
}

func (n *Nullable) Set(key value.Value, id value.RowId) {
	if key.IsNull() {
		n.nullIDs = append(n.nullIDs, id)
		n.stats.IncRows(1)
		return
	}
	before := n.inner.Len()
	n.inner.Set(key, id)
	n.stats.IncRows(int64(n.inner.Len() - before))
	n.stats.ObserveKey(key)
}

func (n *Nullable) Get(key value.Value) []value.RowId {
	if key.IsNull() {
		out := make([]value.RowId, len(n.nullIDs))
		copy(out, n.nullIDs)
		return out
	}
	return n.inner.Get(key)
}

func (n *Nullable) ContainsKey(key value.Value) bool {
	if key.IsNull() {
		return len(n.nullIDs) > 0
	}
	return n.inner.ContainsKey(key)
}

func (n *Nullable) Remove(key value.Value, id *value.RowId) {
	if key.IsNull() {
		if id == nil {
			n.stats.IncRows(-int64(len(n.nullIDs)))
			n.nullIDs = nil
			return
		}
		for i, rid := range n.nullIDs {
			if rid == *id {
				n.nullIDs = append(n.nullIDs[:i], n.nullIDs[i+1:]...)
				n.stats.IncRows(-1)
				return
			}
		}
		return
	}
	before := n.inner.Len()
	n.inner.Remove(key, id)
	n.stats.IncRows(int64(n.inner.Len() - before))
}

func (n *Nullable) Min() (value.Value, []value.RowId, bool) { return n.inner.Min() }
func (n *Nullable) Max() (value.Value, []value.RowId, bool) { return n.inner.Max() }

func (n *Nullable) Cost(r Range) int {
	if r.Kind == RangeAll {
		return n.inner.Cost(r) + len(n.nullIDs)
	}
	return n.inner.Cost(r)
}

// GetRange requires the wrapped index to support ordered range scans.
// For the All range it appends null entries, in insertion order, after
// the inner index's ordered non-null entries. Bounded ranges never match
// nulls since comparisons against Null are undefined for range bounds.
func (n *Nullable) GetRange(r Range, reverse bool, limit, skip int) []value.RowId {
	ri, ok := n.inner.(RangeIndex)
	if !ok {
		return nil
	}
	if r.Kind != RangeAll {
		return ri.GetRange(r, reverse, limit, skip)
	}

	nonNull := ri.GetRange(r, reverse, 0, 0)
	nulls := n.nullIDs
	var all []value.RowId
	if reverse {
		all = append(all, reverseCopy(nulls)...)
		all = append(all, nonNull...)
	} else {
		all = append(all, nonNull...)
		all = append(all, nulls...)
	}

	if skip > 0 {
		if skip >= len(all) {
			return nil
		}
		all = all[skip:]
	}
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

func reverseCopy(ids []value.RowId) []value.RowId {
	out := make([]value.RowId, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}
