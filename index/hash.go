package index

import (
	"github.com/kasuganosora/cynos/dberr"
	"github.com/kasuganosora/cynos/value"
)

// hashKey canonicalizes a Value into a comparable Go key for map lookups.
// Values of different DataTypes never collide because the type tag is
// folded into the key.
type hashKey struct {
	kind  value.Kind
	i     int64
	f     float64
	s     string
}

func toHashKey(v value.Value) hashKey {
	switch v.DataType() {
	case value.TypeBoolean:
		i := int64(0)
		if v.AsBool() {
			i = 1
		}
		return hashKey{kind: v.Kind(), i: i}
	case value.TypeInt32:
		return hashKey{kind: v.Kind(), i: int64(v.AsInt32())}
	case value.TypeInt64, value.TypeDateTime:
		return hashKey{kind: v.Kind(), i: v.AsInt64()}
	case value.TypeFloat64:
		return hashKey{kind: v.Kind(), f: v.AsFloat64()}
	case value.TypeString:
		return hashKey{kind: v.Kind(), s: v.AsString()}
	case value.TypeBytes, value.TypeJsonb:
		return hashKey{kind: v.Kind(), s: string(v.AsBytes())}
	default:
		return hashKey{kind: v.Kind()}
	}
}

// Hash is an O(1) point-lookup index: open chained map from hashed key to
// a list of row ids. No range support.
type Hash struct {
	m      map[hashKey][]value.RowId
	keys   map[hashKey]value.Value
	unique bool
	size   int
	stats  Stats
}

func NewHash(unique bool) *Hash {
	return &Hash{m: make(map[hashKey][]value.RowId), keys: make(map[hashKey]value.Value), unique: unique}
}

func (h *Hash) Stats() *Stats { return &h.stats }
func (h *Hash) Len() int      { return h.size }

func (h *Hash) Clear() {
	h.m = make(map[hashKey][]value.RowId)
	h.keys = make(map[hashKey]value.Value)
	h.size = 0
}

func (h *Hash) Add(key value.Value, id value.RowId) error {
	if h.unique && !key.IsNull() {
		if existing := h.Get(key); len(existing) > 0 {
			return dberr.NewUniqueConstraint("", "", key.AsString())
		}
	}
	k := toHashKey(key)
	h.m[k] = append(h.m[k], id)
	h.keys[k] = key
	h.size++
	h.stats.IncRows(1)
	h.stats.ObserveKey(key)
	return nil
}

func (h *Hash) Set(key value.Value, id value.RowId) {
	k := toHashKey(key)
	if _, ok := h.m[k]; !ok {
		h.size++
		h.stats.IncRows(1)
	} else {
		h.size -= len(h.m[k]) - 1
		h.stats.IncRows(-int64(len(h.m[k]) - 1))
	}
	h.m[k] = []value.RowId{id}
	h.keys[k] = key
	h.stats.ObserveKey(key)
}

func (h *Hash) Get(key value.Value) []value.RowId {
	ids := h.m[toHashKey(key)]
	out := make([]value.RowId, len(ids))
	copy(out, ids)
	return out
}

func (h *Hash) ContainsKey(key value.Value) bool {
	_, ok := h.m[toHashKey(key)]
	return ok
}

func (h *Hash) Remove(key value.Value, id *value.RowId) {
	k := toHashKey(key)
	list, ok := h.m[k]
	if !ok {
		return
	}
	if id == nil {
		h.size -= len(list)
		h.stats.IncRows(-int64(len(list)))
		delete(h.m, k)
		delete(h.keys, k)
		return
	}
	for i, rid := range list {
		if rid == *id {
			h.m[k] = append(list[:i], list[i+1:]...)
			h.size--
			h.stats.IncRows(-1)
			break
		}
	}
	if len(h.m[k]) == 0 {
		delete(h.m, k)
		delete(h.keys, k)
	}
}

func (h *Hash) Min() (value.Value, []value.RowId, bool) { return h.extreme(true) }
func (h *Hash) Max() (value.Value, []value.RowId, bool) { return h.extreme(false) }

func (h *Hash) extreme(wantMin bool) (value.Value, []value.RowId, bool) {
	var best value.Value
	var bestKey hashKey
	found := false
	for k, v := range h.keys {
		if !found {
			best, bestKey, found = v, k, true
			continue
		}
		c := value.Compare(v, best)
		if (wantMin && c < 0) || (!wantMin && c > 0) {
			best, bestKey = v, k
		}
	}
	if !found {
		return value.Null(), nil, false
	}
	return best, h.m[bestKey], true
}

// Cost for equality-only access is O(1): a hash index costs the size of
// the matching bucket, or the whole table for an unbounded range.
func (h *Hash) Cost(r Range) int {
	if r.Kind == RangeOnly {
		return len(h.Get(r.Only))
	}
	return h.size
}
