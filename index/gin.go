package index

import (
	"sort"

	"github.com/kasuganosora/cynos/value"
)

// Posting is a sorted set of RowIds for one GIN key, supporting the set
// operations the planner's GinIndexScan(Multi) nodes need, grounded on
// original_source/crates/index/src/gin/posting.rs.
type Posting []value.RowId

func (p Posting) insert(id value.RowId) Posting {
	i := sort.Search(len(p), func(i int) bool { return p[i] >= id })
	if i < len(p) && p[i] == id {
		return p
	}
	p = append(p, 0)
	copy(p[i+1:], p[i:])
	p[i] = id
	return p
}

func (p Posting) remove(id value.RowId) Posting {
	i := sort.Search(len(p), func(i int) bool { return p[i] >= id })
	if i < len(p) && p[i] == id {
		return append(p[:i], p[i+1:]...)
	}
	return p
}

func Intersect(a, b Posting) Posting {
	out := make(Posting, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}

func Union(a, b Posting) Posting {
	out := make(Posting, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		default:
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

func Difference(a, b Posting) Posting {
	out := make(Posting, 0, len(a))
	i, j := 0, 0
	for i < len(a) {
		for j < len(b) && b[j] < a[i] {
			j++
		}
		if j < len(b) && b[j] == a[i] {
			i++
			continue
		}
		out = append(out, a[i])
		i++
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Gin maps a JSONB sub-term key (a top-level field, (path, value) pair, or
// extracted scalar+path, encoded by package jsonb into a Value key this
// index treats opaquely) to a sorted posting list. GIN indexes are never
// unique and never support ordered range scans.
type Gin struct {
	m     map[hashKey]Posting
	keys  map[hashKey]value.Value
	stats Stats
}

func NewGin() *Gin {
	return &Gin{m: make(map[hashKey]Posting), keys: make(map[hashKey]value.Value)}
}

func (g *Gin) Stats() *Stats { return &g.stats }

func (g *Gin) Len() int {
	n := 0
	for _, p := range g.m {
		n += len(p)
	}
	return n
}

func (g *Gin) Clear() {
	g.m = make(map[hashKey]Posting)
	g.keys = make(map[hashKey]value.Value)
}

func (g *Gin) Add(key value.Value, id value.RowId) error {
	k := toHashKey(key)
	before := len(g.m[k])
	g.m[k] = g.m[k].insert(id)
	if len(g.m[k]) != before {
		g.stats.IncRows(1)
	}
	g.keys[k] = key
	return nil
}

func (g *Gin) Set(key value.Value, id value.RowId) {
	k := toHashKey(key)
	g.m[k] = Posting{id}
	g.keys[k] = key
}

func (g *Gin) Get(key value.Value) []value.RowId {
	p := g.m[toHashKey(key)]
	out := make([]value.RowId, len(p))
	copy(out, p)
	return out
}

// GetTerm is the typed counterpart of Get, returning the Posting
// directly (not a copy) for set-op composition.
func (g *Gin) GetTerm(key value.Value) Posting { return g.m[toHashKey(key)] }

func (g *Gin) ContainsKey(key value.Value) bool {
	p, ok := g.m[toHashKey(key)]
	return ok && len(p) > 0
}

func (g *Gin) Remove(key value.Value, id *value.RowId) {
	k := toHashKey(key)
	p, ok := g.m[k]
	if !ok {
		return
	}
	if id == nil {
		g.stats.IncRows(-int64(len(p)))
		delete(g.m, k)
		delete(g.keys, k)
		return
	}
	before := len(p)
	g.m[k] = p.remove(*id)
	if len(g.m[k]) != before {
		g.stats.IncRows(-1)
	}
	if len(g.m[k]) == 0 {
		delete(g.m, k)
		delete(g.keys, k)
	}
}

func (g *Gin) Min() (value.Value, []value.RowId, bool) { return value.Null(), nil, false }
func (g *Gin) Max() (value.Value, []value.RowId, bool) { return value.Null(), nil, false }

func (g *Gin) Cost(r Range) int {
	if r.Kind == RangeOnly {
		return len(g.Get(r.Only))
	}
	return g.Len()
}
