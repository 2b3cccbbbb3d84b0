// Package index implements the index fabric underlying every table: a
// leaf-linked arena B+Tree for range queries, a hash index for point
// lookups, GIN posting lists for JSONB containment, and a nullable
// wrapper composing any of the above with a separate null-key list.
package index

import "github.com/kasuganosora/cynos/value"

// RangeKind selects among the five range shapes an index scan supports.
type RangeKind int

const (
	RangeAll RangeKind = iota
	RangeLowerBound
	RangeUpperBound
	RangeBound
	RangeOnly
)

// Range describes a key range for RangeIndex.GetRange.
type Range struct {
	Kind         RangeKind
	Lo, Hi       value.Value
	LoIncl       bool
	HiIncl       bool
	Only         value.Value
}

func AllRange() Range { return Range{Kind: RangeAll} }

func LowerBound(k value.Value, incl bool) Range {
	return Range{Kind: RangeLowerBound, Lo: k, LoIncl: incl}
}

func UpperBound(k value.Value, incl bool) Range {
	return Range{Kind: RangeUpperBound, Hi: k, HiIncl: incl}
}

func Bound(lo, hi value.Value, loIncl, hiIncl bool) Range {
	return Range{Kind: RangeBound, Lo: lo, Hi: hi, LoIncl: loIncl, HiIncl: hiIncl}
}

func Only(k value.Value) Range { return Range{Kind: RangeOnly, Only: k} }

// within reports whether key k lies inside r; BTree.GetRange tests each
// leaf key it walks against it.
func (r Range) within(k value.Value) bool {
	switch r.Kind {
	case RangeAll:
		return true
	case RangeOnly:
		return value.Equal(k, r.Only)
	case RangeLowerBound:
		c := value.Compare(k, r.Lo)
		if r.LoIncl {
			return c >= 0
		}
		return c > 0
	case RangeUpperBound:
		c := value.Compare(k, r.Hi)
		if r.HiIncl {
			return c <= 0
		}
		return c < 0
	case RangeBound:
		lo := value.Compare(k, r.Lo)
		hi := value.Compare(k, r.Hi)
		okLo := lo > 0 || (lo == 0 && r.LoIncl)
		okHi := hi < 0 || (hi == 0 && r.HiIncl)
		return okLo && okHi
	default:
		return false
	}
}

// Index is the minimal capability every index variant exposes.
type Index interface {
	Add(key value.Value, id value.RowId) error
	Set(key value.Value, id value.RowId)
	Get(key value.Value) []value.RowId
	Remove(key value.Value, id *value.RowId)
	ContainsKey(key value.Value) bool
	Len() int
	Clear()
	Min() (value.Value, []value.RowId, bool)
	Max() (value.Value, []value.RowId, bool)
	Cost(r Range) int
	Stats() *Stats
}

// RangeIndex additionally supports ordered range scans; implemented by
// BTree and by Nullable when it wraps a RangeIndex.
type RangeIndex interface {
	Index
	GetRange(r Range, reverse bool, limit, skip int) []value.RowId
}
