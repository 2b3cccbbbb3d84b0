package index

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kasuganosora/cynos/value"
)

func TestRangeWithin(t *testing.T) {
	assert.True(t, AllRange().within(value.Int32(5)))
	assert.True(t, Only(value.Int32(5)).within(value.Int32(5)))
	assert.False(t, Only(value.Int32(5)).within(value.Int32(6)))

	lb := LowerBound(value.Int32(5), true)
	assert.True(t, lb.within(value.Int32(5)))
	assert.False(t, lb.within(value.Int32(4)))

	lbExcl := LowerBound(value.Int32(5), false)
	assert.False(t, lbExcl.within(value.Int32(5)))
	assert.True(t, lbExcl.within(value.Int32(6)))

	ub := UpperBound(value.Int32(10), true)
	assert.True(t, ub.within(value.Int32(10)))
	assert.False(t, ub.within(value.Int32(11)))

	bound := Bound(value.Int32(1), value.Int32(10), true, true)
	assert.True(t, bound.within(value.Int32(1)))
	assert.True(t, bound.within(value.Int32(10)))
	assert.False(t, bound.within(value.Int32(11)))
}

func TestBTreeAddGetRemove(t *testing.T) {
	bt := NewBTree(false)
	require_ := assert.New(t)
	for i := int32(0); i < 200; i++ {
		require_.NoError(bt.Add(value.Int32(i), value.RowId(i)))
	}
	assert.Equal(t, 200, bt.Len())

	ids := bt.Get(value.Int32(50))
	assert.Equal(t, []value.RowId{50}, ids)

	bt.Remove(value.Int32(50), nil)
	assert.Empty(t, bt.Get(value.Int32(50)))
	assert.Equal(t, 199, bt.Len())
}

func TestBTreeUniqueRejectsDuplicate(t *testing.T) {
	bt := NewBTree(true)
	assert.NoError(t, bt.Add(value.Int32(1), 1))
	assert.Error(t, bt.Add(value.Int32(1), 2))
}

func TestBTreeMinMax(t *testing.T) {
	bt := NewBTree(false)
	for _, i := range []int32{5, 1, 9, 3} {
		bt.Add(value.Int32(i), value.RowId(i))
	}
	minKey, _, ok := bt.Min()
	assert.True(t, ok)
	assert.Equal(t, value.Int32(1), minKey)

	maxKey, _, ok := bt.Max()
	assert.True(t, ok)
	assert.Equal(t, value.Int32(9), maxKey)
}

func TestBTreeGetRangeAscendingAndDescending(t *testing.T) {
	bt := NewBTree(false)
	for i := int32(0); i < 20; i++ {
		bt.Add(value.Int32(i), value.RowId(i))
	}
	asc := bt.GetRange(Bound(value.Int32(5), value.Int32(10), true, true), false, 0, 0)
	assert.Equal(t, []value.RowId{5, 6, 7, 8, 9, 10}, asc)

	desc := bt.GetRange(Bound(value.Int32(5), value.Int32(10), true, true), true, 0, 0)
	assert.Equal(t, []value.RowId{10, 9, 8, 7, 6, 5}, desc)
}

func TestBTreeGetRangeLimitSkip(t *testing.T) {
	bt := NewBTree(false)
	for i := int32(0); i < 10; i++ {
		bt.Add(value.Int32(i), value.RowId(i))
	}
	res := bt.GetRange(AllRange(), false, 3, 2)
	assert.Equal(t, []value.RowId{2, 3, 4}, res)
}

func TestBTreeClear(t *testing.T) {
	bt := NewBTree(false)
	bt.Add(value.Int32(1), 1)
	bt.Clear()
	assert.Equal(t, 0, bt.Len())
	_, _, ok := bt.Min()
	assert.False(t, ok)
}

func TestHashAddGetRemoveUnique(t *testing.T) {
	h := NewHash(true)
	assert.NoError(t, h.Add(value.String("a"), 1))
	assert.Error(t, h.Add(value.String("a"), 2))
	assert.Equal(t, []value.RowId{1}, h.Get(value.String("a")))
	assert.True(t, h.ContainsKey(value.String("a")))

	h.Remove(value.String("a"), nil)
	assert.False(t, h.ContainsKey(value.String("a")))
}

func TestHashMinMax(t *testing.T) {
	h := NewHash(false)
	h.Add(value.Int32(5), 1)
	h.Add(value.Int32(1), 2)
	h.Add(value.Int32(9), 3)
	minKey, _, ok := h.Min()
	assert.True(t, ok)
	assert.Equal(t, value.Int32(1), minKey)
	maxKey, _, ok := h.Max()
	assert.True(t, ok)
	assert.Equal(t, value.Int32(9), maxKey)
}

func TestHashSetReplacesEntry(t *testing.T) {
	h := NewHash(false)
	h.Add(value.String("k"), 1)
	h.Set(value.String("k"), 2)
	assert.Equal(t, []value.RowId{2}, h.Get(value.String("k")))
}

func TestGinAddGetRemovePostingLists(t *testing.T) {
	g := NewGin()
	g.Add(value.String("tag"), 3)
	g.Add(value.String("tag"), 1)
	g.Add(value.String("tag"), 2)
	assert.Equal(t, []value.RowId{1, 2, 3}, g.Get(value.String("tag")))

	g.Remove(value.String("tag"), ptr(value.RowId(2)))
	assert.Equal(t, []value.RowId{1, 3}, g.Get(value.String("tag")))
	assert.Equal(t, 2, g.Len())
}

func ptr[T any](v T) *T { return &v }

func TestPostingSetOperations(t *testing.T) {
	a := Posting{1, 2, 3, 4}
	b := Posting{2, 4, 6}

	assert.Equal(t, Posting{2, 4}, Intersect(a, b))
	assert.Equal(t, Posting{1, 2, 3, 4, 6}, Union(a, b))
	assert.Equal(t, Posting{1, 3}, Difference(a, b))
}

func TestNullableSeparatesNullKeys(t *testing.T) {
	n := NewNullable(NewBTree(false))
	n.Add(value.Int32(1), 1)
	n.Add(value.Null(), 2)
	n.Add(value.Null(), 3)

	assert.Equal(t, 3, n.Len())
	assert.Equal(t, []value.RowId{2, 3}, n.Get(value.Null()))
	assert.Equal(t, []value.RowId{1}, n.Get(value.Int32(1)))
	assert.True(t, n.ContainsKey(value.Null()))
}

func TestNullableGetRangeOrdersNonNullBeforeNull(t *testing.T) {
	n := NewNullable(NewBTree(false))
	n.Add(value.Int32(2), 2)
	n.Add(value.Int32(1), 1)
	n.Add(value.Null(), 99)

	res := n.GetRange(AllRange(), false, 0, 0)
	assert.Equal(t, []value.RowId{1, 2, 99}, res)
}

func TestNullableCostIncludesNulls(t *testing.T) {
	n := NewNullable(NewBTree(false))
	n.Add(value.Int32(1), 1)
	n.Add(value.Null(), 2)
	assert.Equal(t, 2, n.Cost(AllRange()))
}

func TestStatsObserveKeyNeverDecreases(t *testing.T) {
	var s Stats
	s.ObserveKey(value.Int64(5))
	s.ObserveKey(value.Int64(3))
	max, ok := s.MaxKeyEncountered()
	assert.True(t, ok)
	assert.Equal(t, int64(5), max)

	s.ObserveKey(value.Int64(10))
	max, _ = s.MaxKeyEncountered()
	assert.Equal(t, int64(10), max)
}

func TestStatsIncRows(t *testing.T) {
	var s Stats
	s.IncRows(3)
	s.IncRows(-1)
	assert.Equal(t, int64(2), s.TotalRows())
}
