package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDataTypeCapabilities(t *testing.T) {
	assert.True(t, TypeBytes.NullableByDefault())
	assert.True(t, TypeJsonb.NullableByDefault())
	assert.False(t, TypeInt32.NullableByDefault())

	assert.False(t, TypeBytes.Indexable())
	assert.False(t, TypeJsonb.Indexable())
	assert.True(t, TypeInt64.Indexable())
}

func TestDataTypeString(t *testing.T) {
	cases := map[DataType]string{
		TypeNull:     "null",
		TypeBoolean:  "boolean",
		TypeInt32:    "int32",
		TypeInt64:    "int64",
		TypeFloat64:  "float64",
		TypeDateTime: "datetime",
		TypeString:   "string",
		TypeBytes:    "bytes",
		TypeJsonb:    "jsonb",
	}
	for dt, want := range cases {
		assert.Equal(t, want, dt.String())
	}
	assert.Equal(t, "unknown", DataType(99).String())
}

func TestValueAccessorsRoundTrip(t *testing.T) {
	assert.True(t, Null().IsNull())
	assert.Equal(t, true, Bool(true).AsBool())
	assert.Equal(t, int32(7), Int32(7).AsInt32())
	assert.Equal(t, int64(9), Int64(9).AsInt64())
	assert.Equal(t, 1.5, Float64(1.5).AsFloat64())
	assert.Equal(t, int64(1000), DateTime(1000).AsDateTime())
	assert.Equal(t, "hi", String("hi").AsString())
	assert.Equal(t, []byte{1, 2}, Bytes([]byte{1, 2}).AsBytes())
	assert.Equal(t, []byte(`{}`), Jsonb([]byte(`{}`)).AsJsonb())

	assert.Equal(t, TypeInt64, Int64(1).DataType())
}

func TestCompareNullOrdering(t *testing.T) {
	assert.Equal(t, 0, Compare(Null(), Null()))
	assert.Equal(t, -1, Compare(Null(), Int32(0)))
	assert.Equal(t, 1, Compare(Int32(0), Null()))
}

func TestCompareHeterogeneousKindsTiebreak(t *testing.T) {
	assert.Equal(t, -1, Compare(Bool(true), Int32(0)))
	assert.Equal(t, 1, Compare(Int32(0), Bool(true)))
}

func TestCompareSameKind(t *testing.T) {
	assert.Equal(t, -1, Compare(Int32(1), Int32(2)))
	assert.Equal(t, 1, Compare(Int64(5), Int64(1)))
	assert.Equal(t, 0, Compare(Float64(1.5), Float64(1.5)))
	assert.Equal(t, -1, Compare(String("a"), String("b")))
	assert.Equal(t, 0, Compare(Bytes([]byte("x")), Bytes([]byte("x"))))
	assert.Equal(t, -1, Compare(DateTime(1), DateTime(2)))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Int32(3), Int32(3)))
	assert.False(t, Equal(Int32(3), Int32(4)))
}

func TestZeroValue(t *testing.T) {
	assert.Equal(t, Bool(false), ZeroValue(TypeBoolean))
	assert.Equal(t, Int32(0), ZeroValue(TypeInt32))
	assert.Equal(t, Int64(0), ZeroValue(TypeInt64))
	assert.Equal(t, Float64(0), ZeroValue(TypeFloat64))
	assert.Equal(t, DateTime(0), ZeroValue(TypeDateTime))
	assert.Equal(t, String(""), ZeroValue(TypeString))
	assert.True(t, ZeroValue(TypeBytes).IsNull() == false)
	assert.True(t, ZeroValue(TypeNull).IsNull())
}

func TestRowIDGeneratorMonotonic(t *testing.T) {
	first := NextRowID()
	second := NextRowID()
	assert.Greater(t, second, first)
}

func TestReserveRowIDsContiguous(t *testing.T) {
	start := ReserveRowIDs(5)
	next := NextRowID()
	assert.Equal(t, start+5, next)
}

func TestAdvanceRowIDToNeverRewinds(t *testing.T) {
	cur := NextRowID()
	AdvanceRowIDTo(cur) // no-op, already past
	after := NextRowID()
	assert.Greater(t, after, cur)

	far := after + 1000
	AdvanceRowIDTo(far)
	assert.Greater(t, NextRowID(), far)
}

func TestRowGetOutOfRangeReturnsNull(t *testing.T) {
	r := NewRow(1, []Value{Int32(1), String("a")})
	assert.True(t, r.Get(-1).IsNull())
	assert.True(t, r.Get(2).IsNull())
	assert.Equal(t, Int32(1), r.Get(0))
}

func TestRowCloneIsIndependent(t *testing.T) {
	r := NewRow(1, []Value{Int32(1)})
	clone := r.Clone()
	clone.Values[0] = Int32(99)
	assert.Equal(t, Int32(1), r.Values[0])
	assert.Equal(t, Int32(99), clone.Values[0])
	assert.Equal(t, r.ID, clone.ID)
	assert.Equal(t, r.Version, clone.Version)
}

func TestDummyRowIDIsMaxUint64Sentinel(t *testing.T) {
	assert.NotEqual(t, DummyRowID, NextRowID())
}
