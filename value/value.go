// Package value implements the typed scalar kernel shared by every other
// package: Value, DataType, Row, and the process-wide RowId generator.
package value

import (
	"bytes"
	"math"
	"sync/atomic"
)

// Kind tags the Value union.
type Kind uint8

const (
	KindNull Kind = iota
	KindBoolean
	KindInt32
	KindInt64
	KindFloat64
	KindDateTime
	KindString
	KindBytes
	KindJsonb
)

// DataType mirrors Kind at the schema level and carries the capability
// bits a column declaration needs (nullability default, indexability).
type DataType uint8

const (
	TypeNull DataType = DataType(KindNull)
	TypeBoolean = DataType(KindBoolean)
	TypeInt32 = DataType(KindInt32)
	TypeInt64 = DataType(KindInt64)
	TypeFloat64 = DataType(KindFloat64)
	TypeDateTime = DataType(KindDateTime)
	TypeString = DataType(KindString)
	TypeBytes = DataType(KindBytes)
	TypeJsonb = DataType(KindJsonb)
)

// NullableByDefault reports whether columns of this type are nullable
// unless the schema says otherwise (true for Bytes/Jsonb).
func (d DataType) NullableByDefault() bool {
	return d == TypeBytes || d == TypeJsonb
}

// Indexable reports whether this type can key a B+Tree or hash index.
// Bytes/Jsonb cannot; Jsonb may still key a GIN index via extraction.
func (d DataType) Indexable() bool {
	return d != TypeBytes && d != TypeJsonb
}

func (d DataType) String() string {
	switch d {
	case TypeNull:
		return "null"
	case TypeBoolean:
		return "boolean"
	case TypeInt32:
		return "int32"
	case TypeInt64:
		return "int64"
	case TypeFloat64:
		return "float64"
	case TypeDateTime:
		return "datetime"
	case TypeString:
		return "string"
	case TypeBytes:
		return "bytes"
	case TypeJsonb:
		return "jsonb"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the supported scalar types. Jsonb payloads
// are an opaque canonical-form byte blob (see package jsonb).
type Value struct {
	kind    Kind
	boolean bool
	i32     int32
	i64     int64
	f64     float64
	// str backs String; bytes backs Bytes and Jsonb.
	str   string
	bytes []byte
}

func Null() Value                 { return Value{kind: KindNull} }
func Bool(b bool) Value           { return Value{kind: KindBoolean, boolean: b} }
func Int32(i int32) Value         { return Value{kind: KindInt32, i32: i} }
func Int64(i int64) Value         { return Value{kind: KindInt64, i64: i} }
func Float64(f float64) Value     { return Value{kind: KindFloat64, f64: f} }
func DateTime(ms int64) Value     { return Value{kind: KindDateTime, i64: ms} }
func String(s string) Value       { return Value{kind: KindString, str: s} }
func Bytes(b []byte) Value        { return Value{kind: KindBytes, bytes: b} }
func Jsonb(canonical []byte) Value { return Value{kind: KindJsonb, bytes: canonical} }

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }
func (v Value) AsBool() bool    { return v.boolean }
func (v Value) AsInt32() int32  { return v.i32 }
func (v Value) AsInt64() int64  { return v.i64 }
func (v Value) AsFloat64() float64 { return v.f64 }
func (v Value) AsDateTime() int64  { return v.i64 }
func (v Value) AsString() string   { return v.str }
func (v Value) AsBytes() []byte    { return v.bytes }
func (v Value) AsJsonb() []byte    { return v.bytes }

// DataType returns the DataType tag matching this value's Kind.
func (v Value) DataType() DataType { return DataType(v.kind) }

// Compare orders values totally: Null sorts below everything else; two
// values of different non-null kinds compare by Kind as a tiebreak so
// ordering stays total even across heterogeneous columns.
func Compare(a, b Value) int {
	if a.kind == KindNull && b.kind == KindNull {
		return 0
	}
	if a.kind == KindNull {
		return -1
	}
	if b.kind == KindNull {
		return 1
	}
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindBoolean:
		return cmpBool(a.boolean, b.boolean)
	case KindInt32:
		return cmpInt(int64(a.i32), int64(b.i32))
	case KindInt64, KindDateTime:
		return cmpInt(a.i64, b.i64)
	case KindFloat64:
		return cmpFloat(a.f64, b.f64)
	case KindString:
		return bytes.Compare([]byte(a.str), []byte(b.str))
	case KindBytes, KindJsonb:
		return bytes.Compare(a.bytes, b.bytes)
	default:
		return 0
	}
}

// Equal is structural equality; Jsonb compares by canonical byte form.
func Equal(a, b Value) bool { return Compare(a, b) == 0 }

func cmpBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ZeroValue returns the zero value for a DataType, used as a column's
// implicit default when the column is not nullable and declares none.
func ZeroValue(dt DataType) Value {
	switch dt {
	case TypeBoolean:
		return Bool(false)
	case TypeInt32:
		return Int32(0)
	case TypeInt64:
		return Int64(0)
	case TypeFloat64:
		return Float64(0)
	case TypeDateTime:
		return DateTime(0)
	case TypeString:
		return String("")
	case TypeBytes:
		return Bytes(nil)
	case TypeJsonb:
		return Jsonb(nil)
	default:
		return Null()
	}
}

// RowId is a process-monotonic 64-bit row identifier.
type RowId = uint64

// DummyRowID marks synthetic rows produced by joins and projections.
const DummyRowID RowId = math.MaxUint64

var rowIDGen atomic.Uint64

// NextRowID returns a fresh RowId via fetch-add; the zero value is never
// issued (the generator starts at 1) so 0 can act as an "unset" sentinel
// for embedders that want one.
func NextRowID() RowId { return rowIDGen.Add(1) }

// ReserveRowIDs reserves a contiguous range of n fresh RowIds and returns
// the first one; used by bulk-insert paths to avoid one atomic op per row.
func ReserveRowIDs(n uint64) RowId {
	if n == 0 {
		return rowIDGen.Add(0) + 1
	}
	last := rowIDGen.Add(n)
	return last - n + 1
}

// AdvanceRowIDTo advances the generator to at least n, never rewinding it.
// Used on initial load so persisted ids are never reissued.
func AdvanceRowIDTo(n uint64) {
	for {
		cur := rowIDGen.Load()
		if cur >= n {
			return
		}
		if rowIDGen.CompareAndSwap(cur, n) {
			return
		}
	}
}

// Row carries a RowId, a monotonic version counter, and an ordered
// sequence of Values matching the owning table's schema.
type Row struct {
	ID      RowId
	Version uint64
	Values  []Value
}

func NewRow(id RowId, values []Value) *Row {
	return &Row{ID: id, Version: 1, Values: values}
}

func (r *Row) Get(col int) Value {
	if col < 0 || col >= len(r.Values) {
		return Null()
	}
	return r.Values[col]
}

// Clone returns a deep-enough copy for update-in-place semantics: rows are
// immutable once stored, so updates allocate a new Row and replace.
func (r *Row) Clone() *Row {
	vals := make([]Value, len(r.Values))
	copy(vals, r.Values)
	return &Row{ID: r.ID, Version: r.Version, Values: vals}
}
