// Package jsonb implements the engine's canonical JSONB value
// representation: an in-memory tree with sorted object keys, a JSONPath
// query evaluator, and the key/path/scalar extraction helpers the GIN
// index fabric indexes against. JSONB values are stored as an opaque
// canonical-form encoding inside value.Value (Kind Jsonb); this package
// is where that encoding is produced, parsed, queried, and compared.
//
// Grounded on original_source/crates/jsonb/src/{lib,value,index,path}.rs.
package jsonb

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind tags a JSON value's shape.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Value is the in-memory JSON tree. Object keys are kept sorted so two
// structurally-equal objects always compare and encode identically,
// which a GIN index's key comparison depends on.
type Value struct {
	kind   Kind
	b      bool
	num    float64
	str    string
	arr    []Value
	obj    []Entry
}

// Entry is a sorted (key, value) pair of an object value.
type Entry struct {
	Key string
	Val Value
}

func Null() Value             { return Value{kind: KindNull} }
func Bool(b bool) Value       { return Value{kind: KindBool, b: b} }
func Number(n float64) Value  { return Value{kind: KindNumber, num: n} }
func String(s string) Value   { return Value{kind: KindString, str: s} }
func Array(items []Value) Value {
	cp := append([]Value(nil), items...)
	return Value{kind: KindArray, arr: cp}
}

// NewObject builds an object value from key/value pairs, sorting keys
// into canonical order and rejecting duplicates by keeping the last.
func NewObject(pairs map[string]Value) Value {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, Entry{Key: k, Val: pairs[k]})
	}
	return Value{kind: KindObject, obj: entries}
}

func (v Value) Kind() Kind       { return v.kind }
func (v Value) IsNull() bool     { return v.kind == KindNull }
func (v Value) IsObject() bool   { return v.kind == KindObject }
func (v Value) IsArray() bool    { return v.kind == KindArray }
func (v Value) AsBool() bool     { return v.b }
func (v Value) AsNumber() float64 { return v.num }
func (v Value) AsString() string { return v.str }

func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}

// Get looks up a field by name on an object value.
func (v Value) Get(field string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	i := sort.Search(len(v.obj), func(i int) bool { return v.obj[i].Key >= field })
	if i < len(v.obj) && v.obj[i].Key == field {
		return v.obj[i].Val, true
	}
	return Value{}, false
}

// Keys returns the sorted top-level field names of an object value, nil
// for any other kind.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	out := make([]string, len(v.obj))
	for i, e := range v.obj {
		out[i] = e.Key
	}
	return out
}

// Entries returns the sorted (key, value) pairs of an object value.
func (v Value) Entries() []Entry {
	if v.kind != KindObject {
		return nil
	}
	return v.obj
}

func (e Entry) Pair() (string, Value) { return e.Key, e.Val }

// Equal compares two values structurally; object comparison relies on
// both sides carrying canonically sorted keys.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.num == b.num
	case KindString:
		return a.str == b.str
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.obj) != len(b.obj) {
			return false
		}
		for i := range a.obj {
			if a.obj[i].Key != b.obj[i].Key || !Equal(a.obj[i].Val, b.obj[i].Val) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the value as canonical JSON text, used both for the
// Encode/Decode round trip and for debugging/display.
func (v Value) String() string {
	var sb strings.Builder
	v.write(&sb)
	return sb.String()
}

func (v Value) write(sb *strings.Builder) {
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		sb.WriteString(strconv.FormatFloat(v.num, 'g', -1, 64))
	case KindString:
		sb.WriteString(strconv.Quote(v.str))
	case KindArray:
		sb.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				sb.WriteByte(',')
			}
			item.write(sb)
		}
		sb.WriteByte(']')
	case KindObject:
		sb.WriteByte('{')
		for i, e := range v.obj {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Quote(e.Key))
			sb.WriteByte(':')
			e.Val.write(sb)
		}
		sb.WriteByte('}')
	}
}

// GoString supports %#v debugging output via fmt.
func (v Value) GoString() string { return fmt.Sprintf("jsonb.Value(%s)", v.String()) }
