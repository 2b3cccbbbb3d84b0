package jsonb

import (
	"encoding/json"
	"fmt"

	"github.com/kasuganosora/cynos/value"
)

// Encode produces the canonical-form bytes stored inside a value.Value of
// Kind Jsonb: the object-sorted JSON text from Value.String. Two
// structurally equal documents always encode to identical bytes, which is
// what lets value.Compare/value.Equal treat Jsonb payloads as opaque
// byte blobs.
func Encode(v Value) []byte {
	return []byte(v.String())
}

// Decode parses canonical-form bytes back into a Value tree.
func Decode(b []byte) (Value, error) {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return Value{}, fmt.Errorf("jsonb: decode: %w", err)
	}
	return fromAny(raw), nil
}

func fromAny(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case string:
		return String(t)
	case []any:
		items := make([]Value, len(t))
		for i, e := range t {
			items[i] = fromAny(e)
		}
		return Array(items)
	case map[string]any:
		pairs := make(map[string]Value, len(t))
		for k, e := range t {
			pairs[k] = fromAny(e)
		}
		return NewObject(pairs)
	default:
		return Null()
	}
}

// ToValue wraps this document as a value.Value of Kind Jsonb.
func (v Value) ToValue() value.Value {
	return value.Jsonb(Encode(v))
}

// FromValue unwraps a value.Value of Kind Jsonb back into a Value tree.
// The kind of v is not checked: its byte payload goes to Decode, so a
// Bytes value holding JSON text decodes, and any other non-Jsonb value
// (whose byte payload is empty) yields a decode error.
func FromValue(v value.Value) (Value, error) {
	return Decode(v.AsBytes())
}
