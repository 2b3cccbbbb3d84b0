// Package binary implements the engine's bit-exact result buffer
// format: a 16-byte header, a fixed-size row-major section with
// per-row null masks, and a variable-length section for
// String/Bytes/Jsonb payloads. This is the one wire format the engine
// exposes to an embedding host; everything internal to the engine
// passes *value.Row directly.
package binary

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/kasuganosora/cynos/schema"
	"github.com/kasuganosora/cynos/value"
)

const headerSize = 16

const flagHasNulls = 1 << 0

// SchemaLayout precomputes each column's fixed-section byte offset and
// width from a schema.Table, and the null-mask width in bytes, so an
// Encoder never recomputes offsets per row.
type SchemaLayout struct {
	Columns    []value.DataType
	Offsets    []int // per column, offset within a row's fixed section (after the null mask)
	NullMaskLen int
	RowStride  int
}

// NewSchemaLayout computes a SchemaLayout for t. Column widths are
// fixed: Boolean 1, Int32 4, everything else (Int64, Float64, DateTime,
// and the var-length kinds' offset+length pair) 8.
func NewSchemaLayout(t schema.Table) SchemaLayout {
	nullMaskLen := (len(t.Columns) + 7) / 8
	offsets := make([]int, len(t.Columns))
	types := make([]value.DataType, len(t.Columns))
	cursor := nullMaskLen
	for i, c := range t.Columns {
		offsets[i] = cursor
		types[i] = c.DataType
		cursor += columnWidth(c.DataType)
	}
	return SchemaLayout{Columns: types, Offsets: offsets, NullMaskLen: nullMaskLen, RowStride: cursor}
}

func columnWidth(dt value.DataType) int {
	switch dt {
	case value.TypeBoolean:
		return 1
	case value.TypeInt32:
		return 4
	default:
		return 8
	}
}

// SchemaLayoutCache memoizes SchemaLayout per table name, since the
// layout depends only on the schema, not on any particular result set.
type SchemaLayoutCache struct {
	layouts map[string]SchemaLayout
}

func NewSchemaLayoutCache() *SchemaLayoutCache {
	return &SchemaLayoutCache{layouts: make(map[string]SchemaLayout)}
}

func (c *SchemaLayoutCache) Get(t schema.Table) SchemaLayout {
	if l, ok := c.layouts[t.Name]; ok {
		return l
	}
	l := NewSchemaLayout(t)
	c.layouts[t.Name] = l
	return l
}

// Encoder builds one result buffer from a SchemaLayout and a row set.
type Encoder struct {
	layout SchemaLayout
}

func NewEncoder(layout SchemaLayout) *Encoder {
	return &Encoder{layout: layout}
}

// Encode produces one contiguous buffer: header, fixed section, then
// variable section. The header is written last because var_offset
// depends on the total fixed-section size, which is already known
// (rowCount*rowStride), so in practice this only needs one pass.
func (e *Encoder) Encode(rows []*value.Row) ([]byte, error) {
	rowCount := len(rows)
	rowStride := e.layout.RowStride
	fixedSize := rowCount * rowStride

	var varBuf []byte
	fixed := make([]byte, fixedSize)
	hasNulls := false

	for ri, row := range rows {
		base := ri * rowStride
		for ci, dt := range e.layout.Columns {
			if ci >= len(row.Values) {
				return nil, fmt.Errorf("binary: row %d has fewer columns than schema", ri)
			}
			v := row.Values[ci]
			off := base + e.layout.Offsets[ci]
			if v.IsNull() {
				hasNulls = true
				setNullBit(fixed[base:base+e.layout.NullMaskLen], ci)
				continue
			}
			if err := encodeColumn(fixed[off:off+columnWidth(dt)], dt, v, &varBuf); err != nil {
				return nil, err
			}
		}
	}

	varOffset := headerSize + fixedSize
	buf := make([]byte, varOffset+len(varBuf))
	copy(buf[headerSize:], fixed)
	copy(buf[varOffset:], varBuf)

	var flags uint32
	if hasNulls {
		flags |= flagHasNulls
	}
	binary.LittleEndian.PutUint32(buf[0:4], uint32(rowCount))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(rowStride))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(varOffset))
	binary.LittleEndian.PutUint32(buf[12:16], flags)
	return buf, nil
}

func setNullBit(mask []byte, col int) {
	mask[col/8] |= 1 << uint(col%8)
}

func encodeColumn(dst []byte, dt value.DataType, v value.Value, varBuf *[]byte) error {
	switch dt {
	case value.TypeBoolean:
		if v.AsBool() {
			dst[0] = 1
		} else {
			dst[0] = 0
		}
	case value.TypeInt32:
		binary.LittleEndian.PutUint32(dst, uint32(v.AsInt32()))
	case value.TypeInt64, value.TypeDateTime:
		binary.LittleEndian.PutUint64(dst, math.Float64bits(float64(v.AsInt64())))
	case value.TypeFloat64:
		binary.LittleEndian.PutUint64(dst, math.Float64bits(v.AsFloat64()))
	case value.TypeString, value.TypeBytes, value.TypeJsonb:
		payload := columnBytes(dt, v)
		offset := uint32(len(*varBuf))
		*varBuf = append(*varBuf, payload...)
		binary.LittleEndian.PutUint32(dst[0:4], offset)
		binary.LittleEndian.PutUint32(dst[4:8], uint32(len(payload)))
	default:
		return fmt.Errorf("binary: unsupported column type %v", dt)
	}
	return nil
}

func columnBytes(dt value.DataType, v value.Value) []byte {
	if dt == value.TypeString {
		return []byte(v.AsString())
	}
	return v.AsBytes()
}
