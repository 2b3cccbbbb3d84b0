package binary

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/kasuganosora/cynos/value"
)

// Decode parses a buffer produced by Encoder.Encode back into Values
// using layout, round-tripping every row's column values. Int64 and
// DateTime travel as float64, so they come back exactly only while
// their magnitude is at most 2^53.
// Decoded rows carry value.DummyRowID, since the wire format has no
// concept of RowId (or Version) — those are session-local identity
// information, not part of the result contract.
func Decode(buf []byte, layout SchemaLayout) ([]*value.Row, error) {
	if len(buf) < headerSize {
		return nil, fmt.Errorf("binary: buffer too short for header")
	}
	rowCount := int(binary.LittleEndian.Uint32(buf[0:4]))
	rowStride := int(binary.LittleEndian.Uint32(buf[4:8]))
	varOffset := int(binary.LittleEndian.Uint32(buf[8:12]))
	flags := binary.LittleEndian.Uint32(buf[12:16])
	if flags&^uint32(flagHasNulls) != 0 {
		return nil, fmt.Errorf("binary: reserved flag bits set")
	}
	if rowStride != layout.RowStride {
		return nil, fmt.Errorf("binary: row stride %d does not match layout %d", rowStride, layout.RowStride)
	}
	fixedEnd := headerSize + rowCount*rowStride
	if fixedEnd > varOffset || varOffset > len(buf) {
		return nil, fmt.Errorf("binary: malformed section offsets")
	}
	varSection := buf[varOffset:]

	rows := make([]*value.Row, rowCount)
	for ri := 0; ri < rowCount; ri++ {
		base := headerSize + ri*rowStride
		rowBuf := buf[base : base+rowStride]
		vals := make([]value.Value, len(layout.Columns))
		for ci, dt := range layout.Columns {
			if isNullBit(rowBuf[:layout.NullMaskLen], ci) {
				vals[ci] = value.Null()
				continue
			}
			off := layout.Offsets[ci]
			v, err := decodeColumn(rowBuf[off:off+columnWidth(dt)], dt, varSection)
			if err != nil {
				return nil, err
			}
			vals[ci] = v
		}
		rows[ri] = value.NewRow(value.DummyRowID, vals)
	}
	return rows, nil
}

func isNullBit(mask []byte, col int) bool {
	return mask[col/8]&(1<<uint(col%8)) != 0
}

func decodeColumn(src []byte, dt value.DataType, varSection []byte) (value.Value, error) {
	switch dt {
	case value.TypeBoolean:
		return value.Bool(src[0] != 0), nil
	case value.TypeInt32:
		return value.Int32(int32(binary.LittleEndian.Uint32(src))), nil
	case value.TypeInt64:
		return value.Int64(int64(math.Float64frombits(binary.LittleEndian.Uint64(src)))), nil
	case value.TypeDateTime:
		return value.DateTime(int64(math.Float64frombits(binary.LittleEndian.Uint64(src)))), nil
	case value.TypeFloat64:
		return value.Float64(math.Float64frombits(binary.LittleEndian.Uint64(src))), nil
	case value.TypeString, value.TypeBytes, value.TypeJsonb:
		offset := binary.LittleEndian.Uint32(src[0:4])
		length := binary.LittleEndian.Uint32(src[4:8])
		if int(offset+length) > len(varSection) {
			return value.Value{}, fmt.Errorf("binary: variable payload out of range")
		}
		payload := varSection[offset : offset+length]
		switch dt {
		case value.TypeString:
			return value.String(string(payload)), nil
		case value.TypeJsonb:
			return value.Jsonb(append([]byte(nil), payload...)), nil
		default:
			return value.Bytes(append([]byte(nil), payload...)), nil
		}
	}
	return value.Value{}, fmt.Errorf("binary: unsupported column type %v", dt)
}
