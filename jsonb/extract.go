package jsonb

import "strconv"

// ExtractKeys returns the top-level field names of an object value, for
// GIN indexing of "does this document have field X" queries. Grounded on
// JsonbValue::extract_keys in original_source/crates/jsonb/src/index.rs.
func (v Value) ExtractKeys() []string {
	if v.kind != KindObject {
		return nil
	}
	return v.Keys()
}

// ExtractKeyValues returns the top-level (key, value) pairs of an object
// value, for GIN indexing of "does this document have field X = Y".
func (v Value) ExtractKeyValues() []Entry {
	if v.kind != KindObject {
		return nil
	}
	return v.obj
}

// PathValue pairs a dotted/indexed path with the value found there.
type PathValue struct {
	Path []string
	Val  Value
}

// ExtractPaths recursively walks the value, returning every (path, value)
// pair including the root (empty path) and every container and scalar
// reached along the way. Array indices are rendered as decimal strings.
func (v Value) ExtractPaths() []PathValue {
	var out []PathValue
	v.extractPaths(nil, &out)
	return out
}

func (v Value) extractPaths(path []string, out *[]PathValue) {
	cp := append([]string(nil), path...)
	*out = append(*out, PathValue{Path: cp, Val: v})
	switch v.kind {
	case KindObject:
		for _, e := range v.obj {
			e.Val.extractPaths(append(path, e.Key), out)
		}
	case KindArray:
		for i, item := range v.arr {
			item.extractPaths(append(path, strconv.Itoa(i)), out)
		}
	}
}

// ExtractScalars recursively walks the value, returning only the
// non-container leaves with their paths, for GIN/full-text indexing of
// scalar values.
func (v Value) ExtractScalars() []PathValue {
	var out []PathValue
	v.extractScalars(nil, &out)
	return out
}

func (v Value) extractScalars(path []string, out *[]PathValue) {
	switch v.kind {
	case KindObject:
		for _, e := range v.obj {
			e.Val.extractScalars(append(path, e.Key), out)
		}
	case KindArray:
		for i, item := range v.arr {
			item.extractScalars(append(path, strconv.Itoa(i)), out)
		}
	default:
		cp := append([]string(nil), path...)
		*out = append(*out, PathValue{Path: cp, Val: v})
	}
}
