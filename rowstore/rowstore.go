// Package rowstore implements a single table's owned state: its row map
// and the set of indexes kept synchronously consistent with it.
package rowstore

import (
	"fmt"

	"github.com/kasuganosora/cynos/dberr"
	"github.com/kasuganosora/cynos/index"
	"github.com/kasuganosora/cynos/schema"
	"github.com/kasuganosora/cynos/value"
)

// ColumnIndex binds one schema.IndexDef to its live index.Index instance
// (Nullable-wrapped when any indexed column is nullable) plus the column
// positions the index key is projected from, in declaration order.
type ColumnIndex struct {
	Def   schema.IndexDef
	Idx   index.Index
	Cols  []int // column positions, in IndexDef.Columns order
}

// RowStore owns one table's rows and indexes. It is not internally
// mutex-guarded: the engine borrows it exclusively during a transaction.
type RowStore struct {
	table      schema.Table
	rows       map[value.RowId]*value.Row
	order      []value.RowId // insertion order, for stable full scans
	indexes    []*ColumnIndex
	autoIncCol int // column position with AutoIncrement, or -1
	autoIncIdx *ColumnIndex
}

// New builds a RowStore for t, constructing one index instance per
// schema.IndexDef (Nullable-wrapped whenever any projected column is
// nullable).
func New(t schema.Table) *RowStore {
	rs := &RowStore{
		table:      t,
		rows:       make(map[value.RowId]*value.Row),
		autoIncCol: -1,
	}
	for _, def := range t.Indexes {
		rs.indexes = append(rs.indexes, rs.buildIndex(t, def))
	}
	for _, ic := range indexAutoIncrementColumn(t) {
		rs.autoIncCol = ic
		break
	}
	for _, ci := range rs.indexes {
		for _, c := range ci.Def.Columns {
			if c.AutoIncrement {
				rs.autoIncIdx = ci
			}
		}
	}
	return rs
}

func indexAutoIncrementColumn(t schema.Table) []int {
	var out []int
	for _, def := range t.Indexes {
		for _, c := range def.Columns {
			if c.AutoIncrement {
				col, pos := t.GetColumn(c.Name)
				if col != nil {
					out = append(out, pos)
				}
			}
		}
	}
	return out
}

func (rs *RowStore) buildIndex(t schema.Table, def schema.IndexDef) *ColumnIndex {
	cols := make([]int, len(def.Columns))
	nullable := false
	for i, c := range def.Columns {
		col, pos := t.GetColumn(c.Name)
		cols[i] = pos
		if col != nil && col.Nullable {
			nullable = true
		}
	}
	var inner index.Index
	switch def.IndexType {
	case schema.IndexHash:
		inner = index.NewHash(def.Unique)
	case schema.IndexGin:
		inner = index.NewGin()
	default:
		inner = index.NewBTree(def.Unique)
	}
	if nullable {
		inner = index.NewNullable(inner)
	}
	return &ColumnIndex{Def: def, Idx: inner, Cols: cols}
}

// key projects a row's values onto an index's columns. Single-column
// indexes key directly on that column's Value; multi-column indexes key
// on a Jsonb-free composite encoded as a Bytes value so that the
// underlying index's comparable hashKey/ordering machinery stays
// type-uniform. Most indexes in this engine are single-column, so the
// common path never allocates.
func projectKey(row *value.Row, cols []int) value.Value {
	if len(cols) == 1 {
		return row.Get(cols[0])
	}
	var buf []byte
	for _, c := range cols {
		v := row.Get(c)
		buf = append(buf, fmt.Sprintf("%v", v)...)
		buf = append(buf, 0)
	}
	return value.Bytes(buf)
}

// Table returns the schema this store was constructed from.
func (rs *RowStore) Table() schema.Table { return rs.table }

func (rs *RowStore) Len() int { return len(rs.rows) }

// Insert checks NOT NULL and unique constraints under the combined index
// set; on any failure the row is not stored and no index is touched.
func (rs *RowStore) Insert(values []value.Value) (*value.Row, error) {
	values = append([]value.Value(nil), values...)
	for _, col := range rs.table.NotNullColumns() {
		_, pos := rs.table.GetColumn(col)
		if pos >= 0 && pos < len(values) && values[pos].IsNull() {
			return nil, dberr.NewNullConstraint(rs.table.Name, col)
		}
	}

	if rs.autoIncIdx != nil && rs.autoIncCol >= 0 && rs.autoIncCol < len(values) && values[rs.autoIncCol].IsNull() {
		next := int64(1)
		if max, ok := rs.autoIncIdx.Idx.Stats().MaxKeyEncountered(); ok {
			next = max + 1
		}
		values[rs.autoIncCol] = value.Int64(next)
	}

	id := value.NextRowID()
	return rs.insertAt(id, values)
}

// InsertWithID restores a row under a caller-chosen RowId, bypassing
// auto-increment assignment and NOT NULL checks. Used only by
// transaction rollback to reinstate a row deleted earlier in the same
// transaction with its original identity.
func (rs *RowStore) InsertWithID(id value.RowId, values []value.Value) (*value.Row, error) {
	return rs.insertAt(id, append([]value.Value(nil), values...))
}

func (rs *RowStore) insertAt(id value.RowId, values []value.Value) (*value.Row, error) {
	row := value.NewRow(id, values)

	for _, ci := range rs.indexes {
		key := projectKey(row, ci.Cols)
		if ci.Def.Unique && !key.IsNull() {
			if existing := ci.Idx.Get(key); len(existing) > 0 {
				return nil, dberr.NewUniqueConstraint(rs.table.Name, ci.Def.Name, key)
			}
		}
	}

	for _, ci := range rs.indexes {
		key := projectKey(row, ci.Cols)
		_ = ci.Idx.Add(key, id)
	}
	rs.rows[id] = row
	rs.order = append(rs.order, id)
	return row, nil
}

// Update recomputes before/after keys for each touched index; entries
// are replaced only where the projected key actually changed. Version is
// incremented.
func (rs *RowStore) Update(id value.RowId, newValues []value.Value) (*value.Row, error) {
	old, ok := rs.rows[id]
	if !ok {
		return nil, dberr.NewNotFound("row not found")
	}
	for _, col := range rs.table.NotNullColumns() {
		_, pos := rs.table.GetColumn(col)
		if pos >= 0 && pos < len(newValues) && newValues[pos].IsNull() {
			return nil, dberr.NewNullConstraint(rs.table.Name, col)
		}
	}

	newRow := value.NewRow(id, newValues)
	newRow.Version = old.Version + 1

	for _, ci := range rs.indexes {
		oldKey := projectKey(old, ci.Cols)
		newKey := projectKey(newRow, ci.Cols)
		if value.Equal(oldKey, newKey) {
			continue
		}
		if ci.Def.Unique && !newKey.IsNull() {
			if existing := ci.Idx.Get(newKey); len(existing) > 0 {
				return nil, dberr.NewUniqueConstraint(rs.table.Name, ci.Def.Name, newKey)
			}
		}
	}

	for _, ci := range rs.indexes {
		oldKey := projectKey(old, ci.Cols)
		newKey := projectKey(newRow, ci.Cols)
		if value.Equal(oldKey, newKey) {
			continue
		}
		ci.Idx.Remove(oldKey, &id)
		_ = ci.Idx.Add(newKey, id)
	}

	rs.rows[id] = newRow
	return newRow, nil
}

// Delete removes the row from every index, then from the rows map.
func (rs *RowStore) Delete(id value.RowId) (*value.Row, error) {
	row, ok := rs.rows[id]
	if !ok {
		return nil, dberr.NewNotFound("row not found")
	}
	for _, ci := range rs.indexes {
		key := projectKey(row, ci.Cols)
		ci.Idx.Remove(key, &id)
	}
	delete(rs.rows, id)
	for i, rid := range rs.order {
		if rid == id {
			rs.order = append(rs.order[:i], rs.order[i+1:]...)
			break
		}
	}
	return row, nil
}

// DeleteBatch deletes each id in turn; equivalent to repeated Delete.
func (rs *RowStore) DeleteBatch(ids []value.RowId) ([]*value.Row, error) {
	out := make([]*value.Row, 0, len(ids))
	for _, id := range ids {
		row, err := rs.Delete(id)
		if err != nil {
			return out, err
		}
		out = append(out, row)
	}
	return out, nil
}

// Clear empties rows and every index in a single pass. Auto-increment
// state (tracked inside each index's Stats) is preserved.
func (rs *RowStore) Clear() {
	rs.rows = make(map[value.RowId]*value.Row)
	rs.order = nil
	for _, ci := range rs.indexes {
		stats := ci.Idx.Stats()
		maxKey, hasMax := stats.MaxKeyEncountered()
		ci.Idx.Clear()
		if hasMax {
			ci.Idx.Stats().ObserveKey(value.Int64(maxKey))
		}
	}
}

// Scan yields all rows in insertion order.
func (rs *RowStore) Scan() []*value.Row {
	out := make([]*value.Row, 0, len(rs.order))
	for _, id := range rs.order {
		out = append(out, rs.rows[id])
	}
	return out
}

func (rs *RowStore) Get(id value.RowId) (*value.Row, bool) {
	row, ok := rs.rows[id]
	return row, ok
}

func (rs *RowStore) GetMany(ids []value.RowId) []*value.Row {
	out := make([]*value.Row, 0, len(ids))
	for _, id := range ids {
		if row, ok := rs.rows[id]; ok {
			out = append(out, row)
		}
	}
	return out
}

// Index looks up the live index instance backing a named IndexDef.
func (rs *RowStore) Index(name string) (*ColumnIndex, bool) {
	for _, ci := range rs.indexes {
		if ci.Def.Name == name {
			return ci, true
		}
	}
	return nil, false
}

// Indexes returns every index instance this store maintains, in schema
// declaration order.
func (rs *RowStore) Indexes() []*ColumnIndex { return rs.indexes }
