// Package checkpoint implements optional snapshot/restore for an
// engine.Database, backed by a Badger key-value store. This is
// explicitly an embedding-layer concern: nothing in the core
// transaction path calls into this package; only a host process
// (cmd/cynosd) does, at startup and shutdown. The key-prefix scheme
// (schema:/rows:) and the badger.Open/Update/View usage pattern follow
// a per-row persistence layout generalized to whole-table
// binary-encoded blobs, since this engine's row format is already a
// bit-exact encoder (the binary package).
package checkpoint

import (
	"bytes"
	"encoding/gob"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/kasuganosora/cynos/binary"
	"github.com/kasuganosora/cynos/engine"
	"github.com/kasuganosora/cynos/schema"
	"github.com/kasuganosora/cynos/value"
)

const (
	prefixSchema = "schema:"
	prefixRows   = "rows:"
)

func schemaKey(table string) []byte { return []byte(prefixSchema + table) }
func rowsKey(table string) []byte   { return []byte(prefixRows + table) }

// Open opens (or creates) a Badger store at dir. Pass inMemory=true for
// an ephemeral store useful in tests.
func Open(dir string, inMemory bool) (*badger.DB, error) {
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithLogger(nil)
	return badger.Open(opts)
}

// Save walks every table registered in db's catalog and writes its
// schema and current row set into store, under schema:<name> and
// rows:<name> keys respectively.
func Save(db *engine.Database, store *badger.DB) error {
	tables := db.TableNames()
	for _, name := range tables {
		t, ok := db.TableSchema(name)
		if !ok {
			continue
		}
		schemaBuf, err := encodeSchema(t)
		if err != nil {
			return fmt.Errorf("checkpoint: encode schema %q: %w", name, err)
		}
		rows, err := db.Scan(name)
		if err != nil {
			return fmt.Errorf("checkpoint: scan %q: %w", name, err)
		}
		layout := binary.NewSchemaLayout(t)
		rowBuf, err := binary.NewEncoder(layout).Encode(rows)
		if err != nil {
			return fmt.Errorf("checkpoint: encode rows %q: %w", name, err)
		}
		err = store.Update(func(txn *badger.Txn) error {
			if err := txn.Set(schemaKey(name), schemaBuf); err != nil {
				return err
			}
			return txn.Set(rowsKey(name), rowBuf)
		})
		if err != nil {
			return fmt.Errorf("checkpoint: write %q: %w", name, err)
		}
	}
	return nil
}

// Load rebuilds a fresh *engine.Database from every table snapshot found
// in store.
func Load(store *badger.DB) (*engine.Database, error) {
	db := engine.NewDatabase()
	var tableNames []string
	err := store.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(prefixSchema)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			tableNames = append(tableNames, string(key[len(prefixSchema):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list tables: %w", err)
	}

	for _, name := range tableNames {
		var t schema.Table
		var rowBuf []byte
		err := store.View(func(txn *badger.Txn) error {
			item, err := txn.Get(schemaKey(name))
			if err != nil {
				return err
			}
			schemaBuf, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			t, err = decodeSchema(schemaBuf)
			if err != nil {
				return err
			}
			item, err = txn.Get(rowsKey(name))
			if err != nil {
				return err
			}
			rowBuf, err = item.ValueCopy(nil)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("checkpoint: read %q: %w", name, err)
		}
		if err := db.CreateTable(t); err != nil {
			return nil, fmt.Errorf("checkpoint: restore schema %q: %w", name, err)
		}
		layout := binary.NewSchemaLayout(t)
		rows, err := binary.Decode(rowBuf, layout)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: decode rows %q: %w", name, err)
		}
		if err := db.RestoreRows(name, rows); err != nil {
			return nil, fmt.Errorf("checkpoint: restore rows %q: %w", name, err)
		}
	}
	return db, nil
}

// gobColumn/gobTable/gobValue are gob-friendly mirrors of schema.Table:
// schema.Column.Default is a *value.Value with unexported fields, which
// gob cannot serialize directly, so values are captured through their
// exported accessors instead.
type gobValue struct {
	Kind    value.Kind
	Boolean bool
	I32     int32
	I64     int64
	F64     float64
	Str     string
	Bytes   []byte
}

func toGobValue(v value.Value) gobValue {
	return gobValue{
		Kind: v.Kind(), Boolean: v.AsBool(), I32: v.AsInt32(), I64: v.AsInt64(),
		F64: v.AsFloat64(), Str: v.AsString(), Bytes: v.AsBytes(),
	}
}

func fromGobValue(g gobValue) value.Value {
	switch g.Kind {
	case value.KindNull:
		return value.Null()
	case value.KindBoolean:
		return value.Bool(g.Boolean)
	case value.KindInt32:
		return value.Int32(g.I32)
	case value.KindInt64:
		return value.Int64(g.I64)
	case value.KindFloat64:
		return value.Float64(g.F64)
	case value.KindDateTime:
		return value.DateTime(g.I64)
	case value.KindString:
		return value.String(g.Str)
	case value.KindBytes:
		return value.Bytes(g.Bytes)
	case value.KindJsonb:
		return value.Jsonb(g.Bytes)
	default:
		return value.Null()
	}
}

type gobColumn struct {
	Name       string
	DataType   value.DataType
	Nullable   bool
	Unique     bool
	HasDefault bool
	Default    gobValue
	Position   int
}

type gobForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
	Action    schema.FKAction
	Timing    schema.FKTiming
}

type gobConstraint struct {
	Kind    schema.ConstraintKind
	Columns []string
	FK      gobForeignKey
}

type gobIndexColumn struct {
	Name          string
	Desc          bool
	AutoIncrement bool
}

type gobIndexDef struct {
	Name      string
	Table     string
	Columns   []gobIndexColumn
	Unique    bool
	IndexType schema.IndexType
}

type gobTable struct {
	Name        string
	Columns     []gobColumn
	Constraints []gobConstraint
	Indexes     []gobIndexDef
}

func encodeSchema(t schema.Table) ([]byte, error) {
	gt := gobTable{Name: t.Name}
	for _, c := range t.Columns {
		gc := gobColumn{Name: c.Name, DataType: c.DataType, Nullable: c.Nullable, Unique: c.Unique, Position: c.Position}
		if c.Default != nil {
			gc.HasDefault = true
			gc.Default = toGobValue(*c.Default)
		}
		gt.Columns = append(gt.Columns, gc)
	}
	for _, c := range t.Constraints {
		gt.Constraints = append(gt.Constraints, gobConstraint{
			Kind: c.Kind, Columns: c.Columns,
			FK: gobForeignKey{Column: c.FK.Column, RefTable: c.FK.RefTable, RefColumn: c.FK.RefColumn, Action: c.FK.Action, Timing: c.FK.Timing},
		})
	}
	for _, idx := range t.Indexes {
		gi := gobIndexDef{Name: idx.Name, Table: idx.Table, Unique: idx.Unique, IndexType: idx.IndexType}
		for _, col := range idx.Columns {
			gi.Columns = append(gi.Columns, gobIndexColumn{Name: col.Name, Desc: col.Desc, AutoIncrement: col.AutoIncrement})
		}
		gt.Indexes = append(gt.Indexes, gi)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gt); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeSchema(buf []byte) (schema.Table, error) {
	var gt gobTable
	if err := gob.NewDecoder(bytes.NewReader(buf)).Decode(&gt); err != nil {
		return schema.Table{}, err
	}
	t := schema.Table{Name: gt.Name}
	for _, gc := range gt.Columns {
		c := schema.Column{Name: gc.Name, DataType: gc.DataType, Nullable: gc.Nullable, Unique: gc.Unique, Position: gc.Position}
		if gc.HasDefault {
			v := fromGobValue(gc.Default)
			c.Default = &v
		}
		t.Columns = append(t.Columns, c)
	}
	for _, gc := range gt.Constraints {
		t.Constraints = append(t.Constraints, schema.Constraint{
			Kind: gc.Kind, Columns: gc.Columns,
			FK: schema.ForeignKey{Column: gc.FK.Column, RefTable: gc.FK.RefTable, RefColumn: gc.FK.RefColumn, Action: gc.FK.Action, Timing: gc.FK.Timing},
		})
	}
	for _, gi := range gt.Indexes {
		idx := schema.IndexDef{Name: gi.Name, Table: gi.Table, Unique: gi.Unique, IndexType: gi.IndexType}
		for _, gcol := range gi.Columns {
			idx.Columns = append(idx.Columns, schema.IndexColumn{Name: gcol.Name, Desc: gcol.Desc, AutoIncrement: gcol.AutoIncrement})
		}
		t.Indexes = append(t.Indexes, idx)
	}
	return t, nil
}
