// Package schema implements the table/column/constraint/index-definition
// metadata kernel.
package schema

import (
	"github.com/kasuganosora/cynos/dberr"
	"github.com/kasuganosora/cynos/value"
)

// Column describes one column of a table.
type Column struct {
	Name     string
	DataType value.DataType
	Nullable bool
	Unique   bool
	Default  *value.Value // nil => implicit default (see DefaultValue)
	Position int
}

// DefaultValue resolves a column's effective default: its declared
// default if set, else Null when nullable, else the type's zero value.
func (c Column) DefaultValue() value.Value {
	if c.Default != nil {
		return *c.Default
	}
	if c.Nullable {
		return value.Null()
	}
	return value.ZeroValue(c.DataType)
}

// FKAction is the referential action taken on the parent side of a FK.
type FKAction int

const (
	FKRestrict FKAction = iota
	FKCascade
)

// FKTiming controls when a foreign-key constraint is validated.
type FKTiming int

const (
	FKImmediate FKTiming = iota
	FKDeferrable
)

// ForeignKey describes a single foreign-key relationship.
type ForeignKey struct {
	Column   string
	RefTable string
	RefColumn string
	Action   FKAction
	Timing   FKTiming
}

// ConstraintKind enumerates the constraint variants carried by a table,
// grounded on original_source/crates/core/src/schema/constraint.rs.
type ConstraintKind int

const (
	ConstraintPrimaryKey ConstraintKind = iota
	ConstraintNotNull
	ConstraintUnique
	ConstraintForeignKey
)

// Constraint is a single table-level constraint.
type Constraint struct {
	Kind    ConstraintKind
	Columns []string   // PrimaryKey / Unique / NotNull(single)
	FK      ForeignKey // valid iff Kind == ConstraintForeignKey
}

// IndexType enumerates the index fabric's backing structures.
type IndexType int

const (
	IndexBTree IndexType = iota
	IndexHash
	IndexGin
)

// IndexColumn is one column participating in an index, with direction and
// an auto-increment flag (at most one indexed column may carry it).
type IndexColumn struct {
	Name          string
	Desc          bool
	AutoIncrement bool
}

// IndexDef describes one index over a table.
type IndexDef struct {
	Name      string
	Table     string
	Columns   []IndexColumn
	Unique    bool
	IndexType IndexType
}

// Table is the full schema for one table: ordered columns plus
// constraints. GIN indexes are never unique (enforced at construction).
type Table struct {
	Name        string
	Columns     []Column
	Constraints []Constraint
	Indexes     []IndexDef
}

// GetColumn looks up a column by name.
func (t *Table) GetColumn(name string) (*Column, int) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], i
		}
	}
	return nil, -1
}

// PrimaryKeyColumns returns the primary key's column names, or nil if
// the table has none.
func (t *Table) PrimaryKeyColumns() []string {
	for _, c := range t.Constraints {
		if c.Kind == ConstraintPrimaryKey {
			return c.Columns
		}
	}
	return nil
}

// NotNullColumns returns the set of column names with a NOT NULL
// constraint (independent of Column.Nullable, which a builder should keep
// in sync but which the executor must not rely on exclusively).
func (t *Table) NotNullColumns() []string {
	var out []string
	for _, c := range t.Constraints {
		if c.Kind == ConstraintNotNull {
			out = append(out, c.Columns...)
		}
	}
	return out
}

// ForeignKeys returns every foreign-key constraint on the table.
func (t *Table) ForeignKeys() []ForeignKey {
	var out []ForeignKey
	for _, c := range t.Constraints {
		if c.Kind == ConstraintForeignKey {
			out = append(out, c.FK)
		}
	}
	return out
}

// Builder assembles a Table incrementally, validating as it goes, in a
// fluent TableBuilder style.
type Builder struct {
	table Table
	err   error
}

func NewBuilder(name string) *Builder {
	if name == "" {
		return &Builder{err: dberr.NewInvalidSchema("table name must not be empty")}
	}
	return &Builder{table: Table{Name: name}}
}

func (b *Builder) AddColumn(name string, dt value.DataType) *Builder {
	if b.err != nil {
		return b
	}
	if _, idx := b.table.GetColumn(name); idx >= 0 {
		b.err = dberr.NewInvalidSchema("duplicate column: " + name)
		return b
	}
	b.table.Columns = append(b.table.Columns, Column{
		Name:     name,
		DataType: dt,
		Nullable: dt.NullableByDefault(),
		Position: len(b.table.Columns),
	})
	return b
}

func (b *Builder) Nullable(nullable bool) *Builder {
	if b.err != nil || len(b.table.Columns) == 0 {
		return b
	}
	b.table.Columns[len(b.table.Columns)-1].Nullable = nullable
	return b
}

func (b *Builder) Unique() *Builder {
	if b.err != nil || len(b.table.Columns) == 0 {
		return b
	}
	col := &b.table.Columns[len(b.table.Columns)-1]
	col.Unique = true
	b.table.Constraints = append(b.table.Constraints, Constraint{Kind: ConstraintUnique, Columns: []string{col.Name}})
	b.table.Indexes = append(b.table.Indexes, IndexDef{
		Name:      "idx_" + b.table.Name + "_" + col.Name,
		Table:     b.table.Name,
		Columns:   []IndexColumn{{Name: col.Name}},
		Unique:    true,
		IndexType: IndexBTree,
	})
	return b
}

func (b *Builder) AddPrimaryKey(cols []string, autoIncrement bool) *Builder {
	if b.err != nil {
		return b
	}
	for _, c := range cols {
		if _, idx := b.table.GetColumn(c); idx < 0 {
			b.err = dberr.NewColumnNotFound(b.table.Name, c)
			return b
		}
	}
	b.table.Constraints = append(b.table.Constraints, Constraint{Kind: ConstraintPrimaryKey, Columns: cols})
	icols := make([]IndexColumn, len(cols))
	for i, c := range cols {
		icols[i] = IndexColumn{Name: c, AutoIncrement: autoIncrement && i == 0 && len(cols) == 1}
	}
	b.table.Indexes = append(b.table.Indexes, IndexDef{
		Name:      "pk_" + b.table.Name,
		Table:     b.table.Name,
		Columns:   icols,
		Unique:    true,
		IndexType: IndexBTree,
	})
	return b
}

func (b *Builder) AddNotNull(col string) *Builder {
	if b.err != nil {
		return b
	}
	if c, idx := b.table.GetColumn(col); idx >= 0 {
		c.Nullable = false
	} else {
		b.err = dberr.NewColumnNotFound(b.table.Name, col)
		return b
	}
	b.table.Constraints = append(b.table.Constraints, Constraint{Kind: ConstraintNotNull, Columns: []string{col}})
	return b
}

func (b *Builder) AddForeignKey(col, refTable, refColumn string, action FKAction, timing FKTiming) *Builder {
	if b.err != nil {
		return b
	}
	if _, idx := b.table.GetColumn(col); idx < 0 {
		b.err = dberr.NewColumnNotFound(b.table.Name, col)
		return b
	}
	b.table.Constraints = append(b.table.Constraints, Constraint{
		Kind: ConstraintForeignKey,
		FK:   ForeignKey{Column: col, RefTable: refTable, RefColumn: refColumn, Action: action, Timing: timing},
	})
	return b
}

func (b *Builder) AddIndex(name string, cols []IndexColumn, unique bool, it IndexType) *Builder {
	if b.err != nil {
		return b
	}
	if it == IndexGin && unique {
		b.err = dberr.NewInvalidSchema("GIN indexes cannot be unique")
		return b
	}
	b.table.Indexes = append(b.table.Indexes, IndexDef{Name: name, Table: b.table.Name, Columns: cols, Unique: unique, IndexType: it})
	return b
}

func (b *Builder) Build() (Table, error) {
	if b.err != nil {
		return Table{}, b.err
	}
	return b.table, nil
}
