// Package constraint implements the checks that run inside the row
// store's insert/update/delete paths beyond what a single table's
// indexes enforce on their own: foreign-key RESTRICT/CASCADE resolution
// and deferrable-constraint queuing.
package constraint

import (
	"github.com/kasuganosora/cynos/dberr"
	"github.com/kasuganosora/cynos/schema"
	"github.com/kasuganosora/cynos/value"
)

// TableAccess is the minimal surface a Checker needs from the table
// cache to resolve foreign keys without importing package storage
// (storage imports constraint, not the reverse).
type TableAccess interface {
	GetRows(table string) ([]*value.Row, bool)
	GetSchema(table string) (schema.Table, bool)
	DeleteRow(table string, id value.RowId) error
}

// CascadeDelete is one row a CASCADE expansion requires deleting,
// computed before any deltas are emitted.
type CascadeDelete struct {
	Table string
	ID    value.RowId
}

// Checker validates and resolves the constraints declared on one table.
type Checker struct {
	table schema.Table
	db    TableAccess
}

func New(t schema.Table, db TableAccess) *Checker {
	return &Checker{table: t, db: db}
}

// CheckNotNull returns a NullConstraint error for the first NOT NULL
// column holding Null in values, or nil.
func (c *Checker) CheckNotNull(values []value.Value) error {
	for _, col := range c.table.NotNullColumns() {
		_, pos := c.table.GetColumn(col)
		if pos >= 0 && pos < len(values) && values[pos].IsNull() {
			return dberr.NewNullConstraint(c.table.Name, col)
		}
	}
	return nil
}

// CheckForeignKeys verifies, for every FK on this table, that the
// referenced row exists in the parent table (unless the FK column's
// value is Null, which never violates a FK per SQL semantics).
func (c *Checker) CheckForeignKeys(values []value.Value) error {
	for _, fk := range c.table.ForeignKeys() {
		_, pos := c.table.GetColumn(fk.Column)
		if pos < 0 || pos >= len(values) {
			continue
		}
		v := values[pos]
		if v.IsNull() {
			continue
		}
		parentSchema, ok := c.db.GetSchema(fk.RefTable)
		if !ok {
			return dberr.NewTableNotFound(fk.RefTable)
		}
		_, refPos := parentSchema.GetColumn(fk.RefColumn)
		if refPos < 0 {
			return dberr.NewColumnNotFound(fk.RefTable, fk.RefColumn)
		}
		rows, _ := c.db.GetRows(fk.RefTable)
		found := false
		for _, r := range rows {
			if value.Equal(r.Get(refPos), v) {
				found = true
				break
			}
		}
		if !found {
			return dberr.NewForeignKeyViolation(c.table.Name, fk.Column, "referenced row does not exist in "+fk.RefTable)
		}
	}
	return nil
}

// ExpandCascade computes the child rows a CASCADE delete of the parent
// row identified by parentValues must also remove, across every table
// whose FK references this table with action=Cascade. children lists
// the candidate child tables' schemas, in table-declaration order, so
// dependent views see the parent removal before the child removal; each
// child's live rows are read through db.GetRows.
func ExpandCascade(parentTable string, parentValues []value.Value, parentSchema schema.Table, children []ChildTable, db TableAccess) ([]CascadeDelete, error) {
	var out []CascadeDelete
	for _, child := range children {
		for _, fk := range child.Schema.ForeignKeys() {
			if fk.RefTable != parentTable || fk.Action != schema.FKCascade {
				continue
			}
			_, refPos := parentSchema.GetColumn(fk.RefColumn)
			if refPos < 0 {
				continue
			}
			parentKey := parentValues[refPos]
			if parentKey.IsNull() {
				continue
			}
			_, childPos := child.Schema.GetColumn(fk.Column)
			if childPos < 0 {
				continue
			}
			rows, _ := db.GetRows(child.Schema.Name)
			for _, r := range rows {
				if value.Equal(r.Get(childPos), parentKey) {
					out = append(out, CascadeDelete{Table: child.Schema.Name, ID: r.ID})
				}
			}
		}
	}
	return out, nil
}

// ChildTable names a table and its schema for cascade resolution.
type ChildTable struct {
	Schema schema.Table
}

// Deferred is a constraint queued for validation at commit rather than
// at the point of mutation.
type Deferred struct {
	Table  string
	Values []value.Value
	Check  func() error
}

// DeferredQueue accumulates Deferred constraints staged during a
// transaction and validates them all at commit time.
type DeferredQueue struct {
	items []Deferred
}

func (q *DeferredQueue) Enqueue(d Deferred) { q.items = append(q.items, d) }

// Validate runs every queued check in enqueue order, returning the first
// error encountered.
func (q *DeferredQueue) Validate() error {
	for _, d := range q.items {
		if err := d.Check(); err != nil {
			return err
		}
	}
	return nil
}

func (q *DeferredQueue) Len() int { return len(q.items) }
