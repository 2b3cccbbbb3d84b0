// Package storage implements the table cache, mutation journal,
// cooperative lock manager, and transaction state machine that sit
// between the engine's public surface and each table's row store.
package storage

import (
	"github.com/kasuganosora/cynos/dberr"
	"github.com/kasuganosora/cynos/rowstore"
	"github.com/kasuganosora/cynos/schema"
	"github.com/kasuganosora/cynos/value"
)

// Cache holds table_name → RowStore in insertion order.
type Cache struct {
	tables map[string]*rowstore.RowStore
	order  []string
}

func NewCache() *Cache {
	return &Cache{tables: make(map[string]*rowstore.RowStore)}
}

func (c *Cache) CreateTable(t schema.Table) error {
	if _, ok := c.tables[t.Name]; ok {
		return dberr.NewInvalidSchema("table already exists: " + t.Name)
	}
	c.tables[t.Name] = rowstore.New(t)
	c.order = append(c.order, t.Name)
	return nil
}

func (c *Cache) DropTable(name string) error {
	if _, ok := c.tables[name]; !ok {
		return dberr.NewTableNotFound(name)
	}
	delete(c.tables, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (c *Cache) GetTable(name string) (*rowstore.RowStore, error) {
	rs, ok := c.tables[name]
	if !ok {
		return nil, dberr.NewTableNotFound(name)
	}
	return rs, nil
}

// TableNames returns every table name in creation order.
func (c *Cache) TableNames() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

func (c *Cache) ClearTable(name string) error {
	rs, err := c.GetTable(name)
	if err != nil {
		return err
	}
	rs.Clear()
	return nil
}

func (c *Cache) ClearAll() {
	for _, name := range c.order {
		c.tables[name].Clear()
	}
}

// RowCount sums the row count of every table, used by aggregate cache
// statistics.
func (c *Cache) RowCount() int {
	n := 0
	for _, rs := range c.tables {
		n += rs.Len()
	}
	return n
}

// GetRows implements constraint.TableAccess.
func (c *Cache) GetRows(table string) ([]*value.Row, bool) {
	rs, ok := c.tables[table]
	if !ok {
		return nil, false
	}
	return rs.Scan(), true
}

// GetSchema implements constraint.TableAccess.
func (c *Cache) GetSchema(table string) (schema.Table, bool) {
	rs, ok := c.tables[table]
	if !ok {
		return schema.Table{}, false
	}
	return rs.Table(), true
}

// DeleteRow implements constraint.TableAccess.
func (c *Cache) DeleteRow(table string, id value.RowId) error {
	rs, err := c.GetTable(table)
	if err != nil {
		return err
	}
	_, err = rs.Delete(id)
	return err
}
