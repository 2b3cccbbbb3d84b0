package storage

import (
	"sync/atomic"

	"github.com/kasuganosora/cynos/constraint"
	"github.com/kasuganosora/cynos/dberr"
	"github.com/kasuganosora/cynos/diff"
	"github.com/kasuganosora/cynos/value"
)

// State is a Transaction's lifecycle stage.
type State int

const (
	Active State = iota
	Committed
	RolledBack
)

var txIDGen atomic.Uint64

func nextTxID() TxID { return TxID(txIDGen.Add(1)) }

// TableDelta is one table's delta batch, produced at commit and handed
// to whatever DeltaSink the embedding wired in (normally
// reactive.QueryRegistry).
type TableDelta struct {
	Table string
	Batch diff.Batch[*value.Row]
}

// DeltaSink receives per-table delta batches at commit, in a
// deterministic table order. Implemented by reactive.QueryRegistry;
// kept as an interface here so storage never imports package reactive.
type DeltaSink interface {
	OnTableChange(table string, batch diff.Batch[*value.Row])
}

// Transaction stages mutations against a Cache under the cooperative
// LockManager and records them in a Journal for rollback.
type Transaction struct {
	ID      TxID
	cache   *Cache
	locks   *LockManager
	journal Journal
	state   State
	sink    DeltaSink
}

// BeginTransaction starts a new Active transaction against cache, using
// locks for cooperative table locking. sink may be nil (no reactive
// fan-out, e.g. for tests exercising storage in isolation).
func BeginTransaction(cache *Cache, locks *LockManager, sink DeltaSink) *Transaction {
	return &Transaction{ID: nextTxID(), cache: cache, locks: locks, sink: sink}
}

func (tx *Transaction) requireActive() error {
	if tx.state != Active {
		return dberr.NewInvalidOperation("transaction is not active")
	}
	return nil
}

func (tx *Transaction) lockTable(table string) error {
	return tx.locks.AcquireExclusive(table, tx.ID)
}

// Insert stages an insert: acquires an exclusive lock on table, applies
// it to the cache, and journals it.
func (tx *Transaction) Insert(table string, values []value.Value) (*value.Row, error) {
	if err := tx.requireActive(); err != nil {
		return nil, err
	}
	if err := tx.lockTable(table); err != nil {
		return nil, err
	}
	rs, err := tx.cache.GetTable(table)
	if err != nil {
		return nil, err
	}
	checker := constraint.New(rs.Table(), tx.cache)
	if err := checker.CheckForeignKeys(values); err != nil {
		return nil, err
	}
	row, err := rs.Insert(values)
	if err != nil {
		return nil, err
	}
	tx.journal.Append(JournalEntry{Table: table, Kind: JournalInsert, Row: row})
	return row, nil
}

// Update stages an update of row id to newValues.
func (tx *Transaction) Update(table string, id value.RowId, newValues []value.Value) error {
	if err := tx.requireActive(); err != nil {
		return err
	}
	if err := tx.lockTable(table); err != nil {
		return err
	}
	rs, err := tx.cache.GetTable(table)
	if err != nil {
		return err
	}
	old, ok := rs.Get(id)
	if !ok {
		return dberr.NewNotFound("row not found")
	}
	checker := constraint.New(rs.Table(), tx.cache)
	if err := checker.CheckForeignKeys(newValues); err != nil {
		return err
	}
	newRow, err := rs.Update(id, newValues)
	if err != nil {
		return err
	}
	tx.journal.Append(JournalEntry{Table: table, Kind: JournalUpdate, OldRow: old, NewRow: newRow})
	return nil
}

// Delete stages a delete of row id, expanding any CASCADE foreign keys
// declared by other tables against this one into additional journal
// entries before returning.
func (tx *Transaction) Delete(table string, id value.RowId) error {
	if err := tx.requireActive(); err != nil {
		return err
	}
	return tx.deleteWithCascade(table, id)
}

func (tx *Transaction) deleteWithCascade(table string, id value.RowId) error {
	if err := tx.lockTable(table); err != nil {
		return err
	}
	rs, err := tx.cache.GetTable(table)
	if err != nil {
		return err
	}
	row, ok := rs.Get(id)
	if !ok {
		return dberr.NewNotFound("row not found")
	}

	parentSchema := rs.Table()
	var children []constraint.ChildTable
	for _, name := range tx.cache.TableNames() {
		if name == table {
			continue
		}
		childRS, _ := tx.cache.GetTable(name)
		children = append(children, constraint.ChildTable{Schema: childRS.Table()})
	}
	cascades, err := constraint.ExpandCascade(table, row.Values, parentSchema, children, tx.cache)
	if err != nil {
		return err
	}

	deleted, err := rs.Delete(id)
	if err != nil {
		return err
	}
	tx.journal.Append(JournalEntry{Table: table, Kind: JournalDelete, Row: deleted})

	for _, cd := range cascades {
		if err := tx.deleteWithCascade(cd.Table, cd.ID); err != nil {
			return err
		}
	}
	return nil
}

// Commit releases locks, collects per-table deltas from the journal in
// deterministic table order, fans them out to the DeltaSink, and
// transitions to Committed.
func (tx *Transaction) Commit() error {
	if err := tx.requireActive(); err != nil {
		return err
	}
	deltas := tx.collectDeltas()
	tx.locks.ReleaseAll(tx.ID)
	tx.state = Committed
	if tx.sink != nil {
		for _, td := range deltas {
			tx.sink.OnTableChange(td.Table, td.Batch)
		}
	}
	tx.journal.Clear()
	return nil
}

func (tx *Transaction) collectDeltas() []TableDelta {
	byTable := make(map[string]diff.Batch[*value.Row])
	for _, e := range tx.journal.Entries() {
		switch e.Kind {
		case JournalInsert:
			byTable[e.Table] = append(byTable[e.Table], diff.Insert(e.Row))
		case JournalDelete:
			byTable[e.Table] = append(byTable[e.Table], diff.Delete(e.Row))
		case JournalUpdate:
			byTable[e.Table] = append(byTable[e.Table], diff.Delete(e.OldRow), diff.Insert(e.NewRow))
		}
	}
	var out []TableDelta
	for _, table := range tx.journal.TablesTouched() {
		out = append(out, TableDelta{Table: table, Batch: byTable[table]})
	}
	return out
}

// Rollback inverts journal entries in reverse order against the cache,
// releases locks, and transitions to RolledBack.
func (tx *Transaction) Rollback() {
	if tx.state != Active {
		return
	}
	entries := tx.journal.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		rs, err := tx.cache.GetTable(e.Table)
		if err != nil {
			continue
		}
		switch e.Kind {
		case JournalInsert:
			rs.Delete(e.Row.ID)
		case JournalDelete:
			rs.InsertWithID(e.Row.ID, e.Row.Values)
		case JournalUpdate:
			rs.Update(e.OldRow.ID, e.OldRow.Values)
		}
	}
	tx.locks.ReleaseAll(tx.ID)
	tx.state = RolledBack
	tx.journal.Clear()
}

func (tx *Transaction) State() State { return tx.state }
