package exec

import (
	"github.com/kasuganosora/cynos/rowstore"
	"github.com/kasuganosora/cynos/schema"
)

// DataSource resolves a table name to its live row store. Implemented
// by storage.Cache; kept as a minimal interface here so exec never
// imports storage (avoiding an import cycle through Transaction, which
// itself will want to run Select via exec against the same Cache).
type DataSource interface {
	GetTable(name string) (*rowstore.RowStore, error)
}

// ExecutionError reports a failure interpreting a plan against a
// DataSource: an unknown table, a missing index, or a malformed
// expression.
type ExecutionError struct {
	Op  string
	Msg string
}

func (e *ExecutionError) Error() string { return e.Op + ": " + e.Msg }

func execErr(op, msg string) error { return &ExecutionError{Op: op, Msg: msg} }

func tableWidth(t schema.Table) int { return len(t.Columns) }
