// Package exec implements the physical executor: Scan/IndexScan/Filter/
// Project/Sort/Limit/Aggregate operators plus three join algorithms,
// interpreting a planner.LogicalPlan against a pluggable DataSource.
// The Relation/operator split is rebuilt against this engine's row/plan
// types, consuming a programmatically constructed plan rather than a
// parsed SQL AST.
package exec

import "github.com/kasuganosora/cynos/value"

// RelationEntry is one row of a Relation. It carries no per-entry
// source table; which columns came from which table is recorded once on
// the Relation (Tables and ColumnCount).
type RelationEntry struct {
	Row *value.Row
}

// Relation is the executor's intermediate/final result shape: entries
// plus the ordered contributing table names and each one's column
// count, needed to split/merge rows across join boundaries.
type Relation struct {
	Entries     []RelationEntry
	Tables      []string
	ColumnCount []int // per Tables[i], how many of each row's columns belong to it
}

func (r *Relation) Width() int {
	w := 0
	for _, c := range r.ColumnCount {
		w += c
	}
	return w
}

func single(table string, width int, rows []*value.Row) *Relation {
	entries := make([]RelationEntry, len(rows))
	for i, row := range rows {
		entries[i] = RelationEntry{Row: row}
	}
	return &Relation{Entries: entries, Tables: []string{table}, ColumnCount: []int{width}}
}

func emptyRelation() *Relation {
	return &Relation{}
}
