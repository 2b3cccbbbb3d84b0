package storage

import (
	"sort"

	"github.com/kasuganosora/cynos/value"
)

// JournalKind tags the mutation a JournalEntry records.
type JournalKind int

const (
	JournalInsert JournalKind = iota
	JournalUpdate
	JournalDelete
)

// JournalEntry records one staged mutation, enough to invert it on
// rollback: Insert carries the inserted Row; Update carries both the
// pre- and post-image; Delete carries the removed Row.
type JournalEntry struct {
	Table  string
	Kind   JournalKind
	Row    *value.Row // Insert: inserted row. Delete: removed row.
	OldRow *value.Row // Update: pre-image.
	NewRow *value.Row // Update: post-image.
}

// Journal is an ordered, append-only log of staged mutations for one
// transaction. Each entry is appended right after its mutation has been
// applied to the table's row store, and the log is consumed wholesale at
// commit or rollback.
type Journal struct {
	entries []JournalEntry
}

func (j *Journal) Append(e JournalEntry) { j.entries = append(j.entries, e) }

func (j *Journal) Entries() []JournalEntry { return j.entries }

func (j *Journal) Len() int { return len(j.entries) }

func (j *Journal) Clear() { j.entries = nil }

// TablesTouched returns every distinct table name appearing in the
// journal, sorted lexicographically so that deltas are emitted at commit
// in a deterministic order across tables.
func (j *Journal) TablesTouched() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range j.entries {
		if !seen[e.Table] {
			seen[e.Table] = true
			out = append(out, e.Table)
		}
	}
	sort.Strings(out)
	return out
}
