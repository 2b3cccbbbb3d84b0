package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kasuganosora/cynos/value"
)

func TestJournalAppendAndEntries(t *testing.T) {
	var j Journal
	row := value.NewRow(1, []value.Value{value.Int32(1)})
	j.Append(JournalEntry{Table: "t", Kind: JournalInsert, Row: row})
	assert.Equal(t, 1, j.Len())
	assert.Equal(t, row, j.Entries()[0].Row)
}

func TestJournalClear(t *testing.T) {
	var j Journal
	j.Append(JournalEntry{Table: "t", Kind: JournalInsert})
	j.Clear()
	assert.Equal(t, 0, j.Len())
}

func TestJournalTablesTouchedSortedAndDeduped(t *testing.T) {
	var j Journal
	j.Append(JournalEntry{Table: "zebra", Kind: JournalInsert})
	j.Append(JournalEntry{Table: "apple", Kind: JournalInsert})
	j.Append(JournalEntry{Table: "apple", Kind: JournalUpdate})
	assert.Equal(t, []string{"apple", "zebra"}, j.TablesTouched())
}
