// Package diff implements the differential algebra underlying
// incremental view maintenance: Delta, the (value, multiplicity) pair,
// and Collection, a snapshot plus a pending-delta log with commit and
// rollback.
package diff

// Delta pairs a value with its multiplicity: +1 for an insertion, -1 for
// a deletion, any other integer for a batch total. A Delta with Diff==0
// is a no-op and callers must compact it out before it reaches a
// Collection or a dataflow operator.
type Delta[T any] struct {
	Data T
	Diff int32
}

func Insert[T any](v T) Delta[T] { return Delta[T]{Data: v, Diff: 1} }
func Delete[T any](v T) Delta[T] { return Delta[T]{Data: v, Diff: -1} }

// Batch is a sequence of deltas, the unit the IVM layer processes.
type Batch[T any] []Delta[T]

// Compact drops every delta whose multiplicity is zero, preserving
// order of the rest.
func Compact[T any](b Batch[T]) Batch[T] {
	out := make(Batch[T], 0, len(b))
	for _, d := range b {
		if d.Diff != 0 {
			out = append(out, d)
		}
	}
	return out
}

// Collection is a DiffCollection<T>: a materialized snapshot plus a
// pending list of not-yet-folded deltas.
type Collection[T any] struct {
	snapshot []T
	pending  []Delta[T]
	equal    func(a, b T) bool
}

// New constructs an empty Collection. equal is used by Commit to locate
// the first matching element to remove for a negative-multiplicity
// delta, since T is not assumed comparable.
func New[T any](equal func(a, b T) bool) *Collection[T] {
	return &Collection[T]{equal: equal}
}

// Snapshot returns the current committed contents, not including
// pending deltas.
func (c *Collection[T]) Snapshot() []T { return c.snapshot }

// Pending returns the deltas staged since the last Commit/Rollback.
func (c *Collection[T]) Pending() []Delta[T] { return c.pending }

// Stage appends a delta to the pending list without folding it into the
// snapshot yet.
func (c *Collection[T]) Stage(d Delta[T]) {
	if d.Diff == 0 {
		return
	}
	c.pending = append(c.pending, d)
}

// StageBatch stages every delta in b.
func (c *Collection[T]) StageBatch(b Batch[T]) {
	for _, d := range b {
		c.Stage(d)
	}
}

// Commit folds pending into snapshot: positive-multiplicity deltas are
// appended (once per unit of multiplicity above 1), negative ones remove
// the first structurally-equal element. Pending is cleared.
func (c *Collection[T]) Commit() {
	for _, d := range c.pending {
		if d.Diff > 0 {
			for i := int32(0); i < d.Diff; i++ {
				c.snapshot = append(c.snapshot, d.Data)
			}
		} else {
			remaining := -d.Diff
			for remaining > 0 {
				idx := c.findFirst(d.Data)
				if idx < 0 {
					break
				}
				c.snapshot = append(c.snapshot[:idx], c.snapshot[idx+1:]...)
				remaining--
			}
		}
	}
	c.pending = nil
}

// Rollback discards pending deltas without touching the snapshot.
func (c *Collection[T]) Rollback() {
	c.pending = nil
}

func (c *Collection[T]) findFirst(v T) int {
	for i, e := range c.snapshot {
		if c.equal(e, v) {
			return i
		}
	}
	return -1
}
