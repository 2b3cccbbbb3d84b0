package index

import (
	"sync/atomic"

	"github.com/kasuganosora/cynos/value"
)

// Stats tracks the atomic counters the optimizer's cost model and
// auto-increment sequencing rely on, grounded on
// original_source/crates/index/src/stats.rs.
type Stats struct {
	totalRows        atomic.Int64
	maxKeyEncountered atomic.Int64 // valid only for Int32/Int64 keyed indexes
	hasMaxKey        atomic.Bool
}

func (s *Stats) IncRows(delta int64) { s.totalRows.Add(delta) }
func (s *Stats) TotalRows() int64    { return s.totalRows.Load() }

// ObserveKey records an Int32/Int64 key for auto-increment bookkeeping.
// max_key_encountered never decreases.
func (s *Stats) ObserveKey(k value.Value) {
	var n int64
	switch k.DataType() {
	case value.TypeInt32:
		n = int64(k.AsInt32())
	case value.TypeInt64:
		n = k.AsInt64()
	default:
		return
	}
	for {
		cur := s.maxKeyEncountered.Load()
		if s.hasMaxKey.Load() && cur >= n {
			return
		}
		if s.maxKeyEncountered.CompareAndSwap(cur, n) {
			s.hasMaxKey.Store(true)
			return
		}
	}
}

// MaxKeyEncountered returns the largest key ever observed and whether any
// key has been observed at all.
func (s *Stats) MaxKeyEncountered() (int64, bool) {
	return s.maxKeyEncountered.Load(), s.hasMaxKey.Load()
}
