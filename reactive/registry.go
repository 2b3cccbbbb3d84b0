// Package reactive implements the subscription layer: a QueryRegistry
// fanning out committed delta batches to every ObservableQuery that
// depends on a touched table, and each ObservableQuery's own subscriber
// list, whose callbacks run behind a recover boundary that isolates them
// from the engine. Each registry is a map guarded by an RWMutex,
// read-heavy on notify and write-heavy only on register/unregister.
package reactive

import (
	"log"
	"sync"

	"github.com/kasuganosora/cynos/diff"
	"github.com/kasuganosora/cynos/value"
)

// QueryId identifies one registered ObservableQuery.
type QueryId uint64

// QueryRegistry maps table names to the set of queries that depend on
// them, populated from each view's source-table list at registration.
type QueryRegistry struct {
	mu      sync.RWMutex
	byTable map[string]map[QueryId]*ObservableQuery
	queries map[QueryId]*ObservableQuery
	nextID  uint64
}

func NewQueryRegistry() *QueryRegistry {
	return &QueryRegistry{
		byTable: make(map[string]map[QueryId]*ObservableQuery),
		queries: make(map[QueryId]*ObservableQuery),
	}
}

// Register assigns a QueryId to q and indexes it under every table in
// sources.
func (r *QueryRegistry) Register(q *ObservableQuery, sources []string) QueryId {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := QueryId(r.nextID)
	q.id = id
	q.registry = r
	r.queries[id] = q
	for _, t := range sources {
		if r.byTable[t] == nil {
			r.byTable[t] = make(map[QueryId]*ObservableQuery)
		}
		r.byTable[t][id] = q
	}
	return id
}

// Deregister removes q from every table index and the registry, called
// once its last subscriber unsubscribes.
func (r *QueryRegistry) Deregister(id QueryId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.queries, id)
	for t, set := range r.byTable {
		delete(set, id)
		if len(set) == 0 {
			delete(r.byTable, t)
		}
	}
}

// OnTableChange fans batch out to every query registered against table,
// in QueryId order for reproducibility. Implements storage.DeltaSink so
// a Transaction.Commit can hand deltas straight to a registry.
func (r *QueryRegistry) OnTableChange(table string, batch diff.Batch[*value.Row]) {
	r.mu.RLock()
	set := r.byTable[table]
	queries := make([]*ObservableQuery, 0, len(set))
	for _, q := range set {
		queries = append(queries, q)
	}
	r.mu.RUnlock()

	sortQueriesByID(queries)
	for _, q := range queries {
		q.process(table, batch)
	}
}

func sortQueriesByID(qs []*ObservableQuery) {
	for i := 1; i < len(qs); i++ {
		for j := i; j > 0 && qs[j-1].id > qs[j].id; j-- {
			qs[j-1], qs[j] = qs[j], qs[j-1]
		}
	}
}

// logPanic reports a panicking subscriber callback through the standard
// logger; a subscriber panic is a caller bug, not a reason to add a
// structured logging dependency just for one diagnostic line.
func logPanic(queryID QueryId, subID SubscriptionId, r any) {
	log.Printf("reactive: subscriber callback panicked (query=%d sub=%d): %v", queryID, subID, r)
}
