// Package engine wires the row store, constraint checker, transaction
// layer, dataflow IVM engine, planner/optimizer, physical executor, and
// reactive subscription layer into the single programmatic surface an
// embedder calls directly: Database.CreateTable/DropTable/
// BeginTransaction/Select/Observe, and
// Transaction.Insert/Update/Delete/Commit/Rollback. The
// single-struct-owns-everything shape is adapted from a network-facing
// service entry point down to a direct Go API with no network surface
// of its own.
package engine

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/kasuganosora/cynos/dataflow"
	"github.com/kasuganosora/cynos/exec"
	"github.com/kasuganosora/cynos/internal/config"
	"github.com/kasuganosora/cynos/internal/metrics"
	"github.com/kasuganosora/cynos/planner"
	"github.com/kasuganosora/cynos/reactive"
	"github.com/kasuganosora/cynos/schema"
	"github.com/kasuganosora/cynos/storage"
	"github.com/kasuganosora/cynos/value"
)

// Database is the embedding's single entry point. It owns the table
// cache, the lock manager, and the reactive query registry, and is not
// safe for concurrent use from multiple goroutines without external
// synchronization: the core is single-threaded by design, and an
// embedder that wants concurrent callers adds its own serialization
// around it (see package daemon).
type Database struct {
	cache    *storage.Cache
	locks    *storage.LockManager
	registry *reactive.QueryRegistry
	schemas  map[string]schema.Table

	cfg     *config.Config
	logger  *log.Logger
	metrics *metrics.Collector
}

func NewDatabase() *Database {
	return NewDatabaseWithConfig(config.DefaultConfig())
}

// NewDatabaseWithConfig wires cfg's monitoring and optimizer knobs in:
// Select and Transaction.Commit each record a metrics.Collector sample
// and, past cfg.Monitor.SlowQuery.Threshold, a slow-query count. cfg.Log
// is not consulted; the logger starts as log.Default().
func NewDatabaseWithConfig(cfg *config.Config) *Database {
	return &Database{
		cache:    storage.NewCache(),
		locks:    storage.NewLockManager(),
		registry: reactive.NewQueryRegistry(),
		schemas:  make(map[string]schema.Table),
		cfg:      cfg,
		logger:   log.Default(),
		metrics:  metrics.New(),
	}
}

// Metrics returns the database's query/error/latency counters.
func (d *Database) Metrics() *metrics.Collector { return d.metrics }

// SetLogger replaces the *log.Logger used for slow-query and error
// notices; nil is not accepted, pass log.New(io.Discard, "", 0) to
// silence it.
func (d *Database) SetLogger(l *log.Logger) { d.logger = l }

func (d *Database) CreateTable(t schema.Table) error {
	if err := d.cache.CreateTable(t); err != nil {
		return err
	}
	d.schemas[t.Name] = t
	return nil
}

func (d *Database) DropTable(name string) error {
	if err := d.cache.DropTable(name); err != nil {
		return err
	}
	delete(d.schemas, name)
	return nil
}

// TableSchema implements planner.Catalog.
func (d *Database) TableSchema(name string) (schema.Table, bool) {
	t, ok := d.schemas[name]
	return t, ok
}

// TableNames returns every table name in creation order; used by the
// checkpoint package to enumerate what to snapshot.
func (d *Database) TableNames() []string {
	return d.cache.TableNames()
}

// Scan returns table's full current row set, bypassing the planner —
// used by the checkpoint package, which snapshots raw table contents
// rather than a query result.
func (d *Database) Scan(table string) ([]*value.Row, error) {
	rs, err := d.cache.GetTable(table)
	if err != nil {
		return nil, err
	}
	return rs.Scan(), nil
}

// RestoreRows re-inserts rows into table preserving their original
// RowIds, used by checkpoint.Load to rebuild a table from a snapshot
// without going through the RowId generator again.
func (d *Database) RestoreRows(table string, rows []*value.Row) error {
	rs, err := d.cache.GetTable(table)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := rs.InsertWithID(r.ID, r.Values); err != nil {
			return err
		}
	}
	return nil
}

// BeginTransaction starts a new Transaction staged against the
// database's cache, fanning committed deltas out to the reactive
// registry.
func (d *Database) BeginTransaction() *Transaction {
	return &Transaction{
		inner:  storage.BeginTransaction(d.cache, d.locks, d.registry),
		handle: uuid.New(),
		db:     d,
	}
}

// Select runs plan (after optimization) one-shot against the current
// cache state, with no IVM subscription.
func (d *Database) Select(plan *planner.LogicalPlan) (*exec.Relation, error) {
	d.metrics.StartQuery()
	defer d.metrics.EndQuery()
	start := time.Now()

	optimized := plan
	if d.cfg.Optimizer.Enabled {
		optimized = planner.Optimize(plan, d)
	}
	runner := exec.NewRunner(d.cache)
	rel, err := runner.Run(optimized)

	d.recordQuery(start, err, soleSourceTable(optimized))
	return rel, err
}

// recordQuery is Select's and Transaction.Commit's shared metrics/log
// hook: every completed operation updates the counters, and one past
// cfg.Monitor.SlowQuery.Threshold also logs and counts as slow.
func (d *Database) recordQuery(start time.Time, err error, table string) {
	elapsed := time.Since(start)
	d.metrics.RecordQuery(elapsed, err == nil, table)
	if err != nil {
		d.metrics.RecordError("execution")
		return
	}
	if d.cfg.Monitor.SlowQuery.Threshold > 0 && elapsed > d.cfg.Monitor.SlowQuery.Threshold {
		d.metrics.RecordSlowQuery()
		d.logger.Printf("engine: slow query on %q took %s (threshold %s)", table, elapsed, d.cfg.Monitor.SlowQuery.Threshold)
	}
}

// soleSourceTable returns plan's one source table name for the access
// counter, or "" when the plan spans zero or more than one table (a
// join, cross product, or empty plan isn't attributable to a single
// table).
func soleSourceTable(plan *planner.LogicalPlan) string {
	tables := planner.SourceTables(plan)
	if len(tables) != 1 {
		return ""
	}
	return tables[0]
}

// Observe compiles plan into a dataflow graph, seeds a MaterializedView
// from the current state of every source table, registers it in the
// reactive registry, and returns an ObservableQuery ready to Subscribe.
func (d *Database) Observe(plan *planner.LogicalPlan) (*reactive.ObservableQuery, error) {
	optimized := plan
	if d.cfg.Optimizer.Enabled {
		optimized = planner.OptimizeForDataflow(plan, d)
	}
	graph, root, err := compileDataflow(optimized, d)
	if err != nil {
		return nil, err
	}
	graph.SetRoot(root)
	view := dataflow.NewMaterializedView(graph)

	sources := planner.SourceTables(optimized)
	for _, t := range sources {
		rs, err := d.cache.GetTable(t)
		if err != nil {
			return nil, err
		}
		view.Seed(t, rs.Scan())
	}

	q := reactive.NewObservableQuery(view)
	d.registry.Register(q, sources)
	return q, nil
}

// Transaction wraps a storage.Transaction with value.Row-based public
// signatures, translating to/from the engine's internal []value.Value
// row representation. The internal TxID (an atomic counter, cheap to
// generate on every BeginTransaction) stays process-local; handle is
// the externally-visible identifier an embedder can log or correlate
// across a request boundary.
type Transaction struct {
	inner  *storage.Transaction
	handle uuid.UUID
	db     *Database
}

// Handle returns the transaction's externally-visible identifier.
func (tx *Transaction) Handle() uuid.UUID { return tx.handle }

func (tx *Transaction) Insert(table string, row *value.Row) (*value.Row, error) {
	return tx.inner.Insert(table, row.Values)
}

func (tx *Transaction) Update(table string, id value.RowId, row *value.Row) error {
	return tx.inner.Update(table, id, row.Values)
}

func (tx *Transaction) Delete(table string, id value.RowId) error {
	return tx.inner.Delete(table, id)
}

// Commit finalizes the transaction's staged writes and records it as
// one sample against the owning database's metrics collector.
func (tx *Transaction) Commit() error {
	start := time.Now()
	err := tx.inner.Commit()
	tx.db.recordQuery(start, err, "")
	return err
}

func (tx *Transaction) Rollback() { tx.inner.Rollback() }
