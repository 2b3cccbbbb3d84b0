// Package metrics provides a mutex-guarded counter collector for query
// volume, latency, and per-table access, wired into the executor and
// transaction commit path.
package metrics

import (
	"sync"
	"time"
)

// Collector accumulates query counts, latency, slow-query counts, and
// per-table access counts. The zero value is not usable; construct with
// New.
type Collector struct {
	mu               sync.RWMutex
	queryCount       int64
	querySuccess     int64
	queryError       int64
	totalDuration    time.Duration
	slowQueryCount   int64
	activeQueries    int64
	errorCount       map[string]int64
	tableAccessCount map[string]int64
	startTime        time.Time
}

func New() *Collector {
	return &Collector{
		errorCount:       make(map[string]int64),
		tableAccessCount: make(map[string]int64),
		startTime:        time.Now(),
	}
}

// StartQuery marks the beginning of an in-flight query, for
// ActiveQueries. Pair with EndQuery via defer.
func (c *Collector) StartQuery() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeQueries++
}

func (c *Collector) EndQuery() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeQueries > 0 {
		c.activeQueries--
	}
}

// RecordQuery records one completed query's duration, outcome, and the
// table it primarily touched (empty string for cross-table/aggregate
// queries where a single table doesn't apply).
func (c *Collector) RecordQuery(d time.Duration, success bool, table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queryCount++
	c.totalDuration += d
	if success {
		c.querySuccess++
	} else {
		c.queryError++
	}
	if table != "" {
		c.tableAccessCount[table]++
	}
}

// RecordError tags one failure by a caller-chosen category (e.g.
// "plan", "constraint", "execution").
func (c *Collector) RecordError(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorCount[kind]++
}

// RecordSlowQuery tags one completed query as having exceeded the
// configured slow-query threshold.
func (c *Collector) RecordSlowQuery() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slowQueryCount++
}

func (c *Collector) QueryCount() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.queryCount
}

func (c *Collector) SuccessRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.queryCount == 0 {
		return 0
	}
	return float64(c.querySuccess) / float64(c.queryCount) * 100
}

func (c *Collector) AvgDuration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.queryCount == 0 {
		return 0
	}
	return c.totalDuration / time.Duration(c.queryCount)
}

func (c *Collector) SlowQueryCount() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.slowQueryCount
}

func (c *Collector) ActiveQueries() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeQueries
}

func (c *Collector) TableAccessCount(table string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tableAccessCount[table]
}

// Snapshot is a point-in-time, race-free copy of every counter, safe to
// hand to a caller that will read it after the Collector moves on.
type Snapshot struct {
	QueryCount       int64
	QuerySuccess     int64
	QueryError       int64
	SuccessRate      float64
	AvgDuration      time.Duration
	SlowQueryCount   int64
	ActiveQueries    int64
	ErrorCount       map[string]int64
	TableAccessCount map[string]int64
	Uptime           time.Duration
}

func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var successRate float64
	var avg time.Duration
	if c.queryCount > 0 {
		successRate = float64(c.querySuccess) / float64(c.queryCount) * 100
		avg = c.totalDuration / time.Duration(c.queryCount)
	}

	errs := make(map[string]int64, len(c.errorCount))
	for k, v := range c.errorCount {
		errs[k] = v
	}
	tables := make(map[string]int64, len(c.tableAccessCount))
	for k, v := range c.tableAccessCount {
		tables[k] = v
	}

	return Snapshot{
		QueryCount:       c.queryCount,
		QuerySuccess:     c.querySuccess,
		QueryError:       c.queryError,
		SuccessRate:      successRate,
		AvgDuration:      avg,
		SlowQueryCount:   c.slowQueryCount,
		ActiveQueries:    c.activeQueries,
		ErrorCount:       errs,
		TableAccessCount: tables,
		Uptime:           time.Since(c.startTime),
	}
}

// Reset zeroes every counter and restarts the uptime clock.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queryCount = 0
	c.querySuccess = 0
	c.queryError = 0
	c.totalDuration = 0
	c.slowQueryCount = 0
	c.activeQueries = 0
	c.errorCount = make(map[string]int64)
	c.tableAccessCount = make(map[string]int64)
	c.startTime = time.Now()
}
