// Package daemon provides the single-goroutine request-serialization
// loop an embedding binary uses to drive an engine.Database safely. The
// engine itself does no internal locking and assumes it has exclusive
// access during a transaction, so any binary that wants concurrent
// callers (an MCP server handling overlapping HTTP requests, a daemon
// handling multiple client connections) must serialize access itself.
// Both cmd/cynosd and cmd/cynosmcp build on this package rather than
// each re-inventing it.
package daemon

import (
	"context"
	"errors"

	"github.com/kasuganosora/cynos/engine"
)

// ErrStopped is returned by Submit once the loop has been stopped.
var ErrStopped = errors.New("daemon: loop stopped")

type job struct {
	fn     func(*engine.Database) (any, error)
	result chan jobResult
}

type jobResult struct {
	val any
	err error
}

// Loop owns one engine.Database and runs every operation against it on
// a single goroutine, so concurrent Submit callers never race on the
// database's unsynchronized internals.
type Loop struct {
	db      *engine.Database
	jobs    chan job
	done    chan struct{}
	stopped chan struct{}
}

// NewLoop starts the loop's goroutine immediately, bound to db.
func NewLoop(db *engine.Database) *Loop {
	l := &Loop{db: db, jobs: make(chan job), done: make(chan struct{}), stopped: make(chan struct{})}
	go l.run()
	return l
}

func (l *Loop) run() {
	for j := range l.jobs {
		val, err := j.fn(l.db)
		j.result <- jobResult{val: val, err: err}
	}
	close(l.done)
}

// Submit enqueues fn to run on the loop's goroutine and blocks for its
// result, or until ctx is done or the loop has been stopped.
func (l *Loop) Submit(ctx context.Context, fn func(*engine.Database) (any, error)) (any, error) {
	j := job{fn: fn, result: make(chan jobResult, 1)}
	// Check stopped on its own first: once Stop has closed jobs, a select
	// that also offers the send could pick it and panic.
	select {
	case <-l.stopped:
		return nil, ErrStopped
	default:
	}
	select {
	case l.jobs <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.stopped:
		return nil, ErrStopped
	}
	select {
	case r := <-j.result:
		return r.val, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop closes the job channel, letting the goroutine drain and exit
// once every already-submitted job has run. It does not cancel
// in-flight Submit calls. Submit calls that arrive after Stop return
// ErrStopped instead of blocking forever on a closed jobs channel.
func (l *Loop) Stop() {
	close(l.stopped)
	close(l.jobs)
	<-l.done
}
