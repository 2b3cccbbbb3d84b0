package reactive

import (
	"sync"

	"github.com/kasuganosora/cynos/dataflow"
	"github.com/kasuganosora/cynos/diff"
	"github.com/kasuganosora/cynos/value"
)

// ChangeSet is what a subscriber callback receives: either the view's
// full current result (Initial==true, on first subscription) or the
// rows added/removed by one processed delta batch, plus the view's
// updated current result either way.
type ChangeSet struct {
	Initial bool
	Added   []*value.Row
	Removed []*value.Row
	Result  []*value.Row

	// Modified holds (old, new) row pairs. process never fills it: an
	// updated row arrives as its old image in Removed and its new image
	// in Added.
	Modified [][2]*value.Row
}

// SubscriptionId identifies one callback registered on an
// ObservableQuery.
type SubscriptionId uint64

type subscription struct {
	id       SubscriptionId
	callback func(ChangeSet)
	active   bool
}

// ObservableQuery wraps a dataflow.MaterializedView with a
// subscribe/unsubscribe/notify surface.
type ObservableQuery struct {
	mu    sync.Mutex
	view  *dataflow.MaterializedView
	subs  []*subscription
	nextID uint64

	id       QueryId
	registry *QueryRegistry
}

// NewObservableQuery wraps view. Call Register on a QueryRegistry before
// any Subscribe, so commits reach it.
func NewObservableQuery(view *dataflow.MaterializedView) *ObservableQuery {
	return &ObservableQuery{view: view}
}

// Subscribe registers callback and delivers the current materialized
// result as an Initial change-set synchronously, before returning.
func (q *ObservableQuery) Subscribe(callback func(ChangeSet)) SubscriptionId {
	q.mu.Lock()
	q.nextID++
	id := SubscriptionId(q.nextID)
	sub := &subscription{id: id, callback: callback, active: true}
	q.subs = append(q.subs, sub)
	result := q.view.Result()
	q.mu.Unlock()

	invokeSafely(q.id, sub, ChangeSet{Initial: true, Result: result})
	return id
}

// Unsubscribe deactivates id's callback. When it was the last active
// subscriber, the owning registry deregisters this query, making it
// eligible for destruction by the caller.
func (q *ObservableQuery) Unsubscribe(id SubscriptionId) {
	q.mu.Lock()
	anyActive := false
	for _, s := range q.subs {
		if s.id == id {
			s.active = false
		}
		if s.active {
			anyActive = true
		}
	}
	registry := q.registry
	queryID := q.id
	q.mu.Unlock()

	if !anyActive && registry != nil {
		registry.Deregister(queryID)
	}
}

// process pushes a delta batch for table through the view and notifies
// every active subscriber in insertion order.
func (q *ObservableQuery) process(table string, batch diff.Batch[*value.Row]) {
	q.mu.Lock()
	out := q.view.OnTableChange(table, batch)
	result := q.view.Result()
	subs := append([]*subscription{}, q.subs...)
	q.mu.Unlock()

	var added, removed []*value.Row
	for _, d := range out {
		if d.Diff > 0 {
			added = append(added, d.Data)
		} else if d.Diff < 0 {
			removed = append(removed, d.Data)
		}
	}
	cs := ChangeSet{Added: added, Removed: removed, Result: result}
	for _, s := range subs {
		if s.active {
			invokeSafely(q.id, s, cs)
		}
	}
}

// invokeSafely calls sub's callback with an unwind boundary: a panic is
// logged and the subscription marked inactive, never propagated into
// the engine's calling thread.
func invokeSafely(queryID QueryId, sub *subscription, cs ChangeSet) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(queryID, sub.id, r)
			sub.active = false
		}
	}()
	sub.callback(cs)
}
