package storage

import "github.com/kasuganosora/cynos/dberr"

// TxID identifies a transaction for lock bookkeeping.
type TxID uint64

type resourceLock struct {
	sharedHolders  map[TxID]bool
	exclusiveHolder *TxID
}

// LockManager implements cooperative, non-preemptive locking:
// acquisition either succeeds immediately or fails with
// InvalidOperation — it never blocks.
type LockManager struct {
	resources map[string]*resourceLock
}

func NewLockManager() *LockManager {
	return &LockManager{resources: make(map[string]*resourceLock)}
}

func (lm *LockManager) get(resource string) *resourceLock {
	r, ok := lm.resources[resource]
	if !ok {
		r = &resourceLock{sharedHolders: make(map[TxID]bool)}
		lm.resources[resource] = r
	}
	return r
}

// AcquireShared is grantable iff there is no exclusive holder, or the
// requester is that holder.
func (lm *LockManager) AcquireShared(resource string, tx TxID) error {
	r := lm.get(resource)
	if r.exclusiveHolder != nil && *r.exclusiveHolder != tx {
		return dberr.NewInvalidOperation("cannot acquire shared lock on " + resource)
	}
	r.sharedHolders[tx] = true
	return nil
}

// AcquireExclusive is grantable iff there are no holders, or only the
// requester holds shared (upgrade), or the requester already holds
// exclusive.
func (lm *LockManager) AcquireExclusive(resource string, tx TxID) error {
	r := lm.get(resource)
	if r.exclusiveHolder != nil {
		if *r.exclusiveHolder == tx {
			return nil
		}
		return dberr.NewInvalidOperation("cannot acquire exclusive lock on " + resource)
	}
	for holder := range r.sharedHolders {
		if holder != tx {
			return dberr.NewInvalidOperation("cannot acquire exclusive lock on " + resource)
		}
	}
	id := tx
	r.exclusiveHolder = &id
	return nil
}

// Release drops every lock tx holds on resource.
func (lm *LockManager) Release(resource string, tx TxID) {
	r, ok := lm.resources[resource]
	if !ok {
		return
	}
	delete(r.sharedHolders, tx)
	if r.exclusiveHolder != nil && *r.exclusiveHolder == tx {
		r.exclusiveHolder = nil
	}
}

// ReleaseAll drops every lock tx holds across every resource.
func (lm *LockManager) ReleaseAll(tx TxID) {
	for name := range lm.resources {
		lm.Release(name, tx)
	}
}
