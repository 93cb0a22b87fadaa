package lock

import (
	"sync"

	"coredb/pkg/primitives"
)

// objectKind distinguishes a table-level lock object from a row-level one;
// both share the same FIFO queue and compatibility machinery.
type objectKind int

const (
	tableObject objectKind = iota
	rowObject
)

// objectKey names a single lockable object: either a table by name, or a
// row by table name + RID.
type objectKey struct {
	kind  objectKind
	table string
	rid   primitives.RID
}

func tableKey(table string) objectKey {
	return objectKey{kind: tableObject, table: table}
}

func rowKey(table string, rid primitives.RID) objectKey {
	return objectKey{kind: rowObject, table: table, rid: rid}
}

// request is one transaction's pending or granted hold on an object.
type request struct {
	txn     primitives.TxnID
	mode    primitives.LockMode
	granted bool
}

// queueState is the FIFO wait queue and grant set for one lockable object.
// Acquisition blocks on cond until the request at the head of the queue
// (counting only ungranted entries) is compatible with every already
// granted peer and no other transaction is mid-upgrade.
type queueState struct {
	mu        sync.Mutex
	cond      *sync.Cond
	requests  []*request
	upgrading *primitives.TxnID
}

func newQueueState() *queueState {
	qs := &queueState{}
	qs.cond = sync.NewCond(&qs.mu)
	return qs
}

// findLocked returns the request belonging to txn, if any. Caller holds
// qs.mu.
func (qs *queueState) findLocked(txn primitives.TxnID) *request {
	for _, r := range qs.requests {
		if r.txn == txn {
			return r
		}
	}
	return nil
}

// removeLocked drops txn's request from the queue. Caller holds qs.mu.
func (qs *queueState) removeLocked(txn primitives.TxnID) {
	out := qs.requests[:0]
	for _, r := range qs.requests {
		if r.txn != txn {
			out = append(out, r)
		}
	}
	qs.requests = out
}

// firstUngrantedLocked reports whether txn is the earliest ungranted
// request in the queue. Caller holds qs.mu.
func (qs *queueState) firstUngrantedLocked(txn primitives.TxnID) bool {
	for _, r := range qs.requests {
		if r.granted {
			continue
		}
		return r.txn == txn
	}
	return false
}

// compatibleWithGrantedLocked reports whether mode is compatible with every
// already-granted peer other than self. Caller holds qs.mu.
func (qs *queueState) compatibleWithGrantedLocked(self primitives.TxnID, mode primitives.LockMode) bool {
	for _, r := range qs.requests {
		if !r.granted || r.txn == self {
			continue
		}
		if !compatibleWith(r.mode, mode) {
			return false
		}
	}
	return true
}

// grantedHoldersLocked returns every transaction currently holding a
// granted lock on this object. Caller holds qs.mu.
func (qs *queueState) grantedHoldersLocked() []primitives.TxnID {
	var holders []primitives.TxnID
	for _, r := range qs.requests {
		if r.granted {
			holders = append(holders, r.txn)
		}
	}
	return holders
}

// ungrantedWaitersLocked returns every transaction with a pending request
// on this object. Caller holds qs.mu.
func (qs *queueState) ungrantedWaitersLocked() []primitives.TxnID {
	var waiters []primitives.TxnID
	for _, r := range qs.requests {
		if !r.granted {
			waiters = append(waiters, r.txn)
		}
	}
	return waiters
}
