// Package lock implements multi-granularity two-phase locking over tables
// and rows: five lock modes (IS, IX, S, SIX, X), upgrade paths, per-object
// FIFO wait queues guarded by condition variables, isolation-level
// acquisition/release rules, and a background deadlock detector.
//
// # Components
//
// [LockManager] is the single entry point. Callers use [LockManager.LockTable]
// / [LockManager.LockRow] to acquire locks and [LockManager.UnlockTable] /
// [LockManager.UnlockRow] to release them. Internally every lockable object
// (a table name, or a table+RID pair) gets its own [queueState]: an ordered
// list of [request]s and a [sync.Cond] waiters block on.
//
// # Deadlock detection
//
// [LockManager.Start] launches a background goroutine, supervised by an
// [errgroup.Group], that wakes every detection interval and rebuilds a
// wait-for graph from every queue's ungranted waiters and granted holders.
// A deterministic DFS (ascending transaction id, ascending neighbor id)
// finds the highest-id transaction on any cycle and aborts it, waking every
// queue it was blocked on so it returns a deadlock error instead of
// blocking forever.
package lock

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"coredb/pkg/concurrency/transaction"
	"coredb/pkg/dberr"
	"coredb/pkg/primitives"
)

// LockManager grants and tracks table and row locks for every transaction
// in registry, enforcing the isolation rules that registry's transactions
// were started with.
type LockManager struct {
	mu     sync.Mutex
	queues map[objectKey]*queueState

	registry *transaction.Registry
	interval time.Duration

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewLockManager creates a lock manager over the given transaction
// registry. detectInterval controls how often the background deadlock
// detector wakes; it has no effect until Start is called.
func NewLockManager(registry *transaction.Registry, detectInterval time.Duration) *LockManager {
	return &LockManager{
		queues:   make(map[objectKey]*queueState),
		registry: registry,
		interval: detectInterval,
	}
}

func (lm *LockManager) queueFor(key objectKey) *queueState {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	qs, ok := lm.queues[key]
	if !ok {
		qs = newQueueState()
		lm.queues[key] = qs
	}
	return qs
}

// LockTable acquires mode on table for ctx's transaction, blocking until it
// is granted, an isolation rule is violated, an upgrade conflict occurs, or
// the transaction is chosen as a deadlock victim.
func (lm *LockManager) LockTable(ctx *transaction.Context, table string, mode primitives.LockMode) error {
	if reason, bad := violatesIsolation(ctx, mode); bad {
		return abort(ctx, reason)
	}

	var heldPtr *primitives.LockMode
	if held, ok := ctx.TableLockMode(table); ok {
		heldPtr = &held
	}

	qs := lm.queueFor(tableKey(table))
	if err := acquireOn(qs, ctx, mode, heldPtr); err != nil {
		return err
	}
	if heldPtr != nil && subsumesMode(*heldPtr, mode) {
		return nil // keep recording the stronger mode already held
	}
	ctx.GrantTableLock(table, mode)
	return nil
}

// UnlockTable releases ctx's lock on table. Aborts with
// TableUnlockedBeforeUnlockingRows if the transaction still holds any row
// lock on table, or AttemptedUnlockButNoLockHeld if it holds no table lock.
func (lm *LockManager) UnlockTable(ctx *transaction.Context, table string) error {
	if ctx.HasAnyRowLock(table) {
		return abort(ctx, dberr.TableUnlockedBeforeUnlockingRows)
	}

	mode, held := ctx.TableLockMode(table)
	qs := lm.queueFor(tableKey(table))
	if !release(qs, ctx.ID()) || !held {
		return abort(ctx, dberr.AttemptedUnlockButNoLockHeld)
	}

	ctx.ReleaseTableLock(table)
	transitionOnRelease(ctx, mode)
	return nil
}

// LockRow acquires mode (S or X only) on rid within table. The owning
// transaction must already hold a qualifying table lock: any mode for a
// row S, and X/IX/SIX for a row X.
func (lm *LockManager) LockRow(ctx *transaction.Context, table string, rid primitives.RID, mode primitives.LockMode) error {
	if mode != primitives.Shared && mode != primitives.Exclusive {
		return abort(ctx, dberr.AttemptedIntentionLockOnRow)
	}

	tableMode, ok := ctx.TableLockMode(table)
	if !ok || !coversRow(tableMode, mode) {
		return abort(ctx, dberr.TableLockNotPresent)
	}

	if reason, bad := violatesIsolation(ctx, mode); bad {
		return abort(ctx, reason)
	}

	var heldPtr *primitives.LockMode
	if held, ok := ctx.RowLockMode(table, rid); ok {
		heldPtr = &held
	}

	qs := lm.queueFor(rowKey(table, rid))
	if err := acquireOn(qs, ctx, mode, heldPtr); err != nil {
		return err
	}
	if heldPtr != nil && subsumesMode(*heldPtr, mode) {
		return nil // keep recording the stronger mode already held
	}
	ctx.GrantRowLock(table, rid, mode)
	return nil
}

// UnlockRow releases ctx's lock on rid within table.
func (lm *LockManager) UnlockRow(ctx *transaction.Context, table string, rid primitives.RID) error {
	mode, held := ctx.RowLockMode(table, rid)
	qs := lm.queueFor(rowKey(table, rid))
	if !release(qs, ctx.ID()) || !held {
		return abort(ctx, dberr.AttemptedUnlockButNoLockHeld)
	}

	ctx.ReleaseRowLock(table, rid)
	transitionOnRelease(ctx, mode)
	return nil
}

// Start launches the background deadlock detector. It runs until ctx is
// canceled or Stop is called.
func (lm *LockManager) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	lm.cancel = cancel

	g, gctx := errgroup.WithContext(runCtx)
	lm.group = g

	g.Go(func() error {
		ticker := time.NewTicker(lm.interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				lm.breakDeadlocks()
			}
		}
	})
}

// Stop cancels the detector and waits for it to exit.
func (lm *LockManager) Stop() error {
	if lm.cancel != nil {
		lm.cancel()
	}
	if lm.group == nil {
		return nil
	}
	return lm.group.Wait()
}

func abort(ctx *transaction.Context, reason dberr.AbortReason) error {
	ctx.SetState(primitives.Aborted)
	return dberr.NewTransactionAbort(reason)
}

func isSharedFamily(mode primitives.LockMode) bool {
	return mode == primitives.IntentionShared || mode == primitives.Shared || mode == primitives.SharedIntentionExclusive
}

// violatesIsolation checks the acquisition-time isolation rules from the
// spec: repeatable_read forbids any lock while shrinking; read_committed
// forbids non-shared-family locks while shrinking; read_uncommitted forbids
// any lock while shrinking and forbids shared-family locks unconditionally.
func violatesIsolation(ctx *transaction.Context, mode primitives.LockMode) (dberr.AbortReason, bool) {
	iso := ctx.Isolation()

	if iso == primitives.ReadUncommitted && isSharedFamily(mode) {
		return dberr.LockSharedOnReadUncommitted, true
	}

	if ctx.State() != primitives.Shrinking {
		return 0, false
	}
	switch iso {
	case primitives.RepeatableRead, primitives.ReadUncommitted:
		return dberr.LockOnShrinking, true
	case primitives.ReadCommitted:
		if !isSharedFamily(mode) {
			return dberr.LockOnShrinking, true
		}
	}
	return 0, false
}

// transitionOnRelease applies the spec's growing-to-shrinking transition
// rule on an in-growing-phase unlock.
func transitionOnRelease(ctx *transaction.Context, released primitives.LockMode) {
	if ctx.State() != primitives.Growing {
		return
	}
	switch ctx.Isolation() {
	case primitives.RepeatableRead:
		if released == primitives.Shared || released == primitives.Exclusive {
			ctx.SetState(primitives.Shrinking)
		}
	case primitives.ReadCommitted, primitives.ReadUncommitted:
		if released == primitives.Exclusive {
			ctx.SetState(primitives.Shrinking)
		}
	}
}

// acquireOn runs the FIFO/upgrade acquisition protocol described in
// queue.go's queueState doc comment, blocking on qs.cond until granted,
// aborted by the deadlock detector, or rejected as an invalid/conflicting
// upgrade.
func acquireOn(qs *queueState, ctx *transaction.Context, want primitives.LockMode, held *primitives.LockMode) error {
	txn := ctx.ID()

	qs.mu.Lock()

	if held != nil {
		if *held == want || subsumesMode(*held, want) {
			qs.mu.Unlock()
			return nil
		}
		if !isValidUpgrade(*held, want) {
			qs.mu.Unlock()
			return abort(ctx, dberr.IncompatibleUpgrade)
		}
		if qs.upgrading != nil && *qs.upgrading != txn {
			qs.mu.Unlock()
			return abort(ctx, dberr.UpgradeConflict)
		}
		qs.removeLocked(txn)
		u := txn
		qs.upgrading = &u
	}

	req := &request{txn: txn, mode: want}
	qs.requests = append(qs.requests, req)

	for {
		if ctx.State() == primitives.Aborted {
			qs.removeLocked(txn)
			if qs.upgrading != nil && *qs.upgrading == txn {
				qs.upgrading = nil
			}
			qs.mu.Unlock()
			return dberr.NewTransactionAbort(dberr.Deadlock)
		}

		ready := qs.firstUngrantedLocked(txn) &&
			(qs.upgrading == nil || *qs.upgrading == txn) &&
			qs.compatibleWithGrantedLocked(txn, want)

		if ready {
			req.granted = true
			if qs.upgrading != nil && *qs.upgrading == txn {
				qs.upgrading = nil
			}
			// A newly granted request can change which waiter is now at the
			// front of the queue (or which modes are compatible with what's
			// held), so wake everyone else to re-check.
			qs.cond.Broadcast()
			qs.mu.Unlock()
			return nil
		}

		qs.cond.Wait()
	}
}

// release drops txn's granted request from qs and wakes every other
// waiter so they can re-check compatibility. Returns false if txn held no
// granted request.
func release(qs *queueState, txn primitives.TxnID) bool {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	r := qs.findLocked(txn)
	if r == nil || !r.granted {
		return false
	}

	qs.removeLocked(txn)
	if qs.upgrading != nil && *qs.upgrading == txn {
		qs.upgrading = nil
	}
	qs.cond.Broadcast()
	return true
}
