// Package lock implements multi-granularity Two-Phase Locking (2PL) for
// coredb's concurrency control layer.
//
// # Overview
//
// The package enforces standard 2PL: a transaction is Growing while it
// acquires locks and Shrinking once it starts releasing them; which
// transitions are legal in each phase depends on the transaction's
// isolation level (see [violatesIsolation] / [transitionOnRelease] in
// manager.go).
//
// Five lock modes are supported, at two granularities:
//
//   - Tables take any of [primitives.IntentionShared], [primitives.IntentionExclusive],
//     [primitives.Shared], [primitives.SharedIntentionExclusive], [primitives.Exclusive].
//   - Rows take only [primitives.Shared] or [primitives.Exclusive], and require the
//     owning transaction to already hold a qualifying table lock (see [coversRow]).
//
// A held mode may be upgraded in place along the paths in [upgradePaths];
// anything else is an [dberr.IncompatibleUpgrade] abort. Only one
// transaction may be mid-upgrade on a given object at a time — a second
// concurrent upgrader aborts with [dberr.UpgradeConflict].
//
// # Components
//
// [LockManager] is the single entry point. Callers use [LockManager.LockTable]
// / [LockManager.LockRow] to acquire locks and [LockManager.UnlockTable] /
// [LockManager.UnlockRow] to release them. Internally every lockable object
// (a table name, or a table+RID pair, see [objectKey]) gets its own
// [queueState]: an ordered FIFO list of [request] entries and a [sync.Cond]
// that waiters block on.
//
// # Lock Acquisition Flow
//
// [acquireOn] runs the full protocol for one object:
//
//  1. If the transaction already holds the requested mode, or a mode that
//     subsumes it ([subsumesMode]), return immediately.
//  2. If it holds a weaker mode, validate the upgrade and mark the object as
//     mid-upgrade for this transaction.
//  3. Append a request to the queue and block on the object's condition
//     variable until: this request is the earliest ungranted one, no other
//     transaction is mid-upgrade, and the requested mode is compatible with
//     every already-granted peer.
//  4. If the transaction is aborted while waiting — typically by the
//     deadlock detector — unwind the request and return a deadlock error.
//
// # Deadlock Detection
//
// [LockManager.Start] launches a background goroutine, supervised by an
// [errgroup.Group], that wakes every detection interval and calls
// [LockManager.breakDeadlocks]. That rebuilds a wait-for graph from every
// queue's ungranted waiters and granted holders ([LockManager.waitForGraph])
// and runs a deterministic DFS — ascending transaction id, ascending
// neighbor id — to find the highest-id transaction on any cycle
// ([detectCycleVictim]). That transaction is aborted and every queue it was
// blocked on is broadcast so its [acquireOn] loop wakes and returns an
// error instead of blocking forever. The process repeats until the graph
// is acyclic.
//
// # Invariants
//
//   - Row locks are always S or X; requesting an intention mode on a row
//     aborts with [dberr.AttemptedIntentionLockOnRow].
//   - A row lock requires a qualifying table lock first, or the request
//     aborts with [dberr.TableLockNotPresent].
//   - A table cannot be unlocked while the transaction still holds any row
//     lock on it — [dberr.TableUnlockedBeforeUnlockingRows].
//   - Unlocking an object the transaction does not hold a lock on aborts
//     with [dberr.AttemptedUnlockButNoLockHeld].
//   - All scheduling decisions for one object happen under that object's
//     own mutex; the global [LockManager.mu] only ever guards the map of
//     per-object queues, never blocks on them.
package lock
