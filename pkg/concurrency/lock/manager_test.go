package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"coredb/pkg/concurrency/transaction"
	"coredb/pkg/dberr"
	"coredb/pkg/primitives"
)

func newManager() (*LockManager, *transaction.Registry) {
	reg := transaction.NewRegistry()
	return NewLockManager(reg, 20*time.Millisecond), reg
}

func abortReason(t *testing.T, err error) dberr.AbortReason {
	t.Helper()
	var abort *dberr.TransactionAbort
	if !errors.As(err, &abort) {
		t.Fatalf("expected *dberr.TransactionAbort, got %T (%v)", err, err)
	}
	return abort.Reason
}

func TestLockTableBasicGrantRelease(t *testing.T) {
	lm, reg := newManager()
	ctx := reg.Begin(primitives.RepeatableRead)

	if err := lm.LockTable(ctx, "accounts", primitives.IntentionShared); err != nil {
		t.Fatalf("LockTable failed: %v", err)
	}
	mode, ok := ctx.TableLockMode("accounts")
	if !ok || mode != primitives.IntentionShared {
		t.Fatalf("got (%v,%v); want (IS,true)", mode, ok)
	}

	if err := lm.UnlockTable(ctx, "accounts"); err != nil {
		t.Fatalf("UnlockTable failed: %v", err)
	}
	if _, ok := ctx.TableLockMode("accounts"); ok {
		t.Fatal("expected lock to be released")
	}
}

func TestLockTableSameModeIsNoop(t *testing.T) {
	lm, reg := newManager()
	ctx := reg.Begin(primitives.RepeatableRead)

	if err := lm.LockTable(ctx, "accounts", primitives.Shared); err != nil {
		t.Fatalf("first lock failed: %v", err)
	}
	if err := lm.LockTable(ctx, "accounts", primitives.Shared); err != nil {
		t.Fatalf("re-requesting held mode should be a no-op, got: %v", err)
	}
}

func TestLockTableValidUpgrade(t *testing.T) {
	lm, reg := newManager()
	ctx := reg.Begin(primitives.RepeatableRead)

	if err := lm.LockTable(ctx, "accounts", primitives.IntentionShared); err != nil {
		t.Fatalf("IS lock failed: %v", err)
	}
	if err := lm.LockTable(ctx, "accounts", primitives.Exclusive); err != nil {
		t.Fatalf("IS->X upgrade failed: %v", err)
	}
	mode, _ := ctx.TableLockMode("accounts")
	if mode != primitives.Exclusive {
		t.Fatalf("mode = %v; want X", mode)
	}
}

func TestLockTableIncompatibleUpgradeAborts(t *testing.T) {
	lm, reg := newManager()
	ctx := reg.Begin(primitives.RepeatableRead)

	if err := lm.LockTable(ctx, "accounts", primitives.SharedIntentionExclusive); err != nil {
		t.Fatalf("SIX lock failed: %v", err)
	}
	err := lm.LockTable(ctx, "accounts", primitives.IntentionShared)
	if err == nil {
		t.Fatal("expected SIX -> IS to abort")
	}
	if reason := abortReason(t, err); reason != dberr.IncompatibleUpgrade {
		t.Fatalf("reason = %v; want IncompatibleUpgrade", reason)
	}
	if ctx.State() != primitives.Aborted {
		t.Fatalf("state = %v; want Aborted", ctx.State())
	}
}

func TestLockRowRequiresTableLock(t *testing.T) {
	lm, reg := newManager()
	ctx := reg.Begin(primitives.RepeatableRead)
	rid := primitives.NewRID(1, 0)

	err := lm.LockRow(ctx, "accounts", rid, primitives.Shared)
	if err == nil {
		t.Fatal("expected row lock without a table lock to abort")
	}
	if reason := abortReason(t, err); reason != dberr.TableLockNotPresent {
		t.Fatalf("reason = %v; want TableLockNotPresent", reason)
	}
}

func TestLockRowRejectsIntentionModes(t *testing.T) {
	lm, reg := newManager()
	ctx := reg.Begin(primitives.RepeatableRead)
	rid := primitives.NewRID(1, 0)

	if err := lm.LockTable(ctx, "accounts", primitives.IntentionExclusive); err != nil {
		t.Fatalf("table lock failed: %v", err)
	}
	err := lm.LockRow(ctx, "accounts", rid, primitives.IntentionExclusive)
	if err == nil {
		t.Fatal("expected intention-mode row lock to abort")
	}
	if reason := abortReason(t, err); reason != dberr.AttemptedIntentionLockOnRow {
		t.Fatalf("reason = %v; want AttemptedIntentionLockOnRow", reason)
	}
}

func TestLockRowExclusiveNeedsCoveringTableMode(t *testing.T) {
	lm, reg := newManager()
	ctx := reg.Begin(primitives.RepeatableRead)
	rid := primitives.NewRID(1, 0)

	if err := lm.LockTable(ctx, "accounts", primitives.IntentionShared); err != nil {
		t.Fatalf("table lock failed: %v", err)
	}
	err := lm.LockRow(ctx, "accounts", rid, primitives.Exclusive)
	if err == nil {
		t.Fatal("expected row X under table IS to abort")
	}
	if reason := abortReason(t, err); reason != dberr.TableLockNotPresent {
		t.Fatalf("reason = %v; want TableLockNotPresent", reason)
	}
}

func TestUnlockTableBeforeRowsAborts(t *testing.T) {
	lm, reg := newManager()
	ctx := reg.Begin(primitives.RepeatableRead)
	rid := primitives.NewRID(1, 0)

	if err := lm.LockTable(ctx, "accounts", primitives.IntentionExclusive); err != nil {
		t.Fatalf("table lock failed: %v", err)
	}
	if err := lm.LockRow(ctx, "accounts", rid, primitives.Exclusive); err != nil {
		t.Fatalf("row lock failed: %v", err)
	}

	err := lm.UnlockTable(ctx, "accounts")
	if err == nil {
		t.Fatal("expected unlocking table with row locks held to abort")
	}
	if reason := abortReason(t, err); reason != dberr.TableUnlockedBeforeUnlockingRows {
		t.Fatalf("reason = %v; want TableUnlockedBeforeUnlockingRows", reason)
	}
}

func TestUnlockWithoutHoldingAborts(t *testing.T) {
	lm, reg := newManager()
	ctx := reg.Begin(primitives.RepeatableRead)

	err := lm.UnlockTable(ctx, "accounts")
	if err == nil {
		t.Fatal("expected unlock without holding to abort")
	}
	if reason := abortReason(t, err); reason != dberr.AttemptedUnlockButNoLockHeld {
		t.Fatalf("reason = %v; want AttemptedUnlockButNoLockHeld", reason)
	}
}

func TestIsolationReadUncommittedRejectsSharedFamily(t *testing.T) {
	lm, reg := newManager()
	ctx := reg.Begin(primitives.ReadUncommitted)

	err := lm.LockTable(ctx, "accounts", primitives.Shared)
	if err == nil {
		t.Fatal("expected read_uncommitted S lock to abort")
	}
	if reason := abortReason(t, err); reason != dberr.LockSharedOnReadUncommitted {
		t.Fatalf("reason = %v; want LockSharedOnReadUncommitted", reason)
	}
}

func TestIsolationRepeatableReadForbidsLockWhileShrinking(t *testing.T) {
	lm, reg := newManager()
	ctx := reg.Begin(primitives.RepeatableRead)
	ctx.SetState(primitives.Shrinking)

	err := lm.LockTable(ctx, "accounts", primitives.IntentionShared)
	if err == nil {
		t.Fatal("expected lock while shrinking under repeatable_read to abort")
	}
	if reason := abortReason(t, err); reason != dberr.LockOnShrinking {
		t.Fatalf("reason = %v; want LockOnShrinking", reason)
	}
}

func TestIsolationReadCommittedAllowsSharedWhileShrinking(t *testing.T) {
	lm, reg := newManager()
	ctx := reg.Begin(primitives.ReadCommitted)
	ctx.SetState(primitives.Shrinking)

	if err := lm.LockTable(ctx, "accounts", primitives.IntentionShared); err != nil {
		t.Fatalf("expected shared-family lock while shrinking under read_committed to succeed, got: %v", err)
	}
}

func TestReleaseTransitionsRepeatableReadToShrinking(t *testing.T) {
	lm, reg := newManager()
	ctx := reg.Begin(primitives.RepeatableRead)

	if err := lm.LockTable(ctx, "accounts", primitives.Shared); err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	if err := lm.UnlockTable(ctx, "accounts"); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	if ctx.State() != primitives.Shrinking {
		t.Fatalf("state = %v; want Shrinking", ctx.State())
	}
}

func TestFIFOOrderingAmongWaiters(t *testing.T) {
	lm, reg := newManager()
	holder := reg.Begin(primitives.RepeatableRead)
	waiterA := reg.Begin(primitives.RepeatableRead)
	waiterB := reg.Begin(primitives.RepeatableRead)

	if err := lm.LockTable(holder, "accounts", primitives.Exclusive); err != nil {
		t.Fatalf("holder lock failed: %v", err)
	}

	var order []string
	var mu sync.Mutex
	var wg sync.WaitGroup

	startA := make(chan struct{})
	startB := make(chan struct{})

	wg.Add(2)
	go func() {
		defer wg.Done()
		close(startA)
		if err := lm.LockTable(waiterA, "accounts", primitives.Shared); err != nil {
			t.Errorf("waiterA lock failed: %v", err)
			return
		}
		mu.Lock()
		order = append(order, "A")
		mu.Unlock()
	}()
	<-startA
	time.Sleep(5 * time.Millisecond)

	go func() {
		defer wg.Done()
		close(startB)
		if err := lm.LockTable(waiterB, "accounts", primitives.Shared); err != nil {
			t.Errorf("waiterB lock failed: %v", err)
			return
		}
		mu.Lock()
		order = append(order, "B")
		mu.Unlock()
	}()
	<-startB
	time.Sleep(5 * time.Millisecond)

	if err := lm.UnlockTable(holder, "accounts"); err != nil {
		t.Fatalf("holder unlock failed: %v", err)
	}

	wg.Wait()

	if len(order) != 2 || order[0] != "A" || order[1] != "B" {
		t.Fatalf("grant order = %v; want [A B]", order)
	}
}

func TestDeadlockDetectionAbortsHighestID(t *testing.T) {
	lm, reg := newManager()
	t1 := reg.Begin(primitives.RepeatableRead)
	t2 := reg.Begin(primitives.RepeatableRead)

	if t2.ID() < t1.ID() {
		t1, t2 = t2, t1
	}

	if err := lm.LockTable(t1, "a", primitives.Exclusive); err != nil {
		t.Fatalf("t1 lock a failed: %v", err)
	}
	if err := lm.LockTable(t2, "b", primitives.Exclusive); err != nil {
		t.Fatalf("t2 lock b failed: %v", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	lm.Start(runCtx)
	defer func() {
		cancel()
		_ = lm.Stop()
	}()

	errCh1 := make(chan error, 1)
	errCh2 := make(chan error, 1)

	go func() { errCh1 <- lm.LockTable(t1, "b", primitives.Exclusive) }()
	time.Sleep(5 * time.Millisecond)
	go func() { errCh2 <- lm.LockTable(t2, "a", primitives.Exclusive) }()

	// The detector aborts the higher-id transaction first; its lock attempt
	// returns a deadlock error. A real rollback would then release every
	// lock it already held — simulate just enough of that here so the
	// survivor's own wait can be satisfied. t1 originally held "a" and is
	// waiting on "b"; t2 originally held "b" and is waiting on "a" — so
	// whichever one is the victim, release its *original* hold to unblock
	// the other.
	var victimErr error
	var survivorCh chan error
	var victim *transaction.Context
	var heldByVictim string
	select {
	case victimErr = <-errCh1:
		survivorCh = errCh2
		victim = t1
		heldByVictim = "a"
	case victimErr = <-errCh2:
		survivorCh = errCh1
		victim = t2
		heldByVictim = "b"
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the deadlock detector to abort a transaction")
	}

	if victim != t2 {
		t.Fatalf("victim = %v; want the higher-id transaction %v", victim.ID(), t2.ID())
	}
	if victimErr == nil {
		t.Fatal("expected the deadlock victim's lock attempt to return an error")
	}
	if reason := abortReason(t, victimErr); reason != dberr.Deadlock {
		t.Fatalf("reason = %v; want Deadlock", reason)
	}

	if err := lm.UnlockTable(victim, heldByVictim); err != nil {
		t.Fatalf("releasing victim's held lock failed: %v", err)
	}

	select {
	case survivorErr := <-survivorCh:
		if survivorErr != nil {
			t.Fatalf("expected the surviving transaction's lock to succeed, got: %v", survivorErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the survivor's lock to be granted")
	}
}
