package transaction

import (
	"sync"
	"testing"
	"time"

	"coredb/pkg/primitives"
)

func TestNewContext(t *testing.T) {
	ctx := NewContext(primitives.NewTxnID(), primitives.RepeatableRead)

	if ctx.State() != primitives.Growing {
		t.Errorf("expected Growing, got %v", ctx.State())
	}
	if !ctx.IsActive() {
		t.Error("expected new transaction to be active")
	}
	if ctx.Isolation() != primitives.RepeatableRead {
		t.Error("isolation level not preserved")
	}
}

func TestContextIsActive(t *testing.T) {
	ctx := NewContext(primitives.NewTxnID(), primitives.ReadCommitted)

	ctx.SetState(primitives.Shrinking)
	if !ctx.IsActive() {
		t.Error("expected shrinking transaction to still be active")
	}

	ctx.SetState(primitives.Committed)
	if ctx.IsActive() {
		t.Error("expected committed transaction to not be active")
	}
}

func TestContextTableLockBookkeeping(t *testing.T) {
	ctx := NewContext(primitives.NewTxnID(), primitives.ReadCommitted)

	if _, ok := ctx.TableLockMode("accounts"); ok {
		t.Fatal("expected no lock on a fresh context")
	}

	ctx.GrantTableLock("accounts", primitives.IntentionExclusive)
	mode, ok := ctx.TableLockMode("accounts")
	if !ok || mode != primitives.IntentionExclusive {
		t.Fatalf("got (%v, %v); want (IX, true)", mode, ok)
	}

	ctx.ReleaseTableLock("accounts")
	if _, ok := ctx.TableLockMode("accounts"); ok {
		t.Fatal("expected lock to be released")
	}
}

func TestContextRowLockBookkeeping(t *testing.T) {
	ctx := NewContext(primitives.NewTxnID(), primitives.RepeatableRead)
	rid := primitives.NewRID(1, 3)

	if ctx.HasAnyRowLock("accounts") {
		t.Fatal("expected no row locks on a fresh context")
	}

	ctx.GrantRowLock("accounts", rid, primitives.Exclusive)
	if !ctx.HasAnyRowLock("accounts") {
		t.Fatal("expected row lock to be recorded")
	}
	mode, ok := ctx.RowLockMode("accounts", rid)
	if !ok || mode != primitives.Exclusive {
		t.Fatalf("got (%v, %v); want (X, true)", mode, ok)
	}

	ctx.ReleaseRowLock("accounts", rid)
	if ctx.HasAnyRowLock("accounts") {
		t.Fatal("expected row lock to be released")
	}
}

func TestContextWriteJournal(t *testing.T) {
	ctx := NewContext(primitives.NewTxnID(), primitives.ReadCommitted)
	rid := primitives.NewRID(1, 0)

	ctx.RecordWrite(WriteRecord{Table: "accounts", RID: rid, Op: OpInsert, After: []byte("row")})
	ctx.RecordWrite(WriteRecord{Table: "accounts", RID: rid, Op: OpDelete, Before: []byte("row")})

	journal := ctx.Journal()
	if len(journal) != 2 {
		t.Fatalf("len(journal) = %d; want 2", len(journal))
	}
	stats := ctx.Statistics()
	if stats.TuplesWritten != 1 || stats.TuplesDeleted != 1 {
		t.Fatalf("stats = %+v; want TuplesWritten=1 TuplesDeleted=1", stats)
	}
}

func TestContextDirtyPages(t *testing.T) {
	ctx := NewContext(primitives.NewTxnID(), primitives.ReadCommitted)

	ctx.MarkPageDirty(5)
	ctx.MarkPageDirty(5)
	ctx.MarkPageDirty(6)

	pages := ctx.DirtyPages()
	if len(pages) != 2 {
		t.Fatalf("len(DirtyPages()) = %d; want 2 (re-marking shouldn't duplicate)", len(pages))
	}
}

func TestContextDurationFreezesAtTerminalState(t *testing.T) {
	ctx := NewContext(primitives.NewTxnID(), primitives.ReadCommitted)
	time.Sleep(5 * time.Millisecond)

	ctx.SetState(primitives.Committed)
	d1 := ctx.Duration()
	time.Sleep(5 * time.Millisecond)
	d2 := ctx.Duration()

	if d1 != d2 {
		t.Error("expected duration to stop advancing after commit")
	}
}

func TestContextConcurrentAccess(t *testing.T) {
	ctx := NewContext(primitives.NewTxnID(), primitives.ReadCommitted)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx.MarkPageDirty(primitives.PageID(i))
			ctx.RecordTupleRead()
			ctx.GrantTableLock("t", primitives.IntentionShared)
			_ = ctx.State()
		}(i)
	}
	wg.Wait()

	if stats := ctx.Statistics(); stats.TuplesRead != 10 {
		t.Fatalf("TuplesRead = %d; want 10", stats.TuplesRead)
	}
}

func TestRegistryBeginGetRemove(t *testing.T) {
	r := NewRegistry()

	ctx := r.Begin(primitives.RepeatableRead)
	if r.Count() != 1 {
		t.Fatalf("Count() = %d; want 1", r.Count())
	}

	got, err := r.Get(ctx.ID())
	if err != nil || got != ctx {
		t.Fatalf("Get() = (%v, %v); want (%v, nil)", got, err, ctx)
	}

	r.Remove(ctx.ID())
	if _, err := r.Get(ctx.ID()); err == nil {
		t.Fatal("expected error getting a removed transaction")
	}
}

func TestRegistryActiveExcludesTerminalTransactions(t *testing.T) {
	r := NewRegistry()

	active := r.Begin(primitives.ReadCommitted)
	committed := r.Begin(primitives.ReadCommitted)
	committed.SetState(primitives.Committed)

	got := r.Active()
	if len(got) != 1 || got[0] != active {
		t.Fatalf("Active() = %v; want only %v", got, active)
	}
}

func TestRegistryIDsMatchesCount(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 5; i++ {
		r.Begin(primitives.ReadCommitted)
	}

	if ids := r.IDs(); len(ids) != r.Count() {
		t.Fatalf("len(IDs()) = %d; want Count() = %d", len(ids), r.Count())
	}
}
