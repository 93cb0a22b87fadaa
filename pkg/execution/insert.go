package execution

import (
	"fmt"

	"coredb/pkg/concurrency/lock"
	"coredb/pkg/concurrency/transaction"
	"coredb/pkg/primitives"
	"coredb/pkg/tuple"
)

// Insert acquires table IX, then for every row its child produces: inserts
// it into the table heap, takes a row X lock on the new RID, updates every
// index bound to the table, and records the write in the transaction's
// journal. It yields the inserted row, so a caller can count or further
// process what was written.
type Insert struct {
	table *Table
	lm    *lock.LockManager
	child Executor

	txn *transaction.Context
}

func NewInsert(table *Table, lm *lock.LockManager, child Executor) *Insert {
	return &Insert{table: table, lm: lm, child: child}
}

func (in *Insert) Init(txn *transaction.Context) error {
	in.txn = txn
	if err := in.lm.LockTable(txn, in.table.Name, primitives.IntentionExclusive); err != nil {
		return err
	}
	return in.child.Init(txn)
}

func (in *Insert) Next() (*tuple.Tuple, primitives.RID, bool, error) {
	t, _, ok, err := in.child.Next()
	if err != nil || !ok {
		return nil, 0, false, err
	}

	rid, inserted := in.table.Heap.InsertTuple(t)
	if !inserted {
		return nil, 0, false, fmt.Errorf("execution: insert into %q failed: buffer pool exhausted", in.table.Name)
	}

	if err := in.lm.LockRow(in.txn, in.table.Name, rid, primitives.Exclusive); err != nil {
		return nil, 0, false, err
	}

	in.txn.RecordWrite(transaction.WriteRecord{
		Table: in.table.Name,
		RID:   rid,
		Op:    transaction.OpInsert,
		After: append([]byte(nil), t.Data...),
	})

	for _, idx := range in.table.Indexes {
		key := keyOf(t, in.table.Schema, idx.KeyColumn)
		idx.Index.Insert(key, rid)
	}

	return t, rid, true, nil
}

func (in *Insert) Close() error { return in.child.Close() }
