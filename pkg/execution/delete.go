package execution

import (
	"coredb/pkg/concurrency/lock"
	"coredb/pkg/concurrency/transaction"
	"coredb/pkg/primitives"
	"coredb/pkg/tuple"
)

// Delete acquires table IX, then for every (row, rid) its child produces:
// takes a row X lock on rid, tombstones it in the table heap, removes its
// entry from every bound index, and journals the write. It yields the
// deleted row.
type Delete struct {
	table *Table
	lm    *lock.LockManager
	child Executor

	txn *transaction.Context
}

func NewDelete(table *Table, lm *lock.LockManager, child Executor) *Delete {
	return &Delete{table: table, lm: lm, child: child}
}

func (d *Delete) Init(txn *transaction.Context) error {
	d.txn = txn
	if err := d.lm.LockTable(txn, d.table.Name, primitives.IntentionExclusive); err != nil {
		return err
	}
	return d.child.Init(txn)
}

func (d *Delete) Next() (*tuple.Tuple, primitives.RID, bool, error) {
	t, rid, ok, err := d.child.Next()
	if err != nil || !ok {
		return nil, 0, false, err
	}

	if err := d.lm.LockRow(d.txn, d.table.Name, rid, primitives.Exclusive); err != nil {
		return nil, 0, false, err
	}

	d.table.Heap.DeleteTuple(rid)

	d.txn.RecordWrite(transaction.WriteRecord{
		Table:  d.table.Name,
		RID:    rid,
		Op:     transaction.OpDelete,
		Before: append([]byte(nil), t.Data...),
	})

	for _, idx := range d.table.Indexes {
		key := keyOf(t, d.table.Schema, idx.KeyColumn)
		idx.Index.Delete(key)
	}

	return t, rid, true, nil
}

func (d *Delete) Close() error { return d.child.Close() }
