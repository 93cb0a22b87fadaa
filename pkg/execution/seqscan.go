package execution

import (
	"coredb/pkg/concurrency/lock"
	"coredb/pkg/concurrency/transaction"
	"coredb/pkg/heap"
	"coredb/pkg/primitives"
	"coredb/pkg/tuple"
)

// SeqScan walks a table heap in page/slot order, applying an optional
// pushed predicate. It locks the table IS (skipped entirely under
// read_uncommitted, per the spec's isolation-driven locking-elision rule)
// and, under repeatable_read, takes a row S lock on every tuple it visits
// before returning it.
type SeqScan struct {
	table     *Table
	lm        *lock.LockManager
	predicate Predicate

	txn *transaction.Context
	it  *heap.Iterator
}

// NewSeqScan builds a full (or predicate-filtered, if predicate is
// non-nil) scan of table.
func NewSeqScan(table *Table, lm *lock.LockManager, predicate Predicate) *SeqScan {
	return &SeqScan{table: table, lm: lm, predicate: predicate}
}

func (s *SeqScan) Init(txn *transaction.Context) error {
	s.txn = txn
	if txn.Isolation() != primitives.ReadUncommitted {
		if err := s.lm.LockTable(txn, s.table.Name, primitives.IntentionShared); err != nil {
			return err
		}
	}
	s.it = s.table.Heap.NewIterator()
	return nil
}

func (s *SeqScan) Next() (*tuple.Tuple, primitives.RID, bool, error) {
	for s.it.Valid() {
		t, rid := s.it.Current()
		s.it.Next()

		if s.txn.Isolation() == primitives.RepeatableRead {
			if err := s.lm.LockRow(s.txn, s.table.Name, rid, primitives.Shared); err != nil {
				return nil, 0, false, err
			}
		}

		if s.predicate != nil && !s.predicate(t) {
			continue
		}
		return t, rid, true, nil
	}
	return nil, 0, false, nil
}

func (s *SeqScan) Close() error { return nil }
