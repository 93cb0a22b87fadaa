package execution

import (
	"coredb/pkg/btree"
	"coredb/pkg/concurrency/lock"
	"coredb/pkg/concurrency/transaction"
	"coredb/pkg/primitives"
	"coredb/pkg/tuple"
)

// IndexScan walks a B+ tree's leaf chain, fetching each matching row from
// the owning table heap via its RID. A nil StartKey scans the whole index
// in ascending key order; a non-nil one seeks to the first key >= *StartKey.
type IndexScan struct {
	table    *Table
	binding  *IndexBinding
	lm       *lock.LockManager
	StartKey *int64

	txn *transaction.Context
	it  *btree.Iterator
}

// NewIndexScan builds a scan over binding's index, reading rows from table.
func NewIndexScan(table *Table, binding *IndexBinding, lm *lock.LockManager) *IndexScan {
	return &IndexScan{table: table, binding: binding, lm: lm}
}

func (s *IndexScan) Init(txn *transaction.Context) error {
	s.txn = txn
	if txn.Isolation() != primitives.ReadUncommitted {
		if err := s.lm.LockTable(txn, s.table.Name, primitives.IntentionShared); err != nil {
			return err
		}
	}
	if s.StartKey != nil {
		s.it = s.binding.Index.Seek(*s.StartKey)
	} else {
		s.it = s.binding.Index.NewIterator()
	}
	return nil
}

func (s *IndexScan) Next() (*tuple.Tuple, primitives.RID, bool, error) {
	for s.it.Valid() {
		rid := s.it.RID()
		s.it.Next()

		t, ok := s.table.Heap.GetTuple(rid)
		if !ok {
			continue
		}

		if s.txn.Isolation() == primitives.RepeatableRead {
			if err := s.lm.LockRow(s.txn, s.table.Name, rid, primitives.Shared); err != nil {
				return nil, 0, false, err
			}
		}
		return t, rid, true, nil
	}
	return nil, 0, false, nil
}

func (s *IndexScan) Close() error {
	if s.it != nil {
		s.it.Close()
	}
	return nil
}
