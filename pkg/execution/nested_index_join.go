package execution

import (
	"coredb/pkg/concurrency/lock"
	"coredb/pkg/concurrency/transaction"
	"coredb/pkg/primitives"
	"coredb/pkg/tuple"
)

// ProbeKeyFunc extracts the int64 probe key for the inner index from a
// left-side row.
type ProbeKeyFunc func(left *tuple.Tuple) int64

// NestedIndexJoin is left-driven: instead of materializing the inner side,
// it probes the inner table's unique-key index once per left row.
type NestedIndexJoin struct {
	left       Executor
	innerTable *Table
	binding    *IndexBinding
	lm         *lock.LockManager
	joinType   JoinType
	keyFn      ProbeKeyFunc
	combine    CombineFunc

	txn *transaction.Context
}

func NewNestedIndexJoin(left Executor, innerTable *Table, binding *IndexBinding, lm *lock.LockManager, joinType JoinType, keyFn ProbeKeyFunc, combine CombineFunc) *NestedIndexJoin {
	return &NestedIndexJoin{left: left, innerTable: innerTable, binding: binding, lm: lm, joinType: joinType, keyFn: keyFn, combine: combine}
}

func (j *NestedIndexJoin) Init(txn *transaction.Context) error {
	j.txn = txn
	if err := j.left.Init(txn); err != nil {
		return err
	}
	return j.lm.LockTable(txn, j.innerTable.Name, primitives.IntentionShared)
}

func (j *NestedIndexJoin) Next() (*tuple.Tuple, primitives.RID, bool, error) {
	for {
		t, rid, ok, err := j.left.Next()
		if err != nil || !ok {
			return nil, 0, false, err
		}

		innerRID, found := j.binding.Index.Get(j.keyFn(t))
		if !found {
			if j.joinType == LeftJoin {
				return j.combine(t, nil), rid, true, nil
			}
			continue
		}

		inner, ok := j.innerTable.Heap.GetTuple(innerRID)
		if !ok {
			if j.joinType == LeftJoin {
				return j.combine(t, nil), rid, true, nil
			}
			continue
		}

		if j.txn.Isolation() == primitives.RepeatableRead {
			if err := j.lm.LockRow(j.txn, j.innerTable.Name, innerRID, primitives.Shared); err != nil {
				return nil, 0, false, err
			}
		}
		return j.combine(t, inner), rid, true, nil
	}
}

func (j *NestedIndexJoin) Close() error { return j.left.Close() }
