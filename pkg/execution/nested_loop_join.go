package execution

import (
	"coredb/pkg/concurrency/transaction"
	"coredb/pkg/primitives"
	"coredb/pkg/tuple"
)

// JoinPredicate tests whether a left and right row match.
type JoinPredicate func(left, right *tuple.Tuple) bool

// CombineFunc builds the joined output row from a left row and a matching
// right row; right is nil for an unmatched left row under a left-outer
// join, and combine must null-pad accordingly.
type CombineFunc func(left, right *tuple.Tuple) *tuple.Tuple

// NestedLoopJoin is left-driven: the inner (right) side is fully
// materialized on Init, then probed in full for every left row.
type NestedLoopJoin struct {
	left, right Executor
	joinType    JoinType
	predicate   JoinPredicate
	combine     CombineFunc

	inner    []*tuple.Tuple
	curLeft  *tuple.Tuple
	curRID   primitives.RID
	probePos int
	matched  bool
}

func NewNestedLoopJoin(left, right Executor, joinType JoinType, predicate JoinPredicate, combine CombineFunc) *NestedLoopJoin {
	return &NestedLoopJoin{left: left, right: right, joinType: joinType, predicate: predicate, combine: combine}
}

func (j *NestedLoopJoin) Init(txn *transaction.Context) error {
	if err := j.left.Init(txn); err != nil {
		return err
	}
	if err := j.right.Init(txn); err != nil {
		return err
	}

	for {
		t, _, ok, err := j.right.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		j.inner = append(j.inner, t)
	}
	return j.right.Close()
}

func (j *NestedLoopJoin) Next() (*tuple.Tuple, primitives.RID, bool, error) {
	for {
		if j.curLeft == nil {
			t, rid, ok, err := j.left.Next()
			if err != nil || !ok {
				return nil, 0, false, err
			}
			j.curLeft, j.curRID = t, rid
			j.probePos = 0
			j.matched = false
		}

		for j.probePos < len(j.inner) {
			r := j.inner[j.probePos]
			j.probePos++
			if j.predicate(j.curLeft, r) {
				j.matched = true
				return j.combine(j.curLeft, r), j.curRID, true, nil
			}
		}

		left, rid := j.curLeft, j.curRID
		matched := j.matched
		j.curLeft = nil

		if j.joinType == LeftJoin && !matched {
			return j.combine(left, nil), rid, true, nil
		}
	}
}

func (j *NestedLoopJoin) Close() error { return j.left.Close() }
