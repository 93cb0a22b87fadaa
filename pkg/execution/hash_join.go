package execution

import (
	"crypto/md5"

	"coredb/pkg/concurrency/transaction"
	"coredb/pkg/primitives"
	"coredb/pkg/tuple"
)

// JoinKeyFunc renders the join expression's value for one side's row as a
// string, the input to the 128-bit hash HashJoin buckets on.
type JoinKeyFunc func(t *tuple.Tuple) string

// HashJoin builds the right side into a hash table keyed by a 128-bit hash
// of the join expression's string form, then streams the left side and
// probes that table once per left row; the left side is not materialized.
type HashJoin struct {
	left, right        Executor
	joinType           JoinType
	leftKeyFn, rightKeyFn JoinKeyFunc
	combine             CombineFunc

	buildTable map[[md5.Size]byte][]*tuple.Tuple

	curLeft     *tuple.Tuple
	curRID      primitives.RID
	probeBucket []*tuple.Tuple
	probePos    int
	matched     bool
}

func NewHashJoin(left, right Executor, joinType JoinType, leftKeyFn, rightKeyFn JoinKeyFunc, combine CombineFunc) *HashJoin {
	return &HashJoin{left: left, right: right, joinType: joinType, leftKeyFn: leftKeyFn, rightKeyFn: rightKeyFn, combine: combine}
}

func (j *HashJoin) Init(txn *transaction.Context) error {
	if err := j.left.Init(txn); err != nil {
		return err
	}
	if err := j.right.Init(txn); err != nil {
		return err
	}

	j.buildTable = make(map[[md5.Size]byte][]*tuple.Tuple)
	for {
		t, _, ok, err := j.right.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		h := md5.Sum([]byte(j.rightKeyFn(t)))
		j.buildTable[h] = append(j.buildTable[h], t)
	}
	return j.right.Close()
}

func (j *HashJoin) Next() (*tuple.Tuple, primitives.RID, bool, error) {
	for {
		if j.curLeft == nil {
			t, rid, ok, err := j.left.Next()
			if err != nil || !ok {
				return nil, 0, false, err
			}
			j.curLeft, j.curRID = t, rid
			h := md5.Sum([]byte(j.leftKeyFn(t)))
			j.probeBucket = j.buildTable[h]
			j.probePos = 0
			j.matched = false
		}

		if j.probePos < len(j.probeBucket) {
			r := j.probeBucket[j.probePos]
			j.probePos++
			j.matched = true
			return j.combine(j.curLeft, r), j.curRID, true, nil
		}

		left, rid := j.curLeft, j.curRID
		matched := j.matched
		j.curLeft = nil

		if j.joinType == LeftJoin && !matched {
			return j.combine(left, nil), rid, true, nil
		}
	}
}

func (j *HashJoin) Close() error { return j.left.Close() }
