package execution

import (
	"coredb/pkg/concurrency/transaction"
	"coredb/pkg/primitives"
	"coredb/pkg/tuple"
)

// Executor is the pull-based iterator contract every plan node implements.
// Next returns (nil, 0, false, nil) once exhausted; a non-nil error aborts
// the whole plan, typically because the lock manager returned a
// [coredb/pkg/dberr.TransactionAbort].
type Executor interface {
	Init(txn *transaction.Context) error
	Next() (*tuple.Tuple, primitives.RID, bool, error)
	Close() error
}

// Predicate evaluates a boolean condition over a single tuple; used by
// seq_scan's pushed predicate and by filter.
type Predicate func(t *tuple.Tuple) bool

// OrderBy names one sort key for sort and top_n: a column position in the
// schema the rows being ordered are drawn from, and its direction.
type OrderBy struct {
	Column int
	Desc   bool
}

// JoinType selects between inner and left-outer emission for the three
// join operators.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
)

func (j JoinType) String() string {
	if j == LeftJoin {
		return "LEFT"
	}
	return "INNER"
}
