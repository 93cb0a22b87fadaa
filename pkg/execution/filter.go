package execution

import (
	"coredb/pkg/concurrency/transaction"
	"coredb/pkg/primitives"
	"coredb/pkg/tuple"
)

// Filter is a stateless pass-through that drops rows failing predicate.
type Filter struct {
	child     Executor
	predicate Predicate
}

func NewFilter(child Executor, predicate Predicate) *Filter {
	return &Filter{child: child, predicate: predicate}
}

func (f *Filter) Init(txn *transaction.Context) error { return f.child.Init(txn) }

func (f *Filter) Next() (*tuple.Tuple, primitives.RID, bool, error) {
	for {
		t, rid, ok, err := f.child.Next()
		if err != nil || !ok {
			return nil, 0, false, err
		}
		if f.predicate(t) {
			return t, rid, true, nil
		}
	}
}

func (f *Filter) Close() error { return f.child.Close() }
