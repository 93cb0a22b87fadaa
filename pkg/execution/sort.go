package execution

import (
	"sort"

	"coredb/pkg/concurrency/transaction"
	"coredb/pkg/primitives"
	"coredb/pkg/tuple"
)

// Sort materializes its child fully on Init and emits rows in the order
// given by orderBy, using a stable sort so rows that compare equal keep
// their original relative order.
type Sort struct {
	child   Executor
	schema  *tuple.Schema
	orderBy []OrderBy

	rows []*tuple.Tuple
	rids []primitives.RID
	pos  int
}

func NewSort(child Executor, schema *tuple.Schema, orderBy []OrderBy) *Sort {
	return &Sort{child: child, schema: schema, orderBy: orderBy}
}

func (s *Sort) Init(txn *transaction.Context) error {
	if err := s.child.Init(txn); err != nil {
		return err
	}

	for {
		t, rid, ok, err := s.child.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		s.rows = append(s.rows, t)
		s.rids = append(s.rids, rid)
	}
	if err := s.child.Close(); err != nil {
		return err
	}

	idx := make([]int, len(s.rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return lessByOrderBy(s.schema, s.orderBy, s.rows[idx[i]], s.rows[idx[j]])
	})

	sortedRows := make([]*tuple.Tuple, len(s.rows))
	sortedRIDs := make([]primitives.RID, len(s.rids))
	for i, j := range idx {
		sortedRows[i] = s.rows[j]
		sortedRIDs[i] = s.rids[j]
	}
	s.rows, s.rids = sortedRows, sortedRIDs
	return nil
}

func (s *Sort) Next() (*tuple.Tuple, primitives.RID, bool, error) {
	if s.pos >= len(s.rows) {
		return nil, 0, false, nil
	}
	t, rid := s.rows[s.pos], s.rids[s.pos]
	s.pos++
	return t, rid, true, nil
}

func (s *Sort) Close() error { return nil }
