package execution

import (
	"sort"

	"coredb/pkg/concurrency/transaction"
	"coredb/pkg/primitives"
	"coredb/pkg/tuple"
)

// TopN keeps only the best n rows by orderBy, without ever materializing
// more than n+1 rows at a time. Each incoming row is inserted in sorted
// position; once the buffer exceeds n, the worst entry is evicted.
type TopN struct {
	child   Executor
	schema  *tuple.Schema
	orderBy []OrderBy
	n       int

	rows []*tuple.Tuple
	rids []primitives.RID
	pos  int
}

func NewTopN(child Executor, schema *tuple.Schema, orderBy []OrderBy, n int) *TopN {
	return &TopN{child: child, schema: schema, orderBy: orderBy, n: n}
}

func (t *TopN) Init(txn *transaction.Context) error {
	if err := t.child.Init(txn); err != nil {
		return err
	}

	for {
		row, rid, ok, err := t.child.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		t.insert(row, rid)
	}
	return t.child.Close()
}

func (t *TopN) insert(row *tuple.Tuple, rid primitives.RID) {
	pos := sort.Search(len(t.rows), func(i int) bool {
		return lessByOrderBy(t.schema, t.orderBy, row, t.rows[i])
	})

	if pos >= t.n {
		return
	}

	t.rows = append(t.rows, nil)
	t.rids = append(t.rids, 0)
	copy(t.rows[pos+1:], t.rows[pos:])
	copy(t.rids[pos+1:], t.rids[pos:])
	t.rows[pos] = row
	t.rids[pos] = rid

	if len(t.rows) > t.n {
		t.rows = t.rows[:t.n]
		t.rids = t.rids[:t.n]
	}
}

func (t *TopN) Next() (*tuple.Tuple, primitives.RID, bool, error) {
	if t.pos >= len(t.rows) {
		return nil, 0, false, nil
	}
	row, rid := t.rows[t.pos], t.rids[t.pos]
	t.pos++
	return row, rid, true, nil
}

func (t *TopN) Close() error { return nil }
