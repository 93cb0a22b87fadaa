package execution

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"coredb/pkg/btree"
	"coredb/pkg/buffer"
	"coredb/pkg/concurrency/lock"
	"coredb/pkg/concurrency/transaction"
	"coredb/pkg/disk"
	"coredb/pkg/heap"
	"coredb/pkg/primitives"
	"coredb/pkg/tuple"
)

var peopleSchema = tuple.NewSchema(
	tuple.Column{Name: "id", Type: tuple.Int64},
	tuple.Column{Name: "age", Type: tuple.Int64},
	tuple.Column{Name: "name", Type: tuple.Varchar},
)

func newHarness(t *testing.T) (*buffer.Manager, *lock.LockManager, *transaction.Registry) {
	t.Helper()
	fs := afero.NewMemMapFs()
	dm, err := disk.New(fs, "/data/coredb.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.Close() })

	bpm := buffer.NewManager(dm, 64, 2)
	registry := transaction.NewRegistry()
	lm := lock.NewLockManager(registry, time.Second)
	return bpm, lm, registry
}

func newPeopleTable(t *testing.T, bpm *buffer.Manager, withIndex bool) *Table {
	t.Helper()
	h := heap.NewTableHeap(bpm)
	table := &Table{Name: "people", Schema: peopleSchema, Heap: h}
	if withIndex {
		idx := btree.Open(bpm, "people_by_id", 4, 4)
		table.Indexes = []*IndexBinding{{Name: "people_by_id", Index: idx, KeyColumn: 0}}
	}
	return table
}

func personRow(id, age int64, name string) *tuple.Tuple {
	return tuple.NewTuple(peopleSchema, []tuple.Value{
		tuple.Int64Value(id),
		tuple.Int64Value(age),
		tuple.VarcharValue(name),
	})
}

// sliceSource replays a fixed slice of rows, the simplest possible child
// executor for testing operators in isolation.
type sliceSource struct {
	rows []*tuple.Tuple
	pos  int
}

func newSliceSource(rows ...*tuple.Tuple) *sliceSource { return &sliceSource{rows: rows} }

func (s *sliceSource) Init(txn *transaction.Context) error { return nil }

func (s *sliceSource) Next() (*tuple.Tuple, primitives.RID, bool, error) {
	if s.pos >= len(s.rows) {
		return nil, 0, false, nil
	}
	t := s.rows[s.pos]
	rid := primitives.NewRID(primitives.PageID(s.pos), 0)
	s.pos++
	return t, rid, true, nil
}

func (s *sliceSource) Close() error { return nil }

func drain(t *testing.T, exec Executor, txn *transaction.Context) []*tuple.Tuple {
	t.Helper()
	require.NoError(t, exec.Init(txn))
	var out []*tuple.Tuple
	for {
		row, _, ok, err := exec.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		out = append(out, row)
	}
	require.NoError(t, exec.Close())
	return out
}

func TestInsertThenSeqScan(t *testing.T) {
	bpm, lm, registry := newHarness(t)
	table := newPeopleTable(t, bpm, true)

	txn := registry.Begin(primitives.RepeatableRead)
	ins := NewInsert(table, lm, newSliceSource(
		personRow(1, 30, "ada"),
		personRow(2, 25, "grace"),
	))
	inserted := drain(t, ins, txn)
	require.Len(t, inserted, 2)

	scan := NewSeqScan(table, lm, nil)
	rows := drain(t, scan, txn)
	require.Len(t, rows, 2)
	require.Equal(t, int64(1), rows[0].GetValue(peopleSchema, 0).Int)
	require.Equal(t, int64(2), rows[1].GetValue(peopleSchema, 0).Int)
}

func TestSeqScanWithPredicate(t *testing.T) {
	bpm, lm, registry := newHarness(t)
	table := newPeopleTable(t, bpm, false)

	txn := registry.Begin(primitives.ReadCommitted)
	drain(t, NewInsert(table, lm, newSliceSource(
		personRow(1, 30, "ada"),
		personRow(2, 17, "minor"),
		personRow(3, 40, "grace"),
	)), txn)

	adults := func(row *tuple.Tuple) bool {
		return row.GetValue(peopleSchema, 1).Int >= 18
	}
	scan := NewSeqScan(table, lm, adults)
	rows := drain(t, scan, txn)
	require.Len(t, rows, 2)
	for _, r := range rows {
		require.GreaterOrEqual(t, r.GetValue(peopleSchema, 1).Int, int64(18))
	}
}

func TestIndexScanWithStartKey(t *testing.T) {
	bpm, lm, registry := newHarness(t)
	table := newPeopleTable(t, bpm, true)

	txn := registry.Begin(primitives.ReadCommitted)
	drain(t, NewInsert(table, lm, newSliceSource(
		personRow(5, 1, "e"),
		personRow(1, 1, "a"),
		personRow(3, 1, "c"),
	)), txn)

	start := int64(3)
	scan := &IndexScan{table: table, binding: table.Indexes[0], lm: lm, StartKey: &start}
	rows := drain(t, scan, txn)
	require.Len(t, rows, 2)
	require.Equal(t, int64(3), rows[0].GetValue(peopleSchema, 0).Int)
	require.Equal(t, int64(5), rows[1].GetValue(peopleSchema, 0).Int)
}

func TestDeleteRemovesFromHeapAndIndex(t *testing.T) {
	bpm, lm, registry := newHarness(t)
	table := newPeopleTable(t, bpm, true)

	txn := registry.Begin(primitives.ReadCommitted)
	drain(t, NewInsert(table, lm, newSliceSource(personRow(1, 30, "ada"))), txn)

	scanAll := NewSeqScan(table, lm, nil)
	del := NewDelete(table, lm, scanAll)
	deleted := drain(t, del, txn)
	require.Len(t, deleted, 1)

	_, found := table.Indexes[0].Index.Get(1)
	require.False(t, found)

	remaining := drain(t, NewSeqScan(table, lm, nil), txn)
	require.Empty(t, remaining)
}

func TestFilterAndProjection(t *testing.T) {
	src := newSliceSource(personRow(1, 30, "ada"), personRow(2, 10, "kid"))
	filtered := NewFilter(src, func(t *tuple.Tuple) bool {
		return t.GetValue(peopleSchema, 1).Int >= 18
	})
	nameSchema := tuple.NewSchema(tuple.Column{Name: "name", Type: tuple.Varchar})
	proj := NewProjection(filtered, nameSchema, []ProjectExpr{ProjectColumn(peopleSchema, 2)})

	registry := transaction.NewRegistry()
	txn := registry.Begin(primitives.ReadCommitted)
	rows := drain(t, proj, txn)
	require.Len(t, rows, 1)
	require.Equal(t, "ada", rows[0].GetValue(nameSchema, 0).Str)
}

func TestNestedLoopJoinInnerAndLeft(t *testing.T) {
	left := func() *sliceSource {
		return newSliceSource(personRow(1, 0, "a"), personRow(2, 0, "b"))
	}
	right := func() *sliceSource {
		return newSliceSource(personRow(1, 0, "x"))
	}
	predicate := func(l, r *tuple.Tuple) bool {
		return l.GetValue(peopleSchema, 0).Int == r.GetValue(peopleSchema, 0).Int
	}
	combine := func(l, r *tuple.Tuple) *tuple.Tuple {
		if r == nil {
			return l
		}
		return r
	}

	registry := transaction.NewRegistry()
	txn := registry.Begin(primitives.ReadCommitted)

	inner := NewNestedLoopJoin(left(), right(), InnerJoin, predicate, combine)
	innerRows := drain(t, inner, txn)
	require.Len(t, innerRows, 1)

	outer := NewNestedLoopJoin(left(), right(), LeftJoin, predicate, combine)
	outerRows := drain(t, outer, txn)
	require.Len(t, outerRows, 2)
}

func TestHashJoinLeftJoinKeepsUnmatchedRows(t *testing.T) {
	leftRows := newSliceSource(personRow(1, 0, "a"), personRow(2, 0, "b"), personRow(3, 0, "c"))
	rightRows := newSliceSource(personRow(2, 0, "y"), personRow(3, 0, "z"))

	keyFn := func(t *tuple.Tuple) string {
		return t.GetValue(peopleSchema, 0).String()
	}
	combine := func(l, r *tuple.Tuple) *tuple.Tuple {
		if r == nil {
			return l
		}
		return r
	}

	registry := transaction.NewRegistry()
	txn := registry.Begin(primitives.ReadCommitted)

	hj := NewHashJoin(leftRows, rightRows, LeftJoin, keyFn, keyFn, combine)
	rows := drain(t, hj, txn)
	require.Len(t, rows, 3)
}

func TestNestedIndexJoin(t *testing.T) {
	bpm, lm, registry := newHarness(t)
	inner := newPeopleTable(t, bpm, true)

	setupTxn := registry.Begin(primitives.ReadCommitted)
	drain(t, NewInsert(inner, lm, newSliceSource(personRow(1, 0, "x"), personRow(2, 0, "y"))), setupTxn)

	left := newSliceSource(personRow(1, 0, "probe1"), personRow(3, 0, "probe3"))
	keyFn := func(t *tuple.Tuple) int64 { return t.GetValue(peopleSchema, 0).Int }
	combine := func(l, r *tuple.Tuple) *tuple.Tuple {
		if r == nil {
			return l
		}
		return r
	}

	txn := registry.Begin(primitives.ReadCommitted)
	join := NewNestedIndexJoin(left, inner, inner.Indexes[0], lm, LeftJoin, keyFn, combine)
	rows := drain(t, join, txn)
	require.Len(t, rows, 2)
	require.Equal(t, "x", rows[0].GetValue(peopleSchema, 2).Str)
	require.Equal(t, "probe3", rows[1].GetValue(peopleSchema, 2).Str)
}

func TestAggregationGroupBy(t *testing.T) {
	src := newSliceSource(
		personRow(1, 30, "x"),
		personRow(2, 40, "x"),
		personRow(3, 10, "y"),
	)
	outSchema := tuple.NewSchema(
		tuple.Column{Name: "name", Type: tuple.Varchar},
		tuple.Column{Name: "count", Type: tuple.Int64},
		tuple.Column{Name: "total_age", Type: tuple.Int64},
	)
	agg := NewAggregation(src, peopleSchema, []int{2}, []AggExpr{
		{Func: CountStar},
		{Func: Sum, Column: 1},
	}, outSchema)

	registry := transaction.NewRegistry()
	txn := registry.Begin(primitives.ReadCommitted)
	rows := drain(t, agg, txn)
	require.Len(t, rows, 2)

	totals := map[string][2]int64{}
	for _, r := range rows {
		name := r.GetValue(outSchema, 0).Str
		totals[name] = [2]int64{r.GetValue(outSchema, 1).Int, r.GetValue(outSchema, 2).Int}
	}
	require.Equal(t, [2]int64{2, 70}, totals["x"])
	require.Equal(t, [2]int64{1, 10}, totals["y"])
}

func TestAggregationEmptyInputNoGroupByYieldsZeroRow(t *testing.T) {
	src := newSliceSource()
	outSchema := tuple.NewSchema(tuple.Column{Name: "count", Type: tuple.Int64})
	agg := NewAggregation(src, peopleSchema, nil, []AggExpr{{Func: CountStar}}, outSchema)

	registry := transaction.NewRegistry()
	txn := registry.Begin(primitives.ReadCommitted)
	rows := drain(t, agg, txn)
	require.Len(t, rows, 1)
	require.Equal(t, int64(0), rows[0].GetValue(outSchema, 0).Int)
}

func TestSortAscAndDescStable(t *testing.T) {
	src := newSliceSource(personRow(2, 0, "b"), personRow(1, 0, "a1"), personRow(1, 0, "a2"))

	registry := transaction.NewRegistry()
	txn := registry.Begin(primitives.ReadCommitted)

	asc := NewSort(src, peopleSchema, []OrderBy{{Column: 0}})
	rows := drain(t, asc, txn)
	require.Equal(t, []string{"a1", "a2", "b"}, []string{
		rows[0].GetValue(peopleSchema, 2).Str,
		rows[1].GetValue(peopleSchema, 2).Str,
		rows[2].GetValue(peopleSchema, 2).Str,
	})

	src2 := newSliceSource(personRow(2, 0, "b"), personRow(1, 0, "a"))
	desc := NewSort(src2, peopleSchema, []OrderBy{{Column: 0, Desc: true}})
	rows2 := drain(t, desc, txn)
	require.Equal(t, int64(2), rows2[0].GetValue(peopleSchema, 0).Int)
	require.Equal(t, int64(1), rows2[1].GetValue(peopleSchema, 0).Int)
}

func TestTopNKeepsBestN(t *testing.T) {
	src := newSliceSource(
		personRow(5, 0, "e"),
		personRow(1, 0, "a"),
		personRow(4, 0, "d"),
		personRow(2, 0, "b"),
		personRow(3, 0, "c"),
	)

	registry := transaction.NewRegistry()
	txn := registry.Begin(primitives.ReadCommitted)

	top := NewTopN(src, peopleSchema, []OrderBy{{Column: 0}}, 2)
	rows := drain(t, top, txn)
	require.Len(t, rows, 2)
	require.Equal(t, int64(1), rows[0].GetValue(peopleSchema, 0).Int)
	require.Equal(t, int64(2), rows[1].GetValue(peopleSchema, 0).Int)
}
