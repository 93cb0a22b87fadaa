package execution

import (
	"coredb/pkg/concurrency/transaction"
	"coredb/pkg/primitives"
	"coredb/pkg/tuple"
)

// AggFunc is one of the aggregate functions aggregation supports.
type AggFunc int

const (
	Count AggFunc = iota
	CountStar
	Sum
	Min
	Max
)

// AggExpr names one aggregate in the output: which function, and (for
// everything but CountStar) which input column it reduces over.
type AggExpr struct {
	Func   AggFunc
	Column int
}

type aggState struct {
	groupRow *tuple.Tuple
	counts   []int64
	sums     []int64
	mins     []tuple.Value
	maxs     []tuple.Value
	seen     []bool
}

func newAggState(n int) *aggState {
	return &aggState{
		counts: make([]int64, n),
		sums:   make([]int64, n),
		mins:   make([]tuple.Value, n),
		maxs:   make([]tuple.Value, n),
		seen:   make([]bool, n),
	}
}

func (s *aggState) accumulate(inputSchema *tuple.Schema, aggs []AggExpr, t *tuple.Tuple) {
	for i, agg := range aggs {
		if agg.Func == CountStar {
			s.counts[i]++
			continue
		}
		v := t.GetValue(inputSchema, agg.Column)
		s.counts[i]++
		s.sums[i] += v.Int
		if !s.seen[i] {
			s.mins[i], s.maxs[i] = v, v
			s.seen[i] = true
			continue
		}
		if v.Compare(s.mins[i]) < 0 {
			s.mins[i] = v
		}
		if v.Compare(s.maxs[i]) > 0 {
			s.maxs[i] = v
		}
	}
}

func (s *aggState) value(i int, agg AggExpr) tuple.Value {
	switch agg.Func {
	case Count, CountStar:
		return tuple.Int64Value(s.counts[i])
	case Sum:
		return tuple.Int64Value(s.sums[i])
	case Min:
		return s.mins[i]
	case Max:
		return s.maxs[i]
	default:
		return tuple.Int64Value(0)
	}
}

// Aggregation builds a hash table keyed by group-by tuple, reducing each
// group's rows through aggs. An empty input with no group-by columns still
// yields a single zero-initialized row, matching SQL's convention for
// COUNT/SUM over an empty table.
type Aggregation struct {
	child        Executor
	inputSchema  *tuple.Schema
	groupBy      []int
	aggs         []AggExpr
	outputSchema *tuple.Schema

	results []*tuple.Tuple
	pos     int
}

func NewAggregation(child Executor, inputSchema *tuple.Schema, groupBy []int, aggs []AggExpr, outputSchema *tuple.Schema) *Aggregation {
	return &Aggregation{child: child, inputSchema: inputSchema, groupBy: groupBy, aggs: aggs, outputSchema: outputSchema}
}

func (a *Aggregation) Init(txn *transaction.Context) error {
	if err := a.child.Init(txn); err != nil {
		return err
	}

	groups := make(map[string]*aggState)
	var order []string

	for {
		t, _, ok, err := a.child.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		key := groupKey(a.inputSchema, a.groupBy, t)
		st, exists := groups[key]
		if !exists {
			st = newAggState(len(a.aggs))
			st.groupRow = t
			groups[key] = st
			order = append(order, key)
		}
		st.accumulate(a.inputSchema, a.aggs, t)
	}
	if err := a.child.Close(); err != nil {
		return err
	}

	if len(order) == 0 && len(a.groupBy) == 0 {
		a.results = []*tuple.Tuple{a.buildRow(newAggState(len(a.aggs)))}
		return nil
	}

	a.results = make([]*tuple.Tuple, 0, len(order))
	for _, key := range order {
		a.results = append(a.results, a.buildRow(groups[key]))
	}
	return nil
}

func (a *Aggregation) buildRow(st *aggState) *tuple.Tuple {
	values := make([]tuple.Value, 0, len(a.groupBy)+len(a.aggs))
	for _, col := range a.groupBy {
		values = append(values, st.groupRow.GetValue(a.inputSchema, col))
	}
	for i, agg := range a.aggs {
		values = append(values, st.value(i, agg))
	}
	return tuple.NewTuple(a.outputSchema, values)
}

func (a *Aggregation) Next() (*tuple.Tuple, primitives.RID, bool, error) {
	if a.pos >= len(a.results) {
		return nil, 0, false, nil
	}
	t := a.results[a.pos]
	a.pos++
	return t, 0, true, nil
}

func (a *Aggregation) Close() error { return nil }
