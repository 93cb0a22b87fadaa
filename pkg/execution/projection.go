package execution

import (
	"coredb/pkg/concurrency/transaction"
	"coredb/pkg/primitives"
	"coredb/pkg/tuple"
)

// ProjectExpr computes one output column from an input row.
type ProjectExpr func(t *tuple.Tuple) tuple.Value

// Projection evaluates exprs against every child row to build a row in
// outputSchema. Stateless beyond that.
type Projection struct {
	child        Executor
	outputSchema *tuple.Schema
	exprs        []ProjectExpr
}

func NewProjection(child Executor, outputSchema *tuple.Schema, exprs []ProjectExpr) *Projection {
	return &Projection{child: child, outputSchema: outputSchema, exprs: exprs}
}

func (p *Projection) Init(txn *transaction.Context) error { return p.child.Init(txn) }

func (p *Projection) Next() (*tuple.Tuple, primitives.RID, bool, error) {
	t, rid, ok, err := p.child.Next()
	if err != nil || !ok {
		return nil, 0, false, err
	}
	values := make([]tuple.Value, len(p.exprs))
	for i, expr := range p.exprs {
		values[i] = expr(t)
	}
	return tuple.NewTuple(p.outputSchema, values), rid, true, nil
}

func (p *Projection) Close() error { return p.child.Close() }

// ProjectColumn builds a ProjectExpr that copies column col of the input
// schema unchanged, the common case of a projection that just reorders or
// drops columns.
func ProjectColumn(inputSchema *tuple.Schema, col int) ProjectExpr {
	return func(t *tuple.Tuple) tuple.Value { return t.GetValue(inputSchema, col) }
}
