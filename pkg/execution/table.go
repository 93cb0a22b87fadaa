package execution

import (
	"coredb/pkg/btree"
	"coredb/pkg/heap"
	"coredb/pkg/tuple"
)

// IndexBinding names one B+ tree index maintained over a table: which
// schema column its key is drawn from. coredb's B+ tree is fixed to int64
// keys, so the bound column must be Int32 or Int64.
type IndexBinding struct {
	Name      string
	Index     *btree.Index
	KeyColumn int
}

// Table bundles a table heap with its schema and the indexes that insert
// and delete must keep in sync, the minimal stand-in for the catalog this
// core's executors are written against.
type Table struct {
	Name    string
	Schema  *tuple.Schema
	Heap    *heap.TableHeap
	Indexes []*IndexBinding
}

// keyOf extracts the int64 index key named by col from t, per schema.
func keyOf(t *tuple.Tuple, schema *tuple.Schema, col int) int64 {
	return t.GetValue(schema, col).Int
}
