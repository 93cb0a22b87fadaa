// Package execution implements the pull-based (iterator-model) query
// execution engine: every operator exposes Init/Next/Close, composes with
// its children into a plan tree, and is driven from the root by repeated
// calls to Next. Leaf operators acquire table and row locks through
// [coredb/pkg/concurrency/lock.LockManager] and read/write tuples through a
// [Table]'s [coredb/pkg/heap.TableHeap] and [coredb/pkg/btree.Index]
// bindings.
//
// There is no optimizer here: callers (tests, the demo CLI) build plan
// trees directly out of the concrete node types in this package. Any tree
// of [Executor] is valid input, including ones a real optimizer would have
// produced by substituting nested_index_join or hash_join for nested_loop,
// or top_n for sort+limit.
package execution
