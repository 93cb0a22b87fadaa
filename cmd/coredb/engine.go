package main

import (
	"context"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"coredb/pkg/btree"
	"coredb/pkg/buffer"
	"coredb/pkg/concurrency/lock"
	"coredb/pkg/concurrency/transaction"
	"coredb/pkg/config"
	"coredb/pkg/disk"
	"coredb/pkg/execution"
	"coredb/pkg/heap"
	"coredb/pkg/logging"
	"coredb/pkg/primitives"
	"coredb/pkg/tuple"
)

var accountsSchema = tuple.NewSchema(
	tuple.Column{Name: "id", Type: tuple.Int64},
	tuple.Column{Name: "balance", Type: tuple.Int64},
	tuple.Column{Name: "owner", Type: tuple.Varchar},
)

// engine bundles a running instance of the core: everything a scripted
// workload needs to run statements against a single demo table.
type engine struct {
	disk     *disk.Manager
	bpm      *buffer.Manager
	registry *transaction.Registry
	lm       *lock.LockManager
	accounts *execution.Table
}

// newEngine opens (or creates) the on-disk data file under cfg.DataDir,
// wires the buffer pool and lock manager over it, and opens the demo
// "accounts" table with its primary-key index.
func newEngine(cfg config.Config) (*engine, error) {
	fs := afero.NewOsFs()
	if err := fs.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}

	dataFile := filepath.Join(cfg.DataDir, "coredb-"+uuid.NewString()+".db")
	dm, err := disk.New(fs, dataFile)
	if err != nil {
		return nil, err
	}
	logging.Info("opened data file", "path", dataFile)

	bpm := buffer.NewManager(dm, cfg.BufferPoolSize, cfg.ReplacerK)
	registry := transaction.NewRegistry()
	lm := lock.NewLockManager(registry, cfg.DeadlockDetectionInterval)

	h := heap.NewTableHeap(bpm)
	idx := btree.Open(bpm, "accounts_by_id", 32, 32)
	accounts := &execution.Table{
		Name:   "accounts",
		Schema: accountsSchema,
		Heap:   h,
		Indexes: []*execution.IndexBinding{
			{Name: "accounts_by_id", Index: idx, KeyColumn: 0},
		},
	}

	return &engine{disk: dm, bpm: bpm, registry: registry, lm: lm, accounts: accounts}, nil
}

func (e *engine) begin() *transaction.Context {
	return e.registry.Begin(primitives.RepeatableRead)
}

func (e *engine) close() error {
	if err := e.bpm.FlushAll(); err != nil {
		return err
	}
	return e.disk.Close()
}

// startDeadlockDetector runs the lock manager's background detector for
// the lifetime of the demo command.
func (e *engine) startDeadlockDetector() func() error {
	e.lm.Start(context.Background())
	return e.lm.Stop
}
