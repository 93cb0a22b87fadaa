package main

import (
	"coredb/pkg/concurrency/transaction"
	"coredb/pkg/primitives"
	"coredb/pkg/tuple"
)

// staticSource replays a fixed slice of rows; the simplest possible leaf
// executor for feeding insert with literal demo rows.
type staticSource struct {
	rows []*tuple.Tuple
	pos  int
}

func newStaticSource(rows []*tuple.Tuple) *staticSource {
	return &staticSource{rows: rows}
}

func (s *staticSource) Init(txn *transaction.Context) error { return nil }

func (s *staticSource) Next() (*tuple.Tuple, primitives.RID, bool, error) {
	if s.pos >= len(s.rows) {
		return nil, 0, false, nil
	}
	t := s.rows[s.pos]
	s.pos++
	return t, 0, true, nil
}

func (s *staticSource) Close() error { return nil }
