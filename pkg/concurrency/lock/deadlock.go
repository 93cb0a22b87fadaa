package lock

import (
	"sort"

	"coredb/pkg/primitives"
)

// breakDeadlocks rebuilds the wait-for graph and aborts the highest-id
// transaction on any cycle, repeating until the graph is acyclic.
func (lm *LockManager) breakDeadlocks() {
	for {
		edges, waitingOn := lm.waitForGraph()
		victim, found := detectCycleVictim(edges)
		if !found {
			return
		}
		lm.abortAndWake(victim, waitingOn[victim])
	}
}

// waitForGraph snapshots every queue's granted holders and ungranted
// waiters, building a waiter->holder adjacency list plus a reverse index of
// which queues each waiting transaction is blocked on.
func (lm *LockManager) waitForGraph() (map[primitives.TxnID]map[primitives.TxnID]bool, map[primitives.TxnID][]*queueState) {
	lm.mu.Lock()
	queues := make([]*queueState, 0, len(lm.queues))
	for _, qs := range lm.queues {
		queues = append(queues, qs)
	}
	lm.mu.Unlock()

	edges := make(map[primitives.TxnID]map[primitives.TxnID]bool)
	waitingOn := make(map[primitives.TxnID][]*queueState)

	for _, qs := range queues {
		qs.mu.Lock()
		holders := qs.grantedHoldersLocked()
		waiters := qs.ungrantedWaitersLocked()
		qs.mu.Unlock()

		for _, w := range waiters {
			waitingOn[w] = append(waitingOn[w], qs)
			for _, h := range holders {
				if h == w {
					continue
				}
				if edges[w] == nil {
					edges[w] = make(map[primitives.TxnID]bool)
				}
				edges[w][h] = true
			}
		}
	}
	return edges, waitingOn
}

// detectCycleVictim runs a deterministic DFS over edges — ascending
// transaction id at the top level, ascending neighbor id within each
// node — and returns the highest-id transaction on the first cycle found.
func detectCycleVictim(edges map[primitives.TxnID]map[primitives.TxnID]bool) (primitives.TxnID, bool) {
	roots := make([]primitives.TxnID, 0, len(edges))
	for id := range edges {
		roots = append(roots, id)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	visited := make(map[primitives.TxnID]bool)
	for _, root := range roots {
		if visited[root] {
			continue
		}
		if victim, ok := dfsCycle(root, edges, visited, nil); ok {
			return victim, true
		}
	}
	return 0, false
}

func dfsCycle(node primitives.TxnID, edges map[primitives.TxnID]map[primitives.TxnID]bool, visited map[primitives.TxnID]bool, path []primitives.TxnID) (primitives.TxnID, bool) {
	for i, p := range path {
		if p == node {
			cycle := path[i:]
			victim := cycle[0]
			for _, c := range cycle {
				if c > victim {
					victim = c
				}
			}
			return victim, true
		}
	}
	if visited[node] {
		return 0, false
	}
	visited[node] = true

	nextPath := append(append([]primitives.TxnID{}, path...), node)

	neighbors := make([]primitives.TxnID, 0, len(edges[node]))
	for n := range edges[node] {
		neighbors = append(neighbors, n)
	}
	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })

	for _, n := range neighbors {
		if victim, ok := dfsCycle(n, edges, visited, nextPath); ok {
			return victim, true
		}
	}
	return 0, false
}

// abortAndWake forces victim into the Aborted state and broadcasts every
// queue it was blocked on so its acquireOn loop wakes, observes the
// aborted state, and returns a deadlock error.
func (lm *LockManager) abortAndWake(victim primitives.TxnID, queues []*queueState) {
	if ctx, err := lm.registry.Get(victim); err == nil {
		ctx.SetState(primitives.Aborted)
	}
	for _, qs := range queues {
		qs.mu.Lock()
		qs.cond.Broadcast()
		qs.mu.Unlock()
	}
}
