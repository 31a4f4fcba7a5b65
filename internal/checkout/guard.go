package checkout

import "sync/atomic"

// inflightGuard is a single-slot guard against re-entrant submission. A
// second confirm while one is in flight is dropped, not queued: rapid double
// Enter or double click must not produce two sales.
type inflightGuard struct {
	busy atomic.Bool
}

func (g *inflightGuard) TryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

func (g *inflightGuard) Release() {
	g.busy.Store(false)
}
