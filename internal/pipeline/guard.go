package pipeline

import "sync/atomic"

// Guard tracks running drains. A plain drain only starts when none is active;
// a forced drain always starts. Share one Guard between every caller that can
// trigger a drain.
type Guard struct {
	active atomic.Int32
}

// TryEnter claims the guard if no drain is active.
func (g *Guard) TryEnter() bool { return g.active.CompareAndSwap(0, 1) }

// Enter claims the guard unconditionally.
func (g *Guard) Enter() { g.active.Add(1) }

// Leave releases one claim. Every successful TryEnter or Enter pairs with one Leave.
func (g *Guard) Leave() { g.active.Add(-1) }

func (g *Guard) InProgress() bool { return g.active.Load() > 0 }
