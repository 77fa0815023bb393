// Package runtime orchestrates turn execution: fan-out, admission
// control, retries, and the join of per-participant outcomes. It holds
// no domain rules beyond task lifecycle bookkeeping.
package runtime

import "context"

// Gate is a bounded semaphore limiting how many generation tasks run
// simultaneously across all participants of a turn. Admission is
// FIFO-ish via the runtime scheduler; no stronger fairness is promised.
type Gate struct {
	slots chan struct{}
}

func NewGate(maxConcurrent int) *Gate {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Gate{slots: make(chan struct{}, maxConcurrent)}
}

// Acquire blocks until a slot is free or ctx is cancelled. It holds no
// task-specific state; callers must pair it with Release.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gate) Release() {
	<-g.slots
}

// InFlight reports the number of currently held slots.
func (g *Gate) InFlight() int {
	return len(g.slots)
}
