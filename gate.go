package outflow

import (
	"context"
	"sync"
)

// Gate tracks a monotonically increasing phase counter and lets any number
// of goroutines block until the phase moves past a value they observed
// earlier.
//
// The intended sequence for a waiter is: capture the phase with `Current`,
// re-check the condition it is waiting on, then call `AwaitAdvance` with the
// captured value. Because the wait condition is the numeric comparison
// `phase > observed`, an `Advance` racing with the transition into the wait
// is never lost: the waiter either blocks on a barrier that the advance
// closes, or finds the phase already past its capture and returns at once.
type Gate struct {
	lk      sync.Mutex
	phase   uint64
	barrier chan struct{}
}

func NewGate() *Gate {
	return &Gate{
		barrier: make(chan struct{}),
	}
}

// Current returns the phase to pass to a later `AwaitAdvance` call.
func (g *Gate) Current() uint64 {
	g.lk.Lock()
	defer g.lk.Unlock()
	return g.phase
}

// Advance bumps the phase and releases every goroutine currently blocked in
// `AwaitAdvance`. Calling it with no waiter around simply moves the counter
// forward for future comparisons.
func (g *Gate) Advance() uint64 {
	g.lk.Lock()
	g.phase++
	current := g.phase
	close(g.barrier)
	g.barrier = make(chan struct{})
	g.lk.Unlock()
	return current
}

// AwaitAdvance blocks until the phase becomes strictly greater than
// `observed`, then returns the new phase. It returns immediately if the
// phase already moved past `observed`. The only other way out is ctx
// expiring, in which case `observed` is returned alongside ctx's error.
func (g *Gate) AwaitAdvance(ctx context.Context, observed uint64) (uint64, error) {
	for {
		g.lk.Lock()
		if g.phase > observed {
			current := g.phase
			g.lk.Unlock()
			return current, nil
		}
		barrier := g.barrier
		g.lk.Unlock()

		select {
		case <-ctx.Done():
			return observed, ctx.Err()
		case <-barrier:
		}
	}
}
