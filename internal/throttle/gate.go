// Package throttle provides counting admission gates that bound how many
// units of work of a given class may be in flight simultaneously.
//
// The scanner uses two independent gates: one for region-level pipelines and
// one for table-level API calls. Gates are plain objects passed by reference
// into every component that needs admission control, never process-wide
// singletons, so tests can substitute small capacities to exercise
// contention deterministically.
package throttle

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Gate is a counting admission gate with a fixed capacity. Acquire blocks
// the caller until a slot is free; Release returns the slot. No fairness is
// guaranteed beyond what the underlying semaphore provides.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int
}

// New returns a Gate admitting at most capacity concurrent holders.
// Capacities below 1 are raised to 1.
func New(capacity int) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	return &Gate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}
}

// Capacity returns the configured slot count.
func (g *Gate) Capacity() int {
	return g.capacity
}

// Acquire blocks until a slot is free or ctx is done. It returns ctx.Err()
// on cancellation; in that case no slot is held and Release must not be
// called.
func (g *Gate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

// Release returns a previously acquired slot.
func (g *Gate) Release() {
	g.sem.Release(1)
}

// Do runs fn while holding one slot. The slot is released on every exit
// path. If the slot cannot be acquired before ctx is done, fn is not run
// and the context error is returned.
func (g *Gate) Do(ctx context.Context, fn func() error) error {
	if err := g.Acquire(ctx); err != nil {
		return err
	}
	defer g.Release()
	return fn()
}
