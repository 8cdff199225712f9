package gate

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate bounds the number of concurrent outbound remote calls. Slots are
// granted in arrival order, so long-waiting requests cannot be starved,
// and a caller that abandons its wait never consumes a slot.
type Gate struct {
	capacity int64
	sem      *semaphore.Weighted
	inFlight atomic.Int64
}

func New(capacity int) *Gate {
	return &Gate{
		capacity: int64(capacity),
		sem:      semaphore.NewWeighted(int64(capacity)),
	}
}

// Acquire blocks until a slot is free or the context expires.
func (gate *Gate) Acquire(ctx context.Context) error {
	if err := gate.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	gate.inFlight.Add(1)

	return nil
}

// Release returns a slot acquired via Acquire.
func (gate *Gate) Release() {
	gate.inFlight.Add(-1)
	gate.sem.Release(1)
}

func (gate *Gate) Capacity() int64 {
	return gate.capacity
}

// InFlight returns the number of currently held slots.
func (gate *Gate) InFlight() int64 {
	return gate.inFlight.Load()
}
