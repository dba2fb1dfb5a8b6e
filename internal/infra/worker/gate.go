package worker

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"telegram-media-converter/internal/domain"
	"telegram-media-converter/internal/infra/metrics"
)

// Gate bounds how many conversions run at once. One Gate is built at startup
// and shared by every job. Waiters are admitted in arrival order.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int64
	inUse    atomic.Int64
	waiting  atomic.Int64
}

func NewGate(capacity int) *Gate {
	if capacity <= 0 {
		capacity = 1
	}
	metrics.SetGateCapacity(capacity)
	return &Gate{sem: semaphore.NewWeighted(int64(capacity)), capacity: int64(capacity)}
}

// Slot is a held unit of gate capacity.
type Slot struct {
	gate     *Gate
	released atomic.Bool
}

// Acquire blocks until a slot is free. It never gives up on its own; pass a
// context with a deadline to bound the wait.
func (g *Gate) Acquire(ctx context.Context) (*Slot, error) {
	metrics.SetGateWaiting(g.waiting.Add(1))
	err := g.sem.Acquire(ctx, 1)
	metrics.SetGateWaiting(g.waiting.Add(-1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGateTimeout, err)
	}
	metrics.SetGateInUse(g.inUse.Add(1))
	return &Slot{gate: g}, nil
}

// Release frees the slot. Releasing twice is a bug in the caller and panics.
func (s *Slot) Release() {
	if !s.released.CompareAndSwap(false, true) {
		panic("worker: gate slot released twice")
	}
	metrics.SetGateInUse(s.gate.inUse.Add(-1))
	s.gate.sem.Release(1)
}

func (g *Gate) Capacity() int { return int(g.capacity) }

func (g *Gate) InUse() int { return int(g.inUse.Load()) }

func (g *Gate) Waiting() int { return int(g.waiting.Load()) }
