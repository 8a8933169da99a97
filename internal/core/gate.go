package core

import (
	"context"
	"sync"
)

// Priority selects which wait queue a gate Acquire call joins.
type Priority int

const (
	// PriorityNormal is used by batch jobs.
	PriorityNormal Priority = iota
	// PriorityHigh is used by ASR-protocol (interactive) requests.
	PriorityHigh
)

// Gate is the global counting semaphore of §5: it bounds concurrently
// running orchestrator pipelines across the entire process, regardless of
// source or session, with two wait queues. On release, a waiter is chosen
// from the priority queue first, otherwise the normal queue, otherwise the
// permit count increments.
//
// This is implemented with plain channels rather than golang.org/x/sync's
// weighted semaphore: that type has no notion of two priority classes, and
// retrofitting one on top of it would need the same waiter bookkeeping
// this does directly.
type Gate struct {
	mu        sync.Mutex
	capacity  int
	inUse     int
	waitHigh  []chan struct{}
	waitNorm  []chan struct{}
}

// NewGate constructs a Gate with the given capacity (default 50 per §5).
func NewGate(capacity int) *Gate {
	if capacity <= 0 {
		capacity = 50
	}
	return &Gate{capacity: capacity}
}

// Acquire blocks until a permit is available or ctx is cancelled. The
// returned release func must be called exactly once.
func (g *Gate) Acquire(ctx context.Context, priority Priority) (release func(), err error) {
	g.mu.Lock()
	if g.inUse < g.capacity {
		g.inUse++
		g.mu.Unlock()
		return func() { g.release() }, nil
	}

	wait := make(chan struct{})
	if priority == PriorityHigh {
		g.waitHigh = append(g.waitHigh, wait)
	} else {
		g.waitNorm = append(g.waitNorm, wait)
	}
	g.mu.Unlock()

	select {
	case <-wait:
		return func() { g.release() }, nil
	case <-ctx.Done():
		g.mu.Lock()
		select {
		case <-wait:
			// release() already closed wait (handing off its permit) before
			// this goroutine got the lock: the select above raced and took
			// the ctx.Done() branch anyway. Accept the permit instead of
			// losing it - the same guard golang.org/x/sync/semaphore's
			// Weighted.Acquire applies around its own identical race.
			g.mu.Unlock()
			return func() { g.release() }, nil
		default:
			g.removeWaiter(wait, priority)
			g.mu.Unlock()
			return nil, ctx.Err()
		}
	}
}

func (g *Gate) removeWaiter(wait chan struct{}, priority Priority) {
	list := &g.waitNorm
	if priority == PriorityHigh {
		list = &g.waitHigh
	}
	for i, w := range *list {
		if w == wait {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return
		}
	}
}

func (g *Gate) release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.waitHigh) > 0 {
		w := g.waitHigh[0]
		g.waitHigh = g.waitHigh[1:]
		close(w)
		return
	}
	if len(g.waitNorm) > 0 {
		w := g.waitNorm[0]
		g.waitNorm = g.waitNorm[1:]
		close(w)
		return
	}
	g.inUse--
}
