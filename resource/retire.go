// Copyright 2026 The RHI Authors. All rights reserved.

package resource

import "sync"

// RetirementRing defers destruction of driver objects until the
// GPU work that could still reference them has signaled
// complete. Each frame slot accumulates its own queue of
// cleanup functions; Drain is called by the submission batcher
// once the fence guarding that slot's prior occupant signals.
type RetirementRing struct {
	mu    sync.Mutex
	queue [][]func()
}

func newRetirementRing(frameSlots int) *RetirementRing {
	if frameSlots < 1 {
		frameSlots = 1
	}
	return &RetirementRing{queue: make([][]func(), frameSlots)}
}

// Enqueue appends fn to frameSlot's pending cleanup queue.
func (r *RetirementRing) Enqueue(frameSlot int, fn func()) {
	r.mu.Lock()
	r.queue[frameSlot] = append(r.queue[frameSlot], fn)
	r.mu.Unlock()
}

// Drain runs and clears every cleanup function queued for
// frameSlot, in the order they were enqueued. It is safe to call
// Drain on a slot with nothing queued.
func (r *RetirementRing) Drain(frameSlot int) {
	r.mu.Lock()
	fns := r.queue[frameSlot]
	r.queue[frameSlot] = nil
	r.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Pending reports how many cleanup functions are currently
// queued for frameSlot, mostly useful for tests and debugging.
func (r *RetirementRing) Pending(frameSlot int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue[frameSlot])
}
