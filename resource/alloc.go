// Copyright 2026 The RHI Authors. All rights reserved.

package resource

import (
	"sync"

	"github.com/karlsen-gfx/rhi/internal/rlog"
)

// block growth steps are geometric: each exhausted allocator
// doubles its backing arena, up to maxGrowthSteps times, before
// giving up with ErrOutOfMemory. This bounds how much address
// space a runaway caller can force the manager to commit.
const maxGrowthSteps = 8

// Allocator is a simple sub-allocator over an abstract span of
// offsets. It only does the offset bookkeeping: no driver memory
// stands behind it, and no other package of this module draws
// from it (staging and the descriptor pool have their own
// allocators, and resource creation goes through the driver).
//
// Two allocation disciplines are supported:
//   - slab: a buddy-style free-list allocator for long-lived,
//     arbitrarily sized, individually freed blocks.
//   - ring: a linear bump allocator reset wholesale once per
//     frame slot, for transient per-frame scratch.
type Allocator struct {
	mu sync.Mutex

	// discipline selects Alloc's behavior.
	ring bool

	// slab state: power-of-two buddy free lists, keyed by the
	// base-2 log of the block size.
	baseSize int
	steps    int
	free     map[int][]int64 // log2(size) -> free block offsets
	cap      int64

	// ring state: one bump cursor per frame slot.
	slots   int
	cursors []int64
	spans   []int64

	live int64 // bytes currently handed out and not yet freed/reset
	peak int64 // high-water mark of live
}

// Stats reports the allocator's current and historical occupancy,
// for Manager.MemoryStats.
type Stats struct {
	Live int64
	Peak int64
	Cap  int64
}

// Stats returns a's current occupancy.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	c := a.cap
	if a.ring {
		for _, s := range a.spans {
			c += s
		}
	}
	return Stats{Live: a.live, Peak: a.peak, Cap: c}
}

// track records a delta (positive on allocation, negative on free)
// against the live/peak counters. Callers hold a.mu.
func (a *Allocator) track(delta int64) {
	a.live += delta
	if a.live > a.peak {
		a.peak = a.live
	}
}

func newSlabAllocator() *Allocator {
	a := &Allocator{
		baseSize: 1 << 16, // 64 KiB arena granule
		free:     make(map[int][]int64),
	}
	a.growSlab()
	return a
}

func newRingAllocator(frameSlots int) *Allocator {
	if frameSlots < 1 {
		frameSlots = 1
	}
	a := &Allocator{
		ring:    true,
		slots:   frameSlots,
		cursors: make([]int64, frameSlots),
		spans:   make([]int64, frameSlots),
	}
	for i := range a.spans {
		a.spans[i] = int64(a.baseSize)
		if a.spans[i] == 0 {
			a.spans[i] = 1 << 20
		}
	}
	return a
}

func log2(n int64) int {
	l := 0
	for (int64(1) << l) < n {
		l++
	}
	return l
}

func (a *Allocator) growSlab() bool {
	if a.steps >= maxGrowthSteps {
		return false
	}
	sz := int64(a.baseSize) << a.steps
	l := log2(sz)
	a.free[l] = append(a.free[l], a.cap)
	a.cap += sz
	a.steps++
	return true
}

// Alloc reserves size bytes, rounded up to the next power of
// two, and returns the base offset of the reservation.
// Only valid on a slab-discipline Allocator.
func (a *Allocator) Alloc(size int64) (int64, error) {
	if size <= 0 {
		return 0, ErrValidationFailed
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	want := log2(size)
	for {
		for l := want; l <= log2(int64(a.baseSize)<<a.steps); l++ {
			if off, ok := a.pop(l); ok {
				// Split down to the requested size, pushing
				// the unused buddy halves back onto smaller
				// free lists.
				for l > want {
					l--
					half := int64(1) << l
					a.free[l] = append(a.free[l], off+half)
				}
				a.track(size)
				return off, nil
			}
		}
		if !a.growSlab() {
			rlog.Get().Warn("slab allocator exhausted", "requested", size, "cap", a.cap, "steps", a.steps)
			return 0, ErrOutOfMemory
		}
	}
}

func (a *Allocator) pop(l int) (int64, bool) {
	list := a.free[l]
	if len(list) == 0 {
		return 0, false
	}
	off := list[len(list)-1]
	a.free[l] = list[:len(list)-1]
	return off, true
}

// Free returns a slab block previously obtained from Alloc.
// size must match the value originally requested.
func (a *Allocator) Free(off int64, size int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	l := log2(size)
	a.free[l] = append(a.free[l], off)
	a.track(-size)
}

// AllocFrame reserves size bytes from the ring allocator's
// frameSlot cursor. The reservation is valid until the next
// Reset of that slot. Only valid on a ring-discipline
// Allocator.
func (a *Allocator) AllocFrame(frameSlot int, size int64) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	steps := 0
	for {
		cur := a.cursors[frameSlot]
		if cur+size <= a.spans[frameSlot] {
			a.cursors[frameSlot] = cur + size
			a.track(size)
			return cur, nil
		}
		if steps >= maxGrowthSteps {
			rlog.Get().Warn("ring allocator exhausted", "frame_slot", frameSlot, "requested", size, "span", a.spans[frameSlot])
			return 0, ErrOutOfMemory
		}
		a.spans[frameSlot] *= 2
		steps++
	}
}

// Reset rewinds the ring allocator's frameSlot cursor to zero,
// reclaiming every region handed out for that slot in one step.
// Called once the GPU has finished executing the frame that
// occupied the slot.
func (a *Allocator) Reset(frameSlot int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.track(-a.cursors[frameSlot])
	a.cursors[frameSlot] = 0
}
