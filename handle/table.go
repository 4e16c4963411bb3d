// Copyright 2026 The RHI Authors. All rights reserved.

package handle

import (
	"sync"

	"github.com/karlsen-gfx/rhi/internal/bitvec"
)

// slot holds one entry of a Table, plus the bookkeeping needed
// to validate and recycle it. Liveness itself is tracked out of
// line, in the Table's alive bit vector, not per slot.
type slot[T any] struct {
	gen   uint8
	value T
}

// Table is a per-type arena of generational handles. It has no
// capacity bound: when no slot is free, Alloc grows the table by
// one bit-vector word of slots. The alive bit vector doubles as
// the free list: Alloc searches it for an unset (free) bit in
// O(words) and sets it;
// Free unsets the bit and bumps the slot's generation so that
// handles captured before the free become detectably stale.
// Range walks only the set bits via bitvec's Only iterator,
// rather than scanning every slot and testing a per-slot flag.
//
// A Table is safe for concurrent use: readers take a shared
// lock, writers (Alloc/Free) take an exclusive one, mirroring
// the fine-grained reader/writer locking the resource manager
// uses per table segment.
type Table[T any] struct {
	typ   Type
	mu    sync.RWMutex
	slot  []slot[T]
	alive bitvec.V[uint64]
}

// NewTable creates an empty Table for handles of type typ.
func NewTable[T any](typ Type) *Table[T] {
	return &Table[T]{typ: typ}
}

// Alloc stores value in a free slot and returns a Handle
// identifying it. The returned handle's generation is always
// at least 1, so the zero Handle is never a valid return value.
func (t *Table[T]) Alloc(value T) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.alive.Search()
	if !ok {
		idx = t.alive.Grow(1)
		t.slot = append(t.slot, make([]slot[T], t.alive.Len()-len(t.slot))...)
	}
	s := &t.slot[idx]
	if s.gen == 0 {
		s.gen = 1
	}
	t.alive.Set(idx)
	s.value = value
	return pack(uint32(idx), s.gen, t.typ)
}

// valid reports whether h refers to a live slot of this table,
// without taking a lock (callers must hold one).
func (t *Table[T]) valid(h Handle) bool {
	if h.Type() != t.typ {
		return false
	}
	idx := int(h.Index())
	if idx >= len(t.slot) {
		return false
	}
	return t.alive.IsSet(idx) && t.slot[idx].gen == h.Generation()
}

// Valid reports whether h currently refers to a live slot of
// this table. A stale or fabricated handle is detectable via
// this method rather than via undefined behavior.
func (t *Table[T]) Valid(h Handle) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.valid(h)
}

// Get returns a copy of the value stored at h, and whether the
// handle was valid. It never mutates the table.
func (t *Table[T]) Get(h Handle) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.valid(h) {
		var zero T
		return zero, false
	}
	return t.slot[h.Index()].value, true
}

// With runs fn with exclusive access to the value stored at h.
// It returns false without calling fn if h is invalid, so fn
// never observes a stale slot.
func (t *Table[T]) With(h Handle, fn func(value *T)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.valid(h) {
		return false
	}
	fn(&t.slot[h.Index()].value)
	return true
}

// Free invalidates h, bumping the slot's generation so that any
// copy of h becomes stale, and returns the value that was
// stored there. It reports false (and leaves the table
// untouched) if h was already invalid, satisfying the
// destruction-safety requirement that no resource is mutated by
// an operation on a stale handle.
func (t *Table[T]) Free(h Handle) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.valid(h) {
		var zero T
		return zero, false
	}
	idx := int(h.Index())
	s := &t.slot[idx]
	value := s.value
	var zero T
	s.value = zero
	t.alive.Unset(idx)
	s.gen++ // wraps to 0 -> Alloc will promote back to 1 on reuse
	return value, true
}

// Len returns the number of slots currently live in the table.
// It is meant for diagnostics and test assertions, not for
// iteration bounds (use Range for that).
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.alive.Len() - t.alive.Rem()
}

// Range calls fn for every live handle in the table, in index
// order. The table must not be mutated from within fn.
func (t *Table[T]) Range(fn func(h Handle, value *T) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := range t.alive.Only(true) {
		s := &t.slot[i]
		h := pack(uint32(i), s.gen, t.typ)
		if !fn(h, &s.value) {
			return
		}
	}
}
