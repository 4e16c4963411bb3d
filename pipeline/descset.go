// Copyright 2026 The RHI Authors. All rights reserved.

package pipeline

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/karlsen-gfx/rhi/driver"
	"github.com/karlsen-gfx/rhi/handle"
	"github.com/karlsen-gfx/rhi/ids"
	"github.com/karlsen-gfx/rhi/resource"
)

// BindingValue is one entry of a PipelineResources table: the
// concrete resource bound to a uniform_id, copy-on-write so that
// deriving one PipelineResources from another to change a
// single binding never disturbs sets already interned from the
// original.
type BindingValue struct {
	UniformID int
	Buffer    driver.Buffer
	BufOffset int64
	BufSize   int64
	View      driver.ImageView
	Sampler   driver.Sampler
}

// PipelineResources is the copy-on-write bindings table the
// descriptor pool hashes to intern concrete descriptor sets.
// Two tables whose Bindings compare equal, bound against the
// same layout, always resolve to the same descriptor set within
// a frame.
type PipelineResources struct {
	Layout   handle.Handle
	Bindings []BindingValue
}

func (r PipelineResources) hash() uint64 {
	return reflectSignature(r)
}

// set returns a copy of r with the binding for uniform replaced
// (or appended), preserving the copy-on-write contract: r itself
// is never mutated, so any descriptor set already interned from
// it stays valid.
func (r PipelineResources) set(uniform ids.UniformID, v BindingValue) PipelineResources {
	v.UniformID = int(uniform)
	out := PipelineResources{Layout: r.Layout, Bindings: append([]BindingValue(nil), r.Bindings...)}
	for i := range out.Bindings {
		if out.Bindings[i].UniformID == v.UniformID {
			out.Bindings[i] = v
			return out
		}
	}
	out.Bindings = append(out.Bindings, v)
	return out
}

// BindBuffer binds a buffer range to uniform, returning the
// derived table.
func (r PipelineResources) BindBuffer(uniform ids.UniformID, buf driver.Buffer, offset, size int64) PipelineResources {
	return r.set(uniform, BindingValue{Buffer: buf, BufOffset: offset, BufSize: size})
}

// BindImage binds a storage image view to uniform.
func (r PipelineResources) BindImage(uniform ids.UniformID, view driver.ImageView) PipelineResources {
	return r.set(uniform, BindingValue{View: view})
}

// BindTexture binds a sampled image view to uniform. At the
// PipelineResources level a texture and a storage image are
// both just an ImageView binding; the distinction is carried by
// the descriptor-set layout's Binding.Type, not by the table.
func (r PipelineResources) BindTexture(uniform ids.UniformID, view driver.ImageView) PipelineResources {
	return r.set(uniform, BindingValue{View: view})
}

// BindSampler binds a sampler to uniform.
func (r PipelineResources) BindSampler(uniform ids.UniformID, s driver.Sampler) PipelineResources {
	return r.set(uniform, BindingValue{Sampler: s})
}

// BindBufferView binds a texel buffer view to uniform. The
// driver interface models a buffer view as a plain Buffer plus
// byte range, so this is equivalent to BindBuffer; the separate
// name exists to match the client API vocabulary in callers that
// distinguish structured-buffer from texel-buffer bindings.
func (r PipelineResources) BindBufferView(uniform ids.UniformID, buf driver.Buffer, offset, size int64) PipelineResources {
	return r.BindBuffer(uniform, buf, offset, size)
}

// BindImageView binds a specific mip/layer view of an image to
// uniform, equivalent to BindImage.
func (r PipelineResources) BindImageView(uniform ids.UniformID, view driver.ImageView) PipelineResources {
	return r.BindImage(uniform, view)
}

// BindRayTracingScene binds a top-level acceleration structure
// to uniform. The driver abstraction this module targets has no
// ray-tracing acceleration-structure type of its own, so the
// scene is threaded through as an opaque buffer handle backing
// the structure's serialized form; backends that implement
// driver.RayTracer are expected to interpret it.
func (r PipelineResources) BindRayTracingScene(uniform ids.UniformID, scene driver.Buffer) PipelineResources {
	return r.set(uniform, BindingValue{Buffer: scene})
}

// descSet is one descriptor-set allocation handed out by a
// frame slot's pool.
type descSet struct {
	heap driver.DescHeap
}

// framePool is the LRU-evicted descriptor-set cache for a
// single frame slot. It is reset wholesale (Purge) when its
// frame retires; there is no per-set free path, matching the
// "pools are reset as a whole" rule.
type framePool struct {
	mu  sync.Mutex
	lru *lru.Cache[uint64, *descSet]
}

// DescriptorPool owns one framePool per in-flight frame slot.
type DescriptorPool struct {
	slots []*framePool
}

// newDescriptorPool creates a DescriptorPool. Evictions forced by
// capacity are routed to retire's queue for the evicting slot
// rather than dropped: the heap may still be bound to in-flight
// GPU work, so its Destroy must wait for that slot's fence the
// same way a released resource's does.
func newDescriptorPool(frameSlots, capacity int, retire *resource.RetirementRing) *DescriptorPool {
	if frameSlots < 1 {
		frameSlots = 1
	}
	if capacity < 1 {
		capacity = 1
	}
	p := &DescriptorPool{slots: make([]*framePool, frameSlots)}
	for i := range p.slots {
		frameSlot := i
		onEvict := func(_ uint64, ds *descSet) {
			if ds.heap == nil {
				return
			}
			retire.Enqueue(frameSlot, func() { ds.heap.Destroy() })
		}
		c, _ := lru.NewWithEvict[uint64, *descSet](capacity, onEvict)
		p.slots[i] = &framePool{lru: c}
	}
	return p
}

// Acquire returns the descriptor set for res within frameSlot,
// allocating and writing it via allocate on first use this
// frame. A lookup hit reuses the existing set untouched
// (descriptor idempotence): binding the same PipelineResources
// twice in the same frame never re-issues driver writes.
func (p *DescriptorPool) Acquire(frameSlot int, res PipelineResources, allocate func() (driver.DescHeap, error)) (driver.DescHeap, error) {
	slot := p.slots[frameSlot]
	key := res.hash()

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if ds, ok := slot.lru.Get(key); ok {
		return ds.heap, nil
	}
	heap, err := allocate()
	if err != nil {
		return nil, err
	}
	slot.lru.Add(key, &descSet{heap: heap})
	return heap, nil
}

// Reset purges every descriptor set pooled for frameSlot. Purge
// runs the same onEvict callback as a capacity eviction, so the
// heaps are enqueued on frameSlot's retirement queue rather than
// destroyed inline; that queue is drained once more on this
// slot's next turn, which is always safe since Reset itself only
// runs once the frame's fence has already signaled.
func (p *DescriptorPool) Reset(frameSlot int) {
	p.slots[frameSlot].mu.Lock()
	p.slots[frameSlot].lru.Purge()
	p.slots[frameSlot].mu.Unlock()
}

// Len reports how many descriptor sets are currently pooled for
// frameSlot, mostly useful for tests.
func (p *DescriptorPool) Len(frameSlot int) int {
	p.slots[frameSlot].mu.Lock()
	defer p.slots[frameSlot].mu.Unlock()
	return p.slots[frameSlot].lru.Len()
}
