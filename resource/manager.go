// Copyright 2026 The RHI Authors. All rights reserved.

package resource

import (
	"sync"

	"github.com/karlsen-gfx/rhi/driver"
	"github.com/karlsen-gfx/rhi/handle"
)

// ImageDesc is the creation descriptor for an Image resource.
type ImageDesc struct {
	PixelFmt driver.PixelFmt
	Size     driver.Dim3D
	Layers   int
	Levels   int
	Samples  int
	Usage    driver.Usage
}

// BufferDesc is the creation descriptor for a Buffer resource.
type BufferDesc struct {
	Size    int64
	Visible bool
	Usage   driver.Usage
}

// RenderPassDesc is the creation descriptor for a RenderPass.
type RenderPassDesc struct {
	Attachments []driver.Attachment
	Subpasses   []driver.Subpass
}

// FramebufferDesc is the creation descriptor for a Framebuffer.
// Like samplers and render passes, it is content-addressable:
// two descriptors comparing equal resolve to the same handle
// with an incremented refcount.
type FramebufferDesc struct {
	Pass   handle.Handle
	Views  []driver.ImageView
	Width  int
	Height int
	Layers int
}

// Manager owns every handle.Table the frame graph issues
// resources from, the content-addressable cache used to dedupe
// sharable resources, and two sub-allocators (Slab, Ring) whose
// occupancy MemoryStats reports. CreateImage and CreateBuffer do
// not allocate from them: the driver allocates those resources'
// memory itself.
type Manager struct {
	gpu driver.GPU

	tables [handle.TypeCount]*handle.Table[*Record]

	cacheMu sync.Mutex
	// cache maps a content hash to the handles of every live
	// resource that produced it. Most entries have exactly one
	// member; a second member only appears on a genuine hash
	// collision, at which point equalDesc disambiguates.
	cache map[uint64][]handle.Handle

	Slab *Allocator
	Ring *Allocator

	Retire *RetirementRing
}

// NewManager creates a Manager bound to gpu. frameSlots is the
// number of in-flight frames the retirement ring and the ring
// allocator must keep separate.
func NewManager(gpu driver.GPU, frameSlots int) *Manager {
	m := &Manager{
		gpu:    gpu,
		cache:  make(map[uint64][]handle.Handle),
		Slab:   newSlabAllocator(),
		Ring:   newRingAllocator(frameSlots),
		Retire: newRetirementRing(frameSlots),
	}
	for i := range m.tables {
		m.tables[i] = handle.NewTable[*Record](handle.Type(i))
	}
	return m
}

func (m *Manager) table(kind handle.Type) *handle.Table[*Record] {
	return m.tables[kind]
}

// MemoryStats is a snapshot of the resource manager's two
// sub-allocators, for a host application's own diagnostics.
type MemoryStats struct {
	Slab Stats
	Ring Stats
}

// MemoryStats reports the current live/peak/capacity occupancy of
// the slab and ring sub-allocators.
func (m *Manager) MemoryStats() MemoryStats {
	return MemoryStats{Slab: m.Slab.Stats(), Ring: m.Ring.Stats()}
}

// Valid reports whether h currently resolves to a live record,
// satisfying taskgraph.Validator. A nil or fabricated handle, or
// one whose generation has since been freed, is not valid.
func (m *Manager) Valid(h handle.Handle) bool {
	if h.IsNil() || int(h.Type()) >= len(m.tables) {
		return false
	}
	return m.table(h.Type()).Valid(h)
}

// record looks up the bookkeeping Record for h, failing if h is
// stale, fabricated, or simply of the wrong Type for the call
// site that asked for it.
func (m *Manager) record(h handle.Handle, wantKind handle.Type) (*Record, error) {
	if h.Type() != wantKind {
		return nil, ErrWrongType
	}
	r, ok := m.table(wantKind).Get(h)
	if !ok {
		return nil, ErrInvalidHandle
	}
	return r, nil
}

// intern returns a handle for a sharable resource whose
// descriptor compares equal to desc, creating a new one via
// create only on a genuine cache miss. A hit bumps the existing
// record's reference count instead of allocating anything.
func (m *Manager) intern(kind handle.Type, desc any, name string, create func() (any, error)) (handle.Handle, error) {
	hash := contentHash(desc)
	tbl := m.table(kind)

	m.cacheMu.Lock()
	for _, cand := range m.cache[hash] {
		r, ok := tbl.Get(cand)
		if !ok {
			continue
		}
		if r.ContentHash == hash && equalDesc(r.Desc, desc) {
			r.refs.Add(1)
			m.cacheMu.Unlock()
			return cand, nil
		}
	}
	m.cacheMu.Unlock()

	native, err := create()
	if err != nil {
		return handle.Nil, err
	}
	h := tbl.Alloc(newRecord(handle.Nil, kind, true, hash, desc, native, name))
	rec, _ := tbl.Get(h)
	rec.Handle = h

	m.cacheMu.Lock()
	m.cache[hash] = append(m.cache[hash], h)
	m.cacheMu.Unlock()

	return h, nil
}

// createTransient allocates a fresh, non-shared resource. Two
// calls with identical descriptors always return distinct
// handles (buffers and images are mutable storage, never safe
// to alias behind the caller's back).
func (m *Manager) createTransient(kind handle.Type, desc any, name string, create func() (any, error)) (handle.Handle, error) {
	native, err := create()
	if err != nil {
		return handle.Nil, err
	}
	tbl := m.table(kind)
	h := tbl.Alloc(newRecord(handle.Nil, kind, false, 0, desc, native, name))
	rec, _ := tbl.Get(h)
	rec.Handle = h
	return h, nil
}

// CreateImage creates a new Image resource. Images are never
// interned: two image descriptors comparing equal still refer
// to physically distinct, independently mutable storage.
func (m *Manager) CreateImage(desc ImageDesc, debugName string) (handle.Handle, error) {
	if desc.Size.Width <= 0 || desc.Size.Height <= 0 || desc.Layers <= 0 || desc.Levels <= 0 {
		return handle.Nil, ErrValidationFailed
	}
	return m.createTransient(handle.Image, desc, debugName, func() (any, error) {
		return m.gpu.NewImage(desc.PixelFmt, desc.Size, desc.Layers, desc.Levels, desc.Samples, desc.Usage)
	})
}

// CreateBuffer creates a new Buffer resource.
func (m *Manager) CreateBuffer(desc BufferDesc, debugName string) (handle.Handle, error) {
	if desc.Size <= 0 {
		return handle.Nil, ErrValidationFailed
	}
	return m.createTransient(handle.Buffer, desc, debugName, func() (any, error) {
		return m.gpu.NewBuffer(desc.Size, desc.Visible, desc.Usage)
	})
}

// CreateSampler creates or reuses a Sampler whose state compares
// equal to spln.
func (m *Manager) CreateSampler(spln driver.Sampling, debugName string) (handle.Handle, error) {
	return m.intern(handle.Sampler, spln, debugName, func() (any, error) {
		s := spln
		return m.gpu.NewSampler(&s)
	})
}

// CreateRenderPass creates or reuses a RenderPass whose
// attachment and subpass layout compares equal to desc.
func (m *Manager) CreateRenderPass(desc RenderPassDesc, debugName string) (handle.Handle, error) {
	return m.intern(handle.RenderPass, desc, debugName, func() (any, error) {
		return m.gpu.NewRenderPass(desc.Attachments, desc.Subpasses)
	})
}

// CreateFramebuffer creates or reuses a Framebuffer whose
// RenderPass, views and extent compare equal to desc.
func (m *Manager) CreateFramebuffer(desc FramebufferDesc, debugName string) (handle.Handle, error) {
	passRec, err := m.record(desc.Pass, handle.RenderPass)
	if err != nil {
		return handle.Nil, err
	}
	pass := passRec.Native.(driver.RenderPass)
	return m.intern(handle.Framebuffer, desc, debugName, func() (any, error) {
		return pass.NewFB(desc.Views, desc.Width, desc.Height, desc.Layers)
	})
}

// CreateGraphicsPipeline creates or reuses a graphics Pipeline
// whose state vector compares equal to state.
func (m *Manager) CreateGraphicsPipeline(state driver.GraphState, debugName string) (handle.Handle, error) {
	return m.intern(handle.GraphicsPipeline, state, debugName, func() (any, error) {
		s := state
		return m.gpu.NewPipeline(&s)
	})
}

// CreateComputePipeline creates or reuses a compute Pipeline
// whose state vector compares equal to state.
func (m *Manager) CreateComputePipeline(state driver.CompState, debugName string) (handle.Handle, error) {
	return m.intern(handle.ComputePipeline, state, debugName, func() (any, error) {
		s := state
		return m.gpu.NewPipeline(&s)
	})
}

// CreateMeshPipeline creates or reuses a mesh-shader Pipeline
// whose state vector compares equal to state. It fails with
// ErrUnsupportedFeature if the bound GPU does not implement
// driver.MeshCapable.
func (m *Manager) CreateMeshPipeline(state driver.MeshState, debugName string) (handle.Handle, error) {
	mc, ok := m.gpu.(driver.MeshCapable)
	if !ok {
		return handle.Nil, ErrUnsupportedFeature
	}
	return m.intern(handle.MeshPipeline, state, debugName, func() (any, error) {
		s := state
		return mc.NewMeshState(&s)
	})
}

// CreateRayTracingPipeline creates or reuses a ray-tracing
// Pipeline whose state compares equal to state. It fails with
// ErrUnsupportedFeature if the bound GPU does not implement
// driver.RayTracer.
func (m *Manager) CreateRayTracingPipeline(state driver.RTState, debugName string) (handle.Handle, error) {
	rt, ok := m.gpu.(driver.RayTracer)
	if !ok {
		return handle.Nil, ErrUnsupportedFeature
	}
	return m.intern(handle.RayTracingPipeline, state, debugName, func() (any, error) {
		s := state
		return rt.NewRTState(&s)
	})
}

// AcquireResource increments the reference count of the
// resource referred to by h. It fails with ErrInvalidHandle if
// h is stale or fabricated.
func (m *Manager) AcquireResource(h handle.Handle) error {
	r, ok := m.table(h.Type()).Get(h)
	if !ok {
		return ErrInvalidHandle
	}
	r.refs.Add(1)
	return nil
}

// ReleaseResource decrements the reference count of the
// resource referred to by h. When the count reaches zero the
// resource is moved to the Destroying state and its driver
// object is enqueued for destruction on the retirement ring
// bound to frameSlot, rather than destroyed synchronously: the
// GPU may still be executing work that references it.
func (m *Manager) ReleaseResource(h handle.Handle, frameSlot int) (uint32, error) {
	tbl := m.table(h.Type())
	r, ok := tbl.Get(h)
	if !ok {
		return 0, ErrInvalidHandle
	}
	if left := r.refs.Add(-1); left > 0 {
		return uint32(left), nil
	}
	r.State = Destroying
	if r.Sharable {
		m.cacheMu.Lock()
		chain := m.cache[r.ContentHash]
		for i, cand := range chain {
			if cand == h {
				chain = append(chain[:i], chain[i+1:]...)
				break
			}
		}
		if len(chain) == 0 {
			delete(m.cache, r.ContentHash)
		} else {
			m.cache[r.ContentHash] = chain
		}
		m.cacheMu.Unlock()
	}
	native := r.Native
	view := r.defaultView
	m.Retire.Enqueue(frameSlot, func() {
		if view != nil {
			view.(driver.Destroyer).Destroy()
		}
		if d, ok := native.(driver.Destroyer); ok {
			d.Destroy()
		}
		tbl.Free(h)
	})
	return 0, nil
}

// DefaultView returns a whole-resource image view for h, creating
// and caching it on first use. It fails with ErrWrongType if h
// does not address an Image.
func (m *Manager) DefaultView(h handle.Handle) (driver.ImageView, error) {
	r, err := m.record(h, handle.Image)
	if err != nil {
		return nil, err
	}
	if r.defaultView != nil {
		return r.defaultView.(driver.ImageView), nil
	}
	desc := r.Desc.(ImageDesc)
	img := r.Native.(driver.Image)
	typ := driver.IView2D
	switch {
	case desc.Samples > 1 && desc.Layers > 1:
		typ = driver.IView2DMSArray
	case desc.Samples > 1:
		typ = driver.IView2DMS
	case desc.Layers > 1:
		typ = driver.IView2DArray
	}
	v, err := img.NewView(typ, 0, desc.Layers, 0, desc.Levels)
	if err != nil {
		return nil, err
	}
	r.defaultView = v
	return v, nil
}

// UpdateAccess overwrites the last-submitted access state recorded
// for h. The barrier solver calls this once a frame's command
// buffers have been committed, so the next frame's shadow walk
// starts from where this one left off.
func (m *Manager) UpdateAccess(h handle.Handle, a Access) error {
	r, ok := m.table(h.Type()).Get(h)
	if !ok {
		return ErrInvalidHandle
	}
	r.Access = a
	return nil
}

// AccessOf returns the last-submitted access state recorded for h.
func (m *Manager) AccessOf(h handle.Handle) (Access, error) {
	r, ok := m.table(h.Type()).Get(h)
	if !ok {
		return Access{}, ErrInvalidHandle
	}
	return r.Access, nil
}

// Description returns the creation descriptor recorded for h.
func (m *Manager) Description(h handle.Handle) (any, error) {
	r, ok := m.table(h.Type()).Get(h)
	if !ok {
		return nil, ErrInvalidHandle
	}
	return r.Desc, nil
}

// Native returns the underlying driver object for h, type
// asserted by the caller.
func (m *Manager) Native(h handle.Handle) (any, error) {
	r, ok := m.table(h.Type()).Get(h)
	if !ok {
		return nil, ErrInvalidHandle
	}
	return r.Native, nil
}

// Image returns the driver.Image bound to h.
func (m *Manager) Image(h handle.Handle) (driver.Image, error) {
	r, err := m.record(h, handle.Image)
	if err != nil {
		return nil, err
	}
	return r.Native.(driver.Image), nil
}

// Buffer returns the driver.Buffer bound to h.
func (m *Manager) Buffer(h handle.Handle) (driver.Buffer, error) {
	r, err := m.record(h, handle.Buffer)
	if err != nil {
		return nil, err
	}
	return r.Native.(driver.Buffer), nil
}

// RenderPass returns the driver.RenderPass bound to h.
func (m *Manager) RenderPass(h handle.Handle) (driver.RenderPass, error) {
	r, err := m.record(h, handle.RenderPass)
	if err != nil {
		return nil, err
	}
	return r.Native.(driver.RenderPass), nil
}

// Framebuffer returns the driver.Framebuf bound to h.
func (m *Manager) Framebuffer(h handle.Handle) (driver.Framebuf, error) {
	r, err := m.record(h, handle.Framebuffer)
	if err != nil {
		return nil, err
	}
	return r.Native.(driver.Framebuf), nil
}

// Pipeline returns the driver.Pipeline bound to h, regardless of
// which of the four pipeline handle.Types it was created under.
func (m *Manager) Pipeline(h handle.Handle) (driver.Pipeline, error) {
	switch h.Type() {
	case handle.GraphicsPipeline, handle.ComputePipeline, handle.MeshPipeline, handle.RayTracingPipeline:
	default:
		return nil, ErrWrongType
	}
	r, ok := m.table(h.Type()).Get(h)
	if !ok {
		return nil, ErrInvalidHandle
	}
	return r.Native.(driver.Pipeline), nil
}
