// Copyright 2026 The RHI Authors. All rights reserved.

package pipeline

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/karlsen-gfx/rhi/driver"
	"github.com/karlsen-gfx/rhi/handle"
	"github.com/karlsen-gfx/rhi/resource"
)

// ShaderFingerprint identifies a compiled shader module, as
// returned by the external shader compiler alongside its
// bytecode and reflection record.
type ShaderFingerprint uint64

// GraphicsKey is the identity of a graphics pipeline: the
// fingerprints of its stages, the layout it was built against,
// a render-pass compatibility key (render passes that agree on
// attachment formats and sample counts are compatible, even if
// they are not the same handle) and the fixed-function state
// vector.
// GraphicsKey must be comparable (Go map key): fixed-function
// state that contains slices (blend state varies per render
// target) is folded into StateHash via reflectSignature rather
// than embedded directly.
type GraphicsKey struct {
	VertFP, FragFP ShaderFingerprint
	Layout         handle.Handle
	PassCompat     uint64
	StateHash      uint64
	Topology       driver.Topology
	Samples        int
	Subpass        int
}

// GraphicsStateHash folds the fixed-function state of a
// graphics pipeline (rasterizer, depth/stencil, blend, vertex
// input layout) into the StateHash field of a GraphicsKey.
func GraphicsStateHash(raster driver.RasterState, ds driver.DSState, blend driver.BlendState, input []driver.VertexIn) uint64 {
	return reflectSignature(struct {
		Raster driver.RasterState
		DS     driver.DSState
		Blend  driver.BlendState
		Input  []driver.VertexIn
	}{raster, ds, blend, input})
}

// ComputeKey is the identity of a compute pipeline.
type ComputeKey struct {
	FP     ShaderFingerprint
	Layout handle.Handle
}

// Cache is the frame graph's pipeline and descriptor cache: it
// interns pipeline and descriptor-set layouts, compiles (or
// reuses) pipeline objects, and hands out per-frame descriptor
// sets from an LRU-backed pool.
type Cache struct {
	gpu driver.GPU

	layouts *layoutCache

	pipelineMu sync.RWMutex
	graphics   map[GraphicsKey]*pipelineEntry
	compute    map[ComputeKey]*pipelineEntry

	compileGroup singleflight.Group

	descPool  *DescriptorPool
	resources *handle.Table[PipelineResources]
}

type pipelineEntry struct {
	handle handle.Handle
	native driver.Pipeline
}

// NewCache creates a Cache bound to gpu. framePoolSize is the
// maximum number of descriptor sets an individual frame slot's
// LRU pool may hold before evicting the least recently used
// entry; an evicted entry's driver.DescHeap is queued on retire
// rather than dropped.
func NewCache(gpu driver.GPU, frameSlots, framePoolSize int, retire *resource.RetirementRing) *Cache {
	return &Cache{
		gpu:       gpu,
		layouts:   newLayoutCache(),
		graphics:  make(map[GraphicsKey]*pipelineEntry),
		compute:   make(map[ComputeKey]*pipelineEntry),
		descPool:  newDescriptorPool(frameSlots, framePoolSize, retire),
		resources: handle.NewTable[PipelineResources](handle.DescriptorSet),
	}
}

// InternSetLayout interns a descriptor-set layout; see
// layoutCache.InternSetLayout.
func (c *Cache) InternSetLayout(desc DescSetLayoutDesc) handle.Handle {
	return c.layouts.InternSetLayout(desc)
}

// InternPipelineLayout interns a pipeline layout; see
// layoutCache.InternPipelineLayout.
func (c *Cache) InternPipelineLayout(desc PipelineLayoutDesc) handle.Handle {
	return c.layouts.InternPipelineLayout(desc)
}

// GraphicsPipeline returns the pipeline registered for key,
// compiling it via build on a cache miss. Concurrent misses on
// the same key share a single compilation: only one goroutine
// calls build; the rest wait on its result.
func (c *Cache) GraphicsPipeline(key GraphicsKey, build func() (driver.Pipeline, error)) (driver.Pipeline, error) {
	c.pipelineMu.RLock()
	if e, ok := c.graphics[key]; ok {
		c.pipelineMu.RUnlock()
		return e.native, nil
	}
	c.pipelineMu.RUnlock()

	sfKey := fmt.Sprintf("graphics:%#v", key)
	v, err, _ := c.compileGroup.Do(sfKey, func() (any, error) {
		c.pipelineMu.RLock()
		if e, ok := c.graphics[key]; ok {
			c.pipelineMu.RUnlock()
			return e.native, nil
		}
		c.pipelineMu.RUnlock()

		native, err := build()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCompileFailed, err)
		}
		c.pipelineMu.Lock()
		c.graphics[key] = &pipelineEntry{native: native}
		c.pipelineMu.Unlock()
		return native, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(driver.Pipeline), nil
}

// ComputePipeline returns the pipeline registered for key,
// compiling it via build on a cache miss, coalescing concurrent
// misses exactly like GraphicsPipeline.
func (c *Cache) ComputePipeline(key ComputeKey, build func() (driver.Pipeline, error)) (driver.Pipeline, error) {
	c.pipelineMu.RLock()
	if e, ok := c.compute[key]; ok {
		c.pipelineMu.RUnlock()
		return e.native, nil
	}
	c.pipelineMu.RUnlock()

	sfKey := fmt.Sprintf("compute:%#v", key)
	v, err, _ := c.compileGroup.Do(sfKey, func() (any, error) {
		c.pipelineMu.RLock()
		if e, ok := c.compute[key]; ok {
			c.pipelineMu.RUnlock()
			return e.native, nil
		}
		c.pipelineMu.RUnlock()

		native, err := build()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCompileFailed, err)
		}
		c.pipelineMu.Lock()
		c.compute[key] = &pipelineEntry{native: native}
		c.pipelineMu.Unlock()
		return native, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(driver.Pipeline), nil
}

// DescriptorPool exposes the Cache's per-frame descriptor-set
// pool.
func (c *Cache) DescriptorPool() *DescriptorPool { return c.descPool }
