// Copyright 2026 The RHI Authors. All rights reserved.

package pipeline_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/karlsen-gfx/rhi/driver"
	"github.com/karlsen-gfx/rhi/pipeline"
	"github.com/karlsen-gfx/rhi/resource"
)

// newTestCache builds a Cache backed by a throwaway retirement
// ring, for tests that don't otherwise need a resource.Manager.
func newTestCache(gpu driver.GPU, frameSlots, framePoolSize int) *pipeline.Cache {
	return pipeline.NewCache(gpu, frameSlots, framePoolSize, resource.NewManager(gpu, frameSlots).Retire)
}

func TestInternSetLayoutDedupes(t *testing.T) {
	c := newTestCache(nil, 2, 8)
	desc := pipeline.DescSetLayoutDesc{Bindings: []pipeline.Binding{
		{Type: driver.DConstant, Stages: driver.SVertex, Nr: 0, Len: 1},
	}}
	h1 := c.InternSetLayout(desc)
	h2 := c.InternSetLayout(desc)
	if h1 != h2 {
		t.Fatalf("equal descriptor-set layouts got distinct handles: %v != %v", h1, h2)
	}

	other := pipeline.DescSetLayoutDesc{Bindings: []pipeline.Binding{
		{Type: driver.DTexture, Stages: driver.SFragment, Nr: 0, Len: 1},
	}}
	h3 := c.InternSetLayout(other)
	if h3 == h1 {
		t.Error("distinct layouts interned to the same handle")
	}
}

func TestInternPipelineLayoutDedupes(t *testing.T) {
	c := newTestCache(nil, 2, 8)
	set := pipeline.DescSetLayoutDesc{Bindings: []pipeline.Binding{
		{Type: driver.DConstant, Stages: driver.SVertex | driver.SFragment, Nr: 0, Len: 1},
	}}
	desc := pipeline.PipelineLayoutDesc{Sets: []pipeline.DescSetLayoutDesc{set}}

	h1 := c.InternPipelineLayout(desc)
	h2 := c.InternPipelineLayout(desc)
	if h1 != h2 {
		t.Fatalf("equal pipeline layouts got distinct handles: %v != %v", h1, h2)
	}
}

type fakePipeline struct{ destroyed bool }

func (p *fakePipeline) Destroy() { p.destroyed = true }

func TestGraphicsPipelineCachesOnKeyHit(t *testing.T) {
	c := newTestCache(nil, 2, 8)
	key := pipeline.GraphicsKey{VertFP: 1, FragFP: 2, Topology: driver.TTriangle}

	var builds int32
	build := func() (driver.Pipeline, error) {
		atomic.AddInt32(&builds, 1)
		return &fakePipeline{}, nil
	}

	p1, err := c.GraphicsPipeline(key, build)
	if err != nil {
		t.Fatalf("GraphicsPipeline: %v", err)
	}
	p2, err := c.GraphicsPipeline(key, build)
	if err != nil {
		t.Fatalf("GraphicsPipeline: %v", err)
	}
	if p1 != p2 {
		t.Error("cache hit returned a different pipeline object")
	}
	if builds != 1 {
		t.Errorf("build called %d times, want 1", builds)
	}
}

func TestGraphicsPipelineConcurrentMissesCoalesce(t *testing.T) {
	c := newTestCache(nil, 2, 8)
	key := pipeline.GraphicsKey{VertFP: 3, FragFP: 4}

	var builds int32
	build := func() (driver.Pipeline, error) {
		atomic.AddInt32(&builds, 1)
		return &fakePipeline{}, nil
	}

	const n = 16
	var wg sync.WaitGroup
	results := make([]driver.Pipeline, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := c.GraphicsPipeline(key, build)
			if err != nil {
				t.Errorf("GraphicsPipeline: %v", err)
				return
			}
			results[i] = p
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatalf("goroutine %d got a distinct pipeline object", i)
		}
	}
	if builds != 1 {
		t.Errorf("build called %d times under concurrent misses, want 1", builds)
	}
}

func TestGraphicsPipelineBuildErrorWrapped(t *testing.T) {
	c := newTestCache(nil, 2, 8)
	key := pipeline.GraphicsKey{VertFP: 5}
	wantErr := errors.New("bad shader")

	_, err := c.GraphicsPipeline(key, func() (driver.Pipeline, error) {
		return nil, wantErr
	})
	if !errors.Is(err, pipeline.ErrCompileFailed) {
		t.Fatalf("err = %v, want wrapped ErrCompileFailed", err)
	}
}

func TestDescriptorPoolIdempotence(t *testing.T) {
	pool := newTestCache(nil, 2, 8).DescriptorPool()
	res := pipeline.PipelineResources{
		Bindings: []pipeline.BindingValue{{UniformID: 0, BufOffset: 0, BufSize: 256}},
	}

	var allocs int32
	allocate := func() (driver.DescHeap, error) {
		atomic.AddInt32(&allocs, 1)
		return nil, nil
	}

	if _, err := pool.Acquire(0, res, allocate); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := pool.Acquire(0, res, allocate); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if allocs != 1 {
		t.Errorf("allocate called %d times for identical PipelineResources in one frame, want 1", allocs)
	}

	pool.Reset(0)
	if pool.Len(0) != 0 {
		t.Errorf("Len after Reset = %d, want 0", pool.Len(0))
	}
	if _, err := pool.Acquire(0, res, allocate); err != nil {
		t.Fatalf("Acquire after Reset: %v", err)
	}
	if allocs != 2 {
		t.Errorf("allocate called %d times after Reset, want 2", allocs)
	}
}

func TestDescriptorPoolFrameSlotsIndependent(t *testing.T) {
	pool := newTestCache(nil, 2, 8).DescriptorPool()
	res := pipeline.PipelineResources{Bindings: []pipeline.BindingValue{{UniformID: 1}}}

	var allocs int32
	allocate := func() (driver.DescHeap, error) {
		atomic.AddInt32(&allocs, 1)
		return nil, nil
	}
	pool.Acquire(0, res, allocate)
	pool.Acquire(1, res, allocate)
	if allocs != 2 {
		t.Errorf("allocate called %d times across independent frame slots, want 2", allocs)
	}
}
