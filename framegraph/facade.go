// Copyright 2026 The RHI Authors. All rights reserved.

package framegraph

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/karlsen-gfx/rhi/barrier"
	"github.com/karlsen-gfx/rhi/debug"
	"github.com/karlsen-gfx/rhi/driver"
	"github.com/karlsen-gfx/rhi/handle"
	"github.com/karlsen-gfx/rhi/pipeline"
	"github.com/karlsen-gfx/rhi/resource"
	"github.com/karlsen-gfx/rhi/staging"
	"github.com/karlsen-gfx/rhi/submit"
	"github.com/karlsen-gfx/rhi/surface"
	"github.com/karlsen-gfx/rhi/taskgraph"
)

// Config bundles the tuning knobs New needs beyond the driver
// handle itself.
type Config struct {
	// FrameSlots is the depth of the frame-in-flight pipeline:
	// how many frames' worth of transient resources, staging
	// rings, and descriptor pools are kept alive at once.
	FrameSlots int
	// StagingRingSize is the byte capacity of each frame slot's
	// upload and download ring.
	StagingRingSize int64
	// StagingTimeout bounds how long a staging reservation
	// blocks under backpressure before failing with
	// staging.ErrExhausted.
	StagingTimeout time.Duration
	// DescriptorPoolSize is the maximum number of descriptor
	// sets an individual frame slot's LRU pool may hold.
	DescriptorPoolSize int
}

// FrameGraph is the public façade: the single handle a client
// holds to create resources, record command buffers, and drive
// the frame pipeline. It owns every other package in this module
// as an implementation detail.
type FrameGraph struct {
	gpu    driver.GPU
	res    *resource.Manager
	pipe   *pipeline.Cache
	stg    *staging.Manager
	solver *barrier.Solver
	sub    *submit.Batcher
	rec    *debug.Recorder

	frameSlots int

	mu            sync.Mutex
	curSlot       int
	lost          bool
	shaderDebugCB func(debug.Report)
}

// New creates a FrameGraph bound to gpu.
func New(gpu driver.GPU, cfg Config) (*FrameGraph, error) {
	if cfg.FrameSlots < 1 {
		cfg.FrameSlots = 2
	}
	if cfg.StagingRingSize <= 0 {
		cfg.StagingRingSize = 16 << 20
	}
	if cfg.DescriptorPoolSize <= 0 {
		cfg.DescriptorPoolSize = 256
	}

	res := resource.NewManager(gpu, cfg.FrameSlots)
	pipe := pipeline.NewCache(gpu, cfg.FrameSlots, cfg.DescriptorPoolSize, res.Retire)
	stg, err := staging.NewManager(gpu, cfg.FrameSlots, cfg.StagingRingSize, cfg.StagingTimeout)
	if err != nil {
		return nil, err
	}

	return &FrameGraph{
		gpu:        gpu,
		res:        res,
		pipe:       pipe,
		stg:        stg,
		solver:     barrier.NewSolver(gpu, res, pipe, stg),
		sub:        submit.NewBatcher(gpu, res, pipe, stg),
		frameSlots: cfg.FrameSlots,
	}, nil
}

func (f *FrameGraph) checkLive() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lost {
		return ErrDeviceLost
	}
	return nil
}

func (f *FrameGraph) frameSlot() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.curSlot
}

// CreateImage creates an Image resource.
func (f *FrameGraph) CreateImage(desc resource.ImageDesc, debugName string) (handle.Handle, error) {
	if err := f.checkLive(); err != nil {
		return handle.Nil, err
	}
	return f.res.CreateImage(desc, debugName)
}

// CreateBuffer creates a Buffer resource.
func (f *FrameGraph) CreateBuffer(desc resource.BufferDesc, debugName string) (handle.Handle, error) {
	if err := f.checkLive(); err != nil {
		return handle.Nil, err
	}
	return f.res.CreateBuffer(desc, debugName)
}

// CreateSampler interns a Sampler resource.
func (f *FrameGraph) CreateSampler(spln driver.Sampling, debugName string) (handle.Handle, error) {
	if err := f.checkLive(); err != nil {
		return handle.Nil, err
	}
	return f.res.CreateSampler(spln, debugName)
}

// CreateRenderPass interns a RenderPass resource.
func (f *FrameGraph) CreateRenderPass(desc resource.RenderPassDesc, debugName string) (handle.Handle, error) {
	if err := f.checkLive(); err != nil {
		return handle.Nil, err
	}
	return f.res.CreateRenderPass(desc, debugName)
}

// CreateFramebuffer creates or reuses a Framebuffer resource
// (see resource.FramebufferDesc).
func (f *FrameGraph) CreateFramebuffer(desc resource.FramebufferDesc, debugName string) (handle.Handle, error) {
	if err := f.checkLive(); err != nil {
		return handle.Nil, err
	}
	return f.res.CreateFramebuffer(desc, debugName)
}

// CreateGraphicsPipeline interns a graphics Pipeline resource.
func (f *FrameGraph) CreateGraphicsPipeline(state driver.GraphState, debugName string) (handle.Handle, error) {
	if err := f.checkLive(); err != nil {
		return handle.Nil, err
	}
	return f.res.CreateGraphicsPipeline(state, debugName)
}

// CreateComputePipeline interns a compute Pipeline resource.
func (f *FrameGraph) CreateComputePipeline(state driver.CompState, debugName string) (handle.Handle, error) {
	if err := f.checkLive(); err != nil {
		return handle.Nil, err
	}
	return f.res.CreateComputePipeline(state, debugName)
}

// CreateMeshPipeline interns a mesh-shader Pipeline resource.
func (f *FrameGraph) CreateMeshPipeline(state driver.MeshState, debugName string) (handle.Handle, error) {
	if err := f.checkLive(); err != nil {
		return handle.Nil, err
	}
	return f.res.CreateMeshPipeline(state, debugName)
}

// CreateRayTracingPipeline interns a ray-tracing Pipeline
// resource.
func (f *FrameGraph) CreateRayTracingPipeline(state driver.RTState, debugName string) (handle.Handle, error) {
	if err := f.checkLive(); err != nil {
		return handle.Nil, err
	}
	return f.res.CreateRayTracingPipeline(state, debugName)
}

// Description returns the creation descriptor h was made with.
func (f *FrameGraph) Description(h handle.Handle) (any, error) {
	return f.res.Description(h)
}

// AcquireResource increments h's reference count.
func (f *FrameGraph) AcquireResource(h handle.Handle) error {
	return f.res.AcquireResource(h)
}

// ReleaseResource decrements h's reference count, returning the
// count that remains. At zero, destruction is deferred to the
// retirement ring of the frame slot currently recording.
func (f *FrameGraph) ReleaseResource(h handle.Handle) (uint32, error) {
	return f.res.ReleaseResource(h, f.frameSlot())
}

// InitPipelineResources returns an empty bindings table bound
// against the setID'th descriptor-set layout of pipelineLayout,
// ready for BindImage/BindBuffer/... calls.
func (f *FrameGraph) InitPipelineResources(pipelineLayout handle.Handle, setID int) (pipeline.PipelineResources, error) {
	res, ok := f.pipe.InitPipelineResources(pipelineLayout, setID)
	if !ok {
		return pipeline.PipelineResources{}, resource.ErrInvalidHandle
	}
	return res, nil
}

// InternPipelineResources registers res under a fresh handle a
// Draw/Dispatch task can reference as its Resources field.
// ReleasePipelineResources frees it once the task that used it
// has retired.
func (f *FrameGraph) InternPipelineResources(res pipeline.PipelineResources) handle.Handle {
	return f.pipe.InternResources(res)
}

// ReleasePipelineResources frees a handle returned by
// InternPipelineResources.
func (f *FrameGraph) ReleasePipelineResources(h handle.Handle) {
	f.pipe.ReleaseResources(h)
}

// InternSetLayout interns a descriptor-set layout.
func (f *FrameGraph) InternSetLayout(desc pipeline.DescSetLayoutDesc) handle.Handle {
	return f.pipe.InternSetLayout(desc)
}

// InternPipelineLayout interns a pipeline layout.
func (f *FrameGraph) InternPipelineLayout(desc pipeline.PipelineLayoutDesc) handle.Handle {
	return f.pipe.InternPipelineLayout(desc)
}

// Begin creates a CommandBuffer ready for recording against this
// FrameGraph's resource table.
func (f *FrameGraph) Begin(desc taskgraph.Desc, waitFor ...*taskgraph.CommandBuffer) (*taskgraph.CommandBuffer, error) {
	if err := f.checkLive(); err != nil {
		return nil, err
	}
	return taskgraph.Begin(f.res, desc, waitFor...), nil
}

// Execute hands cmd's recorded task graph to the barrier solver,
// which schedules it, synthesizes synchronization, and emits it
// into a freshly opened driver.CmdBuffer, then queues that buffer
// with the submission batcher. The buffer does not reach the GPU
// until the next Flush.
func (f *FrameGraph) Execute(cmd *taskgraph.CommandBuffer) error {
	if err := f.checkLive(); err != nil {
		return err
	}
	tasks, err := cmd.Finish()
	if err != nil {
		return err
	}

	dcb, err := f.gpu.NewCmdBuffer()
	if err != nil {
		return err
	}
	if err := dcb.Begin(); err != nil {
		return err
	}

	slot := f.frameSlot()
	if _, err := f.solver.Process(dcb, slot, tasks); err != nil {
		dcb.Destroy()
		if errors.Is(err, barrier.ErrCyclicGraph) || errors.Is(err, barrier.ErrUnsupportedFeature) {
			return fmt.Errorf("%w: %w", ErrValidationFailed, err)
		}
		return err
	}
	if err := dcb.End(); err != nil {
		dcb.Destroy()
		return err
	}

	return f.sub.Submit(cmd, dcb)
}

// Flush commits every command buffer queued since the last Flush
// to the GPU, opportunistically retires any batch that has
// already signaled, and advances to the next frame slot.
func (f *FrameGraph) Flush() error {
	slot := f.frameSlot()
	if err := f.sub.Flush(slot); err != nil {
		return f.fail(err)
	}
	if err := f.sub.Poll(); err != nil {
		return f.fail(err)
	}

	f.mu.Lock()
	f.curSlot = (f.curSlot + 1) % f.frameSlots
	f.mu.Unlock()
	return nil
}

// WaitIdle blocks until every batch submitted so far has
// signaled, retiring each as it completes.
func (f *FrameGraph) WaitIdle() error {
	if err := f.sub.WaitIdle(); err != nil {
		return f.fail(err)
	}
	return nil
}

func (f *FrameGraph) fail(err error) error {
	f.mu.Lock()
	f.lost = true
	f.mu.Unlock()
	return ErrDeviceLost
}

// SetShaderDebugCallback installs the receiver for decoded
// shader-trace reports. ReportShaderTrace is how an instrumented
// dispatch's captured trace buffer reaches it.
func (f *FrameGraph) SetShaderDebugCallback(fn func(debug.Report)) {
	f.mu.Lock()
	f.shaderDebugCB = fn
	f.mu.Unlock()
}

// ReportShaderTrace decodes a debug-trace storage buffer bound to
// descriptor set 0 of an instrumented dispatch or draw and
// delivers the result to the installed shader-debug callback, if
// any.
func (f *FrameGraph) ReportShaderTrace(stage, task, shader string, data []byte, valuesPerRecord int) {
	f.mu.Lock()
	cb := f.shaderDebugCB
	f.mu.Unlock()
	if cb == nil {
		return
	}
	cb(debug.Report{
		Stage:   stage,
		Task:    task,
		Shader:  shader,
		Records: debug.DecodeTrace(data, valuesPerRecord),
	})
}

// EnableDebugger attaches a debug.Recorder to the barrier solver
// and returns it so the caller can Dump() it between frames.
func (f *FrameGraph) EnableDebugger() *debug.Recorder {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rec == nil {
		f.rec = debug.NewRecorder()
	}
	f.solver.SetSink(f.rec)
	return f.rec
}

// DisableDebugger detaches the debugger sink installed by
// EnableDebugger, if any.
func (f *FrameGraph) DisableDebugger() {
	f.solver.SetSink(nil)
}

// NewSwapchain creates a swapchain for win, failing with
// driver.ErrCannotPresent if the bound GPU does not implement
// driver.Presenter.
func (f *FrameGraph) NewSwapchain(win surface.Window, imageCount int) (driver.Swapchain, error) {
	p, ok := f.gpu.(driver.Presenter)
	if !ok {
		return nil, driver.ErrCannotPresent
	}
	return p.NewSwapchain(win, imageCount)
}

// Lost reports whether a prior submission failed, putting the
// façade into its terminal state.
func (f *FrameGraph) Lost() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lost
}
