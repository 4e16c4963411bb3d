// Copyright 2026 The RHI Authors. All rights reserved.

package taskgraph

import (
	"sync"

	"github.com/karlsen-gfx/rhi/driver"
	"github.com/karlsen-gfx/rhi/handle"
)

// CmdState is the command-buffer lifecycle state machine:
// Recording is the only state in which Task methods succeed;
// Execute is the sole edge out of it, and a buffer that reached
// Executing or Retired can never be recorded into again.
type CmdState int

const (
	Recording CmdState = iota
	Executing
	Retired
)

func (s CmdState) String() string {
	switch s {
	case Recording:
		return "Recording"
	case Executing:
		return "Executing"
	case Retired:
		return "Retired"
	default:
		return "CmdState(?)"
	}
}

// Validator reports whether a handle is currently live. The
// command buffer consults it before storing any task that
// declares a resource access, so a stale or fabricated handle
// is rejected at recording time and never reaches the barrier
// solver.
type Validator interface {
	Valid(h handle.Handle) bool
}

// Desc configures a CommandBuffer at Begin.
type Desc struct {
	// Debug names the buffer for diagnostics and the debugger's
	// graph dump.
	Debug string
	// QueueFamily selects the logical queue this buffer's work
	// is recorded against. The driver this module targets
	// exposes a single implicit queue, so distinct queue
	// families only matter to the barrier solver's bookkeeping,
	// never to actual submission routing.
	QueueFamily int
}

// CommandBuffer is a scoped, single-producer recorder that
// accumulates a DAG of Tasks for one frame slice on one logical
// queue. No GPU commands are recorded by any Task method: the
// buffer only builds the graph in an append-only arena. Execute
// hands the finished arena to the task processor.
type CommandBuffer struct {
	mu sync.Mutex

	Desc    Desc
	WaitFor []*CommandBuffer

	state CmdState
	valid Validator

	tasks []Task

	passOpen  bool
	passStart TaskId
}

// Begin creates a CommandBuffer ready for recording. waitFor
// lists command buffers this buffer's work is ordered after once
// submitted: the submission batcher commits each of them ahead of
// this buffer when they are flushed together. No semaphore is
// involved.
func Begin(valid Validator, desc Desc, waitFor ...*CommandBuffer) *CommandBuffer {
	return &CommandBuffer{
		Desc:    desc,
		WaitFor: append([]*CommandBuffer(nil), waitFor...),
		valid:   valid,
		state:   Recording,
	}
}

// State returns the buffer's current lifecycle state.
func (c *CommandBuffer) State() CmdState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// MarkExecuting transitions Recording -> Executing. It is called
// by the façade's Execute once the buffer has been accepted by
// the task processor; it fails if the buffer already left
// Recording.
func (c *CommandBuffer) MarkExecuting() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Recording {
		return ErrAlreadyExecuted
	}
	c.state = Executing
	return nil
}

// MarkRetired transitions Executing -> Retired, once the
// submission batch containing this buffer has signaled.
func (c *CommandBuffer) MarkRetired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Retired
}

// Tasks returns the recorded task arena. It is only meaningful
// once recording has finished (Finish returned successfully);
// callers must not mutate the returned slice.
func (c *CommandBuffer) Tasks() []Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tasks
}

// Finish validates that recording left no render pass open and
// returns the recorded task arena. It does not change State;
// that happens when the façade calls Execute.
func (c *CommandBuffer) Finish() ([]Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.passOpen {
		return nil, ErrUnclosedRenderPass
	}
	return c.tasks, nil
}

// checkAccesses validates every handle referenced by accesses
// without mutating the buffer, so a failed Task call never
// stores a partial task.
func (c *CommandBuffer) checkAccesses(accesses []AccessDecl) error {
	for _, a := range accesses {
		if a.Resource.IsNil() || !c.valid.Valid(a.Resource) {
			return ErrInvalidHandle
		}
	}
	return nil
}

// record validates accesses then appends a new task, returning
// its stable TaskId. It must be called with c.mu held.
func (c *CommandBuffer) record(kind Kind, accesses []AccessDecl, payload any) (TaskId, error) {
	if c.state != Recording {
		return 0, ErrNotRecording
	}
	if err := c.checkAccesses(accesses); err != nil {
		return 0, err
	}
	id := TaskId(len(c.tasks))
	c.tasks = append(c.tasks, Task{
		ID:                 id,
		Kind:               kind,
		Accesses:           accesses,
		RenderPassInternal: c.passOpen,
		Payload:            payload,
	})
	return id, nil
}

// DependsOn adds explicit predecessor edges to an already
// recorded task, in addition to whatever ordering its resource
// accesses induce. It fails with ErrUnknownTask if id or any dep
// was never issued by this buffer.
func (c *CommandBuffer) DependsOn(id TaskId, deps ...TaskId) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if int(id) >= len(c.tasks) {
		return ErrUnknownTask
	}
	for _, d := range deps {
		if int(d) >= len(c.tasks) {
			return ErrUnknownTask
		}
	}
	c.tasks[id].DependsOn = append(c.tasks[id].DependsOn, deps...)
	return nil
}

// BeginRenderPass opens a logical render pass. Draw-kind tasks
// recorded before the matching EndRenderPass are marked
// RenderPassInternal and are never reordered relative to one
// another by the barrier solver.
func (c *CommandBuffer) BeginRenderPass(desc BeginRenderPassDesc, extra ...AccessDecl) (TaskId, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.passOpen {
		return 0, ErrRenderPassAlreadyOpen
	}
	accesses := append([]AccessDecl{
		{Resource: desc.Pass, Stage: driver.SNone, Access: driver.ANone},
		{Resource: desc.Framebuffer, Stage: driver.SNone, Access: driver.ANone},
	}, extra...)
	id, err := c.record(KindBeginRenderPass, accesses, desc)
	if err != nil {
		return 0, err
	}
	c.passOpen = true
	c.passStart = id
	return id, nil
}

// EndRenderPass closes the render pass opened by BeginRenderPass.
func (c *CommandBuffer) EndRenderPass() (TaskId, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.passOpen {
		return 0, ErrNoOpenRenderPass
	}
	id, err := c.record(KindEndRenderPass, nil, nil)
	if err != nil {
		return 0, err
	}
	c.passOpen = false
	return id, nil
}

// Draw records a non-indexed draw. It must be called between
// BeginRenderPass and EndRenderPass.
func (c *CommandBuffer) Draw(desc DrawDesc) (TaskId, error) {
	accesses := make([]AccessDecl, 0, len(desc.VertexBuf)+2)
	for _, vb := range desc.VertexBuf {
		accesses = append(accesses, AccessDecl{Resource: vb, Stage: driver.SVertexInput, Access: driver.AVertexBufRead})
	}
	if !desc.Pipeline.IsNil() {
		accesses = append(accesses, AccessDecl{Resource: desc.Pipeline, Stage: driver.SDraw, Access: driver.ANone})
	}
	if !desc.Resources.IsNil() {
		accesses = append(accesses, AccessDecl{Resource: desc.Resources, Stage: driver.SVertexShading | driver.SFragmentShading, Access: driver.AShaderRead})
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.passOpen {
		return 0, ErrNoOpenRenderPass
	}
	return c.record(KindDraw, accesses, desc)
}

// DrawIndexed records an indexed draw.
func (c *CommandBuffer) DrawIndexed(desc DrawIndexedDesc) (TaskId, error) {
	accesses := make([]AccessDecl, 0, len(desc.VertexBuf)+3)
	accesses = append(accesses, AccessDecl{Resource: desc.IndexBuf, Stage: driver.SVertexInput, Access: driver.AIndexBufRead})
	for _, vb := range desc.VertexBuf {
		accesses = append(accesses, AccessDecl{Resource: vb, Stage: driver.SVertexInput, Access: driver.AVertexBufRead})
	}
	if !desc.Pipeline.IsNil() {
		accesses = append(accesses, AccessDecl{Resource: desc.Pipeline, Stage: driver.SDraw, Access: driver.ANone})
	}
	if !desc.Resources.IsNil() {
		accesses = append(accesses, AccessDecl{Resource: desc.Resources, Stage: driver.SVertexShading | driver.SFragmentShading, Access: driver.AShaderRead})
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.passOpen {
		return 0, ErrNoOpenRenderPass
	}
	return c.record(KindDrawIndexed, accesses, desc)
}

// DrawMeshes records a mesh-shader draw.
func (c *CommandBuffer) DrawMeshes(desc DrawMeshesDesc) (TaskId, error) {
	var accesses []AccessDecl
	if !desc.Resources.IsNil() {
		accesses = append(accesses, AccessDecl{Resource: desc.Resources, Stage: driver.SVertexShading | driver.SFragmentShading, Access: driver.AShaderRead})
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.passOpen {
		return 0, ErrNoOpenRenderPass
	}
	return c.record(KindDrawMeshes, accesses, desc)
}

// CustomDraw records a callback-driven draw, run with the live
// driver.CmdBuffer by the task processor's emitter once it is
// this task's turn. accesses declares the resources the callback
// touches so the barrier solver can still order and synchronize
// it correctly.
func (c *CommandBuffer) CustomDraw(desc CustomDrawDesc, accesses ...AccessDecl) (TaskId, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.passOpen {
		return 0, ErrNoOpenRenderPass
	}
	return c.record(KindCustomDraw, accesses, desc)
}

// Dispatch records a compute dispatch.
func (c *CommandBuffer) Dispatch(desc DispatchDesc) (TaskId, error) {
	var accesses []AccessDecl
	if !desc.Resources.IsNil() {
		accesses = append(accesses, AccessDecl{Resource: desc.Resources, Stage: driver.SComputeShading, Access: driver.AShaderRead | driver.AShaderWrite})
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record(KindDispatch, accesses, desc)
}

// CopyBuffer records a buffer-to-buffer copy.
func (c *CommandBuffer) CopyBuffer(desc CopyBufferDesc) (TaskId, error) {
	accesses := []AccessDecl{
		{Resource: desc.From, Stage: driver.SCopy, Access: driver.ACopyRead},
		{Resource: desc.To, Stage: driver.SCopy, Access: driver.ACopyWrite},
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record(KindCopyBuffer, accesses, desc)
}

// CopyImage records an image-to-image copy.
func (c *CommandBuffer) CopyImage(desc CopyImageDesc) (TaskId, error) {
	accesses := []AccessDecl{
		{Resource: desc.From, Stage: driver.SCopy, Access: driver.ACopyRead, Layout: driver.LCopySrc},
		{Resource: desc.To, Stage: driver.SCopy, Access: driver.ACopyWrite, Layout: driver.LCopyDst},
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record(KindCopyImage, accesses, desc)
}

// BlitImage records an image blit, serviced as a plain
// CopyImage by the task processor when FromExtent equals
// ToExtent, and failing with ErrUnsupportedFeature otherwise.
func (c *CommandBuffer) BlitImage(desc BlitImageDesc) (TaskId, error) {
	accesses := []AccessDecl{
		{Resource: desc.From, Stage: driver.SCopy, Access: driver.ACopyRead, Layout: driver.LCopySrc},
		{Resource: desc.To, Stage: driver.SCopy, Access: driver.ACopyWrite, Layout: driver.LCopyDst},
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record(KindBlitImage, accesses, desc)
}

// UpdateBuffer records an immediate client-side write into Dest,
// staged through the upload ring by the task processor.
func (c *CommandBuffer) UpdateBuffer(desc UpdateBufferDesc) (TaskId, error) {
	accesses := []AccessDecl{{Resource: desc.Dest, Stage: driver.SCopy, Access: driver.ACopyWrite}}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record(KindUpdateBuffer, accesses, desc)
}

// UpdateImage records an immediate client-side write into Dest.
func (c *CommandBuffer) UpdateImage(desc UpdateImageDesc) (TaskId, error) {
	accesses := []AccessDecl{{Resource: desc.Dest, Stage: driver.SCopy, Access: driver.ACopyWrite, Layout: driver.LCopyDst}}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record(KindUpdateImage, accesses, desc)
}

// ReadBuffer records a download of Source into the staging
// download ring; Callback fires only after the containing
// frame's fence signals.
func (c *CommandBuffer) ReadBuffer(desc ReadBufferDesc) (TaskId, error) {
	accesses := []AccessDecl{{Resource: desc.Source, Stage: driver.SCopy, Access: driver.ACopyRead}}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record(KindReadBuffer, accesses, desc)
}

// ReadImage records a download of Source.
func (c *CommandBuffer) ReadImage(desc ReadImageDesc) (TaskId, error) {
	accesses := []AccessDecl{{Resource: desc.Source, Stage: driver.SCopy, Access: driver.ACopyRead, Layout: driver.LCopySrc}}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record(KindReadImage, accesses, desc)
}

// ClearImage records a clear of a Dest image subresource.
func (c *CommandBuffer) ClearImage(desc ClearImageDesc) (TaskId, error) {
	accesses := []AccessDecl{{Resource: desc.Dest, Stage: driver.SCopy, Access: driver.ACopyWrite, Layout: driver.LCopyDst}}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record(KindClearImage, accesses, desc)
}

// ClearBuffer records a clear of a Dest buffer range.
func (c *CommandBuffer) ClearBuffer(desc ClearBufferDesc) (TaskId, error) {
	accesses := []AccessDecl{{Resource: desc.Dest, Stage: driver.SCopy, Access: driver.ACopyWrite}}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record(KindClearBuffer, accesses, desc)
}

// Barrier records a client-declared explicit barrier: the escape
// hatch for a self-dependency (a resource a task both writes and
// reads) that the solver cannot synchronize automatically.
func (c *CommandBuffer) Barrier(accesses ...AccessDecl) (TaskId, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record(KindBarrier, accesses, nil)
}

// PresentImage records a present task for a swapchain-acquired
// image. The task carries only the image's transition to
// driver.LPresent; the submission batcher does nothing for it,
// threading no acquire/present semaphores and making no present
// call.
func (c *CommandBuffer) PresentImage(desc PresentImageDesc) (TaskId, error) {
	accesses := []AccessDecl{{Resource: desc.Swapchain, Stage: driver.SAll, Access: driver.ANone, Layout: driver.LPresent}}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record(KindPresentImage, accesses, desc)
}

// BuildRayTracingGeometry records an acceleration-structure
// build. It fails at Execute time with ErrUnsupportedFeature if
// the bound GPU does not implement driver.RayTracer.
func (c *CommandBuffer) BuildRayTracingGeometry(desc BuildRayTracingGeometryDesc) (TaskId, error) {
	accesses := []AccessDecl{
		{Resource: desc.Dest, Stage: driver.SCopy, Access: driver.ACopyWrite},
		{Resource: desc.Src, Stage: driver.SCopy, Access: driver.ACopyRead},
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record(KindBuildRayTracingGeometry, accesses, desc)
}

// TraceRays records a ray-dispatch.
func (c *CommandBuffer) TraceRays(desc TraceRaysDesc) (TaskId, error) {
	var accesses []AccessDecl
	if !desc.Resources.IsNil() {
		accesses = append(accesses, AccessDecl{Resource: desc.Resources, Stage: driver.SComputeShading, Access: driver.AShaderRead | driver.AShaderWrite})
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record(KindTraceRays, accesses, desc)
}

// Group records a debug-only label bracketing the tasks that
// follow it, with no GPU effect of its own.
func (c *CommandBuffer) Group(name string) (TaskId, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record(KindGroup, nil, GroupDesc{Name: name})
}
