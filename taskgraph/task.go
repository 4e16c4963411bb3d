// Copyright 2026 The RHI Authors. All rights reserved.

package taskgraph

import (
	"github.com/karlsen-gfx/rhi/driver"
	"github.com/karlsen-gfx/rhi/handle"
)

// TaskId is a stable, append-only-arena index assigned to a
// task when it is recorded. It remains valid for the lifetime
// of the command buffer that issued it and is how later tasks
// express explicit ordering via DependsOn.
type TaskId uint32

// Kind identifies the operation a Task performs. The task
// processor (the barrier solver) only inspects Kind to decide
// render-pass grouping and a handful of access-pattern special
// cases; the actual GPU command is reconstructed from Payload
// when the solver emits the platform command list.
type Kind int

const (
	KindBeginRenderPass Kind = iota
	KindEndRenderPass
	KindDraw
	KindDrawIndexed
	KindDrawMeshes
	KindCustomDraw
	KindDispatch
	KindCopyBuffer
	KindCopyImage
	KindCopyBufToImg
	KindCopyImgToBuf
	KindBlitImage
	KindUpdateBuffer
	KindUpdateImage
	KindReadBuffer
	KindReadImage
	KindFill
	KindClearImage
	KindClearBuffer
	KindBarrier // client-declared explicit barrier (self-dependency escape hatch)
	KindPresentImage
	KindBuildRayTracingGeometry
	KindTraceRays
	KindGroup
)

func (k Kind) String() string {
	switch k {
	case KindBeginRenderPass:
		return "BeginRenderPass"
	case KindEndRenderPass:
		return "EndRenderPass"
	case KindDraw:
		return "Draw"
	case KindDrawIndexed:
		return "DrawIndexed"
	case KindDrawMeshes:
		return "DrawMeshes"
	case KindCustomDraw:
		return "CustomDraw"
	case KindDispatch:
		return "Dispatch"
	case KindCopyBuffer:
		return "CopyBuffer"
	case KindCopyImage:
		return "CopyImage"
	case KindCopyBufToImg:
		return "CopyBufToImg"
	case KindCopyImgToBuf:
		return "CopyImgToBuf"
	case KindBlitImage:
		return "BlitImage"
	case KindUpdateBuffer:
		return "UpdateBuffer"
	case KindUpdateImage:
		return "UpdateImage"
	case KindReadBuffer:
		return "ReadBuffer"
	case KindReadImage:
		return "ReadImage"
	case KindFill:
		return "Fill"
	case KindClearImage:
		return "ClearImage"
	case KindClearBuffer:
		return "ClearBuffer"
	case KindBarrier:
		return "Barrier"
	case KindPresentImage:
		return "PresentImage"
	case KindBuildRayTracingGeometry:
		return "BuildRayTracingGeometry"
	case KindTraceRays:
		return "TraceRays"
	case KindGroup:
		return "Group"
	default:
		return "Kind(?)"
	}
}

// AccessDecl is one resource access a task declares, in the
// order it is first touched by that task. The barrier solver
// walks these in order against each resource's shadow state.
type AccessDecl struct {
	Resource handle.Handle
	Stage    driver.Sync
	Access   driver.Access
	// Layout is the layout the task requires the resource (an
	// Image) to be in. Ignored for Buffer handles.
	Layout driver.Layout
}

// Task is one node of the append-only arena a CommandBuffer
// records into.
type Task struct {
	ID       TaskId
	Kind     Kind
	Accesses []AccessDecl

	// DependsOn lists explicit predecessor tasks, in addition
	// to whatever ordering the resource-access walk induces.
	DependsOn []TaskId

	// RenderPassInternal is true for tasks recorded between a
	// BeginRenderPass/EndRenderPass pair; the solver never
	// reorders these relative to one another.
	RenderPassInternal bool

	// Payload carries the kind-specific parameters (e.g. a
	// DrawDesc or CopyBufferDesc value, not a pointer); the task processor type
	// asserts it based on Kind when emitting commands.
	Payload any
}

// DrawDesc is the Payload of a KindDraw task.
type DrawDesc struct {
	Pipeline   handle.Handle
	VertexBuf  []handle.Handle
	Resources  handle.Handle // interned PipelineResources descriptor-set handle, or Nil
	VertCnt    int
	InstCnt    int
	BaseVert   int
	BaseInst   int
	Viewport   driver.Viewport
	Scissor    driver.Scissor
	BlendColor [4]float32
	StencilRef uint32
}

// DrawIndexedDesc is the Payload of a KindDrawIndexed task.
type DrawIndexedDesc struct {
	DrawDesc
	IndexBuf  handle.Handle
	IndexFmt  driver.IndexFmt
	IdxCnt    int
	BaseIndex int
}

// DispatchDesc is the Payload of a KindDispatch task.
type DispatchDesc struct {
	Pipeline  handle.Handle
	Resources handle.Handle
	GroupX    int
	GroupY    int
	GroupZ    int
}

// CopyBufferDesc is the Payload of a KindCopyBuffer task.
type CopyBufferDesc struct {
	From, To     handle.Handle
	FromOff, ToOff int64
	Size         int64
}

// CopyImageDesc is the Payload of a KindCopyImage task. Handles
// are resolved to concrete driver.Image objects by the task
// processor when it emits the platform command list.
type CopyImageDesc struct {
	From, To           handle.Handle
	FromOff, ToOff     driver.Off3D
	FromLayer, ToLayer int
	FromLevel, ToLevel int
	Size               driver.Dim3D
}

// BeginRenderPassDesc is the Payload of a KindBeginRenderPass
// task.
type BeginRenderPassDesc struct {
	Pass        handle.Handle
	Framebuffer handle.Handle
	Clear       []driver.ClearValue
}

// PresentImageDesc is the Payload of a KindPresentImage task.
type PresentImageDesc struct {
	Swapchain handle.Handle
	ImageIdx  int
}

// DrawMeshesDesc is the Payload of a KindDrawMeshes task. It
// fails at Execute time with ErrUnsupportedFeature if the bound
// GPU does not implement driver.MeshCapable.
type DrawMeshesDesc struct {
	Pipeline   handle.Handle
	Resources  handle.Handle
	GroupX     int
	GroupY     int
	GroupZ     int
	Viewport   driver.Viewport
	Scissor    driver.Scissor
	BlendColor [4]float32
	StencilRef uint32
}

// CustomDrawDesc is the Payload of a KindCustomDraw task. Record
// is invoked by the task processor's emitter with the live
// driver.CmdBuffer while the enclosing render pass is bound,
// letting advanced callers issue raw Set*/Draw* calls the
// builder API has no dedicated task for. Record must not call
// Begin/End-block methods; it runs inside the render pass the
// task was declared in.
type CustomDrawDesc struct {
	Record func(cb driver.CmdBuffer)
}

// BlitImageDesc is the Payload of a KindBlitImage task: the dual
// of CopyImageDesc that additionally carries independent from/to
// extents, for minification or magnification blits. Backends
// without scaling support (the driver interface this module
// targets has none) can only service a blit whose FromExtent and
// ToExtent are equal, in which case the
// task processor downgrades it to a CopyImage; otherwise Execute
// fails with ErrUnsupportedFeature.
type BlitImageDesc struct {
	From, To             handle.Handle
	FromOff, ToOff       driver.Off3D
	FromLayer, ToLayer   int
	FromLevel, ToLevel   int
	FromExtent, ToExtent driver.Dim3D
	Layers               int
}

// UpdateBufferDesc is the Payload of a KindUpdateBuffer task: an
// immediate client-side write staged through the upload ring and
// copied into Dest by the task processor.
type UpdateBufferDesc struct {
	Dest   handle.Handle
	Offset int64
	Data   []byte
}

// UpdateImageDesc is the Payload of a KindUpdateImage task.
type UpdateImageDesc struct {
	Dest   handle.Handle
	Off    driver.Off3D
	Layer  int
	Level  int
	Size   driver.Dim3D
	Stride [2]int64
	Data   []byte
}

// ReadBufferDesc is the Payload of a KindReadBuffer task. Callback
// is invoked with a read-only view of the downloaded bytes only
// after the containing frame's fence signals; it never fires
// with partial data.
type ReadBufferDesc struct {
	Source   handle.Handle
	Offset   int64
	Size     int64
	Callback func(status Status, data []byte)
}

// ReadImageDesc is the Payload of a KindReadImage task.
type ReadImageDesc struct {
	Source   handle.Handle
	Off      driver.Off3D
	Layer    int
	Level    int
	Size     driver.Dim3D
	Callback func(status Status, data []byte)
}

// Status is the outcome delivered to a ReadBuffer/ReadImage
// callback.
type Status int

const (
	Ok Status = iota
	Aborted
	DeviceLost
)

func (s Status) String() string {
	switch s {
	case Ok:
		return "Ok"
	case Aborted:
		return "Aborted"
	case DeviceLost:
		return "DeviceLost"
	default:
		return "Status(?)"
	}
}

// ClearImageDesc is the Payload of a KindClearImage task. The
// driver interface this module targets has no device-side image
// clear command outside of a render pass's LoadOp, so the task
// processor services this by writing Color through a staging
// buffer and issuing a CopyBufToImg.
type ClearImageDesc struct {
	Dest  handle.Handle
	Off   driver.Off3D
	Layer int
	Level int
	Size  driver.Dim3D
	Color [4]float32
}

// ClearBufferDesc is the Payload of a KindClearBuffer task; it
// maps directly onto driver.CmdBuffer.Fill.
type ClearBufferDesc struct {
	Dest   handle.Handle
	Offset int64
	Size   int64
	Value  byte
}

// BuildRayTracingGeometryDesc is the Payload of a
// KindBuildRayTracingGeometry task. It fails at Execute time
// with ErrUnsupportedFeature if the bound GPU does not implement
// driver.RayTracer.
type BuildRayTracingGeometryDesc struct {
	Dest     handle.Handle
	Src      handle.Handle
	Geometry []driver.AccelGeometry
}

// TraceRaysDesc is the Payload of a KindTraceRays task.
type TraceRaysDesc struct {
	Pipeline  handle.Handle
	Resources handle.Handle
	Width     int
	Height    int
	Depth     int
}

// GroupDesc is the Payload of a KindGroup task: a debug-only
// label with no GPU effect of its own, used to bracket a run of
// related tasks in the debugger's graph dump and event-marker
// stream.
type GroupDesc struct {
	Name string
}
