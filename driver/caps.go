// Copyright 2026 The RHI Authors. All rights reserved.

package driver

// MeshCapable is implemented by a GPU that supports mesh-shader
// pipelines and the DrawMeshes command. Backends that do not
// implement it are assumed to lack the feature entirely; callers
// detect support with a type assertion rather than a Limits
// field, since it is binary rather than a bounded quantity.
type MeshCapable interface {
	// NewMeshState compiles a mesh/task-shader pipeline state
	// into a Pipeline, analogous to NewPipeline for GraphState
	// and CompState.
	NewMeshState(state *MeshState) (Pipeline, error)

	// DrawMeshes dispatches mesh-shader work groups. It must
	// only be called during a render pass, on a CmdBuffer whose
	// bound pipeline was created via NewMeshState.
	DrawMeshes(cb CmdBuffer, grpCountX, grpCountY, grpCountZ int)
}

// MeshState defines the state of a mesh-shader pipeline: a
// task/mesh/fragment shader triple plus the fixed-function state
// a graphics pipeline would otherwise take from vertex input.
type MeshState struct {
	TaskFunc ShaderFunc
	MeshFunc ShaderFunc
	FragFunc ShaderFunc
	Desc     DescTable
	Raster   RasterState
	Samples  int
	DS       DSState
	Blend    BlendState
	Pass     RenderPass
	Subpass  int
}

// RayTracer is implemented by a GPU that supports acceleration
// structure builds and ray dispatch. The frame graph core treats
// a scene as an opaque Buffer binding (see
// pipeline.PipelineResources.BindRayTracingScene); it is this
// interface's implementation that gives that buffer meaning.
type RayTracer interface {
	// NewRTState compiles a ray-tracing pipeline (raygen, miss
	// and hit shader groups) into a Pipeline.
	NewRTState(state *RTState) (Pipeline, error)

	// BuildAccelStruct records a bottom- or top-level
	// acceleration-structure build into dst, consuming geometry
	// or instance data from src. It must only be called during
	// a CmdBuffer's blit block (BeginBlit/EndBlit).
	BuildAccelStruct(cb CmdBuffer, dst Buffer, src Buffer, geom []AccelGeometry)

	// TraceRays dispatches ray generation work. It must only be
	// called during compute work (BeginWork/EndWork).
	TraceRays(cb CmdBuffer, width, height, depth int)
}

// AccelGeometry describes one geometry or instance entry fed to
// an acceleration-structure build.
type AccelGeometry struct {
	VertexBuf  Buffer
	VertexOff  int64
	VertexCnt  int
	IndexBuf   Buffer
	IndexOff   int64
	IndexCnt   int
	IndexFmt   IndexFmt
	Transform  [12]float32
	IsInstance bool
}

// RTState defines the state of a ray-tracing pipeline.
type RTState struct {
	RaygenFunc ShaderFunc
	MissFuncs  []ShaderFunc
	HitFuncs   []ShaderFunc
	Desc       DescTable
}
