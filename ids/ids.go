// Copyright 2026 The RHI Authors. All rights reserved.

// Package ids collects the small, strongly-typed identifiers
// that the frame graph's client API uses in place of bare ints,
// so that e.g. a vertex input slot can never be passed where a
// uniform binding was expected.
package ids

// UniformID identifies a binding slot within a PipelineResources
// table (the copy-on-write bindings map that the pipeline cache
// hashes to intern descriptor sets).
type UniformID int

// VertexID identifies a vertex input slot, matching the Nr field
// of a driver.VertexIn.
type VertexID int

// RenderTargetID identifies a color attachment within a logical
// render pass's attachment list.
type RenderTargetID int

// DescriptorSetID identifies one descriptor-set layout within a
// pipeline layout's ordered list of sets.
type DescriptorSetID int

// PushConstantID identifies a push-constant range within a
// pipeline layout.
type PushConstantID int

// ImageLayer identifies a single array layer (or cube face) of
// an Image resource.
type ImageLayer int

// MipmapLevel identifies a single mip level of an Image
// resource.
type MipmapLevel int

// MultiSamples is the sample count of a multisampled Image or
// pipeline.
type MultiSamples int
