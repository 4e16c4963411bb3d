// Copyright 2026 The RHI Authors. All rights reserved.

// Package handle implements the generational, type-tagged
// opaque identifiers that every GPU-side resource in the frame
// graph is addressed by.
//
// A Handle packs an index, a generation counter and a type tag
// into a single 64-bit value. Handles are never reused across
// generations: once a slot is freed its generation is bumped,
// so a handle captured before the free is detectably stale
// afterwards. This mirrors the generational-index idiom used
// throughout the teacher codebase's bitm package, just widened
// from a single bitmap into index+generation+tag triples.
package handle

import "fmt"

// Type identifies the kind of resource a Handle refers to.
type Type uint8

// Resource variants addressable by a Handle.
const (
	Image Type = iota
	Buffer
	Sampler
	PipelineLayout
	GraphicsPipeline
	ComputePipeline
	MeshPipeline
	RayTracingPipeline
	RenderPass
	Framebuffer
	DescriptorSetLayout
	DescriptorSet
	Swapchain
	MemoryBlock

	typeCount
)

// TypeCount is the number of resource Type variants, useful for
// sizing a per-type array of tables.
const TypeCount = int(typeCount)

var typeNames = [typeCount]string{
	Image:               "Image",
	Buffer:              "Buffer",
	Sampler:             "Sampler",
	PipelineLayout:      "PipelineLayout",
	GraphicsPipeline:    "GraphicsPipeline",
	ComputePipeline:     "ComputePipeline",
	MeshPipeline:        "MeshPipeline",
	RayTracingPipeline:  "RayTracingPipeline",
	RenderPass:          "RenderPass",
	Framebuffer:         "Framebuffer",
	DescriptorSetLayout: "DescriptorSetLayout",
	DescriptorSet:       "DescriptorSet",
	Swapchain:           "Swapchain",
	MemoryBlock:         "MemoryBlock",
}

func (t Type) String() string {
	if t < typeCount {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", t)
}

// Bit widths of the three fields packed into a Handle.
// 24 bits of index supports over 16M live resources of a given
// type; 8 bits of generation wraps rarely enough in practice
// that wraparound aliasing is not a practical concern for the
// lifetime of a single process.
const (
	indexBits = 24
	genBits   = 8
	typeBits  = 8

	indexMask = 1<<indexBits - 1
	genMask   = 1<<genBits - 1
	typeMask  = 1<<typeBits - 1

	genShift  = indexBits
	typeShift = indexBits + genBits
)

// Handle is an opaque, generational, type-tagged identifier for
// a GPU-side resource. The zero Handle is never issued by a
// Table and is always invalid.
type Handle uint64

// Nil is the invalid handle value.
const Nil Handle = 0

func pack(index uint32, gen uint8, typ Type) Handle {
	return Handle(uint64(index&indexMask) | uint64(gen)<<genShift | uint64(typ)<<typeShift)
}

// Index returns the slot index encoded in h.
func (h Handle) Index() uint32 { return uint32(h) & indexMask }

// Generation returns the generation counter encoded in h.
func (h Handle) Generation() uint8 { return uint8(h>>genShift) & genMask }

// Type returns the resource type encoded in h.
func (h Handle) Type() Type { return Type(uint8(h>>typeShift) & typeMask) }

// IsNil reports whether h is the invalid Handle.
func (h Handle) IsNil() bool { return h == Nil }

func (h Handle) String() string {
	if h.IsNil() {
		return "Handle(nil)"
	}
	return fmt.Sprintf("Handle(%s:%d#%d)", h.Type(), h.Index(), h.Generation())
}
