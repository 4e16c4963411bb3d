// Copyright 2026 The RHI Authors. All rights reserved.

package vk

import (
	"errors"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// errNoMemoryType means none of the physical device's memory types
// satisfied both a resource's type-filter bits and the requested
// property flags.
var errNoMemoryType = errors.New("vk: no suitable memory type")

// findMemoryType returns the index of a memory type in g.memProps
// whose bit is set in typeFilter and whose property flags are a
// superset of want.
func (g *GPU) findMemoryType(typeFilter uint32, want vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < g.memProps.MemoryTypeCount; i++ {
		if typeFilter&(1<<i) == 0 {
			continue
		}
		mt := g.memProps.MemoryTypes[i]
		mt.Deref()
		if mt.PropertyFlags&want == want {
			return i, nil
		}
	}
	return 0, errNoMemoryType
}

// allocForBuffer allocates and binds device memory satisfying buf's
// requirements. When visible is set it requires host-visible+coherent
// memory (there is no fallback: errNoMemoryType if none fits) and maps
// it once, keeping the mapping for the buffer's lifetime so Bytes can
// return it; otherwise it requires device-local memory.
func (g *GPU) allocForBuffer(buf vk.Buffer, visible bool) (vk.DeviceMemory, []byte, error) {
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(g.dev, buf, &req)
	req.Deref()

	want := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	if visible {
		want = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	}
	idx, err := g.findMemoryType(req.MemoryTypeBits, want)
	if err != nil {
		return nil, nil, err
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: idx,
	}
	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(g.dev, &allocInfo, nil, &mem); res != vk.Success {
		return nil, nil, resultErr("AllocateMemory", res)
	}
	if res := vk.BindBufferMemory(g.dev, buf, mem, 0); res != vk.Success {
		vk.FreeMemory(g.dev, mem, nil)
		return nil, nil, resultErr("BindBufferMemory", res)
	}

	if !visible {
		return mem, nil, nil
	}
	var ptr unsafe.Pointer
	if res := vk.MapMemory(g.dev, mem, 0, req.Size, 0, &ptr); res != vk.Success {
		vk.FreeMemory(g.dev, mem, nil)
		return nil, nil, resultErr("MapMemory", res)
	}
	return mem, unsafe.Slice((*byte)(ptr), int(req.Size)), nil
}

// allocForImage allocates and binds device-local memory satisfying
// img's requirements. Images are never host-visible in this
// backend; data reaches them through the staging package's
// buffer-to-image copies.
func (g *GPU) allocForImage(img vk.Image) (vk.DeviceMemory, error) {
	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(g.dev, img, &req)
	req.Deref()

	idx, err := g.findMemoryType(req.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return nil, err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: idx,
	}
	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(g.dev, &allocInfo, nil, &mem); res != vk.Success {
		return nil, resultErr("AllocateMemory", res)
	}
	if res := vk.BindImageMemory(g.dev, img, mem, 0); res != vk.Success {
		vk.FreeMemory(g.dev, mem, nil)
		return nil, resultErr("BindImageMemory", res)
	}
	return mem, nil
}
