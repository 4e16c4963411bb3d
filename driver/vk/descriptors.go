// Copyright 2026 The RHI Authors. All rights reserved.

package vk

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/karlsen-gfx/rhi/driver"
)

// NewDescHeap implements driver.GPU. Each driver.Descriptor becomes
// one VkDescriptorSetLayout binding; New(n) then allocates n copies
// of the resulting layout from a pool sized for exactly that.
func (g *GPU) NewDescHeap(ds []driver.Descriptor) (driver.DescHeap, error) {
	bindings := make([]vk.DescriptorSetLayoutBinding, len(ds))
	for i, d := range ds {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         uint32(d.Nr),
			DescriptorType:  descType(d.Type),
			DescriptorCount: uint32(max(d.Len, 1)),
			StageFlags:      stageFlags(d.Stages),
		}
	}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(g.dev, &info, nil, &layout); res != vk.Success {
		return nil, resultErr("CreateDescriptorSetLayout", res)
	}
	return &DescHeap{gpu: g, layout: layout, descs: append([]driver.Descriptor(nil), ds...)}, nil
}

func descType(t driver.DescType) vk.DescriptorType {
	switch t {
	case driver.DImage:
		return vk.DescriptorTypeStorageImage
	case driver.DConstant:
		return vk.DescriptorTypeUniformBuffer
	case driver.DTexture:
		return vk.DescriptorTypeSampledImage
	case driver.DSampler:
		return vk.DescriptorTypeSampler
	default:
		return vk.DescriptorTypeStorageBuffer
	}
}

func stageFlags(s driver.Stage) vk.ShaderStageFlags {
	var f vk.ShaderStageFlagBits
	if s&driver.SVertex != 0 {
		f |= vk.ShaderStageVertexBit
	}
	if s&driver.SFragment != 0 {
		f |= vk.ShaderStageFragmentBit
	}
	if s&driver.SCompute != 0 {
		f |= vk.ShaderStageComputeBit
	}
	return vk.ShaderStageFlags(f)
}

// DescHeap implements driver.DescHeap over a VkDescriptorSetLayout
// and a VkDescriptorPool sized by the most recent call to New.
type DescHeap struct {
	gpu    *GPU
	layout vk.DescriptorSetLayout
	descs  []driver.Descriptor

	pool vk.DescriptorPool
	sets []vk.DescriptorSet
}

func (h *DescHeap) Destroy() {
	h.freePool()
	vk.DestroyDescriptorSetLayout(h.gpu.dev, h.layout, nil)
	*h = DescHeap{}
}

func (h *DescHeap) freePool() {
	if h.pool != nil {
		vk.DestroyDescriptorPool(h.gpu.dev, h.pool, nil)
		h.pool = nil
		h.sets = nil
	}
}

// New implements driver.DescHeap.
func (h *DescHeap) New(n int) error {
	if n == len(h.sets) {
		return nil
	}
	h.freePool()
	if n == 0 {
		return nil
	}

	sizes := make([]vk.DescriptorPoolSize, len(h.descs))
	for i, d := range h.descs {
		sizes[i] = vk.DescriptorPoolSize{
			Type:            descType(d.Type),
			DescriptorCount: uint32(n * max(d.Len, 1)),
		}
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       uint32(n),
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(h.gpu.dev, &poolInfo, nil, &pool); res != vk.Success {
		return resultErr("CreateDescriptorPool", res)
	}

	layouts := make([]vk.DescriptorSetLayout, n)
	for i := range layouts {
		layouts[i] = h.layout
	}
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: uint32(n),
		PSetLayouts:        layouts,
	}
	sets := make([]vk.DescriptorSet, n)
	if res := vk.AllocateDescriptorSets(h.gpu.dev, &allocInfo, &sets[0]); res != vk.Success {
		vk.DestroyDescriptorPool(h.gpu.dev, pool, nil)
		return resultErr("AllocateDescriptorSets", res)
	}
	h.pool = pool
	h.sets = sets
	return nil
}

// SetBuffer implements driver.DescHeap.
func (h *DescHeap) SetBuffer(cpy, nr, start int, buf []driver.Buffer, off, size []int64) {
	infos := make([]vk.DescriptorBufferInfo, len(buf))
	for i, b := range buf {
		infos[i] = vk.DescriptorBufferInfo{
			Buffer: b.(*Buffer).buf,
			Offset: vk.DeviceSize(off[i]),
			Range:  vk.DeviceSize(size[i]),
		}
	}
	h.write(cpy, nr, start, func(w *vk.WriteDescriptorSet) { w.PBufferInfo = infos })
}

// SetImage implements driver.DescHeap.
func (h *DescHeap) SetImage(cpy, nr, start int, iv []driver.ImageView) {
	infos := make([]vk.DescriptorImageInfo, len(iv))
	for i, v := range iv {
		vv := v.(*ImageView)
		infos[i] = vk.DescriptorImageInfo{
			ImageView:   vv.view,
			ImageLayout: vk.ImageLayoutGeneral,
		}
	}
	h.write(cpy, nr, start, func(w *vk.WriteDescriptorSet) { w.PImageInfo = infos })
}

// SetSampler implements driver.DescHeap.
func (h *DescHeap) SetSampler(cpy, nr, start int, splr []driver.Sampler) {
	infos := make([]vk.DescriptorImageInfo, len(splr))
	for i, s := range splr {
		infos[i] = vk.DescriptorImageInfo{Sampler: s.(*Sampler).splr}
	}
	h.write(cpy, nr, start, func(w *vk.WriteDescriptorSet) { w.PImageInfo = infos })
}

func (h *DescHeap) write(cpy, nr, start int, fill func(*vk.WriteDescriptorSet)) {
	if cpy < 0 || cpy >= len(h.sets) {
		return
	}
	var typ vk.DescriptorType
	for _, d := range h.descs {
		if d.Nr == nr {
			typ = descType(d.Type)
			break
		}
	}
	w := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          h.sets[cpy],
		DstBinding:      uint32(nr),
		DstArrayElement: uint32(start),
		DescriptorType:  typ,
	}
	fill(&w)
	if len(w.PBufferInfo) > 0 {
		w.DescriptorCount = uint32(len(w.PBufferInfo))
	} else if len(w.PImageInfo) > 0 {
		w.DescriptorCount = uint32(len(w.PImageInfo))
	}
	vk.UpdateDescriptorSets(h.gpu.dev, 1, []vk.WriteDescriptorSet{w}, 0, nil)
}

// Count implements driver.DescHeap.
func (h *DescHeap) Count() int { return len(h.sets) }

// NewDescTable implements driver.GPU.
func (g *GPU) NewDescTable(dh []driver.DescHeap) (driver.DescTable, error) {
	layouts := make([]vk.DescriptorSetLayout, len(dh))
	for i, h := range dh {
		layouts[i] = h.(*DescHeap).layout
	}
	info := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(layouts)),
		PSetLayouts:    layouts,
	}
	var pl vk.PipelineLayout
	if res := vk.CreatePipelineLayout(g.dev, &info, nil, &pl); res != vk.Success {
		return nil, resultErr("CreatePipelineLayout", res)
	}
	heaps := append([]driver.DescHeap(nil), dh...)
	return &DescTable{gpu: g, layout: pl, heaps: heaps}, nil
}

// DescTable implements driver.DescTable over a VkPipelineLayout.
type DescTable struct {
	gpu    *GPU
	layout vk.PipelineLayout
	heaps  []driver.DescHeap
}

func (t *DescTable) Destroy() {
	vk.DestroyPipelineLayout(t.gpu.dev, t.layout, nil)
	*t = DescTable{}
}

// NewRenderPass implements driver.GPU.
func (g *GPU) NewRenderPass(att []driver.Attachment, sub []driver.Subpass) (driver.RenderPass, error) {
	descs := make([]vk.AttachmentDescription, len(att))
	for i, a := range att {
		descs[i] = vk.AttachmentDescription{
			Format:         pixelFmt(a.Format),
			Samples:        sampleCount(a.Samples),
			LoadOp:         loadOp(a.Load[0]),
			StoreOp:        storeOp(a.Store[0]),
			StencilLoadOp:  loadOp(a.Load[1]),
			StencilStoreOp: storeOp(a.Store[1]),
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutGeneral,
		}
	}

	subs := make([]vk.SubpassDescription, len(sub))
	refStore := make([][]vk.AttachmentReference, len(sub))
	for i, s := range sub {
		refs := make([]vk.AttachmentReference, len(s.Color))
		for j, c := range s.Color {
			refs[j] = vk.AttachmentReference{Attachment: uint32(c), Layout: vk.ImageLayoutColorAttachmentOptimal}
		}
		refStore[i] = refs
		subs[i] = vk.SubpassDescription{
			PipelineBindPoint:    vk.PipelineBindPointGraphics,
			ColorAttachmentCount: uint32(len(refs)),
			PColorAttachments:    refs,
		}
		if s.DS >= 0 {
			dsRef := vk.AttachmentReference{Attachment: uint32(s.DS), Layout: vk.ImageLayoutDepthStencilAttachmentOptimal}
			subs[i].PDepthStencilAttachment = &dsRef
		}
	}

	info := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(descs)),
		PAttachments:    descs,
		SubpassCount:    uint32(len(subs)),
		PSubpasses:      subs,
	}
	var pass vk.RenderPass
	if res := vk.CreateRenderPass(g.dev, &info, nil, &pass); res != vk.Success {
		return nil, resultErr("CreateRenderPass", res)
	}
	return &RenderPass{gpu: g, pass: pass, att: append([]driver.Attachment(nil), att...)}, nil
}

// RenderPass implements driver.RenderPass over a VkRenderPass.
type RenderPass struct {
	gpu  *GPU
	pass vk.RenderPass
	att  []driver.Attachment
}

func (p *RenderPass) Destroy() {
	vk.DestroyRenderPass(p.gpu.dev, p.pass, nil)
	*p = RenderPass{}
}

// NewFB implements driver.RenderPass.
func (p *RenderPass) NewFB(iv []driver.ImageView, width, height, layers int) (driver.Framebuf, error) {
	if len(iv) != len(p.att) {
		return nil, fmt.Errorf("vk: NewFB: view count %d does not match attachment count %d", len(iv), len(p.att))
	}
	views := make([]vk.ImageView, len(iv))
	for i, v := range iv {
		views[i] = v.(*ImageView).view
	}
	info := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      p.pass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           uint32(width),
		Height:          uint32(height),
		Layers:          uint32(layers),
	}
	var fb vk.Framebuffer
	if res := vk.CreateFramebuffer(p.gpu.dev, &info, nil, &fb); res != vk.Success {
		return nil, resultErr("CreateFramebuffer", res)
	}
	return &Framebuf{gpu: p.gpu, fb: fb}, nil
}

// Framebuf implements driver.Framebuf.
type Framebuf struct {
	gpu *GPU
	fb  vk.Framebuffer
}

func (f *Framebuf) Destroy() {
	vk.DestroyFramebuffer(f.gpu.dev, f.fb, nil)
	*f = Framebuf{}
}
