// Copyright 2026 The RHI Authors. All rights reserved.

package vk

import (
	"errors"

	vk "github.com/goki/vulkan"

	"github.com/karlsen-gfx/rhi/driver"
)

type cbState int

const (
	stNew cbState = iota
	stRecording
	stEnded
)

// CmdBuffer implements driver.CmdBuffer over a VkCommandBuffer
// allocated from its GPU's single command pool.
type CmdBuffer struct {
	gpu   *GPU
	buf   vk.CommandBuffer
	state cbState

	inPass, inWork, inBlit bool
	boundGraph, boundComp  *Pipeline
}

func (c *CmdBuffer) Destroy() {
	bufs := []vk.CommandBuffer{c.buf}
	vk.FreeCommandBuffers(c.gpu.dev, c.gpu.pool, 1, bufs)
	*c = CmdBuffer{}
}

func (c *CmdBuffer) Begin() error {
	if c.state == stRecording {
		return errors.New("vk: CmdBuffer already recording")
	}
	if c.state == stEnded {
		if res := vk.ResetCommandBuffer(c.buf, 0); res != vk.Success {
			return resultErr("ResetCommandBuffer", res)
		}
	}
	info := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(c.buf, &info); res != vk.Success {
		return resultErr("BeginCommandBuffer", res)
	}
	c.state = stRecording
	return nil
}

func (c *CmdBuffer) BeginPass(pass driver.RenderPass, fb driver.Framebuf, clear []driver.ClearValue) {
	c.inPass = true
	values := make([]vk.ClearValue, len(clear))
	for i, cv := range clear {
		values[i].SetColor([]float32{cv.Color[0], cv.Color[1], cv.Color[2], cv.Color[3]})
		values[i].SetDepthStencil(cv.Depth, cv.Stencil)
	}
	info := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass.(*RenderPass).pass,
		Framebuffer: fb.(*Framebuf).fb,
		ClearValueCount: uint32(len(values)),
		PClearValues:    values,
	}
	vk.CmdBeginRenderPass(c.buf, &info, vk.SubpassContentsInline)
}

func (c *CmdBuffer) NextSubpass() {
	vk.CmdNextSubpass(c.buf, vk.SubpassContentsInline)
}

func (c *CmdBuffer) EndPass() {
	c.inPass = false
	vk.CmdEndRenderPass(c.buf)
}

func (c *CmdBuffer) BeginWork(wait bool) { c.inWork = true }
func (c *CmdBuffer) EndWork()            { c.inWork = false }
func (c *CmdBuffer) BeginBlit(wait bool) { c.inBlit = true }
func (c *CmdBuffer) EndBlit()            { c.inBlit = false }

func (c *CmdBuffer) SetPipeline(pl driver.Pipeline) {
	p := pl.(*Pipeline)
	bindPoint := vk.PipelineBindPointGraphics
	if c.inWork {
		bindPoint = vk.PipelineBindPointCompute
	}
	vk.CmdBindPipeline(c.buf, bindPoint, p.pl)
}

func (c *CmdBuffer) SetViewport(vp []driver.Viewport) {
	vks := make([]vk.Viewport, len(vp))
	for i, v := range vp {
		vks[i] = vk.Viewport{X: v.X, Y: v.Y, Width: v.Width, Height: v.Height, MinDepth: v.Znear, MaxDepth: v.Zfar}
	}
	vk.CmdSetViewport(c.buf, 0, uint32(len(vks)), vks)
}

func (c *CmdBuffer) SetScissor(sciss []driver.Scissor) {
	vks := make([]vk.Rect2D, len(sciss))
	for i, s := range sciss {
		vks[i] = vk.Rect2D{
			Offset: vk.Offset2D{X: int32(s.X), Y: int32(s.Y)},
			Extent: vk.Extent2D{Width: uint32(s.Width), Height: uint32(s.Height)},
		}
	}
	vk.CmdSetScissor(c.buf, 0, uint32(len(vks)), vks)
}

func (c *CmdBuffer) SetBlendColor(r, g, b, a float32) {
	constants := [4]float32{r, g, b, a}
	vk.CmdSetBlendConstants(c.buf, &constants)
}

func (c *CmdBuffer) SetStencilRef(value uint32) {
	vk.CmdSetStencilReference(c.buf, vk.StencilFaceFlags(vk.StencilFrontAndBack), value)
}

func (c *CmdBuffer) SetVertexBuf(start int, buf []driver.Buffer, off []int64) {
	bufs := make([]vk.Buffer, len(buf))
	offs := make([]vk.DeviceSize, len(off))
	for i, b := range buf {
		bufs[i] = b.(*Buffer).buf
		offs[i] = vk.DeviceSize(off[i])
	}
	vk.CmdBindVertexBuffers(c.buf, uint32(start), uint32(len(bufs)), bufs, offs)
}

func (c *CmdBuffer) SetIndexBuf(format driver.IndexFmt, buf driver.Buffer, off int64) {
	vk.CmdBindIndexBuffer(c.buf, buf.(*Buffer).buf, vk.DeviceSize(off), indexType(format))
}

func (c *CmdBuffer) SetDescTableGraph(table driver.DescTable, start int, heapCopy []int) {
	c.bindDescTable(vk.PipelineBindPointGraphics, table, start, heapCopy)
}

func (c *CmdBuffer) SetDescTableComp(table driver.DescTable, start int, heapCopy []int) {
	c.bindDescTable(vk.PipelineBindPointCompute, table, start, heapCopy)
}

func (c *CmdBuffer) bindDescTable(bindPoint vk.PipelineBindPoint, table driver.DescTable, start int, heapCopy []int) {
	dt := table.(*DescTable)
	sets := make([]vk.DescriptorSet, 0, len(heapCopy))
	for i, cpy := range heapCopy {
		if start+i >= len(dt.heaps) {
			break
		}
		h := dt.heaps[start+i].(*DescHeap)
		if cpy < len(h.sets) {
			sets = append(sets, h.sets[cpy])
		}
	}
	if len(sets) == 0 {
		return
	}
	vk.CmdBindDescriptorSets(c.buf, bindPoint, dt.layout, uint32(start), uint32(len(sets)), sets, 0, nil)
}

func (c *CmdBuffer) Draw(vertCount, instCount, baseVert, baseInst int) {
	vk.CmdDraw(c.buf, uint32(vertCount), uint32(instCount), uint32(baseVert), uint32(baseInst))
}

func (c *CmdBuffer) DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int) {
	vk.CmdDrawIndexed(c.buf, uint32(idxCount), uint32(instCount), uint32(baseIdx), int32(vertOff), uint32(baseInst))
}

func (c *CmdBuffer) Dispatch(grpCountX, grpCountY, grpCountZ int) {
	vk.CmdDispatch(c.buf, uint32(grpCountX), uint32(grpCountY), uint32(grpCountZ))
}

func (c *CmdBuffer) CopyBuffer(p *driver.BufferCopy) {
	region := vk.BufferCopy{SrcOffset: vk.DeviceSize(p.FromOff), DstOffset: vk.DeviceSize(p.ToOff), Size: vk.DeviceSize(p.Size)}
	vk.CmdCopyBuffer(c.buf, p.From.(*Buffer).buf, p.To.(*Buffer).buf, 1, []vk.BufferCopy{region})
}

func (c *CmdBuffer) CopyImage(p *driver.ImageCopy) {
	from := p.From.(*Image)
	to := p.To.(*Image)
	region := vk.ImageCopy{
		SrcSubresource: subresource(from.pf, p.FromLayer, p.Layers, p.FromLevel),
		SrcOffset:      offset3D(p.FromOff),
		DstSubresource: subresource(to.pf, p.ToLayer, p.Layers, p.ToLevel),
		DstOffset:      offset3D(p.ToOff),
		Extent:         extent3D(p.Size),
	}
	vk.CmdCopyImage(c.buf, from.img, vk.ImageLayoutTransferSrcOptimal, to.img, vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageCopy{region})
}

func (c *CmdBuffer) CopyBufToImg(p *driver.BufImgCopy) {
	img := p.Img.(*Image)
	region := vk.BufferImageCopy{
		BufferOffset:      vk.DeviceSize(p.BufOff),
		BufferRowLength:   uint32(p.Stride[0]),
		BufferImageHeight: uint32(p.Stride[1]),
		ImageSubresource:  subresource(img.pf, p.Layer, 1, p.Level),
		ImageOffset:       offset3D(p.ImgOff),
		ImageExtent:       extent3D(p.Size),
	}
	vk.CmdCopyBufferToImage(c.buf, p.Buf.(*Buffer).buf, img.img, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

func (c *CmdBuffer) CopyImgToBuf(p *driver.BufImgCopy) {
	img := p.Img.(*Image)
	region := vk.BufferImageCopy{
		BufferOffset:      vk.DeviceSize(p.BufOff),
		BufferRowLength:   uint32(p.Stride[0]),
		BufferImageHeight: uint32(p.Stride[1]),
		ImageSubresource:  subresource(img.pf, p.Layer, 1, p.Level),
		ImageOffset:       offset3D(p.ImgOff),
		ImageExtent:       extent3D(p.Size),
	}
	vk.CmdCopyImageToBuffer(c.buf, img.img, vk.ImageLayoutTransferSrcOptimal, p.Buf.(*Buffer).buf, 1, []vk.BufferImageCopy{region})
}

func (c *CmdBuffer) Fill(buf driver.Buffer, off int64, value byte, size int64) {
	word := uint32(value) | uint32(value)<<8 | uint32(value)<<16 | uint32(value)<<24
	vk.CmdFillBuffer(c.buf, buf.(*Buffer).buf, vk.DeviceSize(off), vk.DeviceSize(size), word)
}

func (c *CmdBuffer) Barrier(b []driver.Barrier) {
	for _, bar := range b {
		mb := vk.MemoryBarrier{
			SType:         vk.StructureTypeMemoryBarrier,
			SrcAccessMask: accessFlags(bar.AccessBefore),
			DstAccessMask: accessFlags(bar.AccessAfter),
		}
		vk.CmdPipelineBarrier(c.buf, pipelineStage(bar.SyncBefore), pipelineStage(bar.SyncAfter), 0,
			1, []vk.MemoryBarrier{mb}, 0, nil, 0, nil)
	}
}

func (c *CmdBuffer) Transition(t []driver.Transition) {
	for _, tr := range t {
		v := tr.IView.(*ImageView)
		ib := vk.ImageMemoryBarrier{
			SType:         vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask: accessFlags(tr.AccessBefore),
			DstAccessMask: accessFlags(tr.AccessAfter),
			OldLayout:     imageLayout(tr.LayoutBefore),
			NewLayout:     imageLayout(tr.LayoutAfter),
			Image:         v.img.img,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     aspectMask(v.img.pf),
				BaseMipLevel:   uint32(v.level),
				LevelCount:     uint32(v.levels),
				BaseArrayLayer: uint32(v.layer),
				LayerCount:     uint32(v.layers),
			},
		}
		vk.CmdPipelineBarrier(c.buf, pipelineStage(tr.SyncBefore), pipelineStage(tr.SyncAfter), 0,
			0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{ib})
	}
}

func (c *CmdBuffer) End() error {
	if c.state != stRecording {
		return errors.New("vk: End called on CmdBuffer not recording")
	}
	if c.inPass || c.inWork || c.inBlit {
		c.state = stNew
		return errors.New("vk: End called with an open Begin* block")
	}
	if res := vk.EndCommandBuffer(c.buf); res != vk.Success {
		return resultErr("EndCommandBuffer", res)
	}
	c.state = stEnded
	return nil
}

func (c *CmdBuffer) Reset() error {
	if res := vk.ResetCommandBuffer(c.buf, 0); res != vk.Success {
		return resultErr("ResetCommandBuffer", res)
	}
	c.state = stNew
	c.inPass, c.inWork, c.inBlit = false, false, false
	return nil
}

func subresource(pf driver.PixelFmt, layer, layers, level int) vk.ImageSubresourceLayers {
	return vk.ImageSubresourceLayers{
		AspectMask:     aspectMask(pf),
		MipLevel:       uint32(level),
		BaseArrayLayer: uint32(layer),
		LayerCount:     uint32(max(layers, 1)),
	}
}

func offset3D(o driver.Off3D) vk.Offset3D {
	return vk.Offset3D{X: int32(o.X), Y: int32(o.Y), Z: int32(o.Z)}
}

func extent3D(d driver.Dim3D) vk.Extent3D {
	return vk.Extent3D{Width: uint32(d.Width), Height: uint32(d.Height), Depth: uint32(max(d.Depth, 1))}
}
