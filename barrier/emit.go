// Copyright 2026 The RHI Authors. All rights reserved.

package barrier

import (
	"math"

	"github.com/karlsen-gfx/rhi/driver"
	"github.com/karlsen-gfx/rhi/handle"
	"github.com/karlsen-gfx/rhi/resource"
	"github.com/karlsen-gfx/rhi/taskgraph"
)

// block tracks which of the driver's three mutually-exclusive
// logical recording blocks is currently open, so the emitter can
// open/close BeginWork/BeginBlit pairs around tasks that have no
// client-visible Begin/End call of their own (a render pass, by
// contrast, is opened and closed by its own KindBeginRenderPass
// and KindEndRenderPass tasks).
type block int

const (
	blockNone block = iota
	blockPass
	blockWork
	blockBlit
)

func (s *Solver) emit(cb driver.CmdBuffer, frameSlot int, tasks []taskgraph.Task, order []taskgraph.TaskId, barriers map[taskgraph.TaskId][]driver.Barrier, transitions map[taskgraph.TaskId][]driver.Transition) error {
	cur := blockNone
	closeBlock := func() {
		switch cur {
		case blockPass:
			cb.EndPass()
		case blockWork:
			cb.EndWork()
		case blockBlit:
			cb.EndBlit()
		}
		cur = blockNone
	}
	ensureBlock := func(want block) {
		if cur == want {
			return
		}
		closeBlock()
		switch want {
		case blockWork:
			cb.BeginWork(false)
		case blockBlit:
			cb.BeginBlit(false)
		}
		cur = want
	}

	for _, id := range order {
		t := &tasks[id]

		if bars := barriers[id]; len(bars) > 0 {
			closeBlock()
			cb.Barrier(bars)
		}
		if trans := transitions[id]; len(trans) > 0 {
			closeBlock()
			cb.Transition(trans)
		}
		if s.sink != nil {
			s.sink.Emitting(*t, barriers[id], transitions[id])
		}

		if err := s.emitTask(cb, frameSlot, t, ensureBlock, closeBlock, &cur); err != nil {
			return err
		}
	}
	closeBlock()
	return nil
}

func (s *Solver) emitTask(cb driver.CmdBuffer, frameSlot int, t *taskgraph.Task, ensureBlock func(block), closeBlock func(), cur *block) error {
	switch t.Kind {
	case taskgraph.KindBeginRenderPass:
		closeBlock()
		desc := t.Payload.(taskgraph.BeginRenderPassDesc)
		pass, err := s.res.RenderPass(desc.Pass)
		if err != nil {
			return err
		}
		fb, err := s.res.Framebuffer(desc.Framebuffer)
		if err != nil {
			return err
		}
		cb.BeginPass(pass, fb, desc.Clear)
		*cur = blockPass

	case taskgraph.KindEndRenderPass:
		cb.EndPass()
		*cur = blockNone

	case taskgraph.KindDraw:
		desc := t.Payload.(taskgraph.DrawDesc)
		if err := s.setGraphicsState(cb, frameSlot, desc.Pipeline, desc.Resources, desc.VertexBuf, desc.Viewport, desc.Scissor, desc.BlendColor, desc.StencilRef); err != nil {
			return err
		}
		cb.Draw(desc.VertCnt, desc.InstCnt, desc.BaseVert, desc.BaseInst)

	case taskgraph.KindDrawIndexed:
		desc := t.Payload.(taskgraph.DrawIndexedDesc)
		if err := s.setGraphicsState(cb, frameSlot, desc.Pipeline, desc.Resources, desc.VertexBuf, desc.Viewport, desc.Scissor, desc.BlendColor, desc.StencilRef); err != nil {
			return err
		}
		idx, err := s.res.Buffer(desc.IndexBuf)
		if err != nil {
			return err
		}
		cb.SetIndexBuf(desc.IndexFmt, idx, 0)
		cb.DrawIndexed(desc.IdxCnt, desc.InstCnt, desc.BaseIndex, desc.BaseVert, desc.BaseInst)

	case taskgraph.KindDrawMeshes:
		desc := t.Payload.(taskgraph.DrawMeshesDesc)
		mc, ok := s.gpu.(driver.MeshCapable)
		if !ok {
			return ErrUnsupportedFeature
		}
		if err := s.bindGraphics(cb, frameSlot, desc.Pipeline, desc.Resources, desc.Viewport, desc.Scissor, desc.BlendColor, desc.StencilRef); err != nil {
			return err
		}
		mc.DrawMeshes(cb, desc.GroupX, desc.GroupY, desc.GroupZ)

	case taskgraph.KindCustomDraw:
		desc := t.Payload.(taskgraph.CustomDrawDesc)
		desc.Record(cb)

	case taskgraph.KindDispatch:
		ensureBlock(blockWork)
		desc := t.Payload.(taskgraph.DispatchDesc)
		if !desc.Pipeline.IsNil() {
			pl, err := s.res.Pipeline(desc.Pipeline)
			if err != nil {
				return err
			}
			cb.SetPipeline(pl)
		}
		if !desc.Resources.IsNil() {
			table, err := s.pipe.BindHandle(s.gpu, frameSlot, desc.Resources)
			if err != nil {
				return err
			}
			cb.SetDescTableComp(table, 0, []int{0})
		}
		cb.Dispatch(desc.GroupX, desc.GroupY, desc.GroupZ)

	case taskgraph.KindTraceRays:
		ensureBlock(blockWork)
		desc := t.Payload.(taskgraph.TraceRaysDesc)
		rt, ok := s.gpu.(driver.RayTracer)
		if !ok {
			return ErrUnsupportedFeature
		}
		if !desc.Pipeline.IsNil() {
			pl, err := s.res.Pipeline(desc.Pipeline)
			if err != nil {
				return err
			}
			cb.SetPipeline(pl)
		}
		if !desc.Resources.IsNil() {
			table, err := s.pipe.BindHandle(s.gpu, frameSlot, desc.Resources)
			if err != nil {
				return err
			}
			cb.SetDescTableComp(table, 0, []int{0})
		}
		rt.TraceRays(cb, desc.Width, desc.Height, desc.Depth)

	case taskgraph.KindBuildRayTracingGeometry:
		ensureBlock(blockBlit)
		desc := t.Payload.(taskgraph.BuildRayTracingGeometryDesc)
		rt, ok := s.gpu.(driver.RayTracer)
		if !ok {
			return ErrUnsupportedFeature
		}
		dst, err := s.res.Buffer(desc.Dest)
		if err != nil {
			return err
		}
		src, err := s.res.Buffer(desc.Src)
		if err != nil {
			return err
		}
		rt.BuildAccelStruct(cb, dst, src, desc.Geometry)

	case taskgraph.KindCopyBuffer:
		ensureBlock(blockBlit)
		desc := t.Payload.(taskgraph.CopyBufferDesc)
		from, err := s.res.Buffer(desc.From)
		if err != nil {
			return err
		}
		to, err := s.res.Buffer(desc.To)
		if err != nil {
			return err
		}
		cb.CopyBuffer(&driver.BufferCopy{From: from, FromOff: desc.FromOff, To: to, ToOff: desc.ToOff, Size: desc.Size})

	case taskgraph.KindCopyImage:
		ensureBlock(blockBlit)
		desc := t.Payload.(taskgraph.CopyImageDesc)
		if err := s.copyImage(cb, desc); err != nil {
			return err
		}

	case taskgraph.KindBlitImage:
		ensureBlock(blockBlit)
		desc := t.Payload.(taskgraph.BlitImageDesc)
		if desc.FromExtent != desc.ToExtent {
			return ErrUnsupportedFeature
		}
		if err := s.copyImage(cb, taskgraph.CopyImageDesc{
			From: desc.From, To: desc.To,
			FromOff: desc.FromOff, ToOff: desc.ToOff,
			FromLayer: desc.FromLayer, ToLayer: desc.ToLayer,
			FromLevel: desc.FromLevel, ToLevel: desc.ToLevel,
			Size: desc.FromExtent,
		}); err != nil {
			return err
		}

	case taskgraph.KindUpdateBuffer:
		ensureBlock(blockBlit)
		desc := t.Payload.(taskgraph.UpdateBufferDesc)
		region, err := s.stg.StageUpload(frameSlot, desc.Data)
		if err != nil {
			return err
		}
		to, err := s.res.Buffer(desc.Dest)
		if err != nil {
			return err
		}
		cb.CopyBuffer(&driver.BufferCopy{From: region.Buffer, FromOff: region.Offset, To: to, ToOff: desc.Offset, Size: region.Size})

	case taskgraph.KindUpdateImage:
		ensureBlock(blockBlit)
		desc := t.Payload.(taskgraph.UpdateImageDesc)
		region, err := s.stg.StageUpload(frameSlot, desc.Data)
		if err != nil {
			return err
		}
		img, err := s.res.Image(desc.Dest)
		if err != nil {
			return err
		}
		cb.CopyBufToImg(&driver.BufImgCopy{
			Buf: region.Buffer, BufOff: region.Offset, Stride: desc.Stride,
			Img: img, ImgOff: desc.Off, Layer: desc.Layer, Level: desc.Level, Size: desc.Size,
		})

	case taskgraph.KindReadBuffer:
		ensureBlock(blockBlit)
		desc := t.Payload.(taskgraph.ReadBufferDesc)
		from, err := s.res.Buffer(desc.Source)
		if err != nil {
			return err
		}
		region, err := s.stg.ReserveDownload(frameSlot, desc.Size, func(data []byte) {
			if desc.Callback != nil {
				desc.Callback(readStatus(data), data)
			}
		})
		if err != nil {
			return err
		}
		cb.CopyBuffer(&driver.BufferCopy{From: from, FromOff: desc.Offset, To: region.Buffer, ToOff: region.Offset, Size: desc.Size})

	case taskgraph.KindReadImage:
		ensureBlock(blockBlit)
		desc := t.Payload.(taskgraph.ReadImageDesc)
		img, err := s.res.Image(desc.Source)
		if err != nil {
			return err
		}
		imgDesc, err := s.res.Description(desc.Source)
		if err != nil {
			return err
		}
		size := pixelArea(desc.Size) * pixelFormatOf(imgDesc).Size()
		region, err := s.stg.ReserveDownload(frameSlot, int64(size), func(data []byte) {
			if desc.Callback != nil {
				desc.Callback(readStatus(data), data)
			}
		})
		if err != nil {
			return err
		}
		cb.CopyImgToBuf(&driver.BufImgCopy{
			Buf: region.Buffer, BufOff: region.Offset,
			Img: img, ImgOff: desc.Off, Layer: desc.Layer, Level: desc.Level, Size: desc.Size,
		})

	case taskgraph.KindClearImage:
		ensureBlock(blockBlit)
		desc := t.Payload.(taskgraph.ClearImageDesc)
		img, err := s.res.Image(desc.Dest)
		if err != nil {
			return err
		}
		imgDesc, err := s.res.Description(desc.Dest)
		if err != nil {
			return err
		}
		pf := pixelFormatOf(imgDesc)
		pixel, err := encodeClearPixel(pf, desc.Color)
		if err != nil {
			return err
		}
		data := make([]byte, pixelArea(desc.Size)*len(pixel))
		for i := 0; i < len(data); i += len(pixel) {
			copy(data[i:], pixel)
		}
		region, err := s.stg.StageUpload(frameSlot, data)
		if err != nil {
			return err
		}
		cb.CopyBufToImg(&driver.BufImgCopy{
			Buf: region.Buffer, BufOff: region.Offset,
			Stride: [2]int64{int64(desc.Size.Width), int64(desc.Size.Height)},
			Img: img, ImgOff: desc.Off, Layer: desc.Layer, Level: desc.Level, Size: desc.Size,
		})

	case taskgraph.KindClearBuffer:
		ensureBlock(blockBlit)
		desc := t.Payload.(taskgraph.ClearBufferDesc)
		to, err := s.res.Buffer(desc.Dest)
		if err != nil {
			return err
		}
		cb.Fill(to, desc.Offset, desc.Value, desc.Size)

	case taskgraph.KindBarrier, taskgraph.KindGroup, taskgraph.KindPresentImage:
		// KindBarrier's only effect is the sync/transition already
		// emitted ahead of this task; KindGroup is a debug-only
		// label with no driver call; KindPresentImage's layout
		// transition to driver.LPresent is likewise handled by the
		// access walk. No present call is made for it, here or in
		// the submission batcher, which holds no driver.Swapchain.

	default:
		return ErrUnsupportedFeature
	}
	return nil
}

// bindGraphics sets the fixed-function state and pipeline common
// to every draw-kind task, binding the declared PipelineResources
// handle, if any, as a graphics descriptor table range.
func (s *Solver) bindGraphics(cb driver.CmdBuffer, frameSlot int, pipeH, resH handle.Handle, vp driver.Viewport, sc driver.Scissor, blend [4]float32, stencilRef uint32) error {
	if !pipeH.IsNil() {
		pl, err := s.res.Pipeline(pipeH)
		if err != nil {
			return err
		}
		cb.SetPipeline(pl)
	}
	cb.SetViewport([]driver.Viewport{vp})
	cb.SetScissor([]driver.Scissor{sc})
	cb.SetBlendColor(blend[0], blend[1], blend[2], blend[3])
	cb.SetStencilRef(stencilRef)
	if !resH.IsNil() {
		table, err := s.pipe.BindHandle(s.gpu, frameSlot, resH)
		if err != nil {
			return err
		}
		cb.SetDescTableGraph(table, 0, []int{0})
	}
	return nil
}

// setGraphicsState additionally binds the vertex buffers a
// Draw/DrawIndexed task declares, in order, starting at slot 0.
func (s *Solver) setGraphicsState(cb driver.CmdBuffer, frameSlot int, pipeH, resH handle.Handle, vertexBufs []handle.Handle, vp driver.Viewport, sc driver.Scissor, blend [4]float32, stencilRef uint32) error {
	if err := s.bindGraphics(cb, frameSlot, pipeH, resH, vp, sc, blend, stencilRef); err != nil {
		return err
	}
	if len(vertexBufs) == 0 {
		return nil
	}
	bufs := make([]driver.Buffer, len(vertexBufs))
	offs := make([]int64, len(vertexBufs))
	for i, h := range vertexBufs {
		b, err := s.res.Buffer(h)
		if err != nil {
			return err
		}
		bufs[i] = b
	}
	cb.SetVertexBuf(0, bufs, offs)
	return nil
}

func (s *Solver) copyImage(cb driver.CmdBuffer, desc taskgraph.CopyImageDesc) error {
	from, err := s.res.Image(desc.From)
	if err != nil {
		return err
	}
	to, err := s.res.Image(desc.To)
	if err != nil {
		return err
	}
	layers := 1
	cb.CopyImage(&driver.ImageCopy{
		From: from, FromOff: desc.FromOff, FromLayer: desc.FromLayer, FromLevel: desc.FromLevel,
		To: to, ToOff: desc.ToOff, ToLayer: desc.ToLayer, ToLevel: desc.ToLevel,
		Size: desc.Size, Layers: layers,
	})
	return nil
}

// readStatus reports Aborted for the nil view staging.Manager.Abort
// delivers on a failed batch, Ok otherwise.
func readStatus(data []byte) taskgraph.Status {
	if data == nil {
		return taskgraph.Aborted
	}
	return taskgraph.Ok
}

func pixelArea(d driver.Dim3D) int {
	n := d.Width * d.Height * d.Depth
	if n == 0 {
		return 0
	}
	return n
}

func pixelFormatOf(desc any) driver.PixelFmt {
	if d, ok := desc.(resource.ImageDesc); ok {
		return d.PixelFmt
	}
	return driver.RGBA8un
}

func encodeClearPixel(pf driver.PixelFmt, color [4]float32) ([]byte, error) {
	clamp := func(f float32) byte {
		if f <= 0 {
			return 0
		}
		if f >= 1 {
			return 255
		}
		return byte(math.Round(float64(f) * 255))
	}
	switch pf {
	case driver.RGBA8un, driver.RGBA8n, driver.RGBA8sRGB:
		return []byte{clamp(color[0]), clamp(color[1]), clamp(color[2]), clamp(color[3])}, nil
	case driver.BGRA8un, driver.BGRA8sRGB:
		return []byte{clamp(color[2]), clamp(color[1]), clamp(color[0]), clamp(color[3])}, nil
	case driver.RG8un, driver.RG8n:
		return []byte{clamp(color[0]), clamp(color[1])}, nil
	case driver.R8un, driver.R8n:
		return []byte{clamp(color[0])}, nil
	case driver.RGBA32f:
		return float32sToBytes(color[:]), nil
	case driver.RG32f:
		return float32sToBytes(color[:2]), nil
	case driver.R32f:
		return float32sToBytes(color[:1]), nil
	default:
		return nil, ErrUnsupportedFeature
	}
}

func float32sToBytes(fs []float32) []byte {
	out := make([]byte, 4*len(fs))
	for i, f := range fs {
		bits := math.Float32bits(f)
		out[i*4+0] = byte(bits)
		out[i*4+1] = byte(bits >> 8)
		out[i*4+2] = byte(bits >> 16)
		out[i*4+3] = byte(bits >> 24)
	}
	return out
}
