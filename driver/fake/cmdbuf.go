// Copyright 2026 The RHI Authors. All rights reserved.

package fake

import (
	"errors"
	"fmt"

	"github.com/karlsen-gfx/rhi/driver"
)

type cbState int

const (
	stNew cbState = iota
	stRecording
	stEnded
)

// LogEntry records a single command that was recorded into a
// CmdBuffer, for tests that want to assert on emitted barriers,
// draws or copies without a real device to observe.
type LogEntry struct {
	Op      string
	Barrier *driver.Barrier
	Trans   *driver.Transition
}

// CmdBuffer implements driver.CmdBuffer over host memory.
type CmdBuffer struct {
	gpu   *GPU
	state cbState

	inPass, inWork, inBlit bool

	Log []LogEntry
}

func (c *CmdBuffer) Destroy() { *c = CmdBuffer{gpu: c.gpu} }

func (c *CmdBuffer) Begin() error {
	if c.state == stRecording {
		return errors.New("fake: CmdBuffer already recording")
	}
	c.state = stRecording
	c.Log = c.Log[:0]
	return nil
}

func (c *CmdBuffer) BeginPass(pass driver.RenderPass, fb driver.Framebuf, clear []driver.ClearValue) {
	c.inPass = true
	c.Log = append(c.Log, LogEntry{Op: "BeginPass"})
}

func (c *CmdBuffer) NextSubpass() {
	c.Log = append(c.Log, LogEntry{Op: "NextSubpass"})
}

func (c *CmdBuffer) EndPass() {
	c.inPass = false
	c.Log = append(c.Log, LogEntry{Op: "EndPass"})
}

func (c *CmdBuffer) BeginWork(wait bool) {
	c.inWork = true
	c.Log = append(c.Log, LogEntry{Op: "BeginWork"})
}

func (c *CmdBuffer) EndWork() {
	c.inWork = false
	c.Log = append(c.Log, LogEntry{Op: "EndWork"})
}

func (c *CmdBuffer) BeginBlit(wait bool) {
	c.inBlit = true
	c.Log = append(c.Log, LogEntry{Op: "BeginBlit"})
}

func (c *CmdBuffer) EndBlit() {
	c.inBlit = false
	c.Log = append(c.Log, LogEntry{Op: "EndBlit"})
}

func (c *CmdBuffer) SetPipeline(pl driver.Pipeline) {
	c.Log = append(c.Log, LogEntry{Op: "SetPipeline"})
}

func (c *CmdBuffer) SetViewport(vp []driver.Viewport) {
	c.Log = append(c.Log, LogEntry{Op: "SetViewport"})
}

func (c *CmdBuffer) SetScissor(sciss []driver.Scissor) {
	c.Log = append(c.Log, LogEntry{Op: "SetScissor"})
}

func (c *CmdBuffer) SetBlendColor(r, g, b, a float32) {
	c.Log = append(c.Log, LogEntry{Op: "SetBlendColor"})
}

func (c *CmdBuffer) SetStencilRef(value uint32) {
	c.Log = append(c.Log, LogEntry{Op: "SetStencilRef"})
}

func (c *CmdBuffer) SetVertexBuf(start int, buf []driver.Buffer, off []int64) {
	c.Log = append(c.Log, LogEntry{Op: "SetVertexBuf"})
}

func (c *CmdBuffer) SetIndexBuf(format driver.IndexFmt, buf driver.Buffer, off int64) {
	c.Log = append(c.Log, LogEntry{Op: "SetIndexBuf"})
}

func (c *CmdBuffer) SetDescTableGraph(table driver.DescTable, start int, heapCopy []int) {
	c.Log = append(c.Log, LogEntry{Op: "SetDescTableGraph"})
}

func (c *CmdBuffer) SetDescTableComp(table driver.DescTable, start int, heapCopy []int) {
	c.Log = append(c.Log, LogEntry{Op: "SetDescTableComp"})
}

func (c *CmdBuffer) Draw(vertCount, instCount, baseVert, baseInst int) {
	c.Log = append(c.Log, LogEntry{Op: "Draw"})
}

func (c *CmdBuffer) DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int) {
	c.Log = append(c.Log, LogEntry{Op: "DrawIndexed"})
}

func (c *CmdBuffer) Dispatch(grpCountX, grpCountY, grpCountZ int) {
	c.Log = append(c.Log, LogEntry{Op: "Dispatch"})
}

func (c *CmdBuffer) CopyBuffer(p *driver.BufferCopy) {
	c.Log = append(c.Log, LogEntry{Op: "CopyBuffer"})
	from := p.From.(*Buffer)
	to := p.To.(*Buffer)
	copy(to.data[p.ToOff:p.ToOff+p.Size], from.data[p.FromOff:p.FromOff+p.Size])
}

func (c *CmdBuffer) CopyImage(p *driver.ImageCopy) {
	c.Log = append(c.Log, LogEntry{Op: "CopyImage"})
	from := p.From.(*Image)
	to := p.To.(*Image)
	n := min(from.pf.Size(), to.pf.Size())
	for i := 0; i < p.Layers; i++ {
		fp := from.plane(p.FromLayer+i, p.FromLevel)
		tp := to.plane(p.ToLayer+i, p.ToLevel)
		copyRegion(tp, to.size, p.ToOff, fp, from.size, p.FromOff, p.Size, n)
	}
}

func (c *CmdBuffer) CopyBufToImg(p *driver.BufImgCopy) {
	c.Log = append(c.Log, LogEntry{Op: "CopyBufToImg"})
	buf := p.Buf.(*Buffer)
	img := p.Img.(*Image)
	plane := img.plane(p.Layer, p.Level)
	n := img.pf.Size()
	rowLen := p.Stride[0]
	if rowLen == 0 {
		rowLen = int64(p.Size.Width)
	}
	for y := 0; y < p.Size.Height; y++ {
		srcOff := p.BufOff + int64(y)*rowLen*int64(n)
		dstY := p.ImgOff.Y + y
		dstOff := int64((dstY*img.size.Width+p.ImgOff.X)*n)
		rowBytes := int64(p.Size.Width * n)
		copy(plane[dstOff:dstOff+rowBytes], buf.data[srcOff:srcOff+rowBytes])
	}
}

func (c *CmdBuffer) CopyImgToBuf(p *driver.BufImgCopy) {
	c.Log = append(c.Log, LogEntry{Op: "CopyImgToBuf"})
	buf := p.Buf.(*Buffer)
	img := p.Img.(*Image)
	plane := img.plane(p.Layer, p.Level)
	n := img.pf.Size()
	rowLen := p.Stride[0]
	if rowLen == 0 {
		rowLen = int64(p.Size.Width)
	}
	for y := 0; y < p.Size.Height; y++ {
		dstOff := p.BufOff + int64(y)*rowLen*int64(n)
		srcY := p.ImgOff.Y + y
		srcOff := int64((srcY*img.size.Width+p.ImgOff.X)*n)
		rowBytes := int64(p.Size.Width * n)
		copy(buf.data[dstOff:dstOff+rowBytes], plane[srcOff:srcOff+rowBytes])
	}
}

func (c *CmdBuffer) Fill(buf driver.Buffer, off int64, value byte, size int64) {
	c.Log = append(c.Log, LogEntry{Op: "Fill"})
	b := buf.(*Buffer)
	for i := off; i < off+size; i++ {
		b.data[i] = value
	}
}

func (c *CmdBuffer) Barrier(b []driver.Barrier) {
	for i := range b {
		c.Log = append(c.Log, LogEntry{Op: "Barrier", Barrier: &b[i]})
	}
}

func (c *CmdBuffer) Transition(t []driver.Transition) {
	for i := range t {
		c.Log = append(c.Log, LogEntry{Op: "Transition", Trans: &t[i]})
	}
}

func (c *CmdBuffer) End() error {
	if c.state != stRecording {
		return fmt.Errorf("fake: End called on CmdBuffer not recording")
	}
	if c.inPass || c.inWork || c.inBlit {
		c.state = stNew
		return errors.New("fake: End called with an open Begin* block")
	}
	c.state = stEnded
	return nil
}

func (c *CmdBuffer) Reset() error {
	c.state = stNew
	c.inPass, c.inWork, c.inBlit = false, false, false
	c.Log = c.Log[:0]
	return nil
}

// retire is called once Commit decides that this buffer's work
// has completed; it simply makes the buffer available for
// recording again, mirroring what fence signaling does for a
// real command buffer.
func (c *CmdBuffer) retire() {
	c.state = stNew
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// copyRegion copies a rectangular region from src into dst,
// where both planes are tightly packed pf.Size()-byte pixels
// laid out row-major according to their respective image size.
func copyRegion(dst []byte, dstSize driver.Dim3D, dstOff driver.Off3D, src []byte, srcSize driver.Dim3D, srcOff driver.Off3D, region driver.Dim3D, px int) {
	for y := 0; y < region.Height; y++ {
		srcRow := ((srcOff.Y+y)*srcSize.Width + srcOff.X) * px
		dstRow := ((dstOff.Y+y)*dstSize.Width + dstOff.X) * px
		n := region.Width * px
		copy(dst[dstRow:dstRow+n], src[srcRow:srcRow+n])
	}
}
