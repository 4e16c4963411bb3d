// Copyright 2026 The RHI Authors. All rights reserved.

// Package fake implements the driver interfaces entirely in
// host memory. It performs no real GPU work, but it copies
// bytes faithfully between buffers and images and honors the
// CmdBuffer state machine, which makes it suitable for testing
// the frame graph scheduler without a real device.
//
// Unlike a hardware backend, Commit never fails for device
// reasons unless asked to via FailNextCommit (it does reject a
// foreign or unended CmdBuffer), and barriers/transitions are
// recorded rather than translated into real synchronization
// primitives; callers that want to assert on barrier placement
// can inspect the CmdBuffer.Log field.
package fake

import (
	"errors"
	"fmt"
	"sync"

	"github.com/karlsen-gfx/rhi/driver"
	"github.com/karlsen-gfx/rhi/surface"
)

func init() {
	driver.Register(&Driver{})
}

// Driver implements driver.Driver backed entirely by host memory.
type Driver struct {
	mu  sync.Mutex
	gpu *GPU
}

// Name implements driver.Driver.
func (d *Driver) Name() string { return "fake" }

// Open implements driver.Driver.
func (d *Driver) Open() (driver.GPU, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gpu == nil {
		d.gpu = &GPU{drv: d}
	}
	return d.gpu, nil
}

// Close implements driver.Driver.
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gpu = nil
}

// GPU implements driver.GPU.
type GPU struct {
	drv *Driver

	mu            sync.Mutex
	failNextN     int
	commitCount   int
	commitErr     error
	cmdBufferCnt  int
	worstCaseFail bool
}

// FailNextCommit makes the next n calls to Commit report err for
// every command buffer in the batch, instead of executing them.
// It is meant for exercising DeviceLost/Aborted handling.
func (g *GPU) FailNextCommit(n int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failNextN = n
	g.commitErr = err
}

// CommitCount returns the number of times Commit has been called.
func (g *GPU) CommitCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.commitCount
}

func (g *GPU) Driver() driver.Driver { return g.drv }

// Commit implements driver.GPU. Command buffers are executed
// synchronously (each CmdBuffer already recorded its effects
// eagerly at record time for the fake backend) and the result
// is delivered asynchronously on ch, mirroring a real driver's
// fence-signal delivery.
func (g *GPU) Commit(cb []driver.CmdBuffer, ch chan<- error) {
	g.mu.Lock()
	g.commitCount++
	var failErr error
	if g.failNextN > 0 {
		g.failNextN--
		failErr = g.commitErr
	}
	g.mu.Unlock()

	for _, c := range cb {
		fc, ok := c.(*CmdBuffer)
		if !ok {
			go func() { ch <- errors.New("fake: foreign CmdBuffer type") }()
			return
		}
		if fc.state != stEnded {
			go func() { ch <- errors.New("fake: Commit called with unended CmdBuffer") }()
			return
		}
	}
	go func() {
		if failErr != nil {
			for _, c := range cb {
				c.(*CmdBuffer).state = stRecording
			}
			ch <- failErr
			return
		}
		for _, c := range cb {
			fc := c.(*CmdBuffer)
			fc.retire()
		}
		ch <- nil
	}()
}

func (g *GPU) NewCmdBuffer() (driver.CmdBuffer, error) {
	g.mu.Lock()
	g.cmdBufferCnt++
	g.mu.Unlock()
	return &CmdBuffer{gpu: g}, nil
}

func (g *GPU) NewRenderPass(att []driver.Attachment, sub []driver.Subpass) (driver.RenderPass, error) {
	attCopy := append([]driver.Attachment(nil), att...)
	subCopy := append([]driver.Subpass(nil), sub...)
	return &RenderPass{att: attCopy, sub: subCopy}, nil
}

func (g *GPU) NewShaderCode(data []byte) (driver.ShaderCode, error) {
	return &ShaderCode{data: append([]byte(nil), data...)}, nil
}

func (g *GPU) NewDescHeap(ds []driver.Descriptor) (driver.DescHeap, error) {
	return &DescHeap{descs: append([]driver.Descriptor(nil), ds...)}, nil
}

func (g *GPU) NewDescTable(dh []driver.DescHeap) (driver.DescTable, error) {
	return &DescTable{heaps: append([]driver.DescHeap(nil), dh...)}, nil
}

func (g *GPU) NewPipeline(state any) (driver.Pipeline, error) {
	switch s := state.(type) {
	case *driver.GraphState:
		cp := *s
		return &Pipeline{graph: &cp}, nil
	case *driver.CompState:
		cp := *s
		return &Pipeline{comp: &cp}, nil
	default:
		return nil, fmt.Errorf("fake: NewPipeline: unexpected state type %T", state)
	}
}

func (g *GPU) NewBuffer(size int64, visible bool, usg driver.Usage) (driver.Buffer, error) {
	if size <= 0 {
		return nil, errors.New("fake: NewBuffer: size <= 0")
	}
	return &Buffer{data: make([]byte, size), visible: visible, usage: usg}, nil
}

func (g *GPU) NewImage(pf driver.PixelFmt, size driver.Dim3D, layers, levels, samples int, usg driver.Usage) (driver.Image, error) {
	if layers < 1 {
		layers = 1
	}
	if levels < 1 {
		levels = 1
	}
	img := &Image{
		pf:      pf,
		size:    size,
		layers:  layers,
		levels:  levels,
		samples: samples,
		usage:   usg,
		planes:  make([][]byte, layers*levels),
	}
	n := pf.Size() * size.Width * size.Height * max(size.Depth, 1)
	for i := range img.planes {
		img.planes[i] = make([]byte, n)
	}
	return img, nil
}

func (g *GPU) NewSampler(spln *driver.Sampling) (driver.Sampler, error) {
	cp := *spln
	return &Sampler{param: cp}, nil
}

func (g *GPU) Limits() driver.Limits {
	return driver.Limits{
		MaxImage1D:        16384,
		MaxImage2D:        16384,
		MaxImageCube:      16384,
		MaxImage3D:        2048,
		MaxLayers:         2048,
		MaxDescHeaps:      4,
		MaxDBuffer:        4,
		MaxDImage:         4,
		MaxDConstant:      12,
		MaxDTexture:       16,
		MaxDSampler:       16,
		MaxDBufferRange:   1 << 28,
		MaxDConstantRange: 1 << 14,
		MaxColorTargets:   8,
		MaxFBSize:         [2]int{16384, 16384},
		MaxFBLayers:       2048,
		MaxPointSize:      256,
		MaxViewports:      16,
		MaxVertexIn:       32,
		MaxFragmentIn:     32,
		MaxDispatch:       [3]int{65535, 65535, 65535},
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

var _ surface.Window = (*Window)(nil)

// Window is a trivial surface.Window for tests that need a
// Presenter/Swapchain without a real platform window.
type Window struct {
	W, H int
	T    string
}

func (w *Window) Width() int     { return w.W }
func (w *Window) Height() int    { return w.H }
func (w *Window) Title() string { return w.T }
