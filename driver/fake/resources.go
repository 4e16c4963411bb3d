// Copyright 2026 The RHI Authors. All rights reserved.

package fake

import (
	"errors"

	"github.com/karlsen-gfx/rhi/driver"
)

// RenderPass implements driver.RenderPass.
type RenderPass struct {
	att []driver.Attachment
	sub []driver.Subpass
}

func (*RenderPass) Destroy() {}

func (p *RenderPass) NewFB(iv []driver.ImageView, width, height, layers int) (driver.Framebuf, error) {
	if len(iv) != len(p.att) {
		return nil, errors.New("fake: NewFB: view count does not match attachment count")
	}
	return &Framebuf{iv: append([]driver.ImageView(nil), iv...), w: width, h: height, layers: layers}, nil
}

// Framebuf implements driver.Framebuf.
type Framebuf struct {
	iv           []driver.ImageView
	w, h, layers int
}

func (*Framebuf) Destroy() {}

// ShaderCode implements driver.ShaderCode.
type ShaderCode struct{ data []byte }

func (*ShaderCode) Destroy() {}

// DescHeap implements driver.DescHeap.
type DescHeap struct {
	descs   []driver.Descriptor
	count   int
	buffers map[int][]Binding
	images  map[int][]Binding
	samplrs map[int][]Binding
}

// Binding records a single descriptor write, for tests that
// want to assert on what the resource manager wired up.
type Binding struct {
	Cpy, Nr, Start int
	Buf            []driver.Buffer
	Off, Size      []int64
	Views          []driver.ImageView
	Samplers       []driver.Sampler
}

func (*DescHeap) Destroy() {}

func (h *DescHeap) New(n int) error {
	if n == h.count {
		return nil
	}
	h.count = n
	h.buffers = make(map[int][]Binding)
	h.images = make(map[int][]Binding)
	h.samplrs = make(map[int][]Binding)
	return nil
}

func (h *DescHeap) SetBuffer(cpy, nr, start int, buf []driver.Buffer, off, size []int64) {
	h.buffers[cpy] = append(h.buffers[cpy], Binding{Cpy: cpy, Nr: nr, Start: start, Buf: buf, Off: off, Size: size})
}

func (h *DescHeap) SetImage(cpy, nr, start int, iv []driver.ImageView) {
	h.images[cpy] = append(h.images[cpy], Binding{Cpy: cpy, Nr: nr, Start: start, Views: iv})
}

func (h *DescHeap) SetSampler(cpy, nr, start int, splr []driver.Sampler) {
	h.samplrs[cpy] = append(h.samplrs[cpy], Binding{Cpy: cpy, Nr: nr, Start: start, Samplers: splr})
}

func (h *DescHeap) Count() int { return h.count }

// DescTable implements driver.DescTable.
type DescTable struct{ heaps []driver.DescHeap }

func (*DescTable) Destroy() {}

// Pipeline implements driver.Pipeline.
type Pipeline struct {
	graph *driver.GraphState
	comp  *driver.CompState
}

func (*Pipeline) Destroy() {}

// Buffer implements driver.Buffer.
type Buffer struct {
	data    []byte
	visible bool
	usage   driver.Usage
}

func (*Buffer) Destroy()          {}
func (b *Buffer) Visible() bool   { return b.visible }
func (b *Buffer) Cap() int64      { return int64(len(b.data)) }
func (b *Buffer) Bytes() []byte {
	if !b.visible {
		return nil
	}
	return b.data
}

// Image implements driver.Image.
type Image struct {
	pf      driver.PixelFmt
	size    driver.Dim3D
	layers  int
	levels  int
	samples int
	usage   driver.Usage
	planes  [][]byte
}

func (*Image) Destroy() {}

func (img *Image) plane(layer, level int) []byte {
	return img.planes[layer*img.levels+level]
}

func (img *Image) NewView(typ driver.ViewType, layer, layers, level, levels int) (view driver.ImageView, err error) {
	if layer < 0 || layer+layers > img.layers || level < 0 || level+levels > img.levels {
		return nil, errors.New("fake: NewView: subresource range out of bounds")
	}
	return &ImageView{img: img, typ: typ, layer: layer, layers: layers, level: level, levels: levels}, nil
}

// ImageView implements driver.ImageView.
type ImageView struct {
	img                  *Image
	typ                  driver.ViewType
	layer, layers        int
	level, levels        int
}

func (*ImageView) Destroy() {}

// Image returns the underlying *Image, analogous to the
// accessor the teacher's own texture package relies on.
func (v *ImageView) Image() *Image { return v.img }

// Sampler implements driver.Sampler.
type Sampler struct{ param driver.Sampling }

func (*Sampler) Destroy() {}
