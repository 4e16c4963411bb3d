// Copyright 2026 The RHI Authors. All rights reserved.

package vk

import (
	"errors"
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/karlsen-gfx/rhi/driver"
)

// NewBuffer implements driver.GPU.
func (g *GPU) NewBuffer(size int64, visible bool, usg driver.Usage) (driver.Buffer, error) {
	if size <= 0 {
		return nil, errors.New("vk: NewBuffer: size <= 0")
	}
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       bufferUsage(usg),
		SharingMode: vk.SharingModeExclusive,
	}
	var buf vk.Buffer
	if res := vk.CreateBuffer(g.dev, &info, nil, &buf); res != vk.Success {
		return nil, resultErr("CreateBuffer", res)
	}
	mem, bytes, err := g.allocForBuffer(buf, visible)
	if err != nil {
		vk.DestroyBuffer(g.dev, buf, nil)
		return nil, err
	}
	return &Buffer{gpu: g, buf: buf, mem: mem, size: size, visible: visible, bytes: bytes}, nil
}

// Buffer implements driver.Buffer over a VkBuffer and its bound
// VkDeviceMemory.
type Buffer struct {
	gpu     *GPU
	buf     vk.Buffer
	mem     vk.DeviceMemory
	size    int64
	visible bool
	bytes   []byte
}

func (b *Buffer) Destroy() {
	if b.bytes != nil {
		vk.UnmapMemory(b.gpu.dev, b.mem)
	}
	vk.DestroyBuffer(b.gpu.dev, b.buf, nil)
	vk.FreeMemory(b.gpu.dev, b.mem, nil)
	*b = Buffer{}
}

func (b *Buffer) Visible() bool { return b.visible }
func (b *Buffer) Bytes() []byte { return b.bytes }
func (b *Buffer) Cap() int64    { return b.size }

// NewImage implements driver.GPU.
func (g *GPU) NewImage(pf driver.PixelFmt, size driver.Dim3D, layers, levels, samples int, usg driver.Usage) (driver.Image, error) {
	if layers < 1 {
		layers = 1
	}
	if levels < 1 {
		levels = 1
	}
	if samples < 1 {
		samples = 1
	}
	imgType := vk.ImageType2d
	if size.Depth > 1 {
		imgType = vk.ImageType3d
	}
	info := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: imgType,
		Format:    pixelFmt(pf),
		Extent: vk.Extent3D{
			Width:  uint32(size.Width),
			Height: uint32(size.Height),
			Depth:  uint32(max(size.Depth, 1)),
		},
		MipLevels:     uint32(levels),
		ArrayLayers:   uint32(layers),
		Samples:       sampleCount(samples),
		Tiling:        vk.ImageTilingOptimal,
		Usage:         imageUsage(usg),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var img vk.Image
	if res := vk.CreateImage(g.dev, &info, nil, &img); res != vk.Success {
		return nil, resultErr("CreateImage", res)
	}
	mem, err := g.allocForImage(img)
	if err != nil {
		vk.DestroyImage(g.dev, img, nil)
		return nil, err
	}
	return &Image{
		gpu: g, img: img, mem: mem,
		pf: pf, size: size, layers: layers, levels: levels, samples: samples, usage: usg,
	}, nil
}

func sampleCount(n int) vk.SampleCountFlagBits {
	switch n {
	case 2:
		return vk.SampleCount2Bit
	case 4:
		return vk.SampleCount4Bit
	case 8:
		return vk.SampleCount8Bit
	case 16:
		return vk.SampleCount16Bit
	default:
		return vk.SampleCount1Bit
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Image implements driver.Image over a VkImage.
type Image struct {
	gpu     *GPU
	img     vk.Image
	mem     vk.DeviceMemory
	pf      driver.PixelFmt
	size    driver.Dim3D
	layers  int
	levels  int
	samples int
	usage   driver.Usage
}

func (img *Image) Destroy() {
	vk.DestroyImage(img.gpu.dev, img.img, nil)
	vk.FreeMemory(img.gpu.dev, img.mem, nil)
	*img = Image{}
}

func (img *Image) NewView(typ driver.ViewType, layer, layers, level, levels int) (driver.ImageView, error) {
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.img,
		ViewType: viewType(typ),
		Format:   pixelFmt(img.pf),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspectMask(img.pf),
			BaseMipLevel:   uint32(level),
			LevelCount:     uint32(levels),
			BaseArrayLayer: uint32(layer),
			LayerCount:     uint32(layers),
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(img.gpu.dev, &info, nil, &view); res != vk.Success {
		return nil, resultErr("CreateImageView", res)
	}
	return &ImageView{gpu: img.gpu, img: img, view: view, layer: layer, layers: layers, level: level, levels: levels}, nil
}

func viewType(t driver.ViewType) vk.ImageViewType {
	switch t {
	case driver.IView1D:
		return vk.ImageViewType1d
	case driver.IView3D:
		return vk.ImageViewType3d
	case driver.IViewCube:
		return vk.ImageViewTypeCube
	case driver.IView1DArray:
		return vk.ImageViewType1dArray
	case driver.IView2DArray, driver.IView2DMSArray:
		return vk.ImageViewType2dArray
	case driver.IViewCubeArray:
		return vk.ImageViewTypeCubeArray
	default:
		return vk.ImageViewType2d
	}
}

func aspectMask(pf driver.PixelFmt) vk.ImageAspectFlags {
	switch pf {
	case driver.D16un, driver.D32f:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	case driver.S8ui:
		return vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	case driver.D24unS8ui, driver.D32fS8ui:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	default:
		return vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
}

// ImageView implements driver.ImageView.
type ImageView struct {
	gpu           *GPU
	img           *Image
	view          vk.ImageView
	layer, layers int
	level, levels int
}

func (v *ImageView) Destroy() {
	vk.DestroyImageView(v.gpu.dev, v.view, nil)
	*v = ImageView{}
}

// NewSampler implements driver.GPU.
func (g *GPU) NewSampler(spln *driver.Sampling) (driver.Sampler, error) {
	info := vk.SamplerCreateInfo{
		SType:            vk.StructureTypeSamplerCreateInfo,
		MagFilter:        filter(spln.Mag),
		MinFilter:        filter(spln.Min),
		MipmapMode:       mipmapMode(spln.Mipmap),
		AddressModeU:     addrMode(spln.AddrU),
		AddressModeV:     addrMode(spln.AddrV),
		AddressModeW:     addrMode(spln.AddrW),
		AnisotropyEnable: vk.Bool32(boolToInt(spln.MaxAniso > 1)),
		MaxAnisotropy:    float32(spln.MaxAniso),
		CompareEnable:    vk.Bool32(boolToInt(spln.Cmp != driver.CNever)),
		CompareOp:        cmpFunc(spln.Cmp),
		MinLod:           spln.MinLOD,
		MaxLod:           spln.MaxLOD,
	}
	var s vk.Sampler
	if res := vk.CreateSampler(g.dev, &info, nil, &s); res != vk.Success {
		return nil, resultErr("CreateSampler", res)
	}
	return &Sampler{gpu: g, splr: s}, nil
}

func boolToInt(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// Sampler implements driver.Sampler.
type Sampler struct {
	gpu  *GPU
	splr vk.Sampler
}

func (s *Sampler) Destroy() {
	vk.DestroySampler(s.gpu.dev, s.splr, nil)
	*s = Sampler{}
}

// NewShaderCode implements driver.GPU. data must be SPIR-V bytecode.
func (g *GPU) NewShaderCode(data []byte) (driver.ShaderCode, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("vk: NewShaderCode: length %d not a multiple of 4", len(data))
	}
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(data)),
		PCode:    sliceUint32(data),
	}
	var mod vk.ShaderModule
	if res := vk.CreateShaderModule(g.dev, &info, nil, &mod); res != vk.Success {
		return nil, resultErr("CreateShaderModule", res)
	}
	return &ShaderCode{gpu: g, mod: mod}, nil
}

// ShaderCode implements driver.ShaderCode.
type ShaderCode struct {
	gpu *GPU
	mod vk.ShaderModule
}

func (s *ShaderCode) Destroy() {
	vk.DestroyShaderModule(s.gpu.dev, s.mod, nil)
	*s = ShaderCode{}
}

// sliceUint32 reinterprets a SPIR-V byte slice (already validated
// to be a multiple of 4 bytes long) as its little-endian uint32
// words, matching what vk.ShaderModuleCreateInfo.PCode expects.
func sliceUint32(data []byte) []uint32 {
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}
