// Copyright 2026 The RHI Authors. All rights reserved.

package vk

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/karlsen-gfx/rhi/driver"
	"github.com/karlsen-gfx/rhi/surface"
)

var _ driver.Presenter = (*GPU)(nil)

// SurfaceProvider is implemented by a surface.Window that can also
// produce a raw VkSurfaceKHR handle, e.g. one backed by GLFW's
// glfwCreateWindowSurface. surface.Window stays driver-agnostic
// (§6 of this module's design); NewSwapchain type-asserts for this
// extra capability the same way driver.MeshCapable and
// driver.RayTracer are detected on a GPU.
type SurfaceProvider interface {
	VkSurface(instance vk.Instance) (vk.Surface, error)
}

// NewSwapchain implements driver.Presenter.
func (g *GPU) NewSwapchain(win surface.Window, imageCount int) (driver.Swapchain, error) {
	sp, ok := win.(SurfaceProvider)
	if !ok {
		return nil, fmt.Errorf("vk: NewSwapchain: %T does not implement vk.SurfaceProvider", win)
	}
	surf, err := sp.VkSurface(g.instance)
	if err != nil {
		return nil, err
	}

	var supported vk.Bool32
	vk.GetPhysicalDeviceSurfaceSupport(g.physDev, g.queueFamily, surf, &supported)
	if supported == vk.False {
		return nil, driver.ErrCannotPresent
	}

	if imageCount < 2 {
		imageCount = 2
	}
	pf := driver.BGRA8sRGB
	sc := &Swapchain{gpu: g, win: win, surf: surf, pf: pf}
	if err := sc.create(imageCount); err != nil {
		return nil, err
	}
	return sc, nil
}

// Swapchain implements driver.Swapchain over a VkSwapchainKHR.
type Swapchain struct {
	gpu  *GPU
	win  surface.Window
	surf vk.Surface
	pf   driver.PixelFmt

	sc     vk.Swapchain
	images []vk.Image
	views  []driver.ImageView

	acquireSem vk.Semaphore
	presentSem vk.Semaphore
}

func (sc *Swapchain) create(imageCount int) error {
	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          sc.surf,
		MinImageCount:    uint32(imageCount),
		ImageFormat:      pixelFmt(sc.pf),
		ImageColorSpace:  vk.ColorSpaceSrgbNonlinear,
		ImageExtent:      vk.Extent2D{Width: uint32(sc.win.Width()), Height: uint32(sc.win.Height())},
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     vk.SurfaceTransformIdentityBit,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
	}
	var handle vk.Swapchain
	if res := vk.CreateSwapchain(sc.gpu.dev, &info, nil, &handle); res != vk.Success {
		return resultErr("CreateSwapchain", res)
	}
	sc.sc = handle

	var n uint32
	vk.GetSwapchainImages(sc.gpu.dev, handle, &n, nil)
	images := make([]vk.Image, n)
	vk.GetSwapchainImages(sc.gpu.dev, handle, &n, images)
	sc.images = images

	views := make([]driver.ImageView, n)
	for i, img := range images {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    img,
			ViewType: vk.ImageViewType2d,
			Format:   pixelFmt(sc.pf),
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		var v vk.ImageView
		if res := vk.CreateImageView(sc.gpu.dev, &viewInfo, nil, &v); res != vk.Success {
			return resultErr("CreateImageView", res)
		}
		views[i] = &ImageView{gpu: sc.gpu, img: &Image{gpu: sc.gpu, img: img, pf: sc.pf, layers: 1, levels: 1}, view: v, layers: 1, levels: 1}
	}
	sc.views = views

	semInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	if res := vk.CreateSemaphore(sc.gpu.dev, &semInfo, nil, &sc.acquireSem); res != vk.Success {
		return resultErr("CreateSemaphore", res)
	}
	if res := vk.CreateSemaphore(sc.gpu.dev, &semInfo, nil, &sc.presentSem); res != vk.Success {
		return resultErr("CreateSemaphore", res)
	}
	return nil
}

func (sc *Swapchain) Destroy() {
	for _, v := range sc.views {
		v.Destroy()
	}
	vk.DestroySemaphore(sc.gpu.dev, sc.acquireSem, nil)
	vk.DestroySemaphore(sc.gpu.dev, sc.presentSem, nil)
	vk.DestroySwapchain(sc.gpu.dev, sc.sc, nil)
	*sc = Swapchain{}
}

func (sc *Swapchain) Views() []driver.ImageView { return sc.views }

// Next implements driver.Swapchain. cb is unused by this backend:
// presentation-order dependencies are expressed through the image
// acquire/present semaphores rather than through command-buffer
// identity, unlike the fake backend which has no semaphores to
// give the parameter meaning.
func (sc *Swapchain) Next(cb driver.CmdBuffer) (int, error) {
	var idx uint32
	res := vk.AcquireNextImage(sc.gpu.dev, sc.sc, ^uint64(0), sc.acquireSem, nil, &idx)
	switch res {
	case vk.Success, vk.Suboptimal:
		return int(idx), nil
	case vk.ErrorOutOfDate:
		return 0, driver.ErrSwapchain
	default:
		return 0, resultErr("AcquireNextImage", res)
	}
}

// Present implements driver.Swapchain.
func (sc *Swapchain) Present(index int, cb driver.CmdBuffer) error {
	if index < 0 || index >= len(sc.images) {
		return errors.New("vk: Present: index out of range")
	}
	idx := uint32(index)
	info := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{sc.sc},
		PImageIndices:  []uint32{idx},
	}
	res := vk.QueuePresent(sc.gpu.queue, &info)
	switch res {
	case vk.Success, vk.Suboptimal:
		return nil
	case vk.ErrorOutOfDate:
		return driver.ErrSwapchain
	default:
		return resultErr("QueuePresent", res)
	}
}

// Recreate implements driver.Swapchain.
func (sc *Swapchain) Recreate() error {
	n := len(sc.images)
	for _, v := range sc.views {
		v.Destroy()
	}
	vk.DestroySwapchain(sc.gpu.dev, sc.sc, nil)
	return sc.create(n)
}

func (sc *Swapchain) Format() driver.PixelFmt { return sc.pf }
