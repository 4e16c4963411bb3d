// Copyright 2026 The RHI Authors. All rights reserved.

package fake

import (
	"errors"

	"github.com/karlsen-gfx/rhi/driver"
	"github.com/karlsen-gfx/rhi/surface"
)

var _ driver.Presenter = (*GPU)(nil)

// NewSwapchain implements driver.Presenter.
func (g *GPU) NewSwapchain(win surface.Window, imageCount int) (driver.Swapchain, error) {
	if imageCount < 2 {
		imageCount = 2
	}
	sc := &Swapchain{gpu: g, win: win, pf: driver.RGBA8sRGB}
	if err := sc.alloc(imageCount); err != nil {
		return nil, err
	}
	return sc, nil
}

// Swapchain implements driver.Swapchain.
type Swapchain struct {
	gpu    *GPU
	win    surface.Window
	pf     driver.PixelFmt
	images []*Image
	views  []driver.ImageView
	free   []bool
}

func (sc *Swapchain) Destroy() {}

func (sc *Swapchain) alloc(n int) error {
	sc.images = make([]*Image, n)
	sc.views = make([]driver.ImageView, n)
	sc.free = make([]bool, n)
	for i := range sc.images {
		img, err := sc.gpu.NewImage(sc.pf, driver.Dim3D{Width: sc.win.Width(), Height: sc.win.Height(), Depth: 1}, 1, 1, 1, driver.URenderTarget)
		if err != nil {
			return err
		}
		sc.images[i] = img.(*Image)
		v, err := img.NewView(driver.IView2D, 0, 1, 0, 1)
		if err != nil {
			return err
		}
		sc.views[i] = v
		sc.free[i] = true
	}
	return nil
}

func (sc *Swapchain) Views() []driver.ImageView { return sc.views }

func (sc *Swapchain) Next(cb driver.CmdBuffer) (int, error) {
	for i, f := range sc.free {
		if f {
			sc.free[i] = false
			return i, nil
		}
	}
	return 0, driver.ErrNoBackbuffer
}

func (sc *Swapchain) Present(index int, cb driver.CmdBuffer) error {
	if index < 0 || index >= len(sc.free) {
		return errors.New("fake: Present: index out of range")
	}
	sc.free[index] = true
	return nil
}

func (sc *Swapchain) Recreate() error {
	return sc.alloc(len(sc.images))
}

func (sc *Swapchain) Format() driver.PixelFmt { return sc.pf }
