// Copyright 2026 The RHI Authors. All rights reserved.

package resource_test

import (
	"testing"

	"github.com/karlsen-gfx/rhi/driver"
	_ "github.com/karlsen-gfx/rhi/driver/fake"
	"github.com/karlsen-gfx/rhi/handle"
	"github.com/karlsen-gfx/rhi/resource"
)

func openFakeGPU(t *testing.T) driver.GPU {
	t.Helper()
	var drv driver.Driver
	for _, d := range driver.Drivers() {
		if d.Name() == "fake" {
			drv = d
		}
	}
	if drv == nil {
		t.Fatal("fake driver not registered")
	}
	gpu, err := drv.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return gpu
}

func TestCreateImageReturnsDistinctHandles(t *testing.T) {
	m := resource.NewManager(openFakeGPU(t), 2)
	desc := resource.ImageDesc{
		PixelFmt: driver.RGBA8un,
		Size:     driver.Dim3D{Width: 4, Height: 4, Depth: 1},
		Layers:   1,
		Levels:   1,
		Samples:  1,
		Usage:    driver.UShaderSample,
	}
	h1, err := m.CreateImage(desc, "a")
	if err != nil {
		t.Fatalf("CreateImage: %v", err)
	}
	h2, err := m.CreateImage(desc, "b")
	if err != nil {
		t.Fatalf("CreateImage: %v", err)
	}
	if h1 == h2 {
		t.Error("identical image descriptors were interned; images must never alias")
	}
}

func TestCreateImageRejectsZeroSize(t *testing.T) {
	m := resource.NewManager(openFakeGPU(t), 2)
	_, err := m.CreateImage(resource.ImageDesc{Layers: 1, Levels: 1}, "bad")
	if err != resource.ErrValidationFailed {
		t.Fatalf("err = %v, want ErrValidationFailed", err)
	}
}

func TestSamplerInterning(t *testing.T) {
	m := resource.NewManager(openFakeGPU(t), 2)
	spln := driver.Sampling{Min: driver.FLinear, Mag: driver.FLinear, Mipmap: driver.FNoMipmap}

	h1, err := m.CreateSampler(spln, "s1")
	if err != nil {
		t.Fatalf("CreateSampler: %v", err)
	}
	h2, err := m.CreateSampler(spln, "s2")
	if err != nil {
		t.Fatalf("CreateSampler: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("equal sampler descriptors produced distinct handles: %v != %v", h1, h2)
	}

	// Releasing one reference must not retire the resource while
	// the second is still outstanding.
	if _, err := m.ReleaseResource(h1, 0); err != nil {
		t.Fatalf("ReleaseResource: %v", err)
	}
	if _, err := m.Native(h2); err != nil {
		t.Fatalf("Native(h2) after releasing h1's ref: %v", err)
	}

	distinct := driver.Sampling{Min: driver.FNearest, Mag: driver.FNearest}
	h3, err := m.CreateSampler(distinct, "s3")
	if err != nil {
		t.Fatalf("CreateSampler: %v", err)
	}
	if h3 == h2 {
		t.Error("distinct sampler descriptors were interned together")
	}
}

func TestFramebufferInterning(t *testing.T) {
	m := resource.NewManager(openFakeGPU(t), 2)
	pass, err := m.CreateRenderPass(resource.RenderPassDesc{
		Attachments: []driver.Attachment{{Format: driver.RGBA8un, Samples: 1}},
		Subpasses:   []driver.Subpass{{Color: []int{0}, DS: -1}},
	}, "pass")
	if err != nil {
		t.Fatalf("CreateRenderPass: %v", err)
	}
	img, err := m.CreateImage(resource.ImageDesc{
		PixelFmt: driver.RGBA8un,
		Size:     driver.Dim3D{Width: 8, Height: 8, Depth: 1},
		Layers:   1,
		Levels:   1,
		Samples:  1,
		Usage:    driver.UShaderSample,
	}, "color")
	if err != nil {
		t.Fatalf("CreateImage: %v", err)
	}
	view, err := m.DefaultView(img)
	if err != nil {
		t.Fatalf("DefaultView: %v", err)
	}
	views := []driver.ImageView{view}
	desc := resource.FramebufferDesc{Pass: pass, Views: views, Width: 4, Height: 4, Layers: 1}

	h1, err := m.CreateFramebuffer(desc, "fb1")
	if err != nil {
		t.Fatalf("CreateFramebuffer: %v", err)
	}
	h2, err := m.CreateFramebuffer(desc, "fb2")
	if err != nil {
		t.Fatalf("CreateFramebuffer: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("equal framebuffer descriptors produced distinct handles: %v != %v", h1, h2)
	}

	// Releasing one reference must not retire the resource while
	// the second is still outstanding.
	if _, err := m.ReleaseResource(h1, 0); err != nil {
		t.Fatalf("ReleaseResource: %v", err)
	}
	if _, err := m.Native(h2); err != nil {
		t.Fatalf("Native(h2) after releasing h1's ref: %v", err)
	}

	distinct := resource.FramebufferDesc{Pass: pass, Views: views, Width: 8, Height: 8, Layers: 1}
	h3, err := m.CreateFramebuffer(distinct, "fb3")
	if err != nil {
		t.Fatalf("CreateFramebuffer: %v", err)
	}
	if h3 == h2 {
		t.Error("distinct framebuffer descriptors were interned together")
	}
}

func TestReleaseResourceDefersDestructionToRetirementRing(t *testing.T) {
	m := resource.NewManager(openFakeGPU(t), 2)
	desc := resource.BufferDesc{Size: 256, Visible: true, Usage: driver.UGeneric}
	h, err := m.CreateBuffer(desc, "buf")
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if _, err := m.ReleaseResource(h, 0); err != nil {
		t.Fatalf("ReleaseResource: %v", err)
	}
	// The handle must still resolve: destruction is deferred
	// until the retirement ring drains this frame slot.
	if _, err := m.Native(h); err != nil {
		t.Fatalf("Native after deferred release: %v", err)
	}
	if m.Retire.Pending(0) != 1 {
		t.Fatalf("Pending(0) = %d, want 1", m.Retire.Pending(0))
	}

	m.Retire.Drain(0)
	if m.Retire.Pending(0) != 0 {
		t.Fatalf("Pending(0) after Drain = %d, want 0", m.Retire.Pending(0))
	}
	if _, err := m.Native(h); err != resource.ErrInvalidHandle {
		t.Fatalf("Native after drain err = %v, want ErrInvalidHandle", err)
	}
}

func TestStaleHandleRejectedByManager(t *testing.T) {
	m := resource.NewManager(openFakeGPU(t), 2)
	desc := resource.BufferDesc{Size: 64, Visible: true, Usage: driver.UGeneric}
	h, err := m.CreateBuffer(desc, "buf")
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	m.ReleaseResource(h, 0)
	m.Retire.Drain(0)

	if err := m.AcquireResource(h); err != resource.ErrInvalidHandle {
		t.Errorf("AcquireResource on retired handle = %v, want ErrInvalidHandle", err)
	}
	if _, err := m.Description(h); err != resource.ErrInvalidHandle {
		t.Errorf("Description on retired handle = %v, want ErrInvalidHandle", err)
	}
}

func TestWrongTypeRejected(t *testing.T) {
	m := resource.NewManager(openFakeGPU(t), 2)
	buf, err := m.CreateBuffer(resource.BufferDesc{Size: 64, Visible: true, Usage: driver.UGeneric}, "buf")
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	// Passing a Buffer handle where a RenderPass handle is
	// expected must fail, not be silently coerced.
	_, err = m.CreateFramebuffer(resource.FramebufferDesc{Pass: buf, Width: 4, Height: 4, Layers: 1}, "fb")
	if err != resource.ErrWrongType {
		t.Fatalf("CreateFramebuffer with wrong-typed Pass handle: err = %v, want ErrWrongType", err)
	}
}

func TestFabricatedHandleRejectedByManager(t *testing.T) {
	m := resource.NewManager(openFakeGPU(t), 2)
	fab := handle.Handle(0xdeadbeef)
	if err := m.AcquireResource(fab); err != resource.ErrInvalidHandle {
		t.Errorf("AcquireResource(fabricated) = %v, want ErrInvalidHandle", err)
	}
}
