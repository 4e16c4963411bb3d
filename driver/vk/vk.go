// Copyright 2026 The RHI Authors. All rights reserved.

// Package vk implements the driver interfaces over a real GPU
// using github.com/goki/vulkan's raw Vulkan bindings.
//
// Unlike the fake backend, every call in this package can fail for
// reasons outside the program's control (missing extensions, device
// loss, out-of-memory). driver.GPU.Commit's completion channel is
// signaled by a goroutine that blocks on the batch's fence, so the
// result arrives only once the GPU has finished the work. Resource
// lifetime follows the same Destroy contract
// documented in the driver package: nothing here is collected by
// the Go garbage collector, so callers must call Destroy explicitly.
package vk

import (
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/karlsen-gfx/rhi/driver"
)

func init() {
	driver.Register(&Driver{})
}

// Driver implements driver.Driver over the Vulkan loader.
type Driver struct {
	mu  sync.Mutex
	gpu *GPU
}

// Name implements driver.Driver.
func (d *Driver) Name() string { return "vulkan" }

// Open implements driver.Driver. It initializes the Vulkan loader,
// creates an instance, selects the first physical device exposing a
// graphics-capable queue family, and creates a logical device with
// that single queue.
func (d *Driver) Open() (driver.GPU, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gpu != nil {
		return d.gpu, nil
	}
	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		return nil, fmt.Errorf("%w: %v", driver.ErrNotInstalled, err)
	}
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("%w: %v", driver.ErrNotInstalled, err)
	}

	g := &GPU{drv: d}
	if err := g.createInstance(); err != nil {
		return nil, err
	}
	if err := g.pickPhysicalDevice(); err != nil {
		g.destroyInstance()
		return nil, err
	}
	if err := g.createDevice(); err != nil {
		g.destroyInstance()
		return nil, err
	}
	vk.GetPhysicalDeviceMemoryProperties(g.physDev, &g.memProps)
	vk.GetPhysicalDeviceProperties(g.physDev, &g.physProps)
	g.physProps.Deref()
	g.memProps.Deref()

	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: g.queueFamily,
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(g.dev, &poolInfo, nil, &pool); res != vk.Success {
		g.destroyDevice()
		g.destroyInstance()
		return nil, resultErr("CreateCommandPool", res)
	}
	g.pool = pool

	d.gpu = g
	return g, nil
}

// Close implements driver.Driver.
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gpu == nil {
		return
	}
	vk.DeviceWaitIdle(d.gpu.dev)
	vk.DestroyCommandPool(d.gpu.dev, d.gpu.pool, nil)
	d.gpu.destroyDevice()
	d.gpu.destroyInstance()
	d.gpu = nil
}

// GPU implements driver.GPU over a single Vulkan instance, physical
// device and logical device with one graphics/compute/transfer
// queue. The frame graph's own scheduling (barrier, submit) assumes
// exactly this shape: a single implicit queue, command order as the
// only wait semantics (see submit.Batcher's doc comment).
type GPU struct {
	drv *Driver

	instance vk.Instance
	physDev  vk.PhysicalDevice
	dev      vk.Device

	queue       vk.Queue
	queueFamily uint32

	memProps  vk.PhysicalDeviceMemoryProperties
	physProps vk.PhysicalDeviceProperties

	pool vk.CommandPool

	mu          sync.Mutex
	cmdBufCount int
}

func (g *GPU) Driver() driver.Driver { return g.drv }

func (g *GPU) createInstance() error {
	appInfo := vk.ApplicationInfo{
		SType:      vk.StructureTypeApplicationInfo,
		ApiVersion: vk.MakeVersion(1, 1, 0),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &appInfo,
	}
	var inst vk.Instance
	if res := vk.CreateInstance(&createInfo, nil, &inst); res != vk.Success {
		return resultErr("CreateInstance", res)
	}
	g.instance = inst
	vk.InitInstance(inst)
	return nil
}

func (g *GPU) destroyInstance() {
	if g.instance != nil {
		vk.DestroyInstance(g.instance, nil)
	}
}

func (g *GPU) pickPhysicalDevice() error {
	var n uint32
	if res := vk.EnumeratePhysicalDevices(g.instance, &n, nil); res != vk.Success || n == 0 {
		return driver.ErrNoDevice
	}
	devs := make([]vk.PhysicalDevice, n)
	if res := vk.EnumeratePhysicalDevices(g.instance, &n, devs); res != vk.Success {
		return resultErr("EnumeratePhysicalDevices", res)
	}

	for _, pd := range devs {
		var qn uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(pd, &qn, nil)
		qfs := make([]vk.QueueFamilyProperties, qn)
		vk.GetPhysicalDeviceQueueFamilyProperties(pd, &qn, qfs)
		for i, qf := range qfs {
			qf.Deref()
			if qf.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
				g.physDev = pd
				g.queueFamily = uint32(i)
				return nil
			}
		}
	}
	return driver.ErrNoDevice
}

func (g *GPU) createDevice() error {
	priority := float32(1)
	queueInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: g.queueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{priority},
	}
	features := vk.PhysicalDeviceFeatures{}
	createInfo := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos:    []vk.DeviceQueueCreateInfo{queueInfo},
		PEnabledFeatures:     []vk.PhysicalDeviceFeatures{features},
	}
	var dev vk.Device
	if res := vk.CreateDevice(g.physDev, &createInfo, nil, &dev); res != vk.Success {
		return resultErr("CreateDevice", res)
	}
	g.dev = dev

	var q vk.Queue
	vk.GetDeviceQueue(dev, g.queueFamily, 0, &q)
	g.queue = q
	return nil
}

func (g *GPU) destroyDevice() {
	if g.dev != nil {
		vk.DestroyDevice(g.dev, nil)
	}
}

// Limits implements driver.GPU, translating the physical device's
// reported limits into the driver-neutral shape the frame graph
// queries at startup.
func (g *GPU) Limits() driver.Limits {
	l := g.physProps.Limits
	l.Deref()
	return driver.Limits{
		MaxImage1D:        int(l.MaxImageDimension1D),
		MaxImage2D:        int(l.MaxImageDimension2D),
		MaxImageCube:      int(l.MaxImageDimensionCube),
		MaxImage3D:        int(l.MaxImageDimension3D),
		MaxLayers:         int(l.MaxImageArrayLayers),
		MaxDescHeaps:      int(l.MaxBoundDescriptorSets),
		MaxDBuffer:        int(l.MaxDescriptorSetStorageBuffers),
		MaxDImage:         int(l.MaxDescriptorSetStorageImages),
		MaxDConstant:      int(l.MaxDescriptorSetUniformBuffers),
		MaxDTexture:       int(l.MaxDescriptorSetSampledImages),
		MaxDSampler:       int(l.MaxDescriptorSetSamplers),
		MaxDBufferRange:   int64(l.MaxStorageBufferRange),
		MaxDConstantRange: int64(l.MaxUniformBufferRange),
		MaxColorTargets:   int(l.MaxColorAttachments),
		MaxFBSize:         [2]int{int(l.MaxFramebufferWidth), int(l.MaxFramebufferHeight)},
		MaxFBLayers:       int(l.MaxFramebufferLayers),
		MaxPointSize:      l.PointSizeRange[1],
		MaxViewports:      int(l.MaxViewports),
		MaxVertexIn:       int(l.MaxVertexInputAttributes),
		MaxFragmentIn:      int(l.MaxFragmentInputComponents),
		MaxDispatch:       [3]int{int(l.MaxComputeWorkGroupCount[0]), int(l.MaxComputeWorkGroupCount[1]), int(l.MaxComputeWorkGroupCount[2])},
	}
}

// Commit implements driver.GPU. Every driver.CmdBuffer in cb must
// be a *CmdBuffer already ended. Submission preserves cb's order: a
// single VkSubmitInfo carries the whole batch, and Vulkan guarantees
// that command buffers within one submission execute in the order
// they are listed relative to one another only to the extent their
// own recorded barriers demand it -- which is exactly why the
// frame graph's own barrier solver (see the barrier package) always
// runs before Commit is ever called, rather than relying on
// submission order for correctness on this backend. ch receives the
// result once the batch's fence signals.
func (g *GPU) Commit(cb []driver.CmdBuffer, ch chan<- error) {
	bufs := make([]vk.CommandBuffer, len(cb))
	for i, c := range cb {
		vc, ok := c.(*CmdBuffer)
		if !ok {
			go func() { ch <- fmt.Errorf("vk: foreign CmdBuffer type %T", c) }()
			return
		}
		bufs[i] = vc.buf
	}

	var fence vk.Fence
	fenceInfo := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if res := vk.CreateFence(g.dev, &fenceInfo, nil, &fence); res != vk.Success {
		go func() { ch <- resultErr("CreateFence", res) }()
		return
	}

	submit := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: uint32(len(bufs)),
		PCommandBuffers:    bufs,
	}
	if res := vk.QueueSubmit(g.queue, 1, []vk.SubmitInfo{submit}, fence); res != vk.Success {
		vk.DestroyFence(g.dev, fence, nil)
		go func() { ch <- resultErr("QueueSubmit", res) }()
		return
	}

	go func() {
		res := vk.WaitForFences(g.dev, 1, []vk.Fence{fence}, vk.True, ^uint64(0))
		vk.DestroyFence(g.dev, fence, nil)
		if res != vk.Success {
			ch <- resultErr("WaitForFences", res)
			return
		}
		ch <- nil
	}()
}

// NewCmdBuffer implements driver.GPU.
func (g *GPU) NewCmdBuffer() (driver.CmdBuffer, error) {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        g.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	bufs := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(g.dev, &allocInfo, bufs); res != vk.Success {
		return nil, resultErr("AllocateCommandBuffers", res)
	}
	g.mu.Lock()
	g.cmdBufCount++
	g.mu.Unlock()
	return &CmdBuffer{gpu: g, buf: bufs[0]}, nil
}
