// Copyright 2026 The RHI Authors. All rights reserved.

package vk

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/karlsen-gfx/rhi/driver"
)

// resultErr wraps a failing VkResult in one of the driver package's
// sentinel errors where a clear mapping exists, falling back to a
// plain formatted error otherwise. call names the Vulkan function
// that failed, for diagnostics.
func resultErr(call string, res vk.Result) error {
	switch res {
	case vk.ErrorOutOfHostMemory:
		return fmt.Errorf("vk: %s: %w", call, driver.ErrNoHostMemory)
	case vk.ErrorOutOfDeviceMemory:
		return fmt.Errorf("vk: %s: %w", call, driver.ErrNoDeviceMemory)
	case vk.ErrorDeviceLost:
		return fmt.Errorf("vk: %s: %w", call, driver.ErrFatal)
	case vk.ErrorSurfaceLost, vk.ErrorOutOfDate:
		return fmt.Errorf("vk: %s: %w", call, driver.ErrSwapchain)
	default:
		return fmt.Errorf("vk: %s failed: result %d", call, int32(res))
	}
}
