// Copyright 2026 The RHI Authors. All rights reserved.

// Package surface defines the minimal window/surface contract
// that the frame graph needs from platform windowing code.
//
// The frame graph core never creates or manages windows itself;
// platform integration (GLFW, Wayland, Win32, ...) lives outside
// this module and is handed in by the caller wherever a Window
// is required (driver.Presenter.NewSwapchain, for instance).
package surface

// Window is the interface that defines a drawable surface.
// Its only purpose is to give a GPU driver enough information
// to create and maintain a swapchain.
type Window interface {
	// Width returns the width of the surface in pixels.
	Width() int

	// Height returns the height of the surface in pixels.
	Height() int

	// Title returns the window's title, for diagnostics.
	Title() string
}
