// Copyright 2026 The RHI Authors. All rights reserved.

// Package resource implements the frame graph's resource
// manager: creation, content-addressable caching, reference
// counting and delayed destruction of every GPU-side object
// addressed by a handle.Handle, plus two offset sub-allocators
// (slab and ring). Resource creation does not draw from them; the
// driver allocates each image's and buffer's memory itself.
package resource

import "errors"

// ErrInvalidHandle is returned by any operation given a stale
// or fabricated handle. Operations that fail this way never
// mutate the manager's state.
var ErrInvalidHandle = errors.New("resource: invalid handle")

// ErrValidationFailed is returned when a creation descriptor is
// internally inconsistent (e.g. zero-sized image).
var ErrValidationFailed = errors.New("resource: validation failed")

// ErrOutOfMemory is returned when a sub-allocator exhausts its
// bounded number of growth steps.
var ErrOutOfMemory = errors.New("resource: out of memory")

// ErrWrongType is returned when a typed accessor (Image, Buffer,
// ...) is called with a handle of a different resource type.
var ErrWrongType = errors.New("resource: handle has the wrong type")

// ErrUnsupportedFeature is returned when a creation call
// requires a driver capability (mesh shading, ray tracing) that
// the bound GPU does not implement.
var ErrUnsupportedFeature = errors.New("resource: unsupported feature")
