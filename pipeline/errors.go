// Copyright 2026 The RHI Authors. All rights reserved.

// Package pipeline implements the frame graph's pipeline and
// descriptor cache: interning of pipeline layouts and
// descriptor-set layouts by reflection signature, single-flight
// pipeline compilation, and per-frame descriptor-set pools with
// LRU eviction.
package pipeline

import "errors"

// ErrValidationFailed names an internally inconsistent layout or
// pipeline descriptor. No function in this package returns it.
var ErrValidationFailed = errors.New("pipeline: validation failed")

// ErrCompileFailed wraps an error returned by the driver while
// creating a pipeline object.
var ErrCompileFailed = errors.New("pipeline: compile failed")

// ErrUnknownLayout is returned when a PipelineResources binding
// refers to a layout handle the cache never interned.
var ErrUnknownLayout = errors.New("pipeline: unknown layout")
