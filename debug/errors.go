// Copyright 2026 The RHI Authors. All rights reserved.

// Package debug implements the frame graph's optional
// command-stream debugger: a barrier.Sink that records a
// human-readable dump of each processed graph, and a decoder for
// the shader-trace storage buffers instrumented shaders write
// when shader debugging is enabled.
package debug

import "errors"

// ErrNotEnabled reports a Recorder that was never attached to a
// barrier.Solver via SetSink. No function in this package returns
// it: Dump returns the captured text, which is empty for a
// Recorder that never observed a Process call.
var ErrNotEnabled = errors.New("debug: recorder was never attached")
