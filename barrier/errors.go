// Copyright 2026 The RHI Authors. All rights reserved.

// Package barrier implements the frame graph's task processor: it
// takes the append-only task arena a taskgraph.CommandBuffer
// recorded, orders it into a single linear schedule honoring both
// explicit and resource-induced dependencies, walks each
// resource's access history to synthesize the minimal set of
// driver.Barrier and driver.Transition calls the schedule needs,
// and emits the whole thing into a live driver.CmdBuffer.
package barrier

import "errors"

// ErrCyclicGraph is returned by Process when the task arena's
// dependency edges (explicit DependsOn plus resource-induced
// hazards) contain a cycle, so no linear schedule exists.
var ErrCyclicGraph = errors.New("barrier: cyclic task graph")

// ErrUnsupportedFeature is returned when emitting a task that
// requires a driver capability (mesh shading, ray tracing, image
// scaling) the bound GPU does not implement.
var ErrUnsupportedFeature = errors.New("barrier: unsupported feature")
