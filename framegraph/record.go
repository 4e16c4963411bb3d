// Copyright 2026 The RHI Authors. All rights reserved.

package framegraph

import (
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/karlsen-gfx/rhi/internal/rlog"
	"github.com/karlsen-gfx/rhi/resource"
	"github.com/karlsen-gfx/rhi/taskgraph"
)

// RecordSpec is one command buffer's recording job for RecordAll.
type RecordSpec struct {
	Desc taskgraph.Desc
	// Fn records cmd's tasks. It runs on its own goroutine; cmd is
	// exclusive to it. taskgraph.CommandBuffer does not check which
	// goroutine records into it; its mutex only serializes calls.
	Fn func(cmd *taskgraph.CommandBuffer) error
}

// RecordAll begins one command buffer per spec and runs each
// spec.Fn concurrently, returning every resulting buffer in input
// order. If any Fn returns an error, RecordAll returns the first
// one observed and no buffers.
func (f *FrameGraph) RecordAll(specs []RecordSpec) ([]*taskgraph.CommandBuffer, error) {
	if err := f.checkLive(); err != nil {
		return nil, err
	}

	cbs := make([]*taskgraph.CommandBuffer, len(specs))
	var g errgroup.Group
	for i, spec := range specs {
		i, spec := i, spec
		cb := taskgraph.Begin(f.res, spec.Desc)
		cbs[i] = cb
		g.Go(func() error {
			return spec.Fn(cb)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cbs, nil
}

// SetLogger configures the logger used by every layer of this
// module (resource, staging, barrier, submit) for hazard, OOM, and
// device-loss diagnostics. By default nothing is logged; pass nil
// to restore that default.
func SetLogger(l *slog.Logger) {
	rlog.Set(l)
}

// Logger returns the logger installed by SetLogger.
func Logger() *slog.Logger {
	return rlog.Get()
}

// MemoryStats reports the resource manager's sub-allocator
// occupancy.
func (f *FrameGraph) MemoryStats() resource.MemoryStats {
	return f.res.MemoryStats()
}
