// Copyright 2026 The RHI Authors. All rights reserved.

package barrier

import (
	"github.com/karlsen-gfx/rhi/driver"
	"github.com/karlsen-gfx/rhi/handle"
	"github.com/karlsen-gfx/rhi/internal/rlog"
	"github.com/karlsen-gfx/rhi/pipeline"
	"github.com/karlsen-gfx/rhi/resource"
	"github.com/karlsen-gfx/rhi/staging"
	"github.com/karlsen-gfx/rhi/taskgraph"
)

// Hazard reports a synchronization problem the solver could not
// resolve automatically, most commonly a self-dependency: a single
// task accessing the same resource twice with at least one access
// being a write. Solving still proceeds (the conflicting accesses
// keep their recorded order and whatever barrier the rest of the
// schedule would have inserted around the task as a whole), but
// the result is only correct if the task's own command sequencing
// already serializes the two accesses, which is exactly what the
// client-declared taskgraph.CommandBuffer.Barrier escape hatch is
// for.
type Hazard struct {
	Task     taskgraph.TaskId
	Resource handle.Handle
	Reason   string
}

// Result is returned by Process alongside any error.
type Result struct {
	// Order is the linear schedule the arena was emitted in.
	Order []taskgraph.TaskId
	// Hazards lists every self-dependency the solver detected.
	Hazards []Hazard
}

// Sink receives a trace of a Process call as it happens, for the
// debugger's graph dump and command-list event markers. The Sink
// itself may be nil (see SetSink); Process checks that before
// calling either method.
type Sink interface {
	// Scheduled is called once with the linear order and the
	// self-dependency hazards schedule() found, before any
	// barrier is synthesized or any task emitted.
	Scheduled(order []taskgraph.TaskId, hazards []Hazard)
	// Emitting is called immediately before each task's own
	// driver calls, after any barrier/transition guarding it.
	Emitting(t taskgraph.Task, bars []driver.Barrier, trans []driver.Transition)
}

// Solver is the frame graph's task processor. One Solver is
// shared across frame slots; all of the state it touches
// (resource.Manager, pipeline.Cache, staging.Manager) is already
// safe for concurrent use by its own locking.
type Solver struct {
	gpu  driver.GPU
	res  *resource.Manager
	pipe *pipeline.Cache
	stg  *staging.Manager
	sink Sink
}

// NewSolver creates a Solver that resolves task handles against
// res, binds descriptor tables through pipe, and services
// UpdateBuffer/UpdateImage/ReadBuffer/ReadImage/ClearImage tasks
// through stg's staging rings.
func NewSolver(gpu driver.GPU, res *resource.Manager, pipe *pipeline.Cache, stg *staging.Manager) *Solver {
	return &Solver{gpu: gpu, res: res, pipe: pipe, stg: stg}
}

// SetSink installs (or, with nil, removes) the trace sink used by
// the debugger's graph dump and event markers.
func (s *Solver) SetSink(sink Sink) { s.sink = sink }

// Process schedules tasks, synthesizes the barriers and
// transitions the schedule requires, and emits the complete
// sequence (sync, then command) into cb, which must already have
// had Begin called on it. frameSlot selects which staging rings
// and descriptor pool generation to draw from.
func (s *Solver) Process(cb driver.CmdBuffer, frameSlot int, tasks []taskgraph.Task) (Result, error) {
	order, hazards, err := schedule(tasks)
	if err != nil {
		return Result{Hazards: hazards}, err
	}

	barriers, transitions, walkHazards, err := s.walk(tasks, order)
	if err != nil {
		return Result{Order: order, Hazards: hazards}, err
	}
	hazards = append(hazards, walkHazards...)

	for _, h := range hazards {
		rlog.Get().Warn("hazard detected", "task", h.Task, "resource", h.Resource, "reason", h.Reason)
	}

	if s.sink != nil {
		s.sink.Scheduled(order, hazards)
	}

	if err := s.emit(cb, frameSlot, tasks, order, barriers, transitions); err != nil {
		return Result{Order: order, Hazards: hazards}, err
	}

	return Result{Order: order, Hazards: hazards}, nil
}
