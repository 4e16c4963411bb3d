// Copyright 2026 The RHI Authors. All rights reserved.

package barrier

import (
	"testing"
	"time"

	"github.com/karlsen-gfx/rhi/driver"
	"github.com/karlsen-gfx/rhi/driver/fake"
	"github.com/karlsen-gfx/rhi/pipeline"
	"github.com/karlsen-gfx/rhi/resource"
	"github.com/karlsen-gfx/rhi/staging"
	"github.com/karlsen-gfx/rhi/taskgraph"
)

func newTestSolver(t *testing.T) (*Solver, *resource.Manager, driver.GPU) {
	t.Helper()
	drv := &fake.Driver{}
	g, err := drv.Open()
	if err != nil {
		t.Fatal(err)
	}
	res := resource.NewManager(g, 2)
	pipe := pipeline.NewCache(g, 2, 16, res.Retire)
	stg, err := staging.NewManager(g, 2, 1<<16, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	return NewSolver(g, res, pipe, stg), res, g
}

func TestSolverProcessClearBuffer(t *testing.T) {
	s, res, gpu := newTestSolver(t)
	buf, err := res.CreateBuffer(resource.BufferDesc{Size: 256, Usage: driver.UGeneric}, "test-buf")
	if err != nil {
		t.Fatal(err)
	}

	cb, err := gpu.NewCmdBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if err := cb.Begin(); err != nil {
		t.Fatal(err)
	}

	tcb := taskgraph.Begin(res, taskgraph.Desc{Debug: "clear"})
	if _, err := tcb.ClearBuffer(taskgraph.ClearBufferDesc{Dest: buf, Size: 256}); err != nil {
		t.Fatal(err)
	}
	tasks, err := tcb.Finish()
	if err != nil {
		t.Fatal(err)
	}

	result, err := s.Process(cb, 0, tasks)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(result.Order) != 1 {
		t.Fatalf("expected one task in order, got %v", result.Order)
	}
	if len(result.Hazards) != 0 {
		t.Fatalf("expected no hazards, got %v", result.Hazards)
	}
	if err := cb.End(); err != nil {
		t.Fatal(err)
	}
}

func TestSolverProcessRecordsSink(t *testing.T) {
	s, res, gpu := newTestSolver(t)
	buf, err := res.CreateBuffer(resource.BufferDesc{Size: 64, Usage: driver.UGeneric}, "")
	if err != nil {
		t.Fatal(err)
	}
	var gotOrder []taskgraph.TaskId
	var gotEmits int
	s.SetSink(recordingSink{
		scheduled: func(order []taskgraph.TaskId, _ []Hazard) { gotOrder = order },
		emitting:  func(taskgraph.Task, []driver.Barrier, []driver.Transition) { gotEmits++ },
	})

	cb, err := gpu.NewCmdBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if err := cb.Begin(); err != nil {
		t.Fatal(err)
	}
	tcb := taskgraph.Begin(res, taskgraph.Desc{})
	if _, err := tcb.ClearBuffer(taskgraph.ClearBufferDesc{Dest: buf, Size: 64}); err != nil {
		t.Fatal(err)
	}
	tasks, err := tcb.Finish()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Process(cb, 0, tasks); err != nil {
		t.Fatal(err)
	}
	if len(gotOrder) != 1 {
		t.Fatalf("expected Scheduled callback with one task, got %v", gotOrder)
	}
	if gotEmits != 1 {
		t.Fatalf("expected one Emitting callback, got %d", gotEmits)
	}
}

type recordingSink struct {
	scheduled func([]taskgraph.TaskId, []Hazard)
	emitting  func(taskgraph.Task, []driver.Barrier, []driver.Transition)
}

func (s recordingSink) Scheduled(order []taskgraph.TaskId, hazards []Hazard) { s.scheduled(order, hazards) }
func (s recordingSink) Emitting(t taskgraph.Task, b []driver.Barrier, tr []driver.Transition) {
	s.emitting(t, b, tr)
}
