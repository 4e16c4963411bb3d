// Copyright 2026 The RHI Authors. All rights reserved.

package debug

import (
	"strings"
	"testing"

	"github.com/karlsen-gfx/rhi/barrier"
	"github.com/karlsen-gfx/rhi/driver"
	"github.com/karlsen-gfx/rhi/handle"
	"github.com/karlsen-gfx/rhi/taskgraph"
)

func TestRecorderScheduledAndEmitting(t *testing.T) {
	r := NewRecorder()
	buf := handle.NewTable[int](handle.Buffer)
	h := buf.Alloc(0)
	r.Scheduled([]taskgraph.TaskId{0, 1}, []barrier.Hazard{
		{Task: 1, Resource: h, Reason: "write-after-write with no explicit ordering"},
	})
	r.Emitting(taskgraph.Task{ID: 0, Kind: taskgraph.KindClearBuffer}, []driver.Barrier{
		{SyncBefore: driver.SCopy, SyncAfter: driver.SCopy, AccessBefore: driver.ACopyWrite, AccessAfter: driver.ACopyWrite},
	}, nil)

	dump := r.Dump()
	if !strings.Contains(dump, "frame 1: 2 tasks") {
		t.Fatalf("expected frame header, got:\n%s", dump)
	}
	if !strings.Contains(dump, "hazard: task 1") {
		t.Fatalf("expected hazard line, got:\n%s", dump)
	}
	if !strings.Contains(dump, "task 0 ClearBuffer") {
		t.Fatalf("expected task line, got:\n%s", dump)
	}
}

func TestRecorderGroupNesting(t *testing.T) {
	r := NewRecorder()
	r.Scheduled(nil, nil)
	r.Emitting(taskgraph.Task{Kind: taskgraph.KindGroup, Payload: taskgraph.GroupDesc{Name: "shadows"}}, nil, nil)
	r.Emitting(taskgraph.Task{ID: 1, Kind: taskgraph.KindDraw}, nil, nil)
	r.Emitting(taskgraph.Task{Kind: taskgraph.KindGroup, Payload: taskgraph.GroupDesc{Name: "/shadows"}}, nil, nil)

	dump := r.Dump()
	if !strings.Contains(dump, "shadows {") {
		t.Fatalf("expected group open, got:\n%s", dump)
	}
	if !strings.Contains(dump, "} // shadows") {
		t.Fatalf("expected group close, got:\n%s", dump)
	}
}

func TestRecorderDisabledCapturesNothing(t *testing.T) {
	r := NewRecorder()
	r.SetEnabled(false)
	r.Scheduled([]taskgraph.TaskId{0}, nil)
	r.Emitting(taskgraph.Task{ID: 0, Kind: taskgraph.KindDraw}, nil, nil)
	if dump := r.Dump(); dump != "" {
		t.Fatalf("expected empty dump while disabled, got:\n%s", dump)
	}
}

func TestRecorderReset(t *testing.T) {
	r := NewRecorder()
	r.Scheduled([]taskgraph.TaskId{0}, nil)
	if r.Dump() == "" {
		t.Fatal("expected non-empty dump before Reset")
	}
	r.Reset()
	if r.Dump() != "" {
		t.Fatal("expected empty dump after Reset")
	}
}
