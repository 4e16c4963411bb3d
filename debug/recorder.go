// Copyright 2026 The RHI Authors. All rights reserved.

package debug

import (
	"fmt"
	"strings"
	"sync"

	"github.com/karlsen-gfx/rhi/barrier"
	"github.com/karlsen-gfx/rhi/driver"
	"github.com/karlsen-gfx/rhi/taskgraph"
)

// Recorder is a barrier.Sink that accumulates a text dump of
// every Process call it observes: the linear schedule, any
// hazard the solver flagged, and the barrier/transition emitted
// immediately ahead of each task. It also tracks the event-marker
// nesting implied by KindGroup tasks, since the driver this
// module targets has no native command-list marker facility.
type Recorder struct {
	mu      sync.Mutex
	enabled bool
	buf     strings.Builder
	depth   int
	frame   int
}

// NewRecorder creates a Recorder. Pass it to barrier.Solver.SetSink
// to start capturing; passing nil to SetSink stops.
func NewRecorder() *Recorder {
	return &Recorder{enabled: true}
}

// SetEnabled toggles capture without detaching from the Solver,
// so a client can leave the sink wired and flip it on only for
// the frames it wants to inspect.
func (r *Recorder) SetEnabled(on bool) {
	r.mu.Lock()
	r.enabled = on
	r.mu.Unlock()
}

// Scheduled implements barrier.Sink.
func (r *Recorder) Scheduled(order []taskgraph.TaskId, hazards []barrier.Hazard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return
	}
	r.frame++
	r.depth = 0
	fmt.Fprintf(&r.buf, "=== frame %d: %d tasks ===\n", r.frame, len(order))
	for _, h := range hazards {
		fmt.Fprintf(&r.buf, "  hazard: task %d resource %s: %s\n", h.Task, h.Resource, h.Reason)
	}
	fmt.Fprintf(&r.buf, "order: %v\n", order)
}

// Emitting implements barrier.Sink.
func (r *Recorder) Emitting(t taskgraph.Task, bars []driver.Barrier, trans []driver.Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return
	}
	for _, b := range bars {
		r.indentf("barrier  sync %v->%v access %v->%v\n", b.SyncBefore, b.SyncAfter, b.AccessBefore, b.AccessAfter)
	}
	for _, tr := range trans {
		r.indentf("transition sync %v->%v access %v->%v layout %v->%v\n",
			tr.SyncBefore, tr.SyncAfter, tr.AccessBefore, tr.AccessAfter, tr.LayoutBefore, tr.LayoutAfter)
	}

	if t.Kind == taskgraph.KindGroup {
		name := t.Payload.(taskgraph.GroupDesc).Name
		if strings.HasPrefix(name, "/") {
			r.depth--
			if r.depth < 0 {
				r.depth = 0
			}
			r.indentf("} // %s\n", strings.TrimPrefix(name, "/"))
			return
		}
		r.indentf("%s {\n", name)
		r.depth++
		return
	}

	r.indentf("task %d %s\n", t.ID, t.Kind)
}

func (r *Recorder) indentf(format string, args ...any) {
	r.buf.WriteString(strings.Repeat("  ", r.depth+1))
	fmt.Fprintf(&r.buf, format, args...)
}

// Dump returns everything captured so far.
func (r *Recorder) Dump() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String()
}

// Reset clears the captured dump without detaching from the
// Solver.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf.Reset()
	r.depth = 0
	r.frame = 0
}
