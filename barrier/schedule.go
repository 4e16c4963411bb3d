// Copyright 2026 The RHI Authors. All rights reserved.

package barrier

import (
	"sort"

	"github.com/karlsen-gfx/rhi/driver"
	"github.com/karlsen-gfx/rhi/handle"
	"github.com/karlsen-gfx/rhi/taskgraph"
)

// writeMask is the subset of driver.Access bits that make an
// access a write, for the purposes of hazard detection: any pair
// of accesses to the same resource where at least one is a write
// must not be reordered relative to one another.
const writeMask = driver.AColorWrite | driver.ADSWrite | driver.AResolveWrite |
	driver.ACopyWrite | driver.AShaderWrite | driver.AAnyWrite

func isWrite(a driver.Access) bool { return a&writeMask != 0 }

// schedule orders tasks into a single linear sequence that honors
// every explicit DependsOn edge, every resource-access hazard
// (WAW/WAR/RAW against the most recent conflicting accessor) and
// render-pass-internal contiguity, breaking ties by the lowest
// original TaskId among the ready set so that output is
// deterministic and, absent any reordering opportunity, matches
// recording order exactly.
func schedule(tasks []taskgraph.Task) ([]taskgraph.TaskId, []Hazard, error) {
	n := len(tasks)
	preds := make([][]taskgraph.TaskId, n)
	addEdge := func(from, to taskgraph.TaskId) {
		if from == to {
			return
		}
		preds[to] = append(preds[to], from)
	}

	for _, t := range tasks {
		for _, d := range t.DependsOn {
			if int(d) < n {
				addEdge(d, t.ID)
			}
		}
	}

	var hazards []Hazard
	lastAccess := make(map[handle.Handle]taskAccess)
	for _, t := range tasks {
		touchedThisTask := make(map[handle.Handle]bool)
		for _, a := range t.Accesses {
			if a.Resource.IsNil() {
				continue
			}
			if touchedThisTask[a.Resource] && (isWrite(a.Access) || touchedSelfIsWrite(t, a.Resource)) {
				hazards = append(hazards, Hazard{
					Task:     t.ID,
					Resource: a.Resource,
					Reason:   "resource accessed more than once by the same task with a conflicting access; use CommandBuffer.Barrier to order the sub-accesses explicitly",
				})
			}
			touchedThisTask[a.Resource] = true

			if prev, ok := lastAccess[a.Resource]; ok && prev.task != t.ID {
				if isWrite(a.Access) || isWrite(prev.access) {
					addEdge(prev.task, t.ID)
				}
			}
			lastAccess[a.Resource] = taskAccess{task: t.ID, access: a.Access}
		}
	}

	// Render-pass-internal contiguity: chain every task inside a
	// BeginRenderPass/EndRenderPass bracket (plus the bracket
	// tasks themselves) in strict recorded order, so the solver
	// never interleaves another task's work between them.
	runStart := -1
	for i, t := range tasks {
		switch {
		case t.Kind == taskgraph.KindBeginRenderPass:
			runStart = i
		case runStart >= 0 && i > runStart:
			addEdge(tasks[i-1].ID, t.ID)
			if t.Kind == taskgraph.KindEndRenderPass {
				runStart = -1
			}
		}
	}

	indeg := make([]int, n)
	for i := range tasks {
		indeg[i] = len(preds[tasks[i].ID])
	}

	order := make([]taskgraph.TaskId, 0, n)
	done := make([]bool, n)
	for len(order) < n {
		best := -1
		for i := range tasks {
			if done[i] || indeg[i] != 0 {
				continue
			}
			if best == -1 || tasks[i].ID < tasks[best].ID {
				best = i
			}
		}
		if best == -1 {
			return nil, hazards, ErrCyclicGraph
		}
		done[best] = true
		order = append(order, tasks[best].ID)
		for i := range tasks {
			if done[i] {
				continue
			}
			for _, p := range preds[tasks[i].ID] {
				if p == tasks[best].ID {
					indeg[i]--
				}
			}
		}
	}

	sort.SliceStable(hazards, func(i, j int) bool { return hazards[i].Task < hazards[j].Task })
	return order, hazards, nil
}

type taskAccess struct {
	task   taskgraph.TaskId
	access driver.Access
}

// touchedSelfIsWrite reports whether any of the task's accesses
// to resource is a write, so that a repeated read-only access to
// a resource the same task also writes is still flagged (one
// write makes every other access within the task hazardous).
func touchedSelfIsWrite(t taskgraph.Task, resource handle.Handle) bool {
	for _, a := range t.Accesses {
		if a.Resource == resource && isWrite(a.Access) {
			return true
		}
	}
	return false
}
