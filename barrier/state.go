// Copyright 2026 The RHI Authors. All rights reserved.

package barrier

import (
	"github.com/karlsen-gfx/rhi/driver"
	"github.com/karlsen-gfx/rhi/handle"
	"github.com/karlsen-gfx/rhi/resource"
	"github.com/karlsen-gfx/rhi/taskgraph"
)

// shadowState is the solver's per-resource view of the access
// that will most recently precede the one it is currently
// considering, seeded from the resource manager's last-submitted
// Access and updated as the schedule is walked.
type shadowState struct {
	stage  driver.Sync
	access driver.Access
	layout driver.Layout
}

type barKey struct {
	syncBefore, syncAfter     driver.Sync
	accessBefore, accessAfter driver.Access
}

type transKey struct {
	barKey
	layoutBefore, layoutAfter driver.Layout
}

// walk synthesizes the barriers and transitions the schedule
// needs to stay correct, one resource at a time, by comparing
// each task's declared AccessDecl against that resource's shadow
// state. A global driver.Barrier is emitted for a non-Image
// handle; an Image access always gets a per-view
// driver.Transition on its default view, whether it needs
// synchronization, a layout change, or both (an access that
// declares no layout keeps the shadow layout on both sides of the
// transition). Within a single
// task, identical (before, after) tuples are coalesced into one
// entry, satisfying the barrier-minimality requirement.
func (s *Solver) walk(tasks []taskgraph.Task, order []taskgraph.TaskId) (map[taskgraph.TaskId][]driver.Barrier, map[taskgraph.TaskId][]driver.Transition, []Hazard, error) {
	barriers := make(map[taskgraph.TaskId][]driver.Barrier)
	transitions := make(map[taskgraph.TaskId][]driver.Transition)
	var hazards []Hazard

	shadow := make(map[handle.Handle]*shadowState)

	for _, id := range order {
		t := &tasks[id]
		forceSync := t.Kind == taskgraph.KindBarrier

		var bars []driver.Barrier
		var trans []driver.Transition
		seenB := make(map[barKey]bool)
		seenT := make(map[transKey]bool)

		for _, a := range t.Accesses {
			if a.Resource.IsNil() {
				continue
			}
			cur, ok := shadow[a.Resource]
			if !ok {
				prev, err := s.res.AccessOf(a.Resource)
				if err != nil {
					return nil, nil, hazards, err
				}
				cur = &shadowState{stage: prev.LastStage, access: prev.LastAccess, layout: prev.LastLayout}
				shadow[a.Resource] = cur
			}

			isImage := a.Resource.Type() == handle.Image
			wantLayout := a.Layout
			if wantLayout == driver.LUndefined {
				wantLayout = cur.layout
			}
			needLayout := isImage && wantLayout != cur.layout
			hadPrior := cur.stage != driver.SNone || cur.access != driver.ANone
			needSync := forceSync || ((isWrite(a.Access) || isWrite(cur.access)) && (isImage || hadPrior))

			if needSync || needLayout {
				if isImage {
					view, err := s.res.DefaultView(a.Resource)
					if err != nil {
						return nil, nil, hazards, err
					}
					k := transKey{
						barKey:       barKey{cur.stage, a.Stage, cur.access, a.Access},
						layoutBefore: cur.layout, layoutAfter: wantLayout,
					}
					if !seenT[k] {
						seenT[k] = true
						trans = append(trans, driver.Transition{
							Barrier:      driver.Barrier{SyncBefore: cur.stage, SyncAfter: a.Stage, AccessBefore: cur.access, AccessAfter: a.Access},
							LayoutBefore: cur.layout,
							LayoutAfter:  wantLayout,
							IView:        view,
						})
					}
				} else if needSync {
					k := barKey{cur.stage, a.Stage, cur.access, a.Access}
					if !seenB[k] {
						seenB[k] = true
						bars = append(bars, driver.Barrier{SyncBefore: cur.stage, SyncAfter: a.Stage, AccessBefore: cur.access, AccessAfter: a.Access})
					}
				}
			}

			cur.stage = a.Stage
			cur.access = a.Access
			if isImage {
				cur.layout = wantLayout
			}
		}

		if len(bars) > 0 {
			barriers[id] = bars
		}
		if len(trans) > 0 {
			transitions[id] = trans
		}
	}

	for h, cur := range shadow {
		if err := s.res.UpdateAccess(h, resource.Access{LastStage: cur.stage, LastAccess: cur.access, LastLayout: cur.layout}); err != nil {
			// A handle released mid-frame after its last access was
			// recorded is not an error the solver should surface:
			// there is nothing left to update.
			continue
		}
	}

	return barriers, transitions, hazards, nil
}
