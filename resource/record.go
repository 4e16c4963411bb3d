// Copyright 2026 The RHI Authors. All rights reserved.

package resource

import (
	"sync/atomic"

	"github.com/karlsen-gfx/rhi/driver"
	"github.com/karlsen-gfx/rhi/handle"
)

// Access is the access-tracking state attached to every
// resource record: the most recent state that has actually been
// *submitted*, as opposed to recorded. The task processor keeps
// its own shadow copy while building a frame and only updates
// this struct once a command buffer referencing the resource
// has been committed.
type Access struct {
	LastWriterTask uint64
	LastLayout     driver.Layout
	LastAccess     driver.Access
	LastStage      driver.Sync
	LastQueueFam   int
}

// State is the resource lifecycle state machine described in
// the frame graph's state-machine inventory:
// Uninitialized -> Resident -> Destroying -> Retired.
type State int

const (
	Uninitialized State = iota
	Resident
	Destroying
	Retired
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Resident:
		return "Resident"
	case Destroying:
		return "Destroying"
	case Retired:
		return "Retired"
	default:
		return "State(?)"
	}
}

// Record is the bookkeeping the manager keeps for every handle
// it has issued, regardless of kind.
type Record struct {
	Handle handle.Handle
	Kind   handle.Type

	refs atomic.Int32

	// Sharable is true for resources that participate in
	// content-addressable interning (pipelines, descriptor-set
	// layouts, samplers, render passes, framebuffers).
	Sharable    bool
	ContentHash uint64

	// Desc is the creation descriptor, kept around so that a
	// cache hit can be verified with a deep-equality check and
	// so the resource could be recreated/validated later.
	Desc any

	// Native is the underlying driver object: a driver.Image,
	// driver.Buffer, driver.Pipeline, and so on, depending on
	// Kind.
	Native any

	DebugName string

	Access Access
	State  State

	// defaultView caches the whole-resource driver.ImageView built
	// lazily by Manager.DefaultView, for Image records only. It is
	// destroyed ahead of the image itself when the image retires.
	defaultView any
}

func newRecord(h handle.Handle, kind handle.Type, sharable bool, hash uint64, desc, native any, name string) *Record {
	r := &Record{
		Handle:      h,
		Kind:        kind,
		Sharable:    sharable,
		ContentHash: hash,
		Desc:        desc,
		Native:      native,
		DebugName:   name,
		State:       Resident,
	}
	r.refs.Store(1)
	return r
}
