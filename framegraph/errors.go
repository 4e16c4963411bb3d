// Copyright 2026 The RHI Authors. All rights reserved.

// Package framegraph is the frame graph's public façade: it owns
// the handle table, resource manager, pipeline cache, staging
// manager, barrier solver, and submission batcher as one unit,
// exposing resource CRUD and the Begin/Execute/Flush/WaitIdle
// recording cycle described for the rest of this module.
package framegraph

import "errors"

// ErrDeviceLost is returned by the Flush or WaitIdle call that
// observes a failed submitted batch, and from then on by the
// Create* methods, Begin, Execute and RecordAll. The other
// FrameGraph methods do not check for it. The façade is terminal
// after this: rebuild it rather than trying to recover the
// existing value.
var ErrDeviceLost = errors.New("framegraph: device lost")

// ErrValidationFailed is returned by Execute when a command
// buffer's recorded graph cannot be scheduled (a dependency
// cycle) or emitted (a feature the bound GPU lacks).
var ErrValidationFailed = errors.New("framegraph: validation failed")
