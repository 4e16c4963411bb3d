// Copyright 2026 The RHI Authors. All rights reserved.

// Package submit implements the frame graph's submission
// batcher: it groups recorded, processed command buffers into
// driver.GPU.Commit calls, tracks their completion on a channel
// (the driver exposes no separate fence or semaphore types), and
// drives per-frame-slot retirement once a batch signals.
package submit

import "errors"

// ErrDeviceLost is returned by Flush when the WaitFor edges among
// the pending command buffers form a cycle, so that no commit order
// satisfies them; those buffers are dropped. A failed commit is
// reported differently: Poll and WaitIdle return the driver's error
// for that batch unchanged, its pending read-back callbacks receive
// a nil view, and the batcher then refuses further work with
// ErrClosed.
var ErrDeviceLost = errors.New("submit: device lost")

// ErrClosed is returned by Submit and Flush once a committed batch
// has failed, putting the batcher in its terminal state.
var ErrClosed = errors.New("submit: batcher is closed")
