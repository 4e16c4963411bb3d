// Copyright 2026 The RHI Authors. All rights reserved.

// Package taskgraph implements the frame graph's command
// buffer: a single-producer recorder that builds an append-only
// arena of task nodes and stable TaskIds, without touching the
// driver. The resulting arena is handed to the barrier solver
// for scheduling once recording finishes.
package taskgraph

import "errors"

// ErrNotRecording is returned by any recording call made once the
// buffer has left Recording (after MarkExecuting). Finish does not
// end recording.
var ErrNotRecording = errors.New("taskgraph: command buffer is not recording")

// ErrInvalidHandle is returned when a task declares an access
// to a handle the validator rejects.
var ErrInvalidHandle = errors.New("taskgraph: invalid resource handle")

// ErrUnclosedRenderPass is returned by Finish when a
// BeginRenderPass was never matched by EndRenderPass.
var ErrUnclosedRenderPass = errors.New("taskgraph: unclosed render pass")

// ErrNoOpenRenderPass is returned by EndRenderPass (or by a
// draw task) when no render pass is currently open.
var ErrNoOpenRenderPass = errors.New("taskgraph: no render pass is open")

// ErrUnknownTask is returned by DependsOn when given a TaskId
// this command buffer never issued.
var ErrUnknownTask = errors.New("taskgraph: unknown task id")

// ErrRenderPassAlreadyOpen is returned by BeginRenderPass when
// called while a previous render pass is still open.
var ErrRenderPassAlreadyOpen = errors.New("taskgraph: render pass already open")

// ErrAlreadyExecuted is returned by MarkExecuting when the
// command buffer already left the Recording state.
var ErrAlreadyExecuted = errors.New("taskgraph: command buffer already executed")
