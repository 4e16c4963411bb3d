// Copyright 2026 The RHI Authors. All rights reserved.

// Package staging implements the frame graph's staging manager:
// per-frame host-visible ring buffers used to move bytes between
// client memory and GPU resources, with backpressure when every
// ring is exhausted.
package staging

import "errors"

// ErrExhausted is returned by StageUpload and ReserveDownload
// when the frame slot's ring, or the manager-wide byte budget,
// stays full until the configured timeout elapses.
var ErrExhausted = errors.New("staging: exhausted")

// ErrTooLarge is returned when a single reservation can never
// fit within a ring's maximum capacity, regardless of backpressure.
var ErrTooLarge = errors.New("staging: reservation exceeds ring capacity")
