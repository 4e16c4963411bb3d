// Copyright 2026 The RHI Authors. All rights reserved.

package submit

import (
	"errors"
	"testing"
	"time"

	"github.com/karlsen-gfx/rhi/driver"
	"github.com/karlsen-gfx/rhi/driver/fake"
	"github.com/karlsen-gfx/rhi/handle"
	"github.com/karlsen-gfx/rhi/pipeline"
	"github.com/karlsen-gfx/rhi/resource"
	"github.com/karlsen-gfx/rhi/staging"
	"github.com/karlsen-gfx/rhi/taskgraph"
)

// fakeValidator accepts every handle; none of these tests
// exercise handle validation against a real resource manager.
type fakeValidator struct{}

func (fakeValidator) Valid(handle.Handle) bool { return true }

func newTestBatcher(t *testing.T) (*Batcher, *fake.GPU) {
	t.Helper()
	drv := &fake.Driver{}
	g, err := drv.Open()
	if err != nil {
		t.Fatal(err)
	}
	gpu := g.(*fake.GPU)
	res := resource.NewManager(gpu, 2)
	pipe := pipeline.NewCache(gpu, 2, 16, res.Retire)
	stg, err := staging.NewManager(gpu, 2, 1<<16, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	return NewBatcher(gpu, res, pipe, stg), gpu
}

func endedCmdBuffer(t *testing.T, gpu *fake.GPU) driver.CmdBuffer {
	t.Helper()
	cb, err := gpu.NewCmdBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if err := cb.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := cb.End(); err != nil {
		t.Fatal(err)
	}
	return cb
}

func TestBatcherFlushAndPoll(t *testing.T) {
	b, gpu := newTestBatcher(t)
	tcb := taskgraph.Begin(fakeValidator{}, taskgraph.Desc{Debug: "t0"})
	dcb := endedCmdBuffer(t, gpu)

	if err := b.Submit(tcb, dcb); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if tcb.State() != taskgraph.Executing {
		t.Fatalf("expected Executing after Submit, got %v", tcb.State())
	}
	if err := b.Flush(0); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := b.WaitIdle(); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
	if tcb.State() != taskgraph.Retired {
		t.Fatalf("expected Retired after WaitIdle, got %v", tcb.State())
	}
	if gpu.CommitCount() != 1 {
		t.Fatalf("expected 1 Commit call, got %d", gpu.CommitCount())
	}
}

func TestBatcherFlushWithNothingPendingIsNoop(t *testing.T) {
	b, gpu := newTestBatcher(t)
	if err := b.Flush(0); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if gpu.CommitCount() != 0 {
		t.Fatalf("expected no Commit call, got %d", gpu.CommitCount())
	}
}

func TestBatcherOrdersByWaitFor(t *testing.T) {
	b, gpu := newTestBatcher(t)
	producer := taskgraph.Begin(fakeValidator{}, taskgraph.Desc{Debug: "producer"})
	consumer := taskgraph.Begin(fakeValidator{}, taskgraph.Desc{Debug: "consumer"}, producer)

	consumerDcb := endedCmdBuffer(t, gpu)
	producerDcb := endedCmdBuffer(t, gpu)

	// Submit the consumer first; Flush must still order the
	// producer's command buffer ahead of it.
	if err := b.Submit(consumer, consumerDcb); err != nil {
		t.Fatal(err)
	}
	if err := b.Submit(producer, producerDcb); err != nil {
		t.Fatal(err)
	}
	if err := b.Flush(0); err != nil {
		t.Fatal(err)
	}
	if err := b.WaitIdle(); err != nil {
		t.Fatal(err)
	}
}

func TestBatcherDeviceLost(t *testing.T) {
	b, gpu := newTestBatcher(t)
	wantErr := errors.New("boom")
	gpu.FailNextCommit(1, wantErr)

	tcb := taskgraph.Begin(fakeValidator{}, taskgraph.Desc{})
	dcb := endedCmdBuffer(t, gpu)
	if err := b.Submit(tcb, dcb); err != nil {
		t.Fatal(err)
	}
	if err := b.Flush(0); err != nil {
		t.Fatal(err)
	}
	if err := b.WaitIdle(); err != wantErr {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
	if !b.Lost() {
		t.Fatal("expected batcher to report Lost after a failed commit")
	}

	tcb2 := taskgraph.Begin(fakeValidator{}, taskgraph.Desc{})
	if err := b.Submit(tcb2, dcb); err != ErrClosed {
		t.Fatalf("expected ErrClosed once lost, got %v", err)
	}
}
