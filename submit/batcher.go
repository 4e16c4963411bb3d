// Copyright 2026 The RHI Authors. All rights reserved.

package submit

import (
	"sync"

	"github.com/karlsen-gfx/rhi/driver"
	"github.com/karlsen-gfx/rhi/internal/rlog"
	"github.com/karlsen-gfx/rhi/pipeline"
	"github.com/karlsen-gfx/rhi/resource"
	"github.com/karlsen-gfx/rhi/staging"
	"github.com/karlsen-gfx/rhi/taskgraph"
)

// entry is one processed command buffer waiting to join the
// current frame slot's next Commit call.
type entry struct {
	tcb *taskgraph.CommandBuffer
	dcb driver.CmdBuffer
	seq int
}

// inFlight is one outstanding driver.GPU.Commit call: the set of
// command buffers it carries and the channel it will signal on.
type inFlight struct {
	slot int
	tcbs []*taskgraph.CommandBuffer
	dcbs []driver.CmdBuffer
	ch   chan error
}

// Batcher is the frame graph's submission batcher. It has no
// notion of VkSubmit batches, fences, or semaphores, because the
// driver this module targets exposes none: driver.GPU.Commit
// takes a single ordered slice of command buffers and a
// completion channel, and documents that "the order of command
// buffers in cb is meaningful" for any wait relationship between
// them. Batcher realizes every CommandBuffer.WaitFor edge purely
// by ordering, and realizes "retirement" purely by reacting to
// that one channel closing.
type Batcher struct {
	gpu  driver.GPU
	res  *resource.Manager
	pipe *pipeline.Cache
	stg  *staging.Manager

	mu      sync.Mutex
	pending []*entry
	seq     int
	inFlt   []*inFlight
	lost    bool
}

// NewBatcher creates a Batcher that commits to gpu and drives
// retirement on res, pipe, and stg once a batch signals.
func NewBatcher(gpu driver.GPU, res *resource.Manager, pipe *pipeline.Cache, stg *staging.Manager) *Batcher {
	return &Batcher{gpu: gpu, res: res, pipe: pipe, stg: stg}
}

// Submit enqueues a processed command buffer to join the next
// Flush for whichever frame slot that Flush names. tcb
// transitions Recording -> Executing immediately; it does not
// reach the driver until Flush is called.
func (b *Batcher) Submit(tcb *taskgraph.CommandBuffer, dcb driver.CmdBuffer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lost {
		return ErrClosed
	}
	if err := tcb.MarkExecuting(); err != nil {
		return err
	}
	b.seq++
	b.pending = append(b.pending, &entry{tcb: tcb, dcb: dcb, seq: b.seq})
	return nil
}

// Flush commits every command buffer enqueued since the last
// Flush for frameSlot, ordered so that every CommandBuffer.WaitFor
// edge is satisfied by position within the committed slice, and
// returns without blocking for completion. It is a no-op if
// nothing is pending.
func (b *Batcher) Flush(frameSlot int) error {
	b.mu.Lock()
	if b.lost {
		b.mu.Unlock()
		return ErrClosed
	}
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	ordered, err := orderByWaitFor(batch)
	if err != nil {
		return err
	}

	fl := &inFlight{slot: frameSlot, ch: make(chan error, 1)}
	for _, e := range ordered {
		fl.tcbs = append(fl.tcbs, e.tcb)
		fl.dcbs = append(fl.dcbs, e.dcb)
	}

	b.mu.Lock()
	b.inFlt = append(b.inFlt, fl)
	b.mu.Unlock()

	b.gpu.Commit(fl.dcbs, fl.ch)
	return nil
}

// Poll retires every batch whose completion channel has already
// signaled, without blocking on any that have not. It returns the
// first error observed, if any, after retiring everything it can.
func (b *Batcher) Poll() error {
	return b.drain(false)
}

// WaitIdle blocks until every outstanding batch has signaled,
// retiring each as it completes, and returns the first error
// observed.
func (b *Batcher) WaitIdle() error {
	return b.drain(true)
}

func (b *Batcher) drain(block bool) error {
	var firstErr error
	for {
		b.mu.Lock()
		if len(b.inFlt) == 0 {
			b.mu.Unlock()
			return firstErr
		}
		fl := b.inFlt[0]
		b.mu.Unlock()

		var err error
		var ok bool
		if block {
			err = <-fl.ch
			ok = true
		} else {
			select {
			case err = <-fl.ch:
				ok = true
			default:
				ok = false
			}
		}
		if !ok {
			return firstErr
		}

		b.mu.Lock()
		b.inFlt = b.inFlt[1:]
		b.mu.Unlock()

		b.retire(fl, err)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
}

// retire runs the per-frame-slot cleanup this batch guards:
// descriptor pool reset, staging ring drain/abort, resource
// destruction, and command-buffer state transition.
func (b *Batcher) retire(fl *inFlight, err error) {
	for _, t := range fl.tcbs {
		t.MarkRetired()
	}
	if err != nil {
		rlog.Get().Error("device lost", "frame_slot", fl.slot, "err", err)
		b.mu.Lock()
		b.lost = true
		b.mu.Unlock()
		b.stg.Abort(fl.slot)
		b.res.Retire.Drain(fl.slot)
		b.pipe.DescriptorPool().Reset(fl.slot)
		return
	}
	b.stg.Drain(fl.slot)
	b.res.Retire.Drain(fl.slot)
	b.pipe.DescriptorPool().Reset(fl.slot)
}

// Lost reports whether a prior batch failed, putting the batcher
// into its terminal state.
func (b *Batcher) Lost() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lost
}

// orderByWaitFor returns batch reordered so that, for every entry
// whose CommandBuffer.WaitFor names another command buffer also
// present in batch, the dependency precedes the dependent. Ties
// (and any WaitFor target outside this batch, already committed
// and therefore already ordered before it on the GPU timeline)
// are broken by submission sequence.
func orderByWaitFor(batch []*entry) ([]*entry, error) {
	index := make(map[*taskgraph.CommandBuffer]int, len(batch))
	for i, e := range batch {
		index[e.tcb] = i
	}

	indeg := make([]int, len(batch))
	adj := make([][]int, len(batch))
	for i, e := range batch {
		for _, w := range e.tcb.WaitFor {
			if j, ok := index[w]; ok {
				adj[j] = append(adj[j], i)
				indeg[i]++
			}
		}
	}

	order := make([]*entry, 0, len(batch))
	done := make([]bool, len(batch))
	for len(order) < len(batch) {
		best := -1
		for i := range batch {
			if done[i] || indeg[i] != 0 {
				continue
			}
			if best == -1 || batch[i].seq < batch[best].seq {
				best = i
			}
		}
		if best == -1 {
			return nil, ErrDeviceLost
		}
		done[best] = true
		order = append(order, batch[best])
		for _, j := range adj[best] {
			indeg[j]--
		}
	}
	return order, nil
}
