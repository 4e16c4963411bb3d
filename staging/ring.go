// Copyright 2026 The RHI Authors. All rights reserved.

package staging

import (
	"sync"
	"time"

	"github.com/karlsen-gfx/rhi/driver"
	"github.com/karlsen-gfx/rhi/internal/bitm"
)

// Block granularity for ring reservations. Large enough that a
// typical texture upload needs only a handful of blocks, small
// enough that padding waste stays bounded.
const (
	block = 1 << 12
	nbit  = 8
)

// ringBuffer is one frame slot's host-visible staging buffer. It
// never grows past its initial capacity: once exhausted,
// Reserve blocks its caller until Reset is called (the frame
// that slot belongs to has retired), or until timeout elapses.
type ringBuffer struct {
	mu   sync.Mutex
	cond *sync.Cond
	buf  driver.Buffer
	bm   bitm.Bitm[uint8]
}

func newRingBuffer(gpu driver.GPU, capacity int64) (*ringBuffer, error) {
	nblocks := (capacity + block - 1) / block
	nwords := (nblocks + nbit - 1) / nbit
	if nwords < 1 {
		nwords = 1
	}
	buf, err := gpu.NewBuffer(nwords*nbit*block, true, driver.UGeneric)
	if err != nil {
		return nil, err
	}
	r := &ringBuffer{buf: buf}
	r.cond = sync.NewCond(&r.mu)
	r.bm.Grow(int(nwords))
	return r, nil
}

// reserve finds a contiguous span of at least n bytes, blocking
// until space frees up (via Reset) or timeout elapses.
func (r *ringBuffer) reserve(n int64, timeout time.Duration) (off int64, err error) {
	nblocks := int((n + block - 1) / block)
	if nblocks > r.bm.Len() {
		return 0, ErrTooLarge
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for {
		if idx, ok := r.bm.SearchRange(nblocks); ok {
			for i := 0; i < nblocks; i++ {
				r.bm.Set(idx + i)
			}
			return int64(idx) * block, nil
		}
		if timeout <= 0 {
			return 0, ErrExhausted
		}
		remain := time.Until(deadline)
		if remain <= 0 {
			return 0, ErrExhausted
		}
		waitOnCond(r.cond, remain)
		if time.Now().After(deadline) {
			if idx, ok := r.bm.SearchRange(nblocks); ok {
				for i := 0; i < nblocks; i++ {
					r.bm.Set(idx + i)
				}
				return int64(idx) * block, nil
			}
			return 0, ErrExhausted
		}
	}
}

// capacity returns the total byte capacity of the ring, rounded
// up to the block granularity.
func (r *ringBuffer) capacity() int64 {
	return int64(r.bm.Len()) * block
}

// reset clears every reservation in the ring, waking any
// goroutine blocked in reserve.
func (r *ringBuffer) reset() {
	r.mu.Lock()
	r.bm.Clear()
	r.mu.Unlock()
	r.cond.Broadcast()
}

// bytes returns the host-visible slice backing the reservation
// at [off, off+n).
func (r *ringBuffer) bytes(off, n int64) []byte {
	return r.buf.Bytes()[off : off+n]
}

// waitOnCond waits on cond for at most d, which must be called
// with cond's Locker held (mirroring sync.Cond.Wait's contract).
// cond.L is unlocked for the duration of the wait and relocked
// before returning, same as Wait itself.
func waitOnCond(cond *sync.Cond, d time.Duration) {
	done := make(chan struct{})
	timer := time.AfterFunc(d, func() {
		close(done)
		cond.Broadcast()
	})
	defer timer.Stop()
	cond.Wait()
	select {
	case <-done:
	default:
	}
}
