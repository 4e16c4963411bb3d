// Copyright 2026 The RHI Authors. All rights reserved.

package staging

import (
	"context"
	"sync"
	"time"

	"github.com/karlsen-gfx/rhi/driver"
	"github.com/karlsen-gfx/rhi/internal/rlog"
	"golang.org/x/sync/semaphore"
)

// Direction distinguishes an upload staging region (client ->
// device) from a download region (device -> client).
type Direction int

const (
	Upload Direction = iota
	Download
)

// Region is a reservation within a frame slot's staging ring.
type Region struct {
	Buffer    driver.Buffer
	Offset    int64
	Size      int64
	FrameSlot int
	Direction Direction
}

// Bytes returns the host-visible slice the reservation covers.
func (r Region) Bytes() []byte {
	return r.Buffer.Bytes()[r.Offset : r.Offset+r.Size]
}

type pendingDownload struct {
	region   Region
	callback func([]byte)
}

// Manager owns one upload ring and one download ring per frame
// slot, and the queue of download callbacks waiting on their
// frame's fence.
type Manager struct {
	gpu     driver.GPU
	timeout time.Duration

	uploads   []*ringBuffer
	downloads []*ringBuffer

	// budget bounds the total bytes reserved across every ring at
	// once, independent of which frame slot they belong to. Each
	// ring already blocks a caller against its own exhaustion;
	// budget additionally throttles a burst of reservations spread
	// across many slots from over-committing host memory between
	// retirements.
	budget *semaphore.Weighted

	mu       sync.Mutex
	pending  [][]pendingDownload
	acquired []int64 // bytes held against budget per frame slot
}

// NewManager creates a Manager with frameSlots independent
// upload/download ring pairs, each of ringCapacity bytes.
// timeout bounds each of the two waits StageUpload and
// ReserveDownload make (for the budget, then for the slot's ring)
// before returning ErrExhausted; with a timeout of zero or less the
// ring wait fails at once and the budget wait is unbounded.
func NewManager(gpu driver.GPU, frameSlots int, ringCapacity int64, timeout time.Duration) (*Manager, error) {
	if frameSlots < 1 {
		frameSlots = 1
	}
	m := &Manager{
		gpu:       gpu,
		timeout:   timeout,
		uploads:   make([]*ringBuffer, frameSlots),
		downloads: make([]*ringBuffer, frameSlots),
		budget:    semaphore.NewWeighted(ringCapacity * int64(frameSlots) * 2),
		pending:   make([][]pendingDownload, frameSlots),
		acquired:  make([]int64, frameSlots),
	}
	for i := 0; i < frameSlots; i++ {
		var err error
		m.uploads[i], err = newRingBuffer(gpu, ringCapacity)
		if err != nil {
			return nil, err
		}
		m.downloads[i], err = newRingBuffer(gpu, ringCapacity)
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

// StageUpload reserves space in frameSlot's upload ring, copies
// data into it immediately, and returns the Region describing
// where it landed so the caller can record a device-side copy
// from it.
func (m *Manager) StageUpload(frameSlot int, data []byte) (Region, error) {
	size := int64(len(data))
	if size > m.uploads[frameSlot].capacity() {
		return Region{}, ErrTooLarge
	}
	if err := m.acquireBudget(frameSlot, size); err != nil {
		return Region{}, err
	}
	off, err := m.uploads[frameSlot].reserve(size, m.timeout)
	if err != nil {
		m.releaseBudget(frameSlot, size)
		rlog.Get().Warn("upload ring exhausted", "frame_slot", frameSlot, "size", size)
		return Region{}, err
	}
	r := m.uploads[frameSlot]
	copy(r.bytes(off, size), data)
	return Region{Buffer: r.buf, Offset: off, Size: size, FrameSlot: frameSlot, Direction: Upload}, nil
}

// acquireBudget blocks, up to m.timeout, until size bytes of the
// manager-wide staging budget are free, and charges them against
// frameSlot so Drain/Abort can release them again.
func (m *Manager) acquireBudget(frameSlot int, size int64) error {
	ctx := context.Background()
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	if err := m.budget.Acquire(ctx, size); err != nil {
		rlog.Get().Warn("staging budget exhausted", "frame_slot", frameSlot, "size", size)
		return ErrExhausted
	}
	m.mu.Lock()
	m.acquired[frameSlot] += size
	m.mu.Unlock()
	return nil
}

func (m *Manager) releaseBudget(frameSlot int, size int64) {
	m.budget.Release(size)
	m.mu.Lock()
	m.acquired[frameSlot] -= size
	m.mu.Unlock()
}

// ReserveDownload reserves space in frameSlot's download ring
// for a device-side copy of size bytes that the caller will
// record. callback is invoked with a read-only view of the
// staged bytes only after frameSlot's frame retires (see
// Drain); the view is valid only for the duration of the
// callback.
func (m *Manager) ReserveDownload(frameSlot int, size int64, callback func([]byte)) (Region, error) {
	if size > m.downloads[frameSlot].capacity() {
		return Region{}, ErrTooLarge
	}
	if err := m.acquireBudget(frameSlot, size); err != nil {
		return Region{}, err
	}
	off, err := m.downloads[frameSlot].reserve(size, m.timeout)
	if err != nil {
		m.releaseBudget(frameSlot, size)
		return Region{}, err
	}
	r := m.downloads[frameSlot]
	region := Region{Buffer: r.buf, Offset: off, Size: size, FrameSlot: frameSlot, Direction: Download}

	m.mu.Lock()
	m.pending[frameSlot] = append(m.pending[frameSlot], pendingDownload{region: region, callback: callback})
	m.mu.Unlock()

	return region, nil
}

// Drain fires every download callback queued for frameSlot,
// in reservation order, then resets both of that slot's rings.
// It is called by the submission batcher once frameSlot's fence
// signals, on the thread polling completions.
func (m *Manager) Drain(frameSlot int) {
	m.mu.Lock()
	pend := m.pending[frameSlot]
	m.pending[frameSlot] = nil
	held := m.acquired[frameSlot]
	m.acquired[frameSlot] = 0
	m.mu.Unlock()

	for _, p := range pend {
		p.callback(p.region.Bytes())
	}

	m.uploads[frameSlot].reset()
	m.downloads[frameSlot].reset()
	if held > 0 {
		m.budget.Release(held)
	}
}

// Abort fires every download callback queued for frameSlot with
// a nil view instead of the staged bytes, then resets both of
// that slot's rings. The submission batcher calls this in place
// of Drain when the batch guarding frameSlot failed, so the
// caller never reads device-local memory the failed batch may
// not have finished writing.
func (m *Manager) Abort(frameSlot int) {
	m.mu.Lock()
	pend := m.pending[frameSlot]
	m.pending[frameSlot] = nil
	held := m.acquired[frameSlot]
	m.acquired[frameSlot] = 0
	m.mu.Unlock()

	for _, p := range pend {
		p.callback(nil)
	}

	m.uploads[frameSlot].reset()
	m.downloads[frameSlot].reset()
	if held > 0 {
		m.budget.Release(held)
	}
}
