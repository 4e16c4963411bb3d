// Copyright 2026 The RHI Authors. All rights reserved.

package resource

import "testing"

func TestSlabAllocFreeReuse(t *testing.T) {
	a := newSlabAllocator()
	off1, err := a.Alloc(1024)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	a.Free(off1, 1024)
	off2, err := a.Alloc(1024)
	if err != nil {
		t.Fatalf("Alloc after Free: %v", err)
	}
	if off1 != off2 {
		t.Errorf("freed block was not reused: off1=%d off2=%d", off1, off2)
	}
}

func TestSlabAllocDistinctRegions(t *testing.T) {
	a := newSlabAllocator()
	off1, err := a.Alloc(512)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	off2, err := a.Alloc(512)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if off1 == off2 {
		t.Error("two live allocations share an offset")
	}
}

func TestSlabOutOfMemory(t *testing.T) {
	a := newSlabAllocator()
	huge := int64(a.baseSize) << (maxGrowthSteps + 4)
	if _, err := a.Alloc(huge); err != ErrOutOfMemory {
		t.Errorf("Alloc(huge) = %v, want ErrOutOfMemory", err)
	}
}

func TestRingAllocResetReclaims(t *testing.T) {
	a := newRingAllocator(2)
	off1, err := a.AllocFrame(0, 128)
	if err != nil {
		t.Fatalf("AllocFrame: %v", err)
	}
	off2, err := a.AllocFrame(0, 128)
	if err != nil {
		t.Fatalf("AllocFrame: %v", err)
	}
	if off1 == off2 {
		t.Error("ring allocator handed out overlapping regions within one slot before Reset")
	}

	a.Reset(0)
	off3, err := a.AllocFrame(0, 128)
	if err != nil {
		t.Fatalf("AllocFrame after Reset: %v", err)
	}
	if off3 != off1 {
		t.Errorf("Reset did not rewind the cursor: off3=%d want %d", off3, off1)
	}

	// Slot 1 is independent of slot 0.
	off4, err := a.AllocFrame(1, 128)
	if err != nil {
		t.Fatalf("AllocFrame(1): %v", err)
	}
	if off4 != 0 {
		t.Errorf("slot 1 cursor = %d, want 0 (fresh slot)", off4)
	}
}
