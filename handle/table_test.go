// Copyright 2026 The RHI Authors. All rights reserved.

package handle_test

import (
	"testing"

	"github.com/karlsen-gfx/rhi/handle"
)

func TestAllocGetFree(t *testing.T) {
	tb := handle.NewTable[int](handle.Buffer)

	h := tb.Alloc(42)
	if h.IsNil() {
		t.Fatal("Alloc returned the nil handle")
	}
	if h.Type() != handle.Buffer {
		t.Errorf("Type() = %v, want Buffer", h.Type())
	}
	v, ok := tb.Get(h)
	if !ok || v != 42 {
		t.Errorf("Get(%v) = (%d, %v), want (42, true)", h, v, ok)
	}
}

func TestStaleHandleDetected(t *testing.T) {
	tb := handle.NewTable[string](handle.Image)

	h := tb.Alloc("a")
	if _, ok := tb.Free(h); !ok {
		t.Fatal("Free reported failure for a live handle")
	}
	if tb.Valid(h) {
		t.Error("Valid reports true for a freed handle")
	}
	if _, ok := tb.Get(h); ok {
		t.Error("Get succeeded on a stale handle")
	}
	// A second Free of the same stale handle must be a no-op,
	// not mutate anything, and report failure.
	if _, ok := tb.Free(h); ok {
		t.Error("double Free reported success")
	}
}

func TestGenerationBumpsOnReuse(t *testing.T) {
	tb := handle.NewTable[int](handle.Sampler)

	h1 := tb.Alloc(1)
	tb.Free(h1)
	h2 := tb.Alloc(2)

	if h1.Index() != h2.Index() {
		t.Fatalf("expected slot reuse: h1.Index()=%d h2.Index()=%d", h1.Index(), h2.Index())
	}
	if h1.Generation() == h2.Generation() {
		t.Error("generation did not change across reuse")
	}
	if tb.Valid(h1) {
		t.Error("old handle considered valid after slot reuse")
	}
	v, ok := tb.Get(h2)
	if !ok || v != 2 {
		t.Errorf("Get(h2) = (%d, %v), want (2, true)", v, ok)
	}
}

func TestFabricatedHandleRejected(t *testing.T) {
	tb := handle.NewTable[int](handle.Image)
	tb.Alloc(7)

	fab := handle.Handle(0xdeadbeef)
	if tb.Valid(fab) {
		t.Error("Valid accepted a fabricated handle")
	}
	if _, ok := tb.Get(fab); ok {
		t.Error("Get succeeded on a fabricated handle")
	}
	if _, ok := tb.Free(fab); ok {
		t.Error("Free succeeded on a fabricated handle")
	}
}

func TestWithMutatesOnlyValid(t *testing.T) {
	tb := handle.NewTable[int](handle.Buffer)
	h := tb.Alloc(1)

	ok := tb.With(h, func(v *int) { *v = 2 })
	if !ok {
		t.Fatal("With reported failure for a live handle")
	}
	v, _ := tb.Get(h)
	if v != 2 {
		t.Errorf("value = %d, want 2", v)
	}

	tb.Free(h)
	called := false
	ok = tb.With(h, func(v *int) { called = true })
	if ok || called {
		t.Error("With ran fn for a stale handle")
	}
}

func TestRange(t *testing.T) {
	tb := handle.NewTable[int](handle.Buffer)
	h1 := tb.Alloc(1)
	h2 := tb.Alloc(2)
	tb.Free(h1)
	h3 := tb.Alloc(3)

	seen := map[handle.Handle]int{}
	tb.Range(func(h handle.Handle, v *int) bool {
		seen[h] = *v
		return true
	})
	if len(seen) != 2 {
		t.Fatalf("Range visited %d handles, want 2", len(seen))
	}
	if seen[h2] != 2 || seen[h3] != 3 {
		t.Errorf("Range contents = %v", seen)
	}
}
