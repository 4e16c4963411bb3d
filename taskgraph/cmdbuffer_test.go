// Copyright 2026 The RHI Authors. All rights reserved.

package taskgraph

import (
	"testing"

	"github.com/karlsen-gfx/rhi/driver"
	"github.com/karlsen-gfx/rhi/handle"
)

// allValid treats every non-nil handle as live, so tests that
// don't exercise the resource manager don't need one.
type allValid struct{}

func (allValid) Valid(h handle.Handle) bool { return !h.IsNil() }

type rejectAll struct{}

func (rejectAll) Valid(handle.Handle) bool { return false }

var fakeBufTable = handle.NewTable[int](handle.Buffer)

// fakeBuffer allocates a fresh live handle; idx only disambiguates
// call sites, the table assigns the real index itself.
func fakeBuffer(idx uint32) handle.Handle {
	return fakeBufTable.Alloc(int(idx))
}

func TestBeginEndRenderPass(t *testing.T) {
	cb := Begin(allValid{}, Desc{Debug: "test"})
	pass := fakeBuffer(0)
	fb := fakeBuffer(1)

	id, err := cb.BeginRenderPass(BeginRenderPassDesc{Pass: pass, Framebuffer: fb})
	if err != nil {
		t.Fatalf("BeginRenderPass: %v", err)
	}
	if id != 0 {
		t.Fatalf("expected first task id 0, got %d", id)
	}
	if _, err := cb.BeginRenderPass(BeginRenderPassDesc{Pass: pass, Framebuffer: fb}); err != ErrRenderPassAlreadyOpen {
		t.Fatalf("expected ErrRenderPassAlreadyOpen, got %v", err)
	}
	if _, err := cb.EndRenderPass(); err != nil {
		t.Fatalf("EndRenderPass: %v", err)
	}
	if _, err := cb.EndRenderPass(); err != ErrNoOpenRenderPass {
		t.Fatalf("expected ErrNoOpenRenderPass, got %v", err)
	}
}

func TestDrawRequiresOpenRenderPass(t *testing.T) {
	cb := Begin(allValid{}, Desc{})
	if _, err := cb.Draw(DrawDesc{VertCnt: 3, InstCnt: 1}); err != ErrNoOpenRenderPass {
		t.Fatalf("expected ErrNoOpenRenderPass, got %v", err)
	}

	pass, fb := fakeBuffer(0), fakeBuffer(1)
	if _, err := cb.BeginRenderPass(BeginRenderPassDesc{Pass: pass, Framebuffer: fb}); err != nil {
		t.Fatal(err)
	}
	vb := fakeBuffer(2)
	id, err := cb.Draw(DrawDesc{VertexBuf: []handle.Handle{vb}, VertCnt: 3, InstCnt: 1})
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	tasks := cb.Tasks()
	if tasks[id].Kind != KindDraw {
		t.Fatalf("expected KindDraw, got %v", tasks[id].Kind)
	}
	if len(tasks[id].Accesses) != 1 || tasks[id].Accesses[0].Resource != vb {
		t.Fatalf("unexpected accesses: %+v", tasks[id].Accesses)
	}
	if !tasks[id].RenderPassInternal {
		t.Fatal("expected draw task to be marked RenderPassInternal")
	}
}

func TestInvalidHandleRejected(t *testing.T) {
	cb := Begin(rejectAll{}, Desc{})
	_, err := cb.CopyBuffer(CopyBufferDesc{From: fakeBuffer(0), To: fakeBuffer(1), Size: 16})
	if err != ErrInvalidHandle {
		t.Fatalf("expected ErrInvalidHandle, got %v", err)
	}
	if len(cb.Tasks()) != 0 {
		t.Fatal("a rejected access must not leave a partial task recorded")
	}
}

func TestDependsOnValidatesIds(t *testing.T) {
	cb := Begin(allValid{}, Desc{})
	id, err := cb.ClearBuffer(ClearBufferDesc{Dest: fakeBuffer(0), Size: 4})
	if err != nil {
		t.Fatal(err)
	}
	if err := cb.DependsOn(id, 99); err != ErrUnknownTask {
		t.Fatalf("expected ErrUnknownTask, got %v", err)
	}
	if err := cb.DependsOn(99, id); err != ErrUnknownTask {
		t.Fatalf("expected ErrUnknownTask, got %v", err)
	}
}

func TestFinishRejectsUnclosedRenderPass(t *testing.T) {
	cb := Begin(allValid{}, Desc{})
	if _, err := cb.BeginRenderPass(BeginRenderPassDesc{Pass: fakeBuffer(0), Framebuffer: fakeBuffer(1)}); err != nil {
		t.Fatal(err)
	}
	if _, err := cb.Finish(); err != ErrUnclosedRenderPass {
		t.Fatalf("expected ErrUnclosedRenderPass, got %v", err)
	}
}

func TestLifecycleStateMachine(t *testing.T) {
	cb := Begin(allValid{}, Desc{})
	if cb.State() != Recording {
		t.Fatalf("expected Recording, got %v", cb.State())
	}
	if _, err := cb.ClearBuffer(ClearBufferDesc{Dest: fakeBuffer(0), Size: 4}); err != nil {
		t.Fatal(err)
	}
	if err := cb.MarkExecuting(); err != nil {
		t.Fatalf("MarkExecuting: %v", err)
	}
	if cb.State() != Executing {
		t.Fatalf("expected Executing, got %v", cb.State())
	}
	if err := cb.MarkExecuting(); err != ErrAlreadyExecuted {
		t.Fatalf("expected ErrAlreadyExecuted, got %v", err)
	}
	if _, err := cb.ClearBuffer(ClearBufferDesc{Dest: fakeBuffer(0), Size: 4}); err != ErrNotRecording {
		t.Fatalf("expected ErrNotRecording once executing, got %v", err)
	}
	cb.MarkRetired()
	if cb.State() != Retired {
		t.Fatalf("expected Retired, got %v", cb.State())
	}
}

func TestPresentImageUsesPresentLayout(t *testing.T) {
	cb := Begin(allValid{}, Desc{})
	sc := fakeBuffer(0)
	id, err := cb.PresentImage(PresentImageDesc{Swapchain: sc, ImageIdx: 1})
	if err != nil {
		t.Fatal(err)
	}
	acc := cb.Tasks()[id].Accesses[0]
	if acc.Layout != driver.LPresent {
		t.Fatalf("expected LPresent, got %v", acc.Layout)
	}
}

func TestWaitForIsRecordedOnBegin(t *testing.T) {
	producer := Begin(allValid{}, Desc{Debug: "producer"})
	consumer := Begin(allValid{}, Desc{Debug: "consumer"}, producer)
	if len(consumer.WaitFor) != 1 || consumer.WaitFor[0] != producer {
		t.Fatalf("expected consumer to wait on producer, got %v", consumer.WaitFor)
	}
}
