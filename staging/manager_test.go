// Copyright 2026 The RHI Authors. All rights reserved.

package staging_test

import (
	"testing"
	"time"

	"github.com/karlsen-gfx/rhi/driver"
	_ "github.com/karlsen-gfx/rhi/driver/fake"
	"github.com/karlsen-gfx/rhi/staging"
)

func openFakeGPU(t *testing.T) driver.GPU {
	t.Helper()
	var drv driver.Driver
	for _, d := range driver.Drivers() {
		if d.Name() == "fake" {
			drv = d
		}
	}
	if drv == nil {
		t.Fatal("fake driver not registered")
	}
	gpu, err := drv.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return gpu
}

func TestStageUploadCopiesImmediately(t *testing.T) {
	m, err := staging.NewManager(openFakeGPU(t), 2, 1<<20, time.Second)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	data := []byte("hello staging")
	region, err := m.StageUpload(0, data)
	if err != nil {
		t.Fatalf("StageUpload: %v", err)
	}
	if string(region.Bytes()) != string(data) {
		t.Errorf("region bytes = %q, want %q", region.Bytes(), data)
	}
}

func TestDownloadCallbackFiresOnDrain(t *testing.T) {
	m, err := staging.NewManager(openFakeGPU(t), 2, 1<<20, time.Second)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	region, err := m.ReserveDownload(0, 16, nil)
	if err != nil {
		t.Fatalf("ReserveDownload: %v", err)
	}
	copy(region.Bytes(), []byte("device wrote this"))

	var got []byte
	fired := false
	_, err = m.ReserveDownload(1, 8, func(b []byte) {
		fired = true
		got = append([]byte(nil), b...)
	})
	if err != nil {
		t.Fatalf("ReserveDownload: %v", err)
	}
	if fired {
		t.Fatal("callback fired before Drain")
	}

	m.Drain(1)
	if !fired {
		t.Fatal("callback did not fire after Drain")
	}
	if len(got) != 8 {
		t.Errorf("callback view length = %d, want 8", len(got))
	}
}

func TestDrainResetsRingForReuse(t *testing.T) {
	m, err := staging.NewManager(openFakeGPU(t), 1, 1<<16, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	big := make([]byte, 1<<16)
	if _, err := m.StageUpload(0, big); err != nil {
		t.Fatalf("StageUpload: %v", err)
	}
	// Ring is now full; a second reservation without a Drain in
	// between must time out.
	_, err = m.StageUpload(0, []byte{1, 2, 3})
	if err != staging.ErrExhausted {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}

	m.Drain(0)
	if _, err := m.StageUpload(0, []byte{1, 2, 3}); err != nil {
		t.Fatalf("StageUpload after Drain: %v", err)
	}
}

func TestReservationLargerThanRingRejected(t *testing.T) {
	m, err := staging.NewManager(openFakeGPU(t), 1, 1<<16, time.Second)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	_, err = m.StageUpload(0, make([]byte, 1<<20))
	if err != staging.ErrTooLarge {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
}
