package audio

import (
	"math"
	"testing"
)

func TestTap_SnapshotBeforeAnyPush(t *testing.T) {
	tap := NewTap(8)

	dst := []float64{1, 2, 3, 4}
	tap.Snapshot(dst)

	for i, v := range dst {
		if v != 0 {
			t.Errorf("Slot %d expected 0, got %v", i, v)
		}
	}
}

func TestTap_SnapshotReturnsNewestOldestFirst(t *testing.T) {
	tap := NewTap(4)
	tap.Push([]float64{1, 2, 3, 4, 5, 6})

	dst := make([]float64, 3)
	tap.Snapshot(dst)

	want := []float64{4, 5, 6}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("Slot %d expected %v, got %v", i, want[i], dst[i])
		}
	}
}

func TestTap_PartialFillZeroPads(t *testing.T) {
	tap := NewTap(8)
	tap.Push([]float64{0.5, 0.25})

	dst := make([]float64, 4)
	tap.Snapshot(dst)

	want := []float64{0, 0, 0.5, 0.25}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("Slot %d expected %v, got %v", i, want[i], dst[i])
		}
	}
}

func TestTap_PushPCM16Normalizes(t *testing.T) {
	tap := NewTap(4)

	// 0x7FFF little-endian, then 0x8000 (most negative).
	tap.PushPCM16([]byte{0xFF, 0x7F, 0x00, 0x80})

	dst := make([]float64, 2)
	tap.Snapshot(dst)

	if math.Abs(dst[0]-32767.0/32768.0) > 1e-9 {
		t.Errorf("Expected near 1.0 for max sample, got %v", dst[0])
	}
	if dst[1] != -1.0 {
		t.Errorf("Expected -1.0 for min sample, got %v", dst[1])
	}
}
