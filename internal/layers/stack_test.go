package layers

import (
	"errors"
	"image"
	"testing"

	"gocv.io/x/gocv"
)

func TestNewClassLayerSet(t *testing.T) {
	s := NewClassLayerSet(40, 30, 3)
	defer s.Close()

	if s.Len() != 3 {
		t.Fatalf("expected 3 masks, got %d", s.Len())
	}
	for i := 0; i < s.Len(); i++ {
		m := mustMask(s, i)
		if m.Cols() != 40 || m.Rows() != 30 {
			t.Errorf("mask %d has size %dx%d", i, m.Cols(), m.Rows())
		}
		if s.PixelCount(i) != 0 {
			t.Errorf("mask %d is not empty", i)
		}
	}
}

func TestEnsureCapacityGrowsOnly(t *testing.T) {
	s := NewClassLayerSet(10, 10, 3)
	defer s.Close()

	s.EnsureCapacity(6)
	if s.Len() != 7 {
		t.Fatalf("expected 7 masks, got %d", s.Len())
	}
	s.EnsureCapacity(2)
	if s.Len() != 7 {
		t.Errorf("set must never shrink, got %d", s.Len())
	}
}

func TestMaskOutOfRange(t *testing.T) {
	s := NewClassLayerSet(10, 10, 3)
	defer s.Close()

	for _, i := range []int{-1, 3} {
		if _, err := s.Mask(i); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("index %d: expected ErrIndexOutOfRange, got %v", i, err)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewClassLayerSet(10, 10, 2)
	defer s.Close()

	c := s.Clone()
	defer c.Close()

	m := mustMask(s, 1)
	m.SetUCharAt(3, 3, MaskSet)

	if c.PixelCount(1) != 0 {
		t.Error("mutating the original changed the clone")
	}
	if c.Equal(s) {
		t.Error("sets should differ after mutation")
	}
}

func TestEqualTreatsMissingMasksAsEmpty(t *testing.T) {
	a := NewClassLayerSet(10, 10, 2)
	defer a.Close()
	b := NewClassLayerSet(10, 10, 5)
	defer b.Close()

	if !a.Equal(b) || !b.Equal(a) {
		t.Error("empty trailing masks should not affect equality")
	}

	m := mustMask(b, 4)
	m.SetUCharAt(0, 0, MaskSet)
	if a.Equal(b) {
		t.Error("non-empty trailing mask must break equality")
	}
}

func TestFromLabelRaster(t *testing.T) {
	raster := gocv.Zeros(10, 10, gocv.MatTypeCV8UC1)
	defer raster.Close()
	fillRect(&raster, image.Rect(0, 0, 5, 10), 1)
	fillRect(&raster, image.Rect(5, 0, 10, 2), 3)

	s, err := FromLabelRaster(raster)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	if s.Len() != 4 {
		t.Fatalf("expected 4 masks, got %d", s.Len())
	}
	want := map[int]int{0: 40, 1: 50, 2: 0, 3: 10}
	for class, count := range want {
		if got := s.PixelCount(class); got != count {
			t.Errorf("class %d: expected %d pixels, got %d", class, count, got)
		}
	}
	if !isSet(s, 3, 9, 1) || isSet(s, 3, 9, 2) {
		t.Error("class 3 pixels at the wrong place")
	}
}

func TestLabelRasterHigherClassWins(t *testing.T) {
	s := NewClassLayerSet(10, 10, 3)
	defer s.Close()

	m1 := mustMask(s, 1)
	fillRect(&m1, image.Rect(0, 0, 6, 6), MaskSet)
	m2 := mustMask(s, 2)
	fillRect(&m2, image.Rect(4, 4, 10, 10), MaskSet)

	raster := s.LabelRaster()
	defer raster.Close()

	if raster.GetUCharAt(0, 0) != 1 {
		t.Error("expected class 1 at (0,0)")
	}
	if raster.GetUCharAt(5, 5) != 2 {
		t.Error("expected class 2 to win the overlap")
	}
	if raster.GetUCharAt(0, 9) != 0 {
		t.Error("expected unlabeled pixel to be 0")
	}
}

func TestNewClassLayerSetFromMasksValidates(t *testing.T) {
	good := gocv.Zeros(10, 10, gocv.MatTypeCV8UC1)
	bad := gocv.Zeros(5, 10, gocv.MatTypeCV8UC1)
	defer bad.Close()

	if _, err := NewClassLayerSetFromMasks(10, 10, []gocv.Mat{bad}); err == nil {
		t.Error("expected size error")
	}

	s, err := NewClassLayerSetFromMasks(10, 10, []gocv.Mat{good})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()
	if s.Len() != 1 {
		t.Errorf("expected 1 mask, got %d", s.Len())
	}
}
