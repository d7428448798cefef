package layers

import (
	"errors"
	"testing"
)

func TestHistoryUndoUnderflow(t *testing.T) {
	h := NewHistory(2)
	if err := h.Undo(); !errors.Is(err, ErrHistoryUnderflow) {
		t.Errorf("expected ErrHistoryUnderflow, got %v", err)
	}
	if _, err := h.Current(); !errors.Is(err, ErrNoState) {
		t.Errorf("expected ErrNoState, got %v", err)
	}
	if h.Index() != -1 {
		t.Errorf("expected index -1, got %d", h.Index())
	}
}

func TestHistoryPushStoresCopy(t *testing.T) {
	h := NewHistory(2)
	defer h.Reset()

	s := NewClassLayerSet(10, 10, 3)
	defer s.Close()
	h.Push(s)

	m := mustMask(s, 1)
	m.SetUCharAt(1, 1, MaskSet)

	current, err := h.Current()
	if err != nil {
		t.Fatal(err)
	}
	if current.PixelCount(1) != 0 {
		t.Error("later mutation leaked into the stored snapshot")
	}
}

func TestHistoryToggle(t *testing.T) {
	h := NewHistory(2)
	defer h.Reset()

	first := NewClassLayerSet(10, 10, 2)
	defer first.Close()
	second := first.Clone()
	defer second.Close()
	m := mustMask(second, 1)
	m.SetUCharAt(0, 0, MaskSet)

	h.Push(first)
	h.Push(second)
	if h.Index() != 1 {
		t.Fatalf("expected index 1, got %d", h.Index())
	}

	for i, want := range []*ClassLayerSet{first, second, first} {
		if err := h.Undo(); err != nil {
			t.Fatalf("undo %d failed: %v", i, err)
		}
		current, _ := h.Current()
		if !current.Equal(want) {
			t.Errorf("undo %d: unexpected snapshot", i)
		}
	}
}

func TestHistoryWrapsAndEvicts(t *testing.T) {
	h := NewHistory(3)
	defer h.Reset()

	for i := 0; i < 5; i++ {
		s := NewClassLayerSet(4, 4, i+1)
		h.Push(s)
		s.Close()
	}
	if h.Index() != 1 {
		t.Fatalf("expected index 1 after 5 pushes, got %d", h.Index())
	}
	current, _ := h.Current()
	if current.Len() != 5 {
		t.Errorf("expected newest snapshot with 5 masks, got %d", current.Len())
	}

	if err := h.Undo(); err != nil {
		t.Fatal(err)
	}
	current, _ = h.Current()
	if current.Len() != 4 {
		t.Errorf("expected previous snapshot with 4 masks, got %d", current.Len())
	}
}

func TestHistoryUndoDoesNotEnterEmptySlot(t *testing.T) {
	h := NewHistory(2)
	defer h.Reset()

	s := NewClassLayerSet(4, 4, 3)
	defer s.Close()
	h.Push(s)

	if err := h.Undo(); !errors.Is(err, ErrHistoryUnderflow) {
		t.Errorf("expected ErrHistoryUnderflow, got %v", err)
	}
	if h.Index() != 0 {
		t.Errorf("index must stay 0, got %d", h.Index())
	}
}

func TestHistoryReset(t *testing.T) {
	h := NewHistory(2)
	s := NewClassLayerSet(4, 4, 3)
	defer s.Close()
	h.Push(s)

	h.Reset()
	if h.Index() != -1 {
		t.Errorf("expected index -1 after reset, got %d", h.Index())
	}
	if _, err := h.Current(); !errors.Is(err, ErrNoState) {
		t.Errorf("expected ErrNoState, got %v", err)
	}
}

func TestNewHistoryPanicsOnZeroCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	NewHistory(0)
}
