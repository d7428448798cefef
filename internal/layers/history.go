package layers

import (
	"errors"
	"fmt"
)

// ErrHistoryUnderflow is returned by Undo before anything has been pushed
var ErrHistoryUnderflow = errors.New("no history available for undo")

// History is a fixed-capacity ring of label set snapshots. With the default capacity
// of two, Undo toggles between the last two committed states.
type History struct {
	slots   []*ClassLayerSet
	current int
}

// NewHistory creates an empty ring with the given capacity
func NewHistory(capacity int) *History {
	if capacity < 1 {
		panic(fmt.Sprintf("layers: history capacity must be positive, got %d", capacity))
	}
	return &History{
		slots:   make([]*ClassLayerSet, capacity),
		current: -1,
	}
}

// Capacity returns the number of slots
func (h *History) Capacity() int {
	return len(h.slots)
}

// Index returns the active slot, -1 before the first push
func (h *History) Index() int {
	return h.current
}

// Push advances to the next slot and stores a deep copy of set there.
// The snapshot previously held in that slot is released.
func (h *History) Push(set *ClassLayerSet) {
	h.current = (h.current + 1) % len(h.slots)
	if old := h.slots[h.current]; old != nil {
		old.Close()
	}
	h.slots[h.current] = set.Clone()
}

// Undo moves back one slot without copying data. A slot that never received a
// snapshot is not entered, so the history cannot fall back to an uninitialized state.
func (h *History) Undo() error {
	if h.current == -1 {
		return ErrHistoryUnderflow
	}
	prev := (h.current - 1 + len(h.slots)) % len(h.slots)
	if h.slots[prev] == nil {
		return ErrHistoryUnderflow
	}
	h.current = prev
	return nil
}

// Current returns the active snapshot, or ErrNoState when there is none.
// The returned set stays owned by the history.
func (h *History) Current() (*ClassLayerSet, error) {
	if h.current == -1 || h.slots[h.current] == nil {
		return nil, ErrNoState
	}
	return h.slots[h.current], nil
}

// Reset releases every snapshot and returns to the uninitialized state
func (h *History) Reset() {
	for i, s := range h.slots {
		if s != nil {
			s.Close()
			h.slots[i] = nil
		}
	}
	h.current = -1
}
