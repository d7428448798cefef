// Class layers: one binary mask per semantic class
package layers

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

var (
	// ErrNoState is returned when no label set has been initialized
	ErrNoState = errors.New("no label state initialized")
	// ErrIndexOutOfRange is returned for class indices outside the allowed range
	ErrIndexOutOfRange = errors.New("class index out of range")
)

const (
	// MaskSet is the stored value of a set pixel
	MaskSet = 255
	// BackgroundClass is the class index meaning "no class / erase"
	BackgroundClass = 0
)

// ClassLayerSet is an ordered collection of same-sized CV_8UC1 masks, index 0 being
// the background. The set only grows; Len is always at least the highest used index + 1.
type ClassLayerSet struct {
	width  int
	height int
	masks  []gocv.Mat
}

// NewClassLayerSet creates count empty masks of the given size
func NewClassLayerSet(width, height, count int) *ClassLayerSet {
	s := &ClassLayerSet{
		width:  width,
		height: height,
		masks:  make([]gocv.Mat, 0, count),
	}
	s.grow(count)
	return s
}

// NewClassLayerSetFromMasks takes ownership of masks. All masks must be CV_8UC1 of
// the given size.
func NewClassLayerSetFromMasks(width, height int, masks []gocv.Mat) (*ClassLayerSet, error) {
	for i, m := range masks {
		if m.Rows() != height || m.Cols() != width {
			return nil, fmt.Errorf("class %d is %dx%d, expected %dx%d", i, m.Cols(), m.Rows(), width, height)
		}
		if m.Type() != gocv.MatTypeCV8UC1 {
			return nil, fmt.Errorf("class %d has type %v, expected CV_8UC1", i, m.Type())
		}
	}
	return &ClassLayerSet{
		width:  width,
		height: height,
		masks:  append([]gocv.Mat(nil), masks...),
	}, nil
}

// FromLabelRaster builds one mask per value in [0, max] of a single-channel label
// raster, where a pixel of value v belongs to class v.
func FromLabelRaster(raster gocv.Mat) (*ClassLayerSet, error) {
	if raster.Empty() {
		return nil, fmt.Errorf("label raster is empty")
	}
	if raster.Channels() != 1 {
		return nil, fmt.Errorf("label raster must have one channel, got %d", raster.Channels())
	}

	_, maxVal, _, _ := gocv.MinMaxLoc(raster)
	maxLabel := int(maxVal)
	if maxLabel < 0 {
		maxLabel = 0
	}

	s := &ClassLayerSet{
		width:  raster.Cols(),
		height: raster.Rows(),
		masks:  make([]gocv.Mat, maxLabel+1),
	}
	for v := 0; v <= maxLabel; v++ {
		s.masks[v] = labelMask(raster, v)
	}
	return s, nil
}

// labelMask returns a 0/255 mask of the pixels equal to v
func labelMask(raster gocv.Mat, v int) gocv.Mat {
	mask := gocv.NewMat()
	value := gocv.NewScalar(float64(v), 0, 0, 0)
	gocv.InRangeWithScalar(raster, value, value, &mask)
	return mask
}

func (s *ClassLayerSet) Width() int  { return s.width }
func (s *ClassLayerSet) Height() int { return s.height }

// Len returns the number of masks, background included
func (s *ClassLayerSet) Len() int {
	return len(s.masks)
}

// EnsureCapacity grows the set with empty masks so that index is valid
func (s *ClassLayerSet) EnsureCapacity(index int) {
	if index >= len(s.masks) {
		s.grow(index + 1)
	}
}

func (s *ClassLayerSet) grow(count int) {
	for len(s.masks) < count {
		s.masks = append(s.masks, gocv.Zeros(s.height, s.width, gocv.MatTypeCV8UC1))
	}
}

// Mask returns the mask of class index without copying. The set keeps ownership;
// callers must not close it.
func (s *ClassLayerSet) Mask(index int) (gocv.Mat, error) {
	if index < 0 || index >= len(s.masks) {
		return gocv.Mat{}, fmt.Errorf("%w: %d (have %d classes)", ErrIndexOutOfRange, index, len(s.masks))
	}
	return s.masks[index], nil
}

// PixelCount returns the number of set pixels of class index; 0 for unknown classes
func (s *ClassLayerSet) PixelCount(index int) int {
	if index < 0 || index >= len(s.masks) {
		return 0
	}
	return gocv.CountNonZero(s.masks[index])
}

// Clone returns a deep copy that shares no pixel memory with s
func (s *ClassLayerSet) Clone() *ClassLayerSet {
	c := &ClassLayerSet{
		width:  s.width,
		height: s.height,
		masks:  make([]gocv.Mat, len(s.masks)),
	}
	for i, m := range s.masks {
		c.masks[i] = m.Clone()
	}
	return c
}

// Equal reports whether both sets hold the same pixels. Masks missing from the
// shorter set count as empty.
func (s *ClassLayerSet) Equal(other *ClassLayerSet) bool {
	if s.width != other.width || s.height != other.height {
		return false
	}

	n := max(len(s.masks), len(other.masks))
	diff := gocv.NewMat()
	defer diff.Close()

	for i := 0; i < n; i++ {
		switch {
		case i >= len(s.masks):
			if gocv.CountNonZero(other.masks[i]) != 0 {
				return false
			}
		case i >= len(other.masks):
			if gocv.CountNonZero(s.masks[i]) != 0 {
				return false
			}
		default:
			gocv.BitwiseXor(s.masks[i], other.masks[i], &diff)
			if gocv.CountNonZero(diff) != 0 {
				return false
			}
		}
	}
	return true
}

// LabelRaster flattens the set into one raster of class indices.
// Higher classes win where masks overlap.
func (s *ClassLayerSet) LabelRaster() gocv.Mat {
	raster := gocv.Zeros(s.height, s.width, gocv.MatTypeCV8UC1)
	for i := 1; i < len(s.masks); i++ {
		if gocv.CountNonZero(s.masks[i]) == 0 {
			continue
		}
		value := gocv.Zeros(s.height, s.width, gocv.MatTypeCV8UC1)
		value.SetTo(gocv.NewScalar(float64(i), 0, 0, 0))
		value.CopyToWithMask(&raster, s.masks[i])
		value.Close()
	}
	return raster
}

// Close releases all masks
func (s *ClassLayerSet) Close() {
	for _, m := range s.masks {
		m.Close()
	}
	s.masks = nil
}
