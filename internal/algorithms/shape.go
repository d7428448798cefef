package algorithms

import (
	"fmt"

	"gocv.io/x/gocv"

	"pixel-label-engine/internal/core"
)

// ShapeSelection selects exactly the pixels covered by the resolved shape
type ShapeSelection struct{}

// NewShapeSelection creates a new shape selection producer
func NewShapeSelection() *ShapeSelection {
	return &ShapeSelection{}
}

func (s *ShapeSelection) Produce(img gocv.Mat, roi core.ROI, params map[string]interface{}) (core.Candidate, error) {
	if img.Empty() {
		return core.Candidate{}, fmt.Errorf("input image is empty")
	}
	if roi.Kind == core.ShapeMarkerPoints {
		return core.Candidate{}, fmt.Errorf("%w: markers do not cover an area", core.ErrInvalidShape)
	}
	if roi.Rect.Empty() {
		return core.Candidate{}, core.ErrEmptyRegion
	}

	local := roi.ShapeMask()
	defer local.Close()

	if gocv.CountNonZero(local) == 0 {
		return core.Candidate{}, core.ErrEmptyRegion
	}

	return roi.Place(local, img.Cols(), img.Rows()), nil
}

func (s *ShapeSelection) GetDefaultParams() map[string]interface{} {
	return map[string]interface{}{}
}

func (s *ShapeSelection) GetName() string {
	return "Shape"
}

func (s *ShapeSelection) GetDescription() string {
	return "Selects every pixel inside the drawn shape"
}

func (s *ShapeSelection) Validate(params map[string]interface{}) error {
	return nil
}

func (s *ShapeSelection) GetParameterInfo() []ParameterInfo {
	return []ParameterInfo{}
}

func (s *ShapeSelection) Mode() Mode {
	return ModeIncremental
}
