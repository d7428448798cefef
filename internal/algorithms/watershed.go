package algorithms

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"pixel-label-engine/internal/core"
)

const (
	// markerBoundary is the value watershed assigns to pixels between regions
	markerBoundary = -1
	// markerLimit bounds the marker values that map back to classes
	markerLimit = 500
)

// Watershed floods the whole image from class-tagged marker points. Its candidate is a
// class raster meant to replace the label set.
type Watershed struct{}

// NewWatershed creates a new watershed producer
func NewWatershed() *Watershed {
	return &Watershed{}
}

func (w *Watershed) Produce(img gocv.Mat, roi core.ROI, params map[string]interface{}) (core.Candidate, error) {
	if img.Empty() {
		return core.Candidate{}, fmt.Errorf("input image is empty")
	}
	if roi.Kind != core.ShapeMarkerPoints || len(roi.Markers) == 0 {
		return core.Candidate{}, fmt.Errorf("%w: watershed needs marker points", core.ErrInvalidShape)
	}
	if err := w.Validate(params); err != nil {
		return core.Candidate{}, err
	}

	radius := intParam(params, "marker_radius", 10)
	thickness := 1
	if boolParam(params, "fill_markers", false) {
		thickness = -1
	}

	src := toBGR(img)
	defer src.Close()

	markers := gocv.Zeros(img.Rows(), img.Cols(), gocv.MatTypeCV32SC1)
	defer markers.Close()
	for _, m := range roi.Markers {
		// watershed treats 0 as unknown, so classes are seeded as class+1
		gocv.Circle(&markers, m.Point, radius, markerColor(m.Class), thickness)
	}

	gocv.Watershed(src, &markers)

	raster, err := ClassRasterFromMarkers(markers)
	if err != nil {
		return core.Candidate{}, err
	}

	return core.Candidate{
		Mask:   raster,
		Bounds: image.Rect(0, 0, img.Cols(), img.Rows()),
	}, nil
}

// markerColor encodes class+1 in the first channel
func markerColor(class int) color.RGBA {
	v := uint8(min(max(class+1, 1), 255))
	return color.RGBA{R: v, G: v, B: v, A: v}
}

// ClassRasterFromMarkers converts a watershed marker image to a CV_8UC1 raster of
// class indices. Boundaries (-1), unknown pixels (<=0) and values above the marker
// limit map to 0; every other value v maps to class v-1.
func ClassRasterFromMarkers(markers gocv.Mat) (gocv.Mat, error) {
	if markers.Empty() {
		return gocv.NewMat(), fmt.Errorf("marker image is empty")
	}
	if markers.Type() != gocv.MatTypeCV32SC1 {
		return gocv.NewMat(), fmt.Errorf("marker image must be CV_32SC1, got %v", markers.Type())
	}

	raster := gocv.Zeros(markers.Rows(), markers.Cols(), gocv.MatTypeCV8UC1)
	for y := 0; y < markers.Rows(); y++ {
		for x := 0; x < markers.Cols(); x++ {
			v := markers.GetIntAt(y, x)
			if v == markerBoundary || v <= 0 || v > markerLimit {
				continue
			}
			class := v - 1
			if class > 255 {
				continue
			}
			raster.SetUCharAt(y, x, uint8(class))
		}
	}
	return raster, nil
}

func (w *Watershed) GetDefaultParams() map[string]interface{} {
	return map[string]interface{}{
		"marker_radius": 10.0,
		"fill_markers":  false,
	}
}

func (w *Watershed) GetName() string {
	return "Watershed"
}

func (w *Watershed) GetDescription() string {
	return "Marker-based watershed over the whole image"
}

func (w *Watershed) Validate(params map[string]interface{}) error {
	if val, ok := params["marker_radius"]; ok {
		if v, ok := val.(float64); ok {
			if v < 1 || v > 100 {
				return fmt.Errorf("marker_radius must be between 1 and 100")
			}
		}
	}
	return nil
}

func (w *Watershed) GetParameterInfo() []ParameterInfo {
	return []ParameterInfo{
		{
			Name:        "marker_radius",
			Type:        "int",
			Min:         1.0,
			Max:         100.0,
			Default:     10.0,
			Description: "Radius of the circle drawn around each marker",
		},
		{
			Name:        "fill_markers",
			Type:        "bool",
			Default:     false,
			Description: "Seed filled discs instead of circle outlines",
		},
	}
}

func (w *Watershed) Mode() Mode {
	return ModeReplace
}
