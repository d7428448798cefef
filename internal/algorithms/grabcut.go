package algorithms

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"pixel-label-engine/internal/core"
)

// grabcut mask labels
const (
	gcBackground         = 0
	gcForeground         = 1
	gcProbableBackground = 2
	gcProbableForeground = 3
)

// GrabCut segments the area around brush strokes, using foreground strokes as hard
// foreground and the others as hard background
type GrabCut struct{}

// NewGrabCut creates a new grabcut producer
func NewGrabCut() *GrabCut {
	return &GrabCut{}
}

func (g *GrabCut) Produce(img gocv.Mat, roi core.ROI, params map[string]interface{}) (core.Candidate, error) {
	if img.Empty() {
		return core.Candidate{}, fmt.Errorf("input image is empty")
	}
	if len(roi.Strokes) == 0 {
		return core.Candidate{}, fmt.Errorf("%w: grabcut needs brush strokes", core.ErrInvalidShape)
	}
	if err := g.Validate(params); err != nil {
		return core.Candidate{}, err
	}

	width, height := img.Cols(), img.Rows()
	bounds := strokeBounds(roi.Strokes).Intersect(image.Rect(0, 0, width, height))
	if bounds.Empty() {
		return core.Candidate{}, core.ErrEmptyRegion
	}

	mask := gocv.Zeros(height, width, gocv.MatTypeCV8UC1)
	defer mask.Close()

	inner := mask.Region(bounds)
	inner.SetTo(gocv.NewScalar(gcProbableBackground, 0, 0, 0))
	inner.Close()

	foreground := 0
	for _, s := range roi.Strokes {
		label := uint8(gcBackground)
		if s.Foreground {
			label = gcForeground
			foreground++
		}
		gocv.Circle(&mask, s.Center, s.Radius, labelColor(label), -1)
	}
	if foreground == 0 {
		center := image.Pt(bounds.Min.X+bounds.Dx()/2, bounds.Min.Y+bounds.Dy()/2)
		gocv.Circle(&mask, center, intParam(params, "seed_radius", 10), labelColor(gcForeground), -1)
	}

	src := toBGR(img)
	defer src.Close()
	bgdModel := gocv.NewMat()
	defer bgdModel.Close()
	fgdModel := gocv.NewMat()
	defer fgdModel.Close()

	gocv.GrabCut(src, &mask, bounds, &bgdModel, &fgdModel, intParam(params, "iterations", 1), gocv.GCInitWithMask)

	result := foregroundOf(mask)
	if k := intParam(params, "open_kernel", 0); k > 1 {
		refined := openMask(result, k)
		result.Close()
		result = refined
	}

	if gocv.CountNonZero(result) == 0 {
		result.Close()
		return core.Candidate{}, core.ErrEmptyRegion
	}

	return core.Candidate{Mask: result, Bounds: bounds}, nil
}

// foregroundOf returns a 0/255 mask of the definite and probable foreground labels
func foregroundOf(mask gocv.Mat) gocv.Mat {
	fg := gocv.NewMat()
	probable := gocv.NewMat()
	defer probable.Close()

	definite := gocv.NewScalar(gcForeground, 0, 0, 0)
	maybe := gocv.NewScalar(gcProbableForeground, 0, 0, 0)
	gocv.InRangeWithScalar(mask, definite, definite, &fg)
	gocv.InRangeWithScalar(mask, maybe, maybe, &probable)
	gocv.BitwiseOr(fg, probable, &fg)
	return fg
}

// strokeBounds is the union of the bounding squares of all discs
func strokeBounds(strokes []core.Stroke) image.Rectangle {
	var r image.Rectangle
	for _, s := range strokes {
		disc := image.Rect(s.Center.X-s.Radius, s.Center.Y-s.Radius, s.Center.X+s.Radius+1, s.Center.Y+s.Radius+1)
		r = r.Union(disc)
	}
	return r
}

func labelColor(v uint8) color.RGBA {
	return color.RGBA{R: v, G: v, B: v, A: v}
}

func (g *GrabCut) GetDefaultParams() map[string]interface{} {
	return map[string]interface{}{
		"iterations":  1.0,
		"seed_radius": 10.0,
		"open_kernel": 0.0,
	}
}

func (g *GrabCut) GetName() string {
	return "GrabCut"
}

func (g *GrabCut) GetDescription() string {
	return "Graph cut segmentation seeded by foreground and background strokes"
}

func (g *GrabCut) Validate(params map[string]interface{}) error {
	if val, ok := params["iterations"]; ok {
		if v, ok := val.(float64); ok {
			if v < 1 || v > 10 {
				return fmt.Errorf("iterations must be between 1 and 10")
			}
		}
	}

	if val, ok := params["seed_radius"]; ok {
		if v, ok := val.(float64); ok {
			if v < 1 || v > 100 {
				return fmt.Errorf("seed_radius must be between 1 and 100")
			}
		}
	}

	return validateKernelSize(params, "open_kernel")
}

func (g *GrabCut) GetParameterInfo() []ParameterInfo {
	return []ParameterInfo{
		{
			Name:        "iterations",
			Type:        "int",
			Min:         1.0,
			Max:         10.0,
			Default:     1.0,
			Description: "Number of grabcut iterations",
		},
		{
			Name:        "seed_radius",
			Type:        "int",
			Min:         1.0,
			Max:         100.0,
			Default:     10.0,
			Description: "Radius of the foreground seed added when no foreground stroke exists",
		},
		kernelSizeInfo("open_kernel", "Opening kernel size applied to the result, 0 disables"),
	}
}

func (g *GrabCut) Mode() Mode {
	return ModeIncremental
}
