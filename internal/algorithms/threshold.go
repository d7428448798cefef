package algorithms

import (
	"fmt"

	"gocv.io/x/gocv"

	"pixel-label-engine/internal/core"
)

// ColorThreshold selects the pixels inside the shape whose color lies within a
// per-channel range, in BGR or HSV
type ColorThreshold struct{}

// NewColorThreshold creates a new color threshold producer
func NewColorThreshold() *ColorThreshold {
	return &ColorThreshold{}
}

var thresholdChannels = []string{"ch0", "ch1", "ch2"}

func (c *ColorThreshold) Produce(img gocv.Mat, roi core.ROI, params map[string]interface{}) (core.Candidate, error) {
	if img.Empty() {
		return core.Candidate{}, fmt.Errorf("input image is empty")
	}
	if roi.Kind == core.ShapeMarkerPoints {
		return core.Candidate{}, fmt.Errorf("%w: threshold needs an area selection", core.ErrInvalidShape)
	}
	if err := c.Validate(params); err != nil {
		return core.Candidate{}, err
	}

	region := img.Region(roi.Rect)
	src := toBGR(region)
	region.Close()
	defer src.Close()

	if stringParam(params, "color_space", "bgr") == "hsv" {
		gocv.CvtColor(src, &src, gocv.ColorBGRToHSV)
	}

	lo := make([]float64, 3)
	hi := make([]float64, 3)
	for i, ch := range thresholdChannels {
		lo[i] = floatParam(params, "lower_"+ch, 0)
		hi[i] = floatParam(params, "upper_"+ch, 255)
	}

	local := gocv.NewMat()
	defer func() { local.Close() }()
	gocv.InRangeWithScalar(src,
		gocv.NewScalar(lo[0], lo[1], lo[2], 0),
		gocv.NewScalar(hi[0], hi[1], hi[2], 0),
		&local)

	shape := roi.ShapeMask()
	defer shape.Close()
	gocv.BitwiseAnd(local, shape, &local)

	if boolParam(params, "fill_region", false) {
		fillContours(&local)
	}

	if k := intParam(params, "close_kernel", 0); k > 1 {
		refined := closeMask(local, k)
		local.Close()
		local = refined
	}
	if k := intParam(params, "open_kernel", 0); k > 1 {
		refined := openMask(local, k)
		local.Close()
		local = refined
	}

	// morphology can spill past the shape outline
	gocv.BitwiseAnd(local, shape, &local)

	if gocv.CountNonZero(local) == 0 {
		return core.Candidate{}, core.ErrEmptyRegion
	}

	return roi.Place(local, img.Cols(), img.Rows()), nil
}

func (c *ColorThreshold) GetDefaultParams() map[string]interface{} {
	params := map[string]interface{}{
		"color_space":  "bgr",
		"fill_region":  false,
		"close_kernel": 0.0,
		"open_kernel":  0.0,
	}
	for _, ch := range thresholdChannels {
		params["lower_"+ch] = 0.0
		params["upper_"+ch] = 255.0
	}
	return params
}

func (c *ColorThreshold) GetName() string {
	return "Color Threshold"
}

func (c *ColorThreshold) GetDescription() string {
	return "Per-channel color range inside the drawn shape"
}

func (c *ColorThreshold) Validate(params map[string]interface{}) error {
	if val, ok := params["color_space"]; ok {
		if v, ok := val.(string); ok {
			if v != "bgr" && v != "hsv" {
				return fmt.Errorf("color_space must be 'bgr' or 'hsv'")
			}
		}
	}

	for _, ch := range thresholdChannels {
		lo := floatParam(params, "lower_"+ch, 0)
		hi := floatParam(params, "upper_"+ch, 255)
		if lo < 0 || lo > 255 || hi < 0 || hi > 255 {
			return fmt.Errorf("%s bounds must be between 0 and 255", ch)
		}
		if lo > hi {
			return fmt.Errorf("lower_%s must not exceed upper_%s", ch, ch)
		}
	}

	if err := validateKernelSize(params, "close_kernel"); err != nil {
		return err
	}
	return validateKernelSize(params, "open_kernel")
}

func (c *ColorThreshold) GetParameterInfo() []ParameterInfo {
	info := []ParameterInfo{
		{
			Name:        "color_space",
			Type:        "enum",
			Default:     "bgr",
			Description: "Color space the channel ranges apply to",
			Options:     []string{"bgr", "hsv"},
		},
	}
	for _, ch := range thresholdChannels {
		info = append(info,
			ParameterInfo{Name: "lower_" + ch, Type: "int", Min: 0.0, Max: 255.0, Default: 0.0, Description: "Lower bound of channel " + ch},
			ParameterInfo{Name: "upper_" + ch, Type: "int", Min: 0.0, Max: 255.0, Default: 255.0, Description: "Upper bound of channel " + ch},
		)
	}
	return append(info,
		ParameterInfo{Name: "fill_region", Type: "bool", Default: false, Description: "Fill holes inside outer contours"},
		kernelSizeInfo("close_kernel", "Closing kernel size, 0 disables"),
		kernelSizeInfo("open_kernel", "Opening kernel size, 0 disables"),
	)
}

func (c *ColorThreshold) Mode() Mode {
	return ModeIncremental
}
