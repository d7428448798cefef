// Morphological cleanup of candidate masks
package algorithms

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var maskWhite = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// refineMask applies a morphological operation with an elliptic kernel and returns a
// new mask. A kernel size below 2 returns an unchanged copy.
func refineMask(mask gocv.Mat, op gocv.MorphType, kernelSize int) gocv.Mat {
	if kernelSize < 2 {
		return mask.Clone()
	}

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(kernelSize, kernelSize))
	defer kernel.Close()

	output := gocv.NewMat()
	gocv.MorphologyEx(mask, &output, op, kernel)
	return output
}

// closeMask connects nearby fragments of a mask
func closeMask(mask gocv.Mat, kernelSize int) gocv.Mat {
	return refineMask(mask, gocv.MorphClose, kernelSize)
}

// openMask removes specks smaller than the kernel
func openMask(mask gocv.Mat, kernelSize int) gocv.Mat {
	return refineMask(mask, gocv.MorphOpen, kernelSize)
}

// fillContours fills the holes of every outer contour of mask in place.
// Returns false when the mask has no set pixels.
func fillContours(mask *gocv.Mat) bool {
	if gocv.CountNonZero(*mask) == 0 {
		return false
	}

	contours := gocv.FindContours(*mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	if contours.Size() == 0 {
		return false
	}

	gocv.FillPoly(mask, contours, maskWhite)
	return true
}

func validateKernelSize(params map[string]interface{}, key string) error {
	if val, ok := params[key]; ok {
		if v, ok := val.(float64); ok {
			if v < 0 || v > 31 {
				return fmt.Errorf("%s must be between 0 and 31", key)
			}
		}
	}
	return nil
}

func kernelSizeInfo(name, description string) ParameterInfo {
	return ParameterInfo{
		Name:        name,
		Type:        "int",
		Min:         0.0,
		Max:         31.0,
		Default:     0.0,
		Description: description,
	}
}
