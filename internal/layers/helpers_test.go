package layers

import (
	"image"
	"io"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"pixel-label-engine/internal/core"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fillRect sets every pixel of r in mask to value
func fillRect(mask *gocv.Mat, r image.Rectangle, value uint8) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			mask.SetUCharAt(y, x, value)
		}
	}
}

func rectCandidate(width, height int, r image.Rectangle) core.Candidate {
	mask := gocv.Zeros(height, width, gocv.MatTypeCV8UC1)
	fillRect(&mask, r, MaskSet)
	return core.Candidate{Mask: mask, Bounds: r}
}

func mustMask(s *ClassLayerSet, i int) gocv.Mat {
	m, err := s.Mask(i)
	if err != nil {
		panic(err)
	}
	return m
}

func isSet(s *ClassLayerSet, class, x, y int) bool {
	m := mustMask(s, class)
	return m.GetUCharAt(y, x) == MaskSet
}

// overlap counts pixels set in both masks
func overlap(a, b gocv.Mat) int {
	both := gocv.NewMat()
	defer both.Close()
	gocv.BitwiseAnd(a, b, &both)
	return gocv.CountNonZero(both)
}
