package io

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// decodeImage reads path with the Go image decoders. It backs up IMRead for
// files OpenCV was built without a codec for.
func decodeImage(path string) (image.Image, error) {
	if img, err := imaging.Open(path, imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".webp") {
		if img, err := webp.Decode(f); err == nil {
			return img, nil
		}
		if _, err := f.Seek(0, 0); err != nil {
			return nil, err
		}
	}

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("unknown image format: %w", err)
	}
	return img, nil
}

// decodeColorMat decodes path into a BGR Mat
func decodeColorMat(path string) (gocv.Mat, error) {
	img, err := decodeImage(path)
	if err != nil {
		return gocv.NewMat(), err
	}
	return gocv.ImageToMatRGB(img)
}

// decodeGrayMat decodes path into a single-channel Mat. Non-gray images keep
// their first channel, which is where label values live.
func decodeGrayMat(path string) (gocv.Mat, error) {
	img, err := decodeImage(path)
	if err != nil {
		return gocv.NewMat(), err
	}

	gray, ok := img.(*image.Gray)
	if !ok {
		nrgba := imaging.Clone(img)
		gray = image.NewGray(nrgba.Bounds())
		for i := 0; i < len(gray.Pix); i++ {
			gray.Pix[i] = nrgba.Pix[i*4]
		}
	}
	return gocv.ImageGrayToMatGray(gray)
}
