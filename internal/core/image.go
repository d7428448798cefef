// Core image and candidate data structures
package core

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
)

// Image is the raster being labeled. It is fixed for the lifetime of a session.
type Image struct {
	original gocv.Mat
	filepath string
	metadata ImageMetadata
}

// ImageMetadata contains image information
type ImageMetadata struct {
	Width    int
	Height   int
	Channels int
	Type     gocv.MatType
	Format   string
}

// NewImage validates mat and stores a private copy of it
func NewImage(mat gocv.Mat, filepath string) (*Image, error) {
	if err := ValidateImage(mat); err != nil {
		return nil, err
	}

	return &Image{
		original: mat.Clone(),
		filepath: filepath,
		metadata: ImageMetadata{
			Width:    mat.Cols(),
			Height:   mat.Rows(),
			Channels: mat.Channels(),
			Type:     mat.Type(),
			Format:   getFormatFromPath(filepath),
		},
	}, nil
}

// Mat returns the stored raster. Callers must neither modify nor close it.
func (img *Image) Mat() gocv.Mat {
	return img.original
}

// Clone returns a copy of the raster owned by the caller
func (img *Image) Clone() gocv.Mat {
	return img.original.Clone()
}

func (img *Image) Width() int  { return img.metadata.Width }
func (img *Image) Height() int { return img.metadata.Height }

// Bounds returns the image rectangle [0,W)x[0,H)
func (img *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, img.metadata.Width, img.metadata.Height)
}

// Metadata returns image metadata
func (img *Image) Metadata() ImageMetadata {
	return img.metadata
}

// Filepath returns the path the image was loaded from
func (img *Image) Filepath() string {
	return img.filepath
}

// Close releases the raster
func (img *Image) Close() {
	if !img.original.Empty() {
		img.original.Close()
	}
}

// getFormatFromPath extracts image format from file path
func getFormatFromPath(path string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "unknown"
	}
	return strings.ToLower(ext)
}

// ValidateImage validates an OpenCV Mat for basic requirements
func ValidateImage(mat gocv.Mat) error {
	if mat.Empty() {
		return fmt.Errorf("image is empty")
	}

	if mat.Cols() <= 0 || mat.Rows() <= 0 {
		return fmt.Errorf("invalid dimensions: %dx%d", mat.Cols(), mat.Rows())
	}

	channels := mat.Channels()
	if channels != 1 && channels != 3 && channels != 4 {
		return fmt.Errorf("unsupported channel count: %d", channels)
	}

	// Check for reasonable size limits (prevent memory issues)
	const maxDimension = 16384
	if mat.Cols() > maxDimension || mat.Rows() > maxDimension {
		return fmt.Errorf("image too large: %dx%d (max: %d)", mat.Cols(), mat.Rows(), maxDimension)
	}

	return nil
}
