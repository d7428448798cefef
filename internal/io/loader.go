// Image and label set loading and saving
package io

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"pixel-label-engine/internal/layers"
)

var (
	// ErrNotFound is returned when an image or label file does not exist
	ErrNotFound = errors.New("file not found")
	// ErrDecode is returned when a file exists but cannot be decoded
	ErrDecode = errors.New("failed to decode file")
)

// LabelStore reads and writes images and class layer sets
type LabelStore struct {
	logger             logrus.FieldLogger
	maxSeparateClasses int
}

func NewLabelStore(logger logrus.FieldLogger, maxSeparateClasses int) *LabelStore {
	return &LabelStore{
		logger:             logger,
		maxSeparateClasses: maxSeparateClasses,
	}
}

func (ls *LabelStore) LoadImage(path string) (gocv.Mat, error) {
	ls.logger.WithField("filepath", path).Debug("Loading image")

	if !isSupportedImageFormat(path) {
		return gocv.NewMat(), fmt.Errorf("unsupported image format: %s", path)
	}
	if !fileExists(path) {
		return gocv.NewMat(), fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		decoded, err := decodeColorMat(path)
		if err != nil {
			return gocv.NewMat(), fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
		}
		ls.logger.WithField("filepath", path).Debug("Image decoded without OpenCV")
		mat = decoded
	}

	ls.logger.WithFields(logrus.Fields{
		"filepath": path,
		"width":    mat.Cols(),
		"height":   mat.Rows(),
		"channels": mat.Channels(),
	}).Info("Image loaded successfully")

	return mat, nil
}

// LoadLabelSet reads a single-channel label raster and builds one mask per class value
func (ls *LabelStore) LoadLabelSet(path string) (*layers.ClassLayerSet, error) {
	if !fileExists(path) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	raster, err := readGray(path)
	if err != nil {
		return nil, err
	}
	defer raster.Close()

	set, err := layers.FromLabelRaster(raster)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}

	ls.logger.WithFields(logrus.Fields{
		"filepath": path,
		"classes":  set.Len(),
	}).Info("Label set loaded")

	return set, nil
}

// LoadSeparateMasks reads per-class masks from <dir>/<i>/<name>.png or
// <dir>/<i>/<name><i>.png. Classes without a file become empty masks.
func (ls *LabelStore) LoadSeparateMasks(dir, name string, width, height int) (*layers.ClassLayerSet, error) {
	found := make(map[int]gocv.Mat)
	highest := -1

	for i := 0; i < ls.maxSeparateClasses; i++ {
		path, ok := separateMaskFile(filepath.Join(dir, strconv.Itoa(i)), name, i)
		if !ok {
			continue
		}

		mask, err := readGray(path)
		if err != nil {
			ls.logger.WithError(err).WithField("filepath", path).Warn("Skipping undecodable class mask")
			continue
		}
		if mask.Rows() != height || mask.Cols() != width {
			ls.logger.WithFields(logrus.Fields{
				"filepath": path,
				"width":    mask.Cols(),
				"height":   mask.Rows(),
			}).Warn("Skipping class mask with wrong size")
			mask.Close()
			continue
		}

		gocv.Threshold(mask, &mask, 0, layers.MaskSet, gocv.ThresholdBinary)
		found[i] = mask
		highest = i
	}

	if highest < 0 {
		return nil, fmt.Errorf("%w: no class masks for %s in %s", ErrNotFound, name, dir)
	}

	masks := make([]gocv.Mat, highest+1)
	for i := range masks {
		if m, ok := found[i]; ok {
			masks[i] = m
		} else {
			masks[i] = gocv.Zeros(height, width, gocv.MatTypeCV8UC1)
		}
	}

	set, err := layers.NewClassLayerSetFromMasks(width, height, masks)
	if err != nil {
		for _, m := range masks {
			m.Close()
		}
		return nil, err
	}

	ls.logger.WithFields(logrus.Fields{
		"dir":     dir,
		"name":    name,
		"classes": set.Len(),
		"files":   len(found),
	}).Info("Separate class masks loaded")

	return set, nil
}

// SaveLabelSet writes set either as one label raster at path (".png" is appended when
// missing) or, with perClassFiles, as one binary mask per non-empty class in
// <parent>/<i>/<stem><i>.png plus the background in <parent>/0/<stem>.png
func (ls *LabelStore) SaveLabelSet(set *layers.ClassLayerSet, path string, perClassFiles bool) error {
	if set == nil || set.Len() == 0 {
		return layers.ErrNoState
	}

	if perClassFiles {
		return ls.saveSeparate(set, path)
	}

	if !strings.EqualFold(filepath.Ext(path), ".png") {
		path += ".png"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create mask directory: %w", err)
	}

	raster := set.LabelRaster()
	defer raster.Close()

	if !gocv.IMWrite(path, raster) {
		return fmt.Errorf("failed to save label raster: %s", path)
	}

	ls.logger.WithFields(logrus.Fields{
		"filepath": path,
		"classes":  set.Len(),
	}).Info("Label set saved")

	return nil
}

func (ls *LabelStore) saveSeparate(set *layers.ClassLayerSet, path string) error {
	parent := filepath.Dir(path)
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	labeled := gocv.Zeros(set.Height(), set.Width(), gocv.MatTypeCV8UC1)
	defer labeled.Close()

	written := 0
	for i := 1; i < set.Len(); i++ {
		if set.PixelCount(i) == 0 {
			continue
		}
		mask, err := set.Mask(i)
		if err != nil {
			return err
		}

		file := filepath.Join(parent, strconv.Itoa(i), stem+strconv.Itoa(i)+".png")
		if err := writeMask(file, mask); err != nil {
			return err
		}
		gocv.BitwiseOr(labeled, mask, &labeled)
		written++
	}

	background := gocv.NewMat()
	defer background.Close()
	gocv.BitwiseNot(labeled, &background)

	if err := writeMask(filepath.Join(parent, "0", stem+".png"), background); err != nil {
		return err
	}

	ls.logger.WithFields(logrus.Fields{
		"dir":     parent,
		"name":    stem,
		"classes": written,
	}).Info("Class masks saved separately")

	return nil
}

func writeMask(path string, mask gocv.Mat) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create class directory: %w", err)
	}
	if !gocv.IMWrite(path, mask) {
		return fmt.Errorf("failed to save class mask: %s", path)
	}
	return nil
}

// readGray reads a single-channel raster, falling back to the Go decoders
func readGray(path string) (gocv.Mat, error) {
	mat := gocv.IMRead(path, gocv.IMReadGrayScale)
	if !mat.Empty() {
		return mat, nil
	}
	mat.Close()

	decoded, err := decodeGrayMat(path)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	return decoded, nil
}

// separateMaskFile looks for name.png, then name<i>.png inside dir
func separateMaskFile(dir, name string, class int) (string, bool) {
	for _, candidate := range []string{name + ".png", name + strconv.Itoa(class) + ".png"} {
		path := filepath.Join(dir, candidate)
		if fileExists(path) {
			return path, true
		}
	}
	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func isSupportedImageFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	supportedFormats := []string{".jpg", ".jpeg", ".png", ".tiff", ".tif", ".bmp", ".webp"}

	for _, format := range supportedFormats {
		if ext == format {
			return true
		}
	}

	return false
}

func GetSupportedFormats() []string {
	return []string{"JPEG", "PNG", "TIFF", "BMP", "WebP"}
}
