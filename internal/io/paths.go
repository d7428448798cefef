package io

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"pixel-label-engine/internal/config"
	"pixel-label-engine/internal/core"
	"pixel-label-engine/internal/layers"
)

// MaskLocation is where the labels of one image are stored
type MaskLocation struct {
	Dir  string // <image dir>/<mask dir>
	Stem string // image file name without extension
}

// LocateMasks derives the mask location of imagePath
func LocateMasks(imagePath string, cfg config.PersistenceConfig) MaskLocation {
	base := filepath.Base(imagePath)
	return MaskLocation{
		Dir:  filepath.Join(filepath.Dir(imagePath), cfg.MaskDir),
		Stem: strings.TrimSuffix(base, filepath.Ext(base)),
	}
}

// LabelPath returns <dir>/<stem><postfix>.png
func (l MaskLocation) LabelPath(postfix string) string {
	return filepath.Join(l.Dir, l.Stem+postfix+".png")
}

// LoadForImage loads the saved labels of imagePath. A combined raster is looked up with
// the configured postfix first and without it second; fallback reports the second case.
// Labels whose size differs from width x height are rejected with core.ErrSizeMismatch.
func (ls *LabelStore) LoadForImage(imagePath string, cfg config.PersistenceConfig, width, height int) (*layers.ClassLayerSet, bool, error) {
	set, fallback, err := ls.loadForImage(imagePath, cfg, width, height)
	if err != nil {
		return nil, false, err
	}
	if set.Width() != width || set.Height() != height {
		set.Close()
		return nil, false, fmt.Errorf("%w: labels %dx%d, image %dx%d", core.ErrSizeMismatch,
			set.Width(), set.Height(), width, height)
	}
	return set, fallback, nil
}

func (ls *LabelStore) loadForImage(imagePath string, cfg config.PersistenceConfig, width, height int) (set *layers.ClassLayerSet, fallback bool, err error) {
	loc := LocateMasks(imagePath, cfg)

	if cfg.SeparateMasks {
		set, err = ls.LoadSeparateMasks(loc.Dir, loc.Stem+cfg.MaskPostfix, width, height)
		return set, false, err
	}

	set, err = ls.LoadLabelSet(loc.LabelPath(cfg.MaskPostfix))
	if err == nil || !errors.Is(err, ErrNotFound) || cfg.MaskPostfix == "" {
		return set, false, err
	}

	set, err = ls.LoadLabelSet(loc.LabelPath(""))
	if err == nil {
		ls.logger.WithFields(logrus.Fields{
			"image":   imagePath,
			"postfix": cfg.MaskPostfix,
		}).Warn("No mask with postfix, loaded mask named after the image")
	}
	return set, err == nil, err
}

// SaveForImage writes set next to imagePath in the configured mask directory
func (ls *LabelStore) SaveForImage(set *layers.ClassLayerSet, imagePath string, cfg config.PersistenceConfig) (string, error) {
	path := LocateMasks(imagePath, cfg).LabelPath(cfg.MaskPostfix)
	return path, ls.SaveLabelSet(set, path, cfg.SeparateMasks)
}
