package io

import (
	"errors"
	"image"
	goio "io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"pixel-label-engine/internal/config"
	"pixel-label-engine/internal/core"
	"pixel-label-engine/internal/layers"
)

func newTestStore() *LabelStore {
	logger := logrus.New()
	logger.SetOutput(goio.Discard)
	return NewLabelStore(logger, 30)
}

// sampleSet has class 1 on the top rows and class 3 in the bottom-right corner
func sampleSet() *layers.ClassLayerSet {
	set := layers.NewClassLayerSet(20, 10, 4)
	fill := func(class int, r image.Rectangle) {
		m, _ := set.Mask(class)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				m.SetUCharAt(y, x, layers.MaskSet)
			}
		}
	}
	fill(1, image.Rect(0, 0, 20, 3))
	fill(3, image.Rect(15, 5, 20, 10))
	return set
}

func TestLabelSetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore()

	set := sampleSet()
	defer set.Close()

	path := filepath.Join(dir, "labels")
	if err := store.SaveLabelSet(set, path, false); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := os.Stat(path + ".png"); err != nil {
		t.Fatalf("expected .png to be appended: %v", err)
	}

	loaded, err := store.LoadLabelSet(path + ".png")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	defer loaded.Close()

	if loaded.Len() != 4 {
		t.Errorf("expected 4 classes, got %d", loaded.Len())
	}
	for _, class := range []int{1, 2, 3} {
		if got, want := loaded.PixelCount(class), set.PixelCount(class); got != want {
			t.Errorf("class %d: expected %d pixels, got %d", class, want, got)
		}
	}
	if got := loaded.PixelCount(0); got != 200-60-25 {
		t.Errorf("expected %d background pixels, got %d", 200-60-25, got)
	}
}

func TestLoadLabelSetErrors(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore()

	if _, err := store.LoadLabelSet(filepath.Join(dir, "missing.png")); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	garbage := filepath.Join(dir, "garbage.png")
	if err := os.WriteFile(garbage, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.LoadLabelSet(garbage); !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}

func TestSeparateMasksRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore()

	set := sampleSet()
	defer set.Close()

	if err := store.SaveLabelSet(set, filepath.Join(dir, "img.png"), true); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	for _, file := range []string{"0/img.png", "1/img1.png", "3/img3.png"} {
		if _, err := os.Stat(filepath.Join(dir, file)); err != nil {
			t.Errorf("expected %s to exist", file)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "2")); !os.IsNotExist(err) {
		t.Error("empty class 2 must not be written")
	}

	loaded, err := store.LoadSeparateMasks(dir, "img", 20, 10)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	defer loaded.Close()

	if loaded.Len() != 4 {
		t.Fatalf("expected 4 classes, got %d", loaded.Len())
	}
	if loaded.PixelCount(2) != 0 {
		t.Error("missing class must load as an empty mask")
	}
	for _, class := range []int{1, 3} {
		if got, want := loaded.PixelCount(class), set.PixelCount(class); got != want {
			t.Errorf("class %d: expected %d pixels, got %d", class, want, got)
		}
	}
	if got := loaded.PixelCount(0); got != 200-60-25 {
		t.Errorf("background must cover every unlabeled pixel, got %d", got)
	}
}

func TestLoadSeparateMasksSkipsWrongSize(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore()

	set := sampleSet()
	defer set.Close()
	if err := store.SaveLabelSet(set, filepath.Join(dir, "img.png"), true); err != nil {
		t.Fatal(err)
	}

	if _, err := store.LoadSeparateMasks(dir, "img", 40, 40); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound when no mask fits, got %v", err)
	}
	if _, err := store.LoadSeparateMasks(dir, "other", 20, 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown name, got %v", err)
	}
}

func TestLoadForImagePostfixFallback(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore()
	imagePath := filepath.Join(dir, "photo.jpg")

	set := sampleSet()
	defer set.Close()

	cfg := config.Default().Persistence
	path, err := store.SaveForImage(set, imagePath, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "mask", "photo.png") {
		t.Errorf("unexpected save path %s", path)
	}

	cfg.MaskPostfix = "_mask"
	loaded, fallback, err := store.LoadForImage(imagePath, cfg, 20, 10)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	defer loaded.Close()
	if !fallback {
		t.Error("expected fallback to the name without postfix")
	}
	for _, class := range []int{1, 3} {
		if loaded.PixelCount(class) != set.PixelCount(class) {
			t.Errorf("class %d differs after reload", class)
		}
	}

	if _, err := store.SaveForImage(set, imagePath, cfg); err != nil {
		t.Fatal(err)
	}
	again, fallback, err := store.LoadForImage(imagePath, cfg, 20, 10)
	if err != nil {
		t.Fatal(err)
	}
	defer again.Close()
	if fallback {
		t.Error("postfixed mask exists, no fallback expected")
	}
}

func TestLoadForImageRejectsWrongSize(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore()
	imagePath := filepath.Join(dir, "photo.png")

	set := sampleSet()
	defer set.Close()

	cfg := config.Default().Persistence
	if _, err := store.SaveForImage(set, imagePath, cfg); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name          string
		width, height int
	}{
		{"larger image", 40, 20},
		{"same width", 20, 11},
		{"same height", 19, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loaded, _, err := store.LoadForImage(imagePath, cfg, tt.width, tt.height)
			if !errors.Is(err, core.ErrSizeMismatch) {
				t.Errorf("expected ErrSizeMismatch, got %v", err)
			}
			if loaded != nil {
				loaded.Close()
				t.Error("no label set expected on size mismatch")
			}
		})
	}
}

func TestLoadForImageSeparate(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore()
	imagePath := filepath.Join(dir, "photo.png")

	set := sampleSet()
	defer set.Close()

	cfg := config.Default().Persistence
	cfg.SeparateMasks = true
	cfg.MaskPostfix = "_m"
	if _, err := store.SaveForImage(set, imagePath, cfg); err != nil {
		t.Fatal(err)
	}

	loaded, _, err := store.LoadForImage(imagePath, cfg, 20, 10)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	defer loaded.Close()
	if loaded.PixelCount(3) != 25 {
		t.Errorf("expected 25 pixels of class 3, got %d", loaded.PixelCount(3))
	}
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore()

	img := gocv.NewMatWithSize(8, 12, gocv.MatTypeCV8UC3)
	defer img.Close()
	img.SetTo(gocv.NewScalar(10, 20, 30, 0))
	path := filepath.Join(dir, "pic.png")
	if !gocv.IMWrite(path, img) {
		t.Fatal("failed to write fixture")
	}

	loaded, err := store.LoadImage(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer loaded.Close()
	if loaded.Cols() != 12 || loaded.Rows() != 8 || loaded.Channels() != 3 {
		t.Errorf("unexpected image %dx%dx%d", loaded.Cols(), loaded.Rows(), loaded.Channels())
	}

	if _, err := store.LoadImage(filepath.Join(dir, "none.png")); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.LoadImage(filepath.Join(dir, "doc.txt")); err == nil {
		t.Error("expected unsupported format error")
	}
}

func TestSaveLabelSetWithoutState(t *testing.T) {
	if err := newTestStore().SaveLabelSet(nil, filepath.Join(t.TempDir(), "x.png"), false); !errors.Is(err, layers.ErrNoState) {
		t.Errorf("expected ErrNoState, got %v", err)
	}
}
