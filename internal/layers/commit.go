package layers

import (
	"fmt"
	"image"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"pixel-label-engine/internal/core"
)

// Policy selects how a commit treats pixels already owned by other classes
type Policy struct {
	OverwriteOtherClasses bool
	MultipleLabelsAllowed bool
}

// CommitResult summarizes a merge
type CommitResult struct {
	Class     int
	Added     int         // pixels of the active class after the merge minus before
	Reclaimed map[int]int // pixels removed from other classes, by class
	Rejected  int         // candidate pixels dropped because another class owns them
}

// AddRegionToClass merges candidate into class activeClass of a copy of current and
// returns the copy. current and candidate are left untouched.
//
// For every other class i that intersects the candidate exactly one rule applies:
//   - committing the background removes the intersection from class i;
//   - with single labels and no overwrite, class i keeps its pixels and the
//     candidate loses them (the background never keeps pixels this way);
//   - with single labels and overwrite, or when i is the background, class i
//     loses the intersection.
//
// With multiple labels allowed and a non-background target, other classes keep
// their pixels and the active class gains the whole candidate.
func AddRegionToClass(current *ClassLayerSet, activeClass int, candidate core.Candidate, policy Policy) (*ClassLayerSet, CommitResult, error) {
	result := CommitResult{Class: activeClass, Reclaimed: make(map[int]int)}

	if current == nil {
		return nil, result, ErrNoState
	}
	if activeClass < 0 {
		return nil, result, fmt.Errorf("%w: %d", ErrIndexOutOfRange, activeClass)
	}
	if candidate.IsEmpty() {
		return nil, result, core.ErrEmptyRegion
	}
	if candidate.Mask.Rows() != current.height || candidate.Mask.Cols() != current.width {
		return nil, result, fmt.Errorf("%w: candidate %dx%d, labels %dx%d", core.ErrSizeMismatch,
			candidate.Mask.Cols(), candidate.Mask.Rows(), current.width, current.height)
	}

	next := current.Clone()
	next.EnsureCapacity(activeClass)
	if next.Len() <= activeClass {
		panic(fmt.Sprintf("layers: set has %d masks after growing to class %d", next.Len(), activeClass))
	}

	before := next.PixelCount(activeClass)

	// pixels outside the bounds widen the merge to the whole image
	region := commitRegion(candidate.Bounds, current.width, current.height)
	candRegion := candidate.Mask.Region(region)
	if gocv.CountNonZero(candRegion) < gocv.CountNonZero(candidate.Mask) {
		candRegion.Close()
		region = image.Rect(0, 0, current.width, current.height)
		candRegion = candidate.Mask.Region(region)
	}

	// work is a binarized copy of the candidate inside region
	work := gocv.NewMat()
	gocv.Threshold(candRegion, &work, 0, MaskSet, gocv.ThresholdBinary)
	candRegion.Close()
	defer work.Close()

	inter := gocv.NewMat()
	defer inter.Close()

	for i := 0; i < next.Len(); i++ {
		if i == activeClass {
			continue
		}

		classRegion := next.masks[i].Region(region)
		gocv.BitwiseAnd(classRegion, work, &inter)
		n := gocv.CountNonZero(inter)
		if n == 0 {
			classRegion.Close()
			continue
		}

		switch {
		case activeClass == BackgroundClass:
			gocv.BitwiseXor(classRegion, inter, &classRegion)
			result.Reclaimed[i] = n
		case !policy.MultipleLabelsAllowed && !policy.OverwriteOtherClasses && i != BackgroundClass:
			gocv.BitwiseXor(work, inter, &work)
			result.Rejected += n
		case (!policy.MultipleLabelsAllowed && policy.OverwriteOtherClasses) || i == BackgroundClass:
			gocv.BitwiseXor(classRegion, inter, &classRegion)
			result.Reclaimed[i] = n
		}
		classRegion.Close()
	}

	activeRegion := next.masks[activeClass].Region(region)
	gocv.BitwiseOr(activeRegion, work, &activeRegion)
	activeRegion.Close()

	result.Added = next.PixelCount(activeClass) - before
	return next, result, nil
}

// SetSegmentationMasks builds a new set from a class-index raster, bypassing any
// conflict policy. The set has max(raster)+1 masks, padded to minCount. With a
// positive maxClasses, a raster holding a class at or above it is rejected.
func SetSegmentationMasks(width, height int, raster gocv.Mat, minCount, maxClasses int) (*ClassLayerSet, error) {
	if raster.Ptr() == nil || raster.Empty() {
		return nil, core.ErrEmptyRegion
	}
	if raster.Rows() != height || raster.Cols() != width {
		return nil, fmt.Errorf("%w: raster %dx%d, labels %dx%d", core.ErrSizeMismatch,
			raster.Cols(), raster.Rows(), width, height)
	}
	if maxClasses > 0 && raster.Channels() == 1 {
		_, maxVal, _, _ := gocv.MinMaxLoc(raster)
		if int(maxVal) >= maxClasses {
			return nil, fmt.Errorf("%w: raster holds class %d, limit %d", ErrIndexOutOfRange, int(maxVal), maxClasses)
		}
	}

	set, err := FromLabelRaster(raster)
	if err != nil {
		return nil, err
	}
	if minCount > 0 {
		set.EnsureCapacity(minCount - 1)
	}
	return set, nil
}

// commitRegion restricts per-class work to the candidate bounds; an unset or
// out-of-image rectangle falls back to the whole image.
func commitRegion(bounds image.Rectangle, width, height int) image.Rectangle {
	full := image.Rect(0, 0, width, height)
	r := bounds.Intersect(full)
	if r.Empty() {
		return full
	}
	return r
}

// Engine applies commits to a history. Classes at or above maxClasses are
// refused; zero means no limit.
type Engine struct {
	history    *History
	maxClasses int
	logger     logrus.FieldLogger
}

// NewEngine creates a commit engine over history
func NewEngine(history *History, maxClasses int, logger logrus.FieldLogger) *Engine {
	return &Engine{history: history, maxClasses: maxClasses, logger: logger}
}

// Commit merges candidate into activeClass of the current snapshot and pushes the result
func (e *Engine) Commit(activeClass int, candidate core.Candidate, policy Policy) (CommitResult, error) {
	current, err := e.history.Current()
	if err != nil {
		return CommitResult{Class: activeClass}, err
	}
	if e.maxClasses > 0 && activeClass >= e.maxClasses {
		return CommitResult{Class: activeClass}, fmt.Errorf("%w: %d, limit %d", ErrIndexOutOfRange, activeClass, e.maxClasses)
	}

	next, result, err := AddRegionToClass(current, activeClass, candidate, policy)
	if err != nil {
		return result, err
	}
	defer next.Close()

	e.history.Push(next)

	e.logger.WithFields(logrus.Fields{
		"class":     activeClass,
		"added":     result.Added,
		"rejected":  result.Rejected,
		"reclaimed": result.Reclaimed,
		"overwrite": policy.OverwriteOtherClasses,
		"multiple":  policy.MultipleLabelsAllowed,
		"slot":      e.history.Index(),
	}).Info("Committed region to class")

	return result, nil
}

// ReplaceAll rebuilds the label set from a class-index raster and pushes it
func (e *Engine) ReplaceAll(raster gocv.Mat, minCount int) (int, error) {
	current, err := e.history.Current()
	if err != nil {
		return 0, err
	}

	next, err := SetSegmentationMasks(current.width, current.height, raster, minCount, e.maxClasses)
	if err != nil {
		return 0, err
	}
	defer next.Close()

	e.history.Push(next)

	e.logger.WithFields(logrus.Fields{
		"classes": next.Len(),
		"slot":    e.history.Index(),
	}).Info("Replaced label set from segmentation")

	return next.Len(), nil
}
