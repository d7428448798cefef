// Labeling session: one image, its class layers, history and the pending candidate
package session

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"pixel-label-engine/internal/algorithms"
	"pixel-label-engine/internal/config"
	"pixel-label-engine/internal/core"
	labelio "pixel-label-engine/internal/io"
	"pixel-label-engine/internal/layers"
	"pixel-label-engine/internal/metrics"
)

// StatusCode is the result of a commit as reported to the front end
type StatusCode int

const (
	StatusOK             StatusCode = 0
	StatusFailed         StatusCode = -1
	StatusNoState        StatusCode = -2
	StatusEmptyCandidate StatusCode = -3
)

func (s StatusCode) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "failed"
	case StatusNoState:
		return "no state"
	case StatusEmptyCandidate:
		return "empty candidate"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// LoadResult reports how the labels of a loaded image were initialized
type LoadResult struct {
	LabelsLoaded    bool
	PostfixFallback bool
	Classes         int
}

// Session is the single-threaded state behind one labeling front end
type Session struct {
	cfg       *config.Config
	logger    logrus.FieldLogger
	store     *labelio.LabelStore
	evaluator *metrics.Evaluator

	image    *core.Image
	resolver *core.Resolver
	history  *layers.History
	engine   *layers.Engine

	activeClass   int
	candidate     core.Candidate
	candidateMode algorithms.Mode
}

// New creates an empty session. A nil cfg uses the defaults.
func New(cfg *config.Config, logger logrus.FieldLogger) *Session {
	if cfg == nil {
		cfg = config.Default()
	}
	history := layers.NewHistory(cfg.Labels.HistoryCapacity)

	return &Session{
		cfg:         cfg,
		logger:      logger,
		store:       labelio.NewLabelStore(logger, cfg.Labels.MaxSeparateClasses),
		evaluator:   metrics.NewEvaluator(),
		history:     history,
		engine:      layers.NewEngine(history, cfg.Labels.MaxClasses, logger),
		activeClass: 1,
	}
}

// LoadImage reads the image at path and the labels saved for it. Missing or
// unreadable labels fall back to the default empty set.
func (s *Session) LoadImage(path string) (LoadResult, error) {
	mat, err := s.store.LoadImage(path)
	if err != nil {
		return LoadResult{}, err
	}
	defer mat.Close()

	if err := s.LoadImageMat(mat, path); err != nil {
		return LoadResult{}, err
	}

	set, fallback, err := s.store.LoadForImage(path, s.cfg.Persistence, s.image.Width(), s.image.Height())
	if err != nil {
		if !errors.Is(err, labelio.ErrNotFound) {
			s.logger.WithError(err).WithField("image", path).Warn("Could not load labels, starting empty")
		}
		return LoadResult{Classes: s.ClassCount()}, nil
	}
	defer set.Close()

	set.EnsureCapacity(s.cfg.Labels.DefaultClassCount - 1)
	s.history.Reset()
	s.history.Push(set)

	return LoadResult{LabelsLoaded: true, PostfixFallback: fallback, Classes: set.Len()}, nil
}

// LoadImageMat starts a new labeling of mat with default empty class masks.
// The session keeps its own copy of mat.
func (s *Session) LoadImageMat(mat gocv.Mat, path string) error {
	img, err := core.NewImage(mat, path)
	if err != nil {
		return err
	}

	if s.image != nil {
		s.image.Close()
	}
	s.DiscardCandidate()

	s.image = img
	s.resolver = core.NewResolver(img.Width(), img.Height(), s.logger)
	s.activeClass = 1

	initial := layers.NewClassLayerSet(img.Width(), img.Height(), s.cfg.Labels.DefaultClassCount)
	defer initial.Close()
	s.history.Reset()
	s.history.Push(initial)

	s.logger.WithFields(logrus.Fields{
		"filepath": path,
		"width":    img.Width(),
		"height":   img.Height(),
		"history":  s.history.Capacity(),
	}).Info("Labeling session initialized")

	return nil
}

// ChangeActiveClass selects the class that commits go to. Indices outside
// [0, max classes) are rejected.
func (s *Session) ChangeActiveClass(index int) bool {
	if index < 0 || index >= s.cfg.Labels.MaxClasses {
		s.logger.WithFields(logrus.Fields{
			"class": index,
			"max":   s.cfg.Labels.MaxClasses,
		}).Warn("Rejected active class change")
		return false
	}

	s.activeClass = index
	if current, err := s.history.Current(); err == nil {
		current.EnsureCapacity(index)
	}
	return true
}

// ActiveClass returns the class commits go to
func (s *Session) ActiveClass() int {
	return s.activeClass
}

// Evaluate resolves shape at the given zoom and runs the named producer on it.
// The result replaces the pending candidate.
func (s *Session) Evaluate(shape core.Shape, zoom float64, producer string, params map[string]interface{}) error {
	if s.image == nil {
		return layers.ErrNoState
	}

	p, ok := algorithms.Get(producer)
	if !ok {
		return fmt.Errorf("producer not found: %s", producer)
	}
	if params == nil {
		params = p.GetDefaultParams()
	}
	if err := algorithms.ValidateParameters(producer, params); err != nil {
		return fmt.Errorf("invalid parameters for %s: %w", producer, err)
	}

	roi, err := s.resolver.Resolve(shape, zoom)
	if err != nil {
		return err
	}
	defer roi.Close()

	candidate, err := algorithms.Produce(producer, s.image.Mat(), roi, params)
	if err != nil {
		s.logger.WithError(err).WithField("producer", producer).Debug("Producer returned no candidate")
		return err
	}

	s.SetCandidate(candidate, p.Mode())

	s.logger.WithFields(logrus.Fields{
		"producer": producer,
		"shape":    shape.Kind.String(),
		"bounds":   candidate.Bounds.String(),
	}).Debug("Candidate produced")

	return nil
}

// SetCandidate replaces the pending candidate. The session takes ownership of c.
func (s *Session) SetCandidate(c core.Candidate, mode algorithms.Mode) {
	s.DiscardCandidate()
	s.candidate = c
	s.candidateMode = mode
}

// Candidate returns the pending candidate, owned by the session
func (s *Session) Candidate() (core.Candidate, algorithms.Mode) {
	return s.candidate, s.candidateMode
}

// DiscardCandidate drops the pending candidate
func (s *Session) DiscardCandidate() {
	s.candidate.Close()
	s.candidate = core.Candidate{}
	s.candidateMode = algorithms.ModeIncremental
}

// CommitCandidate merges the pending candidate into the active class, or with
// setWholeLabelSet rebuilds every class from the candidate's class raster. The
// candidate's mode must match: only replace candidates rebuild the set and only
// incremental candidates are merged.
func (s *Session) CommitCandidate(overwrite, setWholeLabelSet, multiple bool) StatusCode {
	if _, err := s.history.Current(); err != nil {
		return StatusNoState
	}

	var err error
	if setWholeLabelSet {
		if s.candidate.Mask.Ptr() == nil || s.candidate.Mask.Empty() {
			return StatusEmptyCandidate
		}
		if s.candidateMode != algorithms.ModeReplace {
			s.logger.Warn("Rejected full replace with an incremental candidate")
			return StatusFailed
		}
		_, err = s.engine.ReplaceAll(s.candidate.Mask, s.activeClass+1)
	} else {
		if s.candidateMode == algorithms.ModeReplace {
			s.logger.Warn("Rejected merge of a class raster candidate")
			return StatusFailed
		}
		policy := layers.Policy{
			OverwriteOtherClasses: overwrite,
			MultipleLabelsAllowed: multiple,
		}
		_, err = s.engine.Commit(s.activeClass, s.candidate, policy)
	}

	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, layers.ErrNoState):
		return StatusNoState
	case errors.Is(err, core.ErrEmptyRegion):
		return StatusEmptyCandidate
	default:
		s.logger.WithError(err).Warn("Commit failed")
		return StatusFailed
	}
}

// Undo steps back one history slot. It returns false when the previous slot
// never held a snapshot, e.g. right after loading an image, instead of rotating
// into it.
func (s *Session) Undo() bool {
	if err := s.history.Undo(); err != nil {
		s.logger.WithError(err).Debug("Nothing to undo")
		return false
	}
	s.logger.WithField("slot", s.history.Index()).Info("Undo")
	return true
}

// HistoryIndex returns the active history slot, -1 without state
func (s *Session) HistoryIndex() int {
	return s.history.Index()
}

// GetClassMask returns a copy of the mask of class index, growing the current set
// with empty masks when needed. The caller owns the returned mask.
func (s *Session) GetClassMask(index int) (gocv.Mat, error) {
	if index < 0 || index >= s.cfg.Labels.MaxClasses {
		return gocv.NewMat(), fmt.Errorf("%w: %d", layers.ErrIndexOutOfRange, index)
	}

	current, err := s.history.Current()
	if err != nil {
		return gocv.NewMat(), err
	}
	current.EnsureCapacity(index)

	mask, err := current.Mask(index)
	if err != nil {
		return gocv.NewMat(), err
	}
	return mask.Clone(), nil
}

// ImageMetadata describes the loaded image
func (s *Session) ImageMetadata() (core.ImageMetadata, error) {
	if s.image == nil {
		return core.ImageMetadata{}, layers.ErrNoState
	}
	return s.image.Metadata(), nil
}

// ImageMat returns a copy of the loaded image owned by the caller
func (s *Session) ImageMat() (gocv.Mat, error) {
	if s.image == nil {
		return gocv.NewMat(), layers.ErrNoState
	}
	return s.image.Clone(), nil
}

// ProducerInfo describes one registered producer for the front end
type ProducerInfo struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	Replace     bool                       `json:"replace"`
	Defaults    map[string]interface{}     `json:"defaults"`
	Parameters  []algorithms.ParameterInfo `json:"parameters"`
}

// Producers lists the registered producers by category
func (s *Session) Producers() map[string][]ProducerInfo {
	all := algorithms.GetAllProducers()
	catalogue := make(map[string][]ProducerInfo)

	for category, names := range algorithms.GetProducersByCategory() {
		for _, name := range names {
			p, ok := all[name]
			if !ok {
				continue
			}
			catalogue[category] = append(catalogue[category], ProducerInfo{
				Name:        name,
				Description: p.GetDescription(),
				Replace:     p.Mode() == algorithms.ModeReplace,
				Defaults:    p.GetDefaultParams(),
				Parameters:  p.GetParameterInfo(),
			})
		}
	}
	return catalogue
}

// SupportedFormats lists the image formats LoadImage accepts
func (s *Session) SupportedFormats() []string {
	return labelio.GetSupportedFormats()
}

// MetricInfo describes the metrics reported by CompareClasses
func (s *Session) MetricInfo() map[string]metrics.MetricInfo {
	return s.evaluator.GetMetricInfo()
}

// ClassCount returns the number of masks in the current set, 0 without state
func (s *Session) ClassCount() int {
	current, err := s.history.Current()
	if err != nil {
		return 0
	}
	return current.Len()
}

// SaveLabels writes the current set to path
func (s *Session) SaveLabels(path string, perClassFiles bool) error {
	current, err := s.history.Current()
	if err != nil {
		return err
	}
	return s.store.SaveLabelSet(current, path, perClassFiles)
}

// SaveForImage writes the current set into the mask directory next to the image
// and returns the label path
func (s *Session) SaveForImage() (string, error) {
	if s.image == nil {
		return "", layers.ErrNoState
	}
	current, err := s.history.Current()
	if err != nil {
		return "", err
	}
	return s.store.SaveForImage(current, s.image.Filepath(), s.cfg.Persistence)
}

// CompareClasses measures how well class b agrees with class a
func (s *Session) CompareClasses(a, b int) (metrics.Report, error) {
	current, err := s.history.Current()
	if err != nil {
		return metrics.Report{}, err
	}

	reference, err := current.Mask(a)
	if err != nil {
		return metrics.Report{}, err
	}
	candidate, err := current.Mask(b)
	if err != nil {
		return metrics.Report{}, err
	}

	return s.evaluator.Compare(reference, candidate)
}

// Close releases the image, the candidate and every snapshot
func (s *Session) Close() {
	s.DiscardCandidate()
	s.history.Reset()
	if s.image != nil {
		s.image.Close()
		s.image = nil
	}
}
