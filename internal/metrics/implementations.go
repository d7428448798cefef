// Concrete implementations of mask metrics
package metrics

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Confusion counts pixels by agreement, non-zero pixels being foreground
type Confusion struct {
	TruePositive  int `json:"tp"`
	FalsePositive int `json:"fp"`
	FalseNegative int `json:"fn"`
	TrueNegative  int `json:"tn"`
}

// NewConfusion compares candidate against reference
func NewConfusion(reference, candidate gocv.Mat) (Confusion, error) {
	if reference.Empty() || candidate.Empty() {
		return Confusion{}, fmt.Errorf("empty masks")
	}

	if reference.Rows() != candidate.Rows() || reference.Cols() != candidate.Cols() {
		return Confusion{}, fmt.Errorf("mask dimensions mismatch")
	}

	ref := ensureBinary(reference)
	defer ref.Close()
	cand := ensureBinary(candidate)
	defer cand.Close()

	both := gocv.NewMat()
	defer both.Close()
	gocv.BitwiseAnd(ref, cand, &both)

	refCount := gocv.CountNonZero(ref)
	candCount := gocv.CountNonZero(cand)
	tp := gocv.CountNonZero(both)
	total := ref.Rows() * ref.Cols()

	return Confusion{
		TruePositive:  tp,
		FalsePositive: candCount - tp,
		FalseNegative: refCount - tp,
		TrueNegative:  total - refCount - candCount + tp,
	}, nil
}

// Precision is tp / (tp + fp), 0 without candidate pixels
func (c Confusion) Precision() float64 {
	return ratio(c.TruePositive, c.TruePositive+c.FalsePositive)
}

// Recall is tp / (tp + fn), 0 without reference pixels
func (c Confusion) Recall() float64 {
	return ratio(c.TruePositive, c.TruePositive+c.FalseNegative)
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// ensureBinary returns a single-channel 0/255 copy of input
func ensureBinary(input gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	if input.Channels() == 1 {
		input.CopyTo(&gray)
	} else {
		gocv.CvtColor(input, &gray, gocv.ColorBGRToGray)
	}

	binary := gocv.NewMat()
	gocv.Threshold(gray, &binary, 0, 255, gocv.ThresholdBinary)
	gray.Close()

	return binary
}

// IoU implements intersection over union
type IoU struct{}

// NewIoU creates a new IoU metric
func NewIoU() *IoU {
	return &IoU{}
}

func (m *IoU) Calculate(reference, candidate gocv.Mat) (float64, error) {
	c, err := NewConfusion(reference, candidate)
	if err != nil {
		return 0, err
	}

	union := c.TruePositive + c.FalsePositive + c.FalseNegative
	if union == 0 {
		// two empty masks agree completely
		return 1, nil
	}
	return float64(c.TruePositive) / float64(union), nil
}

func (m *IoU) GetName() string {
	return "IoU"
}

func (m *IoU) GetDescription() string {
	return "Intersection over union of the two masks"
}

func (m *IoU) GetRange() (float64, float64) {
	return 0, 1
}

func (m *IoU) IsHigherBetter() bool {
	return true
}

// FMeasure implements the harmonic mean of precision and recall
type FMeasure struct{}

// NewFMeasure creates a new F-measure metric
func NewFMeasure() *FMeasure {
	return &FMeasure{}
}

func (f *FMeasure) Calculate(reference, candidate gocv.Mat) (float64, error) {
	c, err := NewConfusion(reference, candidate)
	if err != nil {
		return 0, err
	}

	precision := c.Precision()
	recall := c.Recall()

	if precision+recall == 0 {
		return 0, nil
	}

	return 2 * (precision * recall) / (precision + recall), nil
}

func (f *FMeasure) GetName() string {
	return "F-Measure"
}

func (f *FMeasure) GetDescription() string {
	return "Harmonic mean of precision and recall"
}

func (f *FMeasure) GetRange() (float64, float64) {
	return 0, 1
}

func (f *FMeasure) IsHigherBetter() bool {
	return true
}

// Precision implements the share of candidate pixels found in the reference
type Precision struct{}

// NewPrecision creates a new precision metric
func NewPrecision() *Precision {
	return &Precision{}
}

func (p *Precision) Calculate(reference, candidate gocv.Mat) (float64, error) {
	c, err := NewConfusion(reference, candidate)
	if err != nil {
		return 0, err
	}
	return c.Precision(), nil
}

func (p *Precision) GetName() string {
	return "Precision"
}

func (p *Precision) GetDescription() string {
	return "Share of candidate pixels that are also reference pixels"
}

func (p *Precision) GetRange() (float64, float64) {
	return 0, 1
}

func (p *Precision) IsHigherBetter() bool {
	return true
}

// Recall implements the share of reference pixels covered by the candidate
type Recall struct{}

// NewRecall creates a new recall metric
func NewRecall() *Recall {
	return &Recall{}
}

func (r *Recall) Calculate(reference, candidate gocv.Mat) (float64, error) {
	c, err := NewConfusion(reference, candidate)
	if err != nil {
		return 0, err
	}
	return c.Recall(), nil
}

func (r *Recall) GetName() string {
	return "Recall"
}

func (r *Recall) GetDescription() string {
	return "Share of reference pixels covered by the candidate"
}

func (r *Recall) GetRange() (float64, float64) {
	return 0, 1
}

func (r *Recall) IsHigherBetter() bool {
	return true
}

// PixelAgreement implements the share of pixels on which both masks agree
type PixelAgreement struct{}

// NewPixelAgreement creates a new pixel agreement metric
func NewPixelAgreement() *PixelAgreement {
	return &PixelAgreement{}
}

func (a *PixelAgreement) Calculate(reference, candidate gocv.Mat) (float64, error) {
	c, err := NewConfusion(reference, candidate)
	if err != nil {
		return 0, err
	}
	total := c.TruePositive + c.FalsePositive + c.FalseNegative + c.TrueNegative
	return ratio(c.TruePositive+c.TrueNegative, total), nil
}

func (a *PixelAgreement) GetName() string {
	return "Pixel Agreement"
}

func (a *PixelAgreement) GetDescription() string {
	return "Share of pixels labeled the same way in both masks"
}

func (a *PixelAgreement) GetRange() (float64, float64) {
	return 0, 1
}

func (a *PixelAgreement) IsHigherBetter() bool {
	return true
}
