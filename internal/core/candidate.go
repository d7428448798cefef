package core

import (
	"image"

	"gocv.io/x/gocv"
)

// Candidate is the transient region proposed by a selection tool. Mask is a full-image
// CV_8UC1 raster; for incremental commits it holds 0/255, for full replacement it holds
// class indices. Bounds limits where the mask can be non-zero.
type Candidate struct {
	Mask   gocv.Mat
	Bounds image.Rectangle
}

// IsEmpty reports whether the candidate has no set pixels
func (c Candidate) IsEmpty() bool {
	return c.Mask.Ptr() == nil || c.Mask.Empty() || gocv.CountNonZero(c.Mask) == 0
}

// Clone returns an independent copy of the candidate
func (c Candidate) Clone() Candidate {
	return Candidate{Mask: c.Mask.Clone(), Bounds: c.Bounds}
}

// Close releases the mask
func (c Candidate) Close() {
	if c.Mask.Ptr() != nil {
		c.Mask.Close()
	}
}
