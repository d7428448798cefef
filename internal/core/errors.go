package core

import "errors"

var (
	// ErrEmptyRegion is returned when a candidate region has no set pixels
	ErrEmptyRegion = errors.New("empty region")
	// ErrInvalidShape is returned for shapes that cannot be resolved to a pixel region
	ErrInvalidShape = errors.New("invalid shape")
	// ErrInvalidZoom is returned for a zoom factor that is not positive
	ErrInvalidZoom = errors.New("invalid zoom factor")
	// ErrSizeMismatch is returned when a mask does not match the image dimensions
	ErrSizeMismatch = errors.New("mask size mismatch")
)
