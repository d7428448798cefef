// ROI (Region of Interest) shapes and their resolution to image-space pixel regions
package core

import (
	"fmt"
	"image"
	"image/color"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/spatial/r2"
)

// ShapeKind defines the type of selection
type ShapeKind int

const (
	ShapeRectangle ShapeKind = iota
	ShapePolygon
	ShapeCircle
	ShapeBrush
	ShapeMarkerPoints
	ShapeCut
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeRectangle:
		return "rectangle"
	case ShapePolygon:
		return "polygon"
	case ShapeCircle:
		return "circle"
	case ShapeBrush:
		return "brush"
	case ShapeMarkerPoints:
		return "markers"
	case ShapeCut:
		return "cut"
	default:
		return "unknown"
	}
}

var maskWhite = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// StrokePoint is one disc of a brush or cut stroke in input space.
// Zoom is the zoom factor the point was drawn at; zero means the zoom passed to Resolve.
type StrokePoint struct {
	Pos        r2.Vec
	Radius     float64
	Zoom       float64
	Foreground bool
}

// Marker is a seed point tagged with a class index
type Marker struct {
	Pos   r2.Vec
	Class int
}

// Shape is a user-drawn selection in input-space coordinates
type Shape struct {
	Kind    ShapeKind
	Points  []r2.Vec // rectangle corners or polygon vertices
	Closed  bool
	Center  r2.Vec
	Radius  float64
	Strokes []StrokePoint
	Markers []Marker
}

// RectangleShape creates a rectangle from two opposite corners
func RectangleShape(a, b r2.Vec) Shape {
	return Shape{Kind: ShapeRectangle, Points: []r2.Vec{a, b}}
}

// PolygonShape creates a polygon from its vertices
func PolygonShape(points []r2.Vec, closed bool) Shape {
	pts := make([]r2.Vec, len(points))
	copy(pts, points)
	return Shape{Kind: ShapePolygon, Points: pts, Closed: closed}
}

// CircleShape creates a circle from center and radius
func CircleShape(center r2.Vec, radius float64) Shape {
	return Shape{Kind: ShapeCircle, Center: center, Radius: radius}
}

// CircleThrough creates a circle around center passing through outer
func CircleThrough(center, outer r2.Vec) Shape {
	return CircleShape(center, r2.Norm(r2.Sub(outer, center)))
}

// BrushShape creates a brush stroke set
func BrushShape(strokes []StrokePoint) Shape {
	return Shape{Kind: ShapeBrush, Strokes: append([]StrokePoint(nil), strokes...)}
}

// CutShape creates a stroke set used for interactive trimming
func CutShape(strokes []StrokePoint) Shape {
	return Shape{Kind: ShapeCut, Strokes: append([]StrokePoint(nil), strokes...)}
}

// MarkerShape creates a scatter of class markers
func MarkerShape(markers []Marker) Shape {
	return Shape{Kind: ShapeMarkerPoints, Markers: append([]Marker(nil), markers...)}
}

// Stroke is a resolved disc in image space
type Stroke struct {
	Center     image.Point
	Radius     int
	Foreground bool
}

func (s Stroke) overlaps(o Stroke) bool {
	d := r2.Norm(r2.Sub(toVec(s.Center), toVec(o.Center)))
	return d < float64(s.Radius+o.Radius)
}

// MarkerPoint is a resolved marker in image space
type MarkerPoint struct {
	Point image.Point
	Class int
}

// ROI is a shape resolved to image space.
// Mask is local to Rect (same size), 255 inside the shape. It is empty for
// rectangles, where the whole Rect is selected, and for markers.
type ROI struct {
	Kind    ShapeKind
	Rect    image.Rectangle
	Mask    gocv.Mat
	Strokes []Stroke
	Markers []MarkerPoint
}

// ShapeMask returns a Rect-sized mask of the selected pixels owned by the caller
func (r *ROI) ShapeMask() gocv.Mat {
	if r.Mask.Ptr() != nil && !r.Mask.Empty() {
		return r.Mask.Clone()
	}
	mask := gocv.Zeros(r.Rect.Dy(), r.Rect.Dx(), gocv.MatTypeCV8UC1)
	mask.SetTo(gocv.NewScalar(255, 0, 0, 0))
	return mask
}

// Place copies a Rect-sized local mask into a full-size candidate
func (r *ROI) Place(local gocv.Mat, width, height int) Candidate {
	full := gocv.Zeros(height, width, gocv.MatTypeCV8UC1)
	region := full.Region(r.Rect)
	local.CopyTo(&region)
	region.Close()
	return Candidate{Mask: full, Bounds: r.Rect}
}

// Close releases the mask
func (r *ROI) Close() {
	if r.Mask.Ptr() != nil {
		r.Mask.Close()
	}
}

// Resolver converts shapes into clamped image-space regions
type Resolver struct {
	width  int
	height int
	logger logrus.FieldLogger
}

// NewResolver creates a resolver for an image of the given size
func NewResolver(width, height int, logger logrus.FieldLogger) *Resolver {
	return &Resolver{width: width, height: height, logger: logger}
}

// Resolve scales shape by 1/zoom and converts it to an ROI within the image bounds
func (r *Resolver) Resolve(shape Shape, zoom float64) (ROI, error) {
	if zoom <= 0 {
		return ROI{}, fmt.Errorf("%w: %v", ErrInvalidZoom, zoom)
	}

	var (
		roi ROI
		err error
	)
	switch shape.Kind {
	case ShapeRectangle:
		roi, err = r.resolveRectangle(shape, zoom)
	case ShapeCircle:
		roi, err = r.resolveCircle(shape, zoom)
	case ShapePolygon:
		roi, err = r.resolvePolygon(shape, zoom)
	case ShapeBrush, ShapeCut:
		roi, err = r.resolveBrush(shape, zoom)
	case ShapeMarkerPoints:
		roi, err = r.resolveMarkers(shape, zoom)
	default:
		return ROI{}, fmt.Errorf("%w: unknown kind %d", ErrInvalidShape, shape.Kind)
	}
	if err != nil {
		return ROI{}, err
	}

	r.logger.WithFields(logrus.Fields{
		"shape": shape.Kind.String(),
		"zoom":  zoom,
		"rect":  roi.Rect.String(),
	}).Debug("Resolved ROI")

	return roi, nil
}

func (r *Resolver) resolveRectangle(shape Shape, zoom float64) (ROI, error) {
	if len(shape.Points) < 2 {
		return ROI{}, fmt.Errorf("%w: rectangle needs two corners", ErrInvalidShape)
	}
	a := toImage(shape.Points[0], zoom)
	b := toImage(shape.Points[1], zoom)

	return ROI{
		Kind: ShapeRectangle,
		Rect: r.clampRect(a.X, a.Y, b.X, b.Y),
		Mask: gocv.NewMat(),
	}, nil
}

func (r *Resolver) resolveCircle(shape Shape, zoom float64) (ROI, error) {
	center := toImage(shape.Center, zoom)
	radius := int(shape.Radius / zoom)
	if radius < 1 {
		radius = 1
	}

	x, y := center.X-radius, center.Y-radius
	w, h := 2*radius, 2*radius

	// A negative origin moves to 0; the overflow is folded into the local center
	// below so the disc keeps its position. The width is not reduced.
	x = min(max(x, 0), r.width-1)
	y = min(max(y, 0), r.height-1)
	if x+w > r.width {
		w = r.width - x
	}
	if y+h > r.height {
		h = r.height - y
	}
	w = max(w, 1)
	h = max(h, 1)

	rect := image.Rect(x, y, x+w, y+h)
	local := center.Sub(rect.Min)

	mask := gocv.Zeros(rect.Dy(), rect.Dx(), gocv.MatTypeCV8UC1)
	gocv.Circle(&mask, local, radius, maskWhite, -1)

	return ROI{Kind: ShapeCircle, Rect: rect, Mask: mask}, nil
}

func (r *Resolver) resolvePolygon(shape Shape, zoom float64) (ROI, error) {
	if len(shape.Points) < 3 {
		return ROI{}, fmt.Errorf("%w: polygon needs at least 3 points, got %d", ErrInvalidShape, len(shape.Points))
	}

	points := make([]image.Point, len(shape.Points))
	for i, p := range shape.Points {
		points[i] = toImage(p, zoom)
	}

	bounds := calculateBounds(points)
	// bounds are inclusive of the outermost vertices
	rect := r.clampRect(bounds.Min.X, bounds.Min.Y, bounds.Max.X+1, bounds.Max.Y+1)

	local := make([]image.Point, len(points))
	for i, p := range points {
		local[i] = p.Sub(rect.Min)
	}

	mask := gocv.Zeros(rect.Dy(), rect.Dx(), gocv.MatTypeCV8UC1)
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{local})
	defer pv.Close()
	gocv.FillPoly(&mask, pv, maskWhite)

	return ROI{Kind: ShapePolygon, Rect: rect, Mask: mask}, nil
}

func (r *Resolver) resolveBrush(shape Shape, zoom float64) (ROI, error) {
	if len(shape.Strokes) == 0 {
		return ROI{}, fmt.Errorf("%w: %s without stroke points", ErrInvalidShape, shape.Kind)
	}

	strokes := make([]Stroke, len(shape.Strokes))
	for i, sp := range shape.Strokes {
		pointZoom := sp.Zoom
		if pointZoom <= 0 {
			pointZoom = zoom
		}
		radius := int(sp.Radius / pointZoom)
		if radius < 1 {
			radius = 1
		}
		strokes[i] = Stroke{
			Center:     toImage(sp.Pos, zoom),
			Radius:     radius,
			Foreground: sp.Foreground,
		}
	}

	kept := PruneConflictingStrokes(strokes)
	if pruned := len(strokes) - len(kept); pruned > 0 {
		r.logger.WithField("pruned", pruned).Debug("Removed conflicting stroke points")
	}

	mask := gocv.Zeros(r.height, r.width, gocv.MatTypeCV8UC1)
	for _, s := range kept {
		gocv.Circle(&mask, s.Center, s.Radius, maskWhite, -1)
	}

	return ROI{
		Kind:    shape.Kind,
		Rect:    image.Rect(0, 0, r.width, r.height),
		Mask:    mask,
		Strokes: kept,
	}, nil
}

func (r *Resolver) resolveMarkers(shape Shape, zoom float64) (ROI, error) {
	if len(shape.Markers) == 0 {
		return ROI{}, fmt.Errorf("%w: no markers", ErrInvalidShape)
	}

	markers := make([]MarkerPoint, len(shape.Markers))
	for i, m := range shape.Markers {
		markers[i] = MarkerPoint{Point: toImage(m.Pos, zoom), Class: m.Class}
	}

	return ROI{
		Kind:    ShapeMarkerPoints,
		Rect:    image.Rect(0, 0, r.width, r.height),
		Mask:    gocv.NewMat(),
		Markers: markers,
	}, nil
}

// clampRect normalizes two corners and clamps them to [0,W)x[0,H).
// A side that collapses to zero length is widened to one pixel.
func (r *Resolver) clampRect(x0, y0, x1, y1 int) image.Rectangle {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}

	x0 = min(max(x0, 0), r.width-1)
	y0 = min(max(y0, 0), r.height-1)
	x1 = min(max(x1, x0), r.width)
	y1 = min(max(y1, y0), r.height)

	if x1 == x0 {
		x1 = x0 + 1
	}
	if y1 == y0 {
		y1 = y0 + 1
	}

	return image.Rect(x0, y0, x1, y1)
}

// PruneConflictingStrokes drops every disc that overlaps an earlier kept disc of the
// opposite polarity. Input order decides which disc of a conflicting pair survives.
func PruneConflictingStrokes(strokes []Stroke) []Stroke {
	kept := make([]Stroke, 0, len(strokes))
	for _, s := range strokes {
		conflict := false
		for _, k := range kept {
			if k.Foreground != s.Foreground && k.overlaps(s) {
				conflict = true
				break
			}
		}
		if !conflict {
			kept = append(kept, s)
		}
	}
	return kept
}

// calculateBounds calculates the inclusive bounding box for a set of points
func calculateBounds(points []image.Point) image.Rectangle {
	if len(points) == 0 {
		return image.Rectangle{}
	}

	minX, minY := points[0].X, points[0].Y
	maxX, maxY := points[0].X, points[0].Y

	for _, point := range points {
		if point.X < minX {
			minX = point.X
		}
		if point.X > maxX {
			maxX = point.X
		}
		if point.Y < minY {
			minY = point.Y
		}
		if point.Y > maxY {
			maxY = point.Y
		}
	}

	return image.Rect(minX, minY, maxX, maxY)
}

func toImage(v r2.Vec, zoom float64) image.Point {
	s := r2.Scale(1/zoom, v)
	return image.Pt(int(s.X), int(s.Y))
}

func toVec(p image.Point) r2.Vec {
	return r2.Vec{X: float64(p.X), Y: float64(p.Y)}
}
