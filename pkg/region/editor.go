// Package region converts pointer-drag point sequences into typed region
// definitions that can be sent to the server, and produces the preview
// polylines drawn while a gesture is in progress.
package region

import (
	"errors"
	"fmt"
	"math"

	"github.com/dsa110/cartaview/pkg/icd"
)

// Editing errors.
var (
	ErrNoGesture      = errors.New("region: no gesture in progress")
	ErrTooFewPoints   = errors.New("region: too few control points")
	ErrUnsupportedTyp = errors.New("region: unsupported region type")
)

// previewSegments is the number of segments used to sample ellipse and
// circle outlines for previews.
const previewSegments = 64

// MinControlPoints returns the minimum number of gesture points required
// to finish a region of the given type.
func MinControlPoints(t icd.RegionType) int {
	switch t {
	case icd.RegionPoint:
		return 1
	case icd.RegionLine, icd.RegionRectangle, icd.RegionEllipse:
		return 2
	case icd.RegionPolygon, icd.RegionAnnulus:
		return 3
	default:
		return 0
	}
}

// Def is a finished region definition.
type Def struct {
	FileID        int32
	RegionID      int32
	Type          icd.RegionType
	ControlPoints []icd.Point
	Rotation      float64
}

// Wire converts the definition to its SetRegion payload.
func (d *Def) Wire() *icd.SetRegion {
	return &icd.SetRegion{
		FileID:        d.FileID,
		RegionID:      d.RegionID,
		RegionType:    d.Type,
		ControlPoints: d.ControlPoints,
		Rotation:      d.Rotation,
	}
}

// Editor accumulates pointer gestures in drawing mode and constructs
// region definitions from them. It is single-gesture: one region is under
// construction at a time.
type Editor struct {
	fileID   int32
	nextID   int32
	mode     icd.RegionType
	points   []icd.Point
	dragging bool
}

// NewEditor returns an editor for the given file. Region IDs are assigned
// sequentially starting at 1.
func NewEditor(fileID int32) *Editor {
	return &Editor{fileID: fileID, nextID: 1, mode: icd.RegionRectangle}
}

// SetMode selects the region type for subsequent gestures. Any gesture in
// progress is discarded.
func (e *Editor) SetMode(t icd.RegionType) {
	e.mode = t
	e.Cancel()
}

// Mode returns the current region type.
func (e *Editor) Mode() icd.RegionType {
	return e.mode
}

// Active reports whether a gesture is in progress.
func (e *Editor) Active() bool {
	return e.dragging
}

// Begin starts a gesture at the given image-space point.
func (e *Editor) Begin(x, y float64) {
	e.points = []icd.Point{{X: x, Y: y}}
	e.dragging = true
}

// Move updates the trailing gesture point while dragging. The preview
// mirrors the final construction on every move.
func (e *Editor) Move(x, y float64) {
	if !e.dragging {
		return
	}
	if len(e.points) == 1 {
		e.points = append(e.points, icd.Point{X: x, Y: y})
		return
	}
	e.points[len(e.points)-1] = icd.Point{X: x, Y: y}
}

// Commit fixes the trailing point and starts a new one. Used by polygon
// and annulus gestures, where each click adds a vertex.
func (e *Editor) Commit(x, y float64) {
	if !e.dragging {
		e.Begin(x, y)
		return
	}
	e.Move(x, y)
	e.points = append(e.points, icd.Point{X: x, Y: y})
}

// Cancel discards the gesture in progress.
func (e *Editor) Cancel() {
	e.points = nil
	e.dragging = false
}

// Finish validates the gesture and constructs the region definition.
// The gesture state is consumed on success and kept on failure.
func (e *Editor) Finish() (*Def, error) {
	if !e.dragging {
		return nil, ErrNoGesture
	}
	min := MinControlPoints(e.mode)
	if min == 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedTyp, e.mode)
	}
	pts := dedupeTrailing(e.points)
	if len(pts) < min {
		return nil, fmt.Errorf("%w: %v needs %d, have %d", ErrTooFewPoints, e.mode, min, len(pts))
	}

	var cps []icd.Point
	switch e.mode {
	case icd.RegionPoint:
		cps = []icd.Point{pts[0]}
	case icd.RegionLine:
		cps = []icd.Point{pts[0], pts[len(pts)-1]}
	case icd.RegionRectangle:
		cps = rectangleCorners(pts[0], pts[len(pts)-1])
	case icd.RegionEllipse:
		cps = ellipseControlPoints(pts[0], pts[len(pts)-1])
	case icd.RegionPolygon:
		// All dragged points, in order, left open.
		cps = append(cps, pts...)
	case icd.RegionAnnulus:
		cps = []icd.Point{pts[0], pts[1], pts[2]}
	}

	def := &Def{
		FileID:        e.fileID,
		RegionID:      e.nextID,
		Type:          e.mode,
		ControlPoints: cps,
	}
	e.nextID++
	e.Cancel()
	return def, nil
}

// Preview returns the polyline mirroring the final construction for the
// gesture in progress. Returns nil when no gesture is active or the
// gesture has too few points to draw anything.
func (e *Editor) Preview() []icd.Point {
	if !e.dragging || len(e.points) == 0 {
		return nil
	}
	pts := e.points
	switch e.mode {
	case icd.RegionPoint:
		return []icd.Point{pts[0]}
	case icd.RegionLine:
		if len(pts) < 2 {
			return nil
		}
		return []icd.Point{pts[0], pts[len(pts)-1]}
	case icd.RegionRectangle:
		if len(pts) < 2 {
			return nil
		}
		c := rectangleCorners(pts[0], pts[len(pts)-1])
		return append(c, c[0]) // closed outline
	case icd.RegionEllipse:
		if len(pts) < 2 {
			return nil
		}
		return ellipseOutline(pts[0], pts[len(pts)-1])
	case icd.RegionPolygon:
		out := append([]icd.Point(nil), pts...)
		if len(out) > 2 {
			out = append(out, out[0]) // closed only visually
		}
		return out
	case icd.RegionAnnulus:
		return annulusOutline(pts)
	}
	return nil
}

// Outline returns the drawable outline polyline for a finished region,
// built from its control points the same way Preview builds the live
// gesture outline.
func Outline(d *Def) []icd.Point {
	cps := d.ControlPoints
	switch d.Type {
	case icd.RegionPoint:
		if len(cps) < 1 {
			return nil
		}
		return cps[:1]
	case icd.RegionLine:
		return cps
	case icd.RegionRectangle:
		if len(cps) < 4 {
			return cps
		}
		out := append([]icd.Point(nil), cps...)
		return append(out, out[0])
	case icd.RegionEllipse:
		if len(cps) < 2 {
			return nil
		}
		// Control points are {center, radii}; rebuild an edge point.
		edge := icd.Point{X: cps[0].X + cps[1].X, Y: cps[0].Y + cps[1].Y}
		return ellipseOutline(cps[0], edge)
	case icd.RegionPolygon:
		out := append([]icd.Point(nil), cps...)
		if len(out) > 2 {
			out = append(out, out[0])
		}
		return out
	case icd.RegionAnnulus:
		return annulusOutline(cps)
	}
	return nil
}

// rectangleCorners expands two dragged corners into four explicit
// axis-aligned corners, in drag order: start, x-adjacent, end, y-adjacent.
func rectangleCorners(a, b icd.Point) []icd.Point {
	return []icd.Point{
		{X: a.X, Y: a.Y},
		{X: b.X, Y: a.Y},
		{X: b.X, Y: b.Y},
		{X: a.X, Y: b.Y},
	}
}

// ellipseControlPoints builds {center, (radiusX, radiusY)} from a
// center+edge drag, radii componentwise |edge-center|.
func ellipseControlPoints(center, edge icd.Point) []icd.Point {
	return []icd.Point{
		center,
		{X: math.Abs(edge.X - center.X), Y: math.Abs(edge.Y - center.Y)},
	}
}

func ellipseOutline(center, edge icd.Point) []icd.Point {
	rx := math.Abs(edge.X - center.X)
	ry := math.Abs(edge.Y - center.Y)
	out := make([]icd.Point, 0, previewSegments+1)
	for i := 0; i <= previewSegments; i++ {
		theta := 2 * math.Pi * float64(i) / previewSegments
		out = append(out, icd.Point{
			X: center.X + rx*math.Cos(theta),
			Y: center.Y + ry*math.Sin(theta),
		})
	}
	return out
}

// annulusOutline draws two concentric circles through the inner and outer
// gesture points.
func annulusOutline(pts []icd.Point) []icd.Point {
	if len(pts) < 2 {
		return nil
	}
	center := pts[0]
	inner := math.Hypot(pts[1].X-center.X, pts[1].Y-center.Y)
	out := circleOutline(center, inner)
	if len(pts) >= 3 {
		outer := math.Hypot(pts[2].X-center.X, pts[2].Y-center.Y)
		out = append(out, circleOutline(center, outer)...)
	}
	return out
}

func circleOutline(center icd.Point, r float64) []icd.Point {
	out := make([]icd.Point, 0, previewSegments+1)
	for i := 0; i <= previewSegments; i++ {
		theta := 2 * math.Pi * float64(i) / previewSegments
		out = append(out, icd.Point{
			X: center.X + r*math.Cos(theta),
			Y: center.Y + r*math.Sin(theta),
		})
	}
	return out
}

// dedupeTrailing removes a trailing point that duplicates its predecessor,
// which happens when a gesture ends without movement after the last commit.
func dedupeTrailing(pts []icd.Point) []icd.Point {
	n := len(pts)
	if n >= 2 && pts[n-1] == pts[n-2] {
		return pts[:n-1]
	}
	return pts
}
