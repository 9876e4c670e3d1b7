// Package viewport implements the scale+offset mapping between screen and
// image pixel coordinates for one viewer instance, with pan, zoom, fit and
// reset operations.
package viewport

import "math"

// Zoom step used by ZoomIn/ZoomOut (±20%).
const zoomStep = 1.2

// Default scale bounds.
const (
	DefaultMinScale = 0.1
	DefaultMaxScale = 10.0
)

// Transform is the viewport state: a uniform scale plus a screen-space
// offset. Scale is clamped to [MinScale, MaxScale] at all times.
//
// screen = image*Scale + Offset; image = (screen-Offset)/Scale.
type Transform struct {
	Scale    float64
	OffsetX  float64
	OffsetY  float64
	MinScale float64
	MaxScale float64
}

// New returns a Transform at identity scale with the given bounds.
// Non-positive bounds fall back to the defaults.
func New(minScale, maxScale float64) *Transform {
	if minScale <= 0 {
		minScale = DefaultMinScale
	}
	if maxScale <= 0 {
		maxScale = DefaultMaxScale
	}
	return &Transform{
		Scale:    clamp(1, minScale, maxScale),
		MinScale: minScale,
		MaxScale: maxScale,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// PanBy shifts the viewport by a screen-space delta.
func (t *Transform) PanBy(dx, dy float64) {
	t.OffsetX += dx
	t.OffsetY += dy
}

// ZoomAt scales the viewport by factor, keeping the image point under the
// screen cursor (sx, sy) fixed.
func (t *Transform) ZoomAt(sx, sy, factor float64) {
	newScale := clamp(t.Scale*factor, t.MinScale, t.MaxScale)
	if newScale == t.Scale {
		return
	}
	ratio := newScale / t.Scale
	t.OffsetX = sx - (sx-t.OffsetX)*ratio
	t.OffsetY = sy - (sy-t.OffsetY)*ratio
	t.Scale = newScale
}

// ZoomIn zooms 20% toward the canvas center.
func (t *Transform) ZoomIn(canvasW, canvasH float64) {
	t.ZoomAt(canvasW/2, canvasH/2, zoomStep)
}

// ZoomOut zooms 20% away from the canvas center.
func (t *Transform) ZoomOut(canvasW, canvasH float64) {
	t.ZoomAt(canvasW/2, canvasH/2, 1/zoomStep)
}

// FitToCanvas scales the image of size (imageW, imageH) to fit the canvas
// and centers it. The fit scale is still clamped to the scale bounds.
func (t *Transform) FitToCanvas(imageW, imageH, canvasW, canvasH float64) {
	if imageW <= 0 || imageH <= 0 {
		return
	}
	t.Scale = clamp(math.Min(canvasW/imageW, canvasH/imageH), t.MinScale, t.MaxScale)
	t.OffsetX = (canvasW - imageW*t.Scale) / 2
	t.OffsetY = (canvasH - imageH*t.Scale) / 2
}

// Reset restores identity scale and zero offset.
func (t *Transform) Reset() {
	t.Scale = clamp(1, t.MinScale, t.MaxScale)
	t.OffsetX = 0
	t.OffsetY = 0
}

// ScreenToImage converts a screen-space point to image coordinates.
func (t *Transform) ScreenToImage(sx, sy float64) (float64, float64) {
	return (sx - t.OffsetX) / t.Scale, (sy - t.OffsetY) / t.Scale
}

// ImageToScreen converts an image-space point to screen coordinates.
// It is the exact inverse of ScreenToImage.
func (t *Transform) ImageToScreen(ix, iy float64) (float64, float64) {
	return ix*t.Scale + t.OffsetX, iy*t.Scale + t.OffsetY
}

// Pinch tracks a two-touch pinch gesture and applies zoom via ZoomAt.
// The zoom factor is the ratio of successive two-touch distances, applied
// at the last known touch point rather than a continuously tracked
// midpoint.
type Pinch struct {
	t        *Transform
	lastDist float64
	lastX    float64
	lastY    float64
	active   bool
}

// NewPinch returns a pinch tracker bound to the given transform.
func NewPinch(t *Transform) *Pinch {
	return &Pinch{t: t}
}

// Begin starts a gesture from two touch points.
func (p *Pinch) Begin(x1, y1, x2, y2 float64) {
	p.lastDist = math.Hypot(x2-x1, y2-y1)
	p.lastX, p.lastY = x2, y2
	p.active = true
}

// Move updates the gesture with new touch positions, zooming by the ratio
// of the new two-touch distance to the previous one.
func (p *Pinch) Move(x1, y1, x2, y2 float64) {
	if !p.active {
		p.Begin(x1, y1, x2, y2)
		return
	}
	dist := math.Hypot(x2-x1, y2-y1)
	if p.lastDist > 0 && dist > 0 {
		p.t.ZoomAt(p.lastX, p.lastY, dist/p.lastDist)
	}
	p.lastDist = dist
	p.lastX, p.lastY = x2, y2
}

// End terminates the gesture.
func (p *Pinch) End() {
	p.active = false
	p.lastDist = 0
}
