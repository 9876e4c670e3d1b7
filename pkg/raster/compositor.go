package raster

import (
	"context"
	"image"
	"log/slog"
	"math"

	"github.com/dsa110/cartaview/pkg/icd"
)

// ImageBounds is the sub-volume of the image the viewer displays.
// Mutated only when a SET_IMAGE_VIEW acknowledgment arrives.
type ImageBounds struct {
	XMin float64
	XMax float64
	YMin float64
	YMax float64
	ZMin float64
	ZMax float64
}

// Width returns the bounds extent along x.
func (b ImageBounds) Width() float64 { return b.XMax - b.XMin }

// Height returns the bounds extent along y.
func (b ImageBounds) Height() float64 { return b.YMax - b.YMin }

// Compositor assembles stored tiles into one renderable pixel buffer and
// applies the color pipeline. It owns the palette cache; callers share
// one compositor per viewer instance.
type Compositor struct {
	decoder  Decoder
	palettes *paletteCache
	logger   *slog.Logger
}

// CompositorOption configures a Compositor.
type CompositorOption func(*Compositor)

// WithDecoder replaces the default stdlib decoder.
func WithDecoder(d Decoder) CompositorOption {
	return func(c *Compositor) {
		c.decoder = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) CompositorOption {
	return func(c *Compositor) {
		c.logger = l
	}
}

// NewCompositor returns a compositor using the stdlib decoder and the
// default slog logger unless configured otherwise.
func NewCompositor(opts ...CompositorOption) *Compositor {
	c := &Compositor{
		decoder:  StdDecoder{},
		palettes: newPaletteCache(8),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose decodes the given tiles and assembles them into a canvas-sized
// RGBA buffer, then runs the color pipeline and strokes the overlay
// polyline on top.
//
// A tile that fails to decode is skipped with a warning; compositing
// never aborts the whole render for one bad tile.
func (c *Compositor) Compose(ctx context.Context, tiles []*Tile, bounds ImageBounds, canvasW, canvasH int, ro RenderOptions, overlay [][]icd.Point) (*image.RGBA, error) {
	if canvasW <= 0 || canvasH <= 0 {
		return nil, nil
	}
	out := image.NewRGBA(image.Rect(0, 0, canvasW, canvasH))

	bw, bh := bounds.Width(), bounds.Height()
	if bw <= 0 || bh <= 0 {
		return out, nil
	}
	scaleX := float64(canvasW) / bw
	scaleY := float64(canvasH) / bh

	for _, t := range tiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := c.decoder.Decode(ctx, t.Data, t.Width, t.Height)
		if err != nil {
			c.logger.Warn("tile decode failed, skipping",
				"x", t.X, "y", t.Y, "layer", t.Layer, "error", err)
			continue
		}
		c.placeTile(out, img, t, bounds, scaleX, scaleY)
	}

	applyPipeline(out, ro, c.palettes.get(ro.ColorMap))
	for _, polyline := range overlay {
		strokeOverlay(out, polyline, bounds, scaleX, scaleY)
	}
	return out, nil
}

// placeTile copies each source pixel to the nearest destination pixel,
// clipped to both the image bounds and the canvas extents.
func (c *Compositor) placeTile(dst *image.RGBA, src *image.RGBA, t *Tile, bounds ImageBounds, scaleX, scaleY float64) {
	sw := src.Bounds().Dx()
	sh := src.Bounds().Dy()
	cw := dst.Bounds().Dx()
	ch := dst.Bounds().Dy()

	for j := 0; j < sh; j++ {
		iy := float64(t.Y + j)
		if iy < bounds.YMin || iy >= bounds.YMax {
			continue
		}
		dy := int(math.Round((iy - bounds.YMin) * scaleY))
		if dy < 0 || dy >= ch {
			continue
		}
		for i := 0; i < sw; i++ {
			ix := float64(t.X + i)
			if ix < bounds.XMin || ix >= bounds.XMax {
				continue
			}
			dx := int(math.Round((ix - bounds.XMin) * scaleX))
			if dx < 0 || dx >= cw {
				continue
			}
			so := src.PixOffset(i, j)
			do := dst.PixOffset(dx, dy)
			copy(dst.Pix[do:do+4], src.Pix[so:so+4])
		}
	}
}

// overlayColor is the stroke color for region previews.
var overlayColor = [4]uint8{0, 255, 128, 255}

// strokeOverlay draws the preview polyline on the composited buffer.
// The pass is non-destructive in the sense that it touches only the
// output buffer, which is regenerated on every recomposite.
func strokeOverlay(dst *image.RGBA, points []icd.Point, bounds ImageBounds, scaleX, scaleY float64) {
	if len(points) == 0 {
		return
	}
	toCanvas := func(p icd.Point) (float64, float64) {
		return (p.X - bounds.XMin) * scaleX, (p.Y - bounds.YMin) * scaleY
	}

	if len(points) == 1 {
		x, y := toCanvas(points[0])
		setPixel(dst, int(math.Round(x)), int(math.Round(y)))
		return
	}
	for i := 1; i < len(points); i++ {
		x0, y0 := toCanvas(points[i-1])
		x1, y1 := toCanvas(points[i])
		strokeLine(dst, x0, y0, x1, y1)
	}
}

// strokeLine draws a line segment with a simple DDA walk.
func strokeLine(dst *image.RGBA, x0, y0, x1, y1 float64) {
	steps := int(math.Max(math.Abs(x1-x0), math.Abs(y1-y0))) + 1
	for s := 0; s <= steps; s++ {
		f := float64(s) / float64(steps)
		setPixel(dst,
			int(math.Round(x0+(x1-x0)*f)),
			int(math.Round(y0+(y1-y0)*f)))
	}
}

func setPixel(dst *image.RGBA, x, y int) {
	if x < 0 || y < 0 || x >= dst.Bounds().Dx() || y >= dst.Bounds().Dy() {
		return
	}
	o := dst.PixOffset(x, y)
	copy(dst.Pix[o:o+4], overlayColor[:])
}
