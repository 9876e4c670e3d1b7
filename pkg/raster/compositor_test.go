package raster

import (
	"context"
	"image"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/dsa110/cartaview/pkg/icd"
)

func testCompositor() *Compositor {
	return NewCompositor(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

// unitBounds returns bounds where one image pixel maps to one canvas
// pixel for the given canvas size.
func unitBounds(w, h int) ImageBounds {
	return ImageBounds{XMax: float64(w), YMax: float64(h)}
}

func identityOptions() RenderOptions {
	ro := DefaultRenderOptions()
	ro.MinValue = 0
	ro.MaxValue = 1
	return ro
}

func TestComposePlacesTiles(t *testing.T) {
	c := testCompositor()
	tiles := []*Tile{
		{X: 0, Y: 0, Width: 2, Height: 2, Data: rawTile(2, 2, 50)},
		{X: 2, Y: 0, Width: 2, Height: 2, Data: rawTile(2, 2, 200)},
	}

	out, err := c.Compose(context.Background(), tiles, unitBounds(4, 2), 4, 2, identityOptions(), nil)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}

	if got := out.Pix[out.PixOffset(0, 0)]; got != 50 {
		t.Errorf("pixel (0,0) = %d, want 50", got)
	}
	if got := out.Pix[out.PixOffset(3, 1)]; got != 200 {
		t.Errorf("pixel (3,1) = %d, want 200", got)
	}
}

func TestComposePartialFailure(t *testing.T) {
	c := testCompositor()
	// Tile #2 has corrupt bytes: raw payload with a bogus length.
	tiles := []*Tile{
		{X: 0, Y: 0, Width: 2, Height: 2, Data: rawTile(2, 2, 80)},
		{X: 2, Y: 0, Width: 2, Height: 2, Data: []byte{1, 2, 3}},
		{X: 4, Y: 0, Width: 2, Height: 2, Data: rawTile(2, 2, 160)},
	}

	out, err := c.Compose(context.Background(), tiles, unitBounds(6, 2), 6, 2, identityOptions(), nil)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}

	// Tiles #1 and #3 still painted: composite is not blank.
	if got := out.Pix[out.PixOffset(0, 0)]; got != 80 {
		t.Errorf("tile 1 pixel = %d, want 80", got)
	}
	if got := out.Pix[out.PixOffset(5, 1)]; got != 160 {
		t.Errorf("tile 3 pixel = %d, want 160", got)
	}
	// The corrupt tile's area stays unpainted (transparent).
	if got := out.Pix[out.PixOffset(2, 0)+3]; got != 0 {
		t.Errorf("corrupt tile alpha = %d, want 0", got)
	}
}

func TestComposeClipsToBoundsAndCanvas(t *testing.T) {
	c := testCompositor()
	// Tile extends past both the image bounds and the canvas.
	tiles := []*Tile{
		{X: -1, Y: -1, Width: 4, Height: 4, Data: rawTile(4, 4, 99)},
	}
	bounds := ImageBounds{XMin: 0, XMax: 2, YMin: 0, YMax: 2}

	out, err := c.Compose(context.Background(), tiles, bounds, 2, 2, identityOptions(), nil)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	// In-bounds pixels painted, no panic from out-of-range writes.
	if got := out.Pix[out.PixOffset(0, 0)]; got != 99 {
		t.Errorf("pixel (0,0) = %d, want 99", got)
	}
}

func TestColorPipelineIdentity(t *testing.T) {
	c := testCompositor()
	data := make([]byte, 2*2*4)
	values := []uint8{10, 60, 130, 250}
	for i, v := range values {
		data[i*4] = v
		data[i*4+1] = v
		data[i*4+2] = v
		data[i*4+3] = 255
	}
	tiles := []*Tile{{X: 0, Y: 0, Width: 2, Height: 2, Data: data}}

	// linear scale, brightness=contrast=1, gray map, fixed [0,1] range:
	// the pipeline must reproduce the original intensities.
	out, err := c.Compose(context.Background(), tiles, unitBounds(2, 2), 2, 2, identityOptions(), nil)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	for i, v := range values {
		x, y := i%2, i/2
		if got := out.Pix[out.PixOffset(x, y)]; got != v {
			t.Errorf("pixel (%d,%d) = %d, want %d", x, y, got, v)
		}
	}
}

func TestColorScaleFunctions(t *testing.T) {
	tests := []struct {
		scale ColorScale
		in    float64
		want  float64
	}{
		{ScaleLinear, 0.5, 0.5},
		{ScaleLog, 0, 0},
		{ScaleLog, 1, 1},
		{ScaleSqrt, 0.25, 0.5},
		{ScaleAsinh, 0, 0},
		{ScaleAsinh, 1, 1},
	}
	for _, tc := range tests {
		ro := RenderOptions{ColorScale: tc.scale}
		if got := ro.applyScale(tc.in); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("%v(%v) = %v, want %v", tc.scale, tc.in, got, tc.want)
		}
	}
}

func TestAutoMinMaxFromNonzeroSamples(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	// One zero pixel (ignored) and one at 128.
	img.Pix[4] = 128
	min, max := referenceRange(img)
	if math.Abs(min-128.0/255) > 1e-12 || math.Abs(max-128.0/255) > 1e-12 {
		t.Errorf("range = (%v, %v), want both 128/255", min, max)
	}

	blank := image.NewRGBA(image.Rect(0, 0, 2, 1))
	min, max = referenceRange(blank)
	if min != 0 || max != 1 {
		t.Errorf("blank range = (%v, %v), want (0, 1)", min, max)
	}
}

func TestBrightnessContrast(t *testing.T) {
	ro := DefaultRenderOptions()
	ro.MinValue, ro.MaxValue = 0, 1
	ro.Contrast = 2

	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Pix[0] = 191 // v ≈ 0.75 → (0.75-0.5)*2 + 0.5 = 1.0
	img.Pix[3] = 255
	applyPipeline(img, ro, newPaletteCache(8).get("gray"))
	if img.Pix[0] != 255 {
		t.Errorf("contrast-stretched pixel = %d, want 255", img.Pix[0])
	}
	if img.Pix[3] != 255 {
		t.Errorf("alpha changed to %d", img.Pix[3])
	}
}

func TestOverlayStroke(t *testing.T) {
	c := testCompositor()
	overlay := [][]icd.Point{{{X: 0, Y: 0}, {X: 3, Y: 0}}}

	out, err := c.Compose(context.Background(), nil, unitBounds(4, 4), 4, 4, identityOptions(), overlay)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	// Horizontal stroke along y=0.
	for x := 0; x <= 3; x++ {
		o := out.PixOffset(x, 0)
		if out.Pix[o+1] != 255 {
			t.Errorf("overlay pixel (%d,0) G = %d, want 255", x, out.Pix[o+1])
		}
	}
	// Rest of the canvas untouched by the overlay.
	if out.Pix[out.PixOffset(0, 2)+1] == 255 {
		t.Error("overlay leaked outside the polyline")
	}
}

func TestPaletteCacheBounded(t *testing.T) {
	cache := newPaletteCache(2)
	a := cache.get("gray")
	if cache.get("gray") != a {
		t.Error("palette not cached")
	}
	cache.get("viridis")
	cache.get("inferno") // exceeds bound, cache resets
	if b := cache.get("gray"); b == a {
		t.Error("cache was not evicted at the bound")
	}
}

func TestUnknownColorMapFallsBack(t *testing.T) {
	p := buildPalette("no-such-map")
	if p[255][0] != 255 || p[0][0] != 0 {
		t.Errorf("fallback palette endpoints = %v, %v", p[0], p[255])
	}
}
