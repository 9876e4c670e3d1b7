package viewport

import (
	"math"
	"math/rand"
	"testing"
)

const eps = 1e-9

func TestScaleClamp(t *testing.T) {
	tr := New(0.5, 4)

	// Any zoom sequence keeps scale within bounds.
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		factor := 0.25 + rng.Float64()*3.5
		tr.ZoomAt(rng.Float64()*800, rng.Float64()*600, factor)
		if tr.Scale < tr.MinScale-eps || tr.Scale > tr.MaxScale+eps {
			t.Fatalf("iteration %d: scale %v outside [%v, %v]", i, tr.Scale, tr.MinScale, tr.MaxScale)
		}
	}
}

func TestZoomAtFixedPoint(t *testing.T) {
	tests := []struct {
		name   string
		sx, sy float64
		factor float64
	}{
		{"zoom_in_center", 400, 300, 1.5},
		{"zoom_out_corner", 0, 0, 0.75},
		{"zoom_in_offset", 123.4, 567.8, 2.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := New(0.1, 10)
			tr.PanBy(37, -12)

			beforeX, beforeY := tr.ScreenToImage(tc.sx, tc.sy)
			tr.ZoomAt(tc.sx, tc.sy, tc.factor)
			afterX, afterY := tr.ScreenToImage(tc.sx, tc.sy)

			if math.Abs(afterX-beforeX) > 1e-6 || math.Abs(afterY-beforeY) > 1e-6 {
				t.Errorf("point under cursor moved: (%v,%v) -> (%v,%v)", beforeX, beforeY, afterX, afterY)
			}
		})
	}
}

func TestScreenImageInverse(t *testing.T) {
	tr := New(0.1, 10)
	tr.ZoomAt(100, 100, 1.7)
	tr.PanBy(-33, 44)

	points := [][2]float64{{0, 0}, {1, 1}, {640, 480}, {-17.5, 300.25}}
	for _, p := range points {
		ix, iy := tr.ScreenToImage(p[0], p[1])
		sx, sy := tr.ImageToScreen(ix, iy)
		if math.Abs(sx-p[0]) > 1e-9 || math.Abs(sy-p[1]) > 1e-9 {
			t.Errorf("inverse failed for %v: got (%v, %v)", p, sx, sy)
		}
	}
}

func TestPanBy(t *testing.T) {
	tr := New(0, 0)
	tr.PanBy(10, -5)
	tr.PanBy(2, 3)
	if tr.OffsetX != 12 || tr.OffsetY != -2 {
		t.Errorf("offset = (%v, %v), want (12, -2)", tr.OffsetX, tr.OffsetY)
	}
}

func TestFitToCanvas(t *testing.T) {
	tr := New(0.01, 100)

	// Wide image limited by canvas width.
	tr.FitToCanvas(1000, 500, 800, 600)
	if math.Abs(tr.Scale-0.8) > eps {
		t.Errorf("scale = %v, want 0.8", tr.Scale)
	}
	// Centered: (800 - 1000*0.8)/2 = 0, (600 - 500*0.8)/2 = 100.
	if math.Abs(tr.OffsetX-0) > eps || math.Abs(tr.OffsetY-100) > eps {
		t.Errorf("offset = (%v, %v), want (0, 100)", tr.OffsetX, tr.OffsetY)
	}
}

func TestReset(t *testing.T) {
	tr := New(0.1, 10)
	tr.ZoomAt(50, 50, 3)
	tr.PanBy(99, 99)
	tr.Reset()
	if tr.Scale != 1 || tr.OffsetX != 0 || tr.OffsetY != 0 {
		t.Errorf("after reset: scale=%v offset=(%v,%v)", tr.Scale, tr.OffsetX, tr.OffsetY)
	}
}

func TestZoomInOut(t *testing.T) {
	tr := New(0.1, 10)
	tr.ZoomIn(800, 600)
	if math.Abs(tr.Scale-1.2) > eps {
		t.Errorf("after ZoomIn scale = %v, want 1.2", tr.Scale)
	}
	tr.ZoomOut(800, 600)
	if math.Abs(tr.Scale-1.0) > eps {
		t.Errorf("after ZoomOut scale = %v, want 1.0", tr.Scale)
	}
}

func TestPinchZoom(t *testing.T) {
	tr := New(0.1, 10)
	p := NewPinch(tr)

	p.Begin(100, 100, 200, 100) // distance 100
	p.Move(100, 100, 300, 100)  // distance 200, factor 2
	if math.Abs(tr.Scale-2.0) > eps {
		t.Errorf("scale after pinch out = %v, want 2.0", tr.Scale)
	}

	p.Move(100, 100, 200, 100) // back to distance 100, factor 0.5
	if math.Abs(tr.Scale-1.0) > eps {
		t.Errorf("scale after pinch in = %v, want 1.0", tr.Scale)
	}
	p.End()
}
