package region

import (
	"errors"
	"math"
	"testing"

	"github.com/dsa110/cartaview/pkg/icd"
)

func TestRectangleDrag(t *testing.T) {
	e := NewEditor(0)
	e.SetMode(icd.RegionRectangle)

	e.Begin(0, 0)
	e.Move(5, 3)
	e.Move(10, 10)
	def, err := e.Finish()
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	want := []icd.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	if len(def.ControlPoints) != 4 {
		t.Fatalf("control points = %d, want 4", len(def.ControlPoints))
	}
	for i, p := range want {
		if def.ControlPoints[i] != p {
			t.Errorf("corner %d = %v, want %v", i, def.ControlPoints[i], p)
		}
	}
	if def.Type != icd.RegionRectangle {
		t.Errorf("type = %v", def.Type)
	}
}

func TestEllipseDrag(t *testing.T) {
	e := NewEditor(0)
	e.SetMode(icd.RegionEllipse)

	e.Begin(100, 100)
	e.Move(130, 60) // edge left-up of center
	def, err := e.Finish()
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	if def.ControlPoints[0] != (icd.Point{X: 100, Y: 100}) {
		t.Errorf("center = %v", def.ControlPoints[0])
	}
	// Radii are componentwise |edge - center|.
	if def.ControlPoints[1] != (icd.Point{X: 30, Y: 40}) {
		t.Errorf("radii = %v, want (30, 40)", def.ControlPoints[1])
	}
}

func TestPolygonGesture(t *testing.T) {
	e := NewEditor(0)
	e.SetMode(icd.RegionPolygon)

	e.Begin(0, 0)
	e.Commit(10, 0)
	e.Commit(10, 10)
	e.Move(0, 10)
	def, err := e.Finish()
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	want := []icd.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	if len(def.ControlPoints) != len(want) {
		t.Fatalf("control points = %v, want %v", def.ControlPoints, want)
	}
	for i := range want {
		if def.ControlPoints[i] != want[i] {
			t.Errorf("point %d = %v, want %v", i, def.ControlPoints[i], want[i])
		}
	}
	// Polygon is left open: last point != first point.
	if def.ControlPoints[len(def.ControlPoints)-1] == def.ControlPoints[0] {
		t.Error("polygon should not be closed in the definition")
	}
}

func TestAnnulusPreviewRadii(t *testing.T) {
	e := NewEditor(0)
	e.SetMode(icd.RegionAnnulus)

	e.Begin(0, 0)
	e.Commit(5, 0) // inner
	e.Move(10, 0)  // outer

	preview := e.Preview()
	if len(preview) == 0 {
		t.Fatal("empty preview")
	}

	var sawInner, sawOuter bool
	for _, p := range preview {
		r := math.Hypot(p.X, p.Y)
		if math.Abs(r-5) < 1e-9 {
			sawInner = true
		}
		if math.Abs(r-10) < 1e-9 {
			sawOuter = true
		}
		if math.Abs(r-5) > 1e-9 && math.Abs(r-10) > 1e-9 {
			t.Fatalf("preview point %v at radius %v, want 5 or 10", p, r)
		}
	}
	if !sawInner || !sawOuter {
		t.Errorf("preview missing circles: inner=%v outer=%v", sawInner, sawOuter)
	}

	def, err := e.Finish()
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	want := []icd.Point{{0, 0}, {5, 0}, {10, 0}}
	for i := range want {
		if def.ControlPoints[i] != want[i] {
			t.Errorf("control point %d = %v, want %v", i, def.ControlPoints[i], want[i])
		}
	}
}

func TestTooFewPoints(t *testing.T) {
	e := NewEditor(0)
	e.SetMode(icd.RegionPolygon)
	e.Begin(0, 0)
	e.Move(1, 1)
	if _, err := e.Finish(); !errors.Is(err, ErrTooFewPoints) {
		t.Errorf("Finish() error = %v, want ErrTooFewPoints", err)
	}
	// Failed finish keeps the gesture alive.
	if !e.Active() {
		t.Error("gesture discarded on failed finish")
	}
}

func TestFinishWithoutGesture(t *testing.T) {
	e := NewEditor(0)
	if _, err := e.Finish(); !errors.Is(err, ErrNoGesture) {
		t.Errorf("Finish() error = %v, want ErrNoGesture", err)
	}
}

func TestRegionIDsSequential(t *testing.T) {
	e := NewEditor(2)
	e.SetMode(icd.RegionPoint)

	for want := int32(1); want <= 3; want++ {
		e.Begin(float64(want), 0)
		def, err := e.Finish()
		if err != nil {
			t.Fatalf("Finish() error = %v", err)
		}
		if def.RegionID != want {
			t.Errorf("region id = %d, want %d", def.RegionID, want)
		}
		if def.FileID != 2 {
			t.Errorf("file id = %d, want 2", def.FileID)
		}
	}
}

func TestLivePreviewMirrorsConstruction(t *testing.T) {
	e := NewEditor(0)
	e.SetMode(icd.RegionRectangle)
	e.Begin(1, 2)
	e.Move(4, 6)

	preview := e.Preview()
	// Closed rectangle outline: 4 corners + repeat of the first.
	if len(preview) != 5 {
		t.Fatalf("preview length = %d, want 5", len(preview))
	}
	if preview[0] != preview[4] {
		t.Error("rectangle preview not closed")
	}
	if preview[2] != (icd.Point{X: 4, Y: 6}) {
		t.Errorf("opposite corner = %v, want (4, 6)", preview[2])
	}
}
