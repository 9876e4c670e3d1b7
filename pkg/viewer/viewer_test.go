package viewer

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dsa110/cartaview/pkg/client"
	"github.com/dsa110/cartaview/pkg/icd"
	"github.com/dsa110/cartaview/pkg/raster"
)

// fakeConn records outgoing messages and lets tests inject incoming ones
// through the registered handlers.
type fakeConn struct {
	mu        sync.Mutex
	handlers  map[icd.MessageType][]client.Handler
	views     []*icd.SetImageView
	regions   []*icd.SetRegion
	opened    []*icd.OpenFile
	regionErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{handlers: make(map[icd.MessageType][]client.Handler)}
}

func (f *fakeConn) OnMessage(mt icd.MessageType, h client.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[mt] = append(f.handlers[mt], h)
}

func (f *fakeConn) OpenFile(of *icd.OpenFile) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, of)
	return 1, nil
}

func (f *fakeConn) SetImageView(v *icd.SetImageView) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views = append(f.views, v)
	return uint32(len(f.views)), nil
}

func (f *fakeConn) SetRegion(sr *icd.SetRegion) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.regionErr != nil {
		return 0, f.regionErr
	}
	f.regions = append(f.regions, sr)
	return uint32(len(f.regions)), nil
}

func (f *fakeConn) inject(mt icd.MessageType, payload []byte) {
	f.mu.Lock()
	hs := append([]client.Handler(nil), f.handlers[mt]...)
	f.mu.Unlock()
	for _, h := range hs {
		h(&icd.Message{Type: mt, RequestID: 1, ICDVersion: icd.CurrentVersion, Payload: payload})
	}
}

func (f *fakeConn) lastView() *icd.SetImageView {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.views) == 0 {
		return nil
	}
	return f.views[len(f.views)-1]
}

func (f *fakeConn) resetViews() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views = nil
}

func newTestViewer(t *testing.T, fc *fakeConn, opts ...Option) (*Viewer, chan *image.RGBA) {
	t.Helper()
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRegistry(prometheus.NewRegistry()),
		WithCanvasSize(4, 2),
		WithResizeDebounce(0),
	}
	v := New(fc, append(base, opts...)...)
	t.Cleanup(v.Close)

	frames := make(chan *image.RGBA, 64)
	v.OnFrame(func(f *image.RGBA) {
		select {
		case frames <- f:
		default:
		}
	})
	return v, frames
}

func waitFrame(t *testing.T, frames <-chan *image.RGBA, accept func(*image.RGBA) bool) *image.RGBA {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case f := <-frames:
			if accept == nil || accept(f) {
				return f
			}
		case <-deadline:
			t.Fatal("timed out waiting for frame")
			return nil
		}
	}
}

func rawTile(w, h int, v uint8) []byte {
	data := make([]byte, w*h*4)
	for i := 0; i < len(data); i += 4 {
		data[i] = v
		data[i+1] = v
		data[i+2] = v
		data[i+3] = 255
	}
	return data
}

func openTestFile(v *Viewer, fc *fakeConn, w, h uint32) {
	fc.inject(icd.TypeOpenFileAck, icd.EncodeOpenFileAck(&icd.OpenFileAck{
		Success: true, FileID: 1, Width: w, Height: h,
	}))
}

func TestTileArrivalComposites(t *testing.T) {
	fc := newFakeConn()
	v, frames := newTestViewer(t, fc)

	ro := raster.DefaultRenderOptions()
	ro.MinValue, ro.MaxValue = 0, 1
	v.SetRenderOptions(ro)
	openTestFile(v, fc, 4, 2)

	tile := &icd.RasterTileData{FileID: 1, X: 0, Y: 0, Width: 4, Height: 2, Data: rawTile(4, 2, 128)}
	fc.inject(icd.TypeRasterTileData, icd.EncodeRasterTileData(tile))

	f := waitFrame(t, frames, func(f *image.RGBA) bool {
		return f.Pix[0] == 128
	})
	if f.Pix[3] != 255 {
		t.Errorf("alpha = %d, want 255", f.Pix[3])
	}
	if got := testutil.ToFloat64(v.metrics.TilesReceived); got != 1 {
		t.Errorf("tiles received = %v, want 1", got)
	}
}

func TestCorruptTilePayloadCounted(t *testing.T) {
	fc := newFakeConn()
	v, _ := newTestViewer(t, fc)

	fc.inject(icd.TypeRasterTileData, []byte{0xFF})

	if got := v.store.Len(); got != 0 {
		t.Errorf("store length = %d, want 0", got)
	}
	if got := testutil.ToFloat64(v.metrics.TileDecodeErrors); got != 1 {
		t.Errorf("decode errors = %v, want 1", got)
	}
}

func TestViewAckUpdatesBounds(t *testing.T) {
	fc := newFakeConn()
	v, _ := newTestViewer(t, fc)

	fc.inject(icd.TypeSetImageViewAck, icd.EncodeSetImageViewAck(&icd.SetImageViewAck{
		Success: true, FileID: 1, XMin: 1, XMax: 3, YMin: 0, YMax: 2,
	}))
	if b := v.Bounds(); b.XMin != 1 || b.XMax != 3 || b.YMax != 2 {
		t.Errorf("bounds = %+v", b)
	}

	// A rejected update leaves the bounds alone.
	fc.inject(icd.TypeSetImageViewAck, icd.EncodeSetImageViewAck(&icd.SetImageViewAck{
		Success: false, XMax: 99,
	}))
	if b := v.Bounds(); b.XMax != 3 {
		t.Errorf("bounds after rejected ack = %+v", b)
	}
}

func TestOpenFileResetsState(t *testing.T) {
	fc := newFakeConn()
	v, _ := newTestViewer(t, fc)

	v.store.Add(&raster.Tile{X: 0, Y: 0, Width: 1, Height: 1, Data: rawTile(1, 1, 1)})
	v.PanBy(5, 0)
	v.SetDrawingMode(true)
	v.PointerDown(0, 0)
	v.PointerMove(2, 2)

	openTestFile(v, fc, 4, 2)

	if got := v.store.Len(); got != 0 {
		t.Errorf("store length = %d, want 0", got)
	}
	if tr := v.Viewport(); tr.Scale != 1 || tr.OffsetX != 0 || tr.OffsetY != 0 {
		t.Errorf("viewport not reset: %+v", tr)
	}
	if b := v.Bounds(); b.XMax != 4 || b.YMax != 2 {
		t.Errorf("bounds = %+v, want full image", b)
	}
	if _, err := v.FinishRegion(); err == nil {
		t.Error("gesture survived file open")
	}
}

func TestPanZoomRequestsView(t *testing.T) {
	fc := newFakeConn()
	v, _ := newTestViewer(t, fc)
	openTestFile(v, fc, 4, 2)
	fc.resetViews()

	v.ZoomAt(0, 0, 2)
	view := fc.lastView()
	if view == nil {
		t.Fatal("zoom sent no view update")
	}
	if view.XMin != 0 || view.XMax != 2 || view.YMax != 1 {
		t.Errorf("view after zoom = %+v", view)
	}
	if view.Mip != 1 {
		t.Errorf("mip = %d, want 1", view.Mip)
	}

	v.PanBy(-2, 0)
	view = fc.lastView()
	if view.XMin != 1 || view.XMax != 3 {
		t.Errorf("view after pan = %+v", view)
	}

	// Zooming far out requests a coarser mip.
	v.ResetView()
	v.ZoomAt(0, 0, 0.25)
	if view = fc.lastView(); view.Mip != 4 {
		t.Errorf("mip at scale 0.25 = %d, want 4", view.Mip)
	}
}

func TestResizeDebounceCoalesces(t *testing.T) {
	fc := newFakeConn()
	v, frames := newTestViewer(t, fc, WithResizeDebounce(25*time.Millisecond))
	openTestFile(v, fc, 4, 2)

	v.Resize(10, 10)
	v.Resize(20, 20)
	v.Resize(64, 32)

	f := waitFrame(t, frames, func(f *image.RGBA) bool {
		return f.Bounds().Dx() == 64
	})
	if f.Bounds().Dy() != 32 {
		t.Errorf("frame height = %d, want 32", f.Bounds().Dy())
	}

	// The intermediate sizes never rendered.
	for {
		select {
		case f := <-frames:
			if w := f.Bounds().Dx(); w == 10 || w == 20 {
				t.Errorf("intermediate resize rendered at width %d", w)
			}
		default:
			return
		}
	}
}

func TestStaleCompositeDiscarded(t *testing.T) {
	fc := newFakeConn()
	v, frames := newTestViewer(t, fc)

	gate := &gateDecoder{enter: make(chan struct{}), release: make(chan struct{})}
	v.comp = raster.NewCompositor(
		raster.WithDecoder(gate),
		raster.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	openTestFile(v, fc, 4, 2)

	v.store.Add(&raster.Tile{X: 0, Y: 0, Width: 1, Height: 1, Data: rawTile(1, 1, 9)})
	v.markDirty()

	// The pass is now blocked inside the decoder; clearing the store
	// bumps the generation so its result must be discarded.
	<-gate.enter
	v.store.Clear()
	close(gate.release)

	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(v.metrics.CompositesStale) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("stale composite never counted")
		}
		time.Sleep(5 * time.Millisecond)
	}
	// The rerun composites the now-empty store and publishes a frame.
	waitFrame(t, frames, nil)
}

type gateDecoder struct {
	enter   chan struct{}
	release chan struct{}
}

func (d *gateDecoder) Decode(ctx context.Context, data []byte, w, h int) (*image.RGBA, error) {
	d.enter <- struct{}{}
	<-d.release
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

func TestRegionFinishSendsAndPersists(t *testing.T) {
	fc := newFakeConn()
	v, _ := newTestViewer(t, fc)
	openTestFile(v, fc, 4, 2)

	v.SetDrawingMode(true)
	v.SetRegionType(icd.RegionRectangle)
	v.PointerDown(0, 0)
	v.PointerMove(2, 2)

	// The live gesture contributes a preview polyline.
	v.mu.Lock()
	preview := v.overlaySnapshotLocked()
	v.mu.Unlock()
	if len(preview) != 1 {
		t.Fatalf("overlay polylines during gesture = %d, want 1", len(preview))
	}

	def, err := v.FinishRegion()
	if err != nil {
		t.Fatalf("FinishRegion() error = %v", err)
	}
	if def.Type != icd.RegionRectangle || len(def.ControlPoints) != 4 {
		t.Errorf("def = %+v", def)
	}
	if len(fc.regions) != 1 {
		t.Fatalf("regions sent = %d, want 1", len(fc.regions))
	}
	if fc.regions[0].RegionID != def.RegionID {
		t.Errorf("wire region id = %d, want %d", fc.regions[0].RegionID, def.RegionID)
	}

	v.mu.Lock()
	persisted := len(v.overlays)
	v.mu.Unlock()
	if persisted != 1 {
		t.Errorf("persisted overlays = %d, want 1", persisted)
	}
	if got := testutil.ToFloat64(v.metrics.RegionsSent); got != 1 {
		t.Errorf("regions sent metric = %v, want 1", got)
	}
}

func TestRegionSendFailureNotPersisted(t *testing.T) {
	fc := newFakeConn()
	fc.regionErr = errors.New("socket gone")
	v, _ := newTestViewer(t, fc)
	openTestFile(v, fc, 4, 2)

	v.SetDrawingMode(true)
	v.PointerDown(0, 0)
	v.PointerMove(2, 2)

	if _, err := v.FinishRegion(); err == nil {
		t.Fatal("FinishRegion() succeeded despite send failure")
	}

	v.mu.Lock()
	persisted := len(v.overlays)
	v.mu.Unlock()
	if persisted != 0 {
		t.Errorf("persisted overlays = %d, want 0", persisted)
	}
	if got := testutil.ToFloat64(v.metrics.RegionSendErrors); got != 1 {
		t.Errorf("region send errors = %v, want 1", got)
	}
}

func TestPointerIgnoredOutsideDrawingMode(t *testing.T) {
	fc := newFakeConn()
	v, _ := newTestViewer(t, fc)
	openTestFile(v, fc, 4, 2)

	v.PointerDown(0, 0)
	v.PointerMove(2, 2)
	if _, err := v.FinishRegion(); err == nil {
		t.Error("pointer input outside drawing mode produced a gesture")
	}
}

func TestProfileCallbacks(t *testing.T) {
	fc := newFakeConn()
	v, _ := newTestViewer(t, fc)

	var hist *icd.RegionHistogramData
	var spectral *icd.SpectralProfileData
	v.OnHistogram(func(h *icd.RegionHistogramData) { hist = h })
	v.OnSpectralProfile(func(sp *icd.SpectralProfileData) { spectral = sp })

	fc.inject(icd.TypeRegionHistogram, icd.EncodeRegionHistogramData(&icd.RegionHistogramData{
		RegionID: 3, Bins: []int32{1, 2, 3},
	}))
	fc.inject(icd.TypeSpectralProfile, icd.EncodeSpectralProfileData(&icd.SpectralProfileData{
		RegionID: 3, Progress: 0.5, Values: []float64{1.5},
	}))

	if hist == nil || hist.RegionID != 3 || len(hist.Bins) != 3 {
		t.Errorf("histogram = %+v", hist)
	}
	if spectral == nil || spectral.Progress != 0.5 {
		t.Errorf("spectral = %+v", spectral)
	}
}

func TestServerErrorsCounted(t *testing.T) {
	fc := newFakeConn()
	v, _ := newTestViewer(t, fc)

	fc.inject(icd.TypeErrorData, icd.EncodeErrorData(&icd.ErrorData{
		Severity: icd.SeverityWarning, Message: "beam mismatch",
	}))

	got := testutil.ToFloat64(v.metrics.ServerErrors.WithLabelValues("Warning"))
	if got != 1 {
		t.Errorf("server errors (Warning) = %v, want 1", got)
	}
}

func TestClosedViewerIgnoresInput(t *testing.T) {
	fc := newFakeConn()
	v, frames := newTestViewer(t, fc)
	openTestFile(v, fc, 4, 2)
	waitFrame(t, frames, nil)

	v.Close()
	for len(frames) > 0 {
		<-frames
	}

	fc.inject(icd.TypeRasterTileData, icd.EncodeRasterTileData(&icd.RasterTileData{
		X: 0, Y: 0, Width: 1, Height: 1, Data: rawTile(1, 1, 5),
	}))
	if got := v.store.Len(); got != 0 {
		t.Errorf("closed viewer stored %d tiles", got)
	}
}
