// Package viewer wires the protocol client, tile store, compositor,
// viewport transform and region editor into one streaming image viewer.
//
// All incoming messages arrive on the client's read loop; the viewer's
// handlers only update state and mark the composite dirty. Compositing
// runs single-flight on its own goroutine: at most one pass at a time,
// with a rerun when state changed mid-pass.
package viewer

import (
	"context"
	"image"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dsa110/cartaview/pkg/client"
	"github.com/dsa110/cartaview/pkg/icd"
	"github.com/dsa110/cartaview/pkg/raster"
	"github.com/dsa110/cartaview/pkg/region"
	"github.com/dsa110/cartaview/pkg/viewport"
)

// tracerName is the OpenTelemetry tracer used for composite spans.
const tracerName = "cartaview/viewer"

// Conn is the protocol surface the viewer needs from the client.
// *client.Client satisfies it.
type Conn interface {
	OnMessage(mt icd.MessageType, h client.Handler)
	OpenFile(of *icd.OpenFile) (uint32, error)
	SetImageView(v *icd.SetImageView) (uint32, error)
	SetRegion(sr *icd.SetRegion) (uint32, error)
}

// compositeInput is the state snapshot one composite pass renders from.
type compositeInput struct {
	bounds  raster.ImageBounds
	render  raster.RenderOptions
	w, h    int
	overlay [][]icd.Point
}

// Viewer is one streaming image viewer session.
type Viewer struct {
	conn    Conn
	config  *Config
	metrics *Metrics
	store   *raster.Store
	comp    *raster.Compositor

	mu        sync.Mutex
	transform *viewport.Transform
	pinch     *viewport.Pinch
	editor    *region.Editor
	bounds    raster.ImageBounds
	render    raster.RenderOptions
	canvasW   int
	canvasH   int
	fileID    int32
	imageW    float64
	imageH    float64
	overlays  [][]icd.Point
	drawing   bool
	dirty     bool
	composing bool
	closed    bool
	frame     *image.RGBA

	pendingW    int
	pendingH    int
	resizeTimer *time.Timer

	onFrame     func(*image.RGBA)
	onHistogram func(*icd.RegionHistogramData)
	onSpatial   func(*icd.SpatialProfileData)
	onSpectral  func(*icd.SpectralProfileData)
}

// New creates a viewer bound to the given connection and registers its
// message handlers. Handlers stay registered for the client's lifetime;
// after Close they become no-ops.
func New(conn Conn, opts ...Option) *Viewer {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	metrics := NewMetrics(config.Registry)
	v := &Viewer{
		conn:    conn,
		config:  config,
		metrics: metrics,
		store:   raster.NewStore(),
		comp: raster.NewCompositor(
			raster.WithLogger(config.Logger),
			raster.WithDecoder(&countingDecoder{
				inner: raster.StdDecoder{},
				errs:  metrics.TileDecodeErrors,
			}),
		),
		transform: viewport.New(config.MinScale, config.MaxScale),
		editor:    region.NewEditor(0),
		render:    raster.DefaultRenderOptions(),
		canvasW:   config.CanvasWidth,
		canvasH:   config.CanvasHeight,
	}
	v.pinch = viewport.NewPinch(v.transform)

	conn.OnMessage(icd.TypeRasterTileData, v.handleRasterTile)
	conn.OnMessage(icd.TypeSetImageViewAck, v.handleViewAck)
	conn.OnMessage(icd.TypeOpenFileAck, v.handleOpenAck)
	conn.OnMessage(icd.TypeRegionHistogram, v.handleHistogram)
	conn.OnMessage(icd.TypeSpatialProfile, v.handleSpatialProfile)
	conn.OnMessage(icd.TypeSpectralProfile, v.handleSpectralProfile)
	conn.OnMessage(icd.TypeErrorData, v.handleServerError)
	return v
}

// Close stops the viewer. Pending resize timers are cancelled and all
// further messages and input are ignored.
func (v *Viewer) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	if v.resizeTimer != nil {
		v.resizeTimer.Stop()
		v.resizeTimer = nil
	}
}

func (v *Viewer) isClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// OnFrame registers the callback invoked with each freshly composited
// frame. The callback must not retain or mutate the buffer past its
// return; the next pass replaces it.
func (v *Viewer) OnFrame(f func(*image.RGBA)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onFrame = f
}

// OnHistogram registers the callback for region histogram data.
func (v *Viewer) OnHistogram(f func(*icd.RegionHistogramData)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onHistogram = f
}

// OnSpatialProfile registers the callback for spatial profile data.
func (v *Viewer) OnSpatialProfile(f func(*icd.SpatialProfileData)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onSpatial = f
}

// OnSpectralProfile registers the callback for spectral profile data.
func (v *Viewer) OnSpectralProfile(f func(*icd.SpectralProfileData)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onSpectral = f
}

// Frame returns the most recently composited frame, or nil before the
// first pass completes.
func (v *Viewer) Frame() *image.RGBA {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frame
}

// Viewport returns a copy of the current viewport transform.
func (v *Viewer) Viewport() viewport.Transform {
	v.mu.Lock()
	defer v.mu.Unlock()
	return *v.transform
}

// Bounds returns the image bounds currently being displayed.
func (v *Viewer) Bounds() raster.ImageBounds {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.bounds
}

// OpenFile asks the server to open an image. The store resets and the
// viewport returns to identity when the acknowledgment arrives.
func (v *Viewer) OpenFile(directory, file, hdu string) error {
	_, err := v.conn.OpenFile(&icd.OpenFile{Directory: directory, File: file, HDU: hdu})
	return err
}

// SetRenderOptions replaces the color pipeline settings and recomposites.
func (v *Viewer) SetRenderOptions(ro raster.RenderOptions) {
	v.mu.Lock()
	v.render = ro
	v.mu.Unlock()
	v.markDirty()
}

// RenderOptions returns the current color pipeline settings.
func (v *Viewer) RenderOptions() raster.RenderOptions {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.render
}

// Message handlers. All run on the client's read loop.

func (v *Viewer) handleRasterTile(msg *icd.Message) {
	if v.isClosed() {
		return
	}
	td, err := icd.DecodeRasterTileData(msg.Payload)
	if err != nil {
		v.config.Logger.Error("raster tile payload decode error", "error", err)
		v.metrics.TileDecodeErrors.Inc()
		return
	}
	v.metrics.TilesReceived.Inc()
	v.metrics.TileBytesReceived.Add(float64(len(td.Data)))

	v.store.Add(&raster.Tile{
		X:      int(td.X),
		Y:      int(td.Y),
		Layer:  int(td.Layer),
		Width:  int(td.Width),
		Height: int(td.Height),
		Data:   td.Data,
	})
	v.markDirty()
}

func (v *Viewer) handleViewAck(msg *icd.Message) {
	if v.isClosed() {
		return
	}
	ack, err := icd.DecodeSetImageViewAck(msg.Payload)
	if err != nil {
		v.config.Logger.Error("view ack decode error", "error", err)
		return
	}
	if !ack.Success {
		v.config.Logger.Warn("view update rejected", "file_id", ack.FileID)
		return
	}
	v.mu.Lock()
	v.bounds = raster.ImageBounds{
		XMin: ack.XMin, XMax: ack.XMax,
		YMin: ack.YMin, YMax: ack.YMax,
		ZMin: ack.ZMin, ZMax: ack.ZMax,
	}
	v.mu.Unlock()
	v.markDirty()
}

func (v *Viewer) handleOpenAck(msg *icd.Message) {
	if v.isClosed() {
		return
	}
	ack, err := icd.DecodeOpenFileAck(msg.Payload)
	if err != nil {
		v.config.Logger.Error("open ack decode error", "error", err)
		return
	}
	if !ack.Success {
		v.config.Logger.Warn("file open rejected", "message", ack.Message)
		return
	}

	// A new file replaces everything: tiles, viewport, regions.
	v.store.Clear()
	v.mu.Lock()
	v.fileID = ack.FileID
	v.imageW = float64(ack.Width)
	v.imageH = float64(ack.Height)
	v.bounds = raster.ImageBounds{XMax: v.imageW, YMax: v.imageH}
	v.transform.Reset()
	v.editor = region.NewEditor(ack.FileID)
	v.overlays = nil
	v.drawing = false
	v.mu.Unlock()

	v.config.Logger.Info("file opened",
		"file_id", ack.FileID, "width", ack.Width, "height", ack.Height)
	v.requestView()
	v.markDirty()
}

func (v *Viewer) handleHistogram(msg *icd.Message) {
	if v.isClosed() {
		return
	}
	h, err := icd.DecodeRegionHistogramData(msg.Payload)
	if err != nil {
		v.config.Logger.Error("histogram decode error", "error", err)
		return
	}
	v.mu.Lock()
	cb := v.onHistogram
	v.mu.Unlock()
	if cb != nil {
		cb(h)
	}
}

func (v *Viewer) handleSpatialProfile(msg *icd.Message) {
	if v.isClosed() {
		return
	}
	sp, err := icd.DecodeSpatialProfileData(msg.Payload)
	if err != nil {
		v.config.Logger.Error("spatial profile decode error", "error", err)
		return
	}
	v.mu.Lock()
	cb := v.onSpatial
	v.mu.Unlock()
	if cb != nil {
		cb(sp)
	}
}

func (v *Viewer) handleSpectralProfile(msg *icd.Message) {
	if v.isClosed() {
		return
	}
	sp, err := icd.DecodeSpectralProfileData(msg.Payload)
	if err != nil {
		v.config.Logger.Error("spectral profile decode error", "error", err)
		return
	}
	v.mu.Lock()
	cb := v.onSpectral
	v.mu.Unlock()
	if cb != nil {
		cb(sp)
	}
}

func (v *Viewer) handleServerError(msg *icd.Message) {
	if v.isClosed() {
		return
	}
	ed, err := icd.DecodeErrorData(msg.Payload)
	if err != nil {
		v.config.Logger.Error("error data decode error", "error", err)
		return
	}
	v.metrics.ServerErrors.WithLabelValues(ed.Severity.String()).Inc()
	serr := &client.ServerError{Severity: ed.Severity, Message: ed.Message}
	switch ed.Severity {
	case icd.SeverityInfo:
		v.config.Logger.Info("server message", "message", ed.Message)
	case icd.SeverityWarning:
		v.config.Logger.Warn("server warning", "error", serr)
	default:
		v.config.Logger.Error("server error", "error", serr)
	}
}

// Viewport input.

// PanBy shifts the viewport by a screen-space delta.
func (v *Viewer) PanBy(dx, dy float64) {
	v.mu.Lock()
	v.transform.PanBy(dx, dy)
	v.mu.Unlock()
	v.requestView()
	v.markDirty()
}

// ZoomAt zooms by factor around the screen point (sx, sy), typically
// driven by wheel events.
func (v *Viewer) ZoomAt(sx, sy, factor float64) {
	v.mu.Lock()
	v.transform.ZoomAt(sx, sy, factor)
	v.mu.Unlock()
	v.requestView()
	v.markDirty()
}

// ZoomIn zooms 20% toward the canvas center.
func (v *Viewer) ZoomIn() {
	v.mu.Lock()
	v.transform.ZoomIn(float64(v.canvasW), float64(v.canvasH))
	v.mu.Unlock()
	v.requestView()
	v.markDirty()
}

// ZoomOut zooms 20% away from the canvas center.
func (v *Viewer) ZoomOut() {
	v.mu.Lock()
	v.transform.ZoomOut(float64(v.canvasW), float64(v.canvasH))
	v.mu.Unlock()
	v.requestView()
	v.markDirty()
}

// FitToCanvas scales the open image to fit the canvas, centered.
func (v *Viewer) FitToCanvas() {
	v.mu.Lock()
	v.transform.FitToCanvas(v.imageW, v.imageH, float64(v.canvasW), float64(v.canvasH))
	v.mu.Unlock()
	v.requestView()
	v.markDirty()
}

// ResetView restores identity scale and zero offset.
func (v *Viewer) ResetView() {
	v.mu.Lock()
	v.transform.Reset()
	v.mu.Unlock()
	v.requestView()
	v.markDirty()
}

// PinchBegin starts a two-touch pinch gesture.
func (v *Viewer) PinchBegin(x1, y1, x2, y2 float64) {
	v.mu.Lock()
	v.pinch.Begin(x1, y1, x2, y2)
	v.mu.Unlock()
}

// PinchMove updates a pinch gesture, zooming by the distance ratio.
func (v *Viewer) PinchMove(x1, y1, x2, y2 float64) {
	v.mu.Lock()
	v.pinch.Move(x1, y1, x2, y2)
	v.mu.Unlock()
	v.requestView()
	v.markDirty()
}

// PinchEnd terminates a pinch gesture.
func (v *Viewer) PinchEnd() {
	v.mu.Lock()
	v.pinch.End()
	v.mu.Unlock()
}

// ScreenToImage converts a screen-space point to image coordinates.
func (v *Viewer) ScreenToImage(sx, sy float64) (float64, float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.transform.ScreenToImage(sx, sy)
}

// Resize schedules a canvas resize. Bursts of resize events within the
// debounce window coalesce into one recomposite.
func (v *Viewer) Resize(w, h int) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.pendingW, v.pendingH = w, h
	if v.config.ResizeDebounce <= 0 {
		v.canvasW, v.canvasH = w, h
		v.mu.Unlock()
		v.requestView()
		v.markDirty()
		return
	}
	if v.resizeTimer != nil {
		v.resizeTimer.Stop()
	}
	v.resizeTimer = time.AfterFunc(v.config.ResizeDebounce, v.applyResize)
	v.mu.Unlock()
}

func (v *Viewer) applyResize() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.canvasW, v.canvasH = v.pendingW, v.pendingH
	v.resizeTimer = nil
	v.mu.Unlock()
	v.requestView()
	v.markDirty()
}

// requestView tells the server the sub-volume the viewport now shows.
// The displayed bounds change only when the acknowledgment arrives.
func (v *Viewer) requestView() {
	v.mu.Lock()
	if v.fileID == 0 && v.imageW == 0 {
		v.mu.Unlock()
		return
	}
	x0, y0 := v.transform.ScreenToImage(0, 0)
	x1, y1 := v.transform.ScreenToImage(float64(v.canvasW), float64(v.canvasH))
	req := &icd.SetImageView{
		FileID: v.fileID,
		XMin:   clampTo(x0, 0, v.imageW),
		XMax:   clampTo(x1, 0, v.imageW),
		YMin:   clampTo(y0, 0, v.imageH),
		YMax:   clampTo(y1, 0, v.imageH),
		ZMin:   v.bounds.ZMin,
		ZMax:   v.bounds.ZMax,
		Mip:    mipFor(v.transform.Scale),
	}
	v.mu.Unlock()

	if _, err := v.conn.SetImageView(req); err != nil {
		v.config.Logger.Debug("view update not sent", "error", err)
	}
}

func clampTo(x, lo, hi float64) float64 {
	return math.Min(math.Max(x, lo), hi)
}

// mipFor picks the coarsest mip level that still fills the screen at the
// given scale: full resolution when zoomed in, coarser when zoomed out.
func mipFor(scale float64) int32 {
	if scale >= 1 {
		return 1
	}
	return int32(math.Round(1 / scale))
}

// Region drawing.

// SetDrawingMode toggles drawing mode. Entering or leaving it discards
// any gesture in progress.
func (v *Viewer) SetDrawingMode(on bool) {
	v.mu.Lock()
	v.drawing = on
	v.editor.Cancel()
	v.mu.Unlock()
	v.markDirty()
}

// DrawingMode reports whether drawing mode is active.
func (v *Viewer) DrawingMode() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.drawing
}

// SetRegionType selects the region type for subsequent gestures.
func (v *Viewer) SetRegionType(t icd.RegionType) {
	v.mu.Lock()
	v.editor.SetMode(t)
	v.mu.Unlock()
	v.markDirty()
}

// PointerDown feeds a screen-space press into the region editor. Polygon
// and annulus gestures commit one vertex per press; drag types start a
// fresh gesture.
func (v *Viewer) PointerDown(sx, sy float64) {
	v.mu.Lock()
	if !v.drawing {
		v.mu.Unlock()
		return
	}
	ix, iy := v.transform.ScreenToImage(sx, sy)
	switch v.editor.Mode() {
	case icd.RegionPolygon, icd.RegionAnnulus:
		v.editor.Commit(ix, iy)
	default:
		v.editor.Begin(ix, iy)
	}
	v.mu.Unlock()
	v.markDirty()
}

// PointerMove updates the gesture's trailing point while drawing.
func (v *Viewer) PointerMove(sx, sy float64) {
	v.mu.Lock()
	if !v.drawing || !v.editor.Active() {
		v.mu.Unlock()
		return
	}
	ix, iy := v.transform.ScreenToImage(sx, sy)
	v.editor.Move(ix, iy)
	v.mu.Unlock()
	v.markDirty()
}

// CancelRegion discards the gesture in progress.
func (v *Viewer) CancelRegion() {
	v.mu.Lock()
	v.editor.Cancel()
	v.mu.Unlock()
	v.markDirty()
}

// FinishRegion completes the gesture, sends the region to the server and,
// on success, persists its outline on the canvas. A region that fails to
// send is not persisted; the gesture is consumed either way once it
// validates.
func (v *Viewer) FinishRegion() (*region.Def, error) {
	v.mu.Lock()
	def, err := v.editor.Finish()
	v.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if _, err := v.conn.SetRegion(def.Wire()); err != nil {
		v.metrics.RegionSendErrors.Inc()
		v.config.Logger.Warn("region send failed",
			"region_id", def.RegionID, "type", def.Type, "error", err)
		v.markDirty()
		return def, err
	}
	v.metrics.RegionsSent.Inc()

	v.mu.Lock()
	if outline := region.Outline(def); len(outline) > 0 {
		v.overlays = append(v.overlays, outline)
	}
	v.mu.Unlock()
	v.markDirty()
	return def, nil
}

// Compositing.

func (v *Viewer) markDirty() {
	v.mu.Lock()
	v.dirty = true
	v.mu.Unlock()
	v.kick()
}

// kick starts a composite pass unless one is already running. The dirty
// flag is consumed by the pass that runs; a pass finishing with the flag
// set again reruns immediately.
func (v *Viewer) kick() {
	v.mu.Lock()
	if v.closed || v.composing || !v.dirty {
		v.mu.Unlock()
		return
	}
	v.composing = true
	v.dirty = false
	in := compositeInput{
		bounds:  v.bounds,
		render:  v.render,
		w:       v.canvasW,
		h:       v.canvasH,
		overlay: v.overlaySnapshotLocked(),
	}
	v.mu.Unlock()

	go v.composite(in)
}

// overlaySnapshotLocked collects the committed region outlines plus the
// live gesture preview. Caller holds v.mu.
func (v *Viewer) overlaySnapshotLocked() [][]icd.Point {
	out := make([][]icd.Point, 0, len(v.overlays)+1)
	out = append(out, v.overlays...)
	if preview := v.editor.Preview(); len(preview) > 0 {
		out = append(out, preview)
	}
	return out
}

func (v *Viewer) composite(in compositeInput) {
	ctx, span := otel.Tracer(tracerName).Start(context.Background(), "viewer.Composite",
		trace.WithAttributes(
			attribute.Int("carta.canvas_width", in.w),
			attribute.Int("carta.canvas_height", in.h),
		))
	defer span.End()

	gen := v.store.Generation()
	tiles := v.store.Values()
	span.SetAttributes(attribute.Int("carta.tiles", len(tiles)))

	start := time.Now()
	out, err := v.comp.Compose(ctx, tiles, in.bounds, in.w, in.h, in.render, in.overlay)
	v.metrics.CompositeDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		v.config.Logger.Error("composite failed", "error", err)

	case v.store.Generation() != gen:
		// The store was cleared mid-pass; the result shows stale tiles.
		v.metrics.CompositesStale.Inc()
		v.mu.Lock()
		v.dirty = true
		v.mu.Unlock()

	default:
		v.metrics.CompositesTotal.Inc()
		span.SetStatus(codes.Ok, "")
		var cb func(*image.RGBA)
		v.mu.Lock()
		v.frame = out
		cb = v.onFrame
		v.mu.Unlock()
		if cb != nil && out != nil {
			cb(out)
		}
	}

	v.mu.Lock()
	v.composing = false
	v.mu.Unlock()
	v.kick()
}

// countingDecoder wraps a tile decoder and counts decode failures.
type countingDecoder struct {
	inner raster.Decoder
	errs  interface{ Inc() }
}

func (d *countingDecoder) Decode(ctx context.Context, data []byte, width, height int) (*image.RGBA, error) {
	img, err := d.inner.Decode(ctx, data, width, height)
	if err != nil {
		d.errs.Inc()
	}
	return img, err
}
