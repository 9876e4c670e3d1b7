// Package preview exposes the viewer's composited frame over HTTP, for
// headless use and debugging: a PNG snapshot endpoint, a health check and
// the Prometheus metrics endpoint.
package preview

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dsa110/cartaview/pkg/viewer"
)

// Server serves snapshots of one viewer session.
type Server struct {
	viewer    *viewer.Viewer
	logger    *slog.Logger
	gatherer  prometheus.Gatherer
	startTime time.Time
}

// NewServer creates a preview server for the given viewer. The gatherer
// backs the /metrics endpoint; pass prometheus.DefaultGatherer unless the
// viewer was built with a private registry.
func NewServer(v *viewer.Viewer, logger *slog.Logger, gatherer prometheus.Gatherer) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		viewer:    v,
		logger:    logger,
		gatherer:  gatherer,
		startTime: time.Now(),
	}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/view.png", s.handleView)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status": "ok",
		"uptime": int(time.Since(s.startTime).Seconds()),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("health response encode error", "error", err)
	}
}

// handleView writes the most recent composite as PNG. Before the first
// composite completes there is nothing to serve. Optional width and
// height query parameters resize the snapshot with nearest-neighbor
// sampling, matching how tiles are placed on the canvas.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	frame := s.viewer.Frame()
	if frame == nil {
		http.Error(w, "no frame composited yet", http.StatusNotFound)
		return
	}

	width, err := dimensionParam(r, "width")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	height, err := dimensionParam(r, "height")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// The frame buffer plus the requested size identifies the response.
	etag := fmt.Sprintf(`"%x-%dx%d"`, xxhash.Sum64(frame.Pix), width, height)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	var img image.Image = frame
	if width > 0 || height > 0 {
		img = imaging.Resize(frame, width, height, imaging.NearestNeighbor)
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		s.logger.Error("snapshot encode error", "error", err)
	}
}

// dimensionParam parses an optional positive integer query parameter.
// Absent means zero.
func dimensionParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return n, nil
}
