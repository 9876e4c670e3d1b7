package viewer

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds configuration for one viewer instance.
type Config struct {
	// CanvasWidth and CanvasHeight size the composite pixel buffer.
	// Default: 800x600.
	CanvasWidth  int
	CanvasHeight int

	// MinScale and MaxScale bound the viewport zoom.
	// Default: 0.1 and 10.
	MinScale float64
	MaxScale float64

	// ResizeDebounce is how long resize events are coalesced before a
	// recomposite. Default: 100ms.
	ResizeDebounce time.Duration

	// Logger is the structured logger. Default: slog.Default().
	Logger *slog.Logger

	// Registry receives the viewer's Prometheus metrics.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		CanvasWidth:    800,
		CanvasHeight:   600,
		MinScale:       0.1,
		MaxScale:       10,
		ResizeDebounce: 100 * time.Millisecond,
		Logger:         slog.Default(),
		Registry:       prometheus.DefaultRegisterer,
	}
}

// Option configures a viewer.
type Option func(*Config)

// WithCanvasSize sets the composite buffer dimensions.
func WithCanvasSize(w, h int) Option {
	return func(c *Config) {
		c.CanvasWidth = w
		c.CanvasHeight = h
	}
}

// WithScaleBounds sets the viewport zoom bounds.
func WithScaleBounds(min, max float64) Option {
	return func(c *Config) {
		c.MinScale = min
		c.MaxScale = max
	}
}

// WithResizeDebounce sets the resize coalescing window.
func WithResizeDebounce(d time.Duration) Option {
	return func(c *Config) {
		c.ResizeDebounce = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = reg
	}
}
