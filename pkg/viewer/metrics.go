package viewer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metricsNamespace is the Prometheus namespace for viewer metrics.
const metricsNamespace = "carta"

// Metrics holds the Prometheus metrics for one viewer instance.
type Metrics struct {
	TilesReceived     prometheus.Counter
	TileBytesReceived prometheus.Counter
	TileDecodeErrors  prometheus.Counter
	CompositesTotal   prometheus.Counter
	CompositesStale   prometheus.Counter
	CompositeDuration prometheus.Histogram
	RegionsSent       prometheus.Counter
	RegionSendErrors  prometheus.Counter
	ServerErrors      *prometheus.CounterVec
}

// NewMetrics registers viewer metrics with the given registry.
// Pass prometheus.DefaultRegisterer for process-global metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TilesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tiles_received_total",
			Help:      "Total number of raster tiles received",
		}),
		TileBytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tile_bytes_received_total",
			Help:      "Total raster tile payload bytes received",
		}),
		TileDecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tile_decode_errors_total",
			Help:      "Total tile payloads that failed to decode",
		}),
		CompositesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "composites_total",
			Help:      "Total composite passes completed",
		}),
		CompositesStale: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "composites_stale_total",
			Help:      "Composite results discarded because the tile store generation moved",
		}),
		CompositeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "composite_duration_seconds",
			Help:      "Composite pass duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		RegionsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "regions_sent_total",
			Help:      "Total region definitions sent to the server",
		}),
		RegionSendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "region_send_errors_total",
			Help:      "Total region definitions that failed to send",
		}),
		ServerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "server_errors_total",
			Help:      "Total ERROR_DATA messages received, by severity",
		}, []string{"severity"}),
	}
}
