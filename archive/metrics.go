package archive

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Captured      *prometheus.CounterVec // Результат захвата тела: queued, dropped, skipped
	Uploads       *prometheus.CounterVec // Результат PutObject: success, error
	UploadLatency prometheus.Histogram
	BytesWritten  prometheus.Counter
	QueueDepth    prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Captured: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tileproxy_archive_captured_total",
				Help: "Tiles offered to the archive by outcome",
			},
			[]string{"result"},
		),
		Uploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tileproxy_archive_uploads_total",
				Help: "PutObject calls to the archive bucket by outcome",
			},
			[]string{"result"},
		),
		UploadLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tileproxy_archive_upload_latency_seconds",
				Help:    "Latency of PutObject calls to the archive bucket",
				Buckets: prometheus.DefBuckets,
			},
		),
		BytesWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tileproxy_archive_bytes_written_total",
				Help: "Total bytes written to the archive bucket",
			},
		),
		QueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tileproxy_archive_queue_depth",
				Help: "Number of tiles waiting to be archived",
			},
		),
	}
}
