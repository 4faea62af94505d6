package upstream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	State         *prometheus.GaugeVec     // Текущее состояние провайдера (1=UP, 0=DOWN)
	RequestsTotal *prometheus.CounterVec   // Количество запросов к провайдерам
	Latency       *prometheus.HistogramVec // Латентность запросов к провайдерам
	BytesRead     *prometheus.CounterVec   // Количество прочитанных байт
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		State: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tileproxy_upstream_state",
				Help: "Current state of a tile provider (1=UP, 0=DOWN)",
			},
			[]string{"provider"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tileproxy_upstream_requests_total",
				Help: "Total number of requests sent to tile providers",
			},
			[]string{"provider", "code"},
		),
		Latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tileproxy_upstream_latency_seconds",
				Help:    "Latency of requests to tile providers in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		BytesRead: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tileproxy_upstream_bytes_read_total",
				Help: "Total number of bytes read from tile providers",
			},
			[]string{"provider"},
		),
	}
}
