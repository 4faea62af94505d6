package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RequestsTotal    *prometheus.CounterVec   // Количество обработанных запросов тайлов
	RequestLatency   *prometheus.HistogramVec // Латентность обработки запросов
	InFlightRequests prometheus.Gauge         // Запросы в обработке
	RecoveredPanics  prometheus.Counter       // Паники, перехваченные middleware
}

// NewMetrics создает метрики шлюза в указанном registry.
// При nil метрики не регистрируются (удобно для тестов).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tileproxy_gateway_requests_total",
				Help: "Total number of processed tile requests",
			},
			[]string{"provider", "code"},
		),
		RequestLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tileproxy_gateway_request_latency_seconds",
				Help:    "Latency of tile requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		InFlightRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tileproxy_gateway_in_flight_requests",
				Help: "Number of tile requests currently being served",
			},
		),
		RecoveredPanics: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tileproxy_gateway_recovered_panics_total",
				Help: "Total number of panics recovered while serving requests",
			},
		),
	}
}
