package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics - системные метрики процесса
type Metrics struct {
	MemoryUsage   prometheus.Gauge // Использование памяти (heap alloc)
	MemorySys     prometheus.Gauge // Память, полученная от ОС
	Goroutines    prometheus.Gauge // Количество горутин
	GCPauseTotal  prometheus.Gauge // Суммарное время пауз GC
	ReadyState    prometheus.Gauge // 1, если /health/ready отвечает 200
	UptimeSeconds prometheus.Gauge
}

// NewMetrics создает метрики в указанном registerer. При nil метрики не регистрируются.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MemoryUsage: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tileproxy_memory_usage_bytes",
				Help: "Current heap memory usage in bytes",
			},
		),
		MemorySys: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tileproxy_memory_sys_bytes",
				Help: "Total memory obtained from the OS in bytes",
			},
		),
		Goroutines: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tileproxy_goroutines",
				Help: "Number of goroutines",
			},
		),
		GCPauseTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tileproxy_gc_pause_seconds_total",
				Help: "Cumulative GC pause time in seconds",
			},
		),
		ReadyState: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tileproxy_ready",
				Help: "Whether the proxy reports itself ready (1) or not (0)",
			},
		),
		UptimeSeconds: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tileproxy_uptime_seconds",
				Help: "Seconds since the process started",
			},
		),
	}
}
