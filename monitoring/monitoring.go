package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tileproxy/logger"
)

// Monitor представляет основной интерфейс модуля мониторинга
type Monitor struct {
	config  *Config
	server  *Server
	metrics *Metrics
	started time.Time

	stopOnce          sync.Once
	stopSystemMetrics chan struct{}
	wg                sync.WaitGroup
}

// New создает новый экземпляр Monitor.
// reg и gatherer обычно указывают на один и тот же prometheus.Registry.
func New(config *Config, reg prometheus.Registerer, gatherer prometheus.Gatherer, upstreams UpstreamStates) (*Monitor, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid monitoring config: %w", err)
	}

	metrics := NewMetrics(reg)
	monitor := &Monitor{
		config:            config,
		server:            NewServer(config, gatherer, upstreams, metrics),
		metrics:           metrics,
		started:           time.Now(),
		stopSystemMetrics: make(chan struct{}),
	}

	logger.Info("Monitoring module initialized")
	logger.Debug("Monitoring config: enabled=%v, listen=%s, path=%s",
		config.Enabled, config.ListenAddress, config.MetricsPath)

	return monitor, nil
}

// Start запускает сбор системных метрик и сервер метрик. Блокируется до Stop.
func (m *Monitor) Start() error {
	if !m.config.Enabled {
		logger.Info("Monitoring is disabled")
		return nil
	}

	if m.config.EnableSystemMetrics {
		m.wg.Add(1)
		go m.collectSystemMetrics()
	}

	if err := m.server.Start(); err != nil {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}

// SetShuttingDown сообщает балансировщику, что инстанс выводится из работы
func (m *Monitor) SetShuttingDown() {
	m.server.SetShuttingDown()
}

// Stop останавливает модуль мониторинга
func (m *Monitor) Stop(ctx context.Context) error {
	if !m.config.Enabled {
		return nil
	}

	logger.Info("Stopping monitoring module...")
	m.stopOnce.Do(func() { close(m.stopSystemMetrics) })
	m.wg.Wait()

	if err := m.server.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop metrics server: %w", err)
	}

	logger.Info("Monitoring module stopped")
	return nil
}

// Server возвращает сервер метрик
func (m *Monitor) Server() *Server {
	return m.server
}

// GetConfig возвращает конфигурацию мониторинга
func (m *Monitor) GetConfig() *Config {
	return m.config
}

// IsEnabled возвращает true, если мониторинг включен
func (m *Monitor) IsEnabled() bool {
	return m.config.Enabled
}

func (m *Monitor) collectSystemMetrics() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.SystemMetricsInterval)
	defer ticker.Stop()

	m.updateSystemMetrics()
	for {
		select {
		case <-ticker.C:
			m.updateSystemMetrics()
		case <-m.stopSystemMetrics:
			logger.Debug("System metrics collection stopped")
			return
		}
	}
}

func (m *Monitor) updateSystemMetrics() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	m.metrics.MemoryUsage.Set(float64(stats.HeapAlloc))
	m.metrics.MemorySys.Set(float64(stats.Sys))
	m.metrics.GCPauseTotal.Set(time.Duration(stats.PauseTotalNs).Seconds())
	m.metrics.Goroutines.Set(float64(runtime.NumGoroutine()))
	m.metrics.UptimeSeconds.Set(time.Since(m.started).Seconds())
}
