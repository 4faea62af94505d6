package monitoring

import (
	"fmt"
	"strings"
	"time"
)

// Config описывает служебный HTTP-сервер прокси: метрики Prometheus,
// liveness/readiness и периодический сбор runtime-метрик процесса.
// Сервер слушает отдельный адрес, чтобы /metrics не торчал наружу вместе с /tiles.
type Config struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address"`
	// MetricsPath монтируется в chi, поэтому обязан начинаться с "/"
	MetricsPath  string        `yaml:"metrics_path"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// Память, горутины и паузы GC снимаются раз в SystemMetricsInterval
	EnableSystemMetrics   bool          `yaml:"enable_system_metrics"`
	SystemMetricsInterval time.Duration `yaml:"system_metrics_interval"`
}

// DefaultConfig: метрики на :9091, runtime-метрики каждые 15 секунд
func DefaultConfig() *Config {
	return &Config{
		Enabled:               true,
		ListenAddress:         ":9091",
		MetricsPath:           "/metrics",
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		EnableSystemMetrics:   true,
		SystemMetricsInterval: 15 * time.Second,
	}
}

// Validate проверяет настройки только для включенного сервера
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	switch {
	case c.ListenAddress == "":
		return fmt.Errorf("monitoring: listen_address is required")
	case c.MetricsPath == "":
		return fmt.Errorf("monitoring: metrics_path is required")
	case !strings.HasPrefix(c.MetricsPath, "/"):
		return fmt.Errorf("monitoring: metrics_path %q must start with /", c.MetricsPath)
	case strings.HasPrefix(c.MetricsPath, healthPathPrefix):
		return fmt.Errorf("monitoring: metrics_path %q overlaps health endpoints", c.MetricsPath)
	case c.ReadTimeout <= 0 || c.WriteTimeout <= 0:
		return fmt.Errorf("monitoring: read_timeout and write_timeout must be positive")
	case c.EnableSystemMetrics && c.SystemMetricsInterval <= 0:
		return fmt.Errorf("monitoring: system_metrics_interval must be positive")
	}
	return nil
}
