package upstream

import (
	"fmt"
	"time"
)

// Config содержит конфигурацию пассивного отслеживания провайдеров
type Config struct {
	// CircuitBreakerWindow - размер скользящего окна для Circuit Breaker
	CircuitBreakerWindow time.Duration `yaml:"circuit_breaker_window"`

	// CircuitBreakerThreshold - количество ошибок в окне для перехода в DOWN
	CircuitBreakerThreshold int `yaml:"circuit_breaker_threshold"`
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		CircuitBreakerWindow:    60 * time.Second,
		CircuitBreakerThreshold: 5,
	}
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.CircuitBreakerWindow <= 0 {
		return fmt.Errorf("circuit_breaker_window must be positive")
	}
	if c.CircuitBreakerThreshold <= 0 {
		return fmt.Errorf("circuit_breaker_threshold must be positive")
	}
	return nil
}
