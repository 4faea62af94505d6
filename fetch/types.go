package fetch

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"tileproxy/gateway"
)

// Archiver получает копию тела успешного ответа. Реализуется пакетом archive.
type Archiver interface {
	// Capture оборачивает тело ответа. Возвращенный ReadCloser должен отдавать
	// те же байты, что и исходный.
	Capture(req *gateway.TileRequest, contentType string, body io.ReadCloser) io.ReadCloser
}

// Config содержит настройки исходящих запросов
type Config struct {
	// Timeout ограничивает весь запрос к апстриму, включая чтение тела
	Timeout time.Duration `yaml:"timeout"`

	// UserAgent отправляется в каждом исходящем запросе
	UserAgent string `yaml:"user_agent"`

	// MaxIdleConnsPerHost для переиспользования соединений с провайдерами
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host"`
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Timeout:             15 * time.Second,
		UserAgent:           "FRA-Atlas-TileProxy/1.0 (+https://fra-atlas.example.org)",
		MaxIdleConnsPerHost: 32,
	}
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user_agent cannot be empty")
	}
	if c.MaxIdleConnsPerHost < 0 {
		return fmt.Errorf("max_idle_conns_per_host cannot be negative")
	}
	return nil
}

// StatusError - ответ апстрима с кодом вне диапазона 2xx
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s returned %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// HTTPStatusCode позволяет классифицировать ошибку через errors.As
func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}
