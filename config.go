package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"tileproxy/archive"
	"tileproxy/fetch"
	"tileproxy/gateway"
	"tileproxy/monitoring"
	"tileproxy/routing"
	"tileproxy/upstream"
)

// AppConfig содержит полную конфигурацию приложения
type AppConfig struct {
	// Конфигурация HTTP шлюза тайлов
	Server ServerConfig `yaml:"server"`

	// Конфигурация логирования
	Logging LoggingConfig `yaml:"logging"`

	// Шаблоны URL провайдеров
	Routing routing.Config `yaml:"routing"`

	// Исходящие запросы к провайдерам
	Fetch fetch.Config `yaml:"fetch"`

	// Пассивное отслеживание состояния провайдеров
	Upstream upstream.Config `yaml:"upstream"`

	// Архив тайлов в S3 (по умолчанию выключен)
	Archive archive.Config `yaml:"archive"`

	// Конфигурация мониторинга
	Monitoring monitoring.Config `yaml:"monitoring"`
}

// ServerConfig содержит конфигурацию HTTP сервера
type ServerConfig struct {
	ListenAddress string        `yaml:"listen_address"`
	TLSCertFile   string        `yaml:"tls_cert_file"`
	TLSKeyFile    string        `yaml:"tls_key_file"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	UseMock       bool          `yaml:"use_mock"`
}

// LoggingConfig содержит конфигурацию логирования
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultAppConfig возвращает конфигурацию по умолчанию
func DefaultAppConfig() *AppConfig {
	gw := gateway.DefaultConfig()
	return &AppConfig{
		Server: ServerConfig{
			ListenAddress: gw.ListenAddress,
			ReadTimeout:   gw.ReadTimeout,
			WriteTimeout:  gw.WriteTimeout,
			UseMock:       false,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Routing:    *routing.DefaultConfig(),
		Fetch:      *fetch.DefaultConfig(),
		Upstream:   *upstream.DefaultConfig(),
		Archive:    *archive.DefaultConfig(),
		Monitoring: *monitoring.DefaultConfig(),
	}
}

// LoadConfig загружает конфигурацию из файла поверх значений по умолчанию
func LoadConfig(filename string) (*AppConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	config := DefaultAppConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate проверяет корректность конфигурации
func (c *AppConfig) Validate() error {
	if err := c.ToGatewayConfig().Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if !isValidLogLevel(c.Logging.Level) {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}

	if err := c.Routing.Validate(); err != nil {
		return fmt.Errorf("routing config: %w", err)
	}

	if err := c.Fetch.Validate(); err != nil {
		return fmt.Errorf("fetch config: %w", err)
	}

	// Ответ клиенту не может уложиться во write_timeout, если апстрим ждем дольше
	if !c.Server.UseMock && c.Server.WriteTimeout <= c.Fetch.Timeout {
		return fmt.Errorf("server.write_timeout (%v) must exceed fetch.timeout (%v)",
			c.Server.WriteTimeout, c.Fetch.Timeout)
	}

	if err := c.Upstream.Validate(); err != nil {
		return fmt.Errorf("upstream config: %w", err)
	}

	if err := c.Archive.Validate(); err != nil {
		return fmt.Errorf("archive config: %w", err)
	}

	if err := c.Monitoring.Validate(); err != nil {
		return fmt.Errorf("monitoring config: %w", err)
	}

	return nil
}

// ToGatewayConfig преобразует в конфигурацию шлюза
func (c *AppConfig) ToGatewayConfig() gateway.Config {
	return gateway.Config{
		ListenAddress: c.Server.ListenAddress,
		TLSCertFile:   c.Server.TLSCertFile,
		TLSKeyFile:    c.Server.TLSKeyFile,
		ReadTimeout:   c.Server.ReadTimeout,
		WriteTimeout:  c.Server.WriteTimeout,
	}
}

// isValidLogLevel проверяет корректность уровня логирования
func isValidLogLevel(level string) bool {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return true
		}
	}
	return false
}

// SaveConfig сохраняет конфигурацию в файл (для генерации примера)
func (c *AppConfig) SaveConfig(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", filename, err)
	}

	return nil
}
