package archive

import (
	"fmt"
	"time"
)

// Config содержит конфигурацию архива тайлов в S3-совместимом хранилище
type Config struct {
	// Enabled включает архивирование. По умолчанию выключено.
	Enabled bool `yaml:"enabled"`

	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`

	// Prefix - префикс ключей объектов
	Prefix string `yaml:"prefix"`

	// Workers - количество воркеров, выполняющих PutObject
	Workers int `yaml:"workers"`

	// QueueSize - размер очереди. При переполнении тайл не архивируется.
	QueueSize int `yaml:"queue_size"`

	// MaxObjectSize - тайлы больше этого размера не архивируются
	MaxObjectSize int64 `yaml:"max_object_size"`

	// OperationTimeout - таймаут одного PutObject
	OperationTimeout time.Duration `yaml:"operation_timeout"`
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Enabled:          false,
		Region:           "us-east-1",
		Prefix:           "tiles",
		Workers:          4,
		QueueSize:        1024,
		MaxObjectSize:    2 << 20, // 2MB
		OperationTimeout: 30 * time.Second,
	}
}

// Validate проверяет корректность конфигурации.
// Параметры хранилища проверяются только при включенном архиве.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Bucket == "" {
		return fmt.Errorf("archive bucket cannot be empty")
	}
	if c.Region == "" {
		return fmt.Errorf("archive region cannot be empty")
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return fmt.Errorf("archive access_key and secret_key must be set together")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("archive workers must be positive")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("archive queue_size must be positive")
	}
	if c.MaxObjectSize <= 0 {
		return fmt.Errorf("archive max_object_size must be positive")
	}
	if c.OperationTimeout <= 0 {
		return fmt.Errorf("archive operation_timeout must be positive")
	}
	return nil
}
