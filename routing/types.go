package routing

import (
	"context"
	"fmt"
	"strings"

	"tileproxy/gateway"
)

// Fetcher - интерфейс для модуля, выполняющего запрос к апстриму
type Fetcher interface {
	// FetchTile выполняет ровно один GET к upstreamURL и возвращает ответ для клиента
	FetchTile(ctx context.Context, req *gateway.TileRequest, upstreamURL string) *gateway.TileResponse
}

// Picker выбирает индекс в [0, n). *rand.Rand из math/rand/v2 подходит напрямую.
type Picker interface {
	IntN(n int) int
}

// ProviderConfig описывает шаблон URL одного провайдера.
// Плейсхолдеры: {s} - поддомен, {z}, {x}, {y} - координаты, {layer} - параметр слоя.
type ProviderConfig struct {
	URLTemplate string   `yaml:"url_template"`
	Subdomains  []string `yaml:"subdomains"`
}

// Значения параметра слоя для Google
const (
	LayerSatellite = "s"
	LayerHybrid    = "y"
)

// Config содержит конфигурацию разрешения провайдеров
type Config struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Providers: map[string]ProviderConfig{
			gateway.OSM.String(): {
				URLTemplate: "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
				Subdomains:  []string{"a", "b", "c"},
			},
			gateway.OpenTopoMap.String(): {
				URLTemplate: "https://{s}.tile.opentopomap.org/{z}/{x}/{y}.png",
				Subdomains:  []string{"a", "b", "c"},
			},
			// ArcGIS адресует тайлы как {z}/{row}/{col}
			gateway.Esri.String(): {
				URLTemplate: "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
			},
			gateway.Google.String(): {
				URLTemplate: "https://mt1.google.com/vt/lyrs={layer}&x={x}&y={y}&z={z}",
			},
		},
	}
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	for name, pc := range c.Providers {
		provider, ok := gateway.ParseProvider(name)
		if !ok {
			return fmt.Errorf("unknown provider %q", name)
		}
		for _, placeholder := range []string{"{z}", "{x}", "{y}"} {
			if !strings.Contains(pc.URLTemplate, placeholder) {
				return fmt.Errorf("provider %s: url_template must contain %s", name, placeholder)
			}
		}
		if strings.Contains(pc.URLTemplate, "{s}") && len(pc.Subdomains) == 0 {
			return fmt.Errorf("provider %s: url_template uses {s} but no subdomains configured", name)
		}
		if provider.SupportsLayer() && !strings.Contains(pc.URLTemplate, "{layer}") {
			return fmt.Errorf("provider %s: url_template must contain {layer}", name)
		}
	}

	for _, p := range gateway.Providers {
		if _, ok := c.Providers[p.String()]; !ok {
			return fmt.Errorf("provider %s is not configured", p)
		}
	}
	return nil
}
