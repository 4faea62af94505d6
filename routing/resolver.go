package routing

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"tileproxy/gateway"
)

// globalPicker использует потокобезопасный глобальный источник math/rand/v2
type globalPicker struct{}

func (globalPicker) IntN(n int) int {
	return rand.IntN(n)
}

// Resolver превращает TileRequest в URL апстрима. Состояния между запросами нет.
type Resolver struct {
	providers map[gateway.Provider]ProviderConfig
	picker    Picker
}

// NewResolver создает резолвер. При nil picker используется глобальный источник.
func NewResolver(config *Config, picker Picker) *Resolver {
	if config == nil {
		config = DefaultConfig()
	}
	if picker == nil {
		picker = globalPicker{}
	}

	providers := make(map[gateway.Provider]ProviderConfig, len(config.Providers))
	for name, pc := range config.Providers {
		if p, ok := gateway.ParseProvider(name); ok {
			providers[p] = pc
		}
	}

	return &Resolver{providers: providers, picker: picker}
}

// Resolve возвращает URL апстрима для запроса
func (r *Resolver) Resolve(req *gateway.TileRequest) (string, error) {
	pc, ok := r.providers[req.Provider]
	if !ok {
		return "", fmt.Errorf("%w: %s", gateway.ErrUnknownProvider, req.Provider)
	}
	return ResolveURL(pc, req, r.picker), nil
}

// ResolveURL подставляет координаты в шаблон провайдера.
// Порядок координат определяется только шаблоном: для Esri это {z}/{y}/{x}.
func ResolveURL(pc ProviderConfig, req *gateway.TileRequest, picker Picker) string {
	replacements := []string{
		"{z}", strconv.FormatUint(uint64(req.Tile.Z), 10),
		"{x}", strconv.FormatUint(uint64(req.Tile.X), 10),
		"{y}", strconv.FormatUint(uint64(req.Tile.Y), 10),
	}

	if strings.Contains(pc.URLTemplate, "{s}") && len(pc.Subdomains) > 0 {
		replacements = append(replacements, "{s}", PickSubdomain(pc.Subdomains, picker))
	}
	if strings.Contains(pc.URLTemplate, "{layer}") {
		replacements = append(replacements, "{layer}", LayerParam(req.Layer))
	}

	return strings.NewReplacer(replacements...).Replace(pc.URLTemplate)
}

// PickSubdomain равновероятно выбирает поддомен для распределения нагрузки
func PickSubdomain(subdomains []string, picker Picker) string {
	return subdomains[picker.IntN(len(subdomains))]
}

// LayerParam: "y" означает hybrid, все остальное (включая пустой сегмент) - satellite
func LayerParam(layer string) string {
	if layer == LayerHybrid {
		return LayerHybrid
	}
	return LayerSatellite
}
