package gateway

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb/maptile"

	"tileproxy/logger"
)

// tilePathPattern описывает /tiles/{provider}[/{layer}]/{z}/{x}/{y}.{ext}
var tilePathPattern = regexp.MustCompile(
	`^/tiles/([A-Za-z0-9_-]+)(?:/([A-Za-z]))?/([0-9]+)/([0-9]+)/([0-9]+)\.((?i:png|jpe?g))$`)

// RequestParser отвечает за парсинг HTTP запросов в TileRequest
type RequestParser struct{}

// NewRequestParser создает новый экземпляр парсера
func NewRequestParser() *RequestParser {
	return &RequestParser{}
}

// Parse анализирует HTTP запрос и создает TileRequest
func (p *RequestParser) Parse(r *http.Request) (*TileRequest, error) {
	logger.Debug("Parsing HTTP request: %s %s", r.Method, r.URL.Path)

	req, err := p.ParsePath(r.URL.Path)
	if err != nil {
		return nil, err
	}

	req.Headers = r.Header.Clone()
	req.Context = r.Context()

	logger.Debug("Parsed tile request: provider=%s layer=%q z=%d x=%d y=%d",
		req.Provider, req.Layer, req.Tile.Z, req.Tile.X, req.Tile.Y)
	return req, nil
}

// ParsePath разбирает путь без обращения к http.Request (используется и CLI)
func (p *RequestParser) ParsePath(path string) (*TileRequest, error) {
	m := tilePathPattern.FindStringSubmatch(path)
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedPath, path)
	}

	provider, ok := ParseProvider(m[1])
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, m[1])
	}

	layer := m[2]
	if layer != "" && !provider.SupportsLayer() {
		return nil, fmt.Errorf("%w: provider %s does not accept a layer segment", ErrMalformedPath, provider)
	}

	z, err := parseCoordinate(m[3])
	if err != nil {
		return nil, err
	}
	x, err := parseCoordinate(m[4])
	if err != nil {
		return nil, err
	}
	y, err := parseCoordinate(m[5])
	if err != nil {
		return nil, err
	}

	return &TileRequest{
		Provider: provider,
		Layer:    layer,
		Tile:     maptile.New(x, y, maptile.Zoom(z)),
		Ext:      strings.ToLower(m[6]),
	}, nil
}

// parseCoordinate парсит неотрицательное целое, помещающееся в 32 бита
func parseCoordinate(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: coordinate %q out of range", ErrMalformedPath, s)
	}
	return uint32(v), nil
}
