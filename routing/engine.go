package routing

import (
	"context"
	"net/http"

	"tileproxy/gateway"
	"tileproxy/logger"
)

// Engine разрешает провайдера и передает запрос в fetcher
type Engine struct {
	resolver *Resolver
	fetcher  Fetcher
}

// NewEngine создает новый экземпляр Engine
func NewEngine(resolver *Resolver, fetcher Fetcher) *Engine {
	if resolver == nil {
		resolver = NewResolver(nil, nil)
	}
	return &Engine{
		resolver: resolver,
		fetcher:  fetcher,
	}
}

// Handle - реализация интерфейса gateway.RequestHandler
func (e *Engine) Handle(req *gateway.TileRequest) *gateway.TileResponse {
	upstreamURL, err := e.resolver.Resolve(req)
	if err != nil {
		logger.Warn("Failed to resolve upstream for %s: %v", req.Provider, err)
		return gateway.ErrorResponse(http.StatusBadRequest, "unknown tile provider", err)
	}

	logger.Debug("Routing %s z=%d x=%d y=%d to %s (request %s)",
		req.Provider, req.Tile.Z, req.Tile.X, req.Tile.Y, upstreamURL, req.RequestID)

	ctx := req.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return e.fetcher.FetchTile(ctx, req, upstreamURL)
}
