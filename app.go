package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"tileproxy/archive"
	"tileproxy/fetch"
	"tileproxy/gateway"
	"tileproxy/handlers"
	"tileproxy/logger"
	"tileproxy/monitoring"
	"tileproxy/routing"
	"tileproxy/upstream"
)

// App связывает модули прокси между собой
type App struct {
	config    *AppConfig
	gateway   *gateway.Gateway
	monitor   *monitoring.Monitor
	upstreams *upstream.Manager
	archiver  *archive.Archiver
}

// NewApp создает все модули. reg используется и для регистрации, и для /metrics.
func NewApp(config *AppConfig, reg *prometheus.Registry) (*App, error) {
	app := &App{config: config}

	var err error
	ids := make([]string, 0, len(gateway.Providers))
	for _, p := range gateway.Providers {
		ids = append(ids, p.String())
	}
	app.upstreams, err = upstream.NewManager(&config.Upstream, ids, reg)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream manager: %w", err)
	}

	var handler gateway.RequestHandler
	if config.Server.UseMock {
		logger.Info("Using Mock Handler (no upstream traffic)")
		handler = handlers.NewMockHandler()
	} else {
		// Типизированный nil в интерфейсе fetch.Archiver не передаем
		var archiver fetch.Archiver
		if config.Archive.Enabled {
			app.archiver, err = archive.New(&config.Archive, reg)
			if err != nil {
				return nil, fmt.Errorf("failed to create archiver: %w", err)
			}
			archiver = app.archiver
		}

		fetcher := fetch.NewFetcher(&config.Fetch, app.upstreams, archiver)
		resolver := routing.NewResolver(&config.Routing, nil)
		handler = routing.NewEngine(resolver, fetcher)

		logger.Info("Using routing engine: upstream timeout=%v, user agent=%q, archive=%t",
			config.Fetch.Timeout, config.Fetch.UserAgent, config.Archive.Enabled)
		for name, pc := range config.Routing.Providers {
			logger.Debug("  - %s: %s", name, pc.URLTemplate)
		}
	}

	app.gateway = gateway.New(config.ToGatewayConfig(), handler, reg)

	app.monitor, err = monitoring.New(&config.Monitoring, reg, reg, app.upstreams)
	if err != nil {
		return nil, fmt.Errorf("failed to create monitoring module: %w", err)
	}

	return app, nil
}

// Run запускает серверы и блокируется до отмены ctx или ошибки одного из них
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(a.gateway.Start)
	g.Go(a.monitor.Start)

	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// shutdown останавливает модули в порядке, обратном потоку данных
func (a *App) shutdown() error {
	logger.Info("Shutting down...")
	a.monitor.SetShuttingDown()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.gateway.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("gateway: %w", err))
	}
	if a.archiver != nil {
		if err := a.archiver.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("archive: %w", err))
		}
	}
	if err := a.monitor.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("monitoring: %w", err))
	}

	logger.Info("Tile proxy stopped")
	return errors.Join(errs...)
}

// Handler возвращает HTTP обработчик шлюза
func (a *App) Handler() *gateway.Gateway {
	return a.gateway
}
