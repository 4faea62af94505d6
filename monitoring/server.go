package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tileproxy/logger"
	"tileproxy/upstream"
)

const healthPathPrefix = "/health/"

// UpstreamStates - источник состояния провайдеров для /health/ready
type UpstreamStates interface {
	AllDown() bool
	GetStates() map[string]upstream.State
}

// Server представляет HTTP сервер для экспорта метрик Prometheus
type Server struct {
	config       *Config
	server       *http.Server
	router       chi.Router
	upstreams    UpstreamStates
	metrics      *Metrics
	shuttingDown atomic.Bool
}

type healthResponse struct {
	Status    string                    `json:"status"`
	Upstreams map[string]upstream.State `json:"upstreams,omitempty"`
}

// NewServer создает сервер метрик. upstreams и metrics могут быть nil.
func NewServer(config *Config, gatherer prometheus.Gatherer, upstreams UpstreamStates, metrics *Metrics) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		config:    config,
		upstreams: upstreams,
		metrics:   metrics,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, config.MetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get(healthPathPrefix+"live", s.liveHealthHandler)
	r.Get(healthPathPrefix+"ready", s.readyHealthHandler)
	s.router = r

	s.server = &http.Server{
		Addr:         config.ListenAddress,
		Handler:      r,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s
}

// Handler возвращает обработчик сервера (для тестов)
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start запускает HTTP сервер метрик и блокируется до остановки
func (s *Server) Start() error {
	logger.Info("Metrics server listening on %s%s", s.config.ListenAddress, s.config.MetricsPath)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// SetShuttingDown переводит /health/ready в 503
func (s *Server) SetShuttingDown() {
	s.shuttingDown.Store(true)
}

// Stop останавливает HTTP сервер метрик
func (s *Server) Stop(ctx context.Context) error {
	s.SetShuttingDown()
	logger.Info("Stopping metrics server...")
	return s.server.Shutdown(ctx)
}

// liveHealthHandler обрабатывает запросы /health/live
func (s *Server) liveHealthHandler(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, healthResponse{Status: "ok"})
}

// readyHealthHandler обрабатывает запросы /health/ready
func (s *Server) readyHealthHandler(w http.ResponseWriter, r *http.Request) {
	status, body := s.readiness()
	if s.metrics != nil {
		if status == http.StatusOK {
			s.metrics.ReadyState.Set(1)
		} else {
			s.metrics.ReadyState.Set(0)
		}
	}
	writeHealth(w, status, body)
}

func (s *Server) readiness() (int, healthResponse) {
	if s.shuttingDown.Load() {
		return http.StatusServiceUnavailable, healthResponse{Status: "shutting down"}
	}
	if s.upstreams == nil {
		return http.StatusOK, healthResponse{Status: "ok"}
	}

	states := s.upstreams.GetStates()
	if s.upstreams.AllDown() {
		return http.StatusServiceUnavailable, healthResponse{Status: "all upstreams down", Upstreams: states}
	}
	return http.StatusOK, healthResponse{Status: "ok", Upstreams: states}
}

func writeHealth(w http.ResponseWriter, status int, body healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Debug("Failed to encode health response: %v", err)
	}
}
