package gateway

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"tileproxy/logger"
)

// Gateway представляет HTTP шлюз тайлов
type Gateway struct {
	config         Config
	handler        RequestHandler
	parser         *RequestParser
	responseWriter *ResponseWriter
	router         chi.Router
	server         *http.Server
	metrics        *Metrics
}

// New создает новый экземпляр шлюза
func New(config Config, handler RequestHandler, reg prometheus.Registerer) *Gateway {
	gw := &Gateway{
		config:         config,
		handler:        handler,
		parser:         NewRequestParser(),
		responseWriter: NewResponseWriter(),
		metrics:        NewMetrics(reg),
	}

	r := chi.NewRouter()
	r.Use(gw.requestIDMiddleware, gw.accessLogMiddleware, gw.recoverMiddleware)

	r.Get("/tiles", gw.serveTile)
	r.Get("/tiles/*", gw.serveTile)
	r.Options("/tiles/*", gw.servePreflight)
	r.Get("/healthz", gw.serveHealthz)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})

	gw.router = r
	gw.server = &http.Server{
		Addr:         config.ListenAddress,
		Handler:      gw,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return gw
}

// ServeHTTP реализует интерфейс http.Handler
func (gw *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gw.router.ServeHTTP(w, r)
}

// serveTile: Validating -> Fetching -> Responding.
// Ошибка разбора сразу переходит в Responding без обращения к апстриму.
func (gw *Gateway) serveTile(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	gw.metrics.InFlightRequests.Inc()
	defer gw.metrics.InFlightRequests.Dec()

	providerLabel := "invalid"

	var resp *TileResponse
	req, err := gw.parser.Parse(r)
	if err != nil {
		logger.Debug("Rejected tile request %s: %v", r.URL.Path, err)
		resp = &TileResponse{StatusCode: http.StatusBadRequest, Error: err}
	} else {
		req.RequestID = RequestIDFromContext(r.Context())
		providerLabel = req.Provider.String()

		resp = gw.handler.Handle(req)
		if resp == nil {
			resp = ErrorResponse(http.StatusInternalServerError, "internal server error",
				errors.New("handler returned nil response"))
		}
	}

	if err := gw.responseWriter.WriteResponse(w, resp); err != nil {
		logger.Debug("Failed to write response: %v", err)
	}

	status := resp.StatusCode
	if resp.Error != nil {
		status, _ = mapError(resp.Error)
	}
	gw.metrics.RequestsTotal.WithLabelValues(providerLabel, strconv.Itoa(status)).Inc()
	gw.metrics.RequestLatency.WithLabelValues(providerLabel).Observe(time.Since(start).Seconds())
}

// servePreflight отвечает на CORS preflight
func (gw *Gateway) servePreflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}

func (gw *Gateway) serveHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// Start запускает сервер и блокируется до его остановки
func (gw *Gateway) Start() error {
	logger.Info("Starting tile gateway on %s", gw.config.ListenAddress)

	var err error
	if gw.config.TLSCertFile != "" && gw.config.TLSKeyFile != "" {
		logger.Info("Starting HTTPS server with TLS")
		err = gw.server.ListenAndServeTLS(gw.config.TLSCertFile, gw.config.TLSKeyFile)
	} else {
		logger.Info("Starting HTTP server")
		err = gw.server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop останавливает сервер
func (gw *Gateway) Stop(ctx context.Context) error {
	logger.Info("Stopping tile gateway...")
	return gw.server.Shutdown(ctx)
}
