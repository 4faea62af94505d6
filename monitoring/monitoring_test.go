package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tileproxy/upstream"
)

// fakeUpstreams задает состояние провайдеров вручную
type fakeUpstreams struct {
	states map[string]upstream.State
}

func (f *fakeUpstreams) AllDown() bool {
	for _, s := range f.states {
		if s == upstream.StateUp {
			return false
		}
	}
	return true
}

func (f *fakeUpstreams) GetStates() map[string]upstream.State {
	return f.states
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, healthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body healthResponse
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.True(t, config.Enabled)
	assert.Equal(t, ":9091", config.ListenAddress)
	assert.Equal(t, "/metrics", config.MetricsPath)
	assert.Equal(t, 30*time.Second, config.ReadTimeout)
	assert.True(t, config.EnableSystemMetrics)
}

func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name        string
		config      *Config
		expectError bool
	}{
		{
			name:   "Valid config",
			config: DefaultConfig(),
		},
		{
			name:   "Disabled monitoring",
			config: &Config{Enabled: false},
		},
		{
			name: "Empty listen address",
			config: &Config{
				Enabled:      true,
				MetricsPath:  "/metrics",
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 30 * time.Second,
			},
			expectError: true,
		},
		{
			name: "Empty metrics path",
			config: &Config{
				Enabled:       true,
				ListenAddress: ":9091",
				ReadTimeout:   30 * time.Second,
				WriteTimeout:  30 * time.Second,
			},
			expectError: true,
		},
		{
			name: "Metrics path without leading slash",
			config: &Config{
				Enabled:       true,
				ListenAddress: ":9091",
				MetricsPath:   "metrics",
				ReadTimeout:   30 * time.Second,
				WriteTimeout:  30 * time.Second,
			},
			expectError: true,
		},
		{
			name: "Metrics path under health endpoints",
			config: &Config{
				Enabled:       true,
				ListenAddress: ":9091",
				MetricsPath:   "/health/metrics",
				ReadTimeout:   30 * time.Second,
				WriteTimeout:  30 * time.Second,
			},
			expectError: true,
		},
		{
			name: "System metrics without interval",
			config: &Config{
				Enabled:             true,
				ListenAddress:       ":9091",
				MetricsPath:         "/metrics",
				ReadTimeout:         30 * time.Second,
				WriteTimeout:        30 * time.Second,
				EnableSystemMetrics: true,
			},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.Validate()
			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHealthLive(t *testing.T) {
	server := NewServer(nil, prometheus.NewRegistry(), nil, nil)

	rec, body := get(t, server.Handler(), "/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body.Status)
}

func TestHealthReady(t *testing.T) {
	ups := &fakeUpstreams{states: map[string]upstream.State{
		"osm":  upstream.StateDown,
		"esri": upstream.StateUp,
	}}
	metrics := NewMetrics(nil)
	server := NewServer(nil, prometheus.NewRegistry(), ups, metrics)

	rec, body := get(t, server.Handler(), "/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, upstream.StateDown, body.Upstreams["osm"])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ReadyState))

	ups.states["esri"] = upstream.StateDown
	rec, body = get(t, server.Handler(), "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "all upstreams down", body.Status)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ReadyState))

	ups.states["esri"] = upstream.StateUp
	server.SetShuttingDown()
	rec, body = get(t, server.Handler(), "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "shutting down", body.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tileproxy_test_total",
		Help: "Test counter",
	})
	registry.MustRegister(counter)
	counter.Add(3)

	server := NewServer(nil, registry, nil, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tileproxy_test_total 3")
}

func TestMonitor_SystemMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	monitor, err := New(nil, registry, registry, nil)
	require.NoError(t, err)

	monitor.updateSystemMetrics()
	assert.Greater(t, testutil.ToFloat64(monitor.metrics.Goroutines), 0.0)
	assert.Greater(t, testutil.ToFloat64(monitor.metrics.MemoryUsage), 0.0)
}

func TestMonitor_StartStop(t *testing.T) {
	config := DefaultConfig()
	config.ListenAddress = "127.0.0.1:0"
	config.SystemMetricsInterval = 10 * time.Millisecond

	registry := prometheus.NewRegistry()
	monitor, err := New(config, registry, registry, nil)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- monitor.Start() }()

	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, monitor.Stop(ctx))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestNewMonitor_InvalidConfig(t *testing.T) {
	_, err := New(&Config{Enabled: true}, nil, nil, nil)
	assert.Error(t, err)
}
