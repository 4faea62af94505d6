package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tileproxy/logger"
)

// Manager пассивно отслеживает состояние провайдеров по результатам запросов.
// Состояние только наблюдается и экспортируется, запросы им не блокируются.
type Manager struct {
	config    Config
	upstreams map[string]*Upstream
	metrics   *Metrics
	now       func() time.Time

	mu sync.RWMutex
}

// NewManager создает менеджер для перечисленных провайдеров. Все начинают в состоянии UP.
func NewManager(cfg *Config, ids []string, reg prometheus.Registerer) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one upstream must be registered")
	}

	m := &Manager{
		config:    *cfg,
		upstreams: make(map[string]*Upstream, len(ids)),
		metrics:   NewMetrics(reg),
		now:       time.Now,
	}

	for _, id := range ids {
		u := &Upstream{
			ID:          id,
			state:       StateUp,
			windowStart: m.now(),
		}
		m.upstreams[id] = u
		m.metrics.State.WithLabelValues(id).Set(u.state.ToFloat64())
	}

	logger.Info("Upstream manager initialized with %d providers", len(m.upstreams))
	return m, nil
}

// GetUpstream возвращает провайдера по ID
func (m *Manager) GetUpstream(id string) (*Upstream, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, exists := m.upstreams[id]
	return u, exists
}

// GetAllUpstreams возвращает всех провайдеров, отсортированных по ID
func (m *Manager) GetAllUpstreams() []*Upstream {
	m.mu.RLock()
	defer m.mu.RUnlock()

	upstreams := make([]*Upstream, 0, len(m.upstreams))
	for _, u := range m.upstreams {
		upstreams = append(upstreams, u)
	}
	sort.Slice(upstreams, func(i, j int) bool { return upstreams[i].ID < upstreams[j].ID })
	return upstreams
}

// GetStates возвращает снимок состояний всех провайдеров
func (m *Manager) GetStates() map[string]State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[string]State, len(m.upstreams))
	for id, u := range m.upstreams {
		states[id] = u.GetState()
	}
	return states
}

// AllDown возвращает true, если ни один провайдер не находится в состоянии UP
func (m *Manager) AllDown() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.upstreams {
		if u.GetState() == StateUp {
			return false
		}
	}
	return true
}

// isBenignError классифицирует ошибку как "безопасную", если она не указывает
// на проблему с провайдером: клиент ушел сам или тайла просто нет.
func isBenignError(result *Result) bool {
	if result.Err == nil && result.StatusCode == 0 {
		return true
	}
	if result.StatusCode == http.StatusNotFound {
		return true
	}

	if errors.Is(result.Err, context.Canceled) {
		return true
	}

	var httpErr interface{ HTTPStatusCode() int }
	if errors.As(result.Err, &httpErr) && httpErr.HTTPStatusCode() == http.StatusNotFound {
		return true
	}

	// Таймауты, 5xx, 429, 403 и сетевые ошибки считаются критическими
	return false
}

// ReportSuccess сообщает об успешном запросе. Провайдер в состоянии DOWN возвращается в строй.
func (m *Manager) ReportSuccess(result *Result) {
	u, exists := m.GetUpstream(result.UpstreamID)
	if !exists {
		logger.Warn("ReportSuccess: upstream '%s' not found", result.UpstreamID)
		return
	}

	u.mu.Lock()
	u.lastCheckTime = m.now()
	u.lastError = nil
	u.consecutiveFailures = 0
	u.consecutiveSuccesses++
	u.recentFailures = 0

	if u.state == StateDown {
		logger.Info("Upstream '%s' is back online after a successful request", result.UpstreamID)
		m.setState(u, StateUp)
	}
	u.mu.Unlock()

	m.observe(result)
}

// ReportFailure сообщает о неудачном запросе с учетом типа ошибки
func (m *Manager) ReportFailure(result *Result) {
	u, exists := m.GetUpstream(result.UpstreamID)
	if !exists {
		logger.Warn("ReportFailure: upstream '%s' not found", result.UpstreamID)
		return
	}

	if isBenignError(result) {
		logger.Debug("ReportFailure: benign failure on upstream '%s' (status %d): %v",
			result.UpstreamID, result.StatusCode, result.Err)
		m.observe(result)
		return
	}

	u.mu.Lock()
	now := m.now()
	u.lastCheckTime = now
	u.consecutiveSuccesses = 0
	u.consecutiveFailures++
	u.lastError = result.Err
	if u.lastError == nil {
		u.lastError = fmt.Errorf("upstream returned status %d", result.StatusCode)
	}

	if now.Sub(u.windowStart) > m.config.CircuitBreakerWindow {
		u.recentFailures = 1
		u.windowStart = now
	} else {
		u.recentFailures++
	}

	logger.Warn("ReportFailure: critical failure on upstream '%s', consecutive: %d, recent: %d. Error: %v",
		result.UpstreamID, u.consecutiveFailures, u.recentFailures, u.lastError)

	if u.state != StateDown && u.recentFailures >= m.config.CircuitBreakerThreshold {
		logger.Error("Circuit breaker triggered for upstream '%s': %d failures in %v. Setting state to DOWN",
			result.UpstreamID, u.recentFailures, now.Sub(u.windowStart))
		m.setState(u, StateDown)
	}
	u.mu.Unlock()

	m.observe(result)
}

func (m *Manager) observe(result *Result) {
	code := "error"
	if result.StatusCode > 0 {
		code = strconv.Itoa(result.StatusCode)
	}
	m.metrics.RequestsTotal.WithLabelValues(result.UpstreamID, code).Inc()
	m.metrics.Latency.WithLabelValues(result.UpstreamID).Observe(result.Duration.Seconds())
	if result.BytesRead > 0 {
		m.metrics.BytesRead.WithLabelValues(result.UpstreamID).Add(float64(result.BytesRead))
	}
}

// setState вызывается под u.mu
func (m *Manager) setState(u *Upstream, state State) {
	u.state = state
	m.metrics.State.WithLabelValues(u.ID).Set(state.ToFloat64())
}
