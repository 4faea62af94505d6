package upstream

import (
	"sync"
	"time"
)

// State представляет состояние провайдера
type State string

const (
	StateUp   State = "UP"   // Провайдер отвечает
	StateDown State = "DOWN" // Сработал circuit breaker
)

// String возвращает строковое представление состояния
func (s State) String() string {
	return string(s)
}

// ToFloat64 возвращает числовое представление состояния для метрик Prometheus
func (s State) ToFloat64() float64 {
	if s == StateUp {
		return 1.0
	}
	return 0.0
}

// Upstream представляет одного провайдера тайлов с его состоянием
type Upstream struct {
	ID string // Идентификатор провайдера (osm, esri, ...)

	// Внутреннее состояние, защищенное мьютексом
	mu                   sync.RWMutex
	state                State
	lastError            error
	lastCheckTime        time.Time
	consecutiveFailures  int
	consecutiveSuccesses int

	// Статистика для Circuit Breaker
	recentFailures int       // Количество неудач в скользящем окне
	windowStart    time.Time // Начало текущего окна
}

// Result представляет результат одного запроса к апстриму
type Result struct {
	UpstreamID string
	StatusCode int // 0, если ответа не было
	Err        error
	Duration   time.Duration
	BytesRead  int64
}

// GetState возвращает текущее состояние (потокобезопасно)
func (u *Upstream) GetState() State {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.state
}

// GetLastError возвращает последнюю ошибку (потокобезопасно)
func (u *Upstream) GetLastError() error {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.lastError
}

// GetLastCheckTime возвращает время последнего отчета (потокобезопасно)
func (u *Upstream) GetLastCheckTime() time.Time {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.lastCheckTime
}

// GetStats возвращает статистику (потокобезопасно)
func (u *Upstream) GetStats() (consecutiveFailures, consecutiveSuccesses, recentFailures int) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.consecutiveFailures, u.consecutiveSuccesses, u.recentFailures
}

// Reporter - интерфейс для пассивных отчетов о запросах к апстриму
type Reporter interface {
	ReportSuccess(result *Result)
	ReportFailure(result *Result)
}
