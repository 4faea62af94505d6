package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/paulmach/orb/maptile"
)

// Provider определяет источник тайлов.
type Provider int

const (
	// Определяем константы для всех поддерживаемых провайдеров
	UnknownProvider Provider = iota
	OSM
	OpenTopoMap
	Esri
	Google
)

// Providers - фиксированный набор поддерживаемых провайдеров
var Providers = []Provider{OSM, OpenTopoMap, Esri, Google}

// String возвращает идентификатор провайдера в URL
func (p Provider) String() string {
	switch p {
	case OSM:
		return "osm"
	case OpenTopoMap:
		return "opentopomap"
	case Esri:
		return "esri"
	case Google:
		return "google"
	default:
		return "unknown"
	}
}

// ParseProvider возвращает провайдера по идентификатору из URL
func ParseProvider(name string) (Provider, bool) {
	for _, p := range Providers {
		if p.String() == name {
			return p, true
		}
	}
	return UnknownProvider, false
}

// SupportsLayer сообщает, принимает ли провайдер сегмент слоя
func (p Provider) SupportsLayer() bool {
	return p == Google
}

// Ошибки разбора входящего пути
var (
	ErrMalformedPath   = errors.New("malformed tile path")
	ErrUnknownProvider = errors.New("unknown tile provider")
)

// Error - ошибка, которую можно показать клиенту.
// Message уходит в тело ответа, Err остается в логах.
type Error struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// TileRequest - внутреннее представление запроса тайла.
// Создается парсером и после этого не изменяется.
type TileRequest struct {
	// Провайдер из фиксированного набора
	Provider Provider

	// Сырой дискриминатор слоя (только для Google), пустая строка если сегмента нет
	Layer string

	// Координаты тайла (zoom, column, row)
	Tile maptile.Tile

	// Расширение файла в нижнем регистре, используется только при разборе пути
	Ext string

	// Идентификатор запроса для логов
	RequestID string

	// Оригинальные заголовки HTTP запроса
	Headers http.Header

	// Контекст запроса для поддержки таймаутов и отмены
	Context context.Context
}

// TileResponse - внутреннее представление ответа.
type TileResponse struct {
	// HTTP код состояния для отправки клиенту
	StatusCode int

	// Заголовки для отправки клиенту
	Headers http.Header

	// Тело ответа, передается потоком
	Body io.ReadCloser

	// Ошибка обработки. Если не nil, Body игнорируется.
	Error error
}

// RequestHandler - интерфейс следующего по цепочке модуля (routing engine или mock).
type RequestHandler interface {
	// Handle принимает распарсенный TileRequest и возвращает TileResponse,
	// готовый для отправки клиенту.
	Handle(req *TileRequest) *TileResponse
}

// Заголовки успешного ответа
const (
	CacheControlValue  = "public, max-age=86400, s-maxage=86400, stale-while-revalidate=604800"
	DefaultContentType = "image/png"
)

// SuccessHeaders собирает заголовки успешного ответа с тайлом
func SuccessHeaders(contentType string) http.Header {
	if contentType == "" {
		contentType = DefaultContentType
	}
	headers := make(http.Header)
	headers.Set("Content-Type", contentType)
	headers.Set("Cache-Control", CacheControlValue)
	headers.Set("Access-Control-Allow-Origin", "*")
	return headers
}

// ErrorResponse создает ответ об ошибке с безопасным сообщением
func ErrorResponse(statusCode int, message string, cause error) *TileResponse {
	return &TileResponse{
		StatusCode: statusCode,
		Headers:    make(http.Header),
		Error:      &Error{StatusCode: statusCode, Message: message, Err: cause},
	}
}
